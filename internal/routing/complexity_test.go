package routing

import "testing"

func TestClassifyComplexity(t *testing.T) {
	cases := []struct {
		name string
		task Task
		want Complexity
	}{
		{"plain unit test", Task{Type: "test-generator", Description: "write a unit test for the parser"}, ComplexitySimple},
		{"refactor mention", Task{Type: "test-generator", Description: "refactor the suite for clarity"}, ComplexityModerate},
		{"integration mention", Task{Type: "test-executor", Description: "run the integration suite across services"}, ComplexityComplex},
		{"production security", Task{Type: "test-executor", Description: "verify production security compliance"}, ComplexityCritical},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassifyComplexity(c.task); got != c.want {
				t.Errorf("ClassifyComplexity(%+v) = %s, want %s", c.task, got, c.want)
			}
		})
	}
}

func TestComplexityDowngrade(t *testing.T) {
	steps := []Complexity{ComplexityCritical, ComplexityComplex, ComplexityModerate, ComplexitySimple}
	for i := 0; i < len(steps)-1; i++ {
		if got := steps[i].downgrade(); got != steps[i+1] {
			t.Errorf("%s.downgrade() = %s, want %s", steps[i], got, steps[i+1])
		}
	}
	if ComplexitySimple.downgrade() != ComplexitySimple {
		t.Error("simple should not downgrade further")
	}
}
