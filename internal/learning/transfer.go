package learning

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/agentic-qe/kernel/internal/memory"
)

const (
	transferPartition = "learning"
)

func mappingID(source, target Domain) string {
	return fmt.Sprintf("%s->%s", source, target)
}

func mappingKey(id string) string     { return "transfer-learning/mappings/" + id }
func metricsKey(id string) string     { return "transfer-learning/metrics/" + id }
func experiencesKey(d Domain) string  { return "transfer-learning/experiences/" + string(d) }

// Mapping records one source/target transfer relationship (spec.md §4.6).
type Mapping struct {
	ID                     string  `json:"id"`
	SourceDomain           Domain  `json:"source_domain"`
	TargetDomain           Domain  `json:"target_domain"`
	Similarity             float64 `json:"similarity"`
	TransferCoefficient    float64 `json:"transfer_coefficient"`
	ExperiencesTransferred int     `json:"experiences_transferred"`
	SuccessRate            float64 `json:"success_rate"`
}

// Metrics accumulates totals across every transfer attempted for a mapping.
type Metrics struct {
	TotalTransfers     int     `json:"total_transfers"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	AvgPerformanceGain float64 `json:"avg_performance_gain"`
	TransferEfficiency float64 `json:"transfer_efficiency"`
}

// TransferManager implements cross-domain transfer learning: similarity
// gating, reward-scaled experience copying, and mapping/metric persistence
// under partition "learning" (spec.md §4.6, §6).
type TransferManager struct {
	db *memory.DB
}

// NewTransferManager creates a TransferManager backed by db.
func NewTransferManager(db *memory.DB) *TransferManager {
	return &TransferManager{db: db}
}

// Similarity computes cosine similarity between source and target's
// built-in feature vectors.
func (t *TransferManager) Similarity(source, target Domain) (float64, error) {
	sim, ok := DomainSimilarity(source, target)
	if !ok {
		return 0, fmt.Errorf("transfer: unknown domain in pair (%s, %s)", source, target)
	}
	return sim, nil
}

// Transfer gates on similarity >= minSimilarity, then copies up to
// maxTransferExperiences experiences from source to target with rewards
// scaled by transferCoefficient, recording a mapping row and accumulating
// metrics for the (source, target) pair.
func (t *TransferManager) Transfer(source, target Domain, minSimilarity float64, maxTransferExperiences int, transferCoefficient float64) (*Mapping, error) {
	similarity, err := t.Similarity(source, target)
	if err != nil {
		return nil, err
	}

	id := mappingID(source, target)

	if similarity < minSimilarity {
		if err := t.accumulateMetrics(id, false, 0); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("transfer: similarity %.3f below minimum %.3f for %s -> %s", similarity, minSimilarity, source, target)
	}

	if transferCoefficient < 0 {
		transferCoefficient = 0
	}
	if transferCoefficient > 1 {
		transferCoefficient = 1
	}

	sourceExps, err := t.db.ExperiencesByTaskType(string(source), maxTransferExperiences)
	if err != nil {
		return nil, fmt.Errorf("transfer: load source experiences: %w", err)
	}

	var positive int
	var transferredIDs []int64
	for _, e := range sourceExps {
		if e.Reward > 0 {
			positive++
		}
		scaled := &memory.Experience{
			AgentID:   e.AgentID,
			TaskID:    e.TaskID,
			TaskType:  string(target),
			State:     e.State,
			Action:    e.Action,
			Reward:    e.Reward * transferCoefficient,
			NextState: e.NextState,
			EpisodeID: e.EpisodeID,
		}
		if err := t.db.LogExperience(scaled); err != nil {
			return nil, fmt.Errorf("transfer: copy experience: %w", err)
		}
		transferredIDs = append(transferredIDs, scaled.ID)
	}

	var successRate float64
	if len(sourceExps) > 0 {
		successRate = float64(positive) / float64(len(sourceExps))
	}

	mapping := &Mapping{
		ID:                     id,
		SourceDomain:           source,
		TargetDomain:           target,
		Similarity:             similarity,
		TransferCoefficient:    transferCoefficient,
		ExperiencesTransferred: len(sourceExps),
		SuccessRate:            successRate,
	}

	if err := t.saveMapping(mapping); err != nil {
		return nil, err
	}
	if err := t.accumulateMetrics(id, len(sourceExps) > 0, float64(len(sourceExps))/float64(maxIntOrOne(maxTransferExperiences))); err != nil {
		return nil, err
	}
	if err := t.appendExperienceIndex(target, transferredIDs); err != nil {
		return nil, err
	}

	return mapping, nil
}

func maxIntOrOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func (t *TransferManager) saveMapping(m *Mapping) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return t.db.StoreEntry(mappingKey(m.ID), string(payload), memory.StoreOptions{
		Partition:   transferPartition,
		Owner:       "learning",
		AccessLevel: memory.AccessSystem,
	})
}

// Mapping retrieves a previously persisted mapping row, if any.
func (t *TransferManager) Mapping(source, target Domain) (*Mapping, bool, error) {
	value, ok, err := t.db.Retrieve(mappingKey(mappingID(source, target)), memory.RetrieveOptions{Partition: transferPartition})
	if err != nil || !ok {
		return nil, ok, err
	}
	var m Mapping
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return nil, false, fmt.Errorf("transfer: decode mapping: %w", err)
	}
	return &m, true, nil
}

func (t *TransferManager) accumulateMetrics(id string, success bool, efficiencySample float64) error {
	var metrics Metrics
	value, ok, err := t.db.Retrieve(metricsKey(id), memory.RetrieveOptions{Partition: transferPartition})
	if err != nil {
		return err
	}
	if ok {
		if err := json.Unmarshal([]byte(value), &metrics); err != nil {
			return fmt.Errorf("transfer: decode metrics: %w", err)
		}
	}

	prevTotal := metrics.TotalTransfers
	metrics.TotalTransfers++
	if success {
		metrics.Successful++
	} else {
		metrics.Failed++
	}

	gain := 0.0
	if success {
		gain = efficiencySample
	}
	metrics.AvgPerformanceGain = (metrics.AvgPerformanceGain*float64(prevTotal) + gain) / float64(metrics.TotalTransfers)
	metrics.TransferEfficiency = float64(metrics.Successful) / float64(metrics.TotalTransfers)

	payload, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	return t.db.StoreEntry(metricsKey(id), string(payload), memory.StoreOptions{
		Partition:   transferPartition,
		Owner:       "learning",
		AccessLevel: memory.AccessSystem,
	})
}

// Metrics retrieves the accumulated metrics for a (source, target) pair.
func (t *TransferManager) Metrics(source, target Domain) (*Metrics, bool, error) {
	value, ok, err := t.db.Retrieve(metricsKey(mappingID(source, target)), memory.RetrieveOptions{Partition: transferPartition})
	if err != nil || !ok {
		return nil, ok, err
	}
	var m Metrics
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return nil, false, fmt.Errorf("transfer: decode metrics: %w", err)
	}
	return &m, true, nil
}

func (t *TransferManager) appendExperienceIndex(target Domain, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	var existing []int64
	value, ok, err := t.db.Retrieve(experiencesKey(target), memory.RetrieveOptions{Partition: transferPartition})
	if err != nil {
		return err
	}
	if ok {
		if err := json.Unmarshal([]byte(value), &existing); err != nil {
			return fmt.Errorf("transfer: decode experience index: %w", err)
		}
	}
	existing = append(existing, ids...)
	payload, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	return t.db.StoreEntry(experiencesKey(target), string(payload), memory.StoreOptions{
		Partition:   transferPartition,
		Owner:       "learning",
		AccessLevel: memory.AccessSystem,
	})
}

// FineTuneResult is the outcome of a bounded fine-tuning run.
type FineTuneResult struct {
	Iterations       int
	Converged        bool
	FinalCoefficient float64
	MeanRewards      []float64
}

const (
	fineTuneConvergenceDelta = 0.01
	coefficientStep          = 0.05
	coefficientMin           = 0.1
	coefficientMax           = 1.0
)

// FineTune blends transferred and target-native experiences over up to
// maxIterations steps with weights (1-i/N, i/N), stopping early once the
// inter-iteration delta drops below 0.01. The transfer coefficient is
// nudged +-0.05 (clamped to [0.1, 1.0]) depending on whether each
// iteration's blended reward improved.
func FineTune(transferred, native []*memory.Experience, startCoefficient float64, maxIterations int) *FineTuneResult {
	result := &FineTuneResult{FinalCoefficient: startCoefficient}
	if maxIterations <= 0 {
		return result
	}

	transferredMean := meanReward(transferred)
	nativeMean := meanReward(native)

	coefficient := startCoefficient
	var prev float64
	for i := 1; i <= maxIterations; i++ {
		wTransferred := 1 - float64(i)/float64(maxIterations)
		wNative := float64(i) / float64(maxIterations)
		blended := wTransferred*transferredMean*coefficient + wNative*nativeMean

		result.Iterations = i
		result.MeanRewards = append(result.MeanRewards, blended)

		if i > 1 {
			delta := blended - prev
			if delta > 0 {
				coefficient = math.Min(coefficientMax, coefficient+coefficientStep)
			} else {
				coefficient = math.Max(coefficientMin, coefficient-coefficientStep)
			}
			if math.Abs(delta) < fineTuneConvergenceDelta {
				result.Converged = true
				result.FinalCoefficient = coefficient
				return result
			}
		}
		prev = blended
	}
	result.FinalCoefficient = coefficient
	return result
}

func meanReward(exps []*memory.Experience) float64 {
	if len(exps) == 0 {
		return 0
	}
	var sum float64
	for _, e := range exps {
		sum += e.Reward
	}
	return sum / float64(len(exps))
}
