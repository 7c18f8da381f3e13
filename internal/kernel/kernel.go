// Package kernel wires every kernel component into a single process-owned
// context, grounded on cmd/cliaimonitor/main.go's component-initialization
// order (memory DB -> config -> components -> server) generalized from a
// fleet-dashboard main function into an injectable struct per spec.md §9's
// "Global singletons" design note: no package-level singleton vars, every
// component is owned by a *Kernel with an explicit lifetime and a
// ResetForTest hook.
package kernel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/agentic-qe/kernel/internal/artifacts"
	"github.com/agentic-qe/kernel/internal/config"
	"github.com/agentic-qe/kernel/internal/coordination/blackboard"
	"github.com/agentic-qe/kernel/internal/coordination/consensus"
	"github.com/agentic-qe/kernel/internal/coordination/goap"
	"github.com/agentic-qe/kernel/internal/coordination/ooda"
	"github.com/agentic-qe/kernel/internal/events"
	"github.com/agentic-qe/kernel/internal/learning"
	"github.com/agentic-qe/kernel/internal/memory"
	"github.com/agentic-qe/kernel/internal/nats"
	"github.com/agentic-qe/kernel/internal/notifications"
	"github.com/agentic-qe/kernel/internal/notifications/external"
	"github.com/agentic-qe/kernel/internal/orchestrator"
	"github.com/agentic-qe/kernel/internal/routing"
	"github.com/agentic-qe/kernel/internal/telemetry"
)

// Kernel owns every component's lifetime: the memory DB connection, the
// in-process event bus, the coordination patterns, the orchestrator, the
// router, the learning manager, the telemetry tracer, and (optionally) a
// NATS connection — either dialed or embedded in-process — that mirrors the
// bus's consensus/GOAP/hint/recovery events so other kernel instances can
// observe them, and a Handler replaying peer instances' mirrored events back
// onto the local bus.
type Kernel struct {
	cfg config.Config

	DB        *memory.DB
	Artifacts *artifacts.Store
	Bus       *events.Bus

	Consensus  *consensus.Gate
	GOAP       *goap.Planner
	Blackboard *blackboard.Board
	OODA       *ooda.Manager

	Orchestrator *orchestrator.Orchestrator
	CostTracker  *routing.CostTracker
	Router       *routing.Router
	Learning     *learning.Manager
	Transfer     *learning.TransferManager

	Tracer *telemetry.Tracer

	// Notifications surfaces recovery escalations (spec.md §5) to the
	// operator's desktop/terminal/dashboard, with an optional Slack webhook.
	Notifications *notifications.Manager
	NotifyRouter  *notifications.Router

	kernelID string

	nats          *nats.Client
	embeddedNATS  *nats.EmbeddedServer
	remoteHandler *nats.Handler

	escalations      <-chan events.Event
	escalationTarget string
}

// Open initializes every kernel component from cfg. The memory database is
// created (with pending migrations applied) if it does not already exist.
func Open(cfg config.Config) (*Kernel, error) {
	db, err := memory.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("kernel: open memory db: %w", err)
	}

	store, err := artifacts.New(db, cfg.Storage.ArtifactRoot)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kernel: open artifact store: %w", err)
	}

	bus := events.NewBus(nil)

	k := &Kernel{
		cfg:      cfg,
		kernelID: uuid.New().String(),

		DB:        db,
		Artifacts: store,
		Bus:       bus,

		Consensus:  consensus.New(db, bus),
		GOAP:       goap.New(db),
		Blackboard: blackboard.New(db, bus),
		OODA:       ooda.New(db),
	}

	k.wireRecoveryAndRouting()

	var natsClient *nats.Client
	sinks := []telemetry.Sink{telemetry.NewConsoleSink(nil)}
	if cfg.NATS.Enabled {
		url := cfg.NATS.URL
		if cfg.NATS.Embedded {
			srv, err := nats.NewEmbeddedServer(nats.EmbeddedServerConfig{Port: cfg.NATS.Port})
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("kernel: create embedded nats server: %w", err)
			}
			if err := srv.Start(); err != nil {
				db.Close()
				return nil, fmt.Errorf("kernel: start embedded nats server: %w", err)
			}
			k.embeddedNATS = srv
			url = srv.URL()
		}

		natsClient, err = nats.NewClient(url)
		if err != nil {
			if k.embeddedNATS != nil {
				k.embeddedNATS.Shutdown()
			}
			db.Close()
			return nil, fmt.Errorf("kernel: connect nats: %w", err)
		}
		sinks = append(sinks, telemetry.NewNatsSink(natsClient, "telemetry.spans"))

		bus.SetNATSMirror(&natsMirror{client: natsClient, kernelID: k.kernelID})

		handler := nats.NewHandler(natsClient, nats.HandlerCallbacks{
			OnMirroredEvent: func(evt nats.MirroredEvent) error {
				if evt.KernelID == k.kernelID {
					return nil
				}
				remote := evt.Event
				bus.PublishLocal(&remote)
				return nil
			},
		})
		if err := handler.Start(); err != nil {
			return nil, fmt.Errorf("kernel: start nats event-mirror handler: %w", err)
		}
		k.remoteHandler = handler
	}
	k.nats = natsClient
	k.Tracer = telemetry.New(sinks...)

	k.Notifications = notifications.NewDefaultManager(fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
	k.NotifyRouter = notifications.NewRouter(nil)
	if cfg.Notifications.SlackWebhookURL != "" {
		k.NotifyRouter.AddChannel(external.NewSlackNotifier(external.SlackConfig{
			WebhookURL: cfg.Notifications.SlackWebhookURL,
		}))
	}
	k.escalationTarget = "kernel-escalation-notifier"
	k.escalations = bus.Subscribe(k.escalationTarget, []events.EventType{
		events.EventEscalation, events.EventRecoveryFailed,
	})
	go k.watchEscalations()

	return k, nil
}

// watchEscalations forwards bus escalation/recovery-failure events to the
// local notification manager and, if configured, the Slack-backed router.
func (k *Kernel) watchEscalations() {
	for evt := range k.escalations {
		msg := fmt.Sprintf("%s on %s: %v", evt.Type, evt.Source, evt.Payload)
		if k.Notifications.IsEnabled() {
			k.Notifications.NotifySupervisorNeedsInput(msg)
		}
		k.NotifyRouter.Route(evt)
	}
}

// wireRecoveryAndRouting (re)creates the orchestrator, cost tracker, router,
// and learning manager — the components spec.md §9 calls out as carrying
// process-wide state (recovery orchestrator, circuit-breaker manager, cost
// tracker) — so both Open and ResetForTest share one construction path.
func (k *Kernel) wireRecoveryAndRouting() {
	k.Orchestrator = orchestrator.New(k.Bus)
	k.CostTracker = routing.NewCostTracker(k.DB, routing.ModelID(k.cfg.Routing.BaselineModel))
	k.Router = routing.New(k.Bus, k.CostTracker, k.cfg.Routing.CostThreshold)
	k.Learning = learning.New(k.DB)
	k.Transfer = k.Learning.Transfer()
}

// ResetForTest discards the orchestrator's breaker/recovery state and the
// cost tracker's accumulated spend, without closing the underlying database
// or artifact store, so a test suite can reuse one Kernel across cases that
// need a clean recovery/cost slate (spec.md §9).
func (k *Kernel) ResetForTest() {
	k.wireRecoveryAndRouting()
}

// Close releases the memory database connection and, if connected, the
// NATS client.
func (k *Kernel) Close() error {
	if k.escalations != nil {
		k.Bus.Unsubscribe(k.escalationTarget, k.escalations)
	}
	if k.remoteHandler != nil {
		k.remoteHandler.Stop()
	}
	if k.nats != nil {
		k.nats.Close()
	}
	if k.embeddedNATS != nil {
		k.embeddedNATS.Shutdown()
	}
	return k.DB.Close()
}
