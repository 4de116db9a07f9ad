// Package pipeline sequences the reasoning stages for a simulation session,
// persists intermediate architectures in the session registry and publishes
// a timestamped event after every stage. Stages run strictly in order; a
// stage failure halts the machine in place and propagates to the caller.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkoutsos/agentsim/internal/invoker"
	"github.com/dkoutsos/agentsim/internal/model"
	"github.com/dkoutsos/agentsim/internal/natsbus"
	"github.com/dkoutsos/agentsim/internal/registry"
	"github.com/dkoutsos/agentsim/internal/store"
)

// ErrSessionNotFound marks an edit request for a session that has no stored
// architecture. Callers map it to a client-addressable error.
var ErrSessionNotFound = errors.New("no architecture stored for session")

// ErrStageTimeout marks a stage that exceeded the configured per-stage
// deadline, distinct from an upstream invocation failure.
var ErrStageTimeout = errors.New("stage timed out")

// StageRunner is the reasoning capability the orchestrator sequences.
// Satisfied by invoker.Stages; tests substitute scripted implementations.
type StageRunner interface {
	Interpret(ctx context.Context, scenarioText, scenarioType string) (model.ScenarioInterpretation, error)
	Plan(ctx context.Context, interpretation model.ScenarioInterpretation) (*model.AgentNetworkArchitecture, error)
	SimulateFailures(ctx context.Context, arch *model.AgentNetworkArchitecture, scenarioText string) ([]model.FailureMode, error)
	Narrate(ctx context.Context, events []model.SimulationEvent) (string, error)
	EditArchitecture(ctx context.Context, arch *model.AgentNetworkArchitecture, command string) (*model.AgentNetworkArchitecture, error)
	ReviewArchitecture(ctx context.Context, arch *model.AgentNetworkArchitecture) (*model.ReviewFeedback, error)
}

// EventSink receives every pipeline event, keyed by topic. Satisfied by
// *natsbus.Client; the hub (or a queue) subscribes on the other side.
type EventSink interface {
	PublishJSON(topic string, v any) error
}

type Orchestrator struct {
	stages       StageRunner
	registry     *registry.Registry
	sink         EventSink
	store        *store.Store // optional; completed runs are archived best-effort
	stageTimeout time.Duration
}

func NewOrchestrator(stages StageRunner, reg *registry.Registry, sink EventSink, st *store.Store, stageTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		stages:       stages,
		registry:     reg,
		sink:         sink,
		store:        st,
		stageTimeout: stageTimeout,
	}
}

// Run executes the primary pipeline for one session and returns the final
// architecture. Events are published in stage order before the next stage
// begins; observers see them while the caller is still blocked here.
func (o *Orchestrator) Run(ctx context.Context, simulationID, scenarioText, scenarioType string) (*model.AgentNetworkArchitecture, error) {
	slog.Info("simulation started", "simulation", simulationID, "type", scenarioType)
	o.emit(simulationID, model.EventSimulationStarted, map[string]any{
		"message": fmt.Sprintf("Simulation %s started for scenario: %s", simulationID, scenarioText),
	})

	// Events fed to the narrator later, in emission order.
	var prior []model.SimulationEvent

	interpretation, err := runStage(o, ctx, simulationID, invoker.StageInterpret,
		func(sctx context.Context) (model.ScenarioInterpretation, error) {
			return o.stages.Interpret(sctx, scenarioText, scenarioType)
		})
	if err != nil {
		return nil, err
	}
	prior = append(prior, o.emit(simulationID, model.EventScenarioInterpreted, map[string]any{
		"interpreted_scenario": json.RawMessage(interpretation),
	}))

	arch, err := runStage(o, ctx, simulationID, invoker.StagePlan,
		func(sctx context.Context) (*model.AgentNetworkArchitecture, error) {
			return o.stages.Plan(sctx, interpretation)
		})
	if err != nil {
		return nil, err
	}
	arch.EnsureAgentIDs()
	arch.DeriveToolConnections()
	o.registry.Put(simulationID, arch)
	prior = append(prior, o.emit(simulationID, model.EventArchitecturePlanned, map[string]any{
		"agent_network_architecture": arch,
	}))

	failureModes, err := runStage(o, ctx, simulationID, invoker.StageFailures,
		func(sctx context.Context) ([]model.FailureMode, error) {
			return o.stages.SimulateFailures(sctx, arch, scenarioText)
		})
	if err != nil {
		return nil, err
	}
	prior = append(prior, o.emit(simulationID, model.EventFailureModesFound, map[string]any{
		"failure_modes": failureModes,
	}))

	narrative, err := runStage(o, ctx, simulationID, invoker.StageNarrate,
		func(sctx context.Context) (string, error) {
			return o.stages.Narrate(sctx, prior)
		})
	if err != nil {
		return nil, err
	}
	o.emit(simulationID, model.EventNarrativeGenerated, map[string]any{
		"narrative": narrative,
	})

	o.emit(simulationID, model.EventSimulationCompleted, map[string]any{
		"message": fmt.Sprintf("Simulation %s completed.", simulationID),
	})
	slog.Info("simulation completed", "simulation", simulationID, "agents", len(arch.Agents))

	o.archive(simulationID, scenarioText, scenarioType, arch)

	return arch, nil
}

// Edit is a one-shot mutation outside the primary state machine. The
// derived tool-usage connections are recomputed against the post-edit
// agent/tool sets rather than trusting the editor's own output.
func (o *Orchestrator) Edit(ctx context.Context, simulationID, command string) (*model.AgentNetworkArchitecture, error) {
	existing, ok := o.registry.Get(simulationID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", simulationID, ErrSessionNotFound)
	}

	edited, err := runStage(o, ctx, simulationID, invoker.StageEdit,
		func(sctx context.Context) (*model.AgentNetworkArchitecture, error) {
			return o.stages.EditArchitecture(sctx, existing, command)
		})
	if err != nil {
		return nil, err
	}

	edited.EnsureAgentIDs()
	edited.DeriveToolConnections()
	o.registry.Put(simulationID, edited)
	o.emit(simulationID, model.EventArchitectureEdited, map[string]any{
		"agent_network_architecture": edited,
	})
	slog.Info("architecture edited", "simulation", simulationID, "command", command)

	return edited, nil
}

// Review is stateless: it rebuilds an architecture from externally supplied
// nodes and edges, invokes the reviewer and returns the feedback without
// touching the session registry or broadcasting.
func (o *Orchestrator) Review(ctx context.Context, nodes []model.ReviewNode, edges []model.ReviewEdge) (*model.ReviewFeedback, error) {
	arch, err := model.BuildArchitecture(nodes, edges)
	if err != nil {
		return nil, err
	}

	sctx, cancel := o.stageContext(ctx)
	defer cancel()
	feedback, err := o.stages.ReviewArchitecture(sctx, arch)
	if err != nil {
		return nil, o.classify(sctx, ctx, invoker.StageReview, err)
	}
	return feedback, nil
}

// runStage wraps one stage call with the per-stage timeout and, on failure,
// emits a stage_failed event before propagating the error. Review does not
// use it since it never broadcasts.
func runStage[T any](o *Orchestrator, ctx context.Context, simulationID, stage string, fn func(context.Context) (T, error)) (T, error) {
	sctx, cancel := o.stageContext(ctx)
	out, err := fn(sctx)
	cancel()
	if err != nil {
		err = o.classify(sctx, ctx, stage, err)
		o.emit(simulationID, model.EventStageFailed, map[string]any{
			"stage": stage,
			"error": err.Error(),
		})
		slog.Error("stage failed", "simulation", simulationID, "stage", stage, "error", err)
		return out, err
	}
	return out, nil
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.stageTimeout)
}

// classify distinguishes a stage deadline from an upstream invocation
// failure. A deadline on the stage context that the parent did not cause is
// reported as a stage timeout.
func (o *Orchestrator) classify(sctx, parent context.Context, stage string, err error) error {
	if errors.Is(sctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("stage %s: %w", stage, ErrStageTimeout)
	}
	return err
}

// emit stamps, publishes and returns one simulation event. Publishing is
// best-effort: a sink failure is logged and never reaches the pipeline.
func (o *Orchestrator) emit(simulationID, eventType string, payload map[string]any) model.SimulationEvent {
	ev := model.NewSimulationEvent(simulationID, eventType, payload)
	if err := o.sink.PublishJSON(natsbus.TopicSimulationEvents(simulationID), ev); err != nil {
		slog.Warn("event publish failed", "simulation", simulationID, "event", eventType, "error", err)
	}
	return ev
}

// archive persists a completed run for the scenario listing. Best-effort.
func (o *Orchestrator) archive(simulationID, scenarioText, scenarioType string, arch *model.AgentNetworkArchitecture) {
	if o.store == nil {
		return
	}
	rec := &store.Scenario{
		ID:           uuid.NewString(),
		SimulationID: simulationID,
		ScenarioText: scenarioText,
		ScenarioType: scenarioType,
		Architecture: arch,
	}
	if err := o.store.SaveScenario(rec); err != nil {
		slog.Warn("scenario archive failed", "simulation", simulationID, "error", err)
	}
}
