package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dkoutsos/agentsim/internal/model"
)

// Stage names, used in invocation errors and failure events.
const (
	StageInterpret = "interpret"
	StagePlan      = "plan"
	StageFailures  = "simulate_failures"
	StageNarrate   = "narrate"
	StageEdit      = "edit_architecture"
	StageReview    = "review_architecture"
)

const architectureShape = `Respond with a single JSON object and nothing else, shaped as:
{
  "agents": [{"id": "", "name": "", "role": "", "tools": [""], "dependencies": [""]}],
  "tools": [{"name": "", "description": ""}],
  "connections": [{"source": "", "target": "", "label": ""}]
}
Connection endpoints must be agent ids or tool names from the same object.`

const interpretInstructions = `You are a scenario interpreter. Interpret the user-provided scenario and break it down into a structured representation of the work to be automated: the goal, the actors involved, the data that flows between them and any constraints.
Respond with a single JSON object and nothing else.`

const planInstructions = `You are an architecture planner. Take a structured scenario interpretation and plan the agent network architecture: define the agents, their roles, the tools they will use, and how they connect.
` + architectureShape

const failureInstructions = `You are a failure analyst. Analyze the given agent network architecture and scenario, then identify potential failure modes, their severity, and trigger conditions.
Respond with a single JSON array and nothing else, shaped as:
[{"type": "", "description": "", "severity": "", "trigger_condition": ""}]`

const narrateInstructions = `You are an observability narrator. Generate a concise human-readable narrative of the simulation's progress and key findings, based on the stream of simulation events you are given. Respond with plain prose, no markup.`

const editInstructions = `You are an architecture editor. Take the existing agent network architecture and the natural language command, and modify the architecture accordingly: add or remove agents, tools and connections as requested. Ensure the modified architecture is valid and every tool is connected to at least one agent.
` + architectureShape

const reviewInstructions = `You are an architecture reviewer. Review the provided agent network architecture and provide feedback on its design: a 0-100 quality score, violated design principles, missing components, actionable improvement suggestions and a concise summary.
Respond with a single JSON object and nothing else, shaped as:
{"score": 0, "violated_principles": [""], "missing_components": [""], "suggested_improvements": [""], "summary": ""}`

// Stages bundles the six reasoning adapters over one provider. Each method
// is a pure function of its inputs; no state is shared between calls.
type Stages struct {
	provider Provider
}

func NewStages(p Provider) *Stages {
	return &Stages{provider: p}
}

// Interpret turns a raw scenario into a structured interpretation. The
// result stays opaque to the pipeline beyond being valid JSON.
func (s *Stages) Interpret(ctx context.Context, scenarioText, scenarioType string) (model.ScenarioInterpretation, error) {
	input := fmt.Sprintf("Scenario category: %s\n\nScenario: %s", scenarioType, scenarioText)
	return invoke[json.RawMessage](ctx, s.provider, StageInterpret, interpretInstructions, input)
}

// Plan produces an agent network architecture from an interpretation.
func (s *Stages) Plan(ctx context.Context, interpretation model.ScenarioInterpretation) (*model.AgentNetworkArchitecture, error) {
	return invoke[*model.AgentNetworkArchitecture](ctx, s.provider, StagePlan, planInstructions, string(interpretation))
}

// SimulateFailures predicts failure modes for an architecture.
func (s *Stages) SimulateFailures(ctx context.Context, arch *model.AgentNetworkArchitecture, scenarioText string) ([]model.FailureMode, error) {
	input, err := stageInput(map[string]any{
		"agent_network_architecture": arch,
		"scenario_text":              scenarioText,
	})
	if err != nil {
		return nil, &InvocationError{Stage: StageFailures, Err: err}
	}
	return invoke[[]model.FailureMode](ctx, s.provider, StageFailures, failureInstructions, input)
}

// Narrate renders prior simulation events as free text. No JSON contract.
func (s *Stages) Narrate(ctx context.Context, events []model.SimulationEvent) (string, error) {
	input, err := stageInput(map[string]any{"simulation_events": events})
	if err != nil {
		return "", &InvocationError{Stage: StageNarrate, Err: err}
	}
	raw, err := s.provider.Complete(ctx, narrateInstructions, input)
	if err != nil {
		return "", &InvocationError{Stage: StageNarrate, Err: err}
	}
	narrative := strings.TrimSpace(raw)
	if narrative == "" {
		return "", &InvocationError{Stage: StageNarrate, Err: fmt.Errorf("empty narrative")}
	}
	return narrative, nil
}

// EditArchitecture applies a natural language command to an architecture.
func (s *Stages) EditArchitecture(ctx context.Context, arch *model.AgentNetworkArchitecture, command string) (*model.AgentNetworkArchitecture, error) {
	input, err := stageInput(map[string]any{
		"agent_network_architecture": arch,
		"command":                    command,
	})
	if err != nil {
		return nil, &InvocationError{Stage: StageEdit, Err: err}
	}
	return invoke[*model.AgentNetworkArchitecture](ctx, s.provider, StageEdit, editInstructions, input)
}

// ReviewArchitecture scores an architecture and suggests improvements.
func (s *Stages) ReviewArchitecture(ctx context.Context, arch *model.AgentNetworkArchitecture) (*model.ReviewFeedback, error) {
	input, err := stageInput(map[string]any{"agent_network_architecture": arch})
	if err != nil {
		return nil, &InvocationError{Stage: StageReview, Err: err}
	}
	return invoke[*model.ReviewFeedback](ctx, s.provider, StageReview, reviewInstructions, input)
}

func stageInput(v map[string]any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal stage input: %w", err)
	}
	return string(data), nil
}
