// Package model holds the domain types shared across the simulation
// pipeline: the agent network architecture graph, simulation events and the
// structured outputs of the reasoning stages.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Agent is a node in an agent network architecture.
type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Tools        []string `json:"tools"`
	Dependencies []string `json:"dependencies"`
}

// Tool is a capability referenced by agents. Tools are addressed by name.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Connection is a directed edge between two endpoints (agent id or tool name).
type Connection struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// UsesLabel marks connections derived from an agent's declared tool usage.
const UsesLabel = "uses"

// AgentNetworkArchitecture is the aggregate persisted per session and
// returned to clients. It is always replaced wholesale, never patched.
type AgentNetworkArchitecture struct {
	Agents      []Agent      `json:"agents"`
	Tools       []Tool       `json:"tools"`
	Connections []Connection `json:"connections"`
}

// EnsureAgentIDs assigns a fresh UUID to every agent without an id.
func (a *AgentNetworkArchitecture) EnsureAgentIDs() {
	for i := range a.Agents {
		if a.Agents[i].ID == "" {
			a.Agents[i].ID = uuid.NewString()
		}
	}
}

// DeriveToolConnections appends a Connection{agent.id, tool, "uses"} for
// every declared tool usage that has no matching edge yet. Idempotent, so
// it can be re-applied from scratch after an edit.
func (a *AgentNetworkArchitecture) DeriveToolConnections() {
	seen := make(map[[2]string]bool, len(a.Connections))
	for _, c := range a.Connections {
		if c.Label == UsesLabel {
			seen[[2]string{c.Source, c.Target}] = true
		}
	}
	for _, ag := range a.Agents {
		for _, tool := range ag.Tools {
			key := [2]string{ag.ID, tool}
			if seen[key] {
				continue
			}
			seen[key] = true
			a.Connections = append(a.Connections, Connection{
				Source: ag.ID,
				Target: tool,
				Label:  UsesLabel,
			})
		}
	}
}

// Validate checks that every connection endpoint references an existing
// agent id or tool name within the same architecture.
func (a *AgentNetworkArchitecture) Validate() error {
	endpoints := make(map[string]bool, len(a.Agents)+len(a.Tools))
	for _, ag := range a.Agents {
		endpoints[ag.ID] = true
	}
	for _, t := range a.Tools {
		endpoints[t.Name] = true
	}
	for _, c := range a.Connections {
		if !endpoints[c.Source] {
			return fmt.Errorf("connection source %q references no agent or tool", c.Source)
		}
		if !endpoints[c.Target] {
			return fmt.Errorf("connection target %q references no agent or tool", c.Target)
		}
	}
	return nil
}

// Simulation event types emitted by the pipeline orchestrator.
const (
	EventSimulationStarted   = "simulation_started"
	EventScenarioInterpreted = "scenario_interpreted"
	EventArchitecturePlanned = "architecture_planned"
	EventFailureModesFound   = "failure_modes_identified"
	EventNarrativeGenerated  = "observability_narrative_generated"
	EventSimulationCompleted = "simulation_completed"
	EventArchitectureEdited  = "architecture_edited"
	EventStageFailed         = "stage_failed"
)

// SimulationEvent is a single pipeline transition pushed to observers.
// Immutable once constructed; ordering is emission order per simulation.
type SimulationEvent struct {
	SimulationID string         `json:"simulation_id"`
	Timestamp    string         `json:"timestamp"`
	EventType    string         `json:"event_type"`
	Payload      map[string]any `json:"payload"`
}

// NewSimulationEvent stamps an event with the current UTC time in RFC3339.
func NewSimulationEvent(simulationID, eventType string, payload map[string]any) SimulationEvent {
	return SimulationEvent{
		SimulationID: simulationID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		EventType:    eventType,
		Payload:      payload,
	}
}

// FailureMode is one predicted way the architecture can fail.
type FailureMode struct {
	Type             string `json:"type"`
	Description      string `json:"description"`
	Severity         string `json:"severity"`
	TriggerCondition string `json:"trigger_condition"`
}

// ReviewFeedback is the reviewer stage's assessment of an architecture.
type ReviewFeedback struct {
	Score                 float64  `json:"score"`
	ViolatedPrinciples    []string `json:"violated_principles"`
	MissingComponents     []string `json:"missing_components"`
	SuggestedImprovements []string `json:"suggested_improvements"`
	Summary               string   `json:"summary"`
}

// ScenarioInterpretation is opaque to the pipeline beyond being valid JSON;
// it is produced by the interpret stage and handed to the planner verbatim.
type ScenarioInterpretation = json.RawMessage
