package store

import (
	"path/filepath"
	"testing"

	"github.com/dkoutsos/agentsim/internal/config"
	"github.com/dkoutsos/agentsim/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListScenarios(t *testing.T) {
	s := newTestStore(t)

	sc := &Scenario{
		ID:           "sc-1",
		SimulationID: "sim-1",
		ScenarioText: "Build an agent that files my expense reports",
		ScenarioType: "other",
		Architecture: &model.AgentNetworkArchitecture{
			Agents: []model.Agent{{ID: "a1", Name: "Collector", Tools: []string{"EmailAPI"}}},
			Tools:  []model.Tool{{Name: "EmailAPI", Description: "reads inboxes"}},
		},
	}
	if err := s.SaveScenario(sc); err != nil {
		t.Fatalf("save scenario: %v", err)
	}

	scenarios, err := s.ListScenarios()
	if err != nil {
		t.Fatalf("list scenarios: %v", err)
	}
	if len(scenarios) != 1 {
		t.Fatalf("expected 1 scenario, got %d", len(scenarios))
	}

	got := scenarios[0]
	if got.SimulationID != "sim-1" {
		t.Errorf("expected simulation id sim-1, got %q", got.SimulationID)
	}
	if got.ScenarioText != sc.ScenarioText {
		t.Errorf("unexpected scenario text %q", got.ScenarioText)
	}
	if got.Architecture == nil || len(got.Architecture.Agents) != 1 {
		t.Fatalf("expected architecture round-trip, got %+v", got.Architecture)
	}
	if got.Architecture.Agents[0].Name != "Collector" {
		t.Errorf("unexpected agent %+v", got.Architecture.Agents[0])
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestListScenariosEmpty(t *testing.T) {
	s := newTestStore(t)

	scenarios, err := s.ListScenarios()
	if err != nil {
		t.Fatalf("list scenarios: %v", err)
	}
	if len(scenarios) != 0 {
		t.Errorf("expected empty list, got %d", len(scenarios))
	}
}

func TestCountScenarios(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"sc-1", "sc-2"} {
		sc := &Scenario{
			ID:           id,
			SimulationID: "sim-1",
			ScenarioText: "text",
			ScenarioType: "other",
			Architecture: &model.AgentNetworkArchitecture{},
		}
		if err := s.SaveScenario(sc); err != nil {
			t.Fatalf("save scenario: %v", err)
		}
	}

	n, err := s.CountScenarios()
	if err != nil {
		t.Fatalf("count scenarios: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 scenarios, got %d", n)
	}
}
