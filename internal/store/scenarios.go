package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkoutsos/agentsim/internal/model"
)

// Scenario is one archived simulation run with its final architecture.
type Scenario struct {
	ID           string                          `json:"id"`
	SimulationID string                          `json:"simulation_id"`
	ScenarioText string                          `json:"scenario_text"`
	ScenarioType string                          `json:"scenario_type"`
	Architecture *model.AgentNetworkArchitecture `json:"architecture"`
	CreatedAt    time.Time                       `json:"created_at"`
}

func (s *Store) SaveScenario(sc *Scenario) error {
	arch, err := json.Marshal(sc.Architecture)
	if err != nil {
		return fmt.Errorf("marshal architecture: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO scenarios (id, simulation_id, scenario_text, scenario_type, architecture)
		VALUES (?, ?, ?, ?, ?)`,
		sc.ID, sc.SimulationID, sc.ScenarioText, sc.ScenarioType, string(arch))
	if err != nil {
		return fmt.Errorf("save scenario: %w", err)
	}
	return nil
}

func (s *Store) ListScenarios() ([]Scenario, error) {
	rows, err := s.db.Query(`
		SELECT id, simulation_id, scenario_text, scenario_type, architecture, created_at
		FROM scenarios ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []Scenario
	for rows.Next() {
		var sc Scenario
		var arch string
		if err := rows.Scan(&sc.ID, &sc.SimulationID, &sc.ScenarioText, &sc.ScenarioType, &arch, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		if err := json.Unmarshal([]byte(arch), &sc.Architecture); err != nil {
			return nil, fmt.Errorf("unmarshal architecture: %w", err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

// CountScenarios reports the number of archived runs, for the status page.
func (s *Store) CountScenarios() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scenarios`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scenarios: %w", err)
	}
	return n, nil
}
