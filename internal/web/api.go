package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkoutsos/agentsim/internal/invoker"
	"github.com/dkoutsos/agentsim/internal/model"
	"github.com/dkoutsos/agentsim/internal/pipeline"
	"github.com/dkoutsos/agentsim/internal/store"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"message": "Agent Network Scenario Simulator"})
}

// simulateRequest accepts both the frontend's camelCase keys and the
// snake_case equivalents.
type simulateRequest struct {
	ScenarioText      string `json:"scenarioText"`
	ScenarioType      string `json:"scenarioType"`
	ScenarioTextSnake string `json:"scenario_text"`
	ScenarioTypeSnake string `json:"scenario_type"`
}

func (r simulateRequest) text() string {
	if r.ScenarioText != "" {
		return r.ScenarioText
	}
	return r.ScenarioTextSnake
}

func (r simulateRequest) scenarioType() string {
	if r.ScenarioType != "" {
		return r.ScenarioType
	}
	return r.ScenarioTypeSnake
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	simulationID := r.PathValue("session_id")

	var body simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if body.text() == "" {
		jsonError(w, "scenarioText is required", http.StatusBadRequest)
		return
	}

	arch, err := s.orch.Run(r.Context(), simulationID, body.text(), body.scenarioType())
	if err != nil {
		s.pipelineError(w, err)
		return
	}
	jsonResponse(w, arch)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	simulationID := r.PathValue("session_id")

	var body struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if body.Command == "" {
		jsonError(w, "command is required", http.StatusBadRequest)
		return
	}

	arch, err := s.orch.Edit(r.Context(), simulationID, body.Command)
	if err != nil {
		s.pipelineError(w, err)
		return
	}
	jsonResponse(w, arch)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nodes []model.ReviewNode `json:"nodes"`
		Edges []model.ReviewEdge `json:"edges"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(body.Nodes) == 0 {
		jsonError(w, "at least one node is required", http.StatusBadRequest)
		return
	}

	feedback, err := s.orch.Review(r.Context(), body.Nodes, body.Edges)
	if err != nil {
		s.pipelineError(w, err)
		return
	}
	jsonResponse(w, feedback)
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := []store.Scenario{}
	if s.store != nil {
		var err error
		scenarios, err = s.store.ListScenarios()
		if err != nil {
			slog.Error("list scenarios failed", "error", err)
			jsonError(w, "an unexpected error occurred", http.StatusInternalServerError)
			return
		}
		if scenarios == nil {
			scenarios = []store.Scenario{}
		}
	}
	jsonResponse(w, scenarios)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    formatUptime(time.Since(s.startedAt)),
		"sessions":  s.registry.Len(),
		"observers": s.hub.ClientCount(),
	}
	if s.store != nil {
		if n, err := s.store.CountScenarios(); err == nil {
			status["scenarios"] = n
		}
	}
	jsonResponse(w, status)
}

// pipelineError maps pipeline failures to client responses. Validation and
// precondition failures carry detail; everything else stays generic and is
// logged in full.
func (s *Server) pipelineError(w http.ResponseWriter, err error) {
	var invErr *invoker.InvocationError
	switch {
	case errors.Is(err, pipeline.ErrSessionNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidGraph):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrStageTimeout):
		slog.Error("pipeline stage timed out", "error", err)
		jsonError(w, "simulation stage timed out", http.StatusGatewayTimeout)
	case errors.As(err, &invErr):
		slog.Error("pipeline invocation failed", "stage", invErr.Stage, "error", err)
		jsonError(w, "simulation stage failed", http.StatusBadGateway)
	default:
		slog.Error("unexpected pipeline error", "error", err)
		jsonError(w, "an unexpected error occurred", http.StatusInternalServerError)
	}
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
