package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkoutsos/agentsim/internal/config"
	"github.com/dkoutsos/agentsim/internal/invoker"
	"github.com/dkoutsos/agentsim/internal/model"
	"github.com/dkoutsos/agentsim/internal/pipeline"
	"github.com/dkoutsos/agentsim/internal/registry"
)

const (
	testInterpretation = `{"goal": "triage support tickets", "actors": ["customer"]}`
	testPlan           = `{
		"agents": [
			{"id": "", "name": "Classifier", "role": "labels tickets", "tools": ["TicketAPI"], "dependencies": []}
		],
		"tools": [{"name": "TicketAPI", "description": "reads the queue"}],
		"connections": []
	}`
	testFailures  = `[{"type": "overload", "description": "queue backlog", "severity": "medium", "trigger_condition": "ticket spike"}]`
	testNarrative = "One agent handles the queue with a single medium risk."
)

type noopSink struct{}

func (noopSink) PublishJSON(topic string, v any) error { return nil }

// newAPIServer builds a Server whose orchestrator replays the given
// provider responses, with no store and no bus attached.
func newAPIServer(t *testing.T, responses ...string) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	stages := invoker.NewStages(invoker.NewScriptedProvider(responses...))
	orch := pipeline.NewOrchestrator(stages, reg, noopSink{}, nil, time.Minute)
	return NewServer(nil, nil, orch, reg, config.WebConfig{}, "test"), reg
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	s.routes().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestSimulateReturnsArchitecture(t *testing.T) {
	s, reg := newAPIServer(t, testInterpretation, testPlan, testFailures, testNarrative)

	rr := doRequest(t, s, "POST", "/simulate/sim-1", `{"scenarioText": "support desk", "scenarioType": "ops"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}

	var arch model.AgentNetworkArchitecture
	if err := json.Unmarshal(rr.Body.Bytes(), &arch); err != nil {
		t.Fatalf("decode architecture: %v", err)
	}
	if len(arch.Agents) != 1 || arch.Agents[0].Name != "Classifier" {
		t.Fatalf("unexpected agents: %+v", arch.Agents)
	}
	if arch.Agents[0].ID == "" {
		t.Fatal("agent ID was not assigned")
	}
	if reg.Len() != 1 {
		t.Fatalf("registry holds %d sessions, want 1", reg.Len())
	}
}

func TestSimulateAcceptsSnakeCase(t *testing.T) {
	s, _ := newAPIServer(t, testInterpretation, testPlan, testFailures, testNarrative)

	rr := doRequest(t, s, "POST", "/simulate/sim-1", `{"scenario_text": "support desk"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
}

func TestSimulateRequiresScenarioText(t *testing.T) {
	s, _ := newAPIServer(t)

	rr := doRequest(t, s, "POST", "/simulate/sim-1", `{"scenarioType": "ops"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "scenarioText is required" {
		t.Fatalf("error = %q", msg)
	}
}

func TestSimulateStageFailureIsOpaque(t *testing.T) {
	s, _ := newAPIServer(t, testInterpretation, "not json at all")

	rr := doRequest(t, s, "POST", "/simulate/sim-1", `{"scenarioText": "support desk"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "simulation stage failed" {
		t.Fatalf("error leaked detail: %q", msg)
	}
}

func TestEditUnknownSession(t *testing.T) {
	s, _ := newAPIServer(t)

	rr := doRequest(t, s, "POST", "/simulations/missing/edit", `{"command": "add a retry agent"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if msg := decodeError(t, rr); !strings.Contains(msg, "missing") {
		t.Fatalf("error = %q, want the session id mentioned", msg)
	}
}

func TestEditRequiresCommand(t *testing.T) {
	s, _ := newAPIServer(t)

	rr := doRequest(t, s, "POST", "/simulations/sim-1/edit", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestReviewScoresGraph(t *testing.T) {
	review := `{
		"score": 72,
		"violated_principles": ["single point of failure"],
		"missing_components": [],
		"suggested_improvements": ["add a fallback agent"],
		"summary": "workable but fragile"
	}`
	s, reg := newAPIServer(t, review)

	body := `{
		"nodes": [
			{"id": "a1", "type": "agent", "label": "Classifier"},
			{"id": "t1", "type": "tool", "label": "TicketAPI"}
		],
		"edges": [{"source": "a1", "target": "t1", "label": "uses"}]
	}`
	rr := doRequest(t, s, "POST", "/simulations/sim-1/review", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}

	var fb model.ReviewFeedback
	if err := json.Unmarshal(rr.Body.Bytes(), &fb); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if fb.Score != 72 || fb.Summary != "workable but fragile" {
		t.Fatalf("unexpected feedback: %+v", fb)
	}
	if reg.Len() != 0 {
		t.Fatal("review must not create a session")
	}
}

func TestReviewRejectsInvalidGraph(t *testing.T) {
	s, _ := newAPIServer(t)

	body := `{"nodes": [{"id": "x1", "type": "database", "label": "PG"}]}`
	rr := doRequest(t, s, "POST", "/simulations/sim-1/review", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if msg := decodeError(t, rr); !strings.Contains(msg, "database") {
		t.Fatalf("error = %q, want the bad node type named", msg)
	}
}

func TestScenariosWithoutStore(t *testing.T) {
	s, _ := newAPIServer(t)

	rr := doRequest(t, s, "GET", "/scenarios", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newAPIServer(t)

	rr := doRequest(t, s, "GET", "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var status map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["status"] != "ok" || status["version"] != "test" {
		t.Fatalf("unexpected status payload: %v", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newAPIServer(t)

	req := httptest.NewRequest("OPTIONS", "/simulate/sim-1", nil)
	rr := httptest.NewRecorder()
	s.withMiddleware(s.routes()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}
