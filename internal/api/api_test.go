package api_test

import (
	"net/http/httptest"
	"testing"

	"github.com/creatoros/dmflow/internal/models"
	"github.com/creatoros/dmflow/internal/testutil"
)

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "GET", "/healthz", nil))

	testutil.AssertHTTPStatus(t, 200, rr.Code, "health check")
	body := testutil.DecodeJSONResponse(t, rr)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestProcessMessageEndpoint(t *testing.T) {
	srv, st, _ := testutil.NewTestServer(t)

	req := testutil.CreateHTTPRequest(t, "POST", "/api/v1/messages", map[string]string{
		"agent_id":     "agent-1",
		"follower_id":  "follower-1",
		"text":         "Hola, me interesa el curso",
		"display_name": "Ana",
	})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, 200, rr.Code, "process message")
	var decision models.ResponseDecision
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &decision)
	if decision.Intent != models.IntentSoftInterest {
		t.Errorf("expected soft_interest, got %s", decision.Intent)
	}
	if decision.ReplyText == "" {
		t.Error("expected a reply")
	}

	if _, err := st.GetFollower(req.Context(), "agent-1", "follower-1"); err != nil {
		t.Errorf("follower record not persisted: %v", err)
	}
}

func TestProcessMessageValidation(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)

	req := testutil.CreateHTTPRequest(t, "POST", "/api/v1/messages", map[string]string{
		"agent_id": "agent-1",
	})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, 400, rr.Code, "missing fields")
}

func TestProcessMessageUnknownAgent(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)

	req := testutil.CreateHTTPRequest(t, "POST", "/api/v1/messages", map[string]string{
		"agent_id":    "ghost",
		"follower_id": "follower-1",
		"text":        "hola",
	})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, 404, rr.Code, "unknown agent")
}

func TestAgentLifecycle(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)

	req := testutil.CreateHTTPRequest(t, "POST", "/api/v1/agents/", models.AgentConfig{
		AgentID:     "agent-2",
		CreatorName: "Marco",
		Language:    "en",
	})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, 201, rr.Code, "register agent")

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "GET", "/api/v1/agents/agent-2", nil))
	testutil.AssertHTTPStatus(t, 200, rr.Code, "get agent")
	var cfg models.AgentConfig
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &cfg)
	if cfg.CreatorName != "Marco" || cfg.Language != "en" {
		t.Errorf("unexpected config %+v", cfg)
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "POST", "/api/v1/agents/agent-2/pause", nil))
	testutil.AssertHTTPStatus(t, 200, rr.Code, "pause agent")

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "GET", "/api/v1/agents/agent-2", nil))
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &cfg)
	if !cfg.Paused {
		t.Error("agent should be paused")
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "POST", "/api/v1/agents/agent-2/resume", nil))
	testutil.AssertHTTPStatus(t, 200, rr.Code, "resume agent")
}

func TestRegisterAgentRejectsInvalidConfig(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)

	req := testutil.CreateHTTPRequest(t, "POST", "/api/v1/agents/", map[string]string{
		"creator_name": "nobody",
	})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, 400, rr.Code, "missing agent_id")
}

func TestListFollowers(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)

	// Empty list before any message.
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "GET", "/api/v1/agents/agent-1/followers", nil))
	testutil.AssertHTTPStatus(t, 200, rr.Code, "list followers empty")
	if body := rr.Body.String(); body != "[]" {
		t.Errorf("expected empty JSON array, got %q", body)
	}

	req := testutil.CreateHTTPRequest(t, "POST", "/api/v1/messages", map[string]string{
		"agent_id":    "agent-1",
		"follower_id": "follower-1",
		"text":        "hola",
	})
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, 200, rr.Code, "seed message")

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "GET", "/api/v1/agents/agent-1/followers", nil))
	var followers []models.FollowerRecord
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &followers)
	if len(followers) != 1 {
		t.Fatalf("expected 1 follower, got %d", len(followers))
	}
	if followers[0].FollowerID != "follower-1" {
		t.Errorf("unexpected follower %+v", followers[0])
	}
}

func TestGetFollowerNotFound(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "GET", "/api/v1/agents/agent-1/followers/ghost", nil))
	testutil.AssertHTTPStatus(t, 404, rr.Code, "missing follower")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := testutil.NewTestServer(t)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, "GET", "/metrics", nil))
	testutil.AssertHTTPStatus(t, 200, rr.Code, "metrics scrape")
	if rr.Body.Len() == 0 {
		t.Error("expected metrics exposition output")
	}
}
