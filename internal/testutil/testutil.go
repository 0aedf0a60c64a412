// Package testutil provides common test utilities and helpers for dmflow tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/openai/openai-go"

	"github.com/creatoros/dmflow/internal/agents"
	"github.com/creatoros/dmflow/internal/api"
	"github.com/creatoros/dmflow/internal/cache"
	"github.com/creatoros/dmflow/internal/catalog"
	"github.com/creatoros/dmflow/internal/engine"
	"github.com/creatoros/dmflow/internal/models"
	"github.com/creatoros/dmflow/internal/ratelimit"
	"github.com/creatoros/dmflow/internal/store"
)

// ScriptedGenAI is a deterministic genai.ClientInterface for tests.
// It returns Reply (or Err) and counts calls.
type ScriptedGenAI struct {
	mu    sync.Mutex
	Reply string
	Err   error
	calls int
}

func (s *ScriptedGenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.GenerateWithMessages(ctx, nil)
}

func (s *ScriptedGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

func (s *ScriptedGenAI) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return text, nil
}

// Calls returns the number of generation calls made so far.
func (s *ScriptedGenAI) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// NewTestServer creates an API server with in-memory dependencies and one
// registered agent ("agent-1"). The returned store and genai mock allow
// assertions on state and call counts.
func NewTestServer(t *testing.T) (*api.Server, store.FollowerStore, *ScriptedGenAI) {
	t.Helper()

	gen := &ScriptedGenAI{Reply: "Claro, te cuento."}
	reg := agents.NewRegistry()
	if err := reg.Register(models.AgentConfig{AgentID: "agent-1", CreatorName: "Laura"}); err != nil {
		t.Fatalf("failed to register test agent: %v", err)
	}
	st := store.NewInMemoryStore()

	eng, err := engine.New(engine.Deps{
		Store:   st,
		Agents:  reg,
		GenAI:   gen,
		Cache:   cache.NewMemoryCache(0),
		Limiter: ratelimit.NewFixedWindowLimiter(0, 1000),
		Catalog: catalog.New([]catalog.Product{{
			ID:          "curso-fitness",
			Name:        "Curso Fitness",
			Keywords:    []string{"curso", "fitness"},
			Price:       "99 USD",
			PaymentLink: "https://pay.example.com/curso",
		}}, nil),
	})
	if err != nil {
		t.Fatalf("failed to build test engine: %v", err)
	}

	srv, err := api.NewServer(eng, reg, st)
	if err != nil {
		t.Fatalf("failed to build test server: %v", err)
	}
	return srv, st, gen
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeJSONResponse decodes the recorder body into a generic map.
func DecodeJSONResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// MustMarshalJSON marshals an object to JSON and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
