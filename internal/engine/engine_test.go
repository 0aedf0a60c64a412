package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go"

	"github.com/creatoros/dmflow/internal/agents"
	"github.com/creatoros/dmflow/internal/cache"
	"github.com/creatoros/dmflow/internal/catalog"
	"github.com/creatoros/dmflow/internal/models"
	"github.com/creatoros/dmflow/internal/ratelimit"
	"github.com/creatoros/dmflow/internal/store"
)

// scriptedGenAI returns a fixed reply and counts calls; it can be told to fail.
type scriptedGenAI struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (s *scriptedGenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.GenerateWithMessages(ctx, nil)
}

func (s *scriptedGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *scriptedGenAI) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return text, nil
}

func (s *scriptedGenAI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Product{{
		ID:          "curso-fitness",
		Name:        "Curso Fitness",
		Keywords:    []string{"curso", "fitness"},
		Price:       "99 USD",
		PaymentLink: "https://pay.example.com/curso",
		Facts:       []string{"12 semanas de contenido"},
	}}, nil)
}

func newTestEngine(t *testing.T, gen *scriptedGenAI) (*Engine, store.FollowerStore) {
	t.Helper()
	reg := agents.NewRegistry()
	if err := reg.Register(models.AgentConfig{AgentID: "agent-1", CreatorName: "Laura"}); err != nil {
		t.Fatalf("register agent: %v", err)
	}
	st := store.NewInMemoryStore()
	e, err := New(Deps{
		Store:   st,
		Agents:  reg,
		GenAI:   gen,
		Cache:   cache.NewMemoryCache(0),
		Limiter: ratelimit.NewFixedWindowLimiter(0, 1000),
		Catalog: testCatalog(),
	})
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}
	return e, st
}

func TestProcessMessageSoftInterestScenario(t *testing.T) {
	gen := &scriptedGenAI{reply: "Claro, el curso es de 12 semanas. ¿Quieres saber más?"}
	e, st := newTestEngine(t, gen)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "Hola, me interesa el curso", "Ana")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if decision.Intent != models.IntentSoftInterest {
		t.Errorf("expected soft_interest, got %s", decision.Intent)
	}
	if decision.ReplyText == "" {
		t.Error("expected a non-empty reply")
	}

	record, err := st.GetFollower(context.Background(), "agent-1", "follower-1")
	if err != nil {
		t.Fatalf("record missing after processing: %v", err)
	}
	if record.PurchaseIntentScore != 0.50 {
		t.Errorf("expected score 0.50, got %f", record.PurchaseIntentScore)
	}
	if record.PipelineStatus != models.StatusActive {
		t.Errorf("expected active, got %s", record.PipelineStatus)
	}
	if len(record.Turns) != 2 {
		t.Errorf("expected user+assistant turns stored, got %d", len(record.Turns))
	}
	if record.RotationIndex != 1 {
		t.Errorf("rotation index should advance once per message, got %d", record.RotationIndex)
	}
}

func TestProcessMessageStrongInterestScenario(t *testing.T) {
	gen := &scriptedGenAI{reply: "¡Genial! Aquí tienes: {payment_link}"}
	e, st := newTestEngine(t, gen)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "quiero comprarlo", "Ana")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if decision.Intent != models.IntentStrongInterest || decision.Confidence != 0.90 {
		t.Errorf("expected strong_interest 0.90, got %s %f", decision.Intent, decision.Confidence)
	}

	record, _ := st.GetFollower(context.Background(), "agent-1", "follower-1")
	if record.PurchaseIntentScore < 0.75 {
		t.Errorf("expected score >= 0.75, got %f", record.PurchaseIntentScore)
	}
	if record.PipelineStatus != models.StatusHot {
		t.Errorf("expected hot, got %s", record.PipelineStatus)
	}
}

func TestGenerationFailureFallsBack(t *testing.T) {
	gen := &scriptedGenAI{err: errors.New("deadline exceeded")}
	e, _ := newTestEngine(t, gen)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "cuanto cuesta el curso?", "Ana")
	if err != nil {
		t.Fatalf("generation failure must not propagate: %v", err)
	}
	if decision.ReplyText == "" {
		t.Error("caller must still receive a non-empty reply on generation failure")
	}
}

func TestCacheableIntentHitsCacheOnRepeat(t *testing.T) {
	gen := &scriptedGenAI{reply: "Cuesta 99 USD e incluye 12 semanas."}
	e, _ := newTestEngine(t, gen)
	ctx := context.Background()

	first, err := e.ProcessMessage(ctx, "agent-1", "follower-1", "cuanto cuesta el curso?", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if first.FromCache {
		t.Error("first call cannot be a cache hit")
	}

	second, err := e.ProcessMessage(ctx, "agent-1", "follower-2", "cuanto cuesta el curso?", "Bea")
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache {
		t.Error("identical cacheable question should hit the cache")
	}
	if second.ReplyText != first.ReplyText {
		t.Errorf("cached reply should be identical: %q vs %q", first.ReplyText, second.ReplyText)
	}
	if gen.callCount() != 1 {
		t.Errorf("expected exactly one generation call, got %d", gen.callCount())
	}
}

func TestIrrelevantSupportReplySubstituted(t *testing.T) {
	gen := &scriptedGenAI{reply: "Purple monkey dishwasher."}
	e, _ := newTestEngine(t, gen)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "no puedo acceder al curso", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(decision.ReplyText, "Purple") {
		t.Errorf("off-topic support reply must be replaced, got %q", decision.ReplyText)
	}
	if decision.ReplyText == "" {
		t.Error("substitution must still produce a reply")
	}
}

func TestRelevantSupportReplyPassesCheck(t *testing.T) {
	gen := &scriptedGenAI{reply: "Claro, déjame revisar tu acceso al curso."}
	e, _ := newTestEngine(t, gen)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "no puedo acceder al curso", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(decision.ReplyText, "revisar") {
		t.Errorf("on-topic support reply must pass through, got %q", decision.ReplyText)
	}
}

func TestCacheSkipsPersonalizedReplies(t *testing.T) {
	gen := &scriptedGenAI{reply: "Claro Ana, cuesta 99 USD."}
	e, _ := newTestEngine(t, gen)
	ctx := context.Background()

	if _, err := e.ProcessMessage(ctx, "agent-1", "follower-1", "cuanto cuesta el curso?", "Ana"); err != nil {
		t.Fatal(err)
	}
	second, err := e.ProcessMessage(ctx, "agent-1", "follower-2", "cuanto cuesta el curso?", "Bea")
	if err != nil {
		t.Fatal(err)
	}
	if second.FromCache {
		t.Error("a reply naming one follower must never be replayed to another")
	}
	if gen.callCount() != 2 {
		t.Errorf("expected a fresh generation for the second follower, got %d calls", gen.callCount())
	}
}

func TestCacheSkipsLinkBearingReplies(t *testing.T) {
	gen := &scriptedGenAI{reply: "Claro, puedes pagar aquí: {payment_link}"}
	e, _ := newTestEngine(t, gen)
	ctx := context.Background()

	e.ProcessMessage(ctx, "agent-1", "follower-1", "que metodos de pago aceptan?", "Ana")
	e.ProcessMessage(ctx, "agent-1", "follower-2", "que metodos de pago aceptan?", "Bea")

	if gen.callCount() != 2 {
		t.Errorf("replies carrying a payment link must not be cached, got %d calls", gen.callCount())
	}
}

func TestCacheHitRespectsEmojiConstraints(t *testing.T) {
	gen := &scriptedGenAI{reply: "Cuesta 99 USD 💪"}
	e, st := newTestEngine(t, gen)
	ctx := context.Background()

	if _, err := e.ProcessMessage(ctx, "agent-1", "follower-1", "cuanto cuesta el curso?", ""); err != nil {
		t.Fatal(err)
	}

	record, err := st.GetOrCreateFollower(ctx, "agent-1", "follower-2", "")
	if err != nil {
		t.Fatal(err)
	}
	record.Naturalness.LastEmojis = []string{"💪"}
	if err := st.SaveFollower(ctx, record); err != nil {
		t.Fatal(err)
	}

	second, err := e.ProcessMessage(ctx, "agent-1", "follower-2", "cuanto cuesta el curso?", "")
	if err != nil {
		t.Fatal(err)
	}
	if second.FromCache {
		t.Error("a cached reply reusing a follower's recent emoji must not be replayed")
	}
	if gen.callCount() != 2 {
		t.Errorf("expected a fresh generation, got %d calls", gen.callCount())
	}
}

func TestObjectionBypassesCache(t *testing.T) {
	gen := &scriptedGenAI{reply: "Entiendo, aunque piensa en el valor a largo plazo."}
	e, _ := newTestEngine(t, gen)
	ctx := context.Background()

	e.ProcessMessage(ctx, "agent-1", "follower-1", "esta muy caro", "Ana")
	e.ProcessMessage(ctx, "agent-1", "follower-2", "esta muy caro", "Bea")

	if gen.callCount() != 2 {
		t.Errorf("price objections must generate fresh each time, got %d calls", gen.callCount())
	}
}

func TestPausedAgentYieldsNoOp(t *testing.T) {
	gen := &scriptedGenAI{reply: "should not be used"}
	e, _ := newTestEngine(t, gen)
	e.agents.SetPaused("agent-1", true)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "hola", "Ana")
	if err != nil {
		t.Fatalf("paused agent must not error: %v", err)
	}
	if decision.ReplyText != "" {
		t.Errorf("paused agent must yield empty reply, got %q", decision.ReplyText)
	}
	if gen.callCount() != 0 {
		t.Error("paused agent must not call the model")
	}
}

func TestUnknownAgentErrors(t *testing.T) {
	gen := &scriptedGenAI{}
	e, _ := newTestEngine(t, gen)
	if _, err := e.ProcessMessage(context.Background(), "ghost", "follower-1", "hola", ""); !errors.Is(err, models.ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestEscalationSetsFlag(t *testing.T) {
	gen := &scriptedGenAI{reply: "Claro, te conecto con el equipo."}
	e, _ := newTestEngine(t, gen)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "quiero hablar con una persona real", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Escalate {
		t.Error("escalation intent must set the escalate flag")
	}
}

func TestRateLimitYieldsThrottleReply(t *testing.T) {
	gen := &scriptedGenAI{reply: "respuesta"}
	reg := agents.NewRegistry()
	reg.Register(models.AgentConfig{AgentID: "agent-1"})
	e, err := New(Deps{
		Store:   store.NewInMemoryStore(),
		Agents:  reg,
		GenAI:   gen,
		Limiter: ratelimit.NewFixedWindowLimiter(0, 1),
		Catalog: testCatalog(),
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := e.ProcessMessage(ctx, "agent-1", "follower-1", "hola", ""); err != nil {
		t.Fatal(err)
	}
	decision, err := e.ProcessMessage(ctx, "agent-1", "follower-1", "hola otra vez", "")
	if err != nil {
		t.Fatalf("throttling is not an error: %v", err)
	}
	if decision.Metadata["throttled"] != "true" {
		t.Error("expected throttle metadata")
	}
	if decision.ReplyText == "" {
		t.Error("throttled followers still get a polite reply")
	}
	if gen.callCount() != 1 {
		t.Errorf("throttled message must not reach the model, calls=%d", gen.callCount())
	}
}

func TestPaymentLinkPlaceholderSubstitution(t *testing.T) {
	gen := &scriptedGenAI{reply: "Aquí lo tienes: {payment_link}"}
	e, _ := newTestEngine(t, gen)

	decision, err := e.ProcessMessage(context.Background(), "agent-1", "follower-1", "quiero comprar el curso", "Ana")
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://pay.example.com/curso"; !strings.Contains(decision.ReplyText, want) {
		t.Errorf("expected the real payment link in %q", decision.ReplyText)
	}
}

func TestSerializationPerFollower(t *testing.T) {
	gen := &scriptedGenAI{reply: "ok, te cuento."}
	e, st := newTestEngine(t, gen)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.ProcessMessage(ctx, "agent-1", "follower-1", "me interesa el curso", "Ana"); err != nil {
				t.Errorf("process failed: %v", err)
			}
		}()
	}
	wg.Wait()

	record, _ := st.GetFollower(ctx, "agent-1", "follower-1")
	if record.TotalMessages != n {
		t.Errorf("lost updates: expected %d messages counted, got %d", n, record.TotalMessages)
	}
}
