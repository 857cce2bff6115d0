package extract

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/tuition-research/internal/grounding"
	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/resilience"
)

// --- Provider Mock ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string  { return "gemini" }
func (m *mockProvider) Model() string { return "gemini-2.5-flash" }

func (m *mockProvider) Generate(ctx context.Context, p grounding.Prompt) (*model.GroundedResponse, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GroundedResponse), args.Error(1)
}

// forProgram matches prompts asking about the named program.
func forProgram(program string) any {
	return mock.MatchedBy(func(p grounding.Prompt) bool {
		return strings.Contains(p.User, "for the "+program+" program")
	})
}

// --- Verifier Mock ---

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, rec *model.ExtractionRecord) (*model.VerificationResult, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerificationResult), args.Error(1)
}

// --- Usage recorder ---

type recordedEvent struct {
	ev     model.UsageEvent
	ctxErr error
}

type usageRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (u *usageRecorder) Log(ctx context.Context, ev model.UsageEvent) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, recordedEvent{ev: ev, ctxErr: ctx.Err()})
	return u.err
}

func (u *usageRecorder) all() []recordedEvent {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]recordedEvent(nil), u.events...)
}

// --- helpers ---

func fastExec() resilience.Executor {
	return resilience.NewBackoff(resilience.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
	})
}

func payload(fields map[string]any) string {
	b, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	return "```json\n" + string(b) + "\n```"
}

func notFoundResponse() *model.GroundedResponse {
	return &model.GroundedResponse{
		Text:  payload(map[string]any{"status": "NotFound", "tuition_amount": nil}),
		Usage: model.TokenUsage{InputTokens: 100, OutputTokens: 10},
	}
}

func successResponse(fields map[string]any, chunks ...model.GroundingChunk) *model.GroundedResponse {
	fields["status"] = "Success"
	return &model.GroundedResponse{
		Text:   payload(fields),
		Chunks: chunks,
		Usage:  model.TokenUsage{InputTokens: 200, OutputTokens: 50},
	}
}

func acmeChunk() model.GroundingChunk {
	return model.GroundingChunk{
		URI:   "https://www.google.com/url?q=https://acme.edu/tuition&sa=D",
		Title: "Tuition and Fees",
		Text:  "Graduate business tuition for 2025-2026.",
	}
}

func newEngine(p *mockProvider, opts ...Option) (*Engine, *usageRecorder) {
	rec := &usageRecorder{}
	opts = append([]Option{WithUsageLogger(rec)}, opts...)
	return New(grounding.NewClient(p, fastExec()), opts...), rec
}
