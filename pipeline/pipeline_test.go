package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/marqode/hybridrag/contrib/vector/inmemory"
	"github.com/marqode/hybridrag/errors"
	historystore "github.com/marqode/hybridrag/history/store"
	"github.com/marqode/hybridrag/message"
	"github.com/marqode/hybridrag/metrics"
	"github.com/marqode/hybridrag/rag/chunking"
	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/rag/reranker"
	"github.com/marqode/hybridrag/rag/retriever"
)

func TestPipelineRunUngrounded(t *testing.T) {
	ctx := context.Background()

	cloud := &stubGenerator{
		name: "gemini",
		responses: []string{
			"Solver answer covering the shipping policy timeline.",
			"Good coverage of shipping policy.\nSCORE: 7.5",
			"Improved final answer for the shipping policy timeline.",
		},
	}
	local := &stubGenerator{name: "ollama"}
	store := historystore.NewInMemoryStore()

	pipe, err := New(
		WithCloud(cloud),
		WithLocal(local),
		WithMetricsEngine(metrics.NewEngine(&keywordEmbedder{})),
		WithHistory(store),
		WithMode(ModeEngineering),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	result, err := pipe.Run(ctx, "Tell me the shipping policy timeline.")
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	if len(result.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(result.Stages))
	}
	wantOrder := []Stage{StageSolver, StageEvaluator, StageImprover}
	for i, want := range wantOrder {
		if result.Stages[i].Stage != want {
			t.Errorf("stage %d = %q, want %q", i, result.Stages[i].Stage, want)
		}
		if result.Stages[i].Backend != "gemini" {
			t.Errorf("stage %d backend = %q, want gemini", i, result.Stages[i].Backend)
		}
	}
	if result.FinalAnswer != cloud.responses[2] {
		t.Errorf("FinalAnswer = %q, want improver output", result.FinalAnswer)
	}
	if result.EvalScore != 7.5 {
		t.Errorf("EvalScore = %v, want 7.5", result.EvalScore)
	}
	if result.Grounded || len(result.Chunks) != 0 {
		t.Errorf("expected ungrounded run, got grounded=%v chunks=%d", result.Grounded, len(result.Chunks))
	}

	// Evaluator sees the solver output; improver sees both.
	if !strings.Contains(cloud.prompts[1], cloud.responses[0]) {
		t.Errorf("evaluator prompt missing solver output")
	}
	if !strings.Contains(cloud.prompts[2], cloud.responses[0]) ||
		!strings.Contains(cloud.prompts[2], cloud.responses[1]) {
		t.Errorf("improver prompt missing solver output or critique")
	}

	var stageSum = result.RetrievalTime
	for _, stage := range result.Stages {
		stageSum += stage.Elapsed
	}
	if result.TotalTime != stageSum {
		t.Errorf("TotalTime = %v, want exact sum %v", result.TotalTime, stageSum)
	}

	for _, name := range []metrics.Name{
		metrics.Recall, metrics.Alignment, metrics.Groundedness, metrics.RetrievalTime,
	} {
		if result.Metrics[name].Applicable() {
			t.Errorf("metric %q = %v, want n/a without documents", name, result.Metrics[name])
		}
	}
	if !result.Metrics[metrics.Precision].Applicable() {
		t.Errorf("precision should be computed without documents")
	}

	records, err := store.Recent(ctx, 10)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 history record, got %d (err=%v)", len(records), err)
	}
	if records[0].FinalAnswer != result.FinalAnswer {
		t.Errorf("history record answer mismatch")
	}
}

func TestPipelineRunGrounded(t *testing.T) {
	ctx := context.Background()

	cloud := &stubGenerator{
		name: "gemini",
		responses: []string{
			"Solver answer grounded in the shipping policy timeline.",
			"Solid.\nSCORE: 8.0",
			"Final grounded shipping policy answer with timeline.",
		},
	}
	local := &stubGenerator{
		name:      "ollama",
		responses: []string{"Grounded answer: the shipping policy timeline is five days."},
	}

	embedder := &keywordEmbedder{}
	ret := retriever.New(
		inmemory.NewInMemoryVectorStore(),
		embedder,
		chunking.NewWordChunker(chunking.WithChunkWords(16), chunking.WithOverlapWords(4)),
		reranker.NewCosineReranker(),
		retriever.WithRerankTopK(3),
	)

	pipe, err := New(
		WithCloud(cloud),
		WithLocal(local),
		WithRetriever(ret),
		WithMetricsEngine(metrics.NewEngine(embedder)),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	result, err := pipe.Run(ctx, "What is the shipping policy timeline?",
		document.Document{ID: "shipping", Title: "Shipping Policy", Content: "All shipping policy details and timelines for delivery."},
		document.Document{ID: "returns", Title: "Return Policy", Content: "Return windows and shipping labels."},
	)
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	if !result.Grounded || len(result.Chunks) == 0 {
		t.Fatalf("expected grounded run with chunks")
	}
	if result.GroundedAnswer == "" {
		t.Errorf("expected grounded answer from local backend")
	}
	if !strings.Contains(cloud.prompts[0], "Document context") {
		t.Errorf("solver prompt missing document context")
	}
	if result.RetrievalTime <= 0 {
		t.Errorf("RetrievalTime = %v, want > 0", result.RetrievalTime)
	}

	for _, name := range metrics.Names() {
		if !result.Metrics[name].Applicable() {
			t.Errorf("metric %q = n/a, want computed on grounded run", name)
		}
	}
}

func TestPipelineQuotaFallback(t *testing.T) {
	ctx := context.Background()

	cloud := &stubGenerator{
		name: "gemini",
		err:  fmt.Errorf("rate limited: %w", errors.ErrQuotaExceeded),
	}
	local := &stubGenerator{
		name:      "ollama",
		responses: []string{"local solver", "local critique\nSCORE: 6.0", "local final"},
	}

	pipe, err := New(WithCloud(cloud), WithLocal(local))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	result, err := pipe.Run(ctx, "Any question at all.")
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	for i, stage := range result.Stages {
		if stage.Backend != "ollama" {
			t.Errorf("stage %d backend = %q, want ollama after quota fallback", i, stage.Backend)
		}
	}
	if cloud.calls != 3 {
		t.Errorf("cloud calls = %d, want 3 (one attempt per stage)", cloud.calls)
	}
	if local.calls != 3 {
		t.Errorf("local calls = %d, want 3", local.calls)
	}
}

func TestPipelineLocalUnavailableIsFatal(t *testing.T) {
	ctx := context.Background()

	local := &stubGenerator{
		name: "ollama",
		err:  fmt.Errorf("connection refused: %w", errors.ErrBackendUnavailable),
	}

	pipe, err := New(WithLocal(local))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	_, err = pipe.Run(ctx, "Question without any fallback left.")
	if err == nil {
		t.Fatal("expected error when local backend is unavailable")
	}
	if !errors.Is(err, errors.ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrBackendUnavailable", err)
	}
	if local.calls != 1 {
		t.Errorf("local calls = %d, want 1 (no automatic retry)", local.calls)
	}
}

func TestPipelineRetrievalFailureDegrades(t *testing.T) {
	ctx := context.Background()

	cloud := &stubGenerator{
		name: "gemini",
		responses: []string{
			"Ungrounded solver answer.",
			"Fine.\nSCORE: 5.0",
			"Ungrounded final answer.",
		},
	}
	local := &stubGenerator{name: "ollama"}

	ret := retriever.New(
		inmemory.NewInMemoryVectorStore(),
		&failingEmbedder{},
		chunking.NewWordChunker(),
		reranker.NewCosineReranker(),
	)

	pipe, err := New(
		WithCloud(cloud),
		WithLocal(local),
		WithRetriever(ret),
		WithMetricsEngine(metrics.NewEngine(&keywordEmbedder{})),
	)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	result, err := pipe.Run(ctx, "Question over broken retrieval.",
		document.Document{ID: "doc", Content: "Some document content."})
	if err != nil {
		t.Fatalf("expected degraded run, got error: %v", err)
	}

	if result.Grounded || len(result.Chunks) != 0 {
		t.Errorf("expected ungrounded degradation, got grounded=%v", result.Grounded)
	}
	if result.Metrics[metrics.Recall].Applicable() {
		t.Errorf("recall should be n/a after retrieval failure")
	}
}

func TestPipelineRejectsEmptyQuery(t *testing.T) {
	pipe, err := New(WithLocal(&stubGenerator{name: "ollama"}))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	_, err = pipe.Run(context.Background(), "   ")
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "plain score", text: "Summary.\nSCORE: 7.5", want: 7.5},
		{name: "integer score", text: "SCORE: 9", want: 9},
		{name: "score mid-text", text: "SCORE: 4.2\nfurther notes", want: 4.2},
		{name: "missing score", text: "no score line here", want: -1},
		{name: "empty text", text: "", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractScore(tt.text); got != tt.want {
				t.Errorf("ExtractScore(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

type stubGenerator struct {
	name      string
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	idx := s.calls
	s.calls++
	for _, msg := range messages {
		if msg.Role == message.RoleUser {
			s.prompts = append(s.prompts, msg.Content)
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	response := "stub response"
	if len(s.responses) > 0 {
		if idx >= len(s.responses) {
			idx = len(s.responses) - 1
		}
		response = s.responses[idx]
	}
	return message.NewMessage(message.RoleAssistant, response), nil
}

type keywordEmbedder struct{}

var keywordSpace = []string{"shipping", "policy", "timeline", "return", "answer", "question"}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(keywordSpace))
	lower := strings.ToLower(text)
	for idx, kw := range keywordSpace {
		if strings.Contains(lower, kw) {
			vec[idx] = 1
		}
	}
	return vec, nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := k.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (k *keywordEmbedder) Dimension() int {
	return len(keywordSpace)
}

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding service down")
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding service down")
}

func (f *failingEmbedder) Dimension() int { return 0 }
