package metrics

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/marqode/hybridrag/pkg/logging"
	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/vector"
)

// Input bundles the artifacts one pipeline run produces. Chunks is empty when
// no documents were supplied; the chunk-dependent metrics then resolve to
// NotApplicable.
type Input struct {
	Query          string
	Chunks         []document.Chunk
	Solver         string
	Evaluator      string
	Improver       string // final answer
	RetrievalTime  time.Duration
	GenerationTime time.Duration
}

// Engine computes heuristic similarity metrics from run artifacts. Every
// metric is a pure function of its inputs: identical inputs and a
// deterministic embedder yield identical reports.
type Engine struct {
	embedder vector.Embedder
	logger   *slog.Logger
}

// NewEngine creates a metrics engine backed by the given embedder.
func NewEngine(embedder vector.Embedder) *Engine {
	return &Engine{
		embedder: embedder,
		logger:   logging.WithComponent("metrics"),
	}
}

// Evaluate builds the full nine-metric report. Timing metrics never fail;
// when the embedder errors the similarity metrics degrade to NotApplicable
// instead of aborting the report.
func (e *Engine) Evaluate(ctx context.Context, in Input) Report {
	report := Report{}
	for _, name := range Names() {
		report[name] = NotApplicable()
	}

	grounded := len(in.Chunks) > 0

	// Timing metrics are always available; retrieval time only in grounded runs.
	if grounded {
		report[RetrievalTime] = Elapsed(in.RetrievalTime)
	}
	report[GenerationTime] = Elapsed(in.GenerationTime)
	report[TotalTime] = Elapsed(in.RetrievalTime + in.GenerationTime)

	chunkText := joinChunks(in.Chunks)

	if v, ok := e.cosineOf(ctx, in.Query, in.Improver); ok {
		report[Precision] = Score(v)
	}
	if grounded {
		if v, ok := e.cosineOf(ctx, in.Improver, chunkText); ok {
			report[Alignment] = Score(v)
		}
		report[Recall] = Score(overlapFraction(tokenSet(chunkText), tokenSet(in.Improver)))
		report[Groundedness] = Score(overlapFraction(tokenSet(in.Improver), tokenSet(chunkText)))
	}
	if v, ok := e.coherenceOf(ctx, in.Improver); ok {
		report[Coherence] = Score(v)
	}
	if v, ok := e.noveltyOf(ctx, in.Solver, in.Evaluator, in.Improver); ok {
		report[Novelty] = Score(v)
	}

	return report
}

// cosineOf embeds both texts and returns their clamped cosine similarity.
func (e *Engine) cosineOf(ctx context.Context, a, b string) (float64, bool) {
	if e.embedder == nil || strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, false
	}
	vecs, err := e.embedder.EmbedBatch(ctx, []string{a, b})
	if err != nil || len(vecs) != 2 {
		e.logger.Warn("embedding failed, metric degraded", "error", err)
		return 0, false
	}
	return clamp01(float64(vector.CosineSimilarity(vecs[0], vecs[1]))), true
}

// coherenceOf measures internal consistency of the answer as the mean cosine
// similarity between adjacent sentences. Single-sentence answers are
// trivially coherent.
func (e *Engine) coherenceOf(ctx context.Context, answer string) (float64, bool) {
	if e.embedder == nil || strings.TrimSpace(answer) == "" {
		return 0, false
	}
	sentences := splitSentences(answer)
	if len(sentences) < 2 {
		return 1, true
	}
	vecs, err := e.embedder.EmbedBatch(ctx, sentences)
	if err != nil || len(vecs) != len(sentences) {
		e.logger.Warn("embedding failed, metric degraded", "error", err)
		return 0, false
	}
	var sum float64
	for i := 1; i < len(vecs); i++ {
		sum += clamp01(float64(vector.CosineSimilarity(vecs[i-1], vecs[i])))
	}
	return sum / float64(len(vecs)-1), true
}

// noveltyOf measures non-redundancy across the three stage outputs: one minus
// the mean pairwise similarity.
func (e *Engine) noveltyOf(ctx context.Context, solver, evaluator, improver string) (float64, bool) {
	if e.embedder == nil {
		return 0, false
	}
	texts := []string{solver, evaluator, improver}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return 0, false
		}
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vecs) != 3 {
		e.logger.Warn("embedding failed, metric degraded", "error", err)
		return 0, false
	}
	pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	var sum float64
	for _, p := range pairs {
		sum += clamp01(float64(vector.CosineSimilarity(vecs[p[0]], vecs[p[1]])))
	}
	return clamp01(1 - sum/float64(len(pairs))), true
}

func joinChunks(chunks []document.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// tokenSet lowercases and splits text into a set of word tokens.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range nonWord.Split(strings.ToLower(text), -1) {
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

// overlapFraction returns |reference ∩ candidate| / |reference|.
func overlapFraction(reference, candidate map[string]struct{}) float64 {
	if len(reference) == 0 {
		return 0
	}
	matched := 0
	for tok := range reference {
		if _, ok := candidate[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(reference))
}

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+|\n+`)

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
