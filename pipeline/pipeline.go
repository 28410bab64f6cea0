package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/marqode/hybridrag/errors"
	"github.com/marqode/hybridrag/history"
	"github.com/marqode/hybridrag/message"
	"github.com/marqode/hybridrag/metrics"
	"github.com/marqode/hybridrag/pkg/logging"
	"github.com/marqode/hybridrag/pkg/telemetry"
	"github.com/marqode/hybridrag/provider"
	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/rag/retriever"
)

// Stage identifies one step of the reasoning pipeline.
type Stage string

const (
	StageSolver    Stage = "solver"
	StageEvaluator Stage = "evaluator"
	StageImprover  Stage = "improver"
)

// StageResult is the output of a single pipeline stage.
type StageResult struct {
	Stage   Stage
	Backend string
	Text    string
	Elapsed time.Duration
}

// Result is the complete outcome of one pipeline run.
type Result struct {
	Query          string
	Mode           Mode
	Grounded       bool
	GroundedAnswer string
	FinalAnswer    string
	Stages         []StageResult
	Chunks         []document.Chunk
	RetrievalTime  time.Duration
	EvalScore      float64
	Metrics        metrics.Report
	TotalTime      time.Duration
}

// Pipeline runs the three-stage Solver, Evaluator, Improver sequence over
// a cloud backend with a local fallback, optionally grounded in retrieved
// document chunks.
type Pipeline struct {
	cloud       provider.Generator
	local       provider.Generator
	retriever   *retriever.Retriever
	engine      *metrics.Engine
	history     history.Store
	mode        Mode
	memoryDepth int
	localOnly   bool
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCloud sets the cloud backend used as the primary stage generator.
func WithCloud(g provider.Generator) Option {
	return func(p *Pipeline) {
		p.cloud = g
	}
}

// WithLocal sets the local backend, used for grounded answers and fallback.
func WithLocal(g provider.Generator) Option {
	return func(p *Pipeline) {
		p.local = g
	}
}

// WithRetriever enables document grounding.
func WithRetriever(r *retriever.Retriever) Option {
	return func(p *Pipeline) {
		p.retriever = r
	}
}

// WithMetricsEngine enables the per-run metrics report.
func WithMetricsEngine(e *metrics.Engine) Option {
	return func(p *Pipeline) {
		p.engine = e
	}
}

// WithHistory sets the run-history store. Recent records are injected into
// stage prompts as system memory.
func WithHistory(store history.Store) Option {
	return func(p *Pipeline) {
		p.history = store
	}
}

// WithMode sets the reasoning mode.
func WithMode(mode Mode) Option {
	return func(p *Pipeline) {
		p.mode = mode
	}
}

// WithMemoryDepth sets how many history records to inject into prompts.
func WithMemoryDepth(n int) Option {
	return func(p *Pipeline) {
		p.memoryDepth = n
	}
}

// WithLocalOnly routes every stage to the local backend.
func WithLocalOnly(enable bool) Option {
	return func(p *Pipeline) {
		p.localOnly = enable
	}
}

// New creates a Pipeline. A local backend is required; the cloud backend is
// optional and the pipeline runs local-only without one.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		mode:        ModeGeneral,
		memoryDepth: 3,
		logger:      logging.WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.local == nil {
		return nil, fmt.Errorf("local backend is required: %w", errors.ErrInvalidInput)
	}
	if p.cloud == nil {
		p.localOnly = true
	}
	return p, nil
}

// Run executes retrieval (when documents are given) followed by the three
// reasoning stages, then evaluates metrics and appends the run to history.
func (p *Pipeline) Run(ctx context.Context, query string, docs ...document.Document) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", errors.ErrInvalidInput)
	}

	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.run")
	var runErr error
	defer func() { telemetry.End(span, runErr) }()

	result := &Result{
		Query:     query,
		Mode:      p.mode,
		EvalScore: -1,
	}

	memoryBlock := p.recentMemory(ctx)

	if len(docs) > 0 {
		p.ground(ctx, result, query, docs)
	}

	docContext := chunkContext(result.Chunks)

	solver, err := p.runStage(ctx, StageSolver,
		solverSystemPrompt(p.mode), solverUserPrompt(query, docContext, memoryBlock))
	if err != nil {
		runErr = err
		return nil, err
	}
	result.Stages = append(result.Stages, solver)

	evaluator, err := p.runStage(ctx, StageEvaluator,
		evaluatorSystemPrompt, evaluatorUserPrompt(query, solver.Text))
	if err != nil {
		runErr = err
		return nil, err
	}
	result.Stages = append(result.Stages, evaluator)
	result.EvalScore = ExtractScore(evaluator.Text)

	improver, err := p.runStage(ctx, StageImprover,
		improverSystemPrompt, improverUserPrompt(query, solver.Text, evaluator.Text))
	if err != nil {
		runErr = err
		return nil, err
	}
	result.Stages = append(result.Stages, improver)
	result.FinalAnswer = improver.Text

	var generation time.Duration
	for _, stage := range result.Stages {
		generation += stage.Elapsed
	}
	result.TotalTime = result.RetrievalTime + generation

	if p.engine != nil {
		result.Metrics = p.engine.Evaluate(ctx, metrics.Input{
			Query:          query,
			Chunks:         result.Chunks,
			Solver:         solver.Text,
			Evaluator:      evaluator.Text,
			Improver:       improver.Text,
			RetrievalTime:  result.RetrievalTime,
			GenerationTime: generation,
		})
	}

	p.record(ctx, result)
	return result, nil
}

// ground retrieves chunks for the query and produces a document-grounded
// answer on the local backend. Retrieval failures degrade the run to
// ungrounded mode instead of failing it.
func (p *Pipeline) ground(ctx context.Context, result *Result, query string, docs []document.Document) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.ground")
	var groundErr error
	defer func() { telemetry.End(span, groundErr) }()

	start := time.Now()
	if err := p.retrieve(ctx, result, query, docs); err != nil {
		groundErr = err
		p.logger.Warn("retrieval failed, continuing ungrounded", "error", err)
		result.Chunks = nil
		result.Grounded = false
		return
	}

	if len(result.Chunks) > 0 {
		answer, err := p.generateText(ctx, p.local,
			"", groundedAnswerPrompt(query, chunkContext(result.Chunks)))
		if err != nil {
			p.logger.Warn("grounded answer generation failed", "error", err)
		} else {
			result.GroundedAnswer = answer
		}
	}
	result.RetrievalTime = time.Since(start)
}

func (p *Pipeline) retrieve(ctx context.Context, result *Result, query string, docs []document.Document) error {
	if p.retriever == nil {
		return fmt.Errorf("no retriever configured: %w", errors.ErrRetrievalFailure)
	}
	if err := p.retriever.IndexDocuments(ctx, docs...); err != nil {
		return err
	}
	hits, err := p.retriever.Search(ctx, query)
	if err != nil {
		return err
	}
	for _, hit := range hits {
		result.Chunks = append(result.Chunks, hit.Chunk)
	}
	result.Grounded = len(result.Chunks) > 0
	return nil
}

// runStage generates one stage, falling back to the local backend exactly
// once when the cloud backend reports quota exhaustion.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, system, user string) (StageResult, error) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.stage."+string(stage))
	var stageErr error
	defer func() { telemetry.End(span, stageErr) }()

	backend := p.cloud
	if p.localOnly {
		backend = p.local
	}

	start := time.Now()
	text, err := p.generateText(ctx, backend, system, user)
	if err != nil && backend != p.local && errors.Is(err, errors.ErrQuotaExceeded) {
		p.logger.Warn("cloud quota exceeded, retrying stage on local backend",
			"stage", stage, "backend", backend.Name())
		backend = p.local
		text, err = p.generateText(ctx, backend, system, user)
	}
	if err != nil {
		stageErr = fmt.Errorf("stage %s: %w", stage, err)
		return StageResult{}, stageErr
	}

	return StageResult{
		Stage:   stage,
		Backend: backend.Name(),
		Text:    text,
		Elapsed: time.Since(start),
	}, nil
}

func (p *Pipeline) generateText(ctx context.Context, backend provider.Generator, system, user string) (string, error) {
	var msgs []*message.Message
	if system != "" {
		msgs = append(msgs, message.NewMessage(message.RoleSystem, system))
	}
	msgs = append(msgs, message.NewMessage(message.RoleUser, user))

	reply, err := backend.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(reply.Text())
	if text == "" {
		return "", fmt.Errorf("backend %s returned no text: %w", backend.Name(), errors.ErrEmptyResponse)
	}
	return text, nil
}

func (p *Pipeline) recentMemory(ctx context.Context) string {
	if p.history == nil {
		return "(no prior memory)"
	}
	records, err := p.history.Recent(ctx, p.memoryDepth)
	if err != nil {
		p.logger.Warn("failed to load run history", "error", err)
		return "(no prior memory)"
	}
	return history.FormatRecent(records)
}

func (p *Pipeline) record(ctx context.Context, result *Result) {
	if p.history == nil {
		return
	}
	var generation time.Duration
	for _, stage := range result.Stages {
		generation += stage.Elapsed
	}
	rec := &history.Record{
		ID:             history.NewID(),
		Mode:           string(result.Mode),
		Question:       result.Query,
		GroundedAnswer: result.GroundedAnswer,
		FinalAnswer:    result.FinalAnswer,
		EvaluatorScore: result.EvalScore,
		RetrievalTime:  result.RetrievalTime,
		GenerationTime: generation,
		TotalTime:      result.TotalTime,
		WordCount:      len(strings.Fields(result.FinalAnswer)),
		Metrics:        result.Metrics,
		CreatedAt:      time.Now(),
	}
	if err := p.history.Append(ctx, rec); err != nil {
		p.logger.Warn("failed to append run history", "error", err)
	}
}
