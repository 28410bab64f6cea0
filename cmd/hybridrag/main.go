package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	openaisdk "github.com/openai/openai-go/v3"

	"github.com/marqode/hybridrag/config"
	"github.com/marqode/hybridrag/contrib/chunking/token"
	ollamaembed "github.com/marqode/hybridrag/contrib/embedder/ollama"
	openaiembed "github.com/marqode/hybridrag/contrib/embedder/openai"
	"github.com/marqode/hybridrag/contrib/provider/claude"
	"github.com/marqode/hybridrag/contrib/provider/gemini"
	ollamaprov "github.com/marqode/hybridrag/contrib/provider/ollama"
	"github.com/marqode/hybridrag/contrib/tokenizer/tiktoken"
	"github.com/marqode/hybridrag/contrib/vector/inmemory"
	"github.com/marqode/hybridrag/contrib/vector/pg"
	"github.com/marqode/hybridrag/history"
	historystore "github.com/marqode/hybridrag/history/store"
	"github.com/marqode/hybridrag/metrics"
	"github.com/marqode/hybridrag/pipeline"
	"github.com/marqode/hybridrag/pkg/logging"
	"github.com/marqode/hybridrag/pkg/telemetry"
	"github.com/marqode/hybridrag/provider"
	provmw "github.com/marqode/hybridrag/provider/middleware"
	"github.com/marqode/hybridrag/rag/chunking"
	"github.com/marqode/hybridrag/rag/document"
	"github.com/marqode/hybridrag/rag/loader"
	"github.com/marqode/hybridrag/rag/reranker"
	"github.com/marqode/hybridrag/rag/retriever"
	"github.com/marqode/hybridrag/vector"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	mode := flag.String("mode", "", "reasoning mode: general, engineering, policy, research")
	docPaths := flag.String("docs", "", "comma-separated document files or directories (.pdf, .html, .txt, .md)")
	cloud := flag.String("cloud", "", "cloud backend: gemini or claude")
	localOnly := flag.Bool("local-only", false, "run every stage on the local Ollama backend")
	question := flag.String("q", "", "question to answer (reads stdin when omitted)")
	showHistory := flag.Int("history", 0, "print the N most recent runs and exit")
	clearHistory := flag.Bool("clear-history", false, "clear the run history and exit")
	flag.Parse()

	cfg := config.Load()
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *cloud != "" {
		cfg.Cloud = *cloud
	}
	if *localOnly {
		cfg.LocalOnly = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.WithComponent("cli")
	ctx := context.Background()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "hybridrag",
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, err := buildHistoryStore(cfg)
	if err != nil {
		return err
	}

	if *clearHistory {
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		fmt.Println("history cleared")
		return nil
	}
	if *showHistory > 0 {
		return printHistory(ctx, store, *showHistory)
	}

	query := strings.TrimSpace(*question)
	if query == "" {
		query = strings.TrimSpace(readStdin())
	}
	if query == "" {
		return fmt.Errorf("no question given: pass -q or pipe text on stdin")
	}

	p, docs, err := buildPipeline(ctx, cfg, store, *docPaths)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, query, docs...)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func buildPipeline(ctx context.Context, cfg *config.Config, store history.Store, docPaths string) (*pipeline.Pipeline, []document.Document, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}

	local, err := ollamaprov.New(&ollamaprov.Config{
		Host:        cfg.OllamaHost,
		Model:       cfg.OllamaModel,
		Temperature: cfg.Temperature,
		NumPredict:  cfg.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build local backend: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithLocal(provmw.Chain(local, provmw.Logging())),
		pipeline.WithMode(pipeline.Mode(cfg.Mode)),
		pipeline.WithMemoryDepth(cfg.MemoryDepth),
		pipeline.WithHistory(store),
		pipeline.WithMetricsEngine(metrics.NewEngine(embedder)),
		pipeline.WithLocalOnly(cfg.LocalOnly),
	}

	if !cfg.LocalOnly {
		cloudBackend, err := buildCloud(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithCloud(provmw.Chain(cloudBackend, provmw.Logging())))
	}

	var docs []document.Document
	if docPaths != "" {
		docs, err = loader.New().LoadAll(strings.Split(docPaths, ",")...)
		if err != nil {
			return nil, nil, fmt.Errorf("load documents: %w", err)
		}

		vectorStore, err := buildVectorStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		chunker, err := buildChunker(cfg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithRetriever(retriever.New(
			vectorStore, embedder, chunker, reranker.NewCosineReranker(),
			retriever.WithSearchTopK(cfg.SearchTopK),
			retriever.WithRerankTopK(cfg.RerankTopK),
		)))
	}

	p, err := pipeline.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, docs, nil
}

func buildCloud(ctx context.Context, cfg *config.Config) (provider.Generator, error) {
	switch cfg.Cloud {
	case config.CloudClaude:
		return claude.New(&claude.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.ClaudeModel,
			MaxTokens:   int64(cfg.MaxTokens),
			Temperature: cfg.Temperature,
		})
	default:
		return gemini.New(ctx, &gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			MaxTokens:   int32(cfg.MaxTokens),
			Temperature: float32(cfg.Temperature),
		})
	}
}

func buildEmbedder(cfg *config.Config) (vector.Embedder, error) {
	switch cfg.Embedder {
	case config.EmbedderOpenAI:
		model := openaisdk.EmbeddingModelTextEmbedding3Small
		if cfg.EmbedModel != "" {
			model = openaisdk.EmbeddingModel(cfg.EmbedModel)
		}
		return openaiembed.New(cfg.OpenAIAPIKey, "", model, cfg.EmbedDimension), nil
	default:
		model := cfg.EmbedModel
		if model == "" {
			model = "nomic-embed-text"
		}
		emb, err := ollamaembed.New(cfg.OllamaHost, model, cfg.EmbedDimension)
		if err != nil {
			return nil, fmt.Errorf("build embedder: %w", err)
		}
		return emb, nil
	}
}

func buildChunker(cfg *config.Config) (chunking.Chunker, error) {
	switch cfg.Chunker {
	case config.ChunkerToken:
		tok, err := tiktoken.New(cfg.TokenEncoding)
		if err != nil {
			return nil, fmt.Errorf("build tokenizer: %w", err)
		}
		return token.New(tok,
			token.WithMaxTokens(cfg.ChunkTokens),
			token.WithOverlapTokens(cfg.OverlapTokens),
		), nil
	default:
		return chunking.NewWordChunker(
			chunking.WithChunkWords(cfg.ChunkWords),
			chunking.WithOverlapWords(cfg.OverlapWords),
		), nil
	}
}

func buildVectorStore(cfg *config.Config) (vector.VectorStore, error) {
	switch cfg.VectorStore {
	case config.StorePGVector:
		store, err := pg.New(&pg.Config{
			Host:      cfg.PGHost,
			Port:      cfg.PGPort,
			User:      cfg.PGUser,
			Password:  cfg.PGPassword,
			DBName:    cfg.PGDatabase,
			SSLMode:   cfg.PGSSLMode,
			Dimension: cfg.EmbedDimension,
			TableName: cfg.PGTable,
		})
		if err != nil {
			return nil, fmt.Errorf("build pgvector store: %w", err)
		}
		return store, nil
	default:
		return inmemory.NewInMemoryVectorStore(), nil
	}
}

func buildHistoryStore(cfg *config.Config) (history.Store, error) {
	switch cfg.HistoryStore {
	case config.HistoryRedis:
		return historystore.NewRedisStore(&historystore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		}), nil
	case config.HistoryMongo:
		store, err := historystore.NewMongoStore(&historystore.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
		if err != nil {
			return nil, fmt.Errorf("build mongo history store: %w", err)
		}
		return store, nil
	default:
		return historystore.NewInMemoryStore(), nil
	}
}

func readStdin() string {
	stat, err := os.Stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return string(data)
}

func printHistory(ctx context.Context, store history.Store, n int) error {
	records, err := store.Recent(ctx, n)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no history")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  [%s]  score=%.1f  words=%d  total=%s\n",
			rec.CreatedAt.Format(time.RFC3339), rec.Mode, rec.EvaluatorScore,
			rec.WordCount, rec.TotalTime.Round(time.Millisecond))
		fmt.Printf("  Q: %s\n", rec.Question)
	}
	return nil
}

func printResult(result *pipeline.Result) {
	if result.GroundedAnswer != "" {
		fmt.Println("=== Grounded answer (local) ===")
		fmt.Println(result.GroundedAnswer)
		fmt.Println()
	}

	fmt.Println("=== Final answer ===")
	fmt.Println(result.FinalAnswer)
	fmt.Println()

	if result.EvalScore >= 0 {
		fmt.Printf("Evaluator score: %.1f/10\n", result.EvalScore)
	}
	fmt.Println()

	fmt.Println("=== Metrics ===")
	for _, name := range metrics.Names() {
		fmt.Printf("%-26s %s\n", name, result.Metrics[name])
	}
}
