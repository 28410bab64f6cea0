package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Cloud backend names.
const (
	CloudGemini = "gemini"
	CloudClaude = "claude"
)

// Embedder backend names.
const (
	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
)

// Vector store names.
const (
	StoreMemory   = "memory"
	StorePGVector = "pgvector"
)

// History store names.
const (
	HistoryMemory = "memory"
	HistoryRedis  = "redis"
	HistoryMongo  = "mongo"
)

// Chunker names.
const (
	ChunkerWord  = "word"
	ChunkerToken = "token"
)

// Config holds the full runtime configuration, loaded from the environment.
type Config struct {
	Mode      string
	Cloud     string
	LocalOnly bool

	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	ClaudeModel     string

	OllamaHost  string
	OllamaModel string

	Embedder       string
	EmbedModel     string
	OpenAIAPIKey   string
	EmbedDimension int

	VectorStore string
	PGHost      string
	PGPort      int
	PGUser      string
	PGPassword  string
	PGDatabase  string
	PGSSLMode   string
	PGTable     string

	HistoryStore    string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisTTL        time.Duration
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	Chunker       string
	ChunkWords    int
	OverlapWords  int
	TokenEncoding string
	ChunkTokens   int
	OverlapTokens int

	SearchTopK  int
	RerankTopK  int
	MemoryDepth int

	Temperature float64
	MaxTokens   int
}

// Load builds a Config from environment variables with sensible defaults.
// Call godotenv.Load first if a .env file should be honoured.
func Load() *Config {
	return &Config{
		Mode:      envString("HYBRIDRAG_MODE", "general"),
		Cloud:     envString("HYBRIDRAG_CLOUD", CloudGemini),
		LocalOnly: envBool("HYBRIDRAG_LOCAL_ONLY", false),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     envString("HYBRIDRAG_GEMINI_MODEL", "gemini-1.5-flash"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:     envString("HYBRIDRAG_CLAUDE_MODEL", "claude-sonnet-4-20250514"),

		OllamaHost:  os.Getenv("OLLAMA_HOST"),
		OllamaModel: envString("HYBRIDRAG_OLLAMA_MODEL", "llama3.1"),

		Embedder:       envString("HYBRIDRAG_EMBEDDER", EmbedderOllama),
		EmbedModel:     os.Getenv("HYBRIDRAG_EMBED_MODEL"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		EmbedDimension: envInt("HYBRIDRAG_EMBED_DIMENSION", 768),

		VectorStore: envString("HYBRIDRAG_VECTOR_STORE", StoreMemory),
		PGHost:      envString("HYBRIDRAG_PG_HOST", "localhost"),
		PGPort:      envInt("HYBRIDRAG_PG_PORT", 5432),
		PGUser:      envString("HYBRIDRAG_PG_USER", "postgres"),
		PGPassword:  os.Getenv("HYBRIDRAG_PG_PASSWORD"),
		PGDatabase:  envString("HYBRIDRAG_PG_DATABASE", "hybridrag"),
		PGSSLMode:   envString("HYBRIDRAG_PG_SSLMODE", "disable"),
		PGTable:     envString("HYBRIDRAG_PG_TABLE", "chunks"),

		HistoryStore:    envString("HYBRIDRAG_HISTORY_STORE", HistoryMemory),
		RedisAddr:       envString("HYBRIDRAG_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("HYBRIDRAG_REDIS_PASSWORD"),
		RedisDB:         envInt("HYBRIDRAG_REDIS_DB", 0),
		RedisTTL:        envDuration("HYBRIDRAG_REDIS_TTL", 0),
		MongoURI:        envString("HYBRIDRAG_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   envString("HYBRIDRAG_MONGO_DATABASE", "hybridrag"),
		MongoCollection: envString("HYBRIDRAG_MONGO_COLLECTION", "runs"),

		Chunker:       envString("HYBRIDRAG_CHUNKER", ChunkerWord),
		ChunkWords:    envInt("HYBRIDRAG_CHUNK_WORDS", 800),
		OverlapWords:  envInt("HYBRIDRAG_OVERLAP_WORDS", 200),
		TokenEncoding: envString("HYBRIDRAG_TOKEN_ENCODING", "cl100k_base"),
		ChunkTokens:   envInt("HYBRIDRAG_CHUNK_TOKENS", 512),
		OverlapTokens: envInt("HYBRIDRAG_OVERLAP_TOKENS", 64),

		SearchTopK:  envInt("HYBRIDRAG_SEARCH_TOP_K", 8),
		RerankTopK:  envInt("HYBRIDRAG_RERANK_TOP_K", 5),
		MemoryDepth: envInt("HYBRIDRAG_MEMORY_DEPTH", 3),

		Temperature: envFloat("HYBRIDRAG_TEMPERATURE", 0.7),
		MaxTokens:   envInt("HYBRIDRAG_MAX_TOKENS", 2048),
	}
}

// Validate checks the configuration for the selected backends.
func (c *Config) Validate() error {
	v := NewValidator()

	v.ValidateOneOf("mode", c.Mode, "general", "engineering", "policy", "research")
	v.ValidateOneOf("cloud", c.Cloud, CloudGemini, CloudClaude)
	v.ValidateOneOf("embedder", c.Embedder, EmbedderOllama, EmbedderOpenAI)
	v.ValidateOneOf("vector_store", c.VectorStore, StoreMemory, StorePGVector)
	v.ValidateOneOf("history_store", c.HistoryStore, HistoryMemory, HistoryRedis, HistoryMongo)

	if !c.LocalOnly {
		switch c.Cloud {
		case CloudGemini:
			v.RequireNonEmpty("GEMINI_API_KEY", c.GeminiAPIKey)
			v.RequireNonEmpty("gemini_model", c.GeminiModel)
		case CloudClaude:
			v.RequireNonEmpty("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
			v.RequireNonEmpty("claude_model", c.ClaudeModel)
		}
	}
	v.RequireNonEmpty("ollama_model", c.OllamaModel)

	if c.Embedder == EmbedderOpenAI {
		v.RequireNonEmpty("OPENAI_API_KEY", c.OpenAIAPIKey)
	}
	if c.VectorStore == StorePGVector {
		v.RequireNonEmpty("pg_host", c.PGHost)
		v.ValidateRange("pg_port", c.PGPort, 1, 65535)
		v.RequireNonEmpty("pg_user", c.PGUser)
		v.RequireNonEmpty("pg_database", c.PGDatabase)
		v.ValidateOneOf("pg_sslmode", c.PGSSLMode, "disable", "require", "verify-ca", "verify-full")
		v.RequireNonEmpty("pg_table", c.PGTable)
		v.RequirePositive("embed_dimension", c.EmbedDimension)
	}
	switch c.HistoryStore {
	case HistoryRedis:
		v.RequireNonEmpty("redis_addr", c.RedisAddr)
		v.ValidateRange("redis_db", c.RedisDB, 0, 15)
	case HistoryMongo:
		v.RequireNonEmpty("mongo_uri", c.MongoURI)
		v.RequireNonEmpty("mongo_database", c.MongoDatabase)
		v.RequireNonEmpty("mongo_collection", c.MongoCollection)
	}

	v.ValidateOneOf("chunker", c.Chunker, ChunkerWord, ChunkerToken)
	v.RequirePositive("chunk_words", c.ChunkWords)
	v.ValidateRange("overlap_words", c.OverlapWords, 0, c.ChunkWords-1)
	if c.Chunker == ChunkerToken {
		v.RequireNonEmpty("token_encoding", c.TokenEncoding)
		v.RequirePositive("chunk_tokens", c.ChunkTokens)
		v.ValidateRange("overlap_tokens", c.OverlapTokens, 0, c.ChunkTokens-1)
	}
	v.RequirePositive("search_top_k", c.SearchTopK)
	v.RequirePositive("rerank_top_k", c.RerankTopK)
	v.ValidateFloatRange("temperature", c.Temperature, 0.0, 2.0)
	v.RequirePositive("max_tokens", c.MaxTokens)

	return v.Error()
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
