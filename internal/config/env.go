package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	LLMProvider   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GenModel      string

	EmbedProvider string
	EmbedModel    string
	EmbedDim      int

	VectorBackend string
	VectorPath    string
	Collection    string
	DatabaseURL   string

	CorpusDir      string
	CorpusS3Prefix string
	CorpusChunks   int

	ChatMode    string
	Retrieval   bool
	TopK        int
	MaxHistory  int
	KeepPartial bool

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	JWTSecret   string
	Port        string
	LogLevel    string
	LogFormat   string
	PromptsFile string
	Workers     int
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		LLMProvider:   getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GenModel:      getEnv("GEN_MODEL", "mini"),

		EmbedProvider: getEnv("EMBED_PROVIDER", "openai"),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDim:      getEnvInt("EMBED_DIM", 1536),

		VectorBackend: getEnv("VECTOR_BACKEND", "sqlite"),
		VectorPath:    getEnv("VECTOR_PATH", "./ChromaDB_for_Lab"),
		Collection:    getEnv("COLLECTION", "HW4Collection"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		CorpusDir:      getEnv("CORPUS_DIR", "./HW4-Data"),
		CorpusS3Prefix: getEnv("CORPUS_S3_PREFIX", ""),
		CorpusChunks:   getEnvInt("CORPUS_CHUNKS", 4),

		ChatMode:    getEnv("CHAT_MODE", "direct"),
		Retrieval:   getEnvBool("RETRIEVAL", true),
		TopK:        getEnvInt("TOP_K", 3),
		MaxHistory:  getEnvInt("MAX_HISTORY", 10),
		KeepPartial: getEnvBool("KEEP_PARTIAL", false),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		PromptsFile: getEnv("PROMPTS_FILE", ""),
		Workers:     getEnvInt("INGEST_WORKERS", 2),
	}

	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}
	if cfg.VectorBackend == "pgvector" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// ObjectStorageEnabled reports whether S3 credentials and a bucket were supplied.
func (c *Config) ObjectStorageEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// ResolveModel maps the "mini"/"regular" shorthands to model ids for the active provider.
// Anything else is passed through as an explicit model id; "" falls back to GenModel.
func (c *Config) ResolveModel(choice string) string {
	if choice == "" {
		choice = c.GenModel
	}
	switch strings.ToLower(choice) {
	case "mini":
		if c.LLMProvider == "gemini" {
			return "gemini-1.5-flash"
		}
		return "gpt-4o-mini"
	case "regular":
		if c.LLMProvider == "gemini" {
			return "gemini-1.5-pro"
		}
		return "gpt-4o"
	}
	return choice
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("%s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warnf("%s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}
