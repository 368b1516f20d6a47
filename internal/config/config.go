package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Storage backends.
const (
	StoreSurreal  = "surreal"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// LLM providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// Storage backend and SQL DSN (postgres/sqlite)
	Store string
	DSN   string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Sentiment strategy: fast, llm or hybrid
	SentimentProvider string

	// Language model
	LLMProvider     string
	LLMModel        string
	LLMRateLimit    float64 // requests per second, 0 disables limiting
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Enrichment
	BatchSize    int
	TunablesFile string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Store: getEnv("SIGNALROOM_STORE", StoreSQLite),
		DSN:   getEnv("SIGNALROOM_DSN", "signalroom.db"),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "signals"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "enrichment"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		SentimentProvider: getEnv("SIGNALROOM_PROVIDER", "hybrid"),

		LLMProvider:     getEnv("SIGNALROOM_LLM_PROVIDER", ProviderOllama),
		LLMModel:        getEnv("SIGNALROOM_LLM_MODEL", "llama3.2"),
		LLMRateLimit:    getEnvFloat("SIGNALROOM_LLM_RPS", 2),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		BatchSize:    getEnvInt("SIGNALROOM_BATCH_SIZE", 50),
		TunablesFile: getEnv("SIGNALROOM_TUNABLES", ""),

		LogFile:  getEnv("SIGNALROOM_LOG_FILE", "/tmp/signalroom.log"),
		LogLevel: parseLogLevel(getEnv("SIGNALROOM_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f < 0 {
		return defaultVal
	}
	return f
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
