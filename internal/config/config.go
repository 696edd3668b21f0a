package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSystemPrompt is sent with every model call unless SYSTEM_PROMPT
// overrides it.
const DefaultSystemPrompt = "You are a chatbot that responses to user prompts, if you don't know an answer say I'm sorry I don't know.  Ensure responses are accurate and not offensive"

type Config struct {
	HTTPAddr     string
	SystemPrompt string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// AI provider
	AIProvider        string
	BedrockModelID    string
	AWSRegion         string
	AWSMaxAttempts    int
	AIMaxAttempts     int
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// History
	HistoryDriver string
	DDBTableName  string
	DBDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	RabbitMaxRetries  int
	RabbitRetryDelay  time.Duration
	WorkerConcurrency int
}

func Load() Config {
	return Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		SystemPrompt: getEnv("SYSTEM_PROMPT", DefaultSystemPrompt),

		LogFile:  os.Getenv("LOG_FILE"),
		LogLevel: ParseLogLevel(getEnv("LOG_LEVEL", "INFO")),

		AIProvider:        getEnv("AI_PROVIDER", "bedrock"),
		BedrockModelID:    getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		AWSRegion:         os.Getenv("AWS_REGION"),
		AWSMaxAttempts:    getEnvInt("AWS_MAX_ATTEMPTS", 15),
		AIMaxAttempts:     getEnvInt("AI_MAX_ATTEMPTS", 15),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		HistoryDriver: getEnv("HISTORY_DRIVER", "dynamodb"),
		DDBTableName:  getEnv("DDB_TABLE_NAME", "ChatbotHistory"),
		// DSN demo：
		// app:apppass@tcp(127.0.0.1:3306)/chatbot?charset=utf8mb4&parseTime=true&loc=Local
		DBDSN:         os.Getenv("DB_DSN"),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getEnv("RABBIT_QUEUE", "chat_turns"),
		RabbitMaxRetries:  getEnvInt("RABBIT_MAX_RETRIES", 3),
		RabbitRetryDelay:  time.Duration(getEnvInt("RABBIT_RETRY_DELAY_SECONDS", 10)) * time.Second,
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt ignores values that do not parse.
func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func ParseLogLevel(s string) slog.Level {
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
