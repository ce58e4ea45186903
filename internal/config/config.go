package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Pipeline PipelineConfig
	LLM      LLMConfig
	STT      STTConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPS   int
	RateLimitBurst int
}

type PipelineConfig struct {
	SpoolDir       string // empty means the OS temp dir
	MaxUploadBytes int64
	Timeout        time.Duration
}

type LLMConfig struct {
	OpenAIKey      string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	LocalBaseURL   string
	LocalModel     string
}

type STTConfig struct {
	Backend       string // "local" or "openai"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBaseURL  string // default: "http://localhost:8178"
	LocalModel    string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type JobsConfig struct {
	ResultTTL   time.Duration
	Concurrency int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rps, err := getEnvInt("RATE_LIMIT_RPS", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	maxUpload, err := getEnvInt64("MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	timeoutSecs, err := getEnvInt("PIPELINE_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_TIMEOUT_SECONDS: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	resultTTLHours, err := getEnvInt("JOB_RESULT_TTL_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_RESULT_TTL_HOURS: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Pipeline: PipelineConfig{
			SpoolDir:       getEnv("SPOOL_DIR", ""),
			MaxUploadBytes: maxUpload,
			Timeout:        time.Duration(timeoutSecs) * time.Second,
		},
		LLM: LLMConfig{
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("OPENAI_CHAT_MODEL", "gpt-4"),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			LocalBaseURL:   getEnv("LOCAL_LLM_BASE_URL", "http://localhost:11434"),
			LocalModel:     getEnv("LOCAL_LLM_MODEL", "ggml-gpt4all-j"),
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "local"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", "whisper-1"),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
			LocalModel:    getEnv("STT_LOCAL_MODEL", "base"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Jobs: JobsConfig{
			ResultTTL:   time.Duration(resultTTLHours) * time.Hour,
			Concurrency: concurrency,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate rejects values the service cannot start with. A missing
// OPENAI_API_KEY is deliberately not an error here: the server boots
// without it and only requests selecting a remote engine fail.
func (c *Config) Validate() error {
	var bad []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		bad = append(bad, "SERVER_PORT")
	}
	if c.Pipeline.MaxUploadBytes <= 0 {
		bad = append(bad, "MAX_UPLOAD_BYTES")
	}
	if c.Pipeline.Timeout <= 0 {
		bad = append(bad, "PIPELINE_TIMEOUT_SECONDS")
	}
	if c.STT.Backend != "local" && c.STT.Backend != "openai" {
		bad = append(bad, "STT_BACKEND")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		bad = append(bad, "RATE_LIMIT_RPS/RATE_LIMIT_BURST")
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid env vars: %s", strings.Join(bad, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
