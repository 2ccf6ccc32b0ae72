package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the submission pipeline.
type Config struct {
	AppName          string
	AppEnv           string
	OpsPort          string
	DatabaseURL      string
	RedisURL         string
	QueueName        string
	WorkerCount      int
	JobTimeout       time.Duration
	MaxAttempts      int
	RetryBaseBackoff time.Duration
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	SignedURLTTL     time.Duration
	AIProvider       string
	OpenAIAPIKey     string
	OpenAIModel      string
	GeminiAPIKey     string
	GeminiModel      string
	AIMaxTokens      int
	MaxImageMB       int
	NATSURL          string
	NATSSubject      string
}

// OpsAddress returns the address the operational HTTP server should listen on.
func (c Config) OpsAddress() string {
	if strings.HasPrefix(c.OpsPort, ":") {
		return c.OpsPort
	}

	return fmt.Sprintf(":%s", c.OpsPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FEEDFORWARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "FeedForward Worker")
	v.SetDefault("app.env", "development")
	v.SetDefault("ops.port", "9090")
	v.SetDefault("queue.name", "feedforward:submissions")
	v.SetDefault("worker.count", 4)
	v.SetDefault("job.timeout", "2m")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_backoff", "2s")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.signed_url_ttl", "60m")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("max_image_mb", 4)
	v.SetDefault("nats.subject", "feedforward.submissions")

	jobTimeout, err := time.ParseDuration(v.GetString("job.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid job timeout: %w", err)
	}

	baseBackoff, err := time.ParseDuration(v.GetString("retry.base_backoff"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid retry base backoff: %w", err)
	}

	signedTTL, err := time.ParseDuration(v.GetString("storage.signed_url_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid signed url ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		OpsPort:          v.GetString("ops.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		QueueName:        v.GetString("queue.name"),
		WorkerCount:      v.GetInt("worker.count"),
		JobTimeout:       jobTimeout,
		MaxAttempts:      v.GetInt("retry.max_attempts"),
		RetryBaseBackoff: baseBackoff,
		StorageEndpoint:  v.GetString("storage.endpoint"),
		StorageAccessKey: v.GetString("storage.access_key"),
		StorageSecretKey: v.GetString("storage.secret_key"),
		StorageBucket:    v.GetString("storage.bucket"),
		StorageUseSSL:    v.GetBool("storage.use_ssl"),
		SignedURLTTL:     signedTTL,
		AIProvider:       strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:     v.GetString("openai.api_key"),
		OpenAIModel:      v.GetString("openai.model"),
		GeminiAPIKey:     v.GetString("gemini.api_key"),
		GeminiModel:      v.GetString("gemini.model"),
		AIMaxTokens:      v.GetInt("ai.max_tokens"),
		MaxImageMB:       v.GetInt("max_image_mb"),
		NATSURL:          v.GetString("nats.url"),
		NATSSubject:      v.GetString("nats.subject"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	if cfg.MaxImageMB <= 0 {
		cfg.MaxImageMB = 4
	}

	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("openai api key must be provided when ai provider is openai")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("gemini api key must be provided when ai provider is gemini")
		}
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	return cfg, nil
}
