// Package config loads service settings. Values are layered: built-in
// defaults, then an optional YAML file with upper-case keys, then a .env
// file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string `yaml:"APP_ENV" envconfig:"APP_ENV"`
	GRPCPort int    `yaml:"GRPC_PORT" envconfig:"GRPC_PORT"`
	HTTPPort int    `yaml:"HTTP_PORT" envconfig:"HTTP_PORT"`

	Auth    AuthConfig    `yaml:",inline"`
	Storage StorageConfig `yaml:",inline"`
	Cache   CacheConfig   `yaml:",inline"`
	LLM     LLMConfig     `yaml:",inline"`
	Media   MediaConfig   `yaml:",inline"`
	Kafka   KafkaConfig   `yaml:",inline"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"JWT_SECRET" envconfig:"JWT_SECRET"`
	// Password is the shared secret exchanged for a token.
	Password string        `yaml:"AUTH_PASSWORD" envconfig:"AUTH_PASSWORD"`
	TokenTTL time.Duration `yaml:"TOKEN_TTL" envconfig:"TOKEN_TTL"`
	Port     int           `yaml:"AUTH_PORT" envconfig:"AUTH_PORT"`
}

type StorageConfig struct {
	DataDir     string `yaml:"DATA_DIR" envconfig:"DATA_DIR"`
	BlobURL     string `yaml:"BLOB_URL" envconfig:"BLOB_URL"`
	DatabaseURL string `yaml:"DATABASE_URL" envconfig:"DATABASE_URL"`
	DBHost      string `yaml:"DB_HOST" envconfig:"DB_HOST"`
	DBPort      int    `yaml:"DB_PORT" envconfig:"DB_PORT"`
	DBUser      string `yaml:"DB_USER" envconfig:"DB_USER"`
	DBPassword  string `yaml:"DB_PASSWORD" envconfig:"DB_PASSWORD"`
	DBName      string `yaml:"DB_NAME" envconfig:"DB_NAME"`
	DBSSLMode   string `yaml:"DB_SSLMODE" envconfig:"DB_SSLMODE"`
	Serverless  bool   `yaml:"SERVERLESS" envconfig:"SERVERLESS"`
	// Snapshot is a JSON copy of the collection served read-only when the
	// primary backend fails.
	Snapshot string `yaml:"JOBS_SNAPSHOT" envconfig:"JOBS_SNAPSHOT"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"REDIS_ADDR" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"REDIS_PASSWORD" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"REDIS_DB" envconfig:"REDIS_DB"`
	RedisKey      string        `yaml:"REDIS_KEY" envconfig:"REDIS_KEY"`
	TTL           time.Duration `yaml:"CACHE_TTL" envconfig:"CACHE_TTL"`
	PushTimeout   time.Duration `yaml:"PUSH_TIMEOUT" envconfig:"PUSH_TIMEOUT"`
}

type LLMConfig struct {
	Provider           string        `yaml:"LLM_PROVIDER" envconfig:"LLM_PROVIDER"`
	OpenAIAPIKey       string        `yaml:"OPENAI_API_KEY" envconfig:"OPENAI_API_KEY"`
	GroqAPIKey         string        `yaml:"GROQ_API_KEY" envconfig:"GROQ_API_KEY"`
	Model              string        `yaml:"LLM_MODEL" envconfig:"LLM_MODEL"`
	TranscriptionModel string        `yaml:"TRANSCRIPTION_MODEL" envconfig:"TRANSCRIPTION_MODEL"`
	BaseURL            string        `yaml:"LLM_BASE_URL" envconfig:"LLM_BASE_URL"`
	Timeout            time.Duration `yaml:"LLM_TIMEOUT" envconfig:"LLM_TIMEOUT"`
	MaxTranscriptChars int           `yaml:"MAX_TRANSCRIPT_CHARS" envconfig:"MAX_TRANSCRIPT_CHARS"`
}

type MediaConfig struct {
	UploadDir       string `yaml:"UPLOAD_DIR" envconfig:"UPLOAD_DIR"`
	KeyPrefix       string `yaml:"MEDIA_KEY_PREFIX" envconfig:"MEDIA_KEY_PREFIX"`
	MaxTranscribeMB int    `yaml:"MAX_TRANSCRIBE_MB" envconfig:"MAX_TRANSCRIBE_MB"`
	MaxUploadMB     int    `yaml:"MAX_UPLOAD_MB" envconfig:"MAX_UPLOAD_MB"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"KAFKA_BROKERS" envconfig:"KAFKA_BROKERS"`
	Topic   string   `yaml:"TOPIC" envconfig:"TOPIC"`
	GroupID string   `yaml:"KAFKA_GROUP_ID" envconfig:"KAFKA_GROUP_ID"`
	// InstanceID tags events so an instance ignores its own.
	InstanceID string `yaml:"INSTANCE_ID" envconfig:"INSTANCE_ID"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	instance, _ := os.Hostname()
	return &Config{
		Env:      "production",
		GRPCPort: 50051,
		HTTPPort: 8080,
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Port:     8081,
		},
		Storage: StorageConfig{
			DataDir:   "data",
			DBPort:    5432,
			DBSSLMode: "disable",
		},
		Cache: CacheConfig{
			RedisKey:    "hiring:jobs",
			TTL:         10 * time.Minute,
			PushTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:           "openai",
			Timeout:            120 * time.Second,
			MaxTranscriptChars: 100000,
		},
		Media: MediaConfig{
			UploadDir:       "uploads",
			KeyPrefix:       "answers/",
			MaxTranscribeMB: 25,
			MaxUploadMB:     100,
		},
		Kafka: KafkaConfig{
			Topic:      "hiring.jobs",
			GroupID:    "hiring",
			InstanceID: instance,
		},
	}
}

// Load layers configPath and envFile over the defaults, applies the process
// environment and validates the result. Missing files are skipped.
func Load(configPath, envFile string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
			}
		}
	}

	if envFile != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Env] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Env)
	}
	for name, port := range map[string]int{"GRPC_PORT": c.GRPCPort, "HTTP_PORT": c.HTTPPort, "AUTH_PORT": c.Auth.Port} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: %d (must be between 1 and 65535)", name, port)
		}
	}
	if c.GRPCPort == c.HTTPPort {
		return fmt.Errorf("GRPC_PORT and HTTP_PORT must differ (both %d)", c.GRPCPort)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "groq" {
		return fmt.Errorf("invalid LLM_PROVIDER: %s (must be openai or groq)", c.LLM.Provider)
	}
	if c.LLM.MaxTranscriptChars < 1 {
		return fmt.Errorf("MAX_TRANSCRIPT_CHARS must be at least 1")
	}
	if c.Media.MaxTranscribeMB < 1 {
		return fmt.Errorf("MAX_TRANSCRIBE_MB must be at least 1")
	}
	if c.Media.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be at least 1")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// DatabaseDSN returns DATABASE_URL, or a postgres DSN assembled from the
// DB_* fields when DB_HOST is set, or "" when no database is configured.
func (c *Config) DatabaseDSN() string {
	s := c.Storage
	switch {
	case s.DatabaseURL != "":
		return s.DatabaseURL
	case s.DBHost != "":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.DBHost, s.DBPort, s.DBUser, s.DBPassword, s.DBName, s.DBSSLMode)
	default:
		return ""
	}
}

// APIKey returns the key of the selected provider.
func (c *Config) APIKey() string {
	if c.LLM.Provider == "groq" {
		return c.LLM.GroqAPIKey
	}
	return c.LLM.OpenAIAPIKey
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{Env=%s, GRPCPort=%d, HTTPPort=%d, Blob=%t, Database=%t, Redis=%t, "+
		"LLM.Provider=%s, LLM.Configured=%t, Kafka.Brokers=%d, Kafka.Topic=%s}",
		c.Env, c.GRPCPort, c.HTTPPort, c.Storage.BlobURL != "", c.DatabaseDSN() != "", c.Cache.RedisAddr != "",
		c.LLM.Provider, c.APIKey() != "", len(c.Kafka.Brokers), c.Kafka.Topic)
}
