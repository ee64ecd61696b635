package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the engine's process configuration, loaded once at startup.
type Config struct {
	Port        int
	Environment string
	LogLevel    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TerraformURL string
	KubernetesURL string
	HelmURL       string
	FSURL         string
	GeneratorURL  string
	StateURL      string

	MaxTokensPerTask int
	RollbackBackupDir string
	MaxRetries         int
	RetryBaseInterval  time.Duration
}

// Load reads configuration from the environment, applying a .env file
// first if one is present.
func Load() (*Config, error) {
	godotenv.Load()

	port := 8080
	if portStr := os.Getenv("ENGINE_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if d, err := strconv.Atoi(dbStr); err == nil {
			redisDB = d
		}
	}

	maxTokens := 4096
	if mt := os.Getenv("MAX_TOKENS_PER_TASK"); mt != "" {
		if v, err := strconv.Atoi(mt); err == nil {
			maxTokens = v
		}
	}

	maxRetries := 3
	if mr := os.Getenv("EXECUTOR_MAX_RETRIES"); mr != "" {
		if v, err := strconv.Atoi(mr); err == nil {
			maxRetries = v
		}
	}

	retryBase := time.Second
	if rb := os.Getenv("EXECUTOR_RETRY_BASE_MS"); rb != "" {
		if v, err := strconv.Atoi(rb); err == nil {
			retryBase = time.Duration(v) * time.Millisecond
		}
	}

	return &Config{
		Port:        port,
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		TerraformURL:  getEnv("TERRAFORM_ADAPTER_URL", "http://localhost:9001"),
		KubernetesURL: getEnv("KUBERNETES_ADAPTER_URL", "http://localhost:9002"),
		HelmURL:       getEnv("HELM_ADAPTER_URL", "http://localhost:9003"),
		FSURL:         getEnv("FS_ADAPTER_URL", "http://localhost:9004"),
		GeneratorURL:  getEnv("GENERATOR_ADAPTER_URL", "http://localhost:9005"),
		StateURL:      getEnv("STATE_ADAPTER_URL", "http://localhost:9006"),

		MaxTokensPerTask:   maxTokens,
		RollbackBackupDir:  getEnv("ROLLBACK_BACKUP_DIR", "/var/lib/iacengine/rollback"),
		MaxRetries:         maxRetries,
		RetryBaseInterval:  retryBase,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
