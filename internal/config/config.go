package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort           string
	WorkerMetricsPort string
	LogLevel          string

	SchemaPath   string
	ManifestPath string
	ArtifactDir  string

	MLflowTrackingURI string
	MLflowTimeout     time.Duration
	InferenceTimeout  time.Duration
	ModelLoadTimeout  time.Duration

	EMIAnnualRate     float64
	CoverageWarnRatio float64

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	NATSURL           string
	NATSSubmitSubject string
	NATSResultSubject string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIMaxConnections int
	APIMaxBodyBytes   int64

	ResilienceRetryMaxAttempts int
	ResilienceRetryBaseBackoff time.Duration
	ResilienceRetryMaxBackoff  time.Duration
	ResilienceAttemptTimeout   time.Duration
	ResilienceBreakerEnabled   bool
	ResilienceBreakerMinReqs   int
	ResilienceBreakerRatio     float64
	ResilienceBreakerTimeout   time.Duration
}

// Load reads an optional .env file (already-set variables win) and then the environment.
func Load() Config {
	_ = godotenv.Load(mustEnv("ENV_FILE", ".env"))

	return Config{
		APIPort:           mustEnv("API_PORT", "8080"),
		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
		LogLevel:          mustEnv("LOG_LEVEL", "info"),

		SchemaPath:   mustEnv("SCHEMA_PATH", "./artifacts/feature_columns.txt"),
		ManifestPath: mustEnv("MANIFEST_PATH", ""),
		ArtifactDir:  mustEnv("ARTIFACT_DIR", "./artifacts"),

		MLflowTrackingURI: mustEnv("MLFLOW_TRACKING_URI", "http://localhost:5000"),
		MLflowTimeout:     mustEnvDuration("MLFLOW_TIMEOUT", 10*time.Second),
		InferenceTimeout:  mustEnvDuration("INFERENCE_TIMEOUT", 15*time.Second),
		ModelLoadTimeout:  mustEnvDuration("MODEL_LOAD_TIMEOUT", 30*time.Second),

		EMIAnnualRate:     mustEnvFloat("EMI_ANNUAL_RATE", 0.10),
		CoverageWarnRatio: mustEnvFloat("COVERAGE_WARN_RATIO", 0.6),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		RedisAddr:     mustEnv("REDIS_ADDR", ""),
		RedisPassword: mustEnv("REDIS_PASSWORD", ""),
		RedisDB:       mustEnvInt("REDIS_DB", 0),
		RedisTTL:      mustEnvDuration("REDIS_TTL", 15*time.Minute),

		NATSURL:           mustEnv("NATS_URL", ""),
		NATSSubmitSubject: mustEnv("NATS_SUBMIT_SUBJECT", "emi.applications.submitted"),
		NATSResultSubject: mustEnv("NATS_RESULT_SUBJECT", "emi.predictions.completed"),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIMaxConnections: mustEnvInt("API_MAX_CONNECTIONS", 256),
		APIMaxBodyBytes:   int64(mustEnvInt("API_MAX_BODY_BYTES", 1<<20)),

		ResilienceRetryMaxAttempts: mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceRetryBaseBackoff: mustEnvDuration("RESILIENCE_RETRY_BASE_BACKOFF", 100*time.Millisecond),
		ResilienceRetryMaxBackoff:  mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 800*time.Millisecond),
		ResilienceAttemptTimeout:   mustEnvDuration("RESILIENCE_ATTEMPT_TIMEOUT", 0),
		ResilienceBreakerEnabled:   mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinReqs:   mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		ResilienceBreakerRatio:     mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
		ResilienceBreakerTimeout:   mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

// mustEnvDuration accepts Go durations ("750ms") or plain seconds ("30").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
