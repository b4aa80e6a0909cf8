package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	MaxUploadBytes int64

	// Database
	DBDriver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MySQLHost     string
	MySQLPort     string
	MySQLUser     string
	MySQLPassword string
	MySQLDB       string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers    []string
	KafkaGroupID    string
	PredictionTopic string
	PredictionDLQ   string
	KafkaEnabled    bool
	ConsumeAttempts int

	// Auth. JWTSecret has no default; services refuse to start without it.
	JWTSecret   string
	JWTIssuer   string
	JWTTokenTTL time.Duration

	// Model
	ModelArtifactDir string
	ModelName        string
	VocabularyPath   string

	// Training
	DatasetDir        string
	LabelSeed         int64
	TrainingWorkers   int
	TrainingEpochs    int
	TrainingRate      float64
	TrainingTestRatio float64

	// Gateway specific
	RateLimitRPS   int
	RateLimitBurst int
	AllowedOrigins []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),
		MaxUploadBytes: getInt64Env("MAX_UPLOAD_BYTES", 16*1024*1024),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "maternal"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "maternal123"),
		PostgresDB:       getEnv("POSTGRES_DB", "maternal_risk"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MySQLHost:     getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:     getEnv("MYSQL_PORT", "3306"),
		MySQLUser:     getEnv("MYSQL_USER", "root"),
		MySQLPassword: getEnv("MYSQL_PASSWORD", ""),
		MySQLDB:       getEnv("MYSQL_DB", "maternal_risk"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "maternal-risk"),
		PredictionTopic: getEnv("KAFKA_PREDICTION_TOPIC", "risk-predictions"),
		PredictionDLQ:   getEnv("KAFKA_PREDICTION_DLQ", "risk-predictions-dlq"),
		KafkaEnabled:    getBoolEnv("KAFKA_ENABLED", true),
		ConsumeAttempts: getIntEnv("KAFKA_CONSUME_ATTEMPTS", 5),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "maternal-risk"),
		JWTTokenTTL: getDuration("JWT_TOKEN_TTL", 12*time.Hour),

		ModelArtifactDir: getEnv("MODEL_ARTIFACT_DIR", "./artifacts"),
		ModelName:        getEnv("MODEL_NAME", "pregnancy-risk"),
		VocabularyPath:   getEnv("VOCABULARY_PATH", ""),

		DatasetDir:        getEnv("DATASET_DIR", "./datasets"),
		LabelSeed:         getInt64Env("LABEL_SEED", 42),
		TrainingWorkers:   getIntEnv("TRAINING_WORKERS", 1),
		TrainingEpochs:    getIntEnv("TRAINING_EPOCHS", 500),
		TrainingRate:      getFloatEnv("TRAINING_LEARNING_RATE", 0.1),
		TrainingTestRatio: getFloatEnv("TRAINING_TEST_RATIO", 0.2),

		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),
		AllowedOrigins: getStringSliceEnv("ALLOWED_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma separated value.
func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
