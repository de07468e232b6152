package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	SeedSampleData bool

	Cache    CacheConfig
	Features FeatureConfig
	Serving  ServingConfig
	Training TrainingConfig
	Tracking TrackingConfig
}

// CacheConfig selects the prediction result cache backend.
type CacheConfig struct {
	Backend       string // memory | redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PredictionTTL time.Duration
}

// FeatureConfig tunes feature computation.
type FeatureConfig struct {
	UsageWindowDays     int
	ProductFeatureCount int

	// Engagement score weights; normalized internally if they do not sum to 1.
	LoginWeight   float64
	SessionWeight float64

	// Normalization ceilings for per-day login count and session minutes.
	MaxLoginsPerDay    float64
	MaxSessionMinutes  float64
	MaxPaymentDelayDay float64
}

// ServingConfig holds tier and segment thresholds.
type ServingConfig struct {
	RiskHighThreshold   float64
	RiskMediumThreshold float64
	CLVHighThreshold    float64
	CLVMediumThreshold  float64
	BatchConcurrency    int
}

// TrainingConfig holds model training defaults.
type TrainingConfig struct {
	Algorithm             string // random_forest | gradient_boosted | logistic
	TestSplitFraction     float64
	CrossValidationFolds  int
	RandomSeed            int64
	PredictionHorizonDays int
	MinExamplesPerClass   int
}

// TrackingConfig points at the experiment tracking sink. Empty endpoint
// disables tracking.
type TrackingConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "retainly"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "retainly"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		SeedSampleData: getenvBool("SEED_SAMPLE_DATA", false),

		Cache: CacheConfig{
			Backend:       strings.ToLower(getenv("CACHE_BACKEND", "memory")),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("REDIS_DB", 0),
			PredictionTTL: getenvDuration("PREDICTION_CACHE_TTL", 15*time.Minute),
		},
		Features: FeatureConfig{
			UsageWindowDays:     getenvInt("FEATURE_USAGE_WINDOW_DAYS", 30),
			ProductFeatureCount: getenvInt("FEATURE_PRODUCT_FEATURE_COUNT", 10),
			LoginWeight:         getenvFloat("FEATURE_LOGIN_WEIGHT", 0.5),
			SessionWeight:       getenvFloat("FEATURE_SESSION_WEIGHT", 0.5),
			MaxLoginsPerDay:     getenvFloat("FEATURE_MAX_LOGINS_PER_DAY", 10),
			MaxSessionMinutes:   getenvFloat("FEATURE_MAX_SESSION_MINUTES", 120),
			MaxPaymentDelayDay:  getenvFloat("FEATURE_MAX_PAYMENT_DELAY_DAYS", 30),
		},
		Serving: ServingConfig{
			RiskHighThreshold:   getenvFloat("SERVING_RISK_HIGH", 0.7),
			RiskMediumThreshold: getenvFloat("SERVING_RISK_MEDIUM", 0.3),
			CLVHighThreshold:    getenvFloat("SERVING_CLV_HIGH", 1000),
			CLVMediumThreshold:  getenvFloat("SERVING_CLV_MEDIUM", 500),
			BatchConcurrency:    getenvInt("SERVING_BATCH_CONCURRENCY", 8),
		},
		Training: TrainingConfig{
			Algorithm:             strings.ToLower(getenv("TRAINING_ALGORITHM", "random_forest")),
			TestSplitFraction:     getenvFloat("TRAINING_TEST_SPLIT", 0.2),
			CrossValidationFolds:  getenvInt("TRAINING_CV_FOLDS", 5),
			RandomSeed:            int64(getenvInt("TRAINING_RANDOM_SEED", 42)),
			PredictionHorizonDays: getenvInt("TRAINING_PREDICTION_HORIZON_DAYS", 90),
			MinExamplesPerClass:   getenvInt("TRAINING_MIN_EXAMPLES_PER_CLASS", 2),
		},
		Tracking: TrackingConfig{
			Endpoint: strings.TrimSpace(getenv("TRACKING_ENDPOINT", "")),
			Timeout:  getenvDuration("TRACKING_TIMEOUT", 5*time.Second),
		},
	}
}

// Module wires configuration for the application.
var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
