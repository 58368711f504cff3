package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string

	// Derivation
	GapThresholdDays   int
	FallbackCourseDays int
	ChangeWindowMonths int
	CorpusStartDate    time.Time
	ReferenceDate      time.Time
	WorkerCount        int

	// Sampling
	SampleSeed int64

	// Reference data
	CodeListPath string

	// Feature cache
	FeatureCacheTTL time.Duration

	// Malformed environment values collected during Load. An unset
	// variable means default; a value that fails to parse is fatal.
	loadErrs []error
}

func Load() *Config {
	var errs []error
	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8085"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration(&errs, "READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration(&errs, "WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "medguard"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "medguard123"),
		PostgresDB:       getEnv("POSTGRES_DB", "medguard"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv(&errs, "REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:   getEnv("KAFKA_AUDIT_TOPIC", "derivation-audit"),

		GapThresholdDays:   getIntEnv(&errs, "GAP_THRESHOLD_DAYS", 28),
		FallbackCourseDays: getIntEnv(&errs, "FALLBACK_COURSE_DAYS", 30),
		ChangeWindowMonths: getIntEnv(&errs, "CHANGE_WINDOW_MONTHS", 3),
		CorpusStartDate:    getDate(&errs, "CORPUS_START_DATE", time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)),
		ReferenceDate:      getDate(&errs, "REFERENCE_DATE", today()),
		WorkerCount:        getIntEnv(&errs, "WORKER_COUNT", 8),

		SampleSeed: int64(getIntEnv(&errs, "SAMPLE_SEED", 42)),

		CodeListPath: getEnv("CODE_LIST_PATH", ""),

		FeatureCacheTTL: getDuration(&errs, "FEATURE_CACHE_TTL", 5*time.Minute),
	}
	cfg.loadErrs = errs
	return cfg
}

// Validate rejects settings that would invalidate every downstream
// derivation. Called once at startup, before any data is read.
func (c *Config) Validate() error {
	if len(c.loadErrs) > 0 {
		return errors.Join(c.loadErrs...)
	}
	if c.GapThresholdDays < 0 {
		return fmt.Errorf("GAP_THRESHOLD_DAYS must be >= 0, got %d", c.GapThresholdDays)
	}
	if c.FallbackCourseDays < 0 {
		return fmt.Errorf("FALLBACK_COURSE_DAYS must be >= 0, got %d", c.FallbackCourseDays)
	}
	if c.ChangeWindowMonths <= 0 {
		return fmt.Errorf("CHANGE_WINDOW_MONTHS must be > 0, got %d", c.ChangeWindowMonths)
	}
	if c.CorpusStartDate.IsZero() {
		return fmt.Errorf("CORPUS_START_DATE is unset")
	}
	if c.ReferenceDate.Before(c.CorpusStartDate) {
		return fmt.Errorf("REFERENCE_DATE %s precedes CORPUS_START_DATE %s",
			c.ReferenceDate.Format("2006-01-02"), c.CorpusStartDate.Format("2006-01-02"))
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be > 0, got %d", c.WorkerCount)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(errs *[]error, key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return intValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(errs *[]error, key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return duration
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func getDate(errs *[]error, key string, defaultValue time.Time) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid date %q (want YYYY-MM-DD)", key, value))
		return defaultValue
	}
	return parsed
}
