package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Solver   SolverConfig
	Results  ResultsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig governs the scheduling worker and its message bus wiring.
type SolverConfig struct {
	SlotMinutes  int
	MaxSolveTime time.Duration
	Stream       string
	Group        string
	Consumer     string
	Workers      int
}

// ResultsConfig controls storage of decoded schedules and signed result URLs.
type ResultsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	PublicBaseURL   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Solver = SolverConfig{
		SlotMinutes:  v.GetInt("SOLVER_SLOT_MINUTES"),
		MaxSolveTime: parseDuration(v.GetString("SOLVER_MAX_SOLVE_TIME"), 10*time.Second),
		Stream:       v.GetString("SOLVER_STREAM"),
		Group:        v.GetString("SOLVER_GROUP"),
		Consumer:     v.GetString("SOLVER_CONSUMER"),
		Workers:      v.GetInt("SOLVER_WORKERS"),
	}

	cfg.Results = ResultsConfig{
		StorageDir:      v.GetString("RESULTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("RESULTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RESULTS_SIGNED_URL_TTL"), 24*time.Hour),
		PublicBaseURL:   v.GetString("RESULTS_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "studio_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_SLOT_MINUTES", 5)
	v.SetDefault("SOLVER_MAX_SOLVE_TIME", "10s")
	v.SetDefault("SOLVER_STREAM", "solver:requests")
	v.SetDefault("SOLVER_GROUP", "solver-workers")
	v.SetDefault("SOLVER_CONSUMER", "worker-1")
	v.SetDefault("SOLVER_WORKERS", 2)

	v.SetDefault("RESULTS_STORAGE_DIR", "./results")
	v.SetDefault("RESULTS_SIGNED_URL_SECRET", "dev_results_secret")
	v.SetDefault("RESULTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("RESULTS_PUBLIC_BASE_URL", "http://localhost:8080")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
