package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		LogMode string `yaml:"log_mode"`
	} `yaml:"server"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Contest struct {
		CacheTTL           string `yaml:"cache_ttl"`
		LeaderboardTTL     string `yaml:"leaderboard_ttl"`
		MaxConflictRetries int    `yaml:"max_conflict_retries"`
		DefaultLanguage    string `yaml:"default_language"`
	} `yaml:"contest"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
}

// Load reads YAML config from path, then applies .env and environment
// overrides. A missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return cfg, err
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Mongo.Database = "contests"
	cfg.Contest.CacheTTL = "10m"
	cfg.Contest.LeaderboardTTL = "5s"
	cfg.Contest.MaxConflictRetries = 3
	cfg.AMQP.Exchange = "contest.events"
	return cfg
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.LogMode, "LOG_MODE")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.AMQP.URL, "AMQP_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
