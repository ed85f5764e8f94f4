package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/yinsee/internal/kv"
)

// ServerConfig captures all tunable parameters for the API and consumer
// processes. Defaults are overlaid by an optional YAML file (CONFIG_FILE) and
// then by environment variables.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Profile   string `yaml:"profile"`
	KVBackend string `yaml:"kv_backend"`

	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	PGDSN         string `yaml:"pg_dsn"`
	SQLiteDir     string `yaml:"sqlite_dir"`
	RunMigrations bool   `yaml:"migrate"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	KafkaGroup   string   `yaml:"kafka_group"`

	GeoIPEndpoint string        `yaml:"geoip_endpoint"`
	GeoCacheTTL   time.Duration `yaml:"geo_cache_ttl"`
	GeoTimeout    time.Duration `yaml:"geo_timeout"`

	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Profile:         "default",
		KVBackend:       kv.BackendMemory,
		SQLiteDir:       "data",
		KafkaTopic:      "marketplace-activity",
		KafkaGroup:      "yinsee-stats-consumer",
		GeoCacheTTL:     5 * time.Minute,
		GeoTimeout:      10 * time.Second,
		LogLevel:        "info",
		MetricsAddr:     ":2112",
	}
}

// LoadServerConfig reads CONFIG_FILE (if set) and the environment.
func LoadServerConfig() (ServerConfig, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load overlays the YAML file at path (skipped when empty or missing) and the
// environment onto the defaults.
func Load(path string) (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			errs = append(errs, fmt.Errorf("read config %s: %w", path, err))
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				errs = append(errs, fmt.Errorf("parse config %s: %w", path, err))
			}
		}
	}

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.Profile, "PROFILE")
	setStringFromEnv(&cfg.KVBackend, "KV_BACKEND")

	setStringFromEnv(&cfg.RedisURL, "REDIS_ADDR")
	setStringFromEnv(&cfg.RedisURL, "REDIS_URL")
	if v, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
		cfg.RedisPassword = v
	}
	setStringFromEnv(&cfg.PGDSN, "PG_DSN")
	setStringFromEnv(&cfg.SQLiteDir, "SQLITE_DIR")
	setBoolFromEnv(&cfg.RunMigrations, "MIGRATE", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	setStringFromEnv(&cfg.GeoIPEndpoint, "GEOIP_ENDPOINT")
	setDurationFromEnv(&cfg.GeoCacheTTL, "GEO_CACHE_TTL", &errs)
	setDurationFromEnv(&cfg.GeoTimeout, "GEO_TIMEOUT", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")

	errs = append(errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

// KVOptions maps the storage settings onto kv.Open options.
func (c ServerConfig) KVOptions() kv.Options {
	return kv.Options{
		Backend:       c.KVBackend,
		RedisURL:      c.RedisURL,
		RedisPassword: c.RedisPassword,
		PGDSN:         c.PGDSN,
		SQLiteDir:     c.SQLiteDir,
		Migrate:       c.RunMigrations,
	}
}

func (c ServerConfig) validate() []error {
	var errs []error
	switch strings.ToLower(c.KVBackend) {
	case kv.BackendMemory:
	case kv.BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("KV_BACKEND=redis requires REDIS_URL or REDIS_ADDR"))
		}
	case kv.BackendPostgres:
		if c.PGDSN == "" {
			errs = append(errs, fmt.Errorf("KV_BACKEND=postgres requires PG_DSN"))
		}
	case kv.BackendSQLite:
		if c.SQLiteDir == "" {
			errs = append(errs, fmt.Errorf("KV_BACKEND=sqlite requires SQLITE_DIR"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", kv.ErrUnknownBackend, c.KVBackend))
	}
	if strings.ContainsAny(c.Profile, ": ") || c.Profile == "" {
		errs = append(errs, fmt.Errorf("PROFILE must be non-empty without spaces or colons"))
	}
	if c.GeoTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GEO_TIMEOUT must be > 0"))
	}
	return errs
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
