package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. PATENTGATE_SERVER_PORT.
const EnvPrefix = "PATENTGATE"

// defaultUserAgent mimics a desktop browser; the patent site rejects bare clients.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given YAML file instead of
// searching for config.yaml in the working directory.
func LoadFile(path string) (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus the rules that span sections.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Backend.Kind == BackendRedis && cfg.Redis.Addr == "" {
		return errors.New("config validation failed: redis.addr is required when backend.kind is redis")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_base_url", "http://localhost:8080")

	v.SetDefault("storage.dir", "./pdfs")

	v.SetDefault("backend.kind", BackendMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "patentgate")

	v.SetDefault("database.url", "")

	v.SetDefault("task.worker_count", 8)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.job_timeout_seconds", 180)
	v.SetDefault("task.retention_minutes", 1440)
	v.SetDefault("task.challenge_ttl_minutes", 0)
	v.SetDefault("task.sweep_interval_seconds", 300)
	v.SetDefault("task.wrong_answer_policy", WrongAnswerReuse)

	v.SetDefault("site.verify_url", "")
	v.SetDefault("site.verifycode_url", "")
	v.SetDefault("site.search_url", "")
	v.SetDefault("site.securepdf_url", "")
	v.SetDefault("site.user_agent", defaultUserAgent)
	v.SetDefault("site.request_timeout_seconds", 30)

	v.SetDefault("share.secret", "")
	v.SetDefault("share.link_ttl_minutes", 60)

	v.SetDefault("solver.gemini_api_key", "")
	v.SetDefault("solver.model_name", "gemini-2.0-flash")
}
