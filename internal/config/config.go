package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Backend  BackendConfig  `mapstructure:"backend" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Site     SiteConfig     `mapstructure:"site" validate:"required"`
	Share    ShareConfig    `mapstructure:"share" validate:"required"`
	Solver   SolverConfig   `mapstructure:"solver"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port          int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel      string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
}

// StorageConfig locates the artifact directory.
type StorageConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// Backend kinds for the task store and challenge registry.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// BackendConfig selects where task state and challenge sessions live.
type BackendConfig struct {
	Kind string `mapstructure:"kind" validate:"required,oneof=memory redis"`
}

// RedisConfig is used when Backend.Kind is "redis".
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix" validate:"required"`
}

// DatabaseConfig is optional. When URL is empty the artifact catalog
// falls back to scanning the storage directory.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// Wrong-answer policies.
const (
	WrongAnswerReuse   = "reuse"
	WrongAnswerReissue = "reissue"
)

// TaskConfig tunes the background runner and the retention sweeper.
type TaskConfig struct {
	WorkerCount          int    `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize            int    `mapstructure:"queue_size" validate:"gte=1"`
	JobTimeoutSeconds    int    `mapstructure:"job_timeout_seconds" validate:"gte=0"`
	RetentionMinutes     int    `mapstructure:"retention_minutes" validate:"gte=0"`
	ChallengeTTLMinutes  int    `mapstructure:"challenge_ttl_minutes" validate:"gte=0"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds" validate:"gte=1"`
	WrongAnswerPolicy    string `mapstructure:"wrong_answer_policy" validate:"required,oneof=reuse reissue"`
}

// JobTimeout returns the per-job deadline; zero disables it.
func (c TaskConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// Retention returns how long terminal tasks are kept; zero keeps them forever.
func (c TaskConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

// ChallengeTTL returns how long a task may wait for an answer; zero waits forever.
func (c TaskConfig) ChallengeTTL() time.Duration {
	return time.Duration(c.ChallengeTTLMinutes) * time.Minute
}

// SweepInterval returns the period of the retention sweeper.
func (c TaskConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// SiteConfig holds the patent site endpoints.
type SiteConfig struct {
	VerifyURL             string `mapstructure:"verify_url" validate:"required,url"`
	VerifyCodeURL         string `mapstructure:"verifycode_url" validate:"required,url"`
	SearchURL             string `mapstructure:"search_url" validate:"required,url"`
	SecurePDFURL          string `mapstructure:"securepdf_url" validate:"required,url"`
	UserAgent             string `mapstructure:"user_agent" validate:"required"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gte=1"`
}

// RequestTimeout returns the HTTP client timeout.
func (c SiteConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ShareConfig configures signed download links.
type ShareConfig struct {
	Secret         string `mapstructure:"secret" validate:"required,min=32"`
	LinkTTLMinutes int    `mapstructure:"link_ttl_minutes" validate:"gte=1"`
}

// LinkTTL returns the lifetime of a share link.
func (c ShareConfig) LinkTTL() time.Duration {
	return time.Duration(c.LinkTTLMinutes) * time.Minute
}

// SolverConfig enables the optional captcha hint solver.
type SolverConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
}

// Enabled reports whether a solver should be constructed.
func (c SolverConfig) Enabled() bool {
	return c.GeminiAPIKey != ""
}
