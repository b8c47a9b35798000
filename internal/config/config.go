// Package config loads process settings from the environment and tool
// configuration documents from disk.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config stores environment-driven settings.
type Config struct {
	// ConfigPath is the tool configuration document used by run, serve and batch.
	ConfigPath string `env:"TASKWEAVE_CONFIG" envDefault:"config/tool_config.json"`
	// SchemaPath is the tool registry used by generate. Empty means the built-in registry.
	SchemaPath string `env:"TASKWEAVE_SCHEMA"`
	LogLevel   string `env:"TASKWEAVE_LOG_LEVEL" envDefault:"info"`
	Addr       string `env:"TASKWEAVE_ADDR" envDefault:":8080"`
	// GeminiAPIKey selects the Gemini backend. Empty means the echo mock.
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	Model        string `env:"TASKWEAVE_MODEL" envDefault:"gemini-2.0-flash"`
	// RemoteTimeout bounds each remote-call tool.
	RemoteTimeout time.Duration `env:"TASKWEAVE_REMOTE_TIMEOUT" envDefault:"20s"`
	// RemoteRatePerMinute caps outgoing remote calls. Zero disables the limit.
	RemoteRatePerMinute int           `env:"TASKWEAVE_REMOTE_RATE_PER_MINUTE" envDefault:"0"`
	CacheTTL            time.Duration `env:"TASKWEAVE_CACHE_TTL" envDefault:"10m"`
	ShutdownTimeout     time.Duration `env:"TASKWEAVE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// JobRetention is how long finished async jobs stay queryable.
	JobRetention time.Duration `env:"TASKWEAVE_JOB_RETENTION" envDefault:"1h"`
}

// Load parses environment variables into Config.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
