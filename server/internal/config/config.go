package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cocoaplant/cocoaplant/pkg/rules"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultLogLevel       = "info"
	DefaultRoleHeader     = "X-Plant-Role"
	DefaultMaxUploadBytes = 10 << 20
	DefaultAlertCooldown  = 15 * time.Minute
	DefaultModel          = "gemini-3-flash-preview"
	DefaultReportCacheTTL = 15 * time.Minute
	DefaultReportTimeout  = 30 * time.Second
	DefaultReportInterval = time.Second
	DefaultQueueTick      = 500 * time.Millisecond
	DefaultQueueRetention = 10 * time.Second
	DefaultStreamInterval = 2 * time.Second
	DefaultStreamWindow   = 50
	DefaultSnapshotTTL    = 5 * time.Minute
)

// Config holds the server-side configuration parsed from the `server:`
// section of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Auth       AuthConfig       `yaml:"auth"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Rules      rules.Thresholds `yaml:"rules"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Report     ReportConfig     `yaml:"report"`
	Queue      QueueConfig      `yaml:"queue"`
	Stream     StreamConfig     `yaml:"stream"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Compliance ComplianceConfig `yaml:"compliance"`
}

// AuthConfig controls API key checking and role resolution on the REST API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from (default "x-api-key").
	Header string `yaml:"header"`

	// RoleHeader is the HTTP header carrying the caller's role (default "X-Plant-Role").
	RoleHeader string `yaml:"role_header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// IngestConfig controls batch file uploads.
type IngestConfig struct {
	// DemoMode replaces files of unsupported formats with a generated demo dataset.
	DemoMode bool `yaml:"demo_mode"`

	// DemoRows is the size of the generated dataset (default 20).
	DemoRows int `yaml:"demo_rows"`

	// MaxRows rejects uploads with more data rows. 0 disables the limit.
	MaxRows int `yaml:"max_rows"`

	// MaxUploadBytes caps the request body size (default 10 MiB).
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// AlertsConfig holds alert feed settings and webhook delivery targets.
type AlertsConfig struct {
	// Cooldown suppresses repeats of the same finding. Defaults to 15m; a
	// negative value disables suppression.
	Cooldown time.Duration `yaml:"cooldown"`

	// MaxHistory bounds the alert and notification feeds. 0 keeps everything.
	MaxHistory int `yaml:"max_history"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// ReportConfig configures the narrative report generator.
type ReportConfig struct {
	// Provider is one of: genai | none. With "none" (or no key) every
	// report returns the fallback text.
	Provider string `yaml:"provider"`

	// APIKeyEnv is the name of the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	Model    string        `yaml:"model"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`

	// MinInterval spaces outbound generation calls (default 1s).
	MinInterval time.Duration `yaml:"min_interval"`
}

// APIKey returns the generator API key resolved from the environment.
func (r ReportConfig) APIKey() string {
	if r.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(r.APIKeyEnv)
}

// QueueConfig controls the background job queue.
type QueueConfig struct {
	Tick      time.Duration `yaml:"tick"`
	Retention time.Duration `yaml:"retention"`
}

// StreamConfig controls the simulated sensor stream.
type StreamConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`

	// Window is how many recent readings per sensor feed anomaly detection.
	Window int `yaml:"window"`

	// Sigma is the anomaly z-score threshold (default 3).
	Sigma float64 `yaml:"sigma"`
}

// SnapshotConfig controls in-memory process snapshot retention.
type SnapshotConfig struct {
	// TTL is how long a drying snapshot stays live after its last update.
	TTL time.Duration `yaml:"ttl"`
}

// ComplianceConfig holds export compliance rules.
type ComplianceConfig struct {
	Rules []rules.ExportRule `yaml:"rules"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML config data. It is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			LogLevel: DefaultLogLevel,
			Auth: AuthConfig{
				RoleHeader: DefaultRoleHeader,
			},
			Ingest: IngestConfig{
				MaxUploadBytes: DefaultMaxUploadBytes,
			},
			Rules: rules.DefaultThresholds(),
			Alerts: AlertsConfig{
				Cooldown: DefaultAlertCooldown,
			},
			Report: ReportConfig{
				Provider:    "genai",
				APIKeyEnv:   "GEMINI_API_KEY",
				Model:       DefaultModel,
				CacheTTL:    DefaultReportCacheTTL,
				Timeout:     DefaultReportTimeout,
				MinInterval: DefaultReportInterval,
			},
			Queue: QueueConfig{
				Tick:      DefaultQueueTick,
				Retention: DefaultQueueRetention,
			},
			Stream: StreamConfig{
				Enabled:  true,
				Interval: DefaultStreamInterval,
				Window:   DefaultStreamWindow,
				Sigma:    3,
			},
			Snapshot: SnapshotConfig{
				TTL: DefaultSnapshotTTL,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Auth.RoleHeader == "" {
		return fmt.Errorf("server.auth.role_header must not be empty")
	}
	if s.Ingest.DemoRows < 0 || s.Ingest.MaxRows < 0 {
		return fmt.Errorf("server.ingest row counts must not be negative")
	}
	if s.Ingest.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.ingest.max_upload_bytes must be positive")
	}
	if s.Rules.MoistureMargin < 0 || s.Rules.DefectRateLimit < 0 ||
		s.Rules.ConsecutiveBatches < 0 || s.Rules.PredictedQualityFloor < 0 {
		return fmt.Errorf("server.rules thresholds must not be negative")
	}
	for i, wh := range s.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, wh.Type)
		}
	}
	if s.Alerts.MaxHistory < 0 {
		return fmt.Errorf("server.alerts.max_history must not be negative")
	}
	switch s.Report.Provider {
	case "genai", "none":
	default:
		return fmt.Errorf("server.report.provider %q unknown: want genai|none", s.Report.Provider)
	}
	if s.Report.CacheTTL < 0 || s.Report.Timeout < 0 || s.Report.MinInterval < 0 {
		return fmt.Errorf("server.report durations must not be negative")
	}
	if s.Queue.Tick <= 0 || s.Queue.Retention < 0 {
		return fmt.Errorf("server.queue.tick must be positive and retention not negative")
	}
	if s.Stream.Interval <= 0 {
		return fmt.Errorf("server.stream.interval must be positive")
	}
	if s.Stream.Window < 2 {
		return fmt.Errorf("server.stream.window %d must be at least 2", s.Stream.Window)
	}
	if s.Snapshot.TTL < 0 {
		return fmt.Errorf("server.snapshot.ttl must not be negative")
	}
	for i, r := range s.Compliance.Rules {
		switch r.Type {
		case rules.ExportRuleQuality, rules.ExportRuleCountry:
		default:
			return fmt.Errorf("server.compliance.rules[%d].type %q unknown: want QUALITY|COUNTRY", i, r.Type)
		}
	}
	return nil
}
