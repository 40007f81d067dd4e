package domain

import "time"

// Config holds the complete Railpledge configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Edition determines which backing services are used
	Edition Edition `json:"edition"`

	// Policy holds the underwriting constants
	Policy PolicyConfig `json:"policy"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Predictor  PredictorConfig  `json:"predictor"`
	Tracking   TrackingConfig   `json:"tracking"`
	Notifier   NotifierConfig   `json:"notifier"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// Edition represents the deployment edition.
type Edition string

const (
	// EditionCommunity runs on SQLite + in-process channels + LRU cache
	EditionCommunity Edition = "community"

	// EditionPro runs on PostgreSQL + NATS + Redis
	EditionPro Edition = "pro"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// PolicyConfig holds the underwriting constants of the product.
type PolicyConfig struct {
	// Bookable window: a journey departing in exactly MinLeadDays or
	// exactly MaxLeadDays is rejected (exclusive bounds).
	MinLeadDays float64 `json:"minLeadDays"`
	MaxLeadDays float64 `json:"maxLeadDays"`

	// ProbabilityCap is the maximum insurable delay probability,
	// in percent. Compared against the unrounded probability.
	ProbabilityCap float64 `json:"probabilityCap"`

	// ProbabilityTTL bounds how long a memoized probability is served.
	ProbabilityTTL time.Duration `json:"probabilityTTL"`

	// EarlyArrivalGuard is the window within which an apparent early
	// arrival is treated as genuine rather than a date-rollover bug.
	EarlyArrivalGuard time.Duration `json:"earlyArrivalGuard"`

	// MatrixPath optionally overrides the embedded payout matrix.
	MatrixPath string `json:"matrixPath,omitempty"`

	// ExclusionsPath optionally points at a JSON file of CEL coverage
	// exclusion rules loaded at startup.
	ExclusionsPath string `json:"exclusionsPath,omitempty"`
}

// PredictorConfig holds settings for the delay-prediction service.
type PredictorConfig struct {
	BaseURL string        `json:"baseUrl"`
	Timeout time.Duration `json:"timeout"`
}

// TrackingConfig holds settings for the train-tracking service.
type TrackingConfig struct {
	BaseURL string        `json:"baseUrl"`
	Timeout time.Duration `json:"timeout"`
}

// NotifierConfig holds settings for the chat notification worker.
type NotifierConfig struct {
	Enabled    bool          `json:"enabled"`
	WebhookURL string        `json:"webhookUrl"`
	Timeout    time.Duration `json:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// DefaultConfig returns a default configuration for the Community
// edition.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Edition: EditionCommunity,
		Policy: PolicyConfig{
			MinLeadDays:       1,
			MaxLeadDays:       10,
			ProbabilityCap:    40,
			ProbabilityTTL:    10 * time.Minute,
			EarlyArrivalGuard: 4 * time.Hour,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./railpledge.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 500,
			LocalTTL:     10 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Predictor: PredictorConfig{
			BaseURL: "http://localhost:9091",
			Timeout: 10 * time.Second,
		},
		Tracking: TrackingConfig{
			BaseURL: "http://localhost:9092",
			Timeout: 10 * time.Second,
		},
		Notifier: NotifierConfig{
			Enabled: false,
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "railpledge",
		},
	}
}

// ProConfig returns a configuration for the Pro edition.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Edition = EditionPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "railpledge",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   500,
		LocalTTL:       10 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
