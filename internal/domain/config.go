package domain

import "time"

// Config holds the complete FinShield configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Store    StoreConfig    `json:"store"`
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`

	// Background retraining
	Training TrainingConfig `json:"training"`

	// External collaborators
	Collaborators CollaboratorConfig `json:"collaborators"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// TrainingConfig holds the retraining scheduler settings.
type TrainingConfig struct {
	// Interval is the minimum time between successful training cycles.
	Interval time.Duration `json:"interval"`

	// CheckEvery is the scheduler wake-up cadence.
	CheckEvery time.Duration `json:"checkEvery"`

	// WindowLimit caps the number of recent transactions fetched per cycle.
	WindowLimit int `json:"windowLimit"`

	// MinSamples is the floor below which a cycle is skipped.
	MinSamples int `json:"minSamples"`

	// ArtifactPath is where the serialized model bundle is written.
	// Empty disables artifact persistence.
	ArtifactPath string `json:"artifactPath"`
}

// CollaboratorConfig holds endpoints and timeouts for sibling services.
type CollaboratorConfig struct {
	TextClassifierURL string        `json:"textClassifierUrl"`
	RuleServiceURL    string        `json:"ruleServiceUrl"`
	AlertURL          string        `json:"alertUrl"`
	Timeout           time.Duration `json:"timeout"`
	PredictionTTL     time.Duration `json:"predictionTtl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8002,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "./finshield.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Training: TrainingConfig{
			Interval:     300 * time.Second,
			CheckEvery:   time.Minute,
			WindowLimit:  1000,
			MinSamples:   50,
			ArtifactPath: "./fraud_model.json",
		},
		Collaborators: CollaboratorConfig{
			Timeout:       5 * time.Second,
			PredictionTTL: DefaultPredictionTTL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "finshield",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Store = StoreConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "finshield",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
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
