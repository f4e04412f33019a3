// Package config provides configuration management for the disease literature harvester.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "HARVESTER"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the harvester.
type Config struct {
	// Harvest contains run-level defaults and retry policy.
	Harvest HarvestConfig `mapstructure:"harvest"`
	// Sources contains per-source API settings.
	Sources SourcesConfig `mapstructure:"sources"`
	// Dedup contains deduplication settings.
	Dedup DedupConfig `mapstructure:"dedup"`
	// Output contains export settings.
	Output OutputConfig `mapstructure:"output"`
	// Database contains optional PostgreSQL persistence settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka contains optional run-completed event publishing settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Server contains HTTP API settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// HarvestConfig holds run defaults and the scheduler's retry policy.
type HarvestConfig struct {
	// MaxResultsPerSource caps the raw records taken from one (disease, source) stream.
	MaxResultsPerSource int `mapstructure:"max_results_per_source"`
	// YearsBack is used when a run has no explicit date range.
	YearsBack int `mapstructure:"years_back"`
	// MaxConcurrentStreams bounds how many (disease, source) streams run at once.
	MaxConcurrentStreams int `mapstructure:"max_concurrent_streams"`
	// MaxAttempts is the number of attempts per page, counting the first, on retryable failures.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RequestTimeout bounds each adapter call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// BackoffBase is the first retry delay; each retry doubles it.
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	// BackoffMax caps a single retry delay.
	BackoffMax time.Duration `mapstructure:"backoff_max"`
}

// SourcesConfig holds configuration for every literature source.
type SourcesConfig struct {
	// Mailto is the contact address sent to OpenAlex for its polite pool.
	Mailto string `mapstructure:"mailto"`

	PubMed    SourceConfig `mapstructure:"pubmed"`
	EuropePMC SourceConfig `mapstructure:"europe_pmc"`
	OpenAlex  SourceConfig `mapstructure:"openalex"`
	Core      SourceConfig `mapstructure:"core"`
	BioRxiv   SourceConfig `mapstructure:"biorxiv"`
	Springer  SourceConfig `mapstructure:"springer"`
}

// SourceConfig holds configuration for one literature source.
type SourceConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is loaded from the environment only, e.g. HARVESTER_SOURCES_CORE_API_KEY.
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RequestsPerWindow is the number of requests allowed per Window.
	RequestsPerWindow int `mapstructure:"requests_per_window"`
	// Window is the length of the rate window.
	Window time.Duration `mapstructure:"window"`
	// MaxConcurrent is the number of requests allowed in flight.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// PageSize is the number of records requested per page.
	PageSize int `mapstructure:"page_size"`
}

// Lookup returns the configuration of one source.
func (c *SourcesConfig) Lookup(id domain.SourceID) (SourceConfig, bool) {
	switch id {
	case domain.SourcePubMed:
		return c.PubMed, true
	case domain.SourceEuropePMC:
		return c.EuropePMC, true
	case domain.SourceOpenAlex:
		return c.OpenAlex, true
	case domain.SourceCore:
		return c.Core, true
	case domain.SourceBioRxiv:
		return c.BioRxiv, true
	case domain.SourceSpringer:
		return c.Springer, true
	default:
		return SourceConfig{}, false
	}
}

// DedupConfig holds deduplication settings.
type DedupConfig struct {
	// Priority orders sources when choosing the best record of a duplicate group.
	Priority []string `mapstructure:"priority"`
	// TitleThreshold is the minimum title token-set overlap for a fuzzy match.
	TitleThreshold float64 `mapstructure:"title_threshold"`
}

// PrioritySources parses Priority into source IDs.
func (c *DedupConfig) PrioritySources() ([]domain.SourceID, error) {
	out := make([]domain.SourceID, 0, len(c.Priority))
	for _, p := range c.Priority {
		id, err := domain.ParseSourceID(p)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// OutputConfig holds export settings.
type OutputConfig struct {
	// Dir is the directory export files are written to.
	Dir string `mapstructure:"dir"`
	// Formats lists the default export formats.
	Formats []string `mapstructure:"formats"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled turns on persistence of finished runs.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationAutoRun applies embedded migrations on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// KafkaConfig holds run-completed event publishing settings.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic receives one message per finished run.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// RequestTopic, when set, is consumed by serve for harvest requests.
	RequestTopic string `mapstructure:"request_topic"`
	// GroupID is the consumer group for RequestTopic.
	GroupID string `mapstructure:"group_id"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxActiveRuns bounds harvests running at once through the API.
	MaxActiveRuns int `mapstructure:"max_active_runs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from defaults, an optional config file and
// environment variables. A non-empty path reads that file instead of
// searching the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/disease-literature-harvester")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates API keys exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Sources.PubMed.APIKey = os.Getenv(EnvPrefix + "_SOURCES_PUBMED_API_KEY")
	cfg.Sources.EuropePMC.APIKey = os.Getenv(EnvPrefix + "_SOURCES_EUROPE_PMC_API_KEY")
	cfg.Sources.OpenAlex.APIKey = os.Getenv(EnvPrefix + "_SOURCES_OPENALEX_API_KEY")
	cfg.Sources.Core.APIKey = os.Getenv(EnvPrefix + "_SOURCES_CORE_API_KEY")
	cfg.Sources.BioRxiv.APIKey = os.Getenv(EnvPrefix + "_SOURCES_BIORXIV_API_KEY")
	cfg.Sources.Springer.APIKey = os.Getenv(EnvPrefix + "_SOURCES_SPRINGER_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.max_results_per_source", 1000)
	v.SetDefault("harvest.years_back", 5)
	v.SetDefault("harvest.max_concurrent_streams", 4)
	v.SetDefault("harvest.max_attempts", 5)
	v.SetDefault("harvest.request_timeout", "60s")
	v.SetDefault("harvest.backoff_base", "1s")
	v.SetDefault("harvest.backoff_max", "60s")

	v.SetDefault("sources.mailto", "")
	setSourceDefaults(v, "pubmed", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", true, 3, 100) // 3 req/s without an NCBI key
	setSourceDefaults(v, "europe_pmc", "https://www.ebi.ac.uk/europepmc/webservices/rest", true, 5, 100)
	setSourceDefaults(v, "openalex", "https://api.openalex.org", true, 10, 100)
	setSourceDefaults(v, "core", "https://api.core.ac.uk", true, 1, 50)
	setSourceDefaults(v, "biorxiv", "https://api.biorxiv.org", true, 1, 100)
	setSourceDefaults(v, "springer", "https://api.springernature.com", true, 1, 25)

	v.SetDefault("dedup.priority", []string{"pubmed", "europe_pmc", "openalex", "core", "springer", "biorxiv"})
	v.SetDefault("dedup.title_threshold", 0.9)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.formats", []string{"json"})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "harvester")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "disease_literature")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_auto_run", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.harvester.run_completed")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.request_topic", "")
	v.SetDefault("kafka.group_id", "disease-literature-harvester")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_active_runs", 2)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func setSourceDefaults(v *viper.Viper, key, baseURL string, enabled bool, perSecond, pageSize int) {
	prefix := "sources." + key + "."
	v.SetDefault(prefix+"enabled", enabled)
	v.SetDefault(prefix+"base_url", baseURL)
	v.SetDefault(prefix+"timeout", "30s")
	v.SetDefault(prefix+"requests_per_window", perSecond)
	v.SetDefault(prefix+"window", "1s")
	v.SetDefault(prefix+"max_concurrent", perSecond)
	v.SetDefault(prefix+"page_size", pageSize)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Harvest.MaxResultsPerSource <= 0 {
		return fmt.Errorf("harvest max_results_per_source must be positive")
	}
	if c.Harvest.YearsBack <= 0 {
		return fmt.Errorf("harvest years_back must be positive")
	}
	if c.Harvest.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("harvest max_concurrent_streams must be positive")
	}
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest max_attempts must be positive")
	}
	if c.Harvest.RequestTimeout <= 0 {
		return fmt.Errorf("harvest request_timeout must be positive")
	}
	if c.Harvest.BackoffMax < c.Harvest.BackoffBase {
		return fmt.Errorf("harvest backoff_max (%s) must be >= backoff_base (%s)", c.Harvest.BackoffMax, c.Harvest.BackoffBase)
	}

	for _, id := range domain.AllSources() {
		sc, _ := c.Sources.Lookup(id)
		if sc.RequestsPerWindow <= 0 || sc.Window <= 0 || sc.MaxConcurrent <= 0 {
			return fmt.Errorf("source %s: requests_per_window, window and max_concurrent must be positive", id)
		}
	}

	if _, err := c.Dedup.PrioritySources(); err != nil {
		return fmt.Errorf("dedup priority: %w", err)
	}
	if c.Dedup.TitleThreshold <= 0 || c.Dedup.TitleThreshold > 1 {
		return fmt.Errorf("dedup title_threshold must be in (0, 1]")
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
