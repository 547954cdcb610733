package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/lakeflow/pkg/errors"
)

// Config is the validated runtime configuration shared by both pipelines.
type Config struct {
	Source        SourceConfig
	Postgres      PostgresConfig
	ObjectStore   ObjectStoreConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
}

// SourceConfig configures the HTTP source client.
type SourceConfig struct {
	// BaseURL is the API root; dataset paths are appended to it
	BaseURL string
	// Timeout bounds a single fetch, including reading the body
	Timeout time.Duration
	// RateLimit caps requests per second (0 = unlimited)
	RateLimit float64
	UserAgent string
}

// PostgresConfig configures the single relational connection of a run.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// ConnectTimeout bounds establishing the connection
	ConnectTimeout time.Duration
}

// ObjectStoreConfig configures the S3-compatible object store.
type ObjectStoreConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Region        string
	RawBucket     string
	CuratedBucket string
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string
	Format string // console or json
}

// ObservabilityConfig configures metrics push and tracing.
type ObservabilityConfig struct {
	// PushgatewayURL receives run metrics at the end of a run (empty = disabled)
	PushgatewayURL string
	TracingEnabled bool
	ServiceName    string
}

// requiredVars are the settings without a usable default.
var requiredVars = []string{"postgres_password", "minio_password"}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v after applying defaults.
func FromViper(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var missing []string
	for _, key := range requiredVars {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, strings.ToUpper(key))
		}
	}
	if len(missing) > 0 {
		return Config{}, errors.Newf(errors.ErrorTypeConfig,
			"missing required environment variables: %s", strings.Join(missing, ", ")).
			WithDetail("missing", missing)
	}

	port, err := strconv.Atoi(strings.TrimSpace(v.GetString("postgres_port")))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, errors.Newf(errors.ErrorTypeConfig, "invalid POSTGRES_PORT: %q", v.GetString("postgres_port"))
	}

	sourceTimeout, err := durationSetting(v, "source_timeout")
	if err != nil {
		return Config{}, err
	}
	connectTimeout, err := durationSetting(v, "postgres_connect_timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Source: SourceConfig{
			BaseURL:   strings.TrimRight(strings.TrimSpace(v.GetString("source_base_url")), "/"),
			Timeout:   sourceTimeout,
			RateLimit: v.GetFloat64("source_rate_limit"),
			UserAgent: strings.TrimSpace(v.GetString("source_user_agent")),
		},
		Postgres: PostgresConfig{
			Host:           strings.TrimSpace(v.GetString("postgres_host")),
			Port:           port,
			User:           strings.TrimSpace(v.GetString("postgres_user")),
			Password:       v.GetString("postgres_password"),
			Database:       strings.TrimSpace(v.GetString("postgres_db")),
			SSLMode:        strings.TrimSpace(v.GetString("postgres_sslmode")),
			ConnectTimeout: connectTimeout,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:      strings.TrimSpace(v.GetString("minio_endpoint")),
			AccessKey:     strings.TrimSpace(v.GetString("minio_user")),
			SecretKey:     v.GetString("minio_password"),
			UseSSL:        v.GetBool("minio_use_ssl"),
			Region:        strings.TrimSpace(v.GetString("minio_region")),
			RawBucket:     strings.TrimSpace(v.GetString("raw_bucket")),
			CuratedBucket: strings.TrimSpace(v.GetString("curated_bucket")),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		},
		Observability: ObservabilityConfig{
			PushgatewayURL: strings.TrimSpace(v.GetString("metrics_pushgateway_url")),
			TracingEnabled: v.GetBool("tracing_enabled"),
			ServiceName:    strings.TrimSpace(v.GetString("service_name")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// durationSetting reads key as a Go duration ("30s", "1m30s"). A bare
// integer is taken as whole seconds, so SOURCE_TIMEOUT=30 means 30s.
func durationSetting(v *viper.Viper, key string) (time.Duration, error) {
	if d, ok := v.Get(key).(time.Duration); ok {
		return d, nil
	}
	raw := strings.TrimSpace(v.GetString(key))
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig,
			fmt.Sprintf("invalid %s: %q", strings.ToUpper(key), raw))
	}
	return d, nil
}

// SetDefaults registers the default value of every optional setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source_base_url", "https://fakestoreapi.com")
	// durations accept Go syntax or a bare number of seconds
	v.SetDefault("source_timeout", 30*time.Second)
	v.SetDefault("source_rate_limit", 0)
	v.SetDefault("source_user_agent", "lakeflow/1.0")

	v.SetDefault("postgres_user", "ecommerceuser")
	v.SetDefault("postgres_host", "postgresql-service.ecommerce-pipeline.svc.cluster.local")
	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_db", "ecommerce_dw")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("postgres_connect_timeout", 10*time.Second)

	v.SetDefault("minio_endpoint", "minio-service.ecommerce-pipeline.svc.cluster.local:9000")
	v.SetDefault("minio_user", "minioadmin")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("minio_region", "us-east-1")
	v.SetDefault("raw_bucket", "raw-zone")
	v.SetDefault("curated_bucket", "curated-zone")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("metrics_pushgateway_url", "")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("service_name", "lakeflow")
}

// Validate checks values that have defaults but may still be overridden badly.
func (c Config) Validate() error {
	if c.Source.BaseURL == "" {
		return errors.New(errors.ErrorTypeConfig, "SOURCE_BASE_URL must not be empty")
	}
	if _, err := url.ParseRequestURI(c.Source.BaseURL); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid SOURCE_BASE_URL")
	}
	if c.Source.Timeout <= 0 {
		return errors.New(errors.ErrorTypeConfig, "SOURCE_TIMEOUT must be positive")
	}
	if c.Source.RateLimit < 0 {
		return errors.New(errors.ErrorTypeConfig, "SOURCE_RATE_LIMIT must not be negative")
	}
	if c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "" {
		return errors.New(errors.ErrorTypeConfig, "POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER must not be empty")
	}
	if c.ObjectStore.Endpoint == "" {
		return errors.New(errors.ErrorTypeConfig, "MINIO_ENDPOINT must not be empty")
	}
	if c.ObjectStore.RawBucket == "" || c.ObjectStore.CuratedBucket == "" {
		return errors.New(errors.ErrorTypeConfig, "RAW_BUCKET and CURATED_BUCKET must not be empty")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "LOG_FORMAT must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// ConnString returns a pgx connection URL.
func (p PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Address(),
		Path:   "/" + p.Database,
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	if p.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(p.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Address returns host:port.
func (p PostgresConfig) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// EndpointURL returns the endpoint with an explicit scheme.
func (o ObjectStoreConfig) EndpointURL() string {
	if strings.HasPrefix(o.Endpoint, "http://") || strings.HasPrefix(o.Endpoint, "https://") {
		return o.Endpoint
	}
	if o.UseSSL {
		return "https://" + o.Endpoint
	}
	return "http://" + o.Endpoint
}
