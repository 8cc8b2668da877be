package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	RateLimit    int `mapstructure:"rate_limit"` // requests per minute per IP, 0 disables
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
	// Concurrency caps the plan requests one responder process serves at once.
	Concurrency int `mapstructure:"concurrency"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// ProvidersConfig selects and locates the upstream collaborators.
type ProvidersConfig struct {
	Geocoder         string  `mapstructure:"geocoder"` // nominatim | google
	Router           string  `mapstructure:"router"`   // osrm | google
	Risk             string  `mapstructure:"risk"`     // http | postgres
	NominatimURL     string  `mapstructure:"nominatim_url"`
	NominatimRPS     float64 `mapstructure:"nominatim_rps"`
	OSRMURL          string  `mapstructure:"osrm_url"`
	RiskServiceURL   string  `mapstructure:"risk_service_url"`
	GoogleMapsAPIKey string  `mapstructure:"google_maps_api_key"`
	UserAgent        string  `mapstructure:"user_agent"`
	RequestTimeout   int     `mapstructure:"request_timeout"`
}

// PlannerConfig tunes the risk-annotation pipeline.
type PlannerConfig struct {
	Stride          int  `mapstructure:"stride"`
	Workers         int  `mapstructure:"workers"`
	Timeout         int  `mapstructure:"timeout"`
	CallTimeout     int  `mapstructure:"call_timeout"`
	KeepDestination bool `mapstructure:"keep_destination"`
}

func (p PlannerConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

func (p PlannerConfig) CallTimeoutDuration() time.Duration {
	return time.Duration(p.CallTimeout) * time.Second
}

type RiskConfig struct {
	CacheTTL int `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional .env file, an optional config
// file and environment variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 35)
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "saferoute")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "saferoute")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.concurrency", 8)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "plan-queue")
	v.SetDefault("providers.geocoder", "nominatim")
	v.SetDefault("providers.router", "osrm")
	v.SetDefault("providers.risk", "http")
	v.SetDefault("providers.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("providers.nominatim_rps", 1.0)
	v.SetDefault("providers.osrm_url", "https://router.project-osrm.org")
	v.SetDefault("providers.risk_service_url", "http://localhost:8000")
	v.SetDefault("providers.google_maps_api_key", "")
	v.SetDefault("providers.user_agent", "saferoute/1.0")
	v.SetDefault("providers.request_timeout", 10)
	v.SetDefault("planner.stride", 10)
	v.SetDefault("planner.workers", 4)
	v.SetDefault("planner.timeout", 30)
	v.SetDefault("planner.call_timeout", 10)
	v.SetDefault("planner.keep_destination", true)
	v.SetDefault("risk.cache_ttl", 3600)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SAFEROUTE_PLANNER_STRIDE → planner.stride
	v.SetEnvPrefix("SAFEROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}

	switch c.Providers.Geocoder {
	case "nominatim":
		if c.Providers.NominatimURL == "" {
			errs = append(errs, "providers.nominatim_url is required for the nominatim geocoder")
		}
		if c.Providers.NominatimRPS <= 0 {
			errs = append(errs, "providers.nominatim_rps must be positive")
		}
	case "google":
	default:
		errs = append(errs, fmt.Sprintf("providers.geocoder must be nominatim or google, got %q", c.Providers.Geocoder))
	}

	switch c.Providers.Router {
	case "osrm":
		if c.Providers.OSRMURL == "" {
			errs = append(errs, "providers.osrm_url is required for the osrm router")
		}
	case "google":
	default:
		errs = append(errs, fmt.Sprintf("providers.router must be osrm or google, got %q", c.Providers.Router))
	}

	if (c.Providers.Geocoder == "google" || c.Providers.Router == "google") && c.Providers.GoogleMapsAPIKey == "" {
		errs = append(errs, "providers.google_maps_api_key is required when a google provider is selected")
	}

	switch c.Providers.Risk {
	case "http":
		if c.Providers.RiskServiceURL == "" {
			errs = append(errs, "providers.risk_service_url is required for the http risk backend")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			errs = append(errs, "database.host and database.dbname are required for the postgres risk backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("providers.risk must be http or postgres, got %q", c.Providers.Risk))
	}

	if c.Providers.RequestTimeout <= 0 {
		errs = append(errs, "providers.request_timeout must be positive")
	}
	if c.Planner.Stride < 1 {
		errs = append(errs, fmt.Sprintf("planner.stride must be >= 1, got %d", c.Planner.Stride))
	}
	if c.NATS.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("nats.concurrency must be at least 1, got %d", c.NATS.Concurrency))
	}
	if c.Planner.Workers < 1 || c.Planner.Workers > 64 {
		errs = append(errs, fmt.Sprintf("planner.workers must be 1-64, got %d", c.Planner.Workers))
	}
	if c.Planner.Timeout <= 0 {
		errs = append(errs, "planner.timeout must be positive")
	}
	if c.Planner.CallTimeout <= 0 || c.Planner.CallTimeout > c.Planner.Timeout {
		errs = append(errs, "planner.call_timeout must be positive and not exceed planner.timeout")
	}
	if c.Risk.CacheTTL < 0 {
		errs = append(errs, "risk.cache_ttl must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
