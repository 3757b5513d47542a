package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
)

// Config holds all service settings, populated from environment variables
// and, optionally, a YAML file using the same keys in lower case.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Remote relief backend.
	BackendBaseURL   string
	HelpRequestURL   string
	BackendTimeout   time.Duration
	BackendRateLimit float64 // requests per second per host
	BackendBurst     int
	MaxResponseBytes int64
	MaxUploadBytes   int64
	FeedCacheTTL     time.Duration

	// Refresh loops.
	HazardRefreshInterval   time.Duration
	IncidentRefreshInterval time.Duration
	DefaultSource           domain.Source

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Submission journal; empty path disables it.
	JournalPath string

	// Event publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

var defaults = map[string]any{
	"http_addr":                 ":8080",
	"log_level":                 "info",
	"log_format":                "json",
	"shutdown_timeout":          "10s",
	"backend_base_url":          "http://localhost:3000",
	"help_request_url":          "",
	"backend_timeout":           "10s",
	"backend_rate_limit":        "5",
	"backend_burst":             "10",
	"max_response_bytes":        "10485760",
	"max_upload_bytes":          "52428800",
	"feed_cache_ttl":            "1m",
	"hazard_refresh_interval":   "15m",
	"incident_refresh_interval": "60s",
	"default_source":            "ALL",
	"mapbox_token":              "",
	"mapbox_enabled":            "",
	"mapbox_timeout":            "5s",
	"mapbox_cache_size":         "1000",
	"journal_path":              "",
	"kafka_enabled":             "false",
	"kafka_brokers":             "localhost:9092",
	"kafka_topic":               "relief-events",
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an optional YAML config file underneath the
// environment. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	r := reader{v: v}
	cfg := &Config{
		HTTPAddr:  r.str("http_addr"),
		LogLevel:  strings.ToLower(r.str("log_level")),
		LogFormat: strings.ToLower(r.str("log_format")),

		ShutdownTimeout: r.duration("shutdown_timeout"),

		BackendBaseURL:   strings.TrimRight(r.str("backend_base_url"), "/"),
		HelpRequestURL:   r.str("help_request_url"),
		BackendTimeout:   r.duration("backend_timeout"),
		BackendRateLimit: r.float("backend_rate_limit"),
		BackendBurst:     r.positiveInt("backend_burst"),
		MaxResponseBytes: int64(r.positiveInt("max_response_bytes")),
		MaxUploadBytes:   int64(r.positiveInt("max_upload_bytes")),
		FeedCacheTTL:     r.nonNegativeDuration("feed_cache_ttl"),

		HazardRefreshInterval:   r.duration("hazard_refresh_interval"),
		IncidentRefreshInterval: r.duration("incident_refresh_interval"),

		MapboxToken:     r.str("mapbox_token"),
		MapboxTimeout:   r.duration("mapbox_timeout"),
		MapboxCacheSize: r.positiveInt("mapbox_cache_size"),

		JournalPath: r.str("journal_path"),

		KafkaEnabled: r.boolean("kafka_enabled"),
		KafkaBrokers: ParseBrokers(r.str("kafka_brokers")),
		KafkaTopic:   r.str("kafka_topic"),
	}

	// MAPBOX_ENABLED defaults to whether a token is set.
	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if r.str("mapbox_enabled") != "" {
		cfg.MapboxEnabled = r.boolean("mapbox_enabled")
	}

	if r.err != nil {
		return nil, r.err
	}

	src, err := domain.ParseSource(r.str("default_source"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SOURCE: %w", err)
	}
	cfg.DefaultSource = src

	if cfg.HelpRequestURL == "" {
		cfg.HelpRequestURL = cfg.BackendBaseURL + "/submitHelpRequest"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if err := requireAbsoluteURL("BACKEND_BASE_URL", c.BackendBaseURL); err != nil {
		return err
	}
	if err := requireAbsoluteURL("HELP_REQUEST_URL", c.HelpRequestURL); err != nil {
		return err
	}
	if c.BackendRateLimit <= 0 {
		return errors.New("invalid BACKEND_RATE_LIMIT: must be positive")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or text", c.LogFormat)
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

// Settings lists the effective configuration keyed by environment variable
// name. Secrets are masked.
func (c *Config) Settings() map[string]string {
	token := ""
	if c.MapboxToken != "" {
		token = "********"
	}
	return map[string]string{
		"HTTP_ADDR":                 c.HTTPAddr,
		"LOG_LEVEL":                 c.LogLevel,
		"LOG_FORMAT":                c.LogFormat,
		"SHUTDOWN_TIMEOUT":          c.ShutdownTimeout.String(),
		"BACKEND_BASE_URL":          c.BackendBaseURL,
		"HELP_REQUEST_URL":          c.HelpRequestURL,
		"BACKEND_TIMEOUT":           c.BackendTimeout.String(),
		"BACKEND_RATE_LIMIT":        strconv.FormatFloat(c.BackendRateLimit, 'f', -1, 64),
		"BACKEND_BURST":             strconv.Itoa(c.BackendBurst),
		"MAX_RESPONSE_BYTES":        strconv.FormatInt(c.MaxResponseBytes, 10),
		"MAX_UPLOAD_BYTES":          strconv.FormatInt(c.MaxUploadBytes, 10),
		"FEED_CACHE_TTL":            c.FeedCacheTTL.String(),
		"HAZARD_REFRESH_INTERVAL":   c.HazardRefreshInterval.String(),
		"INCIDENT_REFRESH_INTERVAL": c.IncidentRefreshInterval.String(),
		"DEFAULT_SOURCE":            string(c.DefaultSource),
		"MAPBOX_TOKEN":              token,
		"MAPBOX_ENABLED":            strconv.FormatBool(c.MapboxEnabled),
		"MAPBOX_TIMEOUT":            c.MapboxTimeout.String(),
		"MAPBOX_CACHE_SIZE":         strconv.Itoa(c.MapboxCacheSize),
		"JOURNAL_PATH":              c.JournalPath,
		"KAFKA_ENABLED":             strconv.FormatBool(c.KafkaEnabled),
		"KAFKA_BROKERS":             strings.Join(c.KafkaBrokers, ","),
		"KAFKA_TOPIC":               c.KafkaTopic,
	}
}

// Keys returns the recognised environment variable names, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, strings.ToUpper(k))
	}
	sort.Strings(keys)
	return keys
}

// ParseBrokers splits a comma-separated broker list, dropping empty entries.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func requireAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an absolute URL", name, raw)
	}
	return nil
}

// reader parses typed values and keeps the first error, naming the variable.
type reader struct {
	v   *viper.Viper
	err error
}

func (r *reader) str(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

func (r *reader) fail(key, reason string) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %s", strings.ToUpper(key), reason)
	}
}

func (r *reader) duration(key string) time.Duration {
	d, err := time.ParseDuration(r.str(key))
	if err != nil || d <= 0 {
		r.fail(key, "must be a positive duration")
		return 0
	}
	return d
}

func (r *reader) nonNegativeDuration(key string) time.Duration {
	d, err := time.ParseDuration(r.str(key))
	if err != nil || d < 0 {
		r.fail(key, "must be a duration of zero or more")
		return 0
	}
	return d
}

func (r *reader) positiveInt(key string) int {
	n, err := strconv.Atoi(r.str(key))
	if err != nil || n <= 0 {
		r.fail(key, "must be a positive integer")
		return 0
	}
	return n
}

func (r *reader) float(key string) float64 {
	f, err := strconv.ParseFloat(r.str(key), 64)
	if err != nil {
		r.fail(key, "must be a number")
		return 0
	}
	return f
}

func (r *reader) boolean(key string) bool {
	b, err := strconv.ParseBool(r.str(key))
	if err != nil {
		r.fail(key, "must be true or false")
		return false
	}
	return b
}
