// Package config loads tracker settings from flags, TRACKER_* environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/soupbadger/rpi-space/model"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TRACKER_GEOCODE_API_KEY for geocode.api_key.
const EnvPrefix = "TRACKER"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete tracker configuration.
type Config struct {
	Satellite    SatelliteConfig    `mapstructure:"satellite"`
	Position     PositionConfig     `mapstructure:"position"`
	Geocode      GeocodeConfig      `mapstructure:"geocode"`
	Notification NotificationConfig `mapstructure:"notification"`
	Display      DisplayConfig      `mapstructure:"display"`
	Clock        ClockConfig        `mapstructure:"clock"`
	Track        TrackConfig        `mapstructure:"track"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Journal      JournalConfig      `mapstructure:"journal"`
	Server       ServerConfig       `mapstructure:"server"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

// SatelliteConfig names the tracked object.
type SatelliteConfig struct {
	Name     string `mapstructure:"name"`
	NoradID  uint32 `mapstructure:"norad_id"`
	TLELine1 string `mapstructure:"tle_line1"`
	TLELine2 string `mapstructure:"tle_line2"`
}

// PositionConfig controls position refresh.
type PositionConfig struct {
	Source   string        `mapstructure:"source"` // api | tle
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

// GeocodeConfig controls reverse geocoding.
type GeocodeConfig struct {
	URL      string        `mapstructure:"url"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

// NotificationConfig controls how long error notifications stay visible.
type NotificationConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

// DisplayConfig describes the presentation canvas.
type DisplayConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ClockConfig drives the frame loop.
type ClockConfig struct {
	Mode          string        `mapstructure:"mode"` // realtime | accelerated
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	Start         string        `mapstructure:"start"`    // RFC 3339, accelerated mode only
	Duration      time.Duration `mapstructure:"duration"` // 0 runs until interrupted
}

// TrackConfig sizes the in-memory ground track.
type TrackConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// CacheConfig enables the Redis city cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// JournalConfig enables the SQL fix journal when Driver is set.
type JournalConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | pgx
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig holds listen addresses. An empty address disables the server.
type ServerConfig struct {
	APIAddr     string        `mapstructure:"api_addr"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	GRPCAddr    string        `mapstructure:"grpc_addr"`
	ConnectWait time.Duration `mapstructure:"connect_wait"`
}

// TracingConfig controls span export. OTLPEndpoint is only read by the otlp
// exporter.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // stdout | otlp
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// SetDefaults registers every key with its default on v. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("satellite.name", "ISS")
	v.SetDefault("satellite.norad_id", 25544)
	v.SetDefault("satellite.tle_line1", "")
	v.SetDefault("satellite.tle_line2", "")

	v.SetDefault("position.source", "api")
	v.SetDefault("position.url", "http://api.open-notify.org/iss-now.json")
	v.SetDefault("position.timeout", 5*time.Second)
	v.SetDefault("position.interval", 2*time.Second)

	v.SetDefault("geocode.url", "https://geocode.maps.co/reverse")
	v.SetDefault("geocode.api_key", "")
	v.SetDefault("geocode.timeout", 10*time.Second)
	v.SetDefault("geocode.interval", 10*time.Second)

	v.SetDefault("notification.duration", 5*time.Second)

	v.SetDefault("display.width", 800)
	v.SetDefault("display.height", 480)

	v.SetDefault("clock.mode", "realtime")
	v.SetDefault("clock.frame_interval", 100*time.Millisecond)
	v.SetDefault("clock.start", "")
	v.SetDefault("clock.duration", time.Duration(0))

	v.SetDefault("track.capacity", 3000)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("journal.driver", "")
	v.SetDefault("journal.dsn", "")

	v.SetDefault("server.api_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.connect_wait", 30*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.service_name", "iss-tracker")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.otlp_insecure", true)
}

// Load reads configuration into a Config. When path is non-empty the YAML
// file it names is merged beneath environment variables and bound flags.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the tracker cannot run with.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(c.Satellite.Name) == "" {
		add("satellite.name must not be empty")
	}

	switch c.MotionSource() {
	case model.MotionSourceAPI:
		if err := checkURL(c.Position.URL); err != nil {
			add("position.url: %v", err)
		}
	case model.MotionSourceTLE:
		if c.Satellite.TLELine1 == "" || c.Satellite.TLELine2 == "" {
			add("position.source tle requires satellite.tle_line1 and satellite.tle_line2")
		}
	default:
		add("position.source %q must be api or tle", c.Position.Source)
	}

	for name, d := range map[string]time.Duration{
		"position.interval":     c.Position.Interval,
		"position.timeout":      c.Position.Timeout,
		"geocode.interval":      c.Geocode.Interval,
		"geocode.timeout":       c.Geocode.Timeout,
		"notification.duration": c.Notification.Duration,
		"clock.frame_interval":  c.Clock.FrameInterval,
	} {
		if d <= 0 {
			add("%s must be positive, got %s", name, d)
		}
	}
	if c.Clock.Duration < 0 {
		add("clock.duration must not be negative")
	}

	if err := checkURL(c.Geocode.URL); err != nil {
		add("geocode.url: %v", err)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		add("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}

	switch strings.ToLower(c.Clock.Mode) {
	case "realtime", "":
	case "accelerated":
		if _, err := c.StartTime(); err != nil {
			add("clock.start: %v", err)
		}
	default:
		add("clock.mode %q must be realtime or accelerated", c.Clock.Mode)
	}

	if c.Track.Capacity < 0 {
		add("track.capacity must not be negative")
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		add("cache.ttl must be positive when caching is enabled")
	}
	switch strings.ToLower(c.Journal.Driver) {
	case "":
	case "sqlite", "pgx":
		if c.Journal.DSN == "" {
			add("journal.dsn is required when journal.driver is set")
		}
	default:
		add("journal.driver %q must be sqlite or pgx", c.Journal.Driver)
	}

	switch strings.ToLower(c.Tracing.Exporter) {
	case "stdout":
	case "otlp":
		if c.Tracing.Enabled && strings.TrimSpace(c.Tracing.OTLPEndpoint) == "" {
			add("tracing.otlp_endpoint is required for the otlp exporter")
		}
	default:
		add("tracing.exporter %q must be stdout or otlp", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		add("tracing.sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}

	return errors.Join(errs...)
}

// MotionSource returns the configured position source.
func (c *Config) MotionSource() model.MotionSource {
	return model.ParseMotionSource(strings.ToLower(strings.TrimSpace(c.Position.Source)))
}

// SatelliteModel returns the tracked satellite description.
func (c *Config) SatelliteModel() model.Satellite {
	return model.Satellite{
		Name:         c.Satellite.Name,
		NoradID:      c.Satellite.NoradID,
		MotionSource: c.MotionSource(),
		TLELine1:     c.Satellite.TLELine1,
		TLELine2:     c.Satellite.TLELine2,
	}
}

// Canvas returns the presentation canvas.
func (c *Config) Canvas() model.Canvas {
	return model.Canvas{Width: c.Display.Width, Height: c.Display.Height}
}

// StartTime parses Clock.Start, defaulting to the current time when unset.
func (c *Config) StartTime() (time.Time, error) {
	if c.Clock.Start == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, c.Clock.Start)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
