// Package config loads the daemon configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	golobby "github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

type Config struct {
	Gateway  GatewayConfig
	Server   ServerConfig
	Data     DataConfig
	Media    MediaConfig
	Display  DisplayConfig
	Wakeful  WakefulConfig
	LogLevel string `env:"MARQUEE_LOG_LEVEL"`
}

type GatewayConfig struct {
	URL            string `env:"MARQUEE_GATEWAY_URL"`
	TimeoutSeconds int    `env:"MARQUEE_GATEWAY_TIMEOUT"`
}

type ServerConfig struct {
	ListenAddr     string `env:"MARQUEE_LISTEN_ADDR"`
	AllowedOrigins string `env:"MARQUEE_ALLOWED_ORIGINS"`
}

type DataConfig struct {
	// Path holds the sqlite database and the media spool.
	Path string `env:"MARQUEE_DATA_PATH"`
}

type MediaConfig struct {
	// S3Bucket enables the object store media backend when non-empty.
	S3Bucket   string `env:"MARQUEE_S3_BUCKET"`
	AWSProfile string `env:"MARQUEE_AWS_PROFILE"`
}

type DisplayConfig struct {
	Output string `env:"MARQUEE_OUTPUT"`
}

type WakefulConfig struct {
	Enabled bool `env:"MARQUEE_WAKEFUL_ENABLED"`
}

// Load reads the environment into a Config, starting from defaults
// that suit a single display host.
func Load() (*Config, error) {
	cfg := &Config{
		Gateway: GatewayConfig{
			TimeoutSeconds: 10,
		},
		Server: ServerConfig{
			ListenAddr:     ":8080",
			AllowedOrigins: "*",
		},
		Data: DataConfig{
			Path: ".",
		},
		Display: DisplayConfig{
			Output: "HDMI-A-1",
		},
		Wakeful: WakefulConfig{
			Enabled: true,
		},
		LogLevel: "info",
	}

	if err := golobby.New().AddFeeder(feeder.Env{}).AddStruct(cfg).Feed(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gateway.URL == "" {
		return errors.New("no gateway url provided in environment variable MARQUEE_GATEWAY_URL")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("gateway url must be http or https, got %q", c.Gateway.URL)
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %d", c.Gateway.TimeoutSeconds)
	}
	return nil
}

// GatewayTimeout is the per-request timeout for gateway fetches.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

// Origins splits the allowed origins list for the CORS handler.
func (c *Config) Origins() []string {
	parts := strings.Split(c.Server.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}

func (c *Config) GetLogLevel() slog.Leveler {
	logLevel := strings.ToLower(c.LogLevel)
	if logLevel == "error" {
		return slog.LevelError
	}
	if logLevel == "warning" {
		return slog.LevelWarn
	}
	if logLevel == "info" {
		return slog.LevelInfo
	}
	if logLevel == "debug" {
		return slog.LevelDebug
	}
	// default to info if unknown
	slog.With(slog.String("log_level", logLevel)).Info("Received invalid log level. Defaulting to INFO.")
	return slog.LevelInfo
}
