// Package config loads the kiosk settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every setting of the kiosk process.
type Config struct {
	// Endpoint is the classification backend base URL; requests go to Endpoint + "/predict".
	Endpoint        string        `env:"SORTIFY_ENDPOINT" env-default:"http://localhost:5000" env-description:"classification backend base URL"`
	ListenAddr      string        `env:"SORTIFY_LISTEN_ADDR" env-default:":8080" env-description:"control API listen address"`
	CameraDevice    string        `env:"SORTIFY_CAMERA_DEVICE" env-default:"0" env-description:"video device index or stream URL, \"none\" disables the camera"`
	PreviewMaxEdge  int           `env:"SORTIFY_PREVIEW_MAX_EDGE" env-default:"480" env-description:"longest side of preview thumbnails"`
	JWTSecret       string        `env:"SORTIFY_JWT_SECRET" env-description:"HMAC secret guarding the control API, empty leaves it open"`
	JWTAudience     string        `env:"SORTIFY_JWT_AUDIENCE" env-description:"required token audience"`
	LogLevel        string        `env:"SORTIFY_LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	ShutdownTimeout time.Duration `env:"SORTIFY_SHUTDOWN_TIMEOUT" env-default:"15s" env-description:"graceful shutdown budget"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("SORTIFY_ENDPOINT must not be empty")
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("SORTIFY_SHUTDOWN_TIMEOUT must be positive, got %s", cfg.ShutdownTimeout)
	}
	return cfg, nil
}

// Usage describes the supported environment variables.
func Usage() string {
	text, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return err.Error()
	}
	return text
}
