package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds run settings that are not exposed as command line flags
type Config struct {
	TargetWidth    int      `env:"TARGET_WIDTH"    envDefault:"320"`
	TargetHeight   int      `env:"TARGET_HEIGHT"   envDefault:"240"`
	LumaThreshold  float64  `env:"LUMA_THRESHOLD"  envDefault:"10"`
	Extensions     []string `env:"EXTENSIONS"      envDefault:".mp4,.wmv" envSeparator:","`
	TempDir        string   `env:"TEMP_DIR"`
	LogLevel       string   `env:"LOG_LEVEL"       envDefault:"info"`
	FFmpegLogLevel string   `env:"FFMPEG_LOGLEVEL" envDefault:"error"`
}

const envPrefix = "GOVIDSUMM_"

// Load reads an optional .env file from the working directory and then the
// GOVIDSUMM_* environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{Prefix: envPrefix})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TargetWidth <= 0 || c.TargetHeight <= 0 {
		return fmt.Errorf("invalid target resolution %dx%d", c.TargetWidth, c.TargetHeight)
	}
	if c.LumaThreshold < 0 {
		return fmt.Errorf("luma threshold must be >= 0, got %g", c.LumaThreshold)
	}
	if len(c.Extensions) == 0 {
		return errors.New("no video extensions configured")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
