// Package config loads gyeol runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	// Store is memory, badger or sqlite. Empty selects the build default.
	Store         string `env:"GYEOL_STORE"          validate:"omitempty,oneof=memory badger sqlite"`
	DBPath        string `env:"GYEOL_DB_PATH"        envDefault:"gyeol.db"`
	HTTPAddr      string `env:"GYEOL_HTTP_ADDR"      envDefault:":8080" validate:"required"`
	Seed          int64  `env:"GYEOL_SEED"`
	LogLevel      string `env:"GYEOL_LOG_LEVEL"      envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat     string `env:"GYEOL_LOG_FORMAT"     envDefault:"text" validate:"oneof=text json"`
	BadgerRetries int    `env:"GYEOL_BADGER_RETRIES" envDefault:"16" validate:"min=1,max=1024"`
}

var validate = validator.New()

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the dotenv files, when present, then the environment, and
// validates the result. Variables already set in the environment win over
// the files. With no files given, ./.env is tried.
func Load(files ...string) (Config, error) {
	if err := loadDotenv(files...); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level maps LogLevel onto slog, falling back to Info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds the process logger described by c.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
