// Package config loads scorer settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MJE43/killteam-scorer/internal/match"
)

const (
	appDirName = "killteam-scorer"
	dbFileName = "scorer.db"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Addr           string        `env:"SCORER_ADDR" envDefault:"127.0.0.1:17890"`
	DBPath         string        `env:"SCORER_DB_PATH"`
	StartingCP     int           `env:"SCORER_STARTING_CP" envDefault:"0"`
	FirstTurn      int           `env:"SCORER_FIRST_TURN" envDefault:"1"`
	FormulaTimeout time.Duration `env:"SCORER_FORMULA_TIMEOUT" envDefault:"1s"`
	RequestTimeout time.Duration `env:"SCORER_REQUEST_TIMEOUT" envDefault:"30s"`
	CORSOrigin     string        `env:"SCORER_CORS_ORIGIN" envDefault:"*"`
	SessionLimit   int           `env:"SCORER_SESSION_LIMIT" envDefault:"64"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("SCORER_ADDR must not be empty"))
	}
	if c.StartingCP < 0 {
		errs = append(errs, fmt.Errorf("SCORER_STARTING_CP must be >= 0, got %d", c.StartingCP))
	}
	if c.FirstTurn != 0 && c.FirstTurn != 1 {
		errs = append(errs, fmt.Errorf("SCORER_FIRST_TURN must be 0 or 1, got %d", c.FirstTurn))
	}
	if c.FormulaTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SCORER_FORMULA_TIMEOUT must be positive, got %s", c.FormulaTimeout))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SCORER_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.SessionLimit < 1 {
		errs = append(errs, fmt.Errorf("SCORER_SESSION_LIMIT must be >= 1, got %d", c.SessionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// MatchOptions returns the rules variant new matches are created with.
func (c Config) MatchOptions() match.Options {
	opts := match.DefaultOptions()
	opts.StartingCP = c.StartingCP
	opts.FirstTurn = c.FirstTurn
	return opts
}

// ResolveDBPath returns DBPath, or the default location under the user's
// config directory, creating the parent directory when needed.
func (c Config) ResolveDBPath() (string, error) {
	path := c.DBPath
	if path == "" {
		path = filepath.Join(AppDataDir(), dbFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return path, nil
}

// AppDataDir returns an OS-appropriate writable directory.
func AppDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, appDirName)
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, "."+appDirName)
	}
	return "."
}
