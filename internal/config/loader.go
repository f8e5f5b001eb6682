package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override, e.g. ODDSBOT_ODDS_API_API_KEY.
const EnvPrefix = "ODDSBOT_"

// Load decodes the TOML file at path over Defaults, loads a .env file from
// the working directory if present, then applies ODDSBOT_* overrides. A
// missing file at path is not an error. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if err := ApplyEnv(&cfg, nil); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg from ODDSBOT_* variables. A nil environment reads
// the process environment. Unset variables leave fields untouched.
func ApplyEnv(cfg *Config, environment map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("config: env overrides: %w", err)
	}
	return nil
}
