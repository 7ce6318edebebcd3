// Package config loads sync settings from a TOML file, a .env file and
// MYLIFE_ environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jwulff/mylife-sync/internal/logbook"
	"github.com/jwulff/mylife-sync/internal/mylife"
	"github.com/jwulff/mylife-sync/internal/treatment"
)

// DefaultPath is the settings file used when MYLIFE_CONFIG is not set.
const DefaultPath = "settings.env"

// EnvPrefix marks environment overrides. A double underscore separates
// sections, so MYLIFE_NIGHTSCOUT__URL sets nightscout.url.
const EnvPrefix = "MYLIFE_"

type Config struct {
	Mylife     MylifeConfig     `koanf:"mylife"`
	Nightscout NightscoutConfig `koanf:"nightscout"`
	Sync       SyncConfig       `koanf:"sync"`
	Log        LogConfig        `koanf:"log"`
	Store      StoreConfig      `koanf:"store"`
}

type MylifeConfig struct {
	Email    string `koanf:"email" validate:"required,email"`
	Password string `koanf:"password" validate:"required"`
	Timezone string `koanf:"timezone" validate:"required"`
	BaseURL  string `koanf:"base_url" validate:"required,url"`
	// Timespan is posted as the logbook time span selection. Empty keeps
	// the portal's default view.
	Timespan string `koanf:"timespan"`
}

type NightscoutConfig struct {
	URL       string `koanf:"url" validate:"required,url"`
	APISecret string `koanf:"api_secret" validate:"required"`
}

type SyncConfig struct {
	IntervalMinutes int    `koanf:"interval_minutes" validate:"min=1,max=60"`
	SetID           bool   `koanf:"set_id"`
	EnteredBy       string `koanf:"entered_by" validate:"required"`
	DryRun          bool   `koanf:"dry_run"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// Default returns the settings used for anything the sources leave unset.
func Default() Config {
	return Config{
		Mylife: MylifeConfig{
			BaseURL: mylife.DefaultBaseURL,
		},
		Sync: SyncConfig{
			IntervalMinutes: int(logbook.DefaultInterval / time.Minute),
			EnteredBy:       treatment.DefaultEnteredBy,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Path: "mylife-sync.db",
		},
	}
}

// Load reads the settings file at path, then a .env file in the same
// directory, then the environment. A missing file is not an error as long
// as the environment supplies the required settings.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), lowerKeys{toml.Parser()}); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dotenv, err)
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and the timezone name.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Mylife.Timezone); err != nil {
		return fmt.Errorf("invalid config: mylife.timezone: %w", err)
	}
	return nil
}

// Location returns the portal's timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Mylife.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Interval returns the grouping window.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sync.IntervalMinutes) * time.Minute
}

// lowerKeys lowercases the keys of a parsed file so the upper-case
// section keys of existing settings files (EMAIL, API_SECRET) merge with
// the lower-case keys from the environment.
type lowerKeys struct {
	koanf.Parser
}

func (p lowerKeys) Unmarshal(b []byte) (map[string]any, error) {
	m, err := p.Parser.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	return lowerMap(m), nil
}

func lowerMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = lowerMap(sub)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}
