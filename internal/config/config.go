// Package config loads the layered JSONC configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Error variables for configuration loading.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrConnectionEmpty    = errors.New("connection cannot be empty")
	ErrPickerEmpty        = errors.New("picker cannot be empty")
	ErrPickerTimeout      = errors.New("picker_timeout must be a non-negative duration")
)

// HistoryDisabled as history_file turns the pick history off.
const HistoryDisabled = "-"

// Config holds all configuration options.
type Config struct {
	Connection     string `json:"connection"`
	Opener         string `json:"opener"`
	Editor         string `json:"editor,omitempty"`
	Picker         string `json:"picker"`
	PreviewWindow  string `json:"preview_window"`
	ISBNServices   string `json:"isbn_services"`
	PickerTimeout  string `json:"picker_timeout,omitempty"`
	DefaultCommand string `json:"default_command"`
	HistoryFile    string `json:"history_file,omitempty"`
	LogLevel       string `json:"log_level"`

	// Timeout is PickerTimeout parsed. Zero means no deadline.
	Timeout time.Duration `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global   string // Path to global config if loaded, empty otherwise
	Explicit string // Path to --config file if given
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Connection:     "dbname=retrolire",
		Opener:         "xdg-open",
		Picker:         "fzf",
		PreviewWindow:  "right,45%,hidden",
		ISBNServices:   "openl wiki goob",
		DefaultCommand: "edit",
		LogLevel:       "warn",
	}
}

// globalPath returns $XDG_CONFIG_HOME/retrolire/config.json, falling back to
// ~/.config/retrolire/config.json. Empty if neither can be determined.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "retrolire", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "retrolire", "config.json")
	}

	return ""
}

// defaultHistoryPath returns $XDG_STATE_HOME/retrolire/history.sqlite,
// falling back to ~/.local/state/retrolire/history.sqlite.
func defaultHistoryPath(env map[string]string) string {
	if xdg := env["XDG_STATE_HOME"]; xdg != "" {
		return filepath.Join(xdg, "retrolire", "history.sqlite")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".local", "state", "retrolire", "history.sqlite")
	}

	return ""
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir            string            // base for a relative ConfigPath; os.Getwd() if empty
	ConfigPath         string            // --config flag value
	ConnectionOverride string            // --connection flag value; empty means no override
	Env                map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/retrolire/config.json)
// 3. Explicit config file via ConfigPath (must exist)
// 4. CLI overrides.
func Load(input LoadInput) (Config, error) {
	cfg := Default()

	global := globalPath(input.Env)
	if global != "" {
		fileCfg, loaded, err := loadFile(global, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = global
			cfg = merge(cfg, fileCfg)
		}
	}

	if input.ConfigPath != "" {
		path := input.ConfigPath
		if !filepath.IsAbs(path) {
			workDir := input.WorkDir
			if workDir == "" {
				var err error

				workDir, err = os.Getwd()
				if err != nil {
					return Config{}, fmt.Errorf("cannot get working directory: %w", err)
				}
			}

			path = filepath.Join(workDir, path)
		}

		_, statErr := os.Stat(path)
		if statErr != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}

		fileCfg, _, err := loadFile(path, true)
		if err != nil {
			return Config{}, err
		}

		cfg.Sources.Explicit = path
		cfg = merge(cfg, fileCfg)
	}

	if input.ConnectionOverride != "" {
		cfg.Connection = input.ConnectionOverride
	}

	if cfg.HistoryFile == "" {
		cfg.HistoryFile = defaultHistoryPath(input.Env)
	}

	err := validate(&cfg)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// HistoryPath returns the history database path, or "" when disabled.
func (c Config) HistoryPath() string {
	if c.HistoryFile == HistoryDisabled {
		return ""
	}

	return c.HistoryFile
}

// fileConfig distinguishes unset keys from keys explicitly set to "".
type fileConfig struct {
	Connection     *string `json:"connection"`
	Opener         *string `json:"opener"`
	Editor         *string `json:"editor"`
	Picker         *string `json:"picker"`
	PreviewWindow  *string `json:"preview_window"`
	ISBNServices   *string `json:"isbn_services"`
	PickerTimeout  *string `json:"picker_timeout"`
	DefaultCommand *string `json:"default_command"`
	HistoryFile    *string `json:"history_file"`
	LogLevel       *string `json:"log_level"`
}

// loadFile loads a config file. If mustExist is false, a missing file is not
// an error and loaded is false.
func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return fileConfig{}, false, nil
		}

		return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if cfg.Connection != nil && *cfg.Connection == "" {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrConnectionEmpty)
	}

	if cfg.Picker != nil && *cfg.Picker == "" {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrPickerEmpty)
	}

	return cfg, true, nil
}

func parse(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base Config, overlay fileConfig) Config {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&base.Connection, overlay.Connection)
	set(&base.Opener, overlay.Opener)
	set(&base.Editor, overlay.Editor)
	set(&base.Picker, overlay.Picker)
	set(&base.PreviewWindow, overlay.PreviewWindow)
	set(&base.ISBNServices, overlay.ISBNServices)
	set(&base.PickerTimeout, overlay.PickerTimeout)
	set(&base.DefaultCommand, overlay.DefaultCommand)
	set(&base.HistoryFile, overlay.HistoryFile)
	set(&base.LogLevel, overlay.LogLevel)

	return base
}

func validate(cfg *Config) error {
	if cfg.Connection == "" {
		return ErrConnectionEmpty
	}

	if cfg.Picker == "" {
		return ErrPickerEmpty
	}

	cfg.Timeout = 0

	if cfg.PickerTimeout != "" {
		d, err := time.ParseDuration(cfg.PickerTimeout)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %q", ErrPickerTimeout, cfg.PickerTimeout)
		}

		cfg.Timeout = d
	}

	return nil
}
