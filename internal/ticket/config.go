package ticket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Storage backends for persisted filter state.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	StateDir     string   `json:"state_dir"`
	Storage      string   `json:"storage,omitempty"`
	RedisAddr    string   `json:"redis_addr,omitempty"`
	CacheTTL     Duration `json:"cache_ttl,omitempty"`
	BatchDelay   Duration `json:"batch_delay,omitempty"`
	DismissDelay Duration `json:"dismiss_delay,omitempty"`
	PageSize     int      `json:"page_size,omitempty"`
	LogLevel     string   `json:"log_level,omitempty"`
	LogFormat    string   `json:"log_format,omitempty"`
	DataFile     string   `json:"data_file,omitempty"`
	MockTickets  int      `json:"mock_tickets,omitempty"`
	FailIDs      []int64  `json:"fail_ids,omitempty"`
	ExportDir    string   `json:"export_dir,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)
	StateDirAbs  string `json:"-"` // Absolute path to the state directory
	ExportDirAbs string `json:"-"` // Absolute path to the export directory

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// Duration is a time.Duration that reads and writes as "1m30s" in JSON.
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string

	err := json.Unmarshal(data, &s)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5m\": %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// Defaults.
const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultBatchDelay   = 100 * time.Millisecond
	DefaultDismissDelay = 1500 * time.Millisecond
	DefaultPageSize     = 20
	DefaultMockTickets  = 50
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StateDir:     ".tk-desk",
		Storage:      StorageFile,
		CacheTTL:     Duration(DefaultCacheTTL),
		BatchDelay:   Duration(DefaultBatchDelay),
		DismissDelay: Duration(DefaultDismissDelay),
		PageSize:     DefaultPageSize,
		LogLevel:     "warn",
		LogFormat:    "text",
		MockTickets:  DefaultMockTickets,
		ExportDir:    ".",
	}
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".tk-desk.json"

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/tk-desk/config.json if set, otherwise
// ~/.config/tk-desk/config.json. Returns empty string if home directory
// cannot be determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "tk-desk", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "tk-desk", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride  string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath       string            // -c/--config flag value
	StateDirOverride string            // --state-dir flag value; empty means no override
	LogLevelOverride string            // --log-level flag value; empty means no override
	Env              map[string]string // environment variables
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config (~/.config/tk-desk/config.json or $XDG_CONFIG_HOME/tk-desk/config.json)
// 3. Project config file at default location (.tk-desk.json, if exists)
// 4. Explicit config file via configPath (if non-empty)
// 5. CLI overrides.
//
// All paths in the returned Config are resolved to absolute paths.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if input.StateDirOverride != "" {
		cfg.StateDir = input.StateDirOverride
	}

	if input.LogLevelOverride != "" {
		cfg.LogLevel = input.LogLevelOverride
	}

	validateErr := validateConfig(cfg)
	if validateErr != nil {
		return Config{}, validateErr
	}

	cfg.EffectiveCwd = workDir
	cfg.StateDirAbs = absFrom(workDir, cfg.StateDir)
	cfg.ExportDirAbs = absFrom(workDir, cfg.ExportDir)

	if cfg.DataFile != "" {
		cfg.DataFile = absFrom(workDir, cfg.DataFile)
	}

	return cfg, nil
}

func absFrom(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}

// loadGlobalConfig loads the global user config file if it exists.
func loadGlobalConfig(env map[string]string) (Config, string, error) {
	globalCfgPath := getGlobalConfigPath(env)
	if globalCfgPath == "" {
		return Config{}, "", nil
	}

	globalCfg, explicitEmpty, loaded, err := loadConfigFile(globalCfgPath, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["state_dir"] {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, globalCfgPath, ErrStateDirEmpty)
	}

	return globalCfg, globalCfgPath, nil
}

// loadProjectConfig loads the project config file (.tk-desk.json) or an
// explicit config file.
func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		_, statErr := os.Stat(cfgFile)
		if statErr != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
		mustExist = false
	}

	fileCfg, explicitEmpty, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["state_dir"] {
		return Config{}, "", fmt.Errorf("%w %s: %w", ErrConfigInvalid, cfgFile, ErrStateDirEmpty)
	}

	return fileCfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing files return zero config.
// Returns the config, a map of explicitly empty fields, whether file was loaded, and any error.
func loadConfigFile(path string, mustExist bool) (Config, map[string]bool, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, nil, false, nil
		}

		if mustExist {
			return Config{}, nil, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return Config{}, nil, false, nil
	}

	cfg, explicitEmpty, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, nil, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
	}

	return cfg, explicitEmpty, true, nil
}

func parseConfig(data []byte) (Config, map[string]bool, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	explicitEmpty := make(map[string]bool)

	if val, exists := raw["state_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			explicitEmpty["state_dir"] = true
		}
	}

	return cfg, explicitEmpty, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.StateDir != "" {
		base.StateDir = overlay.StateDir
	}

	if overlay.Storage != "" {
		base.Storage = overlay.Storage
	}

	if overlay.RedisAddr != "" {
		base.RedisAddr = overlay.RedisAddr
	}

	if overlay.CacheTTL != 0 {
		base.CacheTTL = overlay.CacheTTL
	}

	if overlay.BatchDelay != 0 {
		base.BatchDelay = overlay.BatchDelay
	}

	if overlay.DismissDelay != 0 {
		base.DismissDelay = overlay.DismissDelay
	}

	if overlay.PageSize != 0 {
		base.PageSize = overlay.PageSize
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}

	if overlay.DataFile != "" {
		base.DataFile = overlay.DataFile
	}

	if overlay.MockTickets != 0 {
		base.MockTickets = overlay.MockTickets
	}

	if overlay.FailIDs != nil {
		base.FailIDs = overlay.FailIDs
	}

	if overlay.ExportDir != "" {
		base.ExportDir = overlay.ExportDir
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.StateDir == "" {
		return ErrStateDirEmpty
	}

	switch cfg.Storage {
	case StorageFile, StorageSQLite:
	case StorageRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("%w: storage %q requires redis_addr", ErrConfigInvalid, cfg.Storage)
		}
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrConfigInvalid, cfg.Storage)
	}

	if cfg.PageSize < 1 {
		return fmt.Errorf("%w: page_size must be positive", ErrConfigInvalid)
	}

	if cfg.CacheTTL < 0 || cfg.BatchDelay < 0 || cfg.DismissDelay < 0 {
		return fmt.Errorf("%w: durations cannot be negative", ErrConfigInvalid)
	}

	if cfg.MockTickets < 0 {
		return fmt.Errorf("%w: mock_tickets cannot be negative", ErrConfigInvalid)
	}

	return nil
}
