package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultServerAddress   = "127.0.0.1:3001"
	defaultLanguage        = "ja"
	defaultDialogueMode    = "full"
	defaultResumePolicy    = "ordinal"
	defaultStageDelay      = time.Second
	defaultDebounceWindow  = 50 * time.Millisecond
	defaultRetryAttempts   = 1
	defaultRetryBackoff    = 2 * time.Second
	defaultStoreBackend    = "bbolt"
	defaultSessionsDir     = "sessions"
	defaultOutputsDir      = "outputs"
	defaultStaticDataDir   = "outputs/data"
	defaultTheme           = "dark"
	defaultTelemetryName   = "yui-client"
	streamDebugEnvVariable = "YUI_STREAM_DEBUG"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
	Debug     DebugConfig     `toml:"debug"`
	Dialogue  DialogueConfig  `toml:"dialogue"`
	Binding   BindingConfig   `toml:"binding"`
	Store     StoreConfig     `toml:"store"`
	Static    StaticConfig    `toml:"static"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	UI        UIConfig        `toml:"ui"`
}

type ServerConfig struct {
	Address string `toml:"address"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type DebugConfig struct {
	StreamDebug bool `toml:"stream_debug"`
}

type DialogueConfig struct {
	Mode       string `toml:"mode"`
	Language   string `toml:"language"`
	StageDelay string `toml:"stage_delay"`
	Debounce   string `toml:"debounce"`
	Resume     string `toml:"resume"`
}

type BindingConfig struct {
	RetryAttempts *int   `toml:"retry_attempts"`
	RetryBackoff  string `toml:"retry_backoff"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type StaticConfig struct {
	SessionsDir string `toml:"sessions_dir"`
	OutputsDir  string `toml:"outputs_dir"`
	DataDir     string `toml:"data_dir"`
}

type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

type UIConfig struct {
	Theme string `toml:"theme"`
}

func Default() Config {
	retries := defaultRetryAttempts
	return Config{
		Server:  ServerConfig{Address: defaultServerAddress},
		Logging: LoggingConfig{Level: "info"},
		Dialogue: DialogueConfig{
			Mode:       defaultDialogueMode,
			Language:   defaultLanguage,
			StageDelay: defaultStageDelay.String(),
			Debounce:   defaultDebounceWindow.String(),
			Resume:     defaultResumePolicy,
		},
		Binding: BindingConfig{
			RetryAttempts: &retries,
			RetryBackoff:  defaultRetryBackoff.String(),
		},
		Store: StoreConfig{Backend: defaultStoreBackend},
		Static: StaticConfig{
			SessionsDir: defaultSessionsDir,
			OutputsDir:  defaultOutputsDir,
			DataDir:     defaultStaticDataDir,
		},
		Telemetry: TelemetryConfig{ServiceName: defaultTelemetryName},
		UI:        UIConfig{Theme: defaultTheme},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFromPath(path)
}

func LoadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) ServerAddress() string {
	addr := strings.TrimSpace(c.Server.Address)
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultServerAddress
	}
	return addr
}

func (c Config) ServerBaseURL() string {
	raw := strings.TrimSpace(c.Server.Address)
	if strings.HasPrefix(raw, "https://") {
		return "https://" + c.ServerAddress()
	}
	return "http://" + c.ServerAddress()
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

func (c Config) StreamDebugEnabled() bool {
	if c.Debug.StreamDebug {
		return true
	}
	return strings.TrimSpace(os.Getenv(streamDebugEnvVariable)) == "1"
}

func (c Config) DialogueMode() string {
	switch strings.ToLower(strings.TrimSpace(c.Dialogue.Mode)) {
	case "simple":
		return "simple"
	default:
		return defaultDialogueMode
	}
}

func (c Config) Language() string {
	switch strings.ToLower(strings.TrimSpace(c.Dialogue.Language)) {
	case "en":
		return "en"
	case "ja", "":
		return defaultLanguage
	default:
		return strings.ToLower(strings.TrimSpace(c.Dialogue.Language))
	}
}

func (c Config) StageDelay() time.Duration {
	return parseDuration(c.Dialogue.StageDelay, defaultStageDelay)
}

func (c Config) DebounceWindow() time.Duration {
	return parseDuration(c.Dialogue.Debounce, defaultDebounceWindow)
}

func (c Config) ResumePolicy() string {
	switch strings.ToLower(strings.TrimSpace(c.Dialogue.Resume)) {
	case "identity":
		return "identity"
	default:
		return defaultResumePolicy
	}
}

func (c Config) RetryAttempts() int {
	if c.Binding.RetryAttempts == nil {
		return defaultRetryAttempts
	}
	if *c.Binding.RetryAttempts < 0 {
		return 0
	}
	return *c.Binding.RetryAttempts
}

func (c Config) RetryBackoff() time.Duration {
	return parseDuration(c.Binding.RetryBackoff, defaultRetryBackoff)
}

func (c Config) StoreBackend() string {
	switch strings.ToLower(strings.TrimSpace(c.Store.Backend)) {
	case "memory":
		return "memory"
	case "file":
		return "file"
	default:
		return defaultStoreBackend
	}
}

func (c Config) StorePath() (string, error) {
	path := strings.TrimSpace(c.Store.Path)
	if path == "" {
		if c.StoreBackend() == "file" {
			return StoreFilePath()
		}
		return StorePath()
	}
	return resolveConfigPath(path)
}

func (c Config) StaticSessionsDir() string {
	return firstNonEmpty(c.Static.SessionsDir, defaultSessionsDir)
}

func (c Config) StaticOutputsDir() string {
	return firstNonEmpty(c.Static.OutputsDir, defaultOutputsDir)
}

func (c Config) StaticDataDir() string {
	return firstNonEmpty(c.Static.DataDir, defaultStaticDataDir)
}

func (c Config) TelemetryServiceName() string {
	return firstNonEmpty(c.Telemetry.ServiceName, defaultTelemetryName)
}

func (c Config) DarkTheme() bool {
	return !strings.EqualFold(strings.TrimSpace(c.UI.Theme), "light")
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func resolveConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
