package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"

	"yui/internal/config"

	toml "github.com/pelletier/go-toml/v2"
)

type ConfigCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (config.Config, error)
}

const (
	configFormatJSON = "json"
	configFormatTOML = "toml"
)

// configOutput is the effective configuration after defaults and
// normalization are applied.
type configOutput struct {
	ConfigPath string                   `json:"config_path,omitempty" toml:"config_path,omitempty"`
	Server     effectiveServerConfig    `json:"server" toml:"server"`
	Logging    effectiveLoggingConfig   `json:"logging" toml:"logging"`
	Debug      effectiveDebugConfig     `json:"debug" toml:"debug"`
	Dialogue   effectiveDialogueConfig  `json:"dialogue" toml:"dialogue"`
	Binding    effectiveBindingConfig   `json:"binding" toml:"binding"`
	Store      effectiveStoreConfig     `json:"store" toml:"store"`
	Static     effectiveStaticConfig    `json:"static" toml:"static"`
	Telemetry  effectiveTelemetryConfig `json:"telemetry" toml:"telemetry"`
	UI         effectiveUIConfig        `json:"ui" toml:"ui"`
}

type effectiveServerConfig struct {
	Address string `json:"address" toml:"address"`
	BaseURL string `json:"base_url" toml:"base_url"`
}

type effectiveLoggingConfig struct {
	Level string `json:"level" toml:"level"`
}

type effectiveDebugConfig struct {
	StreamDebug bool `json:"stream_debug" toml:"stream_debug"`
}

type effectiveDialogueConfig struct {
	Mode       string `json:"mode" toml:"mode"`
	Language   string `json:"language" toml:"language"`
	StageDelay string `json:"stage_delay" toml:"stage_delay"`
	Debounce   string `json:"debounce" toml:"debounce"`
	Resume     string `json:"resume" toml:"resume"`
}

type effectiveBindingConfig struct {
	RetryAttempts int    `json:"retry_attempts" toml:"retry_attempts"`
	RetryBackoff  string `json:"retry_backoff" toml:"retry_backoff"`
}

type effectiveStoreConfig struct {
	Backend string `json:"backend" toml:"backend"`
	Path    string `json:"path,omitempty" toml:"path,omitempty"`
}

type effectiveStaticConfig struct {
	SessionsDir string `json:"sessions_dir" toml:"sessions_dir"`
	OutputsDir  string `json:"outputs_dir" toml:"outputs_dir"`
	DataDir     string `json:"data_dir" toml:"data_dir"`
}

type effectiveTelemetryConfig struct {
	Enabled     bool   `json:"enabled" toml:"enabled"`
	ServiceName string `json:"service_name" toml:"service_name"`
}

type effectiveUIConfig struct {
	DarkTheme bool `json:"dark_theme" toml:"dark_theme"`
}

func NewConfigCommand(wiring commandWiring) *ConfigCommand {
	return &ConfigCommand{
		stdout:     wiring.stdout,
		stderr:     wiring.stderr,
		loadConfig: wiring.loadConfig,
	}
}

func (c *ConfigCommand) Run(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	defaults := fs.Bool("default", false, "print default config values")
	format := fs.String("format", configFormatJSON, "output format: json|toml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resolvedFormat, err := resolveConfigFormat(*format)
	if err != nil {
		return err
	}
	payload, err := c.buildOutput(*defaults)
	if err != nil {
		return err
	}
	return writeConfigOutput(c.stdout, resolvedFormat, payload)
}

func (c *ConfigCommand) buildOutput(defaults bool) (configOutput, error) {
	var cfg config.Config
	var err error
	if defaults {
		cfg = config.Default()
	} else {
		cfg, err = c.loadConfig()
		if err != nil {
			return configOutput{}, err
		}
	}
	out := configOutput{
		Server: effectiveServerConfig{
			Address: cfg.ServerAddress(),
			BaseURL: cfg.ServerBaseURL(),
		},
		Logging: effectiveLoggingConfig{Level: cfg.LogLevel()},
		Debug:   effectiveDebugConfig{StreamDebug: cfg.StreamDebugEnabled()},
		Dialogue: effectiveDialogueConfig{
			Mode:       cfg.DialogueMode(),
			Language:   cfg.Language(),
			StageDelay: cfg.StageDelay().String(),
			Debounce:   cfg.DebounceWindow().String(),
			Resume:     cfg.ResumePolicy(),
		},
		Binding: effectiveBindingConfig{
			RetryAttempts: cfg.RetryAttempts(),
			RetryBackoff:  cfg.RetryBackoff().String(),
		},
		Store: effectiveStoreConfig{Backend: cfg.StoreBackend()},
		Static: effectiveStaticConfig{
			SessionsDir: cfg.StaticSessionsDir(),
			OutputsDir:  cfg.StaticOutputsDir(),
			DataDir:     cfg.StaticDataDir(),
		},
		Telemetry: effectiveTelemetryConfig{
			Enabled:     cfg.Telemetry.Enabled,
			ServiceName: cfg.TelemetryServiceName(),
		},
		UI: effectiveUIConfig{DarkTheme: cfg.DarkTheme()},
	}
	if path, err := config.ConfigPath(); err == nil {
		out.ConfigPath = path
	}
	if out.Store.Backend != "memory" {
		if path, err := cfg.StorePath(); err == nil {
			out.Store.Path = path
		}
	}
	return out, nil
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case configFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case configFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	default:
		return errors.New("unsupported format")
	}
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", configFormatJSON:
		return configFormatJSON, nil
	case configFormatTOML:
		return configFormatTOML, nil
	default:
		return "", errors.New("invalid format: must be json or toml")
	}
}
