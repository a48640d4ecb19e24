package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingAPIKey is returned by Validate when no API key is configured.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrCreated is returned by Load after a template config has been written.
	ErrCreated = errors.New("config file created")
)

const (
	TOMLFile = "config.toml"
	YAMLFile = "config.yaml"
	LogFile  = "aia.log"
	HistFile = "history"
)

type Config struct {
	APIKey           string `toml:"openai_token" yaml:"openai_token"`
	Model            string `toml:"openai_model" yaml:"openai_model"`
	Provider         string `toml:"provider" yaml:"provider"`                     // "openai" (default) or "anthropic"
	BaseURL          string `toml:"base_url" yaml:"base_url"`
	Shell            string `toml:"shell" yaml:"shell"`                           // bash, sh, zsh or builtin
	Timeout          int    `toml:"timeout" yaml:"timeout"`                       // HTTP timeout in seconds, default 120
	Retries          int    `toml:"retries" yaml:"retries"`                       // retry count on 429/5xx, default 1
	CommandTimeout   int    `toml:"command_timeout" yaml:"command_timeout"`       // seconds, default 300
	MaxHistoryTurns  int    `toml:"max_history_turns" yaml:"max_history_turns"`   // default 20
	MaxHistoryTokens int    `toml:"max_history_tokens" yaml:"max_history_tokens"` // default 8000
	SystemPromptFile string `toml:"system_prompt_file" yaml:"system_prompt_file"`
}

const Template = `# aia configuration
openai_token = ""
openai_model = "gpt-4o-mini"

# provider = "openai"        # or "anthropic"
# base_url = ""              # OpenAI-compatible endpoint, e.g. http://localhost:11434/v1
# shell = "bash"             # bash, sh, zsh or builtin
# timeout = 120              # model request timeout, seconds
# retries = 1                # retries on 429/5xx, -1 disables
# command_timeout = 300      # seconds
# max_history_turns = 20
# max_history_tokens = 8000
# system_prompt_file = ""
`

// Dir returns the config directory.
// Resolution order: override > $AIA_CONFIG_DIR > <UserConfigDir>/aia
func Dir(override string) string {
	if override != "" {
		return override
	}
	if dir := os.Getenv("AIA_CONFIG_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "aia")
}

// Path returns the config file in dir that Load would read: the TOML file,
// or the YAML file when only that one exists.
func Path(dir string) string {
	tomlPath := filepath.Join(dir, TOMLFile)
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	yamlPath := filepath.Join(dir, YAMLFile)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return tomlPath
}

// Load reads the config from dir, applies defaults and environment overrides.
// A missing file is replaced with Template and ErrCreated is returned.
func Load(dir string) (*Config, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if _, err := WriteTemplate(dir); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w at %s", ErrCreated, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if strings.HasSuffix(path, ".yaml") {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		_, err = toml.Decode(string(data), &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// WriteTemplate creates dir and writes Template unless a config already exists.
// It reports whether a file was written.
func WriteTemplate(dir string) (bool, error) {
	path := filepath.Join(dir, TOMLFile)
	if _, err := os.Stat(Path(dir)); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(Template), 0600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AIA_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("AIA_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("AIA_BASE_URL"); v != "" {
		c.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Shell == "" {
		c.Shell = "bash"
	}
	if c.Timeout <= 0 {
		c.Timeout = 120
	}
	if c.Retries < 0 {
		c.Retries = 0
	} else if c.Retries == 0 {
		c.Retries = 1
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 300
	}
	if c.MaxHistoryTurns <= 0 {
		c.MaxHistoryTurns = 20
	}
	if c.MaxHistoryTokens <= 0 {
		c.MaxHistoryTokens = 8000
	}
}

// Validate reports configuration that prevents a session from starting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// Show writes the effective config as TOML with the key masked.
func (c *Config) Show(w io.Writer) error {
	masked := *c
	masked.APIKey = Mask(c.APIKey)
	return toml.NewEncoder(w).Encode(masked)
}
