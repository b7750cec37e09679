package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is where commands look for the module allow-list
	// when --config is not given.
	DefaultConfigPath = "aux_modules.json"

	// ModulePrefix is the namespace every allow-listed module must carry.
	ModulePrefix = "auxiliary/"
)

// Supported AI providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Loader reads and validates the auditor configuration file.
type Loader struct {
	ConfigPath string
}

// Config contains the fully resolved settings required by audit sub-commands.
// It is loaded once per invocation and never mutated afterwards.
type Config struct {
	AllowedModules []string  `json:"allowed_modules" yaml:"allowed_modules"`
	MSF            MSFConfig `json:"msf_config" yaml:"msf_config"`
	AI             AIConfig  `json:"ai_config" yaml:"ai_config"`
	Timeout        int       `json:"timeout" yaml:"timeout"`
	HistoryDB      string    `json:"history_db,omitempty" yaml:"history_db,omitempty"`
}

// MSFConfig describes how to reach the Metasploit RPC daemon.
type MSFConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	SSL      bool   `json:"ssl" yaml:"ssl"`
}

// AIConfig selects the chat-completion provider used for module selection
// and result analysis. An empty APIKey falls back to the provider's
// environment variable at client construction time.
type AIConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Provider string `json:"provider" yaml:"provider"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	Model    string `json:"model" yaml:"model"`
}

// DefaultConfig returns the baseline configuration before the file overlay.
func DefaultConfig() Config {
	return Config{
		MSF: MSFConfig{
			Host:     "127.0.0.1",
			Port:     55553,
			Username: "msf",
		},
		AI: AIConfig{
			Provider: ProviderOpenAI,
		},
		Timeout: 300,
	}
}

// Load reads the configuration file and overlays it on the defaults.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func (l Loader) Load() (Config, error) {
	cfg := DefaultConfig()

	path := l.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("configuration file not found: %s", path)
		}
		return cfg, fmt.Errorf("read configuration %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse configuration %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse configuration %s: %w", path, err)
		}
	}

	return cfg, nil
}

// Validate ensures the configuration can drive a scan. Every allow-listed
// module must live under the auxiliary namespace; anything else is rejected
// before a single RPC call is made.
func (c Config) Validate() error {
	for _, module := range c.AllowedModules {
		if !strings.HasPrefix(module, ModulePrefix) {
			return fmt.Errorf("module %q must start with %q", module, ModulePrefix)
		}
	}

	if c.MSF.Port < 1 || c.MSF.Port > 65535 {
		return fmt.Errorf("msf_config.port must be between 1 and 65535 (got %d)", c.MSF.Port)
	}

	if c.AI.Provider != ProviderOpenAI && c.AI.Provider != ProviderAnthropic {
		return fmt.Errorf("ai_config.provider must be %q or %q (got %q)", ProviderOpenAI, ProviderAnthropic, c.AI.Provider)
	}

	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be a positive number of seconds (got %d)", c.Timeout)
	}

	return nil
}

// IsAllowed reports whether the module path appears in the allow-list.
func (c Config) IsAllowed(module string) bool {
	for _, m := range c.AllowedModules {
		if m == module {
			return true
		}
	}
	return false
}

// WriteSample writes a starter configuration to path. A .yaml/.yml path gets
// a commented YAML sample; any other extension gets pretty-printed JSON.
func WriteSample(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return os.WriteFile(path, []byte(sampleYAML), 0o600)
	default:
		return os.WriteFile(path, []byte(sampleJSON), 0o600)
	}
}

const sampleJSON = `{
  "allowed_modules": [
    "auxiliary/scanner/http/http_version",
    "auxiliary/scanner/portscan/tcp"
  ],
  "msf_config": {
    "host": "127.0.0.1",
    "port": 55553,
    "username": "msf",
    "password": "change-me",
    "ssl": false
  },
  "ai_config": {
    "enabled": false,
    "provider": "openai",
    "api_key": "",
    "model": ""
  },
  "timeout": 300
}
`

const sampleYAML = `# Modules the scan command may execute. Every entry must live under
# the auxiliary/ namespace.
allowed_modules:
  - auxiliary/scanner/http/http_version
  - auxiliary/scanner/portscan/tcp

# Connection settings for msfrpcd. Start it with:
#   msfrpcd -P <password> -U msf -a 127.0.0.1
msf_config:
  host: 127.0.0.1
  port: 55553
  username: msf
  password: change-me
  ssl: false

# Optional AI-assisted module selection and result analysis.
# The api_key may be left empty to use OPENAI_API_KEY / ANTHROPIC_API_KEY.
ai_config:
  enabled: false
  provider: openai
  api_key: ""
  model: ""

# Per-module execution timeout in seconds.
timeout: 300

# Optional SQLite database recording past runs (enables the history command).
# history_db: msf-auditor-history.db
`
