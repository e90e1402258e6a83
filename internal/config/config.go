package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds understood by the agent.
const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// LoadFromBytes loads configuration from YAML bytes with environment variable expansion
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	return c, nil
}

// Load reads a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Provider   ProviderConfig   `yaml:"provider"`
	Agent      AgentConfig      `yaml:"agent"`
	Capability CapabilityConfig `yaml:"capability"`
	Log        struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// ProviderConfig selects and configures the language model backend.
type ProviderConfig struct {
	Kind       string `yaml:"kind"`
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	Deployment string `yaml:"deployment"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	MaxTokens  int    `yaml:"max_tokens"`
}

type AgentConfig struct {
	Name     string               `yaml:"name"`
	MaxTurns int                  `yaml:"max_turns"`
	Pruning  ContextPruningConfig `yaml:"pruning"`
}

// ContextPruningConfig bounds how much old tool output is replayed to the
// model. Past SoftTrimRatio of the budget, old results are cut to head and
// tail. Past HardClearRatio they are replaced by a placeholder. The stored
// conversation is never modified.
type ContextPruningConfig struct {
	ContextTokens        int     `yaml:"context_tokens"` // 0 disables pruning
	SoftTrimRatio        float64 `yaml:"soft_trim_ratio"`
	HardClearRatio       float64 `yaml:"hard_clear_ratio"`
	KeepLastAssistant    int     `yaml:"keep_last_assistant"`
	SoftTrimMaxChars     int     `yaml:"soft_trim_max_chars"`
	SoftTrimHead         int     `yaml:"soft_trim_head"`
	SoftTrimTail         int     `yaml:"soft_trim_tail"`
	HardClearPlaceholder string  `yaml:"hard_clear_placeholder"`
}

// CapabilityConfig describes how the capability server child is launched.
type CapabilityConfig struct {
	Executable       string        `yaml:"executable"`
	File             string        `yaml:"file"`
	StartupGrace     time.Duration `yaml:"startup_grace"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
}

// ApplyDefaults fills zero values. Env-expanded blanks count as unset.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 7860
	}

	p := &c.Provider
	p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
	if p.Kind == "" {
		p.Kind = ProviderAzure
	}
	if p.APIKey == "" {
		switch p.Kind {
		case ProviderAzure:
			p.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		case ProviderOpenAI:
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if p.APIVersion == "" && p.Kind == ProviderAzure {
		p.APIVersion = "2024-10-21"
	}
	if p.Model == "" {
		switch p.Kind {
		case ProviderAzure:
			p.Model = p.Deployment
		case ProviderOpenAI:
			p.Model = "gpt-4o-mini"
		case ProviderAnthropic:
			p.Model = "claude-sonnet-4-5"
		case ProviderOllama:
			p.Model = "llama3.1"
		}
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 4096
	}

	if c.Agent.Name == "" {
		c.Agent.Name = "Assistant"
	}
	if c.Agent.MaxTurns <= 0 {
		c.Agent.MaxTurns = 10
	}
	c.Agent.Pruning.ApplyDefaults()

	cp := &c.Capability
	if cp.Executable == "" {
		cp.Executable = "hearth-devices"
	}
	if cp.File == "" {
		cp.File = "etc/devices.yaml"
	}
	if cp.StartupGrace <= 0 {
		cp.StartupGrace = 2 * time.Second
	}
	if cp.HandshakeTimeout <= 0 {
		cp.HandshakeTimeout = 10 * time.Second
	}
	if cp.ShutdownTimeout <= 0 {
		cp.ShutdownTimeout = 5 * time.Second
	}
	if cp.ToolTimeout <= 0 {
		cp.ToolTimeout = 30 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ApplyDefaults fills every zero field except ContextTokens.
func (p *ContextPruningConfig) ApplyDefaults() {
	if p.SoftTrimRatio <= 0 {
		p.SoftTrimRatio = 0.3
	}
	if p.HardClearRatio <= 0 {
		p.HardClearRatio = 0.5
	}
	if p.KeepLastAssistant <= 0 {
		p.KeepLastAssistant = 3
	}
	if p.SoftTrimMaxChars <= 0 {
		p.SoftTrimMaxChars = 4000
	}
	if p.SoftTrimHead <= 0 {
		p.SoftTrimHead = 1500
	}
	if p.SoftTrimTail <= 0 {
		p.SoftTrimTail = 1500
	}
	if p.HardClearPlaceholder == "" {
		p.HardClearPlaceholder = "[Old tool result cleared]"
	}
}

// Addr is the listen address of the web front end.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ResolveExecutable finds the capability server binary. Names without a path
// separator are searched on PATH, then next to the running executable.
func (c CapabilityConfig) ResolveExecutable() (string, error) {
	name := c.Executable
	if strings.ContainsRune(name, os.PathSeparator) || filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("capability executable %q: %w", name, err)
		}
		return name, nil
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("capability executable %q not found on PATH or beside %s", name, os.Args[0])
}
