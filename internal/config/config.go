// Package config loads and persists the chatkit configuration: which
// provider is active, where each backend lives, and how to authenticate.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

const (
	DefaultConfigFilename = "config.json"

	DefaultProvider      = "gemini"
	DefaultGeminiModel   = "gemini-2.5-pro"
	DefaultOpenAIModel   = "gpt-4o"
	DefaultOllamaModel   = "llama3.1"
	DefaultOllamaBaseURL = "http://localhost:11434"
)

// GeminiSettings configures the internal-RPC backend.
type GeminiSettings struct {
	Endpoint  string `json:"endpoint,omitempty"`
	Model     string `json:"model,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// OpenAISettings configures the OpenAI-compatible gateway backend.
type OpenAISettings struct {
	Endpoint      string `json:"endpoint,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	Model         string `json:"model,omitempty"`
	IntegrationID string `json:"integration_id,omitempty"`
}

// OllamaSettings configures the local inference backend.
type OllamaSettings struct {
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// Config is the persisted configuration document.
type Config struct {
	Provider string         `json:"provider,omitempty"`
	Gemini   GeminiSettings `json:"gemini,omitempty"`
	OpenAI   OpenAISettings `json:"openai,omitempty"`
	Ollama   OllamaSettings `json:"ollama,omitempty"`
}

// applyDefaults fills unset fields so callers never branch on empty values.
func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultGeminiModel
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = DefaultOpenAIModel
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = DefaultOllamaModel
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = DefaultOllamaBaseURL
	}
}

// ResolveAPIKey expands "env:NAME" references so keys never have to live in
// the config file itself.
func ResolveAPIKey(value string) string {
	if name, ok := strings.CutPrefix(value, "env:"); ok {
		return os.Getenv(name)
	}
	return value
}

// Manager loads, caches, and persists the configuration file.
type Manager struct {
	configPath  string
	configValue atomic.Value
}

func NewManager(baseDir string) *Manager {
	return &Manager{
		configPath: filepath.Join(baseDir, DefaultConfigFilename),
	}
}

func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	m.configValue.Store(&cfg)
	return &cfg, nil
}

// Get returns the cached config, loading it on first use. A missing or
// unreadable file yields a default config rather than an error.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		cfg = &Config{}
		cfg.applyDefaults()
	}
	return cfg
}

func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)
	return nil
}

func (m *Manager) GetPath() string {
	return m.configPath
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}
