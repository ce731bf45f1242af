// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads engine configuration from verity.yaml and VERITY_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the config file viper searches for.
const DefaultConfigFileName = "verity"

// Config is the full engine configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Loop    LoopConfig    `mapstructure:"loop"`
	Fusion  FusionConfig  `mapstructure:"fusion"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Sources []SourceEntry `mapstructure:"sources"`
	Debug   bool          `mapstructure:"debug"`
}

// LLMConfig selects and tunes the provider.
type LLMConfig struct {
	// Provider is "anthropic" or "ollama".
	Provider string `mapstructure:"provider"`

	AnthropicModel string  `mapstructure:"anthropic_model"`
	OllamaEndpoint string  `mapstructure:"ollama_endpoint"`
	OllamaModel    string  `mapstructure:"ollama_model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`

	// APIKeyRef names the keyring entry holding the provider API key.
	APIKeyRef string `mapstructure:"api_key_ref"`
}

// Timeout returns the provider HTTP timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoopConfig tunes the reasoning loop.
type LoopConfig struct {
	// MaxCycles bounds reasoning cycles per session.
	MaxCycles int `mapstructure:"max_cycles"`

	// MaxRepairAttempts bounds repair rounds per query.
	MaxRepairAttempts int `mapstructure:"max_repair_attempts"`

	// SessionTimeoutSeconds bounds the whole session.
	SessionTimeoutSeconds int `mapstructure:"session_timeout_seconds"`

	// QueryTimeoutSeconds bounds one query execution.
	QueryTimeoutSeconds int `mapstructure:"query_timeout_seconds"`

	// PreviewRows bounds result previews.
	PreviewRows int `mapstructure:"preview_rows"`
}

// SessionTimeout returns the session deadline.
func (c LoopConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// QueryTimeout returns the per-query deadline.
func (c LoopConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// FusionConfig tunes evidence fusion and confidence scoring.
type FusionConfig struct {
	ConfidenceWeight float64 `mapstructure:"confidence_weight"`
	RelevanceWeight  float64 `mapstructure:"relevance_weight"`
	ConflictPenalty  float64 `mapstructure:"conflict_penalty"`
	RepairPenalty    float64 `mapstructure:"repair_penalty"`
}

// AuditConfig locates the audit database.
type AuditConfig struct {
	// Path to the SQLite audit database. Empty disables auditing.
	Path string `mapstructure:"path"`
}

// SourceEntry declares one data source.
type SourceEntry struct {
	// Name identifies the source in prompts, evidence, and citations.
	Name string `mapstructure:"name"`

	// Kind is "relational" or "tabular".
	Kind string `mapstructure:"kind"`

	// Driver is the SQL driver for relational sources
	// ("sqlite3", "postgres", "mysql").
	Driver string `mapstructure:"driver"`

	// CredentialRef names the credential store entry holding the DSN.
	// Mutually exclusive with DSN.
	CredentialRef string `mapstructure:"credential_ref"`

	// DSN is a plaintext connection string; development only.
	DSN string `mapstructure:"dsn"`

	// Path locates the file for tabular sources.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the given file (or the search path when
// empty), applying defaults and VERITY_* environment overrides.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/verity/")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("VERITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file is fine; defaults and env carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.ollama_endpoint", "http://localhost:11434")
	v.SetDefault("llm.ollama_model", "llama3.1")
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("llm.api_key_ref", "anthropic_api_key")

	v.SetDefault("loop.max_cycles", 8)
	v.SetDefault("loop.max_repair_attempts", 2)
	v.SetDefault("loop.session_timeout_seconds", 120)
	v.SetDefault("loop.query_timeout_seconds", 15)
	v.SetDefault("loop.preview_rows", 50)

	v.SetDefault("fusion.confidence_weight", 0.7)
	v.SetDefault("fusion.relevance_weight", 0.3)
	v.SetDefault("fusion.conflict_penalty", 15.0)
	v.SetDefault("fusion.repair_penalty", 10.0)

	v.SetDefault("audit.path", "verity_audit.db")
	v.SetDefault("debug", false)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		switch src.Kind {
		case "relational":
			if src.Driver == "" {
				return fmt.Errorf("source %q: driver is required for relational sources", src.Name)
			}
			if src.CredentialRef == "" && src.DSN == "" {
				return fmt.Errorf("source %q: credential_ref or dsn is required", src.Name)
			}
		case "tabular":
			if src.Path == "" {
				return fmt.Errorf("source %q: path is required for tabular sources", src.Name)
			}
		default:
			return fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
		}
	}
	return nil
}
