// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration shared by the bot and the flow
// service. Each binary reads the sections it needs.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Bot     BotConfig     `yaml:"bot"`
	Flow    FlowConfig    `yaml:"flow"`
	State   StateConfig   `yaml:"state"`
	Search  SearchConfig  `yaml:"search"`
	LLM     LLMConfig     `yaml:"llm"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig selects log level and output format
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// BotConfig holds the Bot Framework registration
type BotConfig struct {
	AppID       string `yaml:"app_id"`
	AppPassword string `yaml:"app_password"`
	AppType     string `yaml:"app_type"` // MultiTenant, SingleTenant, UserAssignedMSI
	TenantID    string `yaml:"tenant_id"`
	HistorySize int    `yaml:"history_size"` // turns kept in conversation state
	HistorySent int    `yaml:"history_sent"` // turns forwarded to the flow
}

// FlowConfig points the bot at the prompt flow scoring endpoint
type FlowConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`     // per attempt
	MaxRetries int           `yaml:"max_retries"` // total attempts
	RetryDelay time.Duration `yaml:"retry_delay"`
	PromptFile string        `yaml:"prompt_file"` // system prompt template, flow service only
}

// StateConfig selects the conversation state backend
type StateConfig struct {
	Type     string `yaml:"type"` // memory, sqlite, postgres, s3
	DSN      string `yaml:"dsn"`  // sqlite path or postgres connection string
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"` // S3-compatible endpoint, e.g. MinIO
}

// SearchConfig points at the knowledge index
type SearchConfig struct {
	Provider   string            `yaml:"provider"` // azure
	Endpoint   string            `yaml:"endpoint"`
	APIKey     string            `yaml:"api_key"`
	IndexName  string            `yaml:"index_name"`
	APIVersion string            `yaml:"api_version"`
	Top        int               `yaml:"top"`
	Expansions map[string]string `yaml:"expansions"` // query term expansions, e.g. TX: Texas
}

// LLMConfig points at the model deployment used by the flow
type LLMConfig struct {
	Mode       string        `yaml:"mode"` // responses or chat
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Deployment string        `yaml:"deployment"`
	APIVersion string        `yaml:"api_version"`
	Azure      *bool         `yaml:"azure"`   // defaults to true for the responses mode
	Timeout    time.Duration `yaml:"timeout"` // per model call
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	clamp(&cfg)
	return &cfg, nil
}

// Default returns default configuration with environment overrides applied
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	applyEnv(&cfg)
	clamp(&cfg)
	return &cfg
}

// applyEnv overrides file and default values with environment variables.
// The variable names are the ones used by the hosted deployment.
func applyEnv(cfg *Config) {
	setString(&cfg.Bot.AppID, "MicrosoftAppId")
	setString(&cfg.Bot.AppPassword, "MicrosoftAppPassword")
	setString(&cfg.Bot.AppType, "MicrosoftAppType")
	setString(&cfg.Bot.TenantID, "MicrosoftAppTenantId")

	setString(&cfg.Flow.Endpoint, "PROMPT_FLOW_ENDPOINT")
	setString(&cfg.Flow.APIKey, "PROMPT_FLOW_API_KEY")
	setString(&cfg.Flow.PromptFile, "PROMPT_FLOW_PROMPT_FILE")
	if v, ok := envInt("AI_TIMEOUT_SECONDS"); ok {
		cfg.Flow.Timeout = time.Duration(v) * time.Second
	}
	if v, ok := envInt("MAX_RETRIES"); ok {
		cfg.Flow.MaxRetries = v
	}

	setString(&cfg.State.Type, "STATE_STORE_TYPE")
	setString(&cfg.State.DSN, "STATE_STORE_DSN")
	setString(&cfg.State.Bucket, "STATE_STORE_S3_BUCKET")
	setString(&cfg.State.Region, "STATE_STORE_S3_REGION")
	setString(&cfg.State.Endpoint, "STATE_STORE_S3_ENDPOINT")

	setString(&cfg.Search.Endpoint, "AZURE_SEARCH_ENDPOINT")
	setString(&cfg.Search.APIKey, "AZURE_SEARCH_KEY")
	setString(&cfg.Search.IndexName, "AZURE_SEARCH_INDEX_NAME")

	setString(&cfg.LLM.Endpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&cfg.LLM.APIKey, "AZURE_OPENAI_API_KEY")
	setString(&cfg.LLM.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	setString(&cfg.LLM.Mode, "LLM_MODE")
	if v, ok := envInt("LLM_TIMEOUT_SECONDS"); ok {
		cfg.LLM.Timeout = time.Duration(v) * time.Second
	}

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if v, ok := envInt("PORT"); ok {
		cfg.Server.Port = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 60 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Bot.AppType == "" {
		cfg.Bot.AppType = "MultiTenant"
	}
	if cfg.Bot.HistorySize == 0 {
		cfg.Bot.HistorySize = 20
	}
	if cfg.Bot.HistorySent == 0 {
		cfg.Bot.HistorySent = 10
	}

	if cfg.Flow.Timeout == 0 {
		cfg.Flow.Timeout = 30 * time.Second
	}
	if cfg.Flow.MaxRetries == 0 {
		cfg.Flow.MaxRetries = 2
	}
	if cfg.Flow.RetryDelay == 0 {
		cfg.Flow.RetryDelay = time.Second
	}

	if cfg.State.Type == "" {
		cfg.State.Type = "memory"
	}
	if cfg.State.Prefix == "" {
		cfg.State.Prefix = "state/"
	}

	if cfg.Search.Provider == "" {
		cfg.Search.Provider = "azure"
	}
	if cfg.Search.APIVersion == "" {
		cfg.Search.APIVersion = "2023-11-01"
	}
	if cfg.Search.Top == 0 {
		cfg.Search.Top = 10
	}

	if cfg.LLM.Mode == "" {
		cfg.LLM.Mode = "responses"
	}
	if cfg.LLM.Deployment == "" {
		cfg.LLM.Deployment = "gpt-5-mini"
	}
	if cfg.LLM.APIVersion == "" {
		cfg.LLM.APIVersion = "2025-04-01-preview"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
}

// clamp bounds values that an explicit setting may have pushed out of
// range. At least one flow attempt is always made.
func clamp(cfg *Config) {
	if cfg.Flow.MaxRetries < 1 {
		cfg.Flow.MaxRetries = 1
	}
	if cfg.Flow.Timeout <= 0 {
		cfg.Flow.Timeout = 30 * time.Second
	}
}

// UseAzure reports whether the LLM endpoint should be addressed the Azure
// OpenAI way (api-key header, api-version query, deployment routing).
func (c LLMConfig) UseAzure() bool {
	if c.Azure != nil {
		return *c.Azure
	}
	return true
}

// Validate checks the settings the bot cannot start without.
func (c BotConfig) Validate() error {
	if c.AppID == "" || c.AppPassword == "" {
		return errors.New("MicrosoftAppId and MicrosoftAppPassword are required")
	}
	return nil
}

// Configured reports whether the flow endpoint and key are both set.
func (c FlowConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

// Configured reports whether the search endpoint, key and index are set.
func (c SearchConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != "" && c.IndexName != ""
}

// Params flattens the state section into the string map the state
// provider registry expects.
func (c StateConfig) Params() map[string]string {
	return map[string]string{
		"dsn":      c.DSN,
		"bucket":   c.Bucket,
		"region":   c.Region,
		"prefix":   c.Prefix,
		"endpoint": c.Endpoint,
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
