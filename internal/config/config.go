// Package config loads the YAML config file, fills defaults, and applies
// TEXTBATCH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/textbatch/internal/table"
	"github.com/yourorg/textbatch/pkg/types"
)

const defaultConfigRelPath = ".textbatch/config.yaml"

type LLMConfig struct {
	APIKey         string   `yaml:"api_key"`
	BaseURL        string   `yaml:"base_url"`
	Model          string   `yaml:"model"`
	MaxTokens      int      `yaml:"max_tokens"`
	Temperature    float64  `yaml:"temperature"`
	SystemPrompt   string   `yaml:"system_prompt"`
	PromptTemplate string   `yaml:"prompt_template"`
	OutputFields   []string `yaml:"output_fields"`
}

type CleanerConfig struct {
	BaseURL      string                `yaml:"base_url"`
	APIKey       string                `yaml:"api_key"`
	Options      types.CleaningOptions `yaml:"options"`
	OutputFields []string              `yaml:"output_fields"`
}

type FilterConfig struct {
	Column    string   `yaml:"column"`
	Values    []string `yaml:"values"`
	Condition string   `yaml:"condition"`
}

type ProcessConfig struct {
	InputColumn       string       `yaml:"input_column"`
	IDColumn          string       `yaml:"id_column"`
	AuthorColumn      string       `yaml:"author_column"`
	Concurrency       int          `yaml:"concurrency"`
	TimeoutSeconds    int          `yaml:"timeout_seconds"`
	RetryAttempts     int          `yaml:"retry_attempts"`
	RetryDelaySeconds float64      `yaml:"retry_delay_seconds"`
	BatchSize         int          `yaml:"batch_size"`
	Filter            FilterConfig `yaml:"filter"`
}

type CacheConfig struct {
	Path     string `yaml:"path"`
	TTLHours int    `yaml:"ttl_hours"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Cleaner CleanerConfig `yaml:"cleaner"`
	Process ProcessConfig `yaml:"process"`
	Cache   CacheConfig   `yaml:"cache"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
}

// DefaultDir is where the config, cache, and run database live by default.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".textbatch"), nil
}

// Load loads YAML config, then applies env overrides. A missing config file
// is not an error; defaults and environment still apply.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		configPath = filepath.Join(home, defaultConfigRelPath)
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.SetDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.1
	}
	if c.Cleaner.BaseURL == "" {
		c.Cleaner.BaseURL = "http://127.0.0.1:8000"
	}
	if len(c.Cleaner.OutputFields) == 0 {
		c.Cleaner.OutputFields = []string{"cleaned_text"}
	}
	if c.Process.InputColumn == "" {
		c.Process.InputColumn = "text"
	}
	if c.Process.Concurrency == 0 {
		c.Process.Concurrency = 10
	}
	if c.Process.TimeoutSeconds == 0 {
		c.Process.TimeoutSeconds = 30
	}
	if c.Process.RetryAttempts == 0 {
		c.Process.RetryAttempts = 3
	}
	if c.Process.RetryDelaySeconds == 0 {
		c.Process.RetryDelaySeconds = 1
	}
	if c.Process.BatchSize == 0 {
		c.Process.BatchSize = 50
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = 168
	}
	if c.Cache.Path == "" {
		if dir, err := DefaultDir(); err == nil {
			c.Cache.Path = filepath.Join(dir, "cache.json")
		}
	}
	if c.Store.Path == "" {
		if dir, err := DefaultDir(); err == nil {
			c.Store.Path = filepath.Join(dir, "textbatch.db")
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Process.InputColumn) == "" {
		return errors.New("process.input_column cannot be empty")
	}
	if c.Process.Filter.Column != "" && !table.ValidCondition(c.Process.Filter.Condition) {
		return fmt.Errorf("process.filter.condition %q is not one of in, not_in, equals, not_equals", c.Process.Filter.Condition)
	}
	return nil
}

// ValidateAnalyze enforces analyze-specific requirements.
func (c *Config) ValidateAnalyze() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key cannot be empty")
	}
	if !strings.Contains(c.LLM.PromptTemplate, "{input_text}") {
		return errors.New("llm.prompt_template must contain the {input_text} placeholder")
	}
	if len(c.LLM.OutputFields) == 0 {
		return errors.New("llm.output_fields cannot be empty")
	}
	return nil
}

// ValidateClean enforces clean-specific requirements.
func (c *Config) ValidateClean() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Cleaner.BaseURL) == "" {
		return errors.New("cleaner.base_url cannot be empty")
	}
	return nil
}

// FilterSpec converts the configured filter into a table filter, or nil when
// no filter column is set.
func (c *Config) FilterSpec() *table.FilterSpec {
	if c.Process.Filter.Column == "" {
		return nil
	}
	return &table.FilterSpec{
		Column:    c.Process.Filter.Column,
		Values:    c.Process.Filter.Values,
		Condition: c.Process.Filter.Condition,
	}
}

func applyEnvOverrides(c *Config) {
	setString(&c.LLM.APIKey, "TEXTBATCH_LLM_API_KEY")
	setString(&c.LLM.BaseURL, "TEXTBATCH_LLM_BASE_URL")
	setString(&c.LLM.Model, "TEXTBATCH_LLM_MODEL")
	setInt(&c.LLM.MaxTokens, "TEXTBATCH_LLM_MAX_TOKENS")
	setFloat(&c.LLM.Temperature, "TEXTBATCH_LLM_TEMPERATURE")
	setString(&c.Cleaner.BaseURL, "TEXTBATCH_CLEANER_BASE_URL")
	setString(&c.Cleaner.APIKey, "TEXTBATCH_CLEANER_API_KEY")
	setInt(&c.Process.Concurrency, "TEXTBATCH_CONCURRENCY")
	setInt(&c.Process.BatchSize, "TEXTBATCH_BATCH_SIZE")
	setString(&c.Cache.Path, "TEXTBATCH_CACHE_PATH")
	setInt(&c.Cache.TTLHours, "TEXTBATCH_CACHE_TTL_HOURS")
	setString(&c.Store.Path, "TEXTBATCH_STORE_PATH")
	setString(&c.Log.Level, "TEXTBATCH_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = n
		}
	}
}
