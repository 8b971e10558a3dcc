package config

import (
	"fmt"
	"time"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/docx"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
)

// Config is the full application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Files    FilesConfig    `mapstructure:"files" yaml:"files"`
	Backup   BackupConfig   `mapstructure:"backup" yaml:"backup"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Rules    RulesConfig    `mapstructure:"rules" yaml:"rules"`
}

// APIConfig configures the resolution endpoint client.
type APIConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"` // fixed address applied by replacement rules
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`   // ${ENV_VAR} references are resolved
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// PipelineConfig bounds the concurrent pipeline stages.
type PipelineConfig struct {
	ExtractWorkers  int           `mapstructure:"extract_workers" yaml:"extract_workers"` // 0 means NumCPU
	UpdateWorkers   int           `mapstructure:"update_workers" yaml:"update_workers"`   // 0 means NumCPU
	QueueSize       int           `mapstructure:"queue_size" yaml:"queue_size"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout" yaml:"document_timeout"`

	// GroupPerDocument resolves each document's ids separately instead of
	// one round for the whole run.
	GroupPerDocument bool `mapstructure:"group_per_document" yaml:"group_per_document"`
}

// FilesConfig is the admission policy for input files.
type FilesConfig struct {
	MaxSizeMB  int64    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

// Policy converts the file settings to the docx admission policy.
func (f FilesConfig) Policy() docx.FilePolicy {
	p := docx.DefaultFilePolicy()
	if f.MaxSizeMB > 0 {
		p.MaxSizeBytes = f.MaxSizeMB << 20
	}
	if len(f.Extensions) > 0 {
		p.Extensions = f.Extensions
	}
	return p
}

// BackupConfig controls pre-write backups.
type BackupConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Keep    int    `mapstructure:"keep" yaml:"keep"`
}

// CacheConfig controls the extraction cache.
type CacheConfig struct {
	Path       string        `mapstructure:"path" yaml:"path"` // "" disables, ":memory:" for in-process
	ExtractTTL time.Duration `mapstructure:"extract_ttl" yaml:"extract_ttl"`
}

// RulesConfig carries the user-defined replacement rules.
type RulesConfig struct {
	Hyperlink []hyperlink.ReplacementRule `mapstructure:"hyperlink" yaml:"hyperlink"`
	Text      []docx.TextReplacementRule  `mapstructure:"text" yaml:"text"`
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("api.endpoint is required")
	}
	if c.API.BatchSize < 0 {
		return fmt.Errorf("api.batch_size cannot be negative")
	}
	if c.Pipeline.QueueSize < 0 {
		return fmt.Errorf("pipeline.queue_size cannot be negative")
	}
	return nil
}
