package config

import "time"

// DefaultConfig returns the built-in defaults. Worker counts of zero are
// resolved to NumCPU at pipeline construction.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Endpoint:     "",
			BaseURL:      "https://docs.example.com/view",
			BatchSize:    50,
			MaxRetries:   3,
			BatchTimeout: 30 * time.Second,
			Concurrency:  4,
		},
		Pipeline: PipelineConfig{
			QueueSize:       64,
			DocumentTimeout: 5 * time.Minute,
		},
		Files: FilesConfig{
			MaxSizeMB:  50,
			Extensions: []string{".docx"},
		},
		Backup: BackupConfig{
			Enabled: true,
			Keep:    5,
		},
		Cache: CacheConfig{
			ExtractTTL: 15 * time.Minute,
		},
	}
}
