// Package backup creates timestamped copies of documents before
// destructive writes.
package backup

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Manager creates and prunes backups.
type Manager struct {
	dir     string // destination directory; "" means alongside the original
	keep    int    // backups retained per file; 0 means unlimited
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Config configures a Manager.
type Config struct {
	Dir    string
	Keep   int
	Logger *slog.Logger
}

// NewManager creates a backup manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: cfg.Dir, keep: cfg.Keep, logger: logger, nowFunc: time.Now}
}

// Create copies path to a timestamped sibling (or into the configured
// directory) and returns the backup path.
func (m *Manager) Create(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open original: %w", err)
	}
	defer src.Close()

	dir := m.dir
	if dir == "" {
		dir = filepath.Dir(path)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamp := m.nowFunc().Format("20060102-150405")
	backupPath := filepath.Join(dir, fmt.Sprintf("%s.%s.bak%s", stem, stamp, ext))

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(backupPath)
		return "", fmt.Errorf("copy to backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("close backup: %w", err)
	}

	m.logger.Debug("backup created", "original", path, "backup", backupPath)
	if m.keep > 0 {
		m.prune(dir, stem, ext)
	}
	return backupPath, nil
}

// prune removes the oldest backups of a file beyond the retention count.
// Timestamped names sort chronologically, so lexical order suffices.
func (m *Manager) prune(dir, stem, ext string) {
	pattern := filepath.Join(dir, stem+".*.bak"+ext)
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) <= m.keep {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-m.keep] {
		if err := os.Remove(old); err != nil {
			m.logger.Warn("failed to prune old backup", "path", old, "error", err)
		}
	}
}
