package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/backup"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/cache"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/config"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/docx"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/hyperlink"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/resolve"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/version"
)

var (
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "dochelper",
	Short: "Bulk hyperlink maintenance for Word documents",
	Long: `Doc-Helper processes batches of .docx files: it extracts every
hyperlink, resolves the referenced document ids against a tracking
service, and rewrites titles, status markers, and content-id suffixes
in place.

The pipeline includes:
  - Concurrent per-document extraction and update
  - Batched id resolution with retry and backoff
  - Idempotent rewrite rules (safe to re-run on processed files)
  - Pre-write backups and a structured changelog`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.dochelper/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "text", "output format: text or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(replaceTextCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func loadConfig() (*config.Config, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}

// collectPaths expands the command arguments into a sorted list of
// document paths. An argument may be a file, a directory (its matching
// files are taken, non-recursively), or a glob pattern.
func collectPaths(args []string, policy docx.FilePolicy) ([]string, error) {
	exts := policy.Extensions
	if len(exts) == 0 {
		exts = []string{".docx"}
	}
	matchesExt := func(path string) bool {
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range exts {
			if ext == e {
				return true
			}
		}
		return false
	}

	seen := make(map[string]bool)
	var paths []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, fmt.Errorf("reading folder %s: %w", arg, err)
			}
			for _, e := range entries {
				if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
					continue
				}
				if matchesExt(e.Name()) {
					add(filepath.Join(arg, e.Name()))
				}
			}
		case err == nil:
			add(arg)
		default:
			matches, globErr := filepath.Glob(arg)
			if globErr != nil || len(matches) == 0 {
				return nil, fmt.Errorf("no files match %q", arg)
			}
			for _, m := range matches {
				if matchesExt(m) {
					add(m)
				}
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no documents selected")
	}
	sort.Strings(paths)
	return paths, nil
}

// apiKeyTransport attaches the configured API key to every request.
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.key)
	return t.next.RoundTrip(req)
}

// toolkit bundles the collaborators shared by the document commands.
type toolkit struct {
	reader  *docx.Reader
	writer  *docx.Writer
	engine  *hyperlink.Engine
	client  *resolve.Client
	backups *backup.Manager
	store   cache.Store
}

func newToolkit(cfg *config.Config, logger *slog.Logger) (*toolkit, error) {
	var store cache.Store
	if cfg.Cache.Path != "" {
		var err error
		store, err = cache.NewSQLiteStore(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
	}

	httpClient := &http.Client{}
	if cfg.API.APIKey != "" {
		httpClient.Transport = &apiKeyTransport{key: cfg.API.APIKey, next: http.DefaultTransport}
	}

	tk := &toolkit{
		reader: docx.NewReader(docx.ReaderConfig{
			Policy:   cfg.Files.Policy(),
			Cache:    store,
			CacheTTL: cfg.Cache.ExtractTTL,
			Logger:   logger,
		}),
		writer: docx.NewWriter(docx.WriterConfig{Logger: logger}),
		engine: hyperlink.NewEngine(hyperlink.EngineConfig{
			BaseURL: cfg.API.BaseURL,
			Logger:  logger,
		}),
		client: resolve.New(resolve.Config{
			Endpoint:     cfg.API.Endpoint,
			BatchSize:    cfg.API.BatchSize,
			MaxRetries:   cfg.API.MaxRetries,
			BatchTimeout: cfg.API.BatchTimeout,
			Concurrency:  cfg.API.Concurrency,
			HTTPClient:   httpClient,
			Logger:       logger,
		}),
		store: store,
	}
	if cfg.Backup.Enabled {
		tk.backups = backup.NewManager(backup.Config{
			Dir:    cfg.Backup.Dir,
			Keep:   cfg.Backup.Keep,
			Logger: logger,
		})
	}
	return tk, nil
}

func (tk *toolkit) close() {
	if tk.store != nil {
		tk.store.Close()
	}
}
