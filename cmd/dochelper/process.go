package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/changelog"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/pipeline"
)

var (
	changelogPath string
	noBackup      bool
)

var processCmd = &cobra.Command{
	Use:   "process [files or folders...]",
	Short: "Resolve and rewrite hyperlinks in the selected documents",
	Long: `Process runs the full pipeline over the selected documents: validate,
extract hyperlinks, resolve their ids against the tracking service, and
rewrite titles, markers, and suffixes in place.

Arguments may be files, folders (their documents are taken,
non-recursively), or glob patterns.

Examples:
  dochelper process report.docx
  dochelper process ./documents
  dochelper process './drafts/*.docx' --changelog changes.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocuments(cmd, args, false)
	},
}

func init() {
	processCmd.Flags().StringVar(&changelogPath, "changelog", "", "write the change log to this file (.json for JSON)")
	processCmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip pre-write backups for this run")
}

func runDocuments(cmd *cobra.Command, args []string, detectOnly bool) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	paths, err := collectPaths(args, cfg.Files.Policy())
	if err != nil {
		return err
	}

	tk, err := newToolkit(cfg, logger)
	if err != nil {
		return err
	}
	defer tk.close()
	if noBackup || detectOnly {
		tk.backups = nil
	}

	changes := changelog.NewLog()
	pcfg := pipeline.Config{
		Reader:           tk.reader,
		Engine:           tk.engine,
		Resolver:         tk.client,
		Backups:          tk.backups,
		Changes:          changes,
		Policy:           cfg.Files.Policy(),
		ExtractWorkers:   cfg.Pipeline.ExtractWorkers,
		UpdateWorkers:    cfg.Pipeline.UpdateWorkers,
		QueueSize:        cfg.Pipeline.QueueSize,
		DocumentTimeout:  cfg.Pipeline.DocumentTimeout,
		GroupPerDocument: cfg.Pipeline.GroupPerDocument,
		DetectOnly:       detectOnly,
		Rules:            cfg.Rules.Hyperlink,
		Logger:           logger,
	}
	if !detectOnly {
		pcfg.Writer = tk.writer
	}
	p, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range p.Progress() {
			switch r.Stage {
			case pipeline.StageDocumentUpdate:
				fmt.Fprintf(os.Stderr, "  %s: %d changes\n", filepath.Base(r.CurrentFile), r.ProcessedCount)
			case pipeline.StageError:
				fmt.Fprintf(os.Stderr, "  ! %s: %s\n", filepath.Base(r.CurrentFile), r.Message)
			case pipeline.StageCompletion:
				fmt.Fprintln(os.Stderr, r.Message)
			}
		}
	}()

	summary := p.Run(cmd.Context(), paths)
	<-done

	if changelogPath != "" {
		if err := writeChangelog(changes, changelogPath); err != nil {
			return err
		}
	}
	if err := printSummary(summary, changes); err != nil {
		return err
	}
	if summary.State == pipeline.RunCancelled {
		return fmt.Errorf("run cancelled")
	}
	return nil
}

// fileReport is the JSON-friendly view of one document's outcome.
type fileReport struct {
	Path       string `json:"path"`
	Stage      string `json:"stage"`
	Error      string `json:"error,omitempty"`
	Hyperlinks int    `json:"hyperlinks"`
	Updated    int    `json:"updated"`
}

type runReport struct {
	RunID   string            `json:"run_id"`
	State   string            `json:"state"`
	Stats   pipeline.Stats    `json:"stats"`
	Files   []fileReport      `json:"files"`
	Changes []changelog.Entry `json:"changes"`
}

func printSummary(summary *pipeline.Summary, changes *changelog.Log) error {
	if outputFormat == "json" {
		report := runReport{
			RunID:   summary.RunID,
			State:   string(summary.State),
			Stats:   summary.Stats,
			Changes: changes.Entries(),
		}
		for _, r := range summary.Results {
			fr := fileReport{
				Path:       r.Path,
				Stage:      string(r.Stage),
				Hyperlinks: r.Hyperlinks,
				Updated:    r.Updated,
			}
			if r.Err != nil {
				fr.Error = r.Err.Error()
			}
			report.Files = append(report.Files, fr)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if err := changes.WriteText(os.Stdout); err != nil {
		return err
	}
	fmt.Printf("\nState: %s\n", summary.State)
	fmt.Printf("Files: %d processed, %d failed\n", summary.Stats.FilesProcessed, summary.Stats.FilesFailed)
	fmt.Printf("Hyperlinks: %d processed, %d updated\n", summary.Stats.HyperlinksProcessed, summary.Stats.HyperlinksUpdated)
	fmt.Printf("Elapsed: %s\n", summary.Stats.Elapsed.Round(time.Millisecond))
	return nil
}

func writeChangelog(changes *changelog.Log, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating changelog file: %w", err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return changes.WriteJSON(f)
	}
	return changes.WriteText(f)
}
