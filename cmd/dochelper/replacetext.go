package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/backup"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/changelog"
	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/docx"
)

var (
	replaceOld        string
	replaceNew        string
	replaceCaseSens   bool
	replaceWholeWords bool
)

var replaceTextCmd = &cobra.Command{
	Use:   "replace-text [files or folders...]",
	Short: "Apply plain-text replacement rules to the selected documents",
	Long: `Replace-text applies the text rules from the configuration (rules.text)
to every text run of the selected documents, in document order. A single
ad-hoc rule can be given with --old/--new instead.

Matches never span run boundaries.

Examples:
  dochelper replace-text ./documents
  dochelper replace-text report.docx --old cat --new dog --whole-words`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		paths, err := collectPaths(args, cfg.Files.Policy())
		if err != nil {
			return err
		}

		rules := cfg.Rules.Text
		if replaceOld != "" {
			rules = append(rules, docx.TextReplacementRule{
				OldText:        replaceOld,
				NewText:        replaceNew,
				CaseSensitive:  replaceCaseSens,
				WholeWordsOnly: replaceWholeWords,
			})
		}
		if len(rules) == 0 {
			return fmt.Errorf("no text rules configured; set rules.text or pass --old/--new")
		}

		var backups *backup.Manager
		if cfg.Backup.Enabled && !noBackup {
			backups = backup.NewManager(backup.Config{
				Dir:    cfg.Backup.Dir,
				Keep:   cfg.Backup.Keep,
				Logger: logger,
			})
		}

		replacer := docx.NewTextReplacer(logger)
		changes := changelog.NewLog()
		failed := 0
		total := 0
		for _, path := range paths {
			if backups != nil {
				if _, err := backups.Create(path); err != nil {
					logger.Warn("backup failed, skipping file", "file", path, "error", err)
					failed++
					continue
				}
			}
			result, err := replacer.Replace(cmd.Context(), path, rules)
			if err != nil {
				logger.Warn("replacement failed", "file", path, "error", err)
				failed++
				continue
			}
			changes.AddTextChanges(path, result.Changes)
			total += result.Count
			fmt.Fprintf(os.Stderr, "  %s: %d runs changed\n", filepath.Base(path), result.Count)
		}

		if changelogPath != "" {
			if err := writeChangelog(changes, changelogPath); err != nil {
				return err
			}
		}
		if err := changes.WriteText(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nFiles: %d processed, %d failed\n", len(paths)-failed, failed)
		fmt.Printf("Text runs changed: %d\n", total)
		return nil
	},
}

func init() {
	replaceTextCmd.Flags().StringVar(&replaceOld, "old", "", "text to find")
	replaceTextCmd.Flags().StringVar(&replaceNew, "new", "", "replacement text (empty deletes)")
	replaceTextCmd.Flags().BoolVar(&replaceCaseSens, "case-sensitive", false, "match case exactly")
	replaceTextCmd.Flags().BoolVar(&replaceWholeWords, "whole-words", false, "match whole words only")
	replaceTextCmd.Flags().StringVar(&changelogPath, "changelog", "", "write the change log to this file (.json for JSON)")
	replaceTextCmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip pre-write backups for this run")
}
