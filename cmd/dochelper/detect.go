package main

import (
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [files or folders...]",
	Short: "Report title mismatches without modifying any file",
	Long: `Detect runs the pipeline in read-only mode: hyperlinks are extracted
and resolved as usual, but instead of rewriting, each link whose display
text disagrees with the resolved title is reported with its position and
the correct title. No file is touched.

Examples:
  dochelper detect ./documents
  dochelper detect report.docx -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocuments(cmd, args, true)
	},
}

func init() {
	detectCmd.Flags().StringVar(&changelogPath, "changelog", "", "write the mismatch report to this file (.json for JSON)")
}
