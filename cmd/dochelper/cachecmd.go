package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ItMeDiaTech/Doc-Helper-sub000/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the extraction cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [pattern]",
	Short: "Invalidate cached extraction results",
	Long: `Clear removes cached extraction results. With no argument everything
is invalidated; a pattern with '*' wildcards restricts the sweep, e.g.
'extract:/data/reports/*'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Cache.Path == "" {
			return fmt.Errorf("no cache configured (cache.path is empty)")
		}
		store, err := cache.NewSQLiteStore(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		pattern := "*"
		if len(args) == 1 {
			pattern = args[0]
		}
		if err := store.Invalidate(cmd.Context(), pattern); err != nil {
			return err
		}
		fmt.Printf("invalidated entries matching %q\n", pattern)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
