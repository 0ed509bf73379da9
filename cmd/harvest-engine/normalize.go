// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [collection]",
	Short: "Normalize a date field across a collection",
	Long: `Normalize rewrites one date field of every document in a collection
into ISO form. Values using "/" separators are retried with "-" before
being counted as failures; failed documents are logged and left as they
are.`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().String("field", "", "document field holding the date (required)")
	normalizeCmd.Flags().String("layout", "", "explicit Go time layout; empty tries the common ones")
	normalizeCmd.MarkFlagRequired("field")

	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	store, err := openStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	field, _ := cmd.Flags().GetString("field")
	layout, _ := cmd.Flags().GetString("layout")

	summary, err := store.NormalizeDates(context.Background(), args[0], field, layout)
	if err != nil {
		return err
	}

	fmt.Printf("normalized %s.%s: %d updated, %d unchanged, %d failed\n",
		args[0], field, summary.Updated, summary.Skipped, summary.Failed)
	return nil
}
