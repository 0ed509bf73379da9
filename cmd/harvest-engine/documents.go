// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Operate on stored documents",
}

var documentsMoveCmd = &cobra.Command{
	Use:   "move [source-collection] [destination-collection] [id]",
	Short: "Move a document between collections",
	Long: `Move relocates one document, addressed by id, from one collection to
another. When the destination already holds the same item identity the
source copy is dropped instead of stored twice.`,
	Args: cobra.ExactArgs(3),
	RunE: runDocumentsMove,
}

func init() {
	documentsCmd.AddCommand(documentsMoveCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsMove(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	store, err := openStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	src, dst, id := args[0], args[1], args[2]
	if err := store.MoveDocument(context.Background(), src, dst, id); err != nil {
		return err
	}

	fmt.Printf("moved %s from %s to %s\n", id, src, dst)
	return nil
}
