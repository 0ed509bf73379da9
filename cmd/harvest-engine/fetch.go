// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvest-engine/internal/cache"
	"github.com/pdiddy/harvest-engine/internal/harvest"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "harvest-engine/0.1"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch live provider data (api_direct mode)",
	Long: `Fetch resolves one service request against its provider live,
maps the response items onto the configured response keys, and prints
them without persisting anything. Responses are cached when a response
cache is configured.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("provider", "", "provider name")
	fetchCmd.Flags().String("request", "", "service request name, or provider/request")
	fetchCmd.Flags().String("query", "", "search query substituted for [QUERY]")
	fetchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	providerKey, _ := cmd.Flags().GetString("provider")
	requestKey, _ := cmd.Flags().GetString("request")
	p, sr, err := resolveServiceRequest(reg, providerKey, requestKey)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	ctx := context.Background()
	respCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer respCache.Close()

	runner := harvest.NewRunner(client, nil, respCache, cfg.Harvest, newLogger())

	query, _ := cmd.Flags().GetString("query")
	docs, err := runner.Fetch(ctx, p, sr, query)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
