// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/harvest-engine/internal/discover"
	"github.com/pdiddy/harvest-engine/internal/harvest"
	"github.com/pdiddy/harvest-engine/internal/httputil"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Auto-discover response keys from a sample response",
	Long: `Populate bootstraps a service request's response-key mapping from a
real response: it locates the item container, flattens one item, and
binds each leaf to an existing or newly created response key. Existing
key values are never overwritten unless --overwrite is set.

The sample comes from --sample (a saved response file) or, with --live,
from fetching the service request once. XML samples need list_key and
list_item_repeater_key configured up front.`,
	RunE: runPopulate,
}

func init() {
	populateCmd.Flags().String("provider", "", "provider name")
	populateCmd.Flags().String("request", "", "service request name, or provider/request")
	populateCmd.Flags().String("sample", "", "file holding a saved raw response")
	populateCmd.Flags().Bool("live", false, "fetch one live response as the sample")
	populateCmd.Flags().String("query", "", "search query for the live fetch")
	populateCmd.Flags().Bool("overwrite", false, "overwrite existing key values and the list key")
	populateCmd.Flags().Bool("xml", false, "treat the sample as XML (default: sniff)")

	rootCmd.AddCommand(populateCmd)
}

func runPopulate(cmd *cobra.Command, args []string) error {
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

	sample, isXML, err := loadSample(cmd, cfg, p, sr)
	if err != nil {
		return err
	}

	overwrite, _ := cmd.Flags().GetBool("overwrite")
	pop := discover.New(overwrite)

	var bindings []discover.Binding
	if isXML {
		bindings, err = pop.PopulateXML(sr, sample)
	} else {
		bindings, err = pop.PopulateJSON(sr, sample)
	}
	if err != nil {
		return err
	}
	if pop.HasErrors() {
		for _, msg := range pop.Errors() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
		}
	}

	created := 0
	for _, b := range bindings {
		marker := "bound"
		if b.Created {
			marker = "created"
			created++
		}
		fmt.Printf("%-8s  %-30s  %s\n", marker, b.Name, b.Path)
	}
	fmt.Printf("\n%d keys (%d new), list_key=%s\n", len(bindings), created, sr.ListKey)

	// Print the resulting key set so it can be pasted back into the
	// provider definition file.
	out, err := yaml.Marshal(map[string]any{
		"list_key":      sr.ListKey,
		"response_keys": sr.ResponseKeys,
	})
	if err != nil {
		return err
	}
	fmt.Printf("\n%s", out)
	return nil
}

// loadSample returns the sample body and whether it is XML.
func loadSample(cmd *cobra.Command, cfg types.Config, p *types.Provider, sr *types.ServiceRequest) ([]byte, bool, error) {
	forceXML, _ := cmd.Flags().GetBool("xml")

	if path, _ := cmd.Flags().GetString("sample"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("reading sample file: %w", err)
		}
		resp := httputil.Response{Body: data}
		return data, forceXML || resp.IsXML(), nil
	}

	live, _ := cmd.Flags().GetBool("live")
	if !live {
		return nil, false, fmt.Errorf("provide --sample or --live")
	}

	query, _ := cmd.Flags().GetString("query")
	client := &http.Client{Timeout: defaultTimeout}
	runner := harvest.NewRunner(client, nil, nil, cfg.Harvest, newLogger())

	resp, err := runner.FetchRaw(context.Background(), p, sr, query)
	if err != nil {
		return nil, false, err
	}
	return resp.Body, forceXML || resp.IsXML(), nil
}
