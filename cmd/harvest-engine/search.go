// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/harvest-engine/internal/docstore"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [collection]",
	Short: "Search harvested documents in the document store",
	Long: `Search runs a fielded query against one collection of harvested
documents (database mode). Filters are exact comparisons, priority fields
rank matching documents by which field matched first, and a pin file
forces specific documents into result positions.

Filter syntax: field=value, field!=value, field>value, field>=value,
field<value, field<=value, field~value (case-insensitive regex).`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringArray("filter", nil, "mandatory filter, repeatable (AND)")
	searchCmd.Flags().StringArray("or-filter", nil, "alternative filter, repeatable (documents match at least one)")
	searchCmd.Flags().StringArray("priority", nil, "priority field=value, repeatable; rank follows flag order")
	searchCmd.Flags().StringArray("sort", nil, "sort field, append :desc for descending")
	searchCmd.Flags().Int("page", 0, "page number (0 = no pagination)")
	searchCmd.Flags().Int("per-page", 0, "page size (default from config)")
	searchCmd.Flags().String("pins", "", "YAML pin file forcing documents into positions")
	searchCmd.Flags().String("format", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	collection := args[0]

	plan, err := buildPlan(cmd, cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Search(context.Background(), collection, plan)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	return writeSearchResult(result, format)
}

func buildPlan(cmd *cobra.Command, cfg types.Config) (docstore.Plan, error) {
	b := docstore.NewBuilder()

	filters, _ := cmd.Flags().GetStringArray("filter")
	for _, f := range filters {
		column, cmpOp, value, err := parseFilter(f)
		if err != nil {
			return docstore.Plan{}, err
		}
		b.Where(column, cmpOp, value)
	}

	orFilters, _ := cmd.Flags().GetStringArray("or-filter")
	for _, f := range orFilters {
		column, cmpOp, value, err := parseFilter(f)
		if err != nil {
			return docstore.Plan{}, err
		}
		b.OrWhere(column, cmpOp, value)
	}

	priorities, _ := cmd.Flags().GetStringArray("priority")
	for _, p := range priorities {
		column, value, ok := strings.Cut(p, "=")
		if !ok {
			return docstore.Plan{}, fmt.Errorf("invalid priority %q: want field=value", p)
		}
		b.Priority(column, value)
	}

	sorts, _ := cmd.Flags().GetStringArray("sort")
	for _, s := range sorts {
		column, order, _ := strings.Cut(s, ":")
		b.SortBy(column, order == "desc")
	}

	page, _ := cmd.Flags().GetInt("page")
	if page > 0 {
		perPage, _ := cmd.Flags().GetInt("per-page")
		if perPage <= 0 {
			perPage = cfg.Store.MaxResults
		}
		b.Paginate(page, perPage)
	}

	pinFile, _ := cmd.Flags().GetString("pins")
	if pinFile != "" {
		pins, err := readPinFile(pinFile)
		if err != nil {
			return docstore.Plan{}, err
		}
		b.Pins(pins)
	}

	return b.Finalize()
}

// parseFilter splits one filter expression into column, comparison, and
// value. Two-character operators are tried before their one-character
// prefixes.
func parseFilter(expr string) (string, docstore.Comparison, string, error) {
	ops := []struct {
		token string
		cmp   docstore.Comparison
	}{
		{"!=", docstore.CmpNe},
		{">=", docstore.CmpGte},
		{"<=", docstore.CmpLte},
		{">", docstore.CmpGt},
		{"<", docstore.CmpLt},
		{"~", docstore.CmpRegex},
		{"=", docstore.CmpEq},
	}
	for _, op := range ops {
		if column, value, ok := strings.Cut(expr, op.token); ok && column != "" {
			return column, op.cmp, value, nil
		}
	}
	return "", "", "", fmt.Errorf("invalid filter %q: want field<op>value", expr)
}

func readPinFile(path string) (types.PositionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.PositionConfig{}, fmt.Errorf("reading pin file: %w", err)
	}
	var pins types.PositionConfig
	if err := yaml.Unmarshal(data, &pins); err != nil {
		return types.PositionConfig{}, fmt.Errorf("parsing pin file %s: %w", path, err)
	}
	return pins, nil
}

func writeSearchResult(result *docstore.SearchResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Documents)
	case "yaml":
		data, err := yaml.Marshal(result.Documents)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	case "table", "":
		if len(result.Documents) == 0 {
			fmt.Println("No documents found.")
			return nil
		}
		for i, doc := range result.Documents {
			fmt.Printf("%-4d  %-30s  %s\n", i+1, doc.ItemID(), docTitle(doc))
		}
		fmt.Printf("\n%s\n", searchFooter(result))
		return nil
	}
	return fmt.Errorf("unsupported format %q: use table, json, or yaml", format)
}

// searchFooter summarizes one result page. Unpaginated searches have no
// page to report.
func searchFooter(result *docstore.SearchResult) string {
	footer := fmt.Sprintf("%d of %d documents", len(result.Documents), result.Total)
	if result.Page > 0 {
		footer += fmt.Sprintf(" (page %d)", result.Page)
	}
	return footer
}

// docTitle picks a human-readable label from a schemaless document.
func docTitle(doc types.Document) string {
	for _, key := range []string{"title", "name", "label"} {
		if v, ok := doc[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
