// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// NormalizeSummary holds counts from one date-normalization batch.
type NormalizeSummary struct {
	Updated int
	Skipped int
	Failed  int
}

// NormalizeDates rewrites a date field of every document in the
// collection to RFC 3339. A value that fails to parse is retried with
// "/" separators normalized to "-"; if that also fails the document is
// logged with enough context for manual inspection and the batch
// continues. One bad date never aborts the run.
func (s *Store) NormalizeDates(ctx context.Context, collection, field, layout string) (NormalizeSummary, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return NormalizeSummary{}, err
	}
	if !fieldPattern.MatchString(field) {
		return NormalizeSummary{}, fmt.Errorf("invalid field name %q", field)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, body FROM %q`, collection))
	if err != nil {
		return NormalizeSummary{}, fmt.Errorf("reading %s: %w", collection, err)
	}
	defer rows.Close()

	type pending struct{ id, value string }
	var work []pending
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return NormalizeSummary{}, err
		}
		work = append(work, pending{id: id, value: gjson.Get(body, field).String()})
	}
	if err := rows.Err(); err != nil {
		return NormalizeSummary{}, err
	}

	var summary NormalizeSummary
	for _, p := range work {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if p.value == "" {
			summary.Skipped++
			continue
		}

		normalized, ok := parseDate(p.value, layout)
		if !ok {
			s.logger.Warn("date normalization failed",
				zap.String("collection", collection),
				zap.String("id", p.id),
				zap.String("field", field),
				zap.String("value", p.value))
			summary.Failed++
			continue
		}
		if normalized == p.value {
			summary.Skipped++
			continue
		}

		if err := s.UpdateFields(ctx, collection, p.id, map[string]any{field: normalized}); err != nil {
			s.logger.Warn("date normalization update failed",
				zap.String("collection", collection),
				zap.String("id", p.id),
				zap.Error(err))
			summary.Failed++
			continue
		}
		summary.Updated++
	}
	return summary, nil
}

// normalizeLayouts are tried in order when no explicit layout is given.
var normalizeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
}

func parseDate(value, layout string) (string, bool) {
	layouts := normalizeLayouts
	if layout != "" {
		layouts = []string{layout}
	}
	for _, candidate := range []string{value, strings.ReplaceAll(value, "/", "-")} {
		for _, l := range layouts {
			if t, err := time.Parse(l, candidate); err == nil {
				return t.Format(time.RFC3339), true
			}
		}
	}
	return "", false
}
