// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

// SearchResult is one executed plan: the (pin-merged) document page and
// the corrected total for page-count math.
type SearchResult struct {
	Documents []types.Document
	Total     int
	Page      int
	PerPage   int
}

// Search executes a finalized plan against the collection. Pinned
// documents are excluded from the ranked query up front, fetched
// independently by id, and spliced into the page; the reported total is
// the raw filtered count plus the number of pinned ids so page-count
// math stays correct across the whole result set.
func (s *Store) Search(ctx context.Context, collection string, plan Plan) (*SearchResult, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return nil, err
	}

	where, args := compileFilter(plan)

	var total int
	countSQL := fmt.Sprintf(`SELECT count(*) FROM %q%s`, collection, where)
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting %s: %w", collection, err)
	}

	querySQL, queryArgs := compileSelect(collection, plan, where, args)
	rows, err := s.db.QueryContext(ctx, querySQL, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var id, body string
		var rank int
		if err := rows.Scan(&id, &body, &rank); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(body)
		if err != nil {
			s.logger.Warn("skipping undecodable document",
				zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pinnedIDs := plan.Pins.PinnedIDs()
	if len(pinnedIDs) > 0 {
		pinned, err := s.fetchByIDs(ctx, collection, pinnedIDs)
		if err != nil {
			return nil, err
		}
		docs = mergePins(docs, plan, pinned)
		total += len(pinnedIDs)
	}

	return &SearchResult{
		Documents: docs,
		Total:     total,
		Page:      plan.Page,
		PerPage:   plan.PerPage,
	}, nil
}

// fieldExpr addresses a document field inside the JSON body.
func fieldExpr(column string) string {
	return fmt.Sprintf("json_extract(body, '$.%s')", column)
}

// compileFilter renders the plan's boolean groups, priority OR filter,
// and pin exclusion as one WHERE clause.
func compileFilter(plan Plan) (string, []any) {
	var clauses []string
	var args []any

	// OR-group clauses are emitted after the mandatory ones, so their
	// args must be buffered and appended at the same point, or an OR
	// condition declared mid-builder would shift every later binding.
	var orParts []string
	var orArgs []any
	for _, c := range plan.Conditions {
		sql, condArgs := conditionSQL(c)
		if c.Group == GroupOr {
			orParts = append(orParts, sql)
			orArgs = append(orArgs, condArgs...)
		} else {
			clauses = append(clauses, sql)
			args = append(args, condArgs...)
		}
	}
	if len(orParts) > 0 {
		clauses = append(clauses, "("+strings.Join(orParts, " OR ")+")")
		args = append(args, orArgs...)
	}

	// Ranked mode additionally requires a hit on at least one priority
	// field; priority fields never filter on their own otherwise.
	if plan.Ranked() {
		var prioParts []string
		for _, pf := range plan.Priorities {
			if pf.Value == "" {
				continue
			}
			sql, matchArgs := priorityMatchSQL(pf)
			prioParts = append(prioParts, sql)
			args = append(args, matchArgs...)
		}
		clauses = append(clauses, "("+strings.Join(prioParts, " OR ")+")")
	}

	if ids := plan.Pins.PinnedIDs(); len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		clauses = append(clauses, fmt.Sprintf("id NOT IN (%s)", placeholders))
		for _, id := range ids {
			args = append(args, id)
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// conditionSQL renders one mandatory condition.
func conditionSQL(c Condition) (string, []any) {
	field := fieldExpr(c.Column)
	switch c.Comparison {
	case CmpIn, CmpNin:
		values := anySlice(c.Value)
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		op := "IN"
		if c.Comparison == CmpNin {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", field, op, placeholders), values
	case CmpRegex:
		return fmt.Sprintf("regexp(?, coalesce(%s, ''))", field), []any{fmt.Sprint(c.Value)}
	default:
		return fmt.Sprintf("%s %s ?", field, c.Comparison), []any{c.Value}
	}
}

// priorityMatchSQL renders one priority branch: numeric values match by
// equality, everything else by case-insensitive regex.
func priorityMatchSQL(pf PriorityField) (string, []any) {
	field := fieldExpr(pf.Column)
	if pf.IsNumeric() {
		n, _ := strconv.ParseFloat(pf.Value, 64)
		return fmt.Sprintf("%s = ?", field), []any{n}
	}
	return fmt.Sprintf("regexp(?, coalesce(%s, ''))", field), []any{pf.Value}
}

// compileSelect renders the full ranked, sorted, paginated query. The
// rank column is the ranked-branch CASE: first matching priority field
// wins, branch position is the rank, no match gets the sentinel.
func compileSelect(collection string, plan Plan, where string, filterArgs []any) (string, []any) {
	rankExpr := "0"
	var rankArgs []any
	if plan.Ranked() {
		var sb strings.Builder
		sb.WriteString("CASE")
		rank := 0
		for _, pf := range plan.Priorities {
			if pf.Value == "" {
				continue
			}
			rank++
			sql, matchArgs := priorityMatchSQL(pf)
			fmt.Fprintf(&sb, " WHEN %s THEN %d", sql, rank)
			rankArgs = append(rankArgs, matchArgs...)
		}
		fmt.Fprintf(&sb, " ELSE %d END", rankSentinel)
		rankExpr = sb.String()
	}

	var order []string
	if plan.Ranked() {
		order = append(order, "rank ASC")
	}
	for _, sf := range plan.Sort {
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		order = append(order, fmt.Sprintf("%s %s", fieldExpr(sf.Column), dir))
	}
	order = append(order, "id ASC")

	query := fmt.Sprintf(`SELECT id, body, %s AS rank FROM %q%s ORDER BY %s`,
		rankExpr, collection, where, strings.Join(order, ", "))
	args := append(rankArgs, filterArgs...)

	if plan.Paginate {
		query += " LIMIT ? OFFSET ?"
		args = append(args, plan.PerPage, plan.offset())
	}
	return query, args
}

// anySlice widens supported condition value shapes to []any.
func anySlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// mergePins splices pinned documents into one fetched page. Start pins
// prepend on the first page only, in declaration order; end pins append
// on every page; custom pins land at their global insert index when it
// falls inside the current page window, spliced in descending index
// order so earlier splices cannot shift later targets.
func mergePins(docs []types.Document, plan Plan, pinned map[string]types.Document) []types.Document {
	pageStart := plan.offset()

	if pageStart == 0 {
		for i := len(plan.Pins.Start) - 1; i >= 0; i-- {
			if doc, ok := pinned[plan.Pins.Start[i].DocumentID]; ok {
				docs = append([]types.Document{doc}, docs...)
			}
		}
	}

	for _, pin := range plan.Pins.End {
		if doc, ok := pinned[pin.DocumentID]; ok {
			docs = append(docs, doc)
		}
	}

	custom := make([]types.Pin, len(plan.Pins.Custom))
	copy(custom, plan.Pins.Custom)
	sort.Slice(custom, func(i, j int) bool {
		return custom[i].InsertIndex > custom[j].InsertIndex
	})

	for _, pin := range custom {
		doc, ok := pinned[pin.DocumentID]
		if !ok {
			continue
		}
		if plan.Paginate {
			if pin.InsertIndex < pageStart || pin.InsertIndex >= pageStart+plan.PerPage {
				continue
			}
		}
		local := pin.InsertIndex - pageStart
		if local < 0 {
			continue
		}
		if local > len(docs) {
			local = len(docs)
		}
		docs = append(docs[:local], append([]types.Document{doc}, docs[local:]...)...)
	}

	return docs
}
