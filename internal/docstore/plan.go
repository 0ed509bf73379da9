// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Comparison is a filter operator. The set mirrors the document store's
// native operators.
type Comparison string

const (
	CmpEq    Comparison = "="
	CmpNe    Comparison = "!="
	CmpGt    Comparison = ">"
	CmpGte   Comparison = ">="
	CmpLt    Comparison = "<"
	CmpLte   Comparison = "<="
	CmpIn    Comparison = "in"
	CmpNin   Comparison = "nin"
	CmpRegex Comparison = "like"
)

// Valid reports whether c is a known operator.
func (c Comparison) Valid() bool {
	switch c {
	case CmpEq, CmpNe, CmpGt, CmpGte, CmpLt, CmpLte, CmpIn, CmpNin, CmpRegex:
		return true
	}
	return false
}

// BoolGroup assigns a condition to the filter's AND or OR group.
type BoolGroup string

const (
	GroupAnd BoolGroup = "and"
	GroupOr  BoolGroup = "or"
)

// Condition is one mandatory field filter.
type Condition struct {
	Column     string
	Comparison Comparison
	Value      any
	Group      BoolGroup
}

// PriorityField ranks results by relevance without filtering them out on
// its own. Rank is the field's 1-based position in declaration order.
type PriorityField struct {
	Column string
	Value  string
}

// IsNumeric reports whether the priority value should match by equality
// rather than regex.
func (p PriorityField) IsNumeric() bool {
	_, err := strconv.ParseFloat(p.Value, 64)
	return err == nil
}

// SortField is one explicit sort directive, applied after rank.
type SortField struct {
	Column string
	Desc   bool
}

// rankSentinel is the default rank for documents matching no priority
// branch. Priority ranks are 1-based, so anything real sorts before it.
const rankSentinel = 99

// Plan is a finalized, immutable query: filter, ranking, sort,
// pagination, and position pins. Build one with Builder.
type Plan struct {
	Conditions []Condition
	Priorities []PriorityField
	Sort       []SortField
	Pins       types.PositionConfig

	// Paginate selects offset/limit mode; cleared means every matching
	// document comes back as one logical page.
	Paginate bool
	Page     int
	PerPage  int
}

// Ranked reports whether priority ranking applies: at least one priority
// field carries a non-empty free-text value.
func (p Plan) Ranked() bool {
	for _, pf := range p.Priorities {
		if pf.Value != "" {
			return true
		}
	}
	return false
}

// offset returns the first global result index of the requested page.
func (p Plan) offset() int {
	if !p.Paginate {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Builder assembles a Plan. Finalize consumes the builder: further
// mutation or a second Finalize is an error, so ranking stages can never
// be applied twice to one logical query.
type Builder struct {
	plan      Plan
	err       error
	finalized bool
}

// NewBuilder returns an empty plan builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
	return b
}

// Where adds a mandatory condition to the AND group.
func (b *Builder) Where(column string, cmp Comparison, value any) *Builder {
	return b.condition(column, cmp, value, GroupAnd)
}

// OrWhere adds a mandatory condition to the OR group.
func (b *Builder) OrWhere(column string, cmp Comparison, value any) *Builder {
	return b.condition(column, cmp, value, GroupOr)
}

func (b *Builder) condition(column string, cmp Comparison, value any, group BoolGroup) *Builder {
	if b.finalized {
		return b.fail("plan already finalized")
	}
	if !cmp.Valid() {
		return b.fail("unknown comparison %q on column %s", cmp, column)
	}
	if !fieldPattern.MatchString(column) {
		return b.fail("invalid column name %q", column)
	}
	b.plan.Conditions = append(b.plan.Conditions, Condition{
		Column: column, Comparison: cmp, Value: value, Group: group,
	})
	return b
}

// Priority appends a relevance field. Declaration order is rank order.
func (b *Builder) Priority(column, value string) *Builder {
	if b.finalized {
		return b.fail("plan already finalized")
	}
	if !fieldPattern.MatchString(column) {
		return b.fail("invalid column name %q", column)
	}
	b.plan.Priorities = append(b.plan.Priorities, PriorityField{Column: column, Value: value})
	return b
}

// SortBy appends an explicit sort, applied after priority rank.
func (b *Builder) SortBy(column string, desc bool) *Builder {
	if b.finalized {
		return b.fail("plan already finalized")
	}
	if !fieldPattern.MatchString(column) {
		return b.fail("invalid column name %q", column)
	}
	b.plan.Sort = append(b.plan.Sort, SortField{Column: column, Desc: desc})
	return b
}

// Paginate sets offset pagination: offset = (page-1)*perPage.
func (b *Builder) Paginate(page, perPage int) *Builder {
	if b.finalized {
		return b.fail("plan already finalized")
	}
	if page < 1 || perPage < 1 {
		return b.fail("invalid pagination page=%d perPage=%d", page, perPage)
	}
	b.plan.Paginate = true
	b.plan.Page = page
	b.plan.PerPage = perPage
	return b
}

// Pins attaches position-pin configuration.
func (b *Builder) Pins(cfg types.PositionConfig) *Builder {
	if b.finalized {
		return b.fail("plan already finalized")
	}
	b.plan.Pins = cfg
	return b
}

// Finalize consumes the builder and returns the immutable plan.
func (b *Builder) Finalize() (Plan, error) {
	if b.err != nil {
		return Plan{}, b.err
	}
	if b.finalized {
		return Plan{}, fmt.Errorf("plan already finalized")
	}
	b.finalized = true
	return b.plan, nil
}

// fieldPattern constrains filter/sort column names to dotted JSON paths.
var fieldPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)*$`)
