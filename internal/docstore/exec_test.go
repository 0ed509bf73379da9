// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore(nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store, collection string, docs ...types.Document) {
	t.Helper()
	for _, d := range docs {
		if _, ok := d[types.FieldProvider]; !ok {
			d[types.FieldProvider] = "acme"
		}
		if _, ok := d[types.FieldServiceRequest]; !ok {
			d[types.FieldServiceRequest] = "items"
		}
		require.NoError(t, s.Upsert(context.Background(), collection, d))
	}
}

func ids(docs []types.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ItemID()
	}
	return out
}

func mustPlan(t *testing.T, b *Builder) Plan {
	t.Helper()
	plan, err := b.Finalize()
	require.NoError(t, err)
	return plan
}

// --- Filtering ---

func TestSearchMandatoryFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "1", "price": 5, "status": "new"},
		types.Document{types.FieldItemID: "2", "price": 15, "status": "new"},
		types.Document{types.FieldItemID: "3", "price": 25, "status": "used"},
	)

	res, err := s.Search(ctx, "books_list",
		mustPlan(t, NewBuilder().Where("price", CmpGt, 10).Where("status", CmpEq, "new")))
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, ids(res.Documents))
	require.Equal(t, 1, res.Total)
}

func TestSearchOrGroup(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "1", "status": "new"},
		types.Document{types.FieldItemID: "2", "status": "open"},
		types.Document{types.FieldItemID: "3", "status": "used"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().
			OrWhere("status", CmpEq, "new").
			OrWhere("status", CmpEq, "open")))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1", "2"}, ids(res.Documents))
}

func TestSearchInterleavedAndOrBindings(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "match", "a": 1, "b": 99, "c": 3},
		types.Document{types.FieldItemID: "nomatch", "a": 1, "b": 3, "c": 99},
	)

	// A mandatory condition declared after an OR condition must still
	// bind its own value: the OR clause moves to the end of the WHERE
	// text and its args have to move with it.
	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().
			Where("a", CmpEq, 1).
			OrWhere("b", CmpEq, 99).
			Where("c", CmpEq, 3)))
	require.NoError(t, err)
	require.Equal(t, []string{"match"}, ids(res.Documents))
}

func TestSearchRegexFilter(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "1", "title": "Apple Pie Recipes"},
		types.Document{types.FieldItemID: "2", "title": "Banana Bread"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().Where("title", CmpRegex, "apple")))
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, ids(res.Documents), "regex matching is case-insensitive")
}

// --- Priority ranking ---

func TestSearchPriorityExcludesNonMatches(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "1", "t": "apple pie"},
		types.Document{types.FieldItemID: "2", "t": "banana"},
		types.Document{types.FieldItemID: "3", "t": "apple"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().Priority("t", "apple")))
	require.NoError(t, err)

	// Both apple documents share rank 1; banana matches no priority
	// field and is excluded by the appended OR filter.
	require.ElementsMatch(t, []string{"1", "3"}, ids(res.Documents))
	require.NotContains(t, ids(res.Documents), "2")
}

func TestSearchPriorityRankOrder(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "1", "author": "smith", "title": "other"},
		types.Document{types.FieldItemID: "2", "author": "jones", "title": "smith biography"},
	)

	// title ranks ahead of author: branch order is rank order.
	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().Priority("title", "smith").Priority("author", "smith")))
	require.NoError(t, err)
	require.Equal(t, []string{"2", "1"}, ids(res.Documents))
}

func TestSearchPriorityNumericEquality(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "1", "year": 2024},
		types.Document{types.FieldItemID: "2", "year": 20241},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().Priority("year", "2024")))
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, ids(res.Documents),
		"numeric priority matches by equality, not substring")
}

// --- Pagination ---

func TestSearchPagination(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "1"},
		types.Document{types.FieldItemID: "2"},
		types.Document{types.FieldItemID: "3"},
		types.Document{types.FieldItemID: "4"},
		types.Document{types.FieldItemID: "5"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().Paginate(2, 2)))
	require.NoError(t, err)
	require.Equal(t, []string{"3", "4"}, ids(res.Documents))
	require.Equal(t, 5, res.Total)
}

// --- Position pinning ---

func TestSearchStartPinFirstPage(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "a"},
		types.Document{types.FieldItemID: "b"},
		types.Document{types.FieldItemID: "X"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().
			Paginate(1, 2).
			Pins(types.PositionConfig{Start: []types.Pin{{DocumentID: "X"}}})))
	require.NoError(t, err)

	require.Len(t, res.Documents, 3)
	require.Equal(t, "X", res.Documents[0].ItemID())
	// Excluded up front, so the pinned document is never double-counted
	// inside the page body.
	require.Equal(t, []string{"X", "a", "b"}, ids(res.Documents))
}

func TestSearchStartPinNotOnLaterPages(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "a"},
		types.Document{types.FieldItemID: "b"},
		types.Document{types.FieldItemID: "c"},
		types.Document{types.FieldItemID: "X"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().
			Paginate(2, 2).
			Pins(types.PositionConfig{Start: []types.Pin{{DocumentID: "X"}}})))
	require.NoError(t, err)
	require.NotContains(t, ids(res.Documents), "X")
}

func TestSearchEndPinEveryPage(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "a"},
		types.Document{types.FieldItemID: "b"},
		types.Document{types.FieldItemID: "c"},
		types.Document{types.FieldItemID: "Z"},
	)
	pins := types.PositionConfig{End: []types.Pin{{DocumentID: "Z"}}}

	for _, page := range []int{1, 2} {
		res, err := s.Search(context.Background(), "books_list",
			mustPlan(t, NewBuilder().Paginate(page, 2).Pins(pins)))
		require.NoError(t, err)
		docs := ids(res.Documents)
		require.Equal(t, "Z", docs[len(docs)-1], "page %d must end with the pin", page)
	}
}

func TestSearchCustomPinMidPage(t *testing.T) {
	s := testStore(t)
	var docs []types.Document
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		docs = append(docs, types.Document{types.FieldItemID: id})
	}
	docs = append(docs, types.Document{types.FieldItemID: "Y"})
	seed(t, s, "books_list", docs...)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().
			Paginate(1, 10).
			Pins(types.PositionConfig{Custom: []types.Pin{{DocumentID: "Y", InsertIndex: 3}}})))
	require.NoError(t, err)

	require.Len(t, res.Documents, 10)
	require.Equal(t, "Y", res.Documents[3].ItemID())
}

func TestSearchCustomPinOutsideWindow(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "a"},
		types.Document{types.FieldItemID: "b"},
		types.Document{types.FieldItemID: "Y"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().
			Paginate(1, 2).
			Pins(types.PositionConfig{Custom: []types.Pin{{DocumentID: "Y", InsertIndex: 7}}})))
	require.NoError(t, err)
	require.NotContains(t, ids(res.Documents), "Y")
}

func TestSearchTotalCountCorrection(t *testing.T) {
	s := testStore(t)
	var docs []types.Document
	for _, id := range []string{"1", "2", "3", "4", "5", "P1", "P2"} {
		docs = append(docs, types.Document{types.FieldItemID: id})
	}
	seed(t, s, "books_list", docs...)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().
			Paginate(1, 3).
			Pins(types.PositionConfig{
				Start: []types.Pin{{DocumentID: "P1"}},
				End:   []types.Pin{{DocumentID: "P2"}},
			})))
	require.NoError(t, err)

	// 5 raw matches (pins excluded) + 2 pinned ids.
	require.Equal(t, 7, res.Total)
}

func TestSearchUnpaginatedTreatsWholeResultAsPageOne(t *testing.T) {
	s := testStore(t)
	seed(t, s, "books_list",
		types.Document{types.FieldItemID: "a"},
		types.Document{types.FieldItemID: "b"},
		types.Document{types.FieldItemID: "X"},
		types.Document{types.FieldItemID: "Y"},
	)

	res, err := s.Search(context.Background(), "books_list",
		mustPlan(t, NewBuilder().Pins(types.PositionConfig{
			Start:  []types.Pin{{DocumentID: "X"}},
			Custom: []types.Pin{{DocumentID: "Y", InsertIndex: 2}},
		})))
	require.NoError(t, err)
	require.Equal(t, []string{"X", "a", "Y", "b"}, ids(res.Documents))
}

// --- mergePins unit behavior ---

func TestMergePinsMultipleStartOrder(t *testing.T) {
	plan := Plan{Pins: types.PositionConfig{
		Start: []types.Pin{{DocumentID: "s1"}, {DocumentID: "s2"}},
	}}
	pinned := map[string]types.Document{
		"s1": {types.FieldItemID: "s1"},
		"s2": {types.FieldItemID: "s2"},
	}

	got := mergePins([]types.Document{{types.FieldItemID: "a"}}, plan, pinned)
	require.Equal(t, []string{"s1", "s2", "a"}, ids(got),
		"reverse prepending must preserve declaration order")
}

func TestMergePinsDescendingCustomSplice(t *testing.T) {
	plan := Plan{Pins: types.PositionConfig{
		Custom: []types.Pin{
			{DocumentID: "c1", InsertIndex: 1},
			{DocumentID: "c2", InsertIndex: 3},
		},
	}}
	pinned := map[string]types.Document{
		"c1": {types.FieldItemID: "c1"},
		"c2": {types.FieldItemID: "c2"},
	}
	base := []types.Document{
		{types.FieldItemID: "a"},
		{types.FieldItemID: "b"},
		{types.FieldItemID: "c"},
	}

	got := mergePins(base, plan, pinned)
	// Descending splice order keeps both global targets accurate.
	require.Equal(t, []string{"a", "c1", "b", "c2", "c"}, ids(got))
}

func TestMergePinsMissingPinnedDocSkipped(t *testing.T) {
	plan := Plan{Pins: types.PositionConfig{Start: []types.Pin{{DocumentID: "ghost"}}}}
	got := mergePins([]types.Document{{types.FieldItemID: "a"}}, plan, map[string]types.Document{})
	require.Equal(t, []string{"a"}, ids(got))
}
