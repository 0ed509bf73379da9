// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/harvest-engine/internal/docstore"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

// testProvider builds a provider with one paginated list service request
// pointed at baseURL.
func testProvider(baseURL string) (*types.Provider, *types.ServiceRequest) {
	p := &types.Provider{
		Name: "crossref",
		Properties: map[string]string{
			"api_base_url": baseURL,
		},
		ServiceRequests: []types.ServiceRequest{{
			Name:           "works_search",
			Service:        "works",
			Type:           types.SrTypeList,
			PaginationType: "offset",
			ListKey:        "results",
			QueryParameters: []types.RequestParameter{
				{Name: "q", Value: "[QUERY]"},
				{Name: "offset", Value: "[OFFSET]"},
				{Name: "rows", Value: "[PAGE_SIZE]"},
			},
			Configs: []types.SrConfig{
				{Name: ConfigEndpoint, Value: "[API_BASE_URL]/works"},
			},
			ResponseKeys: []types.SrResponseKey{
				{Name: "item_id", Value: "id", ShowInResponse: true, ListItem: true, ReturnDataType: types.ReturnText},
				{Name: "title", Value: "title", ShowInResponse: true, ListItem: true, ReturnDataType: types.ReturnText},
			},
		}},
	}
	return p, &p.ServiceRequests[0]
}

// pagedServer serves three pages of two, one, and zero items and records
// the offsets it was asked for.
func pagedServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var offsets []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)

		var items []map[string]any
		switch offset {
		case "0":
			items = []map[string]any{
				{"id": "w1", "title": "First"},
				{"id": "w2", "title": "Second"},
			}
		case "2":
			items = []map[string]any{
				{"id": "w3", "title": "Third"},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": items})
	}))
	t.Cleanup(ts.Close)
	return ts, &offsets
}

func TestRunPaginatesAndStores(t *testing.T) {
	ts, offsets := pagedServer(t)
	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider(ts.URL)
	runner := NewRunner(ts.Client(), store, nil, types.HarvestConfig{}, zap.NewNop())

	summary, err := runner.Run(context.Background(), p, sr, "widgets", io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 3, summary.Stored)
	assert.Equal(t, 0, summary.Failed)
	assert.False(t, summary.HasFailures())

	// Each page's offset is the count of items already seen.
	assert.Equal(t, []string{"0", "2", "3"}, *offsets)

	collection := docstore.CollectionName("works", types.SrTypeList)
	count, err := store.Count(context.Background(), collection)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	doc, err := store.Get(context.Background(), collection, "w1")
	require.NoError(t, err)
	assert.Equal(t, "First", doc["title"])
	assert.Equal(t, "crossref", doc[types.FieldProvider])
	assert.Equal(t, "works_search", doc[types.FieldServiceRequest])
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	ts, _ := pagedServer(t)
	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider(ts.URL)
	runner := NewRunner(ts.Client(), store, nil, types.HarvestConfig{}, zap.NewNop())

	_, err = runner.Run(context.Background(), p, sr, "widgets", io.Discard)
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), p, sr, "widgets", io.Discard)
	require.NoError(t, err)

	count, err := store.Count(context.Background(), docstore.CollectionName("works", types.SrTypeList))
	require.NoError(t, err)
	assert.Equal(t, 3, count, "re-harvest upserts instead of duplicating")
}

func TestRunSinglePageWithoutPagination(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `{"results": [{"id": "only", "title": "One"}]}`)
	}))
	defer ts.Close()

	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider(ts.URL)
	sr.PaginationType = ""
	runner := NewRunner(ts.Client(), store, nil, types.HarvestConfig{}, zap.NewNop())

	summary, err := runner.Run(context.Background(), p, sr, "", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 1, calls)
}

func TestRunMaxPagesCap(t *testing.T) {
	// Endless pages of one item each; the cap has to stop the loop.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		fmt.Fprintf(w, `{"results": [{"id": "item-%s", "title": "t"}]}`, offset)
	}))
	defer ts.Close()

	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider(ts.URL)
	runner := NewRunner(ts.Client(), store, nil, types.HarvestConfig{MaxPages: 4}, zap.NewNop())

	summary, err := runner.Run(context.Background(), p, sr, "", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Pages)
	assert.Equal(t, 4, summary.Fetched)
}

func TestRunMissingEndpoint(t *testing.T) {
	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider("http://unused")
	sr.Configs = nil
	runner := NewRunner(http.DefaultClient, store, nil, types.HarvestConfig{}, zap.NewNop())

	_, err = runner.Run(context.Background(), p, sr, "", io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint configured")
}

func TestRunProviderErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider(ts.URL)
	runner := NewRunner(ts.Client(), store, nil, types.HarvestConfig{}, zap.NewNop())

	_, err = runner.Run(context.Background(), p, sr, "", io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestFetchReturnsWithoutPersisting(t *testing.T) {
	ts, _ := pagedServer(t)

	p, sr := testProvider(ts.URL)
	runner := NewRunner(ts.Client(), nil, nil, types.HarvestConfig{}, zap.NewNop())

	docs, err := runner.Fetch(context.Background(), p, sr, "widgets")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "First", docs[0]["title"])
	assert.Equal(t, "crossref", docs[0][types.FieldProvider])
}

func TestListLevelKeysTravelWithItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{
			"meta": {"total": 42, "label": "ignored"},
			"results": [{"id": "w1", "title": "First"}, {"id": "w2", "title": "Second"}]
		}`)
	}))
	defer ts.Close()

	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider(ts.URL)
	sr.PaginationType = ""
	sr.ResponseKeys = append(sr.ResponseKeys,
		types.SrResponseKey{Name: "total_results", Value: "meta.total", ShowInResponse: true, ListItem: false, ReturnDataType: types.ReturnText},
		types.SrResponseKey{Name: "title", Value: "meta.label", ShowInResponse: true, ListItem: false, ReturnDataType: types.ReturnText},
	)
	runner := NewRunner(ts.Client(), store, nil, types.HarvestConfig{}, zap.NewNop())

	docs, err := runner.Fetch(context.Background(), p, sr, "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.Equal(t, float64(42), doc["total_results"],
			"list-level keys resolve against the parent structure")
	}
	assert.Equal(t, "First", docs[0]["title"], "the item's own field wins over a list-level one")

	_, err = runner.Run(context.Background(), p, sr, "", io.Discard)
	require.NoError(t, err)
	stored, err := store.Get(context.Background(), docstore.CollectionName("works", types.SrTypeList), "w2")
	require.NoError(t, err)
	assert.Equal(t, float64(42), stored["total_results"])
	assert.Equal(t, "Second", stored["title"])
}

func TestRunXMLResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<feed><entry><id>x1</id><title>Alpha</title></entry><entry><id>x2</id><title>Beta</title></entry></feed>`)
	}))
	defer ts.Close()

	store, err := docstore.NewMemoryStore(zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	p, sr := testProvider(ts.URL)
	sr.PaginationType = ""
	sr.ListKey = "feed"
	sr.ListItemRepeaterKey = "entry"

	runner := NewRunner(ts.Client(), store, nil, types.HarvestConfig{}, zap.NewNop())
	summary, err := runner.Run(context.Background(), p, sr, "", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stored)

	doc, err := store.Get(context.Background(), docstore.CollectionName("works", types.SrTypeList), "x1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", doc["title"])
}

func TestBuildContextDefaults(t *testing.T) {
	runner := NewRunner(http.DefaultClient, nil, nil, types.HarvestConfig{}, zap.NewNop())
	p, sr := testProvider("http://x")
	sr.DefaultData = map[string]any{"page_size": 25, "sort": "created"}

	tctx := runner.buildContext(p, sr, "q", 3, 50)
	assert.Equal(t, 3, tctx.Values["page_number"])
	assert.Equal(t, 50, tctx.Values["offset"])
	assert.Equal(t, 25, tctx.Values["page_size"], "default data wins over the built-in page size")
	assert.Equal(t, "created", tctx.Values["sort"])
}
