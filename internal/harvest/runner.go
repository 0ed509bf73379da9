// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest fetches provider data and persists normalized documents.
// A run walks one service request's pages sequentially, maps each page's
// items, and upserts them into the document store. The same machinery
// serves api_direct fetches, which map items without persisting.
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/harvest-engine/internal/cache"
	"github.com/pdiddy/harvest-engine/internal/docstore"
	"github.com/pdiddy/harvest-engine/internal/httputil"
	"github.com/pdiddy/harvest-engine/internal/request"
	"github.com/pdiddy/harvest-engine/internal/response"
	"github.com/pdiddy/harvest-engine/internal/template"
	"github.com/pdiddy/harvest-engine/pkg/types"
)

// Config slot names read from a service request.
const (
	ConfigEndpoint = "endpoint"
	ConfigMethod   = "method"
	ConfigHeaders  = "headers"
)

// Summary holds the outcome of one harvest run.
type Summary struct {
	Provider       string
	ServiceRequest string
	Pages          int
	Fetched        int
	Stored         int
	Failed         int
	Errors         []string
}

// Total returns the number of items seen across all pages.
func (s Summary) Total() int { return s.Fetched }

// HasFailures reports whether any item failed to persist.
func (s Summary) HasFailures() bool { return s.Failed > 0 || len(s.Errors) > 0 }

// Runner executes harvest runs and live fetches against providers.
type Runner struct {
	client *http.Client
	store  *docstore.Store
	cache  *cache.Cache
	cfg    types.HarvestConfig
	keymap template.Keymap
	logger *zap.Logger
}

// NewRunner builds a Runner. The store may be nil when the runner only
// serves api_direct fetches; the cache may always be nil.
func NewRunner(client *http.Client, store *docstore.Store, c *cache.Cache, cfg types.HarvestConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		client: client,
		store:  store,
		cache:  c,
		cfg:    cfg,
		keymap: template.DefaultKeymap(),
		logger: logger,
	}
}

// Run harvests every page of one service request and persists the mapped
// items. Pages are fetched strictly in sequence because each page's
// offset is the count of items already seen. Progress goes to w; the
// returned summary is also logged.
func (r *Runner) Run(ctx context.Context, p *types.Provider, sr *types.ServiceRequest, query string, w io.Writer) (*Summary, error) {
	timeout := r.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	summary := &Summary{Provider: p.Name, ServiceRequest: sr.Name}
	collection := docstore.CollectionName(sr.Service, sr.Type)

	maxPages := r.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 100
	}

	offset := 0
	for page := 1; page <= maxPages; page++ {
		items, err := r.fetchPage(ctx, p, sr, query, page, offset)
		if err != nil {
			return summary, fmt.Errorf("page %d: %w", page, err)
		}
		summary.Pages++
		summary.Fetched += len(items.docs)
		summary.Errors = append(summary.Errors, items.errs...)

		for _, doc := range items.docs {
			doc[types.FieldServiceRequest] = sr.Name
			if err := r.store.Upsert(ctx, collection, doc); err != nil {
				summary.Failed++
				r.logger.Warn("storing document failed",
					zap.String("collection", collection),
					zap.String("provider", p.Name),
					zap.Error(err))
				continue
			}
			summary.Stored++
		}
		fmt.Fprintf(w, "page %d: %d items, %d stored\n", page, len(items.docs), summary.Stored)

		if sr.PaginationType == "" || len(items.docs) == 0 {
			break
		}
		offset += len(items.docs)

		if r.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(r.cfg.PageDelay):
			}
		}
	}

	r.logger.Info("harvest run finished",
		zap.String("provider", p.Name),
		zap.String("service_request", sr.Name),
		zap.String("collection", collection),
		zap.Int("pages", summary.Pages),
		zap.Int("fetched", summary.Fetched),
		zap.Int("stored", summary.Stored),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// Fetch performs one live api_direct request and returns the mapped
// items without persisting them. Responses are served from the cache
// when one is configured.
func (r *Runner) Fetch(ctx context.Context, p *types.Provider, sr *types.ServiceRequest, query string) ([]types.Document, error) {
	items, err := r.fetchPage(ctx, p, sr, query, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items.errs) > 0 {
		return items.docs, fmt.Errorf("mapping: %s", strings.Join(items.errs, "; "))
	}
	return items.docs, nil
}

// FetchRaw performs the first-page request of a service request and
// returns the undecoded response. Populate uses it to sample a live
// response before any mapping exists.
func (r *Runner) FetchRaw(ctx context.Context, p *types.Provider, sr *types.ServiceRequest, query string) (*httputil.Response, error) {
	tctx := r.buildContext(p, sr, query, 1, 0)
	eng := template.New(r.keymap)

	method, url, headers, body, err := r.buildRequest(sr, eng, tctx)
	if err != nil {
		return nil, err
	}
	return r.send(ctx, method, url, headers, body)
}

// pageItems is one fetched + mapped page.
type pageItems struct {
	docs []types.Document
	errs []string
}

// mergeListLevel copies list-level fields, resolved once against the
// whole response tree, onto every item of the page. An item's own field
// always wins over the list-level value.
func mergeListLevel(docs []types.Document, list types.Document) {
	if len(list) == 0 {
		return
	}
	for _, doc := range docs {
		for k, v := range list {
			if _, ok := doc[k]; !ok {
				doc[k] = v
			}
		}
	}
}

func (r *Runner) fetchPage(ctx context.Context, p *types.Provider, sr *types.ServiceRequest, query string, page, offset int) (*pageItems, error) {
	tctx := r.buildContext(p, sr, query, page, offset)
	eng := template.New(r.keymap)

	method, url, headers, body, err := r.buildRequest(sr, eng, tctx)
	if err != nil {
		return nil, err
	}

	raw, err := r.send(ctx, method, url, headers, body)
	if err != nil {
		return nil, err
	}

	tree, err := decode(raw)
	if err != nil {
		return nil, err
	}

	items := response.ExtractItems(tree, sr.ListKey, sr.ListItemRepeaterKey)

	mapper := response.NewMapper(p, eng, tctx)
	docs := mapper.MapItems(items, sr.ResponseKeys)
	mergeListLevel(docs, mapper.MapListLevel(tree, sr.ResponseKeys))

	out := &pageItems{docs: docs}
	if mapper.HasErrors() {
		out.errs = mapper.Errors()
	}
	return out, nil
}

// buildContext assembles the per-page substitution context: the service
// request's default data first, then the pagination state over it.
func (r *Runner) buildContext(p *types.Provider, sr *types.ServiceRequest, query string, page, offset int) *template.Context {
	values := make(map[string]any, len(sr.DefaultData)+4)
	for k, v := range sr.DefaultData {
		values[k] = v
	}
	values["page_number"] = page
	values["offset"] = offset
	if _, ok := values["page_size"]; !ok {
		values["page_size"] = 50
	}
	values["per_page"] = values["page_size"]

	return &template.Context{Provider: p, SR: sr, Query: query, Values: values}
}

// buildRequest resolves the endpoint, method, headers, and parameters for
// one page. Template errors accumulated while resolving are returned as
// one configuration error.
func (r *Runner) buildRequest(sr *types.ServiceRequest, eng *template.Engine, tctx *template.Context) (method, url string, headers map[string]string, body string, err error) {
	endpointCfg := sr.Config(ConfigEndpoint)
	if endpointCfg == nil {
		return "", "", nil, "", fmt.Errorf("service request %s: no endpoint configured", sr.Name)
	}
	url = eng.Resolve(endpointCfg.Resolved(), tctx)

	method = http.MethodGet
	if c := sr.Config(ConfigMethod); c != nil && c.Resolved() != "" {
		method = strings.ToUpper(c.Resolved())
	}

	headers = request.Headers(sr.Config(ConfigHeaders), eng, tctx)
	if _, ok := headers["User-Agent"]; !ok && r.cfg.UserAgent != "" {
		headers["User-Agent"] = r.cfg.UserAgent
	}
	built := request.Build(sr.QueryParameters, eng, tctx)

	if method == http.MethodGet {
		if qs := built.Encode(); qs != "" {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			url += sep + qs
		}
	} else {
		body = built.Body
	}

	if eng.HasErrors() {
		return "", "", nil, "", fmt.Errorf("building request for %s: %s", sr.Name, strings.Join(eng.Errors(), "; "))
	}
	return method, url, headers, body, nil
}

// send performs the HTTP exchange, consulting the response cache for GET
// requests.
func (r *Runner) send(ctx context.Context, method, url string, headers map[string]string, body string) (*httputil.Response, error) {
	key := cache.Key(method, url, body)
	if method == http.MethodGet {
		if cached, ok := r.cache.Get(ctx, key); ok {
			return &httputil.Response{Status: http.StatusOK, Body: cached}, nil
		}
	}

	resp, err := httputil.Send(ctx, r.client, method, url, headers, body, 0)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("provider returned status %d", resp.Status)
	}

	if method == http.MethodGet {
		if err := r.cache.Put(ctx, key, resp.Body); err != nil {
			r.logger.Warn("caching response failed", zap.Error(err))
		}
	}
	return resp, nil
}

// decode parses a raw response body into a navigable tree, XML or JSON by
// sniffing.
func decode(resp *httputil.Response) (any, error) {
	if resp.IsXML() {
		tree, err := response.DecodeXML(strings.NewReader(string(resp.Body)))
		if err != nil {
			return nil, fmt.Errorf("decoding XML response: %w", err)
		}
		return tree, nil
	}
	var tree any
	if err := json.Unmarshal(resp.Body, &tree); err != nil {
		return nil, fmt.Errorf("decoding JSON response: %w", err)
	}
	return tree, nil
}
