// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docstore persists harvested documents and executes search
// plans against them. Documents live as JSON bodies in one SQLite table
// per collection; filters compile to json_extract SQL and regex matching
// runs through a REGEXP function registered on the driver.
// Implements: prd004-search (R1-R4); prd005-harvest (persistence).
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "harvest.db"
)

// driverName is the sqlite3 driver with the case-insensitive REGEXP
// function attached. Registered once at package init.
const driverName = "sqlite3_harvest"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

// regexpMatch backs the SQL regexp(pattern, value) function. Matching is
// case-insensitive per the search contract.
func regexpMatch(pattern, value string) (bool, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, fmt.Errorf("bad regex pattern %q: %w", pattern, err)
	}
	return re.MatchString(value), nil
}

// collectionPattern constrains collection names ({serviceName}_{type})
// to safe SQL identifiers.
var collectionPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// CollectionName builds the collection name for a service and request
// type, format "{serviceName}_{type}".
func CollectionName(serviceName string, srType types.SrType) string {
	return fmt.Sprintf("%s_%s", serviceName, srType)
}

// Store manages the harvest document database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	// known caches collections whose table already exists.
	known map[string]bool
}

// NewStore opens or creates the document database at
// dataDir/index/harvest.db.
func NewStore(cfg types.StoreConfig, logger *zap.Logger) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	return open(filepath.Join(dbDir, dbFile)+"?_journal_mode=WAL", logger)
}

// NewMemoryStore opens an in-memory store. Used by tests and dry runs.
func NewMemoryStore(logger *zap.Logger) (*Store, error) {
	s, err := open(":memory:", logger)
	if err != nil {
		return nil, err
	}
	// Every pooled connection would otherwise get its own empty
	// in-memory database.
	s.db.SetMaxOpenConns(1)
	return s, nil
}

func open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, known: make(map[string]bool)}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ensure creates the collection table on first use. The unique index on
// (provider, serviceRequest, item_id) is the idempotency guard for
// concurrent harvest runs: the store has no multi-document transactions,
// so item identity is enforced here.
func (s *Store) ensure(ctx context.Context, collection string) error {
	if s.known[collection] {
		return nil
	}
	if !collectionPattern.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			service_request TEXT NOT NULL,
			item_id TEXT NOT NULL,
			body TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, collection),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %q ON %q (provider, service_request, item_id)`,
			"idx_"+collection+"_identity", collection),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating collection %s: %w", collection, err)
		}
	}
	s.known[collection] = true
	return nil
}

// Upsert writes one document into the collection, keyed by its item
// identity. Documents without an item_id get a generated one so later
// dedup stays possible.
func (s *Store) Upsert(ctx context.Context, collection string, doc types.Document) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}

	itemID := doc.ItemID()
	if itemID == "" {
		itemID = uuid.NewString()
		doc[types.FieldItemID] = itemID
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", itemID, err)
	}

	sr, _ := doc[types.FieldServiceRequest].(string)
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (id, provider, service_request, item_id, body, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				provider=excluded.provider, service_request=excluded.service_request,
				item_id=excluded.item_id, body=excluded.body, updated_at=excluded.updated_at`,
			collection),
		itemID, doc.Provider(), sr, itemID, string(body),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting document %s into %s: %w", itemID, collection, err)
	}
	return nil
}

// Get fetches one document by id. A missing document is an error: the
// caller named a bad identity.
func (s *Store) Get(ctx context.Context, collection, id string) (types.Document, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return nil, err
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT body FROM %q WHERE id = ?`, collection), id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s not found in %s", id, collection)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %s: %w", id, err)
	}
	return decodeDocument(body)
}

// fetchByIDs returns the documents for ids, keyed by id. Missing ids are
// simply absent from the map.
func (s *Store) fetchByIDs(ctx context.Context, collection string, ids []string) (map[string]types.Document, error) {
	out := make(map[string]types.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, body FROM %q WHERE id IN (%s)`, collection, placeholders),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching pinned documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(body)
		if err != nil {
			s.logger.Warn("skipping undecodable document",
				zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			continue
		}
		out[id] = doc
	}
	return out, rows.Err()
}

// Delete removes one document by id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, collection), id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s not found in %s", id, collection)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if err := s.ensure(ctx, collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %q`, collection)).Scan(&n)
	return n, err
}

// UpdateFields patches individual fields of a stored document by path
// without rewriting the whole body.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.ensure(ctx, collection); err != nil {
		return err
	}

	var body string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT body FROM %q WHERE id = ?`, collection), id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return fmt.Errorf("document %s not found in %s", id, collection)
	}
	if err != nil {
		return fmt.Errorf("fetching document %s: %w", id, err)
	}

	patched := []byte(body)
	for path, value := range fields {
		if patched, err = sjson.SetBytes(patched, path, value); err != nil {
			return fmt.Errorf("patching %s.%s: %w", id, path, err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %q SET body = ?, updated_at = ? WHERE id = ?`, collection),
		string(patched), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	return nil
}

// MoveDocument moves one document from collection src to dst unless dst
// already holds its item identity, in which case the source copy is just
// removed. The check-then-insert window is covered by the unique
// identity index: a concurrent duplicate insert fails instead of
// double-storing.
func (s *Store) MoveDocument(ctx context.Context, src, dst, id string) error {
	doc, err := s.Get(ctx, src, id)
	if err != nil {
		return err
	}
	if err := s.ensure(ctx, dst); err != nil {
		return err
	}

	sr, _ := doc[types.FieldServiceRequest].(string)
	var n int
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %q WHERE provider = ? AND service_request = ? AND item_id = ?`, dst),
		doc.Provider(), sr, doc.ItemID(),
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("checking destination %s: %w", dst, err)
	}

	if n == 0 {
		if err := s.Upsert(ctx, dst, doc); err != nil {
			return fmt.Errorf("moving document %s to %s: %w", id, dst, err)
		}
	} else {
		s.logger.Info("destination already holds item, dropping source copy",
			zap.String("collection", dst), zap.String("item_id", doc.ItemID()))
	}
	return s.Delete(ctx, src, id)
}

func decodeDocument(body string) (types.Document, error) {
	var doc types.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decoding document body: %w", err)
	}
	return doc, nil
}
