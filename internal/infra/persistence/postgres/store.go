// Package postgres provides a Postgres-backed remote record store. Documents
// live in a single JSONB table keyed by collection and id.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"herdbook/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.RecordStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with config defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/herdbook?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store reads and writes documents in Postgres.
type Store struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the documents table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentsTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, nowFn: func() time.Time { return time.Now().UTC() }}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func ensureDocumentsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		fields JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (collection, id)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

// Query returns the documents matching every filter, newest first.
func (s *Store) Query(ctx context.Context, collection domain.Collection, q domain.Query) ([]domain.Document, error) {
	var (
		where strings.Builder
		args  = []any{string(collection)}
	)
	where.WriteString("collection = $1")
	for _, f := range q.Filters {
		probe, err := json.Marshal(map[string]any{f.Field: f.Value})
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		args = append(args, string(probe))
		fmt.Fprintf(&where, " AND fields @> $%d::jsonb", len(args))
	}
	query := `SELECT id, fields, created_at, updated_at FROM documents WHERE ` + where.String() +
		` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// Get returns a single document.
func (s *Store) Get(ctx context.Context, collection domain.Collection, id string) (domain.Document, error) {
	return s.get(ctx, s.db, collection, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q queryer, collection domain.Collection, id string) (domain.Document, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		string(collection), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("select %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Create stores fields under a new id and stamps createdAt/updatedAt.
func (s *Store) Create(ctx context.Context, collection domain.Collection, fields domain.Fields) (domain.Document, error) {
	id := uuid.NewString()
	now := s.nowFn()
	body := stripStoreFields(fields)
	for k, v := range body {
		if v == nil {
			delete(body, k)
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Document{}, fmt.Errorf("encode %s: %w", collection, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(collection,id,fields,created_at,updated_at) VALUES($1,$2,$3,$4,$5)`,
		string(collection), id, payload, now, now); err != nil {
		return domain.Document{}, fmt.Errorf("insert %s: %w", collection, err)
	}
	body[domain.FieldCreatedAt] = domain.TimestampOf(now)
	body[domain.FieldUpdatedAt] = domain.TimestampOf(now)
	return domain.Document{ID: id, Fields: body}, nil
}

// Update merges fields into the stored document. Nil values remove the key.
func (s *Store) Update(ctx context.Context, collection domain.Collection, id string, fields domain.Fields) (domain.Document, error) {
	payload, err := json.Marshal(stripStoreFields(fields))
	if err != nil {
		return domain.Document{}, fmt.Errorf("encode %s: %w", collection, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET fields = jsonb_strip_nulls(fields || $3::jsonb), updated_at = $4 WHERE collection = $1 AND id = $2`,
		string(collection), id, payload, s.nowFn())
	if err != nil {
		return domain.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	doc, err := s.get(ctx, tx, collection, id)
	if err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return doc, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection domain.Collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, string(collection), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (domain.Document, error) {
	var (
		id        string
		payload   []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &payload, &createdAt, &updatedAt); err != nil {
		return domain.Document{}, err
	}
	fields := domain.Fields{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return domain.Document{}, fmt.Errorf("decode %s: %w", id, err)
		}
	}
	reviveTimestamps(fields)
	fields[domain.FieldCreatedAt] = domain.TimestampOf(createdAt)
	fields[domain.FieldUpdatedAt] = domain.TimestampOf(updatedAt)
	return domain.Document{ID: id, Fields: fields}, nil
}

func stripStoreFields(fields domain.Fields) domain.Fields {
	out := make(domain.Fields, len(fields))
	for k, v := range fields {
		if k == domain.FieldCreatedAt || k == domain.FieldUpdatedAt {
			continue
		}
		out[k] = v
	}
	return out
}

// reviveTimestamps turns {"_seconds","_nanoseconds"} objects read back from
// JSONB into domain.Timestamp values, at any depth.
func reviveTimestamps(fields domain.Fields) {
	for k, v := range fields {
		fields[k] = revive(v)
	}
}

func revive(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if ts, ok := asTimestamp(val); ok {
			return ts
		}
		for k, item := range val {
			val[k] = revive(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = revive(item)
		}
		return val
	default:
		return v
	}
}

func asTimestamp(m map[string]any) (domain.Timestamp, bool) {
	if len(m) != 2 {
		return domain.Timestamp{}, false
	}
	secs, ok := m["_seconds"].(float64)
	if !ok {
		return domain.Timestamp{}, false
	}
	nanos, ok := m["_nanoseconds"].(float64)
	if !ok {
		return domain.Timestamp{}, false
	}
	return domain.Timestamp{Seconds: int64(secs), Nanos: int32(nanos)}, true
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
