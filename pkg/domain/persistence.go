package domain

import (
	"context"
	"time"
)

// Timestamp is the record store's native time representation. Only the
// synchronization gateway converts it into time.Time.
type Timestamp struct {
	Seconds int64 `json:"_seconds"`
	Nanos   int32 `json:"_nanoseconds"`
}

// TimestampOf converts a time into the store representation.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time returns the instant in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

// Fields is the loosely typed body of a stored document. Values are strings,
// numbers, booleans, Timestamps, nested Fields/maps, or slices of those.
type Fields map[string]any

// Document is a record as held by the remote store.
type Document struct {
	ID     string
	Fields Fields
}

// Store-managed document fields.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Filter restricts a query to documents whose field equals Value.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from a collection. Results are ordered by creation
// time, newest first.
type Query struct {
	Filters []Filter
	Limit   int
}

// RecordStore is the remote document store addressed by collection name and
// record id. Create assigns the id and the createdAt/updatedAt timestamps;
// Update merges the supplied fields and refreshes updatedAt.
type RecordStore interface {
	Query(ctx context.Context, collection Collection, q Query) ([]Document, error)
	Get(ctx context.Context, collection Collection, id string) (Document, error)
	Create(ctx context.Context, collection Collection, fields Fields) (Document, error)
	Update(ctx context.Context, collection Collection, id string, fields Fields) (Document, error)
	Delete(ctx context.Context, collection Collection, id string) error
}
