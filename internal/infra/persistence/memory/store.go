// Package memory provides an in-memory implementation of the remote record
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"herdbook/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the record store interface.
var _ domain.RecordStore = (*Store)(nil)

type storedDoc struct {
	fields domain.Fields
	seq    uint64
}

// Snapshot captures a point-in-time clone of the store contents, keyed by
// collection then document id.
type Snapshot map[domain.Collection]map[string]domain.Fields

// Store keeps documents per collection behind a single RWMutex.
type Store struct {
	mu    sync.RWMutex
	docs  map[domain.Collection]map[string]storedDoc
	seq   uint64
	nowFn func() time.Time
	newID func() string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides document id assignment.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewStore constructs an empty in-memory record store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[domain.Collection]map[string]storedDoc),
		nowFn: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// ExportState clones the current store contents.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.docs))
	for collection, docs := range s.docs {
		bucket := make(map[string]domain.Fields, len(docs))
		for id, doc := range docs {
			bucket[id] = cloneFields(doc.fields)
		}
		out[collection] = bucket
	}
	return out
}

// ImportState replaces the store contents with the snapshot. Ordering among
// documents sharing a createdAt follows id order.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[domain.Collection]map[string]storedDoc, len(snapshot))
	s.seq = 0
	for collection, docs := range snapshot {
		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		bucket := make(map[string]storedDoc, len(docs))
		for _, id := range ids {
			s.seq++
			bucket[id] = storedDoc{fields: cloneFields(docs[id]), seq: s.seq}
		}
		s.docs[collection] = bucket
	}
}

func notFound(collection domain.Collection, id string) error {
	return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
}

// Query returns the documents matching every filter, newest first.
func (s *Store) Query(ctx context.Context, collection domain.Collection, q domain.Query) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	type hit struct {
		id  string
		doc storedDoc
	}
	var hits []hit
	for id, doc := range s.docs[collection] {
		if matches(doc.fields, q.Filters) {
			hits = append(hits, hit{id: id, doc: doc})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		ci, cj := createdAt(hits[i].doc.fields), createdAt(hits[j].doc.fields)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return hits[i].doc.seq > hits[j].doc.seq
	})
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]domain.Document, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.Document{ID: h.id, Fields: cloneFields(h.doc.fields)})
	}
	return out, nil
}

// Get returns a single document.
func (s *Store) Get(ctx context.Context, collection domain.Collection, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return domain.Document{}, notFound(collection, id)
	}
	return domain.Document{ID: id, Fields: cloneFields(doc.fields)}, nil
}

// Create stores fields under a new id and stamps createdAt/updatedAt.
func (s *Store) Create(ctx context.Context, collection domain.Collection, fields domain.Fields) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	now := domain.TimestampOf(s.nowFn())
	stored := cloneFields(fields)
	for k, v := range stored {
		if v == nil {
			delete(stored, k)
		}
	}
	stored[domain.FieldCreatedAt] = now
	stored[domain.FieldUpdatedAt] = now
	bucket, ok := s.docs[collection]
	if !ok {
		bucket = make(map[string]storedDoc)
		s.docs[collection] = bucket
	}
	s.seq++
	bucket[id] = storedDoc{fields: stored, seq: s.seq}
	return domain.Document{ID: id, Fields: cloneFields(stored)}, nil
}

// Update merges fields into the document. Nil values remove the key;
// createdAt is never overwritten.
func (s *Store) Update(ctx context.Context, collection domain.Collection, id string, fields domain.Fields) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return domain.Document{}, notFound(collection, id)
	}
	merged := cloneFields(doc.fields)
	for k, v := range fields {
		if k == domain.FieldCreatedAt {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = cloneValue(v)
	}
	merged[domain.FieldUpdatedAt] = domain.TimestampOf(s.nowFn())
	doc.fields = merged
	s.docs[collection][id] = doc
	return domain.Document{ID: id, Fields: cloneFields(merged)}, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection domain.Collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[collection][id]; !ok {
		return notFound(collection, id)
	}
	delete(s.docs[collection], id)
	return nil
}

func matches(fields domain.Fields, filters []domain.Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

func createdAt(fields domain.Fields) time.Time {
	switch ts := fields[domain.FieldCreatedAt].(type) {
	case domain.Timestamp:
		return ts.Time()
	case *domain.Timestamp:
		if ts != nil {
			return ts.Time()
		}
	}
	return time.Time{}
}

func cloneFields(f domain.Fields) domain.Fields {
	if f == nil {
		return domain.Fields{}
	}
	out := make(domain.Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case domain.Fields:
		return cloneFields(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case map[string]float64:
		return maps.Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case *domain.Timestamp:
		if val == nil {
			return nil
		}
		cp := *val
		return cp
	default:
		return v
	}
}
