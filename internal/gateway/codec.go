package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"herdbook/pkg/domain"
)

// codec translates one entity type between its domain struct and the loosely
// typed document body held by the record store. Date fields are the only
// values whose representation differs between the two sides.
type codec[T any] struct {
	collection domain.Collection
	// dates lists top-level keys holding instants.
	dates []string
	// nested lists, per key holding a slice of objects, the date keys of
	// each element.
	nested map[string][]string
	// writable lists every key a full update writes.
	writable []string
	base     func(*T) *domain.Base
	validate func(T) error
}

var breedingCodec = codec[domain.Breeding]{
	collection: domain.CollectionBreedings,
	dates:      []string{"breedingDate"},
	writable: []string{
		"damId", "sireId", "breedingDate", "method", "status",
		"technician", "location", "cost", "notes",
	},
	base:     func(b *domain.Breeding) *domain.Base { return &b.Base },
	validate: domain.Breeding.Validate,
}

var pregnancyCodec = codec[domain.Pregnancy]{
	collection: domain.CollectionPregnancies,
	dates:      []string{"confirmationDate", "expectedDueDate", "actualBirthDate"},
	nested:     map[string][]string{"checks": {"date"}},
	writable: []string{
		"breedingId", "damId", "confirmationDate", "expectedDueDate", "actualBirthDate",
		"outcome", "status", "gestationPeriod", "checks", "notes",
	},
	base:     func(p *domain.Pregnancy) *domain.Base { return &p.Base },
	validate: domain.Pregnancy.Validate,
}

var birthCodec = codec[domain.Birth]{
	collection: domain.CollectionBirths,
	dates:      []string{"birthDate"},
	writable: []string{
		"damId", "birthDate", "location", "calves", "complications",
		"assistanceRequired", "assistanceType", "notes",
	},
	base:     func(b *domain.Birth) *domain.Base { return &b.Base },
	validate: domain.Birth.Validate,
}

var lineageCodec = codec[domain.LineageRecord]{
	collection: domain.CollectionLineageRecords,
	writable: []string{
		"animalId", "sireId", "damId", "generation", "breed", "registrationNumber", "notes",
	},
	base:     func(l *domain.LineageRecord) *domain.Base { return &l.Base },
	validate: domain.LineageRecord.Validate,
}

var geneticCodec = codec[domain.GeneticProfile]{
	collection: domain.CollectionGeneticProfiles,
	dates:      []string{"testedAt"},
	writable: []string{
		"animalId", "markers", "breedComposition", "inbreedingCoefficient", "testedAt", "laboratory",
	},
	base:     func(g *domain.GeneticProfile) *domain.Base { return &g.Base },
	validate: domain.GeneticProfile.Validate,
}

// encode renders rec as a document body. Store-managed keys are dropped.
func (c codec[T]) encode(rec T) (domain.Fields, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.collection, err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.collection, err)
	}
	delete(body, "id")
	delete(body, domain.FieldCreatedAt)
	delete(body, domain.FieldUpdatedAt)

	if err := toTimestamps(body, c.dates); err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.collection, err)
	}
	for key, dateKeys := range c.nested {
		items, _ := body[key].([]any)
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if err := toTimestamps(obj, dateKeys); err != nil {
				return nil, fmt.Errorf("encode %s.%s: %w", c.collection, key, err)
			}
		}
	}
	return domain.Fields(body), nil
}

// patch renders the subset of rec named by fields. An empty mask selects every
// writable key; selected keys rec leaves unset are sent as nil so the store
// clears them.
func (c codec[T]) patch(rec T, fields []string) (domain.Fields, error) {
	body, err := c.encode(rec)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = c.writable
	}
	out := make(domain.Fields, len(fields))
	for _, f := range fields {
		if !slices.Contains(c.writable, f) {
			return nil, fmt.Errorf("%s: field %q is not writable", c.collection, f)
		}
		out[f] = body[f]
	}
	return out, nil
}

// decode turns a stored document into a validated record.
func (c codec[T]) decode(doc domain.Document) (T, error) {
	var out T
	if doc.ID == "" {
		return out, errors.New("document has no id")
	}
	body := make(map[string]any, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		nv, err := normalize(v)
		if err != nil {
			return out, fmt.Errorf("document %s field %s: %w", doc.ID, k, err)
		}
		body[k] = nv
	}
	body["id"] = doc.ID
	raw, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	base := c.base(&out)
	if base.CreatedAt.IsZero() {
		return out, fmt.Errorf("document %s: missing %s", doc.ID, domain.FieldCreatedAt)
	}
	if base.UpdatedAt.IsZero() {
		base.UpdatedAt = base.CreatedAt
	}
	if err := c.validate(out); err != nil {
		return out, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return out, nil
}

// check validates the record the store would hold after applying body to
// current.
func (c codec[T]) check(current domain.Document, body domain.Fields) error {
	merged := make(map[string]any, len(current.Fields)+len(body))
	maps.Copy(merged, current.Fields)
	maps.Copy(merged, body)
	_, err := c.decode(domain.Document{ID: current.ID, Fields: merged})
	return err
}

func toTimestamps(obj map[string]any, keys []string) error {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: expected instant, got %T", key, v)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		obj[key] = domain.TimestampOf(t)
	}
	return nil
}

// normalize replaces store-native timestamps with RFC 3339 strings so the
// body can be decoded into domain structs.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case domain.Timestamp:
		return val.Time().Format(time.RFC3339Nano), nil
	case *domain.Timestamp:
		if val == nil {
			return nil, nil
		}
		return val.Time().Format(time.RFC3339Nano), nil
	case domain.Fields:
		return normalize(map[string]any(val))
	case map[string]any:
		if _, ok := val["_seconds"]; ok {
			ts, err := timestampFromMap(val)
			if err != nil {
				return nil, err
			}
			return ts.Time().Format(time.RFC3339Nano), nil
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			nv, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			nv, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}

func timestampFromMap(m map[string]any) (domain.Timestamp, error) {
	secs, err := integral(m["_seconds"])
	if err != nil {
		return domain.Timestamp{}, fmt.Errorf("_seconds: %w", err)
	}
	var nanos int64
	if raw, ok := m["_nanoseconds"]; ok {
		if nanos, err = integral(raw); err != nil {
			return domain.Timestamp{}, fmt.Errorf("_nanoseconds: %w", err)
		}
	}
	if nanos < 0 || nanos >= int64(time.Second) {
		return domain.Timestamp{}, fmt.Errorf("_nanoseconds out of range: %d", nanos)
	}
	return domain.Timestamp{Seconds: secs, Nanos: int32(nanos)}, nil
}

func integral(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
