// Package gateway translates between lifecycle records and the remote record
// store. Store-native timestamps are decoded here and nowhere else; malformed
// documents and store failures surface as *domain.RemoteError. No call is
// retried.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"herdbook/pkg/domain"
)

// Gateway performs the CRUD calls for every synchronized collection.
type Gateway struct {
	store domain.RecordStore
}

// New returns a gateway over store.
func New(store domain.RecordStore) *Gateway {
	return &Gateway{store: store}
}

// Filters narrows a fetch to documents whose fields equal the non-empty
// values. Limit caps the number of documents; zero means no cap.
type Filters struct {
	DamID       string
	SireID      string
	BreedingID  string
	PregnancyID string
	AnimalID    string
	Status      string
	Limit       int
}

func (f Filters) query() domain.Query {
	q := domain.Query{Limit: f.Limit}
	add := func(field, value string) {
		if value != "" {
			q.Filters = append(q.Filters, domain.Filter{Field: field, Value: value})
		}
	}
	add("damId", f.DamID)
	add("sireId", f.SireID)
	add("breedingId", f.BreedingID)
	add("pregnancyId", f.PregnancyID)
	add("animalId", f.AnimalID)
	add("status", f.Status)
	return q
}

func remoteError(op string, collection domain.Collection, err error) error {
	var re *domain.RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &domain.RemoteError{Op: op, Collection: collection, Message: err.Error(), Err: err}
}

func fetch[T any](ctx context.Context, store domain.RecordStore, c codec[T], f Filters) ([]T, error) {
	docs, err := store.Query(ctx, c.collection, f.query())
	if err != nil {
		return nil, remoteError("fetch", c.collection, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := c.decode(doc)
		if err != nil {
			return nil, remoteError("fetch", c.collection, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func create[T any](ctx context.Context, store domain.RecordStore, c codec[T], rec T) (T, error) {
	var zero T
	if err := c.validate(rec); err != nil {
		return zero, err
	}
	body, err := c.encode(rec)
	if err != nil {
		return zero, err
	}
	doc, err := store.Create(ctx, c.collection, body)
	if err != nil {
		return zero, remoteError("create", c.collection, err)
	}
	out, err := c.decode(doc)
	if err != nil {
		return zero, remoteError("create", c.collection, err)
	}
	return out, nil
}

func update[T any](ctx context.Context, store domain.RecordStore, c codec[T], id string, rec T, fields []string) (T, error) {
	var zero T
	if id == "" {
		return zero, errors.New("update " + string(c.collection) + ": id is required")
	}
	body, err := c.patch(rec, fields)
	if err != nil {
		return zero, err
	}
	current, err := store.Get(ctx, c.collection, id)
	if err != nil {
		return zero, remoteError("update", c.collection, err)
	}
	if err := c.check(current, body); err != nil {
		return zero, fmt.Errorf("update %s: %w", c.collection, err)
	}
	doc, err := store.Update(ctx, c.collection, id, body)
	if err != nil {
		return zero, remoteError("update", c.collection, err)
	}
	out, err := c.decode(doc)
	if err != nil {
		return zero, remoteError("update", c.collection, err)
	}
	return out, nil
}

func remove(ctx context.Context, store domain.RecordStore, collection domain.Collection, id string) error {
	if id == "" {
		return errors.New("delete " + string(collection) + ": id is required")
	}
	if err := store.Delete(ctx, collection, id); err != nil {
		return remoteError("delete", collection, err)
	}
	return nil
}

// FetchBreedings returns breedings in store order.
func (g *Gateway) FetchBreedings(ctx context.Context, f Filters) ([]domain.Breeding, error) {
	return fetch(ctx, g.store, breedingCodec, f)
}

// CreateBreeding persists b and returns the stored record.
func (g *Gateway) CreateBreeding(ctx context.Context, b domain.Breeding) (domain.Breeding, error) {
	return create(ctx, g.store, breedingCodec, b)
}

// UpdateBreeding writes the named fields of b (all writable fields when none
// are named) and returns the stored record.
func (g *Gateway) UpdateBreeding(ctx context.Context, id string, b domain.Breeding, fields ...string) (domain.Breeding, error) {
	return update(ctx, g.store, breedingCodec, id, b, fields)
}

// DeleteBreeding removes a breeding.
func (g *Gateway) DeleteBreeding(ctx context.Context, id string) error {
	return remove(ctx, g.store, domain.CollectionBreedings, id)
}

// FetchPregnancies returns pregnancies in store order.
func (g *Gateway) FetchPregnancies(ctx context.Context, f Filters) ([]domain.Pregnancy, error) {
	return fetch(ctx, g.store, pregnancyCodec, f)
}

// CreatePregnancy persists p and returns the stored record.
func (g *Gateway) CreatePregnancy(ctx context.Context, p domain.Pregnancy) (domain.Pregnancy, error) {
	return create(ctx, g.store, pregnancyCodec, p)
}

// UpdatePregnancy writes the named fields of p and returns the stored record.
func (g *Gateway) UpdatePregnancy(ctx context.Context, id string, p domain.Pregnancy, fields ...string) (domain.Pregnancy, error) {
	return update(ctx, g.store, pregnancyCodec, id, p, fields)
}

// DeletePregnancy removes a pregnancy.
func (g *Gateway) DeletePregnancy(ctx context.Context, id string) error {
	return remove(ctx, g.store, domain.CollectionPregnancies, id)
}

// FetchBirths returns births in store order.
func (g *Gateway) FetchBirths(ctx context.Context, f Filters) ([]domain.Birth, error) {
	return fetch(ctx, g.store, birthCodec, f)
}

// CreateBirth persists b and returns the stored record.
func (g *Gateway) CreateBirth(ctx context.Context, b domain.Birth) (domain.Birth, error) {
	return create(ctx, g.store, birthCodec, b)
}

// UpdateBirth writes the named fields of b and returns the stored record.
func (g *Gateway) UpdateBirth(ctx context.Context, id string, b domain.Birth, fields ...string) (domain.Birth, error) {
	return update(ctx, g.store, birthCodec, id, b, fields)
}

// DeleteBirth removes a birth.
func (g *Gateway) DeleteBirth(ctx context.Context, id string) error {
	return remove(ctx, g.store, domain.CollectionBirths, id)
}

// FetchLineageRecords returns lineage records in store order.
func (g *Gateway) FetchLineageRecords(ctx context.Context, f Filters) ([]domain.LineageRecord, error) {
	return fetch(ctx, g.store, lineageCodec, f)
}

// CreateLineageRecord persists l and returns the stored record.
func (g *Gateway) CreateLineageRecord(ctx context.Context, l domain.LineageRecord) (domain.LineageRecord, error) {
	return create(ctx, g.store, lineageCodec, l)
}

// UpdateLineageRecord writes the named fields of l and returns the stored record.
func (g *Gateway) UpdateLineageRecord(ctx context.Context, id string, l domain.LineageRecord, fields ...string) (domain.LineageRecord, error) {
	return update(ctx, g.store, lineageCodec, id, l, fields)
}

// DeleteLineageRecord removes a lineage record.
func (g *Gateway) DeleteLineageRecord(ctx context.Context, id string) error {
	return remove(ctx, g.store, domain.CollectionLineageRecords, id)
}

// FetchGeneticProfiles returns genetic profiles in store order.
func (g *Gateway) FetchGeneticProfiles(ctx context.Context, f Filters) ([]domain.GeneticProfile, error) {
	return fetch(ctx, g.store, geneticCodec, f)
}

// CreateGeneticProfile persists p and returns the stored record.
func (g *Gateway) CreateGeneticProfile(ctx context.Context, p domain.GeneticProfile) (domain.GeneticProfile, error) {
	return create(ctx, g.store, geneticCodec, p)
}

// UpdateGeneticProfile writes the named fields of p and returns the stored record.
func (g *Gateway) UpdateGeneticProfile(ctx context.Context, id string, p domain.GeneticProfile, fields ...string) (domain.GeneticProfile, error) {
	return update(ctx, g.store, geneticCodec, id, p, fields)
}

// DeleteGeneticProfile removes a genetic profile.
func (g *Gateway) DeleteGeneticProfile(ctx context.Context, id string) error {
	return remove(ctx, g.store, domain.CollectionGeneticProfiles, id)
}
