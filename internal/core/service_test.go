package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herdbook/internal/cache"
	"herdbook/internal/gateway"
	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/reachability"
	"herdbook/pkg/domain"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingStore records how many remote calls were made.
type countingStore struct {
	domain.RecordStore
	calls atomic.Int32
}

func (c *countingStore) Query(ctx context.Context, col domain.Collection, q domain.Query) ([]domain.Document, error) {
	c.calls.Add(1)
	return c.RecordStore.Query(ctx, col, q)
}

func (c *countingStore) Create(ctx context.Context, col domain.Collection, f domain.Fields) (domain.Document, error) {
	c.calls.Add(1)
	return c.RecordStore.Create(ctx, col, f)
}

func (c *countingStore) Update(ctx context.Context, col domain.Collection, id string, f domain.Fields) (domain.Document, error) {
	c.calls.Add(1)
	return c.RecordStore.Update(ctx, col, id, f)
}

func (c *countingStore) Delete(ctx context.Context, col domain.Collection, id string) error {
	c.calls.Add(1)
	return c.RecordStore.Delete(ctx, col, id)
}

type fixture struct {
	svc    *Service
	clock  *testClock
	remote *countingStore
	mem    *memory.Store
	online *reachability.Toggle
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clk := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	mem := memory.NewStore(memory.WithClock(clk.Now))
	remote := &countingStore{RecordStore: mem}
	online := reachability.NewToggle(true)
	c := cache.New(cache.NewMemoryKV(), cache.WithClock(clk.Now))
	opts = append([]Option{WithClock(clk)}, opts...)
	svc := NewService(gateway.New(remote), online, c, nil, opts...)
	return &fixture{svc: svc, clock: clk, remote: remote, mem: mem, online: online}
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func newBreeding() domain.Breeding {
	return domain.Breeding{DamID: "D1", SireID: "S1", BreedingDate: day(2024, 1, 1), Method: domain.MethodNatural}
}

func TestLifecycleScenariosThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := newBreeding()
	in.Status = domain.BreedingConfirmed
	b, _, err := f.svc.CreateBreeding(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.BreedingPending, b.Status, "creation forces pending")

	p, _, err := f.svc.CreatePregnancy(ctx, domain.Pregnancy{
		BreedingID: b.ID, DamID: "D1", ConfirmationDate: day(2024, 2, 1), GestationPeriod: 283,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PregnancyConfirmed, p.Status)
	assert.True(t, p.ExpectedDueDate.Equal(day(2024, 1, 1).AddDate(0, 0, 283)), "due date projects from the breeding date")
	got, ok := f.svc.State().Breeding(b.ID)
	require.True(t, ok)
	assert.Equal(t, domain.BreedingConfirmed, got.Status)

	birthDate := day(2024, 11, 10)
	_, _, err = f.svc.CreateBirth(ctx, domain.Birth{
		PregnancyID: p.ID, DamID: "D1", BirthDate: birthDate,
		Calves: []domain.Calf{{ID: "C1", Gender: domain.GenderFemale}},
	})
	require.NoError(t, err)
	preg, ok := f.svc.State().Pregnancy(p.ID)
	require.True(t, ok)
	assert.Equal(t, domain.PregnancyCompleted, preg.Status)
	require.NotNil(t, preg.ActualBirthDate)
	assert.True(t, preg.ActualBirthDate.Equal(birthDate))

	_, err = f.svc.DeletePregnancy(ctx, p.ID)
	require.NoError(t, err)
	got, _ = f.svc.State().Breeding(b.ID)
	assert.Equal(t, domain.BreedingPending, got.Status)

	_, loaded, err := f.svc.Cache().Load(ctx)
	require.NoError(t, err)
	assert.False(t, loaded, "writes never touch the cache bundle")
}

func TestPregnancyDefaultsWithoutKnownBreeding(t *testing.T) {
	f := newFixture(t)
	p, _, err := f.svc.CreatePregnancy(context.Background(), domain.Pregnancy{
		BreedingID: "elsewhere", DamID: "D1", ConfirmationDate: day(2024, 2, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultGestationPeriod, p.GestationPeriod)
	assert.True(t, p.ExpectedDueDate.Equal(day(2024, 2, 1).AddDate(0, 0, 283)))
	assert.NotNil(t, p.Checks)
}

func TestOnlineFetchRefreshesCacheThenOfflineServesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.CreateBreeding(ctx, newBreeding())
	require.NoError(t, err)

	fetched, err := f.svc.FetchBreedings(ctx, Filters{})
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	f.online.Set(false)
	f.remote.calls.Store(0)
	f.clock.Advance(time.Minute)
	f.svc.State().ReplaceBreedings(nil)

	offline, err := f.svc.FetchBreedings(ctx, Filters{})
	require.NoError(t, err)
	assert.Equal(t, fetched, offline)
	assert.Equal(t, fetched, f.svc.State().Breedings())
	assert.Zero(t, f.remote.calls.Load())
}

func TestOfflineFreshCacheServesReadsWithoutRemoteCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cached := []domain.Breeding{{Base: domain.Base{ID: "b-cached"}, DamID: "D9", SireID: "S9", Method: domain.MethodNatural, Status: domain.BreedingPending}}
	require.NoError(t, f.svc.Cache().Store(ctx, domain.CollectionBreedings, cached))

	f.online.Set(false)
	f.clock.Advance(4 * time.Minute)
	got, err := f.svc.FetchBreedings(ctx, Filters{})
	require.NoError(t, err)
	assert.Equal(t, "b-cached", got[0].ID)
	assert.Equal(t, got, f.svc.State().Breedings())
	assert.Zero(t, f.remote.calls.Load())
	assert.Equal(t, Section{}, f.svc.Section(domain.CollectionBreedings))
}

func TestOfflineStaleCacheFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Cache().Store(ctx, domain.CollectionBreedings, []domain.Breeding{}))

	f.online.Set(false)
	f.clock.Advance(6 * time.Minute)
	_, err := f.svc.FetchBreedings(ctx, Filters{})
	require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	assert.Equal(t, "no connection and no valid cache available", err.Error())
	assert.Zero(t, f.remote.calls.Load())
	sec := f.svc.Section(domain.CollectionBreedings)
	assert.False(t, sec.Loading)
	assert.Equal(t, err.Error(), sec.Err)

	_, err = f.svc.FetchBirths(ctx, Filters{})
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable, "missing slice is a miss")
}

func TestOfflineWritesFailImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.online.Set(false)

	_, _, err := f.svc.CreateBreeding(ctx, newBreeding())
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	_, _, err = f.svc.UpdateGeneticProfile(ctx, "g-1", domain.GeneticProfile{AnimalID: "A1"})
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	_, err = f.svc.DeleteLineageRecord(ctx, "l-1")
	assert.ErrorIs(t, err, domain.ErrNetworkUnavailable)
	assert.Zero(t, f.remote.calls.Load())
	assert.Empty(t, f.svc.State().Breedings())
}

func TestRemoteFailureSetsSectionError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.UpdateBirth(ctx, "missing", domain.Birth{Location: "barn"}, "location")
	require.ErrorIs(t, err, domain.ErrRemoteOperationFailed)
	sec := f.svc.Section(domain.CollectionBirths)
	assert.False(t, sec.Loading)
	assert.Equal(t, err.Error(), sec.Err)

	_, err = f.svc.FetchBirths(ctx, Filters{})
	require.NoError(t, err)
	assert.Empty(t, f.svc.Section(domain.CollectionBirths).Err, "a new action clears the error")
}

func TestAncillaryCollectionsRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l, _, err := f.svc.CreateLineageRecord(ctx, domain.LineageRecord{AnimalID: "A1", SireID: "S1", DamID: "D1", Breed: "Angus", Generation: 2})
	require.NoError(t, err)
	g, _, err := f.svc.CreateGeneticProfile(ctx, domain.GeneticProfile{AnimalID: "A1", InbreedingCoefficient: 0.0625})
	require.NoError(t, err)

	l.Breed = "Red Angus"
	updated, _, err := f.svc.UpdateLineageRecord(ctx, l.ID, l, "breed")
	require.NoError(t, err)
	assert.Equal(t, "Red Angus", updated.Breed)
	got, ok := f.svc.State().LineageRecord(l.ID)
	require.True(t, ok)
	assert.Equal(t, "Red Angus", got.Breed)

	lineage, err := f.svc.FetchLineageRecords(ctx, Filters{AnimalID: "A1"})
	require.NoError(t, err)
	assert.Len(t, lineage, 1)
	profiles, err := f.svc.FetchGeneticProfiles(ctx, Filters{})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	_, err = f.svc.DeleteGeneticProfile(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, f.svc.State().GeneticProfiles())
	_, err = f.svc.DeleteLineageRecord(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, f.svc.State().LineageRecords())
}

func TestBreedingUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _, err := f.svc.CreateBreeding(ctx, newBreeding())
	require.NoError(t, err)
	f.svc.State().Select(domain.CollectionBreedings, b.ID)

	b.Status = domain.BreedingFailed
	_, _, err = f.svc.UpdateBreeding(ctx, b.ID, b, "status")
	require.NoError(t, err)
	got, _ := f.svc.State().Breeding(b.ID)
	assert.Equal(t, domain.BreedingFailed, got.Status)

	_, err = f.svc.DeleteBreeding(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, f.svc.State().Breedings())
	assert.Empty(t, f.svc.State().Selection().Breeding)
}

func TestBirthUpdateAndDeleteReopensPregnancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _, err := f.svc.CreateBreeding(ctx, newBreeding())
	require.NoError(t, err)
	p, _, err := f.svc.CreatePregnancy(ctx, domain.Pregnancy{BreedingID: b.ID, DamID: "D1", ConfirmationDate: day(2024, 2, 1)})
	require.NoError(t, err)
	birth, _, err := f.svc.CreateBirth(ctx, domain.Birth{PregnancyID: p.ID, DamID: "D1", BirthDate: day(2024, 10, 9)})
	require.NoError(t, err)

	birth.Location = "north paddock"
	_, _, err = f.svc.UpdateBirth(ctx, birth.ID, birth, "location")
	require.NoError(t, err)
	stored, _ := f.svc.State().Birth(birth.ID)
	assert.Equal(t, "north paddock", stored.Location)

	_, err = f.svc.DeleteBirth(ctx, birth.ID)
	require.NoError(t, err)
	preg, _ := f.svc.State().Pregnancy(p.ID)
	assert.Equal(t, domain.PregnancyConfirmed, preg.Status)
	assert.Nil(t, preg.ActualBirthDate)

	p.Notes = strPtr("rechecked")
	_, _, err = f.svc.UpdatePregnancy(ctx, p.ID, p, "notes")
	require.NoError(t, err)
	preg, _ = f.svc.State().Pregnancy(p.ID)
	require.NotNil(t, preg.Notes)
	assert.Equal(t, "rechecked", *preg.Notes)
}

func strPtr(s string) *string { return &s }

// gateStore parks the first call of one operation after it reached the store.
type gateStore struct {
	domain.RecordStore
	op      string
	parked  atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGateStore(inner domain.RecordStore, op string) *gateStore {
	return &gateStore{RecordStore: inner, op: op, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateStore) park(op string) {
	if op == g.op && g.parked.CompareAndSwap(false, true) {
		close(g.entered)
		<-g.release
	}
}

func (g *gateStore) Query(ctx context.Context, col domain.Collection, q domain.Query) ([]domain.Document, error) {
	docs, err := g.RecordStore.Query(ctx, col, q)
	g.park("query")
	return docs, err
}

func (g *gateStore) Update(ctx context.Context, col domain.Collection, id string, f domain.Fields) (domain.Document, error) {
	doc, err := g.RecordStore.Update(ctx, col, id, f)
	g.park("update")
	return doc, err
}

func TestSupersededReadIsDiscarded(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	gate := newGateStore(mem, "query")
	svc := NewService(gateway.New(gate), nil, nil, nil)

	_, _, err := svc.CreateBreeding(ctx, newBreeding())
	require.NoError(t, err)

	stale := make(chan error, 1)
	go func() {
		_, err := svc.FetchBreedings(ctx, Filters{})
		stale <- err
	}()
	<-gate.entered

	_, _, err = svc.CreateBreeding(ctx, newBreeding())
	require.NoError(t, err)
	fresh, err := svc.FetchBreedings(ctx, Filters{})
	require.NoError(t, err)
	require.Len(t, fresh, 2)

	close(gate.release)
	require.ErrorIs(t, <-stale, ErrSuperseded)
	assert.Len(t, svc.State().Breedings(), 2)
	assert.Empty(t, svc.Section(domain.CollectionBreedings).Err)

	var cached []domain.Breeding
	ok, err := svc.Cache().Fresh(ctx, domain.CollectionBreedings, &cached)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestWriteSupersedesInFlightRead(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	gate := newGateStore(mem, "query")
	svc := NewService(gateway.New(gate), nil, nil, nil)

	stale := make(chan error, 1)
	go func() {
		_, err := svc.FetchBreedings(ctx, Filters{})
		stale <- err
	}()
	<-gate.entered

	created, _, err := svc.CreateBreeding(ctx, newBreeding())
	require.NoError(t, err)

	close(gate.release)
	require.ErrorIs(t, <-stale, ErrSuperseded)
	held := svc.State().Breedings()
	require.Len(t, held, 1)
	assert.Equal(t, created.ID, held[0].ID)

	var cached []domain.Breeding
	ok, err := svc.Cache().Fresh(ctx, domain.CollectionBreedings, &cached)
	require.NoError(t, err)
	assert.False(t, ok, "a read older than the write must not refresh the cache")
}

func TestSupersededWriteIsDiscarded(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	gate := newGateStore(mem, "update")
	svc := NewService(gateway.New(gate), nil, nil, nil)
	b, _, err := svc.CreateBreeding(ctx, newBreeding())
	require.NoError(t, err)

	stale := make(chan error, 1)
	go func() {
		_, _, err := svc.UpdateBreeding(ctx, b.ID, domain.Breeding{Notes: strPtr("first")}, "notes")
		stale <- err
	}()
	<-gate.entered
	_, _, err = svc.UpdateBreeding(ctx, b.ID, domain.Breeding{Notes: strPtr("second")}, "notes")
	require.NoError(t, err)
	close(gate.release)

	require.ErrorIs(t, <-stale, ErrSuperseded)
	got, _ := svc.State().Breeding(b.ID)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "second", *got.Notes)
}

func TestCancelledContextIsNotApplied(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.FetchBreedings(ctx, Filters{})
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Empty(t, f.svc.Section(domain.CollectionBreedings).Err)
}

func TestConcurrentActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.CreateBreeding(ctx, newBreeding())
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.FetchBreedings(ctx, Filters{})
			if err != nil {
				assert.ErrorIs(t, err, ErrSuperseded)
			}
		}()
	}
	wg.Wait()
	_, err := f.svc.FetchBreedings(ctx, Filters{})
	require.NoError(t, err)
	assert.Len(t, f.svc.State().Breedings(), 8)
	assert.False(t, f.svc.Section(domain.CollectionBreedings).Loading)
}
