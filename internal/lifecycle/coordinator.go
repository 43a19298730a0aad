package lifecycle

import (
	"sync"

	"herdbook/pkg/domain"
)

// Coordinator is the goroutine-safe owner of one State. Mutations never fail;
// each returns the non-blocking findings of the lifecycle rules for the
// changes it applied.
type Coordinator struct {
	mu     sync.RWMutex
	state  *State
	engine *domain.RulesEngine
}

// NewCoordinator returns a coordinator over an empty state. A nil engine
// selects NewDefaultRulesEngine.
func NewCoordinator(engine *domain.RulesEngine) *Coordinator {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return &Coordinator{state: NewState(), engine: engine}
}

func (c *Coordinator) apply(fn func(*State) []domain.Change) domain.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	changes := fn(c.state)
	return c.engine.Evaluate(c.state, changes)
}

func (c *Coordinator) replace(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.state)
}

func (c *Coordinator) read(fn func(*State)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.state)
}

// AddBreeding inserts a breeding at the head of its collection.
func (c *Coordinator) AddBreeding(b domain.Breeding) domain.Result {
	return c.apply(func(s *State) []domain.Change { return AddBreeding(s, b) })
}

// UpdateBreeding replaces a breeding by id.
func (c *Coordinator) UpdateBreeding(b domain.Breeding) domain.Result {
	return c.apply(func(s *State) []domain.Change { return UpdateBreeding(s, b) })
}

// DeleteBreeding removes a breeding by id.
func (c *Coordinator) DeleteBreeding(id string) domain.Result {
	return c.apply(func(s *State) []domain.Change { return DeleteBreeding(s, id) })
}

// AddPregnancy inserts a pregnancy and confirms its breeding.
func (c *Coordinator) AddPregnancy(p domain.Pregnancy) domain.Result {
	return c.apply(func(s *State) []domain.Change { return AddPregnancy(s, p) })
}

// UpdatePregnancy replaces a pregnancy by id.
func (c *Coordinator) UpdatePregnancy(p domain.Pregnancy) domain.Result {
	return c.apply(func(s *State) []domain.Change { return UpdatePregnancy(s, p) })
}

// DeletePregnancy removes a pregnancy and reverts its breeding to pending.
func (c *Coordinator) DeletePregnancy(id string) domain.Result {
	return c.apply(func(s *State) []domain.Change { return DeletePregnancy(s, id) })
}

// AddBirth inserts a birth and completes its pregnancy.
func (c *Coordinator) AddBirth(b domain.Birth) domain.Result {
	return c.apply(func(s *State) []domain.Change { return AddBirth(s, b) })
}

// UpdateBirth replaces a birth's details by id.
func (c *Coordinator) UpdateBirth(b domain.Birth) domain.Result {
	return c.apply(func(s *State) []domain.Change { return UpdateBirth(s, b) })
}

// DeleteBirth removes a birth and reopens its pregnancy.
func (c *Coordinator) DeleteBirth(id string) domain.Result {
	return c.apply(func(s *State) []domain.Change { return DeleteBirth(s, id) })
}

// AddLineageRecord inserts a lineage record.
func (c *Coordinator) AddLineageRecord(l domain.LineageRecord) domain.Result {
	return c.apply(func(s *State) []domain.Change { return AddLineageRecord(s, l) })
}

// UpdateLineageRecord replaces a lineage record by id.
func (c *Coordinator) UpdateLineageRecord(l domain.LineageRecord) domain.Result {
	return c.apply(func(s *State) []domain.Change { return UpdateLineageRecord(s, l) })
}

// DeleteLineageRecord removes a lineage record by id.
func (c *Coordinator) DeleteLineageRecord(id string) domain.Result {
	return c.apply(func(s *State) []domain.Change { return DeleteLineageRecord(s, id) })
}

// AddGeneticProfile inserts a genetic profile.
func (c *Coordinator) AddGeneticProfile(g domain.GeneticProfile) domain.Result {
	return c.apply(func(s *State) []domain.Change { return AddGeneticProfile(s, g) })
}

// UpdateGeneticProfile replaces a genetic profile by id.
func (c *Coordinator) UpdateGeneticProfile(g domain.GeneticProfile) domain.Result {
	return c.apply(func(s *State) []domain.Change { return UpdateGeneticProfile(s, g) })
}

// DeleteGeneticProfile removes a genetic profile by id.
func (c *Coordinator) DeleteGeneticProfile(id string) domain.Result {
	return c.apply(func(s *State) []domain.Change { return DeleteGeneticProfile(s, id) })
}

// ReplaceBreedings loads a fetched breeding list.
func (c *Coordinator) ReplaceBreedings(items []domain.Breeding) {
	c.replace(func(s *State) { ReplaceBreedings(s, items) })
}

// ReplacePregnancies loads a fetched pregnancy list.
func (c *Coordinator) ReplacePregnancies(items []domain.Pregnancy) {
	c.replace(func(s *State) { ReplacePregnancies(s, items) })
}

// ReplaceBirths loads a fetched birth list.
func (c *Coordinator) ReplaceBirths(items []domain.Birth) {
	c.replace(func(s *State) { ReplaceBirths(s, items) })
}

// ReplaceLineageRecords loads a fetched lineage list.
func (c *Coordinator) ReplaceLineageRecords(items []domain.LineageRecord) {
	c.replace(func(s *State) { ReplaceLineageRecords(s, items) })
}

// ReplaceGeneticProfiles loads a fetched genetic profile list.
func (c *Coordinator) ReplaceGeneticProfiles(items []domain.GeneticProfile) {
	c.replace(func(s *State) { ReplaceGeneticProfiles(s, items) })
}

// Select marks id as the selected record of collection.
func (c *Coordinator) Select(collection domain.Collection, id string) {
	c.replace(func(s *State) { Select(s, collection, id) })
}

// ClearSelection clears the selected record of collection.
func (c *Coordinator) ClearSelection(collection domain.Collection) {
	c.replace(func(s *State) { Select(s, collection, "") })
}

// Selection returns the selected ids.
func (c *Coordinator) Selection() (sel Selection) {
	c.read(func(s *State) { sel = s.Selection() })
	return sel
}

// Breedings lists breedings, most recent first.
func (c *Coordinator) Breedings() (out []domain.Breeding) {
	c.read(func(s *State) { out = s.ListBreedings() })
	return out
}

// Pregnancies lists pregnancies, most recent first.
func (c *Coordinator) Pregnancies() (out []domain.Pregnancy) {
	c.read(func(s *State) { out = s.ListPregnancies() })
	return out
}

// Births lists births, most recent first.
func (c *Coordinator) Births() (out []domain.Birth) {
	c.read(func(s *State) { out = s.ListBirths() })
	return out
}

// LineageRecords lists lineage records, most recent first.
func (c *Coordinator) LineageRecords() (out []domain.LineageRecord) {
	c.read(func(s *State) { out = s.ListLineageRecords() })
	return out
}

// GeneticProfiles lists genetic profiles, most recent first.
func (c *Coordinator) GeneticProfiles() (out []domain.GeneticProfile) {
	c.read(func(s *State) { out = s.ListGeneticProfiles() })
	return out
}

// Breeding looks a breeding up by id.
func (c *Coordinator) Breeding(id string) (b domain.Breeding, ok bool) {
	c.read(func(s *State) { b, ok = s.FindBreeding(id) })
	return b, ok
}

// Pregnancy looks a pregnancy up by id.
func (c *Coordinator) Pregnancy(id string) (p domain.Pregnancy, ok bool) {
	c.read(func(s *State) { p, ok = s.FindPregnancy(id) })
	return p, ok
}

// Birth looks a birth up by id.
func (c *Coordinator) Birth(id string) (b domain.Birth, ok bool) {
	c.read(func(s *State) { b, ok = s.FindBirth(id) })
	return b, ok
}

// LineageRecord looks a lineage record up by id.
func (c *Coordinator) LineageRecord(id string) (l domain.LineageRecord, ok bool) {
	c.read(func(s *State) { l, ok = s.FindLineageRecord(id) })
	return l, ok
}

// GeneticProfile looks a genetic profile up by id.
func (c *Coordinator) GeneticProfile(id string) (g domain.GeneticProfile, ok bool) {
	c.read(func(s *State) { g, ok = s.FindGeneticProfile(id) })
	return g, ok
}

// Snapshot returns an independent copy of the current state.
func (c *Coordinator) Snapshot() (snap *State) {
	c.read(func(s *State) { snap = s.clone() })
	return snap
}
