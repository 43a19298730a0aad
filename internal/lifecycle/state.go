// Package lifecycle owns the in-memory breeding, pregnancy and birth
// collections and the transitions that keep their statuses consistent.
package lifecycle

import (
	"maps"
	"slices"
	"time"

	"herdbook/pkg/domain"
)

var _ domain.RuleView = (*State)(nil)

// State is the explicit owner of every lifecycle collection. Transitions are
// the package-level functions in transitions.go; they take *State and return
// the changes they applied.
type State struct {
	breedings   Collection[domain.Breeding]
	pregnancies Collection[domain.Pregnancy]
	births      Collection[domain.Birth]
	lineage     Collection[domain.LineageRecord]
	genetics    Collection[domain.GeneticProfile]
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		breedings:   newCollection(cloneBreeding),
		pregnancies: newCollection(clonePregnancy),
		births:      newCollection(cloneBirth),
		lineage:     newCollection(cloneLineageRecord),
		genetics:    newCollection(cloneGeneticProfile),
	}
}

func (s *State) clone() *State {
	return &State{
		breedings:   s.breedings.copyOf(),
		pregnancies: s.pregnancies.copyOf(),
		births:      s.births.copyOf(),
		lineage:     s.lineage.copyOf(),
		genetics:    s.genetics.copyOf(),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func cloneBreeding(b domain.Breeding) domain.Breeding {
	cp := b
	cp.Technician = cloneString(b.Technician)
	cp.Location = cloneString(b.Location)
	cp.Notes = cloneString(b.Notes)
	if b.Cost != nil {
		cost := *b.Cost
		cp.Cost = &cost
	}
	return cp
}

func clonePregnancy(p domain.Pregnancy) domain.Pregnancy {
	cp := p
	cp.ActualBirthDate = cloneTime(p.ActualBirthDate)
	if p.Outcome != nil {
		o := *p.Outcome
		cp.Outcome = &o
	}
	cp.Notes = cloneString(p.Notes)
	if p.Checks != nil {
		cp.Checks = make([]domain.PregnancyCheck, len(p.Checks))
		for i, c := range p.Checks {
			c.Notes = cloneString(c.Notes)
			cp.Checks[i] = c
		}
	}
	return cp
}

func cloneBirth(b domain.Birth) domain.Birth {
	cp := b
	if b.Calves != nil {
		cp.Calves = make([]domain.Calf, len(b.Calves))
		for i, c := range b.Calves {
			c.Notes = cloneString(c.Notes)
			cp.Calves[i] = c
		}
	}
	cp.Complications = slices.Clone(b.Complications)
	cp.AssistanceType = cloneString(b.AssistanceType)
	cp.Notes = cloneString(b.Notes)
	return cp
}

func cloneLineageRecord(l domain.LineageRecord) domain.LineageRecord {
	cp := l
	cp.RegistrationNumber = cloneString(l.RegistrationNumber)
	cp.Notes = cloneString(l.Notes)
	return cp
}

func cloneGeneticProfile(g domain.GeneticProfile) domain.GeneticProfile {
	cp := g
	cp.Markers = slices.Clone(g.Markers)
	cp.BreedComposition = maps.Clone(g.BreedComposition)
	cp.TestedAt = cloneTime(g.TestedAt)
	cp.Laboratory = cloneString(g.Laboratory)
	return cp
}

// ListBreedings returns breedings, most recent first.
func (s *State) ListBreedings() []domain.Breeding { return s.breedings.list() }

// ListPregnancies returns pregnancies, most recent first.
func (s *State) ListPregnancies() []domain.Pregnancy { return s.pregnancies.list() }

// ListBirths returns births, most recent first.
func (s *State) ListBirths() []domain.Birth { return s.births.list() }

// ListLineageRecords returns lineage records, most recent first.
func (s *State) ListLineageRecords() []domain.LineageRecord { return s.lineage.list() }

// ListGeneticProfiles returns genetic profiles, most recent first.
func (s *State) ListGeneticProfiles() []domain.GeneticProfile { return s.genetics.list() }

// FindBreeding looks a breeding up by id.
func (s *State) FindBreeding(id string) (domain.Breeding, bool) { return s.breedings.find(id) }

// FindPregnancy looks a pregnancy up by id.
func (s *State) FindPregnancy(id string) (domain.Pregnancy, bool) { return s.pregnancies.find(id) }

// FindBirth looks a birth up by id.
func (s *State) FindBirth(id string) (domain.Birth, bool) { return s.births.find(id) }

// FindLineageRecord looks a lineage record up by id.
func (s *State) FindLineageRecord(id string) (domain.LineageRecord, bool) { return s.lineage.find(id) }

// FindGeneticProfile looks a genetic profile up by id.
func (s *State) FindGeneticProfile(id string) (domain.GeneticProfile, bool) {
	return s.genetics.find(id)
}

// PregnanciesForBreeding returns the pregnancies that reference breedingID.
func (s *State) PregnanciesForBreeding(breedingID string) []domain.Pregnancy {
	return s.pregnancies.filter(func(p domain.Pregnancy) bool { return p.BreedingID == breedingID })
}

// BirthsForPregnancy returns the births that reference pregnancyID.
func (s *State) BirthsForPregnancy(pregnancyID string) []domain.Birth {
	return s.births.filter(func(b domain.Birth) bool { return b.PregnancyID == pregnancyID })
}

// Selection holds the selected record id per collection.
type Selection struct {
	Breeding       string
	Pregnancy      string
	Birth          string
	LineageRecord  string
	GeneticProfile string
}

// Selection returns the current selections.
func (s *State) Selection() Selection {
	return Selection{
		Breeding:       s.breedings.selected,
		Pregnancy:      s.pregnancies.selected,
		Birth:          s.births.selected,
		LineageRecord:  s.lineage.selected,
		GeneticProfile: s.genetics.selected,
	}
}
