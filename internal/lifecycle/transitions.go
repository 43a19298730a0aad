package lifecycle

import (
	"time"

	"herdbook/pkg/domain"
)

// Transition handlers mutate the state they are given and report the changes
// they made. Absent target ids and absent linked records are no-ops; none of
// them fail.

func created(entity domain.EntityType, after any, previous any, replaced bool) []domain.Change {
	change := domain.Change{Entity: entity, Action: domain.ActionCreate, After: after}
	if replaced {
		change.Before = previous
	}
	return []domain.Change{change}
}

func updated[T record](entity domain.EntityType, c *Collection[T], v T) []domain.Change {
	before, ok := c.replace(v)
	if !ok {
		return nil
	}
	return []domain.Change{{Entity: entity, Action: domain.ActionUpdate, Before: before, After: c.clone(v)}}
}

func deleted[T record](entity domain.EntityType, c *Collection[T], id string) (T, []domain.Change) {
	removed, ok := c.remove(id)
	if !ok {
		return removed, nil
	}
	return removed, []domain.Change{{Entity: entity, Action: domain.ActionDelete, Before: removed}}
}

// AddBreeding inserts b at the head of the breeding collection.
func AddBreeding(s *State, b domain.Breeding) []domain.Change {
	prev, replaced := s.breedings.insert(b)
	return created(domain.EntityBreeding, cloneBreeding(b), prev, replaced)
}

// UpdateBreeding replaces the breeding with b's id.
func UpdateBreeding(s *State, b domain.Breeding) []domain.Change {
	return updated(domain.EntityBreeding, &s.breedings, b)
}

// DeleteBreeding removes the breeding with id. Pregnancies referencing it are
// left untouched.
func DeleteBreeding(s *State, id string) []domain.Change {
	_, changes := deleted(domain.EntityBreeding, &s.breedings, id)
	return changes
}

// AddPregnancy inserts p at the head of the pregnancy collection and confirms
// its breeding.
func AddPregnancy(s *State, p domain.Pregnancy) []domain.Change {
	prev, replaced := s.pregnancies.insert(p)
	changes := created(domain.EntityPregnancy, clonePregnancy(p), prev, replaced)
	return append(changes, confirmBreeding(s, p.BreedingID)...)
}

// UpdatePregnancy replaces the pregnancy with p's id.
func UpdatePregnancy(s *State, p domain.Pregnancy) []domain.Change {
	return updated(domain.EntityPregnancy, &s.pregnancies, p)
}

// DeletePregnancy removes the pregnancy with id and reverts its breeding to
// pending, whether or not other pregnancies still reference that breeding.
func DeletePregnancy(s *State, id string) []domain.Change {
	removed, changes := deleted(domain.EntityPregnancy, &s.pregnancies, id)
	if changes == nil {
		return nil
	}
	return append(changes, revertBreeding(s, removed.BreedingID)...)
}

// AddBirth inserts b at the head of the birth collection and completes its
// pregnancy.
func AddBirth(s *State, b domain.Birth) []domain.Change {
	prev, replaced := s.births.insert(b)
	changes := created(domain.EntityBirth, cloneBirth(b), prev, replaced)
	return append(changes, completePregnancy(s, b.PregnancyID, b.BirthDate)...)
}

// UpdateBirth replaces the birth with b's id. The pregnancy link is kept from
// the stored record.
func UpdateBirth(s *State, b domain.Birth) []domain.Change {
	if current, ok := s.births.find(b.ID); ok {
		b.PregnancyID = current.PregnancyID
	}
	return updated(domain.EntityBirth, &s.births, b)
}

// DeleteBirth removes the birth with id and reopens its pregnancy.
func DeleteBirth(s *State, id string) []domain.Change {
	removed, changes := deleted(domain.EntityBirth, &s.births, id)
	if changes == nil {
		return nil
	}
	return append(changes, reopenPregnancy(s, removed.PregnancyID)...)
}

// AddLineageRecord inserts l at the head of the lineage collection.
func AddLineageRecord(s *State, l domain.LineageRecord) []domain.Change {
	prev, replaced := s.lineage.insert(l)
	return created(domain.EntityLineageRecord, cloneLineageRecord(l), prev, replaced)
}

// UpdateLineageRecord replaces the lineage record with l's id.
func UpdateLineageRecord(s *State, l domain.LineageRecord) []domain.Change {
	return updated(domain.EntityLineageRecord, &s.lineage, l)
}

// DeleteLineageRecord removes the lineage record with id.
func DeleteLineageRecord(s *State, id string) []domain.Change {
	_, changes := deleted(domain.EntityLineageRecord, &s.lineage, id)
	return changes
}

// AddGeneticProfile inserts g at the head of the genetic profile collection.
func AddGeneticProfile(s *State, g domain.GeneticProfile) []domain.Change {
	prev, replaced := s.genetics.insert(g)
	return created(domain.EntityGeneticProfile, cloneGeneticProfile(g), prev, replaced)
}

// UpdateGeneticProfile replaces the genetic profile with g's id.
func UpdateGeneticProfile(s *State, g domain.GeneticProfile) []domain.Change {
	return updated(domain.EntityGeneticProfile, &s.genetics, g)
}

// DeleteGeneticProfile removes the genetic profile with id.
func DeleteGeneticProfile(s *State, id string) []domain.Change {
	_, changes := deleted(domain.EntityGeneticProfile, &s.genetics, id)
	return changes
}

// ReplaceBreedings loads a fetched list as-is, keeping its order.
func ReplaceBreedings(s *State, items []domain.Breeding) { s.breedings.reset(items) }

// ReplacePregnancies loads a fetched list as-is, keeping its order.
func ReplacePregnancies(s *State, items []domain.Pregnancy) { s.pregnancies.reset(items) }

// ReplaceBirths loads a fetched list as-is, keeping its order.
func ReplaceBirths(s *State, items []domain.Birth) { s.births.reset(items) }

// ReplaceLineageRecords loads a fetched list as-is, keeping its order.
func ReplaceLineageRecords(s *State, items []domain.LineageRecord) { s.lineage.reset(items) }

// ReplaceGeneticProfiles loads a fetched list as-is, keeping its order.
func ReplaceGeneticProfiles(s *State, items []domain.GeneticProfile) { s.genetics.reset(items) }

// Select sets the selected id of collection unconditionally; an empty id
// clears it.
func Select(s *State, collection domain.Collection, id string) {
	switch collection {
	case domain.CollectionBreedings:
		s.breedings.selected = id
	case domain.CollectionPregnancies:
		s.pregnancies.selected = id
	case domain.CollectionBirths:
		s.births.selected = id
	case domain.CollectionLineageRecords:
		s.lineage.selected = id
	case domain.CollectionGeneticProfiles:
		s.genetics.selected = id
	}
}

// Cascade handlers.

func cascade(entity domain.EntityType, before, after any) []domain.Change {
	return []domain.Change{{Entity: entity, Action: domain.ActionCascade, Before: before, After: after}}
}

func setBreedingStatus(s *State, breedingID string, status domain.BreedingStatus) []domain.Change {
	before, after, ok := s.breedings.mutate(breedingID, func(b *domain.Breeding) {
		b.Status = status
	})
	if !ok {
		return nil
	}
	return cascade(domain.EntityBreeding, before, after)
}

func confirmBreeding(s *State, breedingID string) []domain.Change {
	return setBreedingStatus(s, breedingID, domain.BreedingConfirmed)
}

func revertBreeding(s *State, breedingID string) []domain.Change {
	return setBreedingStatus(s, breedingID, domain.BreedingPending)
}

func completePregnancy(s *State, pregnancyID string, birthDate time.Time) []domain.Change {
	before, after, ok := s.pregnancies.mutate(pregnancyID, func(p *domain.Pregnancy) {
		p.Status = domain.PregnancyCompleted
		d := birthDate
		p.ActualBirthDate = &d
	})
	if !ok {
		return nil
	}
	return cascade(domain.EntityPregnancy, before, after)
}

func reopenPregnancy(s *State, pregnancyID string) []domain.Change {
	before, after, ok := s.pregnancies.mutate(pregnancyID, func(p *domain.Pregnancy) {
		p.Status = domain.PregnancyConfirmed
		p.ActualBirthDate = nil
	})
	if !ok {
		return nil
	}
	return cascade(domain.EntityPregnancy, before, after)
}
