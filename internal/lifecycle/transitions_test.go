package lifecycle

import (
	"testing"
	"time"

	"herdbook/pkg/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedBreeding(id string) domain.Breeding {
	return domain.Breeding{
		Base:         domain.Base{ID: id},
		DamID:        "D1",
		SireID:       "S1",
		BreedingDate: day(2024, time.January, 1),
		Method:       domain.MethodNatural,
		Status:       domain.BreedingPending,
	}
}

func seedPregnancy(id, breedingID string) domain.Pregnancy {
	return domain.Pregnancy{
		Base:             domain.Base{ID: id},
		BreedingID:       breedingID,
		DamID:            "D1",
		ConfirmationDate: day(2024, time.February, 1),
		ExpectedDueDate:  domain.ExpectedDueDate(day(2024, time.January, 1), 283),
		Status:           domain.PregnancyConfirmed,
		GestationPeriod:  283,
	}
}

func seedBirth(id, pregnancyID string) domain.Birth {
	return domain.Birth{
		Base:        domain.Base{ID: id},
		PregnancyID: pregnancyID,
		DamID:       "D1",
		BirthDate:   time.Date(2024, time.November, 10, 6, 30, 0, 0, time.UTC),
		Location:    "barn 2",
		Calves:      []domain.Calf{{ID: "C1", TagNumber: "T-1", Gender: domain.GenderFemale, Weight: 38.5}},
	}
}

func TestAddPregnancyConfirmsBreeding(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	if b, _ := s.FindBreeding("b1"); b.Status != domain.BreedingPending {
		t.Fatalf("expected new breeding pending, got %s", b.Status)
	}

	changes := AddPregnancy(s, seedPregnancy("p1", "b1"))
	if len(changes) != 2 {
		t.Fatalf("expected create plus cascade, got %d changes", len(changes))
	}
	if changes[1].Action != domain.ActionCascade || changes[1].Entity != domain.EntityBreeding {
		t.Fatalf("expected breeding cascade, got %+v", changes[1])
	}
	if b, _ := s.FindBreeding("b1"); b.Status != domain.BreedingConfirmed {
		t.Fatalf("expected breeding confirmed, got %s", b.Status)
	}
}

func TestDeletePregnancyRevertsBreeding(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	AddPregnancy(s, seedPregnancy("p1", "b1"))

	DeletePregnancy(s, "p1")
	if _, ok := s.FindPregnancy("p1"); ok {
		t.Fatalf("expected pregnancy removed")
	}
	if b, _ := s.FindBreeding("b1"); b.Status != domain.BreedingPending {
		t.Fatalf("expected breeding reverted to pending, got %s", b.Status)
	}
}

func TestDeletePregnancyRevertsDespiteSiblings(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	AddPregnancy(s, seedPregnancy("p1", "b1"))
	AddPregnancy(s, seedPregnancy("p2", "b1"))

	DeletePregnancy(s, "p1")
	if b, _ := s.FindBreeding("b1"); b.Status != domain.BreedingPending {
		t.Fatalf("expected unconditional revert, got %s", b.Status)
	}
	if got := len(s.PregnanciesForBreeding("b1")); got != 1 {
		t.Fatalf("expected sibling pregnancy kept, got %d", got)
	}
}

func TestAddBirthCompletesPregnancy(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	AddPregnancy(s, seedPregnancy("p1", "b1"))
	birth := seedBirth("t1", "p1")

	AddBirth(s, birth)
	p, _ := s.FindPregnancy("p1")
	if p.Status != domain.PregnancyCompleted {
		t.Fatalf("expected pregnancy completed, got %s", p.Status)
	}
	if p.ActualBirthDate == nil || !p.ActualBirthDate.Equal(birth.BirthDate) {
		t.Fatalf("expected actual birth date %v, got %v", birth.BirthDate, p.ActualBirthDate)
	}

	DeleteBirth(s, "t1")
	p, _ = s.FindPregnancy("p1")
	if p.Status != domain.PregnancyConfirmed {
		t.Fatalf("expected pregnancy reopened, got %s", p.Status)
	}
	if p.ActualBirthDate != nil {
		t.Fatalf("expected actual birth date cleared, got %v", p.ActualBirthDate)
	}
}

func TestCascadeTargetMissingIsNoop(t *testing.T) {
	s := NewState()
	changes := AddPregnancy(s, seedPregnancy("p1", "missing"))
	if len(changes) != 1 {
		t.Fatalf("expected only the create change, got %d", len(changes))
	}
	if _, ok := s.FindPregnancy("p1"); !ok {
		t.Fatalf("expected insert to succeed without its breeding")
	}
	changes = AddBirth(s, seedBirth("t1", "nope"))
	if len(changes) != 1 || s.births.Len() != 1 {
		t.Fatalf("expected birth inserted without cascade")
	}
}

func TestInsertOrderAndDedup(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	AddBreeding(s, seedBreeding("b2"))
	AddBreeding(s, seedBreeding("b3"))

	got := s.ListBreedings()
	if got[0].ID != "b3" || got[2].ID != "b1" {
		t.Fatalf("expected most recent first, got %s..%s", got[0].ID, got[2].ID)
	}

	again := seedBreeding("b1")
	again.DamID = "D9"
	changes := AddBreeding(s, again)
	if changes[0].Before == nil {
		t.Fatalf("expected replaced record reported")
	}
	got = s.ListBreedings()
	if len(got) != 3 || got[0].ID != "b1" || got[0].DamID != "D9" {
		t.Fatalf("expected b1 moved to head without duplicate, got %+v", got)
	}
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	ghost := seedBreeding("ghost")
	if changes := UpdateBreeding(s, ghost); changes != nil {
		t.Fatalf("expected no changes for unknown id, got %+v", changes)
	}
	if changes := DeleteBirth(s, "ghost"); changes != nil {
		t.Fatalf("expected no changes for unknown birth, got %+v", changes)
	}
	if s.breedings.Len() != 1 {
		t.Fatalf("expected collection untouched")
	}
}

func TestUpdateReplacesInPlace(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	AddBreeding(s, seedBreeding("b2"))

	updated := seedBreeding("b1")
	updated.Status = domain.BreedingFailed
	notes := "open"
	updated.Notes = &notes
	UpdateBreeding(s, updated)

	got := s.ListBreedings()
	if got[1].ID != "b1" || got[1].Status != domain.BreedingFailed {
		t.Fatalf("expected b1 updated at its position, got %+v", got[1])
	}
	notes = "mutated"
	if b, _ := s.FindBreeding("b1"); *b.Notes != "open" {
		t.Fatalf("expected stored record isolated from caller, got %q", *b.Notes)
	}
}

func TestUpdateBirthKeepsLinkage(t *testing.T) {
	s := NewState()
	AddBirth(s, seedBirth("t1", "p1"))
	moved := seedBirth("t1", "p2")
	moved.Location = "paddock"
	UpdateBirth(s, moved)

	b, _ := s.FindBirth("t1")
	if b.PregnancyID != "p1" {
		t.Fatalf("expected pregnancy link kept, got %s", b.PregnancyID)
	}
	if b.Location != "paddock" {
		t.Fatalf("expected detail field updated, got %s", b.Location)
	}
}

func TestSelectionClearedOnDelete(t *testing.T) {
	s := NewState()
	AddBreeding(s, seedBreeding("b1"))
	AddBreeding(s, seedBreeding("b2"))
	Select(s, domain.CollectionBreedings, "b1")
	if s.Selection().Breeding != "b1" {
		t.Fatalf("expected b1 selected")
	}

	DeleteBreeding(s, "b2")
	if s.Selection().Breeding != "b1" {
		t.Fatalf("expected selection kept when another record is deleted")
	}
	DeleteBreeding(s, "b1")
	if s.Selection().Breeding != "" {
		t.Fatalf("expected selection cleared when selected record is deleted")
	}
}

func TestReplaceKeepsStoreOrder(t *testing.T) {
	s := NewState()
	Select(s, domain.CollectionPregnancies, "gone")
	ReplacePregnancies(s, []domain.Pregnancy{seedPregnancy("p2", "b1"), seedPregnancy("p1", "b1")})

	got := s.ListPregnancies()
	if got[0].ID != "p2" || got[1].ID != "p1" {
		t.Fatalf("expected fetched order kept, got %s,%s", got[0].ID, got[1].ID)
	}
	if s.Selection().Pregnancy != "" {
		t.Fatalf("expected dangling selection cleared on replace")
	}
}

func TestAncillaryCollectionsHaveNoCascade(t *testing.T) {
	s := NewState()
	reg := "HB-1"
	changes := AddLineageRecord(s, domain.LineageRecord{Base: domain.Base{ID: "l1"}, AnimalID: "A1", Breed: "Angus", RegistrationNumber: &reg})
	if len(changes) != 1 {
		t.Fatalf("expected a single change, got %d", len(changes))
	}
	AddGeneticProfile(s, domain.GeneticProfile{
		Base:             domain.Base{ID: "g1"},
		AnimalID:         "A1",
		BreedComposition: map[string]float64{"Angus": 1},
	})

	g, _ := s.FindGeneticProfile("g1")
	g.BreedComposition["Angus"] = 0.5
	if stored, _ := s.FindGeneticProfile("g1"); stored.BreedComposition["Angus"] != 1 {
		t.Fatalf("expected stored map isolated, got %v", stored.BreedComposition)
	}

	DeleteLineageRecord(s, "l1")
	DeleteGeneticProfile(s, "g1")
	if len(s.ListLineageRecords()) != 0 || len(s.ListGeneticProfiles()) != 0 {
		t.Fatalf("expected ancillary records removed")
	}
}
