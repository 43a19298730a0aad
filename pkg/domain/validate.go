package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError lists the problems found on a record.
type ValidationError struct {
	Entity   EntityType
	Problems []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(e.Problems, "; "))
}

type problems struct {
	entity EntityType
	list   []string
}

func (p *problems) require(ok bool, format string, args ...any) {
	if !ok {
		p.list = append(p.list, fmt.Sprintf(format, args...))
	}
}

func (p *problems) err() error {
	if len(p.list) == 0 {
		return nil
	}
	return ValidationError{Entity: p.entity, Problems: p.list}
}

// Valid reports whether m is a known breeding method.
func (m BreedingMethod) Valid() bool {
	switch m {
	case MethodNatural, MethodArtificialInsemination, MethodEmbryoTransfer:
		return true
	}
	return false
}

// Valid reports whether s is a known breeding status.
func (s BreedingStatus) Valid() bool {
	switch s {
	case BreedingPending, BreedingConfirmed, BreedingFailed, BreedingAborted:
		return true
	}
	return false
}

// Valid reports whether s is a known pregnancy status.
func (s PregnancyStatus) Valid() bool {
	switch s {
	case PregnancyConfirmed, PregnancyDueSoon, PregnancyOverdue, PregnancyCompleted, PregnancyLost:
		return true
	}
	return false
}

// Valid reports whether o is a known pregnancy outcome.
func (o PregnancyOutcome) Valid() bool {
	switch o {
	case OutcomeLiveBirth, OutcomeStillbirth, OutcomeAbortion, OutcomeUnknown:
		return true
	}
	return false
}

// Valid reports whether r is a known check result.
func (r CheckResult) Valid() bool {
	switch r {
	case CheckPositive, CheckNegative, CheckInconclusive:
		return true
	}
	return false
}

// Valid reports whether g is a known gender.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Validate checks required fields and enumerations.
func (b Breeding) Validate() error {
	p := problems{entity: EntityBreeding}
	p.require(b.DamID != "", "damId is required")
	p.require(b.SireID != "", "sireId is required")
	p.require(!b.BreedingDate.IsZero(), "breedingDate is required")
	p.require(b.Method.Valid(), "unknown method %q", b.Method)
	p.require(b.Status == "" || b.Status.Valid(), "unknown status %q", b.Status)
	if b.Cost != nil {
		p.require(!b.Cost.IsNegative(), "cost must not be negative")
	}
	return p.err()
}

// Validate checks required fields and enumerations.
func (pr Pregnancy) Validate() error {
	p := problems{entity: EntityPregnancy}
	p.require(pr.BreedingID != "", "breedingId is required")
	p.require(pr.DamID != "", "damId is required")
	p.require(!pr.ConfirmationDate.IsZero(), "confirmationDate is required")
	p.require(pr.Status == "" || pr.Status.Valid(), "unknown status %q", pr.Status)
	p.require(pr.GestationPeriod >= 0, "gestationPeriod must not be negative")
	if pr.Outcome != nil {
		p.require(pr.Outcome.Valid(), "unknown outcome %q", *pr.Outcome)
	}
	for i, c := range pr.Checks {
		p.require(!c.Date.IsZero(), "checks[%d].date is required", i)
		p.require(c.Result.Valid(), "checks[%d] unknown result %q", i, c.Result)
	}
	return p.err()
}

// Validate checks required fields and calf sub-records.
func (b Birth) Validate() error {
	p := problems{entity: EntityBirth}
	p.require(b.PregnancyID != "", "pregnancyId is required")
	p.require(b.DamID != "", "damId is required")
	p.require(!b.BirthDate.IsZero(), "birthDate is required")
	for i, c := range b.Calves {
		p.require(c.ID != "", "calves[%d].id is required", i)
		p.require(c.Gender == "" || c.Gender.Valid(), "calves[%d] unknown gender %q", i, c.Gender)
		p.require(c.Weight >= 0, "calves[%d].weight must not be negative", i)
	}
	return p.err()
}

// Validate checks required fields.
func (l LineageRecord) Validate() error {
	p := problems{entity: EntityLineageRecord}
	p.require(l.AnimalID != "", "animalId is required")
	p.require(l.Generation >= 0, "generation must not be negative")
	return p.err()
}

// Validate checks required fields and coefficient bounds.
func (g GeneticProfile) Validate() error {
	p := problems{entity: EntityGeneticProfile}
	p.require(g.AnimalID != "", "animalId is required")
	p.require(g.InbreedingCoefficient >= 0 && g.InbreedingCoefficient <= 1, "inbreedingCoefficient must be within [0,1]")
	for i, m := range g.Markers {
		p.require(m.Name != "", "markers[%d].name is required", i)
	}
	return p.err()
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}
