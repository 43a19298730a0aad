// Package domain defines the breeding lifecycle records, their status
// enumerations, and the change and rule primitives shared by herdbook.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record tracked by the lifecycle.
type EntityType string

// Supported entity type identifiers used in Change records and rule output.
const (
	// EntityBreeding identifies a breeding event record.
	EntityBreeding EntityType = "breeding"
	// EntityPregnancy identifies a pregnancy record.
	EntityPregnancy EntityType = "pregnancy"
	// EntityBirth identifies a birth outcome record.
	EntityBirth EntityType = "birth"
	// EntityLineageRecord identifies a pedigree record keyed by animal.
	EntityLineageRecord EntityType = "lineage_record"
	// EntityGeneticProfile identifies a genotyping result keyed by animal.
	EntityGeneticProfile EntityType = "genetic_profile"
)

// Collection names a synchronized collection. The same names key the remote
// store collections and the slices of the offline cache bundle.
type Collection string

// Synchronized collections.
const (
	CollectionBreedings       Collection = "breedings"
	CollectionPregnancies     Collection = "pregnancies"
	CollectionBirths          Collection = "births"
	CollectionLineageRecords  Collection = "lineageRecords"
	CollectionGeneticProfiles Collection = "geneticProfiles"
)

// Collections lists every synchronized collection in bundle order.
func Collections() []Collection {
	return []Collection{
		CollectionBreedings,
		CollectionPregnancies,
		CollectionBirths,
		CollectionLineageRecords,
		CollectionGeneticProfiles,
	}
}

// Entity returns the entity type stored in the collection.
func (c Collection) Entity() EntityType {
	switch c {
	case CollectionBreedings:
		return EntityBreeding
	case CollectionPregnancies:
		return EntityPregnancy
	case CollectionBirths:
		return EntityBirth
	case CollectionLineageRecords:
		return EntityLineageRecord
	case CollectionGeneticProfiles:
		return EntityGeneticProfile
	default:
		return ""
	}
}

// BreedingMethod describes how a breeding was performed.
type BreedingMethod string

// Supported breeding methods.
const (
	MethodNatural                BreedingMethod = "natural"
	MethodArtificialInsemination BreedingMethod = "artificial_insemination"
	MethodEmbryoTransfer         BreedingMethod = "embryo_transfer"
)

// BreedingStatus enumerates breeding states. Confirmed is only reached through
// the creation of a linked pregnancy.
type BreedingStatus string

// Canonical breeding statuses.
const (
	BreedingPending   BreedingStatus = "pending"
	BreedingConfirmed BreedingStatus = "confirmed"
	BreedingFailed    BreedingStatus = "failed"
	BreedingAborted   BreedingStatus = "aborted"
)

// PregnancyStatus enumerates gestation states.
type PregnancyStatus string

// Canonical pregnancy statuses. DueSoon and Overdue are advanced by
// time-based logic outside the lifecycle core.
const (
	PregnancyConfirmed PregnancyStatus = "confirmed"
	PregnancyDueSoon   PregnancyStatus = "due_soon"
	PregnancyOverdue   PregnancyStatus = "overdue"
	PregnancyCompleted PregnancyStatus = "completed"
	PregnancyLost      PregnancyStatus = "lost"
)

// PregnancyOutcome records how a pregnancy ended.
type PregnancyOutcome string

// Pregnancy outcomes.
const (
	OutcomeLiveBirth  PregnancyOutcome = "live_birth"
	OutcomeStillbirth PregnancyOutcome = "stillbirth"
	OutcomeAbortion   PregnancyOutcome = "abortion"
	OutcomeUnknown    PregnancyOutcome = "unknown"
)

// CheckResult is the result of a single pregnancy check.
type CheckResult string

// Pregnancy check results.
const (
	CheckPositive     CheckResult = "positive"
	CheckNegative     CheckResult = "negative"
	CheckInconclusive CheckResult = "inconclusive"
)

// Gender of a calf.
type Gender string

// Calf genders.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// DefaultGestationPeriod is the gestation length in days applied when a
// pregnancy is created without one (bovine average).
const DefaultGestationPeriod = 283

// Severity captures rule outcomes. Lifecycle rules never block a transition;
// they only annotate it.
type Severity string

// Rule evaluation severities.
const (
	// SeverityWarn flags a transition a caller should look at.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordID returns the record identifier.
func (b Base) RecordID() string { return b.ID }

// Breeding records a single mating event between a dam and a sire.
type Breeding struct {
	Base
	DamID        string           `json:"damId"`
	SireID       string           `json:"sireId"`
	BreedingDate time.Time        `json:"breedingDate"`
	Method       BreedingMethod   `json:"method"`
	Status       BreedingStatus   `json:"status"`
	Technician   *string          `json:"technician,omitempty"`
	Location     *string          `json:"location,omitempty"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

// PregnancyCheck is one entry of a pregnancy's ordered check history.
type PregnancyCheck struct {
	Date        time.Time   `json:"date"`
	Result      CheckResult `json:"result"`
	Method      string      `json:"method"`
	PerformedBy string      `json:"performedBy"`
	Notes       *string     `json:"notes,omitempty"`
}

// Pregnancy tracks gestation following a breeding. It references exactly one
// breeding by id.
type Pregnancy struct {
	Base
	BreedingID       string            `json:"breedingId"`
	DamID            string            `json:"damId"`
	ConfirmationDate time.Time         `json:"confirmationDate"`
	ExpectedDueDate  time.Time         `json:"expectedDueDate"`
	ActualBirthDate  *time.Time        `json:"actualBirthDate,omitempty"`
	Outcome          *PregnancyOutcome `json:"outcome,omitempty"`
	Status           PregnancyStatus   `json:"status"`
	GestationPeriod  int               `json:"gestationPeriod"`
	Checks           []PregnancyCheck  `json:"checks"`
	Notes            *string           `json:"notes,omitempty"`
}

// Calf is a sub-record of a birth.
type Calf struct {
	ID        string  `json:"id"`
	TagNumber string  `json:"tagNumber"`
	Gender    Gender  `json:"gender"`
	Weight    float64 `json:"weight"`
	Notes     *string `json:"notes,omitempty"`
}

// Birth records the outcome of a pregnancy. It references exactly one
// pregnancy by id; only its detail fields change after creation.
type Birth struct {
	Base
	PregnancyID        string    `json:"pregnancyId"`
	DamID              string    `json:"damId"`
	BirthDate          time.Time `json:"birthDate"`
	Location           string    `json:"location"`
	Calves             []Calf    `json:"calves"`
	Complications      []string  `json:"complications"`
	AssistanceRequired bool      `json:"assistanceRequired"`
	AssistanceType     *string   `json:"assistanceType,omitempty"`
	Notes              *string   `json:"notes,omitempty"`
}

// CalfIDs returns the ids of the calves born.
func (b Birth) CalfIDs() []string {
	out := make([]string, 0, len(b.Calves))
	for _, c := range b.Calves {
		out = append(out, c.ID)
	}
	return out
}

// LineageRecord captures the registered pedigree of an animal.
type LineageRecord struct {
	Base
	AnimalID           string  `json:"animalId"`
	SireID             string  `json:"sireId"`
	DamID              string  `json:"damId"`
	Generation         int     `json:"generation"`
	Breed              string  `json:"breed"`
	RegistrationNumber *string `json:"registrationNumber,omitempty"`
	Notes              *string `json:"notes,omitempty"`
}

// GeneticMarker is a single genotyped locus.
type GeneticMarker struct {
	Name     string `json:"name"`
	Locus    string `json:"locus"`
	Genotype string `json:"genotype"`
}

// GeneticProfile captures genotyping results for an animal.
type GeneticProfile struct {
	Base
	AnimalID              string             `json:"animalId"`
	Markers               []GeneticMarker    `json:"markers"`
	BreedComposition      map[string]float64 `json:"breedComposition"`
	InbreedingCoefficient float64            `json:"inbreedingCoefficient"`
	TestedAt              *time.Time         `json:"testedAt,omitempty"`
	Laboratory            *string            `json:"laboratory,omitempty"`
}

// ExpectedDueDate projects a due date from the breeding date and gestation
// length in days. A non-positive gestation uses DefaultGestationPeriod.
func ExpectedDueDate(breedingDate time.Time, gestationDays int) time.Time {
	if gestationDays <= 0 {
		gestationDays = DefaultGestationPeriod
	}
	return breedingDate.AddDate(0, 0, gestationDays)
}

// Change describes a mutation applied to an entity during a transition.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionCascade indicates a linked entity's status changed as a side effect.
	ActionCascade Action = "cascade"
)

// Violation reports a rule finding.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasWarnings reports whether any violation carries SeverityWarn.
func (r Result) HasWarnings() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			return true
		}
	}
	return false
}
