package lifecycle

import (
	"fmt"

	"herdbook/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in lifecycle
// rules. None of them block a transition.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(LinkageRule())
	engine.Register(SiblingPregnancyRule())
	engine.Register(StatusTransitionRule())
	return engine
}

// LinkageRule flags pregnancies and births whose parent record is not loaded,
// which means their cascade had nothing to act on.
func LinkageRule() domain.Rule { return linkageRule{} }

type linkageRule struct{}

func (linkageRule) Name() string { return "linkage" }

func (r linkageRule) Evaluate(view domain.RuleView, changes []domain.Change) domain.Result {
	res := domain.Result{}
	for _, change := range changes {
		switch change.Action {
		case domain.ActionCreate:
			switch rec := change.After.(type) {
			case domain.Pregnancy:
				if _, ok := view.FindBreeding(rec.BreedingID); !ok {
					res.Violations = append(res.Violations, r.violation(domain.SeverityWarn, domain.EntityPregnancy, rec.ID,
						fmt.Sprintf("pregnancy %s references breeding %s which is not loaded; status not confirmed", rec.ID, rec.BreedingID)))
				}
			case domain.Birth:
				if _, ok := view.FindPregnancy(rec.PregnancyID); !ok {
					res.Violations = append(res.Violations, r.violation(domain.SeverityWarn, domain.EntityBirth, rec.ID,
						fmt.Sprintf("birth %s references pregnancy %s which is not loaded; status not completed", rec.ID, rec.PregnancyID)))
				}
			}
		case domain.ActionDelete:
			switch rec := change.Before.(type) {
			case domain.Pregnancy:
				if _, ok := view.FindBreeding(rec.BreedingID); !ok {
					res.Violations = append(res.Violations, r.violation(domain.SeverityLog, domain.EntityPregnancy, rec.ID,
						fmt.Sprintf("deleted pregnancy %s referenced breeding %s which is not loaded", rec.ID, rec.BreedingID)))
				}
			case domain.Birth:
				if _, ok := view.FindPregnancy(rec.PregnancyID); !ok {
					res.Violations = append(res.Violations, r.violation(domain.SeverityLog, domain.EntityBirth, rec.ID,
						fmt.Sprintf("deleted birth %s referenced pregnancy %s which is not loaded", rec.ID, rec.PregnancyID)))
				}
			}
		}
	}
	return res
}

func (r linkageRule) violation(sev domain.Severity, entity domain.EntityType, id, msg string) domain.Violation {
	return domain.Violation{Rule: r.Name(), Severity: sev, Message: msg, Entity: entity, EntityID: id}
}

// SiblingPregnancyRule warns when deleting a pregnancy reverted its breeding
// to pending while other pregnancies still reference that breeding.
func SiblingPregnancyRule() domain.Rule { return siblingPregnancyRule{} }

type siblingPregnancyRule struct{}

func (siblingPregnancyRule) Name() string { return "sibling_pregnancy" }

func (siblingPregnancyRule) Evaluate(view domain.RuleView, changes []domain.Change) domain.Result {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityPregnancy || change.Action != domain.ActionDelete {
			continue
		}
		removed, ok := change.Before.(domain.Pregnancy)
		if !ok {
			continue
		}
		if _, ok := view.FindBreeding(removed.BreedingID); !ok {
			continue
		}
		var siblings int
		for _, p := range view.ListPregnancies() {
			if p.BreedingID == removed.BreedingID {
				siblings++
			}
		}
		if siblings == 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "sibling_pregnancy",
			Severity: domain.SeverityWarn,
			Message: fmt.Sprintf("breeding %s reverted to pending while %d other pregnancies still reference it",
				removed.BreedingID, siblings),
			Entity:   domain.EntityBreeding,
			EntityID: removed.BreedingID,
		})
	}
	return res
}

// StatusTransitionRule flags explicit updates that set an unknown status or
// move a record out of a terminal status. Cascades are not inspected.
func StatusTransitionRule() domain.Rule { return statusTransitionRule{} }

type statusTransitionRule struct{}

type statusMachine struct {
	label     string
	terminal  map[string]struct{}
	valid     map[string]struct{}
	extractor func(v any) (id string, status string, ok bool)
}

var statusMachines = map[domain.EntityType]statusMachine{
	domain.EntityBreeding: {
		label:    "breeding",
		terminal: toSet(string(domain.BreedingFailed), string(domain.BreedingAborted)),
		valid: toSet(
			string(domain.BreedingPending),
			string(domain.BreedingConfirmed),
			string(domain.BreedingFailed),
			string(domain.BreedingAborted),
		),
		extractor: func(v any) (string, string, bool) {
			b, ok := v.(domain.Breeding)
			return b.ID, string(b.Status), ok
		},
	},
	domain.EntityPregnancy: {
		label:    "pregnancy",
		terminal: toSet(string(domain.PregnancyCompleted), string(domain.PregnancyLost)),
		valid: toSet(
			string(domain.PregnancyConfirmed),
			string(domain.PregnancyDueSoon),
			string(domain.PregnancyOverdue),
			string(domain.PregnancyCompleted),
			string(domain.PregnancyLost),
		),
		extractor: func(v any) (string, string, bool) {
			p, ok := v.(domain.Pregnancy)
			return p.ID, string(p.Status), ok
		},
	},
}

func (statusTransitionRule) Name() string { return "status_transition" }

func (statusTransitionRule) Evaluate(_ domain.RuleView, changes []domain.Change) domain.Result {
	res := domain.Result{}
	for _, change := range changes {
		if change.Action != domain.ActionUpdate {
			continue
		}
		machine, ok := statusMachines[change.Entity]
		if !ok {
			continue
		}
		afterID, afterState, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		if _, valid := machine.valid[afterState]; !valid {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "status_transition",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%s %s is set to unknown status %s", machine.label, afterID, afterState),
				Entity:   change.Entity,
				EntityID: afterID,
			})
			continue
		}
		_, beforeState, ok := machine.extractor(change.Before)
		if !ok {
			continue
		}
		if _, terminal := machine.terminal[beforeState]; terminal && afterState != beforeState {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "status_transition",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%s %s moved from terminal status %s to %s", machine.label, afterID, beforeState, afterState),
				Entity:   change.Entity,
				EntityID: afterID,
			})
		}
	}
	return res
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
