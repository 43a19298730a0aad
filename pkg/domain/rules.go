package domain

// RuleView provides read-only access to lifecycle records for rule evaluation.
type RuleView interface {
	ListBreedings() []Breeding
	ListPregnancies() []Pregnancy
	ListBirths() []Birth
	FindBreeding(id string) (Breeding, bool)
	FindPregnancy(id string) (Pregnancy, bool)
	FindBirth(id string) (Birth, bool)
}

// Rule inspects the changes of one transition. Rules annotate; they never
// veto a transition.
type Rule interface {
	Name() string
	Evaluate(view RuleView, changes []Change) Result
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(view RuleView, changes []Change) Result {
	var combined Result
	if e == nil || len(changes) == 0 {
		return combined
	}
	for _, rule := range e.rules {
		combined.Merge(rule.Evaluate(view, changes))
	}
	return combined
}
