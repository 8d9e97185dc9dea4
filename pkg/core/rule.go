package core

// RuleKind names one of the two reaction variants.
type RuleKind string

const (
	KindHeader RuleKind = "header"
	KindAction RuleKind = "action"
)

// RuleBase is the part shared by every watch rule.
type RuleBase struct {
	// Field is the front-matter key to observe. An empty Field never matches.
	Field string `yaml:"field" json:"field"`
	// Active enables the rule without deleting it.
	Active bool `yaml:"active" json:"active"`
}

// Matches reports whether the rule is active and its field is present and truthy in snapshot.
func (b RuleBase) Matches(snapshot Metadata) bool {
	if !b.Active || b.Field == "" {
		return false
	}
	v, ok := snapshot[b.Field]
	return ok && IsTruthy(v)
}

// Rule is a closed sum type over HeaderRule and ActionRule.
// Consumers switch on the concrete type.
type Rule interface {
	Base() RuleBase
	Kind() RuleKind
	isRule()
}

// HeaderRule rewrites the line starting with Header to carry the field value.
type HeaderRule struct {
	RuleBase `yaml:",inline"`
	Header   string `yaml:"header" json:"header"`
}

func (r HeaderRule) Base() RuleBase { return r.RuleBase }
func (r HeaderRule) Kind() RuleKind { return KindHeader }
func (HeaderRule) isRule()          {}

// ActionRule invokes a registered action when the field value changes.
type ActionRule struct {
	RuleBase `yaml:",inline"`
	Action   string `yaml:"action" json:"action"`
}

func (r ActionRule) Base() RuleBase { return r.RuleBase }
func (r ActionRule) Kind() RuleKind { return KindAction }
func (ActionRule) isRule()          {}

// RuleSet is the ordered configuration evaluated on every dispatch.
type RuleSet struct {
	Headers []HeaderRule
	Actions []ActionRule
}

// All returns every rule, header rules first, each group in configuration order.
func (s RuleSet) All() []Rule {
	out := make([]Rule, 0, len(s.Headers)+len(s.Actions))
	for _, r := range s.Headers {
		out = append(out, r)
	}
	for _, r := range s.Actions {
		out = append(out, r)
	}
	return out
}

// Len returns the number of rules in the set.
func (s RuleSet) Len() int {
	return len(s.Headers) + len(s.Actions)
}
