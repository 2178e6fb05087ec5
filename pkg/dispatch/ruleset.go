package dispatch

import "strings"

// RuleSet is an ordered, immutable list of rules. Earlier rules take
// precedence over later ones.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet returns a RuleSet holding rules in the given order.
func NewRuleSet(rules ...Rule) RuleSet {
	return RuleSet{rules: append([]Rule(nil), rules...)}
}

// Concat joins rule sets, preserving their order.
func Concat(sets ...RuleSet) RuleSet {
	n := 0
	for _, s := range sets {
		n += len(s.rules)
	}
	out := make([]Rule, 0, n)
	for _, s := range sets {
		out = append(out, s.rules...)
	}
	return RuleSet{rules: out}
}

// With returns a new RuleSet with more appended.
func (s RuleSet) With(more ...Rule) RuleSet {
	return Concat(s, RuleSet{rules: more})
}

// Len returns the number of rules.
func (s RuleSet) Len() int { return len(s.rules) }

// Rules returns a copy of the rules in precedence order.
func (s RuleSet) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Identities returns the cache identities of the rules that have one, in
// declaration order.
func (s RuleSet) Identities() []any {
	var ids []any
	for _, r := range s.rules {
		if id, ok := r.Identity(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// String lists the rule names.
func (s RuleSet) String() string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}
