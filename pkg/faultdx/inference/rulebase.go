package inference

import (
	"fmt"
	"sort"

	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

// RuleBase is an immutable, ordered rule collection. It is safe to share
// between concurrent sessions.
type RuleBase struct {
	rules []Rule
	byID  map[string]int
}

// NewRuleBase validates rules and fixes their declaration order.
// Rule.Index is overwritten with the slice position.
func NewRuleBase(rules []Rule) (*RuleBase, error) {
	rb := &RuleBase{
		rules: make([]Rule, len(rules)),
		byID:  make(map[string]int, len(rules)),
	}

	for i, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: rule %d has no id", internalerr.ErrInvalidRuleBase, i)
		}
		if _, dup := rb.byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %q", internalerr.ErrInvalidRuleBase, r.ID)
		}
		if err := validatePattern(r.Condition); err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", internalerr.ErrInvalidRuleBase, r.ID, err)
		}
		if len(r.Actions) == 0 {
			return nil, fmt.Errorf("%w: rule %q has no actions", internalerr.ErrInvalidRuleBase, r.ID)
		}
		for _, a := range r.Actions {
			if a.Fact.Kind == "" {
				return nil, fmt.Errorf("%w: rule %q has an action without kind", internalerr.ErrInvalidRuleBase, r.ID)
			}
		}

		r.Index = i
		r.Actions = append([]Action(nil), r.Actions...)
		rb.rules[i] = r
		rb.byID[r.ID] = i
	}

	return rb, nil
}

func validatePattern(p Pattern) error {
	switch n := p.(type) {
	case nil:
		return fmt.Errorf("missing condition")
	case Leaf:
		if n.Kind == "" {
			return fmt.Errorf("leaf without kind")
		}
	case And:
		if len(n.Children) == 0 {
			return fmt.Errorf("empty AND")
		}
		for _, c := range n.Children {
			if err := validatePattern(c); err != nil {
				return err
			}
		}
	case Or:
		if len(n.Children) == 0 {
			return fmt.Errorf("empty OR")
		}
		for _, c := range n.Children {
			if err := validatePattern(c); err != nil {
				return err
			}
		}
	case Not:
		return validatePattern(n.Child)
	default:
		return fmt.Errorf("unsupported pattern %T", p)
	}
	return nil
}

// Len returns the number of rules
func (rb *RuleBase) Len() int { return len(rb.rules) }

// Rules returns the rules in declaration order
func (rb *RuleBase) Rules() []Rule {
	return append([]Rule(nil), rb.rules...)
}

// Rule looks a rule up by ID
func (rb *RuleBase) Rule(id string) (Rule, bool) {
	i, ok := rb.byID[id]
	if !ok {
		return Rule{}, false
	}
	return rb.rules[i], true
}

// RulesAsserting returns, in declaration order, the rules with at least one
// asserted template matching goal.
func (rb *RuleBase) RulesAsserting(goal Leaf) []Rule {
	var out []Rule
	for _, r := range rb.rules {
		for _, f := range r.Asserts() {
			if _, ok := goal.Match(f); ok {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Vocabulary returns the sorted constant values of kind referenced by rule
// conditions. For kind "symptom" this is the set of identifiers a caller may
// seed.
func (rb *RuleBase) Vocabulary(kind string) []string {
	seen := make(map[string]struct{})
	for _, r := range rb.rules {
		collectValues(r.Condition, kind, seen)
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func collectValues(p Pattern, kind string, seen map[string]struct{}) {
	switch n := p.(type) {
	case Leaf:
		if n.Kind != kind {
			return
		}
		if t, ok := n.Attrs[ValueAttr]; ok && !t.IsVar() {
			seen[t.Const] = struct{}{}
		}
	case And:
		for _, c := range n.Children {
			collectValues(c, kind, seen)
		}
	case Or:
		for _, c := range n.Children {
			collectValues(c, kind, seen)
		}
	case Not:
		collectValues(n.Child, kind, seen)
	}
}
