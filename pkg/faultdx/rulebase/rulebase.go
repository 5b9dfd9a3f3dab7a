// Package rulebase loads diagnostic rule bases from YAML and ships the
// built-in computer fault rules.
package rulebase

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

//go:embed computer.yaml
var computerYAML []byte

var defaultRules = sync.OnceValues(func() (*inference.RuleBase, error) {
	return Parse(computerYAML)
})

// Default returns the built-in computer fault rule base.
// It is parsed once and shared; rule bases are immutable.
func Default() *inference.RuleBase {
	rb, err := defaultRules()
	if err != nil {
		panic(fmt.Sprintf("built-in rule base: %v", err))
	}
	return rb
}

// Load reads a rule base from a YAML file
func Load(path string) (*inference.RuleBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rb, nil
}

// Parse decodes and validates a YAML rule base
func Parse(data []byte) (*inference.RuleBase, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidRuleBase, err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("%w: no rules", internalerr.ErrInvalidRuleBase)
	}

	rules := make([]inference.Rule, len(doc.Rules))
	for i, r := range doc.Rules {
		rules[i] = inference.Rule{
			ID:        r.ID,
			Condition: r.When.pattern,
		}
		for _, a := range r.Then {
			rules[i].Actions = append(rules[i].Actions, a.action)
		}
	}
	return inference.NewRuleBase(rules)
}

// Symptoms returns the symptom identifiers referenced by rb, sorted
func Symptoms(rb *inference.RuleBase) []string {
	return rb.Vocabulary(inference.KindSymptom)
}

type document struct {
	Rules []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	ID   string       `yaml:"id"`
	When patternSpec  `yaml:"when"`
	Then []actionSpec `yaml:"then"`
}

type patternSpec struct {
	pattern inference.Pattern
}

func (s *patternSpec) UnmarshalYAML(n *yaml.Node) error {
	p, err := decodePattern(n)
	if err != nil {
		return err
	}
	s.pattern = p
	return nil
}

type actionSpec struct {
	action inference.Action
}

func (s *actionSpec) UnmarshalYAML(n *yaml.Node) error {
	key, val, err := singleKey(n)
	if err != nil {
		return err
	}

	var op inference.ActionOp
	switch key {
	case "assert":
		op = inference.OpAssert
	case "retract":
		op = inference.OpRetract
	default:
		return fmt.Errorf("line %d: unknown action %q", n.Line, key)
	}

	f, err := decodeFact(val)
	if err != nil {
		return err
	}
	s.action = inference.Action{Op: op, Fact: f}
	return nil
}

func decodePattern(n *yaml.Node) (inference.Pattern, error) {
	key, val, err := singleKey(n)
	if err != nil {
		return nil, err
	}

	switch key {
	case "all", "any":
		if val.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s expects a list", val.Line, key)
		}
		children := make([]inference.Pattern, 0, len(val.Content))
		for _, c := range val.Content {
			p, err := decodePattern(c)
			if err != nil {
				return nil, err
			}
			children = append(children, p)
		}
		if key == "all" {
			return inference.And{Children: children}, nil
		}
		return inference.Or{Children: children}, nil

	case "not":
		child, err := decodePattern(val)
		if err != nil {
			return nil, err
		}
		return inference.Not{Child: child}, nil

	case "fact":
		f, err := decodeFact(val)
		if err != nil {
			return nil, err
		}
		leaf := inference.Leaf{Kind: f.Kind, Attrs: make(map[string]inference.Term, len(f.Attrs))}
		for k, v := range f.Attrs {
			leaf.Attrs[k] = term(v)
		}
		return leaf, nil
	}

	if val.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: leaf %q expects a scalar value", val.Line, key)
	}
	return inference.Leaf{
		Kind:  key,
		Attrs: map[string]inference.Term{inference.ValueAttr: term(val.Value)},
	}, nil
}

func decodeFact(n *yaml.Node) (inference.Fact, error) {
	var attrs map[string]string
	if err := n.Decode(&attrs); err != nil {
		return inference.Fact{}, fmt.Errorf("line %d: %v", n.Line, err)
	}
	kind := attrs["kind"]
	if kind == "" {
		return inference.Fact{}, fmt.Errorf("line %d: fact without kind", n.Line)
	}
	delete(attrs, "kind")
	return inference.Fact{Kind: kind, Attrs: attrs}, nil
}

func singleKey(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, fmt.Errorf("line %d: expected a single-key mapping", n.Line)
	}
	return n.Content[0].Value, n.Content[1], nil
}

// term maps "?name" to a variable and anything else to a constant
func term(s string) inference.Term {
	if len(s) > 1 && strings.HasPrefix(s, "?") {
		return inference.Var(s[1:])
	}
	return inference.Const(s)
}
