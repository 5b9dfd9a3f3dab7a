package inference

import (
	"fmt"
	"sort"
	"strings"
)

// ValueAttr is the implicit single attribute carried by most facts,
// e.g. symptom{value=no_fan}.
const ValueAttr = "value"

// Well-known fact kinds used by the diagnostic rule base.
const (
	KindSymptom        = "symptom"
	KindDiagnosis      = "diagnosis"
	KindRecommendation = "recommendation"
	KindAction         = "action"
)

// FactID is the assignment-order identity of a fact within one working memory.
// Zero means "not asserted".
type FactID int64

// Fact is an immutable typed attribute record
type Fact struct {
	ID    FactID
	Kind  string
	Attrs map[string]string
}

// NewFact builds a fact template with a single value attribute
func NewFact(kind, value string) Fact {
	return Fact{Kind: kind, Attrs: map[string]string{ValueAttr: value}}
}

// With returns a copy of f with one more attribute set
func (f Fact) With(attr, value string) Fact {
	attrs := make(map[string]string, len(f.Attrs)+1)
	for k, v := range f.Attrs {
		attrs[k] = v
	}
	attrs[attr] = value
	return Fact{ID: f.ID, Kind: f.Kind, Attrs: attrs}
}

// Value returns the implicit value attribute
func (f Fact) Value() string {
	return f.Attrs[ValueAttr]
}

// keyEscaper backslash-escapes the key delimiters so that distinct facts
// never share a key.
var keyEscaper = strings.NewReplacer(`\`, `\\`, `{`, `\{`, `}`, `\}`, `,`, `\,`, `=`, `\=`)

// Key is the canonical value-equality key: kind plus sorted attributes.
// Two facts with equal keys are the same fact regardless of ID.
func (f Fact) Key() string {
	names := make([]string, 0, len(f.Attrs))
	for k := range f.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	keyEscaper.WriteString(&b, f.Kind)
	b.WriteByte('{')
	for i, k := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		keyEscaper.WriteString(&b, k)
		b.WriteByte('=')
		keyEscaper.WriteString(&b, f.Attrs[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (f Fact) String() string {
	if f.ID == 0 {
		return f.Key()
	}
	return fmt.Sprintf("f-%d %s", f.ID, f.Key())
}

// Term is either a constant or a named variable inside a leaf pattern
type Term struct {
	Var   string
	Const string
}

// Const builds a constant term
func Const(v string) Term { return Term{Const: v} }

// Var builds a variable term; the name is written without the '?' prefix
func Var(name string) Term { return Term{Var: name} }

// IsVar reports whether t is a variable
func (t Term) IsVar() bool { return t.Var != "" }

func (t Term) String() string {
	if t.IsVar() {
		return "?" + t.Var
	}
	return t.Const
}

// Bindings maps variable names to the values they matched
type Bindings map[string]string

// Pattern is a predicate over the facts in working memory.
// The variant set is closed: Leaf, And, Or, Not.
type Pattern interface {
	isPattern()
	String() string
}

// Leaf matches facts of Kind whose attributes satisfy every term in Attrs
type Leaf struct {
	Kind  string
	Attrs map[string]Term
}

// And holds when every child holds
type And struct {
	Children []Pattern
}

// Or holds when at least one child holds
type Or struct {
	Children []Pattern
}

// Not holds when its child has no match (negation as failure)
type Not struct {
	Child Pattern
}

func (Leaf) isPattern() {}
func (And) isPattern()  {}
func (Or) isPattern()   {}
func (Not) isPattern()  {}

// Is builds a leaf requiring kind with the given constant value
func Is(kind, value string) Leaf {
	return Leaf{Kind: kind, Attrs: map[string]Term{ValueAttr: Const(value)}}
}

// Bind builds a leaf matching every fact of kind, binding its value to v
func Bind(kind, v string) Leaf {
	return Leaf{Kind: kind, Attrs: map[string]Term{ValueAttr: Var(v)}}
}

// All builds a conjunction
func All(children ...Pattern) And { return And{Children: children} }

// OneOf builds a disjunction
func OneOf(children ...Pattern) Or { return Or{Children: children} }

// Negate builds a negation-as-failure node
func Negate(child Pattern) Not { return Not{Child: child} }

// Match tests a single fact against the leaf. Variables bind on first use
// and must agree on reuse within the leaf.
func (l Leaf) Match(f Fact) (Bindings, bool) {
	if f.Kind != l.Kind {
		return nil, false
	}
	var b Bindings
	for attr, term := range l.Attrs {
		v, ok := f.Attrs[attr]
		if !ok {
			return nil, false
		}
		if !term.IsVar() {
			if v != term.Const {
				return nil, false
			}
			continue
		}
		if b == nil {
			b = make(Bindings)
		}
		if prev, seen := b[term.Var]; seen && prev != v {
			return nil, false
		}
		b[term.Var] = v
	}
	return b, true
}

func (l Leaf) String() string {
	names := make([]string, 0, len(l.Attrs))
	for k := range l.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + l.Attrs[k].String()
	}
	return l.Kind + "(" + strings.Join(parts, ",") + ")"
}

func (a And) String() string { return joinPatterns("AND", a.Children) }
func (o Or) String() string  { return joinPatterns("OR", o.Children) }
func (n Not) String() string {
	if n.Child == nil {
		return "NOT()"
	}
	return "NOT(" + n.Child.String() + ")"
}

func joinPatterns(op string, children []Pattern) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

// View is read-only access to a working memory, as used by the matcher
type View interface {
	// Match returns the IDs of facts matching leaf, ascending
	Match(leaf Leaf) []FactID

	// Get returns the fact with the given ID
	Get(id FactID) (Fact, bool)
}

// ActionOp selects what a rule action does to working memory
type ActionOp int

const (
	OpAssert ActionOp = iota
	OpRetract
)

func (op ActionOp) String() string {
	if op == OpRetract {
		return "retract"
	}
	return "assert"
}

// Action is one fact operation performed when a rule fires
type Action struct {
	Op   ActionOp
	Fact Fact
}

// Assert builds an assertion action
func Assert(f Fact) Action { return Action{Op: OpAssert, Fact: f} }

// Retract builds a retraction action; it removes every fact equal to f
func Retract(f Fact) Action { return Action{Op: OpRetract, Fact: f} }

// Rule pairs a condition with the actions performed when it holds
type Rule struct {
	ID        string
	Index     int // declaration order, the only firing priority
	Condition Pattern
	Actions   []Action
}

// Asserts returns the fact templates the rule asserts, in action order
func (r Rule) Asserts() []Fact {
	var out []Fact
	for _, a := range r.Actions {
		if a.Op == OpAssert {
			out = append(out, a.Fact)
		}
	}
	return out
}

// Step is one rule firing in a backward-chaining proof
type Step struct {
	RuleID   string
	Support  []Fact // facts that satisfied the positive leaves of the condition
	Asserted []Fact // facts the firing added to working memory
}

// Trace is the ordered list of firings constituting a proof.
// Prerequisite firings precede the firings that depend on them.
type Trace []Step

// RuleIDs returns the rule of each step, in trace order
func (t Trace) RuleIDs() []string {
	ids := make([]string, len(t))
	for i, s := range t {
		ids[i] = s.RuleID
	}
	return ids
}
