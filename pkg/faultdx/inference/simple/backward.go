package simple

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

// Prover is a goal-directed backward chainer bound to one working memory.
//
// A proof is searched against the memory plus the facts tentatively derived
// along the current path. Nothing is written to the memory until the whole
// goal is proved; then the winning path is committed in trace order.
type Prover struct {
	rules *inference.RuleBase
	mem   *Memory
	cfg   Config
	log   *zap.Logger
}

// pending is a rule firing that is part of a proof not yet committed
type pending struct {
	rule    inference.Rule
	support []inference.Fact
}

// NewProver creates a backward chainer over mem. A nil logger is allowed.
func NewProver(rules *inference.RuleBase, mem *Memory, cfg Config, log *zap.Logger) *Prover {
	if log == nil {
		log = zap.NewNop()
	}
	return &Prover{
		rules: rules,
		mem:   mem,
		cfg:   cfg.withDefaults(),
		log:   log,
	}
}

// Prove searches for a derivation of goal. If goal already holds the proof is
// trivial and the returned trace is empty. A failed search leaves the memory
// untouched. The error is non-nil only when the depth bound is exceeded.
func (p *Prover) Prove(goal inference.Pattern) (inference.Trace, bool, error) {
	if ok, _ := Evaluate(goal, p.mem); ok {
		return inference.Trace{}, true, nil
	}

	steps, _, ok, err := p.prove(goal, nil, map[string]bool{}, 0)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		p.log.Debug("goal unprovable", zap.String("goal", goal.String()))
		return nil, false, nil
	}
	return p.commit(steps), true, nil
}

// prove extends acc with the firings needed to establish c. visited holds the
// rules already being expanded on the current path. It returns the extended
// firing list and the facts supporting c's positive leaves.
func (p *Prover) prove(c inference.Pattern, acc []pending, visited map[string]bool, depth int) ([]pending, []inference.Fact, bool, error) {
	if depth > p.cfg.MaxProofDepth {
		return nil, nil, false, fmt.Errorf("%w: proof deeper than %d at %s",
			internalerr.ErrInferenceOverrun, p.cfg.MaxProofDepth, c)
	}

	switch n := c.(type) {
	case inference.Leaf:
		return p.proveLeaf(n, acc, visited, depth)

	case inference.And:
		cur := acc
		var support []inference.Fact
		for _, child := range n.Children {
			next, s, ok, err := p.prove(child, cur, visited, depth)
			if err != nil || !ok {
				return acc, nil, false, err
			}
			cur = next
			support = append(support, s...)
		}
		return cur, support, true, nil

	case inference.Or:
		for _, child := range n.Children {
			next, s, ok, err := p.prove(child, acc, visited, depth)
			if err != nil {
				return acc, nil, false, err
			}
			if ok {
				return next, s, true, nil
			}
		}
		return acc, nil, false, nil

	case inference.Not:
		// Bounded negation: the child gets a fresh visited set and its
		// tentative firings are always discarded.
		_, _, ok, err := p.prove(n.Child, acc, map[string]bool{}, depth+1)
		if err != nil {
			return acc, nil, false, err
		}
		return acc, nil, !ok, nil
	}

	return acc, nil, false, nil
}

func (p *Prover) proveLeaf(leaf inference.Leaf, acc []pending, visited map[string]bool, depth int) ([]pending, []inference.Fact, bool, error) {
	if f, ok := p.lookup(leaf, acc); ok {
		return acc, []inference.Fact{f}, true, nil
	}

	for _, r := range p.rules.RulesAsserting(leaf) {
		if visited[r.ID] {
			continue
		}
		inner := make(map[string]bool, len(visited)+1)
		for id := range visited {
			inner[id] = true
		}
		inner[r.ID] = true

		next, support, ok, err := p.prove(r.Condition, acc, inner, depth+1)
		if err != nil {
			return acc, nil, false, err
		}
		if !ok {
			continue
		}

		extended := make([]pending, len(next), len(next)+1)
		copy(extended, next)
		extended = append(extended, pending{rule: r, support: support})

		p.log.Debug("subgoal proved",
			zap.String("goal", leaf.String()),
			zap.String("rule", r.ID),
			zap.Int("depth", depth))

		f, _ := p.lookup(leaf, extended)
		return extended, []inference.Fact{f}, true, nil
	}

	return acc, nil, false, nil
}

// lookup finds the first fact matching leaf as the current path sees it:
// committed facts first, then tentatively derived ones. A retraction earlier
// on the path hides the committed facts it will remove and any tentative copy
// asserted before it. Tentative facts carry no ID.
func (p *Prover) lookup(leaf inference.Leaf, acc []pending) (inference.Fact, bool) {
	retracted := make(map[string]bool)
	var tentative []inference.Fact
	for _, step := range acc {
		for _, a := range step.rule.Actions {
			if a.Op == inference.OpAssert {
				tentative = append(tentative, a.Fact)
				continue
			}
			key := a.Fact.Key()
			retracted[key] = true
			kept := tentative[:0]
			for _, f := range tentative {
				if f.Key() != key {
					kept = append(kept, f)
				}
			}
			tentative = kept
		}
	}

	for _, id := range p.mem.Match(leaf) {
		f, ok := p.mem.Get(id)
		if ok && !retracted[f.Key()] {
			return f, true
		}
	}
	for _, f := range tentative {
		if _, ok := leaf.Match(f); ok {
			return f, true
		}
	}
	return inference.Fact{}, false
}

// commit applies the winning firings to memory, resolving tentative support
// facts to the IDs they received when their own firing was committed.
func (p *Prover) commit(steps []pending) inference.Trace {
	trace := make(inference.Trace, 0, len(steps))
	for _, s := range steps {
		support := make([]inference.Fact, len(s.support))
		for i, f := range s.support {
			if f.ID == 0 {
				if id, ok := p.mem.Lookup(f); ok {
					f, _ = p.mem.Get(id)
				}
			}
			support[i] = f
		}

		ids := apply(p.mem, s.rule.Actions)
		asserted := make([]inference.Fact, 0, len(ids))
		for _, id := range ids {
			if f, ok := p.mem.Get(id); ok {
				asserted = append(asserted, f)
			}
		}

		trace = append(trace, inference.Step{
			RuleID:   s.rule.ID,
			Support:  support,
			Asserted: asserted,
		})
	}
	return trace
}
