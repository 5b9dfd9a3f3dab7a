package simple

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

// State of a forward chainer
type State int

const (
	Running State = iota
	Quiescent
)

func (s State) String() string {
	if s == Quiescent {
		return "quiescent"
	}
	return "running"
}

// Activation is one rule firing
type Activation struct {
	RuleID  string
	Support []inference.FactID
	Pass    int
}

// RunStats describes one call to Forward.Run
type RunStats struct {
	Passes int
	Fired  []Activation
}

// Forward is a fixpoint forward chainer bound to one working memory.
// Rules are scanned in declaration order and fire eagerly: facts asserted by
// a rule are visible to the rules after it in the same pass.
type Forward struct {
	rules *inference.RuleBase
	mem   *Memory
	cfg   Config
	log   *zap.Logger

	refracted map[string]struct{}
	history   []Activation
	state     State
}

// NewForward creates a forward chainer over mem. A nil logger is allowed.
func NewForward(rules *inference.RuleBase, mem *Memory, cfg Config, log *zap.Logger) *Forward {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forward{
		rules:     rules,
		mem:       mem,
		cfg:       cfg.withDefaults(),
		log:       log,
		refracted: make(map[string]struct{}),
		state:     Running,
	}
}

// State returns the current scheduler state
func (f *Forward) State() State { return f.state }

// History returns every activation fired so far, in firing order
func (f *Forward) History() []Activation {
	return append([]Activation(nil), f.history...)
}

// MaxPasses is the pass bound for the bound rule base
func (f *Forward) MaxPasses() int {
	return f.rules.Len()*f.cfg.PassFactor + 1
}

// Run chains to quiescence. Running again on a quiescent memory that has not
// changed since is a no-op. Exceeding the pass bound returns an error wrapping
// internalerr.ErrInferenceOverrun; the memory is then left as the last pass
// produced it and must not be used for a diagnosis.
func (f *Forward) Run() (RunStats, error) {
	var stats RunStats
	if f.state == Quiescent && !f.mem.Dirty() {
		return stats, nil
	}
	f.state = Running

	rules := f.rules.Rules()
	limit := f.MaxPasses()
	for pass := 1; pass <= limit; pass++ {
		stats.Passes = pass
		f.mem.ClearDirty()

		fired := 0
		for _, r := range rules {
			ok, support := Evaluate(r.Condition, f.mem)
			if !ok {
				continue
			}
			key := activationKey(r.ID, support)
			if _, done := f.refracted[key]; done {
				continue
			}
			f.refracted[key] = struct{}{}
			fired++

			act := Activation{RuleID: r.ID, Support: support, Pass: pass}
			f.history = append(f.history, act)
			stats.Fired = append(stats.Fired, act)
			f.log.Debug("rule fired",
				zap.String("rule", r.ID),
				zap.Int("pass", pass),
				zap.String("activation", key))

			apply(f.mem, r.Actions)
		}

		if fired == 0 {
			f.state = Quiescent
			f.mem.ClearDirty()
			return stats, nil
		}
	}

	return stats, fmt.Errorf("%w: no fixpoint after %d passes over %d rules",
		internalerr.ErrInferenceOverrun, limit, f.rules.Len())
}

// apply performs rule actions in order against mem
func apply(mem *Memory, actions []inference.Action) []inference.FactID {
	var asserted []inference.FactID
	for _, a := range actions {
		switch a.Op {
		case inference.OpAssert:
			asserted = append(asserted, mem.AssertFact(a.Fact))
		case inference.OpRetract:
			if id, ok := mem.Lookup(a.Fact); ok {
				mem.Retract(id)
			}
		}
	}
	return asserted
}
