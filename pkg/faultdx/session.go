package faultdx

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/inference/simple"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

// DiagnoseAction is the value of the control fact every session starts with
const DiagnoseAction = "diagnose"

// Diagnosis is a diagnosis paired with its recommendation
type Diagnosis struct {
	Name           string
	Recommendation string
}

// BackwardResult is the outcome of a goal-directed proof
type BackwardResult struct {
	Goal      inference.Pattern
	Proved    bool
	Diagnosis Diagnosis
	Trace     inference.Trace
}

// Session is one diagnosis over its own working memory.
// A session is single-threaded; independent sessions share nothing but the
// immutable rule base and may run concurrently.
type Session struct {
	id       string
	rules    *inference.RuleBase
	vocab    map[string]struct{}
	policy   SymptomPolicy
	cfg      simple.Config
	log      *zap.Logger
	mem      *simple.Memory
	fwd      *simple.Forward
	symptoms []string
}

func newSession(id string, d *Diagnoser) *Session {
	log := d.log.With(zap.String("session", id))
	mem := simple.NewMemory()
	mem.Assert(inference.KindAction, map[string]string{inference.ValueAttr: DiagnoseAction})

	return &Session{
		id:     id,
		rules:  d.rules,
		vocab:  d.vocab,
		policy: d.policy,
		cfg:    d.engine,
		log:    log,
		mem:    mem,
		fwd:    simple.NewForward(d.rules, mem, d.engine, log),
	}
}

// ID returns the session's ULID
func (s *Session) ID() string { return s.id }

// Symptoms returns the identifiers seeded so far, in seeding order
func (s *Session) Symptoms() []string {
	return append([]string(nil), s.symptoms...)
}

// Seed asserts one symptom fact per identifier. Identifiers outside the rule
// base vocabulary are handled by the session's SymptomPolicy: under
// RejectUnknown nothing is seeded and the error wraps
// internalerr.ErrUnknownSymptom; under IgnoreUnknown they are dropped.
func (s *Session) Seed(ids []string) error {
	var known, unknown []string
	for _, id := range ids {
		if _, ok := s.vocab[id]; ok {
			known = append(known, id)
		} else {
			unknown = append(unknown, id)
		}
	}

	if len(unknown) > 0 {
		if s.policy != IgnoreUnknown {
			return fmt.Errorf("%w: %s", internalerr.ErrUnknownSymptom, strings.Join(unknown, ", "))
		}
		s.log.Warn("ignoring unknown symptoms", zap.Strings("symptoms", unknown))
	}

	for _, id := range known {
		before := s.mem.Len()
		s.mem.Assert(inference.KindSymptom, map[string]string{inference.ValueAttr: id})
		if s.mem.Len() > before {
			s.symptoms = append(s.symptoms, id)
		}
	}
	return nil
}

// RunForward chains forward to quiescence and extracts the answer.
// ok is false when no complete diagnosis was derived.
func (s *Session) RunForward() (Diagnosis, bool, error) {
	stats, err := s.fwd.Run()
	if err != nil {
		s.log.Error("forward chaining aborted", zap.Error(err), zap.Int("passes", stats.Passes))
		return Diagnosis{}, false, err
	}
	s.log.Debug("forward chaining quiescent",
		zap.Int("passes", stats.Passes),
		zap.Int("fired", len(stats.Fired)))

	d, ok := latestDiagnosis(s.mem)
	return d, ok, nil
}

// ProveBackward searches for a proof of a fact of goalKind ("diagnosis" when
// empty). Only the winning derivation is asserted into working memory.
// ok is false when the goal is unprovable or no complete diagnosis results.
func (s *Session) ProveBackward(goalKind string) (BackwardResult, bool, error) {
	if goalKind == "" {
		goalKind = inference.KindDiagnosis
	}
	return s.ProveGoal(inference.Bind(goalKind, "goal"))
}

// ProveGoal is ProveBackward for an arbitrary goal pattern
func (s *Session) ProveGoal(goal inference.Pattern) (BackwardResult, bool, error) {
	res := BackwardResult{Goal: goal}

	trace, proved, err := simple.NewProver(s.rules, s.mem, s.cfg, s.log).Prove(goal)
	if err != nil {
		s.log.Error("backward chaining aborted", zap.Error(err))
		return res, false, err
	}
	if !proved {
		return res, false, nil
	}
	res.Proved = true
	res.Trace = trace

	var name string
	if len(trace) > 0 {
		name = provedDiagnosis(trace[len(trace)-1])
	} else if leaf, isLeaf := goal.(inference.Leaf); isLeaf {
		name = heldDiagnosis(s.mem, leaf)
	} else {
		d, ok := latestDiagnosis(s.mem)
		res.Diagnosis = d
		return res, ok, nil
	}

	d, ok := diagnosisNamed(s.mem, name)
	res.Diagnosis = d
	return res, ok, nil
}

// Facts returns working memory in assertion order
func (s *Session) Facts() []inference.Fact {
	return s.mem.Facts()
}

// Fired returns the forward activations fired so far
func (s *Session) Fired() []simple.Activation {
	return s.fwd.History()
}

// State returns the forward scheduler state
func (s *Session) State() simple.State {
	return s.fwd.State()
}

// Diagnoses returns every complete diagnosis in working memory, oldest first
func (s *Session) Diagnoses() []Diagnosis {
	var out []Diagnosis
	for _, f := range s.mem.FactsOfKind(inference.KindDiagnosis) {
		if d, ok := diagnosisNamed(s.mem, f.Value()); ok {
			out = append(out, d)
		}
	}
	return out
}

// latestDiagnosis picks the most recently asserted diagnosis that has a
// recommendation.
func latestDiagnosis(mem *simple.Memory) (Diagnosis, bool) {
	diags := mem.FactsOfKind(inference.KindDiagnosis)
	for i := len(diags) - 1; i >= 0; i-- {
		if d, ok := diagnosisNamed(mem, diags[i].Value()); ok {
			return d, true
		}
	}
	return Diagnosis{}, false
}

// diagnosisNamed pairs a diagnosis with its recommendation. Recommendations
// name their diagnosis in the "diagnosis" attribute; an unlinked
// recommendation is used only when no linked one exists.
func diagnosisNamed(mem *simple.Memory, name string) (Diagnosis, bool) {
	if name == "" {
		return Diagnosis{}, false
	}
	if ids := mem.Match(inference.Is(inference.KindDiagnosis, name)); len(ids) == 0 {
		return Diagnosis{}, false
	}

	var fallback string
	recs := mem.FactsOfKind(inference.KindRecommendation)
	for i := len(recs) - 1; i >= 0; i-- {
		target, linked := recs[i].Attrs[inference.KindDiagnosis]
		if !linked {
			if fallback == "" {
				fallback = recs[i].Value()
			}
			continue
		}
		if target == name {
			return Diagnosis{Name: name, Recommendation: recs[i].Value()}, true
		}
	}
	if fallback != "" {
		return Diagnosis{Name: name, Recommendation: fallback}, true
	}
	return Diagnosis{}, false
}

// heldDiagnosis names the diagnosis behind the oldest fact already matching
// goal.
func heldDiagnosis(mem *simple.Memory, goal inference.Leaf) string {
	ids := mem.Match(goal)
	if len(ids) == 0 {
		return ""
	}
	f, _ := mem.Get(ids[0])
	return diagnosisOf(f)
}

// provedDiagnosis names the diagnosis established by the final proof step
func provedDiagnosis(step inference.Step) string {
	for _, f := range step.Asserted {
		if name := diagnosisOf(f); name != "" {
			return name
		}
	}
	return ""
}

// diagnosisOf names the diagnosis a diagnosis or linked recommendation fact
// refers to.
func diagnosisOf(f inference.Fact) string {
	switch f.Kind {
	case inference.KindDiagnosis:
		return f.Value()
	case inference.KindRecommendation:
		return f.Attrs[inference.KindDiagnosis]
	}
	return ""
}
