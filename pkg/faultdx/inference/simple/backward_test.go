package simple

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

func TestProveChainsThroughIntermediateFacts(t *testing.T) {
	rb := mustRuleBase(t,
		rule("finding", inference.Is("symptom", "a"), inference.NewFact("finding", "m")),
		rule("conclude", inference.Is("finding", "m"), inference.NewFact("diagnosis", "D")),
	)
	m := NewMemory()
	symID := m.Assert("symptom", sym("a"))

	p := NewProver(rb, m, Config{}, zaptest.NewLogger(t))
	trace, ok, err := p.Prove(inference.Bind("diagnosis", "goal"))
	if err != nil || !ok {
		t.Fatalf("Prove = %v, %v", ok, err)
	}

	if diff := cmp.Diff([]string{"finding", "conclude"}, trace.RuleIDs()); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}

	// prerequisite firing precedes its consumer and supports are committed facts
	if got := trace[0].Support; len(got) != 1 || got[0].ID != symID {
		t.Errorf("step 0 support = %v", got)
	}
	findingID, found := m.Lookup(inference.NewFact("finding", "m"))
	if !found {
		t.Fatal("finding was not committed")
	}
	if got := trace[1].Support; len(got) != 1 || got[0].ID != findingID {
		t.Errorf("step 1 support = %v, want fact %d", got, findingID)
	}
	if got := trace[1].Asserted; len(got) != 1 || got[0].Value() != "D" || got[0].ID == 0 {
		t.Errorf("step 1 asserted = %v", got)
	}
	if !m.Holds(inference.Is("diagnosis", "D")) {
		t.Error("goal not in memory after proof")
	}
}

func TestProveDoesNotCiteFactsRetractedEarlierOnPath(t *testing.T) {
	rb := mustRuleBase(t,
		inference.Rule{
			ID:        "clear",
			Condition: inference.Is("symptom", "a"),
			Actions: []inference.Action{
				inference.Retract(inference.NewFact("finding", "m")),
				inference.Assert(inference.NewFact("note", "n")),
			},
		},
		rule("conclude",
			inference.All(inference.Is("note", "n"), inference.Is("finding", "m")),
			inference.NewFact("diagnosis", "D")),
	)
	m := NewMemory()
	m.Assert("symptom", sym("a"))
	m.Assert("finding", sym("m"))

	trace, ok, err := NewProver(rb, m, Config{}, zaptest.NewLogger(t)).Prove(inference.Is("diagnosis", "D"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("proof relied on a retracted fact: %v", trace.RuleIDs())
	}
	if m.Len() != 2 || !m.Holds(inference.Is("finding", "m")) {
		t.Errorf("failed proof changed memory: %v", m.Facts())
	}
}

func TestProveSeesFactReassertedAfterRetraction(t *testing.T) {
	rb := mustRuleBase(t,
		inference.Rule{
			ID:        "refresh",
			Condition: inference.Is("symptom", "a"),
			Actions: []inference.Action{
				inference.Retract(inference.NewFact("finding", "m")),
				inference.Assert(inference.NewFact("finding", "m")),
				inference.Assert(inference.NewFact("note", "n")),
			},
		},
		rule("conclude",
			inference.All(inference.Is("note", "n"), inference.Is("finding", "m")),
			inference.NewFact("diagnosis", "D")),
	)
	m := NewMemory()
	m.Assert("symptom", sym("a"))
	m.Assert("finding", sym("m"))

	trace, ok, err := NewProver(rb, m, Config{}, nil).Prove(inference.Is("diagnosis", "D"))
	if err != nil || !ok {
		t.Fatalf("Prove = %v, %v", ok, err)
	}
	if diff := cmp.Diff([]string{"refresh", "conclude"}, trace.RuleIDs()); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
	findingID, found := m.Lookup(inference.NewFact("finding", "m"))
	if !found {
		t.Fatal("finding missing after commit")
	}
	if got := trace[1].Support; len(got) != 2 || got[1].ID != findingID {
		t.Errorf("step 1 support = %v, want re-asserted fact %d", got, findingID)
	}
}

func TestProveGoalAlreadyHolds(t *testing.T) {
	rb := mustRuleBase(t, rule("conclude", inference.Is("symptom", "a"), inference.NewFact("diagnosis", "D")))
	m := NewMemory()
	m.Assert("diagnosis", sym("D"))

	trace, ok, err := NewProver(rb, m, Config{}, nil).Prove(inference.Is("diagnosis", "D"))
	if err != nil || !ok {
		t.Fatalf("Prove = %v, %v", ok, err)
	}
	if trace == nil || len(trace) != 0 {
		t.Errorf("trace = %#v, want empty non-nil", trace)
	}
}

func TestProveFailureLeavesMemoryUntouched(t *testing.T) {
	rb := mustRuleBase(t,
		rule("finding", inference.Is("symptom", "a"), inference.NewFact("finding", "m")),
		rule("conclude", inference.All(inference.Is("finding", "m"), inference.Is("symptom", "missing")), inference.NewFact("diagnosis", "D")),
	)
	m := NewMemory()
	m.Assert("symptom", sym("a"))
	before := m.Facts()

	trace, ok, err := NewProver(rb, m, Config{}, nil).Prove(inference.Bind("diagnosis", "goal"))
	if err != nil {
		t.Fatal(err)
	}
	if ok || trace != nil {
		t.Errorf("Prove = %v, %v; want unprovable", trace, ok)
	}
	if diff := cmp.Diff(before, m.Facts()); diff != "" {
		t.Errorf("failed proof changed memory (-before +after):\n%s", diff)
	}
}

func TestProveDiscardsAbandonedBranches(t *testing.T) {
	rb := mustRuleBase(t,
		rule("finding", inference.Is("symptom", "a"), inference.NewFact("finding", "m")),
		rule("first", inference.All(inference.Is("finding", "m"), inference.Is("symptom", "missing")), inference.NewFact("diagnosis", "D1")),
		rule("second", inference.Is("symptom", "a"), inference.NewFact("diagnosis", "D2")),
	)
	m := NewMemory()
	m.Assert("symptom", sym("a"))

	trace, ok, err := NewProver(rb, m, Config{}, nil).Prove(inference.Bind("diagnosis", "goal"))
	if err != nil || !ok {
		t.Fatalf("Prove = %v, %v", ok, err)
	}
	if diff := cmp.Diff([]string{"second"}, trace.RuleIDs()); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if m.Holds(inference.Is("finding", "m")) {
		t.Error("tentative fact from the abandoned branch was asserted")
	}
	if m.Holds(inference.Is("diagnosis", "D1")) {
		t.Error("unproved diagnosis was asserted")
	}
}

func TestProvePrefersDeclarationOrder(t *testing.T) {
	rb := mustRuleBase(t,
		rule("early", inference.Is("symptom", "a"), inference.NewFact("diagnosis", "Early")),
		rule("late", inference.Is("symptom", "a"), inference.NewFact("diagnosis", "Late")),
	)
	m := NewMemory()
	m.Assert("symptom", sym("a"))

	trace, ok, err := NewProver(rb, m, Config{}, nil).Prove(inference.Bind("diagnosis", "goal"))
	if err != nil || !ok {
		t.Fatalf("Prove = %v, %v", ok, err)
	}
	if diff := cmp.Diff([]string{"early"}, trace.RuleIDs()); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if m.Holds(inference.Is("diagnosis", "Late")) {
		t.Error("only the winning rule should fire")
	}
}

func TestProveNegation(t *testing.T) {
	rules := []inference.Rule{
		rule("guarded",
			inference.All(inference.Is("symptom", "a"), inference.Negate(inference.Is("diagnosis", "X"))),
			inference.NewFact("diagnosis", "D")),
		rule("blocker", inference.Is("symptom", "b"), inference.NewFact("diagnosis", "X")),
	}

	t.Run("blocked when negated goal is provable", func(t *testing.T) {
		m := NewMemory()
		m.Assert("symptom", sym("a"))
		m.Assert("symptom", sym("b"))

		_, ok, err := NewProver(mustRuleBase(t, rules...), m, Config{}, nil).Prove(inference.Is("diagnosis", "D"))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("D must not be provable while X is derivable")
		}
		if m.Holds(inference.Is("diagnosis", "X")) {
			t.Error("probing the negation asserted X")
		}
	})

	t.Run("holds when negated goal is unprovable", func(t *testing.T) {
		m := NewMemory()
		m.Assert("symptom", sym("a"))

		trace, ok, err := NewProver(mustRuleBase(t, rules...), m, Config{}, nil).Prove(inference.Is("diagnosis", "D"))
		if err != nil || !ok {
			t.Fatalf("Prove = %v, %v", ok, err)
		}
		if diff := cmp.Diff([]string{"guarded"}, trace.RuleIDs()); diff != "" {
			t.Errorf("trace mismatch (-want +got):\n%s", diff)
		}
		// negated leaves contribute no support
		if got := trace[0].Support; len(got) != 1 || got[0].Value() != "a" {
			t.Errorf("support = %v", got)
		}
	})
}

func TestProveCycleTerminates(t *testing.T) {
	rb := mustRuleBase(t,
		rule("p_from_q", inference.Is("claim", "q"), inference.NewFact("claim", "p")),
		rule("q_from_p", inference.Is("claim", "p"), inference.NewFact("claim", "q")),
	)
	m := NewMemory()

	_, ok, err := NewProver(rb, m, Config{}, nil).Prove(inference.Is("claim", "p"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("circular rules must not prove p")
	}
	if m.Len() != 0 {
		t.Errorf("memory has %d facts", m.Len())
	}
}

func TestProveDepthBound(t *testing.T) {
	rb := mustRuleBase(t,
		rule("c1", inference.Is("symptom", "s"), inference.NewFact("level", "1")),
		rule("c2", inference.Is("level", "1"), inference.NewFact("level", "2")),
		rule("c3", inference.Is("level", "2"), inference.NewFact("level", "3")),
		rule("c4", inference.Is("level", "3"), inference.NewFact("level", "4")),
	)

	t.Run("exceeded", func(t *testing.T) {
		m := NewMemory()
		m.Assert("symptom", sym("s"))
		_, ok, err := NewProver(rb, m, Config{MaxProofDepth: 2}, nil).Prove(inference.Is("level", "4"))
		if !errors.Is(err, internalerr.ErrInferenceOverrun) {
			t.Fatalf("err = %v, want ErrInferenceOverrun", err)
		}
		if ok {
			t.Error("overrun must not report a proof")
		}
		if m.Len() != 1 {
			t.Errorf("overrun changed memory: %v", m.Facts())
		}
	})

	t.Run("within bound", func(t *testing.T) {
		m := NewMemory()
		m.Assert("symptom", sym("s"))
		trace, ok, err := NewProver(rb, m, Config{}, nil).Prove(inference.Is("level", "4"))
		if err != nil || !ok {
			t.Fatalf("Prove = %v, %v", ok, err)
		}
		if diff := cmp.Diff([]string{"c1", "c2", "c3", "c4"}, trace.RuleIDs()); diff != "" {
			t.Errorf("trace mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestProveSelfNegationHitsDepthBound(t *testing.T) {
	rb := mustRuleBase(t,
		rule("liar", inference.Negate(inference.Is("claim", "p")), inference.NewFact("claim", "p")),
	)

	_, _, err := NewProver(rb, NewMemory(), Config{MaxProofDepth: 8}, nil).Prove(inference.Is("claim", "p"))
	if !errors.Is(err, internalerr.ErrInferenceOverrun) {
		t.Errorf("err = %v, want ErrInferenceOverrun", err)
	}
}
