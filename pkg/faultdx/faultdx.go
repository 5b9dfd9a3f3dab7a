package faultdx

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/inference/simple"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
	"github.com/cognicore/faultdx/pkg/faultdx/journal"
	"github.com/cognicore/faultdx/pkg/faultdx/rulebase"
)

// SymptomPolicy decides what Seed does with identifiers outside the
// rule base vocabulary
type SymptomPolicy string

const (
	RejectUnknown SymptomPolicy = "reject"
	IgnoreUnknown SymptomPolicy = "ignore"
)

// ParseSymptomPolicy validates a policy name; empty selects RejectUnknown
func ParseSymptomPolicy(s string) (SymptomPolicy, error) {
	switch SymptomPolicy(s) {
	case "", RejectUnknown:
		return RejectUnknown, nil
	case IgnoreUnknown:
		return IgnoreUnknown, nil
	}
	return "", fmt.Errorf("%w: unknown symptom policy %q", internalerr.ErrInvalidConfig, s)
}

// Mode selects the inference strategy of a run
type Mode string

const (
	Forward  Mode = "forward"
	Backward Mode = "backward"
)

// Diagnoser is the main diagnosis facade. It owns the shared rule base and
// hands out independent sessions.
type Diagnoser struct {
	rules   *inference.RuleBase
	vocab   map[string]struct{}
	engine  simple.Config
	policy  SymptomPolicy
	journal journal.Journal
	log     *zap.Logger
	workers int

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Options configures a Diagnoser
type Options struct {
	RuleBase        *inference.RuleBase // defaults to rulebase.Default()
	Engine          simple.Config
	UnknownSymptoms SymptomPolicy
	Journal         journal.Journal // optional
	Logger          *zap.Logger
	Workers         int // batch concurrency, defaults to 4
}

// New creates a Diagnoser with the given dependencies
func New(opts Options) *Diagnoser {
	rb := opts.RuleBase
	if rb == nil {
		rb = rulebase.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	policy := opts.UnknownSymptoms
	if policy == "" {
		policy = RejectUnknown
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	vocab := make(map[string]struct{})
	for _, s := range rulebase.Symptoms(rb) {
		vocab[s] = struct{}{}
	}

	return &Diagnoser{
		rules:   rb,
		vocab:   vocab,
		engine:  opts.Engine,
		policy:  policy,
		journal: opts.Journal,
		log:     log,
		workers: workers,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Close cleanly shuts down the Diagnoser and its journal
func (d *Diagnoser) Close() error {
	if d.journal == nil {
		return nil
	}
	return d.journal.Close()
}

// RuleBase returns the shared rule base
func (d *Diagnoser) RuleBase() *inference.RuleBase { return d.rules }

// Journal returns the configured journal, or nil
func (d *Diagnoser) Journal() journal.Journal { return d.journal }

// NewSession creates a session with a fresh working memory
func (d *Diagnoser) NewSession() *Session {
	d.mu.Lock()
	id := ulid.MustNew(ulid.Now(), d.entropy).String()
	d.mu.Unlock()
	return newSession(id, d)
}

// Case is one diagnosis request
type Case struct {
	Name     string   `yaml:"name"`
	Symptoms []string `yaml:"symptoms"`
	Mode     Mode     `yaml:"mode"`
	Goal     string   `yaml:"goal"` // goal kind for backward runs
}

// Outcome is the result of running a Case in its own session
type Outcome struct {
	Case      Case
	SessionID string
	Diagnosis Diagnosis
	Found     bool
	Rules     []string // fired rules (forward) or proof rules (backward)
	Trace     inference.Trace
	Err       error
}

// Diagnose runs one case in a fresh session and journals the outcome.
// The returned error is the run's own error (validation or overrun) or a
// journal failure.
func (d *Diagnoser) Diagnose(ctx context.Context, c Case) (Outcome, error) {
	out := d.run(c)
	if err := d.record(ctx, out); err != nil {
		return out, err
	}
	return out, out.Err
}

// DiagnoseBatch runs every case concurrently, each in its own session.
// Per-case failures are reported in Outcome.Err and do not stop the batch;
// the returned error is a journal failure or context cancellation.
// Outcomes are returned in case order.
func (d *Diagnoser) DiagnoseBatch(ctx context.Context, cases []Case) ([]Outcome, error) {
	outcomes := make([]Outcome, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = d.run(c)
			return d.record(gctx, outcomes[i])
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (d *Diagnoser) run(c Case) Outcome {
	s := d.NewSession()
	out := Outcome{Case: c, SessionID: s.ID()}

	if err := s.Seed(c.Symptoms); err != nil {
		out.Err = err
		return out
	}

	switch c.Mode {
	case "", Forward:
		dx, ok, err := s.RunForward()
		out.Diagnosis, out.Found, out.Err = dx, ok, err
		for _, a := range s.Fired() {
			out.Rules = append(out.Rules, a.RuleID)
		}

	case Backward:
		res, ok, err := s.ProveBackward(c.Goal)
		out.Diagnosis, out.Found, out.Err = res.Diagnosis, ok, err
		out.Trace = res.Trace
		out.Rules = res.Trace.RuleIDs()

	default:
		out.Err = fmt.Errorf("%w: unknown mode %q", internalerr.ErrInvalidInput, c.Mode)
		return out
	}

	d.log.Info("diagnosis complete",
		zap.String("session", out.SessionID),
		zap.String("case", c.Name),
		zap.String("mode", string(modeOf(c))),
		zap.Bool("found", out.Found),
		zap.String("diagnosis", out.Diagnosis.Name),
		zap.Error(out.Err))
	return out
}

func (d *Diagnoser) record(ctx context.Context, out Outcome) error {
	if d.journal == nil {
		return nil
	}

	e := journal.Entry{
		SessionID:      out.SessionID,
		Mode:           string(modeOf(out.Case)),
		Symptoms:       out.Case.Symptoms,
		Found:          out.Found,
		Diagnosis:      out.Diagnosis.Name,
		Recommendation: out.Diagnosis.Recommendation,
		Rules:          out.Rules,
		CreatedAt:      time.Now().UTC(),
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}

	if err := d.journal.Record(ctx, e); err != nil {
		return fmt.Errorf("journal %s: %w", out.SessionID, err)
	}
	return nil
}

func modeOf(c Case) Mode {
	if c.Mode == "" {
		return Forward
	}
	return c.Mode
}
