package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/faultdx/pkg/faultdx"
	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

var (
	symptomList   []string
	checklistPath string
	showAll       bool
	goalKind      string
	outputYAML    bool
)

var forwardCmd = &cobra.Command{
	Use:   "forward [symptom...]",
	Short: "Diagnose by forward chaining to a fixpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiagnosis(cmd, args, faultdx.Forward)
	},
}

var backwardCmd = &cobra.Command{
	Use:   "backward [symptom...]",
	Short: "Diagnose by proving a goal and print the derivation trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiagnosis(cmd, args, faultdx.Backward)
	},
}

func init() {
	for _, c := range []*cobra.Command{forwardCmd, backwardCmd} {
		c.Flags().StringSliceVarP(&symptomList, "symptoms", "s", nil, "Comma-separated symptom identifiers")
		c.Flags().StringVar(&checklistPath, "checklist", "", "HTML checklist whose checked boxes are symptoms")
		c.Flags().BoolVar(&outputYAML, "yaml", false, "Print the outcome as YAML")
	}
	forwardCmd.Flags().BoolVar(&showAll, "all", false, "List every derived diagnosis, not only the final one")
	backwardCmd.Flags().StringVar(&goalKind, "goal", inference.KindDiagnosis, "Fact kind to prove")
}

func runDiagnosis(cmd *cobra.Command, args []string, mode faultdx.Mode) error {
	symptoms, err := collectSymptoms(args, symptomList, checklistPath)
	if err != nil {
		return err
	}

	d, cleanup, err := buildDiagnoser(cmd.Context(), configPath, rulesPath, journalPath, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if mode == faultdx.Forward && showAll {
		return printAllForward(out, d, symptoms)
	}

	outcome, err := d.Diagnose(cmd.Context(), faultdx.Case{
		Symptoms: symptoms,
		Mode:     mode,
		Goal:     goalKind,
	})
	if err != nil && outcome.Err == nil {
		// journal failure; the diagnosis itself is still valid
		logger.Warn(err.Error())
	}

	if outputYAML {
		return writeYAML(out, outcomeView(outcome))
	}
	printOutcome(out, outcome)
	return outcome.Err
}

func printAllForward(w io.Writer, d *faultdx.Diagnoser, symptoms []string) error {
	s := d.NewSession()
	if err := s.Seed(symptoms); err != nil {
		return err
	}
	if _, _, err := s.RunForward(); err != nil {
		fmt.Fprintln(w, "Unable to diagnose:", err)
		return err
	}

	diags := s.Diagnoses()
	if len(diags) == 0 {
		fmt.Fprintln(w, "Unable to diagnose based on the selected symptoms.")
		return nil
	}
	for i, dx := range diags {
		fmt.Fprintf(w, "%d. %s\n   Recommendation: %s\n", i+1, dx.Name, dx.Recommendation)
	}
	return nil
}

func printOutcome(w io.Writer, o faultdx.Outcome) {
	switch {
	case errors.Is(o.Err, internalerr.ErrInferenceOverrun):
		fmt.Fprintln(w, "Unable to diagnose:", o.Err)
		return
	case o.Err != nil:
		fmt.Fprintln(w, "Error:", o.Err)
		return
	case !o.Found:
		fmt.Fprintln(w, "Unable to diagnose based on the selected symptoms.")
		return
	}

	fmt.Fprintf(w, "Diagnosis: %s\nRecommendation: %s\n", o.Diagnosis.Name, o.Diagnosis.Recommendation)
	if len(o.Trace) == 0 {
		return
	}

	fmt.Fprintln(w, "\nDerivation:")
	for i, step := range o.Trace {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step.RuleID)
		for _, f := range step.Support {
			fmt.Fprintf(w, "       because %s\n", f)
		}
		for _, f := range step.Asserted {
			fmt.Fprintf(w, "       asserts %s\n", f)
		}
	}
}

type stepView struct {
	Rule     string   `yaml:"rule"`
	Support  []string `yaml:"support,omitempty"`
	Asserted []string `yaml:"asserted,omitempty"`
}

type outcomeYAML struct {
	Session        string     `yaml:"session"`
	Mode           string     `yaml:"mode"`
	Symptoms       []string   `yaml:"symptoms"`
	Found          bool       `yaml:"found"`
	Diagnosis      string     `yaml:"diagnosis,omitempty"`
	Recommendation string     `yaml:"recommendation,omitempty"`
	Rules          []string   `yaml:"rules,omitempty"`
	Trace          []stepView `yaml:"trace,omitempty"`
	Error          string     `yaml:"error,omitempty"`
}

func outcomeView(o faultdx.Outcome) outcomeYAML {
	v := outcomeYAML{
		Session:        o.SessionID,
		Mode:           string(o.Case.Mode),
		Symptoms:       o.Case.Symptoms,
		Found:          o.Found,
		Diagnosis:      o.Diagnosis.Name,
		Recommendation: o.Diagnosis.Recommendation,
		Rules:          o.Rules,
	}
	if v.Mode == "" {
		v.Mode = string(faultdx.Forward)
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	for _, step := range o.Trace {
		sv := stepView{Rule: step.RuleID}
		for _, f := range step.Support {
			sv.Support = append(sv.Support, f.String())
		}
		for _, f := range step.Asserted {
			sv.Asserted = append(sv.Asserted, f.String())
		}
		v.Trace = append(v.Trace, sv)
	}
	return v
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
