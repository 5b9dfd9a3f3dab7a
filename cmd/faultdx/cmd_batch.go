package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cognicore/faultdx/pkg/faultdx/config"
)

var casesPath string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a YAML file of diagnosis cases concurrently",
	Long: `Run every case of a YAML case file in its own session.

Case file format:

  cases:
    - name: dead-psu
      symptoms: [computer_does_not_start, no_fan]
    - name: crash-proof
      mode: backward
      symptoms: [random_crashes, beeps]`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if casesPath == "" {
			return fmt.Errorf("--cases is required")
		}
		cases, err := config.LoadCases(casesPath)
		if err != nil {
			return err
		}

		d, cleanup, err := buildDiagnoser(cmd.Context(), configPath, rulesPath, journalPath, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		outcomes, err := d.DiagnoseBatch(cmd.Context(), cases)
		if err != nil {
			return err
		}

		if outputYAML {
			views := make([]outcomeYAML, len(outcomes))
			for i, o := range outcomes {
				views[i] = outcomeView(o)
			}
			return writeYAML(cmd.OutOrStdout(), views)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CASE\tMODE\tDIAGNOSIS\tRECOMMENDATION")
		for i, o := range outcomes {
			name := o.Case.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			mode := string(o.Case.Mode)
			if mode == "" {
				mode = "forward"
			}

			dx, rec := o.Diagnosis.Name, o.Diagnosis.Recommendation
			switch {
			case o.Err != nil:
				dx, rec = "error", o.Err.Error()
			case !o.Found:
				dx, rec = "-", "unable to diagnose"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, mode, dx, rec)
		}
		return tw.Flush()
	},
}

func init() {
	batchCmd.Flags().StringVar(&casesPath, "cases", "", "YAML case file")
	batchCmd.Flags().BoolVar(&outputYAML, "yaml", false, "Print outcomes as YAML")
}
