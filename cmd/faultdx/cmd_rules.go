package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/faultdx/pkg/faultdx/config"
	"github.com/cognicore/faultdx/pkg/faultdx/rulebase"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule base in declaration order",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.Loader{ConfigPath: configPath, RulesPath: rulesPath}
		components, err := loader.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range components.RuleBase.Rules() {
			fmt.Fprintf(out, "%2d. %s\n    when %s\n", r.Index+1, r.ID, r.Condition)
			for _, a := range r.Actions {
				fmt.Fprintf(out, "    then %s %s\n", a.Op, a.Fact)
			}
		}
		return nil
	},
}

var symptomsCmd = &cobra.Command{
	Use:   "symptoms",
	Short: "List the symptom identifiers the rule base understands",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.Loader{ConfigPath: configPath, RulesPath: rulesPath}
		components, err := loader.Load()
		if err != nil {
			return err
		}

		for _, s := range rulebase.Symptoms(components.RuleBase) {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}
