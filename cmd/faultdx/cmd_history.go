package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyStats bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled diagnosis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := buildDiagnoser(cmd.Context(), configPath, rulesPath, journalPath, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		j := d.Journal()
		if j == nil {
			return fmt.Errorf("no journal configured (use --journal or set journal in the config file)")
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

		if historyStats {
			counts, err := j.CountByDiagnosis(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Slice(names, func(a, b int) bool {
				if counts[names[a]] != counts[names[b]] {
					return counts[names[a]] > counts[names[b]]
				}
				return names[a] < names[b]
			})

			fmt.Fprintln(tw, "DIAGNOSIS\tRUNS")
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%d\n", name, counts[name])
			}
			return tw.Flush()
		}

		entries, err := j.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		fmt.Fprintln(tw, "SESSION\tWHEN\tMODE\tSYMPTOMS\tDIAGNOSIS")
		for _, e := range entries {
			dx := e.Diagnosis
			switch {
			case e.Error != "":
				dx = "error: " + e.Error
			case !e.Found:
				dx = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.SessionID,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				e.Mode,
				strings.Join(e.Symptoms, ","),
				dx)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Count runs per diagnosis instead")
}
