package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/faultdx/pkg/faultdx"
	"github.com/cognicore/faultdx/pkg/faultdx/checklist"
	"github.com/cognicore/faultdx/pkg/faultdx/config"
	"github.com/cognicore/faultdx/pkg/faultdx/journal/sqlite"
)

var (
	// Global flags
	configPath  string
	rulesPath   string
	journalPath string
	verbose     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "faultdx",
	Short: "Rule-based computer fault diagnosis",
	Long: `faultdx diagnoses computer hardware and software faults from observed
symptoms using a declarative rule base.

Forward chaining runs every rule to a fixpoint; backward chaining searches
for a proof of a diagnosis and prints the derivation trace.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (optional)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Rule base YAML file (default: built-in rules)")
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "", "SQLite journal path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(forwardCmd, backwardCmd, batchCmd, historyCmd, rulesCmd, symptomsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildDiagnoser assembles a Diagnoser from the config file and flag
// overrides. The cleanup func closes the journal.
func buildDiagnoser(ctx context.Context, cfgPath, rules, journal string, log *zap.Logger) (*faultdx.Diagnoser, func(), error) {
	loader := config.Loader{
		ConfigPath:  cfgPath,
		RulesPath:   rules,
		JournalPath: journal,
	}

	components, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}
	// log_level only raises the threshold; --verbose always wins
	if !verbose && log.Core().Enabled(components.LogLevel-1) {
		log = log.WithOptions(zap.IncreaseLevel(components.LogLevel))
	}

	opts := components.Options()
	opts.Logger = log

	if components.JournalPath != "" {
		j, err := sqlite.OpenSQLite(ctx, components.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		opts.Journal = j
	}

	d := faultdx.New(opts)
	cleanup := func() {
		if err := d.Close(); err != nil {
			log.Warn("close journal", zap.Error(err))
		}
	}
	return d, cleanup, nil
}

// collectSymptoms merges positional arguments, the --symptoms list and the
// checked boxes of an HTML checklist, keeping first-seen order.
func collectSymptoms(args, listed []string, checklistPath string) ([]string, error) {
	var all []string
	for _, a := range append(append([]string(nil), args...), listed...) {
		for _, part := range strings.Split(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				all = append(all, part)
			}
		}
	}

	if checklistPath != "" {
		f, err := os.Open(checklistPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		checked, err := checklist.Checked(f)
		if err != nil {
			return nil, fmt.Errorf("read checklist: %w", err)
		}
		all = append(all, checked...)
	}

	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, s := range all {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}
