package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/faultdx/pkg/faultdx"
	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

func resetFlags() {
	configPath, rulesPath, journalPath = "", "", ""
	verbose = false
	symptomList = nil
	checklistPath = ""
	showAll = false
	goalKind = inference.KindDiagnosis
	outputYAML = false
	casesPath = ""
	historyLimit = 20
	historyStats = false
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCollectSymptoms(t *testing.T) {
	list := writeTemp(t, "list.html", `<input type="checkbox" name="symptom" value="no_led" checked>
<input type="checkbox" name="symptom" value="no_fan" checked>`)

	got, err := collectSymptoms(
		[]string{"computer_does_not_start", " no_fan ,beeps"},
		[]string{"beeps", ""},
		list)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"computer_does_not_start", "no_fan", "beeps", "no_led"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("symptoms mismatch (-want +got):\n%s", diff)
	}

	if _, err := collectSymptoms(nil, nil, filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Error("expected error for missing checklist")
	}
}

func TestBuildDiagnoserAppliesLogLevel(t *testing.T) {
	resetFlags()
	cfg := writeTemp(t, "faultdx.yaml", "log_level: warn\n")

	count := func(cfgPath string) int {
		core, logs := observer.New(zapcore.InfoLevel)
		d, cleanup, err := buildDiagnoser(context.Background(), cfgPath, "", "", zap.New(core))
		if err != nil {
			t.Fatalf("buildDiagnoser: %v", err)
		}
		defer cleanup()

		if _, err := d.Diagnose(context.Background(), faultdx.Case{Symptoms: []string{"no_display"}}); err != nil {
			t.Fatal(err)
		}
		return logs.FilterMessage("diagnosis complete").Len()
	}

	if n := count(""); n != 1 {
		t.Errorf("default level logged %d completions, want 1", n)
	}
	if n := count(cfg); n != 0 {
		t.Errorf("log_level warn still logged %d completions", n)
	}
}

func TestBuildDiagnoserOpensJournal(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "runs.db")

	d, cleanup, err := buildDiagnoser(context.Background(), "", "", path, nil)
	if err != nil {
		t.Fatalf("buildDiagnoser: %v", err)
	}
	defer cleanup()

	if d.Journal() == nil {
		t.Fatal("journal not configured")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("journal file not created: %v", err)
	}
}

func TestForwardCommand(t *testing.T) {
	out, err := execute(t, "forward", "-s", "computer_does_not_start,no_fan")
	if err != nil {
		t.Fatalf("forward: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Diagnosis: Power Supply Failure") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Recommendation: Check or replace the power supply.") {
		t.Errorf("missing recommendation:\n%s", out)
	}
}

func TestForwardCommandNoDiagnosis(t *testing.T) {
	out, err := execute(t, "forward", "overheating")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if !strings.Contains(out, "Unable to diagnose") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestForwardCommandAll(t *testing.T) {
	out, err := execute(t, "forward", "--all", "computer_does_not_start", "no_fan", "random_component_malfunctions")
	if err != nil {
		t.Fatalf("forward --all: %v", err)
	}
	if !strings.Contains(out, "1. Power Supply Failure") || !strings.Contains(out, "2. Power Surge Damage") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestForwardCommandChecklist(t *testing.T) {
	list := writeTemp(t, "form.html", `<form>
<input type="checkbox" name="symptom" value="random_crashes" checked>
<input type="checkbox" name="symptom" value="blue_screen" checked>
<input type="checkbox" name="symptom" value="beeps">
</form>`)

	out, err := execute(t, "forward", "--checklist", list)
	if err != nil {
		t.Fatalf("forward --checklist: %v", err)
	}
	if !strings.Contains(out, "Diagnosis: RAM Failure") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestForwardCommandUnknownSymptom(t *testing.T) {
	out, err := execute(t, "forward", "smoke")
	if !errors.Is(err, internalerr.ErrUnknownSymptom) {
		t.Fatalf("err = %v, want ErrUnknownSymptom", err)
	}
	if !strings.Contains(out, "smoke") {
		t.Errorf("error output does not name the symptom:\n%s", out)
	}
}

func TestBackwardCommandPrintsTrace(t *testing.T) {
	out, err := execute(t, "backward", "computer_does_not_start", "no_fan")
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	for _, want := range []string{
		"Diagnosis: Power Supply Failure",
		"Derivation:",
		"1. power_supply_failure",
		"because f-2 symptom{value=computer_does_not_start}",
		"asserts",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBackwardCommandYAML(t *testing.T) {
	out, err := execute(t, "backward", "--yaml", "no_display")
	if err != nil {
		t.Fatalf("backward --yaml: %v", err)
	}
	for _, want := range []string{"mode: backward", "found: true", "diagnosis: GPU Failure", "- rule: gpu_failure"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBatchAndHistoryCommands(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "runs.db")
	cases := writeTemp(t, "cases.yaml", `cases:
  - name: dead-psu
    symptoms: [computer_does_not_start, no_fan]
  - name: crash-proof
    mode: backward
    symptoms: [random_crashes, beeps]
  - name: nothing
    symptoms: [overheating]
`)

	out, err := execute(t, "--journal", journal, "batch", "--cases", cases)
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, out)
	}
	for _, want := range []string{"dead-psu", "Power Supply Failure", "crash-proof", "RAM Failure", "unable to diagnose"} {
		if !strings.Contains(out, want) {
			t.Errorf("batch output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "--journal", journal, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if got := strings.Count(out, "\n"); got != 4 {
		t.Errorf("history printed %d lines, want header plus 3:\n%s", got, out)
	}

	out, err = execute(t, "--journal", journal, "history", "--stats")
	if err != nil {
		t.Fatalf("history --stats: %v", err)
	}
	if !strings.Contains(out, "RAM Failure") || strings.Contains(out, "Overheating") {
		t.Errorf("unexpected stats:\n%s", out)
	}
}

func TestBatchRequiresCases(t *testing.T) {
	if _, err := execute(t, "batch"); err == nil {
		t.Error("expected error without --cases")
	}
}

func TestHistoryRequiresJournal(t *testing.T) {
	if _, err := execute(t, "history"); err == nil {
		t.Error("expected error without a journal")
	}
}

func TestRulesAndSymptomsCommands(t *testing.T) {
	out, err := execute(t, "rules")
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if !strings.Contains(out, " 1. power_supply_failure") || !strings.Contains(out, "17. excessive_dust") {
		t.Errorf("unexpected rules output:\n%s", out)
	}
	if !strings.Contains(out, "NOT(symptom(value=power_supply_failure))") {
		t.Errorf("negated condition not shown:\n%s", out)
	}

	out, err = execute(t, "symptoms")
	if err != nil {
		t.Fatalf("symptoms: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 36 || lines[0] != "artifacts_on_screen" {
		t.Errorf("symptoms output (%d lines):\n%s", len(lines), out)
	}
}
