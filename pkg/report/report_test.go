package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tgrover/llmexpect/pkg/provider"
	"github.com/tgrover/llmexpect/pkg/runner"
)

func sampleRun() *runner.RunResult {
	return &runner.RunResult{
		RunID:   "run-123",
		Success: false,
		Suites: []runner.SuiteResult{
			{
				Name:   "billing",
				Status: runner.StatusFailed,
				Tasks: []runner.TaskResult{
					{
						Name:   "refund-flow",
						Status: runner.StatusPassed,
						Trials: []runner.TrialResult{
							{Status: runner.StatusPassed, Duration: 120 * time.Millisecond},
							{Status: runner.StatusFailed, Duration: 95 * time.Millisecond},
						},
						Duration: 215 * time.Millisecond,
					},
					{
						Name:   "invoice-totals",
						Status: runner.StatusFailed,
						Trials: []runner.TrialResult{
							{Status: runner.StatusFailed, Error: "content does not contain \"total\"", Duration: 80 * time.Millisecond},
						},
						Duration: 80 * time.Millisecond,
					},
				},
				Duration: 300 * time.Millisecond,
			},
		},
		Summary:  runner.Summary{Total: 2, Passed: 1, Failed: 1},
		Usage:    provider.Usage{InputTokens: 500, OutputTokens: 200, TotalTokens: 700},
		CostUSD:  0.0123,
		Duration: 310 * time.Millisecond,
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	run := sampleRun()
	path := filepath.Join(t.TempDir(), "nested", "run.json")

	if err := Save(run, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadRun(path)
	if err != nil {
		t.Fatalf("LoadRun() error: %v", err)
	}

	if loaded.RunID != run.RunID {
		t.Errorf("RunID = %q, want %q", loaded.RunID, run.RunID)
	}
	if loaded.Summary != run.Summary {
		t.Errorf("Summary = %+v, want %+v", loaded.Summary, run.Summary)
	}
	if loaded.Usage.TotalTokens != 700 {
		t.Errorf("Usage.TotalTokens = %d, want 700", loaded.Usage.TotalTokens)
	}
	if loaded.CostUSD != run.CostUSD {
		t.Errorf("CostUSD = %v, want %v", loaded.CostUSD, run.CostUSD)
	}
	if len(loaded.Suites) != 1 || len(loaded.Suites[0].Tasks) != 2 {
		t.Fatalf("suite/task shape lost: %+v", loaded.Suites)
	}
	trial := loaded.Suites[0].Tasks[1].Trials[0]
	if trial.Status != runner.StatusFailed || !strings.Contains(trial.Error, "total") {
		t.Errorf("trial = %+v", trial)
	}
}

func TestSave_StableFieldNames(t *testing.T) {
	run := sampleRun()
	path := filepath.Join(t.TempDir(), "run.json")
	if err := Save(run, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadRun(path)
	if err != nil {
		t.Fatalf("LoadRun() error: %v", err)
	}
	data, err := json.Marshal(loaded)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// The external JSON contract uses camelCase keys.
	for _, key := range []string{`"runId"`, `"success"`, `"suites"`, `"summary"`, `"usage"`, `"costUsd"`, `"inputTokens"`, `"outputTokens"`, `"totalTokens"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("serialized run missing key %s", key)
		}
	}
}

func TestLoadRun_Missing(t *testing.T) {
	_, err := LoadRun("/nonexistent/run.json")
	if err == nil {
		t.Fatal("LoadRun() expected error for missing file")
	}
}

func TestPrintSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	PrintSummaryTable(&buf, sampleRun(), false)
	out := buf.String()

	for _, want := range []string{
		"billing", "FAILED",
		"refund-flow", "invoice-totals",
		"1/2", "0/1",
		"content does not contain",
		"2 total  1 passed  1 failed  0 skipped",
		"700 tokens", "$0.0123",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary table missing %q:\n%s", want, out)
		}
	}
	// Plain mode carries no ANSI escapes.
	if strings.Contains(out, "\033[") {
		t.Error("uncolored table contains ANSI escapes")
	}
}

func TestPrintSummaryTable_Color(t *testing.T) {
	var buf bytes.Buffer
	PrintSummaryTable(&buf, sampleRun(), true)
	if !strings.Contains(buf.String(), colorGreen) {
		t.Error("colored table missing green status")
	}
	if !strings.Contains(buf.String(), colorRed) {
		t.Error("colored table missing red status")
	}
}

func TestStatusLabel(t *testing.T) {
	if got := StatusLabel(runner.StatusPassed, false); got != "PASSED" {
		t.Errorf("StatusLabel = %q, want PASSED", got)
	}
	if got := StatusLabel(runner.StatusSkipped, true); !strings.Contains(got, colorYellow) {
		t.Errorf("skipped label = %q, want yellow", got)
	}
	if got := StatusLabel(runner.StatusError, true); !strings.Contains(got, colorRed) {
		t.Errorf("error label = %q, want red", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500us"},
		{42 * time.Millisecond, "42ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "90.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := DefaultPath("results", "abc123", ts)
	want := filepath.Join("results", "20260314-092653-abc123.json")
	if got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
