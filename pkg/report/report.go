// Package report renders run results as a console table and persists them
// as JSON in the stable external format.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tgrover/llmexpect/pkg/runner"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

// StatusLabel returns a status string for terminal display, colored when
// requested.
func StatusLabel(s runner.Status, color bool) string {
	label := strings.ToUpper(string(s))
	if !color {
		return label
	}
	switch s {
	case runner.StatusPassed:
		return colorGreen + label + colorReset
	case runner.StatusSkipped:
		return colorYellow + label + colorReset
	default:
		return colorRed + label + colorReset
	}
}

// FormatDuration formats a duration for table display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// PrintSummaryTable writes a formatted summary of the run: one section per
// suite, one row per task with its trial outcomes, and run totals.
func PrintSummaryTable(w io.Writer, run *runner.RunResult, color bool) {
	sep := strings.Repeat("-", 78)

	for _, sr := range run.Suites {
		fmt.Fprintf(w, "%s\n", sep)
		if color {
			fmt.Fprintf(w, "  %s%s%s (%s)\n", colorBold, sr.Name, colorReset, StatusLabel(sr.Status, color))
		} else {
			fmt.Fprintf(w, "  %s (%s)\n", sr.Name, StatusLabel(sr.Status, color))
		}
		fmt.Fprintf(w, "%s\n", sep)
		fmt.Fprintf(w, "  %-34s  %-7s  %8s  %8s\n", "TASK", "STATUS", "TRIALS", "LATENCY")

		for _, tr := range sr.Tasks {
			passed := 0
			for _, trial := range tr.Trials {
				if trial.Status == runner.StatusPassed {
					passed++
				}
			}
			fmt.Fprintf(w, "  %-34s  %-7s  %5d/%-2d  %8s\n",
				truncate(tr.Name, 34), StatusLabel(tr.Status, color), passed, len(tr.Trials), FormatDuration(tr.Duration))

			for _, trial := range tr.Trials {
				if trial.Error != "" {
					fmt.Fprintf(w, "      %s\n", truncate(trial.Error, 70))
				}
			}
		}
	}

	fmt.Fprintf(w, "%s\n", sep)
	s := run.Summary
	fmt.Fprintf(w, "  %d total  %d passed  %d failed  %d skipped  | %d tokens | $%.4f | %s\n",
		s.Total, s.Passed, s.Failed, s.Skipped,
		run.Usage.TotalTokens, run.CostUSD, FormatDuration(run.Duration))
}

// DefaultPath returns the default output file path for a run result.
func DefaultPath(outputDir, runID string, startTime time.Time) string {
	filename := fmt.Sprintf("%s-%s.json", startTime.Format("20060102-150405"), runID)
	return filepath.Join(outputDir, filename)
}

// Save writes the RunResult as pretty-printed JSON to the given path.
// Parent directories are created automatically.
func Save(run *runner.RunResult, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating result directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing result to %s: %w", path, err)
	}

	return nil
}

// LoadRun reads a RunResult from a JSON file.
func LoadRun(path string) (*runner.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file %s: %w", path, err)
	}

	var run runner.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing result file %s: %w", path, err)
	}

	return &run, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
