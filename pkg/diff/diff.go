// Package diff compares two saved eval runs task by task, categorizing
// pass-rate changes as improved, regressed, unchanged, new, or removed.
package diff

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/tgrover/llmexpect/pkg/runner"
)

// Category classifies a task comparison.
type Category string

const (
	Improved  Category = "improved"
	Regressed Category = "regressed"
	Unchanged Category = "unchanged"
	New       Category = "new"
	Removed   Category = "removed"
)

// TaskDiff represents the comparison of a single task between two runs.
// Tasks are keyed by "suite/task" name, and a task's score is its trial
// pass rate.
type TaskDiff struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	ScoreA     float64  `json:"scoreA"`
	ScoreB     float64  `json:"scoreB"`
	ScoreDelta float64  `json:"scoreDelta"`
	StatusA    string   `json:"statusA"`
	StatusB    string   `json:"statusB"`
}

// DiffResult holds the full comparison between two runs.
type DiffResult struct {
	RunA  string     `json:"runA"`
	RunB  string     `json:"runB"`
	Tasks []TaskDiff `json:"tasks"`
	Summary
}

// Summary holds counts by category.
type Summary struct {
	Improved  int `json:"improved"`
	Regressed int `json:"regressed"`
	Unchanged int `json:"unchanged"`
	New       int `json:"new"`
	Removed   int `json:"removed"`
}

// taskEntry is a flattened task with its qualified name and pass rate.
type taskEntry struct {
	name   string
	score  float64
	status string
}

func flatten(run *runner.RunResult) []taskEntry {
	var out []taskEntry
	for _, sr := range run.Suites {
		for _, tr := range sr.Tasks {
			passed := 0
			for _, trial := range tr.Trials {
				if trial.Status == runner.StatusPassed {
					passed++
				}
			}
			score := 0.0
			if len(tr.Trials) > 0 {
				score = float64(passed) / float64(len(tr.Trials))
			}
			out = append(out, taskEntry{
				name:   sr.Name + "/" + tr.Name,
				score:  score,
				status: string(tr.Status),
			})
		}
	}
	return out
}

// Compare produces a diff between two runs. Tasks are matched by
// qualified name. A threshold controls the minimum absolute pass-rate
// delta to classify a task as improved or regressed (below threshold =
// unchanged).
func Compare(a, b *runner.RunResult, threshold float64) *DiffResult {
	dr := &DiffResult{
		RunA: a.RunID,
		RunB: b.RunID,
	}

	aEntries := flatten(a)
	aMap := make(map[string]taskEntry, len(aEntries))
	for _, e := range aEntries {
		aMap[e.name] = e
	}

	seen := make(map[string]bool)
	for _, eb := range flatten(b) {
		seen[eb.name] = true

		td := TaskDiff{
			Name:    eb.name,
			ScoreB:  eb.score,
			StatusB: eb.status,
		}

		ea, inA := aMap[eb.name]
		if !inA {
			td.Category = New
			dr.Summary.New++
		} else {
			td.ScoreA = ea.score
			td.StatusA = ea.status
			td.ScoreDelta = eb.score - ea.score

			if math.Abs(td.ScoreDelta) <= threshold {
				td.Category = Unchanged
				dr.Summary.Unchanged++
			} else if td.ScoreDelta > 0 {
				td.Category = Improved
				dr.Summary.Improved++
			} else {
				td.Category = Regressed
				dr.Summary.Regressed++
			}
		}

		dr.Tasks = append(dr.Tasks, td)
	}

	for _, ea := range aEntries {
		if !seen[ea.name] {
			dr.Tasks = append(dr.Tasks, TaskDiff{
				Name:     ea.name,
				Category: Removed,
				ScoreA:   ea.score,
				StatusA:  ea.status,
			})
			dr.Summary.Removed++
		}
	}

	return dr
}

// Filter returns a new DiffResult with only tasks matching the given
// categories. Pass nil to include all.
func (dr *DiffResult) Filter(categories []Category) *DiffResult {
	if len(categories) == 0 {
		return dr
	}

	catSet := make(map[Category]bool, len(categories))
	for _, c := range categories {
		catSet[c] = true
	}

	filtered := &DiffResult{
		RunA: dr.RunA,
		RunB: dr.RunB,
	}
	for _, td := range dr.Tasks {
		if catSet[td.Category] {
			filtered.Tasks = append(filtered.Tasks, td)
		}
	}
	filtered.Summary = dr.Summary
	return filtered
}

// JSON serializes the diff result.
func (dr *DiffResult) JSON() ([]byte, error) {
	return json.MarshalIndent(dr, "", "  ")
}

// PrintTable writes a formatted diff table.
func (dr *DiffResult) PrintTable(w io.Writer) {
	sep := strings.Repeat("-", 82)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %-30s  %-10s  %8s  %8s  %8s\n", "TASK", "CHANGE", "RATE A", "RATE B", "DELTA")
	fmt.Fprintf(w, "%s\n", sep)

	for _, td := range dr.Tasks {
		name := td.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		var delta string
		switch td.Category {
		case New:
			delta = "new"
		case Removed:
			delta = "removed"
		default:
			delta = fmt.Sprintf("%+.2f", td.ScoreDelta)
		}

		fmt.Fprintf(w, "  %-30s  %-10s  %8.2f  %8.2f  %8s\n",
			name, string(td.Category), td.ScoreA, td.ScoreB, delta)
	}

	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %d improved  %d regressed  %d unchanged  %d new  %d removed\n",
		dr.Summary.Improved, dr.Summary.Regressed, dr.Summary.Unchanged,
		dr.Summary.New, dr.Summary.Removed)
	fmt.Fprintf(w, "%s\n", sep)
}
