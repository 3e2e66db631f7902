package runner

import (
	"time"

	"github.com/tgrover/llmexpect/pkg/grade"
	"github.com/tgrover/llmexpect/pkg/provider"
)

// Status is the terminal state of a trial, task, or suite.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// TrialResult is the outcome of one execution attempt of a task's body.
type TrialResult struct {
	Status        Status         `json:"status"`
	Duration      time.Duration  `json:"duration"`
	GraderResults []grade.Result `json:"graderResults"`
	Error         string         `json:"error,omitempty"`
	Usage         provider.Usage `json:"usage"`
	CostUSD       float64        `json:"costUsd"`
}

// TaskResult aggregates a task's trials under the pass@k policy.
type TaskResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Trials   []TrialResult `json:"trials"`
	Duration time.Duration `json:"duration"`
}

// SuiteResult aggregates one suite's task results in reporting order.
type SuiteResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Tasks    []TaskResult  `json:"tasks"`
	Duration time.Duration `json:"duration"`
}

// Summary counts tasks by outcome. Error counts toward failed.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RunResult is the stable outward contract consumed by reporting layers.
// Field names and nesting must be preserved exactly.
type RunResult struct {
	RunID    string         `json:"runId"`
	Success  bool           `json:"success"`
	Suites   []SuiteResult  `json:"suites"`
	Summary  Summary        `json:"summary"`
	Usage    provider.Usage `json:"usage"`
	CostUSD  float64        `json:"costUsd"`
	Duration time.Duration  `json:"duration"`
}

// aggregateTask derives a task status from its trial statuses. pass@k:
// one passing trial passes the task, regardless of other failures.
func aggregateTask(trials []TrialResult) Status {
	allSkipped := len(trials) > 0
	anyPassed, anyErrored := false, false
	for _, tr := range trials {
		if tr.Status != StatusSkipped {
			allSkipped = false
		}
		switch tr.Status {
		case StatusPassed:
			anyPassed = true
		case StatusError:
			anyErrored = true
		}
	}
	switch {
	case allSkipped:
		return StatusSkipped
	case anyPassed:
		return StatusPassed
	case anyErrored:
		return StatusError
	default:
		return StatusFailed
	}
}

// aggregateSuite derives a suite status from its task statuses.
func aggregateSuite(tasks []TaskResult) Status {
	allSkipped := len(tasks) > 0
	anyFailed := false
	for _, tr := range tasks {
		if tr.Status != StatusSkipped {
			allSkipped = false
		}
		if tr.Status == StatusFailed || tr.Status == StatusError {
			anyFailed = true
		}
	}
	switch {
	case allSkipped:
		return StatusSkipped
	case anyFailed:
		return StatusFailed
	default:
		return StatusPassed
	}
}

// summarize walks all suites and tasks, counting statuses and summing
// usage and cost into run totals.
func summarize(run *RunResult) {
	for _, sr := range run.Suites {
		for _, tr := range sr.Tasks {
			run.Summary.Total++
			switch tr.Status {
			case StatusPassed:
				run.Summary.Passed++
			case StatusSkipped:
				run.Summary.Skipped++
			default:
				run.Summary.Failed++
			}
			for _, trial := range tr.Trials {
				run.Usage.Add(trial.Usage)
				run.CostUSD += trial.CostUSD
			}
		}
	}
	run.Success = run.Summary.Failed == 0
}
