// Package runner implements the execution engine: it runs each task's
// trials with pass@k aggregation, enforces per-trial timeouts and a shared
// cost budget, and executes suite tasks sequentially or in bounded-size
// concurrent batches.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgrover/llmexpect/eval"
	"github.com/tgrover/llmexpect/pkg/grade"
)

// costLimitReason is the skip reason reported when the budget pre-check
// fails; reporting layers match on its text.
const costLimitReason = "Cost limit exceeded"

// Options controls runner behavior. Zero values are normalized to the
// documented defaults in New.
type Options struct {
	Trials         int
	Timeout        time.Duration
	Parallel       bool
	MaxConcurrency int
	MaxCost        *float64
}

// Hooks fire at well-defined lifecycle points. Nil hooks are skipped.
type Hooks struct {
	SuiteStart func(s *eval.Suite)
	SuiteEnd   func(s *eval.Suite, sr *SuiteResult)
	TaskStart  func(s *eval.Suite, t *eval.Task)
	TaskEnd    func(s *eval.Suite, t *eval.Task, tr *TaskResult)
}

// Runner orchestrates suite execution against a provider registry.
type Runner struct {
	opts      Options
	providers eval.Providers
	hooks     Hooks
	logger    *slog.Logger
	tracker   *CostTracker
}

// Option configures a Runner.
type Option func(*Runner)

// WithHooks installs lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(r *Runner) { r.hooks = h }
}

// WithLogger sets the structured logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner. Defaults: 1 trial, 60s timeout, sequential
// execution (at most 5 tasks in flight once Parallel is set), unlimited
// spend.
func New(providers eval.Providers, opts Options, ropts ...Option) *Runner {
	if opts.Trials < 1 {
		opts.Trials = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 5
	}
	r := &Runner{
		opts:      opts,
		providers: providers,
		logger:    slog.Default(),
		tracker:   NewCostTracker(opts.MaxCost),
	}
	for _, o := range ropts {
		o(r)
	}
	return r
}

// Tracker exposes the shared cost tracker, mainly for reporting.
func (r *Runner) Tracker() *CostTracker {
	return r.tracker
}

// Run executes all suites in order and returns the aggregated run result.
func (r *Runner) Run(ctx context.Context, suites []*eval.Suite) *RunResult {
	start := time.Now()
	run := &RunResult{
		RunID:  uuid.NewString(),
		Suites: make([]SuiteResult, 0, len(suites)),
	}

	for _, s := range suites {
		run.Suites = append(run.Suites, r.runSuite(ctx, s))
	}

	run.Duration = time.Since(start)
	summarize(run)
	r.logger.Info("run complete",
		"runId", run.RunID,
		"total", run.Summary.Total,
		"passed", run.Summary.Passed,
		"failed", run.Summary.Failed,
		"skipped", run.Summary.Skipped,
		"costUsd", run.CostUSD,
	)
	return run
}

// runSuite executes one suite's tasks, preserving declaration order in the
// output. Parallel mode dispatches fixed-size batches and waits for each
// whole batch before starting the next, bounding peak concurrency while
// keeping batch N's results ahead of batch N+1's.
func (r *Runner) runSuite(ctx context.Context, s *eval.Suite) SuiteResult {
	start := time.Now()
	if r.hooks.SuiteStart != nil {
		r.hooks.SuiteStart(s)
	}
	r.logger.Debug("suite start", "suite", s.Name, "tasks", len(s.Tasks))

	sr := SuiteResult{
		Name:  s.Name,
		Tasks: make([]TaskResult, len(s.Tasks)),
	}

	if !r.opts.Parallel {
		for i := range s.Tasks {
			sr.Tasks[i] = r.runTask(ctx, s, &s.Tasks[i])
		}
	} else {
		for batchStart := 0; batchStart < len(s.Tasks); batchStart += r.opts.MaxConcurrency {
			batchEnd := batchStart + r.opts.MaxConcurrency
			if batchEnd > len(s.Tasks) {
				batchEnd = len(s.Tasks)
			}
			var wg sync.WaitGroup
			for i := batchStart; i < batchEnd; i++ {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					sr.Tasks[idx] = r.runTask(ctx, s, &s.Tasks[idx])
				}(i)
			}
			wg.Wait()
		}
	}

	sr.Status = aggregateSuite(sr.Tasks)
	sr.Duration = time.Since(start)
	if r.hooks.SuiteEnd != nil {
		r.hooks.SuiteEnd(s, &sr)
	}
	r.logger.Debug("suite end", "suite", s.Name, "status", string(sr.Status), "duration", sr.Duration)
	return sr
}

// runTask executes a task's configured number of trials strictly
// sequentially and aggregates their statuses.
func (r *Runner) runTask(ctx context.Context, s *eval.Suite, t *eval.Task) TaskResult {
	start := time.Now()
	if r.hooks.TaskStart != nil {
		r.hooks.TaskStart(s, t)
	}

	tr := TaskResult{
		Name:   t.Name,
		Trials: make([]TrialResult, 0, r.opts.Trials),
	}
	for i := 0; i < r.opts.Trials; i++ {
		tr.Trials = append(tr.Trials, r.runTrial(ctx, s, t))
	}

	tr.Status = aggregateTask(tr.Trials)
	tr.Duration = time.Since(start)
	if r.hooks.TaskEnd != nil {
		r.hooks.TaskEnd(s, t, &tr)
	}
	r.logger.Debug("task end", "suite", s.Name, "task", t.Name, "status", string(tr.Status))
	return tr
}

// runTrial executes one attempt of the task body with a fresh recorder and
// fresh conversation. The budget pre-check runs per trial, not per task:
// sibling tasks running concurrently may have pushed the shared tracker
// over budget mid-task.
func (r *Runner) runTrial(ctx context.Context, s *eval.Suite, t *eval.Task) TrialResult {
	if r.tracker.Exceeded() {
		return TrialResult{
			Status: StatusSkipped,
			Error:  costLimitReason,
		}
	}

	start := time.Now()
	timeout := r.opts.Timeout
	if t.Options.Timeout > 0 {
		timeout = t.Options.Timeout
	}
	trialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := grade.NewRecorder()
	trial := TrialResult{}

	tc, err := eval.NewCtx(trialCtx, s, t, r.providers, rec)
	if err != nil {
		// Setup problem, not an evaluation result. Kept distinguishable
		// from assertion failures in both status detail and logs.
		var cfgErr *grade.ConfigError
		if errors.As(err, &cfgErr) {
			r.logger.Error("configuration error", "suite", s.Name, "task", t.Name, "err", cfgErr.Msg)
			trial.Status = StatusError
			trial.Error = "configuration error: " + cfgErr.Msg
			trial.Duration = time.Since(start)
			return trial
		}
		trial.Status = StatusError
		trial.Error = err.Error()
		trial.Duration = time.Since(start)
		return trial
	}

	err = t.Fn(tc)
	trial.Duration = time.Since(start)
	trial.GraderResults = rec.Results()

	var assertErr *grade.AssertionError
	switch {
	case err == nil:
		if rec.AnyFailed() {
			trial.Status = StatusFailed
		} else {
			trial.Status = StatusPassed
		}
	case errors.As(err, &assertErr):
		trial.Status = StatusFailed
		trial.Error = assertErr.Result.Reason
	case errors.Is(err, context.DeadlineExceeded):
		trial.Status = StatusError
		trial.Error = fmt.Sprintf("task timed out after %s", timeout)
	default:
		trial.Status = StatusError
		trial.Error = err.Error()
	}

	// Trial totals: conversation usage plus judge usage carried on grader
	// results. The tracker update happens even for passing trials.
	trial.Usage = tc.AI.Usage()
	trial.CostUSD = tc.AI.CostUSD()
	for _, gr := range trial.GraderResults {
		if gr.Usage != nil {
			trial.Usage.Add(*gr.Usage)
		}
		trial.CostUSD += gr.CostUSD
	}
	r.tracker.Add(trial.CostUSD)

	return trial
}
