package evaltest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tgrover/llmexpect/eval"
	"github.com/tgrover/llmexpect/pkg/config"
	"github.com/tgrover/llmexpect/pkg/runner"
)

// Option configures a Harness.
type Option func(*Harness)

// WithProviders sets the provider registry used to resolve suite and task
// AI configurations.
func WithProviders(p eval.Providers) Option {
	return func(h *Harness) { h.providers = p }
}

// WithTrials sets the number of trials per task. Defaults to 1.
func WithTrials(n int) Option {
	return func(h *Harness) { h.opts.Trials = n }
}

// WithTimeout sets the per-trial timeout. Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) { h.opts.Timeout = d }
}

// WithParallel runs suite tasks concurrently, at most n in flight.
// The harness defaults to sequential execution so mock response order
// follows task declaration order.
func WithParallel(n int) Option {
	return func(h *Harness) {
		h.opts.Parallel = true
		h.opts.MaxConcurrency = n
	}
}

// WithMaxCost caps cumulative spend across everything the harness runs.
func WithMaxCost(usd float64) Option {
	return func(h *Harness) { h.opts.MaxCost = &usd }
}

// WithResultFile configures the harness to write all suite results to a
// JSON file when the test completes.
func WithResultFile(path string) Option {
	return func(h *Harness) { h.resultFile = path }
}

// Harness runs eval suites under a *testing.T, turning failed tasks into
// test failures. Suites run their tasks sequentially unless WithParallel
// (or a config with parallel enabled) opts in, so mock response order
// follows task declaration order by default.
type Harness struct {
	t          *testing.T
	providers  eval.Providers
	opts       runner.Options
	resultFile string
	results    []runner.SuiteResult
}

// New creates a Harness bound to the given *testing.T.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h := &Harness{
		t: t,
		opts: runner.Options{
			Trials:  1,
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.resultFile != "" {
		t.Cleanup(func() {
			h.writeResults()
		})
	}
	return h
}

// NewFromConfig creates a Harness whose providers and run options come
// from a config file. A missing file yields the defaults, so tests can
// opt in to an eval.yaml without requiring one. Explicit options are
// applied after the config and override it.
func NewFromConfig(t *testing.T, cfgPath string, opts ...Option) *Harness {
	t.Helper()
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		t.Fatalf("loading eval config %s: %v", cfgPath, err)
	}
	providers, err := cfg.BuildProviders()
	if err != nil {
		t.Fatalf("building providers from %s: %v", cfgPath, err)
	}
	base := []Option{
		WithProviders(providers),
		WithTrials(cfg.Trials),
		WithTimeout(cfg.Timeout),
	}
	if cfg.Parallel {
		base = append(base, WithParallel(cfg.MaxConcurrency))
	}
	if cfg.MaxCost != nil {
		base = append(base, WithMaxCost(*cfg.MaxCost))
	}
	return New(t, append(base, opts...)...)
}

// RunSuite executes the suite as a subtest per task and returns the suite
// result. Failed and errored tasks are reported via t.Errorf with the
// first failing trial's reason.
func (h *Harness) RunSuite(s *eval.Suite) *runner.SuiteResult {
	h.t.Helper()

	r := runner.New(h.providers, h.opts, runner.WithLogger(discardLogger()))
	run := r.Run(context.Background(), []*eval.Suite{s})
	sr := run.Suites[0]
	h.results = append(h.results, sr)

	for _, tr := range sr.Tasks {
		tr := tr
		h.t.Run(s.Name+"/"+tr.Name, func(t *testing.T) {
			t.Helper()
			switch tr.Status {
			case runner.StatusPassed:
			case runner.StatusSkipped:
				t.Skip(firstError(tr))
			default:
				t.Errorf("task %q %s: %s", tr.Name, tr.Status, firstError(tr))
			}
		})
	}
	return &sr
}

// firstError returns the first trial error message, or a generic note.
func firstError(tr runner.TaskResult) string {
	for _, trial := range tr.Trials {
		if trial.Error != "" {
			return trial.Error
		}
	}
	return "no trial passed"
}

// writeResults saves all recorded suite results to the configured file.
func (h *Harness) writeResults() {
	data, err := json.MarshalIndent(h.results, "", "  ")
	if err != nil {
		h.t.Errorf("evaltest: failed to marshal results: %v", err)
		return
	}
	if err := os.WriteFile(h.resultFile, data, 0o644); err != nil {
		h.t.Errorf("evaltest: failed to write results to %s: %v", h.resultFile, err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
