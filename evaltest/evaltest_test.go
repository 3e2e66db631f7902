package evaltest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tgrover/llmexpect/eval"
	"github.com/tgrover/llmexpect/pkg/mock"
	"github.com/tgrover/llmexpect/pkg/provider"
	"github.com/tgrover/llmexpect/pkg/runner"
)

func TestHarness_PassingSuite(t *testing.T) {
	m := mock.NewProvider(
		provider.Response{Content: "Hello, Ada!", StopReason: "end_turn"},
	)
	h := New(t, WithProviders(eval.Providers{"mock": m}))

	s := eval.NewSuite("greeter", eval.WithAI("mock", "test-model"))
	s.Task("greets-by-name", func(tc *eval.Ctx) error {
		resp, err := tc.AI.Prompt("Greet Ada.")
		if err != nil {
			return err
		}
		return tc.Expect(resp).ToContain("Ada")
	})

	sr := h.RunSuite(s)
	if sr.Status != runner.StatusPassed {
		t.Errorf("suite status = %s, want passed", sr.Status)
	}
	if len(sr.Tasks) != 1 || sr.Tasks[0].Status != runner.StatusPassed {
		t.Errorf("tasks = %+v", sr.Tasks)
	}
}

func TestHarness_Trials(t *testing.T) {
	m := mock.NewProvider(
		provider.Response{Content: "one"},
		provider.Response{Content: "two"},
		provider.Response{Content: "three"},
	)
	h := New(t, WithProviders(eval.Providers{"mock": m}), WithTrials(3))

	s := eval.NewSuite("repeat", eval.WithAI("mock", "test-model"))
	s.Task("any-reply", func(tc *eval.Ctx) error {
		_, err := tc.AI.Prompt("say something")
		return err
	})

	sr := h.RunSuite(s)
	if got := len(sr.Tasks[0].Trials); got != 3 {
		t.Errorf("ran %d trials, want 3", got)
	}
}

func TestHarness_NewFromConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "eval.yaml")
	if err := os.WriteFile(cfgPath, []byte("trials: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := mock.NewProvider(
		provider.Response{Content: "one"},
		provider.Response{Content: "two"},
	)
	h := NewFromConfig(t, cfgPath, WithProviders(eval.Providers{"mock": m}))
	if h.opts.Trials != 2 {
		t.Errorf("trials = %d, want 2 from config", h.opts.Trials)
	}

	s := eval.NewSuite("configured", eval.WithAI("mock", "test-model"))
	s.Task("any-reply", func(tc *eval.Ctx) error {
		_, err := tc.AI.Prompt("say something")
		return err
	})

	sr := h.RunSuite(s)
	if got := len(sr.Tasks[0].Trials); got != 2 {
		t.Errorf("ran %d trials, want 2", got)
	}
}

func TestHarness_NewFromConfig_MissingFileUsesDefaults(t *testing.T) {
	h := NewFromConfig(t, filepath.Join(t.TempDir(), "absent.yaml"))
	if h.opts.Trials != 1 {
		t.Errorf("trials = %d, want default 1", h.opts.Trials)
	}
	// The config default is parallel execution with 5 tasks in flight.
	if !h.opts.Parallel || h.opts.MaxConcurrency != 5 {
		t.Errorf("opts = %+v, want parallel with max concurrency 5", h.opts)
	}
}

func TestHarness_NewFromConfig_Parallelism(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "eval.yaml")
	if err := os.WriteFile(cfgPath, []byte("parallel: true\nmax_concurrency: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewFromConfig(t, cfgPath)
	if !h.opts.Parallel {
		t.Error("parallel: true in config should enable parallel execution")
	}
	if h.opts.MaxConcurrency != 3 {
		t.Errorf("max concurrency = %d, want 3 from config", h.opts.MaxConcurrency)
	}

	m := mock.NewProvider(
		provider.Response{Content: "a"},
		provider.Response{Content: "b"},
	)
	WithProviders(eval.Providers{"mock": m})(h)

	s := eval.NewSuite("concurrent", eval.WithAI("mock", "test-model"))
	for _, name := range []string{"first", "second"} {
		s.Task(name, func(tc *eval.Ctx) error {
			_, err := tc.AI.Prompt("go")
			return err
		})
	}
	sr := h.RunSuite(s)
	if sr.Status != runner.StatusPassed {
		t.Errorf("suite status = %s, want passed", sr.Status)
	}
	if len(sr.Tasks) != 2 || sr.Tasks[0].Name != "first" || sr.Tasks[1].Name != "second" {
		t.Errorf("task order not preserved: %+v", sr.Tasks)
	}
}

func TestHarness_SequentialByDefault(t *testing.T) {
	h := New(t)
	if h.opts.Parallel {
		t.Error("harness should default to sequential execution")
	}
	WithParallel(4)(h)
	if !h.opts.Parallel || h.opts.MaxConcurrency != 4 {
		t.Errorf("opts = %+v, want parallel with max concurrency 4", h.opts)
	}
}

func TestHarness_WritesResultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	t.Run("inner", func(t *testing.T) {
		m := mock.NewProvider(provider.Response{Content: "ok"})
		h := New(t,
			WithProviders(eval.Providers{"mock": m}),
			WithResultFile(path),
		)

		s := eval.NewSuite("persisted", eval.WithAI("mock", "test-model"))
		s.Task("trivial", func(tc *eval.Ctx) error {
			_, err := tc.AI.Prompt("go")
			return err
		})
		h.RunSuite(s)
	})

	// Cleanup ran when the subtest finished.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("result file not written: %v", err)
	}
	var results []runner.SuiteResult
	if err := json.Unmarshal(data, &results); err != nil {
		t.Fatalf("result file not valid JSON: %v", err)
	}
	if len(results) != 1 || results[0].Name != "persisted" {
		t.Errorf("results = %+v", results)
	}
}
