package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tgrover/llmexpect/pkg/config"
	"github.com/tgrover/llmexpect/pkg/diff"
	"github.com/tgrover/llmexpect/pkg/logging"
	"github.com/tgrover/llmexpect/pkg/report"
)

var (
	logger  *slog.Logger
	logFile *os.File
)

func main() {
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eval",
	Short: "Agent eval result tooling",
	Long: `Tooling for eval runs produced by the llmexpect framework.

Eval suites are defined in Go code and executed through the runner or
the evaltest harness. This CLI works with the JSON run files those
produce: inspect a run with 'eval report', compare two runs with
'eval diff', and scaffold a project with 'eval init'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log-file")
		w, f, err := logging.Writer(logPath)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		logger = logging.New(w, verbose)
		return nil
	},
}

// --- report command ---

var reportCmd = &cobra.Command{
	Use:   "report <run.json>",
	Short: "Show a summary of a saved run",
	Long: `Print a per-suite summary table for a saved run result.

Shows task pass counts, trial errors, token usage, and total cost.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := report.LoadRun(args[0])
		if err != nil {
			return fmt.Errorf("loading run: %w", err)
		}
		logger.Debug("loaded run", "runId", run.RunID, "suites", len(run.Suites))
		color, _ := cmd.Flags().GetBool("color")
		report.PrintSummaryTable(os.Stdout, run, color)
		return nil
	},
}

// --- diff command ---

var diffCmd = &cobra.Command{
	Use:   "diff <run-a.json> <run-b.json>",
	Short: "Compare two run results",
	Long: `Compare results from two eval runs side-by-side.

Shows pass-rate regressions, improvements, and unchanged tasks.
Useful for evaluating prompt changes or model upgrades.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		runA, err := report.LoadRun(args[0])
		if err != nil {
			return fmt.Errorf("loading run A: %w", err)
		}
		runB, err := report.LoadRun(args[1])
		if err != nil {
			return fmt.Errorf("loading run B: %w", err)
		}

		threshold, _ := cmd.Flags().GetFloat64("threshold")
		result := diff.Compare(runA, runB, threshold)
		logger.Debug("compared runs",
			"runA", runA.RunID, "runB", runB.RunID,
			"regressed", result.Summary.Regressed, "improved", result.Summary.Improved)

		if filter, _ := cmd.Flags().GetString("filter"); filter != "" {
			var cats []diff.Category
			for _, f := range strings.Split(filter, ",") {
				cats = append(cats, diff.Category(strings.TrimSpace(f)))
			}
			result = result.Filter(cats)
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			out, err := result.JSON()
			if err != nil {
				return fmt.Errorf("encoding diff: %w", err)
			}
			fmt.Println(string(out))
		case "table":
			result.PrintTable(os.Stdout)
		default:
			return fmt.Errorf("unknown format %q (want table or json)", format)
		}
		return nil
	},
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available resources",
	Long:  `List saved run results or other eval resources.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved run results",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if dir == "" {
			dir = cfg.OutputDir
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No run results found.")
				return nil
			}
			return fmt.Errorf("reading %s: %w", dir, err)
		}

		var names []string
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
				names = append(names, e.Name())
			}
		}
		if len(names) == 0 {
			fmt.Println("No run results found.")
			return nil
		}
		sort.Strings(names)
		logger.Debug("scanning results", "dir", dir, "files", len(names))

		for _, name := range names {
			path := filepath.Join(dir, name)
			run, err := report.LoadRun(path)
			if err != nil {
				fmt.Printf("  %-40s (unreadable: %v)\n", name, err)
				continue
			}
			status := "FAIL"
			if run.Success {
				status = "PASS"
			}
			fmt.Printf("  %-40s %s  %d/%d tasks  $%.4f\n",
				name, status, run.Summary.Passed, run.Summary.Total, run.CostUSD)
		}
		return nil
	},
}

// --- validate command ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an eval config file",
	Long: `Check an eval configuration file for errors.

Validates YAML syntax, provider entries, trial counts, and limits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadOrDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
		fmt.Printf("Config %q is valid.\n", cfgPath)
		return nil
	},
}

// --- init command ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new eval project",
	Long: `Scaffold a new eval project with an example configuration and a
results directory.

Creates the following structure:
  eval.yaml          - Main configuration file
  results/           - Run result output directory`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll("results", 0o755); err != nil {
		return fmt.Errorf("creating directory results: %w", err)
	}
	fmt.Println("  created results/")

	if err := writeExampleConfig("eval.yaml"); err != nil {
		return err
	}

	fmt.Println("\nEval project initialized. Run 'eval validate' to check your config.")
	return nil
}

func writeExampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  skipped %s (already exists)\n", path)
		return nil
	}

	data := map[string]any{
		"trials":          1,
		"timeout":         "60s",
		"parallel":        true,
		"max_concurrency": 5,
		"output_dir":      "results",
		"providers": map[string]any{
			"anthropic": map[string]any{
				"model":       "claude-sonnet-4-5-20250929",
				"api_key_env": "ANTHROPIC_API_KEY",
			},
		},
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("  created %s\n", path)
	return nil
}

func init() {
	// global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to a file")

	// report command flags
	reportCmd.Flags().Bool("color", true, "Colorize status labels")

	// diff command flags
	diffCmd.Flags().Float64("threshold", 0.0, "Minimum score change to highlight")
	diffCmd.Flags().String("format", "table", "Output format: table, json")
	diffCmd.Flags().String("filter", "", "Comma-separated categories: improved, regressed, unchanged, new, removed")

	// list command flags
	listCmd.PersistentFlags().String("dir", "", "Results directory (default: output_dir from config)")
	listCmd.PersistentFlags().StringP("config", "c", "eval.yaml", "Path to config file")
	listCmd.AddCommand(listRunsCmd)

	// validate command flags
	validateCmd.Flags().StringP("config", "c", "eval.yaml", "Path to config file to validate")

	// register all subcommands
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
}
