package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/katalvlaran/amrtree/internal/config"
	"github.com/katalvlaran/amrtree/internal/engine"
	"github.com/katalvlaran/amrtree/internal/errs"
	"github.com/katalvlaran/amrtree/internal/runtime"
	"github.com/katalvlaran/amrtree/internal/telemetry"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/reader"
)

// Flag-bound variables mirror internal/config.Config field-for-field; any
// flag the user actually passed overrides whatever config.Load resolved
// from file/env/defaults (§6 CLI surface, §7 ConfigError "reported before
// any compute").
var (
	cfgFile string

	rho            float64
	absolute       bool
	negate         bool
	minCells       int
	functionFields string
	integralFields string
	numBlocks      int
	split          string

	inMemory  int
	threads   int
	logLevel  string
	logFormat string

	ignoreZeroPersistence bool
)

var rootCmd = &cobra.Command{
	Use:   "amrtree INPUT OUTPUT [DIAGRAM_OUT] [INTEGRAL_OUT]",
	Short: "Distributed triplet merge tree / connected components engine",
	Long: `amrtree computes the triplet merge tree of a scalar field on a
block-decomposed AMR grid and extracts persistent connected components
(halos) with integrated field quantities.

INPUT is an amrtree plotfile (reader.Plotfile). OUTPUT receives the
serialized distributed tree. DIAGRAM_OUT and INTEGRAL_OUT, if given,
receive the persistence diagram and the per-component integral report.`,
	Args: cobra.RangeArgs(2, 4),
	RunE: runAmrtree,
	// The exit-code contract is explicit in §6 ("Exit 0 success, 1
	// usage/fatal"); let Execute's os.Exit(1) on RunE error carry it rather
	// than cobra's own usage dump on every error.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./amrtree.yaml, ./configs/amrtree.yaml, /etc/amrtree/amrtree.yaml)")

	rootCmd.Flags().Float64Var(&rho, "rho", 0, "threshold coefficient (absolute value, or multiplier of the global mean)")
	rootCmd.Flags().BoolVar(&absolute, "absolute", false, "treat rho as an absolute threshold instead of relative to the mean")
	rootCmd.Flags().BoolVar(&negate, "negate", false, "select superlevel sets instead of sublevel sets")
	rootCmd.Flags().IntVar(&minCells, "min-cells", 0, "drop components with fewer than this many cells")
	rootCmd.Flags().StringVar(&functionFields, "function-fields", "", "comma-separated extra field names; stored in the config, no function-field output is written")
	rootCmd.Flags().StringVar(&integralFields, "integral-fields", "", "comma-separated extra field names to integrate alongside the primary field")
	rootCmd.Flags().IntVar(&numBlocks, "blocks", 0, "expected block count; stored in the config, not checked against the input")
	rootCmd.Flags().StringVar(&split, "split", "", "input split selector; stored in the config, not passed to the reader")

	rootCmd.Flags().IntVar(&inMemory, "in-memory", 0, "maximum resident blocks before spilling to disk (0 = unlimited)")
	rootCmd.Flags().IntVar(&threads, "threads", 0, "foreach worker-pool size (0 = config/env default)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "text|json")
	rootCmd.Flags().BoolVar(&ignoreZeroPersistence, "ignore-zero-persistence", false, "drop persistence pairs where birth equals death")
}

// Execute runs the root command, exiting 1 on any fatal error (§6, §7:
// every ConfigError/NumericalError/ProtocolViolation/ResourceError is
// fail-stop).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "amrtree:", err)
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runAmrtree(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := telemetry.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	log.Info("amrtree starting: %s", cfg.String())

	inputPath := args[0]
	outputPath := args[1]

	in, err := os.Open(inputPath)
	if err != nil {
		return errs.Config("opening input %s: %v", inputPath, err)
	}
	defer in.Close()

	rdr := reader.NewPlotfile(in)

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output %s: %w", outputPath, err)
	}
	defer outFile.Close()

	outs := engine.Outputs{Tree: outFile}

	if len(args) >= 3 {
		f, err := os.Create(args[2])
		if err != nil {
			return fmt.Errorf("creating diagram output %s: %w", args[2], err)
		}
		defer f.Close()
		outs.Diagram = f
	}
	if len(args) >= 4 {
		f, err := os.Create(args[3])
		if err != nil {
			return fmt.Errorf("creating integral output %s: %w", args[3], err)
		}
		defer f.Close()
		outs.Integral = f
	}

	spillDir := cfg.Runtime.SpillDir
	opts := engine.Options{
		Threshold: maskedbox.ThresholdConfig{
			Rho:    cfg.Threshold.Rho,
			Mode:   cfg.Threshold.Mode(),
			Negate: cfg.Threshold.Negate,
			Dim:    3,
		},
		MinCells:              cfg.MinCells,
		IntegralFields:        cfg.IntegralFields,
		IgnoreZeroPersistence: ignoreZeroPersistence,
		Runtime: runtime.Config{
			Threads:        cfg.Runtime.Threads,
			InMemoryBlocks: cfg.Runtime.InMemoryBlocks,
			SpillDir:       spillDir,
			Log:            log,
		},
	}

	if err := engine.Run(context.Background(), rdr, opts, log, outs); err != nil {
		return err
	}

	log.Info("amrtree finished: %s", outputPath)
	return nil
}

// applyFlagOverrides copies any explicitly-passed flag onto cfg, leaving
// file/env/default values untouched otherwise — flags are the highest
// layer of internal/config's file → env → flag precedence.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("rho") {
		cfg.Threshold.Rho = rho
	}
	if f.Changed("absolute") {
		cfg.Threshold.Absolute = absolute
	}
	if f.Changed("negate") {
		cfg.Threshold.Negate = negate
	}
	if f.Changed("min-cells") {
		cfg.MinCells = minCells
	}
	if f.Changed("function-fields") {
		cfg.FunctionFields = splitCSV(functionFields)
	}
	if f.Changed("integral-fields") {
		cfg.IntegralFields = splitCSV(integralFields)
	}
	if f.Changed("blocks") {
		cfg.Blocks = numBlocks
	}
	if f.Changed("split") {
		cfg.Split = split
	}
	if f.Changed("in-memory") {
		cfg.Runtime.InMemoryBlocks = inMemory
	}
	if f.Changed("threads") && threads > 0 {
		cfg.Runtime.Threads = threads
	}
	if f.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
}
