package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"pipewright/internal/generator"
	"pipewright/internal/validator"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	outputPath string
	noValidate bool
	noHistory  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [instruction]",
	Short: "Generate a validated PySpark job from an instruction",
	Long: `Generates PySpark code for a natural-language instruction and runs it
through the validation pipeline. Lint findings trigger automatic repair
rounds; unsafe code is rejected outright.

Example:
  pipewright generate "Read a CSV file and aggregate users by department and save the result to a text file."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the generated code to a file")
	generateCmd.Flags().BoolVar(&noValidate, "no-validate", false, "skip the validation pipeline")
	generateCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not read or write the run history")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	instruction := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tc, err := buildToolchain(cfg, !noHistory)
	if err != nil {
		return err
	}
	defer tc.Close()

	ctx := cmd.Context()
	logger.Info("Processing instruction", zap.String("instruction", instruction))

	if noValidate {
		_, code, err := tc.gen.Generate(ctx, instruction)
		if err != nil {
			return err
		}
		return emitCode(code)
	}

	result, err := tc.gen.GenerateValidated(ctx, instruction, tc.pipeline)
	recordRun(ctx, tc, result)

	if err != nil {
		if errors.Is(err, generator.ErrMaxAttemptsExceeded) {
			fmt.Fprintln(os.Stderr, errorStyle.Render(
				fmt.Sprintf("Lint findings remain after %d attempts:", result.Attempts)))
			fmt.Fprintln(os.Stderr, result.Report.LintFindings)
			return err
		}
		return err
	}

	if !result.Accepted() {
		fmt.Fprintln(os.Stderr, errorStyle.Render(
			fmt.Sprintf("Code rejected (%s):", result.Report.Verdict)))
		for _, v := range result.Report.Violations {
			fmt.Fprintln(os.Stderr, "  "+v.String())
		}
		return fmt.Errorf("generated code failed validation")
	}

	status := fmt.Sprintf("Accepted after %d attempt(s)", result.Attempts)
	if result.Report.LintSkipped {
		status += warnStyle.Render(" (lint skipped)")
	}
	fmt.Fprintln(os.Stderr, successStyle.Render(status))

	return emitCode(result.Code)
}

// emitCode writes code to --output or renders it to stdout.
func emitCode(code string) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(code+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Fprintln(os.Stderr, subtleStyle.Render("Wrote "+outputPath))
		return nil
	}
	printCode(code)
	return nil
}

// recordRun persists a finished run, including runs where the model never
// produced a code block, so failed generations show up in history. History
// failures are logged, never fatal.
func recordRun(ctx context.Context, tc *toolchain, result *generator.Result) {
	if tc.store == nil || result == nil {
		return
	}

	run := newRunRecord(result)

	var embed []float32
	if result.Accepted() && tc.cfg.Embedding.Enabled {
		embed = embedInstruction(ctx, tc, result.Instruction)
	}

	if err := tc.store.SaveRun(run, embed); err != nil {
		logger.Warn("Failed to record run", zap.Error(err))
	}
}

// verdictOf is nil-safe: a run can end without a report when the model
// never produced a code block.
func verdictOf(result *generator.Result) validator.Verdict {
	if result.Report == nil {
		return ""
	}
	return result.Report.Verdict
}
