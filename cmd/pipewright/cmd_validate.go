package main

import (
	"fmt"
	"os"

	"pipewright/internal/validator"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file.py]",
	Short: "Run the validation pipeline on an existing Python file",
	Long: `Runs the full validation pipeline - Tree-sitter safety scan, syntax
check, Spark shape check, and ruff lint - on an existing file without
touching the LLM.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	pipeline := validator.NewPipeline(cfg.Validation, cfg.GetRuffTimeout(), logger)
	report, err := pipeline.Run(cmd.Context(), string(data))
	if err != nil {
		return err
	}

	switch report.Verdict {
	case validator.VerdictAccepted:
		msg := "Accepted"
		if report.LintSkipped {
			msg += warnStyle.Render(" (lint skipped)")
		}
		fmt.Println(successStyle.Render(msg))
		return nil

	case validator.VerdictNeedsLintFix:
		fmt.Println(warnStyle.Render("Lint findings:"))
		fmt.Println(report.LintFindings)
		return fmt.Errorf("validation found lint issues")

	default:
		fmt.Println(errorStyle.Render(fmt.Sprintf("Rejected (%s):", report.Verdict)))
		for _, v := range report.Violations {
			fmt.Println("  " + v.String())
		}
		return fmt.Errorf("validation rejected %s", args[0])
	}
}
