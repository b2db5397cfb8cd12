package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pipewright/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and generate jobs for new instruction files",
	Long: `Watches a directory for instruction files (*.txt, *.md). Each new or
changed file triggers a full generation run; accepted code is written next
to the instruction as <name>.py. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tc, err := buildToolchain(cfg, true)
	if err != nil {
		return err
	}
	defer tc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := watch.New(dir, func(ctx context.Context, path string) {
		handleInstructionFile(ctx, tc, path)
	}, logger)

	fmt.Println(subtleStyle.Render("Watching " + dir + " (ctrl-c to stop)"))

	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleInstructionFile runs the pipeline for one instruction file and
// writes accepted code next to it.
func handleInstructionFile(ctx context.Context, tc *toolchain, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read instruction file", zap.String("path", path), zap.Error(err))
		return
	}
	instruction := strings.TrimSpace(string(data))
	if instruction == "" {
		logger.Debug("Skipping empty instruction file", zap.String("path", path))
		return
	}

	logger.Info("Generating from instruction file", zap.String("path", path))

	result, err := tc.gen.GenerateValidated(ctx, instruction, tc.pipeline)
	recordRun(ctx, tc, result)
	if err != nil {
		logger.Error("Generation failed", zap.String("path", path), zap.Error(err))
		return
	}
	if !result.Accepted() {
		logger.Warn("Generated code rejected",
			zap.String("path", path),
			zap.String("verdict", string(result.Report.Verdict)))
		return
	}

	outPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".py"
	if err := os.WriteFile(outPath, []byte(result.Code+"\n"), 0644); err != nil {
		logger.Error("Failed to write generated job", zap.String("path", outPath), zap.Error(err))
		return
	}

	fmt.Println(successStyle.Render("Wrote " + outPath))
}
