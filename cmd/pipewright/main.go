// pipewright turns natural-language instructions into validated PySpark
// jobs using a local or hosted LLM.
package main

import (
	"fmt"
	"os"

	"pipewright/internal/config"
	"pipewright/internal/embedding"
	"pipewright/internal/generator"
	"pipewright/internal/llm"
	"pipewright/internal/store"
	"pipewright/internal/validator"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	modelFlag  string
	provider   string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pipewright",
	Short: "pipewright - instruction-to-PySpark generation agent",
	Long: `pipewright is a CLI agent for data engineers.

Given a natural-language instruction it generates a PySpark job with an LLM
(local Ollama by default, Google Gemini with an API key), then runs the
result through a validation pipeline: a Tree-sitter safety scan for
forbidden imports and calls, a syntax check, Spark shape checks, and ruff
linting with an automatic LLM repair loop.

Every run is recorded in a local SQLite history; accepted runs feed back
into future prompts as few-shot examples.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	if modelFlag != "" {
		cfg.LLM.Model = modelFlag
	}
	return cfg, nil
}

// toolchain bundles everything a generation run needs.
type toolchain struct {
	cfg      *config.Config
	store    *store.Store
	embedder embedding.Engine
	gen      *generator.Generator
	pipeline *validator.Pipeline
}

// buildToolchain wires client, history, generator and validation pipeline
// from config. When withHistory is false the store stays closed and
// few-shot retrieval is disabled.
func buildToolchain(cfg *config.Config, withHistory bool) (*toolchain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.LLM, cfg.GetLLMTimeout(), logger)
	if err != nil {
		return nil, err
	}

	var st *store.Store
	var engine embedding.Engine
	var history generator.ExampleSource
	if withHistory {
		st, err = store.Open(cfg.Storage.DatabasePath, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Embedding.Enabled {
			engine = embedding.NewOllamaEngine(cfg.Embedding.BaseURL, cfg.Embedding.Model)
			history = generator.NewStoreExampleSource(st, engine, logger)
		}
	}

	return &toolchain{
		cfg:      cfg,
		store:    st,
		embedder: engine,
		gen:      generator.New(client, history, cfg.LLM.MaxAttempts, logger),
		pipeline: validator.NewPipeline(cfg.Validation, cfg.GetRuffTimeout(), logger),
	}, nil
}

// Close releases toolchain resources.
func (t *toolchain) Close() {
	if t.store != nil {
		_ = t.store.Close()
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "override the LLM model")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "override the LLM provider (ollama, gemini)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
