// Package generator turns natural-language instructions into validated
// PySpark jobs through a bounded generate / validate / repair loop.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pipewright/internal/embedding"
	"pipewright/internal/llm"
	"pipewright/internal/store"
	"pipewright/internal/validator"

	"go.uber.org/zap"
)

// ErrMaxAttemptsExceeded is returned when the repair loop runs out of
// attempts without producing accepted code.
var ErrMaxAttemptsExceeded = errors.New("max generation attempts exceeded")

// ErrEmptyInstruction is returned for blank instructions.
var ErrEmptyInstruction = errors.New("instruction is empty")

// fewShotLimit caps how many past runs are injected into the prompt.
const fewShotLimit = 3

// ExampleSource retrieves accepted past runs similar to an instruction.
type ExampleSource interface {
	SimilarExamples(ctx context.Context, instruction string, k int) ([]Example, error)
}

// Result is the outcome of a validated generation.
type Result struct {
	Instruction string
	Model       string
	Completion  string            // raw LLM output of the final attempt
	Code        string            // extracted Python source
	Report      *validator.Report // validation report of the final attempt
	Attempts    int
}

// Accepted reports whether the final code passed validation.
func (r *Result) Accepted() bool {
	return r.Report != nil && r.Report.Accepted()
}

// Generator drives the LLM and the repair loop.
type Generator struct {
	client      llm.Client
	history     ExampleSource // optional
	logger      *zap.Logger
	maxAttempts int
}

// New creates a Generator. history may be nil to disable few-shot prompting.
func New(client llm.Client, history ExampleSource, maxAttempts int, logger *zap.Logger) *Generator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:      client,
		history:     history,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Generate produces a single completion for the instruction and extracts
// the fenced Python block from it.
func (g *Generator) Generate(ctx context.Context, instruction string) (completion, code string, err error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return "", "", ErrEmptyInstruction
	}

	var examples []Example
	if g.history != nil {
		examples, err = g.history.SimilarExamples(ctx, instruction, fewShotLimit)
		if err != nil {
			// Retrieval is best-effort; generation proceeds without it.
			g.logger.Warn("Few-shot retrieval failed", zap.Error(err))
			examples = nil
		}
	}

	g.logger.Info("Generating Spark job",
		zap.String("model", g.client.Model()),
		zap.Int("few_shot", len(examples)))

	completion, err = g.client.CompleteWithSystem(ctx, systemPrompt, buildGeneratePrompt(instruction, examples))
	if err != nil {
		return "", "", fmt.Errorf("generation failed: %w", err)
	}

	code, err = validator.ExtractPythonCode(completion)
	if err != nil {
		return completion, "", err
	}
	return completion, code, nil
}

// Repair asks the model to fix lint findings in previously generated code.
func (g *Generator) Repair(ctx context.Context, code, lintFindings string) (completion, fixed string, err error) {
	g.logger.Info("Requesting lint repair", zap.String("model", g.client.Model()))

	completion, err = g.client.CompleteWithSystem(ctx, systemPrompt, buildRepairPrompt(code, lintFindings))
	if err != nil {
		return "", "", fmt.Errorf("repair failed: %w", err)
	}

	fixed, err = validator.ExtractPythonCode(completion)
	if err != nil {
		return completion, "", err
	}
	return completion, fixed, nil
}

// GenerateValidated runs the full loop: generate, validate, and repair lint
// findings until the code is accepted or attempts run out. Safety, syntax
// and shape rejections are terminal; only lint findings go back to the
// model.
func (g *Generator) GenerateValidated(ctx context.Context, instruction string, pipeline *validator.Pipeline) (*Result, error) {
	result := &Result{
		Instruction: strings.TrimSpace(instruction),
		Model:       g.client.Model(),
	}

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		result.Attempts = attempt

		var completion, code string
		var err error
		if attempt == 1 {
			completion, code, err = g.Generate(ctx, instruction)
		} else {
			completion, code, err = g.Repair(ctx, result.Code, result.Report.LintFindings)
		}
		result.Completion = completion
		if err != nil {
			return result, err
		}
		result.Code = code

		report, err := pipeline.Run(ctx, code)
		if err != nil {
			return result, fmt.Errorf("validation failed: %w", err)
		}
		result.Report = report

		switch {
		case report.Accepted():
			g.logger.Info("Code accepted", zap.Int("attempts", attempt))
			return result, nil
		case report.Repairable():
			g.logger.Info("Lint findings, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max", g.maxAttempts))
		default:
			// Unsafe, syntax or shape rejection. Never fed back to the
			// model for repair.
			g.logger.Warn("Code rejected",
				zap.String("verdict", string(report.Verdict)),
				zap.Int("violations", len(report.Violations)))
			return result, nil
		}
	}

	return result, ErrMaxAttemptsExceeded
}

// storeExampleSource retrieves few-shot examples from the run history via
// instruction embeddings.
type storeExampleSource struct {
	store  *store.Store
	engine embedding.Engine
	logger *zap.Logger
}

// NewStoreExampleSource builds an ExampleSource over the run history.
// Returns nil when either dependency is missing so callers can pass the
// result straight to New.
func NewStoreExampleSource(st *store.Store, engine embedding.Engine, logger *zap.Logger) ExampleSource {
	if st == nil || engine == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &storeExampleSource{store: st, engine: engine, logger: logger}
}

func (s *storeExampleSource) SimilarExamples(ctx context.Context, instruction string, k int) ([]Example, error) {
	vec, err := s.engine.Embed(ctx, instruction)
	if err != nil {
		return nil, fmt.Errorf("failed to embed instruction: %w", err)
	}

	similar, err := s.store.SearchSimilar(vec, k)
	if err != nil {
		return nil, err
	}

	examples := make([]Example, 0, len(similar))
	for _, sr := range similar {
		examples = append(examples, Example{
			Instruction: sr.Run.Instruction,
			Code:        sr.Run.Code,
		})
	}
	return examples, nil
}
