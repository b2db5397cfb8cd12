package generator

import (
	"fmt"
	"strings"
)

// systemPrompt frames every generation request.
const systemPrompt = `You are an expert data engineer.
You write clean, production ready PySpark code.

Requirements:
- Use Spark best practices
- Add minimal but clear comments
- Do not include example data
- Never touch the filesystem or network outside of Spark reads and writes
- Return only valid Python code inside a single ` + "```python" + ` fenced block`

// Example is a past instruction/code pair used for few-shot prompting.
type Example struct {
	Instruction string
	Code        string
}

// buildGeneratePrompt assembles the user prompt for a fresh generation,
// optionally preceded by similar accepted examples from past runs.
func buildGeneratePrompt(instruction string, examples []Example) string {
	var sb strings.Builder

	if len(examples) > 0 {
		sb.WriteString("Here are previously accepted jobs for similar instructions:\n\n")
		for _, ex := range examples {
			sb.WriteString(fmt.Sprintf("Instruction: %s\n```python\n%s\n```\n\n", ex.Instruction, ex.Code))
		}
		sb.WriteString("Now write a new job for the following instruction.\n\n")
	}

	sb.WriteString("Instruction: ")
	sb.WriteString(instruction)
	return sb.String()
}

// buildRepairPrompt asks the model to fix lint findings in code it
// previously generated.
func buildRepairPrompt(code, lintFindings string) string {
	return fmt.Sprintf(`You previously generated this PySpark code:

`+"```python\n%s\n```"+`

Ruff reported the following issues:
%s

Fix ALL ruff issues.
Return only the corrected Python code inside a `+"```python"+` fenced block with no explanation.`,
		code, lintFindings)
}
