package validator

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoCodeBlock is returned when a completion contains no fenced Python block.
var ErrNoCodeBlock = errors.New("no fenced python code block in completion")

var fenceRe = regexp.MustCompile("(?s)```(?:python|py|Python)\\s?(.*?)```")

// ExtractPythonCode extracts the Python source from an LLM completion.
// Models are instructed to answer with a single fenced block but sometimes
// emit several (e.g. a corrected version after prose); the last block wins.
func ExtractPythonCode(completion string) (string, error) {
	matches := fenceRe.FindAllStringSubmatch(completion, -1)
	if len(matches) == 0 {
		return "", ErrNoCodeBlock
	}

	code := strings.TrimSpace(matches[len(matches)-1][1])
	if code == "" {
		return "", ErrNoCodeBlock
	}

	return code, nil
}
