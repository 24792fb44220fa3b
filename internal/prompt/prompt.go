// Package prompt turns a user instruction into the request text sent to the
// code generation service.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const template = `You need to come up with a Python script that can be executed right away to fulfill the following user input: "%s". ` +
	`If the task requires real-world data (like weather, news, etc.), use the 'requests' library to fetch it from a public API. ` +
	`If the information can be obtained locally (like the current time or date), use Python's standard libraries (like datetime) instead of an API. ` +
	`If the task requires file, image, or music access, use the built-in 'open', 'os', or pre-imported libraries directly (no import statement needed). ` +
	`Do not use hardcoded or made-up values. ` +
	`Make sure to return only the python code without any additional text or explanation.`

// Feedback describes the attempt that failed before the next request.
type Feedback struct {
	Code    string
	Kind    string
	Message string
}

// Build embeds instruction verbatim into the fixed generation template.
func Build(instruction string) string {
	return fmt.Sprintf(template, instruction)
}

// BuildWithFeedback extends Build with the previous attempt's code and error
// so the generator can correct itself.
func BuildWithFeedback(instruction string, fb Feedback) string {
	var b strings.Builder
	b.WriteString(Build(instruction))

	code := strings.TrimSpace(fb.Code)
	if code == "" {
		code = "(no code)"
	}
	fmt.Fprintf(&b, "\n\nThe previous script failed.\nPrevious script:\n%s\n", truncateForPrompt(code, 2000))
	errText := fb.Kind
	if msg := strings.TrimSpace(fb.Message); msg != "" {
		if errText != "" {
			errText += ": "
		}
		errText += msg
	}
	if errText != "" {
		fmt.Fprintf(&b, "Error: %s\n", truncateForPrompt(errText, 800))
	}
	b.WriteString("Return a corrected script, only the python code.")
	return b.String()
}

func truncateForPrompt(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "... [truncated]"
}
