package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestBuildEmbedsInstructionVerbatim(t *testing.T) {
	out := Build(`print "hi" twice`)
	require.Contains(t, out, `user input: "print "hi" twice".`)
	require.True(t, strings.HasPrefix(out, "You need to come up with a Python script"))
}

func TestBuildStatesConstraints(t *testing.T) {
	out := Build("what time is it")
	require.Contains(t, out, "executed right away")
	require.Contains(t, out, "'requests' library")
	require.Contains(t, out, "standard libraries (like datetime)")
	require.Contains(t, out, "no import statement needed")
	require.Contains(t, out, "return only the python code")
}

func TestBuildIsDeterministic(t *testing.T) {
	require.Equal(t, Build("list files"), Build("list files"))
	require.NotEqual(t, Build("list files"), Build("list dirs"))
}

func TestBuildWithFeedback(t *testing.T) {
	out := BuildWithFeedback("get weather", Feedback{
		Code:    "import socket",
		Kind:    "ImportNotPermitted",
		Message: "Import of 'socket' is not allowed in sandbox.",
	})
	require.True(t, strings.HasPrefix(out, Build("get weather")))
	require.Contains(t, out, "Previous script:\nimport socket\n")
	require.Contains(t, out, "Error: ImportNotPermitted: Import of 'socket' is not allowed in sandbox.\n")

	out = BuildWithFeedback("get weather", Feedback{Kind: "EmptySource"})
	require.Contains(t, out, "(no code)")
	require.Contains(t, out, "Error: EmptySource\n")
}

func TestTruncateForPrompt(t *testing.T) {
	require.Equal(t, "abc", truncateForPrompt("abc", 10))
	require.Equal(t, "ab... [truncated]", truncateForPrompt("abcdef", 2))

	// "é" is two bytes; a cut inside it keeps the whole rune out.
	cut := truncateForPrompt("aé", 2)
	require.Equal(t, "a... [truncated]", cut)
	require.True(t, utf8.ValidString(cut))
	require.Equal(t, "日本... [truncated]", truncateForPrompt("日本語", 7))
}
