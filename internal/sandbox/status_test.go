package sandbox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

const successLine = statusSentinel + `{"outcome":"success","kind":"","message":""}` + "\n"

func TestStatusWriterStripsStatusLine(t *testing.T) {
	var out bytes.Buffer
	w := newStatusWriter(&out)

	_, err := w.Write([]byte("warning: slow\n" + successLine))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	require.Equal(t, "warning: slow\n", out.String())
	require.NotNil(t, w.Status())
	require.Equal(t, OutcomeSuccess, w.Status().Outcome)
}

func TestStatusWriterHandlesSplitWrites(t *testing.T) {
	var out bytes.Buffer
	w := newStatusWriter(&out)

	line := "partial" + statusSentinel + `{"outcome":"runtime_failure","kind":"NameError","message":"name 'x' is not defined"}` + "\n"
	for i := 0; i < len(line); i++ {
		_, err := w.Write([]byte{line[i]})
		require.NoError(t, err)
	}
	require.NoError(t, w.Flush())

	require.Equal(t, "partial", out.String())
	require.Equal(t, "NameError", w.Status().Kind)
}

func TestStatusWriterPassesStrayRecordSeparator(t *testing.T) {
	var out bytes.Buffer
	w := newStatusWriter(&out)

	_, err := w.Write([]byte("a\x1eb\n\x1etta-status:not json\n"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	require.Equal(t, "a\x1eb\n\x1etta-status:not json\n", out.String())
	require.Nil(t, w.Status())
}

func TestStatusWriterFlushWithoutNewline(t *testing.T) {
	var out bytes.Buffer
	w := newStatusWriter(&out)

	_, err := w.Write([]byte(successLine[:len(successLine)-1]))
	require.NoError(t, err)
	require.Nil(t, w.Status())
	require.NoError(t, w.Flush())

	require.Empty(t, out.String())
	require.NotNil(t, w.Status())
}

func TestStatusWriterFlushesPartialPrefix(t *testing.T) {
	var out bytes.Buffer
	w := newStatusWriter(&out)

	_, err := w.Write([]byte("x\x1etta"))
	require.NoError(t, err)
	require.Equal(t, "x", out.String())
	require.NoError(t, w.Flush())
	require.Equal(t, "x\x1etta", out.String())
}

func TestStatusWriterReadsUnavailableModules(t *testing.T) {
	var out bytes.Buffer
	w := newStatusWriter(&out)

	line := statusSentinel + `{"outcome":"success","kind":"","message":"","unavailable":["requests"]}` + "\n"
	_, err := w.Write([]byte(line))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	require.Empty(t, out.String())
	require.Equal(t, []string{"requests"}, w.Status().Unavailable)
}
