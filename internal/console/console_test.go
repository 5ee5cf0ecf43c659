package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleBuffersUntilFlush(t *testing.T) {
	var out, errw bytes.Buffer
	c := New(&out, &errw)

	c.Printf("Re exec'ing:\n\t%s", "delve-session ./prog")
	assert.Empty(t, out.String())

	require.NoError(t, c.Flush())
	assert.Equal(t, "Re exec'ing:\n\tdelve-session ./prog\n", out.String())
}

func TestConsoleErrorFlushesMessagesFirst(t *testing.T) {
	var out, errw bytes.Buffer
	c := New(&out, &errw)

	c.Print("Breakpoint 1 condition: b == 5")
	c.Errorf("Program %s doesn't exist", "blabla")

	assert.Equal(t, "Breakpoint 1 condition: b == 5\n", out.String())
	assert.Equal(t, "Program blabla doesn't exist\n", errw.String())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Print("a")
	r.Printf("b %d", 2)
	r.Error("c")
	require.NoError(t, r.Flush())

	assert.Equal(t, "a\nb 2", r.Output())
	assert.Equal(t, "c", r.ErrorOutput())
	assert.Equal(t, 1, r.Flushes)
}
