package uhfmac

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput runs command with os.Stdout redirected and returns what it printed.
func captureOutput(t *testing.T, command func()) string {
	t.Helper()

	var oldStdout = os.Stdout
	defer func() {
		os.Stdout = oldStdout
	}()

	var r, w, pipeErr = os.Pipe()
	require.NoError(t, pipeErr)

	os.Stdout = w

	var done = make(chan []byte)
	go func() {
		var b, _ = io.ReadAll(r)
		done <- b
	}()

	command()

	w.Close() //nolint:gosec

	os.Stdout = oldStdout

	return string(<-done)
}

// AssertOutputContains is used by the command line tool tests.
func AssertOutputContains(t *testing.T, command func(), expectedOutputContains string) {
	t.Helper()

	assert.Contains(t, captureOutput(t, command), expectedOutputContains)
}
