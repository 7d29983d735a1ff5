package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger wired to stdout so log lines interleave with
// test output. Tests that assert on log content swap the writer themselves.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[dmchat-test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
