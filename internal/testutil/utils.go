// Package testutil carries helpers shared by the package test suites.
package testutil

import (
	"bytes"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger for service and gateway constructors
// under test; output moves to stderr once the test finishes.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[go-guild test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// CapturedLogger returns a logger writing into the returned buffer,
// for tests that assert on logged output.
func CapturedLogger(t *testing.T) (*log.Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	return log.New(buf, "[go-guild test] ", log.LstdFlags), buf
}
