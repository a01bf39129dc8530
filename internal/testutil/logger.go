package testutil

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// NewTestLogger creates a logger that discards output.
func NewTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// NewCapturingLogger creates a silent logger whose entries can be asserted on.
func NewCapturingLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	return log, hook
}

// CountLevel returns how many captured entries were logged at level.
func CountLevel(hook *test.Hook, level logrus.Level) int {
	n := 0

	for _, entry := range hook.AllEntries() {
		if entry.Level == level {
			n++
		}
	}

	return n
}
