// Package logging provides the package-level structured logger shared by
// every storage and concurrency component.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger instance. Components tag entries with fields
// (page_id, frame_id, txn_id, rid) rather than formatting them into the
// message string.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
	}
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses a level name (trace/debug/info/warn/error) and applies it,
// keeping the current level on an unrecognized name.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		Log.Warnf("unrecognized log level %q, keeping %s", name, Log.GetLevel())
		return
	}
	Log.SetLevel(lvl)
}
