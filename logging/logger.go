// Package logging sets up the module-wide structured logger. Every
// collaborator that logs (buffer pool, pager, index) does so through L
// rather than fmt.Printf, so output is consistently leveled and
// timestamped regardless of which package emits it.
package logging

import (
	"os"

	logrus "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// L is the shared logger. Level defaults to Info; set BTREEIDX_DEBUG=1 in
// the environment to see per-page allocation and node-split tracing.
var L = newLogger()

func newLogger() *logrus.Logger {
	l := &logrus.Logger{
		Out:   os.Stderr,
		Level: logrus.InfoLevel,
		Formatter: &prefixed.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			ForceFormatting: true,
		},
	}
	if os.Getenv("BTREEIDX_DEBUG") != "" {
		l.Level = logrus.DebugLevel
	}
	return l
}

// WithField is shorthand for L.WithField, used by collaborators that want
// to tag every line with a component name.
func WithField(key string, value interface{}) *logrus.Entry {
	return L.WithField(key, value)
}
