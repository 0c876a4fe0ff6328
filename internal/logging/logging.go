// Package logging configures the structured logger rearfeed's control
// thread uses for startup, device events, and state-machine
// transitions.
package logging

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New builds a logger writing to stderr, at InfoLevel unless quiet or
// verbose override it. quiet drops to WarnLevel (--quiet suppresses
// tray notifications; it also quiets routine logging to match);
// verbose raises to DebugLevel.
func New(quiet, verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "rearfeed",
	})

	switch {
	case verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.WarnLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	return logger
}
