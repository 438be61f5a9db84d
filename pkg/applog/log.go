// Package applog provides the leveled, colourised logging used throughout
// germinate. The core never aborts on a data-level defect (a missing
// package, an unknown seed entry, a blacklist violation); it logs a
// diagnostic at the appropriate severity and keeps going, so the call
// pattern here mirrors Python Germinate's pretty_logging(): DEBUG < PROGRESS
// < INFO < WARNING < ERROR, with PROGRESS used for the once-per-seed
// "Resolving ... dependencies" headings.
package applog

import (
	"fmt"
	"os"
	"sync"
)

// Level is a logging severity, ordered the same way Python's logging module
// orders them.
type Level int

const (
	// Debug is used for per-candidate resolution detail.
	Debug Level = iota
	// Progress marks the start of a seed's germination.
	Progress
	// Info records a non-error, non-warning event worth recording.
	Info
	// Warning records a recoverable data defect (§7 MissingDependency,
	// NoAlternative, UnknownPackage, ...).
	Warning
	// Error records a more serious data defect that still does not abort
	// processing (§7 BlacklistedButSeeded, MissingSource, ...).
	Error
)

// NoColor disables ANSI colour codes, mirroring the teacher's
// --no-log-color flag (main.go's noLogColor / log.NoColor).
var NoColor bool

// MinLevel suppresses any record below it. Defaults to Info, so Debug
// detail is opt-in.
var MinLevel = Info

var mu sync.Mutex

var prefixes = map[Level]string{
	Debug:    "  ",
	Progress: "",
	Info:     "* ",
	Warning:  "! ",
	Error:    "? ",
}

var colors = map[Level]string{
	Debug:    "\x1b[2m",
	Progress: "\x1b[1m",
	Info:     "\x1b[36m",
	Warning:  "\x1b[33m",
	Error:    "\x1b[31m",
}

const colorReset = "\x1b[0m"

func log(level Level, format string, args ...interface{}) {
	if level < MinLevel {
		return
	}
	mu.Lock()
	defer mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	prefix := prefixes[level]
	if NoColor {
		fmt.Fprintf(os.Stderr, "%s%s\n", prefix, msg)
		return
	}
	fmt.Fprintf(os.Stderr, "%s%s%s%s\n", colors[level], prefix, msg, colorReset)
}

// Debugf logs resolution-detail chatter (chosen alternatives, rescue
// candidates considered).
func Debugf(format string, args ...interface{}) { log(Debug, format, args...) }

// Progressf announces the start of work on a seed.
func Progressf(format string, args ...interface{}) { log(Progress, format, args...) }

// Infof logs a routine event.
func Infof(format string, args ...interface{}) { log(Info, format, args...) }

// Warningf logs a recoverable data defect. Processing continues.
func Warningf(format string, args ...interface{}) { log(Warning, format, args...) }

// Errorf logs a more serious data defect. Processing continues; per §7 the
// core never returns an error for these.
func Errorf(format string, args ...interface{}) { log(Error, format, args...) }

// The following mirror the step-result idiom used by the teacher's
// pkg/steps (log.Info("..."); ...; return log.Failed(err)) for the outer
// cmd/ driver pipelines, which are allowed to fail a whole run.

// Step announces the start of a named pipeline step.
func Step(name string) { log(Info, "%s", name) }

// Failed logs that the current step failed and returns err unchanged, so
// callers can write "return applog.Failed(err)".
func Failed(err error) error {
	log(Error, "failed: %v", err)
	return err
}

// Done logs that the current step completed successfully.
func Done() error {
	log(Info, "done")
	return nil
}

// Skipped logs that the current step was a no-op.
func Skipped() error {
	log(Info, "skipped")
	return nil
}
