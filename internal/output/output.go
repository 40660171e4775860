// Package output handles CLI output formatting including verbose mode and progress indicators.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"medialink/internal/mirror"
)

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Quiet     bool      // Only errors and the final summary
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Whether output is a terminal
}

// Output handles formatted output with verbose and progress support.
// It implements mirror.Reporter.
type Output struct {
	config         Config
	progressActive bool
	progressWidth  int
	progressMu     sync.Mutex
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{
		config: config,
	}
}

// DefaultConfig returns a Config with sensible defaults and TTY detection.
func DefaultConfig() Config {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	return Config{
		Verbose:   false,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     isTTY,
	}
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.println(o.config.Writer, format, args...)
}

// Info prints an informational message unless quiet mode is enabled.
func (o *Output) Info(format string, args ...interface{}) {
	if o.config.Quiet {
		return
	}
	o.println(o.config.Writer, format, args...)
}

// Print prints a message regardless of quiet mode.
func (o *Output) Print(format string, args ...interface{}) {
	o.println(o.config.Writer, format, args...)
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.println(o.config.ErrWriter, format, args...)
}

func (o *Output) println(w io.Writer, format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}

// clearProgressLine clears the current progress line if active.
func (o *Output) clearProgressLine() {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.clearLocked()
}

func (o *Output) clearLocked() {
	if o.progressActive && o.progressWidth > 0 {
		fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", o.progressWidth)+"\r")
		o.progressWidth = 0
	}
}

func (o *Output) progressEnabled() bool {
	return o.config.IsTTY && !o.config.Verbose && !o.config.Quiet
}

// StartProgress begins a progress indicator session.
func (o *Output) StartProgress() {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.progressActive = true
	o.progressWidth = 0
}

// Progress rewrites the progress line in place.
func (o *Output) Progress(p mirror.Progress) {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	line := FormatProgress(p)
	pad := ""
	if o.progressWidth > len(line) {
		pad = strings.Repeat(" ", o.progressWidth-len(line))
	}
	fmt.Fprint(o.config.Writer, "\r"+line+pad)
	o.progressWidth = len(line)
}

// EndProgress clears the progress indicator.
func (o *Output) EndProgress() {
	if !o.progressEnabled() {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.clearLocked()
	o.progressActive = false
}

// File prints per-file events in verbose mode. Failures are always shown.
func (o *Output) File(e mirror.Event) {
	switch e.Outcome {
	case mirror.Failed:
		o.Error("Failed: %s (%v)", e.Source, e.Err)
	case mirror.Linked:
		o.Verbose("Linked: %s -> %s", e.Source, e.Target)
	case mirror.AlreadyLinked:
		o.Verbose("Already linked: %s", e.Target)
	case mirror.Skipped:
		o.Verbose("Skipped: %s", e.Source)
	}
}

// FormatProgress renders the progress line without the leading carriage return.
func FormatProgress(p mirror.Progress) string {
	return fmt.Sprintf("Progress: %.2f%% | Processed: %d/%d | Estimated remaining time: %.2f seconds",
		p.Percent, p.Processed, p.Total, p.Remaining.Seconds())
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
