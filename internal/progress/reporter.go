// Package progress defines the pluggable sink the provisioning core emits
// byte-progress and lifecycle events to. Rendering (spinners, bars) is
// entirely the caller's concern; the core never draws anything itself —
// see spec.md §9 ("Global multi-progress reporter").
package progress

import (
	"io"

	"github.com/mattn/go-isatty"
)

// Reporter receives progress events during download and extraction. All
// methods must be safe to call from multiple goroutines: the launch
// pipeline fans out downloads in parallel (spec §4.11).
type Reporter interface {
	// Start announces a new named unit of work (e.g. a library name) with
	// an optional known total size in bytes (0 if unknown, e.g. a
	// chunked response without Content-Length).
	Start(name string, totalBytes int64)

	// Advance reports additional bytes processed for name since the last
	// call.
	Advance(name string, deltaBytes int64)

	// Done marks name as finished, successfully or not.
	Done(name string, err error)
}

// Nop discards every event. It is the default when a caller doesn't supply
// a Reporter.
var Nop Reporter = nopReporter{}

type nopReporter struct{}

func (nopReporter) Start(string, int64)   {}
func (nopReporter) Advance(string, int64) {}
func (nopReporter) Done(string, error)    {}

// CountingReader wraps r, reporting every Read to reporter under name. ETA
// rendering, if any, is the Reporter implementation's job: this type only
// ever hands over byte counts.
type CountingReader struct {
	io.Reader
	Name     string
	Reporter Reporter
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	if n > 0 {
		c.Reporter.Advance(c.Name, int64(n))
	}
	return n, err
}

// IsInteractive reports whether f looks like a terminal a human is
// watching, the way a Reporter implementation decides whether to draw
// bars/spinners at all rather than logging plain lines.
func IsInteractive(f interface{ Fd() uintptr }) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
