// SPDX-License-Identifier: MPL-2.0

// Package diag collects structural validation diagnostics.
//
// Producers report through the Sink interface; the sink decides whether the
// producer should stop early, typically once an error threshold is reached.
package diag

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"
)

const (
	// SeverityNone is the zero severity; it is never logged.
	SeverityNone Severity = iota
	// SeverityInfo is an informational note.
	SeverityInfo
	// SeverityWarning reports a suspicious but legal structure.
	SeverityWarning
	// SeverityError reports an invalid structure.
	SeverityError
	// SeverityFatal reports a problem that must stop processing immediately.
	SeverityFatal
)

// Diagnostic codes reported by the module model and linker.
const (
	CodeAnnotationNotMixin     = "annotation-not-mixin"
	CodeSiblingsOverlap        = "siblings-overlap"
	CodeFingerprintNoVersion   = "fingerprint-no-version"
	CodeModuleNotFound         = "module-not-found"
	CodeVersionNotAllowed      = "version-not-allowed"
	CodeDependencyCycle        = "dependency-cycle"
	CodeConditionIndeterminate = "condition-indeterminate"
)

// ErrValidation is wrapped by the error returned from Collector.Err.
var ErrValidation = errors.New("validation failed")

var messages = map[string]string{
	CodeAnnotationNotMixin:     "annotation %v is not a mixin",
	CodeSiblingsOverlap:        "conditional siblings %v and %v may both be present",
	CodeFingerprintNoVersion:   "fingerprint %v does not name any allowed version",
	CodeModuleNotFound:         "module %v is not in the repository",
	CodeVersionNotAllowed:      "module %v version %v is not allowed by the fingerprint",
	CodeDependencyCycle:        "module dependencies form a cycle: %v",
	CodeConditionIndeterminate: "condition %v cannot be analysed: %v",
}

type (
	// Severity orders diagnostics from informational to fatal.
	Severity int

	// Diagnostic is one reported problem.
	Diagnostic struct {
		Severity Severity
		Code     string
		Params   []any
		// Related identifies the structure the diagnostic is about, if any.
		Related string
	}

	// Sink receives diagnostics. Log returns true when the caller should abort.
	Sink interface {
		Log(sev Severity, code string, params []any, related string) bool
	}

	// Collector is a Sink that retains diagnostics and asks callers to abort
	// once maxErrors errors have been logged or a fatal diagnostic arrives.
	// It is safe for concurrent use.
	Collector struct {
		mu        sync.Mutex
		maxErrors int
		diags     []Diagnostic
		errors    int
		aborted   bool
		logger    *log.Logger
	}

	// Option configures a Collector.
	Option func(*Collector)

	// ValidationError summarizes the errors held by a Collector.
	ValidationError struct {
		Diagnostics []Diagnostic
	}

	discard struct{}
)

// Discard is a Sink that drops every diagnostic and never aborts.
var Discard Sink = discard{}

func (discard) Log(Severity, string, []any, string) bool { return false }

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "none"
	}
}

// Message renders the diagnostic text without severity or location.
func (d Diagnostic) Message() string {
	if format, ok := messages[d.Code]; ok {
		return fmt.Sprintf(format, d.Params...)
	}
	if len(d.Params) == 0 {
		return d.Code
	}
	return d.Code + ": " + fmt.Sprint(d.Params...)
}

// String renders "severity [code] related: message".
func (d Diagnostic) String() string {
	var sb strings.Builder
	sb.WriteString(d.Severity.String())
	sb.WriteString(" [")
	sb.WriteString(d.Code)
	sb.WriteString("] ")
	if d.Related != "" {
		sb.WriteString(d.Related)
		sb.WriteString(": ")
	}
	sb.WriteString(d.Message())
	return sb.String()
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		lines = append(lines, d.String())
	}
	return fmt.Sprintf("%d validation error(s):\n  %s", len(e.Diagnostics), strings.Join(lines, "\n  "))
}

// Unwrap returns ErrValidation so callers can use errors.Is for programmatic detection.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// WithLogger echoes every diagnostic to logger as it arrives.
func WithLogger(logger *log.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// NewCollector returns a Collector that aborts after maxErrors errors. A
// maxErrors of zero or less never aborts on count alone.
func NewCollector(maxErrors int, opts ...Option) *Collector {
	c := &Collector{maxErrors: maxErrors}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Log records a diagnostic and reports whether the caller should abort.
func (c *Collector) Log(sev Severity, code string, params []any, related string) bool {
	if sev == SeverityNone {
		return c.IsAborting()
	}
	d := Diagnostic{Severity: sev, Code: code, Params: slices.Clone(params), Related: related}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.diags = append(c.diags, d)
	if sev >= SeverityError {
		c.errors++
	}
	if sev == SeverityFatal || (c.maxErrors > 0 && c.errors >= c.maxErrors) {
		c.aborted = true
	}
	if c.logger != nil {
		c.logAt(d)
	}
	return c.aborted
}

func (c *Collector) logAt(d Diagnostic) {
	kv := []any{"code", d.Code}
	if d.Related != "" {
		kv = append(kv, "structure", d.Related)
	}
	switch d.Severity {
	case SeverityInfo:
		c.logger.Info(d.Message(), kv...)
	case SeverityWarning:
		c.logger.Warn(d.Message(), kv...)
	default:
		c.logger.Error(d.Message(), kv...)
	}
}

// Diagnostics returns every diagnostic logged so far, in order.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.diags)
}

// Count returns the number of diagnostics with exactly the given severity.
func (c *Collector) Count(sev Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// HasErrors reports whether an error or fatal diagnostic was logged.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors > 0
}

// MaxSeverity returns the highest severity logged, or SeverityNone.
func (c *Collector) MaxSeverity() Severity {
	c.mu.Lock()
	defer c.mu.Unlock()
	highest := SeverityNone
	for _, d := range c.diags {
		highest = max(highest, d.Severity)
	}
	return highest
}

// IsAborting reports whether the collector has asked callers to stop.
func (c *Collector) IsAborting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Err returns a *ValidationError listing the error and fatal diagnostics, or
// nil when there are none.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errors == 0 {
		return nil
	}
	var errs []Diagnostic
	for _, d := range c.diags {
		if d.Severity >= SeverityError {
			errs = append(errs, d)
		}
	}
	return &ValidationError{Diagnostics: errs}
}
