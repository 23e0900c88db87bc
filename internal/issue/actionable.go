// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

type (
	// ActionableError reports a failed xtcmod operation on a module file or a
	// repository. Resource is the file path or repository root; Issue, when
	// set, selects the catalog guidance printed in verbose mode.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("decode module").
	//		WithResource("./json.xtc").
	//		WithIssue(issue.ModuleDecodeFailedId).
	//		Wrap(cause).
	//		BuildError()
	ActionableError struct {
		Operation   string
		Resource    string
		Suggestions []string
		Cause       error
		Issue       Id
	}

	// ErrorContext collects the operation and resource up front so that each
	// failure path of a command only has to supply its cause. Build copies
	// the collected state, so one context can produce several errors.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
		issue       Id
	}
)

// NewErrorContext returns an empty builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error returns "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the error for the terminal. Suggestions follow as bullets.
// Without verbose, an attached issue is announced by a hint to rerun with
// --verbose; with verbose, the cause chain is listed one layer per line,
// each layer showing only the text it adds to the layer below.
//
//	failed to link module: app.example.org: unresolved dependency
//
//	  • Run 'xtcmod repo list' to see what the repository holds
//
//	Caused by:
//	  1. unresolved dependency
func (e *ActionableError) Format(verbose bool) string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		sb.WriteString("\n")
		for _, s := range e.Suggestions {
			sb.WriteString("\n  • " + s)
		}
	}

	if !verbose {
		if e.Issue != 0 {
			sb.WriteString("\n\nRun again with --verbose for guidance.")
		}
		return sb.String()
	}

	if chain := causeChain(e.Cause); len(chain) > 0 {
		sb.WriteString("\n\nCaused by:")
		for i, layer := range chain {
			fmt.Fprintf(&sb, "\n  %d. %s", i+1, layer)
		}
	}
	return sb.String()
}

// Guidance returns the catalog entry attached to the error, if any.
func (e *ActionableError) Guidance() (*Issue, bool) {
	if e.Issue == 0 {
		return nil, false
	}
	i := Get(e.Issue)
	return i, i != nil
}

// causeChain unwraps err layer by layer. Repository and codec errors wrap
// with "<context>: %w", so each layer is trimmed of the message of the layer
// it wraps; layers that add nothing are skipped.
func causeChain(err error) []string {
	var chain []string
	for err != nil {
		next := errors.Unwrap(err)
		msg := err.Error()
		if next != nil {
			msg = strings.TrimSuffix(msg, ": "+next.Error())
			if msg == next.Error() {
				msg = ""
			}
		}
		if msg != "" {
			chain = append(chain, msg)
		}
		err = next
	}
	return chain
}

// WithOperation sets the verb phrase, e.g. "store module".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the module file or repository root involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends a hint; it may be called repeatedly.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithIssue attaches the catalog entry rendered for the error in verbose output.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issue = id
	return c
}

// Wrap sets the cause, replacing any earlier one.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build returns the error, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: slices.Clone(c.suggestions),
		Cause:       c.cause,
		Issue:       c.issue,
	}
}

// BuildError is Build typed as error, so a missing operation yields a nil
// interface rather than a typed nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
