// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxFileSize bounds the size of documents ParseAndDecode accepts.
const DefaultMaxFileSize int64 = 1 << 20

type (
	// ParseResult contains the result of a successful parse.
	ParseResult[T any] struct {
		// Value is the decoded Go value.
		Value *T
		// Unified is the schema-unified CUE value.
		Unified cue.Value
	}

	// Option configures ParseAndDecode.
	Option func(*options)

	options struct {
		filename    string
		maxFileSize int64
		concrete    bool
	}
)

func defaultOptions() options {
	return options{
		filename:    "<input>",
		maxFileSize: DefaultMaxFileSize,
		concrete:    true,
	}
}

// WithFilename sets the file name used in error messages.
func WithFilename(name string) Option {
	return func(o *options) {
		if name != "" {
			o.filename = name
		}
	}
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithConcrete controls whether every field of the unified value must be
// concrete. Documents with optional fields decode with concrete set to false.
func WithConcrete(concrete bool) Option {
	return func(o *options) { o.concrete = concrete }
}

// ParseAndDecode compiles schema, unifies data with the definition at
// schemaPath, validates the result and decodes it into a T.
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if root.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, root.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(o.filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), o.filename)
	}

	unified := root.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return nil, FormatError(err, o.filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, o.filename)
	}
	return &ParseResult[T]{Value: &result, Unified: unified}, nil
}
