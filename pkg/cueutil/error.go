// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrFileTooLarge is returned by CheckFileSize.
var ErrFileTooLarge = errors.New("file too large")

// FormatError rewrites a CUE error as "<file>: <path>: <message>", one line
// per underlying error, with array indices shown as path[N]. Errors that do
// not come from CUE are wrapped unchanged.
//
//	config.cue: repository.compression: 3 errors in empty disjunction
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	var ce cueerrors.Error
	if !errors.As(err, &ce) {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	all := cueerrors.Errors(err)
	if len(all) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(all))
	for _, e := range all {
		path := formatPath(cueerrors.Path(e))
		msg := e.Error()
		if path != "" && strings.HasPrefix(msg, path) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		if path != "" {
			msg = path + ": " + msg
		}
		lines = append(lines, msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath turns ["visible", "0", "path"] into "visible[0].path".
func formatPath(path []string) string {
	var sb strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize reports ErrFileTooLarge when data exceeds maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: %w: %d bytes exceeds maximum %d bytes", filename, ErrFileTooLarge, len(data), maxSize)
	}
	return nil
}
