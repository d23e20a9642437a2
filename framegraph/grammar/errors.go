// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package grammar

import "fmt"

// ParseError describes a syntax error encountered while parsing a
// preprocessor, pass or frame-graph source file. It always carries a
// file/line/column so that callers can log the location, as required
// for the InvalidPassSource error kind.
type ParseError struct {
	Pos    Pos
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Reason)
}

func errAt(pos Pos, format string, args ...any) error {
	return &ParseError{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}
