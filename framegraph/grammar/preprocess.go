// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package grammar

import (
	"fmt"
	"regexp"
)

// Include records a single #include directive as recognized by the
// preprocessor grammar.
type Include struct {
	Filename string // "<name>.<ext>", without the surrounding '<' '>'
	Pos      int    // byte offset of the '#' in the source
	Len      int    // length of the whole directive, "#include <name.ext>"
}

var includeRe = regexp.MustCompile(`#include\s*<\s*([A-Za-z0-9_.\-/]+)\s*>`)

// ScanIncludes recognizes every #include <name>.<ext> directive in src
// and records it as {filename, byte-position, length}, in source order.
// It does not substitute anything; see Preprocess.
func ScanIncludes(src string) []Include {
	matches := includeRe.FindAllStringSubmatchIndex(src, -1)
	out := make([]Include, 0, len(matches))
	for _, m := range matches {
		out = append(out, Include{
			Filename: src[m[2]:m[3]],
			Pos:      m[0],
			Len:      m[1] - m[0],
		})
	}
	return out
}

// Preprocess substitutes every top-level #include directive in src with
// the contents returned by resolve, and returns the rebuilt string.
//
// Only one include depth is supported. If any file returned by resolve
// itself contains a #include directive, Preprocess fails rather than
// silently recursing (see DESIGN.md, "Preprocessor include depth").
//
// Substitution is performed in descending position order so that
// offsets recorded for the directives still to be substituted remain
// valid within the (shrinking) remaining prefix.
func Preprocess(filename, src string, resolve func(name string) (string, error)) (string, error) {
	incs := ScanIncludes(src)
	if len(incs) == 0 {
		return src, nil
	}
	out := src
	for i := len(incs) - 1; i >= 0; i-- {
		inc := incs[i]
		body, err := resolve(inc.Filename)
		if err != nil {
			return "", fmt.Errorf("grammar: preprocess %s: include %q: %w", filename, inc.Filename, err)
		}
		if nested := ScanIncludes(body); len(nested) > 0 {
			return "", errAt(Pos{File: inc.Filename, Line: 1, Col: 1},
				"nested #include is not supported (one include depth only)")
		}
		out = out[:inc.Pos] + body + out[inc.Pos+inc.Len:]
	}
	return out, nil
}
