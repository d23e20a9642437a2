// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package grammar

import (
	"strings"
	"text/scanner"
)

// ParseFrameGraph parses the frame-graph grammar: an ordered list of
// bare pass names, one per line or comma-separated.
func ParseFrameGraph(filename, src string) (*FrameGraphFile, error) {
	t := newTokenizer(filename, strings.NewReader(src))
	fg := &FrameGraphFile{}
	if _, _, pos := t.Peek(); true {
		fg.Pos = pos
	}
	for {
		text, tok, pos := t.Next()
		if tok == scanner.EOF {
			break
		}
		if tok == ',' {
			continue
		}
		if tok != scanner.Ident {
			return nil, errAt(pos, "expected pass name, got %q", text)
		}
		fg.PassNames = append(fg.PassNames, text)
	}
	if len(fg.PassNames) == 0 {
		return nil, errAt(fg.Pos, "frame-graph file lists no passes")
	}
	return fg, nil
}
