// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/smartens/q2re/framegraph/grammar"
)

// Build performs the full source-to-graph pipeline (§2's data-flow
// line: "source files → A → B (validate) → C → D → frame graph"):
// read and preprocess every pass file and the single frame-graph file
// in cfg.PassDir, validate resources, compile each pass, and assemble
// the ordered Graph in frame-graph order.
func (b *Builder) Build(drawAreaW, drawAreaH int) (*Graph, error) {
	passFiles, fgFile, err := readPassDir(b.cfg)
	if err != nil {
		return nil, err
	}

	fgSrc, err := os.ReadFile(fgFile)
	if err != nil {
		return nil, newFgErrCause(ErrConfigMissing, "read frame-graph file "+fgFile, err)
	}
	fg, err := grammar.ParseFrameGraph(filepath.Base(fgFile), string(fgSrc))
	if err != nil {
		logParseError(err)
		return nil, newFgErrCause(ErrInvalidPassSource, "parse frame-graph file", err)
	}

	parsed := make(map[string]*grammar.PassFile, len(passFiles))
	for name, path := range passFiles {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, newFgErrCause(ErrConfigMissing, "read pass file "+path, err)
		}
		full, err := grammar.Preprocess(path, string(src), includeResolver(b.cfg))
		if err != nil {
			return nil, newFgErrCause(ErrInvalidPassSource, "preprocess "+path, err)
		}
		pf, err := grammar.ParsePass(name, full)
		if err != nil {
			logParseError(err)
			return nil, newFgErrCause(ErrInvalidPassSource, "parse pass "+path, err)
		}
		parsed[name] = pf
	}

	validator := newGlobalValidator()
	for _, name := range fg.PassNames {
		pf, ok := parsed[name]
		if !ok {
			return nil, newFgErr(ErrInvalidPassSource, "frame graph references undeclared pass "+name)
		}
		if err := validator.Validate(name, pf.Input, pf.Resources); err != nil {
			return nil, err
		}
	}

	graph := NewGraph()
	for _, name := range fg.PassNames {
		pf := parsed[name]
		pass, err := b.compl.compilePass(pf, drawAreaW, drawAreaH)
		if err != nil {
			return nil, err
		}
		graph.Passes = append(graph.Passes, pass)
	}
	return graph, nil
}

// readPassDir scans cfg.PassDir for pass files (cfg.PassExt) and the
// single frame-graph file (cfg.FrameGraphExt).
func readPassDir(cfg Config) (passFiles map[string]string, fgFile string, err error) {
	entries, readErr := os.ReadDir(cfg.PassDir)
	if readErr != nil {
		return nil, "", newFgErrCause(ErrConfigMissing, "read pass directory "+cfg.PassDir, readErr)
	}
	passFiles = map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		full := filepath.Join(cfg.PassDir, name)
		switch {
		case strings.HasSuffix(name, cfg.FrameGraphExt):
			if fgFile != "" {
				return nil, "", newFgErr(ErrConfigMissing, "multiple frame-graph files in "+cfg.PassDir)
			}
			fgFile = full
		case strings.HasSuffix(name, cfg.PassExt):
			stem := strings.TrimSuffix(name, cfg.PassExt)
			passFiles[stem] = full
		}
	}
	if fgFile == "" {
		return nil, "", newFgErr(ErrConfigMissing, "no frame-graph file in "+cfg.PassDir)
	}
	return passFiles, fgFile, nil
}

// includeResolver resolves a preprocessor #include directive's
// <name.ext> against cfg.PassDir.
func includeResolver(cfg Config) func(name string) (string, error) {
	return func(name string) (string, error) {
		data, err := os.ReadFile(filepath.Join(cfg.PassDir, name))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func logParseError(err error) {
	if pe, ok := err.(*grammar.ParseError); ok {
		logger.Sugar().Errorw("parse error", "file", pe.Pos.File, "line", pe.Pos.Line, "col", pe.Pos.Col, "reason", pe.Reason)
	}
}
