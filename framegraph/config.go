// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration of a frame-graph compiler
// instance: where grammar files live, where pass/frame-graph source
// files live, and which extensions identify them.
type Config struct {
	GrammarDir string `toml:"grammar_dir"`
	PassDir    string `toml:"pass_dir"`

	PreprocessorGrammar string `toml:"preprocessor_grammar"`
	PassGrammar         string `toml:"pass_grammar"`
	FrameGraphGrammar   string `toml:"framegraph_grammar"`

	PassExt       string `toml:"pass_ext"`       // e.g. ".pass"
	FrameGraphExt string `toml:"framegraph_ext"` // e.g. ".fg"
}

// DecodeConfigFile reads and decodes a Config from a TOML file at
// path.
func DecodeConfigFile(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err != nil {
		return cfg, newFgErrCause(ErrConfigMissing, "config file "+path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, newFgErrCause(ErrConfigMissing, "decode config "+path, err)
	}
	return cfg, nil
}

// Validate checks that every path Config names actually exists on
// disk, failing with ErrConfigMissing naming the first absent one.
func (c Config) Validate() error {
	for _, p := range []string{
		c.GrammarDir,
		c.PassDir,
	} {
		if p == "" {
			return newFgErr(ErrConfigMissing, "empty configuration path")
		}
		if _, err := os.Stat(p); err != nil {
			return newFgErrCause(ErrConfigMissing, "path "+p, err)
		}
	}
	for _, f := range []string{c.PreprocessorGrammar, c.PassGrammar, c.FrameGraphGrammar} {
		full := c.GrammarDir + "/" + f
		if _, err := os.Stat(full); err != nil {
			return newFgErrCause(ErrConfigMissing, "grammar file "+full, err)
		}
	}
	return nil
}
