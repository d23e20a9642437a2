// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import "go.uber.org/zap"

// logger receives structured diagnostics for parse errors, shader
// compiler output and hot-reload events. It defaults to a no-op
// logger so the package is silent unless a caller opts in.
var logger *zap.Logger = zap.NewNop()

// SetLogger installs l as the package-level diagnostics sink. Passing
// nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
