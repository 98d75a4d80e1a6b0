// Package logging constructs the zap logger shared by the
// orchestrator, repository, and embedding provider.
package logging

import "go.uber.org/zap"

// New builds a production logger, or a development logger (human
// readable, debug level) when debug is true.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Noop returns a logger that discards all output, for tests and
// callers that do not want to configure one.
func Noop() *zap.Logger {
	return zap.NewNop()
}
