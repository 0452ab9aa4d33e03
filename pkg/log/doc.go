// Package log provides logbridge's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that feeds a formatter/output
// pipeline, so output stays consistent across the codebase while slog
// interop remains available.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("archive"))
//	l.Info("log archived", log.Str("name", "orders"), log.Int("traces", 120))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config with level and
// format (text or json) names. RedirectStdLog routes stdlib log output from
// dependencies through the facade.
package log
