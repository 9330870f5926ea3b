// Package log provides the structured logging facade shared by all
// mini-social service processes.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context, backed by a formatter/output pipeline.
// Text formatting is the default; JSON is available for log shippers.
//
// Quick start:
//
//	l := log.NewLogger(log.WithLevel(log.InfoLevel))
//	l = l.With(log.Component("gateway"))
//	l.Info("listening", log.Str("addr", addr))
package log
