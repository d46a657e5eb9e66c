// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package and emits JSON in prod, text otherwise.
package logger
