// Package registry owns per-fingerprint request records and per-caller
// frequency patterns. It answers "is this a duplicate?" and "is this
// throttled?", classifies pattern risk, and keeps its memory bounded
// through periodic and eager cleanup that never discards active
// throttle state.
package registry
