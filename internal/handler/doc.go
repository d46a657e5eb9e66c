// Package handler implements the HTTP surfaces of the protection layer:
// the admission endpoint the transcription call site posts audio chunks
// to, and the read-only status endpoints for operational tooling.
package handler
