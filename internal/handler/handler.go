package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/voxguard/transcription-guard/internal/fingerprint"
	"github.com/voxguard/transcription-guard/internal/guard"
)

// maxPayloadBytes caps the audio chunk size a single admission request
// may carry.
const maxPayloadBytes = 4 << 20

// GuardHandler is the HTTP admission surface for the transcription
// call site. It maps a posted audio chunk to a guard decision and the
// decision to a status code.
type GuardHandler struct {
	logger *slog.Logger
	guard  *guard.Guard
}

func NewGuardHandler(logger *slog.Logger, g *guard.Guard) *GuardHandler {
	return &GuardHandler{
		logger: logger,
		guard:  g,
	}
}

// Transcribe admits or rejects one audio chunk. Caller identity comes
// from X-Caller-Id, falling back to the client IP.
func (h *GuardHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	callerID := extractCallerID(r)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.logger.Warn("Failed to read payload",
			slog.String("caller", callerID),
			slog.String("error", err.Error()))
		http.Error(w, "unreadable payload", http.StatusBadRequest)
		return
	}

	meta := metadataFromHeaders(r)

	h.logger.Info("Admission request",
		slog.String("caller", callerID),
		slog.String("source", meta.SourceID),
		slog.Int("payload_bytes", len(payload)))

	decision := h.guard.Check(callerID, payload, meta)
	if !decision.IsCircuitOpen {
		defer h.guard.Complete(callerID)
	}

	writeDecision(w, decision)
}

func writeDecision(w http.ResponseWriter, decision guard.Decision) {
	status := http.StatusAccepted
	switch {
	case decision.IsCircuitOpen:
		status = http.StatusServiceUnavailable
	case decision.IsDuplicate:
		status = http.StatusConflict
	case decision.IsThrottled:
		status = http.StatusTooManyRequests
	case !decision.Allowed:
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(decision)
}

func extractCallerID(r *http.Request) string {
	if caller := r.Header.Get("X-Caller-Id"); caller != "" {
		return caller
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func metadataFromHeaders(r *http.Request) fingerprint.Metadata {
	meta := fingerprint.Metadata{
		Format:   r.Header.Get("X-Audio-Format"),
		SourceID: r.Header.Get("X-Source-Id"),
	}

	if v, err := strconv.Atoi(r.Header.Get("X-Sample-Rate")); err == nil {
		meta.SampleRate = v
	}
	if v, err := strconv.Atoi(r.Header.Get("X-Channels")); err == nil {
		meta.Channels = v
	}
	if v, err := strconv.ParseInt(r.Header.Get("X-Timestamp-Ms"), 10, 64); err == nil {
		meta.TimestampMs = v
	}

	return meta
}
