package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when there are no payload bytes to digest.
var ErrEmptyPayload = errors.New("empty payload")

// Metadata carries the coarse audio attributes that participate in the
// digest. SourceID travels with the request but is excluded from the
// digest so the same audio hashes identically regardless of source.
type Metadata struct {
	Format      string
	SampleRate  int
	Channels    int
	TimestampMs int64
	SourceID    string
}

// canonicalMeta is the JSON shape hashed alongside the payload. The
// timestamp is floored to the second so payloads captured within the
// same second with identical audio collide even when their wall-clock
// timestamps differ slightly.
type canonicalMeta struct {
	Format      string `json:"format"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Fingerprint computes a stable SHA-256 digest over the payload bytes
// concatenated with the canonical metadata encoding. Deterministic and
// side-effect free; an unusable payload surfaces as an error, never a panic.
func Fingerprint(payload []byte, meta Metadata) (string, error) {
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	canonical := canonicalMeta{
		Format:      meta.Format,
		SampleRate:  meta.SampleRate,
		Channels:    meta.Channels,
		TimestampMs: (meta.TimestampMs / 1000) * 1000,
	}

	encoded, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	h := sha256.New()
	h.Write(payload)
	h.Write(encoded)

	return hex.EncodeToString(h.Sum(nil)), nil
}
