package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voxguard/transcription-guard/internal/circuitbreaker"
	"github.com/voxguard/transcription-guard/internal/guard"
	"github.com/voxguard/transcription-guard/internal/handler"
	"github.com/voxguard/transcription-guard/internal/loadsampler"
	"github.com/voxguard/transcription-guard/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(GinkgoWriter, nil))
}

func newGuard() *guard.Guard {
	sampler := loadsampler.NewStatic(loadsampler.Sample{
		MemoryBytes: 200 << 20,
		CPULoadPct:  10,
	})

	breaker := circuitbreaker.NewBreaker(circuitbreaker.Options{
		BaseMaxCallDepth: 10,
		MinCallDepth:     1,
		MaxCallDepth:     50,
		MaxErrors:        3,
		ResetTimeout:     100 * time.Millisecond,
		RapidCallLimit:   100,
	}, sampler, nil, testLogger())

	reg := registry.NewRegistry(registry.Options{
		MaxRequestsPerWindow:   3,
		WindowSize:             time.Second,
		CooldownPeriod:         2 * time.Second,
		DuplicateWindow:        500 * time.Millisecond,
		CleanupInterval:        time.Minute,
		MaxRegistrySize:        1000,
		MemoryCleanupThreshold: 500,
	}, nil, testLogger())

	return guard.New(breaker, reg, testLogger())
}

func admissionRequest(payload []byte, caller string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", bytes.NewReader(payload))
	req.Header.Set("X-Caller-Id", caller)
	req.Header.Set("X-Audio-Format", "pcm16")
	req.Header.Set("X-Sample-Rate", "16000")
	req.Header.Set("X-Channels", "1")
	req.Header.Set("X-Timestamp-Ms", strconv.FormatInt(time.Now().UnixMilli(), 10))
	req.Header.Set("X-Source-Id", "microphone-1")
	return req
}

var _ = Describe("GuardHandler", func() {
	var (
		g *guard.Guard
		h *handler.GuardHandler
	)

	BeforeEach(func() {
		g = newGuard()
		h = handler.NewGuardHandler(testLogger(), g)
	})

	AfterEach(func() {
		g.Dispose()
	})

	Describe("Transcribe", func() {
		It("should accept a fresh chunk with 202", func() {
			rec := httptest.NewRecorder()
			h.Transcribe(rec, admissionRequest([]byte("chunk-1"), "speech-panel"))

			Expect(rec.Code).To(Equal(http.StatusAccepted))

			var decision guard.Decision
			Expect(json.Unmarshal(rec.Body.Bytes(), &decision)).To(Succeed())
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.RequestID).NotTo(BeEmpty())
		})

		It("should answer 409 for a duplicate chunk", func() {
			first := httptest.NewRecorder()
			h.Transcribe(first, admissionRequest([]byte("chunk-1"), "speech-panel"))
			Expect(first.Code).To(Equal(http.StatusAccepted))

			second := httptest.NewRecorder()
			h.Transcribe(second, admissionRequest([]byte("chunk-1"), "speech-panel"))
			Expect(second.Code).To(Equal(http.StatusConflict))

			var decision guard.Decision
			Expect(json.Unmarshal(second.Body.Bytes(), &decision)).To(Succeed())
			Expect(decision.IsDuplicate).To(BeTrue())
		})

		It("should answer 429 once the caller exceeds the frequency limit", func() {
			var last *httptest.ResponseRecorder
			for i := 0; i < 4; i++ {
				last = httptest.NewRecorder()
				payload := []byte(fmt.Sprintf("chunk-%d", i))
				h.Transcribe(last, admissionRequest(payload, "speech-panel"))
			}

			Expect(last.Code).To(Equal(http.StatusTooManyRequests))

			var decision guard.Decision
			Expect(json.Unmarshal(last.Body.Bytes(), &decision)).To(Succeed())
			Expect(decision.IsThrottled).To(BeTrue())
		})

		It("should answer 503 while the circuit is open", func() {
			g.ReportError("speech-panel", circuitbreaker.ErrDepthExceeded)

			rec := httptest.NewRecorder()
			h.Transcribe(rec, admissionRequest([]byte("chunk-1"), "speech-panel"))

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))

			var decision guard.Decision
			Expect(json.Unmarshal(rec.Body.Bytes(), &decision)).To(Succeed())
			Expect(decision.IsCircuitOpen).To(BeTrue())
		})

		It("should treat an empty body as a breaker-only check", func() {
			rec := httptest.NewRecorder()
			h.Transcribe(rec, admissionRequest(nil, "speech-panel"))

			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(g.Statistics().TotalRecords).To(Equal(0))
		})

		It("should fall back to the client address when no caller header is set", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", bytes.NewReader([]byte("chunk-1")))
			req.RemoteAddr = "10.1.2.3:54321"

			rec := httptest.NewRecorder()
			h.Transcribe(rec, req)
			Expect(rec.Code).To(Equal(http.StatusAccepted))

			status := g.ProtectionStatus()
			Expect(status.Breaker.Callers).To(HaveKey("10.1.2.3"))
		})

		It("should prefer the forwarded-for chain over the socket address", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/transcribe", bytes.NewReader([]byte("chunk-1")))
			req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			req.RemoteAddr = "10.1.2.3:54321"

			rec := httptest.NewRecorder()
			h.Transcribe(rec, req)
			Expect(rec.Code).To(Equal(http.StatusAccepted))

			status := g.ProtectionStatus()
			Expect(status.Breaker.Callers).To(HaveKey("203.0.113.7"))
		})

		It("should release breaker depth after each request", func() {
			for i := 0; i < 3; i++ {
				rec := httptest.NewRecorder()
				payload := []byte(fmt.Sprintf("chunk-%d", i))
				h.Transcribe(rec, admissionRequest(payload, "speech-panel"))
			}

			status := g.ProtectionStatus()
			Expect(status.Breaker.Callers["speech-panel"].CurrentDepth).To(Equal(0))
		})
	})

	Describe("operational endpoints", func() {
		BeforeEach(func() {
			rec := httptest.NewRecorder()
			h.Transcribe(rec, admissionRequest([]byte("chunk-1"), "speech-panel"))
			Expect(rec.Code).To(Equal(http.StatusAccepted))
		})

		It("should serve the combined status", func() {
			rec := httptest.NewRecorder()
			h.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))

			var status guard.ProtectionStatus
			Expect(json.Unmarshal(rec.Body.Bytes(), &status)).To(Succeed())
			Expect(status.Breaker.Callers).To(HaveKey("speech-panel"))
			Expect(status.Registry.TotalRecords).To(Equal(1))
		})

		It("should serve registry statistics", func() {
			rec := httptest.NewRecorder()
			h.Statistics(rec, httptest.NewRequest(http.MethodGet, "/statistics", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))

			var stats registry.Statistics
			Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
			Expect(stats.TotalRecords).To(Equal(1))
		})

		It("should serve pattern analysis", func() {
			rec := httptest.NewRecorder()
			h.Patterns(rec, httptest.NewRequest(http.MethodGet, "/patterns", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))

			var reports []registry.PatternReport
			Expect(json.Unmarshal(rec.Body.Bytes(), &reports)).To(Succeed())
			Expect(reports).To(HaveLen(1))
		})

		It("should serve the call stack visualization", func() {
			rec := httptest.NewRecorder()
			h.CallStack(rec, httptest.NewRequest(http.MethodGet, "/callstack", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))

			var views []circuitbreaker.StackView
			Expect(json.Unmarshal(rec.Body.Bytes(), &views)).To(Succeed())
			Expect(views).To(HaveLen(1))
			Expect(views[0].Caller).To(Equal("speech-panel"))
		})

		It("should force-close circuits on reset", func() {
			g.ReportError("speech-panel", circuitbreaker.ErrDepthExceeded)

			rec := httptest.NewRecorder()
			h.Reset(rec, httptest.NewRequest(http.MethodPost, "/v1/reset", nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			after := httptest.NewRecorder()
			h.Transcribe(after, admissionRequest([]byte("chunk-2"), "speech-panel"))
			Expect(after.Code).To(Equal(http.StatusAccepted))
		})
	})
})
