package telemetry_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voxguard/transcription-guard/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(GinkgoWriter, nil))
}

var _ = Describe("Collector", func() {
	var (
		collector *telemetry.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		collector = telemetry.NewCollector(64, testLogger())
		ctx, cancel = context.WithCancel(context.Background())
		collector.Start(ctx)
	})

	AfterEach(func() {
		cancel()
	})

	It("should aggregate events per caller", func() {
		collector.Emit(telemetry.Event{Type: telemetry.EventAllowed, Caller: "speech-panel"})
		collector.Emit(telemetry.Event{Type: telemetry.EventAllowed, Caller: "speech-panel"})
		collector.Emit(telemetry.Event{Type: telemetry.EventDuplicate, Caller: "speech-panel"})
		collector.Emit(telemetry.Event{Type: telemetry.EventThrottled, Caller: "speech-panel"})

		Eventually(func() telemetry.CallerMetrics {
			return collector.Snapshot().Callers["speech-panel"]
		}, time.Second, 10*time.Millisecond).Should(SatisfyAll(
			HaveField("Allowed", int64(2)),
			HaveField("Duplicates", int64(1)),
			HaveField("Throttled", int64(1)),
		))
	})

	It("should total allowed and blocked across callers", func() {
		collector.Emit(telemetry.Event{Type: telemetry.EventAllowed, Caller: "caller-a"})
		collector.Emit(telemetry.Event{Type: telemetry.EventDuplicate, Caller: "caller-b"})
		collector.Emit(telemetry.Event{Type: telemetry.EventThrottled, Caller: "caller-c"})

		Eventually(func() int64 {
			return collector.Snapshot().TotalBlocked
		}, time.Second, 10*time.Millisecond).Should(Equal(int64(2)))

		Expect(collector.Snapshot().TotalAllowed).To(Equal(int64(1)))
	})

	It("should record the last trip time and reason", func() {
		collector.Emit(telemetry.Event{
			Type:   telemetry.EventCircuitTripped,
			Caller: "speech-panel",
			Reason: "call depth 11 exceeded dynamic threshold 10",
		})

		Eventually(func() string {
			return collector.Snapshot().Callers["speech-panel"].LastTripReason
		}, time.Second, 10*time.Millisecond).Should(ContainSubstring("call depth"))

		Expect(collector.Snapshot().Callers["speech-panel"].LastTrip).NotTo(BeZero())
	})

	It("should drain buffered events on shutdown", func() {
		for i := 0; i < 10; i++ {
			collector.Emit(telemetry.Event{Type: telemetry.EventAllowed, Caller: "speech-panel"})
		}
		cancel()

		Eventually(func() int64 {
			return collector.Snapshot().TotalAllowed
		}, time.Second, 10*time.Millisecond).Should(Equal(int64(10)))
	})

	It("should never block the emitter when the buffer is full", func() {
		full := telemetry.NewCollector(1, testLogger())

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			for i := 0; i < 100; i++ {
				full.Emit(telemetry.Event{Type: telemetry.EventAllowed, Caller: "speech-panel"})
			}
			close(done)
		}()

		Eventually(done, time.Second).Should(BeClosed())
	})

	It("should be safe to emit on a nil collector", func() {
		var none *telemetry.Collector
		Expect(func() {
			none.Emit(telemetry.Event{Type: telemetry.EventAllowed, Caller: "speech-panel"})
		}).NotTo(Panic())
	})

	Describe("HTTP handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Emit(telemetry.Event{Type: telemetry.EventAllowed, Caller: "speech-panel"})

			Eventually(func() int64 {
				return collector.Snapshot().TotalAllowed
			}, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/telemetry", nil)
			collector.Handler()(rec, req)

			Expect(rec.Code).To(Equal(200))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap telemetry.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalAllowed).To(Equal(int64(1)))
			Expect(snap.Callers).To(HaveKey("speech-panel"))
		})
	})
})
