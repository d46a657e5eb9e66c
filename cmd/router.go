package main

import (
	"github.com/go-chi/chi/v5"

	"github.com/voxguard/transcription-guard/internal/handler"
	"github.com/voxguard/transcription-guard/internal/telemetry"
)

func setupRouter(guardHandler *handler.GuardHandler, collector *telemetry.Collector) *chi.Mux {
	r := chi.NewRouter()

	r.Post("/v1/transcribe", guardHandler.Transcribe)
	r.Post("/v1/reset", guardHandler.Reset)

	r.Get("/status", guardHandler.Status)
	r.Get("/statistics", guardHandler.Statistics)
	r.Get("/patterns", guardHandler.Patterns)
	r.Get("/callstack", guardHandler.CallStack)
	r.Get("/telemetry", collector.Handler())

	return r
}
