// Package metrics exposes the pipeline counters and latency histograms on a
// dedicated Prometheus registry shared by the ops endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	FramesCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_frames_captured_total",
		Help: "Frames decoded from the capture source",
	})
	FramesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_frames_published_total",
		Help: "Sampled frames uploaded and published",
	})
	FramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_frames_dropped_total",
		Help: "Sampled frames dropped on upload or publish failure",
	})
	FacesDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_faces_detected_total",
		Help: "Face candidates returned by the detector",
	})
	FacesFiltered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_faces_filtered_total",
		Help: "Face candidates discarded by the size/landmark filter",
	})
	ZeroFaceFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_zero_face_frames_total",
		Help: "Frames that produced an empty aggregate row",
	})
	IdentitiesMatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_identities_matched_total",
		Help: "Faces resolved to an existing identity",
	})
	IdentitiesMinted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_identities_minted_total",
		Help: "Fresh identities created on no-match",
	})
	PresencesRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenca_presences_recorded_total",
		Help: "Presence documents inserted",
	})
	MessagesPoisoned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presenca_messages_poisoned_total",
		Help: "Messages nacked without requeue",
	}, []string{"queue"})
	StageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "presenca_stage_seconds",
		Help:    "Per-stage processing latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

func init() {
	registry.MustRegister(
		FramesCaptured,
		FramesPublished,
		FramesDropped,
		FacesDetected,
		FacesFiltered,
		ZeroFaceFrames,
		IdentitiesMatched,
		IdentitiesMinted,
		PresencesRecorded,
		MessagesPoisoned,
		StageSeconds,
	)
}

// Handler serves the registry for the ops endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
