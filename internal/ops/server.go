// Package ops runs the small per-worker HTTP endpoint exposing health and
// Prometheus metrics.
package ops

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"presenca/internal/metrics"
)

// Serve blocks on a health+metrics listener. Callers run it in a goroutine;
// a listen failure is logged, not fatal, so a busy port never takes a worker
// down.
func Serve(addr, worker string) {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"worker": worker,
		})
	})
	r.Handle("/metrics", metrics.Handler())

	log.Printf("[%s] Ops server listening on %s", worker, addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Printf("[ERROR] %s: ops server failed: %v", worker, err)
	}
}
