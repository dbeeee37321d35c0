package monitor

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
)

// Router serves the metrics and the newest status:
//
//	GET /metrics            Prometheus metrics
//	GET /status             newest snapshot as JSON
//	GET /status/axis/{axis} motor state of axis 1 or 2
func (c *Collector) Router() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", c.Handler())
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		st, ok := c.Status()
		if !ok {
			http.Error(w, "no telemetry yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, st)
	})
	r.Get("/status/axis/{axis}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "axis"))
		if err != nil || n < 1 || n > 2 {
			http.Error(w, "axis must be 1 or 2", http.StatusBadRequest)
			return
		}
		st, ok := c.Status()
		if !ok {
			http.Error(w, "no telemetry yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, st.Axes[n-1])
	})
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
