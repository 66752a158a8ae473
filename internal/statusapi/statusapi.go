// Package statusapi serves a read-only view of a notify.Instance's
// live watch tree over plain HTTP/JSON, grounded on
// lukeb-aidev-cohesix's go/orchestrator/http read-only status-endpoint
// pattern (chi.Router, one handler per resource), plus a /metrics
// endpoint via promhttp for internal/kmetrics.
package statusapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WatchInfo is the JSON-friendly snapshot of one open i_watch.
type WatchInfo struct {
	WD         int    `json:"wd"`
	Inode      uint64 `json:"inode"`
	Dev        uint64 `json:"dev"`
	Mask       uint32 `json:"mask"`
	Subwatches int    `json:"subwatches"`
}

// Source is the read-only view a notify.Instance exposes to this
// package. Kept as a small interface instead of an import of the
// notify package to avoid a dependency from an internal package back
// up to the root package.
type Source interface {
	Watches() []WatchInfo
}

// NewRouter builds the chi router serving GET /watches, GET
// /watches/{wd}, and GET /metrics.
func NewRouter(src Source) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/watches", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(src.Watches())
	})

	r.Get("/watches/{wd}", func(w http.ResponseWriter, r *http.Request) {
		wd, err := strconv.Atoi(chi.URLParam(r, "wd"))
		if err != nil {
			http.Error(w, "bad watch descriptor", http.StatusBadRequest)
			return
		}
		for _, info := range src.Watches() {
			if info.WD == wd {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(info)
				return
			}
		}
		http.Error(w, "watch not found", http.StatusNotFound)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ListenAndServe starts the status server on addr. An empty addr
// disables the server, matching config.Config.HTTPAddr's "" default.
func ListenAndServe(addr string, src Source) error {
	if addr == "" {
		return nil
	}
	return http.ListenAndServe(addr, NewRouter(src))
}
