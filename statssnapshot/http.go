package statssnapshot

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head><title>ehash stats</title></head>
<body>
<h1>ehash pool/proxy status</h1>
<p>See <a href="/api/stats">/api/stats</a> for the latest snapshot.</p>
</body>
</html>
`

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardTemplate))

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewProxyRouter builds the HTTP surface for a collector caching
// ProxySnapshots: GET /, /api/stats, /health.
func NewProxyRouter(c *Collector[ProxySnapshot]) *mux.Router {
	r := mux.NewRouter()
	registerCommon(r, c)
	return r
}

// NewPoolRouter builds the HTTP surface for a collector caching
// PoolSnapshots: the common endpoints plus /api/services and
// /api/connections, which only make sense for pool snapshots.
func NewPoolRouter(c *Collector[PoolSnapshot]) *mux.Router {
	r := mux.NewRouter()
	registerCommon(r, c)

	r.HandleFunc("/api/services", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := c.Latest()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap.Services)
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/connections", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := c.Latest()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap.DownstreamProxies)
	}).Methods(http.MethodGet)

	return r
}

// registerCommon wires the endpoints shared by every collector regardless
// of snapshot shape.
func registerCommon[T any](r *mux.Router, c *Collector[T]) {
	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = dashboardTmpl.Execute(w, nil)
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/stats", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := c.Latest()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		stale := c.IsStale(time.Now())
		status := http.StatusOK
		if stale {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]bool{"healthy": !stale, "stale": stale})
	}).Methods(http.MethodGet)
}
