// Package admin exposes the tuner cache and process metrics over HTTP.
package admin

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fxnlabs/autotune/internal/compute"
	"github.com/fxnlabs/autotune/internal/metrics"
	"github.com/fxnlabs/autotune/internal/tune"
	"github.com/fxnlabs/autotune/internal/tunestore"
)

const (
	CachePath   = "/autotune/cache"
	MetricsPath = "/metrics"
)

// Entry is one cached winner.
type Entry struct {
	Key   string `json:"key"`
	Index int    `json:"index"`
}

// CacheResponse is the body of GET /autotune/cache.
type CacheResponse struct {
	Device  string  `json:"device"`
	Backend string  `json:"backend"`
	Count   int     `json:"count"`
	Entries []Entry `json:"entries"`
}

type CacheHandler struct {
	client compute.Client
	store  *tunestore.Store
	log    *zap.Logger
}

// NewCacheHandler serves the cache of client. store may be nil, in which
// case clearing only affects memory.
func NewCacheHandler(client compute.Client, store *tunestore.Store, log *zap.Logger) *CacheHandler {
	return &CacheHandler{client: client, store: store, log: log.Named("admin")}
}

func (h *CacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodDelete:
		h.clear(w)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CacheHandler) list(w http.ResponseWriter) {
	var entries map[tune.Key]int
	err := h.client.WithTunerCache(func(c *tune.Cache) {
		entries = c.Entries()
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	info := h.client.Info()
	resp := CacheResponse{
		Device:  info.Name,
		Backend: info.Backend,
		Count:   len(entries),
		Entries: make([]Entry, 0, len(entries)),
	}
	for k, v := range entries {
		resp.Entries = append(resp.Entries, Entry{Key: string(k), Index: v})
	}
	sort.Slice(resp.Entries, func(i, j int) bool { return resp.Entries[i].Key < resp.Entries[j].Key })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("failed to encode cache response", zap.Error(err))
	}
}

func (h *CacheHandler) clear(w http.ResponseWriter) {
	var cleared int
	err := h.client.WithTunerCache(func(c *tune.Cache) {
		cleared = c.Len()
		c.Clear()
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if h.store != nil {
		if err := h.store.Remove(); err != nil {
			h.log.Error("failed to remove persisted cache", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	h.log.Info("autotune cache cleared", zap.Int("entries", cleared))
	w.WriteHeader(http.StatusNoContent)
}

// NewMux registers the admin endpoints.
func NewMux(cache *CacheHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(CachePath, metrics.Middleware(cache, CachePath))
	mux.Handle(MetricsPath, promhttp.Handler())
	return mux
}
