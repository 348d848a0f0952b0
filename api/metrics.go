package api

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// RouteMetrics aggregates request timings for one route template
type RouteMetrics struct {
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Count      int64         `json:"count"`
	ErrorCount int64         `json:"errorCount"`
	TotalTime  time.Duration `json:"totalTime"`
	AvgTime    time.Duration `json:"avgTime"`
	MinTime    time.Duration `json:"minTime"`
	MaxTime    time.Duration `json:"maxTime"`
	LastStatus int           `json:"lastStatus"`
}

// Metrics collects per-route request metrics in memory
type Metrics struct {
	mu     sync.Mutex
	routes map[string]*RouteMetrics
}

// NewMetrics returns an empty collector
func NewMetrics() *Metrics {
	return &Metrics{routes: make(map[string]*RouteMetrics)}
}

// Observe records one served request
func (m *Metrics) Observe(method, path string, status int, d time.Duration) {
	key := method + " " + path
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.routes[key]
	if !ok {
		rm = &RouteMetrics{Method: method, Path: path, MinTime: d}
		m.routes[key] = rm
	}
	rm.Count++
	if status >= http.StatusBadRequest {
		rm.ErrorCount++
	}
	rm.TotalTime += d
	rm.AvgTime = rm.TotalTime / time.Duration(rm.Count)
	if d < rm.MinTime {
		rm.MinTime = d
	}
	if d > rm.MaxTime {
		rm.MaxTime = d
	}
	rm.LastStatus = status
}

// Routes returns a snapshot of every route, slowest average first
func (m *Metrics) Routes() []RouteMetrics {
	m.mu.Lock()
	out := make([]RouteMetrics, 0, len(m.routes))
	for _, rm := range m.routes {
		out = append(out, *rm)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgTime != out[j].AvgTime {
			return out[i].AvgTime > out[j].AvgTime
		}
		return out[i].Method+out[i].Path < out[j].Method+out[j].Path
	})
	return out
}

// Middleware records every request against its route template so that
// /simulation/{simulation_id} is one entry rather than one per id
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		m.Observe(r.Method, path, rec.status, time.Since(start))
	})
}

// MetricsHandler serves the collected route metrics
func (m *Metrics) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, m.Routes())
}
