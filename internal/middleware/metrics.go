package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application counters. Session counters are bumped by the
// analysis worker, request counters by MetricsMiddleware.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64

	SessionsCreated    uint64
	SessionsProcessing uint64
	SessionsCompleted  uint64
	SessionsFailed     uint64
	AnalysesStored     uint64

	StartTime time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementSessionsCreated counts accepted analysis submissions.
func IncrementSessionsCreated() {
	atomic.AddUint64(&globalMetrics.SessionsCreated, 1)
}

// IncrementSessionsProcessing counts jobs picked up by the worker.
func IncrementSessionsProcessing() {
	atomic.AddUint64(&globalMetrics.SessionsProcessing, 1)
}

// IncrementSessionsCompleted counts sessions that reached completed.
func IncrementSessionsCompleted() {
	atomic.AddUint64(&globalMetrics.SessionsCompleted, 1)
}

// IncrementSessionsFailed counts sessions that reached failed.
func IncrementSessionsFailed() {
	atomic.AddUint64(&globalMetrics.SessionsFailed, 1)
}

// IncrementAnalysesStored counts persisted vulnerability findings.
func IncrementAnalysesStored() {
	atomic.AddUint64(&globalMetrics.AnalysesStored, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"sessions_created":     atomic.LoadUint64(&globalMetrics.SessionsCreated),
		"sessions_processing":  atomic.LoadUint64(&globalMetrics.SessionsProcessing),
		"sessions_completed":   atomic.LoadUint64(&globalMetrics.SessionsCompleted),
		"sessions_failed":      atomic.LoadUint64(&globalMetrics.SessionsFailed),
		"analyses_stored":      atomic.LoadUint64(&globalMetrics.AnalysesStored),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
