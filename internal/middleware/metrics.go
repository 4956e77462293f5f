package middleware

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal         uint64
	RequestsInProgress    uint64
	RequestsSuccess       uint64
	RequestsFailed        uint64
	SonificationsTotal    uint64
	SonificationsRunning  uint64
	SonificationsFailed   uint64
	SonificationsRetried  uint64
	AudioSecondsGenerated uint64 // whole seconds
	StartTime             time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

// IncrementSuccess increments successful request counter
func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

// IncrementFailed increments failed request counter
func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// StartSonification counts a pipeline run and returns the function that
// records its outcome.
func StartSonification() func(err error, retried bool, seconds float64) {
	atomic.AddUint64(&globalMetrics.SonificationsTotal, 1)
	atomic.AddUint64(&globalMetrics.SonificationsRunning, 1)
	return func(err error, retried bool, seconds float64) {
		atomic.AddUint64(&globalMetrics.SonificationsRunning, ^uint64(0))
		if err != nil {
			atomic.AddUint64(&globalMetrics.SonificationsFailed, 1)
			return
		}
		if retried {
			atomic.AddUint64(&globalMetrics.SonificationsRetried, 1)
		}
		if seconds > 0 {
			atomic.AddUint64(&globalMetrics.AudioSecondsGenerated, uint64(seconds))
		}
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":          atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress":    atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":        atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":         atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"sonifications_total":     atomic.LoadUint64(&globalMetrics.SonificationsTotal),
		"sonifications_running":   atomic.LoadUint64(&globalMetrics.SonificationsRunning),
		"sonifications_failed":    atomic.LoadUint64(&globalMetrics.SonificationsFailed),
		"sonifications_retried":   atomic.LoadUint64(&globalMetrics.SonificationsRetried),
		"audio_seconds_generated": atomic.LoadUint64(&globalMetrics.AudioSecondsGenerated),
		"uptime_seconds":          time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
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

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
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
	writeJSON(w, http.StatusOK, GetMetrics())
}
