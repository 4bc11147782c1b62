package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"credit-ledger-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 3 * time.Second

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged concurrently and
// any failure degrades the whole report to 503.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			mu      sync.Mutex
			deps    = make(map[string]dependencyStatus, len(checkers))
			healthy = true
		)

		var g errgroup.Group
		for _, checker := range checkers {
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
				defer cancel()

				start := time.Now()
				err := checker.Ping(ctx)
				st := dependencyStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					st.Status = "unhealthy"
					st.Error = err.Error()
				}

				mu.Lock()
				deps[checker.Name()] = st
				if err != nil {
					healthy = false
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
