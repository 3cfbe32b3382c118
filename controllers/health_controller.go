package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ---------------- HEALTH ----------------
func Health(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		for _, h := range app.Health {
			if err := h.Ping(ctx); err != nil {
				healthy = false
				checks[h.Name] = err.Error()
				zap.L().Warn("health check failed", zap.String("check", h.Name), zap.Error(err))
				continue
			}
			checks[h.Name] = "ok"
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}
