package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// WriteMiddleware queues an audit event for every mutating API request.
func WriteMiddleware(r *Recorder) gin.HandlerFunc {
	if r == nil || r.Client == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		r.enqueue(ActionHTTPWrite, levelFromStatus(status), map[string]any{
			"method":   method,
			"path":     path,
			"route":    c.FullPath(),
			"status":   status,
			"duration": time.Since(start).String(),
		})
	}
}

func levelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
