package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// allMethods mirrors a wildcard method allow-list.
var allMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

// corsMiddleware allows every method and header for origins. Simple
// requests from other origins are served without CORS headers so the browser
// blocks them; their preflights get 400.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(o)] = true
	}

	handler := cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: allMethods,
		AllowHeaders: []string{"*"},
		MaxAge:       10 * time.Minute,
	})

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || allowAll || allowed[strings.ToLower(origin)] {
			handler(c)
			return
		}
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: "Disallowed CORS origin"})
			return
		}
		c.Next()
	}
}

// requestLogger logs one line per request once it has been handled.
func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"size", humanize.Bytes(uint64(size)), //nolint:gosec
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}

// recovery turns a panic inside a handler into a 500 JSON response.
func recovery(logger *log.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Handler panicked", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: internalErrorDetail})
	})
}
