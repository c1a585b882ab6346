package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"steam-price-tracker/internal/logger"

	"github.com/gin-gonic/gin"
)

// CORS allows the dashboard to be served from another origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger writes one line per request through the application logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := "[http] %d %s %s (%v, %s)"
		args := []interface{}{status, c.Request.Method, c.Request.URL.Path, time.Since(start), c.ClientIP()}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(line, args...)
		case status >= http.StatusBadRequest:
			logger.Warn(line, args...)
		default:
			logger.Debug(line, args...)
		}
	}
}

// BearerAuth rejects requests whose Authorization header is not "Bearer <secret>". An empty
// secret rejects everything.
func BearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authorized(secret, c.GetHeader("Authorization")) {
			logger.Warn("[auth] rejected %s %s from %s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func authorized(secret, header string) bool {
	if secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
