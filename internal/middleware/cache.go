package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids clients and proxies from caching responses. Exam session
// payloads are per-student and time-bound.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
