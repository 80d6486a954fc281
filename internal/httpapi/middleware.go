package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// requestTimeout is the global upper bound on any single request, per the
// 300-second deadline the upstream call itself is also bounded by.
const requestTimeout = 300 * time.Second

// TimeoutMiddleware aborts the request with 408 once requestTimeout elapses
// without the handler chain completing, and cancels the request context so
// downstream I/O unwinds promptly.
func TimeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"type":    "timeout_error",
				"message": "request exceeded the maximum allowed duration",
			})
		}
	}
}

// AuthMiddleware rejects requests that do not present secret via either
// `Authorization: Bearer <secret>` or `x-api-key: <secret>`, comparing with
// a constant-time byte comparison so a timing side channel cannot leak how
// many leading bytes of a guess were correct.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := extractSecret(c.Request)
		if provided == "" || !constantTimeEqual(provided, secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"type":    "authentication_error",
				"message": "Invalid or missing secret",
			})
			return
		}
		c.Next()
	}
}

func extractSecret(req *http.Request) string {
	if auth := req.Header.Get("Authorization"); len(auth) > len("Bearer ") && auth[:7] == "Bearer " {
		return auth[7:]
	}
	return req.Header.Get("x-api-key")
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
