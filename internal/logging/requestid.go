package logging

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// requestIDKey is the context key for storing/retrieving request IDs.
type requestIDKey struct{}

// ginRequestIDKey is the Gin context key for request IDs.
const ginRequestIDKey = "__request_id__"

// requestCounter backs NextRequestID. Monotonic within one process lifetime,
// reset on restart.
var requestCounter atomic.Uint64

// NextRequestID allocates the next monotonically increasing, zero-padded
// request id for the process.
func NextRequestID() string {
	n := requestCounter.Add(1)
	return fmt.Sprintf("%08d", n)
}

// WithRequestID returns a new context with the request ID attached.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetGinRequestID stores the request ID in the Gin context.
func SetGinRequestID(c *gin.Context) string {
	id := NextRequestID()
	if c != nil {
		c.Set(ginRequestIDKey, id)
	}
	return id
}

// GetGinRequestID retrieves the request ID from the Gin context.
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if id, exists := c.Get(ginRequestIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
