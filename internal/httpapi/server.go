// Package httpapi wires the gateway's two routes, its middleware stack, and
// graceful shutdown on top of gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/arasple/pluribus/internal/logging"
	"github.com/arasple/pluribus/internal/oauth"
	"github.com/arasple/pluribus/internal/provider"
	"github.com/arasple/pluribus/internal/upstream"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Deps bundles every collaborator a handler needs. Built once in cmd/pluribus
// and passed down; nothing here is mutated after construction except the
// provider registry's own internal rate-limit snapshots.
type Deps struct {
	Secret           string
	Registry         *provider.Registry
	Engine           *oauth.Engine
	MessagesClient   *http.Client
	VersionResolver  *upstream.VersionResolver
	AliasToolsByName map[string]bool
}

// NewRouter assembles the gin engine with the full middleware stack and both
// routes.
func NewRouter(deps *Deps) *gin.Engine {
	r := gin.New()
	r.Use(logging.GinLogrusRecovery())
	r.Use(logging.GinLogrusLogger())
	r.Use(TimeoutMiddleware())

	r.GET("/health", healthHandler(deps))

	protected := r.Group("/")
	protected.Use(AuthMiddleware(deps.Secret))
	protected.POST("/anthropic/v1/messages", messagesHandler(deps))

	return r
}

// Serve starts the HTTP server and blocks until ctx is cancelled, then
// drains in-flight requests before returning.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down: draining in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
