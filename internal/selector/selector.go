// Package selector implements the gateway's provider selection policy:
// priority-with-liveness, not round-robin. Providers represent individual
// paid subscriptions whose utilization is the binding constraint, so the
// policy prefers the first registry-order provider that is both live and
// matches the caller's predicate, rather than spreading load preemptively.
package selector

import (
	"errors"
	"time"

	"github.com/arasple/pluribus/internal/provider"
)

// ErrNoProviderAvailable is returned when no registered provider is both
// live and matches the caller's predicate.
var ErrNoProviderAvailable = errors.New("selector: no provider available")

// Predicate decides whether a provider is an acceptable match for the
// current request, independent of liveness.
type Predicate func(*provider.Provider) bool

// AnthropicCompatible matches providers whose type speaks the Anthropic
// Messages wire format.
func AnthropicCompatible(p *provider.Provider) bool {
	return p.IsAnthropicCompatible()
}

// Select walks the registry in order, skipping any provider with an
// unavailable rate-limit window, and returns the first remaining match for
// predicate.
func Select(reg *provider.Registry, predicate Predicate) (*provider.Provider, error) {
	nowSeconds := time.Now().Unix()
	for _, p := range reg.All() {
		if !p.Available(nowSeconds) {
			continue
		}
		if predicate(p) {
			return p, nil
		}
	}
	return nil, ErrNoProviderAvailable
}
