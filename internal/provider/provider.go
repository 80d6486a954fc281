// Package provider models a named, typed credential holder plus a live view
// of its upstream rate-limit budget, and builds the immutable registry of
// providers the gateway selects from on each request.
package provider

import (
	"sync"

	"github.com/arasple/pluribus/internal/credstore"
	log "github.com/sirupsen/logrus"
)

// Window is one rate-limit scale (5h or 7d) as last observed from upstream
// response headers.
type Window struct {
	Status      string  `json:"status"`
	Reset       int64   `json:"reset"`
	Utilization float64 `json:"utilization"`
}

// unavailableThreshold mirrors the selection policy's liveness check: above
// this utilization, a window with a future reset is treated as exhausted.
const unavailableThreshold = 0.995

// unavailable reports whether w should exclude its provider from selection.
func (w Window) unavailable(nowSeconds int64) bool {
	return w.Utilization > unavailableThreshold && nowSeconds < w.Reset
}

// RateLimitSnapshot is the whole-window-pair rate-limit view for a provider.
// Readers always see a coherent pair: writers install a new snapshot value
// rather than mutating fields in place.
type RateLimitSnapshot struct {
	FiveHour  Window `json:"five_hour"`
	SevenDay  Window `json:"seven_day"`
	UpdatedAt int64  `json:"updated_at"`
}

// Provider is a named, typed credential holder. Selection and the request
// transformer never branch on concrete provider type; they see this single
// shape.
type Provider struct {
	Name string
	Type credstore.ProviderType

	mu        sync.RWMutex
	snapshot  RateLimitSnapshot
	oauthName string
}

// New constructs a Provider from a loaded credential record.
func New(cfg *credstore.Config) *Provider {
	return &Provider{
		Name:      cfg.Name,
		Type:      cfg.Type,
		oauthName: cfg.Name,
	}
}

// RateLimit returns the current snapshot. Safe for concurrent readers.
func (p *Provider) RateLimit() RateLimitSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// SetRateLimit atomically installs a new snapshot.
func (p *Provider) SetRateLimit(snapshot RateLimitSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = snapshot
}

// Available reports whether neither rate-limit window is unavailable at
// nowSeconds.
func (p *Provider) Available(nowSeconds int64) bool {
	snap := p.RateLimit()
	return !snap.FiveHour.unavailable(nowSeconds) && !snap.SevenDay.unavailable(nowSeconds)
}

// IsAnthropicCompatible is the predicate the gateway's single route uses:
// only claude_code is currently implemented end to end.
func (p *Provider) IsAnthropicCompatible() bool {
	return p.Type == credstore.ProviderClaudeCode
}

// Registry is the immutable, ordered list of providers built once at
// startup. Adding a provider requires a process restart.
type Registry struct {
	providers []*Provider
}

// Build constructs a Registry from every loaded config, in the order
// returned by the credential store (directory enumeration order). Records
// whose type has no implementation yet are skipped and logged, never fatal.
func Build(configs []*credstore.Config) *Registry {
	reg := &Registry{}
	for _, cfg := range configs {
		if cfg.Type != credstore.ProviderClaudeCode {
			log.Warnf("provider %q has type %q with no implementation yet, skipping", cfg.Name, cfg.Type)
			continue
		}
		reg.providers = append(reg.providers, New(cfg))
	}
	return reg
}

// All returns the registry's providers in insertion order. The slice must
// not be mutated by callers.
func (r *Registry) All() []*Provider {
	return r.providers
}

// Len reports how many providers are registered.
func (r *Registry) Len() int {
	return len(r.providers)
}
