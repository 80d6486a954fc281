package provider

import (
	"testing"
	"time"

	"github.com/arasple/pluribus/internal/credstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSkipsUnimplementedTypes(t *testing.T) {
	configs := []*credstore.Config{
		{Name: "a", Type: credstore.ProviderClaudeCode, OAuth: &credstore.OAuthCreds{}},
		{Name: "b", Type: credstore.ProviderCodex, OAuth: &credstore.OAuthCreds{}},
	}
	reg := Build(configs)
	require.Equal(t, 1, reg.Len())
	assert.Equal(t, "a", reg.All()[0].Name)
}

func TestAvailableExcludesExhaustedFutureWindow(t *testing.T) {
	p := New(&credstore.Config{Name: "a", Type: credstore.ProviderClaudeCode})
	now := time.Now().Unix()

	p.SetRateLimit(RateLimitSnapshot{
		FiveHour: Window{Utilization: 0.999, Reset: now + 300},
		SevenDay: Window{Utilization: 0.1, Reset: now + 300},
	})
	assert.False(t, p.Available(now))
}

func TestAvailableTreatsPastResetAsLive(t *testing.T) {
	p := New(&credstore.Config{Name: "a", Type: credstore.ProviderClaudeCode})
	now := time.Now().Unix()

	p.SetRateLimit(RateLimitSnapshot{
		FiveHour: Window{Utilization: 1.0, Reset: now - 1},
		SevenDay: Window{Utilization: 0.1, Reset: now + 300},
	})
	assert.True(t, p.Available(now))
}
