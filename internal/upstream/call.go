package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arasple/pluribus/internal/provider"
	"github.com/arasple/pluribus/internal/transform"
	"github.com/tidwall/gjson"
)

// Call issues one POST to MessagesURL and ingests its rate-limit headers
// into p regardless of status. Unit mode reads the full body; streaming
// mode returns the live response for the caller to hand to the relay.
type Call struct {
	client          *http.Client
	accessToken     string
	userAgent       string
	passthroughBeta string
}

// NewCall prepares a call using accessToken and userAgent, and returns body
// with its passthrough staging removed. body must already have passed
// through the request transformer.
func NewCall(client *http.Client, accessToken, userAgent string, body []byte) (*Call, []byte, error) {
	passthroughBeta := gjson.GetBytes(body, "_passthrough_headers.anthropic-beta").String()
	stripped, err := transform.StripPassthroughHeaders(body)
	if err != nil {
		return nil, nil, fmt.Errorf("upstream: strip passthrough headers: %w", err)
	}
	return &Call{
		client:          client,
		accessToken:     accessToken,
		userAgent:       userAgent,
		passthroughBeta: passthroughBeta,
	}, stripped, nil
}

func (c *Call) do(ctx context.Context, body []byte, p *provider.Provider) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, MessagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	AttachHeaders(req, c.accessToken, transform.MergeBetaFlags(c.passthroughBeta), c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}

	ingestRateLimit(p, resp.Header)
	return resp, nil
}

// Unit performs a non-streaming call and returns the full response body
// alongside the HTTP status. Non-2xx bodies are returned as-is for the
// caller to wrap as a structured UpstreamHTTP error.
func (c *Call) Unit(ctx context.Context, body []byte, p *provider.Provider) (int, []byte, error) {
	resp, err := c.do(ctx, body, p)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("upstream: read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// Stream performs a streaming call and returns the live response; the
// caller owns closing resp.Body once the relay has drained it.
func (c *Call) Stream(ctx context.Context, body []byte, p *provider.Provider) (*http.Response, error) {
	return c.do(ctx, body, p)
}

func ingestRateLimit(p *provider.Provider, header http.Header) {
	if p == nil {
		return
	}
	raw := ParseRateLimitHeaders(header)
	p.SetRateLimit(provider.RateLimitSnapshot{
		FiveHour: provider.Window{Status: raw.FiveHourStatus, Reset: raw.FiveHourReset, Utilization: raw.FiveHourUtilization},
		SevenDay: provider.Window{Status: raw.SevenDayStatus, Reset: raw.SevenDayReset, Utilization: raw.SevenDayUtilization},
		UpdatedAt: time.Now().Unix(),
	})
}
