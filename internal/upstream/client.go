// Package upstream wraps the one HTTP call the gateway makes per relayed
// request: attaching bearer and beta headers, reading rate-limit response
// headers back into the provider's snapshot, and building the long-timeout
// messages client and the short-timeout version-lookup client. Each
// constructor returns a new client; the OAuth engine uses its own client.
package upstream

import (
	"crypto/tls"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// MessagesURL is the fixed upstream endpoint the gateway relays to.
const MessagesURL = "https://api.anthropic.com/v1/messages"

// AnthropicVersion is the wire-protocol version header sent on every call.
const AnthropicVersion = "2023-06-01"

const (
	messagesTimeout = 300 * time.Second
	auxTimeout      = 30 * time.Second
	maxIdlePerHost  = 10
)

// NewMessagesClient builds the pooled client used for the one long-lived
// relay call per request.
func NewMessagesClient() *http.Client {
	return &http.Client{Timeout: messagesTimeout, Transport: newTransport()}
}

// NewAuxClient builds the shorter-timeout client used for version lookups.
func NewAuxClient() *http.Client {
	return &http.Client{Timeout: auxTimeout, Transport: newTransport()}
}

func newTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = maxIdlePerHost

	if tlsVerifyDisabled() {
		log.Warn("PLURIBUS_DISABLE_TLS_VERIFY is set: outbound TLS certificate verification is disabled")
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}
	return transport
}

func tlsVerifyDisabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("PLURIBUS_DISABLE_TLS_VERIFY")))
	return v == "1" || v == "true"
}

// AttachHeaders sets every header required unconditionally on a relay
// request.
func AttachHeaders(req *http.Request, accessToken, betaFlags, userAgent string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("anthropic-version", AnthropicVersion)
	req.Header.Set("anthropic-beta", betaFlags)
	req.Header.Set("User-Agent", userAgent)
}

// RateLimitHeaders is the raw window-pair read off a response, before it is
// written into a provider.RateLimitSnapshot.
type RateLimitHeaders struct {
	FiveHourStatus      string
	FiveHourReset       int64
	FiveHourUtilization float64
	SevenDayStatus      string
	SevenDayReset       int64
	SevenDayUtilization float64
}

// ParseRateLimitHeaders reads the anthropic-ratelimit-unified-{5h,7d}-* trio
// off resp, regardless of status code. Missing or unparseable values default
// to zero rather than erroring: a malformed header must never fail the
// relayed request.
func ParseRateLimitHeaders(header http.Header) RateLimitHeaders {
	return RateLimitHeaders{
		FiveHourStatus:      header.Get("anthropic-ratelimit-unified-5h-status"),
		FiveHourReset:       parseInt64(header.Get("anthropic-ratelimit-unified-5h-reset")),
		FiveHourUtilization: parseFloat(header.Get("anthropic-ratelimit-unified-5h-utilization")),
		SevenDayStatus:      header.Get("anthropic-ratelimit-unified-7d-status"),
		SevenDayReset:       parseInt64(header.Get("anthropic-ratelimit-unified-7d-reset")),
		SevenDayUtilization: parseFloat(header.Get("anthropic-ratelimit-unified-7d-utilization")),
	}
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
