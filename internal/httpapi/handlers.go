package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/arasple/pluribus/internal/provider"
	"github.com/arasple/pluribus/internal/relay"
	"github.com/arasple/pluribus/internal/selector"
	"github.com/arasple/pluribus/internal/transform"
	"github.com/arasple/pluribus/internal/upstream"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

type providerSummary struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	RateLimit interface{} `json:"rate_limit,omitempty"`
}

func healthHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries := make([]providerSummary, 0, deps.Registry.Len())
		for _, p := range deps.Registry.All() {
			summaries = append(summaries, providerSummary{
				Name:      p.Name,
				Type:      string(p.Type),
				RateLimit: p.RateLimit(),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   deps.VersionResolver.Resolve(c.Request.Context()),
			"providers": summaries,
		})
	}
}

func messagesHandler(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"type": "invalid_request_error", "message": err.Error()})
			return
		}

		wantsStream := gjson.GetBytes(rawBody, "stream").Bool()

		p, err := selector.Select(deps.Registry, selector.AnthropicCompatible)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"type":    "no_provider_available",
				"message": "no provider available; run `pluribus login claude-code` to add one",
			})
			return
		}

		aliasTools := deps.AliasToolsByName[p.Name]
		body, err := transform.Request(rawBody, c.Request, transform.Options{Stream: wantsStream, AliasTools: aliasTools})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"type": "invalid_request_error", "message": err.Error()})
			return
		}

		accessToken, err := deps.Engine.GetValidToken(c.Request.Context(), p.Name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"type": "upstream_error", "message": err.Error()})
			return
		}

		call, body, err := upstream.NewCall(deps.MessagesClient, accessToken, upstream.UserAgent(deps.VersionResolver.Resolve(c.Request.Context())), body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"type": "internal_error", "message": err.Error()})
			return
		}

		if wantsStream {
			serveStream(c, call, body, p, deps.AliasToolsByName[p.Name])
			return
		}
		serveUnit(c, call, body, p, deps.AliasToolsByName[p.Name])
	}
}

func serveUnit(c *gin.Context, call *upstream.Call, body []byte, p *provider.Provider, aliasTools bool) {
	status, respBody, err := call.Unit(c.Request.Context(), body, p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"type": "upstream_error", "message": err.Error()})
		return
	}
	if status < 200 || status >= 300 {
		upstreamBody := json.RawMessage(respBody)
		if len(upstreamBody) == 0 || !json.Valid(upstreamBody) {
			upstreamBody = json.RawMessage("null")
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"type":            "upstream_http_error",
			"message":         "upstream returned a non-2xx status",
			"upstream_status": status,
			"upstream_body":   upstreamBody,
		})
		return
	}

	if aliasTools {
		if rewritten, err := transform.ApplyToolAliasInboundUnit(respBody); err == nil {
			respBody = rewritten
		}
	}

	usage := relay.ParseUsage(respBody, "usage")
	logEntry := log.WithFields(log.Fields{"input_tokens": usage.InputTokens, "output_tokens": usage.OutputTokens})
	if usage.IsZero() {
		logEntry.Warn("unit response usage is all-zero")
	} else {
		logEntry.Info("unit response relayed")
	}

	c.Data(http.StatusOK, "application/json", respBody)
}

func serveStream(c *gin.Context, call *upstream.Call, body []byte, p *provider.Provider, aliasTools bool) {
	resp, err := call.Stream(c.Request.Context(), body, p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"type": "upstream_error", "message": err.Error()})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(resp.StatusCode)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return
	}

	model := gjson.GetBytes(body, "model").String()
	r := relay.New(p.Name, model)

	go func() {
		usage := r.Run(c.Request.Context(), resp.Body)
		relay.LogSummary(relay.Summary{Provider: p.Name, Model: model, Usage: usage})
	}()

	for ev := range r.Events() {
		data := ev.Data
		if aliasTools {
			data = []byte(transform.RestoreToolNamesInStream(string(data)))
		}
		_, _ = c.Writer.Write(data)
		flusher.Flush()
	}
}
