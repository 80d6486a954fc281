// Package relay re-frames an upstream SSE byte stream into complete,
// client-ready events and tracks token usage as it passes through. Events
// go to the consumer over a bounded channel; the reader waits on a full
// channel until the consumer catches up or the context is cancelled.
package relay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// eventChannelCapacity bounds the backpressure the relay tolerates before a
// slow client stalls the upstream read.
const eventChannelCapacity = 100

// Event is one complete, `\n\n`-terminated SSE event ready to write to the
// client verbatim.
type Event struct {
	Data []byte
}

// Summary is logged once after the upstream stream ends.
type Summary struct {
	Provider string
	Model    string
	Usage    Usage
}

// Relay consumes an upstream SSE body and produces re-framed events on a
// bounded channel, tracking usage as message_start/message_delta events pass
// through.
type Relay struct {
	Provider string
	Model    string

	events chan Event
	errs   chan error
}

// New constructs a Relay for one request. Run must be called to pump events.
func New(providerName, model string) *Relay {
	return &Relay{
		Provider: providerName,
		Model:    model,
		events:   make(chan Event, eventChannelCapacity),
		errs:     make(chan error, 1),
	}
}

// Events returns the channel of re-framed events, closed when Run returns.
func (r *Relay) Events() <-chan Event { return r.events }

// Errs returns the channel a terminal error (if any) is posted to before
// Events is closed.
func (r *Relay) Errs() <-chan error { return r.errs }

// Run reads upstream until EOF or ctx cancellation, splitting on exact
// `\n\n` boundaries and pushing one Event per boundary. It returns the final
// merged usage for the summary log line; callers read that off the return
// value after Events() closes.
func (r *Relay) Run(ctx context.Context, upstream io.Reader) Usage {
	defer close(r.events)

	reader := bufio.NewReaderSize(upstream, 4096)
	var buffer strings.Builder
	var usage Usage

	readChunk := func() ([]byte, error) {
		chunk := make([]byte, 4096)
		n, err := reader.Read(chunk)
		return chunk[:n], err
	}

	for {
		select {
		case <-ctx.Done():
			return usage
		default:
		}

		chunk, err := readChunk()
		if len(chunk) > 0 {
			buffer.Write(chunk)
			usage = r.drainEvents(ctx, &buffer, usage)
		}
		if err != nil {
			if err != io.EOF {
				r.errs <- err
				r.emitSyntheticError(err)
			} else if remainder := buffer.String(); remainder != "" {
				if !r.send(ctx, Event{Data: []byte(remainder)}) {
					return usage
				}
			}
			return usage
		}
	}
}

func (r *Relay) drainEvents(ctx context.Context, buffer *strings.Builder, usage Usage) Usage {
	for {
		text := buffer.String()
		idx := strings.Index(text, "\n\n")
		if idx < 0 {
			return usage
		}

		event := text[:idx+2]
		buffer.Reset()
		buffer.WriteString(text[idx+2:])

		usage = usage.Merge(parseEventUsage(event))

		if !r.send(ctx, Event{Data: []byte(event)}) {
			return usage
		}
	}
}

func (r *Relay) send(ctx context.Context, ev Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Relay) emitSyntheticError(err error) {
	msg := fmt.Sprintf(`data: {"error":%q}`+"\n\n", err.Error())
	select {
	case r.events <- Event{Data: []byte(msg)}:
	default:
		log.Warnf("relay: dropped synthetic error event for provider %s: %v", r.Provider, err)
	}
}

// parseEventUsage walks every `data: ` line of one complete event and merges
// message_start/message_delta usage objects found in it.
func parseEventUsage(event string) Usage {
	var usage Usage
	for _, line := range strings.Split(event, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := []byte(strings.TrimPrefix(line, "data: "))

		switch eventType(payload) {
		case "message_start":
			usage = usage.Merge(ParseUsage(payload, "message.usage"))
		case "message_delta":
			usage = usage.Merge(ParseUsage(payload, "usage"))
		}
	}
	return usage
}

func eventType(payload []byte) string {
	return ParseField(payload, "type")
}

// LogSummary emits the single post-EOF summary line the relay produces once
// the upstream stream has been fully drained.
func LogSummary(s Summary) {
	log.WithFields(log.Fields{
		"provider":       s.Provider,
		"model":          s.Model,
		"input_tokens":   s.Usage.InputTokens,
		"output_tokens":  s.Usage.OutputTokens,
		"cache_read":     s.Usage.CacheReadTokens,
		"cache_creation": s.Usage.CacheCreationTokens,
	}).Info("stream relay finished")
}
