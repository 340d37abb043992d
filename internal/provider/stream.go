package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxLineBytes is the per-line cap on provider stdout: any line exceeding
// 1 MiB is truncated with a marker rather than dropped, preserving line
// boundaries.
const maxLineBytes = 1 << 20

// truncationMarker is appended to any stdout line that was cut at
// maxLineBytes.
const truncationMarker = "...[truncated]"

// StreamEventType identifies the type of a stream-json event.
type StreamEventType string

const (
	StreamEventSystem    StreamEventType = "system"
	StreamEventThread     StreamEventType = "thread.started"
	StreamEventInit       StreamEventType = "init"
	StreamEventAssistant  StreamEventType = "assistant"
	StreamEventUser       StreamEventType = "user"
	StreamEventResult     StreamEventType = "result"
)

// StreamEvent represents a single JSONL event read from a provider's
// stdout. The three provider init schemas are unified into the
// same struct: Claude-style ({type:"system",subtype:"init",session_id}),
// Codex-style ({type:"thread.started",thread_id}), and Gemini-style
// ({type:"init",session_id}).
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	ThreadID  string          `json:"thread_id,omitempty"`

	Message *StreamMessage `json:"message,omitempty"`

	CostUSD    float64 `json:"cost_usd,omitempty"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	IsError    bool    `json:"is_error,omitempty"`
}

// StreamMessage represents a message within a stream event.
type StreamMessage struct {
	Role    string         `json:"role,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock represents a content block within a message.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// IsInit reports whether the event is one of the three recognized init
// messages, in which case SessionID or ThreadID carries the session handle.
func (e *StreamEvent) IsInit() bool {
	switch {
	case e.Type == StreamEventSystem && e.Subtype == "init":
		return true
	case e.Type == StreamEventThread:
		return true
	case e.Type == StreamEventInit:
		return true
	}
	return false
}

// TextContent returns concatenated text from all text content blocks in
// this event's message.
func (e *StreamEvent) TextContent() string {
	if e.Message == nil {
		return ""
	}
	var parts []string
	for _, b := range e.Message.Content {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "")
}

// StreamDecoder reads JSONL events from an io.Reader line by line, truncating
// any line longer than maxLineBytes instead of failing the whole stream.
type StreamDecoder struct {
	r         *bufio.Reader
	truncated bool
}

// NewStreamDecoder creates a decoder that reads JSONL from r.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Truncated reports whether any line read so far was truncated at the 1 MiB
// limit.
func (d *StreamDecoder) Truncated() bool { return d.truncated }

// Next reads and decodes the next stream event. Returns the event and nil on
// success, nil and io.EOF at end of stream, or nil and a decode error for
// malformed JSON lines. Empty lines are skipped. Lines longer than
// maxLineBytes are truncated with truncationMarker before being decoded;
// a truncated line that fails to decode is returned as an event of type
// "truncated" carrying the raw text, not as an error.
func (d *StreamDecoder) Next() (*StreamEvent, error) {
	for {
		line, overlong, err := d.readLine()
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if overlong {
			d.truncated = true
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
			if overlong {
				// A truncated line is expected to fail to parse; surface an
				// event carrying the raw text rather than erroring the run.
				return &StreamEvent{Type: "truncated", Message: &StreamMessage{
					Content: []ContentBlock{{Type: "text", Text: trimmed}},
				}}, nil
			}
			return nil, fmt.Errorf("decoding stream event: %w", err)
		}
		return &event, nil
	}
}

// readLine reads one newline-delimited line, truncating at maxLineBytes and
// discarding the remainder of an overlong line while preserving the line
// boundary for the next read.
func (d *StreamDecoder) readLine() (line string, overlong bool, err error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, rerr := d.r.ReadLine()
		if len(chunk) > 0 {
			if sb.Len() < maxLineBytes {
				remaining := maxLineBytes - sb.Len()
				if len(chunk) > remaining {
					sb.Write(chunk[:remaining])
					overlong = true
				} else {
					sb.Write(chunk)
				}
			} else {
				overlong = true
			}
		}
		if rerr != nil {
			if sb.Len() == 0 {
				return "", false, rerr
			}
			return sb.String(), overlong, nil
		}
		if !isPrefix {
			break
		}
	}
	if overlong {
		sb.WriteString(truncationMarker)
	}
	return sb.String(), overlong, nil
}

// Decode reads all events and sends them to the provided channel with a
// non-blocking send, so a slow consumer drops events rather than stalling
// the subprocess's pipe. Decode returns when the reader is exhausted or ctx
// is cancelled. It never closes events; the caller owns the channel.
func (d *StreamDecoder) Decode(ctx context.Context, events chan<- StreamEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		event, err := d.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			continue
		}

		select {
		case events <- *event:
		default:
		}
	}
}
