package sse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// ContentType is the media type of an SSE response body.
	ContentType = "text/event-stream"

	// LastEventIDHeader carries the resume position on (re)connect.
	LastEventIDHeader = "Last-Event-ID"
)

// ContentTypeError indicates the endpoint responded with something other
// than text/event-stream. The client fails fast rather than misinterpreting
// an arbitrary payload as events.
type ContentTypeError struct {
	ContentType string
}

func (e ContentTypeError) Error() string {
	return fmt.Sprintf("unexpected Content-Type %q, want %q", e.ContentType, ContentType)
}

// StatusError indicates a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("endpoint returned status %d", e.StatusCode)
}

// Options configures a Client.
type Options struct {
	// HTTPClient overrides the transport. Defaults to a client with no
	// timeout: SSE connections are expected to stay open indefinitely, so
	// deadlines are layered by the caller through the context instead.
	HTTPClient *http.Client

	// Headers are sent on every connect, before per-stream headers.
	Headers map[string]string

	// LastEventID seeds the resume position, as if an "id:" line with this
	// value had already been received.
	LastEventID string
}

// Stream describes one connect attempt against an SSE endpoint.
type Stream struct {
	// Method defaults to GET. Chat-completion style endpoints use POST
	// with a JSON body.
	Method string

	// Body is the optional request body.
	Body []byte

	// Headers are merged over the client's headers for this attempt.
	Headers map[string]string

	// OnEvent receives each event as it is parsed off the wire,
	// incrementally, not batched at stream end.
	OnEvent func(Event)

	// OnRetry surfaces "retry:" reconnection hints. The client implements
	// no reconnect loop itself; timing policy belongs to the caller.
	OnRetry func(time.Duration)
}

// Client connects to SSE endpoints and tracks the Last-Event-ID header
// across connects, so a caller-driven reconnect resumes where the stream
// left off. A Client is not safe for concurrent use.
type Client struct {
	httpClient *http.Client

	// headers is the evolving outbound header set, including the
	// Last-Event-ID entry maintained from "id:" lines.
	headers map[string]string
}

// NewClient creates a Client. opts may be nil for defaults.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	headers := make(map[string]string, len(opts.Headers)+2)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if opts.LastEventID != "" {
		headers[LastEventIDHeader] = opts.LastEventID
	}

	return &Client{
		httpClient: httpClient,
		headers:    headers,
	}
}

// LastEventID returns the current resume position, or "" when none is set.
func (c *Client) LastEventID() string {
	return c.headers[LastEventIDHeader]
}

// Connect issues the request and pumps the response body through the
// parsing pipeline, invoking stream.OnEvent per event. It returns nil when
// the stream closes cleanly, and an error when the request fails, the
// response is not an event stream, or ctx is cancelled. Only fully
// delimited events reach OnEvent on the error paths; a clean close flushes
// a trailing undelimited event.
func (c *Client) Connect(ctx context.Context, target string, stream Stream) error {
	method := stream.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(stream.Body) > 0 {
		body = bytes.NewReader(stream.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", ContentType)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range stream.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return StatusError{StatusCode: resp.StatusCode}
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, ContentType) {
		return ContentTypeError{ContentType: ct}
	}

	decoder := NewDecoder(DecoderCallbacks{
		OnEvent: stream.OnEvent,
		OnRetry: stream.OnRetry,
		OnID: func(id string) {
			// An explicit empty id clears the resume position.
			if id == "" {
				delete(c.headers, LastEventIDHeader)
				return
			}
			c.headers[LastEventIDHeader] = id
		},
	})
	splitter := NewLineSplitter(decoder.Line)

	if err := readChunks(ctx, resp.Body, func(chunk []byte) error {
		splitter.Write(chunk)
		return nil
	}); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}

	decoder.Flush()

	return nil
}

// Connect is a package-level convenience that streams from target with a
// fresh single-use Client.
func Connect(ctx context.Context, target string, stream Stream) error {
	return NewClient(nil).Connect(ctx, target, stream)
}
