// Package relay provides an SSE relay server: it subscribes to one upstream
// event stream and fans the events out to any number of downstream
// subscribers, optionally recording and publishing each event as it passes
// through.
package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/wiretap/pkg/eventstream"
	"github.com/papercomputeco/wiretap/pkg/sse"
)

// defaultReconnectDelay is used between upstream connects until the stream
// supplies a "retry:" hint.
const defaultReconnectDelay = 3 * time.Second

// Relay subscribes to an upstream SSE stream and re-serves it to downstream
// clients. The upstream connection is resumed across reconnects via the
// Last-Event-ID header.
type Relay struct {
	config Config
	hub    *Hub
	client *sse.Client
	logger *zap.Logger
	server *fiber.App

	// reconnectDelay is updated from upstream "retry:" hints.
	reconnectDelay time.Duration

	cancelUpstream context.CancelFunc
	upstreamDone   chan struct{}
}

// New creates a new Relay. The store and publisher in the config are
// optional; the upstream URL is not.
func New(config Config, logger *zap.Logger) (*Relay, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	r := &Relay{
		config: config,
		hub:    NewHub(config.SubscriberBuffer, logger),
		client: sse.NewClient(&sse.Options{
			Headers:     config.Headers,
			LastEventID: config.LastEventID,
		}),
		logger:         logger,
		server:         app,
		reconnectDelay: defaultReconnectDelay,
		upstreamDone:   make(chan struct{}),
	}

	app.Get("/stream", r.handleStream)
	app.Get("/healthz", r.handleHealthz)

	return r, nil
}

// Run starts the upstream subscription and serves downstream clients on the
// configured listen address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.UpstreamURL),
	)

	r.startUpstream()
	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", r.config.UpstreamURL),
	)

	r.startUpstream()
	return r.server.Listener(listener)
}

// Close stops the upstream subscription, disconnects all subscribers, and
// shuts down the server.
func (r *Relay) Close() error {
	if r.cancelUpstream != nil {
		r.cancelUpstream()
		<-r.upstreamDone
	}
	r.hub.Close()
	return r.server.Shutdown()
}

// LastEventID returns the current upstream resume position.
func (r *Relay) LastEventID() string {
	return r.client.LastEventID()
}

// startUpstream launches the upstream subscribe loop.
func (r *Relay) startUpstream() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelUpstream = cancel

	go func() {
		defer close(r.upstreamDone)
		r.upstreamLoop(ctx)
	}()
}

// upstreamLoop connects to the upstream and reconnects on failure until ctx
// is cancelled. Resume position is carried by the client across connects.
func (r *Relay) upstreamLoop(ctx context.Context) {
	for {
		err := r.client.Connect(ctx, r.config.UpstreamURL, sse.Stream{
			OnEvent: r.handleUpstreamEvent,
			OnRetry: func(d time.Duration) {
				r.reconnectDelay = d
			},
		})
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			r.logger.Warn("upstream connection failed",
				zap.String("upstream", r.config.UpstreamURL),
				zap.Error(err),
			)
		} else {
			r.logger.Info("upstream stream ended, reconnecting",
				zap.String("last_event_id", r.client.LastEventID()),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.reconnectDelay):
		}
	}
}

// handleUpstreamEvent records, publishes, and fans out one upstream event.
// Store and publisher failures are logged, not fatal: the relay's first job
// is keeping the downstream flowing.
func (r *Relay) handleUpstreamEvent(evt sse.Event) {
	ctx := context.Background()

	if r.config.Store != nil {
		if _, err := r.config.Store.Append(ctx, r.config.UpstreamURL, evt); err != nil {
			r.logger.Error("recording event failed",
				zap.String("event_id", evt.ID),
				zap.Error(err),
			)
		}
	}

	if r.config.Publisher != nil {
		envelope := eventstream.NewEventReceived(r.config.UpstreamURL, evt)
		if err := r.config.Publisher.PublishEvent(ctx, envelope); err != nil {
			r.logger.Error("publishing event failed",
				zap.String("event_id", evt.ID),
				zap.Error(err),
			)
		}
	}

	delivered := r.hub.Publish(evt)

	r.logger.Debug("event relayed",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.Int("delivered", delivered),
	)
}

// handleStream serves one downstream subscriber.
func (r *Relay) handleStream(c *fiber.Ctx) error {
	ch, unsubscribe := r.hub.Subscribe()

	c.Set(fiber.HeaderContentType, sse.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	// Use io.Pipe + SetBodyStream: pw.Write blocks until fasthttp's chunked
	// writer consumes the data, so every event is flushed to the socket as
	// it arrives rather than buffering in memory. The goroutine must not
	// touch the fiber ctx; fasthttp recycles it after this handler returns.
	pr, pw := io.Pipe()
	go func() {
		defer unsubscribe()
		defer pw.Close()

		for evt := range ch {
			if _, err := io.WriteString(pw, evt.String()); err != nil {
				// Subscriber disconnected.
				return
			}
		}
	}()

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// handleHealthz reports relay liveness and fanout counters.
func (r *Relay) handleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "ok",
		"upstream":      r.config.UpstreamURL,
		"subscribers":   r.hub.Len(),
		"dropped":       r.hub.Dropped(),
		"last_event_id": r.client.LastEventID(),
	})
}
