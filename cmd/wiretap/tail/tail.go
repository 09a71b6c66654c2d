// Package tailcmder provides the tail command for following an SSE stream
// and printing events as they arrive.
package tailcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/wiretap/pkg/cliui"
	"github.com/papercomputeco/wiretap/pkg/config"
	"github.com/papercomputeco/wiretap/pkg/dotdir"
	"github.com/papercomputeco/wiretap/pkg/eventstream"
	"github.com/papercomputeco/wiretap/pkg/eventstream/kafka"
	"github.com/papercomputeco/wiretap/pkg/eventstream/nop"
	"github.com/papercomputeco/wiretap/pkg/logger"
	"github.com/papercomputeco/wiretap/pkg/sse"
	"github.com/papercomputeco/wiretap/pkg/store"
	"github.com/papercomputeco/wiretap/pkg/store/sqlite"
)

// defaultReconnectDelay applies until the stream supplies a "retry:" hint.
const defaultReconnectDelay = 3 * time.Second

type tailCommander struct {
	method       string
	body         string
	headers      []string
	eventFilter  string
	jsonOut      bool
	record       string
	resume       bool
	lastEventID  string
	once         bool
	publish      bool
	kafkaBrokers []string
	kafkaTopic   string

	debug     bool
	configDir string

	logger *slog.Logger
}

const tailLongDesc string = `Follow a Server-Sent Events stream and print events as they arrive.

tail connects to the given URL, negotiates a text/event-stream response,
and prints each event incrementally. On stream end or connection failure it
reconnects automatically, resuming from the last received event id via the
Last-Event-ID header.

Events can also be recorded to a SQLite database (--record), published to a
Kafka topic (--publish), and resumed across tail sessions (--resume, which
persists the last event id under the .wiretap/ directory).

Examples:
  wiretap tail https://example.com/stream
  wiretap tail https://example.com/stream --event price --json
  wiretap tail https://example.com/stream --header "Authorization: Bearer tok"
  wiretap tail https://example.com/stream --record ./events.db --resume
  wiretap tail https://api.example.com/chat --method POST --body '{"stream":true}'`

const tailShortDesc string = "Follow an SSE stream and print events"

func NewTailCmd() *cobra.Command {
	cmder := &tailCommander{}

	cmd := &cobra.Command{
		Use:   "tail <url>",
		Short: tailShortDesc,
		Long:  tailLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("method") {
				cmder.method = cfg.Tail.Method
			}
			if !cmd.Flags().Changed("record") {
				cmder.record = cfg.Record.SQLitePath
			}
			if !cmd.Flags().Changed("kafka-brokers") {
				cmder.kafkaBrokers = cfg.Kafka.Brokers
			}
			if !cmd.Flags().Changed("kafka-topic") {
				cmder.kafkaTopic = cfg.Kafka.Topic
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.method, "method", "X", "GET", "HTTP method for the stream request")
	cmd.Flags().StringVar(&cmder.body, "body", "", "Request body (for POST streams)")
	cmd.Flags().StringArrayVarP(&cmder.headers, "header", "H", nil, "Extra request header as \"Name: value\" (repeatable)")
	cmd.Flags().StringVarP(&cmder.eventFilter, "event", "e", "", "Only print events of this type")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print events as JSON lines")
	cmd.Flags().StringVarP(&cmder.record, "record", "r", "", "Record events to a SQLite database at this path")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Resume from the last event id persisted in .wiretap/")
	cmd.Flags().StringVar(&cmder.lastEventID, "last-event-id", "", "Seed the Last-Event-ID header explicitly")
	cmd.Flags().BoolVar(&cmder.once, "once", false, "Exit when the stream ends instead of reconnecting")
	cmd.Flags().BoolVar(&cmder.publish, "publish", false, "Publish events to the configured Kafka topic")
	cmd.Flags().StringSliceVar(&cmder.kafkaBrokers, "kafka-brokers", nil, "Kafka broker addresses")
	cmd.Flags().StringVar(&cmder.kafkaTopic, "kafka-topic", "", "Kafka topic for published events")

	return cmd
}

func (c *tailCommander) run(url string) error {
	// Logs go to stderr; stdout carries only event output.
	c.logger = logger.New(
		logger.WithPretty(true),
		logger.WithDebug(c.debug),
		logger.WithWriter(os.Stderr),
	)

	headers, err := parseHeaders(c.headers)
	if err != nil {
		return err
	}

	driver, err := c.openStore()
	if err != nil {
		return err
	}
	if driver != nil {
		defer driver.Close()
	}

	publisher, err := c.openPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	ddm := dotdir.NewManager()

	lastEventID := c.lastEventID
	if c.resume && lastEventID == "" {
		cursor, err := ddm.LoadCursor(url, c.configDir)
		if err != nil {
			return fmt.Errorf("loading cursor: %w", err)
		}
		if cursor != nil {
			lastEventID = cursor.LastEventID
			c.logger.Info("resuming stream",
				"last_event_id", lastEventID,
				"saved_at", cursor.UpdatedAt,
			)
		}
	}

	client := sse.NewClient(&sse.Options{
		Headers:     headers,
		LastEventID: lastEventID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persist the resume position however the session ends.
	if c.resume {
		defer func() {
			if err := ddm.SaveCursor(url, client.LastEventID(), c.configDir); err != nil {
				c.logger.Warn("saving cursor failed", "err", err)
			}
		}()
	}

	reconnectDelay := defaultReconnectDelay
	stream := sse.Stream{
		Method: c.method,
		Body:   []byte(c.body),
		OnEvent: func(evt sse.Event) {
			c.handleEvent(ctx, url, evt, driver, publisher)
		},
		OnRetry: func(d time.Duration) {
			reconnectDelay = d
		},
	}

	for {
		err := client.Connect(ctx, url, stream)
		if ctx.Err() != nil {
			c.logger.Info("interrupted", "last_event_id", client.LastEventID())
			return nil
		}

		if err != nil {
			c.logger.Warn("connection failed", "url", url, "err", err)
		} else {
			c.logger.Info("stream ended", "last_event_id", client.LastEventID())
		}

		if c.once {
			return err
		}

		c.logger.Debug("reconnecting", "delay", cliui.FormatDuration(reconnectDelay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// handleEvent prints one event and forwards it to the optional store and
// publisher. Sink failures are logged, not fatal.
func (c *tailCommander) handleEvent(ctx context.Context, url string, evt sse.Event, driver store.Driver, publisher eventstream.Publisher) {
	if c.eventFilter != "" && eventType(evt) != c.eventFilter {
		return
	}

	c.printEvent(evt)

	if driver != nil {
		if _, err := driver.Append(ctx, url, evt); err != nil {
			c.logger.Error("recording event failed", "event_id", evt.ID, "err", err)
		}
	}

	if c.publish {
		if err := publisher.PublishEvent(ctx, eventstream.NewEventReceived(url, evt)); err != nil {
			c.logger.Error("publishing event failed", "event_id", evt.ID, "err", err)
		}
	}
}

func (c *tailCommander) printEvent(evt sse.Event) {
	if c.jsonOut {
		line := struct {
			ID         string    `json:"id,omitempty"`
			Type       string    `json:"type"`
			Data       string    `json:"data"`
			RetryMS    int64     `json:"retry_ms,omitempty"`
			ReceivedAt time.Time `json:"received_at"`
		}{
			ID:         evt.ID,
			Type:       eventType(evt),
			Data:       evt.Data,
			ReceivedAt: time.Now().UTC(),
		}
		if evt.Retry != nil {
			line.RetryMS = evt.Retry.Milliseconds()
		}

		out, err := json.Marshal(line)
		if err != nil {
			c.logger.Error("encoding event failed", "err", err)
			return
		}
		fmt.Println(string(out))
		return
	}

	header := cliui.DimStyle.Render(time.Now().Format("15:04:05")) +
		" " + cliui.EventStyle.Render(eventType(evt))
	if evt.ID != "" {
		header += " " + cliui.IDStyle.Render("#"+evt.ID)
	}

	fmt.Println(header)
	if evt.Data != "" {
		fmt.Println(evt.Data)
	}
	fmt.Println()
}

func (c *tailCommander) openStore() (store.Driver, error) {
	if c.record == "" {
		return nil, nil
	}

	driver, err := sqlite.NewDriver(c.record)
	if err != nil {
		return nil, fmt.Errorf("opening record database: %w", err)
	}

	c.logger.Info("recording events", "path", c.record)
	return driver, nil
}

func (c *tailCommander) openPublisher() (eventstream.Publisher, error) {
	if !c.publish {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(c.kafkaBrokers, c.kafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing events",
		"brokers", strings.Join(c.kafkaBrokers, ","),
		"topic", c.kafkaTopic,
	)
	return publisher, nil
}

// eventType maps the empty wire type to the SSE default "message".
func eventType(evt sse.Event) string {
	if evt.Type == "" {
		return "message"
	}
	return evt.Type
}

// parseHeaders converts repeated "Name: value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	return headers, nil
}
