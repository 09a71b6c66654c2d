// Package relaycmder provides the relay command for re-serving an upstream
// SSE stream to many downstream subscribers.
package relaycmder

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/wiretap/pkg/config"
	"github.com/papercomputeco/wiretap/pkg/dotdir"
	"github.com/papercomputeco/wiretap/pkg/eventstream"
	"github.com/papercomputeco/wiretap/pkg/eventstream/kafka"
	"github.com/papercomputeco/wiretap/pkg/logger"
	"github.com/papercomputeco/wiretap/pkg/store"
	"github.com/papercomputeco/wiretap/pkg/store/sqlite"
	"github.com/papercomputeco/wiretap/relay"
)

// relayFlags defines the relay command's flags and their config bindings.
var relayFlags = config.FlagSet{
	config.FlagRelayListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "relay.listen",
		Description: "Address for the relay server to listen on",
	},
	config.FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "relay.upstream",
		Description: "Upstream SSE stream URL to subscribe to",
	},
	config.FlagBuffer: {
		Name:        "buffer",
		ViperKey:    "relay.buffer",
		Description: "Per-subscriber event buffer size",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "record.sqlite_path",
		Description: "Record upstream events to a SQLite database at this path",
	},
	config.FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "kafka.topic",
		Description: "Kafka topic for published events",
	},
}

var relayFlagKeys = []string{
	config.FlagRelayListen,
	config.FlagUpstream,
	config.FlagBuffer,
	config.FlagSQLite,
	config.FlagKafkaTopic,
}

type relayCommander struct {
	listen     string
	upstream   string
	buffer     uint
	sqlitePath string
	kafkaTopic string
	resume     bool
	publish    bool

	debug     bool
	configDir string

	viper  *viper.Viper
	logger *zap.Logger
}

const relayLongDesc string = `Run the wiretap relay server.

The relay subscribes to one upstream SSE stream and re-serves it to any
number of downstream subscribers on GET /stream. Slow subscribers drop
events instead of stalling the upstream read. The upstream connection
reconnects automatically, resuming via the Last-Event-ID header.

Upstream events can also be recorded to SQLite (--sqlite) and published to
a Kafka topic (--publish) as they pass through. GET /healthz reports
subscriber and drop counters.

Flag values fall back to environment variables (WIRETAP_RELAY_LISTEN, ...)
and config.toml in the .wiretap/ directory.

Examples:
  wiretap relay --upstream https://example.com/stream
  wiretap relay --upstream https://example.com/stream --listen :9090 --buffer 128
  wiretap relay --upstream https://example.com/stream --sqlite ./events.db --resume`

const relayShortDesc string = "Re-serve an upstream SSE stream to many subscribers"

func NewRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, relayFlags, relayFlagKeys)

			cmder.viper = v
			cmder.listen = v.GetString("relay.listen")
			cmder.upstream = v.GetString("relay.upstream")
			cmder.buffer = v.GetUint("relay.buffer")
			cmder.sqlitePath = v.GetString("record.sqlite_path")
			cmder.kafkaTopic = v.GetString("kafka.topic")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, relayFlags, config.FlagRelayListen, &cmder.listen)
	config.AddStringFlag(cmd, relayFlags, config.FlagUpstream, &cmder.upstream)
	config.AddUintFlag(cmd, relayFlags, config.FlagBuffer, &cmder.buffer)
	config.AddStringFlag(cmd, relayFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, relayFlags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Resume from the last event id persisted in .wiretap/")
	cmd.Flags().BoolVar(&cmder.publish, "publish", false, "Publish upstream events to the configured Kafka topic")

	return cmd
}

func (c *relayCommander) run() error {
	if c.upstream == "" {
		return errors.New("upstream URL is required (--upstream, WIRETAP_RELAY_UPSTREAM, or relay.upstream)")
	}

	c.logger = logger.NewZap(c.debug)
	defer c.logger.Sync()

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
	if publisher != nil {
		defer publisher.Close()
	}

	ddm := dotdir.NewManager()

	lastEventID := ""
	if c.resume {
		cursor, err := ddm.LoadCursor(c.upstream, c.configDir)
		if err != nil {
			return fmt.Errorf("loading cursor: %w", err)
		}
		if cursor != nil {
			lastEventID = cursor.LastEventID
			c.logger.Info("resuming upstream stream",
				zap.String("last_event_id", lastEventID),
			)
		}
	}

	r, err := relay.New(relay.Config{
		ListenAddr:       c.listen,
		UpstreamURL:      c.upstream,
		SubscriberBuffer: c.buffer,
		LastEventID:      lastEventID,
		Store:            driver,
		Publisher:        publisher,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := r.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	if err := r.Close(); err != nil {
		return fmt.Errorf("shutting down relay: %w", err)
	}

	if c.resume {
		if err := ddm.SaveCursor(c.upstream, r.LastEventID(), c.configDir); err != nil {
			c.logger.Warn("saving cursor failed", zap.Error(err))
		}
	}

	return nil
}

func (c *relayCommander) openStore() (store.Driver, error) {
	if c.sqlitePath == "" {
		return nil, nil
	}

	driver, err := sqlite.NewDriver(c.sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("opening record database: %w", err)
	}

	c.logger.Info("recording upstream events", zap.String("path", c.sqlitePath))
	return driver, nil
}

func (c *relayCommander) openPublisher() (eventstream.Publisher, error) {
	if !c.publish {
		return nil, nil
	}

	brokers := c.viper.GetStringSlice("kafka.brokers")
	publisher, err := kafka.NewPublisher(brokers, c.kafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing upstream events",
		zap.Strings("brokers", brokers),
		zap.String("topic", c.kafkaTopic),
	)
	return publisher, nil
}
