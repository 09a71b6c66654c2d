package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent wiretap configuration stored as config.toml
// in the .wiretap/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Tail    TailConfig   `toml:"tail"`
	Relay   RelayConfig  `toml:"relay"`
	Record  RecordConfig `toml:"record"`
	Kafka   KafkaConfig  `toml:"kafka"`
}

// TailConfig holds settings for the tail command.
type TailConfig struct {
	Method string `toml:"method,omitempty"`
}

// RelayConfig holds relay server settings.
type RelayConfig struct {
	Listen   string `toml:"listen,omitempty"`
	Upstream string `toml:"upstream,omitempty"`

	// Buffer is the per-subscriber event buffer size. Slow subscribers
	// whose buffer fills up start dropping events rather than stalling
	// the upstream read.
	Buffer uint `toml:"buffer,omitempty"`
}

// RecordConfig holds event recording settings.
type RecordConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// KafkaConfig holds settings for publishing received events to Kafka.
type KafkaConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"tail.method": {
		get: func(c *Config) string { return c.Tail.Method },
		set: func(c *Config, v string) error { c.Tail.Method = v; return nil },
	},
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"relay.upstream": {
		get: func(c *Config) string { return c.Relay.Upstream },
		set: func(c *Config, v string) error { c.Relay.Upstream = v; return nil },
	},
	"relay.buffer": {
		get: func(c *Config) string {
			if c.Relay.Buffer == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Relay.Buffer), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for relay.buffer: %w", err)
			}
			c.Relay.Buffer = uint(n)
			return nil
		},
	},
	"record.sqlite_path": {
		get: func(c *Config) string { return c.Record.SQLitePath },
		set: func(c *Config, v string) error { c.Record.SQLitePath = v; return nil },
	},
	"kafka.brokers": {
		get: func(c *Config) string { return strings.Join(c.Kafka.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Kafka.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Kafka.Brokers = append(c.Kafka.Brokers, b)
				}
			}
			return nil
		},
	},
	"kafka.topic": {
		get: func(c *Config) string { return c.Kafka.Topic },
		set: func(c *Config, v string) error { c.Kafka.Topic = v; return nil },
	},
}
