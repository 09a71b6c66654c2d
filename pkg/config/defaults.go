package config

const (
	defaultTailMethod = "GET"

	defaultRelayListen   = ":8080"
	defaultRelayUpstream = ""
	defaultRelayBuffer   = 64

	defaultKafkaTopic = "wiretap.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Tail: TailConfig{
			Method: defaultTailMethod,
		},
		Relay: RelayConfig{
			Listen:   defaultRelayListen,
			Upstream: defaultRelayUpstream,
			Buffer:   defaultRelayBuffer,
		},
		Kafka: KafkaConfig{
			Topic: defaultKafkaTopic,
		},
	}
}
