package feed

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/vault"
)

func kafkaCfg() config.Config {
	var cfg config.Config
	cfg.Feed.Kafka.Brokers = []string{"broker-1:9092", "broker-2:9092"}
	cfg.Feed.Kafka.Topic = "quantflow.orderbook.events"
	cfg.Feed.Kafka.GroupID = "quantflow-replica"
	cfg.Feed.DialTimeoutSeconds = 5
	return cfg
}

func TestNewKafkaConfiguresReader(t *testing.T) {
	src, err := NewKafka(kafkaCfg(), vault.Static{}, &captureSink{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.reader.Close() })

	rc := src.reader.Config()
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, rc.Brokers)
	assert.Equal(t, "quantflow.orderbook.events", rc.Topic)
	assert.Equal(t, "quantflow-replica", rc.GroupID)
	assert.Nil(t, rc.Dialer, "no credentials, plaintext dialer")
}

func TestNewKafkaWiresSASLFromSecrets(t *testing.T) {
	secrets := vault.Static{"KAFKA_USERNAME": "svc", "KAFKA_PASSWORD": "pw"}
	src, err := NewKafka(kafkaCfg(), secrets, &captureSink{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.reader.Close() })

	rc := src.reader.Config()
	require.NotNil(t, rc.Dialer)
	assert.NotNil(t, rc.Dialer.SASLMechanism)
}

func TestSASLMechanismRequiresUsername(t *testing.T) {
	mech, err := saslMechanism(vault.Static{"KAFKA_PASSWORD": "pw"})
	require.NoError(t, err)
	assert.Nil(t, mech, "password without username stays plaintext")

	mech, err = saslMechanism(vault.Static{"KAFKA_USERNAME": "svc", "KAFKA_PASSWORD": "pw"})
	require.NoError(t, err)
	require.NotNil(t, mech)
	assert.Equal(t, "svc", mech.Username)
	assert.Equal(t, "pw", mech.Password)
}
