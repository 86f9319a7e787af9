package feed

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/vault"
)

// KafkaSource consumes the wire messages from a topic through a
// consumer group, so multiple replica hosts split instruments by
// partition. Message order within a partition is the arrival order;
// producers must partition by instrument id for per-instrument FIFO to
// hold end to end.
type KafkaSource struct {
	reader *kafka.Reader
	sink   Sink
	log    log.Logger
}

func NewKafka(cfg config.Config, secrets vault.SecretStore, sink Sink, logger log.Logger) (*KafkaSource, error) {
	rc := kafka.ReaderConfig{
		Brokers:  cfg.Feed.Kafka.Brokers,
		Topic:    cfg.Feed.Kafka.Topic,
		GroupID:  cfg.Feed.Kafka.GroupID,
		MaxWait:  time.Second,
		MinBytes: 1,
		MaxBytes: 10 * 1024 * 1024,
	}
	if mech, err := saslMechanism(secrets); err != nil {
		return nil, err
	} else if mech != nil {
		rc.Dialer = &kafka.Dialer{
			Timeout:       time.Duration(cfg.Feed.DialTimeoutSeconds) * time.Second,
			DualStack:     true,
			SASLMechanism: mech,
		}
	}
	return &KafkaSource{
		reader: kafka.NewReader(rc),
		sink:   sink,
		log:    logger.With().Str("component", "feed").Str("source", "kafka").Logger(),
	}, nil
}

// saslMechanism builds SASL/PLAIN credentials from the secret store.
// Nil when no username is configured; brokers without auth stay
// plaintext.
func saslMechanism(secrets vault.SecretStore) (*plain.Mechanism, error) {
	user, err := secrets.Get("KAFKA_USERNAME")
	if err != nil {
		return nil, err
	}
	if user == "" {
		return nil, nil
	}
	pass, err := secrets.Get("KAFKA_PASSWORD")
	if err != nil {
		return nil, err
	}
	return &plain.Mechanism{Username: user, Password: pass}, nil
}

func (s *KafkaSource) Name() string { return "kafka" }

func (s *KafkaSource) Run(ctx context.Context) error {
	defer func() { _ = s.reader.Close() }()
	s.log.Info().Str("topic", s.reader.Config().Topic).Str("group", s.reader.Config().GroupID).Msg("kafka feed started")
	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			// The reader redials internally; anything surfacing here is
			// worth a breath before retrying.
			metrics.FeedErrorsTotal.WithLabelValues(s.Name(), "read").Inc()
			s.log.Warn().Err(err).Msg("kafka read failed")
			if !sleepCtx(ctx, time.Second) {
				return nil
			}
			continue
		}
		msg, err := Decode(m.Value)
		if err != nil {
			metrics.FeedErrorsTotal.WithLabelValues(s.Name(), "decode").Inc()
			s.sink.Reject(InstrumentHint(m.Value), err)
			continue
		}
		s.sink.Route(msg)
	}
}
