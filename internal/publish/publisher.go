// Package publish pushes the read models to a broker topic on a fixed
// cadence for downstream consumers that do not poll the HTTP surface.
package publish

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/vault"
	"github.com/anthonyhuangg/QuantFlow/internal/replica"
)

// ViewSource yields the read models to publish; replica.Manager is the
// production implementation.
type ViewSource interface {
	Views() []replica.View
}

// messageWriter is the slice of kafka.Writer the publisher uses; tests
// substitute a capture.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher snapshots every replica on a ticker and writes one message
// per instrument, keyed by instrument id. Write failures are counted
// and logged, never fatal: the next tick carries fresher state anyway.
type Publisher struct {
	src      ViewSource
	writer   messageWriter
	interval time.Duration
	log      log.Logger
}

func New(cfg config.Config, src ViewSource, secrets vault.SecretStore, logger log.Logger) (*Publisher, error) {
	w := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Publish.Brokers...),
		Topic: cfg.Publish.Topic,
		// Hash keeps each instrument on one partition so consumers see
		// its views in publish order.
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	mech, err := saslMechanism(secrets)
	if err != nil {
		return nil, err
	}
	if mech != nil {
		w.Transport = &kafka.Transport{SASL: mech}
	}
	return &Publisher{
		src:      src,
		writer:   w,
		interval: time.Duration(cfg.Publish.IntervalMs) * time.Millisecond,
		log:      logger.With().Str("component", "publish").Logger(),
	}, nil
}

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

// Run publishes until ctx ends, then closes the writer.
func (p *Publisher) Run(ctx context.Context) error {
	interval := p.interval
	if interval <= 0 {
		interval = time.Second
	}
	p.log.Info().Dur("interval", interval).Msg("publisher started")
	t := time.NewTicker(interval)
	defer t.Stop()
	defer func() { _ = p.writer.Close() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.flush(ctx)
		}
	}
}

// flush writes the current view of every replica.
func (p *Publisher) flush(ctx context.Context) {
	views := p.src.Views()
	if len(views) == 0 {
		return
	}
	msgs := make([]kafka.Message, 0, len(views))
	for _, v := range views {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(v.InstrumentID, 10)),
			Value: b,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.PublishErrorsTotal.Inc()
		p.log.Warn().Err(err).Int("views", len(msgs)).Msg("publish failed")
		return
	}
	metrics.PublishedTotal.Add(float64(len(msgs)))
}
