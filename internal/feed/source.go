package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/vault"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
)

// Sink receives transport output. Route delivers a decoded message on
// the transport goroutine and must not block; Reject accounts for a
// payload that failed decoding (instrumentID 0 when the bytes did not
// reveal one).
type Sink interface {
	Route(msg Message)
	Reject(instrumentID int64, err error)
}

// Source is one upstream transport driving the replica pipelines. Run
// blocks until ctx is done or the transport fails beyond recovery;
// transient faults (disconnects, malformed payloads) are handled
// internally.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// New selects the transport for cfg.Feed.Mode.
func New(cfg config.Config, cat *instrument.Catalog, sink Sink, secrets vault.SecretStore, logger log.Logger) (Source, error) {
	switch cfg.Feed.Mode {
	case "sim":
		return NewSim(cfg, cat, sink, logger), nil
	case "websocket":
		return NewWS(cfg, cat, sink, logger)
	case "kafka":
		return NewKafka(cfg, secrets, sink, logger)
	case "replay":
		return NewReplay(cfg, sink, logger)
	default:
		return nil, fmt.Errorf("unknown feed mode %q", cfg.Feed.Mode)
	}
}

// sleepCtx waits d unless ctx ends first; false means ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
