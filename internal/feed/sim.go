package feed

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/anthonyhuangg/QuantFlow/internal/book"
	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
)

// simSnapshotEvery re-anchors each simulated instrument with a fresh
// snapshot after this many ticks, so downstream replicas exercise the
// snapshot-reset path continuously, not just at startup.
const simSnapshotEvery = 200

// SimSource generates a random-walk feed so the service runs without
// any upstream. Each instrument opens with a snapshot and then emits
// small incremental bursts around a drifting mid price. The walk is
// deterministic for a given seed.
type SimSource struct {
	sink     Sink
	interval time.Duration
	rng      *rand.Rand
	walks    []*simWalk
	log      log.Logger
}

// simWalk is the generator state for one instrument.
type simWalk struct {
	ins  instrument.Instrument
	mid  float64
	tick int
}

func NewSim(cfg config.Config, cat *instrument.Catalog, sink Sink, logger log.Logger) *SimSource {
	s := &SimSource{
		sink:     sink,
		interval: time.Duration(cfg.Feed.SimIntervalMs) * time.Millisecond,
		rng:      rand.New(rand.NewSource(cfg.Feed.SimSeed)),
		log:      logger.With().Str("component", "feed").Str("source", "sim").Logger(),
	}
	for _, ins := range cat.All() {
		s.walks = append(s.walks, &simWalk{ins: ins, mid: 100 * float64(ins.ID)})
	}
	return s
}

func (s *SimSource) Name() string { return "sim" }

func (s *SimSource) Run(ctx context.Context) error {
	s.log.Info().Int("instruments", len(s.walks)).Dur("interval", s.interval).Msg("simulated feed started")
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			for _, w := range s.walks {
				s.step(w)
			}
		}
	}
}

// step advances one instrument by a single tick and routes what it
// produced.
func (s *SimSource) step(w *simWalk) {
	w.mid *= 1 + (s.rng.Float64()-0.5)*0.002
	if w.tick%simSnapshotEvery == 0 {
		s.sink.Route(s.snapshot(w))
	} else {
		for n := 1 + s.rng.Intn(3); n > 0; n-- {
			s.sink.Route(s.incremental(w))
		}
	}
	w.tick++
}

// snapshot builds a full two-sided book around the current mid.
func (s *SimSource) snapshot(w *simWalk) Message {
	step := w.mid * 0.0005
	bids := make([]book.Level, 0, w.ins.Depth)
	asks := make([]book.Level, 0, w.ins.Depth)
	for i := 0; i < w.ins.Depth; i++ {
		off := float64(i+1) * step
		bids = append(bids, book.Level{Price: roundPrice(w.mid - off), Qty: s.qty()})
		asks = append(asks, book.Level{Price: roundPrice(w.mid + off), Qty: s.qty()})
	}
	return Message{
		Type:         TypeSnapshot,
		InstrumentID: w.ins.ID,
		Timestamp:    time.Now().UnixMilli(),
		Bids:         bids,
		Asks:         asks,
	}
}

// incremental mutates one random level near the mid. Removes may name
// a price that is no longer resting; replicas treat that as a no-op.
func (s *SimSource) incremental(w *simWalk) Message {
	step := w.mid * 0.0005
	isBid := s.rng.Intn(2) == 0
	off := float64(1+s.rng.Intn(w.ins.Depth)) * step
	price := w.mid + off
	if isBid {
		price = w.mid - off
	}
	msg := Message{
		Type:         TypeIncremental,
		InstrumentID: w.ins.ID,
		Timestamp:    time.Now().UnixMilli(),
		IsBid:        isBid,
		UpdateType:   UpdateUpsert,
		Level:        book.Level{Price: roundPrice(price), Qty: s.qty()},
	}
	if s.rng.Intn(5) == 0 {
		msg.UpdateType = UpdateRemove
		msg.Level.Qty = 0
	}
	return msg
}

func (s *SimSource) qty() float64 {
	return math.Round((1+s.rng.Float64()*9)*1000) / 1000
}

func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}
