package replica

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthonyhuangg/QuantFlow/internal/book"
	"github.com/anthonyhuangg/QuantFlow/internal/feed"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
)

// Engine owns one instrument's book replica. Apply is the only
// mutator and runs on the pipeline's consumer goroutine; View and the
// tracker accessors may be called concurrently from any goroutine.
// The lock covers book mutation and reads only, so critical sections
// stay O(depth) with no I/O inside.
type Engine struct {
	ins     instrument.Instrument
	tracker *Tracker
	log     log.Logger

	mu          sync.RWMutex
	book        *book.Book
	initialized bool

	lastApplyMs atomic.Int64
	now         func() time.Time
}

// NewEngine builds an uninitialized replica for ins. The replica
// becomes initialized by its first snapshot and never leaves that
// state while the engine lives.
func NewEngine(ins instrument.Instrument, tracker *Tracker, logger log.Logger) *Engine {
	return &Engine{
		ins:     ins,
		tracker: tracker,
		log:     logger.With().Str("component", "replica").Str("symbol", ins.Symbol).Logger(),
		book:    book.New(ins.Depth),
		now:     time.Now,
	}
}

// Instrument returns the instrument this engine replicates.
func (e *Engine) Instrument() instrument.Instrument { return e.ins }

// Tracker exposes the engine's delivery-health accounting.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Initialized reports whether a snapshot has been applied yet.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// LastApplyMs reports the wall-clock ms of the most recent apply,
// 0 before the first one. The staleness monitor reads it.
func (e *Engine) LastApplyMs() int64 { return e.lastApplyMs.Load() }

// Apply folds one message into the replica. It never fails: a message
// that cannot be applied is counted as a drop and skipped, and the
// book is left exactly as it was.
func (e *Engine) Apply(msg feed.Message) {
	switch msg.Type {
	case feed.TypeSnapshot:
		e.applySnapshot(msg)
	case feed.TypeIncremental:
		e.applyIncremental(msg)
	default:
		// Transports cannot produce this, but Apply is a public API.
		e.drop("unknown_type")
	}
}

// applySnapshot replaces both sides unconditionally. Even a snapshot
// older than applied incrementals wins: the producer emits snapshots
// as authoritative resets and timestamps never order messages.
func (e *Engine) applySnapshot(msg feed.Message) {
	e.mu.Lock()
	e.book.ApplySnapshot(msg.Bids, msg.Asks)
	e.initialized = true
	e.mu.Unlock()

	e.observe(msg)
	metrics.MessagesAppliedTotal.WithLabelValues(e.ins.Symbol, string(feed.TypeSnapshot)).Inc()
	metrics.SnapshotResetsTotal.WithLabelValues(e.ins.Symbol).Inc()
	e.log.Debug().Int("bids", len(msg.Bids)).Int("asks", len(msg.Asks)).Msg("snapshot applied")
}

func (e *Engine) applyIncremental(msg feed.Message) {
	switch msg.UpdateType {
	case feed.UpdateUpsert, feed.UpdateReplace:
		e.mu.Lock()
		e.book.Upsert(msg.Side(), msg.Level)
		e.mu.Unlock()
	case feed.UpdateRemove:
		e.mu.Lock()
		e.book.Remove(msg.Side(), msg.Level.Price)
		e.mu.Unlock()
	default:
		e.drop("unknown_update")
		return
	}

	e.observe(msg)
	metrics.MessagesAppliedTotal.WithLabelValues(e.ins.Symbol, string(feed.TypeIncremental)).Inc()
}

// observe records the end-to-end latency of an applied message and
// the relay lag when the producer attached a gateway timestamp.
func (e *Engine) observe(msg feed.Message) {
	nowMs := e.now().UnixMilli()
	lat := nowMs - msg.Timestamp
	e.tracker.Record(lat)
	e.lastApplyMs.Store(nowMs)
	metrics.ApplyLatencyMs.Observe(float64(lat))
	if msg.GatewayTS > 0 && msg.GatewayTS >= msg.Timestamp {
		metrics.RelayLagMs.Observe(float64(msg.GatewayTS - msg.Timestamp))
	}
}

func (e *Engine) drop(reason string) {
	e.tracker.RecordDrop()
	metrics.MessagesDroppedTotal.WithLabelValues(e.ins.Symbol, reason).Inc()
	e.log.Debug().Str("reason", reason).Msg("message dropped")
}

// View renders the outbound read model from current state.
func (e *Engine) View() View {
	e.mu.RLock()
	l2 := e.book.L2(0)
	spread, okSpread := e.book.Spread()
	mid, okMid := e.book.Mid()
	initialized := e.initialized
	e.mu.RUnlock()

	v := View{
		InstrumentID: e.ins.ID,
		Symbol:       e.ins.Symbol,
		Bids:         l2.Bids,
		Asks:         l2.Asks,
		LatencyMs:    e.tracker.Mean(),
		Dropped:      e.tracker.Drops(),
		Initialized:  initialized,
		TS:           e.now().UnixMilli(),
	}
	if okSpread {
		v.Spread = &spread
	}
	if okMid {
		v.Mid = &mid
	}
	return v
}
