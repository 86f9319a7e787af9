package replica

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anthonyhuangg/QuantFlow/internal/book"
	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/feed"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/runner"
	"github.com/anthonyhuangg/QuantFlow/internal/ingest"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
)

// Pipeline couples one instrument's ingestion buffer with its engine.
// Transports push into the buffer; one consumer goroutine drains it
// into the engine.
type Pipeline struct {
	Ins     instrument.Instrument
	Buffer  *ingest.Buffer
	Engine  *Engine
	tracker *Tracker
	started bool
}

// Manager owns a pipeline per instrument and implements feed.Sink, so
// any transport can route into it. Instruments come from the catalog
// up front; with auto-register enabled, unseen instrument ids get a
// pipeline on first contact instead of being dropped.
type Manager struct {
	cfg config.Config
	log log.Logger

	mu     sync.RWMutex
	pipes  map[int64]*Pipeline
	runCtx context.Context

	group runner.Group
}

// NewManager builds pipelines for every catalog instrument. Consumers
// start when Run is called.
func NewManager(cfg config.Config, cat *instrument.Catalog, logger log.Logger) *Manager {
	m := &Manager{
		cfg:   cfg,
		log:   logger.With().Str("component", "manager").Logger(),
		pipes: make(map[int64]*Pipeline),
	}
	for _, ins := range cat.All() {
		m.newPipeline(ins)
	}
	return m
}

// newPipeline wires buffer drop accounting into the tracker before
// the first message can flow. Callers hold m.mu or run before Run.
func (m *Manager) newPipeline(ins instrument.Instrument) *Pipeline {
	tracker := NewTracker(m.cfg.Replica.LatencyWindow)
	symbol := ins.Symbol
	buf := ingest.New(m.cfg.Replica.BufferSoftCap, m.cfg.Replica.BufferKeep, func(n int) {
		tracker.RecordDrops(n)
		metrics.BufferEvictionsTotal.WithLabelValues(symbol).Add(float64(n))
		metrics.MessagesDroppedTotal.WithLabelValues(symbol, "overflow").Add(float64(n))
	})
	p := &Pipeline{
		Ins:     ins,
		Buffer:  buf,
		Engine:  NewEngine(ins, tracker, m.log),
		tracker: tracker,
	}
	m.pipes[ins.ID] = p
	return p
}

// Run starts one consumer per pipeline plus the staleness monitor and
// blocks until ctx is done and every worker has drained.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	for _, p := range m.pipes {
		m.startPipeline(ctx, p)
	}
	m.mu.Unlock()

	m.group.Go(ctx, m.monitor)

	<-ctx.Done()
	m.group.Wait()
	return nil
}

// startPipeline launches the consumer once. Callers hold m.mu.
func (m *Manager) startPipeline(ctx context.Context, p *Pipeline) {
	if p.started {
		return
	}
	p.started = true
	m.group.Go(ctx, func(ctx context.Context) error {
		return m.consume(ctx, p)
	})
}

// consume is the single drain loop for one instrument. Arrival order
// is the apply order; nothing reorders behind it.
func (m *Manager) consume(ctx context.Context, p *Pipeline) error {
	for {
		msg, err := p.Buffer.Pop(ctx)
		if err != nil {
			return nil
		}
		p.Engine.Apply(msg)
		metrics.BufferDepth.WithLabelValues(p.Ins.Symbol).Set(float64(p.Buffer.Len()))
	}
}

// monitor exports per-instrument staleness while the service runs.
func (m *Manager) monitor(ctx context.Context) error {
	period := time.Duration(m.cfg.Replica.StalenessCheckSeconds) * time.Second
	if period <= 0 {
		period = 5 * time.Second
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			nowMs := now.UnixMilli()
			for _, p := range m.snapshotPipes() {
				if last := p.Engine.LastApplyMs(); last > 0 {
					metrics.BookStalenessMs.WithLabelValues(p.Ins.Symbol).Set(float64(nowMs - last))
				}
			}
		}
	}
}

// Route implements feed.Sink: deliver msg to its instrument pipeline.
// Messages for unknown instruments are dropped and counted unless
// auto-register is on.
func (m *Manager) Route(msg feed.Message) {
	m.mu.RLock()
	p := m.pipes[msg.InstrumentID]
	m.mu.RUnlock()
	if p == nil {
		if !m.cfg.Feed.AutoRegister {
			metrics.MessagesDroppedTotal.WithLabelValues("unknown", "unknown_instrument").Inc()
			m.log.Debug().Int64("instrument_id", msg.InstrumentID).Msg("message for unknown instrument dropped")
			return
		}
		p = m.autoRegister(msg.InstrumentID)
	}
	p.Buffer.Push(msg)
}

// Reject implements feed.Sink: account for a payload that failed
// decoding. instrumentID is 0 when the raw bytes did not reveal one.
func (m *Manager) Reject(instrumentID int64, err error) {
	symbol := "unknown"
	m.mu.RLock()
	p := m.pipes[instrumentID]
	m.mu.RUnlock()
	if p != nil {
		symbol = p.Ins.Symbol
		p.tracker.RecordDrop()
	}
	metrics.MessagesDroppedTotal.WithLabelValues(symbol, "malformed").Inc()
	m.log.Debug().Int64("instrument_id", instrumentID).Err(err).Msg("malformed message dropped")
}

func (m *Manager) autoRegister(id int64) *Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pipes[id]; ok {
		return p
	}
	ins := instrument.Instrument{ID: id, Symbol: fmt.Sprintf("instrument-%d", id), Depth: book.DefaultDepth}
	p := m.newPipeline(ins)
	if m.runCtx != nil {
		m.startPipeline(m.runCtx, p)
	}
	m.log.Info().Int64("instrument_id", id).Msg("instrument auto-registered")
	return p
}

func (m *Manager) snapshotPipes() []*Pipeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Pipeline, 0, len(m.pipes))
	for _, p := range m.pipes {
		out = append(out, p)
	}
	return out
}

// View renders the read model for one instrument.
func (m *Manager) View(id int64) (View, bool) {
	m.mu.RLock()
	p := m.pipes[id]
	m.mu.RUnlock()
	if p == nil {
		return View{}, false
	}
	return p.Engine.View(), true
}

// Views renders read models for every instrument in ascending id
// order.
func (m *Manager) Views() []View {
	pipes := m.snapshotPipes()
	sort.Slice(pipes, func(i, j int) bool { return pipes[i].Ins.ID < pipes[j].Ins.ID })
	out := make([]View, 0, len(pipes))
	for _, p := range pipes {
		out = append(out, p.Engine.View())
	}
	return out
}

// Instruments lists the replicated instruments, including any that
// were auto-registered, in ascending id order.
func (m *Manager) Instruments() []instrument.Instrument {
	pipes := m.snapshotPipes()
	sort.Slice(pipes, func(i, j int) bool { return pipes[i].Ins.ID < pipes[j].Ins.ID })
	out := make([]instrument.Instrument, 0, len(pipes))
	for _, p := range pipes {
		out = append(out, p.Ins)
	}
	return out
}
