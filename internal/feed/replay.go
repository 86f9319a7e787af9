package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
)

// maxPacedGap caps the sleep between paced replay messages so a
// recording with a long silent stretch does not stall playback.
const maxPacedGap = 2 * time.Second

// ReplaySource plays a recorded feed back from a newline-delimited
// JSON file, one wire message per line. Pacing is either a fixed
// interval or the recorded timestamp deltas; with neither, the file is
// drained as fast as the pipelines accept it. Run returns once the
// recording ends.
type ReplaySource struct {
	path     string
	interval time.Duration
	paced    bool
	sink     Sink
	log      log.Logger
}

func NewReplay(cfg config.Config, sink Sink, logger log.Logger) (*ReplaySource, error) {
	if cfg.Feed.ReplayPath == "" {
		return nil, fmt.Errorf("replay feed: no replay_path configured")
	}
	return &ReplaySource{
		path:     cfg.Feed.ReplayPath,
		interval: time.Duration(cfg.Feed.ReplayIntervalMs) * time.Millisecond,
		paced:    cfg.Feed.ReplayPaced,
		sink:     sink,
		log:      logger.With().Str("component", "feed").Str("source", "replay").Logger(),
	}, nil
}

func (s *ReplaySource) Name() string { return "replay" }

func (s *ReplaySource) Run(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("replay feed: %w", err)
	}
	defer func() { _ = f.Close() }()
	s.log.Info().Str("path", s.path).Bool("paced", s.paced).Msg("replay started")

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var (
		routed, rejected int
		prevTS           int64
	)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := Decode(line)
		if err != nil {
			rejected++
			metrics.FeedErrorsTotal.WithLabelValues(s.Name(), "decode").Inc()
			s.sink.Reject(InstrumentHint(line), err)
			continue
		}
		if !s.pause(ctx, prevTS, msg.Timestamp) {
			return nil
		}
		prevTS = msg.Timestamp
		s.sink.Route(msg)
		routed++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("replay feed: %w", err)
	}
	s.log.Info().Int("routed", routed).Int("rejected", rejected).Msg("replay finished")
	return nil
}

// pause sleeps between messages per the configured pacing; the first
// message plays immediately. False means ctx ended mid-sleep.
func (s *ReplaySource) pause(ctx context.Context, prevTS, ts int64) bool {
	if prevTS <= 0 {
		return true
	}
	var d time.Duration
	switch {
	case s.paced && ts > prevTS:
		d = time.Duration(ts-prevTS) * time.Millisecond
		if d > maxPacedGap {
			d = maxPacedGap
		}
	case !s.paced && s.interval > 0:
		d = s.interval
	}
	if d <= 0 {
		return true
	}
	return sleepCtx(ctx, d)
}
