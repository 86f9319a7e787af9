package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/network"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/runner"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
)

const maxReconnectDelay = 60 * time.Second

// WSSource streams the gateway websocket feed, one connection per
// instrument. Lost connections are redialed with exponential backoff,
// gated by a shared token bucket so a flapping gateway is not hammered
// across instruments.
type WSSource struct {
	catalog   *instrument.Catalog
	sink      Sink
	endpoints *network.Endpoints
	bucket    *network.TokenBucket
	dialer    *websocket.Dialer
	baseDelay time.Duration
	log       log.Logger
}

func NewWS(cfg config.Config, cat *instrument.Catalog, sink Sink, logger log.Logger) (*WSSource, error) {
	if len(cfg.Feed.GatewayURLs) == 0 {
		return nil, fmt.Errorf("websocket feed: no gateway urls configured")
	}
	dialTimeout := time.Duration(cfg.Feed.DialTimeoutSeconds) * time.Second
	return &WSSource{
		catalog:   cat,
		sink:      sink,
		endpoints: network.NewEndpoints(cfg.Feed.GatewayURLs),
		bucket:    network.NewTokenBucket(cfg.Feed.ReconnectBurst, cfg.Feed.ReconnectPerSecond),
		dialer:    &websocket.Dialer{HandshakeTimeout: dialTimeout},
		baseDelay: time.Duration(cfg.Feed.ReconnectSeconds) * time.Second,
		log:       logger.With().Str("component", "feed").Str("source", "websocket").Logger(),
	}, nil
}

func (s *WSSource) Name() string { return "websocket" }

func (s *WSSource) Run(ctx context.Context) error {
	var g runner.Group
	for _, ins := range s.catalog.All() {
		ins := ins
		g.Go(ctx, func(ctx context.Context) error {
			s.stream(ctx, ins)
			return nil
		})
	}
	g.Wait()
	return nil
}

// stream keeps one instrument subscribed until ctx ends.
func (s *WSSource) stream(ctx context.Context, ins instrument.Instrument) {
	delay := s.baseDelay
	for ctx.Err() == nil {
		if d := s.bucket.Delay(time.Now()); d > 0 {
			if !sleepCtx(ctx, d) {
				return
			}
		}
		if !s.bucket.Allow(time.Now()) {
			continue
		}
		url := fmt.Sprintf("%s/ws?instrumentId=%d", s.endpoints.Next(), ins.ID)
		conn, resp, err := s.dialer.DialContext(ctx, url, nil)
		if err != nil {
			if resp != nil {
				_ = resp.Body.Close()
			}
			if ctx.Err() != nil {
				return
			}
			metrics.WSReconnectsTotal.WithLabelValues(s.Name(), "dial_error").Inc()
			s.log.Warn().Str("url", url).Err(err).Msg("gateway dial failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = s.baseDelay
		s.log.Info().Str("url", url).Int64("instrument_id", ins.ID).Msg("gateway stream connected")
		err = s.consume(ctx, conn, ins)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		metrics.WSReconnectsTotal.WithLabelValues(s.Name(), "read_error").Inc()
		s.log.Warn().Err(err).Int64("instrument_id", ins.ID).Msg("gateway stream lost, reconnecting")
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// consume reads frames until the connection drops or ctx ends. The
// watcher goroutine closes the connection on cancellation so the
// blocking read unsticks.
func (s *WSSource) consume(ctx context.Context, conn *websocket.Conn, ins instrument.Instrument) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := Decode(raw)
		if err != nil {
			metrics.FeedErrorsTotal.WithLabelValues(s.Name(), "decode").Inc()
			s.sink.Reject(ins.ID, err)
			continue
		}
		s.sink.Route(msg)
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

// DiscoverInstruments fetches the gateway catalog over its REST
// surface. Gateways are tried in config order; the first reachable one
// wins.
func DiscoverInstruments(ctx context.Context, cfg config.Config, logger log.Logger) ([]instrument.Instrument, error) {
	client := network.NewHTTPClient(time.Duration(cfg.Feed.DialTimeoutSeconds) * time.Second)
	var lastErr error
	for _, gw := range cfg.Feed.GatewayURLs {
		list, err := fetchInstruments(ctx, client, httpBase(gw))
		if err != nil {
			lastErr = err
			logger.Warn().Str("gateway", gw).Err(err).Msg("instrument discovery failed")
			continue
		}
		return list, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("instrument discovery: no gateway urls configured")
	}
	return nil, lastErr
}

func fetchInstruments(ctx context.Context, client *http.Client, base string) ([]instrument.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/instruments", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instrument discovery: unexpected status %s", resp.Status)
	}
	var list []instrument.Instrument
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("instrument discovery: %w", err)
	}
	return list, nil
}

// httpBase maps a websocket gateway URL onto its REST origin.
func httpBase(wsURL string) string {
	switch {
	case strings.HasPrefix(wsURL, "wss://"):
		return "https://" + strings.TrimPrefix(wsURL, "wss://")
	case strings.HasPrefix(wsURL, "ws://"):
		return "http://" + strings.TrimPrefix(wsURL, "ws://")
	default:
		return wsURL
	}
}
