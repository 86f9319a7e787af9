// Package rest serves the outbound read model: instrument catalog and
// per-instrument book views over plain GETs, plus a websocket push of
// the same view for consumers that want a stream.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
	"github.com/anthonyhuangg/QuantFlow/internal/replica"
)

// writeWait bounds a single websocket write.
const writeWait = 5 * time.Second

// BookSource yields the read models behind the HTTP surface;
// replica.Manager is the production implementation.
type BookSource interface {
	Instruments() []instrument.Instrument
	View(id int64) (replica.View, bool)
	Views() []replica.View
}

type Server struct {
	books     BookSource
	push      time.Duration
	keepAlive time.Duration
	upgrader  websocket.Upgrader
	log       log.Logger
	mux       *http.ServeMux
}

// New builds the read-model server. push is the websocket view
// interval; keepAlive the ping period.
func New(books BookSource, push, keepAlive time.Duration, logger log.Logger) *Server {
	if push <= 0 {
		push = 250 * time.Millisecond
	}
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	s := &Server{
		books:     books,
		push:      push,
		keepAlive: keepAlive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The read model is public within the deployment; browsers
			// from any origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.With().Str("component", "api").Logger(),
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /instruments", s.handleInstruments)
	s.mux.HandleFunc("GET /books", s.handleBooks)
	s.mux.HandleFunc("GET /books/{id}", s.handleBook)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.books.Instruments())
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.books.Views())
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad instrument id", http.StatusBadRequest)
		return
	}
	v, ok := s.books.View(id)
	if !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleWS upgrades and pushes the instrument's view at the configured
// interval until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("instrumentId"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "instrumentId required", http.StatusBadRequest)
		return
	}
	if _, ok := s.books.View(id); !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	logger := s.log.With().Str("conn_id", connID).Int64("instrument_id", id).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("push stream opened")
	metrics.WSClients.Inc()
	defer func() {
		metrics.WSClients.Dec()
		_ = conn.Close()
		logger.Info().Msg("push stream closed")
	}()

	s.stream(conn, id, logger)
}

// stream is the write loop for one subscriber. A companion reader
// consumes control frames and unblocks the loop when the peer closes.
func (s *Server) stream(conn *websocket.Conn, id int64, logger log.Logger) {
	pongWait := s.keepAlive * 3 / 2
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pushT := time.NewTicker(s.push)
	defer pushT.Stop()
	pingT := time.NewTicker(s.keepAlive)
	defer pingT.Stop()
	for {
		select {
		case <-closed:
			return
		case <-pushT.C:
			v, ok := s.books.View(id)
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				logger.Debug().Err(err).Msg("push write failed")
				return
			}
		case <-pingT.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
