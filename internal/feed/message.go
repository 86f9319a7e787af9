// Package feed defines the upstream message model and the transports
// that deliver it: websocket gateway, kafka topic, file replay, and a
// built-in simulator.
package feed

import (
	"encoding/json"
	"fmt"

	"github.com/anthonyhuangg/QuantFlow/internal/book"
)

// MessageType discriminates the two wire message kinds.
type MessageType string

const (
	TypeSnapshot    MessageType = "snapshot"
	TypeIncremental MessageType = "incremental"
)

// UpdateType encodes the incremental operation.
type UpdateType int

const (
	UpdateUpsert  UpdateType = 0
	UpdateRemove  UpdateType = 1
	UpdateReplace UpdateType = 2 // producers emitting replace mean upsert
)

// Message is one decoded feed event. Timestamp and GatewayTS are
// milliseconds since epoch; they feed latency accounting only and
// never influence apply order.
type Message struct {
	Type         MessageType
	InstrumentID int64
	Timestamp    int64
	GatewayTS    int64 // 0 when the producer sent none

	// snapshot payload
	Bids []book.Level
	Asks []book.Level

	// incremental payload
	IsBid      bool
	UpdateType UpdateType
	Level      book.Level
}

// wireMessage mirrors the JSON layout shared by every transport.
type wireMessage struct {
	Type         string       `json:"type"`
	InstrumentID int64        `json:"instrument_id"`
	Timestamp    int64        `json:"timestamp"`
	GatewayTS    int64        `json:"gateway_ts,omitempty"`
	Bids         []book.Level `json:"bids,omitempty"`
	Asks         []book.Level `json:"asks,omitempty"`
	IsBid        *bool        `json:"is_bid,omitempty"`
	UpdateType   *int         `json:"update_type,omitempty"`
	Level        *book.Level  `json:"level,omitempty"`
}

// Decode parses and structurally validates one wire message. Any error
// marks the message malformed; transports count it as a drop and move
// on. An unrecognized update_type value is not a decode error, the
// engine accounts for it at apply time.
func Decode(raw []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return Message{}, fmt.Errorf("decode: %w", err)
	}
	if w.InstrumentID <= 0 {
		return Message{}, fmt.Errorf("decode: missing instrument_id")
	}
	if w.Timestamp <= 0 {
		return Message{}, fmt.Errorf("decode: missing timestamp")
	}
	msg := Message{
		InstrumentID: w.InstrumentID,
		Timestamp:    w.Timestamp,
		GatewayTS:    w.GatewayTS,
	}
	switch MessageType(w.Type) {
	case TypeSnapshot:
		msg.Type = TypeSnapshot
		for _, l := range w.Bids {
			if !l.Valid() {
				return Message{}, fmt.Errorf("decode: bad bid level [%v, %v]", l.Price, l.Qty)
			}
		}
		for _, l := range w.Asks {
			if !l.Valid() {
				return Message{}, fmt.Errorf("decode: bad ask level [%v, %v]", l.Price, l.Qty)
			}
		}
		msg.Bids, msg.Asks = w.Bids, w.Asks
	case TypeIncremental:
		msg.Type = TypeIncremental
		if w.IsBid == nil {
			return Message{}, fmt.Errorf("decode: incremental missing is_bid")
		}
		if w.UpdateType == nil {
			return Message{}, fmt.Errorf("decode: incremental missing update_type")
		}
		if w.Level == nil {
			return Message{}, fmt.Errorf("decode: incremental missing level")
		}
		if !w.Level.Valid() {
			return Message{}, fmt.Errorf("decode: bad level [%v, %v]", w.Level.Price, w.Level.Qty)
		}
		msg.IsBid = *w.IsBid
		msg.UpdateType = UpdateType(*w.UpdateType)
		msg.Level = *w.Level
	default:
		return Message{}, fmt.Errorf("decode: unknown message type %q", w.Type)
	}
	return msg, nil
}

// InstrumentHint best-effort extracts the instrument id from a payload
// that failed full decoding, so shared transports (kafka, replay) can
// attribute the drop. 0 when the bytes reveal nothing.
func InstrumentHint(raw []byte) int64 {
	var w struct {
		InstrumentID int64 `json:"instrument_id"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return 0
	}
	return w.InstrumentID
}

// Side maps an incremental's is_bid flag to the book side it mutates.
func (m Message) Side() book.Side {
	if m.IsBid {
		return book.Bid
	}
	return book.Ask
}

// Encode renders the message back to its wire form. Replay recordings
// and tests round-trip through it.
func (m Message) Encode() ([]byte, error) {
	w := wireMessage{
		Type:         string(m.Type),
		InstrumentID: m.InstrumentID,
		Timestamp:    m.Timestamp,
		GatewayTS:    m.GatewayTS,
	}
	switch m.Type {
	case TypeSnapshot:
		w.Bids, w.Asks = m.Bids, m.Asks
		if w.Bids == nil {
			w.Bids = []book.Level{}
		}
		if w.Asks == nil {
			w.Asks = []book.Level{}
		}
	case TypeIncremental:
		isBid, ut, lvl := m.IsBid, int(m.UpdateType), m.Level
		w.IsBid, w.UpdateType, w.Level = &isBid, &ut, &lvl
	default:
		return nil, fmt.Errorf("encode: unknown message type %q", m.Type)
	}
	return json.Marshal(w)
}
