package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonyhuangg/QuantFlow/internal/book"
)

func TestDecodeSnapshot(t *testing.T) {
	raw := []byte(`{"type":"snapshot","instrument_id":1,"timestamp":1700000000000,` +
		`"bids":[[100,5],[99,3]],"asks":[[101,4],[102,2]],"gateway_ts":1700000000007}`)
	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeSnapshot, msg.Type)
	assert.Equal(t, int64(1), msg.InstrumentID)
	assert.Equal(t, int64(1700000000000), msg.Timestamp)
	assert.Equal(t, int64(1700000000007), msg.GatewayTS)
	assert.Equal(t, []book.Level{{Price: 100, Qty: 5}, {Price: 99, Qty: 3}}, msg.Bids)
	assert.Equal(t, []book.Level{{Price: 101, Qty: 4}, {Price: 102, Qty: 2}}, msg.Asks)
}

func TestDecodeIncremental(t *testing.T) {
	raw := []byte(`{"type":"incremental","instrument_id":2,"timestamp":1700000000000,` +
		`"is_bid":true,"update_type":0,"level":[100.5,7]}`)
	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeIncremental, msg.Type)
	assert.True(t, msg.IsBid)
	assert.Equal(t, book.Bid, msg.Side())
	assert.Equal(t, UpdateUpsert, msg.UpdateType)
	assert.Equal(t, book.Level{Price: 100.5, Qty: 7}, msg.Level)
	assert.Zero(t, msg.GatewayTS, "gateway_ts is optional")
}

func TestDecodeUnknownUpdateTypePassesThrough(t *testing.T) {
	// Structurally sound but semantically unknown; the engine counts
	// it as a drop at apply time, the decoder lets it through.
	raw := []byte(`{"type":"incremental","instrument_id":1,"timestamp":1,` +
		`"is_bid":false,"update_type":9,"level":[100,1]}`)
	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, UpdateType(9), msg.UpdateType)
	assert.Equal(t, book.Ask, msg.Side())
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"type":`,
		"unknown type":      `{"type":"heartbeat","instrument_id":1,"timestamp":1}`,
		"missing type":      `{"instrument_id":1,"timestamp":1}`,
		"missing id":        `{"type":"snapshot","timestamp":1,"bids":[],"asks":[]}`,
		"missing timestamp": `{"type":"snapshot","instrument_id":1,"bids":[],"asks":[]}`,
		"missing is_bid":    `{"type":"incremental","instrument_id":1,"timestamp":1,"update_type":0,"level":[100,1]}`,
		"missing level":     `{"type":"incremental","instrument_id":1,"timestamp":1,"is_bid":true,"update_type":0}`,
		"short level":       `{"type":"incremental","instrument_id":1,"timestamp":1,"is_bid":true,"update_type":0,"level":[100]}`,
		"negative price":    `{"type":"incremental","instrument_id":1,"timestamp":1,"is_bid":true,"update_type":0,"level":[-1,5]}`,
		"bad bid level":     `{"type":"snapshot","instrument_id":1,"timestamp":1,"bids":[[0,5]],"asks":[]}`,
	}
	for name, raw := range cases {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestDecodeMissingUpdateType(t *testing.T) {
	raw := []byte(`{"type":"incremental","instrument_id":1,"timestamp":1,"is_bid":true,"level":[100,1]}`)
	_, err := Decode(raw)
	assert.ErrorContains(t, err, "update_type")
}

func TestInstrumentHint(t *testing.T) {
	assert.Equal(t, int64(7), InstrumentHint([]byte(`{"type":"bogus","instrument_id":7}`)))
	assert.Zero(t, InstrumentHint([]byte(`{"type":"bogus"}`)))
	assert.Zero(t, InstrumentHint([]byte(`{{{`)))
}

func TestEncodeRoundTrip(t *testing.T) {
	snap := Message{
		Type:         TypeSnapshot,
		InstrumentID: 1,
		Timestamp:    42,
		Bids:         []book.Level{{Price: 100, Qty: 5}},
		Asks:         []book.Level{{Price: 101, Qty: 4}},
	}
	raw, err := snap.Encode()
	require.NoError(t, err)
	back, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, snap, back)

	inc := Message{
		Type:         TypeIncremental,
		InstrumentID: 2,
		Timestamp:    43,
		IsBid:        true,
		UpdateType:   UpdateRemove,
		Level:        book.Level{Price: 100, Qty: 0},
	}
	raw, err = inc.Encode()
	require.NoError(t, err)
	back, err = Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, inc, back)
}
