package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthonyhuangg/QuantFlow/internal/book"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
	"github.com/anthonyhuangg/QuantFlow/internal/replica"
)

type stubBooks struct {
	instruments []instrument.Instrument
	views       map[int64]replica.View
}

func (s stubBooks) Instruments() []instrument.Instrument { return s.instruments }

func (s stubBooks) View(id int64) (replica.View, bool) {
	v, ok := s.views[id]
	return v, ok
}

func (s stubBooks) Views() []replica.View {
	out := make([]replica.View, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out
}

func fptr(v float64) *float64 { return &v }

func testBooks() stubBooks {
	return stubBooks{
		instruments: []instrument.Instrument{
			{ID: 1, Symbol: "BTC", Depth: 50},
			{ID: 2, Symbol: "ETH", Depth: 25},
		},
		views: map[int64]replica.View{
			1: {
				InstrumentID: 1,
				Symbol:       "BTC",
				Bids:         []book.Level{{Price: 100, Qty: 5}, {Price: 99, Qty: 3}},
				Asks:         []book.Level{{Price: 101, Qty: 4}},
				Spread:       fptr(1),
				Mid:          fptr(100.5),
				LatencyMs:    7,
				Initialized:  true,
			},
			2: {InstrumentID: 2, Symbol: "ETH", Bids: []book.Level{}, Asks: []book.Level{}},
		},
	}
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := New(testBooks(), 10*time.Millisecond, time.Second, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestInstrumentsEndpoint(t *testing.T) {
	srv := testServer(t)
	var got []instrument.Instrument
	resp := getJSON(t, srv.URL+"/instruments", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	assert.Equal(t, []instrument.Instrument{
		{ID: 1, Symbol: "BTC", Depth: 50},
		{ID: 2, Symbol: "ETH", Depth: 25},
	}, got)
}

func TestBooksEndpoint(t *testing.T) {
	srv := testServer(t)
	var got []replica.View
	getJSON(t, srv.URL+"/books", &got)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].InstrumentID)
	assert.Equal(t, []book.Level{{Price: 100, Qty: 5}, {Price: 99, Qty: 3}}, got[0].Bids)
}

func TestBookByID(t *testing.T) {
	srv := testServer(t)

	var got replica.View
	resp := getJSON(t, srv.URL+"/books/1", &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Initialized)
	require.NotNil(t, got.Spread)
	assert.Equal(t, 1.0, *got.Spread)

	resp = getJSON(t, srv.URL+"/books/99", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/books/zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBookUninitializedStillServed(t *testing.T) {
	srv := testServer(t)
	var got replica.View
	getJSON(t, srv.URL+"/books/2", &got)
	assert.False(t, got.Initialized)
	assert.Nil(t, got.Spread)
	assert.Nil(t, got.Mid)
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestWSPushesViews(t *testing.T) {
	srv := testServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "/ws?instrumentId=1"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	for i := 0; i < 2; i++ {
		var v replica.View
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&v))
		assert.Equal(t, int64(1), v.InstrumentID)
		assert.Equal(t, []book.Level{{Price: 100, Qty: 5}, {Price: 99, Qty: 3}}, v.Bids)
	}
}

func TestWSRequiresKnownInstrument(t *testing.T) {
	srv := testServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "/ws"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv.URL, "/ws?instrumentId=99"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}
