package replica

import "github.com/anthonyhuangg/QuantFlow/internal/book"

// View is the outbound read model served to presentation consumers.
// Bids and asks are best-first and capped at the instrument's depth;
// spread and mid are null whenever either side is empty.
type View struct {
	InstrumentID int64        `json:"instrument_id"`
	Symbol       string       `json:"symbol,omitempty"`
	Bids         []book.Level `json:"bids"`
	Asks         []book.Level `json:"asks"`
	Spread       *float64     `json:"spread"`
	Mid          *float64     `json:"mid"`
	LatencyMs    int64        `json:"latency_ms"`
	Dropped      uint64       `json:"dropped"`
	Initialized  bool         `json:"initialized"`
	TS           int64        `json:"ts"`
}
