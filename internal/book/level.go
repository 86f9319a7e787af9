// Package book implements a bounded L2 order book replica: two sorted
// sides of unique price levels plus the derived top-of-book metrics.
package book

import (
	"encoding/json"
	"fmt"
	"math"
)

// Side selects one half of a two-sided book.
type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Level is a single price level. On the wire it is the two-element
// array [price, qty].
type Level struct{ Price, Qty float64 }

// L2 is a two-sided book view, best-first on both sides.
type L2 struct {
	Bids []Level // sorted desc by price
	Asks []Level // sorted asc by price
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Price, l.Qty})
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var arr []float64
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("level: want [price, qty], got %d elements", len(arr))
	}
	l.Price, l.Qty = arr[0], arr[1]
	return nil
}

// Valid reports whether the level can be stored: a positive finite
// price and a non-negative finite qty (zero qty marks removal).
func (l Level) Valid() bool {
	if math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || l.Price <= 0 {
		return false
	}
	if math.IsNaN(l.Qty) || math.IsInf(l.Qty, 0) || l.Qty < 0 {
		return false
	}
	return true
}
