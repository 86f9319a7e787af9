// Package instrument describes the instruments the service replicates
// books for, keyed by the numeric id carried on every feed message.
package instrument

import (
	"sort"

	"github.com/anthonyhuangg/QuantFlow/internal/book"
)

// Instrument is one replicated market.
type Instrument struct {
	ID     int64  `json:"id" yaml:"id"`
	Symbol string `json:"symbol" yaml:"symbol"`
	// Depth caps retained levels per side for this instrument.
	Depth int `json:"depth" yaml:"depth"`
}

// Catalog is an immutable id-indexed set of instruments.
type Catalog struct {
	byID    map[int64]Instrument
	ordered []Instrument
}

// NewCatalog builds a catalog from list. Later duplicates of an id win,
// entries without a positive depth get book.DefaultDepth, and the
// catalog iterates in ascending id order regardless of input order.
func NewCatalog(list []Instrument) *Catalog {
	byID := make(map[int64]Instrument, len(list))
	for _, ins := range list {
		if ins.Depth <= 0 {
			ins.Depth = book.DefaultDepth
		}
		byID[ins.ID] = ins
	}
	ordered := make([]Instrument, 0, len(byID))
	for _, ins := range byID {
		ordered = append(ordered, ins)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return &Catalog{byID: byID, ordered: ordered}
}

// Get looks an instrument up by id.
func (c *Catalog) Get(id int64) (Instrument, bool) {
	ins, ok := c.byID[id]
	return ins, ok
}

// All returns the instruments in ascending id order.
func (c *Catalog) All() []Instrument {
	out := make([]Instrument, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len reports the number of instruments.
func (c *Catalog) Len() int { return len(c.ordered) }
