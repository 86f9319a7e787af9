package book

import "github.com/tidwall/btree"

const btreeDegree = 32

// LevelStore holds one side of a book: unique prices kept in price
// order and capped at a fixed number of levels. Not safe for
// concurrent use; callers serialize access.
type LevelStore struct {
	side  Side
	limit int
	tree  *btree.Map[float64, float64]
}

// NewLevelStore returns an empty store for side capped at limit levels.
// A non-positive limit falls back to DefaultDepth.
func NewLevelStore(side Side, limit int) *LevelStore {
	if limit <= 0 {
		limit = DefaultDepth
	}
	return &LevelStore{
		side:  side,
		limit: limit,
		tree:  btree.NewMap[float64, float64](btreeDegree),
	}
}

// Upsert inserts or replaces the level at price. A non-positive qty
// removes the level instead.
func (s *LevelStore) Upsert(price, qty float64) {
	if qty <= 0 {
		s.tree.Delete(price)
		return
	}
	s.tree.Set(price, qty)
	s.truncate()
}

// Remove deletes the level at price. Removing an absent price is a
// no-op.
func (s *LevelStore) Remove(price float64) {
	s.tree.Delete(price)
}

// ReplaceAll rebuilds the side from levels. Input order does not
// matter: duplicate prices resolve last-wins, non-positive quantities
// drop the price, and the result is truncated to the cap.
func (s *LevelStore) ReplaceAll(levels []Level) {
	tree := btree.NewMap[float64, float64](btreeDegree)
	for _, l := range levels {
		if l.Qty <= 0 {
			tree.Delete(l.Price)
			continue
		}
		tree.Set(l.Price, l.Qty)
	}
	s.tree = tree
	s.truncate()
}

// truncate evicts worst-priced levels (lowest bids, highest asks)
// until the store fits its cap.
func (s *LevelStore) truncate() {
	for s.tree.Len() > s.limit {
		if s.side == Bid {
			s.tree.PopMin()
		} else {
			s.tree.PopMax()
		}
	}
}

// Best returns the top of the side: highest bid or lowest ask.
func (s *LevelStore) Best() (Level, bool) {
	var (
		price, qty float64
		ok         bool
	)
	if s.side == Bid {
		price, qty, ok = s.tree.Max()
	} else {
		price, qty, ok = s.tree.Min()
	}
	if !ok {
		return Level{}, false
	}
	return Level{Price: price, Qty: qty}, true
}

// TopN returns up to n levels best-first. n <= 0 means the full cap.
func (s *LevelStore) TopN(n int) []Level {
	if n <= 0 {
		n = s.limit
	}
	out := make([]Level, 0, min(n, s.tree.Len()))
	iter := func(price, qty float64) bool {
		out = append(out, Level{Price: price, Qty: qty})
		return len(out) < n
	}
	if s.side == Bid {
		s.tree.Reverse(iter)
	} else {
		s.tree.Scan(iter)
	}
	return out
}

// Len reports the number of retained levels.
func (s *LevelStore) Len() int { return s.tree.Len() }

// Qty returns the quantity resting at price, if any.
func (s *LevelStore) Qty(price float64) (float64, bool) {
	return s.tree.Get(price)
}
