package book

// DefaultDepth bounds retained levels per side when no explicit limit
// is configured.
const DefaultDepth = 50

// Book is a bounded two-sided replica. It applies already-validated
// mutations and derives top-of-book metrics on demand; nothing is
// cached between reads. Not safe for concurrent use.
type Book struct {
	bids  *LevelStore
	asks  *LevelStore
	depth int
}

// New returns an empty book retaining up to depth levels per side.
func New(depth int) *Book {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Book{
		bids:  NewLevelStore(Bid, depth),
		asks:  NewLevelStore(Ask, depth),
		depth: depth,
	}
}

// Depth reports the per-side level cap.
func (b *Book) Depth() int { return b.depth }

func (b *Book) store(side Side) *LevelStore {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

// ApplySnapshot replaces both sides wholesale. An empty side clears
// the corresponding store.
func (b *Book) ApplySnapshot(bids, asks []Level) {
	b.bids.ReplaceAll(bids)
	b.asks.ReplaceAll(asks)
}

// Upsert inserts or replaces one level on side; qty <= 0 removes it.
func (b *Book) Upsert(side Side, l Level) {
	b.store(side).Upsert(l.Price, l.Qty)
}

// Remove deletes the level at price on side; absent prices are a
// no-op.
func (b *Book) Remove(side Side, price float64) {
	b.store(side).Remove(price)
}

// BestBid returns the highest bid, if any.
func (b *Book) BestBid() (Level, bool) { return b.bids.Best() }

// BestAsk returns the lowest ask, if any.
func (b *Book) BestAsk() (Level, bool) { return b.asks.Best() }

// Spread is bestAsk - bestBid. Absent while either side is empty.
func (b *Book) Spread() (float64, bool) {
	bid, okB := b.bids.Best()
	ask, okA := b.asks.Best()
	if !okB || !okA {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// Mid is (bestBid + bestAsk) / 2. Absent while either side is empty.
func (b *Book) Mid() (float64, bool) {
	bid, okB := b.bids.Best()
	ask, okA := b.asks.Best()
	if !okB || !okA {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// Levels returns up to n levels of side, best-first.
func (b *Book) Levels(side Side, n int) []Level {
	return b.store(side).TopN(n)
}

// L2 materializes both sides best-first, up to n levels each.
func (b *Book) L2(n int) L2 {
	return L2{Bids: b.bids.TopN(n), Asks: b.asks.TopN(n)}
}

// Len reports retained level counts as (bids, asks).
func (b *Book) Len() (int, int) {
	return b.bids.Len(), b.asks.Len()
}
