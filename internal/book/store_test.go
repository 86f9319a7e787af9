package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreKeepsBidsDescending(t *testing.T) {
	s := NewLevelStore(Bid, 10)
	for _, l := range []Level{{99, 3}, {101, 1}, {100, 5}} {
		s.Upsert(l.Price, l.Qty)
	}
	assert.Equal(t, []Level{{101, 1}, {100, 5}, {99, 3}}, s.TopN(0))

	best, ok := s.Best()
	assert.True(t, ok)
	assert.Equal(t, Level{101, 1}, best)
}

func TestStoreKeepsAsksAscending(t *testing.T) {
	s := NewLevelStore(Ask, 10)
	for _, l := range []Level{{102, 2}, {100.5, 4}, {101, 1}} {
		s.Upsert(l.Price, l.Qty)
	}
	assert.Equal(t, []Level{{100.5, 4}, {101, 1}, {102, 2}}, s.TopN(0))

	best, ok := s.Best()
	assert.True(t, ok)
	assert.Equal(t, Level{100.5, 4}, best)
}

func TestStoreUpsertReplacesExistingPrice(t *testing.T) {
	s := NewLevelStore(Bid, 10)
	s.Upsert(100, 5)
	s.Upsert(100, 7)
	assert.Equal(t, 1, s.Len())

	qty, ok := s.Qty(100)
	assert.True(t, ok)
	assert.Equal(t, 7.0, qty)
}

func TestStoreUpsertZeroQtyRemoves(t *testing.T) {
	s := NewLevelStore(Ask, 10)
	s.Upsert(100, 5)
	s.Upsert(100, 0)
	assert.Equal(t, 0, s.Len())

	s.Upsert(101, 2)
	s.Upsert(101, -3)
	assert.Equal(t, 0, s.Len())
}

func TestStoreRemoveAbsentIsNoop(t *testing.T) {
	s := NewLevelStore(Bid, 10)
	s.Upsert(100, 5)
	s.Remove(250)
	assert.Equal(t, 1, s.Len())
}

func TestStoreTruncatesWorstPricedTail(t *testing.T) {
	bids := NewLevelStore(Bid, 3)
	for _, p := range []float64{10, 11, 12, 13, 14} {
		bids.Upsert(p, 1)
	}
	assert.Equal(t, []Level{{14, 1}, {13, 1}, {12, 1}}, bids.TopN(0), "lowest bids evicted")

	asks := NewLevelStore(Ask, 3)
	for _, p := range []float64{14, 13, 12, 11, 10} {
		asks.Upsert(p, 1)
	}
	assert.Equal(t, []Level{{10, 1}, {11, 1}, {12, 1}}, asks.TopN(0), "highest asks evicted")
}

func TestStoreReplaceAllLastWins(t *testing.T) {
	s := NewLevelStore(Bid, 10)
	s.Upsert(55, 9)

	s.ReplaceAll([]Level{{100, 5}, {100, 7}, {99, 3}})
	assert.Equal(t, []Level{{100, 7}, {99, 3}}, s.TopN(0), "duplicate price takes the later qty, prior contents gone")

	s.ReplaceAll([]Level{{100, 5}, {100, 0}})
	assert.Equal(t, 0, s.Len(), "later zero qty cancels the earlier entry")

	s.ReplaceAll([]Level{{100, 0}, {100, 5}})
	assert.Equal(t, []Level{{100, 5}}, s.TopN(0), "later positive qty revives the price")
}

func TestStoreReplaceAllSortsAndTruncates(t *testing.T) {
	s := NewLevelStore(Ask, 2)
	s.ReplaceAll([]Level{{103, 1}, {101, 1}, {102, 1}, {100, 1}})
	assert.Equal(t, []Level{{100, 1}, {101, 1}}, s.TopN(0))
}

func TestStoreTopNBounds(t *testing.T) {
	s := NewLevelStore(Bid, 5)
	s.Upsert(100, 1)
	s.Upsert(99, 1)

	assert.Len(t, s.TopN(1), 1)
	assert.Len(t, s.TopN(10), 2, "n past the retained count returns what exists")
	assert.Empty(t, NewLevelStore(Ask, 5).TopN(3))
}
