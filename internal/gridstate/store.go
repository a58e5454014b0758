// Package gridstate holds the bot's view of which grid levels currently have a
// resting order, plus the running totals accumulated from detected fills.
//
// A Store is owned by a single reconciliation loop and is not safe for
// concurrent use.
package gridstate

import (
	"errors"
	"fmt"
	"lighter-grid-bot-go/internal/models"
	"sort"
)

// ErrLevelOccupied is returned by Insert when the price key already has an
// order.
var ErrLevelOccupied = errors.New("grid level already occupied")

// ProfitEstimateRate is the factor used for the per-sell profit estimate. The
// figure is a rough heuristic and is not paired against the entry fill.
const ProfitEstimateRate = 0.001

// Store maps integer price keys to the order tracked at that level.
type Store struct {
	orders map[int64]models.TrackedOrder
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{orders: make(map[int64]models.TrackedOrder)}
}

// Insert tracks order under order.PriceInt.
func (s *Store) Insert(order models.TrackedOrder) error {
	if existing, ok := s.orders[order.PriceInt]; ok {
		return fmt.Errorf("%w: key=%d side=%s", ErrLevelOccupied, order.PriceInt, models.SideName(existing.IsAsk))
	}
	s.orders[order.PriceInt] = order
	return nil
}

// Remove drops the order at key. Missing keys are ignored.
func (s *Store) Remove(key int64) {
	delete(s.orders, key)
}

func (s *Store) Get(key int64) (models.TrackedOrder, bool) {
	o, ok := s.orders[key]
	return o, ok
}

func (s *Store) Has(key int64) bool {
	_, ok := s.orders[key]
	return ok
}

func (s *Store) Len() int {
	return len(s.orders)
}

// Snapshot returns a copy of all tracked orders sorted by price key.
func (s *Store) Snapshot() []models.TrackedOrder {
	out := make([]models.TrackedOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceInt < out[j].PriceInt })
	return out
}

// Counts returns the number of tracked buys and sells.
func (s *Store) Counts() (buys, sells int) {
	for _, o := range s.orders {
		if o.IsAsk {
			sells++
		} else {
			buys++
		}
	}
	return buys, sells
}

// Totals are the running counters of a session. They only ever grow.
type Totals struct {
	TradesCount int
	TotalVolume float64
	TotalProfit float64 // estimate
}

// RecordFill accounts one detected fill and returns the volume and estimated
// profit it added.
func (t *Totals) RecordFill(isAsk bool, price, coinAmount, lower float64) (volume, profit float64) {
	volume = coinAmount * price
	t.TradesCount++
	t.TotalVolume += volume
	if isAsk {
		profit = (price - lower) * ProfitEstimateRate
		t.TotalProfit += profit
	}
	return volume, profit
}
