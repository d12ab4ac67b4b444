package engine

import (
	"sort"

	"slguard/internal/models"
)

// Leg is entry quantity that no opposite fill has matched yet.
type Leg struct {
	Side     models.OrderSide
	Quantity int
	Price    float64
}

// ReconstructLegs returns the legs that make up netQty, oldest first. The
// open quantity is rebuilt from the newest fills on the side of netQty; the
// oldest fill used contributes only what is still needed to reach |netQty|.
// On a complete fill history this matches FIFO matching, and it stays correct
// when the day starts with a carried position that an opposite fill closes.
// The result sums to less than |netQty| when the fills cannot explain the
// position.
func ReconstructLegs(fills []models.Fill, netQty int) []Leg {
	if netQty == 0 {
		return nil
	}
	want := models.OrderSideBuy
	if netQty < 0 {
		want = models.OrderSideSell
	}

	sorted := make([]models.Fill, len(fills))
	copy(sorted, fills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	need := absInt(netQty)
	var newestFirst []Leg
	for i := len(sorted) - 1; i >= 0 && need > 0; i-- {
		f := sorted[i]
		if f.Side != want || f.Quantity <= 0 {
			continue
		}
		qty := min(f.Quantity, need)
		need -= qty
		newestFirst = append(newestFirst, Leg{Side: f.Side, Quantity: qty, Price: f.Price})
	}

	legs := make([]Leg, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		legs = append(legs, newestFirst[i])
	}
	if len(legs) == 0 {
		return nil
	}
	return legs
}

func legsQuantity(legs []Leg) int {
	total := 0
	for _, l := range legs {
		total += l.Quantity
	}
	return total
}
