package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slguard/internal/models"
)

var t0 = time.Date(2026, 10, 16, 4, 0, 0, 0, time.UTC)

func fill(side models.OrderSide, qty int, price float64, minute int) models.Fill {
	return models.Fill{Side: side, Quantity: qty, Price: price, Timestamp: t0.Add(time.Duration(minute) * time.Minute)}
}

func TestReconstructLegsFIFO(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideBuy, 50, 100, 1),
		fill(models.OrderSideBuy, 50, 110, 2),
		fill(models.OrderSideSell, 60, 120, 3),
		fill(models.OrderSideBuy, 25, 105, 4),
	}

	legs := ReconstructLegs(fills, 65)

	assert.Equal(t, []Leg{
		{Side: models.OrderSideBuy, Quantity: 40, Price: 110},
		{Side: models.OrderSideBuy, Quantity: 25, Price: 105},
	}, legs)
}

func TestReconstructLegsSortsByTime(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideSell, 30, 120, 5),
		fill(models.OrderSideBuy, 30, 110, 2),
		fill(models.OrderSideBuy, 30, 100, 1),
	}

	legs := ReconstructLegs(fills, 30)

	require.Len(t, legs, 1)
	assert.Equal(t, 110.0, legs[0].Price)
}

func TestReconstructLegsShort(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideSell, 75, 200, 1),
		fill(models.OrderSideSell, 75, 190, 2),
		fill(models.OrderSideBuy, 75, 180, 3),
	}

	legs := ReconstructLegs(fills, -75)

	assert.Equal(t, []Leg{{Side: models.OrderSideSell, Quantity: 75, Price: 190}}, legs)
}

func TestReconstructLegsFlip(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideBuy, 100, 100, 1),
		fill(models.OrderSideSell, 150, 95, 2),
	}

	legs := ReconstructLegs(fills, -50)

	assert.Equal(t, []Leg{{Side: models.OrderSideSell, Quantity: 50, Price: 95}}, legs)
}

func TestReconstructLegsFlat(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideBuy, 100, 100, 1),
		fill(models.OrderSideSell, 100, 101, 2),
	}
	assert.Empty(t, ReconstructLegs(fills, 0))
	assert.Empty(t, ReconstructLegs(nil, 50))
}

func TestReconstructLegsSumMatchesNet(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		var fills []models.Fill
		net := 0
		for j := 0; j < 12; j++ {
			qty := (rng.Intn(8) + 1) * 25
			side := models.OrderSideBuy
			if rng.Intn(2) == 0 {
				side = models.OrderSideSell
				qty = -qty
			}
			net += qty
			fills = append(fills, fill(side, absInt(qty), 100+float64(rng.Intn(50)), j))
		}

		legs := ReconstructLegs(fills, net)

		assert.Equal(t, absInt(net), legsQuantity(legs), "iteration %d", i)
		for _, l := range legs {
			assert.Positive(t, l.Quantity)
		}
	}
}

func TestReconstructLegsKeepsEntryOrder(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideBuy, 10, 100, 1),
		fill(models.OrderSideBuy, 20, 101, 2),
		fill(models.OrderSideBuy, 30, 102, 3),
		fill(models.OrderSideSell, 15, 103, 4),
	}

	legs := ReconstructLegs(fills, 45)

	require.Len(t, legs, 2)
	assert.Equal(t, Leg{Side: models.OrderSideBuy, Quantity: 15, Price: 101}, legs[0])
	assert.Equal(t, Leg{Side: models.OrderSideBuy, Quantity: 30, Price: 102}, legs[1])
}

func TestReconstructLegsCarriedPositionClosedThenReopened(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideSell, 50, 98, 1),
		fill(models.OrderSideBuy, 100, 105, 2),
	}

	legs := ReconstructLegs(fills, 100)

	assert.Equal(t, []Leg{{Side: models.OrderSideBuy, Quantity: 100, Price: 105}}, legs)
}

func TestReconstructLegsShortHistory(t *testing.T) {
	fills := []models.Fill{
		fill(models.OrderSideBuy, 40, 101, 1),
	}

	legs := ReconstructLegs(fills, 100)

	assert.Equal(t, 40, legsQuantity(legs))
}
