package kite

import (
	"context"
	"net/http"

	"slguard/internal/models"
)

// ListPositions returns the "net" side of the positions book.
func (c *Client) ListPositions(ctx context.Context) ([]models.Position, error) {
	var resp kiteResponse[positionsDTO]
	if err := c.doRequest(ctx, http.MethodGet, "/portfolio/positions", nil, &resp); err != nil {
		return nil, err
	}

	positions := make([]models.Position, 0, len(resp.Data.Net))
	for _, p := range resp.Data.Net {
		positions = append(positions, models.Position{
			Symbol:          p.TradingSymbol,
			Exchange:        p.Exchange,
			Product:         p.Product,
			Quantity:        p.Quantity,
			AveragePrice:    p.AveragePrice,
			LastPrice:       p.LastPrice,
			PnL:             p.PnL,
			InstrumentToken: p.InstrumentToken,
		})
	}
	return positions, nil
}
