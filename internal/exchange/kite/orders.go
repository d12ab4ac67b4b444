package kite

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"slguard/internal/models"
)

func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var resp kiteResponse[[]orderDTO]
	if err := c.doRequest(ctx, http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(resp.Data))
	for _, item := range resp.Data {
		tag := ""
		if item.Tag != nil {
			tag = *item.Tag
		}
		ts := item.OrderTimestamp
		if item.ExchangeTimestamp != nil && *item.ExchangeTimestamp != "" {
			ts = *item.ExchangeTimestamp
		}
		orders = append(orders, models.Order{
			ID:             item.OrderID,
			Symbol:         item.TradingSymbol,
			Exchange:       item.Exchange,
			Side:           models.OrderSide(item.TransactionType),
			Type:           models.OrderType(item.OrderType),
			Product:        item.Product,
			Status:         models.OrderStatus(item.Status),
			Kind:           models.KindFromTag(tag),
			Tag:            tag,
			Quantity:       item.Quantity,
			FilledQuantity: item.FilledQuantity,
			AveragePrice:   item.AveragePrice,
			Price:          item.Price,
			TriggerPrice:   item.TriggerPrice,
			Timestamp:      c.parseTimestamp(ts),
		})
	}
	return orders, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", fmt.Errorf("place order %s: quantity must be positive", req.Symbol)
	}
	params := url.Values{}
	params.Set("exchange", req.Exchange)
	params.Set("tradingsymbol", req.Symbol)
	params.Set("transaction_type", string(req.Side))
	params.Set("order_type", string(req.Type))
	params.Set("quantity", strconv.Itoa(req.Quantity))
	params.Set("product", req.Product)
	params.Set("validity", "DAY")
	if req.Type == models.OrderTypeLimit || req.Type == models.OrderTypeStop {
		params.Set("price", formatPrice(req.Price))
	}
	if req.Type == models.OrderTypeStop || req.Type == models.OrderTypeStopMkt {
		params.Set("trigger_price", formatPrice(req.TriggerPrice))
	}
	if tag := req.Kind.Tag(); tag != "" {
		params.Set("tag", tag)
	}

	var resp kiteResponse[orderIDDTO]
	if err := c.doRequest(ctx, http.MethodPost, "/orders/"+variety, params, &resp); err != nil {
		return "", err
	}
	if resp.Data.OrderID == "" {
		return "", fmt.Errorf("place order %s: empty order id", req.Symbol)
	}
	return resp.Data.OrderID, nil
}

func (c *Client) ModifyOrder(ctx context.Context, orderID string, req models.ModifyRequest) error {
	params := url.Values{}
	if req.Type != "" {
		params.Set("order_type", string(req.Type))
	}
	if req.TriggerPrice > 0 {
		params.Set("trigger_price", formatPrice(req.TriggerPrice))
	}
	if req.Price > 0 {
		params.Set("price", formatPrice(req.Price))
	}

	var resp kiteResponse[orderIDDTO]
	return c.doRequest(ctx, http.MethodPut, "/orders/"+variety+"/"+url.PathEscape(orderID), params, &resp)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	var resp kiteResponse[orderIDDTO]
	return c.doRequest(ctx, http.MethodDelete, "/orders/"+variety+"/"+url.PathEscape(orderID), nil, &resp)
}
