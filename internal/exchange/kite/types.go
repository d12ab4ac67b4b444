package kite

type orderDTO struct {
	OrderID           string  `json:"order_id"`
	Status            string  `json:"status"`
	TradingSymbol     string  `json:"tradingsymbol"`
	Exchange          string  `json:"exchange"`
	TransactionType   string  `json:"transaction_type"`
	OrderType         string  `json:"order_type"`
	Product           string  `json:"product"`
	Quantity          int     `json:"quantity"`
	FilledQuantity    int     `json:"filled_quantity"`
	AveragePrice      float64 `json:"average_price"`
	Price             float64 `json:"price"`
	TriggerPrice      float64 `json:"trigger_price"`
	Tag               *string `json:"tag"`
	OrderTimestamp    string  `json:"order_timestamp"`
	ExchangeTimestamp *string `json:"exchange_timestamp"`
}

type positionDTO struct {
	TradingSymbol   string  `json:"tradingsymbol"`
	Exchange        string  `json:"exchange"`
	InstrumentToken uint32  `json:"instrument_token"`
	Product         string  `json:"product"`
	Quantity        int     `json:"quantity"`
	AveragePrice    float64 `json:"average_price"`
	LastPrice       float64 `json:"last_price"`
	PnL             float64 `json:"pnl"`
}

type positionsDTO struct {
	Net []positionDTO `json:"net"`
	Day []positionDTO `json:"day"`
}

type orderIDDTO struct {
	OrderID string `json:"order_id"`
}
