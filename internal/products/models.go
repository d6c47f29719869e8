package products

import "time"

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Offer is the local copy of a quote published by the offers service.
type Offer struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"product_id"`
	Price        float64 `json:"price"`
	ItemsInStock int     `json:"items_in_stock"`
}

// SameQuote reports whether o and other carry the same price and stock.
func (o Offer) SameQuote(other Offer) bool {
	return o.Price == other.Price && o.ItemsInStock == other.ItemsInStock
}

type PriceRecord struct {
	ProductID string    `json:"product_id"`
	Timestamp time.Time `json:"timestamp"`
	MeanPrice float64   `json:"mean_price"`
	MinPrice  float64   `json:"min_price"`
}
