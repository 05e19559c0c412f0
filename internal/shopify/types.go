package shopify

import "time"

// ordersResponse is the Shopify Admin API envelope for GET /customers/{id}/orders.
type ordersResponse struct {
	Orders []orderPayload `json:"orders"`
}

type orderPayload struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	LineItems []lineItemPayload `json:"line_items"`
}

type lineItemPayload struct {
	SKU          string `json:"sku"`
	Title        string `json:"title"`
	VariantTitle string `json:"variant_title"`
	Quantity     int    `json:"quantity"`
	ProductType  string `json:"product_type"`
}

// apiError is Shopify's error envelope.
type apiError struct {
	Errors any `json:"errors"`
}
