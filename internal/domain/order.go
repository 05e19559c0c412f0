package domain

import "time"

// LineItemClass is the catalog classification of a purchasable item.
type LineItemClass string

const (
	ItemSubscription LineItemClass = "subscription"
	ItemAddon        LineItemClass = "addon"
	ItemIgnored      LineItemClass = "ignored"
)

// LineItem is one purchased item within an order, as reported by the
// upstream order source.
type LineItem struct {
	SKU          string        `json:"sku"`
	ProductName  string        `json:"product_name"`
	VariantTitle string        `json:"variant_title"`
	Quantity     int           `json:"quantity"`
	Class        LineItemClass `json:"class"`
}

// Order is one raw order from the upstream order source.
type Order struct {
	OrderID   string     `json:"order_id"`
	CreatedAt time.Time  `json:"created_at"`
	LineItems []LineItem `json:"line_items"`
}

// BoxEvent is one resolved purchase event: a single line item tied to the
// sequence position it represents, or unmapped when the SKU could not be
// resolved.
//
// Events for a subscriber are always sorted ascending by OccurredAt with ties
// broken by SourceOrderID ascending. Order creation order is the best proxy
// for purchase order when timestamps collide.
type BoxEvent struct {
	SequenceNumber *int      `json:"sequence_number"` // nil = unmapped SKU
	OccurredAt     time.Time `json:"occurred_at"`
	SourceOrderID  string    `json:"source_order_id"`
	RawSKU         string    `json:"raw_sku"`
	RawProductName string    `json:"raw_product_name"`
	Quantity       int       `json:"quantity"`
}

// Mapped reports whether the event's SKU resolved to a sequence number.
func (e BoxEvent) Mapped() bool { return e.SequenceNumber != nil }

// UnmappedItem is a purchase whose SKU could not be resolved. These are
// recorded append-only for human triage; they never influence the analyzer's
// verdict beyond the unmapped-presence penalty.
type UnmappedItem struct {
	OrganizationID     string    `json:"organization_id" db:"organization_id"`
	SKU                string    `json:"sku" db:"sku"`
	ProductName        string    `json:"product_name" db:"product_name"`
	OrderID            string    `json:"order_id" db:"order_id"`
	CustomerIdentifier string    `json:"customer_identifier" db:"customer_identifier"`
	OccurredAt         time.Time `json:"occurred_at" db:"occurred_at"`
}
