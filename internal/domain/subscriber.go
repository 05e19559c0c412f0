package domain

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberActive    SubscriberStatus = "active"
	SubscriberPaused    SubscriberStatus = "paused"
	SubscriberCancelled SubscriberStatus = "cancelled"
)

// Subscriber represents one subscription-box customer within an organization.
// BoxNumber is the canonical "next box to ship" field: it is only ever
// advanced by an accepted audit verdict or an explicit human resolution.
type Subscriber struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	Email          string           `json:"email" db:"email"`
	FirstName      string           `json:"first_name" db:"first_name"`
	LastName       string           `json:"last_name" db:"last_name"`
	Status         SubscriberStatus `json:"status" db:"status"`

	// External identifiers on the commerce platforms.
	ShopifyCustomerID  string `json:"shopify_customer_id" db:"shopify_customer_id"`
	RechargeCustomerID string `json:"recharge_customer_id" db:"recharge_customer_id"`

	BoxNumber *int `json:"box_number" db:"box_number"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
