package domain

import "time"

// SkuAlias maps an exact raw SKU to a box sequence number. Unique per
// organization + SKU; matching is case-insensitive. Created by admin action
// and read-only to the audit engine.
type SkuAlias struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	RawSKU         string    `json:"raw_sku" db:"raw_sku"`
	SequenceNumber int       `json:"sequence_number" db:"sequence_number"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PatternType selects how a ProductPattern matches a product name or SKU.
type PatternType string

const (
	PatternContains PatternType = "contains"
	PatternPrefix   PatternType = "prefix"
	PatternRegex    PatternType = "regex"
)

// ProductPattern is a fallback fuzzy mapping rule, evaluated only when no
// exact SkuAlias matches. Rules are evaluated in ascending Priority order and
// the first match wins; Priority is explicit so rule order never depends on
// storage iteration order.
type ProductPattern struct {
	ID             string      `json:"id" db:"id"`
	OrganizationID string      `json:"organization_id" db:"organization_id"`
	Pattern        string      `json:"pattern" db:"pattern"`
	PatternType    PatternType `json:"pattern_type" db:"pattern_type"`
	SequenceNumber int         `json:"sequence_number" db:"sequence_number"`
	Priority       int         `json:"priority" db:"priority"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
