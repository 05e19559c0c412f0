package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/service/migration"
)

// SubscriberRepo implements migration.SubscriberRepository against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func (r *SubscriberRepo) Get(ctx context.Context, orgID, id string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, COALESCE(first_name,''), COALESCE(last_name,''),
		       status, COALESCE(shopify_customer_id,''), COALESCE(recharge_customer_id,''),
		       box_number, created_at, updated_at
		FROM subscribers
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(
		&s.ID, &s.OrganizationID, &s.Email, &s.FirstName, &s.LastName,
		&s.Status, &s.ShopifyCustomerID, &s.RechargeCustomerID,
		&s.BoxNumber, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, migration.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

// UnmappedRepo implements the append-only unmapped-item sink.
type UnmappedRepo struct{ db *sql.DB }

// NewUnmappedRepo creates a Postgres-backed unmapped-item sink.
func NewUnmappedRepo(db *sql.DB) *UnmappedRepo { return &UnmappedRepo{db: db} }

func (r *UnmappedRepo) Record(ctx context.Context, item domain.UnmappedItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unmapped_items
			(id, organization_id, sku, product_name, order_id, customer_identifier, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, uuid.New().String(), item.OrganizationID, item.SKU, item.ProductName,
		item.OrderID, item.CustomerIdentifier, item.OccurredAt)
	if err != nil {
		return fmt.Errorf("record unmapped item: %w", err)
	}
	return nil
}
