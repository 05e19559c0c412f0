package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/service/migration"
)

// MappingRepo implements migration.MappingRepository against PostgreSQL.
type MappingRepo struct{ db *sql.DB }

// NewMappingRepo creates a Postgres-backed SKU mapping repository.
func NewMappingRepo(db *sql.DB) *MappingRepo { return &MappingRepo{db: db} }

func (r *MappingRepo) GetAliases(ctx context.Context, orgID string) ([]domain.SkuAlias, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, raw_sku, sequence_number, created_at
		FROM sku_aliases
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []domain.SkuAlias
	for rows.Next() {
		var a domain.SkuAlias
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.RawSKU, &a.SequenceNumber, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetPatterns returns rules ordered by (priority, created_at) so first-match
// evaluation never depends on storage iteration order.
func (r *MappingRepo) GetPatterns(ctx context.Context, orgID string) ([]domain.ProductPattern, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, pattern, pattern_type, sequence_number, priority, created_at
		FROM product_patterns
		WHERE organization_id = $1
		ORDER BY priority ASC, created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductPattern
	for rows.Next() {
		var p domain.ProductPattern
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Pattern, &p.PatternType, &p.SequenceNumber, &p.Priority, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MappingRepo) CreateAlias(ctx context.Context, a *domain.SkuAlias) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sku_aliases (id, organization_id, raw_sku, sequence_number, created_at)
		VALUES ($1, $2, LOWER($3), $4, NOW())
		ON CONFLICT (organization_id, raw_sku) DO UPDATE SET
			sequence_number = EXCLUDED.sequence_number
	`, a.ID, a.OrganizationID, a.RawSKU, a.SequenceNumber)
	if err != nil {
		return "", fmt.Errorf("create alias: %w", err)
	}
	return a.ID, nil
}

func (r *MappingRepo) CreatePattern(ctx context.Context, p *domain.ProductPattern) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_patterns
			(id, organization_id, pattern, pattern_type, sequence_number, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, p.ID, p.OrganizationID, p.Pattern, p.PatternType, p.SequenceNumber, p.Priority)
	if err != nil {
		return "", fmt.Errorf("create pattern: %w", err)
	}
	return p.ID, nil
}

func (r *MappingRepo) DeleteAlias(ctx context.Context, orgID, id string) error {
	return r.deleteFrom(ctx, "sku_aliases", orgID, id)
}

func (r *MappingRepo) DeletePattern(ctx context.Context, orgID, id string) error {
	return r.deleteFrom(ctx, "product_patterns", orgID, id)
}

func (r *MappingRepo) deleteFrom(ctx context.Context, table, orgID, id string) error {
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND organization_id = $2`, table), id, orgID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return migration.ErrNotFound
	}
	return nil
}
