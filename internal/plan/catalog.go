package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// ByCode returns the plan regardless of its active flag; callers deciding
// whether a plan is purchasable must check Active themselves. An order paid
// after its plan was retired still needs the plan's duration to activate.
func (c *Catalog) ByCode(ctx context.Context, code string) (*Plan, error) {
	var p Plan
	err := c.pool.QueryRow(ctx, `
		SELECT code, name, price_monthly, price_yearly, duration_days, active, created_at, updated_at
		FROM plans
		WHERE code = $1`, code,
	).Scan(&p.Code, &p.Name, &p.PriceMonthly, &p.PriceYearly, &p.DurationDays, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &p, nil
}

func (c *Catalog) List(ctx context.Context) ([]Plan, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT code, name, price_monthly, price_yearly, duration_days, active, created_at, updated_at
		FROM plans
		WHERE active
		ORDER BY price_monthly`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var result []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.Code, &p.Name, &p.PriceMonthly, &p.PriceYearly, &p.DurationDays, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	return result, rows.Err()
}
