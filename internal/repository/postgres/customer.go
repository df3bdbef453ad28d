package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/murillocortez/klyver-engine/internal/domain"
)

// CustomerRepository implements campaign.CustomerRepository. The engine only
// reads customer and order rows; the store subsystem owns the writes.
type CustomerRepository struct{ db *sql.DB }

// NewCustomerRepository creates a Postgres-backed customer repository.
func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, name, phone, birth_date, last_purchase_date`

func scanCustomer(rows *sql.Rows) (domain.Customer, error) {
	var c domain.Customer
	err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.BirthDate, &c.LastPurchaseDate)
	return c, err
}

func (r *CustomerRepository) ListWithLastPurchase(ctx context.Context) ([]domain.Customer, error) {
	return r.list(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE last_purchase_date IS NOT NULL
		ORDER BY id
	`)
}

func (r *CustomerRepository) ListWithBirthDate(ctx context.Context) ([]domain.Customer, error) {
	return r.list(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE birth_date IS NOT NULL
		ORDER BY id
	`)
}

func (r *CustomerRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE id = ANY($1)
	`, pq.Array(ids))
}

func (r *CustomerRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AggregateCompletedOrders rolls completed orders since the cutoff into one
// row per customer.
func (r *CustomerRepository) AggregateCompletedOrders(ctx context.Context, since time.Time) ([]domain.OrderAggregate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT customer_id, COALESCE(SUM(total), 0), COUNT(*)
		FROM orders
		WHERE status = 'completed' AND created_at >= $1
		GROUP BY customer_id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderAggregate
	for rows.Next() {
		var a domain.OrderAggregate
		if err := rows.Scan(&a.CustomerID, &a.TotalSpent, &a.OrderCount); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
