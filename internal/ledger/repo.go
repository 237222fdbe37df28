package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
)

// Repo is the authoritative stock ledger in Postgres. Every write here
// fires the product_changes trigger, so connected sync engines observe
// it as an incoming change event.
type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, name, category, brand, descriptions, price, original_price,
       stock_quantity, low_stock_threshold, in_stock, created_at, updated_at`

// ListProducts returns the full mirror, newest first.
func (r *Repo) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+`
		FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Brand, &p.Descriptions,
			&p.Price, &p.OriginalPrice, &p.StockQuantity, &p.LowStockThreshold,
			&p.InStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetStock is the admin point update: set the counter and, when
// inStock is non-nil, the manual availability flag too.
func (r *Repo) SetStock(ctx context.Context, id string, qty int, inStock *bool) error {
	if qty < 0 {
		qty = 0
	}
	var affected int64
	if inStock != nil {
		ct, err := r.DB.Exec(ctx, `UPDATE products
			SET stock_quantity=$2, in_stock=$3, updated_at=now() WHERE id=$1`, id, qty, *inStock)
		if err != nil {
			return fmt.Errorf("set stock: %w", err)
		}
		affected = ct.RowsAffected()
	} else {
		ct, err := r.DB.Exec(ctx, `UPDATE products
			SET stock_quantity=$2, updated_at=now() WHERE id=$1`, id, qty)
		if err != nil {
			return fmt.Errorf("set stock: %w", err)
		}
		affected = ct.RowsAffected()
	}
	if affected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// DecrementStock reduces the counter by n, clamped at zero; a negative
// quantity is never stored.
func (r *Repo) DecrementStock(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	ct, err := r.DB.Exec(ctx, `UPDATE products
		SET stock_quantity = GREATEST(0, stock_quantity - $2), updated_at = now()
		WHERE id=$1`, id, n)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
