package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const productColumns = `product_id, seller_id, name, description, price, quantity, category, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, sellerID string, in ProductInput) (Product, error) {
	var p Product
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (product_id, seller_id, name, description, price, quantity, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+productColumns+`
	`, uuid.NewString(), sellerID, in.Name, in.Description, in.Price, in.Quantity, in.Category, now).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) Get(ctx context.Context, sellerID string, productID string) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE seller_id = $1 AND product_id = $2
	`, sellerID, productID).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) List(ctx context.Context, sellerID string, limit int, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, sellerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update replaces the mutable fields and returns both the previous and new
// row so the caller can compute the change set for the emitted event.
func (r *Repo) Update(ctx context.Context, sellerID string, productID string, in ProductInput) (prev Product, updated Product, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, Product{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE seller_id = $1 AND product_id = $2
		FOR UPDATE
	`, sellerID, productID).
		Scan(&prev.ID, &prev.SellerID, &prev.Name, &prev.Description, &prev.Price, &prev.Quantity, &prev.Category, &prev.CreatedAt, &prev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
		}
		return Product{}, Product{}, err
	}

	now := time.Now().UTC()
	err = tx.QueryRow(ctx, `
		UPDATE products
		SET name = $3, description = $4, price = $5, quantity = $6, category = $7, updated_at = $8
		WHERE seller_id = $1 AND product_id = $2
		RETURNING `+productColumns+`
	`, sellerID, productID, in.Name, in.Description, in.Price, in.Quantity, in.Category, now).
		Scan(&updated.ID, &updated.SellerID, &updated.Name, &updated.Description, &updated.Price, &updated.Quantity, &updated.Category, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return Product{}, Product{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return Product{}, Product{}, err
	}
	return prev, updated, nil
}

func (r *Repo) Delete(ctx context.Context, sellerID string, productID string) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `
		DELETE FROM products
		WHERE seller_id = $1 AND product_id = $2
		RETURNING `+productColumns+`
	`, sellerID, productID).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}
