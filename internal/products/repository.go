package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store is the storage surface shared by the catalog service, the offer
// reconciler and the price history aggregator. Every mutation is committed on
// its own.
type Store interface {
	InsertProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error

	ListOffers(ctx context.Context, productID string) ([]Offer, error)
	InsertOffer(ctx context.Context, o Offer) error
	UpdateOffer(ctx context.Context, o Offer) error
	DeleteOffer(ctx context.Context, id string) error

	InsertPriceRecord(ctx context.Context, r PriceRecord) error
	CountPriceRecords(ctx context.Context, productID string) (int, error)
	DeleteOldestPriceRecord(ctx context.Context, productID string) error
	NewestPriceRecordTime(ctx context.Context) (time.Time, error)
	ListPriceRecords(ctx context.Context, productID string) ([]PriceRecord, error)
}

const pgUniqueViolation = "23505"

// Repository is the Postgres implementation of Store.
type Repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{db: db, log: log.Named("postgres")}
}

func (r *Repository) fail(op string, err error) error {
	r.log.Error("query failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, ErrStorage)
}

func (r *Repository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO products (id, name, description) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return r.fail("insert product", err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, r.fail("get product", err)
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description FROM products ORDER BY name`)
	if err != nil {
		return nil, r.fail("list products", err)
	}
	defer rows.Close()

	res := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, r.fail("list products", err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list products", err)
	}
	return res, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products SET name = $1, description = $2 WHERE id = $3`,
		p.Name, p.Description, p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return r.fail("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes the product; offers and price records go with it
// through the foreign key cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return r.fail("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListOffers(ctx context.Context, productID string) ([]Offer, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, product_id, price, items_in_stock
FROM offers
WHERE product_id = $1
ORDER BY id`, productID)
	if err != nil {
		return nil, r.fail("list offers", err)
	}
	defer rows.Close()

	res := []Offer{}
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Price, &o.ItemsInStock); err != nil {
			return nil, r.fail("list offers", err)
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list offers", err)
	}
	return res, nil
}

// InsertOffer upserts on the offer id so a retried or interleaved insert
// never duplicates a row. An id already stored under another product is left
// alone and reported as ErrOfferTaken.
func (r *Repository) InsertOffer(ctx context.Context, o Offer) error {
	tag, err := r.db.Exec(ctx, `
INSERT INTO offers (id, product_id, price, items_in_stock)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET price = EXCLUDED.price, items_in_stock = EXCLUDED.items_in_stock
WHERE offers.product_id = EXCLUDED.product_id`,
		o.ID, o.ProductID, o.Price, o.ItemsInStock)
	if err != nil {
		return r.fail("insert offer", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert offer %s: %w", o.ID, ErrOfferTaken)
	}
	return nil
}

func (r *Repository) UpdateOffer(ctx context.Context, o Offer) error {
	_, err := r.db.Exec(ctx,
		`UPDATE offers SET price = $1, items_in_stock = $2 WHERE id = $3 AND product_id = $4`,
		o.Price, o.ItemsInStock, o.ID, o.ProductID)
	if err != nil {
		return r.fail("update offer", err)
	}
	return nil
}

func (r *Repository) DeleteOffer(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM offers WHERE id = $1`, id); err != nil {
		return r.fail("delete offer", err)
	}
	return nil
}

func (r *Repository) InsertPriceRecord(ctx context.Context, rec PriceRecord) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO price_records (product_id, recorded_at, mean_price, min_price)
VALUES ($1, $2, $3, $4)`,
		rec.ProductID, rec.Timestamp.Unix(), rec.MeanPrice, rec.MinPrice)
	if err != nil {
		return r.fail("insert price record", err)
	}
	return nil
}

func (r *Repository) CountPriceRecords(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM price_records WHERE product_id = $1`, productID).Scan(&n)
	if err != nil {
		return 0, r.fail("count price records", err)
	}
	return n, nil
}

func (r *Repository) DeleteOldestPriceRecord(ctx context.Context, productID string) error {
	_, err := r.db.Exec(ctx, `
DELETE FROM price_records
WHERE id = (
    SELECT id FROM price_records
    WHERE product_id = $1
    ORDER BY recorded_at ASC, id ASC
    LIMIT 1
)`, productID)
	if err != nil {
		return r.fail("delete oldest price record", err)
	}
	return nil
}

// NewestPriceRecordTime returns the latest stored timestamp over all products,
// or the Unix epoch when there is none.
func (r *Repository) NewestPriceRecordTime(ctx context.Context) (time.Time, error) {
	var sec int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(recorded_at), 0) FROM price_records`).Scan(&sec)
	if err != nil {
		return time.Time{}, r.fail("newest price record", err)
	}
	return unixUTC(sec), nil
}

func (r *Repository) ListPriceRecords(ctx context.Context, productID string) ([]PriceRecord, error) {
	rows, err := r.db.Query(ctx, `
SELECT product_id, recorded_at, mean_price, min_price
FROM price_records
WHERE product_id = $1
ORDER BY recorded_at DESC, id DESC`, productID)
	if err != nil {
		return nil, r.fail("list price records", err)
	}
	defer rows.Close()

	out := []PriceRecord{}
	for rows.Next() {
		var (
			rec PriceRecord
			ts  int64
		)
		if err := rows.Scan(&rec.ProductID, &ts, &rec.MeanPrice, &rec.MinPrice); err != nil {
			return nil, r.fail("list price records", err)
		}
		rec.Timestamp = unixUTC(ts)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list price records", err)
	}
	return out, nil
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*SQLiteRepository)(nil)
)
