package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteRepository is the embedded implementation of Store. The handle is
// expected to be opened with foreign keys enabled.
type SQLiteRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewSQLiteRepository(db *sql.DB, log *zap.Logger) *SQLiteRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLiteRepository{db: db, log: log.Named("sqlite")}
}

func (r *SQLiteRepository) fail(op string, err error) error {
	r.log.Error("query failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, ErrStorage)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func unixUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func (r *SQLiteRepository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return r.fail("insert product", err)
	}
	return nil
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, r.fail("get product", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM products ORDER BY name`)
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

func (r *SQLiteRepository) UpdateProduct(ctx context.Context, p Product) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ? WHERE id = ?`,
		p.Name, p.Description, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return r.fail("update product", err)
	}
	return r.expectRow("update product", res)
}

func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return r.fail("delete product", err)
	}
	return r.expectRow("delete product", res)
}

func (r *SQLiteRepository) expectRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return r.fail(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListOffers(ctx context.Context, productID string) ([]Offer, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, product_id, price, items_in_stock
FROM offers
WHERE product_id = ?
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

// InsertOffer has the same upsert rules as the Postgres repository.
func (r *SQLiteRepository) InsertOffer(ctx context.Context, o Offer) error {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO offers (id, product_id, price, items_in_stock)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE
SET price = excluded.price, items_in_stock = excluded.items_in_stock
WHERE offers.product_id = excluded.product_id`,
		o.ID, o.ProductID, o.Price, o.ItemsInStock)
	if err != nil {
		return r.fail("insert offer", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.fail("insert offer", err)
	}
	if n == 0 {
		return fmt.Errorf("insert offer %s: %w", o.ID, ErrOfferTaken)
	}
	return nil
}

func (r *SQLiteRepository) UpdateOffer(ctx context.Context, o Offer) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE offers SET price = ?, items_in_stock = ? WHERE id = ? AND product_id = ?`,
		o.Price, o.ItemsInStock, o.ID, o.ProductID)
	if err != nil {
		return r.fail("update offer", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteOffer(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM offers WHERE id = ?`, id); err != nil {
		return r.fail("delete offer", err)
	}
	return nil
}

func (r *SQLiteRepository) InsertPriceRecord(ctx context.Context, rec PriceRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO price_records (product_id, recorded_at, mean_price, min_price)
VALUES (?, ?, ?, ?)`,
		rec.ProductID, rec.Timestamp.Unix(), rec.MeanPrice, rec.MinPrice)
	if err != nil {
		return r.fail("insert price record", err)
	}
	return nil
}

func (r *SQLiteRepository) CountPriceRecords(ctx context.Context, productID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM price_records WHERE product_id = ?`, productID).Scan(&n)
	if err != nil {
		return 0, r.fail("count price records", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteOldestPriceRecord(ctx context.Context, productID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM price_records
WHERE id = (
    SELECT id FROM price_records
    WHERE product_id = ?
    ORDER BY recorded_at ASC, id ASC
    LIMIT 1
)`, productID)
	if err != nil {
		return r.fail("delete oldest price record", err)
	}
	return nil
}

func (r *SQLiteRepository) NewestPriceRecordTime(ctx context.Context) (time.Time, error) {
	var sec int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(recorded_at), 0) FROM price_records`).Scan(&sec)
	if err != nil {
		return time.Time{}, r.fail("newest price record", err)
	}
	return unixUTC(sec), nil
}

func (r *SQLiteRepository) ListPriceRecords(ctx context.Context, productID string) ([]PriceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT product_id, recorded_at, mean_price, min_price
FROM price_records
WHERE product_id = ?
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
