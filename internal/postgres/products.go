package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.ProductStore = (*DB)(nil)

const productColumns = `id::text, title, description, images, category, type, popular, in_stock,
	COALESCE(created_by::text, ''), created_at, updated_at`

// recomputeInStock sets in_stock from the size rows: false once at least one
// stock figure exists and none is positive; unchanged when nothing is tracked.
const recomputeInStock = `
UPDATE products SET
	in_stock = CASE
		WHEN EXISTS (SELECT 1 FROM product_sizes WHERE product_id = $1 AND stock IS NOT NULL)
		THEN EXISTS (SELECT 1 FROM product_sizes WHERE product_id = $1 AND stock > 0)
		ELSE in_stock
	END,
	updated_at = NOW()
WHERE id = $1`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Images, &p.Category, &p.Type,
		&p.Popular, &p.InStock, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// loadSizes fills Sizes for every product in ps.
func loadSizes(ctx context.Context, q querier, ps []*domain.Product) error {
	if len(ps) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Product, len(ps))
	ids := make([]string, len(ps))
	for i, p := range ps {
		byID[p.ID] = p
		ids[i] = p.ID
		p.Sizes = domain.SizeTable{}
	}

	rows, err := q.Query(ctx, `
		SELECT product_id::text, label, price, stock
		FROM product_sizes
		WHERE product_id = ANY($1::uuid[])
		ORDER BY product_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			opt       domain.SizeOption
			price     pgtype.Numeric
			stock     pgtype.Int4
		)
		if err := rows.Scan(&productID, &opt.Label, &price, &stock); err != nil {
			return err
		}
		opt.Price = fromNumeric(price)
		if stock.Valid {
			qty := int(stock.Int32)
			opt.Stock = &qty
		}
		if p, ok := byID[productID]; ok {
			p.Sizes = append(p.Sizes, opt)
		}
	}
	return rows.Err()
}

func insertSizes(ctx context.Context, tx pgx.Tx, p *domain.Product) error {
	batch := &pgx.Batch{}
	for i, opt := range p.Sizes {
		var stock pgtype.Int4
		if opt.Stock != nil {
			stock = pgtype.Int4{Int32: int32(*opt.Stock), Valid: true}
		}
		batch.Queue(`
			INSERT INTO product_sizes (product_id, label, position, price, stock)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID, opt.Label, i, numeric(opt.Price), stock)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (db *DB) getProduct(ctx context.Context, q querier, id string) (*domain.Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadSizes(ctx, q, []*domain.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (db *DB) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	const op = "product.get"
	if !validID(id) {
		return nil, domain.NotFound(op, "product", id)
	}

	p, err := db.getProduct(ctx, db.pool, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "product", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load product")
	}
	return p, nil
}

func (db *DB) GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	const op = "product.get_many"

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	out := make(map[string]*domain.Product, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, storeErr(err, op, "failed to load products")
	}
	ps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to load products")
	}
	if err := loadSizes(ctx, db.pool, ps); err != nil {
		return nil, storeErr(err, op, "failed to load product sizes")
	}
	for _, p := range ps {
		out[p.ID] = p
	}
	return out, nil
}

func (db *DB) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	const op = "product.list"
	filter.Normalize()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Category != "" {
		where = append(where, "lower(category) = lower("+arg(filter.Category)+")")
	}
	if filter.Type != "" {
		where = append(where, "lower(type) = lower("+arg(filter.Type)+")")
	}
	if filter.Popular != nil {
		where = append(where, "popular = "+arg(*filter.Popular))
	}
	if filter.InStock != nil {
		where = append(where, "in_stock = "+arg(*filter.InStock))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		p := arg("%" + s + "%")
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	query := `SELECT ` + productColumns + `, COUNT(*) OVER () FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT " + arg(filter.Limit) + " OFFSET " + arg(filter.Offset())

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list products")
	}
	defer rows.Close()

	var (
		ps    []*domain.Product
		total int
	)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Images, &p.Category, &p.Type,
			&p.Popular, &p.InStock, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, storeErr(err, op, "failed to list products")
		}
		ps = append(ps, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr(err, op, "failed to list products")
	}

	if len(ps) == 0 && filter.Page > 1 {
		// Past the last page the window count is unavailable.
		if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
			return nil, 0, storeErr(err, op, "failed to count products")
		}
	}

	if err := loadSizes(ctx, db.pool, ps); err != nil {
		return nil, 0, storeErr(err, op, "failed to load product sizes")
	}
	return ps, total, nil
}

func (db *DB) CreateProduct(ctx context.Context, p *domain.Product) error {
	const op = "product.create"

	err := db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (title, description, images, category, type, popular, in_stock, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid)
			RETURNING id::text, created_at, updated_at`,
			p.Title, p.Description, nonNil(p.Images), p.Category, p.Type, p.Popular, p.InStock, p.CreatedBy,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		return insertSizes(ctx, tx, p)
	})
	return storeErr(err, op, "failed to create product")
}

func (db *DB) UpdateProduct(ctx context.Context, p *domain.Product) error {
	const op = "product.update"
	if !validID(p.ID) {
		return domain.NotFound(op, "product", p.ID)
	}

	err := db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE products
			SET title = $2, description = $3, images = $4, category = $5, type = $6,
			    popular = $7, in_stock = $8, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at, COALESCE(created_by::text, '')`,
			p.ID, p.Title, p.Description, nonNil(p.Images), p.Category, p.Type, p.Popular, p.InStock,
		).Scan(&p.CreatedAt, &p.UpdatedAt, &p.CreatedBy)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound(op, "product", p.ID)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM product_sizes WHERE product_id = $1`, p.ID); err != nil {
			return err
		}
		return insertSizes(ctx, tx, p)
	})
	return storeErr(err, op, "failed to update product")
}

func (db *DB) DeleteProduct(ctx context.Context, id string) error {
	const op = "product.delete"
	if !validID(id) {
		return domain.NotFound(op, "product", id)
	}

	tag, err := db.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return storeErr(err, op, "failed to delete product")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "product", id)
	}
	return nil
}

func (db *DB) SetStock(ctx context.Context, id, size string, qty int) (*domain.Product, error) {
	const op = "product.set_stock"
	if !validID(id) {
		return nil, domain.NotFound(op, "product", id)
	}

	var out *domain.Product
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		p, err := db.getProduct(ctx, tx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound(op, "product", id)
		}
		if err != nil {
			return err
		}
		if !p.HasSize(size) {
			return domain.InvalidSize(op, p.Title, size)
		}

		if _, err := tx.Exec(ctx, `UPDATE product_sizes SET stock = $3 WHERE product_id = $1 AND label = $2`, id, size, qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, recomputeInStock, id); err != nil {
			return err
		}
		out, err = db.getProduct(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to set stock")
	}
	return out, nil
}

func (db *DB) AddImage(ctx context.Context, id, url string) (*domain.Product, error) {
	const op = "product.add_image"
	if !validID(id) {
		return nil, domain.NotFound(op, "product", id)
	}

	tag, err := db.pool.Exec(ctx, `UPDATE products SET images = array_append(images, $2), updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return nil, storeErr(err, op, "failed to add image")
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.NotFound(op, "product", id)
	}
	return db.GetProduct(ctx, id)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
