package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.CategoryTypeStore = (*DB)(nil)

const categoryTypeColumns = `id::text, name, kind, description, COALESCE(created_by::text, ''), created_at, updated_at`

func scanCategoryType(row pgx.Row) (*domain.CategoryType, error) {
	var (
		ct   domain.CategoryType
		kind string
	)
	if err := row.Scan(&ct.ID, &ct.Name, &kind, &ct.Description, &ct.CreatedBy, &ct.CreatedAt, &ct.UpdatedAt); err != nil {
		return nil, err
	}
	ct.Kind = domain.TaxonomyKind(kind)
	return &ct, nil
}

func (db *DB) ListCategoryTypes(ctx context.Context, kind domain.TaxonomyKind) ([]*domain.CategoryType, error) {
	const op = "taxonomy.list"

	rows, err := db.pool.Query(ctx, `
		SELECT `+categoryTypeColumns+`
		FROM category_types
		WHERE $1 = '' OR kind = $1
		ORDER BY lower(name)`, string(kind))
	if err != nil {
		return nil, storeErr(err, op, "failed to list categories and types")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.CategoryType, error) {
		return scanCategoryType(row)
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to list categories and types")
	}
	if out == nil {
		out = []*domain.CategoryType{}
	}
	return out, nil
}

func (db *DB) GetCategoryType(ctx context.Context, id string) (*domain.CategoryType, error) {
	const op = "taxonomy.get"
	if !validID(id) {
		return nil, domain.NotFound(op, "category type", id)
	}
	ct, err := scanCategoryType(db.pool.QueryRow(ctx,
		`SELECT `+categoryTypeColumns+` FROM category_types WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "category type", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load category type")
	}
	return ct, nil
}

func (db *DB) CreateCategoryType(ctx context.Context, ct *domain.CategoryType) error {
	const op = "taxonomy.create"

	var createdBy *string
	if validID(ct.CreatedBy) {
		createdBy = &ct.CreatedBy
	}
	err := db.pool.QueryRow(ctx, `
		INSERT INTO category_types (name, kind, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at, updated_at`,
		ct.Name, string(ct.Kind), ct.Description, createdBy,
	).Scan(&ct.ID, &ct.CreatedAt, &ct.UpdatedAt)
	if code, _ := pgCode(err); code == codeUniqueViolation {
		return domain.DuplicateCategoryType(op, ct.Kind, ct.Name)
	}
	return storeErr(err, op, "failed to create category type")
}

func (db *DB) UpdateCategoryType(ctx context.Context, ct *domain.CategoryType) error {
	const op = "taxonomy.update"
	if !validID(ct.ID) {
		return domain.NotFound(op, "category type", ct.ID)
	}

	updated, err := scanCategoryType(db.pool.QueryRow(ctx, `
		UPDATE category_types SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+categoryTypeColumns, ct.ID, ct.Name, ct.Description))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(op, "category type", ct.ID)
	}
	if code, _ := pgCode(err); code == codeUniqueViolation {
		return domain.DuplicateCategoryType(op, ct.Kind, ct.Name)
	}
	if err != nil {
		return storeErr(err, op, "failed to update category type")
	}
	*ct = *updated
	return nil
}

func (db *DB) DeleteCategoryType(ctx context.Context, id string) error {
	const op = "taxonomy.delete"
	if !validID(id) {
		return domain.NotFound(op, "category type", id)
	}
	tag, err := db.pool.Exec(ctx, `DELETE FROM category_types WHERE id = $1`, id)
	if err != nil {
		return storeErr(err, op, "failed to delete category type")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "category type", id)
	}
	return nil
}
