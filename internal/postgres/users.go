package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.UserStore = (*DB)(nil)

func (db *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const op = "user.get"
	if !validID(id) {
		return nil, domain.NotFound(op, "user", id)
	}

	var (
		u    domain.User
		role string
	)
	err := db.pool.QueryRow(ctx, `
		SELECT id::text, external_id, email, first_name, last_name, role, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "user", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load user")
	}
	u.Role = domain.ParseRole(role)
	return &u, nil
}

// UpsertUser refreshes email and role from the latest token on every call.
// Token names only fill names that are still blank.
func (db *DB) UpsertUser(ctx context.Context, u *domain.User) error {
	const op = "user.upsert"

	err := db.pool.QueryRow(ctx, `
		INSERT INTO users (external_id, email, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = CASE WHEN users.first_name = '' THEN EXCLUDED.first_name ELSE users.first_name END,
			last_name = CASE WHEN users.last_name = '' THEN EXCLUDED.last_name ELSE users.last_name END,
			role = EXCLUDED.role,
			updated_at = NOW()
		RETURNING id::text, first_name, last_name, created_at, updated_at`,
		u.ExternalID, u.Email, u.FirstName, u.LastName, string(domain.ParseRole(string(u.Role))),
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	return storeErr(err, op, "failed to save user")
}

func (db *DB) UpdateUserProfile(ctx context.Context, id, firstName, lastName string) (*domain.User, error) {
	const op = "user.update"
	if !validID(id) {
		return nil, domain.NotFound(op, "user", id)
	}

	tag, err := db.pool.Exec(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, updated_at = NOW()
		WHERE id = $1`, id, firstName, lastName)
	if err != nil {
		return nil, storeErr(err, op, "failed to update user")
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.NotFound(op, "user", id)
	}
	return db.GetUser(ctx, id)
}

func (db *DB) ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	const op = "user.list"
	filter.Normalize()

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, storeErr(err, op, "failed to count users")
	}

	rows, err := db.pool.Query(ctx, `
		SELECT id::text, external_id, email, first_name, last_name, role, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list users")
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.User, error) {
		var (
			u    domain.User
			role string
		)
		err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName, &role, &u.CreatedAt, &u.UpdatedAt)
		u.Role = domain.ParseRole(role)
		return &u, err
	})
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list users")
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, total, nil
}
