package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.AddressStore = (*DB)(nil)

const addressColumns = `id::text, user_id::text, first_name, last_name, email, phone,
	street, city, state, zip_code, country, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.UserID, &a.FirstName, &a.LastName, &a.Email, &a.Phone,
		&a.Street, &a.City, &a.State, &a.ZipCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *DB) ListAddresses(ctx context.Context, userID string) ([]*domain.Address, error) {
	const op = "address.list"
	if !validID(userID) {
		return []*domain.Address{}, nil
	}

	rows, err := db.pool.Query(ctx, `
		SELECT `+addressColumns+`
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, storeErr(err, op, "failed to list addresses")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Address, error) {
		return scanAddress(row)
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to list addresses")
	}
	if out == nil {
		out = []*domain.Address{}
	}
	return out, nil
}

func (db *DB) GetAddress(ctx context.Context, userID, id string) (*domain.Address, error) {
	const op = "address.get"
	if !validID(userID) || !validID(id) {
		return nil, domain.AddressNotFound(op, id)
	}

	a, err := scanAddress(db.pool.QueryRow(ctx, `
		SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.AddressNotFound(op, id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load address")
	}
	return a, nil
}

func (db *DB) SaveAddress(ctx context.Context, a *domain.Address) error {
	const op = "address.save"
	if !validID(a.UserID) {
		return domain.Unauthorized(op, "Unknown user")
	}
	if a.ID != "" && !validID(a.ID) {
		return domain.AddressNotFound(op, a.ID)
	}

	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if a.IsDefault {
			_, err := tx.Exec(ctx, `
				UPDATE addresses SET is_default = FALSE, updated_at = NOW()
				WHERE user_id = $1 AND is_default AND id::text <> $2`, a.UserID, a.ID)
			if err != nil {
				return err
			}
		}

		var row pgx.Row
		if a.ID == "" {
			row = tx.QueryRow(ctx, `
				INSERT INTO addresses (user_id, first_name, last_name, email, phone,
					street, city, state, zip_code, country, is_default)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				RETURNING `+addressColumns,
				a.UserID, a.FirstName, a.LastName, a.Email, a.Phone,
				a.Street, a.City, a.State, a.ZipCode, a.Country, a.IsDefault)
		} else {
			row = tx.QueryRow(ctx, `
				UPDATE addresses SET first_name = $3, last_name = $4, email = $5, phone = $6,
					street = $7, city = $8, state = $9, zip_code = $10, country = $11,
					is_default = $12, updated_at = NOW()
				WHERE id = $1 AND user_id = $2
				RETURNING `+addressColumns,
				a.ID, a.UserID, a.FirstName, a.LastName, a.Email, a.Phone,
				a.Street, a.City, a.State, a.ZipCode, a.Country, a.IsDefault)
		}

		saved, err := scanAddress(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AddressNotFound(op, a.ID)
		}
		if err != nil {
			return err
		}
		*a = *saved
		return nil
	})

	// A concurrent save claimed the default between our clear and write.
	if code, constraint := pgCode(err); code == codeUniqueViolation && constraint == "idx_addresses_one_default" {
		return domain.DefaultAddressRace(op)
	}
	return storeErr(err, op, "failed to save address")
}

func (db *DB) DeleteAddress(ctx context.Context, userID, id string) error {
	const op = "address.delete"
	if !validID(userID) || !validID(id) {
		return domain.AddressNotFound(op, id)
	}

	tag, err := db.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return storeErr(err, op, "failed to delete address")
	}
	if tag.RowsAffected() == 0 {
		return domain.AddressNotFound(op, id)
	}
	return nil
}
