package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.CartRepository = (*DB)(nil)

// CartFor returns the server cart of userID.
func (db *DB) CartFor(userID string) domain.CartStore {
	return &cartStore{db: db, userID: userID}
}

type cartStore struct {
	db     *DB
	userID string
}

// bumpCart creates the cart row if needed and advances its version.
const bumpCart = `
INSERT INTO carts (user_id, version) VALUES ($1, 1)
ON CONFLICT (user_id) DO UPDATE SET version = carts.version + 1, updated_at = NOW()`

func (c *cartStore) Cart(ctx context.Context) (*domain.Cart, error) {
	const op = "cart.get"
	cart := &domain.Cart{UserID: c.userID, Lines: []domain.CartLine{}}
	if !validID(c.userID) {
		return cart, nil
	}

	// Version and lines are read in one snapshot so checkout sees a
	// consistent pair.
	err := c.db.readSnapshot(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT version FROM carts WHERE user_id = $1`, c.userID).Scan(&cart.Version)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT product_id::text, size, quantity
			FROM cart_items
			WHERE user_id = $1
			ORDER BY created_at, product_id, size`, c.userID)
		if err != nil {
			return err
		}
		lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CartLine, error) {
			var l domain.CartLine
			err := row.Scan(&l.ProductID, &l.Size, &l.Quantity)
			return l, err
		})
		if err != nil {
			return err
		}
		cart.Lines = lines
		return nil
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to load cart")
	}
	return cart, nil
}

func (c *cartStore) AddLine(ctx context.Context, productID, size string, quantity int) error {
	const op = "cart.add"
	if !validID(c.userID) {
		return domain.Unauthorized(op, "Unknown user")
	}
	if !validID(productID) {
		return domain.NotFound(op, "product", productID)
	}
	if quantity > domain.MaxLineQuantity {
		return domain.QuantityTooLarge(op)
	}

	err := c.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, bumpCart, c.userID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO cart_items (user_id, product_id, size, quantity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, product_id, size)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			WHERE cart_items.quantity <= $5 - EXCLUDED.quantity`,
			c.userID, productID, size, quantity, domain.MaxLineQuantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.QuantityTooLarge(op)
		}
		return nil
	})
	return storeErr(err, op, "failed to add to cart")
}

func (c *cartStore) SetLine(ctx context.Context, productID, size string, quantity int) (bool, error) {
	const op = "cart.update"
	if !validID(c.userID) || !validID(productID) {
		return false, nil
	}

	var found bool
	err := c.db.inTx(ctx, func(tx pgx.Tx) error {
		var (
			sql  string
			args = []any{c.userID, productID, size}
		)
		if quantity == 0 {
			sql = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND size = $3`
		} else {
			sql = `UPDATE cart_items SET quantity = $4 WHERE user_id = $1 AND product_id = $2 AND size = $3`
			args = append(args, quantity)
		}
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		found = tag.RowsAffected() > 0
		if !found {
			return nil
		}
		_, err = tx.Exec(ctx, bumpCart, c.userID)
		return err
	})
	if err != nil {
		return false, storeErr(err, op, "failed to update cart")
	}
	return found, nil
}

func (c *cartStore) RemoveLine(ctx context.Context, productID, size string) error {
	const op = "cart.remove"
	if !validID(c.userID) || !validID(productID) {
		return nil
	}

	err := c.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND size = $3`,
			c.userID, productID, size)
		if err != nil || tag.RowsAffected() == 0 {
			return err
		}
		_, err = tx.Exec(ctx, bumpCart, c.userID)
		return err
	})
	return storeErr(err, op, "failed to remove from cart")
}

func (c *cartStore) Clear(ctx context.Context) error {
	const op = "cart.clear"
	if !validID(c.userID) {
		return nil
	}

	err := c.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, c.userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, bumpCart, c.userID)
		return err
	})
	return storeErr(err, op, "failed to clear cart")
}
