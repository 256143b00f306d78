package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.OrderStore = (*DB)(nil)

const orderColumns = `id::text, user_id::text, items, address_id::text, shipping_address,
	amount, shipping_fee, tax, total_amount, payment_method, payment_status, is_paid,
	COALESCE(payment_intent_id, ''), status, tracking_number, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                         domain.Order
		amount, fee, tax, total   pgtype.Numeric
		method, payStatus, status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Items, &o.AddressID, &o.ShippingAddress,
		&amount, &fee, &tax, &total, &method, &payStatus, &o.IsPaid,
		&o.PaymentIntentID, &status, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Amount = fromNumeric(amount)
	o.ShippingFee = fromNumeric(fee)
	o.Tax = fromNumeric(tax)
	o.TotalAmount = fromNumeric(total)
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// PlaceOrder locks the cart row, applies each conditional decrement in a
// stable order, inserts the order and clears the cart in one transaction.
func (db *DB) PlaceOrder(ctx context.Context, order *domain.Order, decrements []domain.StockDecrement, cartVersion int64) error {
	const op = "order.place"
	if !validID(order.UserID) {
		return domain.Unauthorized(op, "Unknown user")
	}

	ordered := append([]domain.StockDecrement(nil), decrements...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ProductID != ordered[j].ProductID {
			return ordered[i].ProductID < ordered[j].ProductID
		}
		return ordered[i].Size < ordered[j].Size
	})

	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var current int64
		err := tx.QueryRow(ctx, `SELECT version FROM carts WHERE user_id = $1 FOR UPDATE`, order.UserID).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if current != cartVersion {
			return &domain.StockConflict{CartChanged: true}
		}

		touched := make(map[string]bool)
		for _, d := range ordered {
			if !validID(d.ProductID) {
				return &domain.StockConflict{ProductID: d.ProductID, Size: d.Size}
			}
			tag, err := tx.Exec(ctx, `
				UPDATE product_sizes SET stock = stock - $3
				WHERE product_id = $1 AND label = $2 AND stock IS NOT NULL AND stock >= $3`,
				d.ProductID, d.Size, d.Quantity)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 1 {
				touched[d.ProductID] = true
				continue
			}

			// Nothing changed: the size is either untracked or short.
			var untracked bool
			err = tx.QueryRow(ctx, `
				SELECT stock IS NULL FROM product_sizes WHERE product_id = $1 AND label = $2`,
				d.ProductID, d.Size).Scan(&untracked)
			if errors.Is(err, pgx.ErrNoRows) || (err == nil && !untracked) {
				return &domain.StockConflict{ProductID: d.ProductID, Size: d.Size}
			}
			if err != nil {
				return err
			}
		}
		for id := range touched {
			if _, err := tx.Exec(ctx, recomputeInStock, id); err != nil {
				return err
			}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, items, address_id, shipping_address, amount, shipping_fee,
				tax, total_amount, payment_method, payment_status, is_paid, payment_intent_id,
				status, tracking_number)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14)
			RETURNING id::text, created_at, updated_at`,
			order.UserID, order.Items, order.AddressID, order.ShippingAddress,
			numeric(order.Amount), numeric(order.ShippingFee), numeric(order.Tax), numeric(order.TotalAmount),
			string(order.PaymentMethod), string(order.PaymentStatus), order.IsPaid, order.PaymentIntentID,
			string(order.Status), order.TrackingNumber,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, order.UserID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE carts SET version = version + 1, updated_at = NOW() WHERE user_id = $1`, order.UserID)
		return err
	})

	if code, constraint := pgCode(err); code == codeUniqueViolation && strings.Contains(constraint, "payment_intent") {
		return domain.PaymentAlreadyUsed(op)
	}
	return storeErr(err, op, "failed to place order")
}

func (db *DB) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	const op = "order.get"
	if !validID(id) {
		return nil, domain.NotFound(op, "order", id)
	}

	o, err := scanOrder(db.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "order", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load order")
	}
	return o, nil
}

func (db *DB) GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	const op = "order.get_by_payment"

	o, err := scanOrder(db.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, paymentIntentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "order", paymentIntentID)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load order")
	}
	return o, nil
}

func (db *DB) ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	const op = "order.list_user"
	if !validID(userID) {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, storeErr(err, op, "failed to list orders")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to list orders")
	}
	return out, nil
}

func (db *DB) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	const op = "order.list"
	filter.Normalize()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.PaymentStatus != "" {
		where = append(where, "payment_status = "+arg(string(filter.PaymentStatus)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, storeErr(err, op, "failed to count orders")
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + cond +
		` ORDER BY created_at DESC LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset())
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list orders")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list orders")
	}
	return out, total, nil
}

// OrderStats counts every order; revenue only includes paid orders.
func (db *DB) OrderStats(ctx context.Context) (*domain.OrderStats, error) {
	const op = "order.stats"

	var (
		stats   domain.OrderStats
		revenue pgtype.Numeric
	)
	err := db.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'paid'), 0)
		FROM orders`).Scan(&stats.TotalOrders, &revenue)
	if err != nil {
		return nil, storeErr(err, op, "failed to compute order stats")
	}
	stats.TotalRevenue = fromNumeric(revenue)
	return &stats, nil
}

func (db *DB) UpdateOrderStatus(ctx context.Context, change domain.StatusChange) (*domain.Order, error) {
	const op = "order.update_status"
	if !validID(change.OrderID) {
		return nil, domain.NotFound(op, "order", change.OrderID)
	}

	o, err := scanOrder(db.pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $3,
		    tracking_number = CASE WHEN $4 = '' THEN tracking_number ELSE $4 END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns,
		change.OrderID, string(change.From), string(change.To), change.TrackingNumber))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeErr(err, op, "failed to update order status")
	}

	// No row matched: missing order, or someone moved it first.
	if _, err := db.GetOrder(ctx, change.OrderID); err != nil {
		return nil, err
	}
	return nil, domain.Conflict(op, "Order status was changed by someone else; reload and try again")
}

func (db *DB) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Order, error) {
	const op = "order.update_payment"
	if !validID(id) {
		return nil, domain.NotFound(op, "order", id)
	}

	o, err := scanOrder(db.pool.QueryRow(ctx, `
		UPDATE orders SET payment_status = $2, is_paid = ($2 = 'paid'), updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns, id, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "order", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to update payment status")
	}
	return o, nil
}
