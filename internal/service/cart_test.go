package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/memory"
)

func newCartFixture(t *testing.T, policy string) (*memory.Store, CartService) {
	t.Helper()
	store := memory.New()
	return store, NewCartService(store, store, policy, time.Second, nil)
}

// guestStore returns a device-local stand-in backed by its own memory store.
func guestStore() domain.CartStore {
	return memory.New().CartFor("device")
}

func TestCartService_Add_SumsExistingLine(t *testing.T) {
	store, svc := newCartFixture(t, ReconcileServer)
	p := seedProduct(t, store, "Seed Drill", map[string]string{"large": "120.00"}, nil)
	ctx := context.Background()

	for _, sess := range []struct {
		name string
		sess CartSession
	}{
		{"guest", CartSession{Guest: guestStore()}},
		{"signed in", CartSession{User: &domain.User{ID: "u-1"}, Guest: guestStore()}},
	} {
		t.Run(sess.name, func(t *testing.T) {
			view, err := svc.Add(ctx, sess.sess, p.ID, "large", 1)
			require.NoError(t, err)
			assert.Equal(t, 1, view.Count)

			view, err = svc.Add(ctx, sess.sess, p.ID, "large", 2)
			require.NoError(t, err)
			assert.Equal(t, 3, view.Count)
			require.Len(t, view.Items, 1)
			assert.Equal(t, 3, view.Items[0].Quantity)
			assert.True(t, view.Amount.Equal(dec("360")), "amount = %s", view.Amount)
			assert.Empty(t, view.Warning)
		})
	}
}

func TestCartService_Add_CapsLineQuantity(t *testing.T) {
	store, svc := newCartFixture(t, ReconcileServer)
	p := seedProduct(t, store, "Hand Hoe", map[string]string{"std": "12.50"}, nil)
	ctx := context.Background()

	for _, sess := range []struct {
		name string
		sess CartSession
	}{
		{"guest", CartSession{Guest: guestStore()}},
		{"signed in", CartSession{User: &domain.User{ID: "u-cap"}, Guest: guestStore()}},
	} {
		t.Run(sess.name, func(t *testing.T) {
			_, err := svc.Add(ctx, sess.sess, p.ID, "std", math.MaxInt)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Contains(t, domain.GetValidationFields(err), "quantity")

			view, err := svc.Add(ctx, sess.sess, p.ID, "std", domain.MaxLineQuantity-1)
			require.NoError(t, err)
			assert.Equal(t, domain.MaxLineQuantity-1, view.Count)

			_, err = svc.Add(ctx, sess.sess, p.ID, "std", 2)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

			count, err := svc.Count(ctx, sess.sess)
			require.NoError(t, err)
			assert.Equal(t, domain.MaxLineQuantity-1, count)

			view, err = svc.Add(ctx, sess.sess, p.ID, "std", 1)
			require.NoError(t, err)
			assert.Equal(t, domain.MaxLineQuantity, view.Count)
			assert.Empty(t, view.Warning)

			_, err = svc.UpdateQuantity(ctx, sess.sess, p.ID, "std", domain.MaxLineQuantity+1)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestCartService_Add_CatalogChecks(t *testing.T) {
	store, svc := newCartFixture(t, ReconcileServer)
	ctx := context.Background()
	sess := CartSession{Guest: guestStore()}

	tracked := seedProduct(t, store, "Garden Hoe", map[string]string{"50kg": "15.00"}, map[string]int{"50kg": 3})
	hidden := seedProduct(t, store, "Sprayer", map[string]string{"16L": "40.00"}, nil)
	hidden.InStock = false
	require.NoError(t, store.UpdateProduct(ctx, hidden))

	tests := []struct {
		name      string
		productID string
		size      string
		qty       int
		code      string
		reason    string
	}{
		{"unknown product", "missing", "50kg", 1, domain.ENOTFOUND, ""},
		{"flag off", hidden.ID, "16L", 1, domain.ECONFLICT, domain.ReasonOutOfStock},
		{"unknown size", tracked.ID, "10kg", 1, domain.ECONFLICT, domain.ReasonInvalidSize},
		{"too many", tracked.ID, "50kg", 5, domain.ECONFLICT, domain.ReasonInsufficientStock},
		{"zero quantity", tracked.ID, "50kg", 0, domain.EINVALID, ""},
		{"blank size", tracked.ID, "", 1, domain.EINVALID, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, sess, tt.productID, tt.size, tt.qty)
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, domain.ErrorReason(err))
			}
		})
	}

	_, err := svc.Add(ctx, sess, tracked.ID, "50kg", 5)
	assert.Equal(t, "Insufficient stock for Garden Hoe (50kg): available 3, requested 5", domain.ErrorMessage(err))

	count, err := svc.Count(ctx, sess)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	store, svc := newCartFixture(t, ReconcileServer)
	p := seedProduct(t, store, "Rotavator", map[string]string{"50m": "900.00", "80m": "1200.00"}, map[string]int{"50m": 4})
	ctx := context.Background()
	sess := CartSession{User: &domain.User{ID: "u-1"}, Guest: guestStore()}

	_, err := svc.Add(ctx, sess, p.ID, "50m", 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, sess, p.ID, "80m", 1)
	require.NoError(t, err)

	view, err := svc.UpdateQuantity(ctx, sess, p.ID, "50m", 4)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Count)

	_, err = svc.UpdateQuantity(ctx, sess, p.ID, "50m", 5)
	assert.True(t, domain.IsReason(err, domain.ReasonInsufficientStock))

	_, err = svc.UpdateQuantity(ctx, sess, "other", "50m", 1)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	view, err = svc.UpdateQuantity(ctx, sess, p.ID, "80m", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Count)
	require.Len(t, view.Items, 1)

	// Removing the same line again is a no-op.
	again, err := svc.UpdateQuantity(ctx, sess, p.ID, "80m", 0)
	require.NoError(t, err)
	assert.Equal(t, view.Count, again.Count)
	assert.Equal(t, view.Items, again.Items)

	view, err = svc.UpdateQuantity(ctx, sess, p.ID, "50m", 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.UpdateQuantity(ctx, sess, p.ID, "80m", 2)
	assert.True(t, domain.IsReason(err, domain.ReasonNotFoundInCart))
}

func TestCartService_RemoveAndClear(t *testing.T) {
	store, svc := newCartFixture(t, ReconcileServer)
	p := seedProduct(t, store, "Tiller", map[string]string{"small": "50.00", "large": "80.00"}, nil)
	ctx := context.Background()
	sess := CartSession{Guest: guestStore()}

	_, err := svc.Add(ctx, sess, p.ID, "small", 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, sess, p.ID, "large", 1)
	require.NoError(t, err)

	view, err := svc.Remove(ctx, sess, p.ID, "small")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Count)

	view, err = svc.Clear(ctx, sess)
	require.NoError(t, err)
	assert.Zero(t, view.Count)
	assert.True(t, view.Amount.IsZero())
}

func TestCartService_View_MissingProductContributesZero(t *testing.T) {
	store, svc := newCartFixture(t, ReconcileServer)
	keep := seedProduct(t, store, "Harrow", map[string]string{"std": "30.00"}, nil)
	gone := seedProduct(t, store, "Plough", map[string]string{"std": "70.00"}, nil)
	ctx := context.Background()
	sess := CartSession{User: &domain.User{ID: "u-1"}, Guest: guestStore()}

	addToCart(t, store, "u-1", keep.ID, "std", 2)
	addToCart(t, store, "u-1", gone.ID, "std", 1)
	require.NoError(t, store.DeleteProduct(ctx, gone.ID))

	view, err := svc.View(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Count)
	assert.True(t, view.Amount.Equal(dec("60")))
	require.Len(t, view.Items, 2)
	for _, line := range view.Items {
		if line.ProductID == gone.ID {
			assert.False(t, line.Available)
			assert.True(t, line.UnitPrice.IsZero())
		}
	}
}

func TestGetAmount(t *testing.T) {
	table, err := domain.NewSizeTable([]string{"s", "l"}, map[string]decimal.Decimal{"s": dec("2.50"), "l": dec("4")}, nil)
	require.NoError(t, err)
	snapshot := map[string]*domain.Product{"p1": {ID: "p1", Sizes: table, InStock: true}}
	cart := &domain.Cart{Lines: []domain.CartLine{
		{ProductID: "p1", Size: "s", Quantity: 2},
		{ProductID: "p1", Size: "l", Quantity: 1},
		{ProductID: "p2", Size: "s", Quantity: 9},
	}}
	assert.True(t, GetAmount(cart, snapshot).Equal(dec("9")))
}

func TestCartService_ServerDownFallsBackToDevice(t *testing.T) {
	store := memory.New()
	p := seedProduct(t, store, "Seed Drill", map[string]string{"large": "120.00"}, nil)
	svc := NewCartService(store, downCarts{}, ReconcileServer, time.Second, nil)
	ctx := context.Background()

	guest := guestStore()
	sess := CartSession{User: &domain.User{ID: "u-1"}, Guest: guest}

	view, err := svc.Add(ctx, sess, p.ID, "large", 2)
	require.NoError(t, err)
	assert.Equal(t, NotSyncedWarning, view.Warning)
	assert.Equal(t, 2, view.Count)

	local, err := guest.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, local.Count())

	// Catalog errors are never masked by the fallback.
	_, err = svc.Add(ctx, sess, p.ID, "tiny", 1)
	assert.True(t, domain.IsReason(err, domain.ReasonInvalidSize))
}

func TestCartService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("server policy drops guest lines", func(t *testing.T) {
		store, svc := newCartFixture(t, ReconcileServer)
		p := seedProduct(t, store, "Harrow", map[string]string{"std": "30.00"}, nil)
		addToCart(t, store, "u-1", p.ID, "std", 1)

		guest := guestStore()
		require.NoError(t, guest.AddLine(ctx, p.ID, "std", 4))

		view, err := svc.Reconcile(ctx, CartSession{User: &domain.User{ID: "u-1"}, Guest: guest})
		require.NoError(t, err)
		assert.Equal(t, 1, view.Count)

		local, err := guest.Cart(ctx)
		require.NoError(t, err)
		assert.True(t, local.IsEmpty())
	})

	t.Run("merge policy sums valid guest lines", func(t *testing.T) {
		store, svc := newCartFixture(t, ReconcileMerge)
		p := seedProduct(t, store, "Harrow", map[string]string{"std": "30.00"}, map[string]int{"std": 10})
		addToCart(t, store, "u-1", p.ID, "std", 1)

		guest := guestStore()
		require.NoError(t, guest.AddLine(ctx, p.ID, "std", 4))
		require.NoError(t, guest.AddLine(ctx, p.ID, "jumbo", 1))
		require.NoError(t, guest.AddLine(ctx, "vanished", "std", 1))

		view, err := svc.Reconcile(ctx, CartSession{User: &domain.User{ID: "u-1"}, Guest: guest})
		require.NoError(t, err)
		assert.Equal(t, 5, view.Count)
		require.Len(t, view.Items, 1)
	})

	t.Run("merge skips a line that would exceed the cap", func(t *testing.T) {
		store, svc := newCartFixture(t, ReconcileMerge)
		p := seedProduct(t, store, "Harrow", map[string]string{"std": "30.00"}, nil)
		q := seedProduct(t, store, "Rake", map[string]string{"std": "8.00"}, nil)
		addToCart(t, store, "u-1", p.ID, "std", domain.MaxLineQuantity)

		guest := guestStore()
		require.NoError(t, guest.AddLine(ctx, p.ID, "std", 1))
		require.NoError(t, guest.AddLine(ctx, q.ID, "std", 2))

		view, err := svc.Reconcile(ctx, CartSession{User: &domain.User{ID: "u-1"}, Guest: guest})
		require.NoError(t, err)
		assert.Empty(t, view.Warning)
		assert.Equal(t, domain.MaxLineQuantity+2, view.Count)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, svc := newCartFixture(t, ReconcileMerge)
		_, err := svc.Reconcile(ctx, CartSession{Guest: guestStore()})
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	})
}
