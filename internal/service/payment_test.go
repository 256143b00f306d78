package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/billing"
	"github.com/dukerupert/agrimart/internal/domain"
)

func TestPaymentService_CreateIntentThenCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := NewPaymentService(f.checkout, f.billing, time.Second, nil)
	ctx := context.Background()

	user := seedUser(t, f.store, "payer", domain.RoleUser)
	addr := seedAddress(t, f.store, user.ID, true)
	p := seedProduct(t, f.store, "Drip Kit", map[string]string{"1acre": "149.99"}, map[string]int{"1acre": 5})
	addToCart(t, f.store, user.ID, p.ID, "1acre", 1)

	view, err := svc.CreateIntent(ctx, user, addr.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, view.ClientSecret)
	assert.Equal(t, int64(16299), view.AmountCents) // 149.99 + 10.00 + 3.00
	assert.False(t, view.Succeeded)

	pi := f.billing.PaymentIntents[view.PaymentIntentID]
	require.NotNil(t, pi)
	assert.Equal(t, user.ID, pi.Metadata[billing.MetadataUserID])
	assert.Equal(t, addr.ID, pi.Metadata[billing.MetadataAddressID])

	_, err = svc.Confirm(ctx, user, view.PaymentIntentID)
	assert.True(t, domain.IsReason(err, domain.ReasonPaymentNotCompleted))

	f.billing.Succeed(view.PaymentIntentID)
	confirmed, err := svc.Confirm(ctx, user, view.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, confirmed.Succeeded)
	assert.Empty(t, confirmed.ClientSecret)

	order, err := f.checkout.CreateOrder(ctx, user, CreateOrderParams{
		AddressID:       addr.ID,
		PaymentMethod:   "card",
		PaymentIntentID: view.PaymentIntentID,
	})
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
}

func TestPaymentService_Status_OwnerOnly(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := NewPaymentService(f.checkout, f.billing, time.Second, nil)
	ctx := context.Background()

	pi, err := f.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents: 1000,
		Currency:    "usd",
		Metadata:    map[string]string{billing.MetadataUserID: "u-1"},
	})
	require.NoError(t, err)

	view, err := svc.Status(ctx, &domain.User{ID: "u-1"}, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, string(billing.StatusPending), view.Status)

	_, err = svc.Status(ctx, &domain.User{ID: "u-2"}, pi.ID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	_, err = svc.Status(ctx, &domain.User{ID: "u-1"}, "pi_nope")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestPaymentService_CreateIntent_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := NewPaymentService(f.checkout, f.billing, time.Second, nil)

	user := seedUser(t, f.store, "payer", domain.RoleUser)
	addr := seedAddress(t, f.store, user.ID, true)

	_, err := svc.CreateIntent(context.Background(), user, addr.ID)
	assert.True(t, domain.IsReason(err, domain.ReasonEmptyCart))
	assert.Empty(t, f.billing.CallLog)
}
