package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/jobs"
)

func seedProduct(t *testing.T, s *Store, stock map[string]int) *domain.Product {
	t.Helper()
	sizes, err := domain.NewSizeTable(
		[]string{"1kg", "5kg"},
		map[string]decimal.Decimal{"1kg": decimal.NewFromInt(5), "5kg": decimal.RequireFromString("22.50")},
		stock,
	)
	require.NoError(t, err)
	p := &domain.Product{Title: "Organic Compost", Sizes: sizes, InStock: true}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestStore_PlaceOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, map[string]int{"1kg": 3, "5kg": 1})

	cart := s.CartFor("u1")
	require.NoError(t, cart.AddLine(ctx, p.ID, "1kg", 3))
	c, err := cart.Cart(ctx)
	require.NoError(t, err)

	order := &domain.Order{UserID: "u1", Status: domain.OrderStatusPending}
	err = s.PlaceOrder(ctx, order, []domain.StockDecrement{{ProductID: p.ID, Size: "1kg", Quantity: 3}}, c.Version)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	qty, _ := got.StockFor("1kg")
	assert.Equal(t, 0, qty)
	assert.True(t, got.InStock, "5kg still has stock")

	c, err = cart.Cart(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestStore_PlaceOrder_ConflictLeavesNothingChanged(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, map[string]int{"1kg": 5, "5kg": 1})

	cart := s.CartFor("u1")
	require.NoError(t, cart.AddLine(ctx, p.ID, "1kg", 2))
	c, _ := cart.Cart(ctx)

	err := s.PlaceOrder(ctx, &domain.Order{UserID: "u1"}, []domain.StockDecrement{
		{ProductID: p.ID, Size: "1kg", Quantity: 2},
		{ProductID: p.ID, Size: "5kg", Quantity: 2},
	}, c.Version)
	require.True(t, domain.IsStockConflict(err))

	got, _ := s.GetProduct(ctx, p.ID)
	qty, _ := got.StockFor("1kg")
	assert.Equal(t, 5, qty)

	c, _ = cart.Cart(ctx)
	assert.Equal(t, 1, len(c.Lines))

	orders, _ := s.ListUserOrders(ctx, "u1")
	assert.Empty(t, orders)
}

func TestStore_PlaceOrder_CartVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, nil)

	cart := s.CartFor("u1")
	require.NoError(t, cart.AddLine(ctx, p.ID, "1kg", 1))
	c, _ := cart.Cart(ctx)
	require.NoError(t, cart.AddLine(ctx, p.ID, "1kg", 1))

	err := s.PlaceOrder(ctx, &domain.Order{UserID: "u1"}, nil, c.Version)
	var sc *domain.StockConflict
	require.ErrorAs(t, err, &sc)
	assert.True(t, sc.CartChanged)
}

func TestStore_PlaceOrder_PaymentIntentUsedOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.PlaceOrder(ctx, &domain.Order{UserID: "u1", PaymentIntentID: "pi_1"}, nil, 0))
	err := s.PlaceOrder(ctx, &domain.Order{UserID: "u1", PaymentIntentID: "pi_1"}, nil, 0)
	assert.True(t, domain.IsReason(err, domain.ReasonPaymentAlreadyUsed))
}

func TestStore_SetStockDerivesAvailability(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, map[string]int{"1kg": 1, "5kg": 0})

	got, err := s.SetStock(ctx, p.ID, "1kg", 0)
	require.NoError(t, err)
	assert.False(t, got.InStock)

	_, err = s.SetStock(ctx, p.ID, "10kg", 1)
	assert.True(t, domain.IsReason(err, domain.ReasonInvalidSize))
}

func TestStore_SaveAddress_SingleDefault(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := &domain.Address{UserID: "u1", FirstName: "A", IsDefault: true}
	b := &domain.Address{UserID: "u1", FirstName: "B", IsDefault: true}
	require.NoError(t, s.SaveAddress(ctx, a))
	require.NoError(t, s.SaveAddress(ctx, b))

	list, err := s.ListAddresses(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	_, err = s.GetAddress(ctx, "u2", a.ID)
	assert.True(t, domain.IsReason(err, domain.ReasonAddressNotFound))
}

func TestStore_UpdateOrderStatus_CAS(t *testing.T) {
	ctx := context.Background()
	s := New()
	order := &domain.Order{UserID: "u1", Status: domain.OrderStatusPending}
	require.NoError(t, s.PlaceOrder(ctx, order, nil, 0))

	_, err := s.UpdateOrderStatus(ctx, domain.StatusChange{OrderID: order.ID, From: domain.OrderStatusPending, To: domain.OrderStatusProcessing})
	require.NoError(t, err)

	_, err = s.UpdateOrderStatus(ctx, domain.StatusChange{OrderID: order.ID, From: domain.OrderStatusPending, To: domain.OrderStatusCancelled})
	assert.True(t, domain.IsCode(err, domain.ECONFLICT))
}

func TestStore_UpsertUser(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &domain.User{ExternalID: "ext", Email: "a@example.com"}
	require.NoError(t, s.UpsertUser(ctx, u))
	id := u.ID

	again := &domain.User{ExternalID: "ext", Email: "b@example.com"}
	require.NoError(t, s.UpsertUser(ctx, again))
	assert.Equal(t, id, again.ID)

	got, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)
}

func TestStore_Jobs(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, jobs.EnqueueOrderConfirmation(ctx, s, "o1"))

	job, err := s.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)

	_, err = s.Claim(ctx)
	assert.ErrorIs(t, err, jobs.ErrNoJob)

	require.NoError(t, s.Fail(ctx, job.ID, "smtp down", time.Now().Add(time.Hour)))
	_, err = s.Claim(ctx)
	assert.ErrorIs(t, err, jobs.ErrNoJob, "retry is not yet due")

	require.NoError(t, s.Fail(ctx, job.ID, "smtp down", time.Now().Add(-time.Second)))
	job, err = s.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, job.ID))
	assert.Equal(t, jobs.StatusCompleted, s.Jobs()[0].Status)
}

func TestStore_UpsertUserKeepsEditedNames(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &domain.User{ExternalID: "ext", Email: "a@example.com", FirstName: "Asha"}
	require.NoError(t, s.UpsertUser(ctx, u))
	_, err := s.UpdateUserProfile(ctx, u.ID, "Meera", "Patel")
	require.NoError(t, err)

	again := &domain.User{ExternalID: "ext", Email: "a@example.com", FirstName: "Asha", Role: domain.RoleOwner}
	require.NoError(t, s.UpsertUser(ctx, again))
	assert.Equal(t, "Meera Patel", again.FullName())
	assert.Equal(t, domain.RoleOwner, again.Role)

	users, total, err := s.ListUsers(ctx, domain.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, users, 1)
}

func TestStore_CategoryTypes(t *testing.T) {
	ctx := context.Background()
	s := New()

	seeds := &domain.CategoryType{Name: "Seeds", Kind: domain.KindCategory}
	require.NoError(t, s.CreateCategoryType(ctx, seeds))
	require.NoError(t, s.CreateCategoryType(ctx, &domain.CategoryType{Name: "Fertiliser", Kind: domain.KindCategory}))
	require.NoError(t, s.CreateCategoryType(ctx, &domain.CategoryType{Name: "Seeds", Kind: domain.KindType}))

	err := s.CreateCategoryType(ctx, &domain.CategoryType{Name: "seeds", Kind: domain.KindCategory})
	assert.True(t, domain.IsReason(err, domain.ReasonDuplicateName))

	cats, err := s.ListCategoryTypes(ctx, domain.KindCategory)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Fertiliser", cats[0].Name)

	seeds.Name = "FERTILISER"
	err = s.UpdateCategoryType(ctx, seeds)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	seeds.Name = "SEEDS"
	require.NoError(t, s.UpdateCategoryType(ctx, seeds))

	require.NoError(t, s.DeleteCategoryType(ctx, seeds.ID))
	_, err = s.GetCategoryType(ctx, seeds.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
