package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/jobs"
)

// openTestDB connects to TEST_DATABASE_URL, migrates, and truncates every
// table. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, url, 10)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlDB := db.SQLDB()
	require.NoError(t, internal.RunMigrations(sqlDB))
	require.NoError(t, sqlDB.Close())

	_, err = db.pool.Exec(ctx, `TRUNCATE jobs, orders, addresses, cart_items, carts, product_sizes, products, category_types, users CASCADE`)
	require.NoError(t, err)
	return db
}

func seedUser(t *testing.T, db *DB, sub string) *domain.User {
	t.Helper()
	u := &domain.User{ExternalID: sub, Email: sub + "@example.com", Role: domain.RoleUser}
	require.NoError(t, db.UpsertUser(context.Background(), u))
	return u
}

func seedProduct(t *testing.T, db *DB, stock map[string]int) *domain.Product {
	t.Helper()
	sizes, err := domain.NewSizeTable(
		[]string{"1kg", "5kg"},
		map[string]decimal.Decimal{"1kg": decimal.NewFromInt(5), "5kg": decimal.RequireFromString("22.50")},
		stock,
	)
	require.NoError(t, err)
	p := &domain.Product{Title: "Organic Compost", Sizes: sizes, InStock: true}
	require.NoError(t, db.CreateProduct(context.Background(), p))
	return p
}

func TestDB_ProductRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, db, map[string]int{"1kg": 2})

	got, err := db.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1kg", "5kg"}, got.Sizes.Labels())
	price, _ := got.PriceFor("5kg")
	assert.True(t, price.Equal(decimal.RequireFromString("22.50")))
	qty, tracked := got.StockFor("1kg")
	assert.True(t, tracked)
	assert.Equal(t, 2, qty)
	_, tracked = got.StockFor("5kg")
	assert.False(t, tracked)

	_, err = db.GetProduct(ctx, "not-a-uuid")
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func TestDB_SetStockDerivesInStock(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, db, map[string]int{"1kg": 2, "5kg": 0})

	got, err := db.SetStock(ctx, p.ID, "1kg", 0)
	require.NoError(t, err)
	assert.False(t, got.InStock)

	_, err = db.SetStock(ctx, p.ID, "20kg", 1)
	assert.True(t, domain.IsCode(err, domain.EINVALID))
}

func TestDB_CartVersioning(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "sub-1")
	p := seedProduct(t, db, nil)
	cart := db.CartFor(u.ID)

	require.NoError(t, cart.AddLine(ctx, p.ID, "1kg", 1))
	require.NoError(t, cart.AddLine(ctx, p.ID, "1kg", 2))
	c, err := cart.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
	assert.Equal(t, int64(2), c.Version)

	found, err := cart.SetLine(ctx, p.ID, "5kg", 1)
	require.NoError(t, err)
	assert.False(t, found)

	c, _ = cart.Cart(ctx)
	assert.Equal(t, int64(2), c.Version, "missing line leaves version alone")
}

func TestDB_PlaceOrder_ConcurrentLastUnit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := seedProduct(t, db, map[string]int{"1kg": 1})

	users := []*domain.User{seedUser(t, db, "a"), seedUser(t, db, "b")}
	errs := make([]error, len(users))

	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u *domain.User) {
			defer wg.Done()
			order := &domain.Order{
				UserID:        u.ID,
				AddressID:     "00000000-0000-0000-0000-000000000001",
				Items:         []domain.OrderItem{{ProductID: p.ID, Size: "1kg", Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
				Amount:        decimal.NewFromInt(5),
				ShippingFee:   decimal.NewFromInt(10),
				Tax:           decimal.RequireFromString("0.10"),
				TotalAmount:   decimal.RequireFromString("15.10"),
				PaymentMethod: domain.PaymentMethodCOD,
				PaymentStatus: domain.PaymentStatusPending,
				Status:        domain.OrderStatusPending,
			}
			errs[i] = db.PlaceOrder(ctx, order, order.StockDecrements(), 0)
		}(i, u)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case domain.IsStockConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	got, err := db.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	qty, _ := got.StockFor("1kg")
	assert.Equal(t, 0, qty)
}

func TestDB_UpdateOrderStatusIsCompareAndSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "sub-1")

	order := &domain.Order{
		UserID:          u.ID,
		AddressID:       "00000000-0000-0000-0000-000000000001",
		Items:           []domain.OrderItem{},
		Amount:          decimal.NewFromInt(5),
		ShippingFee:     decimal.NewFromInt(10),
		Tax:             decimal.RequireFromString("0.10"),
		TotalAmount:     decimal.RequireFromString("15.10"),
		PaymentMethod:   domain.PaymentMethodCard,
		PaymentStatus:   domain.PaymentStatusPaid,
		IsPaid:          true,
		PaymentIntentID: "pi_1",
		Status:          domain.OrderStatusPending,
	}
	require.NoError(t, db.PlaceOrder(ctx, order, nil, 0))

	_, err := db.UpdateOrderStatus(ctx, domain.StatusChange{OrderID: order.ID, From: domain.OrderStatusPending, To: domain.OrderStatusProcessing})
	require.NoError(t, err)

	_, err = db.UpdateOrderStatus(ctx, domain.StatusChange{OrderID: order.ID, From: domain.OrderStatusPending, To: domain.OrderStatusCancelled})
	assert.True(t, domain.IsCode(err, domain.ECONFLICT))

	dup := *order
	dup.ID = ""
	err = db.PlaceOrder(ctx, &dup, nil, 0)
	assert.True(t, domain.IsReason(err, domain.ReasonPaymentAlreadyUsed))
}

func TestDB_SingleDefaultAddress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "sub-1")

	newAddr := func(def bool) *domain.Address {
		return &domain.Address{UserID: u.ID, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
			Phone: "555", Street: "1 Farm Rd", City: "Salem", State: "OR", ZipCode: "97301", Country: "US", IsDefault: def}
	}
	first := newAddr(true)
	require.NoError(t, db.SaveAddress(ctx, first))
	second := newAddr(true)
	require.NoError(t, db.SaveAddress(ctx, second))

	list, err := db.ListAddresses(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	_, err = db.GetAddress(ctx, "00000000-0000-0000-0000-000000000009", first.ID)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func TestDB_JobLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	job := &jobs.Job{Type: "test", Payload: []byte(`{}`), MaxAttempts: 1}
	require.NoError(t, db.Enqueue(ctx, job))

	claimed, err := db.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, 1, claimed.Attempts)

	_, err = db.Claim(ctx)
	assert.ErrorIs(t, err, jobs.ErrNoJob)

	require.NoError(t, db.Fail(ctx, job.ID, "boom", claimed.RunAt))
	_, err = db.Claim(ctx)
	assert.ErrorIs(t, err, jobs.ErrNoJob, "attempts exhausted")
}

func TestDB_CartLineQuantityCap(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "sub-cap")
	p := seedProduct(t, db, nil)
	cart := db.CartFor(u.ID)

	require.NoError(t, cart.AddLine(ctx, p.ID, "1kg", domain.MaxLineQuantity-1))
	err := cart.AddLine(ctx, p.ID, "1kg", 2)
	assert.True(t, domain.IsValidationError(err), "got %v", err)
	err = cart.AddLine(ctx, p.ID, "5kg", domain.MaxLineQuantity+1)
	assert.True(t, domain.IsValidationError(err), "got %v", err)

	c, err := cart.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, domain.MaxLineQuantity-1, c.Lines[0].Quantity)
	assert.Equal(t, int64(1), c.Version, "rejected adds leave the version alone")
}

func TestDB_CategoryTypes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner")

	seeds := &domain.CategoryType{Name: "Seeds", Kind: domain.KindCategory, CreatedBy: owner.ID}
	require.NoError(t, db.CreateCategoryType(ctx, seeds))
	require.NoError(t, db.CreateCategoryType(ctx, &domain.CategoryType{Name: "Seeds", Kind: domain.KindType}))

	err := db.CreateCategoryType(ctx, &domain.CategoryType{Name: "SEEDS", Kind: domain.KindCategory})
	assert.True(t, domain.IsReason(err, domain.ReasonDuplicateName), "got %v", err)

	got, err := db.GetCategoryType(ctx, seeds.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.CreatedBy)

	all, err := db.ListCategoryTypes(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, db.DeleteCategoryType(ctx, seeds.ID))
	_, err = db.GetCategoryType(ctx, seeds.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestDB_UserProfileSurvivesUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "farmer")

	_, err := db.UpdateUserProfile(ctx, u.ID, "Meera", "Iyer")
	require.NoError(t, err)

	again := &domain.User{ExternalID: "farmer", Email: "farmer@example.com", FirstName: "Token", Role: domain.RoleOwner}
	require.NoError(t, db.UpsertUser(ctx, again))
	assert.Equal(t, "Meera", again.FirstName)
	assert.Equal(t, domain.RoleOwner, again.Role)

	users, total, err := db.ListUsers(ctx, domain.UserFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, users, 1)
}
