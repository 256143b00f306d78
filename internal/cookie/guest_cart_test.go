package cookie

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/agrimart/internal/crypto"
	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T) *CartCodec {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	enc, err := crypto.NewAESEncryptor(key)
	require.NoError(t, err)
	return NewCartCodec(enc, NewConfig("", false))
}

// carry copies the last Set-Cookie for each name onto a fresh request, as a
// browser would.
func carry(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	latest := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		latest[c.Name] = c
	}
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	for _, c := range latest {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

func TestGuestCart_PersistsAcrossRequests(t *testing.T) {
	ctx := context.Background()
	codec := newCodec(t)

	rec := httptest.NewRecorder()
	g := NewGuestCart(codec, rec, httptest.NewRequest(http.MethodPost, "/cart/add", nil))
	require.NoError(t, g.AddLine(ctx, "p1", "large", 1))
	require.NoError(t, g.AddLine(ctx, "p1", "large", 2))

	rec2 := httptest.NewRecorder()
	g2 := NewGuestCart(codec, rec2, carry(t, rec))
	cart, err := g2.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Count())
}

func TestGuestCart_SetAndRemove(t *testing.T) {
	ctx := context.Background()
	codec := newCodec(t)
	rec := httptest.NewRecorder()
	g := NewGuestCart(codec, rec, httptest.NewRequest(http.MethodGet, "/", nil))

	found, err := g.SetLine(ctx, "p1", "1kg", 2)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, g.AddLine(ctx, "p1", "1kg", 1))
	found, err = g.SetLine(ctx, "p1", "1kg", 0)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, g.RemoveLine(ctx, "p1", "1kg"), "removing an absent line is not an error")

	cart, _ := g.Cart(ctx)
	assert.True(t, cart.IsEmpty())
}

func TestGuestCart_Full(t *testing.T) {
	ctx := context.Background()
	g := NewGuestCart(newCodec(t), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	for i := 0; i < MaxGuestLines; i++ {
		require.NoError(t, g.AddLine(ctx, "p", string(rune('a'+i%26))+string(rune('a'+i/26)), 1))
	}
	err := g.AddLine(ctx, "p-extra", "1kg", 1)
	assert.True(t, domain.IsCode(err, domain.EINVALID))

	// Summing into an existing line is still allowed.
	assert.NoError(t, g.AddLine(ctx, "p", "aa", 1))
}

func TestGuestCart_LineQuantityCap(t *testing.T) {
	ctx := context.Background()
	g := NewGuestCart(newCodec(t), httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/cart/add", nil))

	require.NoError(t, g.AddLine(ctx, "p1", "std", domain.MaxLineQuantity))
	err := g.AddLine(ctx, "p1", "std", 1)
	assert.True(t, domain.IsValidationError(err), "got %v", err)

	cart, err := g.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLineQuantity, cart.Count())
}

func TestCartCodec_UnreadableCookieIsEmpty(t *testing.T) {
	codec := newCodec(t)
	assert.True(t, codec.Decode("garbage").IsEmpty())

	other := newCodec(t)
	value, err := other.Encode(&domain.Cart{Lines: []domain.CartLine{{ProductID: "p", Size: "s", Quantity: 1}}})
	require.NoError(t, err)
	assert.True(t, codec.Decode(value).IsEmpty(), "cookie sealed with another key")
}

func TestGuestCart_ClearExpiresCookie(t *testing.T) {
	ctx := context.Background()
	rec := httptest.NewRecorder()
	g := NewGuestCart(newCodec(t), rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, g.Clear(ctx))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, CartCookieName, cookies[len(cookies)-1].Name)
	assert.Equal(t, -1, cookies[len(cookies)-1].MaxAge)
}
