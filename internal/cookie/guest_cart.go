package cookie

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/agrimart/internal/crypto"
	"github.com/dukerupert/agrimart/internal/domain"
)

// MaxGuestLines bounds the cart so the sealed cookie stays under the 4KB
// browser limit.
const MaxGuestLines = 40

// CartCodec seals guest carts into cookie values.
type CartCodec struct {
	enc    crypto.Encryptor
	config *Config
}

// NewCartCodec creates a codec over enc.
func NewCartCodec(enc crypto.Encryptor, config *Config) *CartCodec {
	return &CartCodec{enc: enc, config: config}
}

type guestPayload struct {
	Lines []domain.CartLine `json:"l"`
}

// Decode opens a cookie value. Unreadable values (rotated key, tampering,
// old format) yield an empty cart.
func (c *CartCodec) Decode(value string) *domain.Cart {
	cart := &domain.Cart{}
	if value == "" {
		return cart
	}
	plain, err := c.enc.Decrypt([]byte(value))
	if err != nil {
		slog.Default().Debug("discarding unreadable guest cart cookie", slog.String("error", err.Error()))
		return cart
	}
	var p guestPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		slog.Default().Debug("discarding malformed guest cart cookie", slog.String("error", err.Error()))
		return cart
	}
	for _, l := range p.Lines {
		if l.ProductID == "" || l.Size == "" || l.Quantity < 1 {
			continue
		}
		if err := cart.Add(l.ProductID, l.Size, l.Quantity); err != nil {
			slog.Default().Debug("dropping oversized guest cart line", slog.String("product_id", l.ProductID))
		}
	}
	return cart
}

// Encode seals the cart lines.
func (c *CartCodec) Encode(cart *domain.Cart) (string, error) {
	plain, err := json.Marshal(guestPayload{Lines: cart.Lines})
	if err != nil {
		return "", err
	}
	sealed, err := c.enc.Encrypt(plain)
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

// GuestCart is the device-local CartStore. It is bound to one request: it
// reads the cookie once and writes a fresh Set-Cookie after each mutation.
type GuestCart struct {
	codec *CartCodec
	w     http.ResponseWriter
	cart  *domain.Cart
}

var _ domain.CartStore = (*GuestCart)(nil)

// NewGuestCart loads the guest cart carried by r.
func NewGuestCart(codec *CartCodec, w http.ResponseWriter, r *http.Request) *GuestCart {
	return &GuestCart{
		codec: codec,
		w:     w,
		cart:  codec.Decode(Get(r, CartCookieName)),
	}
}

func (g *GuestCart) Cart(ctx context.Context) (*domain.Cart, error) {
	out := &domain.Cart{Lines: append([]domain.CartLine(nil), g.cart.Lines...)}
	return out, nil
}

func (g *GuestCart) AddLine(ctx context.Context, productID, size string, quantity int) error {
	if g.cart.Find(productID, size) < 0 && len(g.cart.Lines) >= MaxGuestLines {
		return domain.Invalid("cart.add", "Your cart is full. Sign in to add more items.")
	}
	if err := g.cart.Add(productID, size, quantity); err != nil {
		return err
	}
	return g.save()
}

func (g *GuestCart) SetLine(ctx context.Context, productID, size string, quantity int) (bool, error) {
	if !g.cart.Set(productID, size, quantity) {
		return false, nil
	}
	return true, g.save()
}

func (g *GuestCart) RemoveLine(ctx context.Context, productID, size string) error {
	if g.cart.Find(productID, size) < 0 {
		return nil
	}
	g.cart.Remove(productID, size)
	return g.save()
}

func (g *GuestCart) Clear(ctx context.Context) error {
	g.cart.Lines = nil
	g.codec.config.Clear(g.w, CartCookieName)
	return nil
}

func (g *GuestCart) save() error {
	if g.cart.IsEmpty() {
		g.codec.config.Clear(g.w, CartCookieName)
		return nil
	}
	value, err := g.codec.Encode(g.cart)
	if err != nil {
		return domain.Internal(err, "cart.guest", "failed to save cart on this device")
	}
	g.codec.config.Set(g.w, CartCookieName, value, CartMaxAge)
	return nil
}
