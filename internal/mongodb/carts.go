package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.CartRepository = (*Store)(nil)

type cartLineDoc struct {
	ProductID string `bson:"productId"`
	Size      string `bson:"size"`
	Quantity  int    `bson:"quantity"`
}

type cartDoc struct {
	UserID    string        `bson:"_id"`
	Version   int64         `bson:"version"`
	Items     []cartLineDoc `bson:"items"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

// CartFor returns the server cart of userID.
func (s *Store) CartFor(userID string) domain.CartStore {
	return &cartStore{s: s, userID: userID}
}

type cartStore struct {
	s      *Store
	userID string
}

func (c *cartStore) load(ctx context.Context) (*domain.Cart, error) {
	cart := &domain.Cart{UserID: c.userID, Lines: []domain.CartLine{}}

	var doc cartDoc
	err := c.s.col(colCarts).FindOne(ctx, bson.M{"_id": c.userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return cart, nil
	}
	if err != nil {
		return nil, err
	}
	cart.Version = doc.Version
	for _, l := range doc.Items {
		cart.Lines = append(cart.Lines, domain.CartLine{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity})
	}
	return cart, nil
}

// save writes lines back only if nobody changed the cart since it was read.
// A lost race is retried by the caller.
func (c *cartStore) save(ctx context.Context, cart *domain.Cart) (bool, error) {
	items := make([]cartLineDoc, len(cart.Lines))
	for i, l := range cart.Lines {
		items[i] = cartLineDoc{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity}
	}
	update := bson.M{
		"$set": bson.M{"items": items, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}

	res, err := c.s.col(colCarts).UpdateOne(ctx,
		bson.M{"_id": c.userID, "version": cart.Version},
		update,
		options.Update().SetUpsert(cart.Version == 0),
	)
	if mongo.IsDuplicateKeyError(err) {
		// Another writer created the cart first.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

// mutate applies fn to a fresh copy of the cart and saves it, retrying a
// few times when a concurrent writer wins.
func (c *cartStore) mutate(ctx context.Context, op string, fn func(*domain.Cart) bool) (bool, error) {
	const attempts = 5
	for i := 0; i < attempts; i++ {
		cart, err := c.load(ctx)
		if err != nil {
			return false, storeErr(err, op, "failed to load cart")
		}
		if !fn(cart) {
			return false, nil
		}
		ok, err := c.save(ctx, cart)
		if err != nil {
			return false, storeErr(err, op, "failed to save cart")
		}
		if ok {
			return true, nil
		}
	}
	return false, domain.Conflict(op, "Cart is being updated elsewhere; try again")
}

func (c *cartStore) Cart(ctx context.Context) (*domain.Cart, error) {
	cart, err := c.load(ctx)
	if err != nil {
		return nil, storeErr(err, "cart.get", "failed to load cart")
	}
	return cart, nil
}

func (c *cartStore) AddLine(ctx context.Context, productID, size string, quantity int) error {
	var addErr error
	_, err := c.mutate(ctx, "cart.add", func(cart *domain.Cart) bool {
		addErr = cart.Add(productID, size, quantity)
		return addErr == nil
	})
	if err != nil {
		return err
	}
	return addErr
}

func (c *cartStore) SetLine(ctx context.Context, productID, size string, quantity int) (bool, error) {
	return c.mutate(ctx, "cart.update", func(cart *domain.Cart) bool {
		return cart.Set(productID, size, quantity)
	})
}

func (c *cartStore) RemoveLine(ctx context.Context, productID, size string) error {
	_, err := c.mutate(ctx, "cart.remove", func(cart *domain.Cart) bool {
		if cart.Find(productID, size) < 0 {
			return false
		}
		cart.Remove(productID, size)
		return true
	})
	return err
}

func (c *cartStore) Clear(ctx context.Context) error {
	_, err := c.mutate(ctx, "cart.clear", func(cart *domain.Cart) bool {
		cart.Lines = nil
		return true
	})
	return err
}
