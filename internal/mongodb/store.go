// Package mongodb implements the store contracts on MongoDB. Order
// placement needs multi-document transactions, so the server must run as a
// replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dukerupert/agrimart/internal/domain"
)

// Collection names.
const (
	colUsers     = "users"
	colProducts  = "products"
	colCarts     = "carts"
	colAddresses = "addresses"
	colOrders    = "orders"
	colJobs      = "jobs"
	colTaxonomy  = "category_types"
)

// caseInsensitive compares strings ignoring case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Store implements every store contract on one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri, selects database and ensures the indexes the
// stores depend on.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("agrimart").
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "externalId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colProducts: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		colAddresses: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetName("one_default_per_user").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isDefault": true}),
			},
		},
		colOrders: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{
				Keys: bson.D{{Key: "paymentIntentId", Value: 1}},
				Options: options.Index().
					SetName("unique_payment_intent").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"paymentIntentId": bson.M{"$type": "string"}}),
			},
		},
		colJobs: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "runAt", Value: 1}}},
		},
		colTaxonomy: {
			{
				Keys: bson.D{{Key: "kind", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().
					SetName("unique_kind_name").
					SetUnique(true).
					SetCollation(caseInsensitive),
			},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// inTx runs fn in a multi-document transaction. fn may run more than once
// on transient errors.
func (s *Store) inTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// storeErr classifies driver errors the way the postgres store does.
func storeErr(err error, op, message string) error {
	if err == nil {
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) || domain.IsValidationError(err) || domain.IsStockConflict(err) {
		return err
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return domain.Unavailable(err, op, "database unavailable")
	}
	return domain.StoreError(err, op, message)
}

// duplicateOn reports whether err is a duplicate key error on index.
func duplicateOn(err error, index string) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 && containsIndex(e.Message, index) {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 && containsIndex(ce.Message, index) {
		return true
	}
	return false
}

func containsIndex(msg, index string) bool {
	return index != "" && strings.Contains(msg, "index: "+index)
}

func newID() string {
	return uuid.NewString()
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, ok := primitive.ParseDecimal128FromBigInt(d.Coefficient(), int(d.Exponent()))
	if !ok {
		// Out of range for decimal128; never expected for money.
		v, _ = primitive.ParseDecimal128(d.String())
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	bi, exp, err := v.BigInt()
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(bi, int32(exp))
}
