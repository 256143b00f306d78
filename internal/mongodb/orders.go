package mongodb

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.OrderStore = (*Store)(nil)

type orderItemDoc struct {
	ProductID    string               `bson:"productId"`
	ProductTitle string               `bson:"title"`
	Image        string               `bson:"image,omitempty"`
	Size         string               `bson:"size"`
	Quantity     int                  `bson:"quantity"`
	UnitPrice    primitive.Decimal128 `bson:"price"`
}

type shippingAddressDoc struct {
	FirstName string `bson:"firstName"`
	LastName  string `bson:"lastName"`
	Email     string `bson:"email"`
	Phone     string `bson:"phone"`
	Street    string `bson:"street"`
	City      string `bson:"city"`
	State     string `bson:"state"`
	ZipCode   string `bson:"zipCode"`
	Country   string `bson:"country"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"userId"`
	Items           []orderItemDoc       `bson:"items"`
	AddressID       string               `bson:"addressId"`
	ShippingAddress shippingAddressDoc   `bson:"shippingAddress"`
	Amount          primitive.Decimal128 `bson:"amount"`
	ShippingFee     primitive.Decimal128 `bson:"shippingFee"`
	Tax             primitive.Decimal128 `bson:"tax"`
	TotalAmount     primitive.Decimal128 `bson:"totalAmount"`
	PaymentMethod   string               `bson:"paymentMethod"`
	PaymentStatus   string               `bson:"paymentStatus"`
	IsPaid          bool                 `bson:"isPaid"`
	PaymentIntentID string               `bson:"paymentIntentId,omitempty"`
	Status          string               `bson:"status"`
	TrackingNumber  string               `bson:"trackingNumber"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func toOrderDoc(o *domain.Order) orderDoc {
	items := make([]orderItemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemDoc{
			ProductID: it.ProductID, ProductTitle: it.ProductTitle, Image: it.Image,
			Size: it.Size, Quantity: it.Quantity, UnitPrice: toDecimal128(it.UnitPrice),
		}
	}
	return orderDoc{
		ID: o.ID, UserID: o.UserID, Items: items, AddressID: o.AddressID,
		ShippingAddress: shippingAddressDoc(o.ShippingAddress),
		Amount:          toDecimal128(o.Amount),
		ShippingFee:     toDecimal128(o.ShippingFee),
		Tax:             toDecimal128(o.Tax),
		TotalAmount:     toDecimal128(o.TotalAmount),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		IsPaid:          o.IsPaid,
		PaymentIntentID: o.PaymentIntentID,
		Status:          string(o.Status),
		TrackingNumber:  o.TrackingNumber,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() *domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = domain.OrderItem{
			ProductID: it.ProductID, ProductTitle: it.ProductTitle, Image: it.Image,
			Size: it.Size, Quantity: it.Quantity, UnitPrice: fromDecimal128(it.UnitPrice),
		}
	}
	return &domain.Order{
		ID: d.ID, UserID: d.UserID, Items: items, AddressID: d.AddressID,
		ShippingAddress: domain.ShippingAddress(d.ShippingAddress),
		Amount:          fromDecimal128(d.Amount),
		ShippingFee:     fromDecimal128(d.ShippingFee),
		Tax:             fromDecimal128(d.Tax),
		TotalAmount:     fromDecimal128(d.TotalAmount),
		PaymentMethod:   domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		IsPaid:          d.IsPaid,
		PaymentIntentID: d.PaymentIntentID,
		Status:          domain.OrderStatus(d.Status),
		TrackingNumber:  d.TrackingNumber,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// PlaceOrder runs in one transaction. Concurrent placements touching the
// same product hit a write conflict; the driver retries the callback and
// the retry observes the reduced stock.
func (s *Store) PlaceOrder(ctx context.Context, order *domain.Order, decrements []domain.StockDecrement, cartVersion int64) error {
	const op = "order.place"

	ordered := append([]domain.StockDecrement(nil), decrements...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ProductID != ordered[j].ProductID {
			return ordered[i].ProductID < ordered[j].ProductID
		}
		return ordered[i].Size < ordered[j].Size
	})

	if order.ID == "" {
		order.ID = newID()
	}

	err := s.inTx(ctx, func(sc mongo.SessionContext) error {
		var cart cartDoc
		err := s.col(colCarts).FindOne(sc, bson.M{"_id": order.UserID}).Decode(&cart)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return err
		}
		if cart.Version != cartVersion {
			return &domain.StockConflict{CartChanged: true}
		}

		touched := make(map[string]bool)
		for _, d := range ordered {
			res, err := s.col(colProducts).UpdateOne(sc,
				bson.M{"_id": d.ProductID, "sizes": bson.M{"$elemMatch": bson.M{
					"label": d.Size, "stock": bson.M{"$gte": d.Quantity},
				}}},
				bson.M{"$inc": bson.M{"sizes.$.stock": -d.Quantity}})
			if err != nil {
				return err
			}
			if res.ModifiedCount == 1 {
				touched[d.ProductID] = true
				continue
			}

			// Untracked sizes carry a null stock and need no decrement.
			n, err := s.col(colProducts).CountDocuments(sc, bson.M{"_id": d.ProductID, "sizes": bson.M{"$elemMatch": bson.M{
				"label": d.Size, "stock": nil,
			}}})
			if err != nil {
				return err
			}
			if n == 0 {
				return &domain.StockConflict{ProductID: d.ProductID, Size: d.Size}
			}
		}

		now := time.Now().UTC()
		for id := range touched {
			p, err := s.findProduct(sc, id)
			if err != nil {
				return err
			}
			if _, err := s.col(colProducts).UpdateOne(sc, bson.M{"_id": id},
				bson.M{"$set": bson.M{"inStock": p.DeriveInStock(), "updatedAt": now}}); err != nil {
				return err
			}
		}

		order.CreatedAt, order.UpdatedAt = now, now
		if _, err := s.col(colOrders).InsertOne(sc, toOrderDoc(order)); err != nil {
			return err
		}

		if cart.UserID == "" {
			return nil
		}
		_, err = s.col(colCarts).UpdateOne(sc, bson.M{"_id": order.UserID}, bson.M{
			"$set": bson.M{"items": bson.A{}, "updatedAt": now},
			"$inc": bson.M{"version": 1},
		})
		return err
	})
	if duplicateOn(err, "unique_payment_intent") {
		return domain.PaymentAlreadyUsed(op)
	}
	return storeErr(err, op, "failed to place order")
}

func (s *Store) findOrder(ctx context.Context, op, key string, filter bson.M) (*domain.Order, error) {
	var doc orderDoc
	err := s.col(colOrders).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(op, "order", key)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load order")
	}
	return doc.toDomain(), nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOrder(ctx, "order.get", id, bson.M{"_id": id})
}

func (s *Store) GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return s.findOrder(ctx, "order.get_by_payment", paymentIntentID, bson.M{"paymentIntentId": paymentIntentID})
}

func (s *Store) findOrders(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Order, error) {
	cur, err := s.col(colOrders).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domain.Order, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	out, err := s.findOrders(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, storeErr(err, "order.list_user", "failed to list orders")
	}
	return out, nil
}

func (s *Store) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	const op = "order.list"
	filter.Normalize()

	q := bson.M{}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.PaymentStatus != "" {
		q["paymentStatus"] = string(filter.PaymentStatus)
	}

	total, err := s.col(colOrders).CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to count orders")
	}
	out, err := s.findOrders(ctx, q, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit)))
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list orders")
	}
	return out, int(total), nil
}

func (s *Store) OrderStats(ctx context.Context) (*domain.OrderStats, error) {
	const op = "order.stats"

	total, err := s.col(colOrders).CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, storeErr(err, op, "failed to count orders")
	}

	cur, err := s.col(colOrders).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"paymentStatus": string(domain.PaymentStatusPaid)}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "revenue": bson.M{"$sum": "$totalAmount"}}}},
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to sum revenue")
	}
	var rows []struct {
		Revenue primitive.Decimal128 `bson:"revenue"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, storeErr(err, op, "failed to sum revenue")
	}

	stats := &domain.OrderStats{TotalOrders: int(total)}
	if len(rows) > 0 {
		stats.TotalRevenue = fromDecimal128(rows[0].Revenue)
	}
	return stats, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, change domain.StatusChange) (*domain.Order, error) {
	const op = "order.update_status"

	set := bson.M{"status": string(change.To), "updatedAt": time.Now().UTC()}
	if change.TrackingNumber != "" {
		set["trackingNumber"] = change.TrackingNumber
	}

	var doc orderDoc
	err := s.col(colOrders).FindOneAndUpdate(ctx,
		bson.M{"_id": change.OrderID, "status": string(change.From)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storeErr(err, op, "failed to update order status")
	}
	if _, err := s.GetOrder(ctx, change.OrderID); err != nil {
		return nil, err
	}
	return nil, domain.Conflict(op, "Order status was changed by someone else; reload and try again")
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Order, error) {
	const op = "order.update_payment"

	var doc orderDoc
	err := s.col(colOrders).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"paymentStatus": string(status),
			"isPaid":        status == domain.PaymentStatusPaid,
			"updatedAt":     time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(op, "order", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to update payment status")
	}
	return doc.toDomain(), nil
}
