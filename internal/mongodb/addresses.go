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

var _ domain.AddressStore = (*Store)(nil)

type addressDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	FirstName string    `bson:"firstName"`
	LastName  string    `bson:"lastName"`
	Email     string    `bson:"email"`
	Phone     string    `bson:"phone"`
	Street    string    `bson:"street"`
	City      string    `bson:"city"`
	State     string    `bson:"state"`
	ZipCode   string    `bson:"zipCode"`
	Country   string    `bson:"country"`
	IsDefault bool      `bson:"isDefault"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d addressDoc) toDomain() *domain.Address {
	a := domain.Address(d)
	return &a
}

func (s *Store) ListAddresses(ctx context.Context, userID string) ([]*domain.Address, error) {
	const op = "address.list"
	cur, err := s.col(colAddresses).Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "isDefault", Value: -1}, {Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, storeErr(err, op, "failed to list addresses")
	}
	var docs []addressDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err, op, "failed to list addresses")
	}
	out := make([]*domain.Address, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) GetAddress(ctx context.Context, userID, id string) (*domain.Address, error) {
	const op = "address.get"
	var doc addressDoc
	err := s.col(colAddresses).FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.AddressNotFound(op, id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load address")
	}
	return doc.toDomain(), nil
}

func (s *Store) SaveAddress(ctx context.Context, a *domain.Address) error {
	const op = "address.save"
	now := time.Now().UTC()

	err := s.inTx(ctx, func(sc mongo.SessionContext) error {
		if a.IsDefault {
			_, err := s.col(colAddresses).UpdateMany(sc,
				bson.M{"userId": a.UserID, "isDefault": true, "_id": bson.M{"$ne": a.ID}},
				bson.M{"$set": bson.M{"isDefault": false, "updatedAt": now}})
			if err != nil {
				return err
			}
		}

		if a.ID == "" {
			doc := addressDoc(*a)
			doc.ID = newID()
			doc.CreatedAt, doc.UpdatedAt = now, now
			if _, err := s.col(colAddresses).InsertOne(sc, doc); err != nil {
				return err
			}
			*a = *doc.toDomain()
			return nil
		}

		var saved addressDoc
		err := s.col(colAddresses).FindOneAndUpdate(sc,
			bson.M{"_id": a.ID, "userId": a.UserID},
			bson.M{"$set": bson.M{
				"firstName": a.FirstName, "lastName": a.LastName, "email": a.Email, "phone": a.Phone,
				"street": a.Street, "city": a.City, "state": a.State, "zipCode": a.ZipCode,
				"country": a.Country, "isDefault": a.IsDefault, "updatedAt": now,
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&saved)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.AddressNotFound(op, a.ID)
		}
		if err != nil {
			return err
		}
		*a = *saved.toDomain()
		return nil
	})
	if duplicateOn(err, "one_default_per_user") {
		return domain.DefaultAddressRace(op)
	}
	return storeErr(err, op, "failed to save address")
}

func (s *Store) DeleteAddress(ctx context.Context, userID, id string) error {
	const op = "address.delete"
	res, err := s.col(colAddresses).DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return storeErr(err, op, "failed to delete address")
	}
	if res.DeletedCount == 0 {
		return domain.AddressNotFound(op, id)
	}
	return nil
}
