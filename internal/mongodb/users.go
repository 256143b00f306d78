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

var _ domain.UserStore = (*Store)(nil)

type userDoc struct {
	ID         string    `bson:"_id"`
	ExternalID string    `bson:"externalId"`
	Email      string    `bson:"email"`
	FirstName  string    `bson:"firstName"`
	LastName   string    `bson:"lastName"`
	Role       string    `bson:"role"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func (d userDoc) toDomain() *domain.User {
	return &domain.User{
		ID: d.ID, ExternalID: d.ExternalID, Email: d.Email, FirstName: d.FirstName,
		LastName: d.LastName, Role: domain.ParseRole(d.Role), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const op = "user.get"
	var doc userDoc
	err := s.col(colUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(op, "user", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load user")
	}
	return doc.toDomain(), nil
}

// UpsertUser keeps names the user has already set; token names only fill
// blanks.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	const op = "user.upsert"
	now := time.Now().UTC()

	var existing userDoc
	err := s.col(colUsers).FindOne(ctx, bson.M{"externalId": u.ExternalID}).Decode(&existing)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return storeErr(err, op, "failed to load user")
	}
	firstName, lastName := u.FirstName, u.LastName
	if existing.FirstName != "" {
		firstName = existing.FirstName
	}
	if existing.LastName != "" {
		lastName = existing.LastName
	}

	var doc userDoc
	err = s.col(colUsers).FindOneAndUpdate(ctx,
		bson.M{"externalId": u.ExternalID},
		bson.M{
			"$set": bson.M{
				"email": u.Email, "firstName": firstName, "lastName": lastName,
				"role": string(domain.ParseRole(string(u.Role))), "updatedAt": now,
			},
			"$setOnInsert": bson.M{"_id": newID(), "createdAt": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return storeErr(err, op, "failed to save user")
	}
	*u = *doc.toDomain()
	return nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id, firstName, lastName string) (*domain.User, error) {
	const op = "user.update"
	var doc userDoc
	err := s.col(colUsers).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"firstName": firstName, "lastName": lastName, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(op, "user", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to update user")
	}
	return doc.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	const op = "user.list"
	filter.Normalize()

	total, err := s.col(colUsers).CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to count users")
	}
	cur, err := s.col(colUsers).Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit)))
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list users")
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, storeErr(err, op, "failed to list users")
	}
	out := make([]*domain.User, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, int(total), nil
}
