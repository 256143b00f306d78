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

var _ domain.CategoryTypeStore = (*Store)(nil)

type categoryTypeDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Kind        string    `bson:"kind"`
	Description string    `bson:"description"`
	CreatedBy   string    `bson:"createdBy,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func (d categoryTypeDoc) toDomain() *domain.CategoryType {
	return &domain.CategoryType{
		ID: d.ID, Name: d.Name, Kind: domain.TaxonomyKind(d.Kind), Description: d.Description,
		CreatedBy: d.CreatedBy, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (s *Store) ListCategoryTypes(ctx context.Context, kind domain.TaxonomyKind) ([]*domain.CategoryType, error) {
	const op = "taxonomy.list"
	filter := bson.M{}
	if kind != "" {
		filter["kind"] = string(kind)
	}
	cur, err := s.col(colTaxonomy).Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetCollation(caseInsensitive))
	if err != nil {
		return nil, storeErr(err, op, "failed to list categories and types")
	}
	var docs []categoryTypeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err, op, "failed to list categories and types")
	}
	out := make([]*domain.CategoryType, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) GetCategoryType(ctx context.Context, id string) (*domain.CategoryType, error) {
	const op = "taxonomy.get"
	var doc categoryTypeDoc
	err := s.col(colTaxonomy).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(op, "category type", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load category type")
	}
	return doc.toDomain(), nil
}

func (s *Store) CreateCategoryType(ctx context.Context, ct *domain.CategoryType) error {
	const op = "taxonomy.create"
	now := time.Now().UTC()
	doc := categoryTypeDoc{
		ID: newID(), Name: ct.Name, Kind: string(ct.Kind), Description: ct.Description,
		CreatedBy: ct.CreatedBy, CreatedAt: now, UpdatedAt: now,
	}
	_, err := s.col(colTaxonomy).InsertOne(ctx, doc)
	if duplicateOn(err, "unique_kind_name") {
		return domain.DuplicateCategoryType(op, ct.Kind, ct.Name)
	}
	if err != nil {
		return storeErr(err, op, "failed to create category type")
	}
	*ct = *doc.toDomain()
	return nil
}

func (s *Store) UpdateCategoryType(ctx context.Context, ct *domain.CategoryType) error {
	const op = "taxonomy.update"
	var doc categoryTypeDoc
	err := s.col(colTaxonomy).FindOneAndUpdate(ctx,
		bson.M{"_id": ct.ID},
		bson.M{"$set": bson.M{"name": ct.Name, "description": ct.Description, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.NotFound(op, "category type", ct.ID)
	case duplicateOn(err, "unique_kind_name"):
		return domain.DuplicateCategoryType(op, ct.Kind, ct.Name)
	case err != nil:
		return storeErr(err, op, "failed to update category type")
	}
	*ct = *doc.toDomain()
	return nil
}

func (s *Store) DeleteCategoryType(ctx context.Context, id string) error {
	const op = "taxonomy.delete"
	res, err := s.col(colTaxonomy).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeErr(err, op, "failed to delete category type")
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(op, "category type", id)
	}
	return nil
}
