package mongodb

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/agrimart/internal/domain"
)

var _ domain.ProductStore = (*Store)(nil)

type sizeDoc struct {
	Label string               `bson:"label"`
	Price primitive.Decimal128 `bson:"price"`
	Stock *int                 `bson:"stock"`
}

type productDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Images      []string  `bson:"images"`
	Sizes       []sizeDoc `bson:"sizes"`
	Category    string    `bson:"category"`
	Type        string    `bson:"type"`
	Popular     bool      `bson:"popular"`
	InStock     bool      `bson:"inStock"`
	CreatedBy   string    `bson:"createdBy,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toProductDoc(p *domain.Product) productDoc {
	sizes := make([]sizeDoc, len(p.Sizes))
	for i, opt := range p.Sizes {
		sizes[i] = sizeDoc{Label: opt.Label, Price: toDecimal128(opt.Price), Stock: opt.Stock}
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productDoc{
		ID: p.ID, Title: p.Title, Description: p.Description, Images: images, Sizes: sizes,
		Category: p.Category, Type: p.Type, Popular: p.Popular, InStock: p.InStock,
		CreatedBy: p.CreatedBy, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func (d productDoc) toDomain() *domain.Product {
	sizes := make(domain.SizeTable, len(d.Sizes))
	for i, s := range d.Sizes {
		sizes[i] = domain.SizeOption{Label: s.Label, Price: fromDecimal128(s.Price), Stock: s.Stock}
	}
	return &domain.Product{
		ID: d.ID, Title: d.Title, Description: d.Description, Images: d.Images, Sizes: sizes,
		Category: d.Category, Type: d.Type, Popular: d.Popular, InStock: d.InStock,
		CreatedBy: d.CreatedBy, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func (s *Store) findProduct(ctx context.Context, id string) (*domain.Product, error) {
	var doc productDoc
	if err := s.col(colProducts).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	const op = "product.get"
	p, err := s.findProduct(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(op, "product", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to load product")
	}
	return p, nil
}

func (s *Store) GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	const op = "product.get_many"
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cur, err := s.col(colProducts).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, storeErr(err, op, "failed to load products")
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err, op, "failed to load products")
	}
	for _, d := range docs {
		out[d.ID] = d.toDomain()
	}
	return out, nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	const op = "product.list"
	filter.Normalize()

	q := bson.M{}
	ci := func(v string) primitive.Regex {
		return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(v) + "$", Options: "i"}
	}
	if filter.Category != "" {
		q["category"] = ci(filter.Category)
	}
	if filter.Type != "" {
		q["type"] = ci(filter.Type)
	}
	if filter.Popular != nil {
		q["popular"] = *filter.Popular
	}
	if filter.InStock != nil {
		q["inStock"] = *filter.InStock
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		q["$or"] = bson.A{bson.M{"title": re}, bson.M{"description": re}}
	}

	total, err := s.col(colProducts).CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to count products")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(filter.Offset())).
		SetLimit(int64(filter.Limit))
	cur, err := s.col(colProducts).Find(ctx, q, opts)
	if err != nil {
		return nil, 0, storeErr(err, op, "failed to list products")
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, storeErr(err, op, "failed to list products")
	}

	out := make([]*domain.Product, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, int(total), nil
}

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.col(colProducts).InsertOne(ctx, toProductDoc(p))
	return storeErr(err, "product.create", "failed to create product")
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	const op = "product.update"
	p.UpdatedAt = time.Now().UTC()
	doc := toProductDoc(p)

	var saved productDoc
	err := s.col(colProducts).FindOneAndUpdate(ctx,
		bson.M{"_id": p.ID},
		bson.M{"$set": bson.M{
			"title": doc.Title, "description": doc.Description, "images": doc.Images,
			"sizes": doc.Sizes, "category": doc.Category, "type": doc.Type,
			"popular": doc.Popular, "inStock": doc.InStock, "updatedAt": doc.UpdatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&saved)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NotFound(op, "product", p.ID)
	}
	if err != nil {
		return storeErr(err, op, "failed to update product")
	}
	*p = *saved.toDomain()
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	const op = "product.delete"
	res, err := s.col(colProducts).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeErr(err, op, "failed to delete product")
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(op, "product", id)
	}
	return nil
}

func (s *Store) SetStock(ctx context.Context, id, size string, qty int) (*domain.Product, error) {
	const op = "product.set_stock"

	var out *domain.Product
	err := s.inTx(ctx, func(sc mongo.SessionContext) error {
		p, err := s.findProduct(sc, id)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.NotFound(op, "product", id)
		}
		if err != nil {
			return err
		}
		if !p.HasSize(size) {
			return domain.InvalidSize(op, p.Title, size)
		}
		for i := range p.Sizes {
			if p.Sizes[i].Label == size {
				v := qty
				p.Sizes[i].Stock = &v
			}
		}
		p.InStock = p.DeriveInStock()
		p.UpdatedAt = time.Now().UTC()

		doc := toProductDoc(p)
		_, err = s.col(colProducts).UpdateOne(sc, bson.M{"_id": id}, bson.M{"$set": bson.M{
			"sizes": doc.Sizes, "inStock": doc.InStock, "updatedAt": doc.UpdatedAt,
		}})
		out = p
		return err
	})
	if err != nil {
		return nil, storeErr(err, op, "failed to set stock")
	}
	return out, nil
}

func (s *Store) AddImage(ctx context.Context, id, url string) (*domain.Product, error) {
	const op = "product.add_image"

	var saved productDoc
	err := s.col(colProducts).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"images": url},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&saved)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFound(op, "product", id)
	}
	if err != nil {
		return nil, storeErr(err, op, "failed to add image")
	}
	return saved.toDomain(), nil
}
