package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/storage"
)

// maxImageBytes caps a single product image upload.
const maxImageBytes = 5 << 20

// ProductService manages the catalog. Reads are public; writes require the
// owner role, which callers check before reaching the service.
type ProductService interface {
	List(ctx context.Context, filter domain.ProductFilter) (*ProductPage, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, owner *domain.User, params ProductParams) (*domain.Product, error)
	Update(ctx context.Context, id string, params ProductParams) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	SetStock(ctx context.Context, id, size string, qty int) (*domain.Product, error)

	// UploadImage stores the image and appends its URL to the product.
	UploadImage(ctx context.Context, id string, upload ImageUpload) (*domain.Product, error)

	// BulkCreate creates each valid product and reports the rest as skipped.
	BulkCreate(ctx context.Context, owner *domain.User, batch []ProductParams) (*BulkResult, error)
}

// MaxBulkProducts caps one BulkCreate batch.
const MaxBulkProducts = 200

// BulkResult reports a BulkCreate batch.
type BulkResult struct {
	Count    int               `json:"count"`
	Products []*domain.Product `json:"products"`
	Skipped  []BulkSkip        `json:"skipped"`
}

// BulkSkip is a batch entry that was not created.
type BulkSkip struct {
	Index   int               `json:"index"`
	Title   string            `json:"title"`
	Fields  map[string]string `json:"fields,omitempty"`
	Message string            `json:"message"`
}

// ProductParams carries a full product definition. Sizes, Prices and Stock
// are validated together into a SizeTable.
type ProductParams struct {
	Title       string
	Description string
	Images      []string
	Sizes       []string
	Prices      map[string]decimal.Decimal
	Stock       map[string]int
	Category    string
	Type        string
	Popular     bool

	// InStock overrides the derived availability flag when set.
	InStock *bool
}

// ImageUpload is one uploaded image file.
type ImageUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// ProductPage is one page of catalog results.
type ProductPage struct {
	Products []*domain.Product `json:"products"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
	Total    int               `json:"total"`
	Pages    int               `json:"pages"`
}

type productService struct {
	store    domain.ProductStore
	taxonomy domain.CategoryTypeStore
	files    storage.Storage
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProductService creates a new ProductService instance. files may be nil,
// which disables image uploads. taxonomy may be nil, which accepts any
// category and type.
func NewProductService(store domain.ProductStore, taxonomy domain.CategoryTypeStore, files storage.Storage, timeout time.Duration, logger *slog.Logger) ProductService {
	if logger == nil {
		logger = slog.Default()
	}
	return &productService{
		store:    store,
		taxonomy: taxonomy,
		files:    files,
		timeout:  timeout,
		logger:   logger.With("service", "product"),
	}
}

func (s *productService) List(ctx context.Context, filter domain.ProductFilter) (*ProductPage, error) {
	filter.Normalize()

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	products, total, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, domain.StoreError(err, "product.list", "failed to list products")
	}
	if products == nil {
		products = []*domain.Product{}
	}
	return &ProductPage{
		Products: products,
		Page:     filter.Page,
		Limit:    filter.Limit,
		Total:    total,
		Pages:    (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *productService) Get(ctx context.Context, id string) (*domain.Product, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, domain.StoreError(err, "product.get", "failed to load product")
	}
	return p, nil
}

func (s *productService) Create(ctx context.Context, owner *domain.User, params ProductParams) (*domain.Product, error) {
	const op = "product.create"

	p := &domain.Product{InStock: true}
	if owner != nil {
		p.CreatedBy = owner.ID
	}
	if err := apply(op, p, params); err != nil {
		return nil, err
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	if err := s.classify(ctx, op, p); err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, domain.StoreError(err, op, "failed to create product")
	}
	s.logger.Info("product created", "product_id", p.ID, "title", p.Title)
	return p, nil
}

func (s *productService) Update(ctx context.Context, id string, params ProductParams) (*domain.Product, error) {
	const op = "product.update"

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to load product")
	}
	if err := apply(op, p, params); err != nil {
		return nil, err
	}
	if err := s.classify(ctx, op, p); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, domain.StoreError(err, op, "failed to update product")
	}
	return p, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return domain.StoreError(err, "product.delete", "failed to delete product")
	}
	s.logger.Info("product deleted", "product_id", id)
	return nil
}

func (s *productService) SetStock(ctx context.Context, id, size string, qty int) (*domain.Product, error) {
	const op = "product.set_stock"
	if qty < 0 {
		return nil, domain.NewValidationError(op, "stock", "Stock cannot be negative")
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	p, err := s.store.SetStock(ctx, id, size, qty)
	if err != nil {
		return nil, domain.StoreError(err, op, "failed to set stock")
	}
	s.logger.Info("stock updated", "product_id", id, "size", size, "stock", qty, "in_stock", p.InStock)
	return p, nil
}

func (s *productService) UploadImage(ctx context.Context, id string, upload ImageUpload) (*domain.Product, error) {
	const op = "product.upload_image"
	if s.files == nil {
		return nil, domain.Errorf(domain.EUNAVAILABLE, op, "Image storage is not configured")
	}
	ext, ok := storage.ImageExtension(upload.ContentType)
	if !ok {
		return nil, domain.NewValidationError(op, "image", "Only JPEG, PNG, WebP and GIF images are accepted")
	}
	if upload.Size > maxImageBytes {
		return nil, domain.NewValidationError(op, "image", "Image must be 5 MB or smaller")
	}

	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.GetProduct(ctx, id); err != nil {
		return nil, domain.StoreError(err, op, "failed to load product")
	}

	key := storage.ProductImageKey(id, ext)
	url, err := s.files.Put(ctx, key, io.LimitReader(upload.Body, maxImageBytes), upload.ContentType)
	if err != nil {
		return nil, domain.Unavailable(err, op, "failed to store image")
	}

	p, err := s.store.AddImage(ctx, id, url)
	if err != nil {
		if derr := s.files.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Warn("failed to remove orphaned image", "key", key, "error", derr)
		}
		return nil, domain.StoreError(err, op, "failed to attach image")
	}
	s.logger.Info("product image uploaded", "product_id", id, "key", key)
	return p, nil
}

func (s *productService) BulkCreate(ctx context.Context, owner *domain.User, batch []ProductParams) (*BulkResult, error) {
	const op = "product.bulk_create"
	if len(batch) == 0 {
		return nil, domain.NewValidationError(op, "products", "At least one product is required")
	}
	if len(batch) > MaxBulkProducts {
		return nil, domain.NewValidationError(op, "products", fmt.Sprintf("At most %d products per upload", MaxBulkProducts))
	}

	out := &BulkResult{Products: []*domain.Product{}, Skipped: []BulkSkip{}}
	for i, params := range batch {
		fields := make(map[string]string)
		if strings.TrimSpace(params.Category) == "" {
			fields["category"] = "Category is required"
		}
		if strings.TrimSpace(params.Type) == "" {
			fields["type"] = "Type is required"
		}
		if len(fields) > 0 {
			out.Skipped = append(out.Skipped, BulkSkip{Index: i, Title: params.Title, Fields: fields, Message: "Category and type are required"})
			continue
		}

		p, err := s.Create(ctx, owner, params)
		if err != nil {
			code := domain.ErrorCode(err)
			if code == domain.EUNAVAILABLE || code == domain.EINTERNAL {
				// Stop rather than report every remaining entry as bad input.
				return nil, err
			}
			out.Skipped = append(out.Skipped, BulkSkip{
				Index:   i,
				Title:   params.Title,
				Fields:  domain.GetValidationFields(err),
				Message: domain.ErrorMessage(err),
			})
			continue
		}
		out.Products = append(out.Products, p)
	}
	out.Count = len(out.Products)
	s.logger.Info("bulk upload finished", "created", out.Count, "skipped", len(out.Skipped))
	return out, nil
}

// classify replaces the category and type with their taxonomy spelling.
func (s *productService) classify(ctx context.Context, op string, p *domain.Product) error {
	category, err := resolveTaxonomy(ctx, s.taxonomy, op, domain.KindCategory, p.Category)
	if err != nil {
		return err
	}
	typ, err := resolveTaxonomy(ctx, s.taxonomy, op, domain.KindType, p.Type)
	if err != nil {
		return err
	}
	p.Category, p.Type = category, typ
	return nil
}

// apply validates params and writes them onto p.
func apply(op string, p *domain.Product, params ProductParams) error {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return domain.NewValidationError(op, "title", "Title is required")
	}
	sizes, err := domain.NewSizeTable(params.Sizes, params.Prices, params.Stock)
	if err != nil {
		return err
	}

	p.Title = title
	p.Description = strings.TrimSpace(params.Description)
	p.Sizes = sizes
	p.Category = strings.TrimSpace(params.Category)
	p.Type = strings.TrimSpace(params.Type)
	p.Popular = params.Popular
	if params.Images != nil {
		p.Images = params.Images
	}
	if params.InStock != nil {
		p.InStock = *params.InStock
	} else {
		p.InStock = p.DeriveInStock()
	}
	return nil
}
