package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/handler"
	"github.com/dukerupert/agrimart/internal/service"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to a temp file.
const multipartMemory = 8 << 20

// ProductHandler serves the catalog. Reads are public; writes are for
// owners and admins.
type ProductHandler struct {
	products service.ProductService
}

// NewProductHandler creates a new product handler
func NewProductHandler(products service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

type productRequest struct {
	Title       string                     `json:"title" validate:"required,max=200"`
	Description string                     `json:"description" validate:"max=5000"`
	Images      []string                   `json:"images" validate:"max=10,dive,url"`
	Sizes       []string                   `json:"sizes" validate:"required,min=1,dive,required,max=40"`
	Prices      map[string]decimal.Decimal `json:"prices" validate:"required"`
	Stock       map[string]int             `json:"stock"`
	Category    string                     `json:"category" validate:"max=100"`
	Type        string                     `json:"type" validate:"max=100"`
	Popular     bool                       `json:"popular"`
	InStock     *bool                      `json:"inStock"`
}

func (p productRequest) params() service.ProductParams {
	return service.ProductParams{
		Title:       p.Title,
		Description: p.Description,
		Images:      p.Images,
		Sizes:       p.Sizes,
		Prices:      p.Prices,
		Stock:       p.Stock,
		Category:    p.Category,
		Type:        p.Type,
		Popular:     p.Popular,
		InStock:     p.InStock,
	}
}

type bulkProductRequest struct {
	Products []productRequest `json:"products" validate:"required,min=1,max=200"`
}

type stockRequest struct {
	Size     string `json:"size" validate:"required"`
	Quantity *int   `json:"quantity" validate:"required,min=0"`
}

// List handles GET /products and GET /products/search?q=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Category: q.Get("category"),
		Type:     q.Get("type"),
		Popular:  queryBool(q.Get("popular")),
		InStock:  queryBool(q.Get("inStock")),
		Search:   q.Get("q"),
		Page:     queryInt(q.Get("page")),
		Limit:    queryInt(q.Get("limit")),
	}

	page, err := h.products.List(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{
		"products": page.Products,
		"pagination": handler.Envelope{
			"page":  page.Page,
			"limit": page.Limit,
			"total": page.Total,
			"pages": page.Pages,
		},
	})
}

// Get handles GET /products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"product": p})
}

// Create handles POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := handler.Decode(w, r, "product.create", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), domain.MustUser(r.Context()), req.params())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, handler.Envelope{"product": p})
}

// Update handles PUT /products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := handler.Decode(w, r, "product.update", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), r.PathValue("id"), req.params())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"product": p})
}

// BulkUpload handles POST /products/bulk-upload. Entries that fail
// validation are reported as skipped; the rest are created.
func (h *ProductHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	var req bulkProductRequest
	if err := handler.Decode(w, r, "product.bulk_create", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	batch := make([]service.ProductParams, len(req.Products))
	for i, p := range req.Products {
		batch[i] = p.params()
	}
	result, err := h.products.BulkCreate(r.Context(), domain.MustUser(r.Context()), batch)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{
		"count":    result.Count,
		"products": result.Products,
		"skipped":  result.Skipped,
	})
}

// Delete handles DELETE /products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"message": "Product deleted successfully"})
}

// SetStock handles PATCH /products/{id}/stock
func (h *ProductHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := handler.Decode(w, r, "product.stock", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	p, err := h.products.SetStock(r.Context(), r.PathValue("id"), req.Size, *req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.OK(w, handler.Envelope{"product": p})
}

// UploadImage handles POST /products/{id}/images with a multipart "image"
// part. The content type is sniffed from the bytes, not trusted from the
// client.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	const op = "product.image"

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, op, "Image must not be larger than %d bytes", maxErr.Limit))
			return
		}
		handler.ErrorResponse(w, r, domain.Invalid(op, "Request must be multipart/form-data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		handler.ErrorResponse(w, r, domain.NewValidationError(op, "image", "image file is required"))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		handler.ErrorResponse(w, r, domain.Internal(err, op, "failed to read upload"))
		return
	}
	head = head[:n]

	p, err := h.products.UploadImage(r.Context(), r.PathValue("id"), service.ImageUpload{
		ContentType: http.DetectContentType(head),
		Size:        header.Size,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, handler.Envelope{"product": p})
}

// queryBool returns nil unless s parses as a boolean.
func queryBool(s string) *bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &b
}
