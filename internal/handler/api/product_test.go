package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/memory"
	"github.com/dukerupert/agrimart/internal/service"
	"github.com/dukerupert/agrimart/internal/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func uploadRequest(t *testing.T, productID, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if content != nil {
		part, err := mw.CreateFormFile(field, "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/products/"+productID+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.SetPathValue("id", productID)
	return req
}

func TestProductHandler_UploadImage(t *testing.T) {
	store := memory.New()
	files, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	h := NewProductHandler(service.NewProductService(store, store, files, time.Second, nil))

	sizes, err := domain.NewSizeTable([]string{"1L"}, map[string]decimal.Decimal{"1L": decimal.NewFromInt(8)}, nil)
	require.NoError(t, err)
	p := &domain.Product{Title: "Neem oil", Sizes: sizes, InStock: true}
	require.NoError(t, store.CreateProduct(context.Background(), p))

	tests := []struct {
		name    string
		id      string
		field   string
		content []byte
		status  int
	}{
		{"png accepted", p.ID, "image", pngHeader, http.StatusCreated},
		{"text rejected", p.ID, "image", []byte("just some notes about neem"), http.StatusBadRequest},
		{"missing part", p.ID, "image", nil, http.StatusBadRequest},
		{"wrong field name", p.ID, "photo", pngHeader, http.StatusBadRequest},
		{"unknown product", "missing", "image", pngHeader, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.UploadImage(rec, uploadRequest(t, tt.id, tt.field, tt.content))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	stored, err := store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, stored.Images, 1)
	assert.Contains(t, stored.Images[0], "/uploads/")
}

func TestProductHandler_UploadImage_NotMultipart(t *testing.T) {
	h := NewProductHandler(service.NewProductService(memory.New(), nil, nil, time.Second, nil))

	req := httptest.NewRequest(http.MethodPost, "/products/x/images", bytes.NewBufferString(`{"image":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.UploadImage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
}

func TestOrderFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    domain.OrderFilter
		wantErr bool
	}{
		{"empty", "", domain.OrderFilter{}, false},
		{"status and paging", "status=Shipped&page=2&limit=5", domain.OrderFilter{Status: domain.OrderStatusShipped, Page: 2, Limit: 5}, false},
		{"payment status", "paymentStatus=paid", domain.OrderFilter{PaymentStatus: domain.PaymentStatusPaid}, false},
		{"malformed paging ignored", "page=abc", domain.OrderFilter{}, false},
		{"unknown status", "status=lost", domain.OrderFilter{}, true},
		{"unknown payment status", "paymentStatus=maybe", domain.OrderFilter{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orderFilter(httptest.NewRequest(http.MethodGet, "/orders?"+tt.query, nil))
			if tt.wantErr {
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryBool(t *testing.T) {
	assert.Nil(t, queryBool(""))
	assert.Nil(t, queryBool("yes please"))
	require.NotNil(t, queryBool("true"))
	assert.True(t, *queryBool("true"))
	assert.False(t, *queryBool("0"))
}
