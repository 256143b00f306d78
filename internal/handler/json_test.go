package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/domain"
)

type addRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

func TestJSON_AddsSuccess(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, http.StatusCreated, Envelope{"count": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["count"])
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
		code   string
	}{
		{name: "valid", body: `{"productId":"p1","size":"1kg","quantity":2}`},
		{name: "empty body", body: ``, code: domain.EINVALID},
		{name: "malformed", body: `{"productId":`, code: domain.EINVALID},
		{name: "missing fields", body: `{"quantity":0}`, code: domain.EINVALID, fields: []string{"productId", "size", "quantity"}},
		{name: "wrong type", body: `{"productId":"p1","size":"1kg","quantity":"two"}`, code: domain.EINVALID, fields: []string{"quantity"}},
		{name: "unknown field", body: `{"productId":"p1","size":"1kg","quantity":1,"price":1}`, code: domain.EINVALID, fields: []string{"price"}},
		{name: "trailing object", body: `{"productId":"p1","size":"1kg","quantity":1}{}`, code: domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/cart/add", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst addRequest
			err := Decode(rec, req, "cart.add", &dst)

			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, addRequest{ProductID: "p1", Size: "1kg", Quantity: 2}, dst)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
			fields := domain.GetValidationFields(err)
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}
