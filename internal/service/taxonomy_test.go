package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/agrimart/internal/domain"
	"github.com/dukerupert/agrimart/internal/memory"
)

func TestTaxonomyService_CreateAndList(t *testing.T) {
	store := memory.New()
	svc := NewTaxonomyService(store, store, time.Second, nil)
	ctx := context.Background()
	owner := &domain.User{ID: "owner-1", Role: domain.RoleOwner}

	seeds, err := svc.Create(ctx, owner, TaxonomyParams{Name: " Seeds ", Kind: "category"})
	require.NoError(t, err)
	assert.Equal(t, "Seeds", seeds.Name)
	assert.Equal(t, "owner-1", seeds.CreatedBy)

	_, err = svc.Create(ctx, owner, TaxonomyParams{Name: "Fertiliser", Kind: "Category"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, TaxonomyParams{Name: "seeds", Kind: "type"})
	require.NoError(t, err, "names are unique per kind only")

	_, err = svc.Create(ctx, owner, TaxonomyParams{Name: "SEEDS", Kind: "category"})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.True(t, domain.IsReason(err, domain.ReasonDuplicateName))

	_, err = svc.Create(ctx, owner, TaxonomyParams{Name: " ", Kind: "brand"})
	require.Error(t, err)
	fields := domain.GetValidationFields(err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "kind")

	listing, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, listing.All, 3)
	require.Len(t, listing.Categories, 2)
	assert.Equal(t, "Fertiliser", listing.Categories[0].Name)
	assert.Len(t, listing.Types, 1)

	listing, err = svc.List(ctx, "type")
	require.NoError(t, err)
	assert.Len(t, listing.All, 1)
	assert.Empty(t, listing.Categories)

	_, err = svc.List(ctx, "brand")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestTaxonomyService_InUseEntries(t *testing.T) {
	store := memory.New()
	svc := NewTaxonomyService(store, store, time.Second, nil)
	products := NewProductService(store, store, nil, time.Second, nil)
	ctx := context.Background()
	owner := &domain.User{ID: "owner-1", Role: domain.RoleOwner}

	tools, err := svc.Create(ctx, owner, TaxonomyParams{Name: "Tools", Kind: "category"})
	require.NoError(t, err)
	_, err = products.Create(ctx, owner, hoeParams())
	require.NoError(t, err)

	renamed := "Implements"
	_, err = svc.Update(ctx, tools.ID, &renamed, nil)
	assert.True(t, domain.IsReason(err, domain.ReasonInUse))

	recased := "TOOLS"
	note := "Hand and power tools"
	got, err := svc.Update(ctx, tools.ID, &recased, &note)
	require.NoError(t, err)
	assert.Equal(t, "TOOLS", got.Name)
	assert.Equal(t, note, got.Description)

	_, err = svc.Delete(ctx, tools.ID)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	blank := " "
	_, err = svc.Update(ctx, tools.ID, &blank, nil)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	unused, err := svc.Create(ctx, owner, TaxonomyParams{Name: "Irrigation", Kind: "category"})
	require.NoError(t, err)
	deleted, err := svc.Delete(ctx, unused.ID)
	require.NoError(t, err)
	assert.Equal(t, "Irrigation", deleted.Name)

	_, err = svc.Delete(ctx, unused.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
