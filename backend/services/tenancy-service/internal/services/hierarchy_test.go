package services

import (
	"context"
	"testing"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/metrics"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-testhelpers"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHierarchyResolution(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	h := NewHierarchy(e.stores.Principals, e.stores.Companies, e.stores.Condominiums, e.stores.Units)
	source := uuid.New()

	t.Run("unset link is not a miss", func(t *testing.T) {
		before := testutil.ToFloat64(metrics.CrossStoreMisses.WithLabelValues(LinkUnitOwner))
		name, err := h.PrincipalName(ctx, LinkUnitOwner, source, nil)
		require.NoError(t, err)
		assert.Equal(t, utils.UnassignedLabel, name)
		name, err = h.PrincipalName(ctx, LinkUnitOwner, source, ptrID(uuid.Nil))
		require.NoError(t, err)
		assert.Equal(t, utils.UnassignedLabel, name)
		assert.Equal(t, before, testutil.ToFloat64(metrics.CrossStoreMisses.WithLabelValues(LinkUnitOwner)))
	})

	t.Run("missing row is counted", func(t *testing.T) {
		before := testutil.ToFloat64(metrics.CrossStoreMisses.WithLabelValues(LinkCondominiumCompany))
		c, err := h.Company(ctx, LinkCondominiumCompany, source, ptrID(uuid.New()))
		require.NoError(t, err)
		assert.Nil(t, c)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.CrossStoreMisses.WithLabelValues(LinkCondominiumCompany)))
	})

	t.Run("soft-deleted row does not resolve", func(t *testing.T) {
		_, err := e.lifecycle.SoftDeleteCondominium(ctx, acme.admin, acme.condo.ID)
		require.NoError(t, err)
		name, err := h.CondominiumName(ctx, LinkUnitCondominium, source, &acme.condo.ID)
		require.NoError(t, err)
		assert.Equal(t, utils.UnknownLabel, name)
	})

	t.Run("deactivated principal still resolves", func(t *testing.T) {
		root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
		staff := e.fx.CreatePrincipal(ctx, "Sam Staff", models.RoleCondominiumStaff)
		_, err := e.lifecycle.DeactivatePrincipal(ctx, root, staff.ID)
		require.NoError(t, err)
		name, err := h.PrincipalName(ctx, LinkUnitOwner, source, &staff.ID)
		require.NoError(t, err)
		assert.Equal(t, "Sam Staff", name)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		e.stores.Faults.FailNext("companies.GetByID", testhelpers.ErrInjected)
		_, err := h.Company(ctx, LinkPrincipalCompany, source, &acme.company.ID)
		require.ErrorIs(t, err, testhelpers.ErrInjected)
	})
}
