package services

import (
	"context"
	"testing"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	admin := e.fx.CreatePrincipal(ctx, "Ada Admin", models.RoleCompanyAdmin)
	company := e.fx.CreateCompany(ctx, "Acme Condominiums", admin.ID)

	maple, err := e.tenancy.CreateCondominium(ctx, admin, CondominiumInput{
		Name:           "Maple Court",
		Address:        "Rua do Ácer 12",
		City:           "Porto",
		ZipCode:        "4000-123",
		RegistryNumber: "PT-001",
	})
	require.NoError(t, err)
	assert.Equal(t, company.ID, maple.CompanyID)

	manager := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	assert.Nil(t, manager.CompanyID)

	maple, err = e.assign.AssignManager(ctx, admin, maple.ID, manager.ID)
	require.NoError(t, err)
	assert.True(t, maple.IsManagedBy(manager.ID))
	manager = e.reload(ctx, manager)
	require.NotNil(t, manager.CompanyID)
	assert.Equal(t, company.ID, *manager.CompanyID)

	staff, err := e.assign.CreateStaff(ctx, manager, uuid.Nil, staffFields())
	require.NoError(t, err)
	assert.Equal(t, maple.ID, *staff.CondominiumID)
	assert.Contains(t, e.sender.Recipients(), staff.Email)

	_, err = e.lifecycle.DeactivatePrincipal(ctx, admin, manager.ID)
	requireKind(t, err, utils.ErrAssignmentConflict)
	assert.Equal(t, "Cannot deactivate: still assigned to Maple Court", err.Error())

	res, err := e.assign.DismissManager(ctx, admin, maple.ID)
	require.NoError(t, err)
	assert.True(t, res.Unlinked)
	assert.Nil(t, e.fx.ReloadCondominium(ctx, maple.ID).ManagerPrincipalID)

	// Without a condominium the manager has no scope left.
	_, err = e.assign.CreateStaff(ctx, e.reload(ctx, manager), uuid.Nil, staffFields())
	requireKind(t, err, utils.ErrScopeViolation)

	deactivated, err := e.lifecycle.DeactivatePrincipal(ctx, admin, manager.ID)
	require.NoError(t, err)
	assert.True(t, deactivated.IsDeactivated())
	require.NotNil(t, deactivated.LockoutEnd)
	assert.True(t, deactivated.LockoutEnd.Equal(models.IndefiniteLockout))
	assert.True(t, deactivated.LockoutConsistent(e.now))

	assert.Equal(t,
		[]models.AuditAction{models.AuditCreate, models.AuditAssign, models.AuditDismiss},
		e.stores.AuditLogs.Actions(maple.ID))
}
