package services

import (
	"context"
	"testing"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-testhelpers"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *engine) company(ctx context.Context, t *testing.T, id uuid.UUID) *models.Company {
	t.Helper()
	c, err := e.stores.Companies.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func TestDeactivateRefusesAssignedManager(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)

	_, err = e.lifecycle.DeactivatePrincipal(ctx, acme.admin, m.ID)
	requireKind(t, err, utils.ErrAssignmentConflict)
	assert.Contains(t, err.Error(), "still assigned to Maple Court")

	after := e.reload(ctx, m)
	assert.Nil(t, after.DeactivatedAt)
	assert.False(t, after.IsLockedOut(e.now))
	assert.True(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).IsManagedBy(m.ID))

	_, err = e.assign.DismissManager(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)
	done, err := e.lifecycle.DeactivatePrincipal(ctx, acme.admin, m.ID)
	require.NoError(t, err)
	assert.True(t, done.IsDeactivated())
	assert.True(t, done.IsLockedOut(e.now))
	assert.Contains(t, e.stores.AuditLogs.Actions(m.ID), models.AuditDeactivate)
}

func TestDeactivateRefusesUnitOwner(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	unit := e.fx.CreateUnit(ctx, acme.condo.ID, "3B")
	owner, err := e.assign.CreateOwner(ctx, acme.admin, acme.condo.ID, unit.ID, ownerFields("Olga Owner"))
	require.NoError(t, err)

	_, err = e.lifecycle.DeactivatePrincipal(ctx, acme.admin, owner.ID)
	requireKind(t, err, utils.ErrAssignmentConflict)
	assert.Contains(t, err.Error(), "still owner of unit 3B in Maple Court")
	assert.Nil(t, e.reload(ctx, owner).DeactivatedAt)
}

func TestDeactivateSelf(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")

	_, err := e.lifecycle.DeactivatePrincipal(ctx, acme.admin, acme.admin.ID)
	requireKind(t, err, utils.ErrInvalidState)
}

func TestDeactivateOutsideScope(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	beta := e.newTenant(ctx, "Beta", "Birch House", "REG-9")
	staff, err := e.assign.CreateStaff(ctx, beta.admin, beta.condo.ID, staffFields())
	require.NoError(t, err)

	_, err = e.lifecycle.DeactivatePrincipal(ctx, acme.admin, staff.ID)
	requireKind(t, err, utils.ErrScopeViolation)
	assert.Nil(t, e.reload(ctx, staff).DeactivatedAt)
}

func TestDeactivateReactivateRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	second := e.fx.CreateCompany(ctx, "Acme North", acme.admin.ID)

	// Deleted on its own before the admin goes away; it must stay deleted.
	e.tick()
	retired := e.fx.CreateCompany(ctx, "Acme Old", acme.admin.ID)
	_, err := e.lifecycle.SoftDeleteCompany(ctx, acme.admin, retired.ID)
	require.NoError(t, err)

	e.tick()
	deactivated, err := e.lifecycle.DeactivatePrincipal(ctx, root, acme.admin.ID)
	require.NoError(t, err)
	require.NotNil(t, deactivated.DeactivatedAt)
	assert.Equal(t, root.ID, *deactivated.DeactivatedBy)
	require.NotNil(t, deactivated.LockoutEnd)
	assert.True(t, deactivated.LockoutEnd.Equal(models.IndefiniteLockout))

	for _, id := range []uuid.UUID{acme.company.ID, second.ID} {
		c := e.company(ctx, t, id)
		require.True(t, c.IsDeleted(), c.Name)
		assert.False(t, c.IsActive)
		assert.True(t, c.DeletedAt.Equal(*deactivated.DeactivatedAt))
		assert.Equal(t, root.ID, *c.DeletedBy)
	}

	_, err = e.account.SignIn(ctx, acme.admin.Email, testhelpers.FixturePassword)
	requireKind(t, err, utils.ErrUnauthenticated)
	assert.Equal(t, utils.ErrCodeLockedAccount, utils.CodeOf(err))

	e.tick()
	reactivated, err := e.lifecycle.ReactivatePrincipal(ctx, root, acme.admin.ID)
	require.NoError(t, err)
	assert.Nil(t, reactivated.DeactivatedAt)
	assert.Nil(t, reactivated.DeactivatedBy)
	assert.False(t, reactivated.IsLockedOut(e.now))

	for _, id := range []uuid.UUID{acme.company.ID, second.ID} {
		c := e.company(ctx, t, id)
		assert.False(t, c.IsDeleted(), c.Name)
		assert.True(t, c.IsActive)
	}
	assert.True(t, e.company(ctx, t, retired.ID).IsDeleted(), "independently deleted company stays deleted")

	_, err = e.account.SignIn(ctx, acme.admin.Email, testhelpers.FixturePassword)
	require.NoError(t, err)

	assert.Equal(t,
		[]models.AuditAction{models.AuditDeactivate, models.AuditReactivate},
		e.stores.AuditLogs.Actions(acme.admin.ID))
	assert.Equal(t,
		[]models.AuditAction{models.AuditSoftDelete, models.AuditRestore},
		e.stores.AuditLogs.Actions(second.ID))
}

func TestReactivateActivePrincipal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	staff := e.fx.CreatePrincipal(ctx, "Sam Staff", models.RoleCondominiumStaff)

	_, err := e.lifecycle.ReactivatePrincipal(ctx, root, staff.ID)
	requireKind(t, err, utils.ErrInvalidState)
}

func TestReactivateFinishesStuckLockout(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	staff := e.fx.CreatePrincipal(ctx, "Sam Staff", models.RoleCondominiumStaff)
	require.NoError(t, e.stores.Principals.SetLockout(ctx, staff.ID, utils.Ptr(models.IndefiniteLockout)))

	got, err := e.lifecycle.ReactivatePrincipal(ctx, root, staff.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLockedOut(e.now))
}

func TestDeactivateCascadePartialFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")

	e.stores.Faults.FailNext("companies.UpdateIfVersion", testhelpers.ErrInjected)
	_, err := e.lifecycle.DeactivatePrincipal(ctx, root, acme.admin.ID)
	requireKind(t, err, utils.ErrPartialCompletion)

	stuck := e.reload(ctx, acme.admin)
	assert.True(t, stuck.IsDeactivated(), "stamp comes first")
	assert.True(t, stuck.IsLockedOut(e.now), "lockout precedes the cascade")
	assert.False(t, e.company(ctx, t, acme.company.ID).IsDeleted())

	e.tick()
	_, err = e.lifecycle.DeactivatePrincipal(ctx, root, acme.admin.ID)
	require.NoError(t, err)
	c := e.company(ctx, t, acme.company.ID)
	require.True(t, c.IsDeleted())
	assert.True(t, c.DeletedAt.Equal(*stuck.DeactivatedAt), "cascade reuses the original stamp")
}

func TestDeactivateLockoutFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	staff := e.fx.CreatePrincipal(ctx, "Sam Staff", models.RoleCondominiumStaff)

	e.stores.Faults.FailNext("principals.SetLockout", testhelpers.ErrInjected)
	_, err := e.lifecycle.DeactivatePrincipal(ctx, root, staff.ID)
	requireKind(t, err, utils.ErrPartialCompletion)
	stuck := e.reload(ctx, staff)
	assert.True(t, stuck.IsDeactivated())
	assert.False(t, stuck.IsLockedOut(e.now))

	done, err := e.lifecycle.DeactivatePrincipal(ctx, root, staff.ID)
	require.NoError(t, err)
	assert.True(t, done.IsLockedOut(e.now))
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	unit := e.fx.CreateUnit(ctx, acme.condo.ID, "1A")

	t.Run("unit", func(t *testing.T) {
		deleted, err := e.lifecycle.SoftDeleteUnit(ctx, acme.admin, unit.ID)
		require.NoError(t, err)
		assert.True(t, deleted.IsDeleted())
		assert.False(t, deleted.IsActive)
		assert.Equal(t, acme.admin.ID, *deleted.DeletedBy)

		_, err = e.lifecycle.SoftDeleteUnit(ctx, acme.admin, unit.ID)
		requireKind(t, err, utils.ErrInvalidState)

		restored, err := e.lifecycle.RestoreUnit(ctx, acme.admin, unit.ID)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted())
		assert.True(t, restored.IsActive)

		_, err = e.lifecycle.RestoreUnit(ctx, acme.admin, unit.ID)
		requireKind(t, err, utils.ErrInvalidState)
	})

	t.Run("condominium", func(t *testing.T) {
		_, err := e.lifecycle.SoftDeleteCondominium(ctx, acme.admin, acme.condo.ID)
		require.NoError(t, err)
		assert.True(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).IsDeleted())

		_, err = e.lifecycle.RestoreCondominium(ctx, acme.admin, acme.condo.ID)
		require.NoError(t, err)
		assert.False(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).IsDeleted())
	})

	t.Run("manager may not delete its condominium", func(t *testing.T) {
		m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
		e.fx.LinkManager(ctx, acme.condo.ID, m.ID)
		_, err := e.lifecycle.SoftDeleteCondominium(ctx, m, acme.condo.ID)
		requireKind(t, err, utils.ErrScopeViolation)

		// Units are day-to-day work and stay open to the manager.
		_, err = e.lifecycle.SoftDeleteUnit(ctx, m, unit.ID)
		require.NoError(t, err)
	})

	t.Run("company outside scope", func(t *testing.T) {
		beta := e.newTenant(ctx, "Beta", "Birch House", "REG-9")
		_, err := e.lifecycle.SoftDeleteCompany(ctx, acme.admin, beta.company.ID)
		requireKind(t, err, utils.ErrScopeViolation)
		assert.False(t, e.company(ctx, t, beta.company.ID).IsDeleted())
	})

	assert.Equal(t,
		[]models.AuditAction{models.AuditSoftDelete, models.AuditRestore, models.AuditSoftDelete},
		e.stores.AuditLogs.Actions(unit.ID))
}

func (e *engine) liveManaged(ctx context.Context, t *testing.T, managerID uuid.UUID) []string {
	t.Helper()
	managed, err := e.stores.Condominiums.ListByManagerID(ctx, managerID)
	require.NoError(t, err)
	var names []string
	for _, c := range managed {
		if c.IsActive && !c.IsDeleted() {
			names = append(names, c.Name)
		}
	}
	return names
}

func (e *engine) liveOwned(ctx context.Context, t *testing.T, ownerID uuid.UUID) []string {
	t.Helper()
	held, err := e.stores.Units.ListByOwnerID(ctx, ownerID)
	require.NoError(t, err)
	var numbers []string
	for _, u := range held {
		if u.IsActive && !u.IsDeleted() {
			numbers = append(numbers, u.UnitNumber)
		}
	}
	return numbers
}

func TestRestoreCondominiumAfterManagerMoved(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	oak := e.fx.CreateCondominium(ctx, acme.company.ID, "Oak Row", "REG-2")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)

	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)
	_, err = e.lifecycle.SoftDeleteCondominium(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)

	_, err = e.assign.AssignManager(ctx, acme.admin, oak.ID, m.ID)
	require.NoError(t, err)
	assert.Nil(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).ManagerPrincipalID, "deleted condominium released on reassignment")

	restored, err := e.lifecycle.RestoreCondominium(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.ManagerPrincipalID)
	assert.True(t, e.fx.ReloadCondominium(ctx, oak.ID).IsManagedBy(m.ID))
	assert.Equal(t, []string{"Oak Row"}, e.liveManaged(ctx, t, m.ID))
}

func TestRestoreCondominiumDropsSecondManagerLink(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	oak := e.fx.CreateCondominium(ctx, acme.company.ID, "Oak Row", "REG-2")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)

	_, err := e.lifecycle.SoftDeleteCondominium(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)
	// Both rows point at the manager, as left behind by an older release.
	e.fx.LinkManager(ctx, acme.condo.ID, m.ID)
	e.fx.LinkManager(ctx, oak.ID, m.ID)

	restored, err := e.lifecycle.RestoreCondominium(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.ManagerPrincipalID)
	assert.Nil(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).ManagerPrincipalID)
	assert.Equal(t, []string{"Oak Row"}, e.liveManaged(ctx, t, m.ID))
	assert.Equal(t,
		[]models.AuditAction{models.AuditSoftDelete, models.AuditDismiss, models.AuditRestore},
		e.stores.AuditLogs.Actions(acme.condo.ID))
}

func TestRestoreCondominiumDropsDeactivatedManager(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)

	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)
	_, err = e.lifecycle.SoftDeleteCondominium(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)

	_, err = e.lifecycle.DeactivatePrincipal(ctx, root, m.ID)
	require.NoError(t, err, "a deleted condominium does not block deactivation")

	restored, err := e.lifecycle.RestoreCondominium(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.ManagerPrincipalID)
	assert.Nil(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).ManagerPrincipalID)
	assert.Empty(t, e.liveManaged(ctx, t, m.ID))
}

func TestReopenCondominiumManagerLink(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)

	setActive := func(active bool) *models.Condominium {
		c, err := e.tenancy.UpdateCondominium(ctx, acme.admin, acme.condo.ID, CondominiumPatch{IsActive: utils.Ptr(active)})
		require.NoError(t, err)
		return c
	}

	t.Run("active manager kept", func(t *testing.T) {
		setActive(false)
		reopened := setActive(true)
		assert.True(t, reopened.IsManagedBy(m.ID))
	})

	t.Run("deactivated manager dropped", func(t *testing.T) {
		setActive(false)
		_, err := e.lifecycle.DeactivatePrincipal(ctx, root, m.ID)
		require.NoError(t, err, "an inactive condominium does not block deactivation")

		reopened := setActive(true)
		assert.Nil(t, reopened.ManagerPrincipalID)
		assert.Nil(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).ManagerPrincipalID)
		assert.Empty(t, e.liveManaged(ctx, t, m.ID))
	})
}

func TestRestoreUnitAfterOwnerMoved(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	first := e.fx.CreateUnit(ctx, acme.condo.ID, "1A")
	second := e.fx.CreateUnit(ctx, acme.condo.ID, "2A")
	owner, err := e.assign.CreateOwner(ctx, acme.admin, acme.condo.ID, first.ID, ownerFields("Olga Owner"))
	require.NoError(t, err)

	_, err = e.lifecycle.SoftDeleteUnit(ctx, acme.admin, first.ID)
	require.NoError(t, err)
	_, err = e.assign.AssignOwnerToUnit(ctx, acme.admin, second.ID, owner.ID)
	require.NoError(t, err)
	assert.Nil(t, e.fx.ReloadUnit(ctx, first.ID).OwnerPrincipalID, "deleted unit released on reassignment")

	restored, err := e.lifecycle.RestoreUnit(ctx, acme.admin, first.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.OwnerPrincipalID)
	assert.True(t, e.fx.ReloadUnit(ctx, second.ID).IsOwnedBy(owner.ID))
	assert.Equal(t, []string{"2A"}, e.liveOwned(ctx, t, owner.ID))
	assert.True(t, utils.SameID(e.reload(ctx, owner).UnitID, second.ID))
}

func TestRestoreUnitDropsDeactivatedOwner(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	unit := e.fx.CreateUnit(ctx, acme.condo.ID, "1A")
	owner, err := e.assign.CreateOwner(ctx, acme.admin, acme.condo.ID, unit.ID, ownerFields("Olga Owner"))
	require.NoError(t, err)

	_, err = e.lifecycle.SoftDeleteUnit(ctx, acme.admin, unit.ID)
	require.NoError(t, err)
	_, err = e.lifecycle.DeactivatePrincipal(ctx, root, owner.ID)
	require.NoError(t, err, "a deleted unit does not block deactivation")

	restored, err := e.lifecycle.RestoreUnit(ctx, acme.admin, unit.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.OwnerPrincipalID)
	assert.Nil(t, e.fx.ReloadUnit(ctx, unit.ID).OwnerPrincipalID)
	assert.Nil(t, e.reload(ctx, owner).UnitID)
	assert.Empty(t, e.liveOwned(ctx, t, owner.ID))
}

func TestReopenUnitDropsSecondOwnerLink(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	first := e.fx.CreateUnit(ctx, acme.condo.ID, "1A")
	second := e.fx.CreateUnit(ctx, acme.condo.ID, "2A")
	owner, err := e.assign.CreateOwner(ctx, acme.admin, acme.condo.ID, second.ID, ownerFields("Olga Owner"))
	require.NoError(t, err)

	_, err = e.tenancy.UpdateUnit(ctx, acme.admin, first.ID, UnitPatch{IsActive: utils.Ptr(false)})
	require.NoError(t, err)
	e.fx.LinkOwner(ctx, first.ID, owner.ID)

	reopened, err := e.tenancy.UpdateUnit(ctx, acme.admin, first.ID, UnitPatch{IsActive: utils.Ptr(true)})
	require.NoError(t, err)
	assert.True(t, reopened.IsActive)
	assert.Nil(t, reopened.OwnerPrincipalID)
	assert.Equal(t, []string{"2A"}, e.liveOwned(ctx, t, owner.ID))
	assert.True(t, utils.SameID(e.reload(ctx, owner).UnitID, second.ID), "flag naming another unit is left alone")
}

func TestRestoreCompanyRefusedWhileOwnerDeactivated(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")

	_, err := e.lifecycle.DeactivatePrincipal(ctx, root, acme.admin.ID)
	require.NoError(t, err)
	require.True(t, e.company(ctx, t, acme.company.ID).IsDeleted())

	_, err = e.lifecycle.RestoreCompany(ctx, root, acme.company.ID)
	requireKind(t, err, utils.ErrInvalidState)
	assert.Contains(t, err.Error(), "administrator is deactivated")
	assert.True(t, e.company(ctx, t, acme.company.ID).IsDeleted())

	_, err = e.lifecycle.ReactivatePrincipal(ctx, root, acme.admin.ID)
	require.NoError(t, err)
	assert.False(t, e.company(ctx, t, acme.company.ID).IsDeleted())
}
