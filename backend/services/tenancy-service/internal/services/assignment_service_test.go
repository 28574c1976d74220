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

func TestAssignManagerMovesManager(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	oak := e.fx.CreateCondominium(ctx, acme.company.ID, "Oak Row", "REG-2")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)

	got, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsManagedBy(m.ID))
	assert.Equal(t, acme.company.ID, *e.reload(ctx, m).CompanyID, "manager joins the company")

	e.stores.Condominiums.Writes = nil
	_, err = e.assign.AssignManager(ctx, acme.admin, oak.ID, m.ID)
	require.NoError(t, err)

	assert.False(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).IsManagedBy(m.ID))
	assert.True(t, e.fx.ReloadCondominium(ctx, oak.ID).IsManagedBy(m.ID))

	// The old link is cleared before the new one is written.
	writes := e.stores.Condominiums.Writes
	require.Len(t, writes, 2)
	assert.Equal(t, acme.condo.ID, writes[0].CondominiumID)
	assert.Nil(t, writes[0].ManagerID)
	assert.Equal(t, oak.ID, writes[1].CondominiumID)
	assert.Equal(t, m.ID, *writes[1].ManagerID)

	assert.Equal(t, []models.AuditAction{models.AuditAssign, models.AuditDismiss}, e.stores.AuditLogs.Actions(acme.condo.ID))
	assert.Equal(t, []models.AuditAction{models.AuditAssign}, e.stores.AuditLogs.Actions(oak.ID))
}

func TestAssignManagerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)

	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)
	sent := len(e.sender.Sent())

	got, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsManagedBy(m.ID))
	assert.Len(t, e.sender.Sent(), sent, "no notifications for a no-op")
	assert.Equal(t, []models.AuditAction{models.AuditAssign}, e.stores.AuditLogs.Actions(acme.condo.ID))
}

func TestAssignManagerDisplacesPrevious(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	first := e.fx.CreatePrincipal(ctx, "First Manager", models.RoleCondominiumManager)
	second := e.fx.CreatePrincipal(ctx, "Second Manager", models.RoleCondominiumManager)

	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, first.ID)
	require.NoError(t, err)
	_, err = e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, second.ID)
	require.NoError(t, err)

	assert.True(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).IsManagedBy(second.ID))
	assert.Contains(t, e.sender.Recipients(), first.Email, "displaced manager is told")
}

func TestAssignManagerSweepsConcurrentAssignment(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	oak := e.fx.CreateCondominium(ctx, acme.company.ID, "Oak Row", "REG-2")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)

	// A racing writer left the manager on both condominiums.
	e.fx.LinkManager(ctx, acme.condo.ID, m.ID)
	e.fx.LinkManager(ctx, oak.ID, m.ID)

	_, err := e.assign.AssignManager(ctx, acme.admin, oak.ID, m.ID)
	require.NoError(t, err)
	managed, err := e.stores.Condominiums.ListByManagerID(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, managed, 1)
	assert.Equal(t, oak.ID, managed[0].ID)
}

func TestAssignManagerRejections(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	beta := e.newTenant(ctx, "Beta", "Birch House", "REG-9")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	staff := e.fx.CreatePrincipal(ctx, "Sam Staff", models.RoleCondominiumStaff)
	root := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)

	cases := []struct {
		name    string
		actor   *models.Principal
		condoID uuid.UUID
		manager uuid.UUID
		kind    error
	}{
		{"no condominium", acme.admin, uuid.Nil, m.ID, utils.ErrInvalidState},
		{"no manager", acme.admin, acme.condo.ID, uuid.Nil, utils.ErrInvalidState},
		{"unknown condominium", acme.admin, uuid.New(), m.ID, utils.ErrNotFound},
		{"other company", acme.admin, beta.condo.ID, m.ID, utils.ErrScopeViolation},
		{"platform admin", root, acme.condo.ID, m.ID, utils.ErrScopeViolation},
		{"not a manager", acme.admin, acme.condo.ID, staff.ID, utils.ErrInvalidState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.assign.AssignManager(ctx, tc.actor, tc.condoID, tc.manager)
			requireKind(t, err, tc.kind)
		})
	}

	t.Run("manager of another company", func(t *testing.T) {
		_, err := e.assign.AssignManager(ctx, beta.admin, beta.condo.ID, m.ID)
		require.NoError(t, err)
		_, err = e.assign.DismissManager(ctx, beta.admin, beta.condo.ID)
		require.NoError(t, err)

		_, err = e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
		requireKind(t, err, utils.ErrScopeViolation)
		assert.Nil(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).ManagerPrincipalID)
	})

	t.Run("inactive condominium", func(t *testing.T) {
		closed := e.fx.CreateCondominium(ctx, acme.company.ID, "Closed Court", "REG-4")
		_, err := e.tenancy.UpdateCondominium(ctx, acme.admin, closed.ID, CondominiumPatch{IsActive: utils.Ptr(false)})
		require.NoError(t, err)
		fresh := e.fx.CreatePrincipal(ctx, "Fresh Manager", models.RoleCondominiumManager)
		_, err = e.assign.AssignManager(ctx, acme.admin, closed.ID, fresh.ID)
		requireKind(t, err, utils.ErrInvalidState)
	})
}

func TestDismissManager(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")

	res, err := e.assign.DismissManager(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)
	assert.False(t, res.Unlinked)
	assert.Equal(t, "Nothing to dismiss: Maple Court has no manager", res.Message)
	assert.Empty(t, e.stores.AuditLogs.Actions(acme.condo.ID))

	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	_, err = e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)

	res, err = e.assign.DismissManager(ctx, acme.admin, acme.condo.ID)
	require.NoError(t, err)
	assert.True(t, res.Unlinked)
	assert.Nil(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).ManagerPrincipalID)

	_, err = e.assign.DismissManager(ctx, acme.admin, uuid.Nil)
	requireKind(t, err, utils.ErrInvalidState)
}

func TestCreateStaffScoping(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	oak := e.fx.CreateCondominium(ctx, acme.company.ID, "Oak Row", "REG-2")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	require.NoError(t, err)

	t.Run("company admin must pick a condominium", func(t *testing.T) {
		_, err := e.assign.CreateStaff(ctx, acme.admin, uuid.Nil, staffFields())
		requireKind(t, err, utils.ErrValidation)
	})

	t.Run("manager defaults to its condominium", func(t *testing.T) {
		staff, err := e.assign.CreateStaff(ctx, m, uuid.Nil, staffFields())
		require.NoError(t, err)
		assert.Equal(t, acme.condo.ID, *staff.CondominiumID)
		assert.Equal(t, acme.company.ID, *staff.CompanyID)
		assert.True(t, staff.HasRole(models.RoleCondominiumStaff))
	})

	t.Run("manager cannot pick another condominium", func(t *testing.T) {
		_, err := e.assign.CreateStaff(ctx, m, oak.ID, staffFields())
		requireKind(t, err, utils.ErrScopeViolation)
	})

	t.Run("staff cannot create users", func(t *testing.T) {
		staff := e.fx.CreatePrincipal(ctx, "Plain Staff", models.RoleCondominiumStaff)
		_, err := e.assign.CreateStaff(ctx, staff, acme.condo.ID, staffFields())
		requireKind(t, err, utils.ErrScopeViolation)
	})

	t.Run("welcome mail carries a confirmation link", func(t *testing.T) {
		fields := staffFields()
		_, err := e.assign.CreateStaff(ctx, acme.admin, oak.ID, fields)
		require.NoError(t, err)
		sent := e.sender.Sent()
		last := sent[len(sent)-1]
		assert.Equal(t, utils.NormalizeEmail(fields.Email), last.To)
		assert.Contains(t, last.Body, "https://app.condoprime.test/confirm-email?principal_id=")
	})
}

func TestCreatePrincipalDuplicates(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	first := staffFields()
	_, err := e.assign.CreateStaff(ctx, acme.admin, acme.condo.ID, first)
	require.NoError(t, err)

	dupEmail := staffFields()
	dupEmail.Email = first.Email
	_, err = e.assign.CreateStaff(ctx, acme.admin, acme.condo.ID, dupEmail)
	requireKind(t, err, utils.ErrAssignmentConflict)
	assert.Equal(t, utils.ErrCodeDuplicateIdentity, utils.CodeOf(err))

	dupDoc := staffFields()
	dupDoc.DocumentID = first.DocumentID
	_, err = e.assign.CreateStaff(ctx, acme.admin, acme.condo.ID, dupDoc)
	requireKind(t, err, utils.ErrAssignmentConflict)
	assert.Equal(t, utils.ErrCodeDuplicateDocument, utils.CodeOf(err))

	bad := staffFields()
	bad.Email = "not-an-email"
	_, err = e.assign.CreateStaff(ctx, acme.admin, acme.condo.ID, bad)
	requireKind(t, err, utils.ErrValidation)
}

func TestCreateManagerDefaultsToOnlyCompany(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")

	m, err := e.assign.CreateManager(ctx, acme.admin, uuid.Nil, staffFields())
	require.NoError(t, err)
	assert.True(t, m.HasRole(models.RoleCondominiumManager))
	assert.Equal(t, acme.company.ID, *m.CompanyID)
	assert.Nil(t, m.CondominiumID)

	e.fx.CreateCompany(ctx, "Acme North", acme.admin.ID)
	_, err = e.assign.CreateManager(ctx, acme.admin, uuid.Nil, staffFields())
	requireKind(t, err, utils.ErrValidation)
}

func TestOwnerAssignment(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	u1 := e.fx.CreateUnit(ctx, acme.condo.ID, "1A")
	u2 := e.fx.CreateUnit(ctx, acme.condo.ID, "2A")

	owner, err := e.assign.CreateOwner(ctx, acme.admin, uuid.Nil, u1.ID, ownerFields("Olga Owner"))
	require.NoError(t, err)
	assert.Equal(t, u1.ID, *owner.UnitID)
	assert.Equal(t, acme.condo.ID, *owner.CondominiumID)
	assert.True(t, e.fx.ReloadUnit(ctx, u1.ID).IsOwnedBy(owner.ID))

	t.Run("moving an owner releases the old unit", func(t *testing.T) {
		_, err := e.assign.AssignOwnerToUnit(ctx, acme.admin, u2.ID, owner.ID)
		require.NoError(t, err)
		assert.Nil(t, e.fx.ReloadUnit(ctx, u1.ID).OwnerPrincipalID)
		assert.True(t, e.fx.ReloadUnit(ctx, u2.ID).IsOwnedBy(owner.ID))
		assert.Equal(t, u2.ID, *e.reload(ctx, owner).UnitID)
	})

	t.Run("replacing an owner clears the previous flag", func(t *testing.T) {
		next, err := e.assign.CreateOwner(ctx, acme.admin, acme.condo.ID, uuid.Nil, ownerFields("Nina Next"))
		require.NoError(t, err)
		_, err = e.assign.AssignOwnerToUnit(ctx, acme.admin, u2.ID, next.ID)
		require.NoError(t, err)
		assert.Nil(t, e.reload(ctx, owner).UnitID)
		assert.Equal(t, u2.ID, *e.reload(ctx, next).UnitID)
	})

	t.Run("repeat assignment is a no-op", func(t *testing.T) {
		before := len(e.stores.AuditLogs.Actions(u2.ID))
		unit := e.fx.ReloadUnit(ctx, u2.ID)
		_, err := e.assign.AssignOwnerToUnit(ctx, acme.admin, u2.ID, *unit.OwnerPrincipalID)
		require.NoError(t, err)
		assert.Len(t, e.stores.AuditLogs.Actions(u2.ID), before)
	})

	t.Run("unit and condominium must agree", func(t *testing.T) {
		oak := e.fx.CreateCondominium(ctx, acme.company.ID, "Oak Row", "REG-2")
		_, err := e.assign.CreateOwner(ctx, acme.admin, oak.ID, u1.ID, ownerFields("Wrong Place"))
		requireKind(t, err, utils.ErrValidation)
	})

	t.Run("unassign", func(t *testing.T) {
		res, err := e.assign.UnassignOwner(ctx, acme.admin, u2.ID)
		require.NoError(t, err)
		assert.True(t, res.Unlinked)
		assert.Nil(t, e.fx.ReloadUnit(ctx, u2.ID).OwnerPrincipalID)

		res, err = e.assign.UnassignOwner(ctx, acme.admin, u2.ID)
		require.NoError(t, err)
		assert.False(t, res.Unlinked)
	})

	t.Run("staff cannot own units", func(t *testing.T) {
		staff := e.fx.CreatePrincipal(ctx, "Sam Staff", models.RoleCondominiumStaff)
		_, err := e.assign.AssignOwnerToUnit(ctx, acme.admin, u1.ID, staff.ID)
		requireKind(t, err, utils.ErrInvalidState)
	})
}

func TestUnassignOwnerToleratesMissingPrincipal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	unit := e.fx.CreateUnit(ctx, acme.condo.ID, "1A")
	owner, err := e.assign.CreateOwner(ctx, acme.admin, uuid.Nil, unit.ID, ownerFields("Olga Owner"))
	require.NoError(t, err)

	e.stores.Principals.Delete(owner.ID)
	res, err := e.assign.UnassignOwner(ctx, acme.admin, unit.ID)
	require.NoError(t, err)
	assert.True(t, res.Unlinked)
	assert.Nil(t, e.fx.ReloadUnit(ctx, unit.ID).OwnerPrincipalID)
}

func TestAssignmentStoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)

	e.stores.Faults.FailNext("condominiums.UpdateIfVersion", testhelpers.ErrInjected)
	_, err := e.assign.AssignManager(ctx, acme.admin, acme.condo.ID, m.ID)
	requireKind(t, err, utils.ErrInternal)
	assert.Nil(t, e.fx.ReloadCondominium(ctx, acme.condo.ID).ManagerPrincipalID)
}
