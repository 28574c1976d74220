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

func TestResolveScope(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")

	t.Run("platform admin", func(t *testing.T) {
		admin := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
		scope, err := e.authz.ResolveScope(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, ScopePlatform, scope.Kind)
	})

	t.Run("company admin sees only live owned companies", func(t *testing.T) {
		second := e.fx.CreateCompany(ctx, "Acme North", acme.admin.ID)
		require.NoError(t, e.stores.Companies.UpdateWithRetry(ctx, second.ID, func(c *models.Company) error {
			c.DeletedAt = utils.Ptr(e.now)
			return nil
		}))
		scope, err := e.authz.ResolveScope(ctx, acme.admin)
		require.NoError(t, err)
		assert.Equal(t, ScopeCompany, scope.Kind)
		assert.Equal(t, []uuid.UUID{acme.company.ID}, scope.CompanyIDs)
	})

	t.Run("manager with one condominium", func(t *testing.T) {
		m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
		e.fx.LinkManager(ctx, acme.condo.ID, m.ID)
		scope, err := e.authz.ResolveScope(ctx, m)
		require.NoError(t, err)
		require.Equal(t, ScopeCondominium, scope.Kind)
		assert.Equal(t, acme.condo.ID, scope.Condominium.ID)
	})

	t.Run("manager without a condominium has no scope", func(t *testing.T) {
		m := e.fx.CreatePrincipal(ctx, "Idle Manager", models.RoleCondominiumManager)
		scope, err := e.authz.ResolveScope(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, ScopeNone, scope.Kind)
	})

	t.Run("manager of two condominiums has no scope", func(t *testing.T) {
		m := e.fx.CreatePrincipal(ctx, "Double Manager", models.RoleCondominiumManager)
		a := e.fx.CreateCondominium(ctx, acme.company.ID, "Oak Row", "REG-2")
		b := e.fx.CreateCondominium(ctx, acme.company.ID, "Pine Hill", "REG-3")
		e.fx.LinkManager(ctx, a.ID, m.ID)
		e.fx.LinkManager(ctx, b.ID, m.ID)
		scope, err := e.authz.ResolveScope(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, ScopeNone, scope.Kind)
	})

	t.Run("staff and owners are self scoped", func(t *testing.T) {
		for _, role := range []models.Role{models.RoleCondominiumStaff, models.RoleUnitOwner} {
			p := e.fx.CreatePrincipal(ctx, string(role), role)
			scope, err := e.authz.ResolveScope(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, ScopeSelf, scope.Kind, role)
		}
	})

	t.Run("first matching role wins", func(t *testing.T) {
		p := e.fx.CreatePrincipal(ctx, "Hybrid", models.RoleUnitOwner)
		require.NoError(t, e.stores.Principals.AddRole(ctx, p.ID, models.RoleCompanyAdmin))
		scope, err := e.authz.ResolveScope(ctx, e.reload(ctx, p))
		require.NoError(t, err)
		assert.Equal(t, ScopeCompany, scope.Kind)
		assert.Empty(t, scope.CompanyIDs)
	})

	t.Run("deactivated actor has no scope", func(t *testing.T) {
		p := e.fx.CreatePrincipal(ctx, "Gone", models.RolePlatformAdmin)
		p.DeactivatedAt = utils.Ptr(e.now)
		scope, err := e.authz.ResolveScope(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, ScopeNone, scope.Kind)
	})
}

func TestLoadActor(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.authz.LoadActor(ctx, uuid.Nil)
	requireKind(t, err, utils.ErrUnauthenticated)

	_, err = e.authz.LoadActor(ctx, uuid.New())
	requireKind(t, err, utils.ErrUnauthenticated)

	p := e.fx.CreatePrincipal(ctx, "Known", models.RoleUnitOwner)
	got, err := e.authz.LoadActor(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestCanOperateCondominium(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	other := e.newTenant(ctx, "Beta", "Birch House", "REG-9")

	platform := e.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	ps, err := e.authz.ResolveScope(ctx, platform)
	require.NoError(t, err)
	assert.False(t, e.authz.CanOperateCondominium(ps, acme.condo).Allowed, "platform has no operational scope")

	cs, err := e.authz.ResolveScope(ctx, acme.admin)
	require.NoError(t, err)
	assert.True(t, e.authz.CanOperateCondominium(cs, acme.condo).Allowed)
	denied := e.authz.CanOperateCondominium(cs, other.condo)
	assert.False(t, denied.Allowed)
	assert.Contains(t, denied.Reason, "Birch House")
	requireKind(t, denied.Err(), utils.ErrScopeViolation)

	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	e.fx.LinkManager(ctx, acme.condo.ID, m.ID)
	ms, err := e.authz.ResolveScope(ctx, m)
	require.NoError(t, err)
	assert.True(t, e.authz.CanOperateCondominium(ms, acme.condo).Allowed)
	assert.False(t, e.authz.CanOperateCondominium(ms, other.condo).Allowed)
	assert.False(t, e.authz.CanOperateCondominium(ms, &models.Condominium{}).Allowed, "unset condominium")
}

func TestCanAdministerCondominiumExcludesManagers(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	e.fx.LinkManager(ctx, acme.condo.ID, m.ID)

	ms, err := e.authz.ResolveScope(ctx, m)
	require.NoError(t, err)
	assert.False(t, e.authz.CanAdministerCondominium(ms, acme.company.ID).Allowed)

	cs, err := e.authz.ResolveScope(ctx, acme.admin)
	require.NoError(t, err)
	assert.True(t, e.authz.CanAdministerCondominium(cs, acme.company.ID).Allowed)
	assert.False(t, e.authz.CanAdministerCondominium(cs, uuid.New()).Allowed)
}

func TestCanOperateUnitWithDanglingCondominium(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	cs, err := e.authz.ResolveScope(ctx, acme.admin)
	require.NoError(t, err)

	unit := &models.Unit{ID: uuid.New(), CondominiumID: uuid.New(), UnitNumber: "9Z"}
	d, err := e.authz.CanOperateUnit(ctx, cs, unit)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "unknown condominium")
}

func TestCanAdministerPrincipal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	acme := e.newTenant(ctx, "Acme", "Maple Court", "REG-1")
	beta := e.newTenant(ctx, "Beta", "Birch House", "REG-9")

	staff, err := e.assign.CreateStaff(ctx, acme.admin, acme.condo.ID, staffFields())
	require.NoError(t, err)
	foreign, err := e.assign.CreateStaff(ctx, beta.admin, beta.condo.ID, staffFields())
	require.NoError(t, err)

	cs, err := e.authz.ResolveScope(ctx, acme.admin)
	require.NoError(t, err)

	cases := []struct {
		name   string
		target *models.Principal
		allow  bool
	}{
		{"own staff", staff, true},
		{"other company staff", foreign, false},
		{"self", acme.admin, false},
		{"peer admin", beta.admin, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := e.authz.CanAdministerPrincipal(ctx, cs, tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.allow, d.Allowed, d.Reason)
		})
	}

	t.Run("falls back to the condominium when the company link is stale", func(t *testing.T) {
		stale := e.reload(ctx, staff)
		stale.CompanyID = utils.Ptr(uuid.New())
		d, err := e.authz.CanAdministerPrincipal(ctx, cs, stale)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("manager administers staff of its condominium only", func(t *testing.T) {
		m := e.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
		e.fx.LinkManager(ctx, acme.condo.ID, m.ID)
		ms, err := e.authz.ResolveScope(ctx, m)
		require.NoError(t, err)

		d, err := e.authz.CanAdministerPrincipal(ctx, ms, staff)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		d, err = e.authz.CanAdministerPrincipal(ctx, ms, foreign)
		require.NoError(t, err)
		assert.False(t, d.Allowed)

		d, err = e.authz.CanAdministerPrincipal(ctx, ms, acme.admin)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("self may view but not administer", func(t *testing.T) {
		self, err := e.authz.ResolveScope(ctx, staff)
		require.NoError(t, err)
		d, err := e.authz.CanViewPrincipal(ctx, self, staff)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		d, err = e.authz.CanAdministerPrincipal(ctx, self, staff)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})
}
