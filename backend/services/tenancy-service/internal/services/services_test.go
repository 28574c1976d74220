package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/notify"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-testhelpers"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	utils.SilenceLogger()
	utils.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// engine wires every service over in-memory stores with synchronous
// notifications, so tests can assert on sent mail right after a call.
type engine struct {
	stores *testhelpers.MemoryStores
	fx     *testhelpers.Fixtures
	sender *testhelpers.RecordingSender
	now    time.Time

	authz      *AuthzService
	assign     *AssignmentService
	lifecycle  *LifecycleService
	tenancy    *TenancyService
	account    *AccountService
	reconciler *ReconcilerService
	cleanup    *SignInCleanupService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	e := &engine{
		stores: testhelpers.NewMemoryStores(),
		sender: &testhelpers.RecordingSender{},
		now:    time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC),
	}
	e.fx = e.stores.Fixtures(t)
	e.fx.Now = e.clock

	d := Deps{
		Principals:   e.stores.Principals,
		Companies:    e.stores.Companies,
		Condominiums: e.stores.Condominiums,
		Units:        e.stores.Units,
		AuditLogs:    e.stores.AuditLogs,
		SignIns:      e.stores.SignIns,
		SignInPolicy: SignInPolicy{MaxAttempts: 3, Window: 5 * time.Minute, LockFor: 10 * time.Minute},
		Notifier:     notify.NewDispatcher(e.sender, false),
		AppURL:       "https://app.condoprime.test",
		Clock:        e.clock,
	}
	e.authz = NewAuthzService(d)
	e.assign = NewAssignmentService(d, e.authz)
	e.lifecycle = NewLifecycleService(d, e.authz)
	e.tenancy = NewTenancyService(d, e.authz)
	e.account = NewAccountService(d)
	e.reconciler = NewReconcilerService(d, e.lifecycle)
	e.cleanup = NewSignInCleanupService(d)
	return e
}

func (e *engine) clock() time.Time { return e.now }

// tick moves the clock forward so successive stamps differ.
func (e *engine) tick() {
	e.now = e.now.Add(time.Minute)
}

// tenant is a CompanyAdmin with one company and one condominium.
type tenant struct {
	admin   *models.Principal
	company *models.Company
	condo   *models.Condominium
}

func (e *engine) newTenant(ctx context.Context, name, condoName, registry string) tenant {
	admin := e.fx.CreatePrincipal(ctx, name+" Admin", models.RoleCompanyAdmin)
	company := e.fx.CreateCompany(ctx, name, admin.ID)
	condo := e.fx.CreateCondominium(ctx, company.ID, condoName, registry)
	return tenant{admin: admin, company: company, condo: condo}
}

func (e *engine) reload(ctx context.Context, p *models.Principal) *models.Principal {
	return e.fx.ReloadPrincipal(ctx, p.ID)
}

func staffFields() PrincipalFields {
	return PrincipalFields{
		Email:        testhelpers.UniqueEmail("staff"),
		DisplayName:  "Sam Staff",
		DocumentID:   testhelpers.UniquePassport(),
		DocumentType: models.DocumentTypePassport,
	}
}

func ownerFields(name string) PrincipalFields {
	return PrincipalFields{
		Email:        testhelpers.UniqueEmail("owner"),
		DisplayName:  name,
		DocumentID:   testhelpers.UniquePassport(),
		DocumentType: models.DocumentTypePassport,
		Password:     testhelpers.FixturePassword,
	}
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
}

func ptrID(id uuid.UUID) *uuid.UUID { return &id }
