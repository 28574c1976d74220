package controllers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/dtos"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/notify"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/services"
	"github.com/condoprime/mono-repo/backend/shared/go-middleware"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-testhelpers"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var signingKey *rsa.PrivateKey

func TestMain(m *testing.M) {
	utils.SilenceLogger()
	utils.PasswordCost = bcrypt.MinCost
	var err error
	signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type server struct {
	t      *testing.T
	fx     *testhelpers.Fixtures
	router *mux.Router
}

func newServer(t *testing.T) *server {
	stores := testhelpers.NewMemoryStores()
	deps := services.Deps{
		Principals:   stores.Principals,
		Companies:    stores.Companies,
		Condominiums: stores.Condominiums,
		Units:        stores.Units,
		AuditLogs:    stores.AuditLogs,
		SignIns:      stores.SignIns,
		Notifier:     notify.NewDispatcher(&testhelpers.RecordingSender{}, false),
		AppURL:       "https://app.condoprime.test",
	}
	authz := services.NewAuthzService(deps)
	lifecycle := services.NewLifecycleService(deps, authz)
	account := NewAccountController(services.NewAccountService(deps), authz, TokenSigner{PrivateKey: signingKey, TTL: time.Hour})
	tenancy := NewTenancyController(services.NewTenancyService(deps, authz), authz)
	assign := NewAssignmentController(services.NewAssignmentService(deps, authz), authz)
	life := NewLifecycleController(lifecycle, services.NewReconcilerService(deps, lifecycle), authz)

	r := mux.NewRouter()
	r.HandleFunc("/sign-in", account.SignInHandler).Methods(http.MethodPost)
	secured := r.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(&signingKey.PublicKey))
	secured.HandleFunc("/me", account.MeHandler).Methods(http.MethodGet)
	secured.HandleFunc("/companies", tenancy.ListCompaniesHandler).Methods(http.MethodGet)
	secured.HandleFunc("/companies/{id}", tenancy.UpdateCompanyHandler).Methods(http.MethodPatch)
	secured.HandleFunc("/condominiums", tenancy.CreateCondominiumHandler).Methods(http.MethodPost)
	secured.HandleFunc("/audit/{type}/{id}", tenancy.ListAuditTrailHandler).Methods(http.MethodGet)
	secured.HandleFunc("/assignments/manager", assign.AssignManagerHandler).Methods(http.MethodPost)
	secured.HandleFunc("/principals/{id}/deactivate", life.DeactivatePrincipalHandler).Methods(http.MethodPost)
	admin := secured.NewRoute().Subrouter()
	admin.Use(middleware.RequireAnyRole(string(models.RolePlatformAdmin)))
	admin.HandleFunc("/reconcile", life.ReconcileHandler).Methods(http.MethodPost)

	return &server{t: t, fx: stores.Fixtures(t), router: r}
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *server) token(p *models.Principal) string {
	s.t.Helper()
	tok, err := middleware.IssueAccessToken(signingKey, p.ID, roleNames(p.Roles), time.Hour, time.Now())
	require.NoError(s.t, err)
	return tok
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var out utils.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSignInIssuesUsableToken(t *testing.T) {
	s := newServer(t)
	owner := s.fx.CreatePrincipal(context.Background(), "Olga Owner", models.RoleUnitOwner)

	rec := s.do(http.MethodPost, "/sign-in", "", dtos.SignInRequest{Email: owner.Email, Password: testhelpers.FixturePassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp dtos.SignInResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	me := s.do(http.MethodGet, "/me", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	assert.Contains(t, me.Body.String(), `"scope":"self"`)

	bad := s.do(http.MethodPost, "/sign-in", "", dtos.SignInRequest{Email: owner.Email, Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
	assert.Equal(t, utils.ErrCodeInvalidCredentials, decodeError(t, bad).Code)
}

func TestSignInThrottledOverHTTP(t *testing.T) {
	s := newServer(t)
	owner := s.fx.CreatePrincipal(context.Background(), "Olga Owner", models.RoleUnitOwner)

	for i := 0; i < services.DefaultSignInPolicy.MaxAttempts; i++ {
		rec := s.do(http.MethodPost, "/sign-in", "", dtos.SignInRequest{Email: owner.Email, Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(http.MethodPost, "/sign-in", "", dtos.SignInRequest{Email: owner.Email, Password: testhelpers.FixturePassword})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, utils.ErrCodeRateLimitExceeded, decodeError(t, rec).Code)
}

func TestRequestDecoding(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/sign-in", "", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, utils.ErrCodeInvalidPayload, decodeError(t, rec).Code)

	rec = s.do(http.MethodPost, "/sign-in", "", dtos.SignInRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, utils.ErrCodeValidation, body.Code)
	assert.Equal(t, map[string]any{"Email": "email", "Password": "required"}, body.Details)
}

func TestSecuredRoutes(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)

	rec := s.do(http.MethodGet, "/companies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, utils.ErrCodeUnauthorized, decodeError(t, rec).Code)

	// A valid token for a principal the store does not know.
	ghost := &models.Principal{ID: uuid.New(), Roles: []models.Role{models.RoleCompanyAdmin}}
	rec = s.do(http.MethodGet, "/companies", s.token(ghost), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	staff := s.fx.CreatePrincipal(ctx, "Sam Staff", models.RoleCondominiumStaff)
	rec = s.do(http.MethodPost, "/reconcile", s.token(staff), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	root := s.fx.CreatePrincipal(ctx, "Root", models.RolePlatformAdmin)
	rec = s.do(http.MethodPost, "/reconcile", s.token(root), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"lockouts_applied":0,"lockouts_cleared":0,"cascades_finished":0}`, rec.Body.String())

	rec = s.do(http.MethodPatch, "/companies/not-a-uuid", s.token(root), map[string]string{"name": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/audit/building/"+root.ID.String(), s.token(root), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivateAssignedManagerOverHTTP(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	admin := s.fx.CreatePrincipal(ctx, "Ada Admin", models.RoleCompanyAdmin)
	company := s.fx.CreateCompany(ctx, "Acme", admin.ID)
	manager := s.fx.CreatePrincipal(ctx, "Mia Manager", models.RoleCondominiumManager)
	adminToken := s.token(admin)

	rec := s.do(http.MethodPost, "/condominiums", adminToken, dtos.CreateCondominiumRequest{
		CompanyID:      company.ID,
		Name:           "Maple Court",
		Address:        "Rua do Ácer 12",
		City:           "Porto",
		ZipCode:        "4000-123",
		RegistryNumber: "PT-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var condo models.Condominium
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &condo))

	rec = s.do(http.MethodPost, "/assignments/manager", adminToken, dtos.AssignManagerRequest{
		CondominiumID: condo.ID,
		ManagerID:     manager.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/principals/"+manager.ID.String()+"/deactivate", adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, utils.ErrCodeAssignmentConflict, body.Code)
	assert.Equal(t, "Cannot deactivate: still assigned to Maple Court", body.Message)

	rec = s.do(http.MethodGet, "/audit/condominium/"+condo.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var trail []models.AuditLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditAssign, trail[1].Action)
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthController(failingPinger{}).HealthCheckHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"OK"`))

	rec = httptest.NewRecorder()
	NewHealthController(failingPinger{err: errors.New("tenancy store: down")}).HealthCheckHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
