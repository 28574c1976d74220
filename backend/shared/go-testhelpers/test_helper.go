package testhelpers

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"os"
	"testing"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-middleware"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/require"
)

// TestHelper encapsulates what an integration test needs to talk to a
// running tenancy-service and its two databases.
type TestHelper struct {
	T          *testing.T
	Ctx        context.Context
	BaseURL    string
	IdentityDB *pgxpool.Pool
	TenancyDB  *pgxpool.Pool
	PrivateKey *rsa.PrivateKey

	*Fixtures
	AuditLogs repositories.AuditLogRepository
}

// NewTestHelper connects to both stores and loads the signing key. It skips
// the test when the environment is not configured.
func NewTestHelper(t *testing.T) *TestHelper {
	baseURL := os.Getenv("APP_URL")
	identityURL := os.Getenv("IDENTITY_DB_URL")
	tenancyURL := os.Getenv("TENANCY_DB_URL")
	keyB64 := os.Getenv("RSA_PRIVATE_KEY_BASE64")
	if baseURL == "" || identityURL == "" || tenancyURL == "" || keyB64 == "" {
		t.Skip("APP_URL, IDENTITY_DB_URL, TENANCY_DB_URL and RSA_PRIVATE_KEY_BASE64 are required")
	}

	ctx := context.Background()
	identityDB, err := pgxpool.Connect(ctx, identityURL)
	require.NoError(t, err, "Failed to connect to identity DB")
	tenancyDB, err := pgxpool.Connect(ctx, tenancyURL)
	require.NoError(t, err, "Failed to connect to tenancy DB")
	t.Cleanup(func() {
		identityDB.Close()
		tenancyDB.Close()
	})

	pemBytes, err := base64.StdEncoding.DecodeString(keyB64)
	require.NoError(t, err, "Failed to decode RSA private key")
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	require.NoError(t, err, "Failed to parse RSA private key")

	return &TestHelper{
		T:          t,
		Ctx:        ctx,
		BaseURL:    baseURL,
		IdentityDB: identityDB,
		TenancyDB:  tenancyDB,
		PrivateKey: privateKey,
		Fixtures: &Fixtures{
			T:            t,
			Principals:   repositories.NewPrincipalRepository(identityDB),
			Companies:    repositories.NewCompanyRepository(identityDB),
			Condominiums: repositories.NewCondominiumRepository(tenancyDB),
			Units:        repositories.NewUnitRepository(tenancyDB),
			Now:          func() time.Time { return time.Now().UTC() },
		},
		AuditLogs: repositories.NewAuditLogRepository(tenancyDB),
	}
}

// CreateJWT signs an access token for userID with the service's key.
func (h *TestHelper) CreateJWT(userID uuid.UUID, roles ...string) string {
	tok, err := middleware.IssueAccessToken(h.PrivateKey, userID, roles, time.Hour, time.Now())
	require.NoError(h.T, err)
	return tok
}
