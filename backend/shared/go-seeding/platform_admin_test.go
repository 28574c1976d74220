package seeding

import (
	"context"
	"testing"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-testhelpers"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedPlatformAdmin(t *testing.T) {
	utils.SilenceLogger()
	utils.PasswordCost = bcrypt.MinCost
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	repo := testhelpers.NewMemoryPrincipalRepo(&testhelpers.Faults{})

	require.NoError(t, SeedPlatformAdmin(ctx, repo, "Root@CondoPrime.test", "correct-horse", now))

	p, err := repo.GetByID(ctx, PlatformAdminID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []models.Role{models.RolePlatformAdmin}, p.Roles)
	assert.Equal(t, "root@condoprime.test", p.Email)
	assert.True(t, p.EmailConfirmed)
	hash, err := repo.GetPasswordHash(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, utils.CheckPasswordHash("correct-horse", hash))

	t.Run("reseeding is a no-op", func(t *testing.T) {
		require.NoError(t, SeedPlatformAdmin(ctx, repo, "other@condoprime.test", "another-pass", now))
		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("short password is refused", func(t *testing.T) {
		fresh := testhelpers.NewMemoryPrincipalRepo(&testhelpers.Faults{})
		require.Error(t, SeedPlatformAdmin(ctx, fresh, "root@condoprime.test", "short", now))
	})
}
