package seeding

import (
	"context"
	"fmt"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
)

// PlatformAdminID is fixed so reseeding against an existing store is a no-op.
var PlatformAdminID = uuid.MustParse("11111111-2222-3333-4444-555555555555")

// SeedPlatformAdmin creates the first PlatformAdmin unless a principal with
// the seed id or email already exists. The account is created confirmed.
func SeedPlatformAdmin(ctx context.Context, repo repositories.PrincipalRepository, email, password string, now time.Time) error {
	existing, err := repo.GetByID(ctx, PlatformAdminID)
	if err != nil {
		return fmt.Errorf("error checking for existing platform admin by ID: %w", err)
	}
	if existing == nil {
		existing, err = repo.FindByEmail(ctx, utils.NormalizeEmail(email))
		if err != nil {
			return fmt.Errorf("error checking for existing platform admin by email: %w", err)
		}
	}
	if existing != nil {
		utils.Logger.Infof("Platform admin already exists (ID=%s); skipping seed.", existing.ID)
		return nil
	}

	if len(password) < utils.MinPasswordLength {
		return fmt.Errorf("platform admin password must be at least %d characters", utils.MinPasswordLength)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to bcrypt-hash platform admin password: %w", err)
	}

	admin := &models.Principal{
		ID:             PlatformAdminID,
		Email:          utils.NormalizeEmail(email),
		DisplayName:    "Platform Administrator",
		Roles:          []models.Role{models.RolePlatformAdmin},
		DocumentID:     "SEED-PLATFORM-ADMIN",
		DocumentType:   models.DocumentTypePassport,
		EmailConfirmed: true,
		CreatedAt:      now,
	}
	if err := repo.CreatePrincipal(ctx, admin, hash); err != nil {
		return fmt.Errorf("failed to insert platform admin: %w", err)
	}

	utils.Logger.Infof("Successfully seeded platform admin (ID=%s, email=%s).", admin.ID, admin.Email)
	return nil
}
