// backend/shared/go-testhelpers/data.go

package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// FixturePassword is the password of every principal created by Fixtures.
const FixturePassword = "Passw0rd!"

var (
	uniqueSeq atomic.Int64

	hashOnce   sync.Once
	cachedHash string
)

func fixtureHash() string {
	hashOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		cachedHash = string(b)
	})
	return cachedHash
}

// UniqueEmail generates a unique email for testing.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@condoprime.test", prefix, time.Now().UnixNano(), uniqueSeq.Add(1))
}

// UniquePassport generates a unique, well-formed passport number.
func UniquePassport() string {
	return fmt.Sprintf("P%08d", uniqueSeq.Add(1)%100000000)
}

// UniquePhone generates a unique E.164 number for testing.
func UniquePhone() string {
	return fmt.Sprintf("+35191%07d", uniqueSeq.Add(1)%10000000)
}

// Fixtures persists ready-made hierarchy rows through any repository
// implementation, in memory or Postgres.
type Fixtures struct {
	T            *testing.T
	Principals   repositories.PrincipalRepository
	Companies    repositories.CompanyRepository
	Condominiums repositories.CondominiumRepository
	Units        repositories.UnitRepository
	Now          func() time.Time
}

func (s *MemoryStores) Fixtures(t *testing.T) *Fixtures {
	return &Fixtures{
		T:            t,
		Principals:   s.Principals,
		Companies:    s.Companies,
		Condominiums: s.Condominiums,
		Units:        s.Units,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreatePrincipal persists a confirmed principal holding role.
func (f *Fixtures) CreatePrincipal(ctx context.Context, name string, role models.Role) *models.Principal {
	p := &models.Principal{
		ID:             uuid.New(),
		Email:          UniqueEmail(strings.ReplaceAll(strings.ToLower(name), " ", ".")),
		DisplayName:    name,
		Roles:          []models.Role{role},
		DocumentID:     UniquePassport(),
		DocumentType:   models.DocumentTypePassport,
		EmailConfirmed: true,
		CreatedAt:      f.Now(),
	}
	require.NoError(f.T, f.Principals.CreatePrincipal(ctx, p, fixtureHash()), "create principal %s", name)
	return f.ReloadPrincipal(ctx, p.ID)
}

func (f *Fixtures) ReloadPrincipal(ctx context.Context, id uuid.UUID) *models.Principal {
	p, err := f.Principals.GetByID(ctx, id)
	require.NoError(f.T, err)
	require.NotNil(f.T, p, "principal %s not found", id)
	return p
}

// CreateCompany persists an active company owned by owner.
func (f *Fixtures) CreateCompany(ctx context.Context, name string, owner uuid.UUID) *models.Company {
	c := &models.Company{
		ID:               uuid.New(),
		Name:             name,
		OwnerPrincipalID: owner,
		ContactEmail:     UniqueEmail("contact"),
		IsActive:         true,
		Audit:            models.Audit{CreatedAt: f.Now(), CreatedBy: &owner},
	}
	require.NoError(f.T, f.Companies.Create(ctx, c))
	return c
}

// CreateCondominium persists an active, unmanaged condominium.
func (f *Fixtures) CreateCondominium(ctx context.Context, companyID uuid.UUID, name, registry string) *models.Condominium {
	c := &models.Condominium{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Name:           name,
		Address:        "Rua das Flores 1",
		City:           "Lisboa",
		ZipCode:        "1000-001",
		RegistryNumber: registry,
		IsActive:       true,
		Audit:          models.Audit{CreatedAt: f.Now()},
	}
	require.NoError(f.T, f.Condominiums.Create(ctx, c))
	return c
}

func (f *Fixtures) ReloadCondominium(ctx context.Context, id uuid.UUID) *models.Condominium {
	c, err := f.Condominiums.GetByID(ctx, id)
	require.NoError(f.T, err)
	require.NotNil(f.T, c, "condominium %s not found", id)
	return c
}

// CreateUnit persists an active, unowned unit.
func (f *Fixtures) CreateUnit(ctx context.Context, condoID uuid.UUID, number string) *models.Unit {
	u := &models.Unit{
		ID:            uuid.New(),
		CondominiumID: condoID,
		UnitNumber:    number,
		IsActive:      true,
		Audit:         models.Audit{CreatedAt: f.Now()},
	}
	require.NoError(f.T, f.Units.Create(ctx, u))
	return u
}

func (f *Fixtures) ReloadUnit(ctx context.Context, id uuid.UUID) *models.Unit {
	u, err := f.Units.GetByID(ctx, id)
	require.NoError(f.T, err)
	require.NotNil(f.T, u, "unit %s not found", id)
	return u
}

// LinkManager sets the manager link directly, skipping the assignment engine.
func (f *Fixtures) LinkManager(ctx context.Context, condoID, managerID uuid.UUID) {
	require.NoError(f.T, f.Condominiums.UpdateWithRetry(ctx, condoID, func(c *models.Condominium) error {
		c.ManagerPrincipalID = &managerID
		return nil
	}))
}

// LinkOwner sets the owner link directly, skipping the assignment engine.
func (f *Fixtures) LinkOwner(ctx context.Context, unitID, ownerID uuid.UUID) {
	require.NoError(f.T, f.Units.UpdateWithRetry(ctx, unitID, func(u *models.Unit) error {
		u.OwnerPrincipalID = &ownerID
		return nil
	}))
}
