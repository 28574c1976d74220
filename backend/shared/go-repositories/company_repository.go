// go-repositories/company_repository.go
package repositories

import (
	"context"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// CompanyRepository reads and writes companies in the identity store.
// GetByID returns soft-deleted rows too; callers decide what deleted means.
type CompanyRepository interface {
	Create(ctx context.Context, c *models.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	ListByOwnerID(ctx context.Context, ownerID uuid.UUID, includeDeleted bool) ([]*models.Company, error)
	ListAll(ctx context.Context) ([]*models.Company, error)
	UpdateIfVersion(ctx context.Context, c *models.Company, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Company) error) error
}

type companyRepo struct {
	*BaseVersionedRepo[*models.Company]
	db DB
}

func NewCompanyRepository(db DB) CompanyRepository {
	r := &companyRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectCompany()+" WHERE id=$1", r.scanCompany)
	return r
}

func (r *companyRepo) Create(ctx context.Context, c *models.Company) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO companies (
			id, name, owner_principal_id, contact_email, is_active,
			created_at, created_by, row_version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,1)
	`, c.ID, c.Name, c.OwnerPrincipalID, c.ContactEmail, c.IsActive, c.CreatedAt, c.CreatedBy)
	if err == nil {
		c.RowVersion = 1
	}
	return err
}

func (r *companyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *companyRepo) ListByOwnerID(ctx context.Context, ownerID uuid.UUID, includeDeleted bool) ([]*models.Company, error) {
	q := baseSelectCompany() + " WHERE owner_principal_id=$1"
	if !includeDeleted {
		q += " AND deleted_at IS NULL"
	}
	rows, err := r.db.Query(ctx, q+" ORDER BY name", ownerID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, r.scanCompany)
}

func (r *companyRepo) ListAll(ctx context.Context) ([]*models.Company, error) {
	rows, err := r.db.Query(ctx, baseSelectCompany()+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	return scanAll(rows, r.scanCompany)
}

func (r *companyRepo) UpdateIfVersion(ctx context.Context, c *models.Company, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
		UPDATE companies SET
			name=$1, contact_email=$2, is_active=$3,
			updated_at=$4, updated_by=$5, deleted_at=$6, deleted_by=$7,
			row_version=row_version+1
		WHERE id=$8 AND row_version=$9`,
		c.Name, c.ContactEmail, c.IsActive,
		c.UpdatedAt, c.UpdatedBy, c.DeletedAt, c.DeletedBy,
		c.ID, expected,
	)
}

func (r *companyRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Company) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

func baseSelectCompany() string {
	return `
		SELECT id, name, owner_principal_id, contact_email, is_active,
		       created_at, created_by, updated_at, updated_by, deleted_at, deleted_by,
		       row_version
		FROM companies`
}

func (r *companyRepo) scanCompany(row pgx.Row) (*models.Company, error) {
	var c models.Company
	var createdBy, updatedBy, deletedBy pgtype.UUID
	var updatedAt, deletedAt pgtype.Timestamptz

	err := row.Scan(
		&c.ID, &c.Name, &c.OwnerPrincipalID, &c.ContactEmail, &c.IsActive,
		&c.CreatedAt, &createdBy, &updatedAt, &updatedBy, &deletedAt, &deletedBy,
		&c.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.CreatedBy = uuidPtr(createdBy)
	c.UpdatedAt = timePtr(updatedAt)
	c.UpdatedBy = uuidPtr(updatedBy)
	c.DeletedAt = timePtr(deletedAt)
	c.DeletedBy = uuidPtr(deletedBy)
	return &c, nil
}
