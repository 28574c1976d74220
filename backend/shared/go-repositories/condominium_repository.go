// go-repositories/condominium_repository.go
package repositories

import (
	"context"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

const ConstraintCondominiumRegistry = "condominiums_company_registry_key"

/* ───────────── public interface ───────────── */

type CondominiumRepository interface {
	Create(ctx context.Context, c *models.Condominium) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Condominium, error)
	ListByCompanyIDs(ctx context.Context, companyIDs []uuid.UUID) ([]*models.Condominium, error)
	// ListByManagerID returns every condominium pointing at the manager,
	// soft-deleted rows included; callers decide which links are live.
	ListByManagerID(ctx context.Context, managerID uuid.UUID) ([]*models.Condominium, error)
	RegistryNumberExists(ctx context.Context, companyID uuid.UUID, value string, excludeID *uuid.UUID) (bool, error)

	UpdateIfVersion(ctx context.Context, c *models.Condominium, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Condominium) error) error
	// ClearManagerIf nulls the manager only while it still equals managerID.
	ClearManagerIf(ctx context.Context, id, managerID, actor uuid.UUID, at time.Time) (bool, error)
}

/* ───────────── implementation ───────────── */

type condominiumRepo struct {
	*BaseVersionedRepo[*models.Condominium]
	db DB
}

func NewCondominiumRepository(db DB) CondominiumRepository {
	r := &condominiumRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectCondominium()+" WHERE id=$1", r.scanCondominium)
	return r
}

/* ---------- create ---------- */

func (r *condominiumRepo) Create(ctx context.Context, c *models.Condominium) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO condominiums (
			id, company_id, manager_principal_id, name, address, city, zip_code,
			registry_number, is_active, created_at, created_by, row_version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1)
	`,
		c.ID, c.CompanyID, c.ManagerPrincipalID, c.Name, c.Address, c.City, c.ZipCode,
		c.RegistryNumber, c.IsActive, c.CreatedAt, c.CreatedBy,
	)
	if err == nil {
		c.RowVersion = 1
	}
	return err
}

/* ---------- reads ---------- */

func (r *condominiumRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Condominium, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *condominiumRepo) ListByCompanyIDs(ctx context.Context, companyIDs []uuid.UUID) ([]*models.Condominium, error) {
	ids := idStrings(companyIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		baseSelectCondominium()+" WHERE company_id = ANY($1::uuid[]) ORDER BY name", ids)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, r.scanCondominium)
}

func (r *condominiumRepo) ListByManagerID(ctx context.Context, managerID uuid.UUID) ([]*models.Condominium, error) {
	rows, err := r.db.Query(ctx,
		baseSelectCondominium()+" WHERE manager_principal_id=$1 ORDER BY name", managerID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, r.scanCondominium)
}

// RegistryNumberExists counts soft-deleted rows too so a restore can never
// produce a duplicate.
func (r *condominiumRepo) RegistryNumberExists(ctx context.Context, companyID uuid.UUID, value string, excludeID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM condominiums
			WHERE company_id=$1 AND registry_number=$2
			  AND ($3::uuid IS NULL OR id <> $3::uuid)
		)`, companyID, value, excludeID,
	).Scan(&exists)
	return exists, err
}

/* ---------- updates ---------- */

func (r *condominiumRepo) UpdateIfVersion(ctx context.Context, c *models.Condominium, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
		UPDATE condominiums SET
			manager_principal_id=$1, name=$2, address=$3, city=$4, zip_code=$5,
			registry_number=$6, is_active=$7,
			updated_at=$8, updated_by=$9, deleted_at=$10, deleted_by=$11,
			row_version=row_version+1
		WHERE id=$12 AND row_version=$13`,
		c.ManagerPrincipalID, c.Name, c.Address, c.City, c.ZipCode,
		c.RegistryNumber, c.IsActive,
		c.UpdatedAt, c.UpdatedBy, c.DeletedAt, c.DeletedBy,
		c.ID, expected,
	)
}

func (r *condominiumRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Condominium) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

func (r *condominiumRepo) ClearManagerIf(ctx context.Context, id, managerID, actor uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE condominiums SET
			manager_principal_id=NULL, updated_at=$1, updated_by=$2,
			row_version=row_version+1
		WHERE id=$3 AND manager_principal_id=$4`,
		at, actor, id, managerID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

/* ---------- helpers ---------- */

func baseSelectCondominium() string {
	return `
		SELECT id, company_id, manager_principal_id, name, address, city, zip_code,
		       registry_number, is_active,
		       created_at, created_by, updated_at, updated_by, deleted_at, deleted_by,
		       row_version
		FROM condominiums`
}

func (r *condominiumRepo) scanCondominium(row pgx.Row) (*models.Condominium, error) {
	var c models.Condominium
	var managerID, createdBy, updatedBy, deletedBy pgtype.UUID
	var updatedAt, deletedAt pgtype.Timestamptz

	err := row.Scan(
		&c.ID, &c.CompanyID, &managerID, &c.Name, &c.Address, &c.City, &c.ZipCode,
		&c.RegistryNumber, &c.IsActive,
		&c.CreatedAt, &createdBy, &updatedAt, &updatedBy, &deletedAt, &deletedBy,
		&c.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.ManagerPrincipalID = uuidPtr(managerID)
	c.CreatedBy = uuidPtr(createdBy)
	c.UpdatedAt = timePtr(updatedAt)
	c.UpdatedBy = uuidPtr(updatedBy)
	c.DeletedAt = timePtr(deletedAt)
	c.DeletedBy = uuidPtr(deletedBy)
	return &c, nil
}
