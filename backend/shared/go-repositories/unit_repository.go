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

const ConstraintUnitNumber = "units_condominium_unit_number_key"

/* ───────────── public interface ───────────── */

type UnitRepository interface {
	Create(ctx context.Context, u *models.Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error)
	ListByCondominiumID(ctx context.Context, condoID uuid.UUID) ([]*models.Unit, error)
	// ListByOwnerID includes soft-deleted units.
	ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Unit, error)
	UnitNumberExists(ctx context.Context, condoID uuid.UUID, value string, excludeID *uuid.UUID) (bool, error)

	UpdateIfVersion(ctx context.Context, u *models.Unit, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Unit) error) error
	// ClearOwnerIf nulls the owner only while it still equals ownerID.
	ClearOwnerIf(ctx context.Context, id, ownerID, actor uuid.UUID, at time.Time) (bool, error)
}

/* ───────────── implementation ───────────── */

type unitRepo struct {
	*BaseVersionedRepo[*models.Unit]
	db DB
}

func NewUnitRepository(db DB) UnitRepository {
	r := &unitRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectUnit()+" WHERE id=$1", r.scanUnit)
	return r
}

/* ---------- create ---------- */

func (r *unitRepo) Create(ctx context.Context, u *models.Unit) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO units (
			id, condominium_id, owner_principal_id, unit_number, floor,
			is_active, created_at, created_by, row_version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)
	`, u.ID, u.CondominiumID, u.OwnerPrincipalID, u.UnitNumber, u.Floor, u.IsActive, u.CreatedAt, u.CreatedBy)
	if err == nil {
		u.RowVersion = 1
	}
	return err
}

/* ---------- reads ---------- */

func (r *unitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Unit, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *unitRepo) ListByCondominiumID(ctx context.Context, condoID uuid.UUID) ([]*models.Unit, error) {
	rows, err := r.db.Query(ctx, baseSelectUnit()+" WHERE condominium_id=$1 ORDER BY unit_number", condoID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, r.scanUnit)
}

func (r *unitRepo) ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Unit, error) {
	rows, err := r.db.Query(ctx,
		baseSelectUnit()+" WHERE owner_principal_id=$1 ORDER BY unit_number", ownerID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, r.scanUnit)
}

func (r *unitRepo) UnitNumberExists(ctx context.Context, condoID uuid.UUID, value string, excludeID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM units
			WHERE condominium_id=$1 AND unit_number=$2
			  AND ($3::uuid IS NULL OR id <> $3::uuid)
		)`, condoID, value, excludeID,
	).Scan(&exists)
	return exists, err
}

/* ---------- updates ---------- */

func (r *unitRepo) UpdateIfVersion(ctx context.Context, u *models.Unit, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
		UPDATE units SET
			owner_principal_id=$1, unit_number=$2, floor=$3, is_active=$4,
			updated_at=$5, updated_by=$6, deleted_at=$7, deleted_by=$8,
			row_version=row_version+1
		WHERE id=$9 AND row_version=$10`,
		u.OwnerPrincipalID, u.UnitNumber, u.Floor, u.IsActive,
		u.UpdatedAt, u.UpdatedBy, u.DeletedAt, u.DeletedBy,
		u.ID, expected,
	)
}

func (r *unitRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Unit) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

func (r *unitRepo) ClearOwnerIf(ctx context.Context, id, ownerID, actor uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE units SET
			owner_principal_id=NULL, updated_at=$1, updated_by=$2,
			row_version=row_version+1
		WHERE id=$3 AND owner_principal_id=$4`,
		at, actor, id, ownerID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

/* ---------- helpers ---------- */

func baseSelectUnit() string {
	return `
		SELECT id, condominium_id, owner_principal_id, unit_number, floor, is_active,
		       created_at, created_by, updated_at, updated_by, deleted_at, deleted_by,
		       row_version
		FROM units`
}

func (r *unitRepo) scanUnit(row pgx.Row) (*models.Unit, error) {
	var u models.Unit
	var ownerID, createdBy, updatedBy, deletedBy pgtype.UUID
	var updatedAt, deletedAt pgtype.Timestamptz

	err := row.Scan(
		&u.ID, &u.CondominiumID, &ownerID, &u.UnitNumber, &u.Floor, &u.IsActive,
		&u.CreatedAt, &createdBy, &updatedAt, &updatedBy, &deletedAt, &deletedBy,
		&u.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.OwnerPrincipalID = uuidPtr(ownerID)
	u.CreatedBy = uuidPtr(createdBy)
	u.UpdatedAt = timePtr(updatedAt)
	u.UpdatedBy = uuidPtr(updatedBy)
	u.DeletedAt = timePtr(deletedAt)
	u.DeletedBy = uuidPtr(deletedBy)
	return &u, nil
}
