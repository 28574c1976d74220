// go-repositories/principal_repository.go
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

const (
	ConstraintPrincipalEmail    = "principals_email_key"
	ConstraintPrincipalDocument = "principals_document_id_key"
)

// PrincipalRepository is the identity store contract. Lockout and password
// state are written through dedicated calls, never through UpdateIfVersion.
type PrincipalRepository interface {
	CreatePrincipal(ctx context.Context, p *models.Principal, passwordHash string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	FindByDocumentID(ctx context.Context, documentID string) (*models.Principal, error)
	ListAll(ctx context.Context) ([]*models.Principal, error)
	ListByCompanyIDs(ctx context.Context, companyIDs []uuid.UUID) ([]*models.Principal, error)
	ListByCondominiumID(ctx context.Context, condominiumID uuid.UUID) ([]*models.Principal, error)
	ListLockoutMismatches(ctx context.Context, now time.Time) ([]*models.Principal, error)
	ListDeactivatedWithRole(ctx context.Context, role models.Role) ([]*models.Principal, error)

	AddRole(ctx context.Context, id uuid.UUID, role models.Role) error
	HasRole(ctx context.Context, id uuid.UUID, role models.Role) (bool, error)
	SetLockout(ctx context.Context, id uuid.UUID, until *time.Time) error

	GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetEmailConfirmationToken(ctx context.Context, id uuid.UUID, tokenHash string) error
	ConfirmEmail(ctx context.Context, id uuid.UUID, tokenHash string) (bool, error)

	UpdateIfVersion(ctx context.Context, p *models.Principal, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Principal) error) error
}

type principalRepo struct {
	*BaseVersionedRepo[*models.Principal]
	db DB
}

func NewPrincipalRepository(db DB) PrincipalRepository {
	r := &principalRepo{db: db}
	selectStmt := baseSelectPrincipal() + " WHERE p.id=$1 GROUP BY p.id"
	r.BaseVersionedRepo = NewBaseRepo(db, selectStmt, r.scanPrincipal)
	return r
}

/* ---------- create ---------- */

func (r *principalRepo) CreatePrincipal(ctx context.Context, p *models.Principal, passwordHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO principals (
			id, email, display_name, phone_number, password_hash,
			company_id, condominium_id, unit_id,
			document_id, document_type, email_confirmed, lockout_end,
			created_at, created_by, row_version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,1)
	`,
		p.ID, p.Email, p.DisplayName, p.PhoneNumber, passwordHash,
		p.CompanyID, p.CondominiumID, p.UnitID,
		p.DocumentID, string(p.DocumentType), p.EmailConfirmed, p.LockoutEnd,
		p.CreatedAt, p.CreatedBy,
	)
	if err != nil {
		return err
	}
	for _, role := range p.Roles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO principal_roles (principal_id, role) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			p.ID, string(role),
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.RowVersion = 1
	return nil
}

/* ---------- reads ---------- */

func (r *principalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *principalRepo) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	row := r.db.QueryRow(ctx, baseSelectPrincipal()+" WHERE lower(p.email)=lower($1) GROUP BY p.id", email)
	return r.scanPrincipal(row)
}

func (r *principalRepo) FindByDocumentID(ctx context.Context, documentID string) (*models.Principal, error) {
	row := r.db.QueryRow(ctx, baseSelectPrincipal()+" WHERE p.document_id=$1 GROUP BY p.id", documentID)
	return r.scanPrincipal(row)
}

func (r *principalRepo) ListAll(ctx context.Context) ([]*models.Principal, error) {
	return r.list(ctx, " GROUP BY p.id ORDER BY p.display_name")
}

func (r *principalRepo) ListByCompanyIDs(ctx context.Context, companyIDs []uuid.UUID) ([]*models.Principal, error) {
	ids := idStrings(companyIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, " WHERE p.company_id = ANY($1::uuid[]) GROUP BY p.id ORDER BY p.display_name", ids)
}

func (r *principalRepo) ListByCondominiumID(ctx context.Context, condominiumID uuid.UUID) ([]*models.Principal, error) {
	return r.list(ctx, " WHERE p.condominium_id=$1 GROUP BY p.id ORDER BY p.display_name", condominiumID)
}

// ListLockoutMismatches finds principals whose lockout disagrees with their
// deactivation stamp.
func (r *principalRepo) ListLockoutMismatches(ctx context.Context, now time.Time) ([]*models.Principal, error) {
	return r.list(ctx, `
		WHERE (p.deactivated_at IS NOT NULL AND (p.lockout_end IS NULL OR p.lockout_end <= $1))
		   OR (p.deactivated_at IS NULL AND p.lockout_end > $1)
		GROUP BY p.id`, now)
}

func (r *principalRepo) ListDeactivatedWithRole(ctx context.Context, role models.Role) ([]*models.Principal, error) {
	return r.list(ctx, `
		WHERE p.deactivated_at IS NOT NULL
		  AND EXISTS (SELECT 1 FROM principal_roles x WHERE x.principal_id=p.id AND x.role=$1)
		GROUP BY p.id`, string(role))
}

func (r *principalRepo) list(ctx context.Context, tail string, args ...any) ([]*models.Principal, error) {
	rows, err := r.db.Query(ctx, baseSelectPrincipal()+tail, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, r.scanPrincipal)
}

/* ---------- roles & lockout ---------- */

func (r *principalRepo) AddRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO principal_roles (principal_id, role) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		id, string(role),
	)
	return err
}

func (r *principalRepo) HasRole(ctx context.Context, id uuid.UUID, role models.Role) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM principal_roles WHERE principal_id=$1 AND role=$2)`,
		id, string(role),
	).Scan(&ok)
	return ok, err
}

func (r *principalRepo) SetLockout(ctx context.Context, id uuid.UUID, until *time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE principals SET lockout_end=$1 WHERE id=$2`, until, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

/* ---------- credentials ---------- */

func (r *principalRepo) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, `SELECT password_hash FROM principals WHERE id=$1`, id).Scan(&hash)
	return hash, err
}

func (r *principalRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE principals SET password_hash=$1 WHERE id=$2`, hash, id)
	return err
}

func (r *principalRepo) SetEmailConfirmationToken(ctx context.Context, id uuid.UUID, tokenHash string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE principals SET email_confirmation_token_hash=$1 WHERE id=$2`, tokenHash, id)
	return err
}

// ConfirmEmail consumes the token; a second use finds nothing to match.
func (r *principalRepo) ConfirmEmail(ctx context.Context, id uuid.UUID, tokenHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE principals
		   SET email_confirmed=TRUE, email_confirmation_token_hash=NULL
		 WHERE id=$1 AND email_confirmation_token_hash=$2`, id, tokenHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

/* ---------- update ---------- */

func (r *principalRepo) UpdateIfVersion(ctx context.Context, p *models.Principal, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
		UPDATE principals SET
			email=$1, display_name=$2, phone_number=$3,
			company_id=$4, condominium_id=$5, unit_id=$6,
			document_id=$7, document_type=$8,
			updated_at=$9, updated_by=$10,
			deactivated_at=$11, deactivated_by=$12,
			row_version=row_version+1
		WHERE id=$13 AND row_version=$14`,
		p.Email, p.DisplayName, p.PhoneNumber,
		p.CompanyID, p.CondominiumID, p.UnitID,
		p.DocumentID, string(p.DocumentType),
		p.UpdatedAt, p.UpdatedBy,
		p.DeactivatedAt, p.DeactivatedBy,
		p.ID, expected,
	)
}

func (r *principalRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Principal) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

/* ---------- helpers ---------- */

func baseSelectPrincipal() string {
	return `
		SELECT p.id, p.email, p.display_name, p.phone_number,
		       COALESCE(array_agg(pr.role) FILTER (WHERE pr.role IS NOT NULL), '{}')::text[],
		       p.company_id, p.condominium_id, p.unit_id,
		       p.document_id, p.document_type, p.email_confirmed, p.lockout_end,
		       p.created_at, p.created_by, p.updated_at, p.updated_by,
		       p.deactivated_at, p.deactivated_by, p.row_version
		FROM principals p
		LEFT JOIN principal_roles pr ON pr.principal_id = p.id`
}

func (r *principalRepo) scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	var roles []string
	var docType string
	var companyID, condoID, unitID, createdBy, updatedBy, deactivatedBy pgtype.UUID
	var lockoutEnd, updatedAt, deactivatedAt pgtype.Timestamptz

	err := row.Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.PhoneNumber,
		&roles,
		&companyID, &condoID, &unitID,
		&p.DocumentID, &docType, &p.EmailConfirmed, &lockoutEnd,
		&p.CreatedAt, &createdBy, &updatedAt, &updatedBy,
		&deactivatedAt, &deactivatedBy, &p.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.DocumentType = models.DocumentType(docType)
	p.Roles = make([]models.Role, 0, len(roles))
	for _, s := range roles {
		p.Roles = append(p.Roles, models.Role(s))
	}
	p.CompanyID = uuidPtr(companyID)
	p.CondominiumID = uuidPtr(condoID)
	p.UnitID = uuidPtr(unitID)
	p.CreatedBy = uuidPtr(createdBy)
	p.UpdatedBy = uuidPtr(updatedBy)
	p.DeactivatedBy = uuidPtr(deactivatedBy)
	p.LockoutEnd = timePtr(lockoutEnd)
	p.UpdatedAt = timePtr(updatedAt)
	p.DeactivatedAt = timePtr(deactivatedAt)
	return &p, nil
}
