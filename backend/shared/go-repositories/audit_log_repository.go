// backend/shared/go-repositories/audit_log_repository.go
package repositories

import (
	"context"
	"encoding/json"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByTarget(ctx context.Context, targetID uuid.UUID) ([]*models.AuditLog, error)
}

type auditLogRepo struct {
	db DB
}

func NewAuditLogRepository(db DB) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	q := `
        INSERT INTO audit_logs (
            id, actor_id, action, target_id, target_type, details, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.db.Exec(ctx, q,
		entry.ID,
		entry.ActorID,
		string(entry.Action),
		entry.TargetID,
		string(entry.TargetType),
		entry.Details,
		entry.CreatedAt,
	)
	return err
}

func (r *auditLogRepo) ListByTarget(ctx context.Context, targetID uuid.UUID) ([]*models.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, actor_id, action, target_id, target_type, details, created_at
		FROM audit_logs WHERE target_id=$1 ORDER BY created_at, id`, targetID)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, scanAuditLog)
}

func scanAuditLog(row pgx.Row) (*models.AuditLog, error) {
	var e models.AuditLog
	var action, targetType string
	var details []byte
	if err := row.Scan(&e.ID, &e.ActorID, &action, &e.TargetID, &targetType, &details, &e.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	e.Action = models.AuditAction(action)
	e.TargetType = models.AuditTargetType(targetType)
	if len(details) > 0 {
		raw := make([]byte, len(details))
		copy(raw, details)
		msg := json.RawMessage(raw)
		e.Details = &msg
	}
	return &e, nil
}
