// backend/shared/go-models/audit_log.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreate     AuditAction = "CREATE"
	AuditUpdate     AuditAction = "UPDATE"
	AuditSoftDelete AuditAction = "SOFT_DELETE"
	AuditRestore    AuditAction = "RESTORE"
	AuditDeactivate AuditAction = "DEACTIVATE"
	AuditReactivate AuditAction = "REACTIVATE"
	AuditAssign     AuditAction = "ASSIGN"
	AuditDismiss    AuditAction = "DISMISS"
)

type AuditTargetType string

const (
	TargetPrincipal   AuditTargetType = "PRINCIPAL"
	TargetCompany     AuditTargetType = "COMPANY"
	TargetCondominium AuditTargetType = "CONDOMINIUM"
	TargetUnit        AuditTargetType = "UNIT"
)

type AuditLog struct {
	ID         uuid.UUID        `json:"id"`
	ActorID    uuid.UUID        `json:"actor_id"`
	Action     AuditAction      `json:"action"`
	TargetID   uuid.UUID        `json:"target_id"`
	TargetType AuditTargetType  `json:"target_type"`
	Details    *json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
