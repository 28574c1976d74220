package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit holds the create/update/soft-delete stamps shared by tenancy entities.
type Audit struct {
	CreatedAt time.Time  `json:"created_at"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *uuid.UUID `json:"deleted_by,omitempty"`
}

func (a *Audit) StampUpdated(actor uuid.UUID, at time.Time) {
	a.UpdatedAt = &at
	a.UpdatedBy = &actor
}

func (a *Audit) IsDeleted() bool { return a.DeletedAt != nil }
