package models

import (
	"time"

	"github.com/google/uuid"
)

// IndefiniteLockout is the lockout end written for deactivated principals.
var IndefiniteLockout = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Principal is an identity held by the identity store. CompanyID,
// CondominiumID and UnitID are denormalized copies of links whose
// authoritative side lives in the tenancy store; they may dangle.
type Principal struct {
	Versioned

	ID             uuid.UUID    `json:"id"`
	Email          string       `json:"email"`
	DisplayName    string       `json:"display_name"`
	PhoneNumber    *string      `json:"phone_number,omitempty"`
	Roles          []Role       `json:"roles"`
	CompanyID      *uuid.UUID   `json:"company_id,omitempty"`
	CondominiumID  *uuid.UUID   `json:"condominium_id,omitempty"`
	UnitID         *uuid.UUID   `json:"unit_id,omitempty"`
	DocumentID     string       `json:"document_id"`
	DocumentType   DocumentType `json:"document_type"`
	EmailConfirmed bool         `json:"email_confirmed"`
	LockoutEnd     *time.Time   `json:"lockout_end,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	UpdatedBy     *uuid.UUID `json:"updated_by,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	DeactivatedBy *uuid.UUID `json:"deactivated_by,omitempty"`
}

func (p *Principal) GetID() string { return p.ID.String() }

func (p *Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p *Principal) IsDeactivated() bool { return p.DeactivatedAt != nil }

// IsLockedOut reports whether the identity store lockout is in force at now.
func (p *Principal) IsLockedOut(now time.Time) bool {
	return p.LockoutEnd != nil && p.LockoutEnd.After(now)
}

// LockoutConsistent reports whether the lockout agrees with the deactivation stamp.
func (p *Principal) LockoutConsistent(now time.Time) bool {
	return p.IsDeactivated() == p.IsLockedOut(now)
}

func (p *Principal) StampUpdated(actor uuid.UUID, at time.Time) {
	p.UpdatedAt = &at
	p.UpdatedBy = &actor
}
