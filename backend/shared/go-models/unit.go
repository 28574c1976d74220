// go-models/unit.go
package models

import (
	"github.com/google/uuid"
)

// Unit is an ownable space inside a condominium.
type Unit struct {
	Versioned

	ID               uuid.UUID  `json:"id"`
	CondominiumID    uuid.UUID  `json:"condominium_id"`
	OwnerPrincipalID *uuid.UUID `json:"owner_principal_id,omitempty"`
	UnitNumber       string     `json:"unit_number"`
	Floor            string     `json:"floor,omitempty"`
	IsActive         bool       `json:"is_active"`

	Audit
}

func (u *Unit) GetID() string { return u.ID.String() }

func (u *Unit) IsOwnedBy(id uuid.UUID) bool {
	return u.OwnerPrincipalID != nil && *u.OwnerPrincipalID == id
}
