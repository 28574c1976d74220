package models

import (
	"github.com/google/uuid"
)

// Company lives in the identity store next to the CompanyAdmin that owns it.
type Company struct {
	Versioned

	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	OwnerPrincipalID uuid.UUID `json:"owner_principal_id"`
	ContactEmail     string    `json:"contact_email"`
	IsActive         bool      `json:"is_active"`

	Audit
}

func (c *Company) GetID() string { return c.ID.String() }
