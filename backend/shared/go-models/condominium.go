package models

import (
	"github.com/google/uuid"
)

// Condominium lives in the tenancy store. CompanyID and ManagerPrincipalID
// point into the identity store and are not enforced by any foreign key.
type Condominium struct {
	Versioned

	ID                 uuid.UUID  `json:"id"`
	CompanyID          uuid.UUID  `json:"company_id"`
	ManagerPrincipalID *uuid.UUID `json:"manager_principal_id,omitempty"`
	Name               string     `json:"name"`
	Address            string     `json:"address"`
	City               string     `json:"city"`
	ZipCode            string     `json:"zip_code"`
	RegistryNumber     string     `json:"registry_number"`
	IsActive           bool       `json:"is_active"`

	Audit
}

func (c *Condominium) GetID() string { return c.ID.String() }

// IsManagedBy reports whether id is the assigned manager.
func (c *Condominium) IsManagedBy(id uuid.UUID) bool {
	return c.ManagerPrincipalID != nil && *c.ManagerPrincipalID == id
}
