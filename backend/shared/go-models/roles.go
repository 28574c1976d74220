package models

import "fmt"

// Role is a role tag held by a Principal in the identity store.
type Role string

const (
	RolePlatformAdmin      Role = "PLATFORM_ADMIN"
	RoleCompanyAdmin       Role = "COMPANY_ADMIN"
	RoleCondominiumManager Role = "CONDOMINIUM_MANAGER"
	RoleCondominiumStaff   Role = "CONDOMINIUM_STAFF"
	RoleUnitOwner          Role = "UNIT_OWNER"
)

// AllRoles lists the roles in scope-resolution order.
var AllRoles = []Role{
	RolePlatformAdmin,
	RoleCompanyAdmin,
	RoleCondominiumManager,
	RoleCondominiumStaff,
	RoleUnitOwner,
}

func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts the stored/claimed string form to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// DocumentType identifies the kind of identity document a Principal registered with.
type DocumentType string

const (
	DocumentTypeCitizenCard DocumentType = "CC"
	DocumentTypeTaxNumber   DocumentType = "NIF"
	DocumentTypePassport    DocumentType = "PASSPORT"
)
