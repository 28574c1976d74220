package dtos

import (
	"github.com/google/uuid"
)

/* ---------- companies ---------- */

type CreateCompanyRequest struct {
	Name         string    `json:"name"          validate:"required,max=200"`
	ContactEmail string    `json:"contact_email" validate:"omitempty,email"`
	OwnerID      uuid.UUID `json:"owner_id"`
}

type UpdateCompanyRequest struct {
	Name         *string `json:"name,omitempty"          validate:"omitempty,min=1,max=200"`
	ContactEmail *string `json:"contact_email,omitempty" validate:"omitempty,email"`
}

/* ---------- condominiums ---------- */

type CreateCondominiumRequest struct {
	CompanyID      uuid.UUID `json:"company_id"`
	Name           string    `json:"name"            validate:"required,max=200"`
	Address        string    `json:"address"         validate:"required,max=300"`
	City           string    `json:"city"            validate:"required,max=100"`
	ZipCode        string    `json:"zip_code"        validate:"required,max=16"`
	RegistryNumber string    `json:"registry_number" validate:"required,max=64"`
}

type UpdateCondominiumRequest struct {
	Name           *string `json:"name,omitempty"            validate:"omitempty,min=1,max=200"`
	Address        *string `json:"address,omitempty"         validate:"omitempty,min=1,max=300"`
	City           *string `json:"city,omitempty"            validate:"omitempty,min=1,max=100"`
	ZipCode        *string `json:"zip_code,omitempty"        validate:"omitempty,min=1,max=16"`
	RegistryNumber *string `json:"registry_number,omitempty" validate:"omitempty,min=1,max=64"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

/* ---------- units ---------- */

type CreateUnitRequest struct {
	CondominiumID uuid.UUID `json:"condominium_id"`
	UnitNumber    string    `json:"unit_number"    validate:"required,max=32"`
	Floor         string    `json:"floor"          validate:"omitempty,max=16"`
}

type UpdateUnitRequest struct {
	UnitNumber *string `json:"unit_number,omitempty" validate:"omitempty,min=1,max=32"`
	Floor      *string `json:"floor,omitempty"       validate:"omitempty,max=16"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

/* ---------- principals and assignments ---------- */

// CreateStaffRequest leaves CondominiumID unset for managers, whose
// condominium is implied.
type CreateStaffRequest struct {
	PrincipalFields
	CondominiumID uuid.UUID `json:"condominium_id"`
}

type CreateOwnerRequest struct {
	PrincipalFields
	CondominiumID uuid.UUID `json:"condominium_id"`
	UnitID        uuid.UUID `json:"unit_id"`
}

type CreateManagerRequest struct {
	PrincipalFields
	CompanyID uuid.UUID `json:"company_id"`
}

type AssignManagerRequest struct {
	CondominiumID uuid.UUID `json:"condominium_id"`
	ManagerID     uuid.UUID `json:"manager_id"`
}

type DismissManagerRequest struct {
	CondominiumID uuid.UUID `json:"condominium_id"`
}

type AssignOwnerRequest struct {
	UnitID  uuid.UUID `json:"unit_id"`
	OwnerID uuid.UUID `json:"owner_id"`
}

type UnassignOwnerRequest struct {
	UnitID uuid.UUID `json:"unit_id"`
}
