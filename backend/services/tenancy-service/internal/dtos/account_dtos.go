package dtos

import (
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/google/uuid"
)

// PrincipalFields is embedded by every request that creates a principal.
// Password may be omitted when an administrator creates the account.
type PrincipalFields struct {
	Email        string              `json:"email"         validate:"required,email"`
	DisplayName  string              `json:"display_name"  validate:"required,max=120"`
	PhoneNumber  *string             `json:"phone_number"  validate:"omitempty,e164"`
	DocumentID   string              `json:"document_id"   validate:"required,max=32"`
	DocumentType models.DocumentType `json:"document_type" validate:"required,oneof=CC NIF PASSPORT"`
	Password     string              `json:"password"      validate:"omitempty,min=8,max=72"`
}

type RegisterRequest struct {
	PrincipalFields
	Password        string `json:"password"         validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	CompanyName     string `json:"company_name"     validate:"required,max=200"`
}

type RegisterResponse struct {
	Principal *models.Principal `json:"principal"`
	Company   *models.Company   `json:"company"`
}

type ConfirmEmailRequest struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Token       string    `json:"token"        validate:"required"`
}

type SignInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignInResponse struct {
	AccessToken string            `json:"access_token"`
	ExpiresIn   int64             `json:"expires_in"`
	Principal   *models.Principal `json:"principal"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"     validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type HealthCheckResponse struct {
	Status string `json:"status"`
}

type ConfirmationResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
