package controllers

import (
	"crypto/rsa"
	"net/http"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/dtos"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/services"
	"github.com/condoprime/mono-repo/backend/shared/go-middleware"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/go-playground/validator/v10"
)

// TokenSigner holds what sign-in needs to mint access tokens.
type TokenSigner struct {
	PrivateKey *rsa.PrivateKey
	TTL        time.Duration
	Now        func() time.Time
}

type AccountController struct {
	account  *services.AccountService
	authz    *services.AuthzService
	signer   TokenSigner
	validate *validator.Validate
}

func NewAccountController(account *services.AccountService, authz *services.AuthzService, signer TokenSigner) *AccountController {
	if signer.Now == nil {
		signer.Now = services.SystemClock
	}
	return &AccountController{
		account:  account,
		authz:    authz,
		signer:   signer,
		validate: dtos.NewValidator(),
	}
}

// POST /api/v1/tenancy/account/register
func (c *AccountController) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegisterRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	fields := toPrincipalFields(req.PrincipalFields)
	fields.Password = req.Password

	admin, company, err := c.account.RegisterCompanyAdmin(r.Context(), services.Registration{
		Fields:          fields,
		ConfirmPassword: req.ConfirmPassword,
		CompanyName:     req.CompanyName,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dtos.RegisterResponse{Principal: admin, Company: company})
}

// POST /api/v1/tenancy/account/confirm-email
func (c *AccountController) ConfirmEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.ConfirmEmailRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	if err := c.account.ConfirmEmail(r.Context(), req.PrincipalID, req.Token); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.ConfirmationResponse{
		Message: "Email confirmed",
		ID:      req.PrincipalID.String(),
	})
}

// POST /api/v1/tenancy/account/sign-in
func (c *AccountController) SignInHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.SignInRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	p, err := c.account.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}

	token, err := middleware.IssueAccessToken(c.signer.PrivateKey, p.ID, roleNames(p.Roles), c.signer.TTL, c.signer.Now())
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to issue token", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.SignInResponse{
		AccessToken: token,
		ExpiresIn:   int64(c.signer.TTL.Seconds()),
		Principal:   p,
	})
}

// GET /api/v1/tenancy/account/me
func (c *AccountController) MeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	scope, err := c.authz.ResolveScope(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"principal": actor,
		"scope":     scope.Kind.String(),
	})
}

// POST /api/v1/tenancy/account/change-password
func (c *AccountController) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.ChangePasswordRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	if err := c.account.ChangePassword(r.Context(), actor, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.ConfirmationResponse{Message: "Password changed"})
}

func roleNames(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
