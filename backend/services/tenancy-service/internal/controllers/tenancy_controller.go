package controllers

import (
	"net/http"
	"strings"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/dtos"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/services"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// TenancyController serves create, update and listing of companies,
// condominiums, units and principals, plus audit trails.
type TenancyController struct {
	tenancy  *services.TenancyService
	authz    *services.AuthzService
	validate *validator.Validate
}

func NewTenancyController(tenancy *services.TenancyService, authz *services.AuthzService) *TenancyController {
	return &TenancyController{
		tenancy:  tenancy,
		authz:    authz,
		validate: dtos.NewValidator(),
	}
}

/* ---------- companies ---------- */

// POST /api/v1/tenancy/companies
func (c *TenancyController) CreateCompanyHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.CreateCompanyRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	company, err := c.tenancy.CreateCompany(r.Context(), actor, services.CompanyInput{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		OwnerID:      req.OwnerID,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, company)
}

// PATCH /api/v1/tenancy/companies/{id}
func (c *TenancyController) UpdateCompanyHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dtos.UpdateCompanyRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	company, err := c.tenancy.UpdateCompany(r.Context(), actor, id, services.CompanyPatch{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, company)
}

// GET /api/v1/tenancy/companies
func (c *TenancyController) ListCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	companies, err := c.tenancy.ListCompanies(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, companies)
}

/* ---------- condominiums ---------- */

// POST /api/v1/tenancy/condominiums
func (c *TenancyController) CreateCondominiumHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.CreateCondominiumRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	condo, err := c.tenancy.CreateCondominium(r.Context(), actor, services.CondominiumInput{
		CompanyID:      req.CompanyID,
		Name:           req.Name,
		Address:        req.Address,
		City:           req.City,
		ZipCode:        req.ZipCode,
		RegistryNumber: req.RegistryNumber,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, condo)
}

// PATCH /api/v1/tenancy/condominiums/{id}
func (c *TenancyController) UpdateCondominiumHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dtos.UpdateCondominiumRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	condo, err := c.tenancy.UpdateCondominium(r.Context(), actor, id, services.CondominiumPatch{
		Name:           req.Name,
		Address:        req.Address,
		City:           req.City,
		ZipCode:        req.ZipCode,
		RegistryNumber: req.RegistryNumber,
		IsActive:       req.IsActive,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, condo)
}

// GET /api/v1/tenancy/condominiums
func (c *TenancyController) ListCondominiumsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	views, err := c.tenancy.ListCondominiums(r.Context(), actor, includeDeleted(r))
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, views)
}

/* ---------- units ---------- */

// POST /api/v1/tenancy/units
func (c *TenancyController) CreateUnitHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.CreateUnitRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	unit, err := c.tenancy.CreateUnit(r.Context(), actor, services.UnitInput{
		CondominiumID: req.CondominiumID,
		UnitNumber:    req.UnitNumber,
		Floor:         req.Floor,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, unit)
}

// PATCH /api/v1/tenancy/units/{id}
func (c *TenancyController) UpdateUnitHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dtos.UpdateUnitRequest
	if !decodeAndValidate(w, r, c.validate, &req) {
		return
	}
	unit, err := c.tenancy.UpdateUnit(r.Context(), actor, id, services.UnitPatch{
		UnitNumber: req.UnitNumber,
		Floor:      req.Floor,
		IsActive:   req.IsActive,
	})
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, unit)
}

// GET /api/v1/tenancy/condominiums/{id}/units
func (c *TenancyController) ListUnitsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	condoID, ok := pathID(w, r)
	if !ok {
		return
	}
	views, err := c.tenancy.ListUnits(r.Context(), actor, condoID, includeDeleted(r))
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, views)
}

/* ---------- principals ---------- */

// GET /api/v1/tenancy/principals
func (c *TenancyController) ListPrincipalsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	views, err := c.tenancy.ListPrincipals(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, views)
}

// GET /api/v1/tenancy/principals/{id}
func (c *TenancyController) GetPrincipalHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := c.tenancy.GetPrincipal(r.Context(), actor, id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

/* ---------- audit ---------- */

// GET /api/v1/tenancy/audit/{type}/{id}
func (c *TenancyController) ListAuditTrailHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	targetType := models.AuditTargetType(strings.ToUpper(mux.Vars(r)["type"]))
	switch targetType {
	case models.TargetPrincipal, models.TargetCompany, models.TargetCondominium, models.TargetUnit:
	default:
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Unknown audit target type", nil)
		return
	}
	entries, err := c.tenancy.ListAuditTrail(r.Context(), actor, targetType, id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entries)
}
