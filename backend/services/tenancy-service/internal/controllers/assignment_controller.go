package controllers

import (
	"net/http"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/dtos"
	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/services"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
)

var assignmentValidate = dtos.NewValidator()

// AssignmentController serves the manager, staff and owner relationships.
type AssignmentController struct {
	assign *services.AssignmentService
	authz  *services.AuthzService
}

func NewAssignmentController(assign *services.AssignmentService, authz *services.AuthzService) *AssignmentController {
	return &AssignmentController{assign: assign, authz: authz}
}

// POST /api/v1/tenancy/managers
func (c *AssignmentController) CreateManagerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.CreateManagerRequest
	if !decodeAndValidate(w, r, assignmentValidate, &req) {
		return
	}
	p, err := c.assign.CreateManager(r.Context(), actor, req.CompanyID, toPrincipalFields(req.PrincipalFields))
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// POST /api/v1/tenancy/staff
func (c *AssignmentController) CreateStaffHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.CreateStaffRequest
	if !decodeAndValidate(w, r, assignmentValidate, &req) {
		return
	}
	p, err := c.assign.CreateStaff(r.Context(), actor, req.CondominiumID, toPrincipalFields(req.PrincipalFields))
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// POST /api/v1/tenancy/owners
func (c *AssignmentController) CreateOwnerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.CreateOwnerRequest
	if !decodeAndValidate(w, r, assignmentValidate, &req) {
		return
	}
	p, err := c.assign.CreateOwner(r.Context(), actor, req.CondominiumID, req.UnitID, toPrincipalFields(req.PrincipalFields))
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// POST /api/v1/tenancy/assignments/manager
func (c *AssignmentController) AssignManagerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.AssignManagerRequest
	if !decodeAndValidate(w, r, assignmentValidate, &req) {
		return
	}
	condo, err := c.assign.AssignManager(r.Context(), actor, req.CondominiumID, req.ManagerID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, condo)
}

// POST /api/v1/tenancy/assignments/manager/dismiss
func (c *AssignmentController) DismissManagerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.DismissManagerRequest
	if !decodeAndValidate(w, r, assignmentValidate, &req) {
		return
	}
	res, err := c.assign.DismissManager(r.Context(), actor, req.CondominiumID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

// POST /api/v1/tenancy/assignments/owner
func (c *AssignmentController) AssignOwnerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.AssignOwnerRequest
	if !decodeAndValidate(w, r, assignmentValidate, &req) {
		return
	}
	unit, err := c.assign.AssignOwnerToUnit(r.Context(), actor, req.UnitID, req.OwnerID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, unit)
}

// POST /api/v1/tenancy/assignments/owner/unassign
func (c *AssignmentController) UnassignOwnerHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	var req dtos.UnassignOwnerRequest
	if !decodeAndValidate(w, r, assignmentValidate, &req) {
		return
	}
	res, err := c.assign.UnassignOwner(r.Context(), actor, req.UnitID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}
