package controllers

import (
	"context"
	"net/http"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/services"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
)

// LifecycleController serves deactivation, reactivation, soft-delete and
// restore. Every route takes the target id from the path and has no body.
type LifecycleController struct {
	lifecycle  *services.LifecycleService
	reconciler *services.ReconcilerService
	authz      *services.AuthzService
}

func NewLifecycleController(
	lifecycle *services.LifecycleService,
	reconciler *services.ReconcilerService,
	authz *services.AuthzService,
) *LifecycleController {
	return &LifecycleController{lifecycle: lifecycle, reconciler: reconciler, authz: authz}
}

func serveLifecycle[T any](
	c *LifecycleController,
	op func(ctx context.Context, actor *models.Principal, id uuid.UUID) (T, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := loadActor(w, r, c.authz)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		out, err := op(r.Context(), actor, id)
		if err != nil {
			utils.HandleAppError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, out)
	}
}

// POST /api/v1/tenancy/principals/{id}/deactivate
func (c *LifecycleController) DeactivatePrincipalHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.DeactivatePrincipal)(w, r)
}

// POST /api/v1/tenancy/principals/{id}/reactivate
func (c *LifecycleController) ReactivatePrincipalHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.ReactivatePrincipal)(w, r)
}

// DELETE /api/v1/tenancy/companies/{id}
func (c *LifecycleController) SoftDeleteCompanyHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.SoftDeleteCompany)(w, r)
}

// POST /api/v1/tenancy/companies/{id}/restore
func (c *LifecycleController) RestoreCompanyHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.RestoreCompany)(w, r)
}

// DELETE /api/v1/tenancy/condominiums/{id}
func (c *LifecycleController) SoftDeleteCondominiumHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.SoftDeleteCondominium)(w, r)
}

// POST /api/v1/tenancy/condominiums/{id}/restore
func (c *LifecycleController) RestoreCondominiumHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.RestoreCondominium)(w, r)
}

// DELETE /api/v1/tenancy/units/{id}
func (c *LifecycleController) SoftDeleteUnitHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.SoftDeleteUnit)(w, r)
}

// POST /api/v1/tenancy/units/{id}/restore
func (c *LifecycleController) RestoreUnitHandler(w http.ResponseWriter, r *http.Request) {
	serveLifecycle(c, c.lifecycle.RestoreUnit)(w, r)
}

// POST /api/v1/tenancy/reconcile
func (c *LifecycleController) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := loadActor(w, r, c.authz)
	if !ok {
		return
	}
	scope, err := c.authz.ResolveScope(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	if scope.Kind != services.ScopePlatform {
		utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeScopeViolation, "Only platform administrators may run the reconciler", nil)
		return
	}
	report, err := c.reconciler.Run(r.Context())
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, report)
}
