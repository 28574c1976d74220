package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/dtos"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
)

// Pinger is satisfied by *app.App.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController checks that both stores are reachable.
type HealthController struct {
	stores Pinger
}

func NewHealthController(stores Pinger) *HealthController {
	return &HealthController{stores: stores}
}

// HealthCheckHandler => GET /health
func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := c.stores.Ping(ctx); err != nil {
		utils.Logger.WithError(err).Error("tenancy-service store unreachable")
		utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeInternal, "Database unreachable", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthCheckResponse{Status: "OK"})
}
