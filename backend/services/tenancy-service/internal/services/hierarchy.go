package services

import (
	"context"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/metrics"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Link names used in miss logs and the cross-store miss counter.
const (
	LinkCompanyOwner       = "company.owner"
	LinkCondominiumCompany = "condominium.company"
	LinkCondominiumManager = "condominium.manager"
	LinkUnitCondominium    = "unit.condominium"
	LinkUnitOwner          = "unit.owner"
	LinkPrincipalCompany   = "principal.company"
	LinkPrincipalCondo     = "principal.condominium"
	LinkPrincipalUnit      = "principal.unit"
)

// Hierarchy follows identifier links across the identity and tenancy
// stores. A link to a missing or soft-deleted row resolves to nil and is
// logged, never turned into an error. Store I/O failures are returned.
type Hierarchy struct {
	principals   repositories.PrincipalRepository
	companies    repositories.CompanyRepository
	condominiums repositories.CondominiumRepository
	units        repositories.UnitRepository
}

func NewHierarchy(
	principals repositories.PrincipalRepository,
	companies repositories.CompanyRepository,
	condominiums repositories.CondominiumRepository,
	units repositories.UnitRepository,
) *Hierarchy {
	return &Hierarchy{
		principals:   principals,
		companies:    companies,
		condominiums: condominiums,
		units:        units,
	}
}

func (h *Hierarchy) miss(link string, sourceID, targetID uuid.UUID, reason string) {
	metrics.CrossStoreMisses.WithLabelValues(link).Inc()
	utils.Logger.WithFields(logrus.Fields{
		"link":      link,
		"source_id": sourceID,
		"target_id": targetID,
		"reason":    reason,
	}).Warn("Cross-store link did not resolve")
}

// Company resolves a live company. An unset id is not a miss.
func (h *Hierarchy) Company(ctx context.Context, link string, sourceID uuid.UUID, id *uuid.UUID) (*models.Company, error) {
	if !utils.IsSelected(id) {
		return nil, nil
	}
	c, err := h.companies.GetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		h.miss(link, sourceID, *id, "missing")
		return nil, nil
	}
	if c.IsDeleted() {
		h.miss(link, sourceID, *id, "deleted")
		return nil, nil
	}
	return c, nil
}

// Principal resolves a principal, deactivated ones included.
func (h *Hierarchy) Principal(ctx context.Context, link string, sourceID uuid.UUID, id *uuid.UUID) (*models.Principal, error) {
	if !utils.IsSelected(id) {
		return nil, nil
	}
	p, err := h.principals.GetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		h.miss(link, sourceID, *id, "missing")
		return nil, nil
	}
	return p, nil
}

// Condominium resolves a live condominium.
func (h *Hierarchy) Condominium(ctx context.Context, link string, sourceID uuid.UUID, id *uuid.UUID) (*models.Condominium, error) {
	if !utils.IsSelected(id) {
		return nil, nil
	}
	c, err := h.condominiums.GetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		h.miss(link, sourceID, *id, "missing")
		return nil, nil
	}
	if c.IsDeleted() {
		h.miss(link, sourceID, *id, "deleted")
		return nil, nil
	}
	return c, nil
}

// Unit resolves a live unit.
func (h *Hierarchy) Unit(ctx context.Context, link string, sourceID uuid.UUID, id *uuid.UUID) (*models.Unit, error) {
	if !utils.IsSelected(id) {
		return nil, nil
	}
	u, err := h.units.GetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		h.miss(link, sourceID, *id, "missing")
		return nil, nil
	}
	if u.IsDeleted() {
		h.miss(link, sourceID, *id, "deleted")
		return nil, nil
	}
	return u, nil
}

// CompanyName returns the company name, or the unknown label when the link
// dangles.
func (h *Hierarchy) CompanyName(ctx context.Context, link string, sourceID uuid.UUID, id *uuid.UUID) (string, error) {
	if !utils.IsSelected(id) {
		return utils.UnassignedLabel, nil
	}
	c, err := h.Company(ctx, link, sourceID, id)
	if err != nil {
		return "", err
	}
	if c == nil {
		return utils.UnknownLabel, nil
	}
	return c.Name, nil
}

// PrincipalName returns the display name, "unassigned" for an unset link
// and "unknown" for a dangling one.
func (h *Hierarchy) PrincipalName(ctx context.Context, link string, sourceID uuid.UUID, id *uuid.UUID) (string, error) {
	if !utils.IsSelected(id) {
		return utils.UnassignedLabel, nil
	}
	p, err := h.Principal(ctx, link, sourceID, id)
	if err != nil {
		return "", err
	}
	if p == nil {
		return utils.UnknownLabel, nil
	}
	return p.DisplayName, nil
}

func (h *Hierarchy) CondominiumName(ctx context.Context, link string, sourceID uuid.UUID, id *uuid.UUID) (string, error) {
	if !utils.IsSelected(id) {
		return utils.UnassignedLabel, nil
	}
	c, err := h.Condominium(ctx, link, sourceID, id)
	if err != nil {
		return "", err
	}
	if c == nil {
		return utils.UnknownLabel, nil
	}
	return c.Name, nil
}
