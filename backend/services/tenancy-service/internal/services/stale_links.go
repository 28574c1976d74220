package services

import (
	"context"
	"errors"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
)

// Restoring or reopening a condominium or unit can revive a manager or
// owner link that is no longer valid. These helpers clear such a link
// before the row goes live again.

const (
	releaseDeactivated = "deactivated"
	releaseReassigned  = "reassigned"
)

// releaseStaleManager clears condo's manager when that manager has been
// deactivated or already runs another live condominium. A dangling link is
// left for the hierarchy reader to report.
func releaseStaleManager(ctx context.Context, d Deps, actorID uuid.UUID, condo *models.Condominium, now time.Time) error {
	if condo.ManagerPrincipalID == nil {
		return nil
	}
	managerID := *condo.ManagerPrincipalID
	manager, err := d.hierarchy().Principal(ctx, LinkCondominiumManager, condo.ID, &managerID)
	if err != nil {
		return utils.NewInternal("Failed to load condominium manager", err)
	}
	if manager == nil {
		return nil
	}

	reason := ""
	if manager.IsDeactivated() {
		reason = releaseDeactivated
	} else {
		managed, err := d.Condominiums.ListByManagerID(ctx, managerID)
		if err != nil {
			return utils.NewInternal("Failed to list managed condominiums", err)
		}
		for _, other := range managed {
			if other.ID != condo.ID && other.IsActive && !other.IsDeleted() {
				reason = releaseReassigned
				break
			}
		}
	}
	if reason == "" {
		return nil
	}

	cleared, err := d.Condominiums.ClearManagerIf(ctx, condo.ID, managerID, actorID, now)
	if err != nil {
		return storeErr("condominium", err)
	}
	if cleared {
		condo.ManagerPrincipalID = nil
		d.auditTrail().record(ctx, actorID, models.AuditDismiss, models.TargetCondominium, condo.ID, map[string]any{
			"manager_id": managerID,
			"reason":     reason,
		})
	}
	return nil
}

// releaseStaleOwner is the unit counterpart of releaseStaleManager. The
// owner's unit flag is left alone unless it still names this unit.
func releaseStaleOwner(ctx context.Context, d Deps, actorID uuid.UUID, unit *models.Unit, now time.Time) error {
	if unit.OwnerPrincipalID == nil {
		return nil
	}
	ownerID := *unit.OwnerPrincipalID
	owner, err := d.hierarchy().Principal(ctx, LinkUnitOwner, unit.ID, &ownerID)
	if err != nil {
		return utils.NewInternal("Failed to load unit owner", err)
	}
	if owner == nil {
		return nil
	}

	reason := ""
	if owner.IsDeactivated() {
		reason = releaseDeactivated
	} else {
		held, err := d.Units.ListByOwnerID(ctx, ownerID)
		if err != nil {
			return utils.NewInternal("Failed to list owned units", err)
		}
		for _, other := range held {
			if other.ID != unit.ID && other.IsActive && !other.IsDeleted() {
				reason = releaseReassigned
				break
			}
		}
	}
	if reason == "" {
		return nil
	}

	cleared, err := d.Units.ClearOwnerIf(ctx, unit.ID, ownerID, actorID, now)
	if err != nil {
		return storeErr("unit", err)
	}
	if !cleared {
		return nil
	}
	unit.OwnerPrincipalID = nil
	err = d.Principals.UpdateWithRetry(ctx, ownerID, func(p *models.Principal) error {
		if !utils.SameID(p.UnitID, unit.ID) {
			return errUnchanged
		}
		p.UnitID = nil
		p.StampUpdated(actorID, now)
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return storeErr("owner", err)
	}
	d.auditTrail().record(ctx, actorID, models.AuditDismiss, models.TargetUnit, unit.ID, map[string]any{
		"owner_id": ownerID,
		"reason":   reason,
	})
	return nil
}
