package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/notify"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LifecycleService runs the Active/Deactivated transitions of principals
// and the Active/SoftDeleted transitions of tenancy entities.
type LifecycleService struct {
	deps      Deps
	authz     *AuthzService
	hierarchy *Hierarchy
	audit     auditTrail
}

func NewLifecycleService(d Deps, authz *AuthzService) *LifecycleService {
	return &LifecycleService{
		deps:      d,
		authz:     authz,
		hierarchy: d.hierarchy(),
		audit:     d.auditTrail(),
	}
}

/* ---------- principals ---------- */

// DeactivatePrincipal stamps the deactivation, locks the identity out
// indefinitely and, for a CompanyAdmin, soft-deletes every company the
// admin owns. Re-running it on a deactivated principal finishes any step a
// previous run left undone.
func (s *LifecycleService) DeactivatePrincipal(ctx context.Context, actor *models.Principal, targetID uuid.UUID) (*models.Principal, error) {
	target, err := getPrincipal(ctx, s.deps.Principals, targetID)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.ID == target.ID {
		return nil, utils.NewInvalidState("You cannot deactivate your own account")
	}
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	d, err := s.authz.CanAdministerPrincipal(ctx, scope, target)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	if target.IsDeactivated() {
		if err := s.finishDeactivation(ctx, target); err != nil {
			return nil, err
		}
		return getPrincipal(ctx, s.deps.Principals, target.ID)
	}

	if err := s.checkNoExclusiveAssignment(ctx, target); err != nil {
		return nil, err
	}

	now := s.deps.now()
	actorID := scope.ActorID()
	err = s.deps.Principals.UpdateWithRetry(ctx, target.ID, func(p *models.Principal) error {
		if p.IsDeactivated() {
			return errUnchanged
		}
		p.DeactivatedAt = &now
		p.DeactivatedBy = &actorID
		p.StampUpdated(actorID, now)
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return nil, storeErr("user", err)
	}

	stamped, err := getPrincipal(ctx, s.deps.Principals, target.ID)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actorID, models.AuditDeactivate, models.TargetPrincipal, target.ID, nil)

	if err := s.finishDeactivation(ctx, stamped); err != nil {
		return nil, err
	}
	s.deps.notify(ctx, notify.Message{
		To:      stamped.Email,
		Subject: "Your account has been deactivated",
		Body:    fmt.Sprintf("Hello %s,\n\nYour %s account has been deactivated.", stamped.DisplayName, utils.OrganizationName),
	})
	return getPrincipal(ctx, s.deps.Principals, target.ID)
}

// checkNoExclusiveAssignment refuses to deactivate a live manager or unit
// owner. The reason names the blocking assignment.
func (s *LifecycleService) checkNoExclusiveAssignment(ctx context.Context, target *models.Principal) error {
	managed, err := s.deps.Condominiums.ListByManagerID(ctx, target.ID)
	if err != nil {
		return utils.NewInternal("Failed to check manager assignments", err)
	}
	var names []string
	for _, c := range managed {
		if c.IsActive && !c.IsDeleted() {
			names = append(names, c.Name)
		}
	}
	if len(names) > 0 {
		return utils.NewAssignmentConflict("", fmt.Sprintf("Cannot deactivate: still assigned to %s", strings.Join(names, ", ")))
	}

	owned, err := s.deps.Units.ListByOwnerID(ctx, target.ID)
	if err != nil {
		return utils.NewInternal("Failed to check unit ownership", err)
	}
	for _, u := range owned {
		if u.IsDeleted() {
			continue
		}
		condoName, err := s.hierarchy.CondominiumName(ctx, LinkUnitCondominium, u.ID, &u.CondominiumID)
		if err != nil {
			return utils.NewInternal("Failed to resolve unit condominium", err)
		}
		return utils.NewAssignmentConflict("", fmt.Sprintf("Cannot deactivate: still owner of unit %s in %s", u.UnitNumber, condoName))
	}
	return nil
}

// finishDeactivation applies the lockout and the CompanyAdmin cascade for an
// already stamped principal. Each step skips work that is already done.
func (s *LifecycleService) finishDeactivation(ctx context.Context, p *models.Principal) error {
	if !p.IsLockedOut(s.deps.now()) {
		lockout := models.IndefiniteLockout
		if err := s.deps.Principals.SetLockout(ctx, p.ID, &lockout); err != nil {
			return utils.NewPartialCompletion("User deactivated but lockout not applied; retry to finish", err)
		}
	}
	if p.HasRole(models.RoleCompanyAdmin) {
		return s.cascadeCompanies(ctx, p)
	}
	return nil
}

// cascadeCompanies soft-deletes the live companies of a deactivated admin
// with the admin's own deactivation actor and timestamp.
func (s *LifecycleService) cascadeCompanies(ctx context.Context, admin *models.Principal) error {
	if admin.DeactivatedAt == nil || admin.DeactivatedBy == nil {
		return nil
	}
	at, by := *admin.DeactivatedAt, *admin.DeactivatedBy

	owned, err := s.deps.Companies.ListByOwnerID(ctx, admin.ID, false)
	if err != nil {
		return utils.NewPartialCompletion("User deactivated but companies not yet deleted; retry to finish", err)
	}
	var failed []error
	for _, c := range owned {
		err := s.deps.Companies.UpdateWithRetry(ctx, c.ID, func(company *models.Company) error {
			if company.IsDeleted() {
				return errUnchanged
			}
			markDeleted(&company.Audit, &company.IsActive, by, at)
			return nil
		})
		switch {
		case errors.Is(err, errUnchanged):
			continue
		case err != nil:
			utils.Logger.WithError(err).WithFields(logrus.Fields{
				"admin_id":   admin.ID,
				"company_id": c.ID,
			}).Error("Cascade soft-delete of company failed")
			failed = append(failed, err)
			continue
		}
		s.audit.record(ctx, by, models.AuditSoftDelete, models.TargetCompany, c.ID, map[string]any{
			"cascade_from": admin.ID,
		})
	}
	if len(failed) > 0 {
		return utils.NewPartialCompletion(
			fmt.Sprintf("User deactivated but %d of %d companies not yet deleted; retry to finish", len(failed), len(owned)),
			errors.Join(failed...),
		)
	}
	return nil
}

// ReactivatePrincipal restores companies removed by the deactivation
// cascade, clears the deactivation stamps and lifts the lockout.
func (s *LifecycleService) ReactivatePrincipal(ctx context.Context, actor *models.Principal, targetID uuid.UUID) (*models.Principal, error) {
	target, err := getPrincipal(ctx, s.deps.Principals, targetID)
	if err != nil {
		return nil, err
	}
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	d, err := s.authz.CanAdministerPrincipal(ctx, scope, target)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	now := s.deps.now()
	actorID := scope.ActorID()

	if !target.IsDeactivated() {
		if !target.IsLockedOut(now) {
			return nil, utils.NewInvalidState(fmt.Sprintf("%s is already active", target.DisplayName))
		}
		// A previous reactivation stopped before the lockout was lifted.
		if err := s.deps.Principals.SetLockout(ctx, target.ID, nil); err != nil {
			return nil, utils.NewPartialCompletion("User reactivated but lockout not cleared; retry to finish", err)
		}
		return getPrincipal(ctx, s.deps.Principals, target.ID)
	}

	if target.HasRole(models.RoleCompanyAdmin) {
		if err := s.restoreCascadedCompanies(ctx, actorID, target, now); err != nil {
			return nil, err
		}
	}

	err = s.deps.Principals.UpdateWithRetry(ctx, target.ID, func(p *models.Principal) error {
		p.DeactivatedAt = nil
		p.DeactivatedBy = nil
		p.StampUpdated(actorID, now)
		return nil
	})
	if err != nil {
		return nil, storeErr("user", err)
	}
	if err := s.deps.Principals.SetLockout(ctx, target.ID, nil); err != nil {
		return nil, utils.NewPartialCompletion("User reactivated but lockout not cleared; retry to finish", err)
	}

	s.audit.record(ctx, actorID, models.AuditReactivate, models.TargetPrincipal, target.ID, nil)
	s.deps.notify(ctx, notify.Message{
		To:      target.Email,
		Subject: "Your account has been reactivated",
		Body:    fmt.Sprintf("Hello %s,\n\nYour %s account is active again.", target.DisplayName, utils.OrganizationName),
	})
	return getPrincipal(ctx, s.deps.Principals, target.ID)
}

// restoreCascadedCompanies brings back the companies whose deletion stamps
// match the admin's deactivation stamps. Companies deleted on their own
// stay deleted.
func (s *LifecycleService) restoreCascadedCompanies(ctx context.Context, actorID uuid.UUID, admin *models.Principal, now time.Time) error {
	owned, err := s.deps.Companies.ListByOwnerID(ctx, admin.ID, true)
	if err != nil {
		return utils.NewInternal("Failed to list companies", err)
	}
	for _, c := range owned {
		if !deletedByCascade(&c.Audit, admin) {
			continue
		}
		err := s.deps.Companies.UpdateWithRetry(ctx, c.ID, func(company *models.Company) error {
			if !deletedByCascade(&company.Audit, admin) {
				return errUnchanged
			}
			markRestored(&company.Audit, &company.IsActive, actorID, now)
			return nil
		})
		if errors.Is(err, errUnchanged) {
			continue
		}
		if err != nil {
			return utils.NewPartialCompletion("Companies partially restored; retry to finish", err)
		}
		s.audit.record(ctx, actorID, models.AuditRestore, models.TargetCompany, c.ID, map[string]any{
			"cascade_from": admin.ID,
		})
	}
	return nil
}

func deletedByCascade(a *models.Audit, admin *models.Principal) bool {
	return a.DeletedAt != nil && a.DeletedBy != nil &&
		admin.DeactivatedAt != nil && admin.DeactivatedBy != nil &&
		a.DeletedAt.Equal(*admin.DeactivatedAt) && *a.DeletedBy == *admin.DeactivatedBy
}

func markDeleted(a *models.Audit, isActive *bool, actorID uuid.UUID, at time.Time) {
	a.DeletedAt = &at
	a.DeletedBy = &actorID
	a.StampUpdated(actorID, at)
	*isActive = false
}

func markRestored(a *models.Audit, isActive *bool, actorID uuid.UUID, at time.Time) {
	a.DeletedAt = nil
	a.DeletedBy = nil
	a.StampUpdated(actorID, at)
	*isActive = true
}

/* ---------- companies ---------- */

func (s *LifecycleService) SoftDeleteCompany(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Company, error) {
	return s.setCompanyDeleted(ctx, actor, id, true)
}

func (s *LifecycleService) RestoreCompany(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Company, error) {
	return s.setCompanyDeleted(ctx, actor, id, false)
}

func (s *LifecycleService) setCompanyDeleted(ctx context.Context, actor *models.Principal, id uuid.UUID, deleted bool) (*models.Company, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	company, err := getCompany(ctx, s.deps.Companies, id, true)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanAdministerCompany(scope, company).Err(); err != nil {
		return nil, err
	}
	if err := checkDeletedState(company.Name, company.IsDeleted(), deleted); err != nil {
		return nil, err
	}
	if !deleted {
		if err := s.checkOwnerActive(ctx, company); err != nil {
			return nil, err
		}
	}

	now := s.deps.now()
	var updated *models.Company
	err = s.deps.Companies.UpdateWithRetry(ctx, id, func(c *models.Company) error {
		if err := checkDeletedState(c.Name, c.IsDeleted(), deleted); err != nil {
			return err
		}
		if deleted {
			markDeleted(&c.Audit, &c.IsActive, scope.ActorID(), now)
		} else {
			markRestored(&c.Audit, &c.IsActive, scope.ActorID(), now)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, storeErr("company", err)
	}
	s.audit.record(ctx, scope.ActorID(), deleteAction(deleted), models.TargetCompany, id, nil)
	return updated, nil
}

// checkOwnerActive refuses to restore a company whose CompanyAdmin is
// deactivated; the reconciler would delete it again on its next pass.
func (s *LifecycleService) checkOwnerActive(ctx context.Context, company *models.Company) error {
	owner, err := s.hierarchy.Principal(ctx, LinkCompanyOwner, company.ID, &company.OwnerPrincipalID)
	if err != nil {
		return utils.NewInternal("Failed to load company owner", err)
	}
	if owner != nil && owner.IsDeactivated() {
		return utils.NewInvalidState(fmt.Sprintf("Cannot restore %s while its administrator is deactivated", company.Name))
	}
	return nil
}

/* ---------- condominiums ---------- */

func (s *LifecycleService) SoftDeleteCondominium(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Condominium, error) {
	return s.setCondominiumDeleted(ctx, actor, id, true)
}

func (s *LifecycleService) RestoreCondominium(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Condominium, error) {
	return s.setCondominiumDeleted(ctx, actor, id, false)
}

func (s *LifecycleService) setCondominiumDeleted(ctx context.Context, actor *models.Principal, id uuid.UUID, deleted bool) (*models.Condominium, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, id, true)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanAdministerCondominium(scope, condo.CompanyID).Err(); err != nil {
		return nil, err
	}
	if err := checkDeletedState(condo.Name, condo.IsDeleted(), deleted); err != nil {
		return nil, err
	}

	now := s.deps.now()
	if !deleted {
		if err := releaseStaleManager(ctx, s.deps, scope.ActorID(), condo, now); err != nil {
			return nil, err
		}
	}
	var updated *models.Condominium
	err = s.deps.Condominiums.UpdateWithRetry(ctx, id, func(c *models.Condominium) error {
		if err := checkDeletedState(c.Name, c.IsDeleted(), deleted); err != nil {
			return err
		}
		if deleted {
			markDeleted(&c.Audit, &c.IsActive, scope.ActorID(), now)
		} else {
			markRestored(&c.Audit, &c.IsActive, scope.ActorID(), now)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, storeErr("condominium", err)
	}
	s.audit.record(ctx, scope.ActorID(), deleteAction(deleted), models.TargetCondominium, id, nil)
	return updated, nil
}

/* ---------- units ---------- */

func (s *LifecycleService) SoftDeleteUnit(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Unit, error) {
	return s.setUnitDeleted(ctx, actor, id, true)
}

func (s *LifecycleService) RestoreUnit(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Unit, error) {
	return s.setUnitDeleted(ctx, actor, id, false)
}

func (s *LifecycleService) setUnitDeleted(ctx context.Context, actor *models.Principal, id uuid.UUID, deleted bool) (*models.Unit, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	unit, err := getUnit(ctx, s.deps.Units, id, true)
	if err != nil {
		return nil, err
	}
	d, err := s.authz.CanOperateUnit(ctx, scope, unit)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	label := "Unit " + unit.UnitNumber
	if err := checkDeletedState(label, unit.IsDeleted(), deleted); err != nil {
		return nil, err
	}

	now := s.deps.now()
	if !deleted {
		if err := releaseStaleOwner(ctx, s.deps, scope.ActorID(), unit, now); err != nil {
			return nil, err
		}
	}
	var updated *models.Unit
	err = s.deps.Units.UpdateWithRetry(ctx, id, func(u *models.Unit) error {
		if err := checkDeletedState(label, u.IsDeleted(), deleted); err != nil {
			return err
		}
		if deleted {
			markDeleted(&u.Audit, &u.IsActive, scope.ActorID(), now)
		} else {
			markRestored(&u.Audit, &u.IsActive, scope.ActorID(), now)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, storeErr("unit", err)
	}
	s.audit.record(ctx, scope.ActorID(), deleteAction(deleted), models.TargetUnit, id, nil)
	return updated, nil
}

func checkDeletedState(name string, isDeleted, wantDeleted bool) error {
	switch {
	case wantDeleted && isDeleted:
		return utils.NewInvalidState(fmt.Sprintf("%s is already deleted", name))
	case !wantDeleted && !isDeleted:
		return utils.NewInvalidState(fmt.Sprintf("%s is not deleted", name))
	}
	return nil
}

func deleteAction(deleted bool) models.AuditAction {
	if deleted {
		return models.AuditSoftDelete
	}
	return models.AuditRestore
}
