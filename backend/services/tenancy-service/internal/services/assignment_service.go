package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/notify"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/sirupsen/logrus"
)

// UnlinkResult reports a dismissal or unassignment. Unlinked is false when
// there was nothing to clear.
type UnlinkResult struct {
	Unlinked bool   `json:"unlinked"`
	Message  string `json:"message"`
}

// AssignmentService maintains the manager, staff and owner relationships.
// Every move clears the old link before the new one is written, so an
// interrupted move leaves the relationship unassigned, never doubled.
type AssignmentService struct {
	deps      Deps
	authz     *AuthzService
	hierarchy *Hierarchy
	factory   *principalFactory
	audit     auditTrail
}

func NewAssignmentService(d Deps, authz *AuthzService) *AssignmentService {
	return &AssignmentService{
		deps:      d,
		authz:     authz,
		hierarchy: d.hierarchy(),
		factory:   newPrincipalFactory(d),
		audit:     d.auditTrail(),
	}
}

/* ---------- managers ---------- */

// AssignManager makes managerID the manager of condoID, first clearing any
// other condominium the manager still points at.
func (s *AssignmentService) AssignManager(ctx context.Context, actor *models.Principal, condoID, managerID uuid.UUID) (*models.Condominium, error) {
	if condoID == uuid.Nil {
		return nil, utils.NewInvalidState("No condominium selected")
	}
	if managerID == uuid.Nil {
		return nil, utils.NewInvalidState("No manager selected")
	}

	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, condoID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanAdministerCondominium(scope, condo.CompanyID).Err(); err != nil {
		return nil, err
	}
	if !condo.IsActive {
		return nil, utils.NewInvalidState(fmt.Sprintf("%s is inactive", condo.Name))
	}

	manager, err := getPrincipal(ctx, s.deps.Principals, managerID)
	if err != nil {
		return nil, err
	}
	if !manager.HasRole(models.RoleCondominiumManager) {
		return nil, utils.NewInvalidState(fmt.Sprintf("%s is not a condominium manager", manager.DisplayName))
	}
	if manager.IsDeactivated() {
		return nil, utils.NewInvalidState(fmt.Sprintf("%s is deactivated", manager.DisplayName))
	}
	if err := s.checkManagerAffiliation(ctx, scope, manager); err != nil {
		return nil, err
	}

	now := s.deps.now()
	actorID := scope.ActorID()
	alreadyAssigned := condo.IsManagedBy(manager.ID)
	var displaced *uuid.UUID

	if !alreadyAssigned {
		if err := s.clearOtherAssignments(ctx, actorID, manager.ID, condo.ID, now, "reassigned"); err != nil {
			return nil, err
		}

		err = s.deps.Condominiums.UpdateWithRetry(ctx, condo.ID, func(c *models.Condominium) error {
			if c.IsDeleted() || !c.IsActive {
				return utils.NewInvalidState(fmt.Sprintf("%s is no longer active", c.Name))
			}
			displaced = c.ManagerPrincipalID
			c.ManagerPrincipalID = &manager.ID
			c.StampUpdated(actorID, now)
			return nil
		})
		if err != nil {
			return nil, storeErr("condominium", err)
		}
	}

	if !utils.SameID(manager.CompanyID, condo.CompanyID) {
		err = s.deps.Principals.UpdateWithRetry(ctx, manager.ID, func(p *models.Principal) error {
			p.CompanyID = &condo.CompanyID
			p.StampUpdated(actorID, now)
			return nil
		})
		if err != nil {
			return nil, storeErr("manager", err)
		}
	}

	// A concurrent assignment of the same manager may have landed between
	// the clear and the set; sweep again so at most one link survives.
	if err := s.clearOtherAssignments(ctx, actorID, manager.ID, condo.ID, now, "sweep"); err != nil {
		return nil, err
	}

	updated, err := getCondominium(ctx, s.deps.Condominiums, condo.ID, true)
	if err != nil {
		return nil, err
	}
	if alreadyAssigned {
		return updated, nil
	}

	s.audit.record(ctx, actorID, models.AuditAssign, models.TargetCondominium, condo.ID, map[string]any{
		"manager_id":          manager.ID,
		"previous_manager_id": displaced,
	})

	msgs := []notify.Message{
		{
			To:      manager.Email,
			Subject: fmt.Sprintf("You now manage %s", condo.Name),
			Body:    fmt.Sprintf("Hello %s,\n\nYou have been assigned as manager of %s.", manager.DisplayName, condo.Name),
		},
		{
			To:      principalEmail(actor),
			Subject: fmt.Sprintf("Manager assigned to %s", condo.Name),
			Body:    fmt.Sprintf("%s is now the manager of %s.", manager.DisplayName, condo.Name),
		},
	}
	company, err := s.hierarchy.Company(ctx, LinkCondominiumCompany, condo.ID, &condo.CompanyID)
	if err == nil && company != nil {
		msgs = append(msgs, notify.Message{
			To:      company.ContactEmail,
			Subject: fmt.Sprintf("Manager assigned to %s", condo.Name),
			Body:    fmt.Sprintf("%s is now the manager of %s.", manager.DisplayName, condo.Name),
		})
	}
	if displaced != nil && *displaced != manager.ID {
		if prev, err := s.hierarchy.Principal(ctx, LinkCondominiumManager, condo.ID, displaced); err == nil && prev != nil {
			msgs = append(msgs, dismissalMessage(prev, condo))
		}
	}
	s.deps.notify(ctx, msgs...)
	return updated, nil
}

// DismissManager clears the manager of condoID. Dismissing an unmanaged
// condominium succeeds with Unlinked false.
func (s *AssignmentService) DismissManager(ctx context.Context, actor *models.Principal, condoID uuid.UUID) (*UnlinkResult, error) {
	if condoID == uuid.Nil {
		return nil, utils.NewInvalidState("No condominium selected")
	}
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, condoID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanAdministerCondominium(scope, condo.CompanyID).Err(); err != nil {
		return nil, err
	}
	if condo.ManagerPrincipalID == nil {
		return &UnlinkResult{Message: fmt.Sprintf("Nothing to dismiss: %s has no manager", condo.Name)}, nil
	}

	managerID := *condo.ManagerPrincipalID
	cleared, err := s.deps.Condominiums.ClearManagerIf(ctx, condo.ID, managerID, scope.ActorID(), s.deps.now())
	if err != nil {
		return nil, storeErr("condominium", err)
	}
	if !cleared {
		return &UnlinkResult{Message: fmt.Sprintf("Nothing to dismiss: %s has no manager", condo.Name)}, nil
	}

	s.audit.record(ctx, scope.ActorID(), models.AuditDismiss, models.TargetCondominium, condo.ID, map[string]any{
		"manager_id": managerID,
	})
	manager, err := s.hierarchy.Principal(ctx, LinkCondominiumManager, condo.ID, &managerID)
	if err == nil && manager != nil {
		s.deps.notify(ctx, dismissalMessage(manager, condo))
	}
	return &UnlinkResult{Unlinked: true, Message: fmt.Sprintf("Manager dismissed from %s", condo.Name)}, nil
}

// clearOtherAssignments clears every condominium other than keep that
// still names managerID, soft-deleted ones included, so a later restore
// cannot bring back a second live link.
func (s *AssignmentService) clearOtherAssignments(ctx context.Context, actorID, managerID, keep uuid.UUID, now time.Time, reason string) error {
	managed, err := s.deps.Condominiums.ListByManagerID(ctx, managerID)
	if err != nil {
		return utils.NewInternal("Failed to list managed condominiums", err)
	}
	for _, other := range managed {
		if other.ID == keep {
			continue
		}
		cleared, err := s.deps.Condominiums.ClearManagerIf(ctx, other.ID, managerID, actorID, now)
		if err != nil {
			return storeErr("condominium", err)
		}
		if !cleared {
			continue
		}
		if reason == "sweep" {
			utils.Logger.WithFields(logrus.Fields{
				"manager_id":     managerID,
				"condominium_id": other.ID,
				"kept_id":        keep,
			}).Warn("Cleared concurrent manager assignment")
		}
		s.audit.record(ctx, actorID, models.AuditDismiss, models.TargetCondominium, other.ID, map[string]any{
			"manager_id": managerID,
			"reason":     reason,
			"moved_to":   keep,
		})
	}
	return nil
}

// checkManagerAffiliation stops a CompanyAdmin from pulling in a manager
// that works for another live company. A dangling company link counts as
// unaffiliated.
func (s *AssignmentService) checkManagerAffiliation(ctx context.Context, scope Scope, manager *models.Principal) error {
	company, err := s.hierarchy.Company(ctx, LinkPrincipalCompany, manager.ID, manager.CompanyID)
	if err != nil {
		return utils.NewInternal("Failed to resolve manager company", err)
	}
	if company != nil && !utils.ContainsID(scope.CompanyIDs, company.ID) {
		return utils.NewScopeViolation(fmt.Sprintf("%s works for another company", manager.DisplayName))
	}
	return nil
}

func dismissalMessage(manager *models.Principal, condo *models.Condominium) notify.Message {
	return notify.Message{
		To:      manager.Email,
		Subject: fmt.Sprintf("You no longer manage %s", condo.Name),
		Body:    fmt.Sprintf("Hello %s,\n\nYou have been dismissed as manager of %s.", manager.DisplayName, condo.Name),
	}
}

/* ---------- staff, owners, managers ---------- */

// selectCondominium applies the role-conditional condominium choice used
// when creating staff and owners. Managers are pinned to their own
// condominium; company admins must pick one inside their companies.
func (s *AssignmentService) selectCondominium(ctx context.Context, scope Scope, condoID uuid.UUID) (*models.Condominium, error) {
	switch scope.Kind {
	case ScopeCondominium:
		if condoID != uuid.Nil && condoID != scope.Condominium.ID {
			return nil, record(scope, deny("you may only add users to %s", scope.Condominium.Name)).Err()
		}
		condoID = scope.Condominium.ID
	case ScopeCompany:
		if condoID == uuid.Nil {
			return nil, utils.NewValidation("", "Select a condominium")
		}
	default:
		return nil, record(scope, deny("not allowed to add users to condominiums")).Err()
	}

	condo, err := getCondominium(ctx, s.deps.Condominiums, condoID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanOperateCondominium(scope, condo).Err(); err != nil {
		return nil, err
	}
	if !condo.IsActive {
		return nil, utils.NewInvalidState(fmt.Sprintf("%s is inactive", condo.Name))
	}
	return condo, nil
}

// CreateStaff creates a CondominiumStaff principal inside condoID.
func (s *AssignmentService) CreateStaff(ctx context.Context, actor *models.Principal, condoID uuid.UUID, fields PrincipalFields) (*models.Principal, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	condo, err := s.selectCondominium(ctx, scope, condoID)
	if err != nil {
		return nil, err
	}
	return s.createInCondominium(ctx, scope, condo, models.RoleCondominiumStaff, fields)
}

// CreateOwner creates a UnitOwner inside the selected condominium and,
// when unitID is set, assigns them to that unit. The condominium may be
// left unset when a unit is given.
func (s *AssignmentService) CreateOwner(ctx context.Context, actor *models.Principal, condoID, unitID uuid.UUID, fields PrincipalFields) (*models.Principal, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}

	var unit *models.Unit
	if unitID != uuid.Nil {
		unit, err = getUnit(ctx, s.deps.Units, unitID, false)
		if err != nil {
			return nil, err
		}
		if condoID == uuid.Nil {
			condoID = unit.CondominiumID
		} else if unit.CondominiumID != condoID {
			return nil, utils.NewValidation("", fmt.Sprintf("Unit %s is not in the selected condominium", unit.UnitNumber))
		}
		if !unit.IsActive {
			return nil, utils.NewInvalidState(fmt.Sprintf("Unit %s is inactive", unit.UnitNumber))
		}
	}

	condo, err := s.selectCondominium(ctx, scope, condoID)
	if err != nil {
		return nil, err
	}
	owner, err := s.createInCondominium(ctx, scope, condo, models.RoleUnitOwner, fields)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return owner, nil
	}
	if _, err := s.assignOwner(ctx, scope.ActorID(), unit, condo, owner); err != nil {
		return nil, err
	}
	return getPrincipal(ctx, s.deps.Principals, owner.ID)
}

// CreateManager creates a CondominiumManager inside one of the actor's
// companies. A zero companyID picks the actor's only company.
func (s *AssignmentService) CreateManager(ctx context.Context, actor *models.Principal, companyID uuid.UUID, fields PrincipalFields) (*models.Principal, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if scope.Kind != ScopeCompany {
		return nil, record(scope, deny("only company administrators may create managers")).Err()
	}
	if companyID == uuid.Nil {
		if len(scope.CompanyIDs) != 1 {
			return nil, utils.NewValidation("", "Select a company")
		}
		companyID = scope.CompanyIDs[0]
	}
	if err := s.authz.CanAdministerCondominium(scope, companyID).Err(); err != nil {
		return nil, err
	}
	if err := s.factory.normalize(ctx, &fields); err != nil {
		return nil, err
	}

	p := &models.Principal{
		ID:        uuid.New(),
		Roles:     []models.Role{models.RoleCondominiumManager},
		CompanyID: &companyID,
		CreatedAt: s.deps.now(),
		CreatedBy: utils.Ptr(scope.ActorID()),
	}
	created, welcome, err := s.factory.create(ctx, p, fields)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditCreate, models.TargetPrincipal, created.ID, map[string]any{
		"role":       models.RoleCondominiumManager,
		"company_id": companyID,
	})
	s.deps.notify(ctx, welcome)
	return created, nil
}

func (s *AssignmentService) createInCondominium(ctx context.Context, scope Scope, condo *models.Condominium, role models.Role, fields PrincipalFields) (*models.Principal, error) {
	if err := s.factory.normalize(ctx, &fields); err != nil {
		return nil, err
	}
	p := &models.Principal{
		ID:            uuid.New(),
		Roles:         []models.Role{role},
		CompanyID:     &condo.CompanyID,
		CondominiumID: &condo.ID,
		CreatedAt:     s.deps.now(),
		CreatedBy:     utils.Ptr(scope.ActorID()),
	}
	created, welcome, err := s.factory.create(ctx, p, fields)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditCreate, models.TargetPrincipal, created.ID, map[string]any{
		"role":           role,
		"condominium_id": condo.ID,
	})
	s.deps.notify(ctx, welcome)
	return created, nil
}

/* ---------- unit ownership ---------- */

// AssignOwnerToUnit makes ownerID the single owner of unitID. The owner is
// released from any other unit and the previous owner's flag is cleared
// before the unit is pointed at the new owner.
func (s *AssignmentService) AssignOwnerToUnit(ctx context.Context, actor *models.Principal, unitID, ownerID uuid.UUID) (*models.Unit, error) {
	if unitID == uuid.Nil {
		return nil, utils.NewInvalidState("No unit selected")
	}
	if ownerID == uuid.Nil {
		return nil, utils.NewInvalidState("No owner selected")
	}
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	unit, err := getUnit(ctx, s.deps.Units, unitID, false)
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
	if !unit.IsActive {
		return nil, utils.NewInvalidState(fmt.Sprintf("Unit %s is inactive", unit.UnitNumber))
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, unit.CondominiumID, false)
	if err != nil {
		return nil, err
	}

	owner, err := getPrincipal(ctx, s.deps.Principals, ownerID)
	if err != nil {
		return nil, err
	}
	if !owner.HasRole(models.RoleUnitOwner) {
		return nil, utils.NewInvalidState(fmt.Sprintf("%s is not a unit owner", owner.DisplayName))
	}
	if owner.IsDeactivated() {
		return nil, utils.NewInvalidState(fmt.Sprintf("%s is deactivated", owner.DisplayName))
	}
	d, err = s.authz.CanAdministerPrincipal(ctx, scope, owner)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	if unit.IsOwnedBy(owner.ID) && utils.SameID(owner.UnitID, unit.ID) {
		return unit, nil
	}
	changed, err := s.assignOwner(ctx, scope.ActorID(), unit, condo, owner)
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (s *AssignmentService) assignOwner(ctx context.Context, actorID uuid.UUID, unit *models.Unit, condo *models.Condominium, owner *models.Principal) (*models.Unit, error) {
	now := s.deps.now()

	// Release the owner's other units first.
	held, err := s.deps.Units.ListByOwnerID(ctx, owner.ID)
	if err != nil {
		return nil, utils.NewInternal("Failed to list owned units", err)
	}
	for _, other := range held {
		if other.ID == unit.ID {
			continue
		}
		cleared, err := s.deps.Units.ClearOwnerIf(ctx, other.ID, owner.ID, actorID, now)
		if err != nil {
			return nil, storeErr("unit", err)
		}
		if cleared {
			s.audit.record(ctx, actorID, models.AuditDismiss, models.TargetUnit, other.ID, map[string]any{
				"owner_id": owner.ID,
				"reason":   "reassigned",
			})
		}
	}

	// Clear the previous owner's flag before the unit changes hands.
	var previous *uuid.UUID
	if unit.OwnerPrincipalID != nil && *unit.OwnerPrincipalID != owner.ID {
		previous = unit.OwnerPrincipalID
		if err := s.clearOwnerFlag(ctx, actorID, *previous, unit.ID, now); err != nil {
			return nil, err
		}
	}

	var updated *models.Unit
	err = s.deps.Units.UpdateWithRetry(ctx, unit.ID, func(u *models.Unit) error {
		if u.IsDeleted() || !u.IsActive {
			return utils.NewInvalidState(fmt.Sprintf("Unit %s is no longer active", u.UnitNumber))
		}
		u.OwnerPrincipalID = &owner.ID
		u.StampUpdated(actorID, now)
		updated = u
		return nil
	})
	if err != nil {
		return nil, storeErr("unit", err)
	}

	err = s.deps.Principals.UpdateWithRetry(ctx, owner.ID, func(p *models.Principal) error {
		p.UnitID = &unit.ID
		p.CondominiumID = &condo.ID
		p.CompanyID = &condo.CompanyID
		p.StampUpdated(actorID, now)
		return nil
	})
	if err != nil {
		return nil, storeErr("owner", err)
	}

	s.audit.record(ctx, actorID, models.AuditAssign, models.TargetUnit, unit.ID, map[string]any{
		"owner_id":          owner.ID,
		"previous_owner_id": previous,
	})
	s.deps.notify(ctx, notify.Message{
		To:      owner.Email,
		Subject: fmt.Sprintf("You are now the owner of unit %s", unit.UnitNumber),
		Body:    fmt.Sprintf("Hello %s,\n\nYou are registered as owner of unit %s in %s.", owner.DisplayName, unit.UnitNumber, condo.Name),
	})
	return updated, nil
}

// UnassignOwner clears the owner of unitID. An unowned unit succeeds with
// Unlinked false.
func (s *AssignmentService) UnassignOwner(ctx context.Context, actor *models.Principal, unitID uuid.UUID) (*UnlinkResult, error) {
	if unitID == uuid.Nil {
		return nil, utils.NewInvalidState("No unit selected")
	}
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	unit, err := getUnit(ctx, s.deps.Units, unitID, false)
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
	if unit.OwnerPrincipalID == nil {
		return &UnlinkResult{Message: fmt.Sprintf("Nothing to unassign: unit %s has no owner", unit.UnitNumber)}, nil
	}

	ownerID := *unit.OwnerPrincipalID
	now := s.deps.now()
	cleared, err := s.deps.Units.ClearOwnerIf(ctx, unit.ID, ownerID, scope.ActorID(), now)
	if err != nil {
		return nil, storeErr("unit", err)
	}
	if err := s.clearOwnerFlag(ctx, scope.ActorID(), ownerID, unit.ID, now); err != nil {
		return nil, err
	}
	if !cleared {
		return &UnlinkResult{Message: fmt.Sprintf("Nothing to unassign: unit %s has no owner", unit.UnitNumber)}, nil
	}

	s.audit.record(ctx, scope.ActorID(), models.AuditDismiss, models.TargetUnit, unit.ID, map[string]any{
		"owner_id": ownerID,
	})
	return &UnlinkResult{Unlinked: true, Message: fmt.Sprintf("Owner removed from unit %s", unit.UnitNumber)}, nil
}

// clearOwnerFlag drops the principal's denormalized unit link if it still
// names unitID. A missing principal is a tolerated miss.
func (s *AssignmentService) clearOwnerFlag(ctx context.Context, actorID, ownerID, unitID uuid.UUID, now time.Time) error {
	err := s.deps.Principals.UpdateWithRetry(ctx, ownerID, func(p *models.Principal) error {
		if !utils.SameID(p.UnitID, unitID) {
			return errUnchanged
		}
		p.UnitID = nil
		p.StampUpdated(actorID, now)
		return nil
	})
	switch {
	case err == nil, errors.Is(err, errUnchanged):
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		s.hierarchy.miss(LinkUnitOwner, unitID, ownerID, "missing")
		return nil
	}
	return storeErr("owner", err)
}
