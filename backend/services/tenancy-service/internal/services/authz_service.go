package services

import (
	"context"
	"fmt"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/metrics"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopePlatform
	ScopeCompany
	ScopeCondominium
	ScopeSelf
)

func (k ScopeKind) String() string {
	switch k {
	case ScopePlatform:
		return "platform"
	case ScopeCompany:
		return "company"
	case ScopeCondominium:
		return "condominium"
	case ScopeSelf:
		return "self"
	default:
		return "none"
	}
}

// Scope is what an actor may administer, resolved once per operation.
type Scope struct {
	Kind  ScopeKind
	Actor *models.Principal

	// CompanyIDs holds the live companies owned by a CompanyAdmin.
	CompanyIDs []uuid.UUID

	// Condominium is the single active condominium of a manager.
	Condominium *models.Condominium
}

func (s Scope) ActorID() uuid.UUID {
	if s.Actor == nil {
		return uuid.Nil
	}
	return s.Actor.ID
}

// Decision is the evaluator's answer. Denials carry a short reason.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err turns a denial into a ScopeViolation.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return utils.NewScopeViolation(d.Reason)
}

// AuthzService resolves actor scopes and evaluates them against targets.
type AuthzService struct {
	principals   repositories.PrincipalRepository
	companies    repositories.CompanyRepository
	condominiums repositories.CondominiumRepository
	hierarchy    *Hierarchy
}

func NewAuthzService(d Deps) *AuthzService {
	return &AuthzService{
		principals:   d.Principals,
		companies:    d.Companies,
		condominiums: d.Condominiums,
		hierarchy:    d.hierarchy(),
	}
}

// LoadActor re-reads the acting principal so role and deactivation changes
// made since the token was issued take effect immediately.
func (s *AuthzService) LoadActor(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	if id == uuid.Nil {
		return nil, utils.NewUnauthenticated(utils.ErrCodeUnauthorized, "Missing actor")
	}
	p, err := s.principals.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternal("Failed to load actor", err)
	}
	if p == nil {
		return nil, utils.NewUnauthenticated(utils.ErrCodeUnauthorized, "Unknown actor")
	}
	return p, nil
}

// ResolveScope maps the actor's roles to a scope. Roles are checked in
// AllRoles order and the first match wins. A deactivated actor, and a
// manager whose condominium cannot be resolved unambiguously, get ScopeNone.
func (s *AuthzService) ResolveScope(ctx context.Context, actor *models.Principal) (Scope, error) {
	if actor == nil || actor.IsDeactivated() {
		return Scope{Kind: ScopeNone, Actor: actor}, nil
	}

	switch {
	case actor.HasRole(models.RolePlatformAdmin):
		return Scope{Kind: ScopePlatform, Actor: actor}, nil

	case actor.HasRole(models.RoleCompanyAdmin):
		owned, err := s.companies.ListByOwnerID(ctx, actor.ID, false)
		if err != nil {
			return Scope{}, utils.NewInternal("Failed to resolve owned companies", err)
		}
		ids := make([]uuid.UUID, 0, len(owned))
		for _, c := range owned {
			ids = append(ids, c.ID)
		}
		return Scope{Kind: ScopeCompany, Actor: actor, CompanyIDs: ids}, nil

	case actor.HasRole(models.RoleCondominiumManager):
		managed, err := s.condominiums.ListByManagerID(ctx, actor.ID)
		if err != nil {
			return Scope{}, utils.NewInternal("Failed to resolve managed condominium", err)
		}
		var active []*models.Condominium
		for _, c := range managed {
			if c.IsActive && !c.IsDeleted() {
				active = append(active, c)
			}
		}
		if len(active) != 1 {
			if len(active) > 1 {
				utils.Logger.WithFields(logrus.Fields{
					"manager_id": actor.ID,
					"count":      len(active),
				}).Warn("Manager points at more than one condominium; denying scope")
			}
			return Scope{Kind: ScopeNone, Actor: actor}, nil
		}
		return Scope{Kind: ScopeCondominium, Actor: actor, Condominium: active[0]}, nil

	case actor.HasRole(models.RoleCondominiumStaff), actor.HasRole(models.RoleUnitOwner):
		return Scope{Kind: ScopeSelf, Actor: actor}, nil
	}
	return Scope{Kind: ScopeNone, Actor: actor}, nil
}

func record(scope Scope, d Decision) Decision {
	outcome := "allow"
	if !d.Allowed {
		outcome = "deny"
	}
	metrics.AuthzDecisions.WithLabelValues(scope.Kind.String(), outcome).Inc()
	return d
}

// CanAdministerCompany covers company-level administration: creating and
// editing a company, soft-deleting and restoring it. The owner check uses
// the company row itself so a soft-deleted company can still be restored.
func (s *AuthzService) CanAdministerCompany(scope Scope, company *models.Company) Decision {
	switch scope.Kind {
	case ScopePlatform:
		return record(scope, allow())
	case ScopeCompany:
		if company != nil && company.OwnerPrincipalID == scope.ActorID() {
			return record(scope, allow())
		}
		return record(scope, deny("company is not owned by you"))
	}
	return record(scope, deny("not allowed to administer companies"))
}

// CanOwnCompanies reports whether the actor may create companies for itself.
func (s *AuthzService) CanOwnCompanies(scope Scope) Decision {
	if scope.Kind == ScopeCompany {
		return record(scope, allow())
	}
	return record(scope, deny("only company administrators may own companies"))
}

// CanAdministerCondominium is for company-level decisions about a
// condominium: create, edit, delete, manager (dis)missal. Managers are
// excluded.
func (s *AuthzService) CanAdministerCondominium(scope Scope, companyID uuid.UUID) Decision {
	if scope.Kind != ScopeCompany {
		return record(scope, deny("only the owning company administrator may do this"))
	}
	if !utils.ContainsID(scope.CompanyIDs, companyID) {
		return record(scope, deny("condominium is outside your companies"))
	}
	return record(scope, allow())
}

// CanOperateCondominium is for day-to-day work inside one condominium:
// staff, owners and units. PlatformAdmin has no operational scope.
func (s *AuthzService) CanOperateCondominium(scope Scope, condo *models.Condominium) Decision {
	if condo == nil || condo.ID == uuid.Nil {
		return record(scope, deny("no condominium selected"))
	}
	switch scope.Kind {
	case ScopePlatform:
		return record(scope, deny("platform administrators do not operate condominiums"))
	case ScopeCompany:
		if utils.ContainsID(scope.CompanyIDs, condo.CompanyID) {
			return record(scope, allow())
		}
		return record(scope, deny("%s is outside your companies", condo.Name))
	case ScopeCondominium:
		if scope.Condominium != nil && scope.Condominium.ID == condo.ID {
			return record(scope, allow())
		}
		return record(scope, deny("you only manage %s", scope.Condominium.Name))
	}
	return record(scope, deny("no administrative scope"))
}

// CanOperateUnit resolves the unit's condominium and defers to
// CanOperateCondominium. A dangling parent denies.
func (s *AuthzService) CanOperateUnit(ctx context.Context, scope Scope, unit *models.Unit) (Decision, error) {
	if unit == nil {
		return record(scope, deny("no unit selected")), nil
	}
	condo, err := s.hierarchy.Condominium(ctx, LinkUnitCondominium, unit.ID, &unit.CondominiumID)
	if err != nil {
		return Decision{}, utils.NewInternal("Failed to resolve unit condominium", err)
	}
	if condo == nil {
		return record(scope, deny("unit %s belongs to an unknown condominium", unit.UnitNumber)), nil
	}
	return s.CanOperateCondominium(scope, condo), nil
}

// CanAdministerPrincipal decides user administration over target. It never
// allows acting on oneself; self-service goes through CanViewPrincipal.
func (s *AuthzService) CanAdministerPrincipal(ctx context.Context, scope Scope, target *models.Principal) (Decision, error) {
	if target == nil {
		return record(scope, deny("no user selected")), nil
	}
	if target.ID == scope.ActorID() {
		return record(scope, deny("you cannot administer your own account")), nil
	}

	switch scope.Kind {
	case ScopePlatform:
		return record(scope, allow()), nil

	case ScopeCompany:
		if target.HasRole(models.RolePlatformAdmin) || target.HasRole(models.RoleCompanyAdmin) {
			return record(scope, deny("administrators are managed by the platform")), nil
		}
		if target.CompanyID != nil && utils.ContainsID(scope.CompanyIDs, *target.CompanyID) {
			return record(scope, allow()), nil
		}
		// The denormalized company may be missing or stale; fall back to
		// the authoritative condominium link.
		condo, err := s.hierarchy.Condominium(ctx, LinkPrincipalCondo, target.ID, target.CondominiumID)
		if err != nil {
			return Decision{}, utils.NewInternal("Failed to resolve user condominium", err)
		}
		if condo != nil && utils.ContainsID(scope.CompanyIDs, condo.CompanyID) {
			return record(scope, allow()), nil
		}
		return record(scope, deny("%s is outside your companies", target.DisplayName)), nil

	case ScopeCondominium:
		if target.HasRole(models.RolePlatformAdmin) || target.HasRole(models.RoleCompanyAdmin) ||
			target.HasRole(models.RoleCondominiumManager) {
			return record(scope, deny("managers may only administer staff and owners")), nil
		}
		if utils.SameID(target.CondominiumID, scope.Condominium.ID) {
			return record(scope, allow()), nil
		}
		return record(scope, deny("%s is not in %s", target.DisplayName, scope.Condominium.Name)), nil
	}
	return record(scope, deny("no administrative scope")), nil
}

// CanViewPrincipal additionally allows a principal to see its own record.
func (s *AuthzService) CanViewPrincipal(ctx context.Context, scope Scope, target *models.Principal) (Decision, error) {
	if target != nil && target.ID == scope.ActorID() && scope.Kind != ScopeNone {
		return record(scope, allow()), nil
	}
	return s.CanAdministerPrincipal(ctx, scope, target)
}
