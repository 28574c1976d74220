package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
)

type CompanyInput struct {
	Name         string
	ContactEmail string
	// OwnerID is required when a PlatformAdmin creates a company on behalf
	// of a CompanyAdmin and ignored otherwise.
	OwnerID uuid.UUID
}

type CompanyPatch struct {
	Name         *string
	ContactEmail *string
}

type CondominiumInput struct {
	CompanyID      uuid.UUID
	Name           string
	Address        string
	City           string
	ZipCode        string
	RegistryNumber string
}

type CondominiumPatch struct {
	Name           *string
	Address        *string
	City           *string
	ZipCode        *string
	RegistryNumber *string
	IsActive       *bool
}

type UnitInput struct {
	CondominiumID uuid.UUID
	UnitNumber    string
	Floor         string
}

type UnitPatch struct {
	UnitNumber *string
	Floor      *string
	IsActive   *bool
}

// CondominiumView is a condominium with its cross-store links resolved.
type CondominiumView struct {
	*models.Condominium
	CompanyName string `json:"company_name"`
	ManagerName string `json:"manager_name"`
}

type UnitView struct {
	*models.Unit
	CondominiumName string `json:"condominium_name"`
	OwnerName       string `json:"owner_name"`
}

type PrincipalView struct {
	*models.Principal
	CompanyName     string `json:"company_name"`
	CondominiumName string `json:"condominium_name"`
	Deactivated     bool   `json:"deactivated"`
}

// TenancyService covers create, update and listing of the hierarchy.
type TenancyService struct {
	deps      Deps
	authz     *AuthzService
	hierarchy *Hierarchy
	audit     auditTrail
}

func NewTenancyService(d Deps, authz *AuthzService) *TenancyService {
	return &TenancyService{
		deps:      d,
		authz:     authz,
		hierarchy: d.hierarchy(),
		audit:     d.auditTrail(),
	}
}

/* ---------- companies ---------- */

func (s *TenancyService) CreateCompany(ctx context.Context, actor *models.Principal, in CompanyInput) (*models.Company, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	ownerID := scope.ActorID()
	switch scope.Kind {
	case ScopeCompany:
	case ScopePlatform:
		owner, err := getPrincipal(ctx, s.deps.Principals, in.OwnerID)
		if err != nil {
			return nil, err
		}
		if !owner.HasRole(models.RoleCompanyAdmin) || owner.IsDeactivated() {
			return nil, utils.NewInvalidState(fmt.Sprintf("%s is not an active company administrator", owner.DisplayName))
		}
		ownerID = owner.ID
	default:
		return nil, s.authz.CanOwnCompanies(scope).Err()
	}

	name := strings.TrimSpace(in.Name)
	email := utils.NormalizeEmail(in.ContactEmail)
	if name == "" {
		return nil, utils.NewValidation("", "Company name is required")
	}
	if !utils.IsValidEmail(email) {
		return nil, utils.NewValidation("", "Invalid contact email")
	}

	now := s.deps.now()
	c := &models.Company{
		ID:               uuid.New(),
		Name:             name,
		OwnerPrincipalID: ownerID,
		ContactEmail:     email,
		IsActive:         true,
		Audit:            models.Audit{CreatedAt: now, CreatedBy: utils.Ptr(scope.ActorID())},
	}
	if err := s.deps.Companies.Create(ctx, c); err != nil {
		return nil, utils.NewInternal("Failed to create company", err)
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditCreate, models.TargetCompany, c.ID, map[string]any{"name": c.Name})
	return c, nil
}

func (s *TenancyService) UpdateCompany(ctx context.Context, actor *models.Principal, id uuid.UUID, patch CompanyPatch) (*models.Company, error) {
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
	if company.IsDeleted() {
		return nil, utils.NewInvalidState(fmt.Sprintf("%s is deleted", company.Name))
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, utils.NewValidation("", "Company name is required")
	}
	if patch.ContactEmail != nil && !utils.IsValidEmail(utils.NormalizeEmail(*patch.ContactEmail)) {
		return nil, utils.NewValidation("", "Invalid contact email")
	}

	now := s.deps.now()
	var updated *models.Company
	err = s.deps.Companies.UpdateWithRetry(ctx, id, func(c *models.Company) error {
		if patch.Name != nil {
			c.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.ContactEmail != nil {
			c.ContactEmail = utils.NormalizeEmail(*patch.ContactEmail)
		}
		c.StampUpdated(scope.ActorID(), now)
		updated = c
		return nil
	})
	if err != nil {
		return nil, storeErr("company", err)
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditUpdate, models.TargetCompany, id, patch)
	return updated, nil
}

// ListCompanies returns every company to a PlatformAdmin and the owned
// ones, deleted included, to a CompanyAdmin.
func (s *TenancyService) ListCompanies(ctx context.Context, actor *models.Principal) ([]*models.Company, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	var out []*models.Company
	switch scope.Kind {
	case ScopePlatform:
		out, err = s.deps.Companies.ListAll(ctx)
	case ScopeCompany:
		out, err = s.deps.Companies.ListByOwnerID(ctx, scope.ActorID(), true)
	default:
		return nil, s.authz.CanOwnCompanies(scope).Err()
	}
	if err != nil {
		return nil, utils.NewInternal("Failed to list companies", err)
	}
	return out, nil
}

/* ---------- condominiums ---------- */

func (s *TenancyService) CreateCondominium(ctx context.Context, actor *models.Principal, in CondominiumInput) (*models.Condominium, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	companyID := in.CompanyID
	if companyID == uuid.Nil && scope.Kind == ScopeCompany && len(scope.CompanyIDs) == 1 {
		companyID = scope.CompanyIDs[0]
	}
	if companyID == uuid.Nil && scope.Kind == ScopeCompany {
		return nil, utils.NewValidation("", "Select a company")
	}
	if err := s.authz.CanAdministerCondominium(scope, companyID).Err(); err != nil {
		return nil, err
	}

	c := &models.Condominium{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Name:           strings.TrimSpace(in.Name),
		Address:        strings.TrimSpace(in.Address),
		City:           strings.TrimSpace(in.City),
		ZipCode:        strings.TrimSpace(in.ZipCode),
		RegistryNumber: strings.TrimSpace(in.RegistryNumber),
		IsActive:       true,
		Audit:          models.Audit{CreatedAt: s.deps.now(), CreatedBy: utils.Ptr(scope.ActorID())},
	}
	if c.Name == "" || c.RegistryNumber == "" {
		return nil, utils.NewValidation("", "Name and registry number are required")
	}
	if err := s.checkRegistryNumber(ctx, companyID, c.RegistryNumber, nil); err != nil {
		return nil, err
	}
	if err := s.deps.Condominiums.Create(ctx, c); err != nil {
		if repositories.IsUniqueViolation(err, repositories.ConstraintCondominiumRegistry) {
			return nil, duplicateRegistry(c.RegistryNumber)
		}
		return nil, utils.NewInternal("Failed to create condominium", err)
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditCreate, models.TargetCondominium, c.ID, map[string]any{
		"name":            c.Name,
		"registry_number": c.RegistryNumber,
	})
	return c, nil
}

func (s *TenancyService) UpdateCondominium(ctx context.Context, actor *models.Principal, id uuid.UUID, patch CondominiumPatch) (*models.Condominium, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanAdministerCondominium(scope, condo.CompanyID).Err(); err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, utils.NewValidation("", "Name is required")
	}
	if patch.RegistryNumber != nil {
		value := strings.TrimSpace(*patch.RegistryNumber)
		if value == "" {
			return nil, utils.NewValidation("", "Registry number is required")
		}
		if err := s.checkRegistryNumber(ctx, condo.CompanyID, value, &condo.ID); err != nil {
			return nil, err
		}
	}

	now := s.deps.now()
	if utils.Val(patch.IsActive) && !condo.IsActive {
		if err := releaseStaleManager(ctx, s.deps, scope.ActorID(), condo, now); err != nil {
			return nil, err
		}
	}
	var updated *models.Condominium
	err = s.deps.Condominiums.UpdateWithRetry(ctx, id, func(c *models.Condominium) error {
		applyString(&c.Name, patch.Name)
		applyString(&c.Address, patch.Address)
		applyString(&c.City, patch.City)
		applyString(&c.ZipCode, patch.ZipCode)
		applyString(&c.RegistryNumber, patch.RegistryNumber)
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}
		c.StampUpdated(scope.ActorID(), now)
		updated = c
		return nil
	})
	if err != nil {
		if repositories.IsUniqueViolation(err, repositories.ConstraintCondominiumRegistry) {
			return nil, duplicateRegistry(utils.Val(patch.RegistryNumber))
		}
		return nil, storeErr("condominium", err)
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditUpdate, models.TargetCondominium, id, patch)
	return updated, nil
}

func (s *TenancyService) checkRegistryNumber(ctx context.Context, companyID uuid.UUID, value string, excludeID *uuid.UUID) error {
	exists, err := s.deps.Condominiums.RegistryNumberExists(ctx, companyID, value, excludeID)
	if err != nil {
		return utils.NewInternal("Failed to check registry number", err)
	}
	if exists {
		return duplicateRegistry(value)
	}
	return nil
}

func duplicateRegistry(value string) error {
	return utils.NewValidation(utils.ErrCodeDuplicateRegistryNumber,
		fmt.Sprintf("Registry number %s is already used in this company", strings.TrimSpace(value)))
}

// ListCondominiums lists the condominiums in the actor's scope with company
// and manager names resolved. Dangling links render as "unknown".
func (s *TenancyService) ListCondominiums(ctx context.Context, actor *models.Principal, includeDeleted bool) ([]CondominiumView, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	var condos []*models.Condominium
	switch scope.Kind {
	case ScopeCompany:
		if len(scope.CompanyIDs) > 0 {
			condos, err = s.deps.Condominiums.ListByCompanyIDs(ctx, scope.CompanyIDs)
			if err != nil {
				return nil, utils.NewInternal("Failed to list condominiums", err)
			}
		}
	case ScopeCondominium:
		condos = []*models.Condominium{scope.Condominium}
	default:
		return nil, record(scope, deny("no condominium scope")).Err()
	}

	views := make([]CondominiumView, 0, len(condos))
	for _, c := range condos {
		if c.IsDeleted() && !includeDeleted {
			continue
		}
		v, err := s.condominiumView(ctx, c)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *TenancyService) condominiumView(ctx context.Context, c *models.Condominium) (CondominiumView, error) {
	companyName, err := s.hierarchy.CompanyName(ctx, LinkCondominiumCompany, c.ID, &c.CompanyID)
	if err != nil {
		return CondominiumView{}, utils.NewInternal("Failed to resolve company", err)
	}
	managerName, err := s.hierarchy.PrincipalName(ctx, LinkCondominiumManager, c.ID, c.ManagerPrincipalID)
	if err != nil {
		return CondominiumView{}, utils.NewInternal("Failed to resolve manager", err)
	}
	return CondominiumView{Condominium: c, CompanyName: companyName, ManagerName: managerName}, nil
}

/* ---------- units ---------- */

func (s *TenancyService) CreateUnit(ctx context.Context, actor *models.Principal, in UnitInput) (*models.Unit, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	condoID := in.CondominiumID
	if condoID == uuid.Nil && scope.Kind == ScopeCondominium {
		condoID = scope.Condominium.ID
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, condoID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanOperateCondominium(scope, condo).Err(); err != nil {
		return nil, err
	}

	u := &models.Unit{
		ID:            uuid.New(),
		CondominiumID: condo.ID,
		UnitNumber:    strings.TrimSpace(in.UnitNumber),
		Floor:         strings.TrimSpace(in.Floor),
		IsActive:      true,
		Audit:         models.Audit{CreatedAt: s.deps.now(), CreatedBy: utils.Ptr(scope.ActorID())},
	}
	if u.UnitNumber == "" {
		return nil, utils.NewValidation("", "Unit number is required")
	}
	if err := s.checkUnitNumber(ctx, condo, u.UnitNumber, nil); err != nil {
		return nil, err
	}
	if err := s.deps.Units.Create(ctx, u); err != nil {
		if repositories.IsUniqueViolation(err, repositories.ConstraintUnitNumber) {
			return nil, duplicateUnit(u.UnitNumber, condo.Name)
		}
		return nil, utils.NewInternal("Failed to create unit", err)
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditCreate, models.TargetUnit, u.ID, map[string]any{
		"unit_number":    u.UnitNumber,
		"condominium_id": condo.ID,
	})
	return u, nil
}

func (s *TenancyService) UpdateUnit(ctx context.Context, actor *models.Principal, id uuid.UUID, patch UnitPatch) (*models.Unit, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	unit, err := getUnit(ctx, s.deps.Units, id, false)
	if err != nil {
		return nil, err
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, unit.CondominiumID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanOperateCondominium(scope, condo).Err(); err != nil {
		return nil, err
	}
	if patch.UnitNumber != nil {
		value := strings.TrimSpace(*patch.UnitNumber)
		if value == "" {
			return nil, utils.NewValidation("", "Unit number is required")
		}
		if err := s.checkUnitNumber(ctx, condo, value, &unit.ID); err != nil {
			return nil, err
		}
	}

	now := s.deps.now()
	if utils.Val(patch.IsActive) && !unit.IsActive {
		if err := releaseStaleOwner(ctx, s.deps, scope.ActorID(), unit, now); err != nil {
			return nil, err
		}
	}
	var updated *models.Unit
	err = s.deps.Units.UpdateWithRetry(ctx, id, func(u *models.Unit) error {
		applyString(&u.UnitNumber, patch.UnitNumber)
		applyString(&u.Floor, patch.Floor)
		if patch.IsActive != nil {
			u.IsActive = *patch.IsActive
		}
		u.StampUpdated(scope.ActorID(), now)
		updated = u
		return nil
	})
	if err != nil {
		if repositories.IsUniqueViolation(err, repositories.ConstraintUnitNumber) {
			return nil, duplicateUnit(utils.Val(patch.UnitNumber), condo.Name)
		}
		return nil, storeErr("unit", err)
	}
	s.audit.record(ctx, scope.ActorID(), models.AuditUpdate, models.TargetUnit, id, patch)
	return updated, nil
}

func (s *TenancyService) checkUnitNumber(ctx context.Context, condo *models.Condominium, value string, excludeID *uuid.UUID) error {
	exists, err := s.deps.Units.UnitNumberExists(ctx, condo.ID, value, excludeID)
	if err != nil {
		return utils.NewInternal("Failed to check unit number", err)
	}
	if exists {
		return duplicateUnit(value, condo.Name)
	}
	return nil
}

func duplicateUnit(value, condoName string) error {
	return utils.NewValidation(utils.ErrCodeDuplicateUnitNumber,
		fmt.Sprintf("Unit %s already exists in %s", strings.TrimSpace(value), condoName))
}

func (s *TenancyService) ListUnits(ctx context.Context, actor *models.Principal, condoID uuid.UUID, includeDeleted bool) ([]UnitView, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if condoID == uuid.Nil && scope.Kind == ScopeCondominium {
		condoID = scope.Condominium.ID
	}
	condo, err := getCondominium(ctx, s.deps.Condominiums, condoID, false)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanOperateCondominium(scope, condo).Err(); err != nil {
		return nil, err
	}
	units, err := s.deps.Units.ListByCondominiumID(ctx, condo.ID)
	if err != nil {
		return nil, utils.NewInternal("Failed to list units", err)
	}

	views := make([]UnitView, 0, len(units))
	for _, u := range units {
		if u.IsDeleted() && !includeDeleted {
			continue
		}
		ownerName, err := s.hierarchy.PrincipalName(ctx, LinkUnitOwner, u.ID, u.OwnerPrincipalID)
		if err != nil {
			return nil, utils.NewInternal("Failed to resolve unit owner", err)
		}
		views = append(views, UnitView{Unit: u, CondominiumName: condo.Name, OwnerName: ownerName})
	}
	return views, nil
}

/* ---------- principals ---------- */

// ListPrincipals lists the principals the actor administers. Staff and
// owners only see themselves.
func (s *TenancyService) ListPrincipals(ctx context.Context, actor *models.Principal) ([]PrincipalView, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	var principals []*models.Principal
	switch scope.Kind {
	case ScopePlatform:
		principals, err = s.deps.Principals.ListAll(ctx)
	case ScopeCompany:
		if len(scope.CompanyIDs) > 0 {
			principals, err = s.deps.Principals.ListByCompanyIDs(ctx, scope.CompanyIDs)
		}
	case ScopeCondominium:
		principals, err = s.deps.Principals.ListByCondominiumID(ctx, scope.Condominium.ID)
	case ScopeSelf:
		principals = []*models.Principal{scope.Actor}
	default:
		return nil, record(scope, deny("no administrative scope")).Err()
	}
	if err != nil {
		return nil, utils.NewInternal("Failed to list users", err)
	}

	views := make([]PrincipalView, 0, len(principals))
	for _, p := range principals {
		if scope.Kind == ScopeCompany && (p.HasRole(models.RoleCompanyAdmin) || p.HasRole(models.RolePlatformAdmin)) && p.ID != scope.ActorID() {
			continue
		}
		v, err := s.principalView(ctx, p)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *TenancyService) GetPrincipal(ctx context.Context, actor *models.Principal, id uuid.UUID) (*PrincipalView, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	target, err := getPrincipal(ctx, s.deps.Principals, id)
	if err != nil {
		return nil, err
	}
	d, err := s.authz.CanViewPrincipal(ctx, scope, target)
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	v, err := s.principalView(ctx, target)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *TenancyService) principalView(ctx context.Context, p *models.Principal) (PrincipalView, error) {
	companyName, err := s.hierarchy.CompanyName(ctx, LinkPrincipalCompany, p.ID, p.CompanyID)
	if err != nil {
		return PrincipalView{}, utils.NewInternal("Failed to resolve company", err)
	}
	condoName, err := s.hierarchy.CondominiumName(ctx, LinkPrincipalCondo, p.ID, p.CondominiumID)
	if err != nil {
		return PrincipalView{}, utils.NewInternal("Failed to resolve condominium", err)
	}
	return PrincipalView{
		Principal:       p,
		CompanyName:     companyName,
		CondominiumName: condoName,
		Deactivated:     p.IsDeactivated(),
	}, nil
}

/* ---------- audit trail ---------- */

// ListAuditTrail returns the audit entries of one target. PlatformAdmin
// sees every trail; a CompanyAdmin sees trails inside its companies.
func (s *TenancyService) ListAuditTrail(ctx context.Context, actor *models.Principal, targetType models.AuditTargetType, targetID uuid.UUID) ([]*models.AuditLog, error) {
	scope, err := s.authz.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if scope.Kind != ScopePlatform {
		if scope.Kind != ScopeCompany {
			return nil, record(scope, deny("audit trails are for administrators")).Err()
		}
		if err := s.checkAuditScope(ctx, scope, targetType, targetID); err != nil {
			return nil, err
		}
	}
	entries, err := s.deps.AuditLogs.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, utils.NewInternal("Failed to list audit trail", err)
	}
	return entries, nil
}

func (s *TenancyService) checkAuditScope(ctx context.Context, scope Scope, targetType models.AuditTargetType, targetID uuid.UUID) error {
	switch targetType {
	case models.TargetCompany:
		c, err := getCompany(ctx, s.deps.Companies, targetID, true)
		if err != nil {
			return err
		}
		return s.authz.CanAdministerCompany(scope, c).Err()
	case models.TargetCondominium:
		c, err := getCondominium(ctx, s.deps.Condominiums, targetID, true)
		if err != nil {
			return err
		}
		return s.authz.CanAdministerCondominium(scope, c.CompanyID).Err()
	case models.TargetUnit:
		u, err := getUnit(ctx, s.deps.Units, targetID, true)
		if err != nil {
			return err
		}
		d, err := s.authz.CanOperateUnit(ctx, scope, u)
		if err != nil {
			return err
		}
		return d.Err()
	case models.TargetPrincipal:
		p, err := getPrincipal(ctx, s.deps.Principals, targetID)
		if err != nil {
			return err
		}
		d, err := s.authz.CanViewPrincipal(ctx, scope, p)
		if err != nil {
			return err
		}
		return d.Err()
	}
	return utils.NewValidation("", fmt.Sprintf("Unknown target type %q", targetType))
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
