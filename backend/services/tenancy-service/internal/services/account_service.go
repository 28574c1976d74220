package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registration is the self-service sign-up of a CompanyAdmin together with
// the first company they own.
type Registration struct {
	Fields          PrincipalFields
	ConfirmPassword string
	CompanyName     string
}

// AccountService covers the identity flows: registration, email
// confirmation, password change and sign-in.
type AccountService struct {
	deps    Deps
	factory *principalFactory
	audit   auditTrail
}

func NewAccountService(d Deps) *AccountService {
	return &AccountService{
		deps:    d,
		factory: newPrincipalFactory(d),
		audit:   d.auditTrail(),
	}
}

// RegisterCompanyAdmin creates a CompanyAdmin and its first company, then
// mails the confirmation link.
func (s *AccountService) RegisterCompanyAdmin(ctx context.Context, reg Registration) (*models.Principal, *models.Company, error) {
	if reg.Fields.Password == "" {
		return nil, nil, utils.NewValidation("", "Password is required")
	}
	if reg.Fields.Password != reg.ConfirmPassword {
		return nil, nil, utils.NewValidation("", "Passwords do not match")
	}
	companyName := strings.TrimSpace(reg.CompanyName)
	if companyName == "" {
		return nil, nil, utils.NewValidation("", "Company name is required")
	}
	fields := reg.Fields
	if err := s.factory.normalize(ctx, &fields); err != nil {
		return nil, nil, err
	}

	now := s.deps.now()
	companyID := uuid.New()
	p := &models.Principal{
		ID:        uuid.New(),
		Roles:     []models.Role{models.RoleCompanyAdmin},
		CompanyID: &companyID,
		CreatedAt: now,
	}
	admin, welcome, err := s.factory.create(ctx, p, fields)
	if err != nil {
		return nil, nil, err
	}

	company := &models.Company{
		ID:               companyID,
		Name:             companyName,
		OwnerPrincipalID: admin.ID,
		ContactEmail:     admin.Email,
		IsActive:         true,
		Audit:            models.Audit{CreatedAt: now, CreatedBy: &admin.ID},
	}
	if err := s.deps.Companies.Create(ctx, company); err != nil {
		utils.Logger.WithError(err).WithFields(logrus.Fields{
			"principal_id": admin.ID,
		}).Error("Registered admin but failed to create the company")
		s.deps.notify(ctx, welcome)
		return admin, nil, utils.NewPartialCompletion("Account created but the company was not; sign in and create it", err)
	}

	s.audit.record(ctx, admin.ID, models.AuditCreate, models.TargetPrincipal, admin.ID, map[string]any{"role": models.RoleCompanyAdmin})
	s.audit.record(ctx, admin.ID, models.AuditCreate, models.TargetCompany, company.ID, map[string]any{"name": company.Name})
	s.deps.notify(ctx, welcome)
	return admin, company, nil
}

// ConfirmEmail consumes a confirmation token.
func (s *AccountService) ConfirmEmail(ctx context.Context, principalID uuid.UUID, token string) error {
	if principalID == uuid.Nil || strings.TrimSpace(token) == "" {
		return utils.NewValidation("", "Invalid confirmation link")
	}
	ok, err := s.deps.Principals.ConfirmEmail(ctx, principalID, utils.HashToken(strings.TrimSpace(token)))
	if err != nil {
		return utils.NewInternal("Failed to confirm email", err)
	}
	if !ok {
		return utils.NewValidation("", "Invalid or expired confirmation link")
	}
	return nil
}

func (s *AccountService) ChangePassword(ctx context.Context, actor *models.Principal, oldPassword, newPassword, confirmPassword string) error {
	if actor == nil {
		return utils.NewUnauthenticated(utils.ErrCodeUnauthorized, "Not signed in")
	}
	if newPassword != confirmPassword {
		return utils.NewValidation("", "Passwords do not match")
	}
	if len(newPassword) < utils.MinPasswordLength {
		return utils.NewValidation("", fmt.Sprintf("Password must be at least %d characters", utils.MinPasswordLength))
	}
	hash, err := s.deps.Principals.GetPasswordHash(ctx, actor.ID)
	if err != nil {
		return utils.NewInternal("Failed to load credentials", err)
	}
	if !utils.CheckPasswordHash(oldPassword, hash) {
		return utils.NewValidation("", "Current password is incorrect")
	}
	newHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return utils.NewInternal("Failed to hash password", err)
	}
	if err := s.deps.Principals.SetPasswordHash(ctx, actor.ID, newHash); err != nil {
		return utils.NewInternal("Failed to change password", err)
	}
	s.audit.record(ctx, actor.ID, models.AuditUpdate, models.TargetPrincipal, actor.ID, map[string]any{"field": "password"})
	return nil
}

// SignIn checks credentials and the lockout and confirmation gates. The
// credential check comes first so the gates never reveal which emails exist.
// Failed attempts are throttled per normalized email, known or not.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*models.Principal, error) {
	invalid := utils.NewUnauthenticated(utils.ErrCodeInvalidCredentials, "Invalid email or password")
	email = utils.NormalizeEmail(email)
	now := s.deps.now()

	if s.deps.SignIns != nil {
		until, err := s.deps.SignIns.LockedUntil(ctx, email, now)
		if err != nil {
			return nil, utils.NewInternal("Failed to sign in", err)
		}
		if until != nil {
			return nil, utils.NewRateLimitExceeded(
				fmt.Sprintf("Too many failed sign-in attempts; try again after %s", until.Format(time.RFC3339)))
		}
	}

	p, err := s.deps.Principals.FindByEmail(ctx, email)
	if err != nil {
		return nil, utils.NewInternal("Failed to sign in", err)
	}
	if p == nil {
		s.recordFailure(ctx, email, now)
		return nil, invalid
	}
	hash, err := s.deps.Principals.GetPasswordHash(ctx, p.ID)
	if err != nil {
		return nil, utils.NewInternal("Failed to sign in", err)
	}
	if !utils.CheckPasswordHash(password, hash) {
		s.recordFailure(ctx, email, now)
		return nil, invalid
	}
	if s.deps.SignIns != nil {
		if err := s.deps.SignIns.Reset(ctx, email); err != nil {
			utils.Logger.WithError(err).WithField("email", email).Warn("Failed to reset sign-in attempts")
		}
	}
	if p.IsLockedOut(now) || p.IsDeactivated() {
		return nil, utils.NewUnauthenticated(utils.ErrCodeLockedAccount, "This account is locked")
	}
	if !p.EmailConfirmed {
		return nil, utils.NewUnauthenticated(utils.ErrCodeEmailNotConfirmed, "Please confirm your email first")
	}
	return p, nil
}

// recordFailure never fails the sign-in itself; a broken counter only
// weakens throttling.
func (s *AccountService) recordFailure(ctx context.Context, email string, now time.Time) {
	if s.deps.SignIns == nil {
		return
	}
	policy := s.deps.signInPolicy()
	attempts, err := s.deps.SignIns.RecordFailure(ctx, email, now, policy.LockFor, policy.Window, policy.MaxAttempts)
	if err != nil {
		utils.Logger.WithError(err).WithField("email", email).Error("Failed to record sign-in failure")
		return
	}
	if attempts.LockedUntil != nil {
		utils.Logger.WithFields(logrus.Fields{
			"email":        email,
			"attempts":     attempts.AttemptCount,
			"locked_until": attempts.LockedUntil,
		}).Warn("Sign-in throttled after repeated failures")
	}
}
