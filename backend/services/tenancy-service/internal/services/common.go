package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/notify"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/sirupsen/logrus"
)

// Deps bundles the stores and collaborators shared by the engine services.
type Deps struct {
	Principals   repositories.PrincipalRepository
	Companies    repositories.CompanyRepository
	Condominiums repositories.CondominiumRepository
	Units        repositories.UnitRepository
	AuditLogs    repositories.AuditLogRepository
	SignIns      repositories.SignInAttemptsRepository
	SignInPolicy SignInPolicy
	Notifier     Notifier
	Phone        PhoneValidator
	AppURL       string
	Clock        Clock
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return SystemClock()
	}
	return d.Clock()
}

func (d Deps) hierarchy() *Hierarchy {
	return NewHierarchy(d.Principals, d.Companies, d.Condominiums, d.Units)
}

func (d Deps) auditTrail() auditTrail {
	return auditTrail{repo: d.AuditLogs, now: d.now}
}

func (d Deps) notify(ctx context.Context, msgs ...notify.Message) {
	if d.Notifier != nil {
		d.Notifier.Dispatch(ctx, msgs...)
	}
}

// SignInPolicy throttles failed sign-ins per email. MaxAttempts failures
// inside Window lock the email for LockFor.
type SignInPolicy struct {
	MaxAttempts int
	Window      time.Duration
	LockFor     time.Duration
}

var DefaultSignInPolicy = SignInPolicy{
	MaxAttempts: 10,
	Window:      5 * time.Minute,
	LockFor:     10 * time.Minute,
}

func (d Deps) signInPolicy() SignInPolicy {
	if d.SignInPolicy.MaxAttempts <= 0 {
		return DefaultSignInPolicy
	}
	return d.SignInPolicy
}

// PhoneValidator reports whether number can receive SMS.
type PhoneValidator func(ctx context.Context, number string) (bool, error)

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, msgs ...notify.Message)
}

// Clock returns the current time. Stamps are truncated to the microsecond
// precision Postgres keeps, so equality survives a round trip.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// errUnchanged aborts an UpdateWithRetry whose mutation turned out to be a
// no-op.
var errUnchanged = errors.New("unchanged")

// storeErr maps a repository failure to an AppError. AppErrors raised from
// inside a mutate func pass through untouched.
func storeErr(what string, err error) error {
	var appErr *utils.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, pgx.ErrNoRows):
		return utils.NewNotFound(what + " not found")
	case errors.Is(err, utils.ErrRowVersionConflict):
		return utils.NewRowVersionConflict(what + " was modified concurrently, please retry")
	default:
		return utils.NewInternal("Failed to update "+what, err)
	}
}

// auditTrail writes best-effort audit entries. A failed write is logged and
// never fails the operation that produced it.
type auditTrail struct {
	repo repositories.AuditLogRepository
	now  func() time.Time
}

func (a auditTrail) record(
	ctx context.Context,
	actorID uuid.UUID,
	action models.AuditAction,
	targetType models.AuditTargetType,
	targetID uuid.UUID,
	details any,
) {
	if a.repo == nil {
		return
	}
	entry := &models.AuditLog{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		TargetID:   targetID,
		TargetType: targetType,
		CreatedAt:  a.now(),
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			msg := json.RawMessage(raw)
			entry.Details = &msg
		}
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		utils.Logger.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"target_type": targetType,
			"target_id":   targetID,
		}).Warn("Failed to write audit log entry")
	}
}

func principalEmail(p *models.Principal) string {
	if p == nil {
		return ""
	}
	return p.Email
}

/* ---------- loaders ---------- */

func getPrincipal(ctx context.Context, repo repositories.PrincipalRepository, id uuid.UUID) (*models.Principal, error) {
	if id == uuid.Nil {
		return nil, utils.NewValidation("", "No user selected")
	}
	p, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternal("Failed to load user", err)
	}
	if p == nil {
		return nil, utils.NewNotFound("User not found")
	}
	return p, nil
}

func getCompany(ctx context.Context, repo repositories.CompanyRepository, id uuid.UUID, includeDeleted bool) (*models.Company, error) {
	if id == uuid.Nil {
		return nil, utils.NewValidation("", "No company selected")
	}
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternal("Failed to load company", err)
	}
	if c == nil || (c.IsDeleted() && !includeDeleted) {
		return nil, utils.NewNotFound("Company not found")
	}
	return c, nil
}

func getCondominium(ctx context.Context, repo repositories.CondominiumRepository, id uuid.UUID, includeDeleted bool) (*models.Condominium, error) {
	if id == uuid.Nil {
		return nil, utils.NewValidation("", "No condominium selected")
	}
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternal("Failed to load condominium", err)
	}
	if c == nil || (c.IsDeleted() && !includeDeleted) {
		return nil, utils.NewNotFound("Condominium not found")
	}
	return c, nil
}

func getUnit(ctx context.Context, repo repositories.UnitRepository, id uuid.UUID, includeDeleted bool) (*models.Unit, error) {
	if id == uuid.Nil {
		return nil, utils.NewValidation("", "No unit selected")
	}
	u, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternal("Failed to load unit", err)
	}
	if u == nil || (u.IsDeleted() && !includeDeleted) {
		return nil, utils.NewNotFound("Unit not found")
	}
	return u, nil
}
