package services

import (
	"context"
	"errors"

	"github.com/condoprime/mono-repo/backend/services/tenancy-service/internal/metrics"
	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
)

// ReconcileReport counts the repairs made by one reconciler pass.
type ReconcileReport struct {
	LockoutsApplied  int `json:"lockouts_applied"`
	LockoutsCleared  int `json:"lockouts_cleared"`
	CascadesFinished int `json:"cascades_finished"`
}

// ReconcilerService finishes multi-store operations that stopped half way:
// lockouts that disagree with the deactivation stamp, and CompanyAdmin
// cascades that left live companies behind. Every repair is idempotent.
type ReconcilerService struct {
	deps      Deps
	lifecycle *LifecycleService
}

func NewReconcilerService(d Deps, lifecycle *LifecycleService) *ReconcilerService {
	return &ReconcilerService{deps: d, lifecycle: lifecycle}
}

func (s *ReconcilerService) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	var failed []error
	now := s.deps.now()

	mismatched, err := s.deps.Principals.ListLockoutMismatches(ctx, now)
	if err != nil {
		return report, utils.NewInternal("Failed to list lockout mismatches", err)
	}
	for _, p := range mismatched {
		if p.IsDeactivated() {
			lockout := models.IndefiniteLockout
			err = s.deps.Principals.SetLockout(ctx, p.ID, &lockout)
		} else {
			err = s.deps.Principals.SetLockout(ctx, p.ID, nil)
		}
		if err != nil {
			utils.Logger.WithError(err).WithField("principal_id", p.ID).Error("Failed to repair lockout")
			failed = append(failed, err)
			continue
		}
		kind := "lockout_cleared"
		if p.IsDeactivated() {
			kind = "lockout_applied"
			report.LockoutsApplied++
		} else {
			report.LockoutsCleared++
		}
		metrics.ReconcilerRepairs.WithLabelValues(kind).Inc()
		utils.Logger.WithFields(logrus.Fields{
			"principal_id": p.ID,
			"repair":       kind,
		}).Warn("Reconciler repaired lockout state")
	}

	admins, err := s.deps.Principals.ListDeactivatedWithRole(ctx, models.RoleCompanyAdmin)
	if err != nil {
		return report, utils.NewInternal("Failed to list deactivated company admins", err)
	}
	for _, admin := range admins {
		live, err := s.deps.Companies.ListByOwnerID(ctx, admin.ID, false)
		if err != nil {
			failed = append(failed, err)
			continue
		}
		if len(live) == 0 {
			continue
		}
		if err := s.lifecycle.cascadeCompanies(ctx, admin); err != nil {
			utils.Logger.WithError(err).WithField("admin_id", admin.ID).Error("Failed to finish company cascade")
			failed = append(failed, err)
			continue
		}
		report.CascadesFinished++
		metrics.ReconcilerRepairs.WithLabelValues("company_cascade").Inc()
		utils.Logger.WithFields(logrus.Fields{
			"admin_id":  admin.ID,
			"companies": len(live),
		}).Warn("Reconciler finished company cascade")
	}

	if len(failed) > 0 {
		return report, utils.NewPartialCompletion("Reconciler pass left repairs undone", errors.Join(failed...))
	}
	return report, nil
}
