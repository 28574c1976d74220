package services

import (
	"context"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/condoprime/mono-repo/backend/shared/go-utils"
)

// SignInCleanupService removes stale sign-in throttle counters.
type SignInCleanupService struct {
	repo   repositories.SignInAttemptsRepository
	now    Clock
	maxAge time.Duration
}

func NewSignInCleanupService(d Deps) *SignInCleanupService {
	return &SignInCleanupService{repo: d.SignIns, now: d.now, maxAge: 24 * time.Hour}
}

// CleanupDaily purges counters untouched for a day and logs the outcome.
func (s *SignInCleanupService) CleanupDaily(ctx context.Context) (int64, error) {
	purged, err := s.repo.PurgeStale(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		utils.Logger.WithError(err).Error("Failed to clean up sign_in_attempts")
		return 0, err
	}
	utils.Logger.WithField("purged", purged).Info("Daily sign-in attempt cleanup completed successfully.")
	return purged, nil
}
