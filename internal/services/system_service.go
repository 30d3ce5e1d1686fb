package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/repositories"
)

// SystemServiceDeps lists the collaborators for NewSystemService.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
}

type systemService struct {
	health repositories.HealthRepository
	now    func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService builds the service that backs the readiness probe. All
// timestamps it stamps are UTC.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	base := deps.Clock
	if base == nil {
		base = time.Now
	}
	return &systemService{
		health: deps.HealthRepository,
		now:    func() time.Time { return base().UTC() },
	}, nil
}

// Health aggregates dependency probe results into a single report.
func (s *systemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("system service: context is required")
	}
	report, err := s.health.Collect(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, err
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = s.now()
	}
	return report, nil
}
