package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
)

func TestHealthRepositoryReportsAllChecksHealthy(t *testing.T) {
	fixed := time.Date(2026, time.February, 10, 9, 30, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "firestore", Check: func(ctx context.Context) error {
			select {
			case <-time.After(5 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		{Name: "pubsub", Check: func(context.Context) error { return nil }},
		{Name: "storage", Check: func(context.Context) error { return nil }},
	}, WithDependencyClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if report.Status != domain.HealthStatusOK {
		t.Fatalf("report status = %s, want ok", report.Status)
	}
	if got := len(report.Checks); got != 3 {
		t.Fatalf("check count = %d, want 3", got)
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK {
			t.Fatalf("check %s status = %s, want ok", name, check.Status)
		}
		if !check.CheckedAt.Equal(fixed) {
			t.Fatalf("check %s checkedAt = %s, want %s", name, check.CheckedAt, fixed)
		}
	}
	if !report.GeneratedAt.Equal(fixed) {
		t.Fatalf("generatedAt = %s, want %s", report.GeneratedAt, fixed)
	}
}

func TestHealthRepositoryDegradesOnProbeError(t *testing.T) {
	probeErr := errors.New("connection refused")
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "firestore", Check: func(context.Context) error { return probeErr }},
		{Name: "pubsub", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("report status = %s, want degraded", report.Status)
	}
	firestore := report.Checks["firestore"]
	if firestore.Status != domain.HealthStatusDegraded {
		t.Fatalf("firestore status = %s, want degraded", firestore.Status)
	}
	if firestore.Error != probeErr.Error() {
		t.Fatalf("firestore error = %q, want %q", firestore.Error, probeErr.Error())
	}
	if pubsub := report.Checks["pubsub"]; pubsub.Status != domain.HealthStatusOK {
		t.Fatalf("pubsub status = %s, want ok", pubsub.Status)
	}
}

func TestHealthRepositoryMarksTimedOutProbeAsError(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "secrets", Timeout: 5 * time.Millisecond, Check: func(ctx context.Context) error {
			select {
			case <-time.After(50 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if report.Status != domain.HealthStatusError {
		t.Fatalf("report status = %s, want error", report.Status)
	}
	check := report.Checks["secrets"]
	if check.Detail != "timeout" {
		t.Fatalf("detail = %q, want timeout", check.Detail)
	}
}

func TestHealthRepositoryRejectsInvalidChecks(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty check set")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: ""}}); err == nil {
		t.Fatal("expected error for unnamed check")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "firestore"}}); err == nil {
		t.Fatal("expected error for check without function")
	}
}
