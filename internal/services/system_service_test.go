package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/repositories"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build: BuildInfo{
			Version:     "1.2.3",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}

	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if report.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %s", report.Version)
	}
	if report.CommitSHA != "abc123" {
		t.Fatalf("expected commit abc123, got %s", report.CommitSHA)
	}
	if report.Environment != "prod" {
		t.Fatalf("expected environment prod, got %s", report.Environment)
	}
	if report.Uptime != now.Sub(start) {
		t.Fatalf("expected uptime %s, got %s", now.Sub(start), report.Uptime)
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestSystemServiceHealthReportErrors(t *testing.T) {
	expected := errors.New("collect failed")
	repo := &stubHealthRepository{err: expected}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	_, err = svc.HealthReport(context.Background())
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	_, err := NewSystemService(SystemServiceDeps{})
	if err == nil {
		t.Fatalf("expected error when repository missing")
	}
}

func TestSystemServiceDerivesStatusWhenMissing(t *testing.T) {
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"redis":     {Status: domain.HealthStatusDegraded},
				"firestore": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected status degraded, got %s", report.Status)
	}
}

var _ repositories.HealthRepository = (*stubHealthRepository)(nil)
