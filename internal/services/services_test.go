package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/models"
)

// testEnv wires the full in-memory core with a frozen clock.
type testEnv struct {
	dir     *DirectoryService
	ledger  *LedgerService
	notif   *NotificationService
	reports *ReportService
	votes   *VoteService
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop().Sugar()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	dir, err := NewDirectoryService(context.Background(), nil, logger)
	require.NoError(t, err)

	ledger := NewLedgerService(dir, logger)
	notif := NewNotificationService(dir, clock, 5.0, logger)
	reports := NewReportService(dir, ledger, notif, clock, logger)
	votes := NewVoteService(reports, dir, logger)

	return &testEnv{
		dir:     dir,
		ledger:  ledger,
		notif:   notif,
		reports: reports,
		votes:   votes,
		clock:   clock,
	}
}

func (e *testEnv) citizen(t *testing.T, name string) models.Identity {
	t.Helper()
	id, err := e.dir.Register(context.Background(), models.RoleCitizen, name, name+"@test.example", "secret123", nil)
	require.NoError(t, err)
	return id
}

func (e *testEnv) authority(t *testing.T, name string, lat, lng float64) models.Identity {
	t.Helper()
	id, err := e.dir.Register(context.Background(), models.RoleAuthority, name, name+"@gov.example", "secret123",
		&models.Location{Latitude: lat, Longitude: lng})
	require.NoError(t, err)
	return id
}

func (e *testEnv) submit(t *testing.T, reporter models.Identity, severity models.Severity, lat, lng float64) models.Report {
	t.Helper()
	report, err := e.reports.Create(reporter.ID, models.ReportSubmission{
		Latitude:  lat,
		Longitude: lng,
		Severity:  severity,
	})
	require.NoError(t, err)
	return report
}
