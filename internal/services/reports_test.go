package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/hazard-server/internal/models"
)

func TestCreate_RejectsNonCitizenReporter(t *testing.T) {
	env := newTestEnv(t)
	authority := env.authority(t, "works", 40.71, -74.00)

	_, err := env.reports.Create(authority.ID, models.ReportSubmission{
		Latitude: 40.70, Longitude: -74.00, Severity: models.SeverityHigh,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreate_DerivesSeverityFromDetection(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")

	report, err := env.reports.Create(alice.ID, models.ReportSubmission{
		Latitude:  40.70,
		Longitude: -74.00,
		Detection: &models.DetectionResult{Class: "pothole", Confidence: 0.91, RelativeSize: 0.62},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, report.Severity)
	assert.Equal(t, models.VerificationPending, report.VerificationState)
	assert.Equal(t, models.FixingPending, report.FixingState)
}

func TestSetVerification_AwardsExactlyOnePoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)
	report := env.submit(t, alice, models.SeverityHigh, 40.70, -74.00)

	require.NoError(t, env.reports.SetVerification(works.ID, report.ID, models.VerificationVerified, ""))

	balance, err := env.ledger.BalanceFor(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.PointBalance)
	assert.Equal(t, models.BadgeNone, balance.BadgeTier)
}

func TestSetVerification_TerminalStateIsFinal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)
	report := env.submit(t, alice, models.SeverityHigh, 40.70, -74.00)

	require.NoError(t, env.reports.SetVerification(works.ID, report.ID, models.VerificationVerified, ""))

	// A retried or repeated verification must fail cleanly and leave the
	// ledger untouched. No double point awards.
	err := env.reports.SetVerification(works.ID, report.ID, models.VerificationVerified, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	err = env.reports.SetVerification(works.ID, report.ID, models.VerificationRejected, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	balance, berr := env.ledger.BalanceFor(alice.ID)
	require.NoError(t, berr)
	assert.Equal(t, 1, balance.PointBalance)

	after, gerr := env.reports.Get(report.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.VerificationVerified, after.VerificationState)
}

func TestSetVerification_CitizenForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	bob := env.citizen(t, "bob")
	report := env.submit(t, alice, models.SeverityLow, 40.70, -74.00)

	err := env.reports.SetVerification(bob.ID, report.ID, models.VerificationVerified, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSetVerification_RejectionCascadesToFixingState(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)
	report := env.submit(t, alice, models.SeverityLow, 40.70, -74.00)

	require.NoError(t, env.reports.SetVerification(works.ID, report.ID, models.VerificationRejected, ""))

	after, err := env.reports.Get(report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRejected, after.VerificationState)
	assert.Equal(t, models.FixingRejected, after.FixingState)
}

func TestSetFixingState_ForwardOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)
	report := env.submit(t, alice, models.SeverityMedium, 40.70, -74.00)

	// Pending cannot jump straight to Resolved.
	err := env.reports.SetFixingState(works.ID, report.ID, models.FixingResolved)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, env.reports.SetFixingState(works.ID, report.ID, models.FixingInProgress))
	require.NoError(t, env.reports.SetFixingState(works.ID, report.ID, models.FixingResolved))

	// Resolved is terminal: no going back.
	err = env.reports.SetFixingState(works.ID, report.ID, models.FixingInProgress)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSetFixingState_RejectedFromAnyNonTerminal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)

	r1 := env.submit(t, alice, models.SeverityLow, 40.70, -74.00)
	require.NoError(t, env.reports.SetFixingState(works.ID, r1.ID, models.FixingRejected))

	r2 := env.submit(t, alice, models.SeverityLow, 40.70, -74.00)
	require.NoError(t, env.reports.SetFixingState(works.ID, r2.ID, models.FixingInProgress))
	require.NoError(t, env.reports.SetFixingState(works.ID, r2.ID, models.FixingRejected))

	// But not from a terminal state.
	err := env.reports.SetFixingState(works.ID, r1.ID, models.FixingRejected)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDelete_ReversesVerificationAward(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)
	report := env.submit(t, alice, models.SeverityHigh, 40.70, -74.00)

	require.NoError(t, env.reports.SetVerification(works.ID, report.ID, models.VerificationVerified, ""))
	balance, _ := env.ledger.BalanceFor(alice.ID)
	require.Equal(t, 1, balance.PointBalance)

	require.NoError(t, env.reports.Delete(alice.ID, report.ID))

	balance, err := env.ledger.BalanceFor(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.PointBalance)
	assert.Equal(t, models.BadgeNone, balance.BadgeTier)

	_, err = env.reports.Get(report.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_OnlyReporterOrAuthority(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	bob := env.citizen(t, "bob")
	works := env.authority(t, "works", 40.71, -74.00)

	r1 := env.submit(t, alice, models.SeverityLow, 40.70, -74.00)
	assert.ErrorIs(t, env.reports.Delete(bob.ID, r1.ID), ErrForbidden)
	require.NoError(t, env.reports.Delete(works.ID, r1.ID))

	r2 := env.submit(t, alice, models.SeverityLow, 40.70, -74.00)
	require.NoError(t, env.reports.Delete(alice.ID, r2.ID))
}

func TestList_Filters(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)

	env.submit(t, alice, models.SeverityHigh, 40.70, -74.00)
	low := env.submit(t, alice, models.SeverityLow, 40.70, -74.00)
	far := env.submit(t, alice, models.SeverityHigh, 40.90, -74.00)
	require.NoError(t, env.reports.SetVerification(works.ID, low.ID, models.VerificationVerified, ""))

	assert.Len(t, env.reports.List(models.ReportFilter{Severity: models.SeverityHigh}), 2)
	assert.Len(t, env.reports.List(models.ReportFilter{VerificationState: models.VerificationVerified}), 1)

	// Geofence: ~22 km away falls outside a 5 km radius.
	near := env.reports.List(models.ReportFilter{CenterLat: 40.70, CenterLng: -74.00, RadiusKm: 5})
	assert.Len(t, near, 2)
	for _, r := range near {
		assert.NotEqual(t, far.ID, r.ID)
	}
}

// Concurrent verify and delete on the same report must serialize: either
// the verify wins and the delete reverses its award, or the delete wins
// and the verify fails. The balance ends at zero either way.
func TestConcurrentVerifyAndDelete_BalanceConsistent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	works := env.authority(t, "works", 40.71, -74.00)

	for i := 0; i < 20; i++ {
		report := env.submit(t, alice, models.SeverityHigh, 40.70, -74.00)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = env.reports.SetVerification(works.ID, report.ID, models.VerificationVerified, "")
		}()
		go func() {
			defer wg.Done()
			_ = env.reports.Delete(alice.ID, report.ID)
		}()
		wg.Wait()

		// The delete may have lost the race to the verify; finish the job.
		if _, err := env.reports.Get(report.ID); err == nil {
			require.NoError(t, env.reports.Delete(alice.ID, report.ID))
		}

		balance, err := env.ledger.BalanceFor(alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, balance.PointBalance, "iteration %d", i)
	}
}

func TestCreate_RejectsUnknownSeverity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")

	_, err := env.reports.Create(alice.ID, models.ReportSubmission{
		Latitude: 40.70, Longitude: -74.00, Severity: "Catastrophic",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetVerification_CarriedResolutionFansOut(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	bob := env.citizen(t, "bob")
	works := env.authority(t, "works", 40.71, -74.00)
	neighbor := env.authority(t, "neighbor", 40.72, -74.00)

	report := env.submit(t, alice, models.SeverityHigh, 40.70, -74.00)
	require.NoError(t, env.reports.SetFixingState(works.ID, report.ID, models.FixingInProgress))

	// Resolving via the combined verification action must fan out the
	// same way a direct fixing transition does.
	require.NoError(t, env.reports.SetVerification(works.ID, report.ID, models.VerificationVerified, models.FixingResolved))

	after, err := env.reports.Get(report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FixingResolved, after.FixingState)

	aliceInbox, err := env.notif.VisibleTo(alice.ID)
	require.NoError(t, err)
	resolved := viewsOfType(aliceInbox, models.NotificationResolved)
	require.Len(t, resolved, 1)

	bobInbox, err := env.notif.VisibleTo(bob.ID)
	require.NoError(t, err)
	assert.Len(t, viewsOfType(bobInbox, models.NotificationStatusUpdate), 1)

	neighborInbox, err := env.notif.VisibleTo(neighbor.ID)
	require.NoError(t, err)
	assert.Len(t, viewsOfType(neighborInbox, models.NotificationStatusUpdate), 1)

	// The resolution accepts compliments, routed to the resolver.
	require.NoError(t, env.notif.SendCompliment(resolved[0].ID, alice.ID))
	worksInbox, err := env.notif.VisibleTo(works.ID)
	require.NoError(t, err)
	assert.Len(t, viewsOfType(worksInbox, models.NotificationCompliment), 1)
}

func TestSetVerification_NoRepeatFanOutWhenAlreadyResolved(t *testing.T) {
	env := newTestEnv(t)
	alice := env.citizen(t, "alice")
	bob := env.citizen(t, "bob")
	works := env.authority(t, "works", 40.71, -74.00)

	report := env.submit(t, alice, models.SeverityHigh, 40.70, -74.00)
	require.NoError(t, env.reports.SetFixingState(works.ID, report.ID, models.FixingInProgress))
	require.NoError(t, env.reports.SetFixingState(works.ID, report.ID, models.FixingResolved))

	// Verifying afterwards must not replay the resolution fan-out.
	require.NoError(t, env.reports.SetVerification(works.ID, report.ID, models.VerificationVerified, ""))

	aliceInbox, err := env.notif.VisibleTo(alice.ID)
	require.NoError(t, err)
	assert.Len(t, viewsOfType(aliceInbox, models.NotificationResolved), 1)

	bobInbox, err := env.notif.VisibleTo(bob.ID)
	require.NoError(t, err)
	assert.Len(t, viewsOfType(bobInbox, models.NotificationStatusUpdate), 1)
}
