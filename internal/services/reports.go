package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/detection"
	"github.com/civicwatch/hazard-server/internal/geo"
	"github.com/civicwatch/hazard-server/internal/models"
)

// ReportService owns hazard reports and their two state machines. Every
// mutation (state transition, vote, point award, notification fan-out)
// happens under the store lock, so an observer can never see a verified
// report with a stale ledger balance or a half-built fan-out. Reads take
// the shared side of the lock and return snapshots.
type ReportService struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*models.Report

	dir    *DirectoryService
	ledger *LedgerService
	notif  *NotificationService
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

// NewReportService creates a new report store.
func NewReportService(dir *DirectoryService, ledger *LedgerService, notif *NotificationService, clock clockwork.Clock, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{
		reports: make(map[uuid.UUID]*models.Report),
		dir:     dir,
		ledger:  ledger,
		notif:   notif,
		clock:   clock,
		logger:  logger,
	}
}

// Create stores a new report from a citizen submission and fans out the
// creation notifications. Severity comes from the submission, falling
// back to the detection payload.
func (s *ReportService) Create(reporterID uuid.UUID, sub models.ReportSubmission) (models.Report, error) {
	reporter, err := s.dir.Get(reporterID)
	if err != nil {
		return models.Report{}, err
	}
	if !reporter.IsCitizen() {
		return models.Report{}, ErrForbidden
	}

	severity := sub.Severity
	if severity == "" && sub.Detection != nil {
		severity = detection.SeverityOf(sub.Detection)
	}
	switch severity {
	case models.SeverityHigh, models.SeverityMedium, models.SeverityLow:
	default:
		return models.Report{}, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}

	report := &models.Report{
		ID:         uuid.New(),
		ReporterID: reporterID,
		CreatedAt:  s.clock.Now(),
		Location: models.Location{
			Latitude:  sub.Latitude,
			Longitude: sub.Longitude,
			Address:   sub.Address,
		},
		Severity:          severity,
		VerificationState: models.VerificationPending,
		FixingState:       models.FixingPending,
		Description:       sub.Description,
		Detection:         sub.Detection,
		UpvoterIDs:        make(map[uuid.UUID]struct{}),
		DownvoterIDs:      make(map[uuid.UUID]struct{}),
	}

	s.mu.Lock()
	s.reports[report.ID] = report
	snapshot := cloneReport(report)
	s.notif.FanOutNewReport(&snapshot)
	s.mu.Unlock()

	s.logger.Infow("Report created",
		"id", report.ID,
		"reporter", reporterID,
		"severity", severity,
	)
	return snapshot, nil
}

// SetVerification applies the one-shot verification outcome. Verified
// awards the reporter a point; Rejected with no fixing transition in the
// same action also rejects the fixing state so the two machines cannot
// diverge on a thrown-out report. The reporter gets a status update. A
// carried fixing transition that lands on Resolved triggers the same
// resolution fan-out as SetFixingState.
func (s *ReportService) SetVerification(actorID, reportID uuid.UUID, outcome models.VerificationState, fixing models.FixingState) error {
	actor, err := s.dir.Get(actorID)
	if err != nil {
		return err
	}
	if !actor.IsAuthority() {
		return ErrForbidden
	}
	if outcome != models.VerificationVerified && outcome != models.VerificationRejected {
		return fmt.Errorf("%w: verification outcome must be verified or rejected", ErrInvalidTransition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if report.VerificationState != models.VerificationPending {
		return fmt.Errorf("%w: verification already %s", ErrInvalidTransition, report.VerificationState)
	}

	// Validate the whole action before mutating anything so a failure
	// leaves report and ledger untouched.
	if fixing != "" {
		if err := validFixingTransition(report.FixingState, fixing); err != nil {
			return err
		}
	}

	if outcome == models.VerificationVerified {
		if err := s.ledger.Award(report.ReporterID, 1); err != nil {
			return fmt.Errorf("award verification point: %w", err)
		}
	}

	report.VerificationState = outcome
	message := fmt.Sprintf("Your hazard report near %s was verified", placeName(report.Location))
	if outcome == models.VerificationRejected {
		message = fmt.Sprintf("Your hazard report near %s was rejected", placeName(report.Location))
		if fixing != "" {
			report.FixingState = fixing
			report.LastFixingActor = actorID
		} else if !terminalFixing(report.FixingState) {
			report.FixingState = models.FixingRejected
			report.LastFixingActor = actorID
		}
	} else if fixing != "" {
		report.FixingState = fixing
		report.LastFixingActor = actorID
	}

	snapshot := cloneReport(report)
	s.notif.NotifyReporter(&snapshot, message)
	if fixing == models.FixingResolved {
		s.notif.FanOutResolution(&snapshot, actorID)
	}

	s.logger.Infow("Verification set",
		"report", reportID,
		"actor", actorID,
		"outcome", outcome,
	)
	return nil
}

// SetFixingState advances the repair state machine: forward only, with
// Rejected reachable from any non-terminal state. Resolving triggers the
// resolution fan-out.
func (s *ReportService) SetFixingState(actorID, reportID uuid.UUID, next models.FixingState) error {
	actor, err := s.dir.Get(actorID)
	if err != nil {
		return err
	}
	if !actor.IsAuthority() {
		return ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if err := validFixingTransition(report.FixingState, next); err != nil {
		return err
	}

	report.FixingState = next
	report.LastFixingActor = actorID

	if next == models.FixingResolved {
		snapshot := cloneReport(report)
		s.notif.FanOutResolution(&snapshot, actorID)
	}

	s.logger.Infow("Fixing state set",
		"report", reportID,
		"actor", actorID,
		"state", next,
	)
	return nil
}

// Delete removes a report. Only the original reporter or an authority
// may delete. A verified report has its award reversed first, so the
// submit→verify→delete→resubmit cycle can never farm points. Report-
// scoped notifications are retained and simply reference a gone id.
func (s *ReportService) Delete(actorID, reportID uuid.UUID) error {
	actor, err := s.dir.Get(actorID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if actorID != report.ReporterID && !actor.IsAuthority() {
		return ErrForbidden
	}

	if report.VerificationState == models.VerificationVerified {
		if err := s.ledger.Revoke(report.ReporterID, 1); err != nil {
			return fmt.Errorf("revoke verification point: %w", err)
		}
	}

	delete(s.reports, reportID)
	s.logger.Infow("Report deleted", "report", reportID, "actor", actorID)
	return nil
}

// Get returns a snapshot of one report.
func (s *ReportService) Get(reportID uuid.UUID) (models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[reportID]
	if !ok {
		return models.Report{}, ErrNotFound
	}
	return cloneReport(report), nil
}

// List returns snapshots of all reports matching the filter, newest
// first.
func (s *ReportService) List(filter models.ReportFilter) []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Report
	for _, r := range s.reports {
		if filter.Severity != "" && r.Severity != filter.Severity {
			continue
		}
		if filter.VerificationState != "" && r.VerificationState != filter.VerificationState {
			continue
		}
		if filter.FixingState != "" && r.FixingState != filter.FixingState {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && r.CreatedAt.After(*filter.Until) {
			continue
		}
		if filter.RadiusKm > 0 {
			center := models.Location{Latitude: filter.CenterLat, Longitude: filter.CenterLng}
			if !geo.Within(center, r.Location, filter.RadiusKm) {
				continue
			}
		}
		out = append(out, cloneReport(r))
	}

	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// validFixingTransition enforces the repair state machine.
func validFixingTransition(current, next models.FixingState) error {
	if terminalFixing(current) {
		return fmt.Errorf("%w: fixing state already %s", ErrInvalidTransition, current)
	}
	switch next {
	case models.FixingInProgress:
		if current != models.FixingPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
		}
	case models.FixingResolved:
		if current != models.FixingInProgress {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
		}
	case models.FixingRejected:
		// Reachable from any non-terminal state.
	default:
		return fmt.Errorf("%w: unknown fixing state %q", ErrInvalidTransition, next)
	}
	return nil
}

func terminalFixing(state models.FixingState) bool {
	return state == models.FixingResolved || state == models.FixingRejected
}

// cloneReport returns a deep copy so callers never share the store's
// mutable vote sets.
func cloneReport(r *models.Report) models.Report {
	out := *r
	out.UpvoterIDs = make(map[uuid.UUID]struct{}, len(r.UpvoterIDs))
	for id := range r.UpvoterIDs {
		out.UpvoterIDs[id] = struct{}{}
	}
	out.DownvoterIDs = make(map[uuid.UUID]struct{}, len(r.DownvoterIDs))
	for id := range r.DownvoterIDs {
		out.DownvoterIDs[id] = struct{}{}
	}
	return out
}
