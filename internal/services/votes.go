package services

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/models"
)

// VoteService implements idempotent toggle voting on reports. Any known
// identity may vote; there is no citizen/authority restriction.
type VoteService struct {
	reports *ReportService
	dir     *DirectoryService
	logger  *zap.SugaredLogger
}

// NewVoteService creates a new vote engine over the report store.
func NewVoteService(reports *ReportService, dir *DirectoryService, logger *zap.SugaredLogger) *VoteService {
	return &VoteService{reports: reports, dir: dir, logger: logger}
}

// Vote toggles a vote. Voting again in the same direction retracts it;
// voting in the opposite direction switches sides without ever double
// counting. The operation always succeeds for a known voter and report.
func (v *VoteService) Vote(voterID, reportID uuid.UUID, direction models.VoteDirection) (models.Report, error) {
	if _, err := v.dir.Get(voterID); err != nil {
		return models.Report{}, err
	}
	if direction != models.VoteUp && direction != models.VoteDown {
		return models.Report{}, fmt.Errorf("%w: unknown vote direction %q", ErrInvalidInput, direction)
	}

	v.reports.mu.Lock()
	defer v.reports.mu.Unlock()

	report, ok := v.reports.reports[reportID]
	if !ok {
		return models.Report{}, ErrNotFound
	}

	same, opposite := report.UpvoterIDs, report.DownvoterIDs
	if direction == models.VoteDown {
		same, opposite = opposite, same
	}

	if _, voted := same[voterID]; voted {
		delete(same, voterID)
	} else {
		same[voterID] = struct{}{}
		delete(opposite, voterID)
	}

	// Counters are derived, never independently mutated.
	report.UpvoteCount = len(report.UpvoterIDs)
	report.DownvoteCount = len(report.DownvoterIDs)

	v.logger.Debugw("Vote toggled",
		"report", reportID,
		"voter", voterID,
		"direction", direction,
		"up", report.UpvoteCount,
		"down", report.DownvoteCount,
	)
	return cloneReport(report), nil
}
