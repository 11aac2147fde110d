package services

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/models"
)

// Badge thresholds. A citizen holds the highest tier whose threshold is
// at or below their balance.
const (
	bronzeThreshold = 25
	silverThreshold = 50
	goldThreshold   = 100
)

// BadgeFor returns the badge tier for a point balance. Pure and total.
func BadgeFor(points int) models.BadgeTier {
	switch {
	case points >= goldThreshold:
		return models.BadgeGold
	case points >= silverThreshold:
		return models.BadgeSilver
	case points >= bronzeThreshold:
		return models.BadgeBronze
	default:
		return models.BadgeNone
	}
}

// LedgerService maintains citizen point balances and their derived badge
// tiers. Award and Revoke are called exclusively by the report store's
// verification and deletion transitions. No other code path may mutate
// a balance, which keeps the balance equal to the citizen's count of
// currently-verified reports.
type LedgerService struct {
	dir    *DirectoryService
	logger *zap.SugaredLogger
}

// NewLedgerService creates a new ledger backed by the directory.
func NewLedgerService(dir *DirectoryService, logger *zap.SugaredLogger) *LedgerService {
	return &LedgerService{dir: dir, logger: logger}
}

// Award adds n points to a citizen's balance.
func (l *LedgerService) Award(citizenID uuid.UUID, n int) error {
	id, err := l.dir.adjustPoints(citizenID, n)
	if err != nil {
		return err
	}
	l.logger.Infow("Points awarded",
		"citizen", citizenID,
		"points", n,
		"balance", id.PointBalance,
		"badge", id.BadgeTier,
	)
	return nil
}

// Revoke removes n points from a citizen's balance, flooring at zero.
func (l *LedgerService) Revoke(citizenID uuid.UUID, n int) error {
	id, err := l.dir.adjustPoints(citizenID, -n)
	if err != nil {
		return err
	}
	l.logger.Infow("Points revoked",
		"citizen", citizenID,
		"points", n,
		"balance", id.PointBalance,
		"badge", id.BadgeTier,
	)
	return nil
}

// BalanceFor returns the current balance and badge for a citizen.
func (l *LedgerService) BalanceFor(citizenID uuid.UUID) (models.BalanceResponse, error) {
	id, err := l.dir.Get(citizenID)
	if err != nil {
		return models.BalanceResponse{}, err
	}
	if !id.IsCitizen() {
		return models.BalanceResponse{}, ErrForbidden
	}
	return models.BalanceResponse{
		IdentityID:   id.ID,
		PointBalance: id.PointBalance,
		BadgeTier:    id.BadgeTier,
	}, nil
}
