package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/models"
)

// AccountStore persists directory accounts in Postgres. It implements
// services.AccountPersistence. Builtin seed accounts are re-merged on
// top of whatever is loaded, so rows here can never shadow them.
type AccountStore struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewAccountStore creates an account store and ensures its schema.
func NewAccountStore(ctx context.Context, db *pgxpool.Pool, logger *zap.SugaredLogger) (*AccountStore, error) {
	s := &AccountStore{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AccountStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id            UUID PRIMARY KEY,
			role          TEXT NOT NULL,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			point_balance INT NOT NULL DEFAULT 0,
			office_lat    DOUBLE PRECISION,
			office_lng    DOUBLE PRECISION,
			office_addr   TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure accounts schema: %w", err)
	}
	return nil
}

// LoadAll returns every persisted account. Badge tiers are recomputed by
// the directory on load, not stored.
func (s *AccountStore) LoadAll(ctx context.Context) ([]models.StoredAccount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, role, name, email, password_hash, point_balance, office_lat, office_lng, office_addr
		FROM accounts
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.StoredAccount
	for rows.Next() {
		var (
			sa         models.StoredAccount
			officeLat  *float64
			officeLng  *float64
			officeAddr *string
		)
		if err := rows.Scan(&sa.Identity.ID, &sa.Identity.Role, &sa.Identity.Name,
			&sa.Identity.Email, &sa.PasswordHash, &sa.Identity.PointBalance,
			&officeLat, &officeLng, &officeAddr); err != nil {
			s.logger.Errorw("Failed to scan account row", "error", err)
			continue
		}
		if officeLat != nil && officeLng != nil {
			loc := models.Location{Latitude: *officeLat, Longitude: *officeLng}
			if officeAddr != nil {
				loc.Address = *officeAddr
			}
			sa.Identity.OfficeLocation = &loc
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}

// Save upserts one account by email.
func (s *AccountStore) Save(ctx context.Context, acct models.StoredAccount) error {
	var officeLat, officeLng *float64
	var officeAddr *string
	if loc := acct.Identity.OfficeLocation; loc != nil {
		officeLat, officeLng = &loc.Latitude, &loc.Longitude
		if loc.Address != "" {
			officeAddr = &loc.Address
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, role, name, email, password_hash, point_balance, office_lat, office_lng, office_addr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			point_balance = EXCLUDED.point_balance,
			office_lat = EXCLUDED.office_lat,
			office_lng = EXCLUDED.office_lng,
			office_addr = EXCLUDED.office_addr
	`,
		acct.Identity.ID, acct.Identity.Role, acct.Identity.Name,
		acct.Identity.Email, acct.PasswordHash, acct.Identity.PointBalance,
		officeLat, officeLng, officeAddr,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}
