package services

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicwatch/hazard-server/internal/models"
)

// Builtin account ids are fixed so seeded identities keep their ids
// across restarts even when persistence is enabled.
var (
	seedAdminID    = uuid.MustParse("6f1c4a52-0001-4b7e-9e10-7a2b9c1d0a01")
	seedDowntownID = uuid.MustParse("6f1c4a52-0002-4b7e-9e10-7a2b9c1d0a02")
	seedDemoID     = uuid.MustParse("6f1c4a52-0003-4b7e-9e10-7a2b9c1d0a03")
)

// seedAccounts returns the always-present builtin set. These are merged
// over persisted state at startup and win on email collision, so demo
// and authority logins are never lost.
func seedAccounts() []*account {
	return []*account{
		{
			identity: models.Identity{
				ID:    seedAdminID,
				Role:  models.RoleAuthority,
				Name:  "City Works Admin",
				Email: "admin@cityworks.gov",
				OfficeLocation: &models.Location{
					Latitude:  40.7128,
					Longitude: -74.0060,
					Address:   "City Works HQ",
				},
			},
			passwordHash: mustHash("admin123"),
		},
		{
			identity: models.Identity{
				ID:    seedDowntownID,
				Role:  models.RoleAuthority,
				Name:  "Downtown Road Dept",
				Email: "roads@downtown.gov",
				OfficeLocation: &models.Location{
					Latitude:  40.7306,
					Longitude: -73.9866,
					Address:   "Downtown Depot",
				},
			},
			passwordHash: mustHash("roads123"),
		},
		{
			identity: models.Identity{
				ID:        seedDemoID,
				Role:      models.RoleCitizen,
				Name:      "Demo Citizen",
				Email:     "demo@example.com",
				BadgeTier: models.BadgeNone,
			},
			passwordHash: mustHash("demo123"),
		},
	}
}

func mustHash(password string) []byte {
	// MinCost keeps startup fast; these are demo credentials.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return hash
}
