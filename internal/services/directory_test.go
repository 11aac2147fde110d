package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/models"
)

// fakePersistence records saves and serves a canned account list.
type fakePersistence struct {
	stored []models.StoredAccount
	saved  []models.StoredAccount
}

func (f *fakePersistence) LoadAll(ctx context.Context) ([]models.StoredAccount, error) {
	return f.stored, nil
}

func (f *fakePersistence) Save(ctx context.Context, acct models.StoredAccount) error {
	f.saved = append(f.saved, acct)
	return nil
}

func TestDirectorySeedsAlwaysPresent(t *testing.T) {
	env := newTestEnv(t)

	admin, err := env.dir.Authenticate("admin@cityworks.gov", "admin123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuthority, admin.Role)
	require.NotNil(t, admin.OfficeLocation)

	demo, err := env.dir.Authenticate("demo@example.com", "demo123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCitizen, demo.Role)
}

func TestDirectorySeedsWinOnEmailCollision(t *testing.T) {
	staleID := uuid.New()
	persist := &fakePersistence{
		stored: []models.StoredAccount{
			{
				Identity: models.Identity{
					ID:    staleID,
					Role:  models.RoleCitizen,
					Name:  "Impostor",
					Email: "admin@cityworks.gov",
				},
				PasswordHash: "$2a$04$invalidhashinvalidhashinvalidhashinvalidhashinv",
			},
		},
	}

	dir, err := NewDirectoryService(context.Background(), persist, zap.NewNop().Sugar())
	require.NoError(t, err)

	// The builtin credentials still work and the stale id is gone.
	admin, err := dir.Authenticate("admin@cityworks.gov", "admin123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuthority, admin.Role)
	_, err = dir.Get(staleID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectoryPersistedAccountsSurvive(t *testing.T) {
	persistedID := uuid.New()
	persist := &fakePersistence{
		stored: []models.StoredAccount{
			{
				Identity: models.Identity{
					ID:           persistedID,
					Role:         models.RoleCitizen,
					Name:         "Returning User",
					Email:        "returning@test.example",
					PointBalance: 50,
					BadgeTier:    models.BadgeSilver,
				},
				PasswordHash: "unused",
			},
		},
	}

	dir, err := NewDirectoryService(context.Background(), persist, zap.NewNop().Sugar())
	require.NoError(t, err)

	got, err := dir.Get(persistedID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.PointBalance)
	assert.Equal(t, models.BadgeSilver, got.BadgeTier)
}

func TestDirectoryRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.dir.Register(ctx, models.RoleCitizen, "First", "dup@test.example", "secret123", nil)
	require.NoError(t, err)

	// Case and whitespace variations hit the same account.
	_, err = env.dir.Register(ctx, models.RoleCitizen, "Second", "  DUP@Test.Example ", "secret123", nil)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDirectoryRegisterAuthorityNeedsOffice(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dir.Register(context.Background(), models.RoleAuthority, "No Office", "office-less@gov.example", "secret123", nil)
	assert.Error(t, err)
}

func TestDirectoryRegisterPersists(t *testing.T) {
	persist := &fakePersistence{}
	dir, err := NewDirectoryService(context.Background(), persist, zap.NewNop().Sugar())
	require.NoError(t, err)

	id, err := dir.Register(context.Background(), models.RoleCitizen, "New", "new@test.example", "secret123", nil)
	require.NoError(t, err)

	require.Len(t, persist.saved, 1)
	assert.Equal(t, id.ID, persist.saved[0].Identity.ID)
	assert.NotEmpty(t, persist.saved[0].PasswordHash)
}

func TestDirectoryAuthenticateWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dir.Authenticate("demo@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = env.dir.Authenticate("nobody@test.example", "demo123")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestDirectoryRoleListings(t *testing.T) {
	env := newTestEnv(t)
	c := env.citizen(t, "lister")
	a := env.authority(t, "lister-authority", 40.70, -74.00)

	citizenIDs := make(map[uuid.UUID]bool)
	for _, id := range env.dir.Citizens() {
		assert.Equal(t, models.RoleCitizen, id.Role)
		citizenIDs[id.ID] = true
	}
	assert.True(t, citizenIDs[c.ID])

	authorityIDs := make(map[uuid.UUID]bool)
	for _, id := range env.dir.Authorities() {
		assert.Equal(t, models.RoleAuthority, id.Role)
		authorityIDs[id.ID] = true
	}
	assert.True(t, authorityIDs[a.ID])
}
