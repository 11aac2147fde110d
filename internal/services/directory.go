// Package services contains the business logic of the hazard server:
// the identity directory, report lifecycle, voting, points ledger, and
// notification fan-out. Services are called by handlers.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicwatch/hazard-server/internal/models"
)

// AccountPersistence is the optional durable backing for the directory.
// The in-memory registry is authoritative at runtime; persistence only
// survives restarts. A nil persistence means memory-only operation.
type AccountPersistence interface {
	LoadAll(ctx context.Context) ([]models.StoredAccount, error)
	Save(ctx context.Context, acct models.StoredAccount) error
}

type account struct {
	identity     models.Identity
	passwordHash []byte
}

// DirectoryService is the registry of known identities and credentials.
// It is constructed from the builtin seed set merged with whatever the
// persistence layer holds; builtin entries win on email collision, so
// demo and authority accounts are never lost.
type DirectoryService struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*account
	byEmail map[string]*account

	persist AccountPersistence
	logger  *zap.SugaredLogger
}

// NewDirectoryService builds the directory from seeds plus persisted
// accounts. persist may be nil.
func NewDirectoryService(ctx context.Context, persist AccountPersistence, logger *zap.SugaredLogger) (*DirectoryService, error) {
	d := &DirectoryService{
		byID:    make(map[uuid.UUID]*account),
		byEmail: make(map[string]*account),
		persist: persist,
		logger:  logger,
	}

	if persist != nil {
		stored, err := persist.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load persisted accounts: %w", err)
		}
		for _, sa := range stored {
			ident := sa.Identity
			if ident.IsCitizen() {
				ident.BadgeTier = BadgeFor(ident.PointBalance)
			}
			d.put(&account{identity: ident, passwordHash: []byte(sa.PasswordHash)})
		}
		logger.Infow("Loaded persisted accounts", "count", len(stored))
	}

	// Builtin seeds overwrite any persisted entry with the same email.
	for _, seed := range seedAccounts() {
		d.put(seed)
	}

	return d, nil
}

// put installs an account, replacing any existing entry with the same
// email. Caller must not hold the lock.
func (d *DirectoryService) put(a *account) {
	d.mu.Lock()
	defer d.mu.Unlock()

	email := normalizeEmail(a.identity.Email)
	if prev, ok := d.byEmail[email]; ok {
		delete(d.byID, prev.identity.ID)
	}
	d.byEmail[email] = a
	d.byID[a.identity.ID] = a
}

// Register creates a new citizen or authority account.
func (d *DirectoryService) Register(ctx context.Context, role models.Role, name, email, password string, office *models.Location) (models.Identity, error) {
	if role == models.RoleAuthority && office == nil {
		return models.Identity{}, fmt.Errorf("authority account requires an office location")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	id := models.Identity{
		ID:        uuid.New(),
		Role:      role,
		Name:      name,
		Email:     normalizeEmail(email),
		BadgeTier: models.BadgeNone,
	}
	if role == models.RoleAuthority {
		id.OfficeLocation = office
		id.BadgeTier = ""
	}

	d.mu.Lock()
	if _, exists := d.byEmail[id.Email]; exists {
		d.mu.Unlock()
		return models.Identity{}, ErrEmailTaken
	}
	a := &account{identity: id, passwordHash: hash}
	d.byEmail[id.Email] = a
	d.byID[id.ID] = a
	d.mu.Unlock()

	if d.persist != nil {
		if err := d.persist.Save(ctx, models.StoredAccount{Identity: id, PasswordHash: string(hash)}); err != nil {
			d.logger.Errorw("Failed to persist account", "email", id.Email, "error", err)
		}
	}

	d.logger.Infow("Account registered", "id", id.ID, "role", id.Role)
	return id, nil
}

// Authenticate checks an email/password pair and returns the identity.
func (d *DirectoryService) Authenticate(email, password string) (models.Identity, error) {
	d.mu.RLock()
	a, ok := d.byEmail[normalizeEmail(email)]
	d.mu.RUnlock()
	if !ok {
		return models.Identity{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return models.Identity{}, ErrBadCredentials
	}
	return a.identity, nil
}

// Get returns the identity for an id.
func (d *DirectoryService) Get(id uuid.UUID) (models.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byID[id]
	if !ok {
		return models.Identity{}, ErrNotFound
	}
	return a.identity, nil
}

// Citizens returns all citizen identities.
func (d *DirectoryService) Citizens() []models.Identity {
	return d.list(models.RoleCitizen)
}

// Authorities returns all authority identities.
func (d *DirectoryService) Authorities() []models.Identity {
	return d.list(models.RoleAuthority)
}

func (d *DirectoryService) list(role models.Role) []models.Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.Identity
	for _, a := range d.byID {
		if a.identity.Role == role {
			out = append(out, a.identity)
		}
	}
	return out
}

// adjustPoints applies a balance delta and recomputes the badge tier.
// Only the ledger may call this; it is where the "badge never drifts"
// invariant is enforced.
func (d *DirectoryService) adjustPoints(id uuid.UUID, delta int) (models.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.byID[id]
	if !ok {
		return models.Identity{}, ErrNotFound
	}
	if !a.identity.IsCitizen() {
		return models.Identity{}, ErrForbidden
	}

	balance := a.identity.PointBalance + delta
	if balance < 0 {
		balance = 0
	}
	a.identity.PointBalance = balance
	a.identity.BadgeTier = BadgeFor(balance)
	return a.identity, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
