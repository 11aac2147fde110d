package services

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/geo"
	"github.com/civicwatch/hazard-server/internal/models"
)

// NotificationService builds and addresses notifications for report
// lifecycle events. Authority targeting is radius-based: an authority is
// notified when its office lies within radiusKm of the report location.
type NotificationService struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*models.Notification
	order         []uuid.UUID

	dir      *DirectoryService
	clock    clockwork.Clock
	radiusKm float64
	logger   *zap.SugaredLogger
}

// NewNotificationService creates a new notification engine.
func NewNotificationService(dir *DirectoryService, clock clockwork.Clock, radiusKm float64, logger *zap.SugaredLogger) *NotificationService {
	return &NotificationService{
		notifications: make(map[uuid.UUID]*models.Notification),
		dir:           dir,
		clock:         clock,
		radiusKm:      radiusKm,
		logger:        logger,
	}
}

// NotificationView is a notification as seen by one identity. Read state
// on broadcasts is per-viewer.
type NotificationView struct {
	ID             uuid.UUID               `json:"id"`
	Type           models.NotificationType `json:"type"`
	Message        string                  `json:"message"`
	CreatedAt      string                  `json:"created_at"`
	Read           bool                    `json:"read"`
	ReportID       uuid.UUID               `json:"report_id,omitempty"`
	Location       *models.Location        `json:"location,omitempty"`
	ComplimentedBy int                     `json:"compliment_count,omitempty"`
}

// newNotification constructs a validated notification. Per-type required
// fields are checked here, at construction, not at read time.
func (s *NotificationService) newNotification(typ models.NotificationType, kind models.RecipientKind, message string) *models.Notification {
	n := &models.Notification{
		ID:            uuid.New(),
		Type:          typ,
		RecipientKind: kind,
		Message:       message,
		CreatedAt:     s.clock.Now(),
	}
	if typ == models.NotificationResolved {
		n.ComplimentedBy = make(map[uuid.UUID]struct{})
	}
	if kind == models.RecipientCitizenBroadcast {
		n.ReadBy = make(map[uuid.UUID]struct{})
		n.DeletedFor = make(map[uuid.UUID]struct{})
	}
	return n
}

// FanOutNewReport notifies all citizens except the reporter and every
// authority whose office is within the notification radius.
func (s *NotificationService) FanOutNewReport(report *models.Report) {
	msg := fmt.Sprintf("New %s severity hazard reported near %s", report.Severity, placeName(report.Location))

	broadcast := s.newNotification(models.NotificationNewReport, models.RecipientCitizenBroadcast, msg)
	broadcast.ExcludedID = report.ReporterID
	broadcast.ReportID = report.ID
	loc := report.Location
	broadcast.Location = &loc

	batch := []*models.Notification{broadcast}
	for _, auth := range s.nearbyAuthorities(report.Location, uuid.Nil) {
		n := s.newNotification(models.NotificationNewReport, models.RecipientAuthority, msg)
		n.RecipientID = auth.ID
		n.ReportID = report.ID
		n.Location = &loc
		batch = append(batch, n)
	}

	s.store(batch)
	s.logger.Infow("New report fan-out",
		"report", report.ID,
		"severity", report.Severity,
		"notifications", len(batch),
	)
}

// NotifyReporter sends a StatusUpdate to the report's original reporter.
// Used for verification outcomes, which are visible to the reporter only.
func (s *NotificationService) NotifyReporter(report *models.Report, message string) {
	n := s.newNotification(models.NotificationStatusUpdate, models.RecipientCitizen, message)
	n.RecipientID = report.ReporterID
	n.ReportID = report.ID
	s.store([]*models.Notification{n})
}

// FanOutResolution notifies the reporter that their hazard was resolved,
// broadcasts a status update to the other citizens, and informs nearby
// authority offices other than the one that resolved it.
func (s *NotificationService) FanOutResolution(report *models.Report, resolvingActorID uuid.UUID) {
	place := placeName(report.Location)
	loc := report.Location

	resolved := s.newNotification(models.NotificationResolved, models.RecipientCitizen,
		fmt.Sprintf("Your hazard report near %s has been resolved", place))
	resolved.RecipientID = report.ReporterID
	resolved.ReportID = report.ID
	resolved.Location = &loc
	resolved.ResolverID = resolvingActorID
	resolved.ComplimentedBy = make(map[uuid.UUID]struct{})

	broadcast := s.newNotification(models.NotificationStatusUpdate, models.RecipientCitizenBroadcast,
		fmt.Sprintf("A %s severity hazard near %s has been resolved", report.Severity, place))
	broadcast.ExcludedID = report.ReporterID
	broadcast.ReportID = report.ID
	broadcast.Location = &loc

	batch := []*models.Notification{resolved, broadcast}
	for _, auth := range s.nearbyAuthorities(report.Location, resolvingActorID) {
		n := s.newNotification(models.NotificationStatusUpdate, models.RecipientAuthority,
			fmt.Sprintf("Hazard near %s resolved by a neighboring department", place))
		n.RecipientID = auth.ID
		n.ReportID = report.ID
		n.Location = &loc
		batch = append(batch, n)
	}

	s.store(batch)
	s.logger.Infow("Resolution fan-out",
		"report", report.ID,
		"resolver", resolvingActorID,
		"notifications", len(batch),
	)
}

// SendCompliment records a citizen's one-time thanks on a Resolved
// notification and forwards a Compliment notification to the resolving
// authority. Repeat calls by the same citizen are a no-op success so
// client retries stay safe.
func (s *NotificationService) SendCompliment(notificationID, citizenID uuid.UUID) error {
	sender, err := s.dir.Get(citizenID)
	if err != nil {
		return err
	}
	if !sender.IsCitizen() {
		return ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok {
		return ErrNotFound
	}
	if n.Type != models.NotificationResolved {
		return fmt.Errorf("%w: compliments apply only to resolved notifications", ErrInvalidTransition)
	}
	if _, dup := n.ComplimentedBy[citizenID]; dup {
		return nil
	}

	n.ComplimentedBy[citizenID] = struct{}{}

	if n.ResolverID == uuid.Nil {
		// Legacy resolution with no recorded resolver: the thanks is
		// recorded but there is nobody to deliver it to.
		s.logger.Warnw("Compliment with no resolver on record", "notification", notificationID)
		return nil
	}

	c := s.newNotification(models.NotificationCompliment, models.RecipientAuthority,
		fmt.Sprintf("%s sent a compliment for a resolved hazard", sender.Name))
	c.RecipientID = n.ResolverID
	c.ReportID = n.ReportID
	s.storeLocked([]*models.Notification{c})
	return nil
}

// MarkRead marks a notification read for the acting identity. The
// visibility rule is applied first so an identity can never touch
// another identity's notification state.
func (s *NotificationService) MarkRead(actorID, notificationID uuid.UUID) error {
	actor, err := s.dir.Get(actorID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok {
		return ErrNotFound
	}
	if !visibleTo(n, actor) {
		return ErrForbidden
	}

	if n.RecipientKind == models.RecipientCitizenBroadcast {
		n.ReadBy[actorID] = struct{}{}
	} else {
		n.Read = true
	}
	return nil
}

// Delete removes a notification for the acting identity. Deleting an id
// that is already gone is a success no-op.
func (s *NotificationService) Delete(actorID, notificationID uuid.UUID) error {
	actor, err := s.dir.Get(actorID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok {
		return nil
	}
	if !visibleTo(n, actor) {
		return ErrForbidden
	}

	if n.RecipientKind == models.RecipientCitizenBroadcast {
		n.DeletedFor[actorID] = struct{}{}
		return nil
	}

	delete(s.notifications, notificationID)
	for i, id := range s.order {
		if id == notificationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// VisibleTo lists the notifications the identity may see, newest first.
func (s *NotificationService) VisibleTo(identityID uuid.UUID) ([]NotificationView, error) {
	actor, err := s.dir.Get(identityID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []NotificationView
	for i := len(s.order) - 1; i >= 0; i-- {
		n, ok := s.notifications[s.order[i]]
		if !ok || !visibleTo(n, actor) {
			continue
		}
		if n.RecipientKind == models.RecipientCitizenBroadcast {
			if _, gone := n.DeletedFor[identityID]; gone {
				continue
			}
		}
		views = append(views, s.viewFor(n, identityID))
	}
	return views, nil
}

// Get returns a single notification view for an identity.
func (s *NotificationService) Get(actorID, notificationID uuid.UUID) (NotificationView, error) {
	actor, err := s.dir.Get(actorID)
	if err != nil {
		return NotificationView{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[notificationID]
	if !ok || !visibleTo(n, actor) {
		if !ok {
			return NotificationView{}, ErrNotFound
		}
		return NotificationView{}, ErrForbidden
	}
	return s.viewFor(n, actorID), nil
}

func (s *NotificationService) viewFor(n *models.Notification, viewerID uuid.UUID) NotificationView {
	read := n.Read
	if n.RecipientKind == models.RecipientCitizenBroadcast {
		_, read = n.ReadBy[viewerID]
	}
	return NotificationView{
		ID:             n.ID,
		Type:           n.Type,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Read:           read,
		ReportID:       n.ReportID,
		Location:       n.Location,
		ComplimentedBy: len(n.ComplimentedBy),
	}
}

// visibleTo is the single addressing rule: a bound recipient sees their
// own notifications, and citizen broadcasts are visible to every citizen
// except the excluded reporter.
func visibleTo(n *models.Notification, identity models.Identity) bool {
	switch n.RecipientKind {
	case models.RecipientCitizen, models.RecipientAuthority:
		return n.RecipientID == identity.ID
	case models.RecipientCitizenBroadcast:
		return identity.IsCitizen() && identity.ID != n.ExcludedID
	default:
		return false
	}
}

// nearbyAuthorities returns authorities whose office is within the
// notification radius of loc, excluding the given actor.
func (s *NotificationService) nearbyAuthorities(loc models.Location, exclude uuid.UUID) []models.Identity {
	var out []models.Identity
	for _, auth := range s.dir.Authorities() {
		if auth.ID == exclude || auth.OfficeLocation == nil {
			continue
		}
		if geo.Within(*auth.OfficeLocation, loc, s.radiusKm) {
			out = append(out, auth)
		}
	}
	return out
}

// store appends a batch of notifications under a single lock acquisition
// so no reader can observe a half-built fan-out.
func (s *NotificationService) store(batch []*models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeLocked(batch)
}

func (s *NotificationService) storeLocked(batch []*models.Notification) {
	for _, n := range batch {
		s.notifications[n.ID] = n
		s.order = append(s.order, n.ID)
	}
}

func placeName(loc models.Location) string {
	if loc.Address != "" {
		return loc.Address
	}
	return fmt.Sprintf("(%.4f, %.4f)", loc.Latitude, loc.Longitude)
}
