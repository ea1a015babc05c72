package service

import (
	"context"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/events"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"

	"github.com/rs/zerolog"
)

// JobLookup reads jobs owned by the projects service.
type JobLookup interface {
	GetByID(ctx context.Context, id uint) (*models.Job, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID uint) (*models.Job, error)
}

// UserLookup reads users owned by the accounts service.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, templateName string, data interface{}) error
}

// StatusBroadcaster pushes realtime updates to a user's open connections.
type StatusBroadcaster interface {
	BroadcastToUser(userID uint, payload interface{})
}

// Requester is the authenticated caller of a ledger operation.
type Requester struct {
	ID   uint
	Role string
}

// PageResult is one page of a listing.
type PageResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

func newPageResult[T any](data []T, total int64, page, limit int) *PageResult[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &PageResult[T]{Data: data, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

const sideEffectTimeout = 10 * time.Second

// sideEffects runs the best-effort work that follows a committed ledger
// change. Failures are logged and never returned. Every collaborator is
// optional.
type sideEffects struct {
	notifier    Notifier
	mailer      Mailer
	publisher   events.Publisher
	broadcaster StatusBroadcaster
	logger      zerolog.Logger
}

// detach keeps side effects running after the request context is cancelled.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}

func (s *sideEffects) notify(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := s.notifier.Notify(ctx, userID, notifType, title, body, data); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Str("type", notifType).Msg("notification failed")
	}
}

func (s *sideEffects) mail(ctx context.Context, to, subject, templateName string, data interface{}) {
	if s.mailer == nil || to == "" {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := s.mailer.Send(ctx, to, subject, templateName, data); err != nil {
		s.logger.Warn().Err(err).Str("template", templateName).Msg("mail failed")
	}
}

func (s *sideEffects) publish(ctx context.Context, key, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := s.publisher.Publish(ctx, key, events.NewEnvelope(eventType, data)); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("key", key).Msg("publish failed")
	}
}

func (s *sideEffects) broadcast(payload interface{}, userIDs ...uint) {
	if s.broadcaster == nil {
		return
	}
	for _, id := range userIDs {
		s.broadcaster.BroadcastToUser(id, payload)
	}
}

func uintPtr(v uint) *uint { return &v }

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
