package service

import (
	"context"
	"encoding/json"

	"github.com/emmanuel-dcoder/teevil-api/internal/models"
	"github.com/emmanuel-dcoder/teevil-api/internal/repository"

	"github.com/rs/zerolog"
)

// Pusher delivers a device push notification.
type Pusher interface {
	SendToUser(ctx context.Context, fcmToken, notifType, title, body string, data map[string]interface{}) error
}

// NotificationService stores in-app notifications and mirrors them to the
// user's device when push is configured.
type NotificationService struct {
	repo   *repository.NotificationRepository
	users  UserLookup
	push   Pusher
	logger zerolog.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, users UserLookup, push Pusher, logger zerolog.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		users:  users,
		push:   push,
		logger: logger.With().Str("component", "notifications").Logger(),
	}
}

func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	err := s.repo.Create(ctx, &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	})
	if err != nil {
		return err
	}
	s.sendPush(ctx, userID, notifType, title, body, data)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.push == nil || s.users == nil {
		return
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	if err := s.push.SendToUser(ctx, u.FCMToken, notifType, title, body, data); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("push failed")
	}
}
