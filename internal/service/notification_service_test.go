package service

import (
	"context"
	"testing"

	"github.com/emmanuel-dcoder/teevil-api/internal/domain"
	"github.com/emmanuel-dcoder/teevil-api/internal/repository"
	"github.com/emmanuel-dcoder/teevil-api/internal/testutil"

	"github.com/rs/zerolog"
)

type recordingPusher struct {
	tokens []string
}

func (p *recordingPusher) SendToUser(_ context.Context, fcmToken, _, _, _ string, _ map[string]interface{}) error {
	p.tokens = append(p.tokens, fcmToken)
	return nil
}

func TestNotifyStoresAndPushes(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	ctx := context.Background()
	if err := db.Model(&fx.Freelancer).Update("fcm_token", "device-1").Error; err != nil {
		t.Fatal(err)
	}

	repo := repository.NewNotificationRepository(db)
	push := &recordingPusher{}
	svc := NewNotificationService(repo, repository.NewUserRepository(db), push, zerolog.Nop())

	if err := svc.Notify(ctx, fx.Freelancer.ID, domain.NotificationTypeWithdrawal, "Withdrawal", "processing", map[string]interface{}{"reference": "TRX-1"}); err != nil {
		t.Fatalf("notify freelancer: %v", err)
	}
	if err := svc.Notify(ctx, fx.Client.ID, domain.NotificationTypePayment, "Payment", "held", nil); err != nil {
		t.Fatalf("notify client: %v", err)
	}

	list, err := repo.ListByUserID(ctx, fx.Freelancer.ID, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("stored: %v %v", list, err)
	}
	if list[0].Data != `{"reference":"TRX-1"}` {
		t.Errorf("data %q", list[0].Data)
	}
	if len(push.tokens) != 1 || push.tokens[0] != "device-1" {
		t.Errorf("pushes %v, want only device-1", push.tokens)
	}
}

func TestNotifyWithoutPusher(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil, nil, zerolog.Nop())
	if err := svc.Notify(context.Background(), fx.Client.ID, domain.NotificationTypePayment, "t", "b", nil); err != nil {
		t.Fatal(err)
	}
}
