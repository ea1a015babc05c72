package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/internal/events"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"
	"github.com/emmanuel-dcoder/teevil-api/internal/repository"
	"github.com/emmanuel-dcoder/teevil-api/internal/testutil"
	"github.com/emmanuel-dcoder/teevil-api/pkg/payment"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

type sentNotification struct {
	UserID uint
	Type   string
	Title  string
	Body   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID uint, notifType, title, body string, _ map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Type: notifType, Title: title, Body: body})
	return nil
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type sentMail struct {
	To       string
	Subject  string
	Template string
	Data     interface{}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, templateName string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Template: templateName, Data: data})
	return nil
}

func (m *recordingMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, env)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	users []uint
}

func (b *recordingBroadcaster) BroadcastToUser(userID uint, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, userID)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.users)
}

// hookedGateway wraps the stub so a test can act between the ledger's
// gateway calls and its database writes.
type hookedGateway struct {
	*payment.StubGateway
	mu             sync.Mutex
	created        []string
	beforeRetrieve func()
}

func (g *hookedGateway) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error) {
	in, err := g.StubGateway.CreateIntent(ctx, req)
	if err == nil {
		g.mu.Lock()
		g.created = append(g.created, in.ID)
		g.mu.Unlock()
	}
	return in, err
}

func (g *hookedGateway) RetrieveIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	if g.beforeRetrieve != nil {
		g.beforeRetrieve()
	}
	return g.StubGateway.RetrieveIntent(ctx, intentID)
}

func (g *hookedGateway) createdIntents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.created...)
}

type harness struct {
	db          *gorm.DB
	store       *repository.Store
	fx          testutil.Fixture
	gateway     *payment.StubGateway
	notifier    *recordingNotifier
	mailer      *recordingMailer
	publisher   *recordingPublisher
	broadcaster *recordingBroadcaster
	txs         *TransactionService
	withdrawals *WithdrawalService
	webhooks    *WebhookService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	h := &harness{
		db:          db,
		store:       repository.NewStore(db),
		fx:          testutil.Seed(t, db),
		gateway:     payment.NewStubGateway(testWebhookSecret),
		notifier:    &recordingNotifier{},
		mailer:      &recordingMailer{},
		publisher:   &recordingPublisher{},
		broadcaster: &recordingBroadcaster{},
	}
	jobs := repository.NewJobRepository(db)
	users := repository.NewUserRepository(db)
	h.txs = NewTransactionService(TransactionDeps{
		Store:          h.store,
		Jobs:           jobs,
		Users:          users,
		Gateway:        h.gateway,
		Notifier:       h.notifier,
		Publisher:      h.publisher,
		Broadcaster:    h.broadcaster,
		Currency:       "usd",
		GatewayTimeout: time.Second,
		Logger:         zerolog.Nop(),
	})
	h.withdrawals = NewWithdrawalService(WithdrawalDeps{
		Store:     h.store,
		Jobs:      jobs,
		Users:     users,
		Notifier:  h.notifier,
		Mailer:    h.mailer,
		Publisher: h.publisher,
		Logger:    zerolog.Nop(),
	})
	h.webhooks = NewWebhookService(h.gateway, h.txs, nil, zerolog.Nop())
	return h
}

func (h *harness) client() Requester {
	return Requester{ID: h.fx.Client.ID, Role: h.fx.Client.Role}
}

func (h *harness) freelancer() Requester {
	return Requester{ID: h.fx.Freelancer.ID, Role: h.fx.Freelancer.Role}
}

func (h *harness) admin() Requester {
	return Requester{ID: h.fx.Admin.ID, Role: h.fx.Admin.Role}
}

func (h *harness) stranger() Requester {
	return Requester{ID: h.fx.Stranger.ID, Role: h.fx.Stranger.Role}
}

// initiate funds the seeded job for the seeded freelancer.
func (h *harness) initiate(t *testing.T, cents int64) *InitiatePaymentResult {
	t.Helper()
	res, err := h.txs.InitiatePayment(context.Background(), InitiatePaymentInput{
		ClientID:     h.fx.Client.ID,
		FreelancerID: h.fx.Freelancer.ID,
		JobID:        h.fx.Job.ID,
		AmountCents:  cents,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return res
}

// fund initiates a payment and confirms it through a signed webhook.
func (h *harness) fund(t *testing.T, cents int64) *models.Transaction {
	t.Helper()
	res := h.initiate(t, cents)
	h.deliver(t, "evt_fund_"+res.PaymentIntentID, payment.EventIntentSucceeded, res.PaymentIntentID)
	return h.transaction(t, res.PaymentIntentID)
}

func (h *harness) deliver(t *testing.T, eventID string, typ payment.EventType, intentID string) WebhookOutcome {
	t.Helper()
	body := payment.EventPayload(eventID, typ, intentID)
	out, err := h.webhooks.Handle(context.Background(), body, payment.SignPayload(body, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("deliver %s: %v", typ, err)
	}
	return out
}

func (h *harness) transaction(t *testing.T, intentID string) *models.Transaction {
	t.Helper()
	tx, err := h.store.Transactions.GetByGatewayRef(context.Background(), intentID)
	if err != nil {
		t.Fatalf("load transaction %s: %v", intentID, err)
	}
	return tx
}

func (h *harness) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
