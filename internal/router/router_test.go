package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/config"
	"github.com/emmanuel-dcoder/teevil-api/internal/auth"
	"github.com/emmanuel-dcoder/teevil-api/internal/models"
	"github.com/emmanuel-dcoder/teevil-api/internal/testutil"
	"github.com/emmanuel-dcoder/teevil-api/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const webhookSecret = "whsec_router"

type testServer struct {
	engine  *gin.Engine
	cfg     *config.Config
	gateway *payment.StubGateway
	fx      testutil.Fixture
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.JWT.AccessSecret = "router-secret"
	cfg.Payment.Provider = "stub"
	cfg.Payment.WebhookSecret = webhookSecret

	db := testutil.NewDB(t)
	gw := payment.NewStubGateway(webhookSecret)
	engine, err := Setup(Dependencies{Config: cfg, DB: db, Logger: zerolog.Nop(), Gateway: gw})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return &testServer{engine: engine, cfg: cfg, gateway: gw, fx: testutil.Seed(t, db)}
}

func (s *testServer) token(t *testing.T, u models.User) string {
	t.Helper()
	tok, err := auth.IssueAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) webhook(t *testing.T, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transaction/stripe-webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", sig)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestEscrowFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	client := s.token(t, s.fx.Client)
	freelancer := s.token(t, s.fx.Freelancer)

	w := s.do(t, http.MethodPost, "/api/v1/transaction/initiate", client, map[string]interface{}{
		"freelancer": s.fx.Freelancer.ID,
		"job":        s.fx.Job.ID,
		"amount":     700,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("initiate: %d %s", w.Code, w.Body.String())
	}
	var initiated struct {
		ClientSecret    string `json:"clientSecret"`
		PaymentIntentID string `json:"paymentIntentId"`
	}
	decode(t, w, &initiated)
	if initiated.ClientSecret == "" || initiated.PaymentIntentID == "" {
		t.Fatalf("initiate response %s", w.Body.String())
	}

	body := payment.EventPayload("evt_http_1", payment.EventIntentSucceeded, initiated.PaymentIntentID)
	if w := s.webhook(t, body, payment.SignPayload(body, webhookSecret, time.Now())); w.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/v1/transaction/escrow", client, nil)
	var escrow struct {
		Cents int64 `json:"escrowBalanceCents"`
	}
	decode(t, w, &escrow)
	if w.Code != http.StatusOK || escrow.Cents != 70000 {
		t.Fatalf("escrow: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/v1/withdrawal/wallet", freelancer, map[string]interface{}{
		"amount": "800.00", "method": "bank-transfer", "job": s.fx.Job.ID,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overdraw: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/v1/withdrawal/wallet", freelancer, map[string]interface{}{
		"amount": "700.00", "method": "bank-transfer", "job": s.fx.Job.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("withdraw: %d %s", w.Code, w.Body.String())
	}
	var wd models.Withdrawal
	decode(t, w, &wd)

	w = s.do(t, http.MethodGet, "/api/v1/withdrawal/balance?job="+itoa(s.fx.Job.ID), freelancer, nil)
	var bal struct {
		Cents int64 `json:"availableCents"`
	}
	decode(t, w, &bal)
	if w.Code != http.StatusOK || bal.Cents != 0 {
		t.Fatalf("balance after withdrawal: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPut, "/api/v1/withdrawal/"+itoa(wd.ID)+"/approval", client, map[string]string{"status": "approved"})
	if w.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPut, "/api/v1/withdrawal/"+itoa(wd.ID)+"/approval", client, map[string]string{"status": "rejected"})
	if w.Code != http.StatusConflict {
		t.Fatalf("second approval: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/v1/transaction?payoutStatus=paid", freelancer, nil)
	var page struct {
		Data  []models.Transaction `json:"data"`
		Total int64                `json:"total"`
	}
	decode(t, w, &page)
	if page.Total != 1 || page.Data[0].Status != "paid" {
		t.Fatalf("listing: %s", w.Body.String())
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)
	body := payment.EventPayload("evt_forged", payment.EventIntentSucceeded, "pi_x")

	w := s.webhook(t, body, payment.SignPayload(body, "wrong", time.Now()))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("forged: %d", w.Code)
	}
	w = s.webhook(t, body, payment.SignPayload(body, webhookSecret, time.Now()))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"received":true`)) {
		t.Fatalf("unknown intent must still be acknowledged: %d %s", w.Code, w.Body.String())
	}
}

func TestRoutesEnforceRoles(t *testing.T) {
	s := newTestServer(t)
	client := s.token(t, s.fx.Client)
	freelancer := s.token(t, s.fx.Freelancer)
	admin := s.token(t, s.fx.Admin)

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/api/v1/transaction", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/transaction/initiate", freelancer, http.StatusForbidden},
		{http.MethodGet, "/api/v1/transaction/escrow", freelancer, http.StatusForbidden},
		{http.MethodPost, "/api/v1/withdrawal/wallet", client, http.StatusForbidden},
		{http.MethodGet, "/api/v1/withdrawal/all", client, http.StatusForbidden},
		{http.MethodGet, "/api/v1/withdrawal/all", admin, http.StatusOK},
		{http.MethodGet, "/api/v1/withdrawal/client", client, http.StatusOK},
		{http.MethodGet, "/api/v1/withdrawal", freelancer, http.StatusOK},
		{http.MethodPut, "/api/v1/withdrawal/1/execution", client, http.StatusForbidden},
		{http.MethodGet, "/api/v1/withdrawal/999", admin, http.StatusNotFound},
		{http.MethodGet, "/api/v1/withdrawal/abc", admin, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/withdrawal/balance", freelancer, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/withdrawal/balance?job=1", client, http.StatusForbidden},
	}
	for _, c := range cases {
		w := s.do(t, c.method, c.path, c.token, nil)
		if w.Code != c.want {
			t.Errorf("%s %s: got %d, want %d (%s)", c.method, c.path, w.Code, c.want, w.Body.String())
		}
	}
}

func TestVerifyOverHTTP(t *testing.T) {
	s := newTestServer(t)
	client := s.token(t, s.fx.Client)

	w := s.do(t, http.MethodPost, "/api/v1/transaction/initiate", client, map[string]interface{}{
		"freelancer": s.fx.Freelancer.ID, "job": s.fx.Job.ID, "amount": "12.50",
	})
	var initiated struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	decode(t, w, &initiated)
	s.gateway.SetStatus(initiated.PaymentIntentID, payment.IntentSucceeded)

	w = s.do(t, http.MethodGet, "/api/v1/transaction/verify/"+initiated.PaymentIntentID, client, nil)
	var tx models.Transaction
	decode(t, w, &tx)
	if w.Code != http.StatusOK || tx.Status != "confirmed" || tx.AmountCents != 1250 {
		t.Fatalf("verify: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodGet, "/api/v1/transaction/verify/"+initiated.PaymentIntentID, client, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("re-verify: %d %s", w.Code, w.Body.String())
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
