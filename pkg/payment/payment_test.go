package payment

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func TestStubVerifyWebhookAcceptsSignedPayload(t *testing.T) {
	g := NewStubGateway(testSecret)
	payload := EventPayload("evt_1", EventIntentSucceeded, "pi_1")
	if _, err := g.VerifyWebhook(payload, SignPayload(payload, testSecret, time.Now())); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestStubVerifyWebhookRejections(t *testing.T) {
	payload := EventPayload("evt_1", EventIntentSucceeded, "pi_1")
	now := time.Now()
	good := SignPayload(payload, testSecret, now)
	cases := map[string]struct {
		payload []byte
		header  string
		secret  string
	}{
		"wrong secret":   {payload, SignPayload(payload, "whsec_other", now), testSecret},
		"tampered body":  {[]byte(strings.Replace(string(payload), "pi_1", "pi_2", 1)), good, testSecret},
		"empty header":   {payload, "", testSecret},
		"garbage header": {payload, "nonsense", testSecret},
		"stale":          {payload, SignPayload(payload, testSecret, now.Add(-time.Hour)), testSecret},
		"no secret":      {payload, good, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewStubGateway(tc.secret).VerifyWebhook(tc.payload, tc.header)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("err = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestSignPayloadMatchesStripeScheme(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	at := time.Unix(1700000000, 0)
	header := SignPayload(payload, testSecret, at)
	want := "t=1700000000,v1=" + hex.EncodeToString(webhook.ComputeSignature(at, payload, testSecret))
	if header != want {
		t.Fatalf("header = %q, want %q", header, want)
	}
}

func TestStubGatewayLifecycle(t *testing.T) {
	g := NewStubGateway(testSecret)
	ctx := context.Background()
	in, err := g.CreateIntent(ctx, CreateIntentRequest{AmountCents: 70000, Currency: "usd"})
	if err != nil {
		t.Fatal(err)
	}
	if in.ID == "" || in.ClientSecret == "" {
		t.Fatalf("intent missing ids: %+v", in)
	}
	g.SetStatus(in.ID, IntentSucceeded)
	got, err := g.RetrieveIntent(ctx, in.ID)
	if err != nil || !got.Succeeded() {
		t.Fatalf("retrieve = %+v, %v", got, err)
	}
	if _, err := g.RetrieveIntent(ctx, "pi_missing"); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("missing intent err = %v", err)
	}
}

func TestStubGatewayHonoursContextDeadline(t *testing.T) {
	g := NewStubGateway(testSecret)
	g.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.CreateIntent(ctx, CreateIntentRequest{AmountCents: 1})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if g.IntentCount() != 0 {
		t.Fatal("timed out call must not create an intent")
	}
}

func TestStubVerifyWebhookExtractsIntent(t *testing.T) {
	g := NewStubGateway(testSecret)
	payload := EventPayload("evt_9", EventIntentFailed, "pi_9")
	evt, err := g.VerifyWebhook(payload, SignPayload(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if evt.ID != "evt_9" || evt.Type != EventIntentFailed || evt.IntentID != "pi_9" {
		t.Fatalf("event = %+v", evt)
	}
}

func TestStripeVerifyWebhook(t *testing.T) {
	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test", WebhookSecret: testSecret})
	payload := EventPayload("evt_1", EventIntentSucceeded, "pi_123")

	evt, err := g.VerifyWebhook(payload, SignPayload(payload, testSecret, time.Now()))
	if err != nil {
		t.Fatalf("VerifyWebhook: %v", err)
	}
	if evt.ID != "evt_1" || evt.Type != EventIntentSucceeded || evt.IntentID != "pi_123" {
		t.Fatalf("event = %+v", evt)
	}

	_, err = g.VerifyWebhook(payload, SignPayload(payload, "whsec_forged", time.Now()))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("forged signature err = %v", err)
	}
}

func newStripeTestGateway(t *testing.T, h http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return NewStripeGateway(StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: testSecret,
		Backends:      &stripe.Backends{API: backend},
	})
}

func TestStripeCreateIntent(t *testing.T) {
	var form string
	g := newStripeTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		form = string(b)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"pi_abc","object":"payment_intent","amount":70000,"currency":"usd","status":"requires_payment_method","client_secret":"pi_abc_secret_x"}`)
	})
	in, err := g.CreateIntent(context.Background(), CreateIntentRequest{
		AmountCents: 70000,
		Currency:    "usd",
		Metadata:    map[string]string{"job_id": "7"},
	})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if in.ID != "pi_abc" || in.ClientSecret != "pi_abc_secret_x" || in.Status != IntentRequiresPaymentMethod {
		t.Fatalf("intent = %+v", in)
	}
	if !strings.Contains(form, "amount=70000") || !strings.Contains(form, "metadata[job_id]=7") && !strings.Contains(form, "metadata%5Bjob_id%5D=7") {
		t.Fatalf("unexpected form %q", form)
	}
}

func TestStripeRetrieveIntentMapsErrors(t *testing.T) {
	g := newStripeTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/payment_intents/pi_ok":
			fmt.Fprint(w, `{"id":"pi_ok","object":"payment_intent","amount":100,"currency":"usd","status":"succeeded"}`)
		case "/v1/payment_intents/pi_missing":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"Invalid API Key"}}`)
		}
	})
	ctx := context.Background()
	in, err := g.RetrieveIntent(ctx, "pi_ok")
	if err != nil || !in.Succeeded() {
		t.Fatalf("retrieve ok = %+v, %v", in, err)
	}
	if _, err := g.RetrieveIntent(ctx, "pi_missing"); !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	if _, err := g.RetrieveIntent(ctx, "pi_other"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("auth err = %v", err)
	}
}
