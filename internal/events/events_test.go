package events

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewEnvelope(t *testing.T) {
	a := NewEnvelope(TransactionInitiated, map[string]int{"id": 1})
	b := NewEnvelope(TransactionInitiated, nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids must be unique and non-empty: %q %q", a.ID, b.ID)
	}
	if a.Type != TransactionInitiated || a.OccurredAt.IsZero() {
		t.Fatalf("envelope = %+v", a)
	}
}

func TestKafkaPublisherTopic(t *testing.T) {
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "teevil")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if got := p.Topic(WithdrawalRequested); got != "teevil.withdrawal.requested" {
		t.Fatalf("topic = %q", got)
	}
	if _, err := NewKafkaPublisher(nil, "teevil"); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf).Level(zerolog.DebugLevel))
	if err := p.Publish(context.Background(), "tx-1", NewEnvelope(TransactionStatusChanged, map[string]string{"status": "confirmed"})); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"status":"confirmed"`) {
		t.Fatalf("log = %q", buf.String())
	}
}
