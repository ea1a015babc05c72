package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/emmanuel-dcoder/teevil-api/config"

	"github.com/rs/zerolog"
)

func newTestMailService(t *testing.T, host string) *MailService {
	t.Helper()
	svc, err := NewMailService(config.MailConfig{Host: host, Port: 587, From: "Teevil <no-reply@teevil.com>"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new mail service: %v", err)
	}
	return svc
}

func TestBuildMessageRendersTemplate(t *testing.T) {
	svc := newTestMailService(t, "")

	msg, err := svc.buildMessage("femi@teevil.test", "Teevil: Withdrawal Request", MailTemplateWithdrawalRequest, MailData{
		Name:      "Femi Dev",
		Amount:    "700.00",
		Reference: "TRX-AB12C",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rcpts, err := msg.GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "femi@teevil.test" {
		t.Errorf("recipients %v (%v)", rcpts, err)
	}
}

func TestWithdrawalTemplatesRender(t *testing.T) {
	svc := newTestMailService(t, "")
	var buf bytes.Buffer
	err := svc.templates.ExecuteTemplate(&buf, MailTemplateWithdrawalApproval+".html", MailData{
		Name:      "Femi Dev",
		Amount:    "700.00",
		Reference: "TRX-AB12C",
		Status:    "approved",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Femi Dev", "$700.00", "TRX-AB12C", "approved"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestBuildMessageUnknownTemplate(t *testing.T) {
	svc := newTestMailService(t, "")
	if _, err := svc.buildMessage("a@b.c", "x", "nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestSendWithoutHostIsDropped(t *testing.T) {
	svc := newTestMailService(t, "")
	if svc.Enabled() {
		t.Fatal("mail must be disabled without a host")
	}
	err := svc.Send(context.Background(), "femi@teevil.test", "Withdrawal", MailTemplateWithdrawalApproval, MailData{Status: "approved"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
}
