package messaging

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/creatoros/dmflow/internal/twiliowhatsapp"
)

func TestTwilioWebhookEmitsInboundMessage(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5215512345678")
	form.Set("Body", "me interesa el curso")
	form.Set("ProfileName", "Ana")
	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case msg := <-svc.Responses():
		if msg.Body != "me interesa el curso" {
			t.Errorf("unexpected body %q", msg.Body)
		}
		if msg.DisplayName != "Ana" {
			t.Errorf("expected profile name, got %q", msg.DisplayName)
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message emitted")
	}
}

func TestTwilioWebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5215512345678")
	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != 400 {
		t.Errorf("expected 400 for missing body, got %d", rec.Code)
	}
}

func TestTwilioSendAfterStop(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := svc.SendMessage(context.Background(), "5215512345678", "hola"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestTwilioSendCanonicalizes(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+52 (155) 1234-5678", "hola"); err != nil {
		t.Fatal(err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].To != "5215512345678" {
		t.Errorf("expected canonicalized send, got %+v", sent)
	}
}
