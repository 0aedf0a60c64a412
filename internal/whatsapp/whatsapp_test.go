package whatsapp

import (
	"context"
	"testing"
)

func TestSendMessageValidation(t *testing.T) {
	c := &Client{}
	ctx := context.Background()

	if err := c.SendMessage(ctx, "5215512345678", "hola"); err == nil {
		t.Error("uninitialized client must error")
	}

	c = &Client{waClient: nil}
	if err := c.SendMessage(ctx, "", "hola"); err == nil {
		t.Error("empty recipient must error")
	}
	if err := c.SendMessage(ctx, "5215512345678", ""); err == nil {
		t.Error("empty body must error")
	}
}

func TestMockClientSatisfiesSender(t *testing.T) {
	var s Sender = NewMockClient()
	if err := s.SendMessage(context.Background(), "5215512345678", "hola"); err != nil {
		t.Errorf("mock send failed: %v", err)
	}
}
