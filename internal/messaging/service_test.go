package messaging

import "testing"

func TestTwilioAddress(t *testing.T) {
	got, err := twilioAddress("972501234567@c.us")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "whatsapp:+972501234567" {
		t.Errorf("twilioAddress = %q", got)
	}

	if _, err := twilioAddress("123456789@lid"); err == nil {
		t.Error("expected error for linked-device id")
	}
	if _, err := twilioAddress("group@g.us"); err == nil {
		t.Error("expected error for group id")
	}
}

func TestNewWhatsAppGatewayRequiresClient(t *testing.T) {
	if _, err := NewWhatsAppGateway(); err == nil {
		t.Error("expected error when no client is provided")
	}
}

func TestNewTwilioGatewayRequiresCredentials(t *testing.T) {
	if _, err := NewTwilioGateway(); err == nil {
		t.Error("expected error when credentials are missing")
	}
	if _, err := NewTwilioGateway(WithTwilioCredentials("AC123", "token", "")); err == nil {
		t.Error("expected error when sender number is missing")
	}
}
