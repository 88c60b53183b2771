package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hamavrikan/leadbot/internal/models"
)

func TestEnvelopeEncodesLead(t *testing.T) {
	lead := &models.Lead{ID: 7, Phone: "972501234567", ItemType: models.ItemSofa}
	env := Envelope{ID: "abc", Type: KeyLeadCreated, Payload: lead}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Type    string `json:"type"`
		Payload struct {
			Phone    string `json:"phone"`
			ItemType string `json:"item_type"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Type != "lead.created" || decoded.Payload.Phone != "972501234567" {
		t.Errorf("unexpected envelope: %s", body)
	}
}

func TestFallbackPublisherIsSilent(t *testing.T) {
	p := NewFallback()
	if err := p.PublishLeadCreated(context.Background(), &models.Lead{ID: 1}); err != nil {
		t.Errorf("fallback publisher must not fail: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("fallback close must not fail: %v", err)
	}
}

func TestNewAMQPPublisherRequiresURL(t *testing.T) {
	if _, err := NewAMQPPublisher(); err == nil {
		t.Error("expected error when broker URL is missing")
	}
}
