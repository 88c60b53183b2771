package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hamavrikan/leadbot/internal/flow"
	"github.com/hamavrikan/leadbot/internal/ingress"
	"github.com/hamavrikan/leadbot/internal/models"
	"github.com/hamavrikan/leadbot/internal/store"
)

type nullGateway struct{}

func (nullGateway) SendText(ctx context.Context, chatID, text string) error { return nil }
func (nullGateway) SendImage(ctx context.Context, chatID, imageURL, caption string) error {
	return nil
}

func newTestServer(t *testing.T, guardOpts ...ingress.Option) (*Server, *store.InMemoryStore) {
	t.Helper()
	s := store.NewInMemoryStore()
	engine, err := flow.NewEngine(flow.WithStore(s), flow.WithGateway(nullGateway{}))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	srv, err := NewServer(
		WithEngine(engine),
		WithGuard(ingress.NewGuard(guardOpts...)),
		WithStore(s),
	)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, s
}

func postEvent(t *testing.T, srv *Server, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, w.Body.String())
	}
	return w, resp
}

func messageEvent(id, from, body string) string {
	return fmt.Sprintf(`{"event":"message","payload":{"id":%q,"from":%q,"body":%q}}`, id, from, body)
}

func TestWebhookMalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebhookTriggerStartsConversation(t *testing.T) {
	srv, s := newTestServer(t)
	w, resp := postEvent(t, srv, messageEvent("m1", "972501234567@c.us", "שלום"))
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d resp = %+v", w.Code, resp)
	}
	conv, _ := s.GetConversation("972501234567")
	if conv == nil || conv.State != models.StateAwaitingLocation {
		t.Errorf("conversation not started: %+v", conv)
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	srv, s := newTestServer(t)
	postEvent(t, srv, messageEvent("dup-1", "972501234567@c.us", "שלום"))
	w, resp := postEvent(t, srv, messageEvent("dup-1", "972501234567@c.us", "שלום"))
	if w.Code != http.StatusOK || !resp.Duplicate {
		t.Errorf("second delivery should be flagged duplicate: %+v", resp)
	}
	// Exactly one state mutation: the conversation is still awaiting location.
	conv, _ := s.GetConversation("972501234567")
	if conv.State != models.StateAwaitingLocation {
		t.Errorf("state = %s", conv.State)
	}
}

func TestWebhookRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, ingress.WithRateLimit(2))
	from := "972501234567@c.us"
	postEvent(t, srv, messageEvent("r1", from, "שלום"))
	postEvent(t, srv, messageEvent("r2", from, "חיפה"))
	w, resp := postEvent(t, srv, messageEvent("r3", from, "1"))
	if w.Code != http.StatusOK || !resp.RateLimited {
		t.Errorf("third message should be rate limited: %+v", resp)
	}
}

func TestWebhookOperatorOutbound(t *testing.T) {
	srv, s := newTestServer(t)
	body := `{"event":"message.any","payload":{"id":"o1","fromMe":true,"to":"972501234567@c.us","from":"972544994417@c.us"}}`
	w, resp := postEvent(t, srv, body)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d resp = %+v", w.Code, resp)
	}
	conv, _ := s.GetConversation("972501234567")
	if conv == nil || conv.Data.OwnerContacted == nil {
		t.Errorf("takeover not recorded: %+v", conv)
	}
}

func TestWebhookStatusNoiseIgnored(t *testing.T) {
	srv, s := newTestServer(t)
	body := `{"event":"message","payload":{"id":"s1","from":"972501234567@c.us","body":"שלום","isStatusV3":true}}`
	w, resp := postEvent(t, srv, body)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d resp = %+v", w.Code, resp)
	}
	if conv, _ := s.GetConversation("972501234567"); conv != nil {
		t.Error("status update must not mutate state")
	}
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	srv, _ := newTestServer(t)
	w, resp := postEvent(t, srv, `{"event":"session.status","payload":{}}`)
	if w.Code != http.StatusOK || !resp.Success {
		t.Errorf("unknown events must be acknowledged: %d %+v", w.Code, resp)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestLeadsListing(t *testing.T) {
	srv, s := newTestServer(t)
	s.SaveLead(&models.Lead{Phone: "972501234567", ItemType: models.ItemSofa})
	s.SaveLead(&models.Lead{Phone: "972501234568", ItemType: models.ItemCarpet})

	req := httptest.NewRequest(http.MethodGet, "/leads?status=new&limit=1", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Success bool          `json:"success"`
		Result  []models.Lead `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if len(resp.Result) != 1 || resp.Result[0].ItemType != models.ItemCarpet {
		t.Errorf("expected newest lead first with limit 1: %+v", resp.Result)
	}
}

func TestLeadsInvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/leads?limit=abc", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
