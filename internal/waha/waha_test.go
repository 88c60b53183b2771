package waha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendTextPostsSessionAndChatID(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sendText" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithAPIKey("secret"), WithSession("default"))
	if err := c.SendText(context.Background(), "972501234567@c.us", "שלום"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["chatId"] != "972501234567@c.us" || got["session"] != "default" || got["text"] != "שלום" {
		t.Errorf("unexpected request body: %v", got)
	}
}

func TestSendImageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not started", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	err := c.SendImage(context.Background(), "972501234567@c.us", "http://example/a.jpg", "")
	if err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}

func TestListChatsPagination(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/default/chats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var chats []Chat
		if page == 0 {
			for i := 0; i < chatPageSize; i++ {
				chats = append(chats, Chat{ID: "1@c.us"})
			}
		} else {
			chats = []Chat{{ID: "2@c.us", Name: "דנה"}}
		}
		page++
		json.NewEncoder(w).Encode(chats)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	chats, err := c.ListChats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chats) != chatPageSize+1 {
		t.Errorf("len(chats) = %d, want %d", len(chats), chatPageSize+1)
	}
	if page != 2 {
		t.Errorf("expected two page fetches, got %d", page)
	}
}

func TestChatDisplayName(t *testing.T) {
	if got := (Chat{PushName: "דנה"}).DisplayName(); got != "דנה" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := (Chat{}).DisplayName(); got != "" {
		t.Errorf("DisplayName = %q, want empty", got)
	}
}
