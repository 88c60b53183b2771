// Package store provides storage backends for leadbot.
//
// It persists the per-contact conversation records and the append-only lead
// rows, with PostgreSQL and SQLite implementations plus an in-memory store
// for tests.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hamavrikan/leadbot/internal/models"
)

// Store is the persistence interface consumed by the flow engine and the
// HTTP API. Conversation writes are last-write-wins full-document upserts;
// the engine serializes per-phone mutations above this layer.
type Store interface {
	// GetConversation returns the conversation for a phone, or nil if none.
	GetConversation(phone string) (*models.Conversation, error)

	// SaveConversation upserts the conversation record.
	SaveConversation(conv models.Conversation) error

	// SaveLead appends a lead and fills in its ID and CreatedAt.
	SaveLead(lead *models.Lead) error

	// ListLeads returns leads newest first, optionally filtered by status.
	ListLeads(status string, limit int) ([]models.Lead, error)

	// SweepIdle resets conversations stuck mid-flow for longer than
	// olderThan back to idle, preserving the sticky side-channel fields.
	// Returns the number of conversations reset.
	SweepIdle(olderThan time.Duration) (int64, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for URL-style postgres DSNs and key=value
// connection strings, "sqlite" otherwise (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// sweptData returns the data document a swept conversation keeps: only the
// sticky side-channel fields survive, flow progress is discarded.
func sweptData(d models.ConversationData) models.ConversationData {
	return models.ConversationData{
		ChatAddress:    d.ChatAddress,
		OwnerContacted: d.OwnerContacted,
	}
}

// InMemoryStore is a mutex-guarded Store for tests.
type InMemoryStore struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
	leads         []models.Lead
	nextLeadID    int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]models.Conversation),
		nextLeadID:    1,
	}
}

func (s *InMemoryStore) GetConversation(phone string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[phone]
	if !ok {
		return nil, nil
	}
	return &conv, nil
}

func (s *InMemoryStore) SaveConversation(conv models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.UpdatedAt = time.Now()
	s.conversations[conv.Phone] = conv
	return nil
}

func (s *InMemoryStore) SaveLead(lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead.ID = s.nextLeadID
	s.nextLeadID++
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	lead.CreatedAt = time.Now()
	s.leads = append(s.leads, *lead)
	return nil
}

func (s *InMemoryStore) ListLeads(status string, limit int) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Lead
	for _, l := range s.leads {
		if status == "" || l.Status == status {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) SweepIdle(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var swept int64
	for phone, conv := range s.conversations {
		if conv.State.IsResting() || !conv.UpdatedAt.Before(cutoff) {
			continue
		}
		conv.State = models.StateIdle
		conv.Data = sweptData(conv.Data)
		conv.UpdatedAt = time.Now()
		s.conversations[phone] = conv
		swept++
	}
	return swept, nil
}

func (s *InMemoryStore) Close() error { return nil }

// Leads returns a copy of all stored leads (test helper).
func (s *InMemoryStore) Leads() []models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Lead, len(s.leads))
	copy(out, s.leads)
	return out
}
