// Package models defines the core data structures shared across leadbot modules.
//
// It includes the per-contact Conversation record, the append-only Lead
// produced when a flow completes, and the webhook event envelope received
// from the WhatsApp HTTP API (WAHA).
package models

import (
	"errors"
	"strings"
	"time"
)

// Validation constants for inbound input.
const (
	// MaxMessageLength caps inbound message text before it enters the flow.
	MaxMessageLength = 1000
	// MaxNameLength caps contact display names.
	MaxNameLength = 100
	// MaxLocationLength caps the free-text location answer.
	MaxLocationLength = 255
)

// Error variables for validation failures.
var (
	ErrEmptyPhone       = errors.New("phone cannot be empty")
	ErrInvalidItemType  = errors.New("invalid item type")
	ErrLeadAlreadySaved = errors.New("lead already has an id")
)

// ItemDetails holds the answers collected for one item. For a composite
// multi-item lead only Items is populated; for a single item the flat
// fields are.
type ItemDetails struct {
	Type      string       `json:"type,omitempty"`
	BothSides string       `json:"bothSides,omitempty"`
	Stains    string       `json:"stains,omitempty"`
	Age       string       `json:"age,omitempty"`
	Size      string       `json:"size,omitempty"`
	Items     []ItemRecord `json:"items,omitempty"`
}

// ItemRecord is one entry of a composite lead's item list.
type ItemRecord struct {
	Type      string `json:"type"`
	BothSides string `json:"bothSides,omitempty"`
	Stains    string `json:"stains,omitempty"`
	Age       string `json:"age,omitempty"`
	Size      string `json:"size,omitempty"`
}

// CompletedItem is the bookkeeping record appended when one item's question
// chain reaches its photo state.
type CompletedItem struct {
	Type    string      `json:"type"`
	Details ItemDetails `json:"details"`
	Photos  []string    `json:"photos"`
}

// ConversationData accumulates answers and control fields as the flow
// advances. It is persisted as a JSON document on the conversation row.
type ConversationData struct {
	Location    string `json:"location,omitempty"`
	ChatAddress string `json:"chatAddress,omitempty"`
	ItemType    string `json:"itemType,omitempty"`

	// Per-item answers; cleared when a multi-item flow moves to its next item.
	MattressType string `json:"mattressType,omitempty"`
	BothSides    string `json:"bothSides,omitempty"`
	Stains       string `json:"stains,omitempty"`
	Age          string `json:"age,omitempty"`
	SofaType     string `json:"sofaType,omitempty"`
	CarpetType   string `json:"carpetType,omitempty"`
	CarpetSize   string `json:"carpetSize,omitempty"`

	// Multi-item bookkeeping.
	PendingItems   []string        `json:"pendingItems,omitempty"`
	CompletedItems []CompletedItem `json:"completedItems,omitempty"`
	CurrentItem    string          `json:"currentItem,omitempty"`

	// Side-channel flags. OwnerContacted is sticky once set.
	OwnerContacted *time.Time `json:"ownerContacted,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// ClearItemAnswers drops the per-item answer fields so the next item in a
// multi-item flow starts from a clean scope. Location, chat address and the
// multi-item queue are preserved.
func (d *ConversationData) ClearItemAnswers() {
	d.MattressType = ""
	d.BothSides = ""
	d.Stains = ""
	d.Age = ""
	d.SofaType = ""
	d.CarpetType = ""
	d.CarpetSize = ""
}

// Conversation is the per-contact flow record, keyed by canonical phone.
type Conversation struct {
	Phone     string           `json:"phone"`
	Name      string           `json:"name"`
	State     State            `json:"state"`
	Data      ConversationData `json:"data"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// LeadStatus values for downstream triage. This subsystem only ever writes "new".
const (
	LeadStatusNew = "new"
)

// Lead is the terminal artifact of one completed flow. It is immutable
// after creation.
type Lead struct {
	ID          int64       `json:"id"`
	Phone       string      `json:"phone"`
	Name        string      `json:"name"`
	Location    string      `json:"location"`
	ItemType    string      `json:"item_type"`
	ItemDetails ItemDetails `json:"item_details"`
	Photos      []string    `json:"photos"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SanitizeText trims input and caps it at max runes. Non-text input becomes "".
func SanitizeText(text string, max int) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) > max {
		return string(runes[:max])
	}
	return trimmed
}

// SanitizeName normalizes a contact display name, stripping HTML-like
// characters and capping length. Returns "" when nothing usable remains.
func SanitizeName(name string) string {
	cleaned := strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(name))
	runes := []rune(cleaned)
	if len(runes) > MaxNameLength {
		cleaned = string(runes[:MaxNameLength])
	}
	return cleaned
}
