// Package models: webhook event envelope received from the WAHA gateway.
package models

// Webhook event names delivered by WAHA.
const (
	// EventMessage is a message event.
	EventMessage = "message"
	// EventMessageAny is the catch-all message event (includes own messages).
	EventMessageAny = "message.any"
	// EventPollVote is a poll vote event.
	EventPollVote = "poll.vote"
)

// WebhookEvent is the envelope posted to the webhook endpoint.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Payload MessagePayload `json:"payload"`
}

// IsMessage reports whether the event carries a chat message.
func (e *WebhookEvent) IsMessage() bool {
	return e.Event == EventMessage || e.Event == EventMessageAny
}

// MessagePayload carries one inbound or outbound message. The provider
// populates different fields depending on its engine, so sender identity and
// display name have several candidate sources.
type MessagePayload struct {
	ID          string        `json:"id"`
	From        string        `json:"from"`
	To          string        `json:"to,omitempty"`
	FromMe      bool          `json:"fromMe"`
	Body        string        `json:"body"`
	HasMedia    bool          `json:"hasMedia"`
	Media       *Media        `json:"media,omitempty"`
	PushName    string        `json:"pushName,omitempty"`
	NotifyName  string        `json:"notifyName,omitempty"`
	IsStatus    bool          `json:"isStatusV3,omitempty"`
	IsBroadcast bool          `json:"isBroadcast,omitempty"`
	Sender      *SenderInfo   `json:"sender,omitempty"`
	RawData     *RawData      `json:"_data,omitempty"`
	Voter       string        `json:"voter,omitempty"`
	Options     []PollOption  `json:"selectedOptions,omitempty"`
}

// Media references an attachment on a message.
type Media struct {
	URL string `json:"url"`
}

// SenderInfo is the engine-specific sender block some WAHA engines attach.
type SenderInfo struct {
	ID       string `json:"id"`
	PushName string `json:"pushname,omitempty"`
	Name     string `json:"name,omitempty"`
}

// RawData mirrors the engine-internal _data block; only the fields used for
// identity and name fallback are mapped.
type RawData struct {
	From       string `json:"from,omitempty"`
	NotifyName string `json:"notifyName,omitempty"`
	PushName   string `json:"pushName,omitempty"`
}

// PollOption is one selected option of a poll vote.
type PollOption struct {
	Name string `json:"name"`
}

// DisplayName returns the best-effort contact name from the payload's
// candidate fields, sanitized, or "" when none is usable.
func (p *MessagePayload) DisplayName() string {
	candidates := []string{p.PushName, p.NotifyName}
	if p.RawData != nil {
		candidates = append(candidates, p.RawData.NotifyName, p.RawData.PushName)
	}
	if p.Sender != nil {
		candidates = append(candidates, p.Sender.PushName, p.Sender.Name)
	}
	for _, c := range candidates {
		if name := SanitizeName(c); name != "" {
			return name
		}
	}
	return ""
}

// AltSenderID returns an alternate sender address for engines that put the
// real contact id outside the from field (e.g. when from carries a @lid).
func (p *MessagePayload) AltSenderID() string {
	if p.RawData != nil && p.RawData.From != "" {
		return p.RawData.From
	}
	if p.Sender != nil && p.Sender.ID != "" {
		return p.Sender.ID
	}
	return ""
}

// MediaURL returns the attachment URL, or "" when the message has none.
func (p *MessagePayload) MediaURL() string {
	if p.Media != nil {
		return p.Media.URL
	}
	return ""
}

// APIResponse is the standard JSON body returned by HTTP handlers.
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Duplicate and RateLimited flag acknowledged-but-ignored deliveries.
	Duplicate   bool        `json:"duplicate,omitempty"`
	RateLimited bool        `json:"rateLimited,omitempty"`
	Result      interface{} `json:"result,omitempty"`
}

// OK builds a success response.
func OK() APIResponse {
	return APIResponse{Success: true}
}

// OKWithResult builds a success response carrying data.
func OKWithResult(result interface{}) APIResponse {
	return APIResponse{Success: true, Result: result}
}

// Failure builds an error response. Internal details are not leaked to the
// upstream provider; callers pass a generic message.
func Failure(message string) APIResponse {
	return APIResponse{Success: false, Error: message}
}
