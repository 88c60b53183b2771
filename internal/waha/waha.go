// Package waha wraps the WAHA (WhatsApp HTTP API) server for leadbot.
//
// It covers the send endpoints used by the flow plus the chat listing used
// by the one-shot contact importer. WAHA has no Go SDK, so this is a thin
// net/http client around its JSON API.
package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Defaults for the WAHA connection.
const (
	// DefaultBaseURL is the WAHA server address inside the compose network.
	DefaultBaseURL = "http://waha:3000"
	// DefaultSession is the WAHA session name.
	DefaultSession = "default"
	// DefaultTimeout bounds each API call.
	DefaultTimeout = 30 * time.Second
	// chatPageSize is the page size used when listing chats.
	chatPageSize = 100
)

// Opts holds configuration options for the WAHA client.
type Opts struct {
	BaseURL string
	APIKey  string
	Session string
	Client  *http.Client
}

// Option defines a configuration option for the WAHA client.
type Option func(*Opts)

// WithBaseURL sets the WAHA server base URL.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAPIKey sets the X-Api-Key header value.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithSession sets the WAHA session name.
func WithSession(session string) Option {
	return func(o *Opts) { o.Session = session }
}

// WithHTTPClient injects a custom HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.Client = c }
}

// Client calls the WAHA HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	session string
	http    *http.Client
}

// NewClient creates a WAHA client, falling back to environment variables for
// unset options.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("WAHA_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("WAHA_API_KEY")
	}
	if cfg.Session == "" {
		cfg.Session = os.Getenv("WAHA_SESSION")
	}
	if cfg.Session == "" {
		cfg.Session = DefaultSession
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("WAHA client config loaded", "base_url", cfg.BaseURL, "session", cfg.Session, "api_key_set", cfg.APIKey != "")
	return &Client{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, session: cfg.Session, http: cfg.Client}
}

// SendText sends a text message to the given chat id.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	body := map[string]interface{}{
		"session": c.session,
		"chatId":  chatID,
		"text":    text,
	}
	if err := c.post(ctx, "/api/sendText", body); err != nil {
		slog.Error("WAHA SendText failed", "error", err, "chat_id", chatID)
		return fmt.Errorf("failed to send text to %s: %w", chatID, err)
	}
	slog.Debug("WAHA text sent", "chat_id", chatID, "body_length", len(text))
	return nil
}

// SendImage sends an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, chatID, imageURL, caption string) error {
	body := map[string]interface{}{
		"session": c.session,
		"chatId":  chatID,
		"file":    map[string]string{"url": imageURL},
		"caption": caption,
	}
	if err := c.post(ctx, "/api/sendImage", body); err != nil {
		slog.Error("WAHA SendImage failed", "error", err, "chat_id", chatID)
		return fmt.Errorf("failed to send image to %s: %w", chatID, err)
	}
	slog.Debug("WAHA image sent", "chat_id", chatID)
	return nil
}

// Chat is one entry of the WAHA chat listing.
type Chat struct {
	ID       string `json:"id"`
	AltID    string `json:"_id,omitempty"`
	Name     string `json:"name,omitempty"`
	PushName string `json:"pushName,omitempty"`
	Contact  *struct {
		Name string `json:"name,omitempty"`
	} `json:"contact,omitempty"`
}

// ChatID returns the chat identifier, whichever field carries it.
func (ch Chat) ChatID() string {
	if ch.ID != "" {
		return ch.ID
	}
	return ch.AltID
}

// DisplayName returns the best available name for the chat, or "".
func (ch Chat) DisplayName() string {
	if ch.Name != "" {
		return ch.Name
	}
	if ch.PushName != "" {
		return ch.PushName
	}
	if ch.Contact != nil {
		return ch.Contact.Name
	}
	return ""
}

// ListChats pages through all chats of the session, newest activity first.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var all []Chat
	offset := 0
	for {
		slog.Debug("WAHA fetching chats page", "offset", offset)
		page, err := c.listChatsPage(ctx, offset, chatPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < chatPageSize {
			break
		}
		offset += chatPageSize
	}
	slog.Info("WAHA chats listed", "count", len(all))
	return all, nil
}

func (c *Client) listChatsPage(ctx context.Context, offset, limit int) ([]Chat, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sortBy", "messageTimestamp")
	params.Set("sortOrder", "desc")

	endpoint := fmt.Sprintf("%s/api/%s/chats?%s", c.baseURL, c.session, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chats request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chats request returned status %d", resp.StatusCode)
	}
	var chats []Chat
	if err := json.NewDecoder(resp.Body).Decode(&chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats response: %w", err)
	}
	return chats, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, snippet)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
