// Package messaging provides the outbound delivery abstraction for the bot.
//
// The flow engine talks to a Gateway and never to a concrete provider. Three
// backends exist: the WAHA HTTP API (default), a direct Whatsmeow device
// session, and Twilio's WhatsApp Business API.
package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hamavrikan/leadbot/internal/waha"
	"github.com/hamavrikan/leadbot/internal/whatsapp"
)

// Gateway delivers outbound WhatsApp messages.
type Gateway interface {
	// SendText sends a plain text message to a chat address such as
	// "972501234567@c.us".
	SendText(ctx context.Context, chatID, text string) error
	// SendImage sends an image by URL with an optional caption.
	SendImage(ctx context.Context, chatID, imageURL, caption string) error
}

// Opts holds configuration options for gateway construction.
type Opts struct {
	WAHAClient     *waha.Client
	WhatsAppClient *whatsapp.Client

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// Option defines a configuration option for gateway construction.
type Option func(*Opts)

// WithWAHAClient supplies a pre-built WAHA client.
func WithWAHAClient(c *waha.Client) Option {
	return func(o *Opts) { o.WAHAClient = c }
}

// WithWhatsAppClient supplies a pre-built Whatsmeow client.
func WithWhatsAppClient(c *whatsapp.Client) Option {
	return func(o *Opts) { o.WhatsAppClient = c }
}

// WithTwilioCredentials sets the Twilio account credentials and sender number.
func WithTwilioCredentials(accountSID, authToken, fromNumber string) Option {
	return func(o *Opts) {
		o.TwilioAccountSID = accountSID
		o.TwilioAuthToken = authToken
		o.TwilioFromNumber = fromNumber
	}
}

// NewWAHAGateway returns a Gateway backed by a WAHA server.
func NewWAHAGateway(opts ...Option) Gateway {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.WAHAClient
	if client == nil {
		client = waha.NewClient()
	}
	slog.Debug("Messaging gateway selected", "provider", "waha")
	return &wahaGateway{client: client}
}

// NewWhatsAppGateway returns a Gateway backed by a direct Whatsmeow session.
func NewWhatsAppGateway(opts ...Option) (Gateway, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.WhatsAppClient == nil {
		return nil, fmt.Errorf("whatsapp client not provided")
	}
	slog.Debug("Messaging gateway selected", "provider", "whatsmeow")
	return &whatsappGateway{client: cfg.WhatsAppClient}, nil
}

type wahaGateway struct {
	client *waha.Client
}

func (g *wahaGateway) SendText(ctx context.Context, chatID, text string) error {
	return g.client.SendText(ctx, chatID, text)
}

func (g *wahaGateway) SendImage(ctx context.Context, chatID, imageURL, caption string) error {
	return g.client.SendImage(ctx, chatID, imageURL, caption)
}

type whatsappGateway struct {
	client *whatsapp.Client
}

func (g *whatsappGateway) SendText(ctx context.Context, chatID, text string) error {
	return g.client.SendText(ctx, chatID, text)
}

func (g *whatsappGateway) SendImage(ctx context.Context, chatID, imageURL, caption string) error {
	return g.client.SendImage(ctx, chatID, imageURL, caption)
}
