package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/hamavrikan/leadbot/internal/ident"
)

// twilioGateway delivers messages through Twilio's WhatsApp Business API.
// Twilio addresses contacts as "whatsapp:+<digits>" rather than chat ids.
type twilioGateway struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioGateway returns a Gateway backed by Twilio.
func NewTwilioGateway(opts ...Option) (Gateway, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("twilio credentials not set")
	}
	if cfg.TwilioFromNumber == "" {
		return nil, fmt.Errorf("twilio sender number not set")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	slog.Debug("Messaging gateway selected", "provider", "twilio", "from", cfg.TwilioFromNumber)
	return &twilioGateway{client: client, from: "whatsapp:" + cfg.TwilioFromNumber}, nil
}

func (g *twilioGateway) SendText(ctx context.Context, chatID, text string) error {
	to, err := twilioAddress(chatID)
	if err != nil {
		return err
	}
	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(g.from)
	params.SetTo(to)
	params.SetBody(text)
	if _, err := g.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendText failed", "error", err, "to", to)
		return fmt.Errorf("failed to send text via twilio to %s: %w", chatID, err)
	}
	slog.Debug("Twilio text sent", "to", to, "body_length", len(text))
	return nil
}

func (g *twilioGateway) SendImage(ctx context.Context, chatID, imageURL, caption string) error {
	to, err := twilioAddress(chatID)
	if err != nil {
		return err
	}
	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(g.from)
	params.SetTo(to)
	params.SetBody(caption)
	params.SetMediaUrl([]string{imageURL})
	if _, err := g.client.Api.CreateMessage(params); err != nil {
		slog.Error("Twilio SendImage failed", "error", err, "to", to)
		return fmt.Errorf("failed to send image via twilio to %s: %w", chatID, err)
	}
	slog.Debug("Twilio image sent", "to", to)
	return nil
}

// twilioAddress converts a chat address into Twilio's whatsapp:+E164 form.
// Linked-device ids carry no dialable number, so they are rejected.
func twilioAddress(chatID string) (string, error) {
	addr, err := ident.ParseAddress(chatID)
	if err != nil {
		return "", fmt.Errorf("invalid chat id %s: %w", chatID, err)
	}
	if addr.IsLinkedID() {
		return "", fmt.Errorf("twilio cannot address linked-device id %s", chatID)
	}
	return "whatsapp:+" + addr.Phone, nil
}
