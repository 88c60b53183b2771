// Package flow implements the conversation state machine that qualifies
// cleaning-service leads over WhatsApp.
//
// The engine is invoked once per webhook event. Events for different contacts
// run concurrently; events for the same phone are serialized through a keyed
// mutex so a read-modify-write of the conversation record cannot lose an
// update. Every step persists the conversation before sending its reply, so a
// gateway failure never leaves the stored state ahead of what the contact saw.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hamavrikan/leadbot/internal/events"
	"github.com/hamavrikan/leadbot/internal/ident"
	"github.com/hamavrikan/leadbot/internal/messaging"
	"github.com/hamavrikan/leadbot/internal/models"
	"github.com/hamavrikan/leadbot/internal/store"
)

// DefaultOwnerPhone is the operator phone receiving lead notifications.
const DefaultOwnerPhone = "972544994417"

// Opts holds configuration options for the flow engine.
type Opts struct {
	Store      store.Store
	Gateway    messaging.Gateway
	Publisher  events.Publisher
	OwnerPhone string
}

// Option defines a configuration option for the flow engine.
type Option func(*Opts)

// WithStore sets the conversation and lead store.
func WithStore(s store.Store) Option {
	return func(o *Opts) { o.Store = s }
}

// WithGateway sets the outbound messaging gateway.
func WithGateway(g messaging.Gateway) Option {
	return func(o *Opts) { o.Gateway = g }
}

// WithPublisher sets the lead event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *Opts) { o.Publisher = p }
}

// WithOwnerPhone sets the operator phone number for notifications.
func WithOwnerPhone(phone string) Option {
	return func(o *Opts) { o.OwnerPhone = phone }
}

// Engine drives the per-contact lead qualification flow.
type Engine struct {
	store      store.Store
	gateway    messaging.Gateway
	publisher  events.Publisher
	ownerPhone string

	// locksMu guards locks; each entry serializes one phone's mutations.
	// Entries are never evicted; the map is bounded by the contact count.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewEngine creates a flow engine. Store and gateway are required; the
// publisher defaults to a no-op and the owner phone to the business default.
func NewEngine(opts ...Option) (*Engine, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store not set")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("messaging gateway not set")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NewFallback()
	}
	if cfg.OwnerPhone == "" {
		cfg.OwnerPhone = DefaultOwnerPhone
	}
	slog.Debug("Engine created", "owner_phone", cfg.OwnerPhone)
	return &Engine{
		store:      cfg.Store,
		gateway:    cfg.Gateway,
		publisher:  cfg.Publisher,
		ownerPhone: cfg.OwnerPhone,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// lockPhone serializes handling per canonical phone. Returns the unlock func.
func (e *Engine) lockPhone(phone string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[phone]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[phone] = mu
	}
	e.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// HandleInbound processes one contact-originated message through the state
// machine. Group, broadcast and unparseable addresses are ignored.
func (e *Engine) HandleInbound(ctx context.Context, payload *models.MessagePayload) error {
	addr, err := ident.ParseAddress(payload.From)
	if err != nil {
		// Some provider engines put the real contact id outside the from field.
		if alt := payload.AltSenderID(); alt != "" {
			addr, err = ident.ParseAddress(alt)
		}
		if err != nil {
			slog.Debug("Engine ignoring non-private or invalid sender", "from", payload.From, "error", err)
			return nil
		}
	}
	phone := addr.Phone
	chatID := addr.ChatID()

	name := payload.DisplayName()
	if name == "" {
		name = phone
	}
	text := models.SanitizeText(payload.Body, models.MaxMessageLength)
	slog.Debug("Engine inbound message", "phone", phone, "body_length", len(text), "has_media", payload.HasMedia)

	unlock := e.lockPhone(phone)
	defer unlock()

	conv, err := e.store.GetConversation(phone)
	if err != nil {
		slog.Error("Engine conversation load failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to load conversation for %s: %w", phone, err)
	}

	if conv != nil && (conv.State.IsTerminal() || conv.Data.CompletedAt != nil) {
		slog.Debug("Engine ignoring message for completed conversation", "phone", phone)
		return nil
	}
	if conv != nil && conv.Data.OwnerContacted != nil {
		slog.Debug("Engine suppressing reply, operator owns the conversation", "phone", phone)
		return nil
	}

	if conv == nil || conv.State == models.StateIdle {
		if !ContainsTrigger(text) {
			slog.Debug("Engine ignoring message, no active conversation and no trigger", "phone", phone)
			return nil
		}
		fresh := models.Conversation{
			Phone: phone,
			Name:  name,
			State: models.StateAwaitingLocation,
			Data:  models.ConversationData{ChatAddress: chatID},
		}
		if conv != nil && conv.Name != "" && name == phone {
			fresh.Name = conv.Name
		}
		if err := e.store.SaveConversation(fresh); err != nil {
			slog.Error("Engine failed to start conversation", "error", err, "phone", phone)
			return fmt.Errorf("failed to start conversation for %s: %w", phone, err)
		}
		slog.Info("Engine conversation started", "phone", phone)
		return e.send(ctx, chatID, msgWelcome)
	}

	// Mid-flow: refresh name and reply address, latest observation wins.
	if name != phone {
		conv.Name = name
	}
	if conv.Data.ChatAddress != chatID {
		slog.Debug("Engine reply address updated", "phone", phone, "chat_id", chatID)
		conv.Data.ChatAddress = chatID
	}
	return e.processState(ctx, conv, text, payload.HasMedia, payload.MediaURL())
}

// HandleOutbound observes an operator-originated message and marks the
// destination contact so the engine stops auto-responding. The mark is
// sticky; nothing in this subsystem clears it.
func (e *Engine) HandleOutbound(ctx context.Context, payload *models.MessagePayload) error {
	addr, err := ident.ParseAddress(payload.To)
	if err != nil {
		slog.Debug("Engine ignoring outbound to non-private address", "to", payload.To)
		return nil
	}
	phone := addr.Phone

	unlock := e.lockPhone(phone)
	defer unlock()

	conv, err := e.store.GetConversation(phone)
	if err != nil {
		slog.Error("Engine conversation load failed during takeover", "error", err, "phone", phone)
		return fmt.Errorf("failed to load conversation for %s: %w", phone, err)
	}
	now := time.Now()
	if conv == nil {
		fresh := models.Conversation{
			Phone: phone,
			State: models.StateIdle,
			Data: models.ConversationData{
				ChatAddress:    addr.ChatID(),
				OwnerContacted: &now,
			},
		}
		if err := e.store.SaveConversation(fresh); err != nil {
			slog.Error("Engine takeover record failed", "error", err, "phone", phone)
			return fmt.Errorf("failed to record takeover for %s: %w", phone, err)
		}
		slog.Info("Engine operator takeover recorded for new contact", "phone", phone)
		return nil
	}
	if conv.Data.OwnerContacted != nil {
		return nil
	}
	conv.Data.OwnerContacted = &now
	if err := e.store.SaveConversation(*conv); err != nil {
		slog.Error("Engine takeover stamp failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to stamp takeover for %s: %w", phone, err)
	}
	slog.Info("Engine operator takeover recorded", "phone", phone, "state", conv.State)
	return nil
}

// HandlePollVote replays a poll vote as the equivalent text answer. A vote in
// the multi-item selection state may carry several options at once.
func (e *Engine) HandlePollVote(ctx context.Context, payload *models.MessagePayload) error {
	raw := payload.From
	if raw == "" {
		raw = payload.Voter
	}
	addr, err := ident.ParseAddress(raw)
	if err != nil {
		slog.Debug("Engine ignoring poll vote from invalid address", "from", raw)
		return nil
	}
	var selections []string
	for _, opt := range payload.Options {
		if opt.Name != "" {
			selections = append(selections, opt.Name)
		}
	}
	if len(selections) == 0 {
		return nil
	}
	phone := addr.Phone
	slog.Debug("Engine poll vote", "phone", phone, "selections", len(selections))

	unlock := e.lockPhone(phone)
	defer unlock()

	conv, err := e.store.GetConversation(phone)
	if err != nil {
		slog.Error("Engine conversation load failed for poll vote", "error", err, "phone", phone)
		return fmt.Errorf("failed to load conversation for %s: %w", phone, err)
	}
	if conv == nil || conv.State.IsResting() || conv.Data.CompletedAt != nil || conv.Data.OwnerContacted != nil {
		return nil
	}
	conv.Data.ChatAddress = addr.ChatID()

	text := selections[0]
	if conv.State == models.StateMultipleSelect {
		text = strings.Join(selections, ",")
	}
	return e.processState(ctx, conv, text, false, "")
}

// processState runs one state-machine step. The conversation write precedes
// the reply send; a failed write answers with the generic fallback and leaves
// the stored state untouched so the contact can retry the same step.
func (e *Engine) processState(ctx context.Context, conv *models.Conversation, text string, hasMedia bool, mediaURL string) error {
	switch conv.State {
	case models.StateAwaitingLocation:
		conv.Data.Location = models.SanitizeText(text, models.MaxLocationLength)
		return e.advance(ctx, conv, models.StateAwaitingItem, msgItemSelection)

	case models.StateAwaitingItem:
		return e.handleItemSelection(ctx, conv, text)

	case models.StateMattressType:
		conv.Data.MattressType = ResolveOption(text, mattressTypes)
		return e.advance(ctx, conv, models.StateMattressBothSides, msgMattressBothSides)

	case models.StateMattressBothSides:
		conv.Data.BothSides = ResolveOption(text, yesNo)
		return e.advance(ctx, conv, models.StateMattressStains, msgMattressStains)

	case models.StateMattressStains:
		conv.Data.Stains = ResolveOption(text, yesNo)
		return e.advance(ctx, conv, models.StateMattressAge, msgMattressAge)

	case models.StateMattressAge:
		conv.Data.Age = text
		return e.advance(ctx, conv, models.StateMattressPhoto, msgMattressPhoto)

	case models.StateMattressPhoto:
		if !hasMedia && !IsSkip(text) {
			return e.send(ctx, conv.Data.ChatAddress, photoRePrompt(models.ItemMattress))
		}
		details := models.ItemDetails{
			Type:      conv.Data.MattressType,
			BothSides: conv.Data.BothSides,
			Stains:    conv.Data.Stains,
			Age:       conv.Data.Age,
		}
		return e.completeItem(ctx, conv, models.ItemMattress, details, mediaURL)

	case models.StateSofaType:
		conv.Data.SofaType = ResolveOption(text, sofaTypes)
		return e.advance(ctx, conv, models.StateSofaPhoto, msgSofaPhoto)

	case models.StateSofaPhoto:
		if !hasMedia && !IsSkip(text) {
			return e.send(ctx, conv.Data.ChatAddress, photoRePrompt(models.ItemSofa))
		}
		return e.completeItem(ctx, conv, models.ItemSofa, models.ItemDetails{Type: conv.Data.SofaType}, mediaURL)

	case models.StateCarpetType:
		conv.Data.CarpetType = ResolveOption(text, carpetTypes)
		return e.advance(ctx, conv, models.StateCarpetSize, msgCarpetSize)

	case models.StateCarpetSize:
		conv.Data.CarpetSize = text
		return e.advance(ctx, conv, models.StateCarpetPhoto, msgCarpetPhoto)

	case models.StateCarpetPhoto:
		if !hasMedia && !IsSkip(text) {
			return e.send(ctx, conv.Data.ChatAddress, photoRePrompt(models.ItemCarpet))
		}
		details := models.ItemDetails{
			Type: conv.Data.CarpetType,
			Size: conv.Data.CarpetSize,
		}
		return e.completeItem(ctx, conv, models.ItemCarpet, details, mediaURL)

	case models.StateMultipleSelect:
		items := ParseItems(text)
		if len(items) == 0 {
			return e.sendContextError(ctx, conv, text)
		}
		return e.startMultiItem(ctx, conv, items)

	default:
		slog.Warn("Engine unknown conversation state", "phone", conv.Phone, "state", conv.State)
		return e.sendContextError(ctx, conv, text)
	}
}

// handleItemSelection branches into an item chain from the item menu.
func (e *Engine) handleItemSelection(ctx context.Context, conv *models.Conversation, text string) error {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "1" || strings.Contains(trimmed, models.ItemSofa):
		conv.Data.ItemType = models.ItemSofa
		return e.advance(ctx, conv, models.StateSofaType, msgSofaType)
	case trimmed == "2" || strings.Contains(trimmed, models.ItemMattress):
		conv.Data.ItemType = models.ItemMattress
		return e.advance(ctx, conv, models.StateMattressType, msgMattressType)
	case trimmed == "3" || strings.Contains(trimmed, models.ItemCarpet):
		conv.Data.ItemType = models.ItemCarpet
		return e.advance(ctx, conv, models.StateCarpetType, msgCarpetType)
	case trimmed == "4" || strings.Contains(trimmed, models.ItemMultiple) || strings.Contains(trimmed, "יחד"):
		conv.Data.ItemType = models.ItemMultiple
		return e.advance(ctx, conv, models.StateMultipleSelect, msgMultipleItems)
	default:
		return e.sendContextError(ctx, conv, text)
	}
}

// startMultiItem shifts the first selected item into the active slot and
// enters its question chain.
func (e *Engine) startMultiItem(ctx context.Context, conv *models.Conversation, items []string) error {
	first := items[0]
	conv.Data.ItemType = models.ItemMultiple
	conv.Data.PendingItems = items[1:]
	conv.Data.CompletedItems = nil
	conv.Data.CurrentItem = first
	conv.Data.ClearItemAnswers()

	conv.State = models.TypeState(first)
	if err := e.store.SaveConversation(*conv); err != nil {
		slog.Error("Engine state save failed", "error", err, "phone", conv.Phone, "state", conv.State)
		e.sendBestEffort(ctx, conv.Data.ChatAddress, msgNotUnderstood)
		return fmt.Errorf("failed to save conversation for %s: %w", conv.Phone, err)
	}
	if err := e.send(ctx, conv.Data.ChatAddress, msgStartingWith(first)); err != nil {
		return err
	}
	return e.send(ctx, conv.Data.ChatAddress, typeQuestion(first))
}

// completeItem records one finished item chain. When the multi-item queue has
// more work the next item's chain starts with a fresh answer scope; otherwise
// the flow finalizes into a lead.
func (e *Engine) completeItem(ctx context.Context, conv *models.Conversation, itemType string, details models.ItemDetails, photoURL string) error {
	completed := models.CompletedItem{Type: itemType, Details: details, Photos: []string{}}
	if photoURL != "" {
		completed.Photos = []string{photoURL}
	}
	conv.Data.CompletedItems = append(conv.Data.CompletedItems, completed)

	if len(conv.Data.PendingItems) > 0 {
		next := conv.Data.PendingItems[0]
		conv.Data.PendingItems = conv.Data.PendingItems[1:]
		conv.Data.CurrentItem = next
		conv.Data.ClearItemAnswers()
		conv.State = models.TypeState(next)
		if err := e.store.SaveConversation(*conv); err != nil {
			slog.Error("Engine state save failed", "error", err, "phone", conv.Phone, "state", conv.State)
			e.sendBestEffort(ctx, conv.Data.ChatAddress, msgNotUnderstood)
			return fmt.Errorf("failed to save conversation for %s: %w", conv.Phone, err)
		}
		if err := e.send(ctx, conv.Data.ChatAddress, msgItemTransition(itemType, next)); err != nil {
			return err
		}
		return e.send(ctx, conv.Data.ChatAddress, typeQuestion(next))
	}
	return e.finalize(ctx, conv)
}

// advance persists the conversation in its next state and sends the reply.
func (e *Engine) advance(ctx context.Context, conv *models.Conversation, next models.State, reply string) error {
	conv.State = next
	if err := e.store.SaveConversation(*conv); err != nil {
		slog.Error("Engine state save failed", "error", err, "phone", conv.Phone, "state", next)
		e.sendBestEffort(ctx, conv.Data.ChatAddress, msgNotUnderstood)
		return fmt.Errorf("failed to save conversation for %s: %w", conv.Phone, err)
	}
	return e.send(ctx, conv.Data.ChatAddress, reply)
}

// sendContextError re-asks the current question with a hint. No state change.
func (e *Engine) sendContextError(ctx context.Context, conv *models.Conversation, userInput string) error {
	if hint := hintFor(conv.State); hint != nil {
		return e.send(ctx, conv.Data.ChatAddress, msgContextError(userInput, hint.question, hint.example))
	}
	return e.send(ctx, conv.Data.ChatAddress, msgNotUnderstood)
}

func (e *Engine) send(ctx context.Context, chatID, text string) error {
	if err := e.gateway.SendText(ctx, chatID, text); err != nil {
		slog.Error("Engine reply send failed", "error", err, "chat_id", chatID)
		return fmt.Errorf("failed to send reply to %s: %w", chatID, err)
	}
	return nil
}

// sendBestEffort sends the fallback reply, swallowing any error; it is used
// on paths that are already failing.
func (e *Engine) sendBestEffort(ctx context.Context, chatID, text string) {
	if err := e.gateway.SendText(ctx, chatID, text); err != nil {
		slog.Error("Engine fallback send failed", "error", err, "chat_id", chatID)
	}
}

// typeQuestion returns the type question opening an item's chain.
func typeQuestion(item string) string {
	switch item {
	case models.ItemMattress:
		return msgMattressType
	case models.ItemCarpet:
		return msgCarpetType
	default:
		return msgSofaType
	}
}
