package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hamavrikan/leadbot/internal/ident"
	"github.com/hamavrikan/leadbot/internal/models"
)

// finalize converts the accumulated answers into a persisted lead, commits
// the conversation as completed, and only then notifies the contact and the
// operator. A slow or failing gateway therefore never loses a lead.
func (e *Engine) finalize(ctx context.Context, conv *models.Conversation) error {
	completed := conv.Data.CompletedItems
	if len(completed) == 0 {
		return fmt.Errorf("no completed items to finalize for %s", conv.Phone)
	}

	var itemType string
	var details models.ItemDetails
	var photos []string
	if len(completed) > 1 {
		itemType = models.ItemMultiple
		for _, item := range completed {
			details.Items = append(details.Items, models.ItemRecord{
				Type:      item.Type,
				BothSides: item.Details.BothSides,
				Stains:    item.Details.Stains,
				Age:       item.Details.Age,
				Size:      item.Details.Size,
			})
			photos = append(photos, item.Photos...)
		}
	} else {
		itemType = completed[0].Type
		details = completed[0].Details
		photos = completed[0].Photos
	}

	lead := &models.Lead{
		Phone:       conv.Phone,
		Name:        conv.Name,
		Location:    conv.Data.Location,
		ItemType:    itemType,
		ItemDetails: details,
		Photos:      photos,
	}
	if err := e.store.SaveLead(lead); err != nil {
		slog.Error("Engine lead save failed", "error", err, "phone", conv.Phone)
		e.sendBestEffort(ctx, conv.Data.ChatAddress, msgNotUnderstood)
		return fmt.Errorf("failed to save lead for %s: %w", conv.Phone, err)
	}
	slog.Info("Engine lead saved", "lead_id", lead.ID, "phone", conv.Phone, "item_type", itemType, "photos", len(photos))

	now := time.Now()
	conv.State = models.StateCompleted
	conv.Data.CompletedAt = &now
	if err := e.store.SaveConversation(*conv); err != nil {
		// The lead is already durable; log and carry on with notifications.
		slog.Error("Engine completion commit failed", "error", err, "phone", conv.Phone)
	}

	if err := e.send(ctx, conv.Data.ChatAddress, msgThankYou); err != nil {
		slog.Error("Engine thank-you send failed", "error", err, "phone", conv.Phone)
	}

	ownerChat := ident.FormatChatID(e.ownerPhone)
	if err := e.send(ctx, ownerChat, ownerNotification(lead)); err != nil {
		slog.Error("Engine owner notification failed", "error", err, "lead_id", lead.ID)
	}
	for _, photoURL := range photos {
		if photoURL == "" {
			continue
		}
		if err := e.gateway.SendImage(ctx, ownerChat, photoURL, msgPhotoForward(conv.Name)); err != nil {
			slog.Error("Engine photo forward failed", "error", err, "lead_id", lead.ID)
		}
	}

	if err := e.publisher.PublishLeadCreated(ctx, lead); err != nil {
		slog.Error("Engine lead event publish failed", "error", err, "lead_id", lead.ID)
	}
	return nil
}
