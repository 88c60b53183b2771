// Command import-contacts bulk-marks pre-existing WhatsApp contacts as
// operator-contacted so the bot never auto-triggers for them. It pages
// through the WAHA chat listing once and exits.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamavrikan/leadbot/internal/ident"
	"github.com/hamavrikan/leadbot/internal/models"
	"github.com/hamavrikan/leadbot/internal/store"
	"github.com/hamavrikan/leadbot/internal/waha"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	defaultDSN := os.Getenv("DATABASE_URL")
	if defaultDSN == "" {
		defaultDSN = filepath.Join("/var/lib/leadbot", "leadbot.db")
	}
	dbDSN := flag.String("db", defaultDSN, "database DSN (postgres URL or SQLite file path)")
	flag.Parse()

	st, err := openStore(*dbDSN)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client := waha.NewClient()
	ctx := context.Background()
	chats, err := client.ListChats(ctx)
	if err != nil {
		slog.Error("Failed to list chats", "error", err)
		os.Exit(1)
	}

	var created, updated, skipped int
	now := time.Now()
	for _, chat := range chats {
		addr, err := ident.ParseAddress(chat.ChatID())
		if err != nil {
			// Groups, broadcasts and malformed ids are not importable contacts.
			skipped++
			continue
		}
		conv, err := st.GetConversation(addr.Phone)
		if err != nil {
			slog.Error("Failed to load conversation, skipping", "error", err, "phone", addr.Phone)
			skipped++
			continue
		}
		name := models.SanitizeName(chat.DisplayName())

		if conv == nil {
			fresh := models.Conversation{
				Phone: addr.Phone,
				Name:  name,
				State: models.StateIdle,
				Data: models.ConversationData{
					ChatAddress:    addr.ChatID(),
					OwnerContacted: &now,
				},
			}
			if err := st.SaveConversation(fresh); err != nil {
				slog.Error("Failed to save contact", "error", err, "phone", addr.Phone)
				skipped++
				continue
			}
			created++
			continue
		}
		if conv.Data.OwnerContacted != nil {
			skipped++
			continue
		}
		conv.Data.OwnerContacted = &now
		if conv.Name == "" {
			conv.Name = name
		}
		if err := st.SaveConversation(*conv); err != nil {
			slog.Error("Failed to update contact", "error", err, "phone", addr.Phone)
			skipped++
			continue
		}
		updated++
	}
	slog.Info("Contact import finished", "total", len(chats), "created", created, "updated", updated, "skipped", skipped)
}

func openStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}
