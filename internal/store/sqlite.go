// Package store: SQLite-backed Store implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hamavrikan/leadbot/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path; its
// directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetConversation(phone string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT phone, name, state, data, updated_at FROM conversations WHERE phone = ?`, phone)
	var conv models.Conversation
	var dataJSON []byte
	err := row.Scan(&conv.Phone, &conv.Name, &conv.State, &dataJSON, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation scan failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to load conversation for %s: %w", phone, err)
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &conv.Data); err != nil {
			slog.Error("SQLiteStore GetConversation data unmarshal failed", "error", err, "phone", phone)
			return nil, fmt.Errorf("failed to decode conversation data for %s: %w", phone, err)
		}
	}
	return &conv, nil
}

func (s *SQLiteStore) SaveConversation(conv models.Conversation) error {
	dataJSON, err := json.Marshal(conv.Data)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation marshal failed", "error", err, "phone", conv.Phone)
		return fmt.Errorf("failed to encode conversation data for %s: %w", conv.Phone, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations (phone, name, state, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (phone) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE conversations.name END,
			state = excluded.state,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		conv.Phone, conv.Name, conv.State, dataJSON, time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "phone", conv.Phone)
		return fmt.Errorf("failed to save conversation for %s: %w", conv.Phone, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "phone", conv.Phone, "state", conv.State)
	return nil
}

func (s *SQLiteStore) SaveLead(lead *models.Lead) error {
	detailsJSON, err := json.Marshal(lead.ItemDetails)
	if err != nil {
		slog.Error("SQLiteStore SaveLead marshal failed", "error", err, "phone", lead.Phone)
		return fmt.Errorf("failed to encode lead details for %s: %w", lead.Phone, err)
	}
	photos := lead.Photos
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return fmt.Errorf("failed to encode lead photos for %s: %w", lead.Phone, err)
	}
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO leads (phone, name, location, item_type, item_details, photos, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.Phone, lead.Name, lead.Location, lead.ItemType, detailsJSON, photosJSON, models.LeadStatusNew, now)
	if err != nil {
		slog.Error("SQLiteStore SaveLead failed", "error", err, "phone", lead.Phone)
		return fmt.Errorf("failed to insert lead for %s: %w", lead.Phone, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read lead id for %s: %w", lead.Phone, err)
	}
	lead.ID = id
	lead.Status = models.LeadStatusNew
	lead.CreatedAt = now
	slog.Info("SQLiteStore SaveLead succeeded", "id", lead.ID, "phone", lead.Phone, "item_type", lead.ItemType)
	return nil
}

func (s *SQLiteStore) ListLeads(status string, limit int) ([]models.Lead, error) {
	query := `SELECT id, phone, name, location, item_type, item_details, photos, status, created_at FROM leads`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var detailsJSON, photosJSON []byte
		if err := rows.Scan(&l.ID, &l.Phone, &l.Name, &l.Location, &l.ItemType, &detailsJSON, &photosJSON, &l.Status, &l.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListLeads scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &l.ItemDetails); err != nil {
				return nil, fmt.Errorf("failed to decode lead details for id %d: %w", l.ID, err)
			}
		}
		if len(photosJSON) > 0 {
			if err := json.Unmarshal(photosJSON, &l.Photos); err != nil {
				return nil, fmt.Errorf("failed to decode lead photos for id %d: %w", l.ID, err)
			}
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("SQLiteStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

func (s *SQLiteStore) SweepIdle(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.db.Query(`
		SELECT phone, data FROM conversations
		WHERE state NOT IN (?, ?) AND updated_at < ?`,
		models.StateIdle, models.StateCompleted, cutoff)
	if err != nil {
		slog.Error("SQLiteStore SweepIdle query failed", "error", err)
		return 0, fmt.Errorf("failed to query stale conversations: %w", err)
	}
	defer rows.Close()

	type stale struct {
		phone string
		data  models.ConversationData
	}
	var targets []stale
	for rows.Next() {
		var t stale
		var dataJSON []byte
		if err := rows.Scan(&t.phone, &dataJSON); err != nil {
			return 0, fmt.Errorf("failed to scan stale conversation: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &t.data); err != nil {
				slog.Warn("SQLiteStore SweepIdle skipping undecodable data", "error", err, "phone", t.phone)
				continue
			}
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate stale conversations: %w", err)
	}

	var swept int64
	for _, t := range targets {
		dataJSON, err := json.Marshal(sweptData(t.data))
		if err != nil {
			slog.Error("SQLiteStore SweepIdle marshal failed", "error", err, "phone", t.phone)
			continue
		}
		if _, err := s.db.Exec(`
			UPDATE conversations SET state = ?, data = ?, updated_at = ?
			WHERE phone = ?`,
			models.StateIdle, dataJSON, time.Now(), t.phone); err != nil {
			slog.Error("SQLiteStore SweepIdle update failed", "error", err, "phone", t.phone)
			continue
		}
		swept++
	}
	if swept > 0 {
		slog.Info("SQLiteStore SweepIdle reset stale conversations", "count", swept)
	}
	return swept, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
