// Package store: PostgreSQL-backed Store implementation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"

	"github.com/hamavrikan/leadbot/internal/models"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is how long a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetConversation(phone string) (*models.Conversation, error) {
	row := s.db.QueryRow(`SELECT phone, name, state, data, updated_at FROM conversations WHERE phone = $1`, phone)
	var conv models.Conversation
	var dataJSON []byte
	err := row.Scan(&conv.Phone, &conv.Name, &conv.State, &dataJSON, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation scan failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to load conversation for %s: %w", phone, err)
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &conv.Data); err != nil {
			slog.Error("PostgresStore GetConversation data unmarshal failed", "error", err, "phone", phone)
			return nil, fmt.Errorf("failed to decode conversation data for %s: %w", phone, err)
		}
	}
	return &conv, nil
}

func (s *PostgresStore) SaveConversation(conv models.Conversation) error {
	dataJSON, err := json.Marshal(conv.Data)
	if err != nil {
		slog.Error("PostgresStore SaveConversation marshal failed", "error", err, "phone", conv.Phone)
		return fmt.Errorf("failed to encode conversation data for %s: %w", conv.Phone, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations (phone, name, state, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (phone) DO UPDATE SET
			name = COALESCE(NULLIF($2, ''), conversations.name),
			state = $3,
			data = $4,
			updated_at = NOW()`,
		conv.Phone, conv.Name, conv.State, dataJSON)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "phone", conv.Phone)
		return fmt.Errorf("failed to save conversation for %s: %w", conv.Phone, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "phone", conv.Phone, "state", conv.State)
	return nil
}

func (s *PostgresStore) SaveLead(lead *models.Lead) error {
	detailsJSON, err := json.Marshal(lead.ItemDetails)
	if err != nil {
		slog.Error("PostgresStore SaveLead marshal failed", "error", err, "phone", lead.Phone)
		return fmt.Errorf("failed to encode lead details for %s: %w", lead.Phone, err)
	}
	row := s.db.QueryRow(`
		INSERT INTO leads (phone, name, location, item_type, item_details, photos)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at`,
		lead.Phone, lead.Name, lead.Location, lead.ItemType, detailsJSON, pq.Array(lead.Photos))
	if err := row.Scan(&lead.ID, &lead.Status, &lead.CreatedAt); err != nil {
		slog.Error("PostgresStore SaveLead failed", "error", err, "phone", lead.Phone)
		return fmt.Errorf("failed to insert lead for %s: %w", lead.Phone, err)
	}
	slog.Info("PostgresStore SaveLead succeeded", "id", lead.ID, "phone", lead.Phone, "item_type", lead.ItemType)
	return nil
}

func (s *PostgresStore) ListLeads(status string, limit int) ([]models.Lead, error) {
	query := `SELECT id, phone, name, location, item_type, item_details, photos, status, created_at FROM leads`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		var detailsJSON []byte
		if err := rows.Scan(&l.ID, &l.Phone, &l.Name, &l.Location, &l.ItemType, &detailsJSON, pq.Array(&l.Photos), &l.Status, &l.CreatedAt); err != nil {
			slog.Error("PostgresStore ListLeads scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &l.ItemDetails); err != nil {
				slog.Error("PostgresStore ListLeads details unmarshal failed", "error", err, "id", l.ID)
				return nil, fmt.Errorf("failed to decode lead details for id %d: %w", l.ID, err)
			}
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListLeads rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	slog.Debug("PostgresStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

func (s *PostgresStore) SweepIdle(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.db.Query(`
		SELECT phone, data FROM conversations
		WHERE state NOT IN ($1, $2) AND updated_at < $3`,
		models.StateIdle, models.StateCompleted, cutoff)
	if err != nil {
		slog.Error("PostgresStore SweepIdle query failed", "error", err)
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
				slog.Warn("PostgresStore SweepIdle skipping undecodable data", "error", err, "phone", t.phone)
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
			slog.Error("PostgresStore SweepIdle marshal failed", "error", err, "phone", t.phone)
			continue
		}
		if _, err := s.db.Exec(`
			UPDATE conversations SET state = $2, data = $3, updated_at = NOW()
			WHERE phone = $1`,
			t.phone, models.StateIdle, dataJSON); err != nil {
			slog.Error("PostgresStore SweepIdle update failed", "error", err, "phone", t.phone)
			continue
		}
		swept++
	}
	if swept > 0 {
		slog.Info("PostgresStore SweepIdle reset stale conversations", "count", swept)
	}
	return swept, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
