// This file implements the SQLite-backed follower store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/creatoros/dmflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists follower records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN (a file path).
// The parent directory is created if missing and migrations run on open.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
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
	slog.Debug("SQLiteStore ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// GetOrCreateFollower implements FollowerStore.
func (s *SQLiteStore) GetOrCreateFollower(ctx context.Context, agentID, followerID, displayName string) (*models.FollowerRecord, error) {
	if agentID == "" {
		return nil, models.ErrEmptyAgentID
	}
	if followerID == "" {
		return nil, models.ErrEmptyFollowerID
	}
	record, err := s.GetFollower(ctx, agentID, followerID)
	if err == nil {
		if displayName != "" && record.DisplayName == "" {
			record.DisplayName = displayName
		}
		return record, nil
	}
	if !errors.Is(err, models.ErrFollowerNotFound) {
		return nil, err
	}
	record = models.NewFollowerRecord(agentID, followerID, displayName)
	if err := s.SaveFollower(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create follower record: %w", err)
	}
	slog.Debug("SQLiteStore.GetOrCreateFollower: record created", "agent_id", agentID, "follower_id", followerID)
	return record, nil
}

// SaveFollower implements FollowerStore using a whole-record upsert so
// concurrent readers never observe a partial write.
func (s *SQLiteStore) SaveFollower(ctx context.Context, record *models.FollowerRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	interests, err := marshalJSON(record.Interests)
	if err != nil {
		return err
	}
	products, err := marshalJSON(record.ProductsDiscussed)
	if err != nil {
		return err
	}
	turns, err := marshalJSON(record.Turns)
	if err != nil {
		return err
	}
	naturalness, err := marshalJSON(record.Naturalness)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO followers (
			agent_id, follower_id, display_name, username,
			first_contact, last_contact, total_messages, preferred_language,
			interests, products_discussed, purchase_intent_score, pipeline_status,
			is_lead, is_customer, turns, naturalness, rotation_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.AgentID, record.FollowerID, nilIfEmpty(record.DisplayName), nilIfEmpty(record.Username),
		record.FirstContact, record.LastContact, record.TotalMessages, nilIfEmpty(record.PreferredLanguage),
		interests, products, record.PurchaseIntentScore, string(record.PipelineStatus),
		record.IsLead, record.IsCustomer, turns, naturalness, record.RotationIndex,
	)
	if err != nil {
		slog.Error("SQLiteStore.SaveFollower failed", "error", err, "agent_id", record.AgentID, "follower_id", record.FollowerID)
		return fmt.Errorf("failed to save follower record: %w", err)
	}
	return nil
}

// GetFollower implements FollowerStore.
func (s *SQLiteStore) GetFollower(ctx context.Context, agentID, followerID string) (*models.FollowerRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, follower_id, display_name, username,
		       first_contact, last_contact, total_messages, preferred_language,
		       interests, products_discussed, purchase_intent_score, pipeline_status,
		       is_lead, is_customer, turns, naturalness, rotation_index
		FROM followers WHERE agent_id = ? AND follower_id = ?`,
		agentID, followerID)
	record, err := scanFollowerRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrFollowerNotFound
		}
		return nil, fmt.Errorf("failed to load follower record: %w", err)
	}
	return record, nil
}

// ListFollowers implements FollowerStore.
func (s *SQLiteStore) ListFollowers(ctx context.Context, agentID string) ([]*models.FollowerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, follower_id, display_name, username,
		       first_contact, last_contact, total_messages, preferred_language,
		       interests, products_discussed, purchase_intent_score, pipeline_status,
		       is_lead, is_customer, turns, naturalness, rotation_index
		FROM followers WHERE agent_id = ?`,
		agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list follower records: %w", err)
	}
	defer rows.Close()

	var out []*models.FollowerRecord
	for rows.Next() {
		record, err := scanFollowerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan follower record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close implements FollowerStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFollowerRow(row rowScanner) (*models.FollowerRecord, error) {
	var r models.FollowerRecord
	var displayName, username, language, status sql.NullString
	var interests, products, turns, naturalness []byte

	err := row.Scan(
		&r.AgentID, &r.FollowerID, &displayName, &username,
		&r.FirstContact, &r.LastContact, &r.TotalMessages, &language,
		&interests, &products, &r.PurchaseIntentScore, &status,
		&r.IsLead, &r.IsCustomer, &turns, &naturalness, &r.RotationIndex,
	)
	if err != nil {
		return nil, err
	}
	r.DisplayName = displayName.String
	r.Username = username.String
	r.PreferredLanguage = language.String
	r.PipelineStatus = models.PipelineStatus(status.String)
	if err := unmarshalJSON(interests, &r.Interests); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(products, &r.ProductsDiscussed); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(turns, &r.Turns); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(naturalness, &r.Naturalness); err != nil {
		return nil, err
	}
	return &r, nil
}
