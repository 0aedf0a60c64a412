// This file implements the PostgreSQL-backed follower store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/creatoros/dmflow/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists follower records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore ready")
	return &PostgresStore{db: db}, nil
}

// GetOrCreateFollower implements FollowerStore.
func (s *PostgresStore) GetOrCreateFollower(ctx context.Context, agentID, followerID, displayName string) (*models.FollowerRecord, error) {
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
	slog.Debug("PostgresStore.GetOrCreateFollower: record created", "agent_id", agentID, "follower_id", followerID)
	return record, nil
}

// SaveFollower implements FollowerStore using ON CONFLICT upsert.
func (s *PostgresStore) SaveFollower(ctx context.Context, record *models.FollowerRecord) error {
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
		INSERT INTO followers (
			agent_id, follower_id, display_name, username,
			first_contact, last_contact, total_messages, preferred_language,
			interests, products_discussed, purchase_intent_score, pipeline_status,
			is_lead, is_customer, turns, naturalness, rotation_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (agent_id, follower_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			username = EXCLUDED.username,
			last_contact = EXCLUDED.last_contact,
			total_messages = EXCLUDED.total_messages,
			preferred_language = EXCLUDED.preferred_language,
			interests = EXCLUDED.interests,
			products_discussed = EXCLUDED.products_discussed,
			purchase_intent_score = EXCLUDED.purchase_intent_score,
			pipeline_status = EXCLUDED.pipeline_status,
			is_lead = EXCLUDED.is_lead,
			is_customer = EXCLUDED.is_customer,
			turns = EXCLUDED.turns,
			naturalness = EXCLUDED.naturalness,
			rotation_index = EXCLUDED.rotation_index`,
		record.AgentID, record.FollowerID, nilIfEmpty(record.DisplayName), nilIfEmpty(record.Username),
		record.FirstContact, record.LastContact, record.TotalMessages, nilIfEmpty(record.PreferredLanguage),
		interests, products, record.PurchaseIntentScore, string(record.PipelineStatus),
		record.IsLead, record.IsCustomer, turns, naturalness, record.RotationIndex,
	)
	if err != nil {
		slog.Error("PostgresStore.SaveFollower failed", "error", err, "agent_id", record.AgentID, "follower_id", record.FollowerID)
		return fmt.Errorf("failed to save follower record: %w", err)
	}
	return nil
}

// GetFollower implements FollowerStore.
func (s *PostgresStore) GetFollower(ctx context.Context, agentID, followerID string) (*models.FollowerRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, follower_id, display_name, username,
		       first_contact, last_contact, total_messages, preferred_language,
		       interests, products_discussed, purchase_intent_score, pipeline_status,
		       is_lead, is_customer, turns, naturalness, rotation_index
		FROM followers WHERE agent_id = $1 AND follower_id = $2`,
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
func (s *PostgresStore) ListFollowers(ctx context.Context, agentID string) ([]*models.FollowerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, follower_id, display_name, username,
		       first_contact, last_contact, total_messages, preferred_language,
		       interests, products_discussed, purchase_intent_score, pipeline_status,
		       is_lead, is_customer, turns, naturalness, rotation_index
		FROM followers WHERE agent_id = $1`,
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
