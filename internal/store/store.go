// Package store provides storage backends for follower records.
//
// Three backends implement the same FollowerStore interface: an in-memory
// store for tests, SQLite for single-node deployments, and PostgreSQL for
// shared deployments. Saves are whole-record upserts so a reader never sees
// a partially written record.
package store

import (
	"context"
	"sync"

	"github.com/creatoros/dmflow/internal/models"
)

// FollowerStore is the durable memory of the conversation engine.
type FollowerStore interface {
	// GetOrCreateFollower resolves the record for (agentID, followerID),
	// creating it lazily on first contact.
	GetOrCreateFollower(ctx context.Context, agentID, followerID, displayName string) (*models.FollowerRecord, error)
	// SaveFollower persists the record atomically.
	SaveFollower(ctx context.Context, record *models.FollowerRecord) error
	// GetFollower returns the record or models.ErrFollowerNotFound.
	GetFollower(ctx context.Context, agentID, followerID string) (*models.FollowerRecord, error)
	// ListFollowers returns all records for an agent.
	ListFollowers(ctx context.Context, agentID string) ([]*models.FollowerRecord, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	DSN    string
	DBType string // "sqlite3" or "postgres"
}

// Option defines a functional option for configuring a store.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.DBType = "sqlite3"
	}
}

// WithPostgresDSN sets a PostgreSQL connection string DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.DBType = "postgres"
	}
}

// InMemoryStore keeps follower records in a mutex-guarded map. Records are
// deep-copied in and out so callers never share memory with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.FollowerRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.FollowerRecord)}
}

func recordKey(agentID, followerID string) string {
	return agentID + "|" + followerID
}

// GetOrCreateFollower implements FollowerStore.
func (s *InMemoryStore) GetOrCreateFollower(ctx context.Context, agentID, followerID, displayName string) (*models.FollowerRecord, error) {
	if agentID == "" {
		return nil, models.ErrEmptyAgentID
	}
	if followerID == "" {
		return nil, models.ErrEmptyFollowerID
	}
	key := recordKey(agentID, followerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		if displayName != "" && r.DisplayName == "" {
			r.DisplayName = displayName
		}
		return r.Clone(), nil
	}
	r := models.NewFollowerRecord(agentID, followerID, displayName)
	s.records[key] = r.Clone()
	return r, nil
}

// SaveFollower implements FollowerStore.
func (s *InMemoryStore) SaveFollower(ctx context.Context, record *models.FollowerRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[recordKey(record.AgentID, record.FollowerID)] = record.Clone()
	s.mu.Unlock()
	return nil
}

// GetFollower implements FollowerStore.
func (s *InMemoryStore) GetFollower(ctx context.Context, agentID, followerID string) (*models.FollowerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey(agentID, followerID)]
	if !ok {
		return nil, models.ErrFollowerNotFound
	}
	return r.Clone(), nil
}

// ListFollowers implements FollowerStore.
func (s *InMemoryStore) ListFollowers(ctx context.Context, agentID string) ([]*models.FollowerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.FollowerRecord
	for _, r := range s.records {
		if r.AgentID == agentID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Close implements FollowerStore.
func (s *InMemoryStore) Close() error {
	return nil
}
