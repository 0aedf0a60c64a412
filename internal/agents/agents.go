// Package agents holds the in-process registry of agent configurations.
//
// Configs are validated on registration; the rest of the pipeline reads them
// through the registry and can rely on defaults being applied. The registry
// is safe for concurrent use.
package agents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/creatoros/dmflow/internal/models"
)

// Registry stores validated agent configurations keyed by agent id.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]models.AgentConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]models.AgentConfig)}
}

// LoadFile reads a JSON array of agent configs and registers each one.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("agents: failed to read %s: %w", path, err)
	}
	var configs []models.AgentConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("agents: failed to parse %s: %w", path, err)
	}
	for _, cfg := range configs {
		if err := r.Register(cfg); err != nil {
			return fmt.Errorf("agents: invalid config for %q: %w", cfg.AgentID, err)
		}
	}
	slog.Info("Agent registry loaded", "path", path, "agents", len(configs))
	return nil
}

// Register validates and stores a config, replacing any previous one.
func (r *Registry) Register(cfg models.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.agents[cfg.AgentID] = cfg
	r.mu.Unlock()
	slog.Debug("Registry.Register: agent registered", "agent_id", cfg.AgentID, "tone", cfg.Tone, "language", cfg.Language)
	return nil
}

// Get returns the config for the agent id.
func (r *Registry) Get(agentID string) (models.AgentConfig, error) {
	r.mu.RLock()
	cfg, ok := r.agents[agentID]
	r.mu.RUnlock()
	if !ok {
		return models.AgentConfig{}, fmt.Errorf("agents: %w: %s", models.ErrUnknownAgent, agentID)
	}
	return cfg, nil
}

// List returns all registered configs.
func (r *Registry) List() []models.AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AgentConfig, 0, len(r.agents))
	for _, cfg := range r.agents {
		out = append(out, cfg)
	}
	return out
}

// SetPaused flips the paused flag for an agent.
func (r *Registry) SetPaused(agentID string, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("agents: %w: %s", models.ErrUnknownAgent, agentID)
	}
	cfg.Paused = paused
	r.agents[agentID] = cfg
	slog.Info("Registry.SetPaused: agent pause state changed", "agent_id", agentID, "paused", paused)
	return nil
}
