package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/creatoros/dmflow/internal/models"
)

// processMessageRequest is the body of POST /api/v1/messages.
type processMessageRequest struct {
	AgentID     string `json:"agent_id"`
	FollowerID  string `json:"follower_id"`
	Text        string `json:"text"`
	DisplayName string `json:"display_name,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcessMessage runs one inbound message through the pipeline and
// returns the decision. An empty reply_text means nothing should be sent.
func (s *Server) handleProcessMessage(w http.ResponseWriter, r *http.Request) {
	var req processMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" || req.FollowerID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "agent_id, follower_id and text are required")
		return
	}

	decision, err := s.engine.ProcessMessage(r.Context(), req.AgentID, req.FollowerID, req.Text, req.DisplayName)
	if err != nil {
		if errors.Is(err, models.ErrUnknownAgent) {
			writeError(w, http.StatusNotFound, "unknown agent")
			return
		}
		slog.Error("Server.handleProcessMessage: processing failed", "error", err, "agent_id", req.AgentID)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	writeJSONResponse(w, http.StatusOK, decision)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, s.agents.List())
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var cfg models.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.agents.Register(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("Server.handleRegisterAgent: agent registered", "agent_id", cfg.AgentID)
	writeJSONResponse(w, http.StatusCreated, map[string]string{"agent_id": cfg.AgentID})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.agents.Get(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	writeJSONResponse(w, http.StatusOK, cfg)
}

func (s *Server) handlePauseAgent(w http.ResponseWriter, r *http.Request) {
	s.setAgentPaused(w, r, true)
}

func (s *Server) handleResumeAgent(w http.ResponseWriter, r *http.Request) {
	s.setAgentPaused(w, r, false)
}

func (s *Server) setAgentPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	agentID := chi.URLParam(r, "agentID")
	if err := s.agents.SetPaused(agentID, paused); err != nil {
		writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	slog.Info("Server.setAgentPaused: updated", "agent_id", agentID, "paused", paused)
	writeJSONResponse(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (s *Server) handleListFollowers(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if _, err := s.agents.Get(agentID); err != nil {
		writeError(w, http.StatusNotFound, "unknown agent")
		return
	}

	followers, err := s.store.ListFollowers(r.Context(), agentID)
	if err != nil {
		slog.Error("Server.handleListFollowers: store error", "error", err, "agent_id", agentID)
		writeError(w, http.StatusInternalServerError, "failed to list followers")
		return
	}
	if followers == nil {
		followers = []*models.FollowerRecord{}
	}
	writeJSONResponse(w, http.StatusOK, followers)
}

func (s *Server) handleGetFollower(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	followerID := chi.URLParam(r, "followerID")

	record, err := s.store.GetFollower(r.Context(), agentID, followerID)
	if err != nil {
		if errors.Is(err, models.ErrFollowerNotFound) {
			writeError(w, http.StatusNotFound, "follower not found")
			return
		}
		slog.Error("Server.handleGetFollower: store error", "error", err, "agent_id", agentID, "follower_id", followerID)
		writeError(w, http.StatusInternalServerError, "failed to load follower")
		return
	}
	writeJSONResponse(w, http.StatusOK, record)
}
