package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"community-voice/internal/speech"
	"community-voice/internal/types"
)

// GET /api/listening
func (s *Server) handleListening(w http.ResponseWriter, r *http.Request) {
	sid := getOrCreateSessionID(w, r, s.logger)
	s.writeListening(w, sid, s.store.Listening(sid))
}

// POST /api/listening { listening: bool }
// The page calls this with false when recognition fails so the toggle resets.
func (s *Server) handleSetListening(w http.ResponseWriter, r *http.Request) {
	var req types.ListeningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := getOrCreateSessionID(w, r, s.logger)
	s.store.SetListening(sid, req.Listening)
	s.writeListening(w, sid, req.Listening)
}

// POST /api/listening/toggle
func (s *Server) handleToggleListening(w http.ResponseWriter, r *http.Request) {
	sid := getOrCreateSessionID(w, r, s.logger)
	on := s.store.ToggleListening(sid)
	if on {
		s.logger.Info().Str("session", sid).Msg("voice recognition started")
	} else {
		s.logger.Info().Str("session", sid).Msg("voice recognition stopped")
	}
	s.writeListening(w, sid, on)
}

func (s *Server) writeListening(w http.ResponseWriter, sid string, on bool) {
	s.writeJSON(w, http.StatusOK, types.ListeningResponse{
		SessionID: sid,
		Listening: on,
		Title:     speech.ListeningTitle(on),
	})
}

// GET /api/history?limit=N
// Served from the interaction log when a database is configured, otherwise
// from the in-memory session history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sid := getSessionID(r)
	if sid == "" {
		s.writeError(w, http.StatusBadRequest, "no session")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	if s.databaseStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		items, err := s.databaseStore.RecentInteractions(ctx, sid, limit)
		if err != nil {
			s.logger.Error().Err(err).Str("session", sid).Msg("failed to load history")
			s.writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"sessionId": sid, "source": "database", "interactions": items})
		return
	}

	msgs := s.store.Get(sid)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessionId": sid, "source": "memory", "messages": msgs})
}
