package server

import (
	"context"
	"net/http"
	"time"

	"community-voice/internal/community"
)

// GET /api/dashboard
// Tickets and upcoming events for the page, refreshed after a voice-created ticket.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	tickets, err := s.client.ListTickets(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("dashboard: listing tickets")
		s.writeError(w, http.StatusBadGateway, "failed to list tickets")
		return
	}
	events, err := s.client.ListEvents(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("dashboard: listing events")
		s.writeError(w, http.StatusBadGateway, "failed to list events")
		return
	}

	open := 0
	for _, t := range tickets {
		if t.Status != community.StatusResolved {
			open++
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tickets":     tickets,
		"openTickets": open,
		"events":      community.UpcomingEvents(events, time.Now()),
	})
}
