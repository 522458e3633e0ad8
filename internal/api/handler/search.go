package handler

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/match"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/ws"
)

// MatchCoordinator applies operator decisions to pending matches
type MatchCoordinator interface {
	Accept(personID string) int
	Research(personID string) bool
	Pending() []match.Entry
	Resolved() []match.Entry
}

// Broadcaster publishes lifecycle events to live dashboards
type Broadcaster interface {
	Broadcast(eventType ws.EventType, data interface{})
}

// SearchHandler receives operator decisions on reported matches
type SearchHandler struct {
	coordinator MatchCoordinator
	events      Broadcaster
	logger      *slog.Logger
}

// NewSearchHandler creates a new SearchHandler instance
func NewSearchHandler(coordinator MatchCoordinator, events Broadcaster, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		coordinator: coordinator,
		events:      events,
		logger:      logger,
	}
}

// SearchStatusRequest is the body of the search status endpoint.
// MongoID is accepted as an alias of PersonID for older dashboards.
type SearchStatusRequest struct {
	PersonID string              `json:"person_id"`
	MongoID  string              `json:"mongo_id"`
	Action   domain.SearchAction `json:"action"`
}

// StatusResponse acknowledges a decision
type StatusResponse struct {
	Status string `json:"status"`
}

// MatchesResponse lists persons by match state
type MatchesResponse struct {
	Pending  []match.Entry `json:"pending"`
	Resolved []match.Entry `json:"resolved"`
}

// UpdateStatus POST /v1/search-status - accept or re-search a reported person
func (h *SearchHandler) UpdateStatus(c *fiber.Ctx) error {
	var req SearchStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	personID := strings.TrimSpace(req.PersonID)
	if personID == "" {
		personID = strings.TrimSpace(req.MongoID)
	}
	if personID == "" {
		return domain.ErrValidationFailed
	}
	if !req.Action.Valid() {
		return domain.ErrInvalidAction
	}

	switch req.Action {
	case domain.ActionAccept:
		removed := h.coordinator.Accept(personID)
		h.events.Broadcast(ws.EventMatchAccepted, fiber.Map{"person_id": personID, "removed_embeddings": removed})
	case domain.ActionResearch:
		reverted := h.coordinator.Research(personID)
		h.events.Broadcast(ws.EventMatchResearch, fiber.Map{"person_id": personID, "reverted": reverted})
	}

	h.logger.Info("search status updated", "person_id", personID, "action", req.Action)

	return c.JSON(StatusResponse{Status: "ok"})
}

// Matches GET /v1/matches - list pending and resolved persons
func (h *SearchHandler) Matches(c *fiber.Ctx) error {
	resp := MatchesResponse{
		Pending:  h.coordinator.Pending(),
		Resolved: h.coordinator.Resolved(),
	}
	if resp.Pending == nil {
		resp.Pending = []match.Entry{}
	}
	if resp.Resolved == nil {
		resp.Resolved = []match.Entry{}
	}
	return c.JSON(resp)
}
