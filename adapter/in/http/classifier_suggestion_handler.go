package http

import (
	"classifier_server/core/port/in"
	"classifier_server/infra/middleware"
	"classifier_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SuggestionHandler handles rule-suggestion endpoints.
type SuggestionHandler struct {
	service in.SuggestionService
}

// NewSuggestionHandler creates a new SuggestionHandler.
func NewSuggestionHandler(service in.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{service: service}
}

// Register registers suggestion routes.
func (h *SuggestionHandler) Register(router fiber.Router) {
	suggestions := router.Group("/suggestions")

	suggestions.Get("/", h.List)
	suggestions.Post("/mine", h.Mine)

	id := middleware.ValidateNumericID("id")
	suggestions.Post("/:id/accept", id, h.Accept)
	suggestions.Post("/:id/dismiss", id, h.Dismiss)
}

// List returns the owner's pending suggestions
// @Summary List pending rule suggestions
// @Tags Suggestions
// @Produce json
// @Success 200 {array} domain.Suggestion
// @Router /api/v1/suggestions [get]
func (h *SuggestionHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	suggestions, err := h.service.ListSuggestions(c.Context(), userID)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, suggestions)
}

// Accept creates a rule from a suggestion and resolves it
// @Summary Accept a rule suggestion
// @Tags Suggestions
// @Produce json
// @Param id path int true "Suggestion ID"
// @Success 200 {object} in.AcceptResult
// @Router /api/v1/suggestions/{id}/accept [post]
func (h *SuggestionHandler) Accept(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid suggestion ID")
	}

	result, err := h.service.Accept(c.Context(), userID, id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, result)
}

// Dismiss resolves a suggestion without creating a rule
// @Summary Dismiss a rule suggestion
// @Tags Suggestions
// @Produce json
// @Param id path int true "Suggestion ID"
// @Success 200 {object} in.AcceptResult
// @Router /api/v1/suggestions/{id}/dismiss [post]
func (h *SuggestionHandler) Dismiss(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid suggestion ID")
	}

	result, err := h.service.Dismiss(c.Context(), userID, id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, result)
}

// Mine enqueues a background suggestion-mining pass
// @Summary Mine rule suggestions from manual corrections
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param request body in.MineRequest false "Mining parameters"
// @Success 202 {object} domain.Job
// @Router /api/v1/suggestions/mine [post]
func (h *SuggestionHandler) Mine(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req in.MineRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
	}

	job, err := h.service.StartMining(c.Context(), userID, &req)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.Accepted(c, job)
}
