package http

import (
	"classifier_server/core/domain"
	"classifier_server/core/port/in"
	"classifier_server/infra/middleware"
	"classifier_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RuleHandler handles HTTP requests for classification rules.
type RuleHandler struct {
	rules          in.RuleService
	classification in.ClassificationService
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(rules in.RuleService, classification in.ClassificationService) *RuleHandler {
	return &RuleHandler{rules: rules, classification: classification}
}

// Register registers rule routes.
func (h *RuleHandler) Register(router fiber.Router) {
	rules := router.Group("/rules")

	categories := make([]string, len(domain.AllCategories))
	for i, c := range domain.AllCategories {
		categories[i] = string(c)
	}

	rules.Get("/",
		middleware.ValidateEnum("category", categories),
		middleware.ValidateIntRange("limit", 1, 100),
		h.List)
	rules.Post("/", h.Create)
	rules.Post("/test", h.Test)
	rules.Post("/reorder", h.Reorder)

	id := middleware.ValidateNumericID("id")
	rules.Get("/:id", id, h.GetByID)
	rules.Put("/:id", id, h.Update)
	rules.Delete("/:id", id, h.Delete)
	rules.Post("/:id/enable", id, h.Enable)
	rules.Post("/:id/disable", id, h.Disable)
	rules.Post("/:id/apply", id, h.Apply)
}

// Create creates a new classification rule
// @Summary Create a classification rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body in.CreateRuleRequest true "Rule definition"
// @Success 201 {object} domain.Rule
// @Router /api/v1/rules [post]
func (h *RuleHandler) Create(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req in.CreateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	rule, err := h.rules.CreateRule(c.Context(), userID, &req)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.Created(c, rule)
}

// List lists the owner's rules
// @Summary List classification rules
// @Tags Rules
// @Produce json
// @Param category query string false "Filter by category"
// @Param enabled query bool false "Filter by enabled state"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {array} domain.Rule
// @Router /api/v1/rules [get]
func (h *RuleHandler) List(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	filter := domain.RuleFilter{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}
	if category := c.Query("category"); category != "" {
		cat := domain.EmailCategory(category)
		if !domain.IsValidCategory(cat) {
			return response.BadRequest(c, "invalid category")
		}
		filter.Category = &cat
	}
	if enabled := c.Query("enabled"); enabled != "" {
		val := enabled == "true"
		filter.Enabled = &val
	}

	rules, total, err := h.rules.ListRules(c.Context(), userID, filter)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OKWithMeta(c, rules, &response.Meta{
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.Limit,
		HasMore:  filter.Page*filter.Limit < total,
	})
}

// GetByID retrieves a rule by ID
// @Summary Get a classification rule
// @Tags Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} domain.Rule
// @Router /api/v1/rules/{id} [get]
func (h *RuleHandler) GetByID(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid rule ID")
	}

	rule, err := h.rules.GetRule(c.Context(), userID, id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, rule)
}

// Update updates a rule
// @Summary Update a classification rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path int true "Rule ID"
// @Param request body in.UpdateRuleRequest true "Partial rule update"
// @Success 200 {object} domain.Rule
// @Router /api/v1/rules/{id} [put]
func (h *RuleHandler) Update(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid rule ID")
	}

	var req in.UpdateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	rule, err := h.rules.UpdateRule(c.Context(), userID, id, &req)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, rule)
}

// Delete deletes a rule
// @Summary Delete a classification rule
// @Tags Rules
// @Param id path int true "Rule ID"
// @Success 204
// @Router /api/v1/rules/{id} [delete]
func (h *RuleHandler) Delete(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid rule ID")
	}

	if err := h.rules.DeleteRule(c.Context(), userID, id); err != nil {
		return AppErrorResponse(c, err)
	}

	return response.NoContent(c)
}

// Enable enables a rule
// @Summary Enable a classification rule
// @Tags Rules
// @Param id path int true "Rule ID"
// @Success 200 {object} domain.Rule
// @Router /api/v1/rules/{id}/enable [post]
func (h *RuleHandler) Enable(c *fiber.Ctx) error {
	return h.setEnabled(c, true)
}

// Disable disables a rule
// @Summary Disable a classification rule
// @Tags Rules
// @Param id path int true "Rule ID"
// @Success 200 {object} domain.Rule
// @Router /api/v1/rules/{id}/disable [post]
func (h *RuleHandler) Disable(c *fiber.Ctx) error {
	return h.setEnabled(c, false)
}

func (h *RuleHandler) setEnabled(c *fiber.Ctx, enabled bool) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid rule ID")
	}

	rule, err := h.rules.SetEnabled(c.Context(), userID, id, enabled)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, rule)
}

// Test previews a rule against a sample email without saving anything
// @Summary Test an unsaved rule against a sample email
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body in.TestRuleRequest true "Rule and sample email"
// @Success 200 {object} in.TestRuleResult
// @Router /api/v1/rules/test [post]
func (h *RuleHandler) Test(c *fiber.Ctx) error {
	if _, err := GetUserID(c); err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req in.TestRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.rules.TestRule(c.Context(), &req)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, result)
}

// ReorderRequest carries the full rule order, highest priority first.
type ReorderRequest struct {
	RuleIDs []int64 `json:"rule_ids"`
}

// Reorder atomically replaces the owner's rule priorities
// @Summary Reorder classification rules
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body ReorderRequest true "Rule IDs, highest priority first"
// @Success 204
// @Router /api/v1/rules/reorder [post]
func (h *RuleHandler) Reorder(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req ReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if err := h.rules.ReorderRules(c.Context(), userID, req.RuleIDs); err != nil {
		return AppErrorResponse(c, err)
	}

	return response.NoContent(c)
}

// Apply enqueues a job applying this rule across the owner's mailbox
// @Summary Apply a rule to all stored emails
// @Tags Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 202 {object} domain.Job
// @Router /api/v1/rules/{id}/apply [post]
func (h *RuleHandler) Apply(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid rule ID")
	}

	job, err := h.classification.StartApplyRule(c.Context(), userID, id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.Accepted(c, job)
}
