package http

import (
	"classifier_server/core/domain"
	"classifier_server/core/port/in"
	"classifier_server/infra/middleware"
	"classifier_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ClassificationHandler handles classification, override, and job endpoints.
type ClassificationHandler struct {
	service in.ClassificationService
}

// NewClassificationHandler creates a new ClassificationHandler.
func NewClassificationHandler(service in.ClassificationService) *ClassificationHandler {
	return &ClassificationHandler{service: service}
}

// Register registers classification routes.
func (h *ClassificationHandler) Register(router fiber.Router) {
	router.Post("/classify", h.Classify)
	router.Post("/classify/preview", h.Preview)

	emails := router.Group("/emails")
	emails.Get("/stats", h.Stats)
	emails.Post("/reclassify", h.Reclassify)

	emailID := middleware.ValidateNumericID("id")
	emails.Post("/:id/override", emailID, h.Override)
	emails.Get("/:id/history", emailID, h.History)

	// Job IDs are UUIDs, not sequences.
	jobs := router.Group("/jobs")
	jobID := middleware.ValidateUUID("id")
	jobs.Get("/:id", jobID, h.GetJob)
	jobs.Post("/:id/cancel", jobID, h.CancelJob)
}

// ClassifyRequest names the stored email to classify.
type ClassifyRequest struct {
	EmailID int64 `json:"email_id"`
}

// OverrideRequest carries a manual category assignment.
type OverrideRequest struct {
	Category   domain.EmailCategory `json:"category"`
	Importance domain.Importance    `json:"importance"`
}

// Classify runs the cascade for one stored email
// @Summary Classify a stored email
// @Tags Classification
// @Accept json
// @Produce json
// @Param request body ClassifyRequest true "Email to classify"
// @Success 200 {object} in.ClassificationResult
// @Router /api/v1/classify [post]
func (h *ClassificationHandler) Classify(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.EmailID <= 0 {
		return response.BadRequest(c, "email_id is required")
	}

	result, err := h.service.ClassifyEmail(c.Context(), userID, req.EmailID)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, result)
}

// Preview runs the cascade on ad-hoc content without persisting
// @Summary Preview classification of ad-hoc email content
// @Tags Classification
// @Accept json
// @Produce json
// @Param request body in.PreviewRequest true "Email content"
// @Success 200 {object} in.ClassificationResult
// @Router /api/v1/classify/preview [post]
func (h *ClassificationHandler) Preview(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req in.PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.service.Preview(c.Context(), userID, &req)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, result)
}

// Override records a manual category assignment
// @Summary Manually override an email's classification
// @Tags Classification
// @Accept json
// @Produce json
// @Param id path int true "Email ID"
// @Param request body OverrideRequest true "New assignment"
// @Success 200 {object} domain.Email
// @Router /api/v1/emails/{id}/override [post]
func (h *ClassificationHandler) Override(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid email ID")
	}

	var req OverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	email, err := h.service.Override(c.Context(), userID, id, req.Category, req.Importance)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, email)
}

// History lists the classification events for one email
// @Summary Get an email's classification history
// @Tags Classification
// @Produce json
// @Param id path int true "Email ID"
// @Success 200 {array} domain.ClassificationEvent
// @Router /api/v1/emails/{id}/history [get]
func (h *ClassificationHandler) History(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	id, err := ParseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "invalid email ID")
	}

	events, err := h.service.History(c.Context(), userID, id)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, events)
}

// Stats aggregates category and method distributions
// @Summary Get classification statistics
// @Tags Classification
// @Produce json
// @Success 200 {object} in.ClassificationStats
// @Router /api/v1/emails/stats [get]
func (h *ClassificationHandler) Stats(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	stats, err := h.service.Stats(c.Context(), userID)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, stats)
}

// Reclassify enqueues a bulk reclassification job
// @Summary Reclassify stored emails in the background
// @Tags Classification
// @Accept json
// @Produce json
// @Param request body in.ReclassifyRequest false "Job scope"
// @Success 202 {object} domain.Job
// @Router /api/v1/emails/reclassify [post]
func (h *ClassificationHandler) Reclassify(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	var req in.ReclassifyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
	}

	job, err := h.service.StartReclassify(c.Context(), userID, &req)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.Accepted(c, job)
}

// GetJob returns the tracked state of a background job
// @Summary Get background job status
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} domain.Job
// @Router /api/v1/jobs/{id} [get]
func (h *ClassificationHandler) GetJob(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	jobID := c.Params("id")
	if jobID == "" {
		return response.BadRequest(c, "invalid job ID")
	}

	job, err := h.service.GetJob(c.Context(), userID, jobID)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, job)
}

// CancelJob flags a running job for cancellation
// @Summary Cancel a background job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} domain.Job
// @Router /api/v1/jobs/{id}/cancel [post]
func (h *ClassificationHandler) CancelJob(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	jobID := c.Params("id")
	if jobID == "" {
		return response.BadRequest(c, "invalid job ID")
	}

	job, err := h.service.CancelJob(c.Context(), userID, jobID)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, job)
}
