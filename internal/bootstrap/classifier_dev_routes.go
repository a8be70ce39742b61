package bootstrap

import (
	"classifier_server/core/port/in"
	"classifier_server/pkg/logger"
	"classifier_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RegisterDevTestRoutes registers development-only test routes without authentication
// WARNING: Only enable in development environment!
func RegisterDevTestRoutes(app *fiber.App, deps *Dependencies, testUserID string) {
	userID, err := uuid.Parse(testUserID)
	if err != nil {
		logger.Error("[DevTest] Invalid test user ID: %s", testUserID)
		return
	}

	dev := app.Group("/dev")

	// Middleware to inject test user ID
	dev.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})

	// Dry-run the cascade on ad-hoc content
	dev.Post("/classify/preview", func(c *fiber.Ctx) error {
		var req in.PreviewRequest
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}

		logger.Info("[DevTest] Preview: user=%s, sender=%s", userID, req.Sender)

		result, err := deps.ClassificationService.Preview(c.Context(), userID, &req)
		if err != nil {
			return response.InternalError(c, err.Error())
		}

		return c.JSON(result)
	})

	// Classify one stored email synchronously
	dev.Post("/classify/:id", func(c *fiber.Ctx) error {
		emailID, err := c.ParamsInt("id")
		if err != nil {
			return response.BadRequest(c, "invalid email id")
		}

		logger.Info("[DevTest] Classify: user=%s, email=%d", userID, emailID)

		result, err := deps.ClassificationService.ClassifyEmail(c.Context(), userID, int64(emailID))
		if err != nil {
			return response.InternalError(c, err.Error())
		}

		return c.JSON(result)
	})

	// Rule dry-run against sample content
	dev.Post("/rules/test", func(c *fiber.Ctx) error {
		var req in.TestRuleRequest
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}

		logger.Info("[DevTest] TestRule: user=%s", userID)

		result, err := deps.RuleService.TestRule(c.Context(), &req)
		if err != nil {
			return response.InternalError(c, err.Error())
		}

		return c.JSON(result)
	})

	// Classification stats
	dev.Get("/stats", func(c *fiber.Ctx) error {
		logger.Info("[DevTest] Stats: user=%s", userID)

		stats, err := deps.ClassificationService.Stats(c.Context(), userID)
		if err != nil {
			return response.InternalError(c, err.Error())
		}

		return c.JSON(stats)
	})

	// Kick off suggestion mining
	dev.Post("/suggestions/mine", func(c *fiber.Ctx) error {
		logger.Info("[DevTest] Mine: user=%s", userID)

		job, err := deps.SuggestionService.StartMining(c.Context(), userID, nil)
		if err != nil {
			return response.InternalError(c, err.Error())
		}

		return c.JSON(job)
	})

	// Pending suggestions
	dev.Get("/suggestions", func(c *fiber.Ctx) error {
		suggestions, err := deps.SuggestionService.ListSuggestions(c.Context(), userID)
		if err != nil {
			return response.InternalError(c, err.Error())
		}

		return c.JSON(fiber.Map{
			"suggestions": suggestions,
			"total":       len(suggestions),
		})
	})

	// Job state
	dev.Get("/jobs/:id", func(c *fiber.Ctx) error {
		job, err := deps.ClassificationService.GetJob(c.Context(), userID, c.Params("id"))
		if err != nil {
			return response.NotFound(c, err.Error())
		}

		return c.JSON(job)
	})

	logger.Info("[DevTest] Development test routes registered at /dev/*")
}
