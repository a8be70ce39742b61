package http

import (
	"classifier_server/core/domain"
	"classifier_server/pkg/logger"
	"classifier_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CategoryHandler serves category metadata and per-category counts.
type CategoryHandler struct {
	emailRepo domain.EmailRepository
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(emailRepo domain.EmailRepository) *CategoryHandler {
	return &CategoryHandler{emailRepo: emailRepo}
}

// Register registers category routes.
func (h *CategoryHandler) Register(router fiber.Router) {
	cat := router.Group("/categories")
	cat.Get("/", h.ListCategories)
	cat.Get("/stats", h.GetCategoryStats)
	cat.Get("/importance", h.ListImportanceLevels)
}

// CategoryMeta contains display metadata for a category.
type CategoryMeta struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	SortOrder   int    `json:"sort_order"`
}

// ImportanceLevelMeta contains display metadata for an importance level.
type ImportanceLevelMeta struct {
	Level       int    `json:"level"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// categoryMetadata defines metadata for every category in the closed set.
// Keys must stay in sync with domain.AllCategories.
var categoryMetadata = []CategoryMeta{
	{Key: "work", Name: "Work", Description: "Work, projects, meetings", Icon: "briefcase", Color: "#34A853", SortOrder: 1},
	{Key: "finance", Name: "Finance", Description: "Bills, payments, invoices", Icon: "dollar-sign", Color: "#4CAF50", SortOrder: 2},
	{Key: "social", Name: "Social", Description: "Friends, parties, social networks", Icon: "users", Color: "#03A9F4", SortOrder: 3},
	{Key: "shopping", Name: "Shopping", Description: "Orders, shipping, delivery", Icon: "shopping-cart", Color: "#FF5722", SortOrder: 4},
	{Key: "news", Name: "News", Description: "Newsletters and digests", Icon: "newspaper", Color: "#FF9800", SortOrder: 5},
	{Key: "education", Name: "Education", Description: "Courses, training, exams", Icon: "book", Color: "#795548", SortOrder: 6},
	{Key: "travel", Name: "Travel", Description: "Flights, hotels, itineraries", Icon: "plane", Color: "#00BCD4", SortOrder: 7},
	{Key: "health", Name: "Health", Description: "Medical appointments and checkups", Icon: "heart", Color: "#E91E63", SortOrder: 8},
	{Key: "system", Name: "System", Description: "Verification codes and account notices", Icon: "settings", Color: "#607D8B", SortOrder: 9},
	{Key: "advertising", Name: "Advertising", Description: "Commercial promotion", Icon: "megaphone", Color: "#9C27B0", SortOrder: 10},
	{Key: "spam", Name: "Spam", Description: "Scams and unwanted mail", Icon: "shield-off", Color: "#F44336", SortOrder: 98},
	{Key: "general", Name: "General", Description: "Uncategorized emails", Icon: "folder", Color: "#9E9E9E", SortOrder: 99},
}

// importanceLevelMetadata defines metadata for the 1..4 importance scale.
var importanceLevelMetadata = []ImportanceLevelMeta{
	{Level: 1, Key: "normal", Name: "Normal", Color: "#9E9E9E", Description: "Routine mail"},
	{Level: 2, Key: "medium", Name: "Medium", Color: "#4CAF50", Description: "Worth reading soon"},
	{Level: 3, Key: "high", Name: "High", Color: "#FF9800", Description: "Important, should address promptly"},
	{Level: 4, Key: "critical", Name: "Critical", Color: "#F44336", Description: "Requires immediate action"},
}

// ListCategories returns all category metadata.
// GET /categories
func (h *CategoryHandler) ListCategories(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"categories": categoryMetadata,
		"total":      len(categoryMetadata),
	})
}

// ListImportanceLevels returns importance level metadata.
// GET /categories/importance
func (h *CategoryHandler) ListImportanceLevels(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"levels": importanceLevelMetadata,
		"total":  len(importanceLevelMetadata),
	})
}

// CategoryCount pairs category metadata with its email count.
type CategoryCount struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
}

// GetCategoryStats returns email counts per category, including zero rows
// for categories with no mail.
// GET /categories/stats
func (h *CategoryHandler) GetCategoryStats(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return response.Unauthorized(c, "unauthorized")
	}

	stats, err := h.emailRepo.CategoryStats(c.Context(), userID)
	if err != nil {
		logger.WithError(err).Error("[CategoryHandler] Failed to get category stats")
		return InternalErrorResponse(c, err, "get category stats")
	}

	totals := make(map[string]int, len(stats))
	grand := 0
	for _, s := range stats {
		totals[string(s.Category)] = s.Total
		grand += s.Total
	}

	result := make([]CategoryCount, 0, len(categoryMetadata))
	for _, meta := range categoryMetadata {
		result = append(result, CategoryCount{
			Category: meta.Key,
			Name:     meta.Name,
			Total:    totals[meta.Key],
			Color:    meta.Color,
			Icon:     meta.Icon,
		})
	}

	return response.OK(c, fiber.Map{
		"categories": result,
		"total":      grand,
	})
}

// GetCategoryMeta returns metadata for a category key.
func GetCategoryMeta(key string) *CategoryMeta {
	for _, meta := range categoryMetadata {
		if meta.Key == key {
			return &meta
		}
	}
	return nil
}
