package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ValidateUUID validates that a parameter is a valid UUID
func ValidateUUID(paramName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		value := c.Params(paramName)
		if value == "" {
			return c.Status(400).JSON(fiber.Map{
				"error": "missing required parameter",
				"code":  "MISSING_PARAM",
				"field": paramName,
			})
		}

		if _, err := uuid.Parse(value); err != nil {
			return c.Status(400).JSON(fiber.Map{
				"error": "invalid UUID format",
				"code":  "INVALID_UUID",
				"field": paramName,
			})
		}

		return c.Next()
	}
}

// ValidateNumericID validates that a path parameter is a positive integer.
// Email, rule and suggestion IDs are int64 sequences.
func ValidateNumericID(paramName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		value := c.Params(paramName)
		if value == "" {
			return c.Status(400).JSON(fiber.Map{
				"error": "missing required parameter",
				"code":  "MISSING_PARAM",
				"field": paramName,
			})
		}

		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return c.Status(400).JSON(fiber.Map{
				"error": "invalid numeric id",
				"code":  "INVALID_ID",
				"field": paramName,
			})
		}

		return c.Next()
	}
}

// ValidateEnum validates that a value is one of allowed values
func ValidateEnum(fieldName string, allowedValues []string) fiber.Handler {
	allowed := make(map[string]bool)
	for _, v := range allowedValues {
		allowed[strings.ToLower(v)] = true
	}

	return func(c *fiber.Ctx) error {
		value := c.Query(fieldName)

		if value == "" {
			value = c.Params(fieldName)
		}

		if value == "" {
			var body map[string]any
			if err := c.BodyParser(&body); err == nil {
				if v, ok := body[fieldName].(string); ok {
					value = v
				}
			}
		}

		if value != "" && !allowed[strings.ToLower(value)] {
			return c.Status(400).JSON(fiber.Map{
				"error":   "invalid enum value",
				"code":    "INVALID_ENUM",
				"field":   fieldName,
				"value":   value,
				"allowed": allowedValues,
			})
		}

		return c.Next()
	}
}

// ValidateIntRange validates integer parameters are within range
func ValidateIntRange(paramName string, min, max int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		value, err := c.ParamsInt(paramName)
		if err != nil {
			value = c.QueryInt(paramName, -1)
			if value == -1 {
				return c.Next() // Optional parameter not provided
			}
		}

		if value < min || value > max {
			return c.Status(400).JSON(fiber.Map{
				"error": "value out of range",
				"code":  "OUT_OF_RANGE",
				"field": paramName,
				"min":   min,
				"max":   max,
				"value": value,
			})
		}

		return c.Next()
	}
}
