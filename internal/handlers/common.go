package handlers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"gigbridge/internal/engine"
	"gigbridge/internal/pricing"
)

var validate = validator.New()

var engineSvc *engine.Engine

// InitEngine wires the lifecycle engine to the database-backed store.
func InitEngine(store engine.Store) {
	engineSvc = engine.New(store)
}

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
// Business-rule failures carry their message to the caller; anything
// unexpected is logged with context and returned as a generic 500.
func respondEngineError(c *fiber.Ctx, err error, context string) error {
	var floorErr *pricing.BelowFloorError
	switch {
	case errors.As(err, &floorErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":          floorErr.Error(),
			"floor":          floorErr.Floor,
			"proposed_price": floorErr.Proposed,
		})
	case errors.Is(err, pricing.ErrNoRate):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, engine.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, engine.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, engine.ErrValidation), errors.Is(err, engine.ErrConflict):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	log.Printf("❌ %s: %v", context, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Something went wrong, please try again",
	})
}
