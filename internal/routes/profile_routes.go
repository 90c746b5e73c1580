package routes

import (
	"github.com/gofiber/fiber/v2"

	"gigbridge/internal/handlers"
	"gigbridge/internal/middleware"
)

func SetupProfileRoutes(app *fiber.App) {
	users := app.Group("/api/users", middleware.Protected())

	users.Get("/me", handlers.GetUserProfile)
	users.Put("/me", handlers.UpdateUserProfile)
	users.Put("/me/rate-card", handlers.UpsertRateCard)
	users.Post("/me/avatar", handlers.UploadAvatar)

	// Provider discovery by tag
	users.Get("/providers/:tag", handlers.GetProviderByTag)
}
