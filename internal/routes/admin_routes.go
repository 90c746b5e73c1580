package routes

import (
	"github.com/gofiber/fiber/v2"

	"gigbridge/internal/handlers"
	"gigbridge/internal/middleware"
)

func SetupAdminRoutes(app *fiber.App) {
	admin := app.Group("/api/admin", middleware.Protected())

	admin.Get("/users", handlers.GetAllUsers)
	admin.Patch("/users/:id/suspend", handlers.SuspendUser)
	admin.Patch("/users/:id/unsuspend", handlers.UnsuspendUser)

	admin.Get("/engagements", handlers.GetAllEngagements)
	admin.Post("/engagements/:id/cancel", handlers.AdminCancelEngagement)

	admin.Get("/stats", handlers.GetDashboardStats)
}
