package routes

import (
	"github.com/gofiber/fiber/v2"

	"gigbridge/internal/handlers"
	"gigbridge/internal/middleware"
)

func SetupNotificationRoutes(app *fiber.App) {
	notifications := app.Group("/api/notifications", middleware.Protected())

	notifications.Get("/", handlers.GetNotifications)
	notifications.Patch("/:id/read", handlers.MarkNotificationRead)
	notifications.Patch("/read-all", handlers.MarkAllNotificationsRead)
}
