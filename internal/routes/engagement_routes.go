package routes

import (
	"github.com/gofiber/fiber/v2"

	"gigbridge/internal/handlers"
	"gigbridge/internal/middleware"
)

func SetupEngagementRoutes(app *fiber.App) {
	engagements := app.Group("/api/engagements", middleware.Protected())

	// Lifecycle
	engagements.Post("/", handlers.CreateEngagement)
	engagements.Get("/", handlers.GetMyEngagements)
	engagements.Get("/:id", handlers.GetEngagementByID)
	engagements.Post("/:id/cancel", handlers.CancelEngagement)

	// Negotiation chain
	engagements.Post("/:id/negotiations", handlers.OpenNegotiation)
	engagements.Get("/:id/negotiations", handlers.GetNegotiations)

	// Payment
	engagements.Post("/:id/payment/initialize", handlers.InitializeEngagementPayment)

	// Completion and daily sessions
	engagements.Post("/:id/complete", handlers.RequestCompletion)
	engagements.Patch("/:id/sessions/:day", handlers.UpdateDailySession)

	// Attachments
	engagements.Post("/:id/attachment", handlers.UploadEngagementAttachment)

	// Responding to a proposal is keyed by the negotiation id
	negotiations := app.Group("/api/negotiations", middleware.Protected())
	negotiations.Post("/:id/respond", handlers.RespondNegotiation)
	negotiations.Post("/:id/counter", handlers.CounterNegotiation)

	// Paystack redirects here after checkout, so no auth middleware
	app.Get("/api/payments/verify/:reference", handlers.VerifyEngagementPayment)
}
