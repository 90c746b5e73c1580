package routes

import (
	"github.com/gofiber/fiber/v2"

	"gigbridge/internal/handlers"
	"gigbridge/internal/middleware"
)

func SetupWalletRoutes(app *fiber.App) {
	wallet := app.Group("/api/wallet", middleware.Protected())

	wallet.Get("/balance", handlers.GetWalletBalance)

	// Bank accounts
	wallet.Post("/bank-accounts", handlers.AddBankAccount)
	wallet.Get("/bank-accounts", handlers.GetBankAccounts)
	wallet.Delete("/bank-accounts/:id", handlers.DeleteBankAccount)

	// Withdrawals
	wallet.Post("/withdraw", handlers.WithdrawFunds)

	// Transaction history
	wallet.Get("/transactions", handlers.GetTransactionHistory)
	wallet.Get("/transactions/:id", handlers.GetTransactionByID)
}
