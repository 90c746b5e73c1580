package handlers

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"gigbridge/internal/database"
	"gigbridge/internal/models"
	"gigbridge/internal/services"
)

var paystackService *services.PaystackService

// InitPaystackService initializes the payment gateway client
func InitPaystackService() {
	paystackService = services.NewPaystackService()
}

// InitializeEngagementPayment creates a Paystack checkout for a
// payment_pending engagement. Only the client pays.
func InitializeEngagementPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}
	userID := c.Locals("user_id").(uint)

	var eng models.Engagement
	if err := database.DB.First(&eng, uint(id)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Engagement not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if eng.ClientID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only the client can pay for this engagement",
		})
	}
	if eng.Status != models.EngagementPaymentPending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Engagement is not awaiting payment (status: %s)", eng.Status),
		})
	}
	if eng.ProposedPrice == nil || *eng.ProposedPrice <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Engagement has no agreed price",
		})
	}

	var client models.User
	if err := database.DB.First(&client, userID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve user",
		})
	}

	reference := fmt.Sprintf("ENG-%d-%s", eng.ID, uuid.NewString())
	callbackURL := os.Getenv("PAYMENT_CALLBACK_URL")

	result, err := paystackService.InitializePayment(client.Email, *eng.ProposedPrice, reference, callbackURL)
	if err != nil {
		log.Printf("❌ paystack initialize engagement=%d: %v", eng.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to initialize payment",
		})
	}

	// Remember the reference so verification can find the engagement
	if err := database.DB.Model(&eng).Update("payment_ref", reference).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store payment reference",
		})
	}

	transaction := models.Transaction{
		UserID:          userID,
		EngagementID:    &eng.ID,
		Type:            models.TransactionPayment,
		Amount:          *eng.ProposedPrice,
		Status:          models.TransactionPending,
		Reference:       reference,
		Description:     fmt.Sprintf("Payment for engagement #%d", eng.ID),
		PaymentProvider: "paystack",
	}
	if err := database.DB.Create(&transaction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create transaction",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":           "Payment initialized. Complete checkout to confirm.",
		"authorization_url": result.Data.AuthorizationURL,
		"reference":         reference,
		"amount":            *eng.ProposedPrice,
	})
}

// VerifyEngagementPayment is the gateway callback: it verifies the charge
// with Paystack and advances the engagement to accepted.
func VerifyEngagementPayment(c *fiber.Ctx) error {
	reference := c.Params("reference")

	var transaction models.Transaction
	if err := database.DB.Where("reference = ? AND type = ?", reference, models.TransactionPayment).First(&transaction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Transaction not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}
	if transaction.Status == models.TransactionCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Transaction already completed",
		})
	}
	if transaction.EngagementID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Transaction is not tied to an engagement",
		})
	}

	verification, err := paystackService.VerifyPayment(reference)
	if err != nil {
		log.Printf("❌ paystack verify reference=%s: %v", reference, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to verify payment",
		})
	}
	if verification.Data.Status != "success" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Payment was not successful",
			"status": verification.Data.Status,
		})
	}

	eng, err := engineSvc.ConfirmPayment(c.Context(), *transaction.EngagementID, verification.Data.Channel, reference)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("confirm payment engagement=%d", *transaction.EngagementID))
	}

	now := time.Now()
	transaction.Status = models.TransactionCompleted
	transaction.PaymentMethod = verification.Data.Channel
	transaction.CompletedAt = &now
	if err := database.DB.Save(&transaction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update transaction",
		})
	}

	if eng.ProposedPrice != nil {
		_ = notificationService.NotifyPaymentReceived(eng.ProviderID, eng.ID, *eng.ProposedPrice)
	}

	return c.JSON(fiber.Map{
		"message":    "Payment confirmed. The engagement is now in progress.",
		"engagement": eng,
	})
}
