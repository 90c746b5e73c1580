package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"gigbridge/internal/database"
	"gigbridge/internal/engine"
	"gigbridge/internal/models"
)

type WithdrawRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	BankAccountID uint    `json:"bank_account_id" validate:"required"`
}

type AddBankAccountRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	BankCode      string `json:"bank_code"`
}

// GetWalletBalance retrieves user's wallet balance
func GetWalletBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve balance",
		})
	}

	return c.JSON(fiber.Map{
		"balance": user.Balance,
		"user": fiber.Map{
			"id":        user.ID,
			"full_name": user.FullName,
			"email":     user.Email,
			"user_tag":  user.UserTag,
		},
	})
}

// AddBankAccount adds a bank account for withdrawals
func AddBankAccount(c *fiber.Ctx) error {
	req := new(AddBankAccountRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	var existingAccount models.BankAccount
	if err := database.DB.Where("user_id = ? AND account_number = ?", userID, req.AccountNumber).First(&existingAccount).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Bank account already exists",
		})
	}

	var count int64
	database.DB.Model(&models.BankAccount{}).Where("user_id = ?", userID).Count(&count)

	bankAccount := models.BankAccount{
		UserID:        userID,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankCode:      req.BankCode,
		IsDefault:     count == 0, // First account becomes default
	}

	if err := database.DB.Create(&bankAccount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add bank account",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Bank account added successfully",
		"bank_account": bankAccount,
	})
}

// GetBankAccounts retrieves all bank accounts for the user
func GetBankAccounts(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var bankAccounts []models.BankAccount
	if err := database.DB.Where("user_id = ?", userID).Order("is_default DESC, created_at DESC").Find(&bankAccounts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve bank accounts",
		})
	}

	return c.JSON(fiber.Map{
		"bank_accounts": bankAccounts,
		"count":         len(bankAccounts),
	})
}

// DeleteBankAccount removes a bank account
func DeleteBankAccount(c *fiber.Ctx) error {
	accountID := c.Params("id")
	userID := c.Locals("user_id").(uint)

	var bankAccount models.BankAccount
	if err := database.DB.Where("id = ? AND user_id = ?", accountID, userID).First(&bankAccount).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Bank account not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if err := database.DB.Delete(&bankAccount).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete bank account",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Bank account deleted successfully",
	})
}

// WithdrawFunds initiates a withdrawal. The debit is a conditional update so
// a withdrawal racing a settlement credit can never overdraw the balance.
func WithdrawFunds(c *fiber.Ctx) error {
	req := new(WithdrawRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Locals("user_id").(uint)

	if req.Amount < 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Minimum withdrawal amount is ₦100",
		})
	}

	var bankAccount models.BankAccount
	if err := database.DB.Where("id = ? AND user_id = ?", req.BankAccountID, userID).First(&bankAccount).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Bank account not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	// Register the transfer recipient once per bank account
	if bankAccount.RecipientCode == "" {
		recipient, err := paystackService.CreateTransferRecipient(bankAccount.AccountName, bankAccount.AccountNumber, bankAccount.BankCode)
		if err != nil {
			log.Printf("❌ paystack recipient user=%d: %v", userID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Failed to register transfer recipient",
			})
		}
		bankAccount.RecipientCode = recipient.Data.RecipientCode
		database.DB.Model(&bankAccount).Update("recipient_code", bankAccount.RecipientCode)
	}

	if err := database.SubtractFromBalance(userID, req.Amount); err != nil {
		if errors.Is(err, engine.ErrInsufficientBalance) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Insufficient balance",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process withdrawal",
		})
	}

	reference := fmt.Sprintf("WTH-%s", uuid.NewString())
	transaction := models.Transaction{
		UserID:        userID,
		Type:          models.TransactionWithdrawal,
		Amount:        req.Amount,
		Status:        models.TransactionPending,
		Reference:     reference,
		Description:   fmt.Sprintf("Withdrawal of ₦%.2f to %s", req.Amount, bankAccount.BankName),
		BankName:      bankAccount.BankName,
		AccountNumber: bankAccount.AccountNumber,
		AccountName:   bankAccount.AccountName,
	}
	if err := database.DB.Create(&transaction).Error; err != nil {
		// Put the debit back, the withdrawal was never recorded
		_ = database.AddToBalance(userID, req.Amount)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create withdrawal",
		})
	}

	if _, err := paystackService.InitiateTransfer(bankAccount.RecipientCode, req.Amount, "GigBridge withdrawal", reference); err != nil {
		log.Printf("❌ paystack transfer reference=%s: %v", reference, err)
		// Refund and mark failed
		_ = database.AddToBalance(userID, req.Amount)
		database.DB.Model(&transaction).Update("status", models.TransactionFailed)
		_ = notificationService.CreateNotification(userID, models.NotificationWithdrawalFailed,
			"Withdrawal Failed",
			fmt.Sprintf("Your withdrawal of ₦%.2f could not be processed. The amount has been refunded.", req.Amount), nil)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Transfer failed. Your balance has been refunded.",
		})
	}

	now := time.Now()
	transaction.Status = models.TransactionCompleted
	transaction.CompletedAt = &now
	database.DB.Save(&transaction)

	_ = notificationService.CreateNotification(userID, models.NotificationWithdrawalSuccess,
		"Withdrawal Successful",
		fmt.Sprintf("₦%.2f is on its way to %s", req.Amount, bankAccount.BankName), nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Withdrawal submitted successfully. Funds will be transferred shortly.",
		"transaction": fiber.Map{
			"id":             transaction.ID,
			"reference":      transaction.Reference,
			"amount":         transaction.Amount,
			"status":         transaction.Status,
			"bank_name":      transaction.BankName,
			"account_number": transaction.AccountNumber,
		},
	})
}

// GetTransactionHistory retrieves user's transaction history
func GetTransactionHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	txType := c.Query("type") // filter by type: settlement, withdrawal, payment

	query := database.DB.Where("user_id = ?", userID)

	if txType != "" {
		query = query.Where("type = ?", txType)
	}

	var transactions []models.Transaction
	if err := query.Order("created_at DESC").Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve transactions",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetTransactionByID retrieves a specific transaction
func GetTransactionByID(c *fiber.Ctx) error {
	txID := c.Params("id")
	userID := c.Locals("user_id").(uint)

	var transaction models.Transaction
	if err := database.DB.Where("id = ? AND user_id = ?", txID, userID).First(&transaction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Transaction not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	return c.JSON(fiber.Map{
		"transaction": transaction,
	})
}
