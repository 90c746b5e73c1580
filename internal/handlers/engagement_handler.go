package handlers

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gigbridge/internal/database"
	"gigbridge/internal/engine"
	"gigbridge/internal/models"
)

type CreateEngagementRequest struct {
	ProviderTag string   `json:"provider_tag" validate:"required"`
	PricingMode string   `json:"pricing_mode" validate:"required,oneof=hourly daily fixed"`
	Description string   `json:"description"`
	Price       *float64 `json:"proposed_price" validate:"omitempty,gt=0"`
	Hours       *int     `json:"proposed_hours" validate:"omitempty,gt=0"`
	Days        *int     `json:"proposed_days" validate:"omitempty,gt=0"`
	Date        *string  `json:"scheduled_date"` // RFC3339
}

type UpdateSessionRequest struct {
	Completed     *bool   `json:"completed"`
	ScheduledDate *string `json:"scheduled_date"` // RFC3339
	ScheduledTime *string `json:"scheduled_time"`
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, fmt.Errorf("dates must be RFC3339, e.g. 2026-09-15T09:00:00Z")
	}
	return &t, nil
}

// CreateEngagement opens an engagement against a provider's rate card. The
// price is validated/derived by the engine before anything is stored.
func CreateEngagement(c *fiber.Ctx) error {
	req := new(CreateEngagementRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	clientID := c.Locals("user_id").(uint)

	var provider models.User
	if err := database.DB.Where("user_tag = ?", req.ProviderTag).First(&provider).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Provider not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	eng, err := engineSvc.CreateEngagement(c.Context(), clientID, engine.CreateEngagementInput{
		ProviderID:  provider.ID,
		PricingMode: models.PricingMode(req.PricingMode),
		Description: req.Description,
		Price:       req.Price,
		Hours:       req.Hours,
		Days:        req.Days,
		Date:        date,
	})
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("create engagement client=%d provider=%d", clientID, provider.ID))
	}

	var client models.User
	database.DB.First(&client, clientID)
	if err := notificationService.NotifyEngagementCreated(provider.ID, client.FullName, eng.ID); err != nil {
		// notification failures never fail the request
		log.Printf("notify engagement created: %v", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Engagement created. The provider has been notified.",
		"engagement": eng,
	})
}

// GetMyEngagements lists engagements where the caller is either party.
func GetMyEngagements(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var engagements []models.Engagement
	if err := database.DB.
		Preload("DailySessions", func(db *gorm.DB) *gorm.DB { return db.Order("day_index ASC") }).
		Where("client_id = ? OR provider_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&engagements).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve engagements",
		})
	}

	return c.JSON(fiber.Map{
		"engagements": engagements,
		"count":       len(engagements),
	})
}

// GetEngagementByID returns one engagement with derived statuses resolved:
// the effective engagement status and the negotiation chain with superseded
// proposals marked rejected.
func GetEngagementByID(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}
	userID := c.Locals("user_id").(uint)

	view, err := engineSvc.GetEngagement(c.Context(), uint(id), userID)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("get engagement id=%d caller=%d", id, userID))
	}

	return c.JSON(fiber.Map{
		"engagement":       view.Engagement,
		"effective_status": view.EffectiveStatus,
		"negotiations":     view.Negotiations,
	})
}

// RequestCompletion records the caller's completion confirmation. One
// confirmation parks the engagement in pending_completion; the second
// completes it and settles the provider's balance.
func RequestCompletion(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}
	userID := c.Locals("user_id").(uint)

	eng, err := engineSvc.RequestCompletion(c.Context(), uint(id), userID)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("request completion id=%d caller=%d", id, userID))
	}

	notifyAfterCompletionUpdate(eng, userID)

	message := "Completion confirmed. Waiting for the other party to confirm."
	if eng.Status == models.EngagementCompleted {
		message = "Engagement completed. The provider's balance has been credited."
	}
	return c.JSON(fiber.Map{
		"message":    message,
		"engagement": eng,
	})
}

// UpdateDailySession lets a party confirm or reschedule one day of a daily
// engagement. Confirming the last outstanding flag completes and settles the
// whole engagement.
func UpdateDailySession(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}
	dayIndex, err := strconv.Atoi(c.Params("day"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid day index",
		})
	}
	userID := c.Locals("user_id").(uint)

	req := new(UpdateSessionRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	date, err := parseDate(req.ScheduledDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	eng, err := engineSvc.UpdateDailySession(c.Context(), uint(id), dayIndex, userID, engine.SessionPatch{
		Completed:     req.Completed,
		ScheduledDate: date,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("update session id=%d day=%d caller=%d", id, dayIndex, userID))
	}

	notifyAfterCompletionUpdate(eng, userID)

	message := "Daily session updated."
	if eng.Status == models.EngagementCompleted {
		message = "All sessions confirmed. Engagement completed and the provider's balance credited."
	}
	return c.JSON(fiber.Map{
		"message":    message,
		"engagement": eng,
	})
}

// CancelEngagement cancels a not-yet-completed engagement.
func CancelEngagement(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}
	userID := c.Locals("user_id").(uint)

	eng, err := engineSvc.CancelEngagement(c.Context(), uint(id), userID, false)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("cancel engagement id=%d caller=%d", id, userID))
	}

	return c.JSON(fiber.Map{
		"message":    "Engagement cancelled",
		"engagement": eng,
	})
}

// UploadEngagementAttachment attaches a brief/reference file to an engagement.
func UploadEngagementAttachment(c *fiber.Ctx) error {
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
	if !eng.IsParty(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not a party to this engagement",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	result, err := cloudinaryService.UploadFile(file, "engagements")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload file",
		})
	}

	// Replace any previous attachment
	if eng.AttachedFilePublicID != "" {
		_ = cloudinaryService.DeleteFile(eng.AttachedFilePublicID)
	}
	eng.AttachedFileURL = result.SecureURL
	eng.AttachedFilePublicID = result.PublicID
	if err := database.DB.Model(&eng).
		Select("attached_file_url", "attached_file_public_id").
		Updates(&eng).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save attachment",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Attachment uploaded",
		"file_url": eng.AttachedFileURL,
	})
}

// notifyAfterCompletionUpdate fans out in-app/email notices after a
// completion-path update. Best effort only.
func notifyAfterCompletionUpdate(eng *models.Engagement, actorID uint) {
	var actor models.User
	database.DB.First(&actor, actorID)

	otherID := eng.ClientID
	if actorID == eng.ClientID {
		otherID = eng.ProviderID
	}

	if eng.Status == models.EngagementCompleted && eng.BalanceAddedAt != nil && eng.ProposedPrice != nil {
		amount := *eng.ProposedPrice * (1 - engine.PlatformFeeRate)
		_ = notificationService.NotifySettlementCredited(eng.ProviderID, eng.ID, amount)

		var provider models.User
		if err := database.DB.First(&provider, eng.ProviderID).Error; err == nil {
			_ = emailService.SendSettlementNotice(provider.Email, amount, eng.ID)
		}
		return
	}
	_ = notificationService.NotifyCompletionRequested(otherID, actor.FullName, eng.ID)
}
