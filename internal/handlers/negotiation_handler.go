package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"gigbridge/internal/database"
	"gigbridge/internal/engine"
	"gigbridge/internal/models"
)

type NegotiationTermsRequest struct {
	PricingMode string   `json:"pricing_mode" validate:"omitempty,oneof=hourly daily fixed"`
	Price       *float64 `json:"proposed_price" validate:"omitempty,gt=0"`
	Hours       *int     `json:"proposed_hours" validate:"omitempty,gt=0"`
	Days        *int     `json:"proposed_days" validate:"omitempty,gt=0"`
	Date        *string  `json:"proposed_date"` // RFC3339
	Message     string   `json:"message" validate:"required"`
}

type RespondNegotiationRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
}

func (r *NegotiationTermsRequest) toTerms() (engine.Terms, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return engine.Terms{}, err
	}
	return engine.Terms{
		PricingMode: models.PricingMode(r.PricingMode),
		Price:       r.Price,
		Hours:       r.Hours,
		Days:        r.Days,
		Date:        date,
		Message:     r.Message,
	}, nil
}

// OpenNegotiation starts (or extends) the negotiation chain on an engagement.
func OpenNegotiation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}
	userID := c.Locals("user_id").(uint)

	req := new(NegotiationTermsRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	terms, err := req.toTerms()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	n, err := engineSvc.OpenNegotiation(c.Context(), uint(id), userID, terms)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("open negotiation engagement=%d caller=%d", id, userID))
	}

	notifyCounterpart(uint(id), userID, func(recipientID uint, actorName string) {
		_ = notificationService.NotifyNegotiationOpened(recipientID, actorName, uint(id))
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Proposal sent",
		"negotiation": n,
	})
}

// RespondNegotiation accepts or rejects the live proposal.
func RespondNegotiation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid negotiation id",
		})
	}
	userID := c.Locals("user_id").(uint)

	req := new(RespondNegotiationRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	accept := req.Decision == "accept"
	eng, err := engineSvc.RespondNegotiation(c.Context(), uint(id), userID, accept)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("respond negotiation=%d caller=%d", id, userID))
	}

	if accept {
		notifyCounterpart(eng.ID, userID, func(recipientID uint, actorName string) {
			price := 0.0
			if eng.ProposedPrice != nil {
				price = *eng.ProposedPrice
			}
			_ = notificationService.NotifyNegotiationAccepted(recipientID, actorName, eng.ID, price)
		})
		return c.JSON(fiber.Map{
			"message":    "Proposal accepted. The engagement is now awaiting payment.",
			"engagement": eng,
		})
	}

	return c.JSON(fiber.Map{
		"message":    "Proposal rejected",
		"engagement": eng,
	})
}

// CounterNegotiation answers the live proposal with new terms.
func CounterNegotiation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid negotiation id",
		})
	}
	userID := c.Locals("user_id").(uint)

	req := new(NegotiationTermsRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	terms, err := req.toTerms()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	counter, err := engineSvc.CounterPropose(c.Context(), uint(id), userID, terms)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("counter negotiation=%d caller=%d", id, userID))
	}

	notifyCounterpart(counter.EngagementID, userID, func(recipientID uint, actorName string) {
		_ = notificationService.NotifyNegotiationCountered(recipientID, actorName, counter.EngagementID)
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Counter-proposal sent",
		"negotiation": counter,
	})
}

// GetNegotiations lists an engagement's chain with effective statuses applied.
func GetNegotiations(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}
	userID := c.Locals("user_id").(uint)

	view, err := engineSvc.GetEngagement(c.Context(), uint(id), userID)
	if err != nil {
		return respondEngineError(c, err, fmt.Sprintf("list negotiations engagement=%d caller=%d", id, userID))
	}

	return c.JSON(fiber.Map{
		"negotiations": view.Negotiations,
		"count":        len(view.Negotiations),
	})
}

// notifyCounterpart resolves the other party of an engagement and runs the
// notifier with the actor's display name. Best effort.
func notifyCounterpart(engagementID, actorID uint, notify func(recipientID uint, actorName string)) {
	var eng models.Engagement
	if err := database.DB.First(&eng, engagementID).Error; err != nil {
		return
	}
	var actor models.User
	if err := database.DB.First(&actor, actorID).Error; err != nil {
		return
	}
	recipientID := eng.ClientID
	if actorID == eng.ClientID {
		recipientID = eng.ProviderID
	}
	notify(recipientID, actor.FullName)
}
