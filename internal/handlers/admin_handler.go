package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gigbridge/internal/database"
	"gigbridge/internal/engine"
	"gigbridge/internal/models"
)

// requireAdmin loads the caller and verifies the admin role, writing the
// error response itself when the check fails.
func requireAdmin(c *fiber.Ctx) (*models.User, bool) {
	userID := c.Locals("user_id").(uint)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not found",
		})
		return nil, false
	}
	if !user.IsAdmin() {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin access required",
		})
		return nil, false
	}
	return &user, true
}

// GetAllUsers lists users for the admin dashboard
func GetAllUsers(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	var users []models.User
	if err := database.DB.Preload("ProviderProfile").Order("created_at DESC").Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve users",
		})
	}

	return c.JSON(fiber.Map{
		"users": users,
		"count": len(users),
	})
}

// SuspendUser suspends a user account
func SuspendUser(c *fiber.Ctx) error {
	admin, ok := requireAdmin(c)
	if !ok {
		return nil
	}

	userID := c.Params("id")
	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}
	if user.ID == admin.ID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "You cannot suspend yourself",
		})
	}

	now := time.Now()
	user.IsSuspended = true
	user.SuspendedAt = &now
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to suspend user",
		})
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("User %s suspended", user.UserTag),
	})
}

// UnsuspendUser reinstates a suspended account
func UnsuspendUser(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	userID := c.Params("id")
	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	user.IsSuspended = false
	user.SuspendedAt = nil
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unsuspend user",
		})
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("User %s reinstated", user.UserTag),
	})
}

// GetAllEngagements lists engagements with optional status filter
func GetAllEngagements(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	status := c.Query("status")
	query := database.DB.Preload("DailySessions").Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var engagements []models.Engagement
	if err := query.Find(&engagements).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve engagements",
		})
	}

	return c.JSON(fiber.Map{
		"engagements": engagements,
		"count":       len(engagements),
	})
}

// AdminCancelEngagement force-cancels any not-yet-completed engagement.
func AdminCancelEngagement(c *fiber.Ctx) error {
	admin, ok := requireAdmin(c)
	if !ok {
		return nil
	}

	id, perr := strconv.ParseUint(c.Params("id"), 10, 32)
	if perr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid engagement id",
		})
	}

	eng, cerr := engineSvc.CancelEngagement(c.Context(), uint(id), admin.ID, true)
	if cerr != nil {
		return respondEngineError(c, cerr, fmt.Sprintf("admin cancel engagement=%d admin=%d", id, admin.ID))
	}

	return c.JSON(fiber.Map{
		"message":    "Engagement cancelled",
		"engagement": eng,
	})
}

// GetDashboardStats summarizes platform activity and fee revenue.
func GetDashboardStats(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	var totalUsers, totalEngagements, completedEngagements int64
	database.DB.Model(&models.User{}).Count(&totalUsers)
	database.DB.Model(&models.Engagement{}).Count(&totalEngagements)
	database.DB.Model(&models.Engagement{}).Where("status = ?", models.EngagementCompleted).Count(&completedEngagements)

	// Platform revenue is the 5% fee on every settled engagement
	var settledVolume float64
	database.DB.Model(&models.Engagement{}).
		Where("balance_added_at IS NOT NULL").
		Select("COALESCE(SUM(proposed_price), 0)").
		Scan(&settledVolume)

	return c.JSON(fiber.Map{
		"stats": fiber.Map{
			"total_users":           totalUsers,
			"total_engagements":     totalEngagements,
			"completed_engagements": completedEngagements,
			"settled_volume":        settledVolume,
			"platform_revenue":      settledVolume * engine.PlatformFeeRate,
		},
	})
}
