package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gigbridge/internal/database"
	"gigbridge/internal/models"
	"gigbridge/internal/services"
)

var notificationService *services.NotificationService

func InitNotificationService() {
	notificationService = services.NewNotificationService()
}

// GetNotifications retrieves all notifications for the authenticated user
func GetNotifications(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	limitStr := c.Query("limit", "50")
	offsetStr := c.Query("offset", "0")
	unreadOnly := c.Query("unread_only", "false")

	limit, _ := strconv.Atoi(limitStr)
	offset, _ := strconv.Atoi(offsetStr)

	query := database.DB.Where("user_id = ?", userID)

	if unreadOnly == "true" {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve notifications",
		})
	}

	var unreadCount int64
	database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unreadCount)

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"count":         len(notifications),
		"unread_count":  unreadCount,
	})
}

// MarkNotificationRead marks a single notification as read
func MarkNotificationRead(c *fiber.Ctx) error {
	notifID := c.Params("id")
	userID := c.Locals("user_id").(uint)

	var notification models.Notification
	if err := database.DB.Where("id = ? AND user_id = ?", notifID, userID).First(&notification).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Notification not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	now := time.Now()
	notification.IsRead = true
	notification.ReadAt = &now
	if err := database.DB.Save(&notification).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update notification",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Notification marked as read",
	})
}

// MarkAllNotificationsRead marks all of the user's notifications as read
func MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	now := time.Now()
	if err := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update notifications",
		})
	}

	return c.JSON(fiber.Map{
		"message": "All notifications marked as read",
	})
}
