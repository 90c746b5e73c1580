package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"gigbridge/internal/database"
	"gigbridge/internal/models"
	"gigbridge/internal/services"
)

var cloudinaryService *services.CloudinaryService

// InitCloudinaryService initializes the Cloudinary upload client
func InitCloudinaryService() error {
	svc, err := services.NewCloudinaryService()
	if err != nil {
		return err
	}
	cloudinaryService = svc
	return nil
}

type UpdateProfileRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

type UpsertRateCardRequest struct {
	Headline      string   `json:"headline"`
	Bio           string   `json:"bio"`
	MinHourlyRate *float64 `json:"min_hourly_rate" validate:"omitempty,gt=0"`
	MinDailyRate  *float64 `json:"min_daily_rate" validate:"omitempty,gt=0"`
	MinFixedRate  *float64 `json:"min_fixed_rate" validate:"omitempty,gt=0"`
}

// GetUserProfile retrieves the authenticated user's profile
func GetUserProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var user models.User
	if err := database.DB.Preload("ProviderProfile").First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":                user.ID,
			"full_name":         user.FullName,
			"email":             user.Email,
			"phone":             user.Phone,
			"user_tag":          user.UserTag,
			"balance":           user.Balance,
			"avatar":            user.Avatar,
			"is_email_verified": user.IsEmailVerified,
			"provider_profile":  user.ProviderProfile,
			"created_at":        user.CreatedAt,
			"updated_at":        user.UpdatedAt,
		},
	})
}

// UpdateUserProfile updates user profile information
func UpdateUserProfile(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	req := new(UpdateProfileRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	if req.FullName != "" {
		user.FullName = req.FullName
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"user": fiber.Map{
			"id":        user.ID,
			"full_name": user.FullName,
			"phone":     user.Phone,
			"user_tag":  user.UserTag,
		},
	})
}

// UpsertRateCard creates or updates the caller's provider rate card. The
// minimum rates become the price floors for new engagements.
func UpsertRateCard(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	req := new(UpsertRateCardRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.MinHourlyRate == nil && req.MinDailyRate == nil && req.MinFixedRate == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one minimum rate is required",
		})
	}

	var profile models.ProviderProfile
	err := database.DB.Where("user_id = ?", userID).First(&profile).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	profile.UserID = userID
	profile.Headline = req.Headline
	profile.Bio = req.Bio
	profile.MinHourlyRate = req.MinHourlyRate
	profile.MinDailyRate = req.MinDailyRate
	profile.MinFixedRate = req.MinFixedRate

	if err := database.DB.Save(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save rate card",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Rate card saved",
		"profile": profile,
	})
}

// GetProviderByTag looks up a provider and their rate card for hiring.
func GetProviderByTag(c *fiber.Ctx) error {
	tag := c.Params("tag")
	userID := c.Locals("user_id").(uint)

	var provider models.User
	if err := database.DB.Preload("ProviderProfile").Where("user_tag = ?", tag).First(&provider).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Provider not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Database error",
		})
	}

	if provider.ID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "You cannot hire yourself",
		})
	}
	if provider.ProviderProfile == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "This user has not published a rate card",
		})
	}

	return c.JSON(fiber.Map{
		"provider": fiber.Map{
			"id":        provider.ID,
			"name":      provider.FullName,
			"tag":       provider.UserTag,
			"avatar":    provider.Avatar,
			"rate_card": provider.ProviderProfile,
		},
	})
}

// UploadAvatar uploads the user's profile picture
func UploadAvatar(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	result, err := cloudinaryService.UploadFile(file, "avatars")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload avatar",
		})
	}

	// Remove the previous avatar
	if user.AvatarPublicID != "" {
		_ = cloudinaryService.DeleteFile(user.AvatarPublicID)
	}

	user.Avatar = result.SecureURL
	user.AvatarPublicID = result.PublicID
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save avatar",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Avatar updated",
		"avatar":  user.Avatar,
	})
}
