package handlers

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gigbridge/internal/database"
	"gigbridge/internal/models"
	"gigbridge/internal/services"
)

var (
	emailService  *services.EmailService
	resendLimiter *services.ResendLimiter
)

// InitEmailService initializes the email service and the OTP resend throttle.
func InitEmailService() {
	emailService = services.NewEmailService()
	resendLimiter = services.NewResendLimiter(60 * time.Second)
}

type SignupRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// GenerateUserTag creates a unique tag from first name + random numbers
func GenerateUserTag(fullName string) string {
	names := strings.Fields(fullName)
	firstName := strings.ToLower(names[0])

	cleanName := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, firstName)

	if len(cleanName) > 8 {
		cleanName = cleanName[:8]
	}

	randomNum := rand.Intn(10000)

	for i := 0; i < 100; i++ {
		tag := fmt.Sprintf("%s%04d", cleanName, randomNum)

		var existingUser models.User
		if err := database.DB.Where("user_tag = ?", tag).First(&existingUser).Error; err == gorm.ErrRecordNotFound {
			return tag
		}

		randomNum = (randomNum + 1) % 10000
	}

	// Fallback: use timestamp if all attempts fail
	return fmt.Sprintf("%s%d", cleanName, time.Now().Unix()%10000)
}

// Signup initiates user registration and sends OTP
func Signup(c *fiber.Ctx) error {
	req := new(SignupRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// Already registered?
	var existingUser models.User
	if err := database.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "An account with this email already exists",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process password",
		})
	}

	otp, err := services.GenerateOTP()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate OTP",
		})
	}
	expiry := time.Now().Add(10 * time.Minute)

	pending := models.PendingUser{
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  string(hashedPassword),
		OTP:       otp,
		OTPExpiry: expiry,
	}

	// Replace any earlier pending signup for this email
	database.DB.Where("email = ?", req.Email).Delete(&models.PendingUser{})
	if err := database.DB.Create(&pending).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start signup",
		})
	}

	if err := emailService.SendOTP(req.Email, otp); err != nil {
		log.Printf("❌ send signup OTP to %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send verification email",
		})
	}
	resendLimiter.Allow(req.Email) // start the resend window

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Signup started. Check your email for the verification code.",
	})
}

// VerifySignupOTP completes registration
func VerifySignupOTP(c *fiber.Ctx) error {
	req := new(VerifyOTPRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var pending models.PendingUser
	if err := database.DB.Where("email = ?", req.Email).First(&pending).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No pending signup for this email",
		})
	}

	if pending.OTP != req.OTP {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid verification code",
		})
	}
	if time.Now().After(pending.OTPExpiry) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Verification code has expired",
		})
	}

	user := models.User{
		FullName:        pending.FullName,
		Email:           pending.Email,
		Phone:           pending.Phone,
		Password:        pending.Password,
		UserTag:         GenerateUserTag(pending.FullName),
		IsEmailVerified: true,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create account",
		})
	}
	database.DB.Delete(&pending)
	resendLimiter.Reset(req.Email)

	token, err := generateJWT(user.ID, user.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created successfully",
		"token":   token,
		"user": fiber.Map{
			"id":        user.ID,
			"full_name": user.FullName,
			"email":     user.Email,
			"user_tag":  user.UserTag,
		},
	})
}

// ResendSignupOTP resends OTP for signup verification, throttled per email.
func ResendSignupOTP(c *fiber.Ctx) error {
	req := new(ResendOTPRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if ok, wait := resendLimiter.Allow(req.Email); !ok {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       fmt.Sprintf("Please wait %d seconds before requesting another code", int(wait.Seconds())),
			"retry_after": int(wait.Seconds()),
		})
	}

	var pending models.PendingUser
	if err := database.DB.Where("email = ?", req.Email).First(&pending).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No pending signup for this email",
		})
	}

	otp, err := services.GenerateOTP()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate OTP",
		})
	}
	pending.OTP = otp
	pending.OTPExpiry = time.Now().Add(10 * time.Minute)
	if err := database.DB.Save(&pending).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to refresh verification code",
		})
	}

	if err := emailService.SendOTP(req.Email, otp); err != nil {
		log.Printf("❌ resend signup OTP to %s: %v", req.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send verification email",
		})
	}

	return c.JSON(fiber.Map{
		"message": "A new verification code has been sent",
	})
}

// Login authenticates and issues a JWT
func Login(c *fiber.Ctx) error {
	req := new(LoginRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	}

	if user.IsSuspended {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Your account has been suspended",
		})
	}

	token, err := generateJWT(user.ID, user.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user": fiber.Map{
			"id":        user.ID,
			"full_name": user.FullName,
			"email":     user.Email,
			"user_tag":  user.UserTag,
			"balance":   user.Balance,
		},
	})
}

// ForgotPassword sends a password reset OTP
func ForgotPassword(c *fiber.Ctx) error {
	req := new(ForgotPasswordRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// Don't reveal whether the email exists
		return c.JSON(fiber.Map{
			"message": "If an account exists for this email, a reset code has been sent",
		})
	}

	if ok, wait := resendLimiter.Allow("reset:" + req.Email); !ok {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       fmt.Sprintf("Please wait %d seconds before requesting another code", int(wait.Seconds())),
			"retry_after": int(wait.Seconds()),
		})
	}

	otp, err := services.GenerateOTP()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate reset code",
		})
	}
	expiry := time.Now().Add(10 * time.Minute)
	user.OTP = otp
	user.OTPExpiry = &expiry
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store reset code",
		})
	}

	if err := emailService.SendOTP(req.Email, otp); err != nil {
		log.Printf("❌ send reset OTP to %s: %v", req.Email, err)
	}

	return c.JSON(fiber.Map{
		"message": "If an account exists for this email, a reset code has been sent",
	})
}

// ResetPassword sets a new password after OTP verification
func ResetPassword(c *fiber.Ctx) error {
	req := new(ResetPasswordRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Account not found",
		})
	}

	if user.OTP != req.OTP || user.OTPExpiry == nil || time.Now().After(*user.OTPExpiry) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid or expired reset code",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process password",
		})
	}

	user.Password = string(hashedPassword)
	user.OTP = ""
	user.OTPExpiry = nil
	if err := database.DB.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset password",
		})
	}
	resendLimiter.Reset("reset:" + req.Email)

	return c.JSON(fiber.Map{
		"message": "Password reset successfully",
	})
}

func generateJWT(userID uint, email string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}
