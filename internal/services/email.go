package services

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client *resend.Client
	from   string
}

func NewEmailService() *EmailService {
	apiKey := os.Getenv("RESEND_API_KEY")
	from := os.Getenv("EMAIL_FROM")
	if from == "" {
		from = "GigBridge <no-reply@gigbridge.app>"
	}
	if apiKey == "" {
		log.Println("⚠️  RESEND_API_KEY is empty, emails will fail to send")
	}

	return &EmailService{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *EmailService) send(to, subject, html string) error {
	_, err := s.client.Emails.Send(&resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// SendOTP emails a verification code for signup or password reset.
func (s *EmailService) SendOTP(to, otp string) error {
	html := fmt.Sprintf(`
		<h2>Your GigBridge verification code</h2>
		<p>Use this code to continue. It expires in 10 minutes.</p>
		<h1 style="letter-spacing: 4px;">%s</h1>
	`, otp)
	return s.send(to, "Your GigBridge verification code", html)
}

// SendNegotiationUpdate emails a party about activity on their engagement.
func (s *EmailService) SendNegotiationUpdate(to, counterpartName, summary string, engagementID uint) error {
	html := fmt.Sprintf(`
		<h2>Update on engagement #%d</h2>
		<p>%s has an update for you: %s</p>
		<p>Log in to review and respond.</p>
	`, engagementID, counterpartName, summary)
	return s.send(to, fmt.Sprintf("Engagement #%d update", engagementID), html)
}

// SendSettlementNotice emails a provider that their balance was credited.
func (s *EmailService) SendSettlementNotice(to string, amount float64, engagementID uint) error {
	html := fmt.Sprintf(`
		<h2>You've been paid</h2>
		<p>₦%.2f has been credited to your balance for engagement #%d.</p>
	`, amount, engagementID)
	return s.send(to, "Payment credited to your balance", html)
}

// GenerateOTP generates a 6-digit OTP
func GenerateOTP() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
