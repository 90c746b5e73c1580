package services

import (
	"encoding/json"
	"fmt"

	"gigbridge/internal/database"
	"gigbridge/internal/models"
)

type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// CreateNotification creates a new notification
func (s *NotificationService) CreateNotification(userID uint, notifType models.NotificationType, title, message string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		dataJSON = string(jsonBytes)
	}

	notification := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    dataJSON,
		IsRead:  false,
	}

	if err := database.DB.Create(&notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// NotifyEngagementCreated notifies the provider about a new engagement request.
func (s *NotificationService) NotifyEngagementCreated(providerID uint, clientName string, engagementID uint) error {
	return s.CreateNotification(
		providerID,
		models.NotificationEngagementCreated,
		"New Engagement Request",
		fmt.Sprintf("%s wants to hire you. Review the engagement and respond.", clientName),
		map[string]interface{}{"engagement_id": engagementID},
	)
}

// NotifyNegotiationOpened tells the other party a proposal landed.
func (s *NotificationService) NotifyNegotiationOpened(recipientID uint, proposerName string, engagementID uint) error {
	return s.CreateNotification(
		recipientID,
		models.NotificationNegotiationOpened,
		"New Proposal",
		fmt.Sprintf("%s sent a proposal on engagement #%d", proposerName, engagementID),
		map[string]interface{}{"engagement_id": engagementID},
	)
}

// NotifyNegotiationAccepted tells the proposer their terms were accepted.
func (s *NotificationService) NotifyNegotiationAccepted(recipientID uint, responderName string, engagementID uint, price float64) error {
	return s.CreateNotification(
		recipientID,
		models.NotificationNegotiationAccepted,
		"Proposal Accepted",
		fmt.Sprintf("%s accepted your proposal for ₦%.2f. Awaiting payment.", responderName, price),
		map[string]interface{}{"engagement_id": engagementID},
	)
}

// NotifyNegotiationCountered tells the proposer a counter-offer arrived.
func (s *NotificationService) NotifyNegotiationCountered(recipientID uint, responderName string, engagementID uint) error {
	return s.CreateNotification(
		recipientID,
		models.NotificationNegotiationCountered,
		"Counter-Proposal",
		fmt.Sprintf("%s made a counter-proposal on engagement #%d", responderName, engagementID),
		map[string]interface{}{"engagement_id": engagementID},
	)
}

// NotifyPaymentReceived tells the provider the client's payment landed.
func (s *NotificationService) NotifyPaymentReceived(providerID uint, engagementID uint, amount float64) error {
	return s.CreateNotification(
		providerID,
		models.NotificationPaymentReceived,
		"Payment Confirmed",
		fmt.Sprintf("Payment of ₦%.2f confirmed for engagement #%d. You can start work.", amount, engagementID),
		map[string]interface{}{"engagement_id": engagementID},
	)
}

// NotifyCompletionRequested tells the other party one side confirmed completion.
func (s *NotificationService) NotifyCompletionRequested(recipientID uint, confirmerName string, engagementID uint) error {
	return s.CreateNotification(
		recipientID,
		models.NotificationCompletionRequested,
		"Completion Confirmation Needed",
		fmt.Sprintf("%s marked engagement #%d as completed. Confirm to finish.", confirmerName, engagementID),
		map[string]interface{}{"engagement_id": engagementID},
	)
}

// NotifySettlementCredited tells the provider their balance was credited.
func (s *NotificationService) NotifySettlementCredited(providerID uint, engagementID uint, amount float64) error {
	return s.CreateNotification(
		providerID,
		models.NotificationSettlementCredited,
		"Balance Credited",
		fmt.Sprintf("₦%.2f has been credited to your balance for engagement #%d", amount, engagementID),
		map[string]interface{}{"engagement_id": engagementID, "amount": amount},
	)
}
