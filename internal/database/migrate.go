package database

import (
	"fmt"
	"log"

	"gigbridge/internal/models"
)

func Migrate() error {
	log.Println("Running database migrations...")

	err := DB.AutoMigrate(
		&models.User{},
		&models.PendingUser{},
		&models.ProviderProfile{},
		&models.Engagement{},
		&models.DailySession{},
		&models.Negotiation{},
		&models.Transaction{},
		&models.BankAccount{},
		&models.Notification{},
	)

	if err != nil {
		log.Printf("Error migrating database: %v", err)
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}
