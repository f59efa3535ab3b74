package database

import (
	"fmt"
	"log"

	"compforge/models"
)

func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.ChatSession{},
		&models.SavedComponent{},
		&models.RefreshToken{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	fmt.Println("Migrations completed")
}
