package utils

import (
	"fmt"

	models "github.com/jondahl/pokerbot/models/postgres"

	"gorm.io/gorm"
)

// CheckGameExists returns the game or an error when it is missing.
func CheckGameExists(db *gorm.DB, gameID string) (*models.Game, error) {
	var game models.Game
	result := db.Where("id = ?", gameID).First(&game)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("game not found")
		}
		return nil, result.Error
	}
	return &game, nil
}

// CheckPlayerExists returns the player or an error when it is missing.
func CheckPlayerExists(db *gorm.DB, playerID string) (*models.Player, error) {
	var player models.Player
	result := db.Where("id = ?", playerID).First(&player)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("player not found")
		}
		return nil, result.Error
	}
	return &player, nil
}
