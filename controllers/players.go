package controllers

import (
	"net/http"

	models "github.com/jondahl/pokerbot/models/postgres"
	"github.com/jondahl/pokerbot/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type playerInput struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone" binding:"required"`
	Email     string `json:"email"`
}

// @Summary List active players
// @Description Returns all players who have not opted out, ordered by first name
// @Tags players
// @Produce json
// @Success 200 {array} postgres.Player
// @Failure 500 {object} object{error=string}
// @Router /auth/players [get]
// @Security ApiKeyAuth
func ListPlayers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var players []models.Player
		if err := db.Where("opted_out = ?", false).Order("first_name ASC").Find(&players).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching players"})
			return
		}
		c.JSON(http.StatusOK, players)
	}
}

// @Summary List opted-out players
// @Tags players
// @Produce json
// @Success 200 {array} postgres.Player
// @Failure 500 {object} object{error=string}
// @Router /auth/players/opted-out [get]
// @Security ApiKeyAuth
func ListOptedOutPlayers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var players []models.Player
		if err := db.Where("opted_out = ?", true).Order("first_name ASC").Find(&players).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching players"})
			return
		}
		c.JSON(http.StatusOK, players)
	}
}

// @Summary Create a player
// @Tags players
// @Accept json
// @Produce json
// @Param player body playerInput true "Player details"
// @Success 201 {object} postgres.Player
// @Failure 400 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/players [post]
// @Security ApiKeyAuth
func CreatePlayer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input playerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		player := models.Player{
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Phone:     input.Phone,
			Email:     input.Email,
		}
		if err := db.Create(&player).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating player"})
			return
		}
		c.JSON(http.StatusCreated, player)
	}
}

// @Summary Update a player
// @Tags players
// @Accept json
// @Produce json
// @Param id path string true "Player id"
// @Param player body playerInput true "Player details"
// @Success 200 {object} postgres.Player
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/players/{id} [patch]
// @Security ApiKeyAuth
func UpdatePlayer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		player, err := utils.CheckPlayerExists(db, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}

		var input playerInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		updates := map[string]interface{}{
			"first_name": input.FirstName,
			"last_name":  input.LastName,
			"phone":      input.Phone,
			"email":      input.Email,
		}
		if err := db.Model(player).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating player"})
			return
		}
		c.JSON(http.StatusOK, player)
	}
}

// @Summary Opt a player out
// @Description Soft delete: the player is excluded from every future invitation
// @Tags players
// @Produce json
// @Param id path string true "Player id"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/players/{id} [delete]
// @Security ApiKeyAuth
func DeletePlayer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := db.Model(&models.Player{}).Where("id = ?", c.Param("id")).Update("opted_out", true)
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error opting player out"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Player opted out"})
	}
}

// @Summary Reactivate an opted-out player
// @Tags players
// @Produce json
// @Param id path string true "Player id"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/players/{id}/reactivate [post]
// @Security ApiKeyAuth
func ReactivatePlayer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := db.Model(&models.Player{}).Where("id = ?", c.Param("id")).Update("opted_out", false)
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error reactivating player"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Player reactivated"})
	}
}
