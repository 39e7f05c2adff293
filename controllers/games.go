package controllers

import (
	"net/http"
	"time"

	invite_constants "github.com/jondahl/pokerbot/constants/invite"
	models "github.com/jondahl/pokerbot/models/postgres"
	"github.com/jondahl/pokerbot/services/invitations"
	"github.com/jondahl/pokerbot/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type gameInput struct {
	Date              time.Time `json:"date" binding:"required"`
	Time              time.Time `json:"time" binding:"required"`
	TimeBlock         string    `json:"timeBlock"`
	Location          string    `json:"location" binding:"required"`
	EntryInstructions *string   `json:"entryInstructions"`
	Capacity          int       `json:"capacity" binding:"required,min=1"`
	RSVPDeadline      time.Time `json:"rsvpDeadline" binding:"required"`
}

// @Summary Create a game
// @Description Creates a new game in draft status
// @Tags games
// @Accept json
// @Produce json
// @Param game body gameInput true "Game details"
// @Success 201 {object} postgres.Game
// @Failure 400 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/games [post]
// @Security ApiKeyAuth
func CreateGame(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input gameInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		game := models.Game{
			Date:              input.Date,
			Time:              input.Time,
			TimeBlock:         input.TimeBlock,
			Location:          input.Location,
			EntryInstructions: input.EntryInstructions,
			Capacity:          input.Capacity,
			RSVPDeadline:      input.RSVPDeadline,
			Status:            models.GameDraft,
		}
		if err := db.Create(&game).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating game"})
			return
		}
		c.JSON(http.StatusCreated, game)
	}
}

// @Summary List games
// @Description Returns all games newest first, with their invitations
// @Tags games
// @Produce json
// @Success 200 {array} postgres.Game
// @Failure 500 {object} object{error=string}
// @Router /auth/games [get]
// @Security ApiKeyAuth
func ListGames(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var games []models.Game
		if err := db.Preload("Invitations").Order("date DESC").Find(&games).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching games"})
			return
		}
		c.JSON(http.StatusOK, games)
	}
}

// @Summary Get a game
// @Description Returns one game with its invitation queue in position order
// @Tags games
// @Produce json
// @Param id path string true "Game id"
// @Success 200 {object} postgres.Game
// @Failure 404 {object} object{error=string}
// @Router /auth/games/{id} [get]
// @Security ApiKeyAuth
func GetGame(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var game models.Game
		err := db.
			Preload("Invitations", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
			Preload("Invitations.Player").
			Where("id = ?", c.Param("id")).
			First(&game).Error
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		c.JSON(http.StatusOK, game)
	}
}

type gameStatusInput struct {
	Status models.GameStatus `json:"status" binding:"required"`
}

// @Summary Update game status
// @Description Moves a game between draft, active, completed and cancelled
// @Tags games
// @Accept json
// @Produce json
// @Param id path string true "Game id"
// @Param status body gameStatusInput true "New status"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/games/{id}/status [patch]
// @Security ApiKeyAuth
func UpdateGameStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input gameStatusInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		switch input.Status {
		case models.GameDraft, models.GameActive, models.GameCompleted, models.GameCancelled:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game status"})
			return
		}

		result := db.Model(&models.Game{}).Where("id = ?", c.Param("id")).Update("status", input.Status)
		if result.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating game status"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Game status updated"})
	}
}

type addPlayersInput struct {
	PlayerIDs     []string `json:"playerIds" binding:"required,min=1"`
	StartPosition int      `json:"startPosition" binding:"required,min=1"`
}

// @Summary Add players to a game's queue
// @Description Creates pending invitations at sequential positions
// @Tags games
// @Accept json
// @Produce json
// @Param id path string true "Game id"
// @Param players body addPlayersInput true "Players and starting position"
// @Success 201 {object} object{created=integer}
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /auth/games/{id}/invitations [post]
// @Security ApiKeyAuth
func AddPlayersToGame(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID := c.Param("id")
		if _, err := utils.CheckGameExists(db, gameID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
			return
		}

		var input addPlayersInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		created := 0
		for i, playerID := range input.PlayerIDs {
			inv := models.Invitation{
				GameID:   gameID,
				PlayerID: playerID,
				Position: input.StartPosition + i,
				Status:   models.InvitationPending,
			}
			if err := db.Create(&inv).Error; err != nil {
				// Unique constraints reject duplicate (game, player) pairs
				// and occupied positions.
				c.JSON(http.StatusBadRequest, gin.H{"error": "Error adding players", "created": created})
				return
			}
			created++
		}
		c.JSON(http.StatusCreated, gin.H{"created": created})
	}
}

// @Summary Send invitations for a game
// @Description Fills remaining capacity from the pending queue, up to the batch size
// @Tags games
// @Produce json
// @Param id path string true "Game id"
// @Success 200 {object} object{sent=integer}
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /auth/games/{id}/send [post]
// @Security ApiKeyAuth
func SendInvitations(flow *invitations.Flow) gin.HandlerFunc {
	return func(c *gin.Context) {
		sent, err := flow.SendInvitationsForGame(c.Request.Context(), c.Param("id"), invite_constants.DefaultBatchSize)
		if err != nil {
			if err == invitations.ErrGameNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
				return
			}
			if err == invitations.ErrGameNotActive {
				c.JSON(http.StatusConflict, gin.H{"error": "Game is not active"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error sending invitations"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sent": sent})
	}
}
