package controllers

import (
	"net/http"
	"time"

	models "github.com/jondahl/pokerbot/models/postgres"
	"github.com/jondahl/pokerbot/services/messages"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// @Summary Dashboard stats
// @Description Upcoming active games, active players, open invitations and pending escalations
// @Tags dashboard
// @Produce json
// @Success 200 {object} object{upcomingGames=integer,totalPlayers=integer,pendingInvitations=integer,pendingEscalations=integer}
// @Failure 500 {object} object{error=string}
// @Router /auth/dashboard [get]
// @Security ApiKeyAuth
func DashboardStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()

		var upcomingGames int64
		if err := db.Model(&models.Game{}).
			Where("date >= ? AND status = ?", now, models.GameActive).
			Count(&upcomingGames).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error counting games"})
			return
		}

		var totalPlayers int64
		if err := db.Model(&models.Player{}).
			Where("opted_out = ?", false).
			Count(&totalPlayers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error counting players"})
			return
		}

		var pendingInvitations int64
		if err := db.Model(&models.Invitation{}).
			Where("status = ?", models.InvitationInvited).
			Count(&pendingInvitations).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error counting invitations"})
			return
		}

		pendingEscalations, err := messages.CountPendingEscalations(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error counting escalations"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"upcomingGames":      upcomingGames,
			"totalPlayers":       totalPlayers,
			"pendingInvitations": pendingInvitations,
			"pendingEscalations": pendingEscalations,
		})
	}
}
