package controllers

import (
	"net/http"
	"strings"

	"github.com/jondahl/pokerbot/services/invitations"

	"github.com/gin-gonic/gin"
)

// DeadlineCheck runs the RSVP deadline sweep. The route is hit by an
// external scheduler, authenticated with a shared bearer secret rather than
// an admin session.
// @Summary Run the RSVP deadline sweep
// @Description Times out overdue invitations and cascades each freed slot
// @Tags cron
// @Produce json
// @Success 200 {object} invitations.SweepResult
// @Failure 401 {object} object{error=string}
// @Failure 500 {object} object{error=string}
// @Router /cron/deadline-check [post]
func DeadlineCheck(flow *invitations.Flow, cronSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if cronSecret == "" || auth != "Bearer "+strings.TrimSpace(cronSecret) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		result, err := flow.SweepDeadlines(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
