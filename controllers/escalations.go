package controllers

import (
	"net/http"
	"time"

	invite_constants "github.com/jondahl/pokerbot/constants/invite"
	models "github.com/jondahl/pokerbot/models/postgres"
	"github.com/jondahl/pokerbot/services/classifier"
	"github.com/jondahl/pokerbot/services/invitations"
	"github.com/jondahl/pokerbot/services/messages"
	"github.com/jondahl/pokerbot/services/sms"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// @Summary List pending escalations
// @Description Messages the classifier flagged for human review, newest first
// @Tags escalations
// @Produce json
// @Success 200 {array} postgres.Message
// @Failure 500 {object} object{error=string}
// @Router /auth/escalations [get]
// @Security ApiKeyAuth
func ListEscalations(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending, err := messages.PendingEscalations(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching escalations"})
			return
		}
		c.JSON(http.StatusOK, pending)
	}
}

// @Summary Get one escalation
// @Tags escalations
// @Produce json
// @Param id path string true "Message id"
// @Success 200 {object} postgres.Message
// @Failure 404 {object} object{error=string}
// @Router /auth/escalations/{id} [get]
// @Security ApiKeyAuth
func GetEscalation(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		escalation, err := messages.GetEscalation(db, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Escalation not found"})
			return
		}
		c.JSON(http.StatusOK, escalation)
	}
}

type resolveInput struct {
	Response string `json:"response" binding:"required"`
}

// @Summary Resolve an escalation with a custom reply
// @Description Sends the reply to the player, logs it and marks the escalation resolved
// @Tags escalations
// @Accept json
// @Produce json
// @Param id path string true "Message id"
// @Param body body resolveInput true "Reply text"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Failure 502 {object} object{error=string}
// @Router /auth/escalations/{id}/resolve [post]
// @Security ApiKeyAuth
func ResolveEscalation(db *gorm.DB, sender sms.Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		escalation, err := messages.GetEscalation(db, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Escalation not found"})
			return
		}

		var input resolveInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if _, err := sender.Send(c.Request.Context(), escalation.Player.Phone, input.Response); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send response"})
			return
		}

		logOutbound(db, escalation, input.Response)

		if err := messages.ResolveEscalation(db, escalation.ID, input.Response); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve escalation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Escalation resolved"})
	}
}

// @Summary Confirm the player behind an escalation
// @Description Quick action: confirms the invitation, sends the calendar invite and a canned reply, resolves the escalation
// @Tags escalations
// @Produce json
// @Param id path string true "Message id"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} object{error=string}
// @Failure 502 {object} object{error=string}
// @Router /auth/escalations/{id}/confirm [post]
// @Security ApiKeyAuth
func ConfirmPlayerQuickAction(db *gorm.DB, flow *invitations.Flow, sender sms.Sender) gin.HandlerFunc {
	return quickAction(db, flow, sender, classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    invite_constants.ConfirmReply,
		SideEffects: []classifier.SideEffect{classifier.SideEffectConfirmPlayer, classifier.SideEffectSendCalendarInvite},
	})
}

// @Summary Decline the player behind an escalation
// @Description Quick action: declines the invitation, cascades to the next candidate, sends a canned reply, resolves the escalation
// @Tags escalations
// @Produce json
// @Param id path string true "Message id"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} object{error=string}
// @Failure 502 {object} object{error=string}
// @Router /auth/escalations/{id}/decline [post]
// @Security ApiKeyAuth
func DeclinePlayerQuickAction(db *gorm.DB, flow *invitations.Flow, sender sms.Sender) gin.HandlerFunc {
	return quickAction(db, flow, sender, classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    invite_constants.DeclineReply,
		SideEffects: []classifier.SideEffect{classifier.SideEffectDeclinePlayer, classifier.SideEffectInviteNext},
	})
}

// quickAction composes the cascade engine's ProcessResponse with the
// escalation bookkeeping: no new state beyond what the engine already does.
func quickAction(db *gorm.DB, flow *invitations.Flow, sender sms.Sender, decision classifier.Decision) gin.HandlerFunc {
	return func(c *gin.Context) {
		escalation, err := messages.GetEscalation(db, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Escalation not found"})
			return
		}

		inv, err := invitations.GetInvitationByGameAndPlayer(db, escalation.GameID, escalation.PlayerID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invitation not found"})
			return
		}

		result, err := flow.ProcessResponse(c.Request.Context(), inv.ID, escalation.PlayerID, decision)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process response"})
			return
		}

		if _, err := sender.Send(c.Request.Context(), escalation.Player.Phone, result.Reply); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send reply"})
			return
		}

		logOutbound(db, escalation, result.Reply)

		if err := messages.ResolveEscalation(db, escalation.ID, result.Reply); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve escalation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Escalation resolved"})
	}
}

// logOutbound appends the admin's reply to the conversation log. Best
// effort: the reply already went out.
func logOutbound(db *gorm.DB, escalation *models.Message, body string) {
	msg := models.Message{
		PlayerID:  escalation.PlayerID,
		GameID:    escalation.GameID,
		Direction: models.DirectionOutbound,
		Body:      body,
		SentAt:    time.Now(),
	}
	db.Create(&msg)
}
