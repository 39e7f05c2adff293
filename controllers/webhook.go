package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jondahl/pokerbot/config"
	invite_constants "github.com/jondahl/pokerbot/constants/invite"
	models "github.com/jondahl/pokerbot/models/postgres"
	"github.com/jondahl/pokerbot/services/classifier"
	"github.com/jondahl/pokerbot/services/invitations"
	"github.com/jondahl/pokerbot/services/messages"
	"github.com/jondahl/pokerbot/services/notifications"
	"github.com/jondahl/pokerbot/services/sms"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// SMSGateway is what the webhook needs from the SMS provider: sending
// replies plus validating inbound signatures.
type SMSGateway interface {
	sms.Sender
	ValidateSignature(signature, requestURL string, params map[string]string) bool
}

// Deduper remembers provider message SIDs across webhook retries.
type Deduper interface {
	FirstDelivery(ctx context.Context, messageSID string) (bool, error)
}

// InboundSMS is the Twilio webhook. Replies go out through the REST API
// rather than the TwiML body, so the response here is always an empty
// <Response/>; Twilio just needs the 200.
// @Summary Twilio inbound SMS webhook
// @Tags webhook
// @Accept x-www-form-urlencoded
// @Produce xml
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /sms [post]
func InboundSMS(db *gorm.DB, dedupe Deduper, gateway SMSGateway, clf classifier.Classifier, flow *invitations.Flow, notifier *notifications.Notifier, cfg *config.Config, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.String(http.StatusBadRequest, "bad form")
			return
		}

		if cfg.Prod {
			params := make(map[string]string, len(c.Request.PostForm))
			for k, v := range c.Request.PostForm {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
			requestURL := strings.TrimRight(cfg.AppURL, "/") + c.Request.URL.RequestURI()
			if !gateway.ValidateSignature(c.GetHeader("X-Twilio-Signature"), requestURL, params) {
				log.Warn().Msg("webhook signature validation failed")
				c.String(http.StatusForbidden, "invalid signature")
				return
			}
		}

		from := c.Request.PostForm.Get("From")
		body := strings.TrimSpace(c.Request.PostForm.Get("Body"))
		messageSID := c.Request.PostForm.Get("MessageSid")

		respondEmpty := func() {
			c.Data(http.StatusOK, "text/xml", []byte(emptyTwiML))
		}

		if from == "" || body == "" {
			respondEmpty()
			return
		}

		// Twilio retries deliveries it thinks failed; reprocessing the same
		// SID would double-apply side effects.
		if messageSID != "" {
			first, err := dedupe.FirstDelivery(c.Request.Context(), messageSID)
			if err != nil {
				log.Error().Err(err).Msg("dedupe check failed, processing anyway")
			} else if !first {
				log.Info().Str("sid", messageSID).Msg("duplicate webhook delivery ignored")
				respondEmpty()
				return
			}
		}

		game, err := invitations.ActiveGameForPhone(db, from)
		if err != nil {
			if err == invitations.ErrGameNotFound {
				handleNoActiveGame(c, db, gateway, from, body, log)
				respondEmpty()
				return
			}
			log.Error().Err(err).Msg("resolving active game failed")
			respondEmpty()
			return
		}

		inv, err := invitations.GetInvitationByPhone(db, game.ID, from)
		if err != nil {
			log.Error().Err(err).Str("game_id", game.ID).Msg("invitation lookup failed")
			respondEmpty()
			return
		}

		history, err := messages.Recent(db, inv.ID, invite_constants.ConversationHistoryLimit)
		if err != nil {
			log.Error().Err(err).Msg("loading conversation history failed")
		}

		decision := clf.Classify(c.Request.Context(), buildClassifierContext(inv, game, body, history))

		decisionJSON, _ := json.Marshal(map[string]interface{}{
			"action":             decision.Action,
			"response":           decision.Response,
			"side_effects":       decision.SideEffects,
			"reason":             decision.Reason,
			"suggested_response": decision.SuggestedResponse,
		})

		input := messages.CreateInput{
			InvitationID: inv.ID,
			Direction:    models.DirectionInbound,
			Body:         body,
			TwilioSID:    messageSID,
			Decision:     decisionJSON,
		}
		if decision.Action == classifier.ActionEscalate {
			input.EscalationReason = escalationReason(decision)
		}
		if _, err := messages.Create(db, input); err != nil {
			log.Error().Err(err).Msg("storing inbound message failed")
		}

		if decision.Action == classifier.ActionEscalate {
			notifier.NotifyEscalation(c.Request.Context(), notifications.Escalation{
				PlayerName:  inv.Player.FullName(),
				PlayerPhone: inv.Player.Phone,
				Message:     body,
				Reason:      escalationReason(decision),
				GameDate:    game.Date.Format("Jan 2"),
			})
			respondEmpty()
			return
		}

		result, err := flow.ProcessResponse(c.Request.Context(), inv.ID, inv.PlayerID, decision)
		if err != nil {
			log.Error().Err(err).Str("invitation_id", inv.ID).Msg("processing response failed")
			respondEmpty()
			return
		}

		if result.Reply != "" {
			sendResult, err := gateway.Send(c.Request.Context(), inv.Player.Phone, result.Reply)
			if err != nil {
				log.Error().Err(err).Msg("sending reply failed")
			} else {
				out := messages.CreateInput{
					InvitationID: inv.ID,
					Direction:    models.DirectionOutbound,
					Body:         result.Reply,
				}
				if sendResult != nil {
					out.TwilioSID = sendResult.SID
				}
				if _, err := messages.Create(db, out); err != nil {
					log.Error().Err(err).Msg("storing outbound message failed")
				}
			}
		}

		respondEmpty()
	}
}

// handleNoActiveGame covers the one inbound that must work even without a
// live invitation: the opt-out keyword.
func handleNoActiveGame(c *gin.Context, db *gorm.DB, gateway SMSGateway, from, body string, log zerolog.Logger) {
	if !isOptOutKeyword(body) {
		log.Info().Str("from", from).Msg("inbound from number with no active game")
		return
	}

	var player models.Player
	if err := db.Where("phone = ?", from).First(&player).Error; err != nil {
		log.Info().Str("from", from).Msg("opt-out from unknown number")
		return
	}

	if err := invitations.OptOutPlayer(db, player.ID); err != nil {
		log.Error().Err(err).Str("player_id", player.ID).Msg("opt-out failed")
		return
	}
	log.Info().Str("player_id", player.ID).Msg("player opted out")

	if _, err := gateway.Send(c.Request.Context(), from, invite_constants.OptOutReply); err != nil {
		log.Error().Err(err).Msg("sending opt-out confirmation failed")
	}
}

// escalationReason appends the classifier's suggested reply to the reason,
// so the admin reviewing the escalation sees what the model would have said.
func escalationReason(d classifier.Decision) string {
	if d.SuggestedResponse == "" {
		return d.Reason
	}
	return d.Reason + ". Suggested: " + d.SuggestedResponse
}

var optOutKeywords = map[string]bool{
	"stop": true, "stopall": true, "unsubscribe": true,
	"cancel": true, "end": true, "quit": true,
}

func isOptOutKeyword(body string) bool {
	return optOutKeywords[strings.ToLower(strings.TrimSpace(body))]
}

func buildClassifierContext(inv *models.Invitation, game *models.Game, body string, history []models.Message) classifier.Context {
	entryInstructions := ""
	if game.EntryInstructions != nil {
		entryInstructions = *game.EntryInstructions
	}

	// Recent returns newest first; the classifier wants chronological order.
	turns := make([]classifier.Turn, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		role := "player"
		if history[i].Direction == models.DirectionOutbound {
			role = "bot"
		}
		turns = append(turns, classifier.Turn{Role: role, Message: history[i].Body})
	}

	return classifier.Context{
		PlayerMessage:     body,
		PlayerName:        inv.Player.FirstName,
		PlayerStatus:      string(inv.Status),
		GameDate:          game.Date.Format("Monday, January 2"),
		GameTime:          game.Time.Format("3:04 PM"),
		GameLocation:      game.Location,
		GameTimeBlock:     game.TimeBlock,
		EntryInstructions: entryInstructions,
		History:           turns,
	}
}
