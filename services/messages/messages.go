package messages

import (
	"errors"
	"time"

	models "github.com/jondahl/pokerbot/models/postgres"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrMessageNotFound means the message record is missing.
var ErrMessageNotFound = errors.New("message not found")

// CreateInput describes one conversation log entry. The player and game are
// resolved from the invitation so callers only track invitation ids.
type CreateInput struct {
	InvitationID     string
	Direction        models.MessageDirection
	Body             string
	TwilioSID        string
	EscalationReason string
	Decision         []byte
}

// Create appends a message to the conversation log. A non-empty escalation
// reason parks the message in the escalation queue as pending.
func Create(db *gorm.DB, input CreateInput) (*models.Message, error) {
	var inv models.Invitation
	if err := db.Select("player_id", "game_id").Where("id = ?", input.InvitationID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invitation not found")
		}
		return nil, err
	}

	msg := models.Message{
		PlayerID:  inv.PlayerID,
		GameID:    inv.GameID,
		Direction: input.Direction,
		Body:      input.Body,
		SentAt:    time.Now(),
	}
	if input.TwilioSID != "" {
		msg.TwilioSID = &input.TwilioSID
	}
	if input.EscalationReason != "" {
		msg.EscalationReason = &input.EscalationReason
		status := models.EscalationPending
		msg.EscalationStatus = &status
	}
	if len(input.Decision) > 0 {
		msg.Decision = datatypes.JSON(input.Decision)
	}

	if err := db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Recent returns the newest messages for the invitation's conversation,
// bounding the context window handed to the classifier.
func Recent(db *gorm.DB, invitationID string, limit int) ([]models.Message, error) {
	var inv models.Invitation
	if err := db.Select("player_id", "game_id").Where("id = ?", invitationID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var msgs []models.Message
	err := db.
		Where("player_id = ? AND game_id = ?", inv.PlayerID, inv.GameID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// PendingEscalations lists messages waiting for a human reply, newest first,
// with player and game context.
func PendingEscalations(db *gorm.DB) ([]models.Message, error) {
	msgs := []models.Message{}
	err := db.Preload("Player").Preload("Game").
		Where("escalation_status = ?", models.EscalationPending).
		Order("created_at DESC").
		Find(&msgs).Error
	return msgs, err
}

// GetEscalation loads one escalation with full context.
func GetEscalation(db *gorm.DB, id string) (*models.Message, error) {
	var msg models.Message
	err := db.Preload("Player").Preload("Game").
		Where("id = ?", id).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// ResolveEscalation marks the escalation resolved and stores the reply that
// was sent, for audit.
func ResolveEscalation(db *gorm.DB, id, response string) error {
	result := db.Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"escalation_status": models.EscalationResolved,
			"resolved_response": response,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// CountPendingEscalations backs the dashboard badge.
func CountPendingEscalations(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&models.Message{}).
		Where("escalation_status = ?", models.EscalationPending).
		Count(&count).Error
	return count, err
}
