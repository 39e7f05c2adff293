package invitations

import (
	"errors"
	"time"

	models "github.com/jondahl/pokerbot/models/postgres"

	"gorm.io/gorm"
)

// Store-level accessors for the cascade engine. Queue advancement is
// expressed as queries against the (game_id, status, position) index, and
// every status change is a single conditional UPDATE so racing triggers
// degrade to no-ops instead of double-processing an invitation.

// GetInvitation loads an invitation with its player.
func GetInvitation(db *gorm.DB, id string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := db.Preload("Player").Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// GetInvitationByGameAndPlayer finds the single invitation for a (game, player) pair.
func GetInvitationByGameAndPlayer(db *gorm.DB, gameID, playerID string) (*models.Invitation, error) {
	var inv models.Invitation
	err := db.Preload("Player").
		Where("game_id = ? AND player_id = ?", gameID, playerID).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// GetInvitationByPhone finds a game's invitation for the player with the
// given phone number.
func GetInvitationByPhone(db *gorm.DB, gameID, phone string) (*models.Invitation, error) {
	var inv models.Invitation
	err := db.Preload("Player").
		Joins("JOIN players ON players.id = invitations.player_id").
		Where("invitations.game_id = ? AND players.phone = ?", gameID, phone).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// GetGame loads a game by id.
func GetGame(db *gorm.DB, id string) (*models.Game, error) {
	var game models.Game
	if err := db.Where("id = ?", id).First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// ActiveGameForPhone resolves which active game an inbound message belongs
// to: the earliest-dated active game holding an invited or confirmed
// invitation for the sender's phone number.
func ActiveGameForPhone(db *gorm.DB, phone string) (*models.Game, error) {
	var game models.Game
	err := db.
		Joins("JOIN invitations ON invitations.game_id = games.id").
		Joins("JOIN players ON players.id = invitations.player_id").
		Where("games.status = ? AND players.phone = ? AND invitations.status IN ?",
			models.GameActive, phone,
			[]models.InvitationStatus{models.InvitationInvited, models.InvitationConfirmed}).
		Order("games.date ASC").
		First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &game, nil
}

// NextPendingInvitation selects the lowest-position pending invitation whose
// player has not opted out. Opted-out players are skipped permanently; their
// rows stay pending and are simply never selected.
func NextPendingInvitation(db *gorm.DB, gameID string) (*models.Invitation, error) {
	var inv models.Invitation
	err := db.Preload("Player").
		Joins("JOIN players ON players.id = invitations.player_id").
		Where("invitations.game_id = ? AND invitations.status = ? AND players.opted_out = ?",
			gameID, models.InvitationPending, false).
		Order("invitations.position ASC").
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// ConfirmedCount counts confirmed invitations for a game.
func ConfirmedCount(db *gorm.DB, gameID string) (int64, error) {
	var count int64
	err := db.Model(&models.Invitation{}).
		Where("game_id = ? AND status = ?", gameID, models.InvitationConfirmed).
		Count(&count).Error
	return count, err
}

// MarkInvitationSent transitions pending -> invited and stamps invited_at.
// Returns false when the invitation was no longer pending.
func MarkInvitationSent(db *gorm.DB, id string, now time.Time) (bool, error) {
	result := db.Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, models.InvitationPending).
		Updates(map[string]interface{}{
			"status":     models.InvitationInvited,
			"invited_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionInvitation applies one state-machine transition as a conditional
// UPDATE: the row changes only if it is still in the expected prior status.
// Returns false when the row had already moved on (a race, a duplicate
// inbound message, or an earlier sweep run).
func TransitionInvitation(db *gorm.DB, id string, from, to models.InvitationStatus, now time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, ErrInvalidTransition
	}
	result := db.Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"responded_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ConfirmInvitationWithinCapacity transitions invited -> confirmed with the
// capacity check folded into the same statement, so concurrent confirms
// cannot push a game past capacity. Returns false when the invitation was
// no longer invited or the game was already full.
func ConfirmInvitationWithinCapacity(db *gorm.DB, id string, capacity int, now time.Time) (bool, error) {
	result := db.Exec(`
		UPDATE invitations SET status = ?, responded_at = ?
		WHERE id = ? AND status = ?
		AND (SELECT COUNT(*) FROM invitations c
		     WHERE c.game_id = invitations.game_id AND c.status = ?) < ?`,
		models.InvitationConfirmed, now,
		id, models.InvitationInvited,
		models.InvitationConfirmed, capacity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetInvitationCalendarEvent stores the created calendar event on the invitation.
func SetInvitationCalendarEvent(db *gorm.DB, id, eventID string, status models.CalendarStatus) error {
	return db.Model(&models.Invitation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"google_calendar_event_id": eventID,
			"calendar_status":          status,
		}).Error
}

// IncrementPlayerResponse bumps response_count; a decline still counts as a
// response.
func IncrementPlayerResponse(db *gorm.DB, playerID string, now time.Time) error {
	return db.Model(&models.Player{}).
		Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"response_count":  gorm.Expr("response_count + 1"),
			"last_invited_at": now,
		}).Error
}

// IncrementPlayerTimeout bumps timeout_count; a timeout is a non-response
// and never touches response_count.
func IncrementPlayerTimeout(db *gorm.DB, playerID string, now time.Time) error {
	return db.Model(&models.Player{}).
		Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"timeout_count":   gorm.Expr("timeout_count + 1"),
			"last_invited_at": now,
		}).Error
}

// OptOutPlayer flags the player so no future invitation ever reaches them.
func OptOutPlayer(db *gorm.DB, playerID string) error {
	return db.Model(&models.Player{}).
		Where("id = ?", playerID).
		Update("opted_out", true).Error
}
