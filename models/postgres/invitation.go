package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationInvited   InvitationStatus = "invited"
	InvitationConfirmed InvitationStatus = "confirmed"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationTimeout   InvitationStatus = "timeout"
)

// invitationTransitions is the closed transition table. Anything not listed
// here is rejected; the three response statuses and timeout are terminal.
var invitationTransitions = map[InvitationStatus][]InvitationStatus{
	InvitationPending: {InvitationInvited},
	InvitationInvited: {InvitationConfirmed, InvitationDeclined, InvitationTimeout},
}

// Terminal reports whether the status can never change again.
func (s InvitationStatus) Terminal() bool {
	switch s {
	case InvitationConfirmed, InvitationDeclined, InvitationTimeout:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s InvitationStatus) CanTransitionTo(next InvitationStatus) bool {
	for _, allowed := range invitationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type CalendarStatus string

const (
	CalendarPending  CalendarStatus = "pending"
	CalendarAccepted CalendarStatus = "accepted"
	CalendarDeclined CalendarStatus = "declined"
)

/*
 * 'Invitation' represents one player's spot in one game's ordered queue.
 * Position is the queue order, unique per game. At most one invitation
 * exists per (game, player) pair.
 */
type Invitation struct {
	ID                    string           `gorm:"primaryKey;size:36"`
	GameID                string           `gorm:"size:36;not null;uniqueIndex:idx_invitations_game_player;uniqueIndex:idx_invitations_game_position;index:idx_invitations_game_status_position,priority:1"`
	PlayerID              string           `gorm:"size:36;not null;uniqueIndex:idx_invitations_game_player"`
	Position              int              `gorm:"not null;uniqueIndex:idx_invitations_game_position;index:idx_invitations_game_status_position,priority:3"`
	Status                InvitationStatus `gorm:"size:20;not null;index:idx_invitations_game_status_position,priority:2"`
	InvitedAt             *time.Time
	RespondedAt           *time.Time
	GoogleCalendarEventID *string         `gorm:"size:255"`
	CalendarStatus        *CalendarStatus `gorm:"size:20"`
	CreatedAt             time.Time

	Game   Game   `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
	Player Player `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Status == "" {
		i.Status = InvitationPending
	}
	return nil
}
