package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationResolved EscalationStatus = "resolved"
)

/*
 * 'Message' is the append-only SMS conversation log for a (player, game)
 * pair. It doubles as the escalation queue: rows whose escalation_status is
 * pending are waiting for a human reply in the admin portal.
 */
type Message struct {
	ID               string            `gorm:"primaryKey;size:36"`
	PlayerID         string            `gorm:"size:36;not null;index:idx_messages_player_game,priority:1"`
	GameID           string            `gorm:"size:36;not null;index:idx_messages_player_game,priority:2"`
	Direction        MessageDirection  `gorm:"size:10;not null"`
	Body             string            `gorm:"type:text;not null"`
	SentAt           time.Time         `gorm:"not null"`
	TwilioSID        *string           `gorm:"size:64"`
	EscalationReason *string           `gorm:"type:text"`
	EscalationStatus *EscalationStatus `gorm:"size:20;index:idx_messages_escalation_status"`
	ResolvedResponse *string           `gorm:"type:text"`
	Decision         datatypes.JSON
	CreatedAt        time.Time

	Player Player `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE"`
	Game   Game   `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	return nil
}
