package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
 * 'Player' is a member of the poker group. Players are never hard-deleted:
 * opting out is the soft delete, and an opted-out player is skipped by the
 * invitation queue until reactivated by an admin.
 */
type Player struct {
	ID            string `gorm:"primaryKey;size:36"`
	FirstName     string `gorm:"size:50;not null"`
	LastName      string `gorm:"size:50"`
	Phone         string `gorm:"size:20;not null;uniqueIndex"`
	Email         string `gorm:"size:100"`
	OptedOut      bool   `gorm:"index"`
	ResponseCount int
	TimeoutCount  int
	LastInvitedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// FullName joins first and last name for message formatting.
func (p *Player) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
