package postgres

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GameStatus string

const (
	GameDraft     GameStatus = "draft"
	GameActive    GameStatus = "active"
	GameCompleted GameStatus = "completed"
	GameCancelled GameStatus = "cancelled"
)

/*
 * 'Game' is one poker night. Only active games participate in the
 * invitation cascade; completed and cancelled games are terminal.
 */
type Game struct {
	ID                string     `gorm:"primaryKey;size:36"`
	Date              time.Time  `gorm:"not null"`
	Time              time.Time  `gorm:"not null"`
	TimeBlock         string     `gorm:"size:100"`
	Location          string     `gorm:"size:255;not null"`
	EntryInstructions *string    `gorm:"type:text"`
	Capacity          int        `gorm:"not null"`
	RSVPDeadline      time.Time  `gorm:"not null"`
	Status            GameStatus `gorm:"size:20;not null;index:idx_games_status"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Invitations []Invitation `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = GameDraft
	}
	return nil
}

// StartsAt combines the game's date with its clock time.
func (g *Game) StartsAt() time.Time {
	return time.Date(
		g.Date.Year(), g.Date.Month(), g.Date.Day(),
		g.Time.Hour(), g.Time.Minute(), 0, 0,
		g.Date.Location(),
	)
}
