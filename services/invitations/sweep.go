package invitations

import (
	"context"

	models "github.com/jondahl/pokerbot/models/postgres"
)

// SweepResult aggregates one deadline sweep for observability.
type SweepResult struct {
	GamesProcessed int `json:"gamesProcessed"`
	TimedOut       int `json:"timedOut"`
	Cascaded       int `json:"cascaded"`
}

// SweepDeadlines times out overdue invitations and cascades each freed slot.
// It is safe to run repeatedly or overlapping: the query filter only sees
// invitations still invited with no response, and the conditional transition
// excludes anything a concurrent trigger already moved.
func (f *Flow) SweepDeadlines(ctx context.Context) (*SweepResult, error) {
	now := f.now()

	var games []models.Game
	err := f.DB.
		Where("status = ? AND rsvp_deadline < ?", models.GameActive, now).
		Find(&games).Error
	if err != nil {
		return nil, err
	}

	result := &SweepResult{GamesProcessed: len(games)}

	for _, game := range games {
		var overdue []models.Invitation
		err := f.DB.
			Where("game_id = ? AND status = ? AND invited_at < ? AND responded_at IS NULL",
				game.ID, models.InvitationInvited, game.RSVPDeadline).
			Find(&overdue).Error
		if err != nil {
			return result, err
		}

		for _, inv := range overdue {
			ok, err := TransitionInvitation(f.DB, inv.ID, models.InvitationInvited, models.InvitationTimeout, now)
			if err != nil {
				return result, err
			}
			if !ok {
				// A reply raced the sweep; the invitation is no longer ours.
				continue
			}

			if err := IncrementPlayerTimeout(f.DB, inv.PlayerID, now); err != nil {
				return result, err
			}
			result.TimedOut++

			f.Log.Info().
				Str("invitation_id", inv.ID).
				Str("game_id", game.ID).
				Msg("invitation timed out")

			cascaded, err := f.InviteNextPlayer(ctx, game.ID)
			if err != nil {
				return result, err
			}
			if cascaded {
				result.Cascaded++
			}
		}
	}

	return result, nil
}
