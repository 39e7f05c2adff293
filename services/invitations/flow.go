package invitations

import (
	"context"
	"fmt"
	"time"

	invite_constants "github.com/jondahl/pokerbot/constants/invite"
	models "github.com/jondahl/pokerbot/models/postgres"
	"github.com/jondahl/pokerbot/services/calendar"
	"github.com/jondahl/pokerbot/services/classifier"
	"github.com/jondahl/pokerbot/services/sms"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Flow is the invitation cascade engine. It owns the invitation state
// machine, queue advancement, capacity accounting, blackout enforcement and
// the side-effect dispatcher. It keeps no state between calls: PostgreSQL is
// the single source of truth shared by the webhook, the sweep and the admin
// API.
type Flow struct {
	DB       *gorm.DB
	SMS      sms.Sender
	Calendar calendar.Service
	Log      zerolog.Logger

	// Now is injectable for blackout-window tests.
	Now func() time.Time
}

func NewFlow(db *gorm.DB, sender sms.Sender, cal calendar.Service, log zerolog.Logger) *Flow {
	return &Flow{
		DB:       db,
		SMS:      sender,
		Calendar: cal,
		Log:      log,
		Now:      time.Now,
	}
}

func (f *Flow) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func formatInvitationMessage(game *models.Game) string {
	return fmt.Sprintf("Poker game %s, %s, at %s. Want a spot?\n\nReply STOP to opt out.",
		game.Date.Format("Monday, January 2"),
		game.Time.Format("3:04 PM"),
		game.Location)
}

// withinBlackoutWindow reports whether the game starts too soon for new
// invitations to be worth sending.
func (f *Flow) withinBlackoutWindow(game *models.Game) bool {
	return game.StartsAt().Sub(f.now()) <= invite_constants.BlackoutWindow
}

// SendInvitation texts the invitation for a single queue entry. All
// preconditions are checked before any send attempt; the status only moves
// to invited after the gateway accepts the message, so a failed send leaves
// the row pending for a clean retry.
func (f *Flow) SendInvitation(ctx context.Context, invitationID string) (*sms.SendResult, error) {
	inv, err := GetInvitation(f.DB, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.Player.OptedOut {
		return nil, ErrPlayerOptedOut
	}

	game, err := GetGame(f.DB, inv.GameID)
	if err != nil {
		return nil, err
	}

	result, err := f.SMS.Send(ctx, inv.Player.Phone, formatInvitationMessage(game))
	if err != nil {
		return nil, err
	}

	sent, err := MarkInvitationSent(f.DB, invitationID, f.now())
	if err != nil {
		return nil, err
	}
	if !sent {
		// Already invited by a concurrent trigger; the SMS went out twice
		// but the state stays consistent.
		f.Log.Warn().Str("invitation_id", invitationID).Msg("invitation was no longer pending after send")
	}

	return result, nil
}

// InviteNextPlayer is the single-step queue advancement primitive, called
// after every decline, timeout and cascade trigger. Calling it when no
// eligible candidate remains is a safe no-op.
func (f *Flow) InviteNextPlayer(ctx context.Context, gameID string) (bool, error) {
	game, err := GetGame(f.DB, gameID)
	if err != nil {
		if err == ErrGameNotFound {
			f.Log.Error().Str("game_id", gameID).Msg("game not found")
			return false, nil
		}
		return false, err
	}

	// Only active games cascade. A cancel racing an in-flight trigger lands
	// here instead of texting someone about a game that no longer exists.
	if game.Status != models.GameActive {
		f.Log.Info().Str("game_id", gameID).Str("status", string(game.Status)).
			Msg("game is not active, not sending invites")
		return false, nil
	}

	if f.withinBlackoutWindow(game) {
		f.Log.Info().Str("game_id", gameID).Msg("within blackout window, not sending more invites")
		return false, nil
	}

	confirmed, err := ConfirmedCount(f.DB, gameID)
	if err != nil {
		return false, err
	}
	if confirmed >= int64(game.Capacity) {
		f.Log.Info().Str("game_id", gameID).Msg("game is full")
		return false, nil
	}

	next, err := NextPendingInvitation(f.DB, gameID)
	if err != nil {
		return false, err
	}
	if next == nil {
		f.Log.Info().Str("game_id", gameID).Msg("no more pending invitations")
		return false, nil
	}

	if _, err := f.SendInvitation(ctx, next.ID); err != nil {
		f.Log.Error().Err(err).Str("invitation_id", next.ID).Msg("failed to send invitation")
		return false, nil
	}
	return true, nil
}

// SendInvitationsForGame fills remaining capacity up to batchSize, used for
// the initial queue fill rather than the one-at-a-time cascade.
func (f *Flow) SendInvitationsForGame(ctx context.Context, gameID string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = invite_constants.DefaultBatchSize
	}

	game, err := GetGame(f.DB, gameID)
	if err != nil {
		return 0, err
	}
	if game.Status != models.GameActive {
		return 0, ErrGameNotActive
	}

	confirmed, err := ConfirmedCount(f.DB, gameID)
	if err != nil {
		return 0, err
	}

	toSend := game.Capacity - int(confirmed)
	if batchSize < toSend {
		toSend = batchSize
	}

	sent := 0
	for i := 0; i < toSend; i++ {
		next, err := NextPendingInvitation(f.DB, gameID)
		if err != nil {
			return sent, err
		}
		if next == nil {
			break
		}
		if _, err := f.SendInvitation(ctx, next.ID); err != nil {
			f.Log.Error().Err(err).Str("invitation_id", next.ID).Msg("failed to send invitation")
			continue
		}
		sent++
	}
	return sent, nil
}

// ProcessResult carries the reply the caller should text back, if any.
type ProcessResult struct {
	Reply     string
	Escalated bool
}

// ProcessResponse applies the classifier's decision. Escalations mutate
// nothing and return no reply: silence on the wire plus human review is the
// safe default. Auto-respond side effects run strictly in the order the
// classifier gave them.
func (f *Flow) ProcessResponse(ctx context.Context, invitationID, playerID string, decision classifier.Decision) (*ProcessResult, error) {
	if decision.Action == classifier.ActionEscalate {
		return &ProcessResult{Escalated: true}, nil
	}

	for _, effect := range decision.SideEffects {
		if err := f.applySideEffect(ctx, invitationID, playerID, effect); err != nil {
			return nil, err
		}
	}

	return &ProcessResult{Reply: decision.Response}, nil
}

func (f *Flow) applySideEffect(ctx context.Context, invitationID, playerID string, effect classifier.SideEffect) error {
	switch effect {
	case classifier.SideEffectConfirmPlayer:
		inv, err := GetInvitation(f.DB, invitationID)
		if err != nil {
			return err
		}
		game, err := GetGame(f.DB, inv.GameID)
		if err != nil {
			return err
		}
		ok, err := ConfirmInvitationWithinCapacity(f.DB, invitationID, game.Capacity, f.now())
		if err != nil {
			return err
		}
		if !ok {
			f.Log.Warn().Str("invitation_id", invitationID).
				Msg("confirm skipped: invitation not in invited status or game full")
			return nil
		}
		return IncrementPlayerResponse(f.DB, playerID, f.now())

	case classifier.SideEffectDeclinePlayer:
		ok, err := TransitionInvitation(f.DB, invitationID, models.InvitationInvited, models.InvitationDeclined, f.now())
		if err != nil {
			return err
		}
		if !ok {
			f.Log.Warn().Str("invitation_id", invitationID).Msg("decline skipped: invitation not in invited status")
			return nil
		}
		return IncrementPlayerResponse(f.DB, playerID, f.now())

	case classifier.SideEffectOptOutPlayer:
		// The opt-out sticks even when the invitation already reached a
		// terminal status. No response_count bump.
		if _, err := TransitionInvitation(f.DB, invitationID, models.InvitationInvited, models.InvitationDeclined, f.now()); err != nil {
			return err
		}
		return OptOutPlayer(f.DB, playerID)

	case classifier.SideEffectSendCalendarInvite:
		f.sendCalendarInvite(ctx, invitationID)
		return nil

	case classifier.SideEffectInviteNext:
		inv, err := GetInvitation(f.DB, invitationID)
		if err != nil {
			return err
		}
		_, err = f.InviteNextPlayer(ctx, inv.GameID)
		return err

	default:
		f.Log.Warn().Str("effect", string(effect)).Msg("unknown side effect ignored")
		return nil
	}
}

// sendCalendarInvite is best effort: it runs only after the primary
// transition committed and its failures never unwind a confirmation.
func (f *Flow) sendCalendarInvite(ctx context.Context, invitationID string) {
	inv, err := GetInvitation(f.DB, invitationID)
	if err != nil {
		f.Log.Error().Err(err).Str("invitation_id", invitationID).Msg("cannot send calendar invite")
		return
	}
	game, err := GetGame(f.DB, inv.GameID)
	if err != nil {
		f.Log.Error().Err(err).Str("game_id", inv.GameID).Msg("cannot send calendar invite")
		return
	}

	entryInstructions := ""
	if game.EntryInstructions != nil {
		entryInstructions = *game.EntryInstructions
	}

	result, err := f.Calendar.CreateEvent(ctx, calendar.EventDetails{
		StartsAt:          game.StartsAt(),
		TimeBlock:         game.TimeBlock,
		Location:          game.Location,
		EntryInstructions: entryInstructions,
		AttendeeEmail:     inv.Player.Email,
		AttendeeName:      inv.Player.FullName(),
	})
	if err != nil {
		f.Log.Error().Err(err).Str("invitation_id", invitationID).Msg("failed to send calendar invite")
		return
	}

	if err := SetInvitationCalendarEvent(f.DB, invitationID, result.EventID, models.CalendarPending); err != nil {
		f.Log.Error().Err(err).Str("invitation_id", invitationID).Msg("failed to store calendar event id")
		return
	}
	f.Log.Info().Str("invitation_id", invitationID).Str("event_id", result.EventID).Msg("calendar invite sent")
}
