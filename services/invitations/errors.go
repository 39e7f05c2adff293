package invitations

import "errors"

var (
	// ErrInvitationNotFound means the invitation record is missing.
	ErrInvitationNotFound = errors.New("invitation not found")
	// ErrGameNotFound means the parent game record is missing.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameNotActive means the game is draft, completed or cancelled, so
	// no invitations may be sent for it.
	ErrGameNotActive = errors.New("game is not active")
	// ErrPlayerOptedOut means the player has opted out and must never be texted.
	ErrPlayerOptedOut = errors.New("player has opted out")
	// ErrInvalidTransition means the engine asked for a state change the
	// invitation state machine does not allow.
	ErrInvalidTransition = errors.New("invalid invitation status transition")
)
