package invite_constants

import "time"

// No new invitations are sent once the game is this close to starting.
// Confirmations already acquired stand; the queue simply freezes.
const BlackoutWindow = 4 * time.Hour

// DefaultBatchSize caps how many invitations an initial queue fill sends.
const DefaultBatchSize = 5

// ConversationHistoryLimit bounds the context window handed to the classifier.
const ConversationHistoryLimit = 5

// CalendarEventDuration is how long a poker night is blocked on the calendar.
const CalendarEventDuration = 4 * time.Hour

// Scripted replies used by the quick actions and the opt-out path.
const (
	ConfirmReply = "Great, you're in! See you there."
	DeclineReply = "Thanks for letting us know. Maybe next time!"
	OptOutReply  = "Got it - you won't receive any more messages."
)
