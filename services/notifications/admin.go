package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/jondahl/pokerbot/services/sms"

	"github.com/rs/zerolog"
)

// Notifier fans escalations out to the admins' phones so a flagged message
// gets human eyes without anyone watching the portal.
type Notifier struct {
	SMS    sms.Sender
	Phones []string
	Log    zerolog.Logger
}

func NewNotifier(sender sms.Sender, phones []string, log zerolog.Logger) *Notifier {
	return &Notifier{SMS: sender, Phones: phones, Log: log}
}

type Escalation struct {
	PlayerName  string
	PlayerPhone string
	Message     string
	Reason      string
	GameDate    string
}

// NotifyEscalation texts every configured admin. Failures are counted, not
// propagated; the escalation is already durably queued in the store.
func (n *Notifier) NotifyEscalation(ctx context.Context, e Escalation) (sent, failed int) {
	if len(n.Phones) == 0 {
		n.Log.Info().Msg("no admin phones configured, skipping escalation notification")
		return 0, 0
	}

	body := formatEscalation(e)
	for _, phone := range n.Phones {
		if _, err := n.SMS.Send(ctx, strings.TrimSpace(phone), body); err != nil {
			n.Log.Error().Err(err).Str("phone", phone).Msg("failed to notify admin")
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func formatEscalation(e Escalation) string {
	msg := fmt.Sprintf("[Escalation] %s (%s): %q", e.PlayerName, e.PlayerPhone, e.Message)
	if e.GameDate != "" {
		msg += " | Game: " + e.GameDate
	}
	msg += " | Reason: " + e.Reason
	msg += " | Reply in admin portal."

	// Keep it to a single SMS segment.
	if len(msg) > 160 {
		msg = msg[:157] + "..."
	}
	return msg
}
