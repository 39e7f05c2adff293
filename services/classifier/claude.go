package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SideEffect is a named state mutation the dispatcher knows how to apply.
type SideEffect string

const (
	SideEffectConfirmPlayer      SideEffect = "confirm_player"
	SideEffectDeclinePlayer      SideEffect = "decline_player"
	SideEffectOptOutPlayer       SideEffect = "opt_out_player"
	SideEffectSendCalendarInvite SideEffect = "send_calendar_invite"
	SideEffectInviteNext         SideEffect = "invite_next"
)

var knownSideEffects = map[SideEffect]bool{
	SideEffectConfirmPlayer:      true,
	SideEffectDeclinePlayer:      true,
	SideEffectOptOutPlayer:       true,
	SideEffectSendCalendarInvite: true,
	SideEffectInviteNext:         true,
}

type Action string

const (
	ActionAutoRespond Action = "auto_respond"
	ActionEscalate    Action = "escalate"
)

// Decision is the classifier's structured verdict on one inbound message.
// An auto_respond decision carries the reply text and an ordered side-effect
// list; an escalate decision carries the reason and an optional suggestion.
type Decision struct {
	Action            Action
	Response          string
	SideEffects       []SideEffect
	Reason            string
	SuggestedResponse string
}

// Turn is one prior exchange in the conversation window.
type Turn struct {
	Role    string // "player" or "bot"
	Message string
}

// Context is everything the classifier sees about the player and game.
type Context struct {
	PlayerMessage     string
	PlayerName        string
	PlayerStatus      string
	GameDate          string
	GameTime          string
	GameLocation      string
	GameTimeBlock     string
	EntryInstructions string
	History           []Turn
}

// Classifier maps an inbound message plus context to a Decision. It never
// returns an error: every failure mode collapses into an escalate decision
// so an unparseable reply results in silence plus human review, not a guess.
type Classifier interface {
	Classify(ctx context.Context, pc Context) Decision
}

const systemPrompt = `You are Pokerbot, the SMS assistant for Jon and Matt's private poker game in San Francisco. You handle text message conversations with players about game invitations and RSVPs.

## Your Personality
- Friendly, casual, brief
- Sound like a real person, not a corporate bot
- Use the player's first name when natural
- Keep messages short - this is SMS, not email

## Your Job
1. Process player responses to game invitations
2. Answer simple questions about the game using SCRIPTED RESPONSES
3. Escalate anything you're not 99% confident about

## High-Confidence Actions (Auto-Respond)

Use SCRIPTED MESSAGES whenever possible. Do not improvise.

**RSVP Responses:**
- "yes", "yeah", "yep", "I'm in", "count me in" -> confirm
- "no", "nope", "can't make it", "out" -> decline

**Simple Questions:**
- "what time?" -> Reply with game time only
- "where?" / "address?" / "location?" -> Reply with location only

**Opt-out:**
- "stop" / "unsubscribe" / "remove me" -> opt out

**Running late:**
- "I'll be late" / "running late" -> "No problem, see you when you get there"

## Escalate to Admin (<99% Confidence)

Do NOT auto-respond. Flag for admin:
- "Can I bring a friend?"
- "I said no but changed my mind"
- Questions about who is coming
- Complaints or negative feedback
- Anything ambiguous or confusing
- Questions about buy-in, money, stakes
- Anything not covered by a scripted response

## Output Format

For every incoming message, respond with JSON only (no other text):

**If auto-responding:**
{
  "action": "auto_respond",
  "response": "Your scripted message to the player",
  "side_effects": ["confirm_player", "send_calendar_invite"]
}

Possible side_effects:
- "confirm_player" - Mark player as confirmed
- "decline_player" - Mark player as declined
- "send_calendar_invite" - Trigger calendar invite
- "opt_out_player" - Remove player from future messages
- "invite_next" - Trigger invitation to next player

**If escalating:**
{
  "action": "escalate",
  "reason": "Why you need admin help",
  "suggested_response": "Your best guess, or null"
}`

const defaultBaseURL = "https://api.anthropic.com"

// ClaudeClient calls the Anthropic Messages API and parses the model output
// into a Decision under a strict schema.
type ClaudeClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClaudeClient(apiKey, model string, log zerolog.Logger) *ClaudeClient {
	return &ClaudeClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system"`
	Messages  []requestMessage `json:"messages"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Classify sends one inbound message to the model. Fails closed: transport
// errors, malformed JSON, unknown actions and unknown side effects all
// become escalate decisions carrying the failure detail.
func (c *ClaudeClient) Classify(ctx context.Context, pc Context) Decision {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 500,
		System:    systemPrompt,
		Messages:  []requestMessage{{Role: "user", Content: buildUserMessage(pc)}},
	})
	if err != nil {
		return escalateOnError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return escalateOnError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("classifier request failed")
		return escalateOnError(err)
	}
	defer resp.Body.Close()

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return escalateOnError(err)
	}
	if decoded.Error != nil {
		c.log.Error().Str("detail", decoded.Error.Message).Msg("classifier API error")
		return escalateOnError(fmt.Errorf("API error: %s", decoded.Error.Message))
	}

	text := ""
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return escalateOnError(fmt.Errorf("no text content in response"))
	}

	decision, err := ParseDecision([]byte(text))
	if err != nil {
		c.log.Warn().Err(err).Msg("classifier output rejected")
		return escalateOnError(err)
	}
	return decision
}

func escalateOnError(err error) Decision {
	return Decision{
		Action: ActionEscalate,
		Reason: fmt.Sprintf("Failed to parse response: %v", err),
	}
}

type rawDecision struct {
	Action            string   `json:"action"`
	Response          string   `json:"response"`
	SideEffects       []string `json:"side_effects"`
	Reason            string   `json:"reason"`
	SuggestedResponse string   `json:"suggested_response"`
}

// ParseDecision validates the model's JSON output against the decision
// schema. Anything outside the closed action and side-effect vocabulary is
// an error; the caller converts it into an escalation.
func ParseDecision(data []byte) (Decision, error) {
	var raw rawDecision
	if err := json.Unmarshal(data, &raw); err != nil {
		return Decision{}, fmt.Errorf("invalid decision JSON: %w", err)
	}

	switch Action(raw.Action) {
	case ActionAutoRespond:
		effects := make([]SideEffect, 0, len(raw.SideEffects))
		for _, e := range raw.SideEffects {
			effect := SideEffect(e)
			if !knownSideEffects[effect] {
				return Decision{}, fmt.Errorf("unknown side effect %q", e)
			}
			effects = append(effects, effect)
		}
		return Decision{
			Action:      ActionAutoRespond,
			Response:    raw.Response,
			SideEffects: effects,
		}, nil
	case ActionEscalate:
		return Decision{
			Action:            ActionEscalate,
			Reason:            raw.Reason,
			SuggestedResponse: raw.SuggestedResponse,
		}, nil
	default:
		return Decision{}, fmt.Errorf("unknown action %q", raw.Action)
	}
}

func buildUserMessage(pc Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PLAYER: %s (status: %s)\n", pc.PlayerName, pc.PlayerStatus)
	fmt.Fprintf(&b, "GAME: %s at %s, %s\n", pc.GameDate, pc.GameTime, pc.GameLocation)
	if pc.GameTimeBlock != "" {
		fmt.Fprintf(&b, "TIME BLOCK: %s\n", pc.GameTimeBlock)
	}
	if pc.EntryInstructions != "" {
		fmt.Fprintf(&b, "ENTRY INSTRUCTIONS: %s\n", pc.EntryInstructions)
	}
	if len(pc.History) > 0 {
		b.WriteString("\nCONVERSATION HISTORY:\n")
		for _, turn := range pc.History {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(turn.Role), turn.Message)
		}
	}
	fmt.Fprintf(&b, "\nINCOMING MESSAGE: %q\n\nRespond with JSON only.", pc.PlayerMessage)
	return b.String()
}
