package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	invite_constants "github.com/jondahl/pokerbot/constants/invite"

	"github.com/rs/zerolog"
)

// Service is the best-effort calendar side channel. Its failures are logged
// and swallowed by the dispatcher; they never unwind a confirmation.
type Service interface {
	CreateEvent(ctx context.Context, details EventDetails) (*CreateResult, error)
	CancelEvent(ctx context.Context, eventID string) error
	AttendeeStatus(ctx context.Context, eventID, email string) (string, error)
}

type EventDetails struct {
	StartsAt          time.Time
	TimeBlock         string
	Location          string
	EntryInstructions string
	AttendeeEmail     string
	AttendeeName      string
}

type CreateResult struct {
	EventID   string
	EventLink string
}

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleClient talks to the Google Calendar v3 REST API.
type GoogleClient struct {
	calendarID string
	token      string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewGoogleClient(calendarID, token string, log zerolog.Logger) *GoogleClient {
	return &GoogleClient{
		calendarID: calendarID,
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

type eventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventAttendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

type calendarEvent struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Start       *eventDateTime  `json:"start,omitempty"`
	End         *eventDateTime  `json:"end,omitempty"`
	Attendees   []eventAttendee `json:"attendees,omitempty"`
	HTMLLink    string          `json:"htmlLink,omitempty"`
}

const eventTimeZone = "America/Los_Angeles"

// CreateEvent inserts a calendar event for the confirmed player and invites
// them as an attendee.
func (c *GoogleClient) CreateEvent(ctx context.Context, details EventDetails) (*CreateResult, error) {
	description := details.TimeBlock
	if details.EntryInstructions != "" {
		description += "\n\nEntry instructions: " + details.EntryInstructions
	}
	description += fmt.Sprintf("\n\nPlayer: %s (%s)", details.AttendeeName, details.AttendeeEmail)

	event := calendarEvent{
		Summary:     "Poker Night - " + details.AttendeeName,
		Description: description,
		Location:    details.Location,
		Start: &eventDateTime{
			DateTime: details.StartsAt.Format(time.RFC3339),
			TimeZone: eventTimeZone,
		},
		End: &eventDateTime{
			DateTime: details.StartsAt.Add(invite_constants.CalendarEventDuration).Format(time.RFC3339),
			TimeZone: eventTimeZone,
		},
		Attendees: []eventAttendee{{
			Email:       details.AttendeeEmail,
			DisplayName: details.AttendeeName,
		}},
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events?sendUpdates=all",
		c.baseURL, url.PathEscape(c.calendarID))

	var created calendarEvent
	if err := c.do(ctx, http.MethodPost, endpoint, &event, &created); err != nil {
		c.log.Error().Err(err).Msg("failed to create calendar event")
		return nil, err
	}

	return &CreateResult{EventID: created.ID, EventLink: created.HTMLLink}, nil
}

// CancelEvent deletes the event and notifies attendees.
func (c *GoogleClient) CancelEvent(ctx context.Context, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s?sendUpdates=all",
		c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		c.log.Error().Err(err).Str("event_id", eventID).Msg("failed to cancel calendar event")
		return err
	}
	return nil
}

// AttendeeStatus returns the attendee's RSVP status on the event, or ""
// when the attendee is not on it. Used for decline-detection polling.
func (c *GoogleClient) AttendeeStatus(ctx context.Context, eventID, email string) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))

	var event calendarEvent
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &event); err != nil {
		return "", err
	}

	for _, attendee := range event.Attendees {
		if strings.EqualFold(attendee.Email, email) {
			return attendee.ResponseStatus, nil
		}
	}
	return "", nil
}

func (c *GoogleClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body *strings.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(data))
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("calendar API returned %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding calendar response: %w", err)
		}
	}
	return nil
}
