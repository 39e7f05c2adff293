package sms

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sender is the outbound SMS gateway the cascade engine depends on.
type Sender interface {
	Send(ctx context.Context, to, body string) (*SendResult, error)
}

type SendResult struct {
	SID string
}

const defaultBaseURL = "https://api.twilio.com"

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// TwilioClient sends SMS through the Twilio Messages REST API and validates
// inbound webhook signatures.
type TwilioClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewTwilioClient(accountSID, authToken, fromNumber string, log zerolog.Logger) *TwilioClient {
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// formatPhoneNumber normalizes a phone number to E.164 (+1XXXXXXXXXX).
func formatPhoneNumber(phone string) string {
	cleaned := nonPhoneChars.ReplaceAllString(phone, "")
	if !strings.HasPrefix(cleaned, "+") {
		return "+" + cleaned
	}
	return cleaned
}

type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Send delivers one SMS. A non-2xx provider response or transport error is
// returned to the caller; nothing is retried here.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (*SendResult, error) {
	if c.fromNumber == "" {
		return nil, fmt.Errorf("TWILIO_PHONE_NUMBER not configured")
	}

	form := url.Values{}
	form.Set("To", formatPhoneNumber(to))
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("to", to).Msg("failed to send SMS")
		return nil, err
	}
	defer resp.Body.Close()

	var decoded twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding Twilio response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error().Int("status", resp.StatusCode).Int("code", decoded.Code).
			Str("to", to).Msg("Twilio rejected message")
		return nil, fmt.Errorf("twilio error %d: %s", decoded.Code, decoded.Message)
	}

	c.log.Debug().Str("sid", decoded.SID).Str("to", to).Msg("SMS sent")
	return &SendResult{SID: decoded.SID}, nil
}

// ValidateSignature implements Twilio's webhook signing scheme: the full
// request URL concatenated with every POST parameter (sorted by key, key
// then value), HMAC-SHA1 with the auth token, base64 encoded.
func (c *TwilioClient) ValidateSignature(signature, requestURL string, params map[string]string) bool {
	if c.authToken == "" {
		c.log.Error().Msg("TWILIO_AUTH_TOKEN not configured for webhook validation")
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(requestURL)
	for _, k := range keys {
		payload.WriteString(k)
		payload.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(c.authToken))
	mac.Write([]byte(payload.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
