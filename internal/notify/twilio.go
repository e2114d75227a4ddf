package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultTwilioBaseURL is the production Twilio API endpoint
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioSender sends SMS through the Twilio Messages API
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioSender creates an SMS sender. An empty baseURL uses the
// production Twilio endpoint; tests point it at a local server.
func NewTwilioSender(accountSID, authToken, from, baseURL string, client *http.Client) *TwilioSender {
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    baseURL,
		httpClient: client,
	}
}

// Name returns the channel name
func (s *TwilioSender) Name() string {
	return ChannelSMS
}

// Send delivers one SMS. A non-2xx response is surfaced with Twilio's own
// error message when the body carries one.
func (s *TwilioSender) Send(ctx context.Context, destination, message string) error {
	form := url.Values{}
	form.Set("To", destination)
	form.Set("From", s.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build SMS request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, apiErrorMessage(resp.Body))
	}
	return nil
}

// apiErrorMessage pulls a human-readable message out of a JSON error body,
// falling back to the raw body.
func apiErrorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(data))
}
