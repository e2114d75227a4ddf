package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultResendBaseURL is the production Resend API endpoint
const DefaultResendBaseURL = "https://api.resend.com"

// alertEmailSubject is the fixed subject line for hazard alert mails
const alertEmailSubject = "Verified Ocean Hazard Alert"

// ResendSender sends transactional email through the Resend API
type ResendSender struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

// NewResendSender creates an email sender. An empty baseURL uses the
// production Resend endpoint; tests point it at a local server.
func NewResendSender(apiKey, from, baseURL string, client *http.Client) *ResendSender {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ResendSender{
		apiKey:     apiKey,
		from:       from,
		baseURL:    baseURL,
		httpClient: client,
	}
}

// Name returns the channel name
func (s *ResendSender) Name() string {
	return ChannelEmail
}

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send delivers one alert email
func (s *ResendSender) Send(ctx context.Context, destination, message string) error {
	payload := resendEmailRequest{
		From:    s.from,
		To:      []string{destination},
		Subject: alertEmailSubject,
		HTML:    fmt.Sprintf("<p>%s</p>", message),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, apiErrorMessage(resp.Body))
	}
	return nil
}
