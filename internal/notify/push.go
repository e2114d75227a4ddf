package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PushSender delivers multicast push notifications through an FCM-style
// HTTP endpoint. Delivery is best-effort: per-token failures are counted,
// not retried.
type PushSender struct {
	endpoint   string
	serverKey  string
	httpClient *http.Client
}

// NewPushSender creates a push multicaster for the given endpoint
func NewPushSender(endpoint, serverKey string, client *http.Client) *PushSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &PushSender{
		endpoint:   endpoint,
		serverKey:  serverKey,
		httpClient: client,
	}
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushRequest struct {
	Tokens       []string          `json:"tokens"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// SendMulticast pushes the notification to every token. An empty token
// list is a no-op success.
func (s *PushSender) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (MulticastResult, error) {
	if len(tokens) == 0 {
		return MulticastResult{}, nil
	}

	payload, err := json.Marshal(pushRequest{
		Tokens:       tokens,
		Notification: pushNotification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return MulticastResult{}, fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return MulticastResult{}, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Authorization", "key="+s.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return MulticastResult{}, fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return MulticastResult{}, fmt.Errorf("push endpoint returned status %d: %s", resp.StatusCode, apiErrorMessage(resp.Body))
	}

	var parsed pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return MulticastResult{}, fmt.Errorf("decode push response: %w", err)
	}
	return MulticastResult{Success: parsed.Success, Failure: parsed.Failure}, nil
}
