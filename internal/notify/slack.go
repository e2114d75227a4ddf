package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"
)

// slackAPI is the subset of the Slack client the sender needs
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

// SlackSender posts alert messages to a Slack channel. The destination may
// be a channel ID (C...) or a channel name, with or without the # prefix.
type SlackSender struct {
	client slackAPI

	// name -> id resolution cache
	mu    sync.RWMutex
	cache map[string]string
}

// NewSlackSender creates a chat sender using the given bot token
func NewSlackSender(botToken string, opts ...slack.Option) *SlackSender {
	return &SlackSender{
		client: slack.New(botToken, opts...),
		cache:  make(map[string]string),
	}
}

// Name returns the channel name
func (s *SlackSender) Name() string {
	return ChannelChat
}

// Send posts the message to the destination channel
func (s *SlackSender) Send(ctx context.Context, destination, message string) error {
	channelID, err := s.resolveChannel(ctx, destination)
	if err != nil {
		return err
	}
	_, _, err = s.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("post to slack channel %s: %w", destination, err)
	}
	return nil
}

// resolveChannel resolves a channel name or ID to a channel ID
func (s *SlackSender) resolveChannel(ctx context.Context, nameOrID string) (string, error) {
	if nameOrID == "" {
		return "", fmt.Errorf("chat destination is empty")
	}
	if isChannelID(nameOrID) {
		return nameOrID, nil
	}

	name := strings.TrimPrefix(nameOrID, "#")

	s.mu.RLock()
	if id, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return id, nil
	}
	s.mu.RUnlock()

	id, err := s.lookupChannel(ctx, name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cache[name] = id
	s.mu.Unlock()
	return id, nil
}

// lookupChannel finds a channel by name via the Slack API
func (s *SlackSender) lookupChannel(ctx context.Context, name string) (string, error) {
	channels, _, err := s.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           1000,
		Types:           []string{"public_channel", "private_channel"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to list slack channels: %w", err)
	}
	for _, channel := range channels {
		if channel.Name == name {
			return channel.ID, nil
		}
	}
	return "", fmt.Errorf("slack channel %q not found", name)
}

// isChannelID checks if a string looks like a Slack channel ID.
// Channel IDs start with C followed by alphanumeric characters.
func isChannelID(s string) bool {
	if len(s) < 9 || len(s) > 15 {
		return false
	}
	if !strings.HasPrefix(s, "C") {
		return false
	}
	for _, c := range s[1:] {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
