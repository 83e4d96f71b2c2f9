// Package slack implements the notify.Notifier for Slack.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// apiClient abstracts the Slack API methods we use, enabling test mocks.
type apiClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts sync digests to one Slack channel.
type Notifier struct {
	client    apiClient
	channelID string
}

// New creates a Slack Notifier from a bot token.
func New(botToken, channelID string) (*Notifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	return &Notifier{client: slackapi.New(botToken), channelID: channelID}, nil
}

// NewWithClient creates a Notifier around an injected client, used by tests.
func NewWithClient(client apiClient, channelID string) *Notifier {
	return &Notifier{client: client, channelID: channelID}
}

// SendDigest posts the digest text to the configured channel.
func (n *Notifier) SendDigest(ctx context.Context, text string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channelID,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack: post digest: %w", err)
	}
	return nil
}
