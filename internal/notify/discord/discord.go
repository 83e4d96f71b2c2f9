// Package discord implements the notify.Notifier for Discord.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// sender abstracts the one discordgo method we use, enabling test mocks.
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts sync digests to one Discord channel over the REST API; no
// gateway connection is opened.
type Notifier struct {
	session   sender
	channelID string
}

// New creates a Discord Notifier from a bot token.
func New(botToken, channelID string) (*Notifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Notifier{session: session, channelID: channelID}, nil
}

// NewWithSession creates a Notifier around an injected session, used by tests.
func NewWithSession(session sender, channelID string) *Notifier {
	return &Notifier{session: session, channelID: channelID}
}

// SendDigest posts the digest text to the configured channel.
func (n *Notifier) SendDigest(ctx context.Context, text string) error {
	_, err := n.session.ChannelMessageSend(n.channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: post digest: %w", err)
	}
	return nil
}
