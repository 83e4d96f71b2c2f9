package slack

import (
	"context"
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
)

type mockClient struct {
	channelID string
	options   int
	err       error
}

func (m *mockClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.channelID = channelID
	m.options = len(options)
	return channelID, "1724155200.000100", m.err
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "C0123"); err == nil {
		t.Error("New() accepted an empty bot token")
	}
	if _, err := New("xoxb-test", ""); err == nil {
		t.Error("New() accepted an empty channel id")
	}
	if _, err := New("xoxb-test", "C0123"); err != nil {
		t.Errorf("New() error: %v", err)
	}
}

func TestSendDigest(t *testing.T) {
	client := &mockClient{}
	n := NewWithClient(client, "C0123")
	if err := n.SendDigest(context.Background(), "sync finished"); err != nil {
		t.Fatalf("SendDigest() error: %v", err)
	}
	if client.channelID != "C0123" {
		t.Errorf("posted to channel %q, want C0123", client.channelID)
	}
	if client.options == 0 {
		t.Error("no message options passed")
	}
}

func TestSendDigest_Error(t *testing.T) {
	client := &mockClient{err: errors.New("channel_not_found")}
	n := NewWithClient(client, "C0123")
	err := n.SendDigest(context.Background(), "sync finished")
	if err == nil {
		t.Fatal("SendDigest() swallowed the API error")
	}
	if !errors.Is(err, client.err) {
		t.Errorf("SendDigest() error %v does not wrap the API error", err)
	}
}
