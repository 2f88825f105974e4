// Package notify posts ticket closure notices to a Slack ops channel.
package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier implements ticket.Notifier by posting a short closure
// summary into a single ops channel.
type SlackNotifier struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a SlackNotifier.
type SlackOpts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a SlackNotifier.
func NewSlack(opts SlackOpts) (*SlackNotifier, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("notify: slack token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack channel id is required")
	}

	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.Token)
	}
	return &SlackNotifier{client: client, channelID: opts.ChannelID}, nil
}

// TicketClosed posts the closure notice. Failures are returned to the
// caller, which treats them as best-effort.
func (n *SlackNotifier) TicketClosed(ctx context.Context, ticketName, closedBy string, messageCount int) error {
	text := fmt.Sprintf("Ticket *%s* closed by %s (%d messages archived)",
		ticketName, closedBy, messageCount)
	_, _, err := n.client.PostMessageContext(ctx, n.channelID,
		slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
