package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// slackPoster is the slice of the Slack client the target uses, extracted for
// tests.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackTarget posts notifications to a Slack channel.
type SlackTarget struct {
	api       slackPoster
	channelID string
}

func NewSlackTarget(botToken, channelID string) *SlackTarget {
	return &SlackTarget{
		api:       slack.New(botToken),
		channelID: channelID,
	}
}

func (s *SlackTarget) Name() string { return "slack" }

// Send posts with mrkdwn enabled. Telegram-style markdown renders acceptably
// in Slack; the important part is the degraded plain path below.
func (s *SlackTarget) Send(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

// SendPlain posts with markup verbatim (no mrkdwn parsing).
func (s *SlackTarget) SendPlain(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(text, true),
		slack.MsgOptionDisableMarkdown())
	if err != nil {
		return fmt.Errorf("slack post plain: %w", err)
	}
	return nil
}
