// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot handles Teams/Bot Framework turns: it keeps per-conversation
// history, forwards questions to the prompt flow and sends back the answer.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/leseb/flowbot/pkg/core/markup"
	"github.com/leseb/flowbot/pkg/flow"
	"github.com/leseb/flowbot/pkg/flowclient"
	"github.com/leseb/flowbot/pkg/observability/logging"
	"github.com/leseb/flowbot/pkg/state"
)

// Messages sent to users.
const (
	NotConnected  = "⚠️ Bot Ready. Brain (Prompt Flow) not connected."
	TimeoutReply  = "⚠️ AI response timeout. Please try again."
	TurnErrorText = "The bot encountered an error or bug."
)

const (
	defaultUserName   = "User"
	defaultUserLocale = "en-US"
	maxErrorRunes     = 100
)

// Asker answers one question through the prompt flow.
type Asker interface {
	Ask(ctx context.Context, in flow.Input) (string, error)
}

// Options configures a Bot.
type Options struct {
	Store       state.Store
	Sender      Sender
	Flow        Asker // nil when no flow endpoint is configured
	HistorySize int   // turns kept per conversation
	HistorySent int   // most recent turns forwarded to the flow
	Logger      *logging.Logger
	Now         func() time.Time
}

// Bot processes incoming activities.
type Bot struct {
	store       state.Store
	sender      Sender
	flow        Asker
	historySize int
	historySent int
	logger      *logging.Logger
	now         func() time.Time
}

// New creates a Bot.
func New(opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 20
	}
	if opts.HistorySent <= 0 {
		opts.HistorySent = 10
	}
	return &Bot{
		store:       opts.Store,
		sender:      opts.Sender,
		flow:        opts.Flow,
		historySize: opts.HistorySize,
		historySent: opts.HistorySent,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// OnTurn processes one activity. When handling fails the user is told so;
// the returned error is non-nil only if that notice could not be sent
// either.
func (b *Bot) OnTurn(ctx context.Context, activity *Activity) error {
	var err error
	switch activity.Type {
	case TypeMessage:
		err = b.onMessage(ctx, activity)
	default:
		b.logger.Debug("Ignoring activity", "type", activity.Type, "channel", activity.ChannelID)
		return nil
	}
	if err == nil {
		return nil
	}

	b.logger.Error("Unhandled error in turn", "error", err, "activity_id", activity.ID)
	if sendErr := b.sender.Send(ctx, activity.Reply(TypeMessage, TurnErrorText)); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return nil
}

func (b *Bot) onMessage(ctx context.Context, activity *Activity) (err error) {
	if b.flow == nil {
		return b.sendText(ctx, activity, NotConnected)
	}
	if activity.Conversation == nil || activity.From == nil {
		return errors.New("message activity has no conversation or sender")
	}

	if err := b.sender.Send(ctx, activity.Reply(TypeTyping, "")); err != nil {
		return fmt.Errorf("send typing: %w", err)
	}

	convKey := state.ConversationKey(activity.ChannelID, activity.Conversation.ID)
	userKey := state.UserKey(activity.ChannelID, activity.From.ID)

	var user state.UserInfo
	if _, err := state.Load(ctx, b.store, userKey, &user); err != nil {
		return err
	}
	if user == (state.UserInfo{}) {
		user = state.UserInfo{
			Name:   valueOr(activity.From.Name, defaultUserName),
			Locale: valueOr(activity.Locale, defaultUserLocale),
		}
	}

	var conv state.Conversation
	if _, err := state.Load(ctx, b.store, convKey, &conv); err != nil {
		return err
	}

	// State is saved even when the channel has gone away mid-turn.
	defer func() {
		saveErr := state.Save(context.WithoutCancel(ctx), b.store, map[string]any{
			convKey: conv,
			userKey: user,
		})
		if saveErr != nil {
			err = errors.Join(err, fmt.Errorf("save state: %w", saveErr))
		}
	}()

	input := markup.StripMentions(activity.Text)
	conv.Append(state.Turn{Role: "user", Content: input}, b.historySize)

	reply, askErr := b.flow.Ask(ctx, flow.Input{
		ChatInput:   input,
		ChatHistory: conv.Last(b.historySent),
		CurrentTime: b.userTime(activity.LocalTimestamp),
		UserName:    user.Name,
		UserLocale:  user.Locale,
	})
	if askErr != nil {
		b.logger.Error("Flow call failed", "error", askErr, "conversation", activity.Conversation.ID)
		return b.sendText(ctx, activity, failureText(askErr))
	}

	conv.Append(state.Turn{Role: "assistant", Content: reply}, b.historySize)
	return b.sendText(ctx, activity, reply)
}

func (b *Bot) sendText(ctx context.Context, activity *Activity, text string) error {
	return b.sender.Send(ctx, activity.Reply(TypeMessage, text))
}

// userTime renders the sender's local time, or the current UTC time when
// the channel did not supply one.
func (b *Bot) userTime(local *time.Time) string {
	if local != nil && !local.IsZero() {
		return local.Format("Monday, 2006-01-02 03:04 PM (Offset: -0700)")
	}
	return b.now().UTC().Format("Monday, 2006-01-02 03:04 PM") + " UTC"
}

func failureText(err error) string {
	var statusErr *flowclient.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("⚠️ AI service returned status %d", statusErr.Code)
	case errors.Is(err, flowclient.ErrTimeout):
		return TimeoutReply
	default:
		return "⚠️ Error calling AI: " + truncate(err.Error(), maxErrorRunes)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
