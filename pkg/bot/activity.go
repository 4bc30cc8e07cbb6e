// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import "time"

// Activity types handled or sent by the bot.
const (
	TypeMessage            = "message"
	TypeTyping             = "typing"
	TypeConversationUpdate = "conversationUpdate"
)

// ChannelAccount identifies a user or bot on a channel.
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// ConversationAccount identifies a conversation.
type ConversationAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	IsGroup  bool   `json:"isGroup,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
}

// Activity is the subset of the Bot Framework activity schema the bot reads
// and writes.
type Activity struct {
	Type           string               `json:"type"`
	ID             string               `json:"id,omitempty"`
	Timestamp      *time.Time           `json:"timestamp,omitempty"`
	LocalTimestamp *time.Time           `json:"localTimestamp,omitempty"`
	ServiceURL     string               `json:"serviceUrl,omitempty"`
	ChannelID      string               `json:"channelId,omitempty"`
	From           *ChannelAccount      `json:"from,omitempty"`
	Conversation   *ConversationAccount `json:"conversation,omitempty"`
	Recipient      *ChannelAccount      `json:"recipient,omitempty"`
	Text           string               `json:"text,omitempty"`
	TextFormat     string               `json:"textFormat,omitempty"`
	Locale         string               `json:"locale,omitempty"`
	ReplyToID      string               `json:"replyToId,omitempty"`
}

// Reply builds an outgoing activity addressed back to the sender of a.
func (a *Activity) Reply(activityType, text string) *Activity {
	reply := &Activity{
		Type:         activityType,
		ServiceURL:   a.ServiceURL,
		ChannelID:    a.ChannelID,
		From:         a.Recipient,
		Recipient:    a.From,
		Conversation: a.Conversation,
		Locale:       a.Locale,
		ReplyToID:    a.ID,
	}
	if activityType == TypeMessage {
		reply.Text = text
		reply.TextFormat = "plain"
	}
	return reply
}
