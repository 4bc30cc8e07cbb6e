// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package state

// Turn is one chat message kept in conversation history.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Conversation is the per-conversation state document.
type Conversation struct {
	History []Turn `json:"history"`
}

// UserInfo is the per-user state document.
type UserInfo struct {
	Name   string `json:"name"`
	Locale string `json:"locale"`
}

// ConversationKey addresses the conversation document.
func ConversationKey(channelID, conversationID string) string {
	return channelID + "/conversations/" + conversationID
}

// UserKey addresses the user document.
func UserKey(channelID, userID string) string {
	return channelID + "/users/" + userID
}

// Append adds turn and keeps only the newest limit turns. A limit of zero
// or less keeps everything.
func (c *Conversation) Append(turn Turn, limit int) {
	c.History = append(c.History, turn)
	if limit > 0 && len(c.History) > limit {
		c.History = append([]Turn(nil), c.History[len(c.History)-limit:]...)
	}
}

// Last returns up to n of the newest turns.
func (c *Conversation) Last(n int) []Turn {
	if n <= 0 || n >= len(c.History) {
		return c.History
	}
	return c.History[len(c.History)-n:]
}
