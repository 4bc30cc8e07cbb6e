// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/flowbot/pkg/core/config"
)

func TestConnector_SendWithToken(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "app-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, botScope, r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token_type":"Bearer","expires_in":3600,"access_token":"tok-1"}`)
	}))
	defer tokenServer.Close()

	var sent []Activity
	channel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/conversations/a:conv 1/activities/act-1", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var a Activity
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		sent = append(sent, a)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"reply-1"}`)
	}))
	defer channel.Close()

	c := NewConnector(config.BotConfig{AppID: "app-id", AppPassword: "app-secret"}, nil, nil)
	c.tokenURL = tokenServer.URL

	in := message("hi")
	in.ServiceURL = channel.URL + "/"
	in.Conversation.ID = "a:conv 1"

	require.NoError(t, c.Send(context.Background(), in.Reply(TypeMessage, "hello")))
	require.NoError(t, c.Send(context.Background(), in.Reply(TypeTyping, "")))

	assert.Equal(t, int32(1), tokenCalls.Load(), "token is cached")
	require.Len(t, sent, 2)
	assert.Equal(t, TypeMessage, sent[0].Type)
	assert.Equal(t, "hello", sent[0].Text)
	assert.Equal(t, "plain", sent[0].TextFormat)
	assert.Equal(t, TypeTyping, sent[1].Type)
	assert.Empty(t, sent[1].Text)
}

func TestConnector_ShortLivedTokenIsReused(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token_type":"Bearer","expires_in":120,"access_token":"short"}`)
	}))
	defer tokenServer.Close()

	channel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer short", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer channel.Close()

	c := NewConnector(config.BotConfig{AppID: "app-id", AppPassword: "app-secret"}, channel.Client(), nil)
	c.tokenURL = tokenServer.URL

	out := message("hi").Reply(TypeMessage, "hello")
	out.ServiceURL = channel.URL
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Send(context.Background(), out))
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestConnector_NoAppIDSkipsAuth(t *testing.T) {
	channel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/conversations/conv-1/activities", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer channel.Close()

	c := NewConnector(config.BotConfig{}, nil, nil)
	out := &Activity{Type: TypeMessage, ServiceURL: channel.URL, Conversation: &ConversationAccount{ID: "conv-1"}, Text: "proactive"}
	require.NoError(t, c.Send(context.Background(), out))
}

func TestConnector_Errors(t *testing.T) {
	ctx := context.Background()

	c := NewConnector(config.BotConfig{}, nil, nil)
	assert.Error(t, c.Send(ctx, &Activity{Type: TypeMessage}))

	channel := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversation not found", http.StatusNotFound)
	}))
	defer channel.Close()

	out := message("x").Reply(TypeMessage, "y")
	out.ServiceURL = channel.URL
	err := c.Send(ctx, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
	}))
	defer tokenServer.Close()

	authed := NewConnector(config.BotConfig{AppID: "a", AppPassword: "b"}, nil, nil)
	authed.tokenURL = tokenServer.URL
	err = authed.Send(ctx, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestNewConnector_Tenant(t *testing.T) {
	multi := NewConnector(config.BotConfig{AppType: "MultiTenant", TenantID: "t-1"}, nil, nil)
	assert.Equal(t, "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token", multi.tokenURL)

	single := NewConnector(config.BotConfig{AppType: "SingleTenant", TenantID: "t-1"}, nil, nil)
	assert.Equal(t, "https://login.microsoftonline.com/t-1/oauth2/v2.0/token", single.tokenURL)
}

func TestActivity_Reply(t *testing.T) {
	in := message("hi")
	r := in.Reply(TypeMessage, "hello")

	assert.Equal(t, in.ServiceURL, r.ServiceURL)
	assert.Equal(t, in.Conversation, r.Conversation)
	assert.Equal(t, in.Recipient, r.From)
	assert.Equal(t, in.From, r.Recipient)
	assert.Equal(t, "act-1", r.ReplyToID)
	assert.Equal(t, "fr-FR", r.Locale)
}
