// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/leseb/flowbot/pkg/core/config"
	"github.com/leseb/flowbot/pkg/observability/logging"
)

const (
	loginURL      = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	botScope      = "https://api.botframework.com/.default"
	defaultTenant = "botframework.com"
)

// Sender delivers activities to a channel.
type Sender interface {
	Send(ctx context.Context, activity *Activity) error
}

// Connector sends activities through the Bot Connector REST API.
type Connector struct {
	appID      string
	password   string
	tokenURL   string
	httpClient *http.Client
	logger     *logging.Logger

	once   sync.Once
	tokens oauth2.TokenSource
}

// NewConnector creates a connector for the configured bot registration.
// Without an app id requests are sent unauthenticated (local emulator).
func NewConnector(cfg config.BotConfig, httpClient *http.Client, logger *logging.Logger) *Connector {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	tenant := defaultTenant
	if strings.EqualFold(cfg.AppType, "SingleTenant") && cfg.TenantID != "" {
		tenant = cfg.TenantID
	}

	return &Connector{
		appID:      cfg.AppID,
		password:   cfg.AppPassword,
		tokenURL:   fmt.Sprintf(loginURL, url.PathEscape(tenant)),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Send posts activity to its conversation, as a reply when ReplyToID is set.
func (c *Connector) Send(ctx context.Context, activity *Activity) error {
	if activity.ServiceURL == "" || activity.Conversation == nil || activity.Conversation.ID == "" {
		return errors.New("activity has no service url or conversation")
	}

	u := strings.TrimRight(activity.ServiceURL, "/") + "/v3/conversations/" + url.PathEscape(activity.Conversation.ID) + "/activities"
	if activity.ReplyToID != "" {
		u += "/" + url.PathEscape(activity.ReplyToID)
	}

	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.appID != "" {
		token, err := c.tokenSource().Token()
		if err != nil {
			return fmt.Errorf("acquire connector token: %w", err)
		}
		token.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("connector returned status %d: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// tokenSource returns the cached client-credentials token source. Tokens
// are fetched with the connector's HTTP client and reused until shortly
// before they expire.
func (c *Connector) tokenSource() oauth2.TokenSource {
	c.once.Do(func() {
		cfg := clientcredentials.Config{
			ClientID:     c.appID,
			ClientSecret: c.password,
			TokenURL:     c.tokenURL,
			Scopes:       []string{botScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		c.tokens = cfg.TokenSource(ctx)
		c.logger.Debug("Initialized connector token source", "token_url", c.tokenURL)
	})
	return c.tokens
}
