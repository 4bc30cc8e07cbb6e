// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultAzureAPIVersion is the Azure AI Search REST API version.
const DefaultAzureAPIVersion = "2023-11-01"

func init() {
	Providers.Register("azure", func(_ context.Context, params map[string]string) (Searcher, error) {
		endpoint, apiKey, index := params["endpoint"], params["api_key"], params["index_name"]
		if endpoint == "" || apiKey == "" || index == "" {
			return nil, fmt.Errorf("azure: endpoint, api_key and index_name parameters are required")
		}
		var fields []string
		if sel := params["select"]; sel != "" {
			fields = strings.Split(sel, ",")
		}
		return NewAzureSearch(endpoint, apiKey, index, params["api_version"], fields...), nil
	})
}

// AzureSearch queries an Azure AI Search index over its REST API.
type AzureSearch struct {
	endpoint   string
	apiKey     string
	index      string
	apiVersion string
	fields     []string
	httpClient *http.Client
}

// NewAzureSearch creates a searcher for one index. fields limits the
// returned document fields; none returns all retrievable fields.
func NewAzureSearch(endpoint, apiKey, index, apiVersion string, fields ...string) *AzureSearch {
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}
	return &AzureSearch{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		index:      index,
		apiVersion: apiVersion,
		fields:     fields,
		httpClient: &http.Client{},
	}
}

// Search runs a simple query matching any term and returns the hits.
func (a *AzureSearch) Search(ctx context.Context, query string, top int) ([]Document, error) {
	reqBody := azureSearchRequest{
		Search:     query,
		Select:     strings.Join(a.fields, ","),
		Top:        top,
		SearchMode: "any",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u := a.endpoint + "/indexes/" + url.PathEscape(a.index) + "/docs/search?api-version=" + url.QueryEscape(a.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure search request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("azure search returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result azureSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return result.Value, nil
}

type azureSearchRequest struct {
	Search     string `json:"search"`
	Select     string `json:"select,omitempty"`
	Top        int    `json:"top"`
	SearchMode string `json:"searchMode"`
}

type azureSearchResponse struct {
	Value []Document `json:"value"`
}
