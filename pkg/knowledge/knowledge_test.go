// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/flowbot/pkg/core/config"
)

type fakeSearcher struct {
	docs    []Document
	err     error
	queries []string
	tops    []int
}

func (f *fakeSearcher) Search(_ context.Context, query string, top int) ([]Document, error) {
	f.queries = append(f.queries, query)
	f.tops = append(f.tops, top)
	return f.docs, f.err
}

func storeDoc() Document {
	return Document{
		"StoreName":        "Downtown",
		"StoreId":          float64(1042),
		"Address":          "12 Main St",
		"City":             "Austin",
		"State":            "TX",
		"StoreLeader":      "Dana Ruiz",
		"StoreLeaderEmail": "dana@example.com",
		"DistrictName":     "Central",
		"DistrictLeader":   "Sam Lee",
		"Monday":           "8-9",
		"Saturday":         "9-6",
	}
}

func TestFormatStore(t *testing.T) {
	got := FormatStore(StoreFromDocument(storeDoc()))
	want := strings.Join([]string{
		"Store: Downtown (ID: 1042)",
		"Location: 12 Main St, Austin, TX",
		"Store Leader: Dana Ruiz (dana@example.com)",
		"District: Central - Sam Lee",
		"Region: N/A - N/A",
		"Area: N/A - N/A",
		"Hours: Mon 8-9 | Tue Closed | Wed Closed | Thu Closed | Fri Closed | Sat 9-6 | Sun Closed",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestFormatStore_InfoAndDefaults(t *testing.T) {
	got := FormatStore(Store{Address: "1 Elm", City: "Waco", AdditionalInfo: "Pharmacy closed on holidays"})
	assert.True(t, strings.HasPrefix(got, "Store: Unknown (ID: N/A)\nLocation: 1 Elm, Waco, N/A\n"))
	assert.True(t, strings.HasSuffix(got, "\nInfo: Pharmacy closed on holidays"))
}

func TestFormatDocument(t *testing.T) {
	want := "\nDOCUMENT INFORMATION\n====================\nTitle: Returns Policy\n\nCONTENT\n-------\nKeep receipts.\n"
	assert.Equal(t, want, FormatDocument("Returns Policy", "Keep receipts."))
	assert.Contains(t, FormatDocument("", ""), "Title: Unknown")
	assert.Contains(t, FormatDocument("", ""), noContent)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		doc    Document
		wantOK bool
		want   []string
	}{
		{
			name:   "store record",
			doc:    storeDoc(),
			wantOK: true,
			want:   []string{"Store: Downtown (ID: 1042)"},
		},
		{
			name:   "chunk wins over content",
			doc:    Document{"Title": "Handbook", "chunk": "  chunk text  ", "content": "content text"},
			wantOK: true,
			want:   []string{"Title: Handbook", "\nchunk text\n"},
		},
		{
			name:   "content with default title",
			doc:    Document{"content": "plain content"},
			wantOK: true,
			want:   []string{"Title: Document", "plain content"},
		},
		{
			name:   "markup stripped",
			doc:    Document{"chunk": "<p>Open <b>daily</b></p><script>x()</script>"},
			wantOK: true,
			want:   []string{"Open daily"},
		},
		{
			name:   "chunk line breaks kept",
			doc:    Document{"Title": "Returns", "chunk": "Policy 4.2\nRefunds within 30 days<br>Receipt required"},
			wantOK: true,
			want:   []string{"\nPolicy 4.2\nRefunds within 30 days\nReceipt required\n"},
		},
		{
			name: "placeholder content skipped",
			doc:  Document{"content": "[No content available]"},
		},
		{
			name: "whitespace content skipped",
			doc:  Document{"chunk": "   "},
		},
		{
			name: "city without address is not a store",
			doc:  Document{"City": "Austin"},
		},
		{
			name: "non-string content ignored",
			doc:  Document{"content": 42},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Format(tt.doc)
			assert.Equal(t, tt.wantOK, ok)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			if !tt.wantOK {
				assert.Empty(t, got)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	fs := &fakeSearcher{docs: []Document{
		storeDoc(),
		{"content": "[No content available]"},
		{"Title": "FAQ", "chunk": "Returns take 5 days."},
	}}
	svc := NewService(fs, nil, 0, nil)

	got := svc.Lookup(context.Background(), "returns")
	sections := strings.Split(got, "\n\n")
	assert.True(t, strings.HasPrefix(got, "Store: Downtown"))
	assert.Contains(t, got, "Returns take 5 days.")
	assert.Greater(t, len(sections), 1)
	assert.Equal(t, []int{DefaultTop}, fs.tops)
}

func TestLookup_Expansion(t *testing.T) {
	fs := &fakeSearcher{}
	svc := NewService(fs, map[string]string{"TX": "Texas", "CA": "California"}, 5, nil)

	svc.Lookup(context.Background(), "stores in TX")
	svc.Lookup(context.Background(), "stores in CA or TX")
	svc.Lookup(context.Background(), "stores nearby")

	require.Len(t, fs.queries, 3)
	assert.Equal(t, "stores in TX Texas", fs.queries[0])
	// only the first matching term in sorted order is expanded
	assert.Equal(t, "stores in CA California or TX", fs.queries[1])
	assert.Equal(t, "stores nearby", fs.queries[2])
	assert.Equal(t, []int{5, 5, 5}, fs.tops)
}

func TestLookup_Fallbacks(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, NotConfigured, NewService(nil, nil, 0, nil).Lookup(ctx, "q"))
	assert.Equal(t, NoResults, NewService(&fakeSearcher{}, nil, 0, nil).Lookup(ctx, "q"))
	assert.Equal(t, NoResults, NewService(&fakeSearcher{docs: []Document{{"foo": "bar"}}}, nil, 0, nil).Lookup(ctx, "q"))

	got := NewService(&fakeSearcher{err: errors.New("boom")}, nil, 0, nil).Lookup(ctx, "q")
	assert.Equal(t, "Error querying Azure Search: boom", got)
}

func TestAzureSearch_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/indexes/stores/docs/search", r.URL.Path)
		assert.Equal(t, DefaultAzureAPIVersion, r.URL.Query().Get("api-version"))
		assert.Equal(t, "search-key", r.Header.Get("api-key"))

		var req azureSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "milk TX Texas", req.Search)
		assert.Equal(t, "Title,chunk", req.Select)
		assert.Equal(t, 3, req.Top)
		assert.Equal(t, "any", req.SearchMode)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"@odata.context":"x","value":[{"@search.score":1.5,"Title":"Dairy","chunk":"Aisle 4"}]}`))
	}))
	defer server.Close()

	a := NewAzureSearch(server.URL+"/", "search-key", "stores", "", "Title", "chunk")
	docs, err := a.Search(context.Background(), "milk TX Texas", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Dairy", docs[0].Field("Title"))
	assert.Equal(t, "Aisle 4", docs[0].Field("chunk"))
}

func TestAzureSearch_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid index"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	a := NewAzureSearch(server.URL, "k", "missing", "")
	_, err := a.Search(context.Background(), "q", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "Invalid index")
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	svc, err := FromConfig(ctx, config.SearchConfig{Provider: "azure"}, nil)
	require.NoError(t, err)
	assert.Equal(t, NotConfigured, svc.Lookup(ctx, "q"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"value":[{"content":"From the index"}]}`))
	}))
	defer server.Close()

	svc, err = FromConfig(ctx, config.SearchConfig{
		Provider:  "azure",
		Endpoint:  server.URL,
		APIKey:    "k",
		IndexName: "idx",
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, svc.Lookup(ctx, "q"), "From the index")

	_, err = FromConfig(ctx, config.SearchConfig{Provider: "bing", Endpoint: "e", APIKey: "k", IndexName: "i"}, nil)
	assert.ErrorContains(t, err, "unknown knowledge provider")
}

func TestRegistry(t *testing.T) {
	assert.True(t, Providers.Has("azure"))

	_, err := Providers.New(context.Background(), "azure", map[string]string{"endpoint": "https://x"})
	assert.ErrorContains(t, err, "required")
}
