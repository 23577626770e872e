package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatContent(t *testing.T, content string) string {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(raw)
}

func singleCandidate() []Candidate {
	return []Candidate{{Text: "Foo", Page: 3, HeuristicConfidence: 0.5, HeuristicLevel: 2}}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid openai", Config{Provider: ProviderOpenAI, APIKey: "sk-test"}, false},
		{"valid azure", Config{Provider: ProviderAzure, APIKey: "key", Endpoint: "https://res.openai.azure.com/x"}, false},
		{"missing key", Config{Provider: ProviderOpenAI}, true},
		{"azure without endpoint", Config{Provider: ProviderAzure, APIKey: "key"}, true},
		{"unknown provider", Config{Provider: "anthropic", APIKey: "key"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateBatch_BearerAuthAndContract(t *testing.T) {
	var gotAuth, gotContentType string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, chatContent(t,
			`[{"text":"Foo","page":3,"confidence":0.9,"level":1,"is_heading":true}]`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{Provider: ProviderOpenAI, APIKey: "sk-test", Endpoint: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	refs, err := client.RateBatch(context.Background(), singleCandidate())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, Refinement{Text: "Foo", Page: 3, Confidence: 0.9, Level: 1, IsHeading: true}, refs[0])

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.Equal(t, 0.0, gotReq.Temperature)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Contains(t, gotReq.Messages[1].Content, `"text":"Foo"`)
}

func TestRateBatch_AzureAPIKeyHeader(t *testing.T) {
	var gotAPIKey, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("api-key")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, chatContent(t, `[]`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{Provider: ProviderAzure, APIKey: "azkey", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = client.RateBatch(context.Background(), singleCandidate())
	require.NoError(t, err)
	assert.Equal(t, "azkey", gotAPIKey)
	assert.Empty(t, gotAuth)
}

func TestRateBatch_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(Config{Provider: ProviderOpenAI, APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = client.RateBatch(context.Background(), singleCandidate())
	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusTooManyRequests, reqErr.StatusCode)
}

func TestRateBatch_NonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatContent(t, "I'm sorry, I can't do that."))
	}))
	defer srv.Close()

	client, err := NewClient(Config{Provider: ProviderOpenAI, APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = client.RateBatch(context.Background(), singleCandidate())
	assert.Error(t, err)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{Provider: ProviderOpenAI})
	assert.Error(t, err)
}

// The validation gate must hold for all possible provider responses,
// including adversarial ones.
func TestDecodeRefinements(t *testing.T) {
	batch := []Candidate{
		{Text: "Foo", Page: 3},
		{Text: "Bar", Page: 4},
	}

	tests := []struct {
		name    string
		content string
		want    []Refinement
	}{
		{
			name:    "fabricated entries are dropped",
			content: `[{"text":"Foo","page":3,"confidence":0.9,"level":1,"is_heading":true},{"text":"Invented","page":9,"confidence":1,"level":1,"is_heading":true}]`,
			want:    []Refinement{{Text: "Foo", Page: 3, Confidence: 0.9, Level: 1, IsHeading: true}},
		},
		{
			name:    "empty array",
			content: `[]`,
			want:    nil,
		},
		{
			name:    "wrapped object uses first array field",
			content: `{"results":[{"text":"Bar","page":4,"confidence":0.5,"level":2,"is_heading":true}]}`,
			want:    []Refinement{{Text: "Bar", Page: 4, Confidence: 0.5, Level: 2, IsHeading: true}},
		},
		{
			// Two array fields in the wrapper; the one appearing
			// first in the document wins, regardless of key name.
			name:    "wrapped object with several arrays picks the first",
			content: `{"zz":[{"text":"Foo","page":3,"confidence":0.9,"level":1,"is_heading":true}],"aa":[{"text":"Bar","page":4,"confidence":0.5,"level":2,"is_heading":true}]}`,
			want:    []Refinement{{Text: "Foo", Page: 3, Confidence: 0.9, Level: 1, IsHeading: true}},
		},
		{
			name:    "missing required fields are dropped",
			content: `[{"text":"Foo","page":3},{"page":3,"confidence":0.5,"level":1},{"text":"Foo","confidence":0.5,"level":1}]`,
			want:    nil,
		},
		{
			name:    "type-mismatched fields are dropped",
			content: `[{"text":42,"page":3,"confidence":0.9,"level":1},{"text":"Foo","page":"three","confidence":0.9,"level":1},{"text":"Foo","page":3,"confidence":"high","level":1},{"text":"Foo","page":3,"confidence":0.9,"level":"one"},{"text":"Foo","page":3,"confidence":0.9,"level":1,"is_heading":"yes"}]`,
			want:    nil,
		},
		{
			name:    "confidence clamped and level floored",
			content: `[{"text":"Foo","page":3,"confidence":7.5,"level":-2,"is_heading":true},{"text":"Bar","page":4,"confidence":-1,"level":2.6,"is_heading":true}]`,
			want: []Refinement{
				{Text: "Foo", Page: 3, Confidence: 1, Level: 1, IsHeading: true},
				{Text: "Bar", Page: 4, Confidence: 0, Level: 3, IsHeading: true},
			},
		},
		{
			name:    "is_heading defaults true only when absent",
			content: `[{"text":"Foo","page":3,"confidence":0.9,"level":1},{"text":"Bar","page":4,"confidence":0.1,"level":1,"is_heading":false}]`,
			want: []Refinement{
				{Text: "Foo", Page: 3, Confidence: 0.9, Level: 1, IsHeading: true},
				{Text: "Bar", Page: 4, Confidence: 0.1, Level: 1, IsHeading: false},
			},
		},
		{
			name:    "case-mismatched text is a fabrication",
			content: `[{"text":"foo","page":3,"confidence":0.9,"level":1,"is_heading":true}]`,
			want:    nil,
		},
		{
			name:    "non-object items are dropped",
			content: `["Foo", 3, null, [{"text":"Foo"}]]`,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRefinements(tt.content, batch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRefinements_NonJSON(t *testing.T) {
	_, err := decodeRefinements("not json at all", singleCandidate())
	assert.Error(t, err)
}
