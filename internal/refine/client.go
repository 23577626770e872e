package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Candidate is one heading sent out for re-scoring.
type Candidate struct {
	Text                string  `json:"text"`
	Page                int     `json:"page"`
	HeuristicConfidence float64 `json:"heuristic_confidence"`
	HeuristicLevel      int     `json:"heuristic_level"`
}

// Refinement is one validated, accepted item of a provider response.
type Refinement struct {
	Text       string
	Page       int
	Confidence float64
	Level      int
	// IsHeading false means the candidate is likely body text and
	// should be dropped by the caller.
	IsHeading bool
}

// Key builds the identity key refinements are merged back under. Text
// is verbatim and case-sensitive; the validation gate matches exactly.
func Key(page int, text string) string {
	return fmt.Sprintf("%d::%s", page, text)
}

const systemPrompt = `You are a document structure analyzer for enterprise PDF documents.

You receive a JSON array of candidate headings extracted heuristically from a PDF.
Each candidate has: text (verbatim from PDF), page number, heuristic_confidence, heuristic_level.

Your task:
1. Decide whether each candidate is a genuine section heading or a false positive
   (footer, running header, caption, body sentence, etc.).
2. Assign a refined confidence score 0.0-1.0.
3. Assign the correct heading level (1 = top-level chapter, 2 = sub-section, ...).

STRICT RULES - violating any rule makes output invalid:
- DO NOT invent, modify, rephrase, translate, or truncate any "text" value.
- DO NOT add entries absent from the input.
- Return ONLY a JSON array - no markdown, no prose, no wrapper keys.
- Each element must be exactly:
  { "text": <unchanged string>, "page": <integer>, "confidence": <float 0-1>, "level": <integer >=1>, "is_heading": <boolean> }
- Preserve original document order.
- If an entry is not a heading, set "is_heading": false and confidence <= 0.25.`

// RequestError is a non-2xx provider response.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, body)
}

// Client issues rating requests against a chat-completions provider.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient validates the configuration and returns a client.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid refinement configuration: %w", err)
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// RateBatch sends one batch of candidates and returns only the items
// that survive the validation gate. Entries the provider fabricated,
// mangled, or mistyped are silently dropped; noisy output is expected
// behavior, not an error.
func (c *Client) RateBatch(ctx context.Context, batch []Candidate) ([]Refinement, error) {
	userPrompt, err := buildUserPrompt(batch)
	if err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.config.model(),
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.url(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.Provider == ProviderAzure {
		httpReq.Header.Set("api-key", c.config.APIKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response wrapper: %w", err)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty provider response")
	}

	return decodeRefinements(apiResp.Choices[0].Message.Content, batch)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func buildUserPrompt(batch []Candidate) (string, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}
	return fmt.Sprintf("Analyze these %d candidates and return the JSON array:\n\n%s", len(batch), payload), nil
}

// decodeRefinements parses the provider content and validates every
// item against the input batch. The content may be a bare array or an
// object wrapping one; anything else yields zero refinements. Per
// item: required fields must be present and correctly typed, the
// (page, text) pair must exist verbatim in the input, confidence is
// clamped to [0,1], level is rounded and floored at 1, and is_heading
// defaults to true only when the field is entirely absent.
func decodeRefinements(content string, batch []Candidate) ([]Refinement, error) {
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("provider returned non-JSON content")
	}

	items := firstArray(content)

	inputSet := make(map[string]struct{}, len(batch))
	for _, c := range batch {
		inputSet[Key(c.Page, c.Text)] = struct{}{}
	}

	var results []Refinement
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		text, ok := fields["text"].(string)
		if !ok {
			continue
		}
		page, ok := asInt(fields["page"])
		if !ok {
			continue
		}
		confidence, ok := fields["confidence"].(float64)
		if !ok {
			continue
		}
		levelNum, ok := fields["level"].(float64)
		if !ok {
			continue
		}

		isHeading := true
		if raw, present := fields["is_heading"]; present {
			b, ok := raw.(bool)
			if !ok {
				continue
			}
			isHeading = b
		}

		if _, known := inputSet[Key(page, text)]; !known {
			continue // fabricated or mismatched entry
		}

		level := int(math.Round(levelNum))
		if level < 1 {
			level = 1
		}

		results = append(results, Refinement{
			Text:       text,
			Page:       page,
			Confidence: clamp01(confidence),
			Level:      level,
			IsHeading:  isHeading,
		})
	}

	return results, nil
}

// firstArray returns the first JSON array in document order, wherever
// it is nested. Providers wrap the array in an object with an arbitrary
// key often enough that a fixed key lookup is not reliable; token order
// keeps the pick deterministic when several arrays are present.
func firstArray(content string) []any {
	dec := json.NewDecoder(strings.NewReader(content))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		if d, ok := tok.(json.Delim); ok && d == '[' {
			items := []any{}
			for dec.More() {
				var v any
				if err := dec.Decode(&v); err != nil {
					return nil
				}
				items = append(items, v)
			}
			return items
		}
	}
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
