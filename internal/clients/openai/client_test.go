package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aquib-J/mysecondbrain-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, rt roundTripFunc) *client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return &client{
		log:        log,
		baseURL:    "https://openai.local",
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		embedModel: "text-embedding-3-small",
		httpClient: &http.Client{Transport: rt},
		maxRetries: 2,
	}
}

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(raw))),
		Header:     make(http.Header),
	}
}

func TestEmbedPlacesVectorsByResponseIndex(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		// Out of order on purpose.
		return jsonResponse(t, 200, map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0.2}},
				{"index": 0, "embedding": []float64{0.1}},
			},
		}), nil
	})

	out, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(out) != 2 || out[0][0] != 0.1 || out[1][0] != 0.2 {
		t.Fatalf("vectors not ordered by index: %v", out)
	}
}

func TestEmbedFailsWhenIndicesMissing(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, 200, map[string]any{
			"data": []map[string]any{
				{"index": 0, "embedding": []float64{0.1}},
			},
		}), nil
	})

	if _, err := c.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error for missing embedding index")
	}
}

func TestEmbedBlanksInputsNeverSentEmpty(t *testing.T) {
	var sent embeddingsRequest
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		return jsonResponse(t, 200, map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float64{0.1}}},
		}), nil
	})

	if _, err := c.Embed(context.Background(), []string{"   "}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(sent.Input) != 1 || sent.Input[0] == "" {
		t.Fatalf("blank input must be padded, got %q", sent.Input)
	}
}

func TestDoRetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			resp := jsonResponse(t, 429, map[string]any{"error": "rate limited"})
			resp.Header.Set("Retry-After", "0")
			return resp, nil
		}
		return jsonResponse(t, 200, map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float64{0.5}}},
		}), nil
	})

	out, err := c.Embed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("embed after retry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if out[0][0] != 0.5 {
		t.Fatalf("unexpected vector %v", out)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		return jsonResponse(t, 400, map[string]any{"error": "bad request"}), nil
	})

	if _, err := c.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error for 400")
	}
	if attempts != 1 {
		t.Fatalf("400 must not be retried, got %d attempts", attempts)
	}
}

func responsesPayload(text string) map[string]any {
	return map[string]any{
		"output": []map[string]any{
			{
				"type": "message",
				"role": "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": text},
				},
			},
		},
	}
}

func TestGenerateJSONParsesStructuredOutput(t *testing.T) {
	var sent responsesRequest
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/responses" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		return jsonResponse(t, 200, responsesPayload(`{"type":"aggregation","operation":"sum"}`)), nil
	})

	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "intent", map[string]any{"type": "object"})
	if err != nil {
		t.Fatalf("generate json: %v", err)
	}
	if obj["type"] != "aggregation" || obj["operation"] != "sum" {
		t.Fatalf("unexpected object %v", obj)
	}
	if sent.Text.Format["type"] != "json_schema" || sent.Text.Format["name"] != "intent" {
		t.Fatalf("schema format not sent: %v", sent.Text.Format)
	}
}

func TestGenerateJSONRejectsInvalidModelOutput(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, 200, responsesPayload("not json at all")), nil
	})

	if _, err := c.GenerateJSON(context.Background(), "sys", "user", "intent", map[string]any{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGenerateTextConcatenatesOutputSegments(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, 200, map[string]any{
			"output": []map[string]any{
				{
					"type": "message",
					"role": "assistant",
					"content": []map[string]any{
						{"type": "output_text", "text": "hello "},
						{"type": "output_text", "text": "world"},
					},
				},
			},
		}), nil
	})

	text, err := c.GenerateText(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("generate text: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestGenerateTextSurfacesRefusal(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, 200, map[string]any{"output": []map[string]any{}, "refusal": "no"}), nil
	})

	_, err := c.GenerateText(context.Background(), "sys", "user")
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected refusal error, got %v", err)
	}
}

func TestDoRetriesExhaustBudget(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		resp := jsonResponse(t, 503, map[string]any{"error": "down"})
		resp.Header.Set("Retry-After", "0")
		return resp, nil
	})

	_, err := c.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	want := c.maxRetries + 1
	if attempts != want {
		t.Fatalf("expected %d attempts, got %d", want, attempts)
	}
	var msg string
	if err != nil {
		msg = err.Error()
	}
	if !strings.Contains(msg, fmt.Sprint(http.StatusServiceUnavailable)) {
		t.Fatalf("error should carry the status code: %v", err)
	}
}
