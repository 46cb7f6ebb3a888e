package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInvokerSuccess(t *testing.T) {
	inv := NewInvoker(SummarizerFunc(func(ctx context.Context, text string) (string, error) {
		return "  Normal vitals.  ", nil
	}), nil)

	summary, err := inv.Invoke(context.Background(), "Vitals normal.")
	if err != nil {
		t.Fatal(err)
	}
	if summary != "Normal vitals." {
		t.Errorf("summary = %q", summary)
	}
}

func TestInvokerConvertsFailures(t *testing.T) {
	tests := []struct {
		name string
		fn   SummarizerFunc
	}{
		{"error", func(ctx context.Context, text string) (string, error) {
			return "", errors.New("rate limited")
		}},
		{"empty", func(ctx context.Context, text string) (string, error) {
			return "   ", nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewInvoker(tt.fn, nil)
			_, err := inv.Invoke(context.Background(), "text")
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestInvokerNilSummarizer(t *testing.T) {
	inv := NewInvoker(nil, nil)
	_, err := inv.Invoke(context.Background(), "text")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestClientSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "Vitals normal." {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "Normal vitals."}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "sk-test"})
	summary, err := c.Summarize(context.Background(), "Vitals normal.")
	if err != nil {
		t.Fatal(err)
	}
	if summary != "Normal vitals." {
		t.Errorf("summary = %q", summary)
	}
}

func TestClientSummarizeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL})
	if _, err := c.Summarize(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
