package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"data":{"text":"A short narrative."}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", "gpt-4o-mini")
	text, err := client.Generate(context.Background(), "Summarize this evaluation.")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "A short narrative." {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "gpt-4o-mini" || got.Prompt != "Summarize this evaluation." {
		t.Fatalf("unexpected request %+v", got)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestGenerateGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "gpt-4o-mini")
	if _, err := client.Generate(context.Background(), "prompt"); err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestGenerateNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "gpt-4o-mini")
	if _, err := client.Generate(context.Background(), "prompt"); err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status error, got %v", err)
	}
}
