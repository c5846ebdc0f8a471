package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/booktalk/internal/config"
	"github.com/kalambet/booktalk/internal/ollama"
	"github.com/kalambet/booktalk/internal/proxy"
)

func TestBuildBackend_OpenAI(t *testing.T) {
	b, err := buildBackend(ctx, config.BackendConfig{
		Provider:    config.ProviderOpenAI,
		APIKey:      "sk-test",
		Temperature: 0.7,
	}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.(*proxy.Client); !ok {
		t.Errorf("backend = %T, want *proxy.Client", b)
	}
}

func TestBuildBackend_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[{"name":"llama3.1"}]}`))
	}))
	defer srv.Close()

	var progress bytes.Buffer
	b, err := buildBackend(ctx, config.BackendConfig{
		Provider: config.ProviderOllama,
		BaseURL:  srv.URL,
		Model:    "llama3.1",
	}, &progress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ob, ok := b.(*ollama.Backend)
	if !ok {
		t.Fatalf("backend = %T, want *ollama.Backend", b)
	}
	if ob.Model() != "llama3.1" {
		t.Errorf("model = %q", ob.Model())
	}
	if !strings.Contains(progress.String(), "ready") {
		t.Errorf("progress = %q, want readiness line", progress.String())
	}
}

func TestBuildBackend_OllamaDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := buildBackend(ctx, config.BackendConfig{Provider: config.ProviderOllama, BaseURL: url}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "not running") {
		t.Errorf("err = %v, want Ollama not running", err)
	}
}

func TestBuildBackend_Unknown(t *testing.T) {
	if _, err := buildBackend(ctx, config.BackendConfig{Provider: "llamafile"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelOr(t *testing.T) {
	if got := modelOr("", "gpt-4o"); got != "gpt-4o" {
		t.Errorf("modelOr empty = %q", got)
	}
	if got := modelOr("gpt-4o-mini", "gpt-4o"); got != "gpt-4o-mini" {
		t.Errorf("modelOr set = %q", got)
	}
}
