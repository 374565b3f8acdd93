package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"ollama", "*llm.ollamaProvider"},
		{"openai", "*llm.openAIProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{Provider: tt.provider, Model: "test-model"}
			p, err := NewProvider(cfg)
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			if got := fmt.Sprintf("%T", p); got != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, got, tt.wantType)
			}
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "doesnotexist"}); err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
}

func TestNewProviderEmpty(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Fatal("expected error for empty provider, got nil")
	}
}

func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"ollama", "http://localhost:11434"},
		{"openai", "https://api.openai.com"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", tt.provider, err)
			}
			base := reflect.ValueOf(p).Elem().FieldByName("base")
			gotURL := base.FieldByName("cfg").FieldByName("BaseURL").String()
			if gotURL != tt.wantURL {
				t.Errorf("default BaseURL for %q = %q, want %q", tt.provider, gotURL, tt.wantURL)
			}
		})
	}
}

func TestCustomProviderNoDefaultURL(t *testing.T) {
	p, err := NewProvider(Config{Provider: "custom", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewProvider(custom): %v", err)
	}
	base := reflect.ValueOf(p).Elem().FieldByName("base")
	if got := base.FieldByName("cfg").FieldByName("BaseURL").String(); got != "" {
		t.Errorf("custom provider BaseURL = %q, want empty", got)
	}
}

// TestOpenAICompatEmbed exercises the shared embed() path against a fake
// /v1/embeddings endpoint, verifying index-based reordering.
func TestOpenAICompatEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0.2,0.2]},{"index":0,"embedding":[0.1,0.1]}]}`)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "m", BaseURL: srv.URL})
	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][0] != 0.2 {
		t.Fatalf("unexpected embed ordering: %+v", vecs)
	}
}

func TestAsEmbedderAdaptsSingleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.5,0.5,0.5]}]}`)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "m", BaseURL: srv.URL})
	e := AsEmbedder(p)
	vec, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("unexpected vector: %+v", vec)
	}
}
