package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DustinWehr/LinWhisper/vault"
)

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func TestRenderPrompt(t *testing.T) {
	tests := []struct {
		name     string
		template string
		in       PromptInput
		want     string
	}{
		{
			name:     "transcript substitution",
			template: "Summarize: {{transcript}}",
			in:       PromptInput{Transcript: "hello world"},
			want:     "Summarize: hello world",
		},
		{
			name:     "language substitution",
			template: "Reply in {{language}}: {{transcript}}",
			in:       PromptInput{Transcript: "hi", Language: "en"},
			want:     "Reply in en: hi",
		},
		{
			name:     "unknown placeholder passes through",
			template: "{{foo}} {{transcript}}",
			in:       PromptInput{Transcript: "x"},
			want:     "{{foo}} x",
		},
		{
			name:     "context disabled renders empty",
			template: "ctx=[{{context}}] t={{transcript}}",
			in:       PromptInput{Transcript: "y", ContextAwareness: false},
			want:     "ctx=[] t=y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderPrompt(tt.template, tt.in); got != tt.want {
				t.Errorf("RenderPrompt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngineUnknownProvider(t *testing.T) {
	e := NewEngine(vault.NewMemory())
	_, err := e.Complete(context.Background(), "mystery", "m", "p")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestEngineMissingAPIKey(t *testing.T) {
	e := NewEngine(vault.NewMemory())
	for _, provider := range []string{"openai", "anthropic"} {
		t.Run(provider, func(t *testing.T) {
			_, err := e.Complete(context.Background(), provider, "m", "p")
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("err = %v, want ErrAuthenticationFailed", err)
			}
		})
	}
}

func TestOllamaComplete(t *testing.T) {
	var gotModel, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := decodeJSON(r, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) == 1 {
			gotContent = req.Messages[0].Content
		}
		if req.Stream {
			t.Error("stream = true, want false")
		}
		w.Write([]byte(`{"message": {"role": "assistant", "content": "  cleaned text  "}}`))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL)
	text, err := o.Complete(context.Background(), "Clean this up", "llama3.2")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "cleaned text" {
		t.Errorf("text = %q, want trimmed content", text)
	}
	if gotModel != "llama3.2" || gotContent != "Clean this up" {
		t.Errorf("request model=%q content=%q", gotModel, gotContent)
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL)
	_, err := o.Complete(context.Background(), "p", "missing")
	if !errors.Is(err, ErrPostProcessingFailed) {
		t.Errorf("err = %v, want ErrPostProcessingFailed", err)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	o := NewOllama("http://127.0.0.1:1")
	_, err := o.Complete(context.Background(), "p", "m")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestFakeRecordsCalls(t *testing.T) {
	f := &Fake{Text: "out"}
	text, err := f.Complete(context.Background(), "prompt one", "m1")
	if err != nil || text != "out" {
		t.Fatalf("Complete = %q, %v", text, err)
	}
	calls := f.Calls()
	if len(calls) != 1 || calls[0].Prompt != "prompt one" || calls[0].Model != "m1" {
		t.Errorf("calls = %+v", calls)
	}
}
