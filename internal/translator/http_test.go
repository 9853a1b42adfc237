package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMyMemoryService_Translate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("langpair"); got != "en|uk" {
			t.Errorf("expected langpair en|uk, got %q", got)
		}
		if got := r.URL.Query().Get("de"); got != "test@example.com" {
			t.Errorf("expected email parameter, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"responseData":   map[string]any{"translatedText": "Привіт", "match": 1.5},
			"responseStatus": 200,
		})
	}))
	defer server.Close()

	svc := NewMyMemoryService(ServiceConfig{Email: "test@example.com", BaseURL: server.URL})

	result, err := svc.Translate(context.Background(), Request{Text: "Hello", SourceLang: "en", TargetLang: "uk"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Привіт" {
		t.Errorf("expected 'Привіт', got %q", result.Text)
	}
	if result.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %v", result.Confidence)
	}
}

func TestMyMemoryService_Translate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"responseStatus":  403,
			"responseDetails": "INVALID LANGUAGE PAIR",
		})
	}))
	defer server.Close()

	svc := NewMyMemoryService(ServiceConfig{BaseURL: server.URL})

	result, err := svc.Translate(context.Background(), Request{Text: "Hello", TargetLang: "xx"})
	if err == nil {
		t.Error("expected error for API error status")
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
}

func TestMyMemoryService_Name(t *testing.T) {
	svc := NewMyMemoryService(ServiceConfig{})

	if svc.Name() != "mymemory" {
		t.Errorf("expected 'mymemory', got %q", svc.Name())
	}
}

func TestGoogleService_Translate_InvalidLanguage(t *testing.T) {
	svc := NewGoogleService(ServiceConfig{})

	result, err := svc.Translate(context.Background(), Request{Text: "Hello", TargetLang: "not a language"})
	if err == nil {
		t.Error("expected error for invalid target language")
	}
	if result == nil || result.Service != "google" {
		t.Fatalf("expected google result, got %+v", result)
	}
}

func newTestOllama(url string) *OllamaTranslator {
	svc := NewOllamaTranslator(ServiceConfig{BaseURL: url, Models: []string{"llama3.2"}})
	return svc
}

func TestOllamaTranslator_Translate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"response": "<think>hmm</think>\"Привіт\""})
	}))
	defer server.Close()

	svc := newTestOllama(server.URL)

	result, err := svc.Translate(context.Background(), Request{Text: "Hello", SourceLang: "en", TargetLang: "uk"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Привіт" {
		t.Errorf("expected 'Привіт', got %q", result.Text)
	}
	if result.Model != "llama3.2" {
		t.Errorf("expected model llama3.2, got %q", result.Model)
	}
}

func TestOllamaTranslator_Translate_GlossaryPrompt(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		prompt, _ = req["prompt"].(string)
		json.NewEncoder(w).Encode(map[string]any{"response": "Привіт, світ"})
	}))
	defer server.Close()

	svc := newTestOllama(server.URL)

	_, err := svc.Translate(context.Background(), Request{
		Text:       "Hello, world",
		SourceLang: "auto",
		TargetLang: "uk",
		Glossary:   map[string][]string{"world": {"світ", "мир"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "- world: світ / мир") {
		t.Errorf("expected glossary hint in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "from the detected language to uk") {
		t.Errorf("expected auto source language in prompt, got %q", prompt)
	}
}

func TestOllamaTranslator_Translate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestOllama(server.URL)

	result, err := svc.Translate(context.Background(), Request{Text: "Hello", SourceLang: "en", TargetLang: "uk"})
	if err == nil {
		t.Error("expected error for non-OK status")
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
}

func TestOllamaTranslator_IsAvailable_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestOllama(server.URL).IsAvailable(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOllamaTranslator_IsAvailable_NotRunning(t *testing.T) {
	svc := NewOllamaTranslator(ServiceConfig{BaseURL: "http://localhost:19999", Timeout: 100 * time.Millisecond})

	if err := svc.IsAvailable(context.Background()); err == nil {
		t.Error("expected error when Ollama not available")
	}
}

func TestOllamaTranslator_Defaults(t *testing.T) {
	svc := NewOllamaTranslator(ServiceConfig{})

	if svc.Name() != "ollama" {
		t.Errorf("expected 'ollama', got %q", svc.Name())
	}
	if len(svc.models) != len(DefaultOllamaModels) {
		t.Errorf("expected default models, got %v", svc.models)
	}
}

func TestBuild(t *testing.T) {
	services, err := Build(map[string]ServiceConfig{
		"ollama":   {Enabled: true},
		"google":   {Enabled: false},
		"mymemory": {Enabled: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(services) != 2 || services[0].Name() != "mymemory" || services[1].Name() != "ollama" {
		t.Errorf("expected [mymemory ollama], got %d services", len(services))
	}

	_, err = Build(map[string]ServiceConfig{"deepl": {Enabled: true}})
	if !errors.Is(err, ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}

	if got := Names(); len(got) != 5 || got[0] != "google" || got[4] != "systran" {
		t.Errorf("unexpected names %v", got)
	}
}

func TestBuildPrompt_Masked(t *testing.T) {
	plain := buildPrompt(Request{Text: "Hello", TargetLang: "uk"})
	if strings.Contains(plain, "[M0]") {
		t.Errorf("prompt without masks mentions tokens:\n%s", plain)
	}
	if !strings.Contains(plain, "the detected language") {
		t.Errorf("prompt should fall back to detected language:\n%s", plain)
	}

	masked := buildPrompt(Request{Text: "Click [M0]OK[M1]", SourceLang: "en", TargetLang: "uk", Masked: 2})
	if !strings.Contains(masked, "Keep every [M0], [M1], ... token exactly as written.") {
		t.Errorf("prompt missing mask hint:\n%s", masked)
	}
}

func TestOpenRouterService_Translate_Success(t *testing.T) {
	var got struct {
		Model    string              `json:"model"`
		Messages []map[string]string `json:"messages"`
	}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "Translation: \"Привіт, світ\""}}},
		})
	}))
	defer server.Close()

	svc := NewOpenRouterService(ServiceConfig{APIKey: "key", BaseURL: server.URL, Models: []string{"test/model"}})

	result, err := svc.Translate(context.Background(), Request{
		Text:       "Hello, world",
		SourceLang: "en",
		TargetLang: "uk",
		Glossary:   map[string][]string{"world": {"світ"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Привіт, світ" {
		t.Errorf("expected cleaned 'Привіт, світ', got %q", result.Text)
	}
	if result.Model != "test/model" || got.Model != "test/model" {
		t.Errorf("expected model test/model, got %q / %q", result.Model, got.Model)
	}
	if auth != "Bearer key" {
		t.Errorf("unexpected Authorization header %q", auth)
	}
	if len(got.Messages) != 2 || got.Messages[1]["content"] != "Hello, world" {
		t.Fatalf("unexpected messages %v", got.Messages)
	}
	if !strings.Contains(got.Messages[0]["content"], "- world: світ") {
		t.Errorf("expected glossary hint in system prompt, got %q", got.Messages[0]["content"])
	}
}

func TestOpenRouterService_Translate_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	svc := NewOpenRouterService(ServiceConfig{APIKey: "key", BaseURL: server.URL})
	_, err := svc.Translate(context.Background(), Request{Text: "Hello", TargetLang: "uk"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}

	noKey := NewOpenRouterService(ServiceConfig{BaseURL: server.URL})
	if _, err := noKey.Translate(context.Background(), Request{Text: "Hello", TargetLang: "uk"}); err == nil {
		t.Error("expected error without API key")
	}
	if err := noKey.IsAvailable(context.Background()); err == nil {
		t.Error("expected IsAvailable to fail without API key")
	}
	if len(noKey.models) != len(DefaultOpenRouterModels) {
		t.Errorf("expected default models, got %v", noKey.models)
	}
}

func TestSystranService_Translate_Success(t *testing.T) {
	var got map[string]any
	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translation/text/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		key = r.Header.Get("X-RapidAPI-Key")
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"outputs": []map[string]string{{"output": "Привіт"}}})
	}))
	defer server.Close()

	svc := NewSystranService(ServiceConfig{APIKey: "key", BaseURL: server.URL})

	result, err := svc.Translate(context.Background(), Request{Text: "Hello", SourceLang: "en", TargetLang: "uk"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Привіт" || result.Service != "systran" {
		t.Errorf("unexpected result %+v", result)
	}
	if key != "key" {
		t.Errorf("unexpected X-RapidAPI-Key %q", key)
	}
	if got["source"] != "en" || got["target"] != "uk" {
		t.Errorf("unexpected request body %v", got)
	}
}

func TestSystranService_Translate_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"outputs": []map[string]string{}})
	}))
	defer server.Close()

	svc := NewSystranService(ServiceConfig{APIKey: "key", BaseURL: server.URL})
	if _, err := svc.Translate(context.Background(), Request{Text: "Hello", TargetLang: "uk"}); err == nil {
		t.Error("expected error for empty outputs")
	}

	noKey := NewSystranService(ServiceConfig{BaseURL: server.URL})
	if _, err := noKey.Translate(context.Background(), Request{Text: "Hello", TargetLang: "uk"}); err == nil {
		t.Error("expected error without API key")
	}
}
