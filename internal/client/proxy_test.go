package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio-go/internal/studio"
)

// chatServer returns an httptest server that answers every chat call
// with content and hands the raw request body to capture.
func chatServer(t *testing.T, content string, capture *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading request body: %v", err)
		}
		*capture = body
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func TestEnhancePromptRendersReferences(t *testing.T) {
	var body []byte
	srv := chatServer(t, "a cinematic red car", &body)
	defer srv.Close()

	c := NewProxyClient(srv.URL, "key", "vision-model", studio.NopLogger{})

	got, err := c.EnhancePrompt(context.Background(), "red car ad", []studio.ReferenceImage{
		{
			DataURL:  "data:image/png;base64,Zm9v",
			Keywords: "red car, chrome wheels",
			Type:     studio.UploadSubject,
			Filename: "car.png",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "a cinematic red car" {
		t.Errorf("enhanced prompt = %q", got)
	}

	req := string(body)
	if !strings.Contains(req, "KEYWORDS: [red car, chrome wheels]") {
		t.Errorf("request does not carry the analysis keywords:\n%s", req)
	}
	if !strings.Contains(req, "REFERENCE TYPE: [SUBJECT]") {
		t.Errorf("request does not carry the reference type:\n%s", req)
	}
	if !strings.Contains(req, "data:image/png;base64,Zm9v") {
		t.Errorf("request does not carry the reference image data:\n%s", req)
	}
}

func TestEnhancePromptWithoutReferences(t *testing.T) {
	var body []byte
	srv := chatServer(t, "enhanced", &body)
	defer srv.Close()

	c := NewProxyClient(srv.URL, "key", "vision-model", studio.NopLogger{})

	if _, err := c.EnhancePrompt(context.Background(), "anything", nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "NO REFERENCE IMAGES PROVIDED.") {
		t.Errorf("empty-reference marker missing:\n%s", body)
	}
}

func TestEnhancePromptEmptyKeywordsFallback(t *testing.T) {
	var body []byte
	srv := chatServer(t, "enhanced", &body)
	defer srv.Close()

	c := NewProxyClient(srv.URL, "key", "vision-model", studio.NopLogger{})

	_, err := c.EnhancePrompt(context.Background(), "anything", []studio.ReferenceImage{
		{DataURL: "data:image/png;base64,Zm9v", Type: studio.UploadStyle},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "KEYWORDS: [None]") {
		t.Errorf("missing keywords not rendered as None:\n%s", body)
	}
}

func TestAnalyzeSendsCategoryPrompt(t *testing.T) {
	var body []byte
	srv := chatServer(t, "brick walls, fog", &body)
	defer srv.Close()

	c := NewProxyClient(srv.URL, "key", "vision-model", studio.NopLogger{})

	got, err := c.Analyze(context.Background(), "Zm9v", studio.CategoryScene, "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if got != "brick walls, fog" {
		t.Errorf("analysis = %q", got)
	}

	req := string(body)
	if !strings.Contains(req, "environment, background elements") {
		t.Errorf("scene framing missing from prompt:\n%s", req)
	}
	if !strings.Contains(req, "data:image/png;base64,Zm9v") {
		t.Errorf("image payload missing:\n%s", req)
	}
}

func TestAnalyzeProxyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewProxyClient(srv.URL, "key", "vision-model", studio.NopLogger{})

	_, err := c.Analyze(context.Background(), "Zm9v", studio.CategorySubject, "")
	if !errors.Is(err, studio.ErrAnalysis) {
		t.Fatalf("err = %v, want ErrAnalysis", err)
	}
}
