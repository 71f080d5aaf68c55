// Package client talks to an OpenAI-compatible proxy for vision
// analysis, prompt enhancement, and image generation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"studio-go/internal/studio"
)

// ProxyClient implements the Analyzer, Generator, ModelCatalog and
// Enhancer interfaces against a single proxy endpoint.
type ProxyClient struct {
	baseURL     string
	apiKey      string
	visionModel string
	httpc       *http.Client
	logger      studio.Logger
}

func NewProxyClient(baseURL, apiKey, visionModel string, logger studio.Logger) *ProxyClient {
	if visionModel == "" {
		visionModel = studio.DefaultModelID
	}
	return &ProxyClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		visionModel: visionModel,
		httpc:       &http.Client{Timeout: 120 * time.Second},
		logger:      logger,
	}
}

var (
	_ studio.Analyzer     = (*ProxyClient)(nil)
	_ studio.Generator    = (*ProxyClient)(nil)
	_ studio.ModelCatalog = (*ProxyClient)(nil)
	_ studio.Enhancer     = (*ProxyClient)(nil)
)

// Message content parts as the proxy expects them.

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	N        int           `json:"n,omitempty"`
	Seed     int64         `json:"seed,omitempty"`
	ImageCfg *imageConfig  `json:"image_config,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio"`
	Count       int    `json:"count"`
	Seed        int64  `json:"seed"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				URL      string    `json:"url"`
				B64JSON  string    `json:"b64_json"`
				ImageURL *imageURL `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (c *ProxyClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy error (%d): %s", resp.StatusCode, truncate(string(text), 100))
	}

	if err := json.Unmarshal(text, out); err != nil {
		// Some proxies wrap the JSON in extra output. Try the outermost
		// object before giving up.
		if start, end := strings.IndexByte(string(text), '{'), strings.LastIndexByte(string(text), '}'); start >= 0 && end > start {
			if err2 := json.Unmarshal(text[start:end+1], out); err2 == nil {
				return nil
			}
		}
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *ProxyClient) setAuth(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("api-key", c.apiKey)
}

// Analyze asks the vision model for a comma-separated keyword
// description of one reference image.
func (c *ProxyClient) Analyze(ctx context.Context, imageBase64 string, category studio.RefCategory, mimeType string) (string, error) {
	prompt := "Analyze this image and return strictly a comma-separated list of descriptive keywords/tags. DO NOT write full sentences."
	switch category {
	case studio.CategorySubject:
		prompt += " Focus ONLY on the character/object's physical appearance, clothing, distinct features, and pose."
	case studio.CategoryStyle:
		prompt += " Focus ONLY on the art medium (e.g., 3D render, oil painting), lighting, color palette, texture, and rendering technique."
	case studio.CategoryScene:
		prompt += " Focus ONLY on the environment, background elements, architecture, and atmosphere. Ignore the main character."
	}

	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	req := chatRequest{
		Model: c.visionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:" + mimeType + ";base64," + imageBase64,
				}},
			},
		}},
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", studio.ErrAnalysis, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", studio.ErrAnalysis)
	}
	return resp.Choices[0].Message.Content, nil
}

const enhanceSystemPrompt = `You are an Elite AI Art Director. Your goal is to write ONE cohesive, highly detailed image generation prompt.
Synthesize the following inputs:
1. USER IDEA: The core intent.
2. REFERENCE IMAGES: Visual guides provided by the user.
3. REFERENCE KEYWORDS: Specific traits extracted from the images.

RULES:
- If an image is marked 'SUBJECT', prioritize its physical description.
- If an image is marked 'STYLE', prioritize its art medium, lighting, and color palette.
- If an image is marked 'SCENE', prioritize the environment description.
- Output ONLY the final prompt string. No chat, no explanations.

SAFETY GUIDELINES:
- Avoid overly revealing clothing descriptions.
- Describe clothing in a modest, professional manner.
- Focus on color, material, and general style.`

// EnhancePrompt rewrites the prompt with the vision model, folding in
// staged reference images and their extracted keywords.
func (c *ProxyClient) EnhancePrompt(ctx context.Context, prompt string, refs []studio.ReferenceImage) (string, error) {
	userContent := []contentPart{
		{Type: "text", Text: fmt.Sprintf("USER IDEA: %q", prompt)},
	}
	if len(refs) == 0 {
		userContent = append(userContent, contentPart{Type: "text", Text: "NO REFERENCE IMAGES PROVIDED."})
	}
	for _, ref := range refs {
		keywords := ref.Keywords
		if keywords == "" {
			keywords = "None"
		}
		userContent = append(userContent,
			contentPart{Type: "text", Text: fmt.Sprintf("REFERENCE TYPE: [%s]. KEYWORDS: [%s]. VISUAL DATA:", ref.Type, keywords)},
			contentPart{Type: "image_url", ImageURL: &imageURL{URL: ref.DataURL}},
		)
	}

	req := chatRequest{
		Model: c.visionModel,
		Messages: []chatMessage{
			{Role: "system", Content: enhanceSystemPrompt},
			{Role: "user", Content: userContent},
		},
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty enhancement response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate fans out one request per requested image, each with its own
// seed for diversity. Failed requests are logged and dropped; only a
// fully empty outcome is an error. Duplicate URLs across requests are
// collapsed and the result is capped at the requested count.
func (c *ProxyClient) Generate(ctx context.Context, genReq studio.GenerateRequest) ([]*studio.ImageResult, error) {
	count := genReq.Count
	if count < 1 {
		count = 1
	}

	var (
		mu      sync.Mutex
		results []*studio.ImageResult
		wg      sync.WaitGroup
	)
	for i := 0; i < count; i++ {
		seed := rand.Int63n(2147483647)
		wg.Add(1)
		go func() {
			defer wg.Done()
			imgs, err := c.generateOne(ctx, genReq, seed)
			if err != nil {
				c.logger.Warn("generation request failed", "seed", seed, "error", err)
				return
			}
			mu.Lock()
			results = append(results, imgs...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	unique := dedupeByURL(results)
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: no images returned", studio.ErrGeneration)
	}
	if len(unique) > count {
		unique = unique[:count]
	}
	return unique, nil
}

// generateOne issues a single-image request. At most one image is
// taken from the response so parallel requests never multiply output.
func (c *ProxyClient) generateOne(ctx context.Context, genReq studio.GenerateRequest, seed int64) ([]*studio.ImageResult, error) {
	var messages []chatMessage
	if len(genReq.ReferenceImages) > 0 {
		userContent := []contentPart{{Type: "text", Text: genReq.Prompt}}
		for _, ref := range genReq.ReferenceImages {
			userContent = append(userContent, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: ref.DataURL},
			})
		}
		messages = []chatMessage{{Role: "user", Content: userContent}}
	} else {
		messages = []chatMessage{{Role: "user", Content: genReq.Prompt}}
	}

	req := chatRequest{
		Model:    genReq.ModelID,
		Messages: messages,
		N:        1,
		Seed:     seed,
		ImageCfg: &imageConfig{
			AspectRatio: genReq.AspectRatio,
			Count:       1,
			Seed:        seed,
		},
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}

	var out []*studio.ImageResult
	for _, choice := range resp.Choices {
		for _, img := range choice.Message.Images {
			url := img.URL
			if url == "" && img.ImageURL != nil {
				url = img.ImageURL.URL
			}
			if url == "" {
				url = img.B64JSON
			}
			if url != "" {
				out = append(out, &studio.ImageResult{URL: url, Seed: &seed})
			}
		}
	}
	// Fall back to the images-endpoint shape some proxies answer with.
	if len(out) == 0 {
		for _, item := range resp.Data {
			url := item.URL
			if url == "" {
				url = item.B64JSON
			}
			if url != "" {
				out = append(out, &studio.ImageResult{URL: url, Seed: &seed})
			}
		}
	}

	if len(out) > 1 {
		out = out[:1]
	}
	return out, nil
}

func dedupeByURL(results []*studio.ImageResult) []*studio.ImageResult {
	seen := make(map[string]bool, len(results))
	var unique []*studio.ImageResult
	for _, r := range results {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		unique = append(unique, r)
	}
	return unique
}

// ListAvailableModels queries the proxy's model catalog.
func (c *ProxyClient) ListAvailableModels(ctx context.Context) ([]studio.ModelDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching models: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}

	models := make([]studio.ModelDescriptor, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, studio.ModelDescriptor{
			ID:     m.ID,
			Name:   m.ID,
			Ratios: studio.AllRatios(),
		})
	}
	return models, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
