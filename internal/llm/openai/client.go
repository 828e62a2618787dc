package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"mathsnap-backend/internal/llm"
)

const (
	defaultAPIURL = "https://api.openai.com/v1/chat/completions"

	// minAPIKeyLength is a plausibility bound; anything shorter is rejected
	// before any network call is made.
	minAPIKeyLength = 10

	maxTokens   = 1000
	temperature = 0.3
)

// Client implements llm.Client using OpenAI-style chat completions with a
// vision-capable model. Candidate models are tried in order until one
// returns a successful response.
type Client struct {
	apiKey     string
	models     []string
	apiURL     string
	httpClient *http.Client
}

// NewClient constructs a client over the given ordered candidate models.
func NewClient(apiKey string, models []string) (*Client, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("at least one candidate model is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey: apiKey,
		models: models,
		apiURL: defaultAPIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractLaTeX converts a normalized handwriting image into LaTeX source.
func (c *Client) ExtractLaTeX(ctx context.Context, input llm.ExtractInput) (string, error) {
	if len(strings.TrimSpace(c.apiKey)) < minAPIKeyLength {
		return "", &llm.Error{Kind: llm.KindInvalidCredentials, Detail: "api key missing or too short"}
	}
	if len(input.ImageJPEG) == 0 {
		return "", &llm.Error{Kind: llm.KindEmptyResponse, Detail: "no image payload"}
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(input.ImageJPEG)
	payload, err := json.Marshal(chatRequest{
		Messages:    buildMessages(dataURI),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &llm.Error{Kind: llm.KindNetworkError, Detail: fmt.Sprintf("marshal request: %v", err)}
	}

	var lastStatus int
	var lastBody string
	for _, model := range c.models {
		body, err := withModel(payload, model)
		if err != nil {
			return "", &llm.Error{Kind: llm.KindNetworkError, Detail: fmt.Sprintf("set model: %v", err)}
		}

		status, respBody, err := c.post(ctx, body)
		if err != nil {
			return "", &llm.Error{Kind: llm.KindNetworkError, Detail: err.Error()}
		}
		if status != http.StatusOK {
			lastStatus = status
			lastBody = respBody
			continue
		}

		var parsed chatResponse
		if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
			return "", &llm.Error{Kind: llm.KindEmptyResponse, Detail: fmt.Sprintf("parse response: %v", err)}
		}
		if len(parsed.Choices) == 0 {
			return "", &llm.Error{Kind: llm.KindEmptyResponse, Detail: "response missing choices"}
		}
		content := strings.TrimSpace(parsed.Choices[0].Message.Content)
		if content == "" {
			return "", &llm.Error{Kind: llm.KindEmptyResponse, Detail: "response content empty"}
		}
		return StripFences(content), nil
	}

	return "", &llm.Error{Kind: llm.KindHTTPError, Status: lastStatus, Detail: truncate(lastBody, 512)}
}

func (c *Client) post(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, string(data), nil
}

// withModel substitutes the model field into an already-marshaled request so
// every candidate receives an otherwise identical payload.
func withModel(payload []byte, model string) ([]byte, error) {
	var req map[string]json.RawMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	name, err := json.Marshal(model)
	if err != nil {
		return nil, err
	}
	req["model"] = name
	return json.Marshal(req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ llm.Client = (*Client)(nil)
