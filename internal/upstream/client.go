// Package upstream talks to an OpenAI-compatible chat-completion API, such
// as the Hugging Face router. It normalizes responses and classifies
// failures; it never retries.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prompt-architect/relay/internal/types"
)

// Request carries one completion call's parameters.
type Request struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []types.Message
}

// Completer is the outbound capability the gateway depends on. Implemented
// by Client in production and by fakes in tests.
type Completer interface {
	Complete(ctx context.Context, req Request) (*types.Completion, error)
}

// Client calls a single OpenAI-compatible /chat/completions endpoint with
// one shared credential.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type completionRequestBody struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []types.Message `json:"messages"`
}

type completionResponseBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete performs one chat completion. Failures come back as *Error with
// a kind derived from the upstream status; a syntactically valid response
// with no usable text is KindEmptyResponse.
func (c *Client) Complete(ctx context.Context, req Request) (*types.Completion, error) {
	data, err := json.Marshal(completionRequestBody{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    req.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Kind:    KindUnclassified,
			Message: "The model endpoint could not be reached.",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{
			Kind:    KindUnclassified,
			Message: "Reading the model response failed.",
			Cause:   err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		return nil, &Error{
			Kind:       kind,
			Message:    messageForKind(kind),
			StatusCode: resp.StatusCode,
			Cause:      errors.New(strings.TrimSpace(string(body))),
		}
	}

	var parsed completionResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{
			Kind:       KindUnclassified,
			Message:    "The model returned an unreadable response.",
			StatusCode: resp.StatusCode,
			Cause:      err,
		}
	}

	text := ""
	if len(parsed.Choices) > 0 {
		text = strings.TrimSpace(parsed.Choices[0].Message.Content)
	}
	if text == "" {
		return nil, &Error{
			Kind:       KindEmptyResponse,
			Message:    "The model returned an empty response.",
			StatusCode: resp.StatusCode,
		}
	}

	model := parsed.Model
	if model == "" {
		model = req.Model
	}

	return &types.Completion{
		Text:        text,
		Model:       model,
		Temperature: req.Temperature,
	}, nil
}

func messageForKind(kind ErrorKind) string {
	switch kind {
	case KindQuotaExceeded:
		return "The model provider's rate limit or quota was reached. Retry shortly."
	case KindUnauthorized:
		return "The configured API credential was rejected by the model provider."
	case KindModelUnavailable:
		return "The configured model is unavailable at the provider."
	case KindEmptyResponse:
		return "The model returned an empty response."
	default:
		return "Unable to complete the request right now."
	}
}
