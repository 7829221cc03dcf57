package llm

// #region imports
import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// #endregion

// #region types

// Message is a single chat turn sent to the completion gateway.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamDelta is one increment of a streaming completion.
type StreamDelta struct {
	Content string
	Done    bool
	Err     error
}

// #endregion

// #region client-struct

// Client talks to an OpenAI-compatible chat completions endpoint
// (OpenRouter by default). It is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// Config configures the completion client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// #endregion

// #region constructor

// NewClient creates a completion client from config. The API key is read
// from the environment variable named by APIKeyEnv.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    key,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: t},
	}, nil
}

// #endregion

// #region request-types

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// #endregion

// #region complete

// Complete runs a blocking chat completion and returns the full text.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float32, maxTokens int) (string, error) {
	resp, err := c.post(ctx, messages, temperature, maxTokens, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// #endregion

// #region complete-stream

// CompleteStream runs a streaming chat completion and emits deltas in
// generation order. The channel is closed after the final delta; a
// terminal delta carries Done or Err.
func (c *Client) CompleteStream(ctx context.Context, messages []Message, temperature float32, maxTokens int) (<-chan StreamDelta, error) {
	resp, err := c.post(ctx, messages, temperature, maxTokens, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamDelta, 32)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				ch <- StreamDelta{Done: true, Err: ctx.Err()}
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				ch <- StreamDelta{Done: true}
				return
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				ch <- StreamDelta{Content: delta}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamDelta{Done: true, Err: err}
			return
		}
		ch <- StreamDelta{Done: true}
	}()
	return ch, nil
}

// #endregion

// #region post

func (c *Client) post(ctx context.Context, messages []Message, temperature float32, maxTokens int, stream bool) (*http.Response, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("completion status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// #endregion
