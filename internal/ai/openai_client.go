package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	clients *ClientManager
}

func NewOpenAIClient(clients *ClientManager) *OpenAIClient {
	return &OpenAIClient{clients: clients}
}

func (c *OpenAIClient) Complete(
	ctx context.Context,
	cfg AccountConfig,
	messages []Message,
	maxTokens int,
	temperature float32,
) (string, error) {

	client, ok := c.clients.Get(cfg)
	if !ok {
		return "", ErrUnavailable
	}

	if thinkingCapable(cfg.Model) {
		log.Printf("[ai] model %s: disabling thinking", cfg.Model)
		ctx = withThinkingDisabled(ctx)
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	log.Printf("[ai] request model=%s max_tokens=%d temperature=%.1f", cfg.Model, maxTokens, temperature)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", openAIError(err)
	}

	if len(resp.Choices) == 0 {
		log.Println("[ai] empty choices")
		return "", ErrEmptyReply
	}

	raw := RawReply{
		Content:          resp.Choices[0].Message.Content,
		ReasoningContent: resp.Choices[0].Message.ReasoningContent,
	}
	log.Printf("[ai] raw response content=%d bytes reasoning=%d bytes", len(raw.Content), len(raw.ReasoningContent))

	reply := Extract(raw)
	if reply == "" {
		if raw.Truncated() {
			log.Printf("[ai] model %s returned only reasoning_content, answer truncated", cfg.Model)
		} else {
			log.Printf("[ai] model %s returned empty content", cfg.Model)
		}
		return "", ErrEmptyReply
	}

	return reply, nil
}

func openAIError(err error) error {
	be := &BackendError{Provider: "openai", Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		be.Status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		be.Status = reqErr.HTTPStatusCode
	}
	return be
}

type thinkingKey struct{}

func withThinkingDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, thinkingKey{}, true)
}

func thinkingDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(thinkingKey{}).(bool)
	return v
}

// thinkingDoer adds the vendor field {"thinking":{"type":"disabled"}} to
// JSON request bodies when the request context asks for it.
type thinkingDoer struct {
	base openai.HTTPDoer
}

func (d *thinkingDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Body == nil || req.Method != http.MethodPost || !thinkingDisabled(req.Context()) {
		return d.base.Do(req)
	}

	b, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err == nil {
		payload["thinking"] = map[string]string{"type": "disabled"}
		if nb, err := json.Marshal(payload); err == nil {
			b = nb
		}
	}

	req.Body = io.NopCloser(bytes.NewReader(b))
	req.ContentLength = int64(len(b))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return d.base.Do(req)
}
