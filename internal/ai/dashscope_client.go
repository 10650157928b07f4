package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const dashScopeEndpoint = "https://" + dashScopeDomain

// DashScopeClient calls the DashScope application completion API.
// It is stateless: the account key travels with every call.
type DashScopeClient struct {
	endpoint string
	client   *http.Client
}

func NewDashScopeClient(endpoint string, timeout time.Duration) *DashScopeClient {
	if endpoint == "" {
		endpoint = dashScopeEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DashScopeClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type dashScopeRequest struct {
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
	Debug      struct{}            `json:"debug"`
}

type dashScopeParameters struct {
	MaxTokens   int               `json:"max_tokens"`
	Temperature float32           `json:"temperature"`
	Thinking    map[string]string `json:"thinking,omitempty"`
}

type dashScopeResponse struct {
	Output *struct {
		Text *string `json:"text"`
	} `json:"output"`
}

func (c *DashScopeClient) Complete(
	ctx context.Context,
	cfg AccountConfig,
	messages []Message,
	maxTokens int,
	temperature float32,
) (string, error) {

	appID, err := appIDFromURL(cfg.BaseURL)
	if err != nil {
		return "", err
	}

	var body dashScopeRequest
	body.Input.Prompt = collapsePrompt(messages)
	body.Parameters = dashScopeParameters{
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if thinkingCapable(cfg.Model) {
		log.Printf("[ai] model %s: disabling thinking (dashscope)", cfg.Model)
		body.Parameters.Thinking = map[string]string{"type": "disabled"}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := c.endpoint + "/api/v1/apps/" + appID + "/completion"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	log.Printf("[ai] dashscope request %s prompt=%q", url, short(body.Input.Prompt))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &BackendError{Provider: "dashscope", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Provider: "dashscope", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &BackendError{
			Provider: "dashscope",
			Status:   resp.StatusCode,
			Body:     truncate(respBody, 512),
		}
	}

	var out dashScopeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &BackendError{Provider: "dashscope", Status: resp.StatusCode, Body: truncate(respBody, 512), Err: err}
	}
	if out.Output == nil || out.Output.Text == nil {
		return "", &BackendError{
			Provider: "dashscope",
			Status:   resp.StatusCode,
			Body:     truncate(respBody, 512),
			Err:      fmt.Errorf("malformed response: no output.text"),
		}
	}

	text := strings.TrimSpace(*out.Output.Text)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// appIDFromURL takes the path segment after /apps/.
func appIDFromURL(baseURL string) (string, error) {
	_, rest, found := strings.Cut(baseURL, "/apps/")
	if !found {
		return "", fmt.Errorf("%w: no app id in dashscope url %q", ErrConfig, baseURL)
	}
	id, _, _ := strings.Cut(rest, "/")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty app id in dashscope url %q", ErrConfig, baseURL)
	}
	return id, nil
}

// collapsePrompt folds a chat into the single prompt the completion API takes.
func collapsePrompt(messages []Message) string {
	var system, user string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Text
		case RoleUser:
			user = m.Text
		}
	}

	switch {
	case system != "" && user != "":
		return system + "\n\n用户问题：" + user + "\n\n请直接回答用户的问题："
	case user != "":
		return user
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

func short(s string) string {
	r := []rune(s)
	if len(r) > 180 {
		return string(r[:180]) + "..."
	}
	return s
}
