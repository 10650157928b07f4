package ai

import (
	"net/url"
	"strings"
)

// Protocol is the wire protocol used to reach a model backend.
type Protocol int

const (
	ProtocolOpenAI Protocol = iota
	ProtocolDashScope
)

func (p Protocol) String() string {
	if p == ProtocolDashScope {
		return "dashscope"
	}
	return "openai"
}

const dashScopeDomain = "dashscope.aliyuncs.com"

// Model names that request the DashScope application protocol. Compared lowercased.
var dashScopeModelNames = map[string]bool{
	"custom":      true,
	"自定义":         true,
	"dashscope":   true,
	"qwen-custom": true,
}

// Substrings of model names whose deliberation can be switched off per request.
var thinkingModelMarkers = []string{"glm-4.5"}

// SelectProtocol picks DashScope only when both the model name is one of the
// sentinel names and the endpoint is hosted on the DashScope domain.
func SelectProtocol(cfg AccountConfig) Protocol {
	model := strings.ToLower(strings.TrimSpace(cfg.Model))
	if dashScopeModelNames[model] && isDashScopeHost(cfg.BaseURL) {
		return ProtocolDashScope
	}
	return ProtocolOpenAI
}

func isDashScopeHost(baseURL string) bool {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == dashScopeDomain || strings.HasSuffix(host, "."+dashScopeDomain)
}

func thinkingCapable(model string) bool {
	m := strings.ToLower(model)
	for _, marker := range thinkingModelMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}
