package ai

import (
	"context"
	"log"
	"time"
)

const defaultTimeout = 30 * time.Second

// Dispatcher routes a call to the wire protocol the account is configured for.
type Dispatcher struct {
	openai    *OpenAIClient
	dashscope *DashScopeClient
}

type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	timeout           time.Duration
	dashScopeEndpoint string
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(o *dispatcherOptions) { o.timeout = d }
}

// WithDashScopeEndpoint overrides the DashScope scheme+host.
func WithDashScopeEndpoint(endpoint string) Option {
	return func(o *dispatcherOptions) { o.dashScopeEndpoint = endpoint }
}

func NewDispatcher(clients *ClientManager, opts ...Option) *Dispatcher {
	o := dispatcherOptions{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher{
		openai:    NewOpenAIClient(clients),
		dashscope: NewDashScopeClient(o.dashScopeEndpoint, o.timeout),
	}
}

func (d *Dispatcher) Call(
	ctx context.Context,
	cfg AccountConfig,
	messages []Message,
	maxTokens int,
	temperature float32,
) (string, error) {

	if !cfg.Available() {
		return "", ErrUnavailable
	}

	protocol := SelectProtocol(cfg)
	log.Printf("[dispatch] account=%s protocol=%s model=%s", cfg.AccountID, protocol, cfg.Model)

	if protocol == ProtocolDashScope {
		return d.dashscope.Complete(ctx, cfg, messages, maxTokens, temperature)
	}
	return d.openai.Complete(ctx, cfg, messages, maxTokens, temperature)
}
