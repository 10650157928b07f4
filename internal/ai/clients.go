package ai

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type clientEntry struct {
	client   *openai.Client
	lastUsed time.Time
}

// ClientManager owns one OpenAI-compatible client per account.
// Clients are built lazily and dropped by EvictIdle, Evict or EvictAll.
type ClientManager struct {
	mu      sync.Mutex
	entries map[string]*clientEntry
	timeout time.Duration
	now     func() time.Time
}

func NewClientManager(timeout time.Duration) *ClientManager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ClientManager{
		entries: make(map[string]*clientEntry),
		timeout: timeout,
		now:     time.Now,
	}
}

// Get returns the cached client for the account, building it on first use.
// ok is false when the account is disabled, has no key or the client
// could not be built.
//
// A cached client keeps the key and base URL it was built with: after the
// account settings change the entry must be dropped with Evict or EvictAll
// (the settings bus and the HTTP evict routes do this).
func (m *ClientManager) Get(cfg AccountConfig) (*openai.Client, bool) {
	if !cfg.Available() {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, found := m.entries[cfg.AccountID]
	if !found {
		client, err := m.build(cfg)
		if err != nil {
			log.Printf("[clients] build failed account=%s: %v", cfg.AccountID, err)
			return nil, false
		}
		log.Printf("[clients] created account=%s base_url=%s api_key=%s",
			cfg.AccountID, cfg.BaseURL, maskKey(cfg.APIKey))
		e = &clientEntry{client: client}
		m.entries[cfg.AccountID] = e
	}

	e.lastUsed = m.now()
	return e.client, true
}

func (m *ClientManager) build(cfg AccountConfig) (*openai.Client, error) {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: bad base_url %q", ErrConfig, cfg.BaseURL)
		}
		conf.BaseURL = cfg.BaseURL
	}
	conf.HTTPClient = &thinkingDoer{base: &http.Client{Timeout: m.timeout}}
	return openai.NewClientWithConfig(conf), nil
}

// EvictIdle drops every client not used within maxIdle and returns how many were removed.
func (m *ClientManager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if now.Sub(e.lastUsed) > maxIdle {
			delete(m.entries, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[clients] evicted %d idle clients, %d active", removed, len(m.entries))
	}
	return removed
}

// Evict drops the client of one account, e.g. after its settings changed.
func (m *ClientManager) Evict(accountID string) {
	m.mu.Lock()
	delete(m.entries, accountID)
	m.mu.Unlock()
	log.Printf("[clients] evicted account=%s", accountID)
}

func (m *ClientManager) EvictAll() {
	m.mu.Lock()
	m.entries = make(map[string]*clientEntry)
	m.mu.Unlock()
	log.Println("[clients] evicted all clients")
}

func (m *ClientManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
