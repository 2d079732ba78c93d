// Package deploy triggers a static site rebuild through a deploy hook.
package deploy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 10 * time.Second

// Notifier signals that published content changed.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Noop is used when no hook is configured.
type Noop struct{}

func (Noop) Notify(context.Context) error { return nil }

// Hook POSTs to a deploy hook URL (Vercel, Netlify, Cloudflare Pages).
type Hook struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

var _ Notifier = (*Hook)(nil)

// NewHook creates a hook notifier. A zero timeout uses DefaultTimeout.
func NewHook(url string, timeout time.Duration) *Hook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Hook{url: url, client: &http.Client{}, timeout: timeout}
}

// Notify calls the hook. Any non-2xx response is an error.
func (h *Hook) Notify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, nil)
	if err != nil {
		return fmt.Errorf("deploy: build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("deploy: call hook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deploy: hook returned %d", resp.StatusCode)
	}
	return nil
}

// New returns a Hook for url, or Noop when url is empty.
func New(url string, timeout time.Duration) Notifier {
	if url == "" {
		return Noop{}
	}
	return NewHook(url, timeout)
}
