package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks github.com/mattjoyce/switchyard/internal/bridge Notifier

// Notifier delivers a terminal task result to its callback address.
type Notifier interface {
	Notify(ctx context.Context, callbackURL string, payload CallbackPayload) error
}

// URLResolver turns a relative callback path into an absolute URL.
// *gateway.Client satisfies it.
type URLResolver interface {
	Resolve(target string) string
}

// HTTPNotifier posts callbacks as JSON, signing the body when a shared
// secret is configured.
type HTTPNotifier struct {
	client   *http.Client
	secret   string
	resolver URLResolver
}

var _ Notifier = (*HTTPNotifier)(nil)

func NewHTTPNotifier(secret string, timeout time.Duration, resolver URLResolver) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPNotifier{
		client:   &http.Client{Timeout: timeout},
		secret:   secret,
		resolver: resolver,
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, callbackURL string, payload CallbackPayload) error {
	target := callbackURL
	if n.resolver != nil {
		target = n.resolver.Resolve(callbackURL)
	}
	if target == "" {
		return fmt.Errorf("callback url is empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(KeyHeader, n.secret)
		req.Header.Set(SignatureHeader, Sign(body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
