// Package gateway wraps the completion provider behind the timeout,
// retry, and failure-classification rules the engine relies on.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crimsonworks/felix/pkg/config"
	"github.com/crimsonworks/felix/pkg/providers"
	"github.com/crimsonworks/felix/pkg/retry"
)

// ErrNotConfigured means the provider credential check failed at
// startup; the gateway short-circuits every call for the life of the
// process instead of attempting the network round trip.
var ErrNotConfigured = errors.New("completion provider not configured")

// Degraded replies shown when the completion path is unavailable.
// These are fixed contract strings; clients key suppression behavior
// off the accompanying error status, not the text.
const (
	NotConfiguredReply = "My brain isn't connected right now, so I can only do my built-in commands. 😥 Ask my operator to set an API key! (^_^)"
	TransientReply     = "Sorry, my brain isn't responding right now. Please try again in a moment. 😥"
)

// Gateway delegates unmatched input to the external completion
// service. A Gateway with no provider is permanently degraded.
type Gateway struct {
	provider providers.LLMProvider
	model    string
	timeout  time.Duration
	retryCfg retry.Config
	reason   string
}

// New builds a Gateway from config, validating provider credentials
// once. A failed check does not fail startup; the gateway comes up
// degraded and Complete returns ErrNotConfigured without calling out.
func New(cfg *config.Config) *Gateway {
	g := &Gateway{
		model:   cfg.Completions.Model,
		timeout: time.Duration(cfg.Completions.TimeoutSeconds) * time.Second,
		retryCfg: retry.Config{
			MaxAttempts:  cfg.Completions.MaxAttempts,
			InitialDelay: time.Duration(cfg.Completions.RetryDelayMS) * time.Millisecond,
			MaxDelay:     10 * time.Second,
			ShouldRetry:  isRetryable,
		},
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		g.reason = err.Error()
		slog.Warn("gateway: starting degraded, completion calls disabled", "err", err)
		return g
	}
	g.provider = provider
	return g
}

// NewWithProvider wires an already constructed provider, bypassing the
// credential check. Used by tests and the in-process REPL.
func NewWithProvider(provider providers.LLMProvider, model string, timeout time.Duration, retryCfg retry.Config) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retryCfg.ShouldRetry == nil {
		retryCfg.ShouldRetry = isRetryable
	}
	return &Gateway{provider: provider, model: model, timeout: timeout, retryCfg: retryCfg}
}

// Configured reports whether the startup credential check passed.
func (g *Gateway) Configured() bool { return g.provider != nil }

// Reason returns the startup check failure, empty when configured.
func (g *Gateway) Reason() string { return g.reason }

// Complete invokes the completion service with the built context and
// returns the reply trimmed of surrounding whitespace. Retries stay
// inside the caller-visible timeout; the context deadline bounds every
// attempt and every backoff wait.
func (g *Gateway) Complete(ctx context.Context, msgs []providers.Message) (string, error) {
	if g.provider == nil {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reply string
	err := retry.Do(ctx, g.retryCfg, func() error {
		resp, err := g.provider.Chat(ctx, msgs, g.model)
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(resp.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// DegradedReply maps a Complete error to the fixed caller-visible
// message for its failure class.
func DegradedReply(err error) string {
	if errors.Is(err, ErrNotConfigured) {
		return NotConfiguredReply
	}
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
		return NotConfiguredReply
	}
	return TransientReply
}

// isRetryable treats auth failures as permanent; everything else
// (timeouts, 5xx, rate limits, malformed responses) is worth another
// attempt.
func isRetryable(err error) bool {
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
		return false
	}
	return true
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
