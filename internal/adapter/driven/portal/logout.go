package portal

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// logoutAttempts bounds how many times a logout request is sent when the
// network fails.
const logoutAttempts = 10

// logoutSuccessMarker is the only signal the portal gives that a logout
// went through.
const logoutSuccessMarker = "SUCCESS"

// Logout requests logoutURL. Network errors are retried immediately up to
// logoutAttempts times in total; the last error is returned when all fail.
// A response without the success marker is not an error: the result reports
// Success false.
func (c *Client) Logout(ctx context.Context, logoutURL string) (model.LogoutResult, error) {
	session := c.newSession()

	var p page
	attempt := 0
	op := func() error {
		attempt++
		var err error
		p, err = c.get(ctx, session, logoutURL)
		if err != nil && !errors.Is(err, driven.ErrNetwork) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, _ time.Duration) {
		slog.Warn("logout attempt failed, retrying", "attempt", attempt, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, logoutAttempts-1), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return model.LogoutResult{}, fmt.Errorf("logout after %d attempts: %w", attempt, err)
	}

	return model.LogoutResult{
		Success: strings.Contains(p.body, logoutSuccessMarker),
		Message: strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(p.body))),
	}, nil
}
