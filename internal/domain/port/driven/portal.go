package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/nauta/internal/domain/model"
)

// Sentinel errors returned by Portal implementations.
var (
	// ErrAuthFailed indicates the login handshake completed but the portal
	// did not issue an attribute UUID.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInvalidCredentials indicates a query page was returned without the
	// markers that appear for valid credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetwork wraps transport-level failures.
	ErrNetwork = errors.New("network error")

	// ErrAlreadyConnected indicates the bootstrap page was not intercepted by
	// the captive portal, so the host already has network access.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrFormNotFound indicates an expected HTML form was missing.
	ErrFormNotFound = errors.New("form not found")
)

// Portal defines the driven port for the captive-portal web service. Each
// operation uses its own HTTP session; no cookies are shared between calls.
type Portal interface {
	// FetchLoginForm loads the bootstrap page and returns a handshake seeded
	// with its first form.
	FetchLoginForm(ctx context.Context) (LoginHandshake, error)

	// QueryBalance returns the raw body of the balance query for username.
	QueryBalance(ctx context.Context, username string) (string, error)

	// QueryExpiry returns the account expiry string. Returns
	// ErrInvalidCredentials when the portal does not show it.
	QueryExpiry(ctx context.Context, username, password string) (string, error)

	// QueryAccountInfo returns the account summary and recent sessions.
	QueryAccountInfo(ctx context.Context, username, password string) (*model.AccountInfo, error)

	// VerifyCredentials reports whether the portal accepts the credentials.
	VerifyCredentials(ctx context.Context, username, password string) (bool, error)

	// Logout requests logoutURL, retrying on network errors.
	Logout(ctx context.Context, logoutURL string) (model.LogoutResult, error)
}

// LoginHandshake is an in-progress login that shares one HTTP session from
// the bootstrap form to the final credential submission.
type LoginHandshake interface {
	// Form returns the bootstrap form the handshake started from.
	Form() model.LoginForm

	// SubmitAuth relays the bootstrap form, fills the real login form with
	// the credentials and submits it. beforeSubmit runs after the CSRF token
	// and client IP are known and before the final request is sent; an error
	// from it aborts the login. Returns ErrAuthFailed when the response
	// carries no attribute UUID.
	SubmitAuth(ctx context.Context, username, password string, beforeSubmit func(model.SessionTokens) error) (model.SessionTokens, error)
}
