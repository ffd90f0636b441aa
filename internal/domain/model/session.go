package model

import (
	"fmt"
	"net/url"
)

// SessionTokens are the server-assigned values needed to build a logout URL.
// CSRF and ClientIP come from the login form; AttributeUUID is issued when the
// login is accepted.
type SessionTokens struct {
	CSRF          string
	ClientIP      string
	AttributeUUID string
}

// LoginForm is an HTML form found on a portal page: where it submits and the
// hidden fields that must be echoed back unchanged.
type LoginForm struct {
	Action string
	Fields map[string]string
}

// LogoutURL builds the portal logout URL for the given session. The parameter
// order matches what the portal itself emits.
func LogoutURL(base, username string, tokens SessionTokens) string {
	return fmt.Sprintf("%s?CSRFHW=%s&username=%s&ATTRIBUTE_UUID=%s&wlanuserip=%s",
		base,
		url.QueryEscape(tokens.CSRF),
		url.QueryEscape(username),
		url.QueryEscape(tokens.AttributeUUID),
		url.QueryEscape(tokens.ClientIP),
	)
}

// SessionState is a step of one login attempt.
type SessionState int

const (
	StateIdle SessionState = iota
	StateFormFetched
	StateCredentialsSubmitted
	StateAuthenticated
	StateAuthFailed
	StateMonitoring
	StateUserCancelled
	StateTimedOut
	StateLoggedOutExternally
	StateLoggedOut
)

var sessionStateNames = map[SessionState]string{
	StateIdle:                 "idle",
	StateFormFetched:          "form_fetched",
	StateCredentialsSubmitted: "credentials_submitted",
	StateAuthenticated:        "authenticated",
	StateAuthFailed:           "auth_failed",
	StateMonitoring:           "monitoring",
	StateUserCancelled:        "user_cancelled",
	StateTimedOut:             "timed_out",
	StateLoggedOutExternally:  "logged_out_externally",
	StateLoggedOut:            "logged_out",
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// AccountInfo is the account summary shown by the portal's query page.
type AccountInfo struct {
	Fields   []InfoField
	Sessions [][]string
}

// InfoField is one label/value row of the account summary.
type InfoField struct {
	Label string
	Value string
}

// LogoutResult is the outcome of one logout request.
type LogoutResult struct {
	Success bool
	Message string
}
