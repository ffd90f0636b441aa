package model

import (
	"strings"
	"time"
)

// ExpiryInvalidCredentials is cached as the expiry string when the portal
// rejects a card's credentials during an expiry query.
const ExpiryInvalidCredentials = "**invalid credentials**"

// Card is one prepaid account. Username is the unique key and is always
// lower-case. TimeLeft is the cached balance in HH:MM:SS form, empty when it
// has never been fetched. ExpireDate is empty until the first expiry query.
type Card struct {
	Username   string
	Password   string
	TimeLeft   string
	LastUpdate time.Time
	ExpireDate string
}

// NormalizeUsername lower-cases a username for use as a store key.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// LocalPart returns the part of username before the domain separator, or the
// whole string when there is none.
func LocalPart(username string) string {
	if i := strings.IndexByte(username, '@'); i >= 0 {
		return username[:i]
	}
	return username
}

// HasDomain reports whether username carries an @domain suffix.
func HasDomain(username string) bool {
	return strings.Contains(username, "@")
}

// Balance returns the parsed remaining time. Unknown or malformed balances
// yield zero and false.
func (c Card) Balance() (time.Duration, bool) {
	return ParseBalance(c.TimeLeft)
}

// Usable reports whether the card has a positive known balance.
func (c Card) Usable() bool {
	d, ok := c.Balance()
	return ok && d > 0
}

// Exhausted reports whether the card has a known balance of zero or less.
// Cards whose balance was never fetched are not exhausted.
func (c Card) Exhausted() bool {
	d, ok := c.Balance()
	return ok && d <= 0
}

// MaskedPassword replaces every character of the password with '*'.
func (c Card) MaskedPassword() string {
	return strings.Repeat("*", len([]rune(c.Password)))
}

// RefreshMode selects how cached card data is refreshed.
type RefreshMode int

const (
	// RefreshNormal fetches only when the cached value is stale.
	RefreshNormal RefreshMode = iota
	// RefreshFresh always fetches from the portal.
	RefreshFresh
	// RefreshCached never touches the network.
	RefreshCached
)

// String returns the flag-style name of the mode.
func (m RefreshMode) String() string {
	switch m {
	case RefreshFresh:
		return "fresh"
	case RefreshCached:
		return "cached"
	default:
		return "normal"
	}
}
