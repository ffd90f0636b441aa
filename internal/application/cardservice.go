package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// ErrNoCardAvailable is returned when no stored card has a positive balance.
var ErrNoCardAvailable = errors.New("no card with time left")

// Confirmer asks the user to approve deleting the listed cards.
type Confirmer interface {
	ConfirmDelete(usernames []string) (bool, error)
}

// CardStatus is one row of a card listing.
type CardStatus struct {
	Card       model.Card
	TimeLeft   string
	ExpireDate string
}

// CardListing is the result of listing every card. Offline is set when a
// network failure forced the rest of the listing onto cached data.
type CardListing struct {
	Cards   []CardStatus
	Offline bool
}

// CardService manages stored cards and decides when their cached balance and
// expiry are refreshed from the portal.
type CardService struct {
	store  driven.CardStore
	portal driven.Portal
	opts   options
}

// NewCardService creates a CardService.
func NewCardService(store driven.CardStore, portal driven.Portal, opts ...Option) *CardService {
	return &CardService{
		store:  store,
		portal: portal,
		opts:   buildOptions(opts),
	}
}

// ResolveUsername expands a bare user name to the stored username whose
// local part matches it case-insensitively. Input that already has a domain,
// or that matches nothing, is returned unchanged. When several stored
// usernames share the local part, the first in storage order wins.
func (s *CardService) ResolveUsername(ctx context.Context, input string) (string, error) {
	if input == "" || model.HasDomain(input) {
		return input, nil
	}

	usernames, err := s.store.Usernames(ctx)
	if err != nil {
		return "", err
	}

	for _, u := range usernames {
		if strings.EqualFold(model.LocalPart(u), input) {
			return u, nil
		}
	}
	return input, nil
}

// Card returns the stored card for username.
func (s *CardService) Card(ctx context.Context, username string) (*model.Card, error) {
	return s.store.Get(ctx, model.NormalizeUsername(username))
}

// SelectCard picks the usable card with the least time left, so cards are
// spent before they expire. Balances are compared as durations.
func (s *CardService) SelectCard(ctx context.Context) (*model.Card, error) {
	cards, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		best        *model.Card
		bestBalance time.Duration
	)
	for i := range cards {
		if !cards[i].Usable() {
			continue
		}
		balance, _ := cards[i].Balance()
		if best == nil || balance < bestBalance ||
			(balance == bestBalance && cards[i].Username < best.Username) {
			best = &cards[i]
			bestBalance = balance
		}
	}

	if best == nil {
		return nil, ErrNoCardAvailable
	}
	return best, nil
}

// TimeLeft returns the card's balance, querying the portal first when mode
// requires it. In RefreshNormal mode the portal is queried only when the
// cached balance is missing or older than the balance TTL. A response that
// does not look like a balance leaves the cache untouched. An empty result
// means the balance is unknown.
func (s *CardService) TimeLeft(ctx context.Context, username string, mode model.RefreshMode) (string, error) {
	card, err := s.Card(ctx, username)
	if err != nil {
		return "", err
	}

	if !s.balanceStale(card, mode) {
		return card.TimeLeft, nil
	}

	raw, err := s.portal.QueryBalance(ctx, card.Username)
	if err != nil {
		return "", err
	}

	balance := strings.TrimSpace(raw)
	if !model.LooksLikeBalance(balance) {
		slog.Warn("ignoring unexpected balance response", "username", card.Username, "response", truncate(balance, 80))
		return card.TimeLeft, nil
	}

	refreshedAt := s.opts.now()
	err = s.store.Update(ctx, card.Username, func(c *model.Card) error {
		c.TimeLeft = balance
		c.LastUpdate = refreshedAt
		return nil
	})
	if err != nil {
		return "", err
	}
	return balance, nil
}

func (s *CardService) balanceStale(card *model.Card, mode model.RefreshMode) bool {
	switch mode {
	case model.RefreshCached:
		return false
	case model.RefreshFresh:
		return true
	}
	if card.TimeLeft == "" || card.LastUpdate.IsZero() {
		return true
	}
	return s.opts.now().Sub(card.LastUpdate) > s.opts.balanceTTL
}

// ExpireDate returns the card's expiry. The portal is queried only when the
// expiry was never fetched or mode is RefreshFresh; it does not expire with
// time. Rejected credentials are cached as model.ExpiryInvalidCredentials.
func (s *CardService) ExpireDate(ctx context.Context, username string, mode model.RefreshMode) (string, error) {
	card, err := s.Card(ctx, username)
	if err != nil {
		return "", err
	}

	if mode == model.RefreshCached || (mode != model.RefreshFresh && card.ExpireDate != "") {
		return card.ExpireDate, nil
	}

	expiry, err := s.portal.QueryExpiry(ctx, card.Username, card.Password)
	if errors.Is(err, driven.ErrInvalidCredentials) {
		expiry = model.ExpiryInvalidCredentials
	} else if err != nil {
		return "", err
	}

	err = s.store.Update(ctx, card.Username, func(c *model.Card) error {
		c.ExpireDate = expiry
		return nil
	})
	if err != nil {
		return "", err
	}
	return expiry, nil
}

// List returns every card with its balance and expiry refreshed per mode.
// After the first network failure the remaining cards, and the one that
// failed, are shown from cache and the listing is marked offline.
func (s *CardService) List(ctx context.Context, mode model.RefreshMode) (*CardListing, error) {
	cards, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	slog.Debug("listing cards", "count", len(cards), "mode", mode)

	listing := &CardListing{Cards: make([]CardStatus, 0, len(cards))}
	for _, card := range cards {
		status := CardStatus{Card: card, TimeLeft: card.TimeLeft, ExpireDate: card.ExpireDate}

		if !listing.Offline {
			err := s.refreshStatus(ctx, &status, mode)
			switch {
			case errors.Is(err, driven.ErrNetwork):
				slog.Warn("network unavailable, showing cached card data", "error", err)
				listing.Offline = true
			case err != nil:
				slog.Warn("could not refresh card", "username", card.Username, "error", err)
			}
		}

		listing.Cards = append(listing.Cards, status)
	}

	return listing, nil
}

func (s *CardService) refreshStatus(ctx context.Context, status *CardStatus, mode model.RefreshMode) error {
	timeLeft, err := s.TimeLeft(ctx, status.Card.Username, mode)
	if err != nil {
		return err
	}
	status.TimeLeft = timeLeft

	expiry, err := s.ExpireDate(ctx, status.Card.Username, mode)
	if err != nil {
		return err
	}
	status.ExpireDate = expiry
	return nil
}

// Add verifies the credentials against the portal and stores the card. The
// store is not touched when verification fails.
func (s *CardService) Add(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username is required")
	}

	ok, err := s.portal.VerifyCredentials(ctx, username, password)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("add card %s: %w", username, driven.ErrInvalidCredentials)
	}

	return s.store.Put(ctx, model.Card{
		Username: model.NormalizeUsername(username),
		Password: password,
	})
}

// Remove deletes the given cards once confirmer approves the exact list.
// It reports whether anything was deleted. Every username must be stored;
// otherwise nothing is asked or deleted and ErrCardNotFound is returned.
func (s *CardService) Remove(ctx context.Context, usernames []string, confirmer Confirmer) (bool, error) {
	if len(usernames) == 0 {
		return false, nil
	}

	for _, u := range usernames {
		// A corrupt record is still stored and may be removed.
		_, err := s.store.Get(ctx, u)
		if err != nil && !errors.Is(err, driven.ErrStoreCorruption) {
			return false, fmt.Errorf("remove cards: %w", err)
		}
	}

	ok, err := confirmer.ConfirmDelete(usernames)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.store.Delete(ctx, usernames); err != nil {
		return false, err
	}
	return true, nil
}

// Clean deletes, after confirmation, every card whose known balance is zero
// or less. Cards whose balance was never fetched are kept. It returns the
// exhausted usernames and whether they were deleted.
func (s *CardService) Clean(ctx context.Context, confirmer Confirmer) ([]string, bool, error) {
	cards, err := s.store.List(ctx)
	if err != nil {
		return nil, false, err
	}

	var exhausted []string
	for _, c := range cards {
		if c.Exhausted() {
			exhausted = append(exhausted, c.Username)
		}
	}
	sort.Strings(exhausted)

	removed, err := s.Remove(ctx, exhausted, confirmer)
	return exhausted, removed, err
}

// Info returns the portal's account summary for a stored card.
func (s *CardService) Info(ctx context.Context, username string) (*model.AccountInfo, error) {
	card, err := s.Card(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.portal.QueryAccountInfo(ctx, card.Username, card.Password)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
