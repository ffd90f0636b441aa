package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// DownStatus is the outcome of a logout request.
type DownStatus int

const (
	// DownNotConnected means no logout URL was pending; nothing was sent.
	DownNotConnected DownStatus = iota
	// DownLoggedOut means the portal confirmed the logout.
	DownLoggedOut
	// DownRejected means the portal answered without confirming; the logout
	// URL is kept so the logout can be retried.
	DownRejected
)

// UpObserver receives progress of a session. All methods are called from
// the goroutine running Up.
type UpObserver interface {
	CardSelected(username, timeLeft string)
	Connected(username string)
	Tick(elapsed, remaining time.Duration, limited bool)
	Disconnecting(reason model.SessionState)
}

// UpRequest configures one login session.
type UpRequest struct {
	// Username selects the card; empty picks one with SelectCard.
	Username string
	// MaxDuration ends the session after this long; zero means no limit.
	MaxDuration time.Duration
	Observer    UpObserver
}

// UpResult summarizes a finished session.
type UpResult struct {
	Username       string
	TimeLeftBefore string
	TimeLeftAfter  string
	Outcome        model.SessionState
	Elapsed        time.Duration
	LoggedOut      bool
}

// SessionService runs login sessions: it authenticates, keeps the logout URL
// on disk, monitors the connection, and logs out.
type SessionService struct {
	cards      *CardService
	portal     driven.Portal
	signal     driven.SessionSignal
	attrs      driven.AttributeStore
	logoutBase string
	opts       options
}

// NewSessionService creates a SessionService. logoutBase is the portal's
// logout endpoint.
func NewSessionService(
	cards *CardService,
	portal driven.Portal,
	signal driven.SessionSignal,
	attrs driven.AttributeStore,
	logoutBase string,
	opts ...Option,
) *SessionService {
	return &SessionService{
		cards:      cards,
		portal:     portal,
		signal:     signal,
		attrs:      attrs,
		logoutBase: logoutBase,
		opts:       buildOptions(opts),
	}
}

// Up logs in with the requested card and blocks while the session lasts.
// Cancelling ctx ends the session with a logout, as does reaching
// MaxDuration. If the logout URL disappears, another process logged out and
// Up returns without contacting the portal.
func (s *SessionService) Up(ctx context.Context, req UpRequest) (*UpResult, error) {
	observer := req.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	connLog := s.opts.connLog

	state := model.StateIdle
	enter := func(next model.SessionState) {
		slog.Debug("session state", "from", state, "to", next)
		state = next
	}

	card, err := s.pickCard(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	timeLeft, err := s.cards.TimeLeft(ctx, card.Username, model.RefreshNormal)
	if err != nil {
		return nil, err
	}
	observer.CardSelected(card.Username, timeLeft)
	connLog.Info("connecting", "card", card.Username, "time_left", timeLeft)

	handshake, err := s.portal.FetchLoginForm(ctx)
	if err != nil {
		return nil, err
	}
	enter(model.StateFormFetched)

	lastUUID, err := s.attrs.LastAttributeUUID()
	if err != nil {
		return nil, err
	}

	var guessed string
	tokens, err := handshake.SubmitAuth(ctx, card.Username, card.Password, func(tk model.SessionTokens) error {
		tk.AttributeUUID = lastUUID
		guessed = model.LogoutURL(s.logoutBase, card.Username, tk)
		if err := s.signal.Set(guessed); err != nil {
			return fmt.Errorf("save guessed logout url: %w", err)
		}
		enter(model.StateCredentialsSubmitted)
		connLog.Info("attempting connection", "guessed_logout_url", guessed)
		return nil
	})
	if errors.Is(err, driven.ErrAuthFailed) {
		enter(model.StateAuthFailed)
		connLog.Info("login failed", "card", card.Username)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	enter(model.StateAuthenticated)

	confirmed := model.LogoutURL(s.logoutBase, card.Username, tokens)
	if err := s.attrs.SetAttributeUUID(tokens.AttributeUUID); err != nil {
		return nil, err
	}
	if err := s.signal.Set(confirmed); err != nil {
		return nil, fmt.Errorf("save logout url: %w", err)
	}
	connLog.Info("connected", "logout_url", confirmed, "guessed_right", confirmed == guessed)
	observer.Connected(card.Username)

	loginTime := s.opts.now()
	enter(model.StateMonitoring)

	outcome, err := s.monitor(ctx, loginTime, req.MaxDuration, observer)
	if err != nil {
		return nil, err
	}
	enter(outcome)

	result := &UpResult{
		Username:       card.Username,
		TimeLeftBefore: timeLeft,
		Outcome:        outcome,
	}

	if outcome == model.StateLoggedOutExternally {
		result.Elapsed = s.opts.now().Sub(loginTime)
		connLog.Info("logged out by another process", "connection_time", model.FormatClock(result.Elapsed))
		return result, nil
	}

	observer.Disconnecting(outcome)
	connLog.Info("disconnecting", "reason", outcome.String())

	// The session context may already be cancelled; the logout must still go out.
	logoutCtx := context.WithoutCancel(ctx)
	status, err := s.Down(logoutCtx)
	result.Elapsed = s.opts.now().Sub(loginTime)
	connLog.Info("connection time", "elapsed", model.FormatClock(result.Elapsed))
	if err != nil {
		return result, err
	}
	result.LoggedOut = status == DownLoggedOut
	if result.LoggedOut {
		enter(model.StateLoggedOut)
	}

	after, err := s.cards.TimeLeft(logoutCtx, card.Username, model.RefreshFresh)
	if err != nil {
		slog.Warn("could not fetch final balance", "username", card.Username, "error", err)
		after, _ = s.cards.TimeLeft(logoutCtx, card.Username, model.RefreshCached)
	}
	result.TimeLeftAfter = after
	connLog.Info("reported time left", "card", card.Username, "time_left", after)

	return result, nil
}

func (s *SessionService) pickCard(ctx context.Context, username string) (*model.Card, error) {
	if username == "" {
		return s.cards.SelectCard(ctx)
	}
	return s.cards.Card(ctx, username)
}

// monitor polls once per tick until the session ends and returns the state
// that ended it.
func (s *SessionService) monitor(ctx context.Context, loginTime time.Time, limit time.Duration, observer UpObserver) (model.SessionState, error) {
	ticker := time.NewTicker(s.opts.tick)
	defer ticker.Stop()

	limited := limit > 0
	for {
		elapsed := s.opts.now().Sub(loginTime)
		var remaining time.Duration
		if limited {
			remaining = limit - elapsed
		}
		observer.Tick(elapsed, remaining, limited)

		if limited && elapsed > limit {
			return model.StateTimedOut, nil
		}

		pending, err := s.signal.Exists()
		if err != nil {
			return 0, err
		}
		if !pending {
			return model.StateLoggedOutExternally, nil
		}

		select {
		case <-ctx.Done():
			return model.StateUserCancelled, nil
		case <-ticker.C:
		}
	}
}

// Down logs out the pending session, if any. The logout URL is removed only
// when the portal confirms the logout.
func (s *SessionService) Down(ctx context.Context) (DownStatus, error) {
	logoutURL, err := s.signal.Read()
	if errors.Is(err, driven.ErrNotConnected) {
		return DownNotConnected, nil
	}
	if err != nil {
		return DownNotConnected, err
	}

	res, err := s.portal.Logout(ctx, logoutURL)
	if err != nil {
		s.opts.connLog.Error("logout failed", "error", err)
		return DownRejected, err
	}
	s.opts.connLog.Info("logout message", "message", res.Message)

	if !res.Success {
		return DownRejected, nil
	}

	if err := s.signal.Clear(); err != nil {
		return DownLoggedOut, err
	}
	return DownLoggedOut, nil
}

type nopObserver struct{}

func (nopObserver) CardSelected(string, string)             {}
func (nopObserver) Connected(string)                        {}
func (nopObserver) Tick(time.Duration, time.Duration, bool) {}
func (nopObserver) Disconnecting(model.SessionState)        {}
