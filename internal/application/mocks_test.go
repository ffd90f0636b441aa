package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// --- Mock implementations ---

type memCardStore struct {
	mu      sync.Mutex
	order   []string
	cards   map[string]model.Card
	corrupt map[string]bool
	deletes [][]string
}

func newMemCardStore(cards ...model.Card) *memCardStore {
	s := &memCardStore{cards: map[string]model.Card{}, corrupt: map[string]bool{}}
	for _, c := range cards {
		s.order = append(s.order, c.Username)
		s.cards[c.Username] = c
	}
	return s
}

func (s *memCardStore) Get(_ context.Context, username string) (*model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupt[username] {
		return nil, fmt.Errorf("decode %q: %w", username, driven.ErrStoreCorruption)
	}
	c, ok := s.cards[username]
	if !ok {
		return nil, fmt.Errorf("get card %q: %w", username, driven.ErrCardNotFound)
	}
	return &c, nil
}

func (s *memCardStore) Put(_ context.Context, card model.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[card.Username]; !ok {
		s.order = append(s.order, card.Username)
	}
	s.cards[card.Username] = card
	return nil
}

func (s *memCardStore) Update(_ context.Context, username string, fn func(*model.Card) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[username]
	if !ok {
		return driven.ErrCardNotFound
	}
	if err := fn(&c); err != nil {
		return err
	}
	c.Username = username
	s.cards[username] = c
	return nil
}

func (s *memCardStore) Delete(_ context.Context, usernames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, usernames)
	for _, u := range usernames {
		delete(s.cards, u)
		for i, o := range s.order {
			if o == u {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (s *memCardStore) List(_ context.Context) ([]model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards := []model.Card{}
	for _, u := range s.order {
		if s.corrupt[u] {
			continue
		}
		cards = append(cards, s.cards[u])
	}
	return cards, nil
}

func (s *memCardStore) Usernames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *memCardStore) card(username string) model.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cards[username]
}

var errOffline = fmt.Errorf("%w: dial tcp: connection refused", driven.ErrNetwork)

type mockPortal struct {
	mu sync.Mutex

	balance      map[string]string
	balanceErr   error
	balanceCalls []string

	expiry      map[string]string
	expiryErr   error
	expiryCalls []string

	verifyOK    bool
	verifyErr   error
	verifyCalls int

	handshake *mockHandshake
	fetchErr  error

	logoutResult model.LogoutResult
	logoutErr    error
	logoutCalls  []string

	info *model.AccountInfo
}

func (p *mockPortal) FetchLoginForm(_ context.Context) (driven.LoginHandshake, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.handshake, nil
}

func (p *mockPortal) QueryBalance(_ context.Context, username string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balanceCalls = append(p.balanceCalls, username)
	if p.balanceErr != nil {
		return "", p.balanceErr
	}
	return p.balance[username], nil
}

func (p *mockPortal) QueryExpiry(_ context.Context, username, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiryCalls = append(p.expiryCalls, username)
	if p.expiryErr != nil {
		return "", p.expiryErr
	}
	return p.expiry[username], nil
}

func (p *mockPortal) QueryAccountInfo(_ context.Context, _, _ string) (*model.AccountInfo, error) {
	if p.info == nil {
		return nil, driven.ErrInvalidCredentials
	}
	return p.info, nil
}

func (p *mockPortal) VerifyCredentials(_ context.Context, _, _ string) (bool, error) {
	p.verifyCalls++
	return p.verifyOK, p.verifyErr
}

func (p *mockPortal) Logout(_ context.Context, logoutURL string) (model.LogoutResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logoutCalls = append(p.logoutCalls, logoutURL)
	return p.logoutResult, p.logoutErr
}

func (p *mockPortal) logouts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.logoutCalls...)
}

// mockHandshake simulates the login relay. signalAtSubmit captures what the
// session signal held when the final credential submission went out.
type mockHandshake struct {
	tokens         model.SessionTokens
	submitErr      error
	signal         *memSignal
	signalAtSubmit string
	submitted      bool
}

func (h *mockHandshake) Form() model.LoginForm {
	return model.LoginForm{Action: "https://portal.test/LoginServlet", Fields: map[string]string{}}
}

func (h *mockHandshake) SubmitAuth(_ context.Context, _, _ string, beforeSubmit func(model.SessionTokens) error) (model.SessionTokens, error) {
	tokens := model.SessionTokens{CSRF: h.tokens.CSRF, ClientIP: h.tokens.ClientIP}
	if err := beforeSubmit(tokens); err != nil {
		return tokens, err
	}
	h.submitted = true
	if h.signal != nil {
		h.signalAtSubmit, _ = h.signal.Read()
	}
	if h.submitErr != nil {
		return tokens, h.submitErr
	}
	return h.tokens, nil
}

type memSignal struct {
	mu    sync.Mutex
	url   string
	set   bool
	lastU string
	sets  []string
}

func (m *memSignal) Exists() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set, nil
}

func (m *memSignal) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", driven.ErrNotConnected
	}
	return m.url, nil
}

func (m *memSignal) Set(u string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url, m.set = u, true
	m.sets = append(m.sets, u)
	return nil
}

func (m *memSignal) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url, m.set = "", false
	return nil
}

func (m *memSignal) LastAttributeUUID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastU, nil
}

func (m *memSignal) SetAttributeUUID(u string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastU = u
	return nil
}

type recordingObserver struct {
	mu          sync.Mutex
	selected    string
	connected   bool
	ticks       int
	lastLimited bool
	reason      model.SessionState
	onTick      func(n int)
}

func (o *recordingObserver) CardSelected(username, _ string) { o.selected = username }
func (o *recordingObserver) Connected(string)                { o.connected = true }

func (o *recordingObserver) Tick(_, _ time.Duration, limited bool) {
	o.mu.Lock()
	o.ticks++
	n := o.ticks
	o.lastLimited = limited
	o.mu.Unlock()
	if o.onTick != nil {
		o.onTick(n)
	}
}

func (o *recordingObserver) Disconnecting(reason model.SessionState) { o.reason = reason }

type stubConfirmer struct {
	answer bool
	err    error
	asked  [][]string
}

func (c *stubConfirmer) ConfirmDelete(usernames []string) (bool, error) {
	c.asked = append(c.asked, append([]string(nil), usernames...))
	return c.answer, c.err
}

// fixedClock returns a controllable clock.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")
