package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/nauta/internal/application"
	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

var baseTime = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newCardService(store *memCardStore, portal *mockPortal, clock *fixedClock) *application.CardService {
	return application.NewCardService(store, portal, application.WithClock(clock.Now))
}

func TestResolveUsername(t *testing.T) {
	store := newMemCardStore(
		model.Card{Username: "ana@nauta.com.cu"},
		model.Card{Username: "juan@nauta.co.cu"},
		model.Card{Username: "pedro"},
	)
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{"juan", "juan@nauta.co.cu"},
		{"JUAN", "juan@nauta.co.cu"},
		{"Ana", "ana@nauta.com.cu"},
		{"pedro", "pedro"},
		{"maria", "maria"},
		{"juan@nauta.com.cu", "juan@nauta.com.cu"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := svc.ResolveUsername(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUsername_FirstMatchWins(t *testing.T) {
	store := newMemCardStore(
		model.Card{Username: "juan@nauta.com.cu"},
		model.Card{Username: "juan@nauta.co.cu"},
	)
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})

	got, err := svc.ResolveUsername(context.Background(), "juan")
	require.NoError(t, err)
	assert.Equal(t, "juan@nauta.com.cu", got)
}

func TestSelectCard_SmallestPositiveBalance(t *testing.T) {
	store := newMemCardStore(
		model.Card{Username: "hour", TimeLeft: "01:00:00"},
		model.Card{Username: "ten", TimeLeft: "00:10:00"},
		model.Card{Username: "empty", TimeLeft: "00:00:00"},
		model.Card{Username: "unknown"},
		model.Card{Username: "junk", TimeLeft: "N/A"},
	)
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})

	card, err := svc.SelectCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ten", card.Username)
}

func TestSelectCard_ComparesDurationsNotStrings(t *testing.T) {
	// Lexically "9:00:00" > "10:00:00"; as durations it is smaller.
	store := newMemCardStore(
		model.Card{Username: "ten-hours", TimeLeft: "10:00:00"},
		model.Card{Username: "nine-hours", TimeLeft: "9:00:00"},
	)
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})

	card, err := svc.SelectCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nine-hours", card.Username)
}

func TestSelectCard_NoneAvailable(t *testing.T) {
	store := newMemCardStore(
		model.Card{Username: "empty", TimeLeft: "00:00:00"},
		model.Card{Username: "unknown"},
	)
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})

	_, err := svc.SelectCard(context.Background())
	assert.ErrorIs(t, err, application.ErrNoCardAvailable)
}

func TestTimeLeft_SkipsFetchWithinTTL(t *testing.T) {
	clock := &fixedClock{now: baseTime}
	store := newMemCardStore(model.Card{Username: "a", TimeLeft: "00:05:00", LastUpdate: baseTime.Add(-30 * time.Second)})
	portal := &mockPortal{balance: map[string]string{"a": "00:04:00"}}
	svc := newCardService(store, portal, clock)

	got, err := svc.TimeLeft(context.Background(), "a", model.RefreshNormal)
	require.NoError(t, err)
	assert.Equal(t, "00:05:00", got)
	assert.Empty(t, portal.balanceCalls)
}

func TestTimeLeft_FetchesWhenStale(t *testing.T) {
	clock := &fixedClock{now: baseTime}
	store := newMemCardStore(model.Card{Username: "a", TimeLeft: "00:05:00", LastUpdate: baseTime.Add(-61 * time.Second)})
	portal := &mockPortal{balance: map[string]string{"a": "00:04:00\n"}}
	svc := newCardService(store, portal, clock)

	got, err := svc.TimeLeft(context.Background(), "a", model.RefreshNormal)
	require.NoError(t, err)
	assert.Equal(t, "00:04:00", got)
	assert.Equal(t, []string{"a"}, portal.balanceCalls)
	assert.Equal(t, baseTime, store.card("a").LastUpdate)
}

func TestTimeLeft_FetchesWhenNeverRefreshed(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a", Password: "pw"})
	portal := &mockPortal{balance: map[string]string{"a": "02:00:00"}}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	got, err := svc.TimeLeft(context.Background(), "a", model.RefreshNormal)
	require.NoError(t, err)
	assert.Equal(t, "02:00:00", got)
}

func TestTimeLeft_FreshAlwaysFetches(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a", TimeLeft: "00:05:00", LastUpdate: baseTime})
	portal := &mockPortal{balance: map[string]string{"a": "00:04:59"}}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	got, err := svc.TimeLeft(context.Background(), "a", model.RefreshFresh)
	require.NoError(t, err)
	assert.Equal(t, "00:04:59", got)
	assert.Len(t, portal.balanceCalls, 1)
}

func TestTimeLeft_CachedNeverFetches(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a"})
	portal := &mockPortal{balanceErr: errOffline}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	got, err := svc.TimeLeft(context.Background(), "a", model.RefreshCached)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, portal.balanceCalls)
}

func TestTimeLeft_IgnoresMalformedResponse(t *testing.T) {
	old := baseTime.Add(-5 * time.Minute)
	store := newMemCardStore(model.Card{Username: "a", TimeLeft: "00:05:00", LastUpdate: old})
	portal := &mockPortal{balance: map[string]string{"a": "errorop"}}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	got, err := svc.TimeLeft(context.Background(), "a", model.RefreshNormal)
	require.NoError(t, err)
	assert.Equal(t, "00:05:00", got)
	assert.Equal(t, old, store.card("a").LastUpdate)
}

func TestTimeLeft_NetworkErrorSurfaces(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a"})
	svc := newCardService(store, &mockPortal{balanceErr: errOffline}, &fixedClock{now: baseTime})

	_, err := svc.TimeLeft(context.Background(), "a", model.RefreshNormal)
	assert.ErrorIs(t, err, driven.ErrNetwork)
}

func TestTimeLeft_UnknownCard(t *testing.T) {
	svc := newCardService(newMemCardStore(), &mockPortal{}, &fixedClock{now: baseTime})

	_, err := svc.TimeLeft(context.Background(), "ghost", model.RefreshNormal)
	assert.ErrorIs(t, err, driven.ErrCardNotFound)
}

func TestExpireDate_FetchedOnce(t *testing.T) {
	clock := &fixedClock{now: baseTime}
	store := newMemCardStore(model.Card{Username: "a", Password: "pw"})
	portal := &mockPortal{expiry: map[string]string{"a": "31/12/2026"}}
	svc := newCardService(store, portal, clock)
	ctx := context.Background()

	got, err := svc.ExpireDate(ctx, "a", model.RefreshNormal)
	require.NoError(t, err)
	assert.Equal(t, "31/12/2026", got)

	clock.Advance(365 * 24 * time.Hour)
	got, err = svc.ExpireDate(ctx, "a", model.RefreshNormal)
	require.NoError(t, err)
	assert.Equal(t, "31/12/2026", got)
	assert.Len(t, portal.expiryCalls, 1, "expiry is not time-based-expired")

	portal.expiry["a"] = "31/12/2027"
	got, err = svc.ExpireDate(ctx, "a", model.RefreshFresh)
	require.NoError(t, err)
	assert.Equal(t, "31/12/2027", got)
	assert.Len(t, portal.expiryCalls, 2)
}

func TestExpireDate_InvalidCredentialsCached(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a", Password: "bad"})
	portal := &mockPortal{expiryErr: driven.ErrInvalidCredentials}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	got, err := svc.ExpireDate(context.Background(), "a", model.RefreshNormal)
	require.NoError(t, err)
	assert.Equal(t, model.ExpiryInvalidCredentials, got)
	assert.Equal(t, model.ExpiryInvalidCredentials, store.card("a").ExpireDate)
}

func TestList_DegradesToCacheAfterNetworkError(t *testing.T) {
	store := newMemCardStore(
		model.Card{Username: "a", Password: "pw", TimeLeft: "00:05:00", ExpireDate: "01/01/2027"},
		model.Card{Username: "b", Password: "pw", TimeLeft: "00:10:00"},
	)
	portal := &mockPortal{balanceErr: errOffline, expiryErr: errOffline}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	listing, err := svc.List(context.Background(), model.RefreshNormal)
	require.NoError(t, err)

	assert.True(t, listing.Offline)
	require.Len(t, listing.Cards, 2)
	assert.Equal(t, "00:05:00", listing.Cards[0].TimeLeft)
	assert.Equal(t, "01/01/2027", listing.Cards[0].ExpireDate)
	assert.Equal(t, "00:10:00", listing.Cards[1].TimeLeft)
	assert.Len(t, portal.balanceCalls, 1, "no network calls after the first failure")
}

func TestList_Online(t *testing.T) {
	store := newMemCardStore(
		model.Card{Username: "a", Password: "pw"},
		model.Card{Username: "b", Password: "pw"},
	)
	portal := &mockPortal{
		balance: map[string]string{"a": "00:01:00", "b": "00:02:00"},
		expiry:  map[string]string{"a": "x", "b": "y"},
	}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	listing, err := svc.List(context.Background(), model.RefreshNormal)
	require.NoError(t, err)

	assert.False(t, listing.Offline)
	assert.Equal(t, []application.CardStatus{
		{Card: model.Card{Username: "a", Password: "pw"}, TimeLeft: "00:01:00", ExpireDate: "x"},
		{Card: model.Card{Username: "b", Password: "pw"}, TimeLeft: "00:02:00", ExpireDate: "y"},
	}, listing.Cards)
}

func TestAdd_VerifiedCardIsStored(t *testing.T) {
	store := newMemCardStore()
	portal := &mockPortal{verifyOK: true}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	require.NoError(t, svc.Add(context.Background(), "Juan@Nauta.com.cu", "pw"))

	card, err := store.Get(context.Background(), "juan@nauta.com.cu")
	require.NoError(t, err)
	assert.Equal(t, "pw", card.Password)
	assert.Empty(t, card.TimeLeft)
}

func TestAdd_RejectedCardLeavesStoreUnchanged(t *testing.T) {
	store := newMemCardStore()
	portal := &mockPortal{verifyOK: false}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	err := svc.Add(context.Background(), "juan@nauta.com.cu", "wrong")
	assert.ErrorIs(t, err, driven.ErrInvalidCredentials)

	_, err = store.Get(context.Background(), "juan@nauta.com.cu")
	assert.ErrorIs(t, err, driven.ErrCardNotFound)
}

func TestAdd_NetworkErrorLeavesStoreUnchanged(t *testing.T) {
	store := newMemCardStore()
	portal := &mockPortal{verifyErr: errOffline}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	err := svc.Add(context.Background(), "juan@nauta.com.cu", "pw")
	assert.ErrorIs(t, err, driven.ErrNetwork)

	names, _ := store.Usernames(context.Background())
	assert.Empty(t, names)
}

func TestRemove_RequiresConfirmation(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a"}, model.Card{Username: "b"})
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})
	ctx := context.Background()

	declined := &stubConfirmer{answer: false}
	removed, err := svc.Remove(ctx, []string{"a"}, declined)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, [][]string{{"a"}}, declined.asked)
	assert.Empty(t, store.deletes)

	accepted := &stubConfirmer{answer: true}
	removed, err = svc.Remove(ctx, []string{"a"}, accepted)
	require.NoError(t, err)
	assert.True(t, removed)

	names, _ := store.Usernames(ctx)
	assert.Equal(t, []string{"b"}, names)
}

func TestRemove_UnknownCardIsNotConfirmed(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a"})
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})
	confirmer := &stubConfirmer{answer: true}

	removed, err := svc.Remove(context.Background(), []string{"a", "ghost"}, confirmer)
	assert.ErrorIs(t, err, driven.ErrCardNotFound)
	assert.False(t, removed)
	assert.Empty(t, confirmer.asked)
	assert.Empty(t, store.deletes)
}

func TestRemove_CorruptCardCanBeRemoved(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a"})
	store.corrupt["a"] = true
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})

	removed, err := svc.Remove(context.Background(), []string{"a"}, &stubConfirmer{answer: true})
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestRemove_ConfirmerError(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a"})
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})

	_, err := svc.Remove(context.Background(), []string{"a"}, &stubConfirmer{err: errBoom})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, store.deletes)
}

func TestClean_PurgesOnlyKnownExhaustedCards(t *testing.T) {
	store := newMemCardStore(
		model.Card{Username: "live", TimeLeft: "00:10:00"},
		model.Card{Username: "spent", TimeLeft: "00:00:00"},
		model.Card{Username: "unknown"},
	)
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})
	confirmer := &stubConfirmer{answer: true}

	exhausted, removed, err := svc.Clean(context.Background(), confirmer)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"spent"}, exhausted)
	assert.Equal(t, [][]string{{"spent"}}, confirmer.asked)

	names, _ := store.Usernames(context.Background())
	assert.Equal(t, []string{"live", "unknown"}, names)
}

func TestClean_NothingToDoDoesNotPrompt(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "live", TimeLeft: "00:10:00"})
	svc := newCardService(store, &mockPortal{}, &fixedClock{now: baseTime})
	confirmer := &stubConfirmer{answer: true}

	exhausted, removed, err := svc.Clean(context.Background(), confirmer)
	require.NoError(t, err)
	assert.Empty(t, exhausted)
	assert.False(t, removed)
	assert.Empty(t, confirmer.asked)
}

func TestInfo(t *testing.T) {
	store := newMemCardStore(model.Card{Username: "a", Password: "pw"})
	portal := &mockPortal{info: &model.AccountInfo{Fields: []model.InfoField{{Label: "Estado", Value: "Activa"}}}}
	svc := newCardService(store, portal, &fixedClock{now: baseTime})

	info, err := svc.Info(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "Activa", info.Fields[0].Value)
}

// Store: a (00:05:00, refreshed 120s ago), b (00:00:00). Selection picks a,
// and a fresh balance query updates both the value and the refresh time.
func TestScenario_SelectThenFreshRefresh(t *testing.T) {
	clock := &fixedClock{now: baseTime}
	store := newMemCardStore(
		model.Card{Username: "usera", Password: "pw", TimeLeft: "00:05:00", LastUpdate: baseTime.Add(-120 * time.Second)},
		model.Card{Username: "userb", Password: "pw", TimeLeft: "00:00:00"},
	)
	portal := &mockPortal{balance: map[string]string{"usera": "00:04:50"}}
	svc := newCardService(store, portal, clock)
	ctx := context.Background()

	card, err := svc.SelectCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "usera", card.Username)

	got, err := svc.TimeLeft(ctx, "usera", model.RefreshFresh)
	require.NoError(t, err)
	assert.Equal(t, "00:04:50", got)

	stored := store.card("usera")
	assert.Equal(t, "00:04:50", stored.TimeLeft)
	assert.Equal(t, clock.Now(), stored.LastUpdate)
}
