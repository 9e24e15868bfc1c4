package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/domain"
	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
	"github.com/kirinyoku/tixfront/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu     sync.Mutex
	action domain.Action
	schema string

	calls []string
	held  *domain.ReserveRequest

	unreserveAllErr error
	reserveErrs     []error
	authErr         error
	onReserve       func()
	reserveGate     chan struct{}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) GetAction(_ context.Context, _ upstream.ActionRef) (domain.Action, error) {
	f.record("get_action")
	return f.action, nil
}

func (f *fakeAPI) GetSchema(_ context.Context, _ int64) (string, error) {
	f.record("get_schema")
	return f.schema, nil
}

func (f *fakeAPI) Reserve(_ context.Context, req domain.ReserveRequest) (domain.Hold, error) {
	f.record("reserve")

	if f.reserveGate != nil {
		<-f.reserveGate
	}
	if f.onReserve != nil {
		f.onReserve()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.reserveErrs) > 0 {
		err := f.reserveErrs[0]
		f.reserveErrs = f.reserveErrs[1:]
		if err != nil {
			return domain.Hold{}, err
		}
	}

	f.held = &req
	return domain.Hold{TimeoutSeconds: 900}, nil
}

func (f *fakeAPI) UnreserveAll(_ context.Context, _ int64) error {
	f.record("unreserve_all")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unreserveAllErr != nil {
		return f.unreserveAllErr
	}
	f.held = nil
	return nil
}

func (f *fakeAPI) Auth(_ context.Context, _ string) error {
	f.record("auth")
	return f.authErr
}

type denyLimiter struct{}

func (denyLimiter) AllowCommit(context.Context, string) (redisrepo.CommitAllowance, error) {
	return redisrepo.CommitAllowance{Attempts: 11, RetryAfter: 30 * time.Second}, nil
}

const testEventID = 77

func testAction() domain.Action {
	ev := domain.Event{
		ID:         testEventID,
		ActionID:   5,
		ActionName: "Концерт",
		LimitGroups: []domain.LimitGroup{
			{
				ID:        "0",
				Remainder: 4,
				Categories: []domain.Category{
					{ID: 1, Name: "Танцпол", Price: 100000, Availability: 10, LimitGroupID: "0"},
					{ID: 2, Name: "Фан-зона", Price: 150000, Availability: 10, LimitGroupID: "0"},
				},
			},
			{
				ID: "1",
				Categories: []domain.Category{
					{ID: 3, Name: "VIP", Price: 500000, Availability: 2, LimitGroupID: "1"},
					{
						ID: 4, Name: "Балкон", Price: 80000, Availability: 3, LimitGroupID: "1",
						Tariffs: []domain.Tariff{
							{ID: 31, Name: "Взрослый", Price: 80000},
							{ID: 32, Name: "Детский", Price: 40000},
						},
					},
				},
			},
		},
	}

	return domain.Action{ID: 5, Events: map[int64]domain.Event{testEventID: ev}}
}

func newTestService(t *testing.T, api *fakeAPI) (*Service, *cart.Store) {
	t.Helper()

	if api.action.Events == nil {
		api.action = testAction()
	}

	store := cart.New(nil)
	svc := New("s1", api, store, Deps{}, Config{})

	_, err := svc.Open(context.Background(), OpenRequest{ActionID: "5", VenueID: "6", CityID: "1", EventID: testEventID})
	require.NoError(t, err)

	return svc, store
}

func TestSelectable(t *testing.T) {
	cat1 := domain.Category{ID: 1, Availability: 10, LimitGroupID: "g1"}
	cat2 := domain.Category{ID: 2, Availability: 10, LimitGroupID: "g1"}
	group := domain.LimitGroup{ID: "g1", Remainder: 4}

	item := func(catID, tariffID int64, eventID int64) domain.CartItem {
		return domain.CartItem{
			Key:      domain.CategoryKey(catID, tariffID),
			Kind:     domain.ItemCategory,
			ID:       catID,
			TariffID: tariffID,
			EventID:  eventID,
			Price:    100,
		}
	}

	tests := []struct {
		name     string
		cat      domain.Category
		group    domain.LimitGroup
		tariffID int64
		fill     func(s *cart.Store)
		want     int
	}{
		{
			name:  "limit group caps the other category",
			cat:   cat2,
			group: group,
			fill: func(s *cart.Store) {
				for range 3 {
					s.IncreaseItem(item(1, 0, 7))
				}
			},
			want: 1,
		},
		{
			name:  "zero remainder means no cap",
			cat:   cat2,
			group: domain.LimitGroup{ID: "g1"},
			fill: func(s *cart.Store) {
				for range 3 {
					s.IncreaseItem(item(1, 0, 7))
				}
			},
			want: 10,
		},
		{
			name: "stale availability floors at zero",
			cat:  domain.Category{ID: 9, Availability: 1},
			fill: func(s *cart.Store) {
				s.AddItems(domain.CartItem{Key: "9", Kind: domain.ItemCategory, ID: 9, EventID: 7, Quantity: 5})
			},
			want: 0,
		},
		{
			name:  "group overdrawn floors at zero",
			cat:   cat1,
			group: group,
			fill: func(s *cart.Store) {
				s.AddItems(domain.CartItem{Key: "1", Kind: domain.ItemCategory, ID: 1, EventID: 7, Quantity: 6})
			},
			want: 0,
		},
		{
			name:     "tariffs share category availability",
			cat:      domain.Category{ID: 4, Availability: 3},
			tariffID: 32,
			fill: func(s *cart.Store) {
				s.IncreaseItem(item(4, 31, 7))
				s.IncreaseItem(item(4, 31, 7))
			},
			want: 1,
		},
		{
			name:  "other events do not count against the group",
			cat:   cat2,
			group: group,
			fill: func(s *cart.Store) {
				for range 4 {
					s.IncreaseItem(item(1, 0, 8))
				}
			},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := cart.New(nil)
			tt.fill(s)

			got := Selectable(7, tt.cat, tt.group, tt.tariffID, s.Snapshot())
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}

func TestService_OpenUnknownEvent(t *testing.T) {
	api := &fakeAPI{action: testAction()}
	svc := New("s1", api, cart.New(nil), Deps{}, Config{})

	_, err := svc.Open(context.Background(), OpenRequest{EventID: 999})
	require.ErrorIs(t, err, ErrEventNotFound)

	_, err = svc.View()
	require.ErrorIs(t, err, ErrNotOpened)
}

func TestService_OpenPurgesOtherEvents(t *testing.T) {
	tests := []struct {
		name          string
		auth          domain.AuthStatus
		wantUnreserve bool
	}{
		{name: "authenticated releases holds", auth: domain.AuthAuthenticated, wantUnreserve: true},
		{name: "anonymous only clears", auth: domain.AuthIdle, wantUnreserve: false},
		{name: "not authenticated only clears", auth: domain.AuthNotAuthenticated, wantUnreserve: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{action: testAction()}
			store := cart.New(nil)
			store.SetAuthStatus(tt.auth)
			store.IncreaseItem(domain.CartItem{Key: "1", Kind: domain.ItemCategory, ID: 1, EventID: 12})

			svc := New("s1", api, store, Deps{}, Config{})
			_, err := svc.Open(context.Background(), OpenRequest{EventID: testEventID})
			require.NoError(t, err)

			assert.Zero(t, store.Len())
			assert.Equal(t, tt.wantUnreserve, contains(api.Calls(), "unreserve_all"))
		})
	}
}

func TestService_OpenKeepsSameEventItems(t *testing.T) {
	api := &fakeAPI{action: testAction()}
	store := cart.New(nil)
	store.IncreaseItem(domain.CartItem{Key: "1", Kind: domain.ItemCategory, ID: 1, EventID: testEventID})

	svc := New("s1", api, store, Deps{}, Config{})
	_, err := svc.Open(context.Background(), OpenRequest{EventID: testEventID})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
}

func TestService_IncreaseCategory(t *testing.T) {
	svc, store := newTestService(t, &fakeAPI{})

	require.NoError(t, svc.IncreaseCategory(3))
	require.NoError(t, svc.IncreaseCategory(3))
	require.ErrorIs(t, svc.IncreaseCategory(3), ErrNothingSelectable)
	assert.Equal(t, 2, store.Snapshot().Quantity("3"))

	require.ErrorIs(t, svc.IncreaseCategory(4), ErrTariffRequired)
	require.ErrorIs(t, svc.IncreaseCategory(404), ErrCategoryNotFound)

	require.NoError(t, svc.DecreaseCategory(3))
	require.NoError(t, svc.DecreaseCategory(3))
	assert.False(t, store.Snapshot().Has("3"))
}

func TestService_GroupCapAcrossCategories(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{})

	for range 3 {
		require.NoError(t, svc.IncreaseCategory(1))
	}

	v, err := svc.View()
	require.NoError(t, err)
	assert.Equal(t, 1, v.Groups[0].Categories[1].Selectable)

	require.NoError(t, svc.IncreaseCategory(2))
	require.ErrorIs(t, svc.IncreaseCategory(2), ErrNothingSelectable)
	require.ErrorIs(t, svc.IncreaseCategory(1), ErrNothingSelectable)
}

func TestService_TariffDraft(t *testing.T) {
	svc, store := newTestService(t, &fakeAPI{})

	_, err := svc.DraftIncrease(4, 31)
	require.ErrorIs(t, err, ErrDraftNotOpen)

	_, err = svc.OpenDraft(3)
	require.ErrorIs(t, err, ErrNoTariffs)

	v, err := svc.OpenDraft(4)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Total)

	_, err = svc.DraftIncrease(4, 31)
	require.NoError(t, err)
	_, err = svc.DraftIncrease(4, 32)
	require.NoError(t, err)
	v, err = svc.DraftIncrease(4, 32)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, int64(80000+2*40000), v.Sum)

	_, err = svc.DraftIncrease(4, 31)
	require.ErrorIs(t, err, ErrNothingSelectable)

	_, err = svc.DraftIncrease(4, 99)
	require.ErrorIs(t, err, ErrTariffNotFound)

	assert.Zero(t, store.Len(), "draft must not touch the cart")

	require.NoError(t, svc.ApplyDraft(4))
	snap := store.Snapshot()
	assert.Equal(t, 1, snap.Quantity("4:31"))
	assert.Equal(t, 2, snap.Quantity("4:32"))
	assert.Equal(t, int64(160000), snap.TotalSum)

	// reopening starts from the cart
	v, err = svc.OpenDraft(4)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Total)

	_, err = svc.DraftDecrease(4, 31)
	require.NoError(t, err)
	require.NoError(t, svc.ApplyDraft(4))
	snap = store.Snapshot()
	assert.False(t, snap.Has("4:31"))
	assert.Equal(t, 2, snap.Quantity("4:32"))

	require.NoError(t, svc.ResetDraft(4))
	assert.Zero(t, store.Len())
}

func TestService_CommitOrderAndIdempotence(t *testing.T) {
	api := &fakeAPI{}
	svc, store := newTestService(t, api)

	require.NoError(t, svc.IncreaseCategory(1))
	require.NoError(t, svc.IncreaseCategory(1))
	store.IncreaseItem(domain.CartItem{Key: "501", Kind: domain.ItemSeat, ID: 501, EventID: testEventID, Price: 1})

	want := store.Snapshot().ReserveRequest(testEventID)

	for range 2 {
		hold, err := svc.Commit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 900, hold.TimeoutSeconds)

		require.NotNil(t, api.held)
		assert.Equal(t, want, *api.held)
	}

	assert.Equal(t, []string{"get_action", "unreserve_all", "reserve", "unreserve_all", "reserve"}, api.Calls())
	assert.Equal(t, domain.AuthAuthenticated, store.AuthStatus())
}

func TestService_CommitEmptyCart(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{})

	_, err := svc.Commit(context.Background())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.True(t, IsAdvisory(err))
}

func TestService_CommitFailureLeavesCartIntact(t *testing.T) {
	advisory := &upstream.APIError{Type: upstream.TypeMessage, Code: "no_seats", Message: "Нет мест", Advice: "Выберите другие места"}

	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{name: "reserve rejects", api: &fakeAPI{reserveErrs: []error{advisory}}},
		{name: "release rejects", api: &fakeAPI{unreserveAllErr: advisory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, tt.api)

			require.NoError(t, svc.IncreaseCategory(1))
			require.NoError(t, svc.IncreaseCategory(3))
			before := store.Snapshot()

			_, err := svc.Commit(context.Background())
			require.Error(t, err)
			assert.True(t, IsAdvisory(err))
			assert.False(t, svc.Pending())

			after := store.Snapshot()
			assert.Equal(t, before.Items, after.Items)
			assert.Equal(t, before.TotalSum, after.TotalSum)
		})
	}
}

func TestService_AuthRequiredThenReplay(t *testing.T) {
	unauthorized := &upstream.APIError{Type: upstream.TypeWarning, Code: upstream.CodeUnauthorized, Message: "Авторизуйтесь"}
	api := &fakeAPI{reserveErrs: []error{unauthorized}}
	svc, store := newTestService(t, api)

	require.NoError(t, svc.IncreaseCategory(1))
	want := store.Snapshot().ReserveRequest(testEventID)

	_, err := svc.Commit(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.True(t, svc.Pending())
	assert.Equal(t, domain.AuthNotAuthenticated, store.AuthStatus())
	assert.Equal(t, 1, store.Len())

	_, _, err = svc.Authenticate(context.Background(), "not-an-email")
	require.ErrorIs(t, err, ErrInvalidEmail)
	assert.True(t, svc.Pending())

	hold, replayed, err := svc.Authenticate(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, 900, hold.TimeoutSeconds)
	assert.False(t, svc.Pending())
	assert.Equal(t, domain.AuthAuthenticated, store.AuthStatus())
	require.NotNil(t, api.held)
	assert.Equal(t, want, *api.held)

	assert.Equal(t, []string{
		"get_action",
		"unreserve_all", "reserve",
		"auth",
		"unreserve_all", "reserve",
	}, api.Calls())

	// nothing left to replay
	_, replayed, err = svc.Authenticate(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestService_AuthFailureKeepsPending(t *testing.T) {
	unauthorized := &upstream.APIError{Type: upstream.TypeWarning, Code: upstream.CodeUnauthorized}
	api := &fakeAPI{reserveErrs: []error{unauthorized}, authErr: &upstream.APIError{Type: upstream.TypeMessage, Code: "bad_email"}}
	svc, _ := newTestService(t, api)

	require.NoError(t, svc.IncreaseCategory(1))
	_, err := svc.Commit(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)

	_, replayed, err := svc.Authenticate(context.Background(), "user@example.com")
	require.Error(t, err)
	assert.False(t, replayed)
	assert.True(t, svc.Pending())
}

func TestService_ReplayUsesCurrentCart(t *testing.T) {
	unauthorized := &upstream.APIError{Type: upstream.TypeWarning, Code: upstream.CodeUnauthorized}

	tests := []struct {
		name         string
		edit         func(t *testing.T, svc *Service, store *cart.Store)
		wantErr      error
		wantReplayed bool
		wantHeld     []domain.CategoryHold
	}{
		{
			name: "decrease while signing in",
			edit: func(t *testing.T, svc *Service, _ *cart.Store) {
				require.NoError(t, svc.DecreaseCategory(1))
			},
			wantReplayed: true,
			wantHeld:     []domain.CategoryHold{{CategoryID: 1, Quantity: 1}},
		},
		{
			name: "increase while signing in",
			edit: func(t *testing.T, svc *Service, _ *cart.Store) {
				require.NoError(t, svc.IncreaseCategory(1))
			},
			wantReplayed: true,
			wantHeld:     []domain.CategoryHold{{CategoryID: 1, Quantity: 3}},
		},
		{
			name: "cart cleared while signing in",
			edit: func(_ *testing.T, _ *Service, store *cart.Store) {
				store.RemoveItems()
			},
			wantErr: ErrStaleCommit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{reserveErrs: []error{unauthorized}}
			svc, store := newTestService(t, api)

			require.NoError(t, svc.IncreaseCategory(1))
			require.NoError(t, svc.IncreaseCategory(1))

			_, err := svc.Commit(context.Background())
			require.ErrorIs(t, err, ErrAuthRequired)

			tt.edit(t, svc, store)

			_, replayed, err := svc.Authenticate(context.Background(), "user@example.com")
			assert.False(t, svc.Pending())
			assert.Equal(t, tt.wantReplayed, replayed)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, api.held)
				assert.Equal(t, "auth", api.Calls()[len(api.Calls())-1])
				return
			}

			require.NoError(t, err)
			require.NotNil(t, api.held)
			assert.Equal(t, tt.wantHeld, api.held.Categories)
			assert.Equal(t, store.Snapshot().ReserveRequest(testEventID), *api.held)
		})
	}
}

func TestService_ReplaySkipsEmptiedCart(t *testing.T) {
	unauthorized := &upstream.APIError{Type: upstream.TypeWarning, Code: upstream.CodeUnauthorized}
	api := &fakeAPI{reserveErrs: []error{unauthorized}}
	svc, _ := newTestService(t, api)

	require.NoError(t, svc.IncreaseCategory(1))
	_, err := svc.Commit(context.Background())
	require.ErrorIs(t, err, ErrAuthRequired)

	require.NoError(t, svc.DecreaseCategory(1))

	_, replayed, err := svc.Authenticate(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.False(t, svc.Pending())
	assert.Nil(t, api.held)
	assert.Equal(t, []string{"get_action", "unreserve_all", "reserve", "auth"}, api.Calls())
}

func TestService_CommitInFlightGuard(t *testing.T) {
	api := &fakeAPI{reserveGate: make(chan struct{})}
	svc, _ := newTestService(t, api)
	require.NoError(t, svc.IncreaseCategory(1))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Commit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return contains(api.Calls(), "reserve")
	}, time.Second, 5*time.Millisecond)

	_, err := svc.Commit(context.Background())
	require.ErrorIs(t, err, ErrCommitInProgress)

	close(api.reserveGate)
	require.NoError(t, <-done)
}

func TestService_StaleCommitIsDiscarded(t *testing.T) {
	api := &fakeAPI{}
	svc, store := newTestService(t, api)
	require.NoError(t, svc.IncreaseCategory(1))

	// the countdown expires while reserve is in flight
	api.onReserve = func() { store.RemoveItems() }

	_, err := svc.Commit(context.Background())
	require.ErrorIs(t, err, ErrStaleCommit)

	assert.Zero(t, store.Len())
	assert.Nil(t, api.held)
	assert.Equal(t, []string{"get_action", "unreserve_all", "reserve", "unreserve_all"}, api.Calls())
}

func TestService_CommitRateLimited(t *testing.T) {
	api := &fakeAPI{action: testAction()}
	store := cart.New(nil)
	svc := New("s1", api, store, Deps{Limiter: denyLimiter{}}, Config{})
	_, err := svc.Open(context.Background(), OpenRequest{EventID: testEventID})
	require.NoError(t, err)
	require.NoError(t, svc.IncreaseCategory(1))

	_, err = svc.Commit(context.Background())

	var rl RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
	assert.NotContains(t, api.Calls(), "reserve")
}

func TestService_RemoveItem(t *testing.T) {
	svc, store := newTestService(t, &fakeAPI{})
	require.NoError(t, svc.IncreaseCategory(1))
	store.IncreaseItem(domain.CartItem{Key: "501", Kind: domain.ItemSeat, ID: 501, EventID: testEventID})

	require.Error(t, svc.RemoveItem("501"))
	require.NoError(t, svc.RemoveItem("1"))
	require.NoError(t, svc.RemoveItem("missing"))

	assert.Equal(t, 1, store.Len())
}

func contains(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}
