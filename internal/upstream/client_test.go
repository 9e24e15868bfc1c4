package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/kirinyoku/tixfront/internal/kv"
	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*API, *Client, *kv.Memory) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	api := New(Config{Endpoint: srv.URL}, nil, nil)
	tokens := kv.NewMemory()

	return api, api.Session(tokens, "s1"), tokens
}

func TestClient_ReserveSendsCartAndRefreshesToken(t *testing.T) {
	var got map[string]any

	_, c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/json/reserve", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))

		_, _ = io.WriteString(w, `{
			"type": "success",
			"decode": {
				"cartTimeout": 900,
				"currency": "RUB",
				"seatList": [{"seatId": 501, "categoryPriceId": 10, "sector": "Партер", "row": 3, "number": "12", "price": 1500.5}]
			},
			"error": false, "message": false, "advice": false, "system": false,
			"api_key": "fresh", "mode": 2
		}`)
	})

	ctx := context.Background()
	require.NoError(t, c.SetToken(ctx, "old"))

	hold, err := c.Reserve(ctx, domain.ReserveRequest{
		EventID:    77,
		Categories: []domain.CategoryHold{{CategoryID: 10, TariffID: 3, Quantity: 2}},
		Seats:      []domain.SeatHold{{SeatID: 501}},
	})
	require.NoError(t, err)

	assert.Equal(t, "old", got["api_key"])
	assert.Equal(t, float64(77), got["eid"])
	assert.Equal(t, []any{map[string]any{"cid": float64(10), "tid": float64(3), "qty": float64(2)}}, got["categories"])
	assert.Equal(t, []any{map[string]any{"sid": float64(501)}}, got["seats"])

	assert.Equal(t, 900, hold.TimeoutSeconds)
	require.Len(t, hold.Seats, 1)
	assert.Equal(t, domain.HeldSeat{SeatID: 501, CategoryID: 10, Sector: "Партер", Row: "3", Number: "12", Price: 150050}, hold.Seats[0])

	tok, err := c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, "2", c.api.Mode())
}

func TestClient_ErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType ErrorType
		wantCode string
		wantMsg  string
		wantKind Kind
	}{
		{
			name:     "advisory message",
			body:     `{"type":"message","decode":false,"error":"no_seats","message":"Нет мест","advice":"Выберите другие","system":false,"api_key":false,"mode":0}`,
			wantType: TypeMessage,
			wantCode: "no_seats",
			wantMsg:  "Нет мест",
			wantKind: KindAdvisory,
		},
		{
			name:     "unauthorized",
			body:     `{"type":"warning","decode":false,"error":"user_unauthorized","message":"Авторизуйтесь","advice":false,"system":false,"api_key":false}`,
			wantType: TypeWarning,
			wantCode: CodeUnauthorized,
			wantMsg:  "Авторизуйтесь",
			wantKind: KindAuthRequired,
		},
		{
			name:     "bare warning gets defaults",
			body:     `{"type":"warning","decode":false,"error":false,"message":false,"advice":false,"system":false,"api_key":false}`,
			wantType: TypeWarning,
			wantCode: CodeUnknown,
			wantMsg:  defaultMessage,
			wantKind: KindCritical,
		},
		{
			name:     "unknown type is a warning",
			body:     `{"type":"oops","error":"x"}`,
			wantType: TypeWarning,
			wantCode: "x",
			wantMsg:  defaultMessage,
			wantKind: KindCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			ctx := context.Background()
			require.NoError(t, c.SetToken(ctx, "keep"))

			err := c.UnreserveAll(ctx, 0)
			require.Error(t, err)

			ae, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, ae.Type)
			assert.Equal(t, tt.wantCode, ae.Code)
			assert.Equal(t, tt.wantMsg, ae.Message)
			assert.Equal(t, tt.wantKind, Classify(err))

			tok, _ := c.Token(ctx)
			assert.Equal(t, "keep", tok)
		})
	}
}

func TestClient_GarbageResponseIsCritical(t *testing.T) {
	_, c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := c.GetCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindCritical, Classify(err))
}

func TestClassify_PlainError(t *testing.T) {
	assert.Equal(t, KindCritical, Classify(errors.New("dial tcp: refused")))
	assert.Equal(t, KindCritical, Classify(nil))
}

func TestClient_GetActionConvertsCatalog(t *testing.T) {
	_, c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/json/get_action_ext", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("aid"))
		assert.Equal(t, "6", r.URL.Query().Get("vid"))
		assert.Equal(t, "1", r.URL.Query().Get("cid"))

		_, _ = io.WriteString(w, `{
			"type": "success",
			"decode": {
				"actionId": 5, "actionName": "Концерт", "address": "ул. Ленина, 1", "poster": "p.jpg",
				"venueId": 6, "venueName": "Зал",
				"events": {
					"77": {
						"actionEventId": 77,
						"currency": "RUB",
						"timestamp": 1700000000,
						"placementUrl": "https://seats/77",
						"tariffPlanList": [{"tariffPlanId": 9, "tariffPlanName": "Детский"}, {"tariffPlanId": 3, "tariffPlanName": "Взрослый"}],
						"categoryLimitList": [
							{"categoryList": [{"availability": 10, "categoryPriceId": 1, "categoryPriceName": "Танцпол", "price": 1000, "tariffIdMap": {"3": 1000, "9": 500}}], "remainder": 4},
							{"categoryList": [{"availability": 2, "categoryPriceId": 2, "categoryPriceName": "VIP", "price": 5000}]}
						]
					}
				}
			},
			"error": false, "message": false, "advice": false, "system": false, "api_key": false
		}`)
	})

	a, err := c.GetAction(context.Background(), ActionRef{ActionID: "5", VenueID: "6", CityID: "1"})
	require.NoError(t, err)

	ev, ok := a.Events[77]
	require.True(t, ok)
	assert.True(t, ev.HasSeatMap())
	assert.Equal(t, "Концерт", ev.ActionName)
	require.Len(t, ev.LimitGroups, 2)

	assert.Equal(t, "0", ev.LimitGroups[0].ID)
	assert.Equal(t, 4, ev.LimitGroups[0].Remainder)
	assert.Equal(t, 0, ev.LimitGroups[1].Remainder)

	cat, g, ok := ev.Category(1)
	require.True(t, ok)
	assert.Equal(t, "0", g.ID)
	assert.Equal(t, int64(100000), cat.Price)
	assert.Equal(t, []domain.Tariff{
		{ID: 9, Name: "Детский", Price: 50000},
		{ID: 3, Name: "Взрослый", Price: 100000},
	}, cat.Tariffs)

	vip, _, ok := ev.Category(2)
	require.True(t, ok)
	assert.Empty(t, vip.Tariffs)
	assert.Equal(t, "1", vip.LimitGroupID)
}

func TestClient_CreateOrderFormatsSum(t *testing.T) {
	var got map[string]any

	_, c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/create_order", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = io.WriteString(w, `{"type":"success","decode":{"orderId":42,"formUrl":"https://pay/42","statusExtStr":"NEW","statusExtInt":0},"api_key":false}`)
	})

	o, err := c.CreateOrder(context.Background(), domain.OrderDraft{Sum: 300050, Currency: "RUB"})
	require.NoError(t, err)

	assert.Equal(t, "3000.5", got["sum"])
	assert.Equal(t, "RUB", got["currency"])
	assert.NotContains(t, got, "name")
	assert.Nil(t, got["api_key"])
	assert.Equal(t, domain.PlacedOrder{OrderID: 42, PaymentURL: "https://pay/42", Status: domain.OrderNew, StatusText: "NEW"}, o)
}

func TestClient_GetCartConvertsMoney(t *testing.T) {
	_, c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"success","decode":{
			"actionEventList":[{"actionEventId":77,"phoneRequired":true,"serviceCharge":50,"seatList":[{"seatId":1,"categoryPriceId":10,"price":1000,"tariffPlanId":3,"tariffPlanName":"Взрослый"}]}],
			"currency":"RUB","time":600,"totalServiceCharge":50,"totalSum":1000,"cashback":5
		}}`)
	})

	cart, err := c.GetCart(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 600, cart.RemainingSeconds)
	assert.Equal(t, int64(100000), cart.TotalSum)
	assert.Equal(t, int64(105000), cart.OrderTotal())
	assert.Equal(t, int64(5000), cart.Cashback())
	assert.True(t, cart.PhoneRequired())
	assert.False(t, cart.FullNameRequired())
	require.Len(t, cart.Events[0].Seats, 1)
	assert.Equal(t, "Взрослый", cart.Events[0].Seats[0].TariffName)
}

// cacheHook answers every redis command locally: reads miss, writes succeed.
// A non-nil err fails every command instead.
type cacheHook struct{ err error }

func (h cacheHook) DialHook(next goredis.DialHook) goredis.DialHook { return next }

func (h cacheHook) ProcessHook(goredis.ProcessHook) goredis.ProcessHook {
	return func(_ context.Context, cmd goredis.Cmder) error {
		switch {
		case h.err != nil:
			cmd.SetErr(h.err)
		case cmd.Name() == "get":
			cmd.SetErr(goredis.Nil)
		}
		return cmd.Err()
	}
}

func (h cacheHook) ProcessPipelineHook(goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(context.Context, []goredis.Cmder) error { return h.err }
}

func TestClient_CatalogLoadsOnce(t *testing.T) {
	const schema = `{"type": "success", "decode": "<svg/>", "error": false, "message": false, "advice": false, "system": false, "api_key": false}`

	tests := []struct {
		name     string
		cacheErr error
		body     string
		wantErr  bool
	}{
		{name: "cache miss", body: schema},
		{name: "cache miss and upstream down", body: "<html>bad gateway</html>", wantErr: true},
		{name: "cache unreachable", cacheErr: errors.New("dial tcp: refused"), body: schema},
		{name: "cache unreachable and upstream down", cacheErr: errors.New("dial tcp: refused"), body: "<html>bad gateway</html>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				_, _ = io.WriteString(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
			rdb.AddHook(cacheHook{err: tt.cacheErr})
			t.Cleanup(func() { _ = rdb.Close() })

			api := New(Config{Endpoint: srv.URL}, redisrepo.NewCache(rdb), nil)
			c := api.Session(kv.NewMemory(), "s1")

			svg, err := c.GetSchema(context.Background(), 77)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, errors.Is(err, redisrepo.ErrCacheUnavailable))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "<svg/>", svg)
			}
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}
