// Package upstream is the client for the ticketing JSON API the storefront
// resells from.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirinyoku/tixfront/internal/domain"
	"github.com/kirinyoku/tixfront/internal/kv"
	redisrepo "github.com/kirinyoku/tixfront/internal/repository/redis"
)

const (
	DefaultEndpoint = "https://api-alfa.kassir.ru"

	// the upstream reads JSON bodies but only accepts this content type
	postContentType = "application/x-www-form-urlencoded"
)

type Config struct {
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
	TokenTTL time.Duration
}

// API holds what all sessions share: the HTTP client, the catalog cache and
// the cache mode last announced by the upstream.
type API struct {
	httpc  *http.Client
	cfg    Config
	cache  *redisrepo.Cache
	logger *slog.Logger

	mu   sync.RWMutex
	mode string
}

func New(cfg Config, cache *redisrepo.Cache, logger *slog.Logger) *API {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &API{
		httpc:  &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		cache:  cache,
		logger: logger,
	}
}

func (a *API) Mode() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *API) setMode(m string) {
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
}

// Session returns a client that authenticates as one storefront session.
// Its api key lives in tokens and is refreshed from every response.
func (a *API) Session(tokens kv.Store, sessionID string) *Client {
	return &Client{
		api:      a,
		tokens:   tokens,
		tokenKey: redisrepo.KeySessionToken(sessionID),
	}
}

type Client struct {
	api      *API
	tokens   kv.Store
	tokenKey string
}

// SetToken stores an api key handed over by the browser.
func (c *Client) SetToken(ctx context.Context, token string) error {
	return c.tokens.Set(ctx, c.tokenKey, token, c.api.cfg.TokenTTL)
}

func (c *Client) Token(ctx context.Context) (string, error) {
	tok, _, err := c.tokens.Get(ctx, c.tokenKey)
	return tok, err
}

func (c *Client) post(ctx context.Context, method string, args map[string]any, out any) error {
	tok, err := c.Token(ctx)
	if err != nil {
		return fmt.Errorf("read api key: %w", err)
	}

	body := map[string]any{"api_key": nil}
	if tok != "" {
		body["api_key"] = tok
	}
	for k, v := range args {
		body[k] = v
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(method, nil), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", postContentType)

	return c.do(ctx, req, out)
}

func (c *Client) get(ctx context.Context, method string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(method, q), nil)
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

func (c *Client) url(method string, q url.Values) string {
	u := c.api.cfg.Endpoint + "/json/" + method
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.api.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err)
	}

	if env.Mode != "" {
		c.api.setMode(string(env.Mode))
	}

	if env.APIKey != "" {
		if err := c.SetToken(ctx, string(env.APIKey)); err != nil {
			c.api.logger.Warn("failed to persist refreshed api key", "error", err)
		}
	}

	if err := env.err(); err != nil {
		return err
	}

	if out == nil || len(env.Decode) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Decode, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	return nil
}

type ActionRef struct {
	ActionID string
	VenueID  string
	CityID   string
}

// GetAction loads an action with all of its events. Responses are shared
// across sessions through the catalog cache.
func (c *Client) GetAction(ctx context.Context, ref ActionRef) (domain.Action, error) {
	const op = "upstream.Client.GetAction"

	load := func(ctx context.Context) (domain.Action, error) {
		var w wireAction
		q := url.Values{"aid": {ref.ActionID}, "vid": {ref.VenueID}, "cid": {ref.CityID}}
		if err := c.get(ctx, "get_action_ext", q, &w); err != nil {
			return domain.Action{}, err
		}
		return w.toDomain(), nil
	}

	key := redisrepo.KeyAction(c.api.Mode(), ref.ActionID, ref.VenueID, ref.CityID)

	a, err := cached(ctx, c.api, key, func(ctx context.Context) (domain.Action, error) {
		a, err := load(ctx)
		if err != nil {
			return a, err
		}
		_ = c.api.cache.Track(ctx, redisrepo.KeyActionIndex(a.ID), key, c.api.cfg.CacheTTL)
		return a, nil
	}, load)
	if err != nil {
		return domain.Action{}, fmt.Errorf("%s:%w", op, err)
	}

	return a, nil
}

// GetSchema returns the seat-map SVG of an event.
func (c *Client) GetSchema(ctx context.Context, eventID int64) (string, error) {
	const op = "upstream.Client.GetSchema"

	load := func(ctx context.Context) (string, error) {
		var svg string
		err := c.post(ctx, "get_schema", map[string]any{"eid": eventID}, &svg)
		return svg, err
	}

	svg, err := cached(ctx, c.api, redisrepo.KeySchema(c.api.Mode(), eventID), load, load)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return svg, nil
}

// cached serves key from the catalog cache, falling back to a direct load
// when there is no cache or it is unreachable. A failed fill is returned
// without a second attempt.
func cached[T any](
	ctx context.Context,
	api *API,
	key string,
	fill func(ctx context.Context) (T, error),
	direct func(ctx context.Context) (T, error),
) (T, error) {
	if api.cache == nil {
		return direct(ctx)
	}

	v, err := redisrepo.GetOrSetJSON(ctx, api.cache, key, api.cfg.CacheTTL, fill)
	if !errors.Is(err, redisrepo.ErrCacheUnavailable) {
		return v, err
	}

	api.logger.Warn("catalog cache unavailable", "key", key, "error", err)

	return direct(ctx)
}

// Reserve asks the server to hold the given categories and seats.
func (c *Client) Reserve(ctx context.Context, req domain.ReserveRequest) (domain.Hold, error) {
	const op = "upstream.Client.Reserve"

	type cat struct {
		CID int64 `json:"cid"`
		TID int64 `json:"tid,omitempty"`
		Qty int   `json:"qty"`
	}
	type seat struct {
		SID int64 `json:"sid"`
		TID int64 `json:"tid,omitempty"`
	}

	args := map[string]any{"eid": req.EventID}
	if len(req.Categories) > 0 {
		cats := make([]cat, 0, len(req.Categories))
		for _, ch := range req.Categories {
			cats = append(cats, cat{CID: ch.CategoryID, TID: ch.TariffID, Qty: ch.Quantity})
		}
		args["categories"] = cats
	}
	if len(req.Seats) > 0 {
		seats := make([]seat, 0, len(req.Seats))
		for _, sh := range req.Seats {
			seats = append(seats, seat{SID: sh.SeatID, TID: sh.TariffID})
		}
		args["seats"] = seats
	}

	var w wireHold
	if err := c.post(ctx, "reserve", args, &w); err != nil {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
	}

	return w.toDomain(), nil
}

// Unreserve releases individual seats and returns what is still held.
func (c *Client) Unreserve(ctx context.Context, seatIDs ...int64) (domain.Hold, error) {
	const op = "upstream.Client.Unreserve"

	type seat struct {
		SID int64 `json:"sid"`
	}

	seats := make([]seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		seats = append(seats, seat{SID: id})
	}

	var w wireHold
	if err := c.post(ctx, "unreserve", map[string]any{"seats": seats}, &w); err != nil {
		return domain.Hold{}, fmt.Errorf("%s:%w", op, err)
	}

	return w.toDomain(), nil
}

// UnreserveAll drops every hold of the session, or only those of eventID
// when it is non-zero.
func (c *Client) UnreserveAll(ctx context.Context, eventID int64) error {
	const op = "upstream.Client.UnreserveAll"

	args := map[string]any{}
	if eventID != 0 {
		args["eid"] = strconv.FormatInt(eventID, 10)
	}

	if err := c.post(ctx, "unreserve_all", args, nil); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (c *Client) Auth(ctx context.Context, email string) error {
	const op = "upstream.Client.Auth"

	if err := c.post(ctx, "auth", map[string]any{"email": email}, nil); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (c *Client) GetCart(ctx context.Context) (domain.ServerCart, error) {
	const op = "upstream.Client.GetCart"

	var w wireCart
	if err := c.post(ctx, "get_cart", nil, &w); err != nil {
		return domain.ServerCart{}, fmt.Errorf("%s:%w", op, err)
	}

	return w.toDomain(), nil
}

func (c *Client) CreateOrder(ctx context.Context, d domain.OrderDraft) (domain.PlacedOrder, error) {
	const op = "upstream.Client.CreateOrder"

	args := map[string]any{
		"sum":      domain.MajorUnits(d.Sum),
		"currency": d.Currency,
	}
	if d.Name != "" {
		args["name"] = d.Name
	}
	if d.Phone != "" {
		args["phone"] = d.Phone
	}

	var w wirePlacedOrder
	if err := c.post(ctx, "create_order", args, &w); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("%s:%w", op, err)
	}

	return w.toDomain(), nil
}
