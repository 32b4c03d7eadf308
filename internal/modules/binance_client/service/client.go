package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"

	"github.com/bytedance/sonic"
)

// Client is the single point of contact with the exchange. Everything that
// talks to Binance USDT-M futures goes through it: signing, clock skew
// correction, read caching, in-flight de-duplication, the order sanitizer
// and ban tracking.
type Client struct {
	cfg  *config.Config
	http *http.Client

	apiKey    string
	apiSecret string
	baseURL   string

	timeMu       sync.Mutex
	timeOffsetMS int64
	lastTimeSync time.Time

	cache *readCache

	banUntilMS atomic.Int64
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: 15 * time.Second},
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   cfg.BaseURL,
		cache:     newReadCache(),
	}
}

// sign computes the HMAC-SHA256 signature over the canonical query string.
// Binance does not care about parameter order, only that the signed bytes
// match the sent bytes; url.Values.Encode keeps both sides identical.
func (c *Client) sign(queryString string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedQuery appends timestamp+recvWindow and the signature.
func (c *Client) signedQuery(ctx context.Context, params url.Values) (string, error) {
	if err := c.syncClock(ctx); err != nil {
		return "", err
	}
	params.Set("timestamp", strconv.FormatInt(c.serverNowMS(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindowMS, 10))
	qs := params.Encode()
	return qs + "&signature=" + c.sign(qs), nil
}

// do issues one HTTP call. Private calls are refused while a ban-until
// timestamp from a prior -1003 is still in the future.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if signed {
		if until := c.banUntilMS.Load(); until > 0 && until > time.Now().UnixMilli() {
			return nil, &BanActiveError{Until: time.UnixMilli(until)}
		}
	}

	var query string
	var err error
	if signed {
		if params == nil {
			params = url.Values{}
		}
		query, err = c.signedQuery(ctx, params)
		if err != nil {
			return nil, err
		}
	} else if params != nil {
		query = params.Encode()
	}

	u := c.baseURL + path
	if query != "" {
		u += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s new request: %w", method, path, err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s do: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		apiErr := parseAPIError(resp.StatusCode, data)
		if apiErr.Code == codeTooManyRequests {
			if until := parseBanUntil(apiErr.Message); until > 0 {
				c.banUntilMS.Store(until)
				logger.Error("exchange ban until %s: %s",
					time.UnixMilli(until).UTC().Format(time.RFC3339), apiErr.Message)
			}
		}
		return nil, apiErr
	}

	return data, nil
}

// get runs a read-only call through the TTL cache and the in-flight
// coalescer. Concurrent callers on the same key share one network call.
func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool) ([]byte, error) {
	key := cacheKey(path, params)
	return c.cache.Do(ctx, key, ttlFor(path), func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, path, params, signed)
	})
}

// BanUntil reports the stored ban expiry, zero when not banned.
func (c *Client) BanUntil() time.Time {
	if ms := c.banUntilMS.Load(); ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

func decodeInto(data []byte, v any, op string) error {
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s decode: %w; body=%s", op, err, string(data))
	}
	return nil
}
