package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// clock resync is gated to once per 30s so signing does not cost an extra
// round trip on every call
const timeSyncInterval = 30 * time.Second

// serverNowMS returns local time corrected by the last measured skew.
func (c *Client) serverNowMS() int64 {
	c.timeMu.Lock()
	offset := c.timeOffsetMS
	c.timeMu.Unlock()
	return time.Now().UnixMilli() + offset
}

// syncClock refreshes the skew against GET /fapi/v1/time when the last sync
// is older than timeSyncInterval. The call bypasses the read cache: a cached
// server time is useless for skew measurement.
func (c *Client) syncClock(ctx context.Context) error {
	c.timeMu.Lock()
	fresh := time.Since(c.lastTimeSync) < timeSyncInterval
	c.timeMu.Unlock()
	if fresh {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fapi/v1/time", nil)
	if err != nil {
		return fmt.Errorf("syncClock new request: %w", err)
	}

	before := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("syncClock do: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("syncClock http %d: %s", resp.StatusCode, string(data))
	}

	var parsed struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := decodeInto(data, &parsed, "syncClock"); err != nil {
		return err
	}

	// attribute half the round trip to the request leg
	rtt := time.Since(before)
	localMid := before.Add(rtt / 2).UnixMilli()

	c.timeMu.Lock()
	c.timeOffsetMS = parsed.ServerTime - localMid
	c.lastTimeSync = time.Now()
	c.timeMu.Unlock()

	return nil
}

// ServerTime is the public read of the exchange clock, served through the
// TTL cache like any other GET.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	data, err := c.get(ctx, "/fapi/v1/time", nil, false)
	if err != nil {
		return time.Time{}, err
	}
	var parsed struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := decodeInto(data, &parsed, "ServerTime"); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(parsed.ServerTime), nil
}
