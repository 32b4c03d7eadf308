package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

const (
	historyPageLimit = 1000
	// a range is split in half when a page comes back full; the cap bounds
	// the worklist even against pathological trade bursts
	historySplitDepthCap = 8
)

type timeWindow struct {
	start, end int64
	depth      int
}

// fetchWindowed walks (start,end) as an explicit worklist instead of
// recursing: a full page means the window may have been truncated, so it is
// split in half and both halves are re-queued. Rows are de-duplicated by id
// and returned in time order.
func fetchWindowed[T any](
	startMS, endMS int64,
	fetch func(start, end int64) ([]T, error),
	idOf func(T) int64,
	timeOf func(T) int64,
) ([]T, error) {
	work := []timeWindow{{start: startMS, end: endMS}}
	seen := make(map[int64]struct{})
	var out []T

	for len(work) > 0 {
		w := work[len(work)-1]
		work = work[:len(work)-1]

		rows, err := fetch(w.start, w.end)
		if err != nil {
			return nil, err
		}

		if len(rows) >= historyPageLimit && w.depth < historySplitDepthCap && w.end-w.start > 1 {
			mid := w.start + (w.end-w.start)/2
			work = append(work,
				timeWindow{start: w.start, end: mid, depth: w.depth + 1},
				timeWindow{start: mid + 1, end: w.end, depth: w.depth + 1},
			)
			continue
		}

		for _, r := range rows {
			if _, dup := seen[idOf(r)]; dup {
				continue
			}
			seen[idOf(r)] = struct{}{}
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return timeOf(out[i]) < timeOf(out[j]) })
	return out, nil
}

// Income returns income records (funding, commissions, realized pnl) in the
// window, paginated by adaptive range splitting.
func (c *Client) Income(ctx context.Context, symbol, incomeType string, from, to time.Time) ([]IncomeRecord, error) {
	records, err := fetchWindowed(
		from.UnixMilli(), to.UnixMilli(),
		func(start, end int64) ([]IncomeRecord, error) {
			params := url.Values{}
			if symbol != "" {
				params.Set("symbol", symbol)
			}
			if incomeType != "" {
				params.Set("incomeType", incomeType)
			}
			params.Set("startTime", strconv.FormatInt(start, 10))
			params.Set("endTime", strconv.FormatInt(end, 10))
			params.Set("limit", strconv.Itoa(historyPageLimit))

			data, err := c.do(ctx, "GET", "/fapi/v1/income", params, true)
			if err != nil {
				return nil, fmt.Errorf("Income %s: %w", symbol, err)
			}
			var rows []IncomeRecord
			if err := decodeInto(data, &rows, "Income"); err != nil {
				return nil, err
			}
			return rows, nil
		},
		func(r IncomeRecord) int64 { return r.TranID },
		func(r IncomeRecord) int64 { return r.Time },
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// RealizedPnl sums REALIZED_PNL income for a symbol over the window. Used by
// the cooldown gate when it cannot observe fills directly.
func (c *Client) RealizedPnl(ctx context.Context, symbol string, from, to time.Time) (float64, error) {
	records, err := c.Income(ctx, symbol, "REALIZED_PNL", from, to)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, r := range records {
		sum += r.Amount()
	}
	return sum, nil
}

// UserTrades returns account fills for a symbol in the window.
func (c *Client) UserTrades(ctx context.Context, symbol string, from, to time.Time) ([]UserTrade, error) {
	return fetchWindowed(
		from.UnixMilli(), to.UnixMilli(),
		func(start, end int64) ([]UserTrade, error) {
			params := url.Values{}
			params.Set("symbol", symbol)
			params.Set("startTime", strconv.FormatInt(start, 10))
			params.Set("endTime", strconv.FormatInt(end, 10))
			params.Set("limit", strconv.Itoa(historyPageLimit))

			data, err := c.do(ctx, "GET", "/fapi/v1/userTrades", params, true)
			if err != nil {
				return nil, fmt.Errorf("UserTrades %s: %w", symbol, err)
			}
			var rows []UserTrade
			if err := decodeInto(data, &rows, "UserTrades"); err != nil {
				return nil, err
			}
			return rows, nil
		},
		func(r UserTrade) int64 { return r.ID },
		func(r UserTrade) int64 { return r.Time },
	)
}

// OrderHistory returns all orders (any status) for a symbol in the window.
func (c *Client) OrderHistory(ctx context.Context, symbol string, from, to time.Time) ([]models.Order, error) {
	items, err := fetchWindowed(
		from.UnixMilli(), to.UnixMilli(),
		func(start, end int64) ([]orderItem, error) {
			params := url.Values{}
			params.Set("symbol", symbol)
			params.Set("startTime", strconv.FormatInt(start, 10))
			params.Set("endTime", strconv.FormatInt(end, 10))
			params.Set("limit", strconv.Itoa(historyPageLimit))

			data, err := c.do(ctx, "GET", "/fapi/v1/allOrders", params, true)
			if err != nil {
				return nil, fmt.Errorf("OrderHistory %s: %w", symbol, err)
			}
			var rows []orderItem
			if err := decodeInto(data, &rows, "OrderHistory"); err != nil {
				return nil, err
			}
			return rows, nil
		},
		func(r orderItem) int64 { return r.OrderID },
		func(r orderItem) int64 { return r.UpdateTime },
	)
	if err != nil {
		return nil, err
	}

	res := make([]models.Order, 0, len(items))
	for _, it := range items {
		res = append(res, it.toOrder())
	}
	return res, nil
}
