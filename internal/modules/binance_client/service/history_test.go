package service

import (
	"testing"
)

type fakeRow struct {
	id int64
	ts int64
}

// fakeLedger answers window queries over a fixed set of rows with a page cap,
// the way the exchange truncates full pages.
type fakeLedger struct {
	rows    []fakeRow
	queries int
}

func (l *fakeLedger) fetch(start, end int64) ([]fakeRow, error) {
	l.queries++
	var out []fakeRow
	for _, r := range l.rows {
		if r.ts >= start && r.ts <= end {
			out = append(out, r)
			if len(out) == historyPageLimit {
				break
			}
		}
	}
	return out, nil
}

func TestFetchWindowedSplitsFullPages(t *testing.T) {
	// more rows than one page, bunched into the first half of the range
	ledger := &fakeLedger{}
	for i := 0; i < historyPageLimit+300; i++ {
		ledger.rows = append(ledger.rows, fakeRow{id: int64(i), ts: int64(i)})
	}

	got, err := fetchWindowed(0, 10_000,
		ledger.fetch,
		func(r fakeRow) int64 { return r.id },
		func(r fakeRow) int64 { return r.ts },
	)
	if err != nil {
		t.Fatalf("fetchWindowed: %v", err)
	}

	if len(got) != historyPageLimit+300 {
		t.Errorf("got %d rows, want %d", len(got), historyPageLimit+300)
	}
	if ledger.queries < 2 {
		t.Errorf("full first page must force a split, ran %d queries", ledger.queries)
	}
	for i := 1; i < len(got); i++ {
		if got[i].ts < got[i-1].ts {
			t.Fatal("rows not in time order")
		}
	}
}

func TestFetchWindowedDeduplicates(t *testing.T) {
	ledger := &fakeLedger{rows: []fakeRow{{id: 1, ts: 5}, {id: 2, ts: 6}}}

	got, err := fetchWindowed(0, 100, ledger.fetch,
		func(r fakeRow) int64 { return r.id },
		func(r fakeRow) int64 { return r.ts },
	)
	if err != nil {
		t.Fatalf("fetchWindowed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d rows, want 2", len(got))
	}
}

func TestFetchWindowedDepthCap(t *testing.T) {
	// a degenerate ledger that always returns a full page; the depth cap
	// must still terminate the worklist
	full := make([]fakeRow, historyPageLimit)
	for i := range full {
		full[i] = fakeRow{id: int64(i), ts: 1}
	}
	ledger := &fakeLedger{rows: full}

	if _, err := fetchWindowed(0, 1<<40, ledger.fetch,
		func(r fakeRow) int64 { return r.id },
		func(r fakeRow) int64 { return r.ts },
	); err != nil {
		t.Fatalf("fetchWindowed: %v", err)
	}

	// 2^(cap+1)-1 queries is the worst case for a binary split tree
	if max := 1<<(historySplitDepthCap+1) - 1; ledger.queries > max {
		t.Errorf("ran %d queries, depth cap should bound it at %d", ledger.queries, max)
	}
}

func TestParseBanUntil(t *testing.T) {
	tests := []struct {
		msg  string
		want int64
	}{
		{"Way too many requests; IP banned until 1692345678901. Please use the websocket for live updates", 1692345678901},
		{"Too many requests", 0},
		{"banned until soon", 0},
	}
	for _, tt := range tests {
		if got := parseBanUntil(tt.msg); got != tt.want {
			t.Errorf("parseBanUntil(%q) = %d, want %d", tt.msg, got, tt.want)
		}
	}
}
