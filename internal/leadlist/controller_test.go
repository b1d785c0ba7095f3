package leadlist

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilcar/leads-console/internal/lead"
)

type result struct {
	page *lead.Page
	err  error
}

type pendingCall struct {
	ctx  context.Context
	q    lead.Query
	resp chan result
}

// fakeFetcher records every query. With manual set, each call blocks until the
// test answers it through the calls channel.
type fakeFetcher struct {
	mu      sync.Mutex
	queries []lead.Query
	manual  bool
	calls   chan pendingCall
}

func newAutoFetcher() *fakeFetcher { return &fakeFetcher{} }

func newManualFetcher() *fakeFetcher {
	return &fakeFetcher{manual: true, calls: make(chan pendingCall, 16)}
}

func (f *fakeFetcher) ListLeads(ctx context.Context, q lead.Query) (*lead.Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if !f.manual {
		return pageOf(q.Values().Encode()), nil
	}
	call := pendingCall{ctx: ctx, q: q, resp: make(chan result, 1)}
	f.calls <- call
	select {
	case r := <-call.resp:
		return r.page, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeFetcher) last() lead.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeFetcher) next(t *testing.T) pendingCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return pendingCall{}
	}
}

func pageOf(names ...string) *lead.Page {
	content := make([]lead.Lead, 0, len(names))
	for i, n := range names {
		content = append(content, lead.Lead{ID: int64(i + 1), Name: n})
	}
	return &lead.Page{Content: content, Page: &lead.PageInfo{Size: 10, TotalPages: 5, TotalElements: 42}}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newController(t *testing.T, f Fetcher, cfg Config) *Controller {
	t.Helper()
	c := New(context.Background(), f, cfg)
	t.Cleanup(c.Close)
	return c
}

func waitIdle(t *testing.T, c *Controller) State {
	t.Helper()
	require.Eventually(t, func() bool { return !c.State().Loading }, 2*time.Second, 5*time.Millisecond)
	return c.State()
}

func TestStartUsesDefaults(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{})
	c.Start()
	s := waitIdle(t, c)

	assert.Equal(t, lead.Query{Sort: lead.DefaultSort, Page: 0, Size: DefaultPageSize}, f.last())
	assert.Equal(t, 5, s.TotalPages)
	assert.Equal(t, int64(42), s.TotalElements)
	assert.NoError(t, s.Err)
	require.Len(t, s.Leads, 1)
}

func TestFilterChangeResetsPage(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{})
	c.Start()
	waitIdle(t, c)

	c.SetPage(3)
	waitIdle(t, c)
	assert.Equal(t, 3, f.last().Page)

	require.NoError(t, c.SetFilter(lead.FieldStatus, "Encerrado"))
	waitIdle(t, c)
	q := f.last()
	assert.Equal(t, 0, q.Page)
	assert.Equal(t, 7, q.Filters.Status)
	assert.Equal(t, lead.DefaultSort, q.Sort)
	assert.Equal(t, "CLOSED", q.Values().Get("status"))
}

func TestSetPageKeepsFiltersAndSort(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{})
	c.Start()
	waitIdle(t, c)

	require.NoError(t, c.SetFilter(lead.FieldTemperature, "HOT"))
	c.SetSort("name")
	waitIdle(t, c)

	c.SetPage(2)
	waitIdle(t, c)
	q := f.last()
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 3, q.Filters.Temperature)
	assert.Equal(t, lead.Sort{Field: "name", Direction: lead.Asc}, q.Sort)

	c.SetPage(99)
	waitIdle(t, c)
	assert.Equal(t, 4, f.last().Page, "clamped to last page")
}

func TestSortToggleResetsPage(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{})
	c.Start()
	waitIdle(t, c)
	c.SetPage(1)
	waitIdle(t, c)

	c.SetSort("sendDate")
	waitIdle(t, c)
	assert.Equal(t, lead.Sort{Field: "sendDate", Direction: lead.Asc}, f.last().Sort)
	assert.Equal(t, 0, f.last().Page)

	c.SetSort("sendDate")
	waitIdle(t, c)
	assert.Equal(t, lead.Desc, f.last().Sort.Direction)

	c.SetSort("status")
	waitIdle(t, c)
	assert.Equal(t, lead.Sort{Field: "status", Direction: lead.Asc}, f.last().Sort)
}

func TestUnchangedFilterDoesNotFetch(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{})
	c.Start()
	waitIdle(t, c)

	require.NoError(t, c.SetFilter(lead.FieldPortal, "OLX"))
	waitIdle(t, c)
	n := f.count()
	require.NoError(t, c.SetFilter(lead.FieldPortal, "1"))
	c.SetPage(0)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, f.count())

	assert.Error(t, c.SetFilter(lead.FieldPortal, "Altavista"))
	assert.Error(t, c.SetFilter(lead.Field("color"), "red"))
}

func TestDebounceCollapsesRapidTyping(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{Debounce: 60 * time.Millisecond})
	c.Start()
	waitIdle(t, c)
	c.SetPage(2)
	waitIdle(t, c)
	n := f.count()

	for _, v := range []string{"a", "ab", "abc"} {
		require.NoError(t, c.SetFilter(lead.FieldSearch, v))
	}
	assert.Equal(t, "abc", c.State().SearchInput)
	assert.Empty(t, c.State().Filters.SearchText)

	require.Eventually(t, func() bool { return f.count() == n+1 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, n+1, f.count())

	q := f.last()
	assert.Equal(t, "abc", q.Filters.SearchText)
	assert.Equal(t, 0, q.Page, "page reset is committed with the search")
}

func TestDebounceSeparatedTypingFetchesTwice(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{Debounce: 40 * time.Millisecond})
	c.Start()
	waitIdle(t, c)
	n := f.count()

	require.NoError(t, c.SetFilter(lead.FieldSearch, "a"))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.SetFilter(lead.FieldSearch, "ab"))

	require.Eventually(t, func() bool { return f.count() == n+2 }, time.Second, 5*time.Millisecond)
	f.mu.Lock()
	got := []string{f.queries[n].Filters.SearchText, f.queries[n+1].Filters.SearchText}
	f.mu.Unlock()
	assert.Equal(t, []string{"a", "ab"}, got)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	logs := &syncBuffer{}
	f := newManualFetcher()
	c := newController(t, f, Config{Logger: log.New(logs, "", 0)})

	c.Start()
	f.next(t).resp <- result{page: pageOf("initial")}
	waitIdle(t, c)

	require.NoError(t, c.SetFilter(lead.FieldStatus, "CLOSED"))
	callA := f.next(t)
	require.NoError(t, c.SetFilter(lead.FieldTemperature, "COLD"))
	callB := f.next(t)
	assert.Equal(t, 7, callB.q.Filters.Status)
	assert.Equal(t, 1, callB.q.Filters.Temperature)

	callB.resp <- result{page: pageOf("from-B")}
	s := waitIdle(t, c)
	require.Len(t, s.Leads, 1)
	assert.Equal(t, "from-B", s.Leads[0].Name)

	callA.resp <- result{page: pageOf("from-A")}
	require.Eventually(t, func() bool { return bytes.Contains([]byte(logs.String()), []byte("discarded stale")) }, time.Second, 5*time.Millisecond)
	s = c.State()
	assert.Equal(t, "from-B", s.Leads[0].Name)
	assert.False(t, s.Loading)
}

func TestStaleResponseArrivingFirstKeepsLoading(t *testing.T) {
	f := newManualFetcher()
	c := newController(t, f, Config{})
	c.Start()
	callA := f.next(t)
	c.SetSort("name")
	callB := f.next(t)

	callA.resp <- result{err: errors.New("boom")}
	time.Sleep(30 * time.Millisecond)
	s := c.State()
	assert.True(t, s.Loading)
	assert.NoError(t, s.Err)

	callB.resp <- result{page: pageOf("B")}
	s = waitIdle(t, c)
	assert.Equal(t, "B", s.Leads[0].Name)
}

func TestNewerFetchCancelsPrevious(t *testing.T) {
	f := newManualFetcher()
	c := newController(t, f, Config{})
	c.Start()
	callA := f.next(t)
	c.SetSort("name")
	callB := f.next(t)

	select {
	case <-callA.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded fetch was not cancelled")
	}
	assert.NoError(t, callB.ctx.Err())

	callB.resp <- result{page: pageOf("B")}
	s := waitIdle(t, c)
	assert.Equal(t, "B", s.Leads[0].Name)
	assert.NoError(t, s.Err)
}

func TestFailureKeepsPreviousLeads(t *testing.T) {
	f := newManualFetcher()
	c := newController(t, f, Config{})
	c.Start()
	f.next(t).resp <- result{page: pageOf("kept")}
	waitIdle(t, c)

	c.SetPage(1)
	f.next(t).resp <- result{err: errors.New("backend down")}
	s := waitIdle(t, c)
	require.Error(t, s.Err)
	assert.Equal(t, "kept", s.Leads[0].Name)

	c.Refresh()
	assert.NoError(t, c.State().Err, "a new attempt clears the error")
	f.next(t).resp <- result{page: pageOf("fresh")}
	s = waitIdle(t, c)
	assert.NoError(t, s.Err)
	assert.Equal(t, "fresh", s.Leads[0].Name)
}

func TestDetailDoesNotFetch(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{})
	c.Start()
	waitIdle(t, c)
	n := f.count()

	assert.False(t, c.OpenDetail(5))
	require.True(t, c.OpenDetail(0))
	require.NotNil(t, c.State().Selected)
	c.CloseDetail()
	assert.Nil(t, c.State().Selected)
	assert.Equal(t, n, f.count())
}

func TestClearFilters(t *testing.T) {
	f := newAutoFetcher()
	c := newController(t, f, Config{Debounce: 30 * time.Millisecond})
	c.Start()
	waitIdle(t, c)
	require.NoError(t, c.SetFilter(lead.FieldSubject, "Loja"))
	waitIdle(t, c)

	require.NoError(t, c.SetFilter(lead.FieldSearch, "pending"))
	c.ClearFilters()
	waitIdle(t, c)
	n := f.count()
	assert.True(t, f.last().Filters.IsZero())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, n, f.count(), "pending search was cancelled")
	assert.Empty(t, c.State().SearchInput)
}

func TestOnChangeNeverGoesBackwards(t *testing.T) {
	var mu sync.Mutex
	var versions []uint64
	f := newAutoFetcher()
	c := newController(t, f, Config{OnChange: func(s State) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	}})
	c.Start()
	for i := 0; i < 20; i++ {
		c.SetSort("name")
	}
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, versions)
	assert.True(t, sort.SliceIsSorted(versions, func(i, j int) bool { return versions[i] < versions[j] }))
}
