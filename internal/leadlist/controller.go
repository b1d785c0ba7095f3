// Package leadlist owns which leads are visible: the filter, sort and page
// parameters, the fetch they trigger, and the result of the latest fetch.
package leadlist

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/metrics"
)

// Defaults for the leads screen.
const (
	DefaultPageSize = 10
	DefaultDebounce = 500 * time.Millisecond
)

// Fetcher loads one page of leads.
type Fetcher interface {
	ListLeads(ctx context.Context, q lead.Query) (*lead.Page, error)
}

// State is an immutable snapshot handed to observers.
type State struct {
	Version uint64

	SearchInput string
	Filters     lead.Filters
	Sort        lead.Sort
	Page        int
	PageSize    int

	Leads         []lead.Lead
	TotalPages    int
	TotalElements int64
	Loading       bool
	Err           error
	Selected      *lead.Lead

	// LastQuery is the query of the most recently issued fetch.
	LastQuery lead.Query
}

// Config tunes a Controller. Zero values fall back to the defaults.
type Config struct {
	PageSize int
	Debounce time.Duration
	Sort     lead.Sort
	Logger   *log.Logger
	// OnChange receives every new state. It runs on the goroutine that caused
	// the change, never concurrently with itself, and never with an older state
	// than one it already received.
	OnChange func(State)
}

// Controller is safe for concurrent use.
type Controller struct {
	fetcher  Fetcher
	pageSize int
	debounce time.Duration
	logger   *log.Logger
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	version     uint64
	searchInput string
	filters     lead.Filters
	sort        lead.Sort
	page        int
	timer       *time.Timer
	searchGen   uint64
	seq         uint64
	abandon     context.CancelFunc
	lastQuery   lead.Query
	leads       []lead.Lead
	totalPages  int
	total       int64
	loading     bool
	err         error
	selected    *lead.Lead
	closed      bool

	notifyMu     sync.Mutex
	lastNotified uint64
}

// New builds a controller. Nothing is fetched until Start.
func New(ctx context.Context, fetcher Fetcher, cfg Config) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageSize > lead.MaxPageSize {
		cfg.PageSize = lead.MaxPageSize
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Sort.Field == "" {
		cfg.Sort = lead.DefaultSort
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Controller{
		fetcher:  fetcher,
		pageSize: cfg.PageSize,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		onChange: cfg.OnChange,
		ctx:      cctx,
		cancel:   cancel,
		sort:     cfg.Sort,
	}
}

// Start issues the initial fetch.
func (c *Controller) Start() {
	c.mu.Lock()
	c.fetchLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// Refresh re-issues the current query, e.g. after an error.
func (c *Controller) Refresh() {
	c.Start()
}

// SetFilter sets one filter field. Free text is debounced and committed together
// with the page reset; an axis value is parsed and applied at once. "" clears.
func (c *Controller) SetFilter(field lead.Field, value string) error {
	value = strings.TrimSpace(value)
	if field == lead.FieldSearch {
		c.setSearch(value)
		return nil
	}
	axis := field.Axis()
	if axis == nil {
		return fmt.Errorf("unknown filter field %q", field)
	}
	code := 0
	if value != "" {
		parsed, err := axis.Parse(value)
		if err != nil {
			return err
		}
		code = parsed
	}

	c.mu.Lock()
	if c.filters.Code(field) == code {
		c.mu.Unlock()
		return nil
	}
	c.filters = c.filters.With(field, code)
	c.page = 0
	c.fetchLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
	return nil
}

func (c *Controller) setSearch(value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.searchInput = value
	if c.timer != nil {
		c.timer.Stop()
	}
	c.searchGen++
	gen := c.searchGen
	c.timer = time.AfterFunc(c.debounce, func() { c.commitSearch(gen) })
	c.version++
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// commitSearch runs when the search input has been stable for the debounce
// interval. A timer superseded while waiting for the lock is ignored.
func (c *Controller) commitSearch(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.searchGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.searchInput == c.filters.SearchText {
		c.mu.Unlock()
		return
	}
	c.filters.SearchText = c.searchInput
	c.page = 0
	c.fetchLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// ClearFilters empties every filter, cancels a pending search and returns to page 0.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.searchGen++
	inputChanged := c.searchInput != ""
	c.searchInput = ""
	if c.filters.IsZero() && c.page == 0 {
		if inputChanged {
			c.version++
			s := c.snapshotLocked()
			c.mu.Unlock()
			c.notify(s)
			return
		}
		c.mu.Unlock()
		return
	}
	c.filters = lead.Filters{}
	c.page = 0
	c.fetchLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// SetSort applies a header click on field.
func (c *Controller) SetSort(field string) {
	c.mu.Lock()
	c.sort = c.sort.Toggle(field)
	c.page = 0
	c.fetchLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// SetPage jumps to page n, clamped to the known range. Filters and sort are kept.
func (c *Controller) SetPage(n int) {
	c.mu.Lock()
	if c.totalPages > 0 && n >= c.totalPages {
		n = c.totalPages - 1
	}
	if n < 0 {
		n = 0
	}
	if n == c.page {
		c.mu.Unlock()
		return
	}
	c.page = n
	c.fetchLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// NextPage and PrevPage step through pages.
func (c *Controller) NextPage() { c.SetPage(c.State().Page + 1) }
func (c *Controller) PrevPage() { c.SetPage(c.State().Page - 1) }

// OpenDetail binds the detail view to row i of the visible page.
func (c *Controller) OpenDetail(i int) bool {
	c.mu.Lock()
	if i < 0 || i >= len(c.leads) {
		c.mu.Unlock()
		return false
	}
	l := c.leads[i]
	c.selected = &l
	c.version++
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
	return true
}

// CloseDetail clears the detail binding.
func (c *Controller) CloseDetail() {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return
	}
	c.selected = nil
	c.version++
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops the debounce timer, abandons in-flight fetches and waits for them.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) queryLocked() lead.Query {
	return lead.Query{Filters: c.filters, Sort: c.sort, Page: c.page, Size: c.pageSize}
}

// fetchLocked issues a request for the current parameters. Only the response
// to the newest request id may touch the result fields.
func (c *Controller) fetchLocked() {
	c.version++
	if c.closed {
		return
	}
	c.seq++
	id := c.seq
	q := c.queryLocked()
	c.lastQuery = q
	c.loading = true
	c.err = nil

	// The previous request can no longer be applied.
	if c.abandon != nil {
		c.abandon()
	}
	fctx, cancel := context.WithCancel(c.ctx)
	c.abandon = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		page, err := c.fetcher.ListLeads(fctx, q)
		c.settle(id, q, page, err)
	}()
}

func (c *Controller) settle(id uint64, q lead.Query, page *lead.Page, err error) {
	c.mu.Lock()
	if id != c.seq || c.closed {
		c.mu.Unlock()
		metrics.LeadFetchesTotal.WithLabelValues("stale").Inc()
		c.logger.Printf("leadlist: discarded stale response #%d (%s)", id, q.Values().Encode())
		return
	}
	c.loading = false
	if err != nil {
		c.err = err
		metrics.LeadFetchesTotal.WithLabelValues("failed").Inc()
		c.logger.Printf("leadlist: fetch #%d failed: %v", id, err)
	} else {
		c.leads = page.Content
		c.totalPages = page.TotalPages()
		if page.Page != nil {
			c.total = page.Page.TotalElements
		}
		c.err = nil
		metrics.LeadFetchesTotal.WithLabelValues("applied").Inc()
	}
	c.version++
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

func (c *Controller) snapshotLocked() State {
	leads := make([]lead.Lead, len(c.leads))
	copy(leads, c.leads)
	var selected *lead.Lead
	if c.selected != nil {
		l := *c.selected
		selected = &l
	}
	return State{
		Version:       c.version,
		SearchInput:   c.searchInput,
		Filters:       c.filters,
		Sort:          c.sort,
		Page:          c.page,
		PageSize:      c.pageSize,
		Leads:         leads,
		TotalPages:    c.totalPages,
		TotalElements: c.total,
		Loading:       c.loading,
		Err:           c.err,
		Selected:      selected,
		LastQuery:     c.lastQuery,
	}
}

func (c *Controller) notify(s State) {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if s.Version < c.lastNotified {
		return
	}
	c.lastNotified = s.Version
	c.onChange(s)
}
