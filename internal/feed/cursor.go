package feed

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	// DefaultLimit is the page size used when a caller passes none.
	DefaultLimit = 20
	// MaxLimit and MaxPage bound a cursor so Range cannot overflow.
	MaxLimit = 1000
	MaxPage  = 10000
)

// Cursor addresses one page of a listing.
type Cursor struct {
	Page  int
	Limit int
}

// Normalize clamps the page into [0, MaxPage] and the limit into
// [1, MaxLimit], substituting DefaultLimit for non-positive limits.
func (c Cursor) Normalize() Cursor {
	c.Page = min(max(c.Page, 0), MaxPage)
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	c.Limit = min(c.Limit, MaxLimit)
	return c
}

// Range returns the half-open row range [from, to) covered by the page.
func (c Cursor) Range() (from, to int) {
	c = c.Normalize()
	return c.Page * c.Limit, (c.Page + 1) * c.Limit
}

// Offset is the first row index of the page.
func (c Cursor) Offset() int {
	from, _ := c.Range()
	return from
}

// Page is one page of results.
type Page[T any] struct {
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
}

// TrimPage builds a page from rows fetched with limit+1. The extra row, when
// present, is dropped and signals that another page exists.
func TrimPage[T any](rows []T, c Cursor) Page[T] {
	c = c.Normalize()
	p := Page[T]{Items: rows, Page: c.Page, Limit: c.Limit}
	if len(rows) > c.Limit {
		p.Items = rows[:c.Limit]
		p.HasMore = true
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}

// LegacyHasMore is the old heuristic: a full page implies more rows. It is
// wrong when the store holds an exact multiple of limit rows.
func LegacyHasMore(n, limit int) bool {
	return n == limit
}

// FetchFunc loads one page.
type FetchFunc[T any] func(ctx context.Context, c Cursor) (Page[T], error)

// Pager drives a List through successive pages.
type Pager[T any, K comparable] struct {
	list  *List[T, K]
	fetch FetchFunc[T]
	limit int

	mu      sync.Mutex
	next    int
	hasMore bool
}

// NewPager binds fetch to list.
func NewPager[T any, K comparable](list *List[T, K], limit int, fetch FetchFunc[T]) *Pager[T, K] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pager[T, K]{list: list, fetch: fetch, limit: limit, hasMore: true}
}

// Load fetches page. Page 0 replaces the list; later pages extend it.
func (p *Pager[T, K]) Load(ctx context.Context, page int) error {
	res, err := p.fetch(ctx, Cursor{Page: page, Limit: p.limit})
	if err != nil {
		return err
	}
	if page == 0 {
		p.list.Replace(res.Items)
	} else {
		p.list.Extend(res.Items)
	}
	p.mu.Lock()
	p.next = page + 1
	p.hasMore = res.HasMore
	p.mu.Unlock()
	return nil
}

// Refresh reloads page 0.
func (p *Pager[T, K]) Refresh(ctx context.Context) error {
	return p.Load(ctx, 0)
}

// LoadMore fetches the page after the last one loaded.
func (p *Pager[T, K]) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	next := p.next
	p.mu.Unlock()
	return p.Load(ctx, next)
}

// HasMore reports whether the last page said more rows exist.
func (p *Pager[T, K]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Scroller triggers LoadMore when the view nears its end, at most one fetch
// at a time.
type Scroller[T any, K comparable] struct {
	pager    *Pager[T, K]
	fetching atomic.Bool
}

// NewScroller wraps pager.
func NewScroller[T any, K comparable](pager *Pager[T, K]) *Scroller[T, K] {
	return &Scroller[T, K]{pager: pager}
}

// Fetching reports whether a fetch is in flight.
func (s *Scroller[T, K]) Fetching() bool {
	return s.fetching.Load()
}

// Trigger fetches the next page unless one is in flight or no more rows
// exist. It reports whether a fetch ran.
func (s *Scroller[T, K]) Trigger(ctx context.Context) (bool, error) {
	if !s.pager.HasMore() {
		return false, nil
	}
	if !s.fetching.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.fetching.Store(false)
	return true, s.pager.LoadMore(ctx)
}
