// Package paging adapts page-numbered source listings to key-based loaders
// and incremental iteration.
package paging

import (
	"context"
	"errors"
	"iter"

	"media-source-go/pkg/types"
)

// ErrDone is returned by Pager.Next once the last page has been read.
var ErrDone = errors.New("paging: no more pages")

// Fetch loads one page. Pages start at 1.
type Fetch[T any] func(ctx context.Context, page int) (*types.Page[T], error)

// LoadResult is one loaded page with the keys of its neighbours. A nil key
// means there is no page in that direction.
type LoadResult[T any] struct {
	Items   []T  `json:"items"`
	PrevKey *int `json:"prev_key"`
	NextKey *int `json:"next_key"`
}

// Loader turns a Fetch into a key-based page loader.
type Loader[T any] struct {
	fetch Fetch[T]
}

// NewLoader wraps fetch.
func NewLoader[T any](fetch Fetch[T]) *Loader[T] {
	return &Loader[T]{fetch: fetch}
}

// Load returns the page for key. Keys below 1 load page 1.
func (l *Loader[T]) Load(ctx context.Context, key int) (LoadResult[T], error) {
	key = max(key, 1)
	page, err := l.fetch(ctx, key)
	if err != nil {
		return LoadResult[T]{}, err
	}
	res := LoadResult[T]{Items: page.Items}
	if res.Items == nil {
		res.Items = []T{}
	}
	if key > 1 {
		prev := key - 1
		res.PrevKey = &prev
	}
	if page.HasNext {
		next := key + 1
		res.NextKey = &next
	}
	return res, nil
}

// Pager reads a listing one page at a time.
type Pager[T any] struct {
	fetch Fetch[T]
	next  int
	done  bool
}

// NewPager starts at page start, or 1 when start is below 1.
func NewPager[T any](fetch Fetch[T], start int) *Pager[T] {
	return &Pager[T]{fetch: fetch, next: max(start, 1)}
}

// Next returns the items of the next page, or ErrDone after the page that
// reported no successor. A failed fetch may be retried by calling Next again.
func (p *Pager[T]) Next(ctx context.Context) ([]T, error) {
	if p.done {
		return nil, ErrDone
	}
	page, err := p.fetch(ctx, p.next)
	if err != nil {
		return nil, err
	}
	p.next++
	if !page.HasNext {
		p.done = true
	}
	return page.Items, nil
}

// Done reports whether the last page has been read.
func (p *Pager[T]) Done() bool { return p.done }

// All yields every item across pages, stopping at the first error or after
// maxPages pages when maxPages is positive.
func (p *Pager[T]) All(ctx context.Context, maxPages int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for read := 0; !p.done && (maxPages <= 0 || read < maxPages); read++ {
			items, err := p.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, it := range items {
				if !yield(it, nil) {
					return
				}
			}
		}
	}
}

// Collect drains up to maxPages pages into a slice.
func Collect[T any](ctx context.Context, fetch Fetch[T], maxPages int) ([]T, error) {
	var out []T
	for it, err := range NewPager(fetch, 1).All(ctx, maxPages) {
		if err != nil {
			return out, err
		}
		out = append(out, it)
	}
	return out, nil
}
