// Package sourcetest provides a scriptable Source for tests of the layers
// above the adapters.
package sourcetest

import (
	"context"
	"strconv"
	"sync"

	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
)

// Fake is a Source whose operations are supplied as functions. Operations
// left nil return an unsupported error. Every call is counted by name.
type Fake struct {
	SourceID   string
	SourceName string

	CanSearch   bool
	CanCategory bool
	CanTimeline bool

	HomeFn     func(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error)
	DetailFn   func(ctx context.Context, id string) (*types.ContentDetail, error)
	SearchFn   func(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error)
	GroupsFn   func(ctx context.Context) ([]types.CategoryGroup, error)
	QueryFn    func(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error)
	ResolveFn  func(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error)
	TimelineFn func(ctx context.Context) (*types.Timeline, error)

	mu    sync.Mutex
	calls map[string]int
}

// New returns a Fake with id as both id and name.
func New(id string) *Fake {
	return &Fake{SourceID: id, SourceName: id}
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) ID() string   { return f.SourceID }
func (f *Fake) Name() string { return f.SourceName }

func (f *Fake) SupportsSearch() bool   { return f.CanSearch }
func (f *Fake) SupportsCategory() bool { return f.CanCategory }
func (f *Fake) SupportsTimeline() bool { return f.CanTimeline }

func (f *Fake) unsupported(op string) error {
	return sourceerr.Unsupported(f.SourceID, op)
}

func (f *Fake) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	f.record("home")
	if f.HomeFn == nil {
		return nil, f.unsupported("home")
	}
	return f.HomeFn(ctx)
}

func (f *Fake) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	f.record("detail")
	if f.DetailFn == nil {
		return nil, f.unsupported("detail")
	}
	return f.DetailFn(ctx, id)
}

func (f *Fake) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	f.record("search")
	if f.SearchFn == nil {
		return nil, f.unsupported("search")
	}
	return f.SearchFn(ctx, keyword, page)
}

func (f *Fake) CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error) {
	f.record("categories")
	if f.GroupsFn == nil {
		return nil, f.unsupported("category groups")
	}
	return f.GroupsFn(ctx)
}

func (f *Fake) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	f.record("category")
	if f.QueryFn == nil {
		return nil, f.unsupported("category query")
	}
	return f.QueryFn(ctx, q, page)
}

func (f *Fake) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	f.record("video")
	if f.ResolveFn == nil {
		return nil, f.unsupported("video url")
	}
	return f.ResolveFn(ctx, contentID, episodeID)
}

func (f *Fake) UpdateTimeline(ctx context.Context) (*types.Timeline, error) {
	f.record("timeline")
	if f.TimelineFn == nil {
		return nil, f.unsupported("timeline")
	}
	return f.TimelineFn(ctx)
}

// Items builds n listing items with ids prefix0..prefixN-1.
func Items(prefix string, n int) []types.ContentItem {
	out := make([]types.ContentItem, n)
	for i := range out {
		id := prefix + strconv.Itoa(i)
		out[i] = types.ContentItem{ID: id, Title: "title " + id}
	}
	return out
}

var _ interfaces.Source = (*Fake)(nil)
