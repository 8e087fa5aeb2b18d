// Package services provides the catalog façade the HTTP API and the CLI
// call into. It resolves sources by id, enforces their capability flags and
// logs every operation.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-source-go/pkg/category"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/paging"
	"media-source-go/pkg/registry"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
)

// ErrUnknownGroup is returned when a category group key does not exist.
var ErrUnknownGroup = errors.New("unknown category group")

// Catalog is the single entry point for content operations across sources.
type Catalog struct {
	sources  *registry.SourceRegistry
	resolver *category.Resolver
	log      *logging.Logger
}

// NewCatalog creates a catalog over the registered sources.
func NewCatalog(sources *registry.SourceRegistry, log *logging.Logger) *Catalog {
	if log == nil {
		log = logging.Discard()
	}
	return &Catalog{
		sources:  sources,
		resolver: category.NewResolver(),
		log:      log.WithComponent("catalog"),
	}
}

// Sources summarises every registered source.
func (c *Catalog) Sources() []types.SourceInfo {
	return c.sources.Infos()
}

// Source returns the summary of one source.
func (c *Catalog) Source(id string) (types.SourceInfo, error) {
	src, err := c.sources.Require(id)
	if err != nil {
		return types.SourceInfo{}, err
	}
	return registry.Info(src), nil
}

// run resolves the source, applies the capability gate and logs the outcome.
func run[T any](ctx context.Context, c *Catalog, id, op string, gate func(interfaces.Source) bool, fn func(context.Context, interfaces.Source) (T, error)) (T, error) {
	var zero T
	src, err := c.sources.Require(id)
	if err != nil {
		c.log.Warn("unknown source", "source", id, "op", op)
		return zero, err
	}
	if gate != nil && !gate(src) {
		return zero, sourceerr.Unsupported(id, op)
	}

	start := time.Now()
	out, err := fn(ctx, src)
	log := c.log.With("source", id, "op", op).WithDuration(time.Since(start))
	if err != nil {
		if sourceerr.IsKind(err, sourceerr.KindUnsupported) {
			log.Debug("operation unsupported")
		} else {
			log.WithError(err).Warn("operation failed")
		}
		return zero, err
	}
	log.Debug("operation completed")
	return out, nil
}

func supportsSearch(s interfaces.Source) bool   { return s.SupportsSearch() }
func supportsCategory(s interfaces.Source) bool { return s.SupportsCategory() }
func supportsTimeline(s interfaces.Source) bool { return s.SupportsTimeline() }

// Home returns the landing sections of a source.
func (c *Catalog) Home(ctx context.Context, id string) ([]types.NamedGroup[types.ContentItem], error) {
	return run(ctx, c, id, "home", nil, func(ctx context.Context, s interfaces.Source) ([]types.NamedGroup[types.ContentItem], error) {
		return s.HomeListing(ctx)
	})
}

// Detail returns the detail of one title.
func (c *Catalog) Detail(ctx context.Context, id, contentID string) (*types.ContentDetail, error) {
	return run(ctx, c, id, "detail", nil, func(ctx context.Context, s interfaces.Source) (*types.ContentDetail, error) {
		return s.Detail(ctx, contentID)
	})
}

// Search returns one page of search results.
func (c *Catalog) Search(ctx context.Context, id, keyword string, page int) (*types.Page[types.ContentItem], error) {
	return run(ctx, c, id, "search", supportsSearch, func(ctx context.Context, s interfaces.Source) (*types.Page[types.ContentItem], error) {
		return s.Search(ctx, keyword, max(page, 1))
	})
}

// SearchLoader returns a key-based loader over a keyword's result pages.
func (c *Catalog) SearchLoader(id, keyword string) *paging.Loader[types.ContentItem] {
	return paging.NewLoader(func(ctx context.Context, page int) (*types.Page[types.ContentItem], error) {
		return c.Search(ctx, id, keyword, page)
	})
}

// CategoryGroups returns the filter taxonomy of a source.
func (c *Catalog) CategoryGroups(ctx context.Context, id string) ([]types.CategoryGroup, error) {
	return run(ctx, c, id, "category groups", supportsCategory, func(ctx context.Context, s interfaces.Source) ([]types.CategoryGroup, error) {
		return s.CategoryGroups(ctx)
	})
}

// GroupOptions returns the options of one group under the given
// selections. Dynamic groups are resolved once per distinct combination of
// dependency values.
func (c *Catalog) GroupOptions(ctx context.Context, id, key string, sel types.CategoryQuery) ([]types.CategoryOption, error) {
	groups, err := c.CategoryGroups(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Key != key {
			continue
		}
		opts, err := c.resolver.Options(ctx, id, g, sel)
		if err != nil {
			return nil, fmt.Errorf("%s options for %s: %w", id, key, err)
		}
		return opts, nil
	}
	return nil, fmt.Errorf("%s: %w %q", id, ErrUnknownGroup, key)
}

// QueryByCategory returns one page of titles. Static groups missing from q
// take their default value.
func (c *Catalog) QueryByCategory(ctx context.Context, id string, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	groups, err := c.CategoryGroups(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := category.Defaults(groups)
	for k, v := range q {
		merged[k] = v
	}
	return run(ctx, c, id, "category query", supportsCategory, func(ctx context.Context, s interfaces.Source) (*types.Page[types.ContentItem], error) {
		return s.QueryByCategory(ctx, merged, max(page, 1))
	})
}

// CategoryLoader returns a key-based loader over a selection's pages.
func (c *Catalog) CategoryLoader(id string, q types.CategoryQuery) *paging.Loader[types.ContentItem] {
	return paging.NewLoader(func(ctx context.Context, page int) (*types.Page[types.ContentItem], error) {
		return c.QueryByCategory(ctx, id, q, page)
	})
}

// VideoURL resolves an episode to a playable URL.
func (c *Catalog) VideoURL(ctx context.Context, id, contentID, episodeID string) (*types.VideoURLResult, error) {
	return run(ctx, c, id, "video url", nil, func(ctx context.Context, s interfaces.Source) (*types.VideoURLResult, error) {
		return s.ResolveVideoURL(ctx, contentID, episodeID)
	})
}

// Timeline returns the weekly schedule of a source.
func (c *Catalog) Timeline(ctx context.Context, id string) (*types.Timeline, error) {
	return run(ctx, c, id, "timeline", supportsTimeline, func(ctx context.Context, s interfaces.Source) (*types.Timeline, error) {
		return s.UpdateTimeline(ctx)
	})
}
