// Package interfaces defines the core abstractions of the content core.
// Every site adapter implements Source, which keeps the catalog, the HTTP
// API and the CLI independent of any particular site.
package interfaces

import (
	"context"

	"media-source-go/pkg/types"
)

// Source is one content site.
//
// To add a new source:
// 1. Create a new file in pkg/sources/
// 2. Embed *sources.BaseSource and implement the operations the site supports
// 3. Register it in internal/app
type Source interface {
	// ID returns the stable identifier used for lookup and persistence.
	ID() string

	// Name returns the human-readable site name.
	Name() string

	// HomeListing returns the landing page as ordered, named sections.
	HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error)

	// Detail returns the full description of a title, including its play lists.
	Detail(ctx context.Context, id string) (*types.ContentDetail, error)

	// Search returns one page of results for keyword. Pages start at 1.
	Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error)

	// CategoryGroups returns the source's filter taxonomy.
	CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error)

	// QueryByCategory returns one page of titles matching the selection.
	QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error)

	// ResolveVideoURL turns an episode of a title into a playable URL.
	ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error)

	// UpdateTimeline returns the weekly release schedule.
	UpdateTimeline(ctx context.Context) (*types.Timeline, error)

	// SupportsSearch reports whether Search is implemented.
	SupportsSearch() bool

	// SupportsCategory reports whether CategoryGroups and QueryByCategory are implemented.
	SupportsCategory() bool

	// SupportsTimeline reports whether UpdateTimeline is implemented.
	SupportsTimeline() bool
}

// Registry is a generic interface for component registries keyed by id.
type Registry[T any] interface {
	// Register adds a component to the registry.
	Register(component T) error

	// Get returns the component registered under id.
	Get(id string) (T, bool)

	// All returns all registered components in registration order.
	All() []T
}
