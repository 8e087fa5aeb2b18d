// Package types defines the content model shared by every source adapter.
package types

import (
	"context"
	"strconv"
)

// ContentItem is one entry of a listing (home section, search result, category page).
type ContentItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	Description string `json:"description,omitempty"`
	Tag         string `json:"tag,omitempty"`
}

// Episode is a single playable entry of a PlayList.
// ID is opaque to callers and only meaningful to the source that produced it.
type Episode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Index int    `json:"index"`
}

// PlayList is one play line (mirror/server) of a title.
type PlayList struct {
	Name     string    `json:"name"`
	Episodes []Episode `json:"episodes"`
	Default  bool      `json:"default,omitempty"`
}

// HistoryRef is the playback-history annotation slot on a detail.
// The core never fills it; persistence layers attach it after the fact.
type HistoryRef struct {
	PlayListIndex int    `json:"playlist_index"`
	EpisodeID     string `json:"episode_id"`
	PositionMs    int64  `json:"position_ms"`
}

// ContentDetail is the full description of a single title.
type ContentDetail struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	CoverURL      string        `json:"cover_url,omitempty"`
	Info          []string      `json:"info,omitempty"`
	PlayLists     []PlayList    `json:"playlists"`
	Related       []ContentItem `json:"related,omitempty"`
	LatestEpisode string        `json:"latest_episode,omitempty"`
	History       *HistoryRef   `json:"history,omitempty"`
}

// VideoURLResult is a playable URL plus the request headers needed to play it.
type VideoURLResult struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NamedGroup is an ordered, titled group of values.
type NamedGroup[T any] struct {
	Name  string `json:"name"`
	Items []T    `json:"items"`
}

// Page is one page of a paged listing.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	HasNext bool `json:"has_next"`
}

// Timeline is a weekly release schedule.
type Timeline struct {
	Days    []NamedGroup[ContentItem] `json:"days"`
	Current int                       `json:"current"`
}

// CategoryOption is one selectable value of a CategoryGroup.
// An empty Value means "no constraint".
type CategoryOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// OptionResolver computes the options of a dynamic group from the current selections.
type OptionResolver func(ctx context.Context, selections CategoryQuery) ([]CategoryOption, error)

// CategoryGroup is one filter dimension of a source's taxonomy.
// A group is static when Resolve is nil; otherwise its options depend on
// the values selected for the keys in DependsOn.
type CategoryGroup struct {
	Key       string           `json:"key"`
	Name      string           `json:"name"`
	Options   []CategoryOption `json:"options,omitempty"`
	Default   string           `json:"default,omitempty"`
	DependsOn []string         `json:"depends_on,omitempty"`
	Resolve   OptionResolver   `json:"-"`
}

// IsDynamic reports whether the group's options are computed from other selections.
func (g CategoryGroup) IsDynamic() bool {
	return g.Resolve != nil
}

// CategoryQuery maps group keys to selected option values.
type CategoryQuery map[string]string

// Get returns the selection for key, or def when unset.
func (q CategoryQuery) Get(key, def string) string {
	if v, ok := q[key]; ok && v != "" {
		return v
	}
	return def
}

// Clone returns a copy of q that is safe to mutate.
func (q CategoryQuery) Clone() CategoryQuery {
	out := make(CategoryQuery, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Capabilities lists which optional operations a source supports.
type Capabilities struct {
	Search   bool `json:"search"`
	Category bool `json:"category"`
	Timeline bool `json:"timeline"`
}

// SourceInfo summarises a registered source.
type SourceInfo struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Capabilities Capabilities `json:"capabilities"`
}

// PageNumber parses a page number, falling back to 1.
func PageNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
