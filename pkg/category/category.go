// Package category builds category taxonomies and the listing URLs that
// encode a category selection.
package category

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"media-source-go/pkg/types"
)

// ErrDependencyUnselected is returned when a dynamic group is resolved
// before every group it depends on has a selection.
var ErrDependencyUnselected = errors.New("dependency not selected")

// Opt is shorthand for a CategoryOption.
func Opt(label, value string) types.CategoryOption {
	return types.CategoryOption{Label: label, Value: value}
}

// Static builds a group with a fixed option list. The first option is the default.
func Static(key, name string, options ...types.CategoryOption) types.CategoryGroup {
	g := types.CategoryGroup{Key: key, Name: name, Options: options}
	if len(options) > 0 {
		g.Default = options[0].Value
	}
	return g
}

// Dynamic builds a group whose options are computed from the selections of dependsOn.
func Dynamic(key, name string, dependsOn []string, resolve types.OptionResolver) types.CategoryGroup {
	return types.CategoryGroup{Key: key, Name: name, DependsOn: dependsOn, Resolve: resolve}
}

// Defaults returns a query selecting every static group's default value.
func Defaults(groups []types.CategoryGroup) types.CategoryQuery {
	q := make(types.CategoryQuery, len(groups))
	for _, g := range groups {
		if !g.IsDynamic() {
			q[g.Key] = g.Default
		}
	}
	return q
}

// Resolver returns group options, caching dynamic results for each distinct
// combination of dependency values. Concurrent lookups of one key share a
// single resolve; distinct keys resolve in parallel. Dependency cycles are
// not detected.
type Resolver struct {
	mu     sync.RWMutex
	cache  map[string][]types.CategoryOption
	flight singleflight.Group
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string][]types.CategoryOption)}
}

// Options returns the options of g given the current selections. scope
// namespaces the cache, typically the source id.
func (r *Resolver) Options(ctx context.Context, scope string, g types.CategoryGroup, sel types.CategoryQuery) ([]types.CategoryOption, error) {
	if !g.IsDynamic() {
		return g.Options, nil
	}

	var key strings.Builder
	key.WriteString(scope)
	key.WriteByte(0)
	key.WriteString(g.Key)
	for _, dep := range g.DependsOn {
		v, ok := sel[dep]
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %s", ErrDependencyUnselected, g.Key, dep)
		}
		key.WriteByte(0)
		key.WriteString(dep)
		key.WriteByte('=')
		key.WriteString(v)
	}
	k := key.String()

	r.mu.RLock()
	if opts, ok := r.cache[k]; ok {
		r.mu.RUnlock()
		return opts, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.flight.Do(k, func() (any, error) {
		r.mu.RLock()
		opts, ok := r.cache[k]
		r.mu.RUnlock()
		if ok {
			return opts, nil
		}
		opts, err := g.Resolve(ctx, sel)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[k] = opts
		r.mu.Unlock()
		return opts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.CategoryOption), nil
}

// Segment is one optional "/prefix/value" pair of a path-segment listing URL.
type Segment struct {
	Prefix string
	Key    string
}

// SegmentPath encodes a selection as path segments followed by /page/N.
// Segments whose key has no selection are omitted.
func SegmentPath(segs []Segment, q types.CategoryQuery, page int) string {
	var sb strings.Builder
	for _, s := range segs {
		v := q[s.Key]
		if v == "" {
			continue
		}
		if s.Prefix != "" {
			sb.WriteString("/" + s.Prefix)
		}
		sb.WriteString("/" + url.PathEscape(v))
	}
	if page > 1 {
		sb.WriteString("/page/" + strconv.Itoa(page))
	}
	return sb.String()
}

// Slots describes a positional, dash-separated listing path such as
// "1-日本--动作------2---2024". Each key owns one fixed slot.
type Slots struct {
	Count int
	Index map[string]int
	Page  int
}

// Build encodes q and page into the slot string.
func (s Slots) Build(q types.CategoryQuery, page int) string {
	parts := make([]string, s.Count)
	for key, i := range s.Index {
		if i < s.Count {
			parts[i] = url.PathEscape(q[key])
		}
	}
	if page > 1 && s.Page < s.Count {
		parts[s.Page] = strconv.Itoa(page)
	}
	return strings.Join(parts, "-")
}

// ParseSlots splits the final path element of href into its slot values.
func ParseSlots(href string) []string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	name := strings.TrimSuffix(path.Base(href), path.Ext(href))
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if u, err := url.PathUnescape(p); err == nil {
			parts[i] = u
		}
	}
	return parts
}

// Params encodes a selection as query parameters, skipping empty values.
func Params(q types.CategoryQuery, pageKey string, page int) url.Values {
	v := url.Values{}
	for key, val := range q {
		if val != "" {
			v.Set(key, val)
		}
	}
	if page > 1 {
		v.Set(pageKey, strconv.Itoa(page))
	}
	return v
}
