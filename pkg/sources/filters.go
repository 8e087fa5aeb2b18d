package sources

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"media-source-go/pkg/category"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

// filterLink is one anchor of a filter row.
type filterLink struct {
	label  string
	href   string
	active bool
}

func isActive(a *goquery.Selection) bool {
	for _, s := range []*goquery.Selection{a, a.Parent()} {
		if s.HasClass("active") || s.HasClass("on") || s.HasClass("selected") {
			return true
		}
	}
	return false
}

func filterRows(doc *goquery.Document, t theme, fn func(label string, links []filterLink)) {
	doc.Find(t.FilterRow).Each(func(_ int, row *goquery.Selection) {
		label := cleanText(row.Find(t.FilterLabel).First().Text())
		label = strings.TrimRight(label, ":：")
		var links []filterLink
		row.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			links = append(links, filterLink{label: cleanText(a.Text()), href: href, active: isActive(a)})
		})
		if len(links) > 1 {
			fn(label, links)
		}
	})
}

func groupFromLinks(key, name string, links []filterLink, value func(filterLink) string) types.CategoryGroup {
	g := types.CategoryGroup{Key: key, Name: name}
	for _, l := range links {
		v := value(l)
		g.Options = append(g.Options, category.Opt(l.label, v))
		if l.active && g.Default == "" {
			g.Default = v
		}
	}
	if g.Default == "" && len(g.Options) > 0 {
		g.Default = g.Options[0].Value
	}
	return g
}

// slotFilters discovers positional filter rows. Each row's anchors link to
// slot paths that differ in exactly one position; that position becomes the
// group key.
func slotFilters(doc *goquery.Document, t theme) []types.CategoryGroup {
	var groups []types.CategoryGroup
	seen := make(map[int]bool)
	filterRows(doc, t, func(label string, links []filterLink) {
		slots := make([][]string, len(links))
		for i, l := range links {
			slots[i] = category.ParseSlots(l.href)
		}
		idx := differingSlot(slots)
		if idx < 0 || seen[idx] {
			return
		}
		seen[idx] = true
		groups = append(groups, groupFromLinks(strconv.Itoa(idx), label, links, func(l filterLink) string {
			s := category.ParseSlots(l.href)
			if idx < len(s) {
				return s[idx]
			}
			return ""
		}))
	})
	return groups
}

func differingSlot(slots [][]string) int {
	first := slots[0]
	for i := range first {
		for _, s := range slots[1:] {
			if i < len(s) && s[i] != first[i] {
				return i
			}
		}
	}
	return -1
}

// slotPath encodes q for a positional listing whose keys are slot indexes.
func slotPath(q types.CategoryQuery, count, pageSlot, page int) string {
	s := category.Slots{Count: count, Index: make(map[string]int, len(q)), Page: pageSlot}
	for key := range q {
		if i, err := strconv.Atoi(key); err == nil {
			s.Index[key] = i
		}
	}
	return s.Build(q, page)
}

// paramFilters discovers query-parameter filter rows. The group key is the
// parameter whose value differs between the row's anchors.
func paramFilters(doc *goquery.Document, t theme) []types.CategoryGroup {
	var groups []types.CategoryGroup
	seen := make(map[string]bool)
	filterRows(doc, t, func(label string, links []filterLink) {
		queries := make([]url.Values, len(links))
		keys := make(map[string]bool)
		for i, l := range links {
			if u, err := url.Parse(l.href); err == nil {
				queries[i] = u.Query()
			} else {
				queries[i] = url.Values{}
			}
			for k := range queries[i] {
				keys[k] = true
			}
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)

		key := ""
		for _, k := range sorted {
			for _, q := range queries[1:] {
				if q.Get(k) != queries[0].Get(k) {
					key = k
					break
				}
			}
			if key != "" {
				break
			}
		}
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		groups = append(groups, groupFromLinks(key, label, links, func(l filterLink) string {
			u, err := url.Parse(l.href)
			if err != nil {
				return ""
			}
			return u.Query().Get(key)
		}))
	})
	return groups
}

// weekDays parses a weekly schedule laid out as day tabs and one list
// container per tab. It also returns the index of the tab marked active, or
// -1 when none is.
func weekDays(doc *goquery.Document, tabs, lists, item string) ([]types.NamedGroup[types.ContentItem], int) {
	var names []string
	active := -1
	doc.Find(tabs).Each(func(i int, s *goquery.Selection) {
		names = append(names, cleanText(s.Text()))
		if active < 0 && (s.HasClass("active") || s.HasClass("on")) {
			active = i
		}
	})

	var days []types.NamedGroup[types.ContentItem]
	doc.Find(lists).Each(func(i int, s *goquery.Selection) {
		if i >= len(names) {
			return
		}
		day := types.NamedGroup[types.ContentItem]{Name: names[i], Items: []types.ContentItem{}}
		s.Find(item).Each(func(_ int, it *goquery.Selection) {
			a := it
			if !it.Is("a") {
				a = it.Find("a").First()
			}
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			ci := types.ContentItem{
				ID:    urlutil.IDFromHref(href),
				Title: strings.TrimSpace(a.AttrOr("title", cleanText(a.Text()))),
			}
			if status := cleanText(it.Find("span").First().Text()); status != "" && !it.Is("a") {
				ci.Status = status
			}
			if ci.ID != "" {
				day.Items = append(day.Items, ci)
			}
		})
		days = append(days, day)
	})
	return days, active
}
