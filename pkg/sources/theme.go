package sources

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

// theme holds the selectors of a site template shared by several sites.
// Sources built on the same template differ only in URLs and in how they
// resolve the player page.
type theme struct {
	Section      string
	SectionTitle string

	Item       string
	ListItem   string // search and category result items; defaults to Item
	ItemLink   string
	ItemTitle  string
	ItemCover  string
	ItemStatus string
	ItemDesc   string
	// ItemID maps an item href to its identifier; defaults to urlutil.IDFromHref.
	ItemID func(href string) string

	DetailName    string
	DetailCover   string
	DetailDesc    string
	DetailInfo    string
	DetailLatest  string
	TabNames      string
	EpisodeGroups string
	Related       string

	PageLinks   string
	PageCurrent string

	FilterRow   string
	FilterLabel string
}

// moduleTheme is the MacCMS "module" template.
var moduleTheme = theme{
	Section:      ".module",
	SectionTitle: ".module-title",

	Item:       ".module-item",
	ListItem:   ".module-items .module-item",
	ItemLink:   "a.module-item-cover",
	ItemTitle:  ".module-item-title",
	ItemCover:  "img",
	ItemStatus: ".module-item-note",

	DetailName:    ".module-info-heading h1",
	DetailCover:   ".module-info-poster img",
	DetailDesc:    ".module-info-introduction-content",
	DetailInfo:    ".module-info-item",
	DetailLatest:  ".module-info-item-latest",
	TabNames:      ".module-tab-item span",
	EpisodeGroups: ".module-play-list",
	Related:       ".module-related",

	PageLinks:   "#page a",
	PageCurrent: "#page .page-current",

	FilterRow:   ".module-class-item",
	FilterLabel: ".module-item-title",
}

// stuiTheme is the MacCMS "stui" template.
var stuiTheme = theme{
	Section:      ".stui-pannel",
	SectionTitle: ".stui-pannel__head .title",

	Item:       ".stui-vodlist li",
	ItemLink:   "a.stui-vodlist__thumb",
	ItemTitle:  ".stui-vodlist__detail .title",
	ItemCover:  "a.stui-vodlist__thumb",
	ItemStatus: ".pic-text",
	ItemDesc:   ".stui-vodlist__detail .text",

	DetailName:    ".stui-content__detail h1.title",
	DetailCover:   ".stui-content__thumb img",
	DetailDesc:    ".detail-content",
	DetailInfo:    ".stui-content__detail p.data",
	DetailLatest:  ".stui-content__detail .latest",
	TabNames:      ".playlist-tab li",
	EpisodeGroups: ".stui-content__playlist",
	Related:       ".stui-related",

	PageLinks:   ".stui-page li a",
	PageCurrent: ".stui-page li.active",

	FilterRow:   ".stui-screen__list",
	FilterLabel: ".screen-label",
}

// imageAttr returns the lazy-load or plain image URL of s.
func imageAttr(s *goquery.Selection) string {
	for _, attr := range []string{"data-original", "data-src", "src"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (t theme) itemID(href string) string {
	if t.ItemID != nil {
		return t.ItemID(href)
	}
	return urlutil.IDFromHref(href)
}

// items parses every theme item inside sel.
func (t theme) items(sel *goquery.Selection, abs func(string) string) []types.ContentItem {
	var out []types.ContentItem
	sel.Each(func(_ int, s *goquery.Selection) {
		link := s.Find(t.ItemLink).First()
		if link.Length() == 0 && s.Is("a") {
			link = s
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		id := t.itemID(href)
		if id == "" {
			return
		}

		title := ""
		if t.ItemTitle != "" {
			title = cleanText(s.Find(t.ItemTitle).First().Text())
		}
		if title == "" {
			title = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if title == "" {
			title = cleanText(link.Text())
		}

		item := types.ContentItem{ID: id, Title: title}
		if t.ItemCover != "" {
			if cover := imageAttr(s.Find(t.ItemCover).First()); cover != "" {
				item.CoverURL = abs(cover)
			}
		}
		if t.ItemStatus != "" {
			item.Status = cleanText(s.Find(t.ItemStatus).First().Text())
		}
		if t.ItemDesc != "" {
			item.Description = cleanText(s.Find(t.ItemDesc).First().Text())
		}
		out = append(out, item)
	})
	return out
}

// sections parses the home page into named groups, skipping empty ones.
func (t theme) sections(doc *goquery.Document, abs func(string) string) []types.NamedGroup[types.ContentItem] {
	var out []types.NamedGroup[types.ContentItem]
	doc.Find(t.Section).Each(func(_ int, s *goquery.Selection) {
		items := t.items(s.Find(t.Item), abs)
		if len(items) == 0 {
			return
		}
		out = append(out, types.NamedGroup[types.ContentItem]{
			Name:  cleanText(s.Find(t.SectionTitle).First().Text()),
			Items: items,
		})
	})
	return out
}

// episodes parses the anchors of one episode container. episodeID maps an
// anchor href to the source's episode identifier.
func episodes(group *goquery.Selection, episodeID func(string) string) []types.Episode {
	var out []types.Episode
	group.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		id := episodeID(href)
		if id == "" {
			return
		}
		out = append(out, types.Episode{ID: id, Label: cleanText(a.Text()), Index: len(out)})
	})
	return out
}

// detail parses a theme detail page. The name is the only required field.
func (t theme) detail(doc *goquery.Document, id string, abs func(string) string, episodeID func(string) string) (*types.ContentDetail, bool) {
	name := cleanText(doc.Find(t.DetailName).First().Text())
	if name == "" {
		return nil, false
	}

	d := &types.ContentDetail{
		ID:          id,
		Name:        name,
		Description: cleanText(doc.Find(t.DetailDesc).First().Text()),
	}
	if cover := imageAttr(doc.Find(t.DetailCover).First()); cover != "" {
		d.CoverURL = abs(cover)
	}
	doc.Find(t.DetailInfo).Each(func(_ int, s *goquery.Selection) {
		if line := cleanText(s.Text()); line != "" {
			d.Info = append(d.Info, line)
		}
	})
	if t.DetailLatest != "" {
		d.LatestEpisode = cleanText(doc.Find(t.DetailLatest).First().Text())
	}

	var names []string
	doc.Find(t.TabNames).Each(func(_ int, s *goquery.Selection) {
		names = append(names, cleanText(s.Text()))
	})
	var groups [][]types.Episode
	doc.Find(t.EpisodeGroups).Each(func(_ int, s *goquery.Selection) {
		groups = append(groups, episodes(s, episodeID))
	})
	d.PlayLists = zipPlayLists(names, groups)

	if t.Related != "" {
		d.Related = t.items(doc.Find(t.Related).Find(t.Item), abs)
	}
	return d, true
}

// page parses a search or category result page.
func (t theme) page(doc *goquery.Document, page int, abs func(string) string) *types.Page[types.ContentItem] {
	sel := t.ListItem
	if sel == "" {
		sel = t.Item
	}
	return &types.Page[types.ContentItem]{
		Items:   t.items(doc.Find(sel), abs),
		Page:    page,
		HasNext: hasNextPage(doc, t.PageLinks, t.PageCurrent, page),
	}
}

// hasNextPage compares the active page indicator with the highest numbered
// pagination link. page is used when no indicator is present.
func hasNextPage(doc *goquery.Document, links, current string, page int) bool {
	cur := page
	if current != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(doc.Find(current).First().Text())); err == nil {
			cur = n
		}
	}
	highest := 0
	doc.Find(links).Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > highest {
			highest = n
		}
	})
	return highest > cur
}
