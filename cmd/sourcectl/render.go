package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"media-source-go/pkg/types"
)

var (
	dimStyle    = pterm.NewStyle(pterm.FgGray)
	accentStyle = pterm.NewStyle(pterm.FgCyan, pterm.Bold)
)

func check(b bool) string {
	if b {
		return pterm.FgGreen.Sprint("yes")
	}
	return dimStyle.Sprint("no")
}

func renderSources(infos []types.SourceInfo) {
	table := pterm.TableData{{"ID", "Name", "Search", "Categories", "Timeline"}}
	for _, s := range infos {
		table = append(table, []string{
			s.ID,
			s.Name,
			check(s.Capabilities.Search),
			check(s.Capabilities.Category),
			check(s.Capabilities.Timeline),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func renderItems(items []types.ContentItem) {
	if len(items) == 0 {
		pterm.Println(dimStyle.Sprint("  (empty)"))
		return
	}
	table := pterm.TableData{{"ID", "Title", "Status", "Tag"}}
	for _, it := range items {
		table = append(table, []string{it.ID, it.Title, it.Status, it.Tag})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func renderDetail(d *types.ContentDetail) {
	pterm.DefaultHeader.WithFullWidth().Println(d.Name)
	for _, line := range d.Info {
		pterm.Println("  " + dimStyle.Sprint("•") + " " + line)
	}
	if d.Description != "" {
		pterm.DefaultParagraph.Println(d.Description)
	}
	if d.LatestEpisode != "" {
		pterm.Info.Printf("Latest: %s\n", d.LatestEpisode)
	}

	for _, pl := range d.PlayLists {
		name := pl.Name
		if pl.Default {
			name += " *"
		}
		pterm.DefaultSection.Println(name)
		labels := make([]string, 0, len(pl.Episodes))
		for _, ep := range pl.Episodes {
			labels = append(labels, accentStyle.Sprint(ep.Label)+dimStyle.Sprint(" "+ep.ID))
		}
		pterm.Println(strings.Join(labels, "  "))
	}

	if len(d.Related) > 0 {
		pterm.DefaultSection.Println("Related")
		renderItems(d.Related)
	}
}

func renderHeaders(headers map[string]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	table := pterm.TableData{{"Header", "Value"}}
	for _, k := range keys {
		table = append(table, []string{k, headers[k]})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}

func renderGroup(g types.CategoryGroup, opts []types.CategoryOption, selected string) {
	title := fmt.Sprintf("%s (%s)", g.Name, g.Key)
	if g.IsDynamic() {
		title += dimStyle.Sprint(" depends on " + strings.Join(g.DependsOn, ", "))
	}
	pterm.DefaultSection.Println(title)

	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		label := o.Label + "=" + strconv.Quote(o.Value)
		if o.Value == selected {
			label = accentStyle.Sprint("[" + label + "]")
		}
		parts = append(parts, label)
	}
	pterm.Println(strings.Join(parts, "  "))
}
