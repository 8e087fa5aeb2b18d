package sources

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"media-source-go/pkg/crypto"
	"media-source-go/pkg/textscan"
	"media-source-go/pkg/types"
)

var (
	errEmptyBody   = errors.New("empty body")
	errInvalidJSON = errors.New("invalid json")
)

// playerMarker names the inline player configuration most MacCMS themes emit.
const playerMarker = "player_aaaa"

// playerConfig is the subset of a MacCMS player blob the sources read.
type playerConfig struct {
	URL     string
	Encrypt string
	From    string
	Link    string
	Next    string
}

// parsePlayerConfig locates the object assigned to marker and reads it as
// loose JSON, so trailing commas and similar slips are tolerated. Bracket
// matching is naive: a truncated page yields a wrong boundary, reported as
// a decode error when no url can be read from it.
func (b *BaseSource) parsePlayerConfig(page, marker string) (playerConfig, error) {
	blob, ok := textscan.ObjectAfter(page, marker)
	if !ok {
		return playerConfig{}, b.markup(marker + " config")
	}
	r := gjson.Parse(blob)
	cfg := playerConfig{
		URL:     r.Get("url").String(),
		Encrypt: r.Get("encrypt").String(),
		From:    r.Get("from").String(),
		Link:    r.Get("link").String(),
		Next:    r.Get("link_next").String(),
	}
	if cfg.URL == "" {
		if !gjson.Valid(blob) {
			return playerConfig{}, b.decode(marker+" config", errInvalidJSON)
		}
		return playerConfig{}, b.markup(marker + ".url")
	}
	return cfg, nil
}

// decodedURL applies the blob's encrypt mode to its url.
func (b *BaseSource) decodedURL(cfg playerConfig) (string, error) {
	u, err := crypto.DecodePlayerURL(cfg.URL, cfg.Encrypt)
	if err != nil {
		return "", b.decode("player url mode "+cfg.Encrypt, err)
	}
	if u == "" {
		return "", b.markup("non-empty player url")
	}
	return u, nil
}

// zipPlayLists pairs tab names with episode groups. When the counts differ
// the shorter side wins. Empty groups are dropped.
func zipPlayLists(names []string, groups [][]types.Episode) []types.PlayList {
	n := min(len(names), len(groups))
	out := make([]types.PlayList, 0, n)
	for i := 0; i < n; i++ {
		if len(groups[i]) == 0 {
			continue
		}
		out = append(out, types.PlayList{
			Name:     names[i],
			Episodes: groups[i],
			Default:  len(out) == 0,
		})
	}
	return out
}

// splitPlayURLs parses the "$$$"-separated play line format of the MacCMS
// JSON API: lines of "#"-separated "label$url" episodes.
func splitPlayURLs(from, urls string) ([]string, [][]string, [][]string) {
	names := strings.Split(from, "$$$")
	lines := strings.Split(urls, "$$$")
	labels := make([][]string, len(lines))
	targets := make([][]string, len(lines))
	for i, line := range lines {
		for _, ep := range strings.Split(line, "#") {
			if ep == "" {
				continue
			}
			label, target, ok := strings.Cut(ep, "$")
			if !ok {
				label, target = "", label
			}
			labels[i] = append(labels[i], label)
			targets[i] = append(targets[i], target)
		}
	}
	return names, labels, targets
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
