// Package links extracts URLs from message text and classifies them into
// routing categories. Classification is pattern-based: category patterns are
// evaluated in a fixed priority order and the first match wins; anything
// unmatched falls into the General category.
package links

import (
	"regexp"
	"strings"
)

// Category identifies a routing category for a link.
type Category int

const (
	Video Category = iota
	Store
	General
)

// Definition holds the static attributes of a category: how its links are
// recognized and how its destination room looks.
type Definition struct {
	Key      string
	Title    string
	Icon     string
	Color    int
	RoomName string
	Topic    string

	pattern *regexp.Regexp // nil for the catch-all category
}

// definitions is the category priority order. General must stay last: its
// nil pattern matches everything left over.
var definitions = []Definition{
	{
		Key:      "video",
		Title:    "Videos",
		Icon:     "🎬",
		Color:    0xE62117,
		RoomName: "video-links",
		Topic:    "Videos and clips shared around the server. Discuss in the thread below the latest post.",
		pattern:  regexp.MustCompile(`(?i)(youtube\.com|youtu\.be|vimeo\.com|twitch\.tv)`),
	},
	{
		Key:      "store",
		Title:    "Store Pages",
		Icon:     "🛒",
		Color:    0x1B2838,
		RoomName: "store-links",
		Topic:    "Games, deals and store pages shared around the server. Discuss in the thread below the latest post.",
		pattern:  regexp.MustCompile(`(?i)(store\.steampowered\.com|steamcommunity\.com|epicgames\.com|gog\.com|itch\.io|humblebundle\.com)`),
	},
	{
		Key:      "links",
		Title:    "Links",
		Icon:     "🔗",
		Color:    0x5865F2,
		RoomName: "links",
		Topic:    "Everything else shared around the server. Discuss in the thread below the latest post.",
	},
}

// Def returns the static definition for the category.
func (c Category) Def() Definition {
	return definitions[c]
}

func (c Category) String() string {
	return definitions[c].Key
}

// Categories returns all categories in classification priority order.
func Categories() []Category {
	cats := make([]Category, len(definitions))
	for i := range definitions {
		cats[i] = Category(i)
	}
	return cats
}

// ByKey resolves a configuration key ("video", "store", "links") to its
// category.
func ByKey(key string) (Category, bool) {
	for i, d := range definitions {
		if d.Key == key {
			return Category(i), true
		}
	}
	return 0, false
}

// urlPattern recognizes http/https URLs embedded in free text. Trailing
// punctuation is handled separately in Extract since the pattern cannot know
// whether a closing bracket belongs to the URL or the prose around it.
var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"]+`)

const trailingJunk = `.,;:!?'")]}>`

// Extract returns all URLs found in text, in order of appearance, with
// trailing punctuation and brackets stripped.
func Extract(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, trailingJunk)
		if m != "" {
			urls = append(urls, m)
		}
	}
	return urls
}

// Classify maps a single URL to its category. First matching pattern wins;
// URLs matching no pattern fall into General.
func Classify(url string) Category {
	for i, d := range definitions {
		if d.pattern != nil && d.pattern.MatchString(url) {
			return Category(i)
		}
	}
	return General
}

// Group is a batch of same-category URLs extracted from one message,
// preserving their order of appearance.
type Group struct {
	Category Category
	URLs     []string
}

// GroupText extracts all URLs from text and groups them by category. Groups
// come back in category priority order; URLs inside a group keep their
// appearance order. A message can yield groups for several categories at
// once.
func GroupText(text string) []Group {
	urls := Extract(text)
	if len(urls) == 0 {
		return nil
	}

	byCat := make(map[Category][]string)
	for _, u := range urls {
		c := Classify(u)
		byCat[c] = append(byCat[c], u)
	}

	groups := make([]Group, 0, len(byCat))
	for _, c := range Categories() {
		if us, ok := byCat[c]; ok {
			groups = append(groups, Group{Category: c, URLs: us})
		}
	}
	return groups
}
