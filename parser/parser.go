// Package parser turns fetched DOM (outer HTML from the Browser Fetcher)
// into typed records: list items, article detail bodies, tab text, and
// rankings/listing entries (C3).
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"kaggledb-core/classify"
)

// ListItem is one row extracted by the list parser.
type ListItem struct {
	Title        string
	URL          string
	Author       string
	AuthorTier   string
	TierColor    string
	VoteCount    int
	CommentCount int
	IsPinned     bool
	Category     classify.Category
}

var voteCountRe = regexp.MustCompile(`-?\d+`)

// ParseList walks a discussion/writeup/notebook listing page's HTML and
// extracts one ListItem per `li.MuiListItem-root` entry. Pinned items are
// still returned (with IsPinned=true) — dropping them is the orchestrator's
// job, not the parser's, so the parser stays a pure DOM→record mapper.
func ParseList(html string) ([]ListItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parser: parse list html: %w", err)
	}

	var items []ListItem
	doc.Find("li.MuiListItem-root").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(`a[href*="/discussion/"], a[href*="/writeups/"]`).First()
		href, _ := link.Attr("href")
		if href == "" {
			return
		}

		rawTitle := strings.TrimSpace(link.Text())
		author := strings.TrimSpace(s.Find(`a[target="_blank"]`).First().Text())
		title := classify.CleanTitle(rawTitle, author)

		item := ListItem{
			Title:        title,
			URL:          href,
			Author:       author,
			AuthorTier:   classify.InferTier(s.Text()),
			TierColor:    tierColor(s),
			VoteCount:    parseCount(s, `[data-testid="vote-count"], .km-votecount`),
			CommentCount: parseCount(s, `[data-testid="comment-count"], .km-commentcount`),
			IsPinned:     s.Find(`[data-icon="pin"], svg[aria-label*="pin" i]`).Length() > 0,
			Category:     classify.CategoryFromURL(href),
		}
		items = append(items, item)
	})

	return items, nil
}

// tierColor reads the stroke color of the second <circle> in an
// author-badge SVG within the item — the first circle is the outer ring.
func tierColor(s *goquery.Selection) string {
	circles := s.Find("svg circle")
	if circles.Length() < 2 {
		return ""
	}
	second := circles.Eq(1)
	style, _ := second.Attr("style")
	if c := extractStroke(style); c != "" {
		return c
	}
	stroke, _ := second.Attr("stroke")
	return stroke
}

var strokeRe = regexp.MustCompile(`stroke:\s*([^;]+)`)

func extractStroke(style string) string {
	m := strokeRe.FindStringSubmatch(style)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func parseCount(s *goquery.Selection, selector string) int {
	text := strings.TrimSpace(s.Find(selector).First().Text())
	if text == "" {
		return 0
	}
	m := voteCountRe.FindString(text)
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// LinkBucket names for DetailResult.Links.
const (
	BucketNotebooks = "notebooks"
	BucketGithub    = "github"
	BucketOther     = "other"
)

const maxLinksPerBucket = 5

// DetailResult is the output of the detail parser.
type DetailResult struct {
	Body  string
	Links map[string][]string
}

// ParseDetail extracts the article body text via readability and a
// deduplicated, bucketed link inventory (notebooks/github/other), each
// bucket capped at 5 URLs.
func ParseDetail(html string) (DetailResult, error) {
	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return DetailResult{}, fmt.Errorf("parser: parse detail html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return DetailResult{}, fmt.Errorf("parser: parse detail links: %w", err)
	}

	links := map[string][]string{
		BucketNotebooks: {},
		BucketGithub:    {},
		BucketOther:     {},
	}
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || seen[href] {
			return
		}
		bucket := bucketFor(href)
		if len(links[bucket]) >= maxLinksPerBucket {
			return
		}
		seen[href] = true
		links[bucket] = append(links[bucket], href)
	})

	return DetailResult{Body: article.TextContent, Links: links}, nil
}

func bucketFor(url string) string {
	switch {
	case strings.Contains(url, "/code/") || strings.Contains(url, "/notebooks/"):
		return BucketNotebooks
	case strings.Contains(url, "github.com"):
		return BucketGithub
	default:
		return BucketOther
	}
}

// ParseNotebookList walks a notebook (code) listing page's HTML, mirroring
// ParseList but matching `/code/` links instead of discussion/writeup ones;
// notebooks have no pin concept and no category.
func ParseNotebookList(html string) ([]ListItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parser: parse notebook list html: %w", err)
	}

	var items []ListItem
	doc.Find("li.MuiListItem-root").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(`a[href*="/code/"]`).First()
		href, _ := link.Attr("href")
		if href == "" {
			return
		}

		rawTitle := strings.TrimSpace(link.Text())
		author := strings.TrimSpace(s.Find(`a[target="_blank"]`).First().Text())

		items = append(items, ListItem{
			Title:     classify.CleanTitle(rawTitle, author),
			URL:       href,
			Author:    author,
			VoteCount: parseCount(s, `[data-testid="vote-count"], .km-votecount`),
		})
	})

	return items, nil
}

// ParseTab returns the full rendered text of an overview/data tab from
// the tab's HTML (script and style contents dropped), untruncated — the
// caller (LLM Gateway) owns truncation.
func ParseTab(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Find("body").Text())
}

// RankingItem is one row from the competition listing/discovery flow.
type RankingItem struct {
	ID          string
	Title       string
	Description string
}

// ParseRankings extracts competition IDs (and optionally titles) from a
// listing page's HTML, by scanning `/competitions/{id}` links.
func ParseRankings(html string) ([]RankingItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parser: parse rankings html: %w", err)
	}

	var items []RankingItem
	compLinkRe := regexp.MustCompile(`^/competitions/([a-zA-Z0-9_-]+)/?$`)

	doc.Find(`a[href^="/competitions/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := compLinkRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		items = append(items, RankingItem{
			ID:    m[1],
			Title: strings.TrimSpace(s.Text()),
		})
	})

	return dedupeAndSortRankings(items), nil
}

func dedupeAndSortRankings(items []RankingItem) []RankingItem {
	byID := make(map[string]RankingItem)
	for _, it := range items {
		if existing, ok := byID[it.ID]; !ok || existing.Title == "" {
			byID[it.ID] = it
		}
	}

	out := make([]RankingItem, 0, len(byID))
	for _, it := range byID {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
