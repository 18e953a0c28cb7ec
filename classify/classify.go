// Package classify turns raw list-item titles and URLs into typed
// classification results. It is a pure function package: no I/O, no
// dependency on the Browser Fetcher, Cache, or Catalog Store.
package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Medal is one of the three ranked-solution medals, or empty for none.
type Medal string

const (
	MedalGold   Medal = "gold"
	MedalSilver Medal = "silver"
	MedalBronze Medal = "bronze"
	MedalNone   Medal = ""
)

// Category is the list-tab a title/url pair was scraped from.
type Category string

const (
	CategoryDiscussion Category = "discussion"
	CategoryWriteup    Category = "writeup"
)

// PersistType is the value stored in a solution's type column.
type PersistType string

const (
	TypeDiscussion PersistType = "discussion"
	TypeNotebook   PersistType = "notebook"
)

var rankPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(?:st|nd|rd|th)\s*place`),
	regexp.MustCompile(`(?i)#\s*(\d+)\s*solution`),
	regexp.MustCompile(`(?i)rank\s*(\d+)`),
}

var solutionKeywords = []string{
	"solution", "approach", "write-up", "writeup", "our solution", "my solution",
}

// trailingLastComment strips a trailing "· Last comment ..." fragment.
var trailingLastComment = regexp.MustCompile(`(?i)\s*[·•]\s*Last comment.*$`)

// trailingAuthorParen strips a trailing "(Author Name)" parenthetical.
var trailingAuthorParen = regexp.MustCompile(`\s*\([^()]*\)\s*$`)

// CleanTitle removes the trailing "· Last comment…" fragment and a
// trailing "(Author Name)" parenthetical matching the given author,
// matching the list parser's title-cleaning contract.
func CleanTitle(title, author string) string {
	cleaned := trailingLastComment.ReplaceAllString(title, "")
	if author != "" && strings.HasSuffix(strings.TrimSpace(cleaned), "("+author+")") {
		cleaned = trailingAuthorParen.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// Result is the outcome of classifying one list item.
type Result struct {
	IsSolution bool
	Rank       int // 0 if no rank pattern matched
	Medal      Medal
	Type       PersistType
}

// Classify decides whether a title/category pair should be promoted to a
// Solution row, and if so, with what rank, medal, and persistence type.
//
// Writeup promotion: any item from the writeup category is unconditionally
// a solution regardless of title; rank is still inferred from the title
// when present. Items from the notebook list are always persisted with
// type=notebook; everything else (including writeup-promoted items) is
// persisted with type=discussion.
func Classify(title string, category Category, fromNotebookList bool) Result {
	rank := extractRank(title)

	isSolution := category == CategoryWriteup || hasSolutionKeyword(title) || rank > 0

	persistType := TypeDiscussion
	if fromNotebookList {
		persistType = TypeNotebook
	}

	return Result{
		IsSolution: isSolution,
		Rank:       rank,
		Medal:      medalForRank(rank),
		Type:       persistType,
	}
}

func extractRank(title string) int {
	for _, pat := range rankPatterns {
		m := pat.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

func hasSolutionKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range solutionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func medalForRank(rank int) Medal {
	switch rank {
	case 1:
		return MedalGold
	case 2:
		return MedalSilver
	case 3:
		return MedalBronze
	default:
		return MedalNone
	}
}

// AuthorTier is the ordered set of platform ranks, longest-keyword-first
// so "Grandmaster" is matched before "Master" during DOM text scans.
var AuthorTier = []string{"Grandmaster", "Contributor", "Expert", "Master", "Novice"}

// InferTier scans arbitrary DOM text (badge alt text, aria-labels, inline
// text) for the five tier keywords, case-insensitively, longest keyword
// first so "Master" cannot shadow "Grandmaster".
func InferTier(domText string) string {
	lower := strings.ToLower(domText)
	for _, tier := range AuthorTier {
		if strings.Contains(lower, strings.ToLower(tier)) {
			return tier
		}
	}
	return ""
}

// CategoryFromURL derives the list category from a URL path: any
// "/writeups/" segment means writeup, everything else is a discussion.
func CategoryFromURL(url string) Category {
	if strings.Contains(url, "/writeups/") {
		return CategoryWriteup
	}
	return CategoryDiscussion
}
