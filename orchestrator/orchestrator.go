// Package orchestrator is the Enrichment Orchestrator (C7): the top-level
// per-entity workflow composing the Cache, Browser Fetcher, Page Parsers,
// Classifier, LLM Gateway, and Catalog Store into idempotent,
// safe-to-re-run operations.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"kaggledb-core/browser"
	"kaggledb-core/cache"
	"kaggledb-core/catalog"
	"kaggledb-core/classify"
	"kaggledb-core/llm"
	"kaggledb-core/parser"
)

// ErrNotFound is returned when the upstream page for an entity is absent
// (HTTP 404 at the source), not when the catalog row itself is missing.
var ErrNotFound = errors.New("orchestrator: source page not found")

// minDetailBodyChars is the threshold above which detail bodies are worth
// summarizing; short bodies are cached but not sent to the LLM Gateway.
const minDetailBodyChars = 200

// defaultDataTaxonomy is the fallback taxonomy (empty) passed to
// GenerateTags when New cannot read the Catalog Store's tag table; New
// normally loads the taxonomy from that table.
var defaultDataTaxonomy []string

// Browser is the subset of the Browser Fetcher the orchestrator depends
// on; satisfied structurally by *browser.Fetcher.
type Browser interface {
	FetchPage(ctx context.Context, url string) (browser.PageResult, error)
	FetchListPage(ctx context.Context, url string) (string, error)
}

// LLM is the subset of the LLM Gateway the orchestrator depends on;
// satisfied structurally by *llm.Gateway. Every method already degrades
// to a typed empty value on exhausted retries, so callers here never
// branch on an LLM error — only on whether the result is non-empty.
type LLM interface {
	ExtractMetric(ctx context.Context, desc, title string) string
	DescribeMetric(ctx context.Context, metric, desc, title string) string
	GenerateSummary(ctx context.Context, desc, title, metric string) llm.SummaryResult
	GenerateTags(ctx context.Context, desc, title, metric string, taxonomy []string) llm.TagsResult
	ExtractDatasetInfo(ctx context.Context, dataText, title string) llm.DatasetInfo
	SummarizeDiscussionStructured(ctx context.Context, content, title string) llm.DiscussionSummary
	TranslateAndOrganize(ctx context.Context, content string) string
	SummarizeSolutionStructured(ctx context.Context, content, title string) llm.SolutionSummary
	ExtractTechniques(ctx context.Context, content, title string) []llm.Technique
	SummarizeNotebook(ctx context.Context, content, title string) llm.NotebookSummary
}

// UpsertCounters reports how many rows were created/updated during a
// batch ingestion operation, the shape every list-ingestion op returns.
type UpsertCounters struct {
	Saved   int
	Updated int
	Total   int
}

func (c *UpsertCounters) record(res catalog.UpsertResult) {
	if res.Created {
		c.Saved++
	} else {
		c.Updated++
	}
	c.Total++
}

// Orchestrator composes the Cache, Browser, LLM Gateway, and Catalog
// Store into the per-entity ingestion/enrichment workflow. It holds no
// per-run state; every op is safe to call repeatedly.
type Orchestrator struct {
	browser     Browser
	cache       cache.Cache
	llm         LLM
	catalog     *catalog.Store
	baseURL     string
	pages       int
	taxonomy    []string
	scrapeDelay time.Duration

	fetchMu   sync.Mutex
	lastFetch time.Time
}

// New creates an Orchestrator. baseURL is the platform's root (e.g.
// "https://www.kaggle.com"); pages is the default page depth for
// IngestDiscussions (spec default 3); scrapeDelay is the minimum spacing
// enforced between successive browser requests (the polite-scrape
// floor, §4.2/§5); zero disables throttling, e.g. for tests.
func New(b Browser, c cache.Cache, g LLM, store *catalog.Store, baseURL string, pages int, scrapeDelay time.Duration) *Orchestrator {
	taxonomy := defaultDataTaxonomy
	if tags, err := store.ListTags(""); err == nil {
		taxonomy = make([]string, len(tags))
		for i, t := range tags {
			taxonomy[i] = t.Name
		}
	}
	return &Orchestrator{
		browser:     b,
		cache:       c,
		llm:         g,
		catalog:     store,
		baseURL:     strings.TrimRight(baseURL, "/"),
		pages:       pages,
		taxonomy:    taxonomy,
		scrapeDelay: scrapeDelay,
	}
}

func (o *Orchestrator) competitionURL(id string) string {
	return fmt.Sprintf("%s/competitions/%s", o.baseURL, id)
}

// throttle blocks until scrapeDelay has elapsed since the last browser
// request, enforcing the polite-scrape floor across every call site
// below rather than per-loop, so it holds whether the caller is a single
// detail fetch or a sweep walking many competitions back to back.
func (o *Orchestrator) throttle(ctx context.Context) {
	if o.scrapeDelay <= 0 {
		return
	}
	o.fetchMu.Lock()
	wait := o.scrapeDelay - time.Since(o.lastFetch)
	o.fetchMu.Unlock()
	if wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}
	o.fetchMu.Lock()
	o.lastFetch = time.Now()
	o.fetchMu.Unlock()
}

func (o *Orchestrator) fetchPage(ctx context.Context, url string) (browser.PageResult, error) {
	o.throttle(ctx)
	return o.browser.FetchPage(ctx, url)
}

func (o *Orchestrator) fetchListPage(ctx context.Context, url string) (string, error) {
	o.throttle(ctx)
	return o.browser.FetchListPage(ctx, url)
}

// IngestCompetitionMetadata fetches and upserts one competition's core
// metadata. It is a no-op if the metadata is already cached.
func (o *Orchestrator) IngestCompetitionMetadata(ctx context.Context, compID string) (*catalog.Competition, error) {
	metaKey := cache.MetaKey(compID)
	if _, ok := o.cache.Get(ctx, metaKey); ok {
		return o.catalog.GetCompetition(compID)
	}

	url := o.competitionURL(compID)
	res, err := o.fetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: ingest-competition-metadata %s: %w", compID, err)
	}
	if res.Status == 404 {
		slog.Info("orchestrator: competition not found upstream", "competition_id", compID)
		return nil, ErrNotFound
	}

	title, description, start, end, metric := parseMetadataText(res.Text)
	status := computeStatus(start, end)

	// Start from the stored row so fields this op does not scrape
	// (summary, tags, is_favorite, ...) survive the upsert.
	comp := &catalog.Competition{ID: compID}
	if existing, gerr := o.catalog.GetCompetition(compID); gerr == nil && existing != nil {
		comp = existing
	}
	comp.Title, comp.URL, comp.Description = title, url, description
	comp.StartDate, comp.EndDate, comp.Metric, comp.Status = start, end, metric, status
	if _, err := o.catalog.UpsertCompetition(comp); err != nil {
		return nil, fmt.Errorf("orchestrator: ingest-competition-metadata %s: %w", compID, err)
	}

	o.cache.Set(ctx, metaKey, "1", cache.ScrapedPageTTL(1))
	return comp, nil
}

var metadataLineRe = regexp.MustCompile(`:\s*(.+)$`)

// parseMetadataText applies the line-scanning heuristics: the first
// non-empty line is the title; lines mentioning "started"/"ended"/
// "closes" carry dates; lines mentioning "evaluation" carry the metric
// candidate; everything else accumulates into the description.
func parseMetadataText(text string) (title, description string, start, end *time.Time, metric string) {
	var descLines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if title == "" {
			title = line
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "started"):
			start = parseDateFromLine(line)
		case strings.Contains(lower, "ended"), strings.Contains(lower, "closes"):
			end = parseDateFromLine(line)
		case strings.Contains(lower, "evaluation"):
			metric = extractFieldFromLine(line)
		default:
			descLines = append(descLines, line)
		}
	}
	description = strings.Join(descLines, "\n")
	return title, description, start, end, metric
}

var dateLayouts = []string{"Jan 2, 2006", "January 2, 2006", "2006-01-02", "Jan 2 2006"}

func parseDateFromLine(line string) *time.Time {
	raw := extractFieldFromLine(line)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func extractFieldFromLine(line string) string {
	m := metadataLineRe.FindStringSubmatch(line)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// computeStatus is authoritative and overrides any LLM guess: a passed
// end date always means completed; a future start date (with no end yet
// reached) means upcoming; anything else is active.
func computeStatus(start, end *time.Time) string {
	now := time.Now().UTC()
	if end != nil && now.After(*end) {
		return "completed"
	}
	if start != nil && now.Before(*start) {
		return "upcoming"
	}
	return "active"
}

// EnrichCompetition runs the LLM enrichment pipeline. It is a no-op if
// the competition has no description yet (ingest-competition-metadata
// must run first). Each field is filled only if currently empty, so
// re-running never overwrites previously-good data — matching the
// orchestrator-wide "LLM fail leaves the field unchanged" rule.
func (o *Orchestrator) EnrichCompetition(ctx context.Context, compID string) error {
	comp, err := o.catalog.GetCompetition(compID)
	if err != nil {
		return fmt.Errorf("orchestrator: enrich-competition %s: %w", compID, err)
	}
	if comp.Description == "" {
		return nil
	}

	changed := false

	if comp.Summary == "" {
		summary := o.llm.GenerateSummary(ctx, comp.Description, comp.Title, comp.Metric)
		if summary.Overview != "" {
			if b, err := json.Marshal(summary); err == nil {
				comp.Summary = string(b)
				changed = true
			}
		}
	}

	if comp.Metric == "" {
		if metric := o.llm.ExtractMetric(ctx, comp.Description, comp.Title); metric != "" {
			comp.Metric = metric
			changed = true
		}
	}

	if comp.MetricDescription == "" && comp.Metric != "" {
		if desc := o.llm.DescribeMetric(ctx, comp.Metric, comp.Description, comp.Title); desc != "" {
			comp.MetricDescription = desc
			changed = true
		}
	}

	if len(comp.Tags) == 0 {
		tags := o.llm.GenerateTags(ctx, comp.Description, comp.Title, comp.Metric, o.taxonomy)
		if len(tags.Tags) > 0 || len(tags.DataTypes) > 0 || tags.Domain != "" {
			comp.Tags = tags.Tags
			comp.DataTypes = tags.DataTypes
			comp.Domain = tags.Domain
			changed = true
		}
	}

	if comp.DatasetInfo == "" {
		dataURL := fmt.Sprintf("%s/competitions/%s/data", o.baseURL, compID)
		if html, err := o.fetchListPage(ctx, dataURL); err == nil {
			dataText := parser.ParseTab(html)
			info := o.llm.ExtractDatasetInfo(ctx, dataText, comp.Title)
			if info.Description != "" {
				if b, err := json.Marshal(info); err == nil {
					comp.DatasetInfo = string(b)
					changed = true
				}
			}
		} else {
			slog.Warn("orchestrator: data tab fetch failed, skipping dataset info", "competition_id", compID, "error", err)
		}
	}

	if !changed {
		return nil
	}
	if _, err := o.catalog.UpsertCompetition(comp); err != nil {
		return fmt.Errorf("orchestrator: enrich-competition %s: %w", compID, err)
	}
	return nil
}

// IngestDiscussions fetches `pages` pages of both the discussion and
// writeup tabs, dedupes by URL, drops pinned items, and upserts a
// Discussion row for every item and a Solution row for every item the
// Classifier qualifies.
func (o *Orchestrator) IngestDiscussions(ctx context.Context, compID string, pages int) (discussions, solutions UpsertCounters, err error) {
	if pages <= 0 {
		pages = o.pages
	}

	seen := make(map[string]bool)
	var items []parser.ListItem

	for _, tab := range []string{"discussion", "writeups"} {
		for page := 1; page <= pages; page++ {
			url := fmt.Sprintf("%s/competitions/%s/%s?sort=votes&page=%d", o.baseURL, compID, tab, page)
			html, ferr := o.fetchListPage(ctx, url)
			if ferr != nil {
				slog.Warn("orchestrator: list page fetch failed, skipping", "competition_id", compID, "tab", tab, "page", page, "error", ferr)
				continue
			}
			pageItems, perr := parser.ParseList(html)
			if perr != nil {
				slog.Warn("orchestrator: list page parse failed, skipping", "competition_id", compID, "tab", tab, "page", page, "error", perr)
				continue
			}
			for _, it := range pageItems {
				if it.IsPinned || seen[it.URL] {
					continue
				}
				seen[it.URL] = true
				items = append(items, it)
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].VoteCount > items[j].VoteCount })

	var firstErr error
	for _, it := range items {
		d := &catalog.Discussion{
			CompetitionID: compID,
			Title:         it.Title,
			URL:           it.URL,
			Author:        it.Author,
			AuthorTier:    it.AuthorTier,
			TierColor:     it.TierColor,
			VoteCount:     it.VoteCount,
			CommentCount:  it.CommentCount,
			Category:      string(it.Category),
		}
		res, derr := o.catalog.UpsertDiscussion(d)
		if derr != nil {
			slog.Error("orchestrator: upsert discussion failed", "competition_id", compID, "url", it.URL, "error", derr)
			if firstErr == nil {
				firstErr = derr
			}
			continue
		}
		discussions.record(res)

		classified := classify.Classify(it.Title, it.Category, false)
		if !classified.IsSolution {
			continue
		}

		sol := &catalog.Solution{
			CompetitionID: compID,
			Title:         it.Title,
			URL:           it.URL,
			Author:        it.Author,
			AuthorTier:    it.AuthorTier,
			TierColor:     it.TierColor,
			VoteCount:     it.VoteCount,
			CommentCount:  it.CommentCount,
			Type:          string(classified.Type),
			Medal:         string(classified.Medal),
		}
		if classified.Rank > 0 {
			rank := classified.Rank
			sol.Rank = &rank
		}
		solRes, serr := o.catalog.UpsertSolution(sol)
		if serr != nil {
			slog.Error("orchestrator: upsert solution failed", "competition_id", compID, "url", it.URL, "error", serr)
			if firstErr == nil {
				firstErr = serr
			}
			continue
		}
		solutions.record(solRes)
	}

	return discussions, solutions, firstErr
}

// FetchDiscussionDetail fetches a discussion's body, caches it (never
// persisted to the catalog), and — if long enough — summarizes and
// translates it.
func (o *Orchestrator) FetchDiscussionDetail(ctx context.Context, id int64) error {
	d, err := o.catalog.GetDiscussion(id)
	if err != nil {
		return fmt.Errorf("orchestrator: fetch-discussion-detail %d: %w", id, err)
	}

	res, err := o.fetchPage(ctx, d.URL)
	if err != nil {
		return fmt.Errorf("orchestrator: fetch-discussion-detail %d: %w", id, err)
	}
	if res.Status == 404 {
		return ErrNotFound
	}

	detail, err := parser.ParseDetail(res.HTML)
	if err != nil {
		return fmt.Errorf("orchestrator: fetch-discussion-detail %d: %w", id, err)
	}
	body := detail.Body

	o.cache.Set(ctx, cache.DiscussionContentKey(int(id)), body, cache.ContentTTL)

	if len(body) <= minDetailBodyChars {
		return nil
	}

	summary := o.llm.SummarizeDiscussionStructured(ctx, body, d.Title)
	if summary.Overview != "" {
		if b, merr := json.Marshal(summary); merr == nil {
			if uerr := o.catalog.UpdateDiscussionSummary(id, string(b)); uerr != nil {
				return fmt.Errorf("orchestrator: fetch-discussion-detail %d: %w", id, uerr)
			}
		}
	}

	if translated := o.llm.TranslateAndOrganize(ctx, body); translated != "" {
		o.cache.Set(ctx, cache.DiscussionTranslatedKey(int(id)), translated, cache.ContentTTL)
	}

	return nil
}

// FetchSolutionDetail mirrors FetchDiscussionDetail, additionally
// extracting and persisting techniques.
func (o *Orchestrator) FetchSolutionDetail(ctx context.Context, id int64) error {
	s, err := o.catalog.GetSolution(id)
	if err != nil {
		return fmt.Errorf("orchestrator: fetch-solution-detail %d: %w", id, err)
	}

	res, err := o.fetchPage(ctx, s.URL)
	if err != nil {
		return fmt.Errorf("orchestrator: fetch-solution-detail %d: %w", id, err)
	}
	if res.Status == 404 {
		return ErrNotFound
	}

	detail, err := parser.ParseDetail(res.HTML)
	if err != nil {
		return fmt.Errorf("orchestrator: fetch-solution-detail %d: %w", id, err)
	}
	body := detail.Body

	o.cache.Set(ctx, cache.SolutionContentKey(int(id)), body, cache.ContentTTL)

	if len(body) <= minDetailBodyChars {
		return nil
	}

	var summaryJSON, techniquesJSON string

	summary := o.llm.SummarizeSolutionStructured(ctx, body, s.Title)
	if summary.Overview != "" {
		if b, merr := json.Marshal(summary); merr == nil {
			summaryJSON = string(b)
		}
	}

	techniques := o.llm.ExtractTechniques(ctx, body, s.Title)
	if len(techniques) > 0 {
		if b, merr := json.Marshal(techniques); merr == nil {
			techniquesJSON = string(b)
		}
	}

	if summaryJSON != "" || techniquesJSON != "" {
		finalSummary, finalTechniques := summaryJSON, techniquesJSON
		if finalSummary == "" {
			finalSummary = s.Summary
		}
		if finalTechniques == "" {
			finalTechniques = s.Techniques
		}
		if uerr := o.catalog.UpdateSolutionTechniques(id, finalTechniques, finalSummary); uerr != nil {
			return fmt.Errorf("orchestrator: fetch-solution-detail %d: %w", id, uerr)
		}
	}

	if translated := o.llm.TranslateAndOrganize(ctx, body); translated != "" {
		o.cache.Set(ctx, cache.SolutionTranslatedKey(int(id)), translated, cache.ContentTTL)
	}

	return nil
}

// FetchNotebooks ingests a competition's notebook listing into the
// catalog. Per-notebook summarization happens on demand via
// SummarizeNotebookDetail, never in bulk here.
func (o *Orchestrator) FetchNotebooks(ctx context.Context, compID string) (UpsertCounters, error) {
	var counters UpsertCounters
	url := fmt.Sprintf("%s/competitions/%s/code?sort=votes", o.baseURL, compID)

	html, err := o.fetchListPage(ctx, url)
	if err != nil {
		return counters, fmt.Errorf("orchestrator: fetch-notebooks %s: %w", compID, err)
	}
	items, err := parser.ParseNotebookList(html)
	if err != nil {
		return counters, fmt.Errorf("orchestrator: fetch-notebooks %s: %w", compID, err)
	}

	var firstErr error
	for _, it := range items {
		n := &catalog.Notebook{
			CompetitionID: compID,
			Title:         it.Title,
			URL:           it.URL,
			Author:        it.Author,
			VoteCount:     it.VoteCount,
		}
		res, nerr := o.catalog.UpsertNotebook(n)
		if nerr != nil {
			slog.Error("orchestrator: upsert notebook failed", "competition_id", compID, "url", it.URL, "error", nerr)
			if firstErr == nil {
				firstErr = nerr
			}
			continue
		}
		counters.record(res)
	}

	return counters, firstErr
}

// SummarizeNotebookDetail fetches a notebook's body on demand, caches it,
// and summarizes it — the per-notebook counterpart to FetchNotebooks'
// bulk listing ingestion.
func (o *Orchestrator) SummarizeNotebookDetail(ctx context.Context, id int64) error {
	n, err := o.catalog.GetNotebook(id)
	if err != nil {
		return fmt.Errorf("orchestrator: summarize-notebook %d: %w", id, err)
	}

	res, err := o.fetchPage(ctx, n.URL)
	if err != nil {
		return fmt.Errorf("orchestrator: summarize-notebook %d: %w", id, err)
	}
	if res.Status == 404 {
		return ErrNotFound
	}

	detail, err := parser.ParseDetail(res.HTML)
	if err != nil {
		return fmt.Errorf("orchestrator: summarize-notebook %d: %w", id, err)
	}
	body := detail.Body

	o.cache.Set(ctx, cache.NotebookContentKey(int(id)), body, cache.ContentTTL)

	summary := o.llm.SummarizeNotebook(ctx, body, n.Title)
	if summary.Purpose == "" {
		return nil
	}
	b, merr := json.Marshal(summary)
	if merr != nil {
		return nil
	}
	if uerr := o.catalog.UpdateNotebookSummary(id, string(b)); uerr != nil {
		return fmt.Errorf("orchestrator: summarize-notebook %d: %w", id, uerr)
	}
	return nil
}
