// Package catalog is the Catalog Store (C6): relational, single-writer
// persistence for competitions, discussions, solutions, notebooks, and
// the tag taxonomy, with upsert-by-URL semantics and JSON-encoded list
// fields.
package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get-style lookups when the row is absent.
var ErrNotFound = errors.New("catalog: not found")

// maxFilteredRows bounds the in-memory OR-semantics filtering path.
const maxFilteredRows = 10000

// Competition is the persisted row shape for a competition. Field tags
// double as its HTTP-edge wire shape (§6): the row and the DTO are the
// same snake_case-keyed struct, since every field here is already
// exactly what §6 names — a separate DTO would just restate the list.
type Competition struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	URL                 string     `json:"url"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
	Status              string     `json:"status"`
	Metric              string     `json:"metric"`
	MetricDescription   string     `json:"metric_description"`
	Description         string     `json:"description"`
	Summary             string     `json:"summary"`
	Tags                []string   `json:"tags"`
	DataTypes           []string   `json:"data_types"`
	TaskTypes           []string   `json:"task_types"`
	CompetitionFeatures []string   `json:"competition_features"`
	Domain              string     `json:"domain"`
	DatasetInfo         string     `json:"dataset_info"`
	DiscussionCount     int        `json:"discussion_count"`
	SolutionStatus      string     `json:"solution_status"`
	IsFavorite          bool       `json:"is_favorite"`
	DaysUntilDeadline   *int       `json:"days_until_deadline"`
	CreatedAt           time.Time  `json:"created_at"`
	LastScrapedAt       *time.Time `json:"last_scraped_at"`
}

// Discussion is the persisted row shape for a discussion/writeup.
type Discussion struct {
	ID            int64  `json:"id"`
	CompetitionID string `json:"competition_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Author        string `json:"author"`
	AuthorTier    string `json:"author_tier"`
	TierColor     string `json:"tier_color"`
	VoteCount     int    `json:"vote_count"`
	CommentCount  int    `json:"comment_count"`
	Category      string `json:"category"`
	IsPinned      bool   `json:"is_pinned"`
	Summary       string `json:"summary"`
}

// Solution is the persisted row shape for a ranked solution.
type Solution struct {
	ID            int64  `json:"id"`
	CompetitionID string `json:"competition_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Author        string `json:"author"`
	AuthorTier    string `json:"author_tier"`
	TierColor     string `json:"tier_color"`
	VoteCount     int    `json:"vote_count"`
	CommentCount  int    `json:"comment_count"`
	Type          string `json:"type"`
	Medal         string `json:"medal"`
	Rank          *int   `json:"rank"`
	Techniques    string `json:"techniques"`
	Summary       string `json:"summary"`
}

// Notebook is the persisted row shape for an authored code artifact.
type Notebook struct {
	ID            int64  `json:"id"`
	CompetitionID string `json:"competition_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Author        string `json:"author"`
	VoteCount     int    `json:"vote_count"`
	Summary       string `json:"summary"`
}

// Tag is one entry in the static tag taxonomy.
type Tag struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	DisplayOrder int    `json:"display_order"`
}

// UpsertResult reports whether the affected row was created or updated,
// matching the counter semantics callers rely on.
type UpsertResult struct {
	Created bool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS competitions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	start_date INTEGER,
	end_date INTEGER,
	status TEXT NOT NULL DEFAULT 'upcoming',
	metric TEXT,
	metric_description TEXT,
	description TEXT,
	summary TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	data_types TEXT NOT NULL DEFAULT '[]',
	task_types TEXT NOT NULL DEFAULT '[]',
	competition_features TEXT NOT NULL DEFAULT '[]',
	domain TEXT,
	dataset_info TEXT,
	discussion_count INTEGER NOT NULL DEFAULT 0,
	solution_status TEXT NOT NULL DEFAULT 'not_started',
	is_favorite INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	last_scraped_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_competitions_status ON competitions(status);
CREATE INDEX IF NOT EXISTS idx_competitions_end_date ON competitions(end_date);
CREATE INDEX IF NOT EXISTS idx_competitions_created_at ON competitions(created_at);
CREATE INDEX IF NOT EXISTS idx_competitions_favorite ON competitions(is_favorite);

CREATE TABLE IF NOT EXISTS discussions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	competition_id TEXT NOT NULL REFERENCES competitions(id),
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	author TEXT,
	author_tier TEXT,
	tier_color TEXT,
	vote_count INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	category TEXT NOT NULL CHECK (category IN ('discussion', 'writeup')),
	is_pinned INTEGER NOT NULL DEFAULT 0,
	summary TEXT,
	UNIQUE(competition_id, url)
);
CREATE INDEX IF NOT EXISTS idx_discussions_competition ON discussions(competition_id);
CREATE INDEX IF NOT EXISTS idx_discussions_votes ON discussions(vote_count DESC);

CREATE TABLE IF NOT EXISTS solutions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	competition_id TEXT NOT NULL REFERENCES competitions(id),
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	author TEXT,
	author_tier TEXT,
	tier_color TEXT,
	vote_count INTEGER NOT NULL DEFAULT 0,
	comment_count INTEGER NOT NULL DEFAULT 0,
	type TEXT NOT NULL CHECK (type IN ('notebook', 'discussion')),
	medal TEXT CHECK (medal IN ('gold', 'silver', 'bronze') OR medal IS NULL),
	rank INTEGER,
	techniques TEXT,
	summary TEXT,
	UNIQUE(competition_id, url)
);
CREATE INDEX IF NOT EXISTS idx_solutions_competition ON solutions(competition_id);
CREATE INDEX IF NOT EXISTS idx_solutions_rank ON solutions(rank ASC);

CREATE TABLE IF NOT EXISTS notebooks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	competition_id TEXT NOT NULL REFERENCES competitions(id),
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	author TEXT,
	vote_count INTEGER NOT NULL DEFAULT 0,
	summary TEXT,
	UNIQUE(competition_id, url)
);
CREATE INDEX IF NOT EXISTS idx_notebooks_competition ON notebooks(competition_id);

CREATE TABLE IF NOT EXISTS tags (
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	display_order INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (name, category)
);
`

// defaultTaxonomy seeds the tags table at bootstrap; it is small and
// versioned here rather than externalized, matching the teacher's
// migration-on-open pattern (storage.New creates tables unconditionally).
var defaultTaxonomy = []Tag{
	{Name: "tabular", Category: "data_type", DisplayOrder: 1},
	{Name: "image", Category: "data_type", DisplayOrder: 2},
	{Name: "text", Category: "data_type", DisplayOrder: 3},
	{Name: "time_series", Category: "data_type", DisplayOrder: 4},
	{Name: "audio", Category: "data_type", DisplayOrder: 5},
	{Name: "classification", Category: "task_type", DisplayOrder: 1},
	{Name: "regression", Category: "task_type", DisplayOrder: 2},
	{Name: "segmentation", Category: "task_type", DisplayOrder: 3},
	{Name: "object_detection", Category: "task_type", DisplayOrder: 4},
	{Name: "forecasting", Category: "task_type", DisplayOrder: 5},
	{Name: "gradient_boosting", Category: "model_type", DisplayOrder: 1},
	{Name: "neural_network", Category: "model_type", DisplayOrder: 2},
	{Name: "ensemble", Category: "model_type", DisplayOrder: 3},
	{Name: "feature_engineering", Category: "solution_method", DisplayOrder: 1},
	{Name: "cross_validation", Category: "solution_method", DisplayOrder: 2},
	{Name: "data_augmentation", Category: "solution_method", DisplayOrder: 3},
	{Name: "gpu_required", Category: "competition_feature", DisplayOrder: 1},
	{Name: "code_competition", Category: "competition_feature", DisplayOrder: 2},
	{Name: "team_merger", Category: "competition_feature", DisplayOrder: 3},
	{Name: "healthcare", Category: "domain", DisplayOrder: 1},
	{Name: "finance", Category: "domain", DisplayOrder: 2},
	{Name: "nlp", Category: "domain", DisplayOrder: 3},
	{Name: "computer_vision", Category: "domain", DisplayOrder: 4},
}

// Store provides SQLite-backed persistence for the catalog.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath, creates tables if needed, and
// seeds the tag taxonomy idempotently.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create tables: %w", err)
	}

	s := &Store{db: db}
	if err := s.seedTaxonomy(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) seedTaxonomy() error {
	for _, tag := range defaultTaxonomy {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO tags (name, category, display_order) VALUES (?, ?, ?)`,
			tag.Name, tag.Category, tag.DisplayOrder,
		)
		if err != nil {
			return fmt.Errorf("catalog: seed tag %q: %w", tag.Name, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalList(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func unmarshalList(raw string) []string {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return []string{}
	}
	return values
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func unixToTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

// UpsertCompetition inserts or updates a competition keyed by ID. The
// created_at column is left out of the ON CONFLICT update, so the value
// written by the first insert is kept.
func (s *Store) UpsertCompetition(c *Competition) (UpsertResult, error) {
	var existed bool
	if err := s.db.QueryRow(`SELECT 1 FROM competitions WHERE id = ?`, c.ID).Scan(new(int)); err == nil {
		existed = true
	} else if err != sql.ErrNoRows {
		return UpsertResult{}, fmt.Errorf("catalog: check competition existence: %w", err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO competitions (
			id, title, url, start_date, end_date, status, metric, metric_description,
			description, summary, tags, data_types, task_types, competition_features,
			domain, dataset_info, discussion_count, solution_status, is_favorite,
			created_at, last_scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			metric = excluded.metric,
			metric_description = excluded.metric_description,
			description = excluded.description,
			summary = excluded.summary,
			tags = excluded.tags,
			data_types = excluded.data_types,
			task_types = excluded.task_types,
			competition_features = excluded.competition_features,
			domain = excluded.domain,
			dataset_info = excluded.dataset_info,
			discussion_count = excluded.discussion_count,
			solution_status = excluded.solution_status,
			is_favorite = excluded.is_favorite,
			last_scraped_at = excluded.last_scraped_at
	`,
		c.ID, c.Title, c.URL, timeToUnix(c.StartDate), timeToUnix(c.EndDate), c.Status,
		c.Metric, c.MetricDescription, c.Description, c.Summary,
		marshalList(c.Tags), marshalList(c.DataTypes), marshalList(c.TaskTypes), marshalList(c.CompetitionFeatures),
		c.Domain, c.DatasetInfo, c.DiscussionCount, c.SolutionStatus, boolToInt(c.IsFavorite),
		createdAt.Unix(), timeToUnix(c.LastScrapedAt),
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("catalog: upsert competition %q: %w", c.ID, err)
	}
	return UpsertResult{Created: !existed}, nil
}

var competitionColumns = `
	id, title, url, start_date, end_date, status, metric, metric_description,
	description, summary, tags, data_types, task_types, competition_features,
	domain, dataset_info, discussion_count, solution_status, is_favorite,
	created_at, last_scraped_at
`

func scanCompetition(row interface{ Scan(...any) error }) (*Competition, error) {
	var c Competition
	var startDate, endDate, lastScraped sql.NullInt64
	var favorite int
	var tags, dataTypes, taskTypes, features string
	var createdAt int64

	err := row.Scan(
		&c.ID, &c.Title, &c.URL, &startDate, &endDate, &c.Status, &c.Metric, &c.MetricDescription,
		&c.Description, &c.Summary, &tags, &dataTypes, &taskTypes, &features,
		&c.Domain, &c.DatasetInfo, &c.DiscussionCount, &c.SolutionStatus, &favorite,
		&createdAt, &lastScraped,
	)
	if err != nil {
		return nil, err
	}
	c.StartDate = unixToTime(startDate)
	c.EndDate = unixToTime(endDate)
	c.LastScrapedAt = unixToTime(lastScraped)
	c.IsFavorite = favorite != 0
	c.Tags = unmarshalList(tags)
	c.DataTypes = unmarshalList(dataTypes)
	c.TaskTypes = unmarshalList(taskTypes)
	c.CompetitionFeatures = unmarshalList(features)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.DaysUntilDeadline = daysUntilDeadline(c.Status, c.EndDate)
	return &c, nil
}

// daysUntilDeadline computes the calendar-day distance to end. It is
// defined only for active competitions with a non-past end date; every
// other case (completed, no end date, active-but-expired) returns nil.
func daysUntilDeadline(status string, end *time.Time) *int {
	if status != "active" || end == nil {
		return nil
	}
	now := time.Now().UTC()
	days := int(end.Truncate(24*time.Hour).Sub(now.Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		return nil
	}
	return &days
}

// GetCompetition looks up a single competition by ID.
func (s *Store) GetCompetition(id string) (*Competition, error) {
	row := s.db.QueryRow(`SELECT `+competitionColumns+` FROM competitions WHERE id = ?`, id)
	c, err := scanCompetition(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get competition %q: %w", id, err)
	}
	return c, nil
}

// competitionSortColumns whitelists the sort_by values accepted by
// ListCompetitions; this replaces the original system's raw f-string
// interpolation of the sort column into the SQL statement.
var competitionSortColumns = map[string]string{
	"created_at": "created_at",
	"end_date":   "end_date",
	"start_date": "start_date",
	"title":      "title",
	"deadline":   "end_date",
}

// CompetitionFilter narrows ListCompetitions. Zero-value fields are
// treated as "no filter". DataTypes/TaskTypes/Tags are matched with OR
// semantics: a competition matches if it has at least one of the listed
// values in the corresponding column.
type CompetitionFilter struct {
	Status     string
	Domain     string
	Search     string
	IsFavorite *bool
	DataTypes  []string
	TaskTypes  []string
	Tags       []string
	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

// competitionWhereClause builds the WHERE clause shared by ListCompetitions
// and CountCompetitions from the scalar filter fields; OR-semantics
// list fields (DataTypes/TaskTypes/Tags) are applied in memory by both
// callers, since SQL containment over the JSON list columns isn't portable.
func competitionWhereClause(filter CompetitionFilter) (string, []any) {
	query := ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.IsFavorite != nil {
		query += ` AND is_favorite = ?`
		args = append(args, boolToInt(*filter.IsFavorite))
	}
	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.Search != "" {
		query += ` AND title LIKE ?`
		args = append(args, "%"+filter.Search+"%")
	}
	return query, args
}

// ListCompetitions returns competitions matching filter, sorted per
// filter.SortBy (whitelisted) and filter.Descending.
func (s *Store) ListCompetitions(filter CompetitionFilter) ([]Competition, error) {
	where, args := competitionWhereClause(filter)
	query := `SELECT ` + competitionColumns + ` FROM competitions` + where

	needsInMemoryFilter := len(filter.DataTypes) > 0 || len(filter.TaskTypes) > 0 || len(filter.Tags) > 0

	sortCol, ok := competitionSortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "ASC"
	if filter.Descending {
		order = "DESC"
	}
	query += fmt.Sprintf(` ORDER BY %s %s`, sortCol, order)

	limit := filter.Limit
	if needsInMemoryFilter || limit <= 0 {
		limit = maxFilteredRows
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if !needsInMemoryFilter && filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list competitions: %w", err)
	}
	defer rows.Close()

	var out []Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan competition: %w", err)
		}
		if needsInMemoryFilter && !matchesOrFilters(*c, filter) {
			continue
		}
		out = append(out, *c)
		if !needsInMemoryFilter && filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	if needsInMemoryFilter && filter.Limit > 0 {
		out = pageSlice(out, filter.Offset, filter.Limit)
	}
	return out, rows.Err()
}

// pageSlice applies offset/limit to an in-memory slice after OR-semantics
// filtering, since SQL OFFSET cannot be pushed down alongside it.
func pageSlice(rows []Competition, offset, limit int) []Competition {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func matchesOrFilters(c Competition, filter CompetitionFilter) bool {
	if len(filter.DataTypes) > 0 && !anyMatch(c.DataTypes, filter.DataTypes) {
		return false
	}
	if len(filter.TaskTypes) > 0 && !anyMatch(c.TaskTypes, filter.TaskTypes) {
		return false
	}
	if len(filter.Tags) > 0 && !anyMatch(c.Tags, filter.Tags) {
		return false
	}
	return true
}

func anyMatch(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, v := range have {
		set[v] = true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

// SetFavorite toggles a competition's favorite flag. Unfavoriting cascades
// to delete all of that competition's discussions (solutions and
// notebooks are untouched, matching the original's scoped cascade).
func (s *Store) SetFavorite(id string, favorite bool) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("catalog: begin favorite transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE competitions SET is_favorite = ? WHERE id = ?`, boolToInt(favorite), id)
	if err != nil {
		return 0, fmt.Errorf("catalog: set favorite: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, ErrNotFound
	}

	var deleted int64
	if !favorite {
		res, err := tx.Exec(`DELETE FROM discussions WHERE competition_id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("catalog: cascade delete discussions: %w", err)
		}
		deleted, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("catalog: commit favorite transaction: %w", err)
	}
	return deleted, nil
}

// UpsertDiscussion inserts or updates a discussion keyed by (competition_id, url).
func (s *Store) UpsertDiscussion(d *Discussion) (UpsertResult, error) {
	var existingID int64
	err := s.db.QueryRow(
		`SELECT id FROM discussions WHERE competition_id = ? AND url = ?`,
		d.CompetitionID, d.URL,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.Exec(`
			INSERT INTO discussions (
				competition_id, title, url, author, author_tier, tier_color,
				vote_count, comment_count, category, is_pinned, summary
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.CompetitionID, d.Title, d.URL, d.Author, d.AuthorTier, d.TierColor,
			d.VoteCount, d.CommentCount, d.Category, boolToInt(d.IsPinned), d.Summary,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("catalog: insert discussion: %w", err)
		}
		d.ID, _ = res.LastInsertId()
		return UpsertResult{Created: true}, nil
	case err != nil:
		return UpsertResult{}, fmt.Errorf("catalog: lookup discussion: %w", err)
	default:
		d.ID = existingID
		_, err := s.db.Exec(`
			UPDATE discussions SET
				title = ?, author = ?, author_tier = ?, tier_color = ?,
				vote_count = ?, comment_count = ?, category = ?, is_pinned = ?, summary = ?
			WHERE id = ?`,
			d.Title, d.Author, d.AuthorTier, d.TierColor,
			d.VoteCount, d.CommentCount, d.Category, boolToInt(d.IsPinned), d.Summary,
			existingID,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("catalog: update discussion: %w", err)
		}
		return UpsertResult{Created: false}, nil
	}
}

var discussionSortColumns = map[string]string{
	"vote_count":    "vote_count",
	"comment_count": "comment_count",
	"id":            "id",
}

// ListDiscussions returns a competition's discussions, pinned first, then
// sorted by sortBy (whitelisted, defaults to vote_count) and order.
func (s *Store) ListDiscussions(competitionID, sortBy string, descending bool, limit int) ([]Discussion, error) {
	col, ok := discussionSortColumns[sortBy]
	if !ok {
		col = "vote_count"
	}
	order := "ASC"
	if descending {
		order = "DESC"
	}
	if limit <= 0 {
		limit = maxFilteredRows
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT id, competition_id, title, url, author, author_tier, tier_color,
		       vote_count, comment_count, category, is_pinned, summary
		FROM discussions WHERE competition_id = ?
		ORDER BY is_pinned DESC, %s %s
		LIMIT ?`, col, order),
		competitionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: list discussions: %w", err)
	}
	defer rows.Close()

	var out []Discussion
	for rows.Next() {
		var d Discussion
		var pinned int
		if err := rows.Scan(&d.ID, &d.CompetitionID, &d.Title, &d.URL, &d.Author, &d.AuthorTier,
			&d.TierColor, &d.VoteCount, &d.CommentCount, &d.Category, &pinned, &d.Summary); err != nil {
			return nil, fmt.Errorf("catalog: scan discussion: %w", err)
		}
		d.IsPinned = pinned != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDiscussion looks up a single discussion by ID.
func (s *Store) GetDiscussion(id int64) (*Discussion, error) {
	var d Discussion
	var pinned int
	err := s.db.QueryRow(`
		SELECT id, competition_id, title, url, author, author_tier, tier_color,
		       vote_count, comment_count, category, is_pinned, summary
		FROM discussions WHERE id = ?`, id,
	).Scan(&d.ID, &d.CompetitionID, &d.Title, &d.URL, &d.Author, &d.AuthorTier,
		&d.TierColor, &d.VoteCount, &d.CommentCount, &d.Category, &pinned, &d.Summary)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get discussion %d: %w", id, err)
	}
	d.IsPinned = pinned != 0
	return &d, nil
}

// UpdateDiscussionSummary sets a discussion's LLM-generated summary.
func (s *Store) UpdateDiscussionSummary(id int64, summary string) error {
	_, err := s.db.Exec(`UPDATE discussions SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("catalog: update discussion summary: %w", err)
	}
	return nil
}

// UpsertSolution inserts or updates a solution keyed by (competition_id, url).
func (s *Store) UpsertSolution(sol *Solution) (UpsertResult, error) {
	var existingID int64
	err := s.db.QueryRow(
		`SELECT id FROM solutions WHERE competition_id = ? AND url = ?`,
		sol.CompetitionID, sol.URL,
	).Scan(&existingID)

	var medal, techniques any
	if sol.Medal != "" {
		medal = sol.Medal
	}
	if sol.Techniques != "" {
		techniques = sol.Techniques
	}
	var rank any
	if sol.Rank != nil {
		rank = *sol.Rank
	}

	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.Exec(`
			INSERT INTO solutions (
				competition_id, title, url, author, author_tier, tier_color,
				vote_count, comment_count, type, medal, rank, techniques, summary
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sol.CompetitionID, sol.Title, sol.URL, sol.Author, sol.AuthorTier, sol.TierColor,
			sol.VoteCount, sol.CommentCount, sol.Type, medal, rank, techniques, sol.Summary,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("catalog: insert solution: %w", err)
		}
		sol.ID, _ = res.LastInsertId()
		return UpsertResult{Created: true}, nil
	case err != nil:
		return UpsertResult{}, fmt.Errorf("catalog: lookup solution: %w", err)
	default:
		sol.ID = existingID
		_, err := s.db.Exec(`
			UPDATE solutions SET
				title = ?, author = ?, author_tier = ?, tier_color = ?,
				vote_count = ?, comment_count = ?, type = ?, medal = ?, rank = ?,
				techniques = ?, summary = ?
			WHERE id = ?`,
			sol.Title, sol.Author, sol.AuthorTier, sol.TierColor,
			sol.VoteCount, sol.CommentCount, sol.Type, medal, rank, techniques, sol.Summary,
			existingID,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("catalog: update solution: %w", err)
		}
		return UpsertResult{Created: false}, nil
	}
}

var solutionSortColumns = map[string]string{
	"rank":          "rank",
	"vote_count":    "vote_count",
	"comment_count": "comment_count",
}

// ListSolutions returns a competition's solutions sorted by sortBy
// (whitelisted, defaults to rank). NULL ranks always sort last regardless
// of direction.
func (s *Store) ListSolutions(competitionID, sortBy string, descending bool, limit int) ([]Solution, error) {
	col, ok := solutionSortColumns[sortBy]
	if !ok {
		col = "rank"
	}
	order := "ASC"
	if descending {
		order = "DESC"
	}
	if limit <= 0 {
		limit = maxFilteredRows
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT id, competition_id, title, url, author, author_tier, tier_color,
		       vote_count, comment_count, type, medal, rank, techniques, summary
		FROM solutions WHERE competition_id = ?
		ORDER BY (%s IS NULL), %s %s
		LIMIT ?`, col, col, order),
		competitionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: list solutions: %w", err)
	}
	defer rows.Close()

	var out []Solution
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan solution: %w", err)
		}
		out = append(out, *sol)
	}
	return out, rows.Err()
}

// GetSolution looks up a single solution by ID.
func (s *Store) GetSolution(id int64) (*Solution, error) {
	row := s.db.QueryRow(`
		SELECT id, competition_id, title, url, author, author_tier, tier_color,
		       vote_count, comment_count, type, medal, rank, techniques, summary
		FROM solutions WHERE id = ?`, id)
	sol, err := scanSolution(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get solution %d: %w", id, err)
	}
	return sol, nil
}

func scanSolution(row interface{ Scan(...any) error }) (*Solution, error) {
	var sol Solution
	var medal, techniques sql.NullString
	var rank sql.NullInt64
	err := row.Scan(&sol.ID, &sol.CompetitionID, &sol.Title, &sol.URL, &sol.Author, &sol.AuthorTier,
		&sol.TierColor, &sol.VoteCount, &sol.CommentCount, &sol.Type, &medal, &rank, &techniques, &sol.Summary)
	if err != nil {
		return nil, err
	}
	sol.Medal = medal.String
	sol.Techniques = techniques.String
	if rank.Valid {
		r := int(rank.Int64)
		sol.Rank = &r
	}
	return &sol, nil
}

// UpdateSolutionTechniques sets a solution's LLM-extracted techniques and summary.
func (s *Store) UpdateSolutionTechniques(id int64, techniques, summary string) error {
	_, err := s.db.Exec(`UPDATE solutions SET techniques = ?, summary = ? WHERE id = ?`, techniques, summary, id)
	if err != nil {
		return fmt.Errorf("catalog: update solution techniques: %w", err)
	}
	return nil
}

// UpsertNotebook inserts or updates a notebook keyed by (competition_id, url).
func (s *Store) UpsertNotebook(n *Notebook) (UpsertResult, error) {
	var existingID int64
	err := s.db.QueryRow(
		`SELECT id FROM notebooks WHERE competition_id = ? AND url = ?`,
		n.CompetitionID, n.URL,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.Exec(`
			INSERT INTO notebooks (competition_id, title, url, author, vote_count, summary)
			VALUES (?, ?, ?, ?, ?, ?)`,
			n.CompetitionID, n.Title, n.URL, n.Author, n.VoteCount, n.Summary,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("catalog: insert notebook: %w", err)
		}
		n.ID, _ = res.LastInsertId()
		return UpsertResult{Created: true}, nil
	case err != nil:
		return UpsertResult{}, fmt.Errorf("catalog: lookup notebook: %w", err)
	default:
		n.ID = existingID
		_, err := s.db.Exec(`
			UPDATE notebooks SET title = ?, author = ?, vote_count = ?, summary = ? WHERE id = ?`,
			n.Title, n.Author, n.VoteCount, n.Summary, existingID,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("catalog: update notebook: %w", err)
		}
		return UpsertResult{Created: false}, nil
	}
}

// ListNotebooks returns a competition's notebooks ordered by vote_count descending.
func (s *Store) ListNotebooks(competitionID string, limit int) ([]Notebook, error) {
	if limit <= 0 {
		limit = maxFilteredRows
	}
	rows, err := s.db.Query(`
		SELECT id, competition_id, title, url, author, vote_count, summary
		FROM notebooks WHERE competition_id = ?
		ORDER BY vote_count DESC
		LIMIT ?`, competitionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: list notebooks: %w", err)
	}
	defer rows.Close()

	var out []Notebook
	for rows.Next() {
		var n Notebook
		if err := rows.Scan(&n.ID, &n.CompetitionID, &n.Title, &n.URL, &n.Author, &n.VoteCount, &n.Summary); err != nil {
			return nil, fmt.Errorf("catalog: scan notebook: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNotebook looks up a single notebook by ID.
func (s *Store) GetNotebook(id int64) (*Notebook, error) {
	var n Notebook
	err := s.db.QueryRow(`
		SELECT id, competition_id, title, url, author, vote_count, summary
		FROM notebooks WHERE id = ?`, id,
	).Scan(&n.ID, &n.CompetitionID, &n.Title, &n.URL, &n.Author, &n.VoteCount, &n.Summary)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get notebook %d: %w", id, err)
	}
	return &n, nil
}

// UpdateNotebookSummary sets a notebook's LLM-generated summary.
func (s *Store) UpdateNotebookSummary(id int64, summary string) error {
	_, err := s.db.Exec(`UPDATE notebooks SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("catalog: update notebook summary: %w", err)
	}
	return nil
}

// ListTags returns the tag taxonomy, optionally filtered by category, sorted by display_order.
func (s *Store) ListTags(category string) ([]Tag, error) {
	query := `SELECT name, category, display_order FROM tags`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY category, display_order`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list tags: %w", err)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Name, &t.Category, &t.DisplayOrder); err != nil {
			return nil, fmt.Errorf("catalog: scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountNewCompetitions returns how many competitions were created within
// the last `days` days.
func (s *Store) CountNewCompetitions(days int) (int, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour).Unix()
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM competitions WHERE created_at >= ?`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catalog: count new competitions: %w", err)
	}
	return count, nil
}

// CountCompetitionsByStatus returns how many competitions currently have
// the given status, for the API's summary counters.
func (s *Store) CountCompetitionsByStatus(status string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM competitions WHERE status = ?`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("catalog: count competitions by status: %w", err)
	}
	return count, nil
}

// CountCompetitions counts rows matching filter's scalar fields and, when
// present, its OR-semantics list fields too (DataTypes/TaskTypes/Tags) —
// the unpaged match-set size behind ListCompetitions' Limit/Offset, for
// the API's total/total_pages fields. Ignores filter.Limit and filter.Offset.
func (s *Store) CountCompetitions(filter CompetitionFilter) (int, error) {
	where, args := competitionWhereClause(filter)
	needsInMemoryFilter := len(filter.DataTypes) > 0 || len(filter.TaskTypes) > 0 || len(filter.Tags) > 0

	if !needsInMemoryFilter {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM competitions`+where, args...).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("catalog: count competitions: %w", err)
		}
		return count, nil
	}

	query := `SELECT ` + competitionColumns + ` FROM competitions` + where + ` LIMIT ?`
	args = append(args, maxFilteredRows)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return 0, fmt.Errorf("catalog: count competitions: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return 0, fmt.Errorf("catalog: scan competition: %w", err)
		}
		if matchesOrFilters(*c, filter) {
			count++
		}
	}
	return count, rows.Err()
}
