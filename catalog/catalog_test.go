package catalog

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	t.Run("creates tables and seeds tags", func(t *testing.T) {
		s := newTestStore(t)
		for _, table := range []string{"competitions", "discussions", "solutions", "notebooks", "tags"} {
			if _, err := s.db.Exec("SELECT COUNT(*) FROM " + table); err != nil {
				t.Errorf("table %q missing: %v", table, err)
			}
		}
		tags, err := s.ListTags("")
		if err != nil {
			t.Fatalf("ListTags: %v", err)
		}
		if len(tags) == 0 {
			t.Error("expected seeded tag taxonomy, got none")
		}
	})

	t.Run("seeding is idempotent on reopen", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "reopen.db")
		s1, err := New(dbPath)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		before, _ := s1.ListTags("")
		s1.Close()

		s2, err := New(dbPath)
		if err != nil {
			t.Fatalf("New (reopen): %v", err)
		}
		defer s2.Close()
		after, err := s2.ListTags("")
		if err != nil {
			t.Fatalf("ListTags: %v", err)
		}
		if len(after) != len(before) {
			t.Errorf("tag count changed across reopen: %d -> %d", len(before), len(after))
		}
	})
}

func TestUpsertCompetitionIdempotent(t *testing.T) {
	s := newTestStore(t)

	c := &Competition{
		ID:     "titanic",
		Title:  "Titanic - Machine Learning from Disaster",
		URL:    "https://www.kaggle.com/competitions/titanic",
		Status: "active",
		Tags:   []string{"tabular", "classification"},
	}

	res, err := s.UpsertCompetition(c)
	if err != nil {
		t.Fatalf("UpsertCompetition (insert): %v", err)
	}
	if !res.Created {
		t.Error("expected Created=true on first insert")
	}

	c.Title = "Titanic - Updated"
	c.DiscussionCount = 5
	res, err = s.UpsertCompetition(c)
	if err != nil {
		t.Fatalf("UpsertCompetition (update): %v", err)
	}
	if res.Created {
		t.Error("expected Created=false on second upsert of same ID")
	}

	got, err := s.GetCompetition("titanic")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}
	if got.Title != "Titanic - Updated" {
		t.Errorf("Title = %q, want %q", got.Title, "Titanic - Updated")
	}
	if got.DiscussionCount != 5 {
		t.Errorf("DiscussionCount = %d, want 5", got.DiscussionCount)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "tabular" {
		t.Errorf("Tags round-trip failed: %v", got.Tags)
	}
}

func TestUpsertCompetitionPreservesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	c := &Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}
	if _, err := s.UpsertCompetition(c); err != nil {
		t.Fatalf("UpsertCompetition: %v", err)
	}
	first, err := s.GetCompetition("titanic")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}

	c.Title = "Titanic v2"
	c.CreatedAt = time.Now().Add(48 * time.Hour) // attempted overwrite, should be ignored
	if _, err := s.UpsertCompetition(c); err != nil {
		t.Fatalf("UpsertCompetition (update): %v", err)
	}
	second, err := s.GetCompetition("titanic")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed across update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestGetCompetitionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCompetition("nonexistent")
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDaysUntilDeadline(t *testing.T) {
	s := newTestStore(t)
	end := time.Now().Add(72 * time.Hour)
	c := &Competition{ID: "c1", Title: "C1", URL: "https://x", Status: "active", EndDate: &end}
	if _, err := s.UpsertCompetition(c); err != nil {
		t.Fatalf("UpsertCompetition: %v", err)
	}
	got, err := s.GetCompetition("c1")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}
	if got.DaysUntilDeadline == nil {
		t.Fatal("expected DaysUntilDeadline to be set")
	}
	if *got.DaysUntilDeadline < 2 || *got.DaysUntilDeadline > 3 {
		t.Errorf("DaysUntilDeadline = %d, want ~3", *got.DaysUntilDeadline)
	}
}

func TestDaysUntilDeadline_NilForCompleted(t *testing.T) {
	s := newTestStore(t)
	end := time.Now().Add(-72 * time.Hour)
	c := &Competition{ID: "c2", Title: "C2", URL: "https://y", Status: "completed", EndDate: &end}
	if _, err := s.UpsertCompetition(c); err != nil {
		t.Fatalf("UpsertCompetition: %v", err)
	}
	got, err := s.GetCompetition("c2")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}
	if got.DaysUntilDeadline != nil {
		t.Errorf("expected DaysUntilDeadline nil for completed competition, got %d", *got.DaysUntilDeadline)
	}
}

func TestDaysUntilDeadline_NilForActiveButExpired(t *testing.T) {
	s := newTestStore(t)
	end := time.Now().Add(-48 * time.Hour)
	c := &Competition{ID: "c3", Title: "C3", URL: "https://z", Status: "active", EndDate: &end}
	if _, err := s.UpsertCompetition(c); err != nil {
		t.Fatalf("UpsertCompetition: %v", err)
	}
	got, err := s.GetCompetition("c3")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}
	if got.DaysUntilDeadline != nil {
		t.Errorf("expected DaysUntilDeadline nil for active-but-expired competition, got %d", *got.DaysUntilDeadline)
	}
}

func TestListCompetitionsFilterOrSemantics(t *testing.T) {
	s := newTestStore(t)
	comps := []*Competition{
		{ID: "a", Title: "A", URL: "https://a", Status: "active", DataTypes: []string{"tabular"}},
		{ID: "b", Title: "B", URL: "https://b", Status: "active", DataTypes: []string{"image"}},
		{ID: "c", Title: "C", URL: "https://c", Status: "active", DataTypes: []string{"tabular", "text"}},
		{ID: "d", Title: "D", URL: "https://d", Status: "completed", DataTypes: []string{"tabular"}},
	}
	for _, c := range comps {
		if _, err := s.UpsertCompetition(c); err != nil {
			t.Fatalf("UpsertCompetition: %v", err)
		}
	}

	got, err := s.ListCompetitions(CompetitionFilter{
		Status:    "active",
		DataTypes: []string{"tabular", "image"},
	})
	if err != nil {
		t.Fatalf("ListCompetitions: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d competitions, want 3 (a, b, c)", len(got))
	}
	for _, c := range got {
		if c.ID == "d" {
			t.Error("completed competition leaked into active filter")
		}
	}
}

func TestListCompetitionsSortWhitelist(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertCompetition(&Competition{ID: "a", Title: "Zebra", URL: "https://a", Status: "active"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertCompetition(&Competition{ID: "b", Title: "Apple", URL: "https://b", Status: "active"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListCompetitions(CompetitionFilter{SortBy: "title"})
	if err != nil {
		t.Fatalf("ListCompetitions: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Apple" {
		t.Errorf("expected alphabetical order by title, got %+v", got)
	}

	// An unrecognized sort key falls back to the default rather than
	// being interpolated into the query.
	got, err = s.ListCompetitions(CompetitionFilter{SortBy: "id; DROP TABLE competitions;--"})
	if err != nil {
		t.Fatalf("ListCompetitions with malicious sort_by: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected fallback to default sort, got %d rows", len(got))
	}
}

func TestSetFavoriteCascadesDiscussions(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertCompetition(&Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}); err != nil {
		t.Fatal(err)
	}

	d := &Discussion{CompetitionID: "titanic", Title: "Welcome", URL: "https://x/d1", Category: "discussion"}
	if _, err := s.UpsertDiscussion(d); err != nil {
		t.Fatalf("UpsertDiscussion: %v", err)
	}

	if _, err := s.SetFavorite("titanic", true); err != nil {
		t.Fatalf("SetFavorite(true): %v", err)
	}
	got, err := s.GetCompetition("titanic")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}
	if !got.IsFavorite {
		t.Error("expected IsFavorite=true")
	}

	deleted, err := s.SetFavorite("titanic", false)
	if err != nil {
		t.Fatalf("SetFavorite(false): %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	remaining, err := s.ListDiscussions("titanic", "vote_count", true, 0)
	if err != nil {
		t.Fatalf("ListDiscussions: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected discussions cleared after unfavorite, got %d", len(remaining))
	}
}

func TestSetFavoriteNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SetFavorite("nonexistent", true)
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertDiscussionByURL(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertCompetition(&Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}); err != nil {
		t.Fatal(err)
	}

	d := &Discussion{CompetitionID: "titanic", Title: "Welcome", URL: "https://x/d1", VoteCount: 3, Category: "discussion"}
	res, err := s.UpsertDiscussion(d)
	if err != nil {
		t.Fatalf("UpsertDiscussion: %v", err)
	}
	if !res.Created {
		t.Error("expected Created=true on first insert")
	}
	firstID := d.ID

	d2 := &Discussion{CompetitionID: "titanic", Title: "Welcome (edited)", URL: "https://x/d1", VoteCount: 10, Category: "discussion"}
	res, err = s.UpsertDiscussion(d2)
	if err != nil {
		t.Fatalf("UpsertDiscussion (update): %v", err)
	}
	if res.Created {
		t.Error("expected Created=false on same-URL upsert")
	}
	if d2.ID != firstID {
		t.Errorf("ID changed across upsert: %d -> %d", firstID, d2.ID)
	}

	list, err := s.ListDiscussions("titanic", "vote_count", true, 0)
	if err != nil {
		t.Fatalf("ListDiscussions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 discussion after upsert-by-url, got %d", len(list))
	}
	if list[0].VoteCount != 10 {
		t.Errorf("VoteCount = %d, want 10", list[0].VoteCount)
	}
}

func TestListDiscussionsPinnedFirst(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertCompetition(&Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.UpsertDiscussion(&Discussion{CompetitionID: "titanic", Title: "High votes", URL: "https://x/d1", VoteCount: 100, Category: "discussion"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertDiscussion(&Discussion{CompetitionID: "titanic", Title: "Pinned but low votes", URL: "https://x/d2", VoteCount: 1, Category: "discussion", IsPinned: true}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListDiscussions("titanic", "vote_count", true, 0)
	if err != nil {
		t.Fatalf("ListDiscussions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d discussions, want 2", len(got))
	}
	if !got[0].IsPinned {
		t.Errorf("expected pinned discussion first, got %+v", got[0])
	}
}

func TestListSolutionsNullRankSortsLast(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertCompetition(&Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}); err != nil {
		t.Fatal(err)
	}

	r1, r3 := 1, 3
	solutions := []*Solution{
		{CompetitionID: "titanic", Title: "1st place", URL: "https://x/s1", Type: "discussion", Rank: &r1},
		{CompetitionID: "titanic", Title: "Unranked", URL: "https://x/s2", Type: "discussion"},
		{CompetitionID: "titanic", Title: "3rd place", URL: "https://x/s3", Type: "discussion", Rank: &r3},
	}
	for _, sol := range solutions {
		if _, err := s.UpsertSolution(sol); err != nil {
			t.Fatalf("UpsertSolution: %v", err)
		}
	}

	got, err := s.ListSolutions("titanic", "rank", false, 0)
	if err != nil {
		t.Fatalf("ListSolutions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d solutions, want 3", len(got))
	}
	if got[len(got)-1].Rank != nil {
		t.Errorf("expected unranked solution last, got order %+v", got)
	}
	if got[0].Rank == nil || *got[0].Rank != 1 {
		t.Errorf("expected rank 1 first, got %+v", got[0])
	}

	// Descending order: NULL must still sort last.
	gotDesc, err := s.ListSolutions("titanic", "rank", true, 0)
	if err != nil {
		t.Fatalf("ListSolutions (desc): %v", err)
	}
	if gotDesc[len(gotDesc)-1].Rank != nil {
		t.Errorf("expected unranked solution last even descending, got %+v", gotDesc)
	}
}

func TestUpsertNotebookByURL(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertCompetition(&Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}); err != nil {
		t.Fatal(err)
	}

	n := &Notebook{CompetitionID: "titanic", Title: "EDA", URL: "https://x/n1", VoteCount: 5}
	if _, err := s.UpsertNotebook(n); err != nil {
		t.Fatalf("UpsertNotebook: %v", err)
	}
	n2 := &Notebook{CompetitionID: "titanic", Title: "EDA v2", URL: "https://x/n1", VoteCount: 8}
	res, err := s.UpsertNotebook(n2)
	if err != nil {
		t.Fatalf("UpsertNotebook (update): %v", err)
	}
	if res.Created {
		t.Error("expected Created=false for same-URL notebook")
	}

	list, err := s.ListNotebooks("titanic", 0)
	if err != nil {
		t.Fatalf("ListNotebooks: %v", err)
	}
	if len(list) != 1 || list[0].VoteCount != 8 {
		t.Errorf("got %+v, want single notebook with VoteCount=8", list)
	}
}

func TestUpdateSummaryHelpers(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.UpsertCompetition(&Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}); err != nil {
		t.Fatal(err)
	}
	d := &Discussion{CompetitionID: "titanic", Title: "Welcome", URL: "https://x/d1", Category: "discussion"}
	if _, err := s.UpsertDiscussion(d); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateDiscussionSummary(d.ID, "a summary"); err != nil {
		t.Fatalf("UpdateDiscussionSummary: %v", err)
	}
	got, err := s.GetDiscussion(d.ID)
	if err != nil {
		t.Fatalf("GetDiscussion: %v", err)
	}
	if got.Summary != "a summary" {
		t.Errorf("Summary = %q, want %q", got.Summary, "a summary")
	}
}

func TestListTagsByCategory(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ListTags("data_type")
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected seeded data_type tags")
	}
	for _, tag := range got {
		if tag.Category != "data_type" {
			t.Errorf("got tag category %q, want data_type", tag.Category)
		}
	}
}

func TestCountNewCompetitions(t *testing.T) {
	s := newTestStore(t)
	recent := &Competition{ID: "new", Title: "New", URL: "https://x", Status: "active", CreatedAt: time.Now()}
	old := &Competition{ID: "old", Title: "Old", URL: "https://y", Status: "active", CreatedAt: time.Now().Add(-30 * 24 * time.Hour)}
	if _, err := s.UpsertCompetition(recent); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertCompetition(old); err != nil {
		t.Fatal(err)
	}

	count, err := s.CountNewCompetitions(7)
	if err != nil {
		t.Fatalf("CountNewCompetitions: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestCloseAndReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "reopen.db")

	s1, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s1.UpsertCompetition(&Competition{ID: "titanic", Title: "Titanic", URL: "https://x", Status: "active"}); err != nil {
		t.Fatalf("UpsertCompetition: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("New (reopen): %v", err)
	}
	defer s2.Close()

	got, err := s2.GetCompetition("titanic")
	if err != nil {
		t.Fatalf("GetCompetition: %v", err)
	}
	if got.Title != "Titanic" {
		t.Errorf("Title = %q, want %q", got.Title, "Titanic")
	}
}
