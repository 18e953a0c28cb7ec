package classify

import "testing"

func TestClassify_RankPatterns(t *testing.T) {
	tests := []struct {
		title    string
		wantRank int
		wantMed  Medal
	}{
		{"1st Place Solution", 1, MedalGold},
		{"2nd place · solo (Aqsa)", 2, MedalSilver},
		{"3rd Place Writeup", 3, MedalBronze},
		{"4th place approach", 4, MedalNone},
		{"#1 solution writeup", 1, MedalGold},
		{"Rank 2 team solution", 2, MedalSilver},
		{"EDA results", 0, MedalNone},
	}

	for _, tt := range tests {
		r := Classify(tt.title, CategoryDiscussion, false)
		if r.Rank != tt.wantRank {
			t.Errorf("Classify(%q).Rank = %d, want %d", tt.title, r.Rank, tt.wantRank)
		}
		if r.Medal != tt.wantMed {
			t.Errorf("Classify(%q).Medal = %q, want %q", tt.title, r.Medal, tt.wantMed)
		}
	}
}

func TestClassify_SolutionKeyword(t *testing.T) {
	r := Classify("Our solution to this challenge", CategoryDiscussion, false)
	if !r.IsSolution {
		t.Error("expected keyword-based solution detection")
	}
	if r.Rank != 0 {
		t.Errorf("expected no rank, got %d", r.Rank)
	}
}

func TestClassify_NoSolutionSignal(t *testing.T) {
	r := Classify("Looking for teammates", CategoryDiscussion, false)
	if r.IsSolution {
		t.Error("expected non-solution")
	}
}

func TestClassify_WriteupPromotion(t *testing.T) {
	r := Classify("Just sharing some thoughts", CategoryWriteup, false)
	if !r.IsSolution {
		t.Error("expected unconditional writeup promotion")
	}
	if r.Type != TypeDiscussion {
		t.Errorf("expected writeup-promoted solution to persist as type=discussion, got %q", r.Type)
	}
}

func TestClassify_NotebookType(t *testing.T) {
	r := Classify("1st place notebook", CategoryDiscussion, true)
	if r.Type != TypeNotebook {
		t.Errorf("expected type=notebook, got %q", r.Type)
	}
	if !r.IsSolution || r.Rank != 1 {
		t.Errorf("expected solution with rank 1, got %+v", r)
	}
}

func TestCleanTitle(t *testing.T) {
	got := CleanTitle("2nd place · solo (Aqsa)", "Aqsa")
	want := "2nd place · solo"
	if got != want {
		t.Errorf("CleanTitle() = %q, want %q", got, want)
	}
}

func TestCleanTitle_LastComment(t *testing.T) {
	got := CleanTitle("Great discussion topic · Last comment by someone 3h ago", "")
	want := "Great discussion topic"
	if got != want {
		t.Errorf("CleanTitle() = %q, want %q", got, want)
	}
}

func TestInferTier_LongestFirst(t *testing.T) {
	if got := InferTier("badge: Grandmaster"); got != "Grandmaster" {
		t.Errorf("InferTier(Grandmaster) = %q, want Grandmaster", got)
	}
	if got := InferTier("badge: Master"); got != "Master" {
		t.Errorf("InferTier(Master) = %q, want Master", got)
	}
}

func TestCategoryFromURL(t *testing.T) {
	if got := CategoryFromURL("/competitions/titanic/writeups/123"); got != CategoryWriteup {
		t.Errorf("expected writeup category, got %q", got)
	}
	if got := CategoryFromURL("/competitions/titanic/discussion/123"); got != CategoryDiscussion {
		t.Errorf("expected discussion category, got %q", got)
	}
}
