package drift

import (
	"testing"
	"time"
)

func TestDeriveArticleIDStable(t *testing.T) {
	t.Parallel()

	first := DeriveArticleID("Hacker News", "https://example.com/post/1")
	second := DeriveArticleID("Hacker News", "https://example.com/post/1")
	if first != second {
		t.Fatalf("id not stable: %s vs %s", first, second)
	}
	if len(first) != idLength {
		t.Fatalf("id length = %d, want %d", len(first), idLength)
	}

	otherFeed := DeriveArticleID("Lobsters", "https://example.com/post/1")
	if otherFeed == first {
		t.Fatal("same entry under different feeds must derive distinct ids")
	}
	otherEntry := DeriveArticleID("Hacker News", "https://example.com/post/2")
	if otherEntry == first {
		t.Fatal("different entries must derive distinct ids")
	}
}

func TestArticleInputEntryRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input ArticleInput
		want  string
	}{
		{
			name:  "guid preferred",
			input: ArticleInput{GUID: "tag:example.com,2026:1", Link: "https://example.com/1"},
			want:  "tag:example.com,2026:1",
		},
		{
			name:  "link fallback",
			input: ArticleInput{GUID: "  ", Link: "https://example.com/1"},
			want:  "https://example.com/1",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := testCase.input.EntryRef(); got != testCase.want {
				t.Fatalf("EntryRef = %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestArticleInputValidate(t *testing.T) {
	t.Parallel()

	valid := ArticleInput{
		FeedID:      DeriveFeedID("https://example.com/rss"),
		FeedName:    "Example",
		GUID:        "1",
		Title:       "hello",
		Link:        "https://example.com/1",
		PublishedAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ArticleInput)
	}{
		{name: "missing feed id", mutate: func(in *ArticleInput) { in.FeedID = "" }},
		{name: "missing feed name", mutate: func(in *ArticleInput) { in.FeedName = " " }},
		{name: "missing guid and link", mutate: func(in *ArticleInput) { in.GUID = ""; in.Link = "" }},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			input := valid
			testCase.mutate(&input)
			if err := input.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTaskEventKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  TaskStatus
		want    EventKind
		wantErr bool
	}{
		{status: TaskStatusDone, want: EventKindTaskDone},
		{status: TaskStatusFailed, want: EventKindTaskFailed},
		{status: TaskStatusCanceled, want: EventKindTaskCanceled},
		{status: TaskStatusRunning, wantErr: true},
		{status: TaskStatusPending, wantErr: true},
	}

	for _, testCase := range tests {
		got, err := TaskEventKind(testCase.status)
		if testCase.wantErr {
			if err == nil {
				t.Fatalf("status %s: expected error", testCase.status)
			}
			continue
		}
		if err != nil {
			t.Fatalf("status %s: %v", testCase.status, err)
		}
		if got != testCase.want {
			t.Fatalf("status %s: kind = %s, want %s", testCase.status, got, testCase.want)
		}
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   *Event
		wantErr bool
	}{
		{
			name: "task event with payload",
			event: &Event{
				ID:   "evt-1",
				Kind: EventKindTaskDone,
				Task: &TaskNotice{
					Key:     TaskKey{Kind: TaskKindInsight, ID: "a1"},
					Outcome: TaskOutcome{Status: TaskStatusDone},
				},
			},
		},
		{
			name:    "task event missing payload",
			event:   &Event{ID: "evt-2", Kind: EventKindTaskFailed},
			wantErr: true,
		},
		{
			name: "change event with payload",
			event: &Event{
				ID:     "evt-3",
				Kind:   EventKindArticlesChanged,
				Change: &ChangeNotice{Created: 2},
			},
		},
		{
			name:    "change event missing payload",
			event:   &Event{ID: "evt-4", Kind: EventKindBookmarkChanged},
			wantErr: true,
		},
		{
			name:    "unsupported kind",
			event:   &Event{ID: "evt-5", Kind: "mystery"},
			wantErr: true,
		},
		{
			name:    "nil event",
			event:   nil,
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.event.Validate()
			if testCase.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
