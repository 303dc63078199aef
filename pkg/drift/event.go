package drift

import (
	"fmt"
	"time"
)

// EventKind identifies one bridge notification type.
type EventKind string

const (
	// EventKindTaskDone is emitted when a task reaches done.
	EventKindTaskDone EventKind = "task.done"
	// EventKindTaskFailed is emitted when a task reaches failed.
	EventKindTaskFailed EventKind = "task.failed"
	// EventKindTaskCanceled is emitted when a pending task is canceled.
	EventKindTaskCanceled EventKind = "task.canceled"
	// EventKindArticlesChanged is emitted after background article upserts.
	EventKindArticlesChanged EventKind = "articles.changed"
	// EventKindArticleUpdated is emitted after a background write to one article.
	EventKindArticleUpdated EventKind = "article.updated"
	// EventKindBookmarkChanged is emitted after a background bookmark mutation.
	EventKindBookmarkChanged EventKind = "bookmark.changed"
	// EventKindFeedsChanged is emitted after the feed set changes.
	EventKindFeedsChanged EventKind = "feeds.changed"
)

// TaskEventKind maps a terminal task status to its bridge event kind.
func TaskEventKind(status TaskStatus) (EventKind, error) {
	switch status {
	case TaskStatusDone:
		return EventKindTaskDone, nil
	case TaskStatusFailed:
		return EventKindTaskFailed, nil
	case TaskStatusCanceled:
		return EventKindTaskCanceled, nil
	default:
		return "", fmt.Errorf("task event kind: status %s is not terminal", status)
	}
}

// Event is one notification crossing the worker-to-UI bridge.
//
// Exactly one payload pointer is set, matching the kind: Task for task.*
// events, Change for *.changed events.
type Event struct {
	// ID uniquely identifies this notification.
	ID string
	// Kind selects the payload.
	Kind EventKind
	// OccurredAt records when the producer emitted the event.
	OccurredAt time.Time
	// Task carries the terminal outcome for task.* events.
	Task *TaskNotice
	// Change carries mutation metadata for *.changed events.
	Change *ChangeNotice
}

// TaskNotice is the payload of a terminal task event.
type TaskNotice struct {
	// Key identifies the deduplicated work unit.
	Key TaskKey
	// Outcome is the immutable terminal result.
	Outcome TaskOutcome
}

// ChangeNotice is the payload of a mutation event.
type ChangeNotice struct {
	// ArticleID identifies the mutated article for single-article notices.
	ArticleID string
	// FeedID identifies the refreshed feed for feed-scoped notices.
	FeedID string
	// Created counts newly stored articles for refresh notices.
	Created int
	// Updated counts re-fetched articles whose content changed.
	Updated int
}

// Validate checks kind/payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("validate event: nil event")
	}
	if e.Kind == "" {
		return fmt.Errorf("validate event: missing kind")
	}

	switch e.Kind {
	case EventKindTaskDone, EventKindTaskFailed, EventKindTaskCanceled:
		if e.Task == nil {
			return fmt.Errorf("validate event %s: missing task payload", e.Kind)
		}
		if err := e.Task.Key.Validate(); err != nil {
			return fmt.Errorf("validate event %s: %w", e.Kind, err)
		}
	case EventKindArticlesChanged, EventKindArticleUpdated, EventKindBookmarkChanged, EventKindFeedsChanged:
		if e.Change == nil {
			return fmt.Errorf("validate event %s: missing change payload", e.Kind)
		}
	default:
		return fmt.Errorf("validate event: unsupported kind %s", e.Kind)
	}

	return nil
}
