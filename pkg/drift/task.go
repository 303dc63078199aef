package drift

import (
	"fmt"
	"strings"
	"time"
)

// TaskKind identifies one category of background work.
type TaskKind string

const (
	// TaskKindRefresh identifies a full feed refresh.
	TaskKindRefresh TaskKind = "refresh"
	// TaskKindBody identifies a full-article body fetch.
	TaskKindBody TaskKind = "body"
	// TaskKindInsight identifies per-article insight generation.
	TaskKindInsight TaskKind = "insight"
	// TaskKindTranslate identifies title/description translation.
	TaskKindTranslate TaskKind = "translate"
	// TaskKindTranslateBody identifies full-body translation.
	TaskKindTranslateBody TaskKind = "translate_body"
	// TaskKindDigest identifies cross-bookmark digest generation.
	TaskKindDigest TaskKind = "digest"
	// TaskKindExport identifies note export work (vault, Notion).
	TaskKindExport TaskKind = "export"
)

// TaskKey identifies one deduplicated unit of background work.
//
// Submissions sharing a key while one is pending or running attach to the
// existing execution instead of starting a second one.
type TaskKey struct {
	// Kind is the work category.
	Kind TaskKind
	// ID scopes the work within its kind, typically an article id or "all".
	ID string
}

// Validate checks that both key components are present.
func (k TaskKey) Validate() error {
	if strings.TrimSpace(string(k.Kind)) == "" {
		return fmt.Errorf("validate task key: missing kind")
	}
	if strings.TrimSpace(k.ID) == "" {
		return fmt.Errorf("validate task key: missing id")
	}

	return nil
}

// String renders the key as "kind:id" for logs and notices.
func (k TaskKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// TaskStatus is one coordinator state-machine state.
type TaskStatus string

const (
	// TaskStatusPending means accepted but not yet picked up by a worker.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning means a worker is executing the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone means the task finished successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed means the task finished with a classified failure.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCanceled means the task was canceled before it started running.
	TaskStatusCanceled TaskStatus = "canceled"
)

// Terminal reports whether the status is one of the immutable end states.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusDone, TaskStatusFailed, TaskStatusCanceled:
		return true
	default:
		return false
	}
}

// TaskOutcome is the immutable terminal result of one task execution.
type TaskOutcome struct {
	// Status is the terminal state: done, failed, or canceled.
	Status TaskStatus
	// Detail optionally carries a short human-readable result summary.
	Detail string
	// Failure carries the classified error for failed outcomes, nil otherwise.
	Failure *TaskError
	// Attempts counts executions including the automatic retry.
	Attempts int
	// Elapsed measures submission to terminal transition.
	Elapsed time.Duration
}
