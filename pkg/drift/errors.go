package drift

import "errors"

var (
	// ErrNotFound indicates a lookup miss for a record that must exist.
	ErrNotFound = errors.New("driftline: record not found")
	// ErrNotBookmarked indicates a bookmark-scoped mutation on an article without a bookmark.
	ErrNotBookmarked = errors.New("driftline: article not bookmarked")
	// ErrStoreClosed indicates an operation against a closed store.
	ErrStoreClosed = errors.New("driftline: store closed")
	// ErrStorageContention indicates lock contention that survived the bounded retry window.
	ErrStorageContention = errors.New("driftline: storage contention")
	// ErrBridgeClosed indicates a notification against a closed event bridge.
	ErrBridgeClosed = errors.New("driftline: event bridge closed")
	// ErrCoordinatorClosed indicates a submission against a stopped task coordinator.
	ErrCoordinatorClosed = errors.New("driftline: task coordinator closed")
	// ErrUnknownProvider indicates an AI provider name with no registered factory.
	ErrUnknownProvider = errors.New("driftline: unknown ai provider")
	// ErrProviderUnavailable indicates an AI provider that cannot serve requests.
	ErrProviderUnavailable = errors.New("driftline: ai provider unavailable")
)
