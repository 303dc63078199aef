package tui

import "driftline/pkg/drift"

// articlesLoadedMsg replaces the article list and the status counters.
type articlesLoadedMsg struct {
	articles []drift.Article
	stats    drift.Stats
}

// loadFailedMsg reports a failed store read.
type loadFailedMsg struct {
	err error
}

// digestLoadedMsg carries the digest artifact for the digest screen.
type digestLoadedMsg struct {
	digest drift.Digest
	count  int
}

// tagsLoadedMsg fills the tag picker.
type tagsLoadedMsg struct {
	tags []drift.TagCount
}

// bridgeEventMsg delivers one coordinator event. ok turns false once the
// event channel closes, which stops the pump.
type bridgeEventMsg struct {
	event drift.Event
	ok    bool
}

// autoRefreshMsg fires on the periodic refresh timer.
type autoRefreshMsg struct{}

// noticeMsg shows a dismissible status notice without touching the list.
type noticeMsg struct {
	text   string
	failed bool
}

// mutatedMsg reports a finished store mutation; the list reloads after it.
type mutatedMsg struct {
	notice string
	failed bool
}

// feedAddedMsg reports a feed added through the add form.
type feedAddedMsg struct {
	name string
}

// taskSubmitFailedMsg reports a submission the coordinator rejected.
type taskSubmitFailedMsg struct {
	key drift.TaskKey
	err error
}
