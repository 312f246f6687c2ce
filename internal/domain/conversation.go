package domain

import (
	"strings"
	"time"
)

// ConversationKey identifies the reply history of one owner on one post.
type ConversationKey struct {
	OwnerID string
	PostID  string
}

// String returns the storage key for the conversation.
func (k ConversationKey) String() string {
	return k.OwnerID + ":" + k.PostID
}

// Valid reports whether both halves of the key are present.
func (k ConversationKey) Valid() bool {
	return strings.TrimSpace(k.OwnerID) != "" && strings.TrimSpace(k.PostID) != ""
}

// EntryKind tags a history entry.
type EntryKind string

const (
	EntryReply   EntryKind = "reply"
	EntrySummary EntryKind = "summary"
)

// Entry is a single item of a conversation's history log. A summary entry is
// produced by compaction and is never compacted on its own.
type Entry struct {
	Kind      EntryKind
	Text      string
	CreatedAt time.Time
}

// NewReply constructs a reply entry stamped with now.
func NewReply(text string, now time.Time) Entry {
	return Entry{Kind: EntryReply, Text: text, CreatedAt: now.UTC()}
}

// NewSummary constructs a summary entry stamped with now.
func NewSummary(text string, now time.Time) Entry {
	return Entry{Kind: EntrySummary, Text: text, CreatedAt: now.UTC()}
}

// IsSummary reports whether the entry was produced by compaction.
func (e Entry) IsSummary() bool {
	return e.Kind == EntrySummary
}
