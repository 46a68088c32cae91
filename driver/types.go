package driver

import (
	"time"

	"golang.org/x/exp/slices"
)

type (
	ThreadID string
	LabelID  string
)

// Well-known labels. Every provider maps its own flags and folders onto these.
const (
	LabelInbox     LabelID = "INBOX"
	LabelArchive   LabelID = "ARCHIVE"
	LabelTrash     LabelID = "TRASH"
	LabelSpam      LabelID = "SPAM"
	LabelSent      LabelID = "SENT"
	LabelDraft     LabelID = "DRAFT"
	LabelStarred   LabelID = "STARRED"
	LabelUnread    LabelID = "UNREAD"
	LabelImportant LabelID = "IMPORTANT"
)

// FolderLabels are the mutually exclusive labels a thread can be moved between.
// ARCHIVE is represented by the absence of all of them.
var FolderLabels = []LabelID{LabelInbox, LabelTrash, LabelSpam}

// IsFolder returns whether the label is a move destination.
func IsFolder(label LabelID) bool {
	return label == LabelArchive || slices.Contains(FolderLabels, label)
}

// Thread is the provider independent representation of a conversation.
type Thread struct {
	ID       ThreadID  `json:"id"`
	Subject  string    `json:"subject"`
	Snippet  string    `json:"snippet,omitempty"`
	Labels   []LabelID `json:"labels"`
	Messages []Message `json:"messages,omitempty"`
}

// HasLabel returns whether the thread carries the given label.
func (t Thread) HasLabel(label LabelID) bool {
	return slices.Contains(t.Labels, label)
}

type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Labels  []LabelID `json:"labels"`
}

// Count holds the counters of one label.
type Count struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// Counts maps labels to their counters.
type Counts map[LabelID]Count

// Changes describes a label modification applied to a batch of threads.
type Changes struct {
	Add    []LabelID
	Remove []LabelID
}

// IsEmpty returns whether applying the changes would do nothing.
func (c Changes) IsEmpty() bool {
	return len(c.Add) == 0 && len(c.Remove) == 0
}
