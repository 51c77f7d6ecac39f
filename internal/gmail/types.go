package gmail

import (
	"context"
	"fmt"
	"time"
)

// Well-known system label IDs.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
	LabelTrash  = "TRASH"
	LabelSpam   = "SPAM"
)

// Status tracks what has happened to a message through this session.
type Status string

const (
	StatusNew     Status = "new"
	StatusRead    Status = "read"
	StatusSent    Status = "sent"
	StatusDraft   Status = "draft"
	StatusMoved   Status = "moved"
	StatusDeleted Status = "deleted"
)

// StatusEvent is one entry in a message's status history.
type StatusEvent struct {
	Status Status
	At     time.Time
}

// Message is the decoded form of a remote message envelope. It is never
// mutated by remote state: label and read-state changes produce a remote
// write followed by an explicit local patch.
type Message struct {
	ID       string
	ThreadID string
	Labels   []string

	// Headers holds the decoded header values (From, To, Subject, Date, ...).
	Headers map[string]string

	Date      time.Time
	BodyText  string
	BodyHTML  string
	Links     Links
	SizeBytes int64

	Attachments []*Attachment

	Status        Status
	StatusHistory []StatusEvent
}

// Links holds the URLs harvested from a message body: the full hrefs and
// the unique domains they point at.
type Links struct {
	URLs    []string
	Domains []string
}

// HasLabel reports whether the message carries the given label id or name.
func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// IsRead reports whether the message has been read (no UNREAD label).
func (m *Message) IsRead() bool {
	return !m.HasLabel(LabelUnread)
}

// HasAttachments reports whether any parts carried a filename.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Header returns the named header value, or "".
func (m *Message) Header(name string) string {
	return m.Headers[name]
}

// Track records a status transition with the current time.
func (m *Message) Track(s Status) {
	m.Status = s
	m.StatusHistory = append(m.StatusHistory, StatusEvent{Status: s, At: time.Now()})
}

// removeLabel patches the local label slice after a successful remote write.
func (m *Message) removeLabel(label string) {
	out := m.Labels[:0]
	for _, l := range m.Labels {
		if l != label {
			out = append(out, l)
		}
	}
	m.Labels = out
}

func (m *Message) addLabel(label string) {
	if !m.HasLabel(label) {
		m.Labels = append(m.Labels, label)
	}
}

// ContentFunc fetches and decodes attachment bytes on demand.
type ContentFunc func(ctx context.Context) ([]byte, error)

// Attachment is message part metadata with lazily resolved content: the
// bytes are fetched and base64-decoded only when Content is called, and
// each fetch consumes one governor slot.
type Attachment struct {
	MessageID    string
	PartID       string
	AttachmentID string
	Filename     string
	MimeType     string
	SizeBytes    int64

	fetch  ContentFunc
	loaded []byte
}

// Content returns the attachment bytes, fetching them on first use.
// Independent attachments may be fetched from separate goroutines as long
// as each Attachment value is confined to one goroutine.
func (a *Attachment) Content(ctx context.Context) ([]byte, error) {
	if a.loaded != nil {
		return a.loaded, nil
	}
	if a.fetch == nil {
		return nil, fmt.Errorf("attachment %s has no content source", a.AttachmentID)
	}
	data, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}
	a.loaded = data
	return data, nil
}

// Label is a mailbox label. Protected is derived from the configured
// protected-label set at session construction, never stored remotely.
type Label struct {
	ID        string
	Name      string
	Protected bool
}

// LabelVisibility controls whether a created label shows up in the Gmail
// UI label and message lists.
type LabelVisibility int

const (
	LabelVisible LabelVisibility = iota
	LabelHidden
)
