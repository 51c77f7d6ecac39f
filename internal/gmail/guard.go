package gmail

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/gmailward/gmailward/internal/logging"
)

// Intent names a destructive mutation checked against the guard.
type Intent string

const (
	IntentRemoveLabel   Intent = "remove_label"
	IntentDeleteMessage Intent = "delete_message"
	IntentEmptyTrash    Intent = "empty_trash"
)

// LabelGuard refuses destructive mutations that touch protected labels.
// Checks are purely local: a rejected mutation never reaches the
// transport. Label names are matched case-insensitively.
type LabelGuard struct {
	protected map[string]string
	logger    *slog.Logger
}

// NewLabelGuard builds a guard over the given label names. Empty and
// duplicate names are ignored.
func NewLabelGuard(protected []string, logger *slog.Logger) *LabelGuard {
	g := &LabelGuard{
		protected: make(map[string]string, len(protected)),
		logger:    logging.OrNop(logger),
	}
	for _, name := range protected {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		g.protected[strings.ToLower(name)] = name
	}
	return g
}

// Protected returns the guarded label names, sorted.
func (g *LabelGuard) Protected() []string {
	names := make([]string, 0, len(g.protected))
	for _, name := range g.protected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsProtected reports whether the label name is guarded.
func (g *LabelGuard) IsProtected(label string) bool {
	_, ok := g.protected[strings.ToLower(label)]
	return ok
}

// CheckMutation rejects the intent when it targets a protected label.
// A DELETE or EMPTY_TRASH intent is rejected if any named label is
// protected; REMOVE_LABEL only if the removed label itself is.
func (g *LabelGuard) CheckMutation(intent Intent, labels ...string) error {
	for _, label := range labels {
		if canonical, ok := g.protected[strings.ToLower(label)]; ok {
			g.logger.Warn("mutation blocked by label guard",
				logging.KeyStatus, string(intent),
				logging.KeyLabel, canonical,
			)
			return &ProtectedLabelError{Label: canonical, Intent: intent}
		}
	}
	return nil
}

// CheckMessage rejects a destructive intent against a message that
// carries any protected label.
func (g *LabelGuard) CheckMessage(intent Intent, m *Message) error {
	if m == nil {
		return nil
	}
	return g.CheckMutation(intent, m.Labels...)
}
