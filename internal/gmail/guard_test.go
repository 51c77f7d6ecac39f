package gmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardBlocksProtectedLabels(t *testing.T) {
	guard := NewLabelGuard([]string{"INBOX", "Work"}, nil)

	err := guard.CheckMutation(IntentRemoveLabel, "Work")
	var protected *ProtectedLabelError
	require.ErrorAs(t, err, &protected)
	assert.Equal(t, "Work", protected.Label)
	assert.Equal(t, IntentRemoveLabel, protected.Intent)

	assert.NoError(t, guard.CheckMutation(IntentRemoveLabel, "Newsletters"))
}

func TestGuardIsCaseInsensitive(t *testing.T) {
	guard := NewLabelGuard([]string{"Work"}, nil)

	assert.True(t, guard.IsProtected("WORK"))
	assert.True(t, guard.IsProtected("work"))
	assert.False(t, guard.IsProtected("workout"))

	err := guard.CheckMutation(IntentDeleteMessage, "wOrK")
	var protected *ProtectedLabelError
	require.ErrorAs(t, err, &protected)
	// The error carries the configured spelling.
	assert.Equal(t, "Work", protected.Label)
}

func TestGuardChecksAnyLabelOnMessage(t *testing.T) {
	guard := NewLabelGuard([]string{"Legal"}, nil)

	blocked := &Message{ID: "m1", Labels: []string{"INBOX", "Legal", "UNREAD"}}
	err := guard.CheckMessage(IntentDeleteMessage, blocked)
	var protected *ProtectedLabelError
	require.ErrorAs(t, err, &protected)

	clear := &Message{ID: "m2", Labels: []string{"INBOX", "UNREAD"}}
	assert.NoError(t, guard.CheckMessage(IntentDeleteMessage, clear))
	assert.NoError(t, guard.CheckMessage(IntentDeleteMessage, nil))
}

func TestGuardIgnoresEmptyAndDuplicateNames(t *testing.T) {
	guard := NewLabelGuard([]string{" Work ", "", "work", "INBOX"}, nil)
	assert.Equal(t, []string{"INBOX", "work"}, guard.Protected())
}

func TestGuardWithNoProtectedLabels(t *testing.T) {
	guard := NewLabelGuard(nil, nil)
	assert.Empty(t, guard.Protected())
	assert.NoError(t, guard.CheckMutation(IntentEmptyTrash, "TRASH"))
}
