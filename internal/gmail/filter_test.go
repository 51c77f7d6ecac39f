package gmail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestQueryStringTerms(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{
		Sender:         "alice@example.com",
		Subject:        "weekly report",
		Size:           1024,
		SizeComparison: SizeLarger,
		After:          "2024/01/10",
		Before:         "2024/02/01",
		LabelIDs:       []string{"Work"},
	}, Action{})
	require.NoError(t, err)

	assert.Equal(t,
		`from:alice@example.com subject:"weekly report" label:Work larger:1024 after:2024/01/10 before:2024/02/01`,
		spec.QueryString())
}

func TestQueryStringOmitsLocalCriteria(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{
		Sender:        "alice@example.com",
		HasAttachment: boolPtr(true),
		IsRead:        boolPtr(false),
	}, Action{})
	require.NoError(t, err)

	assert.Equal(t, "from:alice@example.com", spec.QueryString())
	assert.True(t, spec.NeedsLocalEvaluation())
}

func TestQueryStringRoundTrip(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{
		Sender:         "alice@example.com",
		Subject:        "invoice",
		Size:           2048,
		SizeComparison: SizeSmaller,
		After:          "2024-01-10",
		Query:          "urgent",
	}, Action{})
	require.NoError(t, err)

	parsed, err := ParseQueryString(spec.QueryString())
	require.NoError(t, err)

	reparsed, err := NewFilterSpec(parsed, Action{})
	require.NoError(t, err)
	assert.Equal(t, spec.QueryString(), reparsed.QueryString())

	assert.Equal(t, "alice@example.com", parsed.Sender)
	assert.Equal(t, "invoice", parsed.Subject)
	assert.Equal(t, int64(2048), parsed.Size)
	assert.Equal(t, SizeSmaller, parsed.SizeComparison)
	// ISO input is canonicalized to the query's slash form.
	assert.Equal(t, "2024/01/10", parsed.After)
	assert.Equal(t, "urgent", parsed.Query)
}

func TestQueryStringRoundTripQuotedTerms(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{
		Subject:  "weekly report",
		LabelIDs: []string{"Project Atlas"},
	}, Action{})
	require.NoError(t, err)

	query := spec.QueryString()
	assert.Contains(t, query, `subject:"weekly report"`)
	assert.Contains(t, query, `label:"Project Atlas"`)

	parsed, err := ParseQueryString(query)
	require.NoError(t, err)
	assert.Equal(t, "weekly report", parsed.Subject)
	assert.Equal(t, []string{"Project Atlas"}, parsed.LabelIDs)
	assert.Empty(t, parsed.Query)

	reparsed, err := NewFilterSpec(parsed, Action{})
	require.NoError(t, err)
	assert.Equal(t, query, reparsed.QueryString())
}

func TestSplitQueryTerms(t *testing.T) {
	cases := []struct {
		query string
		terms []string
	}{
		{"", nil},
		{"is:unread in:inbox", []string{"is:unread", "in:inbox"}},
		{`subject:"two words" urgent`, []string{`subject:"two words"`, "urgent"}},
		{`  from:a@b.c 	subject:"a  b" `, []string{"from:a@b.c", `subject:"a  b"`}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.terms, splitQueryTerms(tc.query), "query %q", tc.query)
	}
}

func TestParseQueryStringRejectsBadValues(t *testing.T) {
	_, err := ParseQueryString("after:lastweek")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = ParseQueryString("larger:huge")
	require.ErrorAs(t, err, &verr)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name     string
		criteria Criteria
		field    string
	}{
		{"bad before date", Criteria{Before: "last tuesday"}, "before"},
		{"bad after date", Criteria{After: "01/10/2024"}, "after"},
		{"negative size", Criteria{Size: -5}, "size"},
		{"bad comparison", Criteria{Size: 10, SizeComparison: "bigger"}, "sizeComparison"},
		{"inverted range", Criteria{After: "2024/02/01", Before: "2024/01/01"}, "after"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFilterSpec(tc.criteria, Action{})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestMatchesCombinesCriteriaWithAND(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{
		Sender:  "billing@example.com",
		Subject: "invoice",
	}, Action{})
	require.NoError(t, err)

	msg := &Message{Headers: map[string]string{
		"From":    "Billing <billing@example.com>",
		"Subject": "Invoice #42",
	}}
	assert.True(t, spec.Matches(msg))

	// One failing criterion fails the whole filter.
	msg.Headers["Subject"] = "Receipt #42"
	assert.False(t, spec.Matches(msg))
}

func TestMatchesDateBoundariesAreExclusive(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{After: "2024/01/10", Before: "2024/02/01"}, Action{})
	require.NoError(t, err)

	at := func(value string) *Message {
		date, err := time.Parse(time.RFC3339, value)
		require.NoError(t, err)
		return &Message{Date: date, Headers: map[string]string{}}
	}

	// The after: boundary day itself is excluded.
	assert.False(t, spec.Matches(at("2024-01-10T23:59:59Z")))
	assert.True(t, spec.Matches(at("2024-01-11T00:00:00Z")))

	// The before: boundary day is excluded too.
	assert.True(t, spec.Matches(at("2024-01-31T23:59:59Z")))
	assert.False(t, spec.Matches(at("2024-02-01T00:00:00Z")))

	// Undated messages never match a dated filter.
	assert.False(t, spec.Matches(&Message{Headers: map[string]string{}}))
}

func TestMatchesLocalCriteria(t *testing.T) {
	read := &Message{Labels: []string{LabelInbox}, Headers: map[string]string{}}
	unread := &Message{Labels: []string{LabelInbox, LabelUnread}, Headers: map[string]string{}}
	withAtt := &Message{
		Labels:      []string{LabelInbox, LabelUnread},
		Headers:     map[string]string{},
		Attachments: []*Attachment{{Filename: "r.pdf"}},
	}

	unreadOnly, err := NewFilterSpec(Criteria{IsRead: boolPtr(false)}, Action{})
	require.NoError(t, err)
	assert.False(t, unreadOnly.Matches(read))
	assert.True(t, unreadOnly.Matches(unread))

	attOnly, err := NewFilterSpec(Criteria{HasAttachment: boolPtr(true)}, Action{})
	require.NoError(t, err)
	assert.False(t, attOnly.Matches(unread))
	assert.True(t, attOnly.Matches(withAtt))

	both, err := NewFilterSpec(Criteria{IsRead: boolPtr(false), HasAttachment: boolPtr(true)}, Action{})
	require.NoError(t, err)
	assert.True(t, both.Matches(withAtt))
	assert.False(t, both.Matches(unread))
}

func TestMatchesSizeComparison(t *testing.T) {
	small := &Message{SizeBytes: 512, Headers: map[string]string{}}
	big := &Message{SizeBytes: 4096, Headers: map[string]string{}}

	larger, err := NewFilterSpec(Criteria{Size: 1024, SizeComparison: SizeLarger}, Action{})
	require.NoError(t, err)
	assert.False(t, larger.Matches(small))
	assert.True(t, larger.Matches(big))

	smaller, err := NewFilterSpec(Criteria{Size: 1024, SizeComparison: SizeSmaller}, Action{})
	require.NoError(t, err)
	assert.True(t, smaller.Matches(small))
	assert.False(t, smaller.Matches(big))
}

func TestMatchesIsPure(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{Query: "shipment"}, Action{})
	require.NoError(t, err)

	msg := &Message{
		Headers:  map[string]string{"Subject": "Shipment update"},
		BodyText: "your shipment is on the way",
		Labels:   []string{LabelInbox},
	}
	first := spec.Matches(msg)
	second := spec.Matches(msg)
	assert.Equal(t, first, second)
	assert.True(t, first)
	// Matching leaves the message untouched.
	assert.Equal(t, []string{LabelInbox}, msg.Labels)
}

func TestMatchesNilMessage(t *testing.T) {
	spec, err := NewFilterSpec(Criteria{}, Action{})
	require.NoError(t, err)
	assert.False(t, spec.Matches(nil))
}

func TestSpecIsImmutable(t *testing.T) {
	labels := []string{"Work"}
	adds := []string{"Label_x"}
	spec, err := NewFilterSpec(Criteria{LabelIDs: labels}, Action{AddLabelIDs: adds})
	require.NoError(t, err)

	labels[0] = "Personal"
	adds[0] = "Label_y"

	assert.Equal(t, []string{"Work"}, spec.Criteria().LabelIDs)
	assert.Equal(t, []string{"Label_x"}, spec.Action().AddLabelIDs)
}
