package gmail

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// queryDateLayout is the date form the remote search API accepts.
const queryDateLayout = "2006/01/02"

// Size comparison operators for the size criterion.
const (
	SizeLarger  = "larger"
	SizeSmaller = "smaller"
)

// Criteria is the declarative filter input. Absent fields are wildcards.
// Sender, Subject, Query, Size and the date bounds are evaluated
// server-side through the search query; HasAttachment and IsRead are
// evaluated locally after retrieval.
type Criteria struct {
	Sender         string
	Subject        string
	Query          string
	HasAttachment  *bool
	Size           int64
	SizeComparison string
	Before         string
	After          string
	LabelIDs       []string
	IsRead         *bool
}

// Action is what to do with matched messages.
type Action struct {
	AddLabelIDs    []string
	RemoveLabelIDs []string
}

// FilterSpec is an immutable, validated filter. Construct with
// NewFilterSpec; the zero value matches everything and does nothing.
type FilterSpec struct {
	criteria Criteria
	action   Action
	before   time.Time
	after    time.Time
}

// NewFilterSpec validates the criteria (dates parseable, size sane) and
// returns an immutable spec.
func NewFilterSpec(criteria Criteria, action Action) (*FilterSpec, error) {
	spec := &FilterSpec{criteria: criteria, action: action}

	if criteria.Size < 0 {
		return nil, &ValidationError{Field: "size", Reason: fmt.Sprintf("must be non-negative, got %d", criteria.Size)}
	}
	if criteria.Size > 0 {
		switch criteria.SizeComparison {
		case "", SizeLarger, SizeSmaller:
		default:
			return nil, &ValidationError{
				Field:  "sizeComparison",
				Reason: fmt.Sprintf("must be %q or %q, got %q", SizeLarger, SizeSmaller, criteria.SizeComparison),
			}
		}
	}

	var err error
	if criteria.Before != "" {
		if spec.before, err = parseQueryDate(criteria.Before); err != nil {
			return nil, &ValidationError{Field: "before", Reason: err.Error()}
		}
	}
	if criteria.After != "" {
		if spec.after, err = parseQueryDate(criteria.After); err != nil {
			return nil, &ValidationError{Field: "after", Reason: err.Error()}
		}
	}
	if !spec.before.IsZero() && !spec.after.IsZero() && !spec.after.Before(spec.before) {
		return nil, &ValidationError{Field: "after", Reason: "after date must precede before date"}
	}

	// Keep the spec immutable against later caller mutation.
	spec.criteria.LabelIDs = append([]string(nil), criteria.LabelIDs...)
	spec.action.AddLabelIDs = append([]string(nil), action.AddLabelIDs...)
	spec.action.RemoveLabelIDs = append([]string(nil), action.RemoveLabelIDs...)
	return spec, nil
}

// Criteria returns a copy of the validated criteria.
func (s *FilterSpec) Criteria() Criteria {
	c := s.criteria
	c.LabelIDs = append([]string(nil), s.criteria.LabelIDs...)
	return c
}

// Action returns a copy of the filter action.
func (s *FilterSpec) Action() Action {
	return Action{
		AddLabelIDs:    append([]string(nil), s.action.AddLabelIDs...),
		RemoveLabelIDs: append([]string(nil), s.action.RemoveLabelIDs...),
	}
}

// Matches reports whether the message satisfies every present criterion.
// It is a pure function of its inputs.
func (s *FilterSpec) Matches(m *Message) bool {
	if m == nil {
		return false
	}
	c := s.criteria

	if c.Sender != "" && !containsFold(m.Header("From"), c.Sender) {
		return false
	}
	if c.Subject != "" && !containsFold(m.Header("Subject"), c.Subject) {
		return false
	}
	if c.Query != "" &&
		!containsFold(m.Header("Subject"), c.Query) &&
		!containsFold(m.BodyText, c.Query) &&
		!containsFold(m.BodyHTML, c.Query) {
		return false
	}
	if c.HasAttachment != nil && m.HasAttachments() != *c.HasAttachment {
		return false
	}
	if c.IsRead != nil && m.IsRead() != *c.IsRead {
		return false
	}
	if c.Size > 0 {
		switch c.SizeComparison {
		case SizeSmaller:
			if m.SizeBytes >= c.Size {
				return false
			}
		default: // larger
			if m.SizeBytes <= c.Size {
				return false
			}
		}
	}
	for _, label := range c.LabelIDs {
		if !m.HasLabel(label) {
			return false
		}
	}

	// Date bounds follow the remote API convention: after is exclusive of
	// the boundary day, before is exclusive.
	if !s.after.IsZero() {
		if m.Date.IsZero() || m.Date.Before(s.after.AddDate(0, 0, 1)) {
			return false
		}
	}
	if !s.before.IsZero() {
		if m.Date.IsZero() || !m.Date.Before(s.before) {
			return false
		}
	}
	return true
}

// NeedsLocalEvaluation reports whether any criterion cannot be pushed to
// the server-side query and requires parsed message metadata.
func (s *FilterSpec) NeedsLocalEvaluation() bool {
	return s.criteria.HasAttachment != nil || s.criteria.IsRead != nil
}

// QueryString renders the server-side search terms for the criteria the
// remote API supports. Locally evaluated criteria are omitted.
func (s *FilterSpec) QueryString() string {
	c := s.criteria
	var terms []string
	if c.Sender != "" {
		terms = append(terms, "from:"+c.Sender)
	}
	if c.Subject != "" {
		terms = append(terms, "subject:"+quoteIfSpaced(c.Subject))
	}
	for _, label := range c.LabelIDs {
		terms = append(terms, "label:"+quoteIfSpaced(label))
	}
	if c.Size > 0 {
		op := c.SizeComparison
		if op == "" {
			op = SizeLarger
		}
		terms = append(terms, op+":"+strconv.FormatInt(c.Size, 10))
	}
	if !s.after.IsZero() {
		terms = append(terms, "after:"+s.after.Format(queryDateLayout))
	}
	if !s.before.IsZero() {
		terms = append(terms, "before:"+s.before.Format(queryDateLayout))
	}
	if c.Query != "" {
		terms = append(terms, c.Query)
	}
	return strings.Join(terms, " ")
}

// ParseQueryString reconstructs server-side criteria from a query string
// produced by QueryString. Unrecognized terms accumulate into Query.
func ParseQueryString(query string) (Criteria, error) {
	var c Criteria
	var free []string
	for _, term := range splitQueryTerms(query) {
		key, value, found := strings.Cut(term, ":")
		if !found {
			free = append(free, term)
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "from":
			c.Sender = value
		case "subject":
			c.Subject = value
		case "label":
			c.LabelIDs = append(c.LabelIDs, value)
		case "after":
			if _, err := parseQueryDate(value); err != nil {
				return Criteria{}, &ValidationError{Field: "after", Reason: err.Error()}
			}
			c.After = value
		case "before":
			if _, err := parseQueryDate(value); err != nil {
				return Criteria{}, &ValidationError{Field: "before", Reason: err.Error()}
			}
			c.Before = value
		case SizeLarger, SizeSmaller:
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Criteria{}, &ValidationError{Field: "size", Reason: err.Error()}
			}
			c.Size = size
			c.SizeComparison = key
		default:
			free = append(free, term)
		}
	}
	c.Query = strings.Join(free, " ")
	return c, nil
}

// parseQueryDate accepts the remote API's YYYY/MM/DD form as well as
// ISO YYYY-MM-DD.
func parseQueryDate(value string) (time.Time, error) {
	for _, layout := range []string{queryDateLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q is not in YYYY/MM/DD form", value)
}

// splitQueryTerms splits a query on whitespace, keeping quoted values
// such as subject:"weekly report" inside a single term.
func splitQueryTerms(query string) []string {
	var terms []string
	var b strings.Builder
	inQuote := false
	for _, r := range query {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case !inQuote && (r == ' ' || r == '\t'):
			if b.Len() > 0 {
				terms = append(terms, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		terms = append(terms, b.String())
	}
	return terms
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func quoteIfSpaced(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
