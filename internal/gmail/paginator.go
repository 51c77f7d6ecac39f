package gmail

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gmailward/gmailward/internal/governor"
	"github.com/gmailward/gmailward/internal/logging"
)

// maxPageSize is the largest page the list endpoint accepts.
const maxPageSize = 100

// ErrStopIteration is returned from a Foreach callback to end traversal
// early. The paginator swallows it and reports success.
var ErrStopIteration = errors.New("stop iteration")

// Paginator walks a message listing lazily: each page is fetched under
// the governor only when the previous page's summaries have been
// consumed, so an early stop never spends budget on unread pages.
type Paginator struct {
	transport  Transport
	gov        *governor.Governor
	logger     *slog.Logger
	query      string
	labelIDs   []string
	maxResults int64

	pageToken string
	done      bool
	fetched   int64
}

// NewPaginator creates a paginator over the given query. maxResults caps
// the total summaries delivered; zero or negative means no cap.
func NewPaginator(transport Transport, gov *governor.Governor, logger *slog.Logger, query string, labelIDs []string, maxResults int64) *Paginator {
	return &Paginator{
		transport:  transport,
		gov:        gov,
		logger:     logging.OrNop(logger),
		query:      query,
		labelIDs:   append([]string(nil), labelIDs...),
		maxResults: maxResults,
	}
}

// Next fetches the next page of summaries, consuming one governor slot.
// It returns nil, nil when the listing is exhausted. A QuotaExceededError
// passes through without marking the paginator done, so already-delivered
// summaries remain valid and traversal may resume under a fresh budget.
func (p *Paginator) Next(ctx context.Context) ([]Summary, error) {
	if p.done {
		return nil, nil
	}
	if p.maxResults > 0 && p.fetched >= p.maxResults {
		p.done = true
		return nil, nil
	}

	pageSize := int64(maxPageSize)
	if p.maxResults > 0 {
		if remaining := p.maxResults - p.fetched; remaining < pageSize {
			pageSize = remaining
		}
	}

	var page ListPage
	err := p.gov.Invoke(ctx, "list_messages", func(ctx context.Context) error {
		var err error
		page, err = p.transport.ListMessages(ctx, p.query, p.labelIDs, pageSize, p.pageToken)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.pageToken = page.NextPageToken

	summaries := page.Messages
	if p.maxResults > 0 {
		if remaining := p.maxResults - p.fetched; int64(len(summaries)) > remaining {
			summaries = summaries[:remaining]
		}
	}
	p.fetched += int64(len(summaries))

	if p.pageToken == "" || (p.maxResults > 0 && p.fetched >= p.maxResults) {
		p.done = true
	}
	p.logger.Debug("fetched listing page",
		logging.KeyQuery, p.query,
		slog.Int("page_size", len(summaries)),
		slog.Bool("done", p.done))
	return summaries, nil
}

// Foreach calls fn for every summary in order, fetching pages lazily.
// fn may return ErrStopIteration to end early without error. On quota
// exhaustion all summaries delivered so far stand, and the error is the
// governor's QuotaExceededError.
func (p *Paginator) Foreach(ctx context.Context, fn func(Summary) error) error {
	for !p.done {
		summaries, err := p.Next(ctx)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			if err := fn(s); err != nil {
				if errors.Is(err, ErrStopIteration) {
					p.done = true
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// Collect drains the paginator into a slice. On error the summaries
// gathered before the failure are returned alongside it.
func (p *Paginator) Collect(ctx context.Context) ([]Summary, error) {
	var out []Summary
	err := p.Foreach(ctx, func(s Summary) error {
		out = append(out, s)
		return nil
	})
	return out, err
}

// Done reports whether the listing has been fully traversed.
func (p *Paginator) Done() bool { return p.done }
