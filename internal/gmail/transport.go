package gmail

import (
	"context"
	"net/http"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Summary identifies one message in a listing page.
type Summary struct {
	ID       string
	ThreadID string
}

// ListPage is one page of message summaries plus the opaque continuation
// token for the next page. The token must never be parsed or assumed to
// have structure.
type ListPage struct {
	Messages      []Summary
	NextPageToken string
}

// Transport is the narrow surface of the remote mail API this library
// needs. The production implementation wraps *gmailv1.Service; tests use
// fakes.
type Transport interface {
	ListMessages(ctx context.Context, query string, labelIDs []string, maxResults int64, pageToken string) (ListPage, error)
	GetMessage(ctx context.Context, id string) (*gmailv1.Message, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) (*gmailv1.MessagePartBody, error)
	ModifyMessage(ctx context.Context, id string, addLabelIDs, removeLabelIDs []string) error
	DeleteMessage(ctx context.Context, id string) error
	SendMessage(ctx context.Context, raw string, threadID string) (string, error)
	CreateDraft(ctx context.Context, raw string) (string, error)
	ListLabels(ctx context.Context) ([]*gmailv1.Label, error)
	CreateLabel(ctx context.Context, label *gmailv1.Label) (*gmailv1.Label, error)
	DeleteLabel(ctx context.Context, id string) error
}

// googleTransport adapts the Gmail Users service to the Transport
// interface, normalizing every error into a TransportError.
type googleTransport struct {
	svc *gmailv1.UsersService
}

// NewGoogleTransport builds a Transport over an authorized HTTP client.
func NewGoogleTransport(ctx context.Context, client *http.Client) (Transport, error) {
	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, asTransportError(err)
	}
	return &googleTransport{svc: svc.Users}, nil
}

func (t *googleTransport) ListMessages(ctx context.Context, query string, labelIDs []string, maxResults int64, pageToken string) (ListPage, error) {
	req := t.svc.Messages.List("me")
	if query != "" {
		req = req.Q(query)
	}
	if len(labelIDs) > 0 {
		req = req.LabelIds(labelIDs...)
	}
	if maxResults > 0 {
		req = req.MaxResults(maxResults)
	}
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}
	res, err := req.Context(ctx).Do()
	if err != nil {
		return ListPage{}, asTransportError(err)
	}
	page := ListPage{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.Messages = append(page.Messages, Summary{ID: m.Id, ThreadID: m.ThreadId})
	}
	return page, nil
}

func (t *googleTransport) GetMessage(ctx context.Context, id string) (*gmailv1.Message, error) {
	msg, err := t.svc.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, asTransportError(err)
	}
	return msg, nil
}

func (t *googleTransport) GetAttachment(ctx context.Context, messageID, attachmentID string) (*gmailv1.MessagePartBody, error) {
	body, err := t.svc.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, asTransportError(err)
	}
	return body, nil
}

func (t *googleTransport) ModifyMessage(ctx context.Context, id string, addLabelIDs, removeLabelIDs []string) error {
	_, err := t.svc.Messages.Modify("me", id, &gmailv1.ModifyMessageRequest{
		AddLabelIds:    addLabelIDs,
		RemoveLabelIds: removeLabelIDs,
	}).Context(ctx).Do()
	return asTransportError(err)
}

func (t *googleTransport) DeleteMessage(ctx context.Context, id string) error {
	return asTransportError(t.svc.Messages.Delete("me", id).Context(ctx).Do())
}

func (t *googleTransport) SendMessage(ctx context.Context, raw string, threadID string) (string, error) {
	msg := &gmailv1.Message{Raw: raw, ThreadId: threadID}
	sent, err := t.svc.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", asTransportError(err)
	}
	return sent.Id, nil
}

func (t *googleTransport) CreateDraft(ctx context.Context, raw string) (string, error) {
	draft, err := t.svc.Drafts.Create("me", &gmailv1.Draft{
		Message: &gmailv1.Message{Raw: raw},
	}).Context(ctx).Do()
	if err != nil {
		return "", asTransportError(err)
	}
	return draft.Id, nil
}

func (t *googleTransport) ListLabels(ctx context.Context) ([]*gmailv1.Label, error) {
	res, err := t.svc.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, asTransportError(err)
	}
	return res.Labels, nil
}

func (t *googleTransport) CreateLabel(ctx context.Context, label *gmailv1.Label) (*gmailv1.Label, error) {
	created, err := t.svc.Labels.Create("me", label).Context(ctx).Do()
	if err != nil {
		return nil, asTransportError(err)
	}
	return created, nil
}

func (t *googleTransport) DeleteLabel(ctx context.Context, id string) error {
	return asTransportError(t.svc.Labels.Delete("me", id).Context(ctx).Do())
}
