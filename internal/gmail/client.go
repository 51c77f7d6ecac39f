package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/gmailward/gmailward/internal/google"
	"github.com/gmailward/gmailward/internal/governor"
	"github.com/gmailward/gmailward/internal/instrumentation"
	"github.com/gmailward/gmailward/internal/logging"
)

// DefaultQuery selects the messages most sessions care about.
const DefaultQuery = "is:unread in:inbox"

// DefaultAuthWait bounds how long an operation blocks on a session that
// is still authenticating.
const DefaultAuthWait = 30 * time.Second

// SessionState is the lifecycle phase of a Service.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateAuthenticating
	StateReady
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LinkType selects how much detail a listing retrieves per message.
type LinkType int

const (
	// LinkTypeFull fetches and parses every listed message. Each detail
	// fetch consumes one governor slot.
	LinkTypeFull LinkType = iota
	// LinkTypeBasic yields id and thread id only, with no per-message
	// fetch.
	LinkTypeBasic
)

// ServiceConfig wires a Service together. Transport takes precedence
// over Auth; exactly one of them must be set.
type ServiceConfig struct {
	Transport Transport
	Auth      google.AuthProvider

	Governor *governor.Governor
	// ProtectedLabels can never be removed from a message, and messages
	// carrying them can never be deleted.
	ProtectedLabels []string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	// Warnings enables non-fatal warning logs (undecodable headers,
	// dropped addresses).
	Warnings bool
	// AuthWait bounds how long operations wait for authentication to
	// finish. Zero means DefaultAuthWait.
	AuthWait time.Duration
}

// Service is a governed session against one mailbox. All remote traffic
// flows through the governor; destructive mutations are checked against
// the label guard before any call is made.
type Service struct {
	transport Transport
	auth      google.AuthProvider
	gov       *governor.Governor
	guard     *LabelGuard
	parser    *Parser
	logger    *slog.Logger
	warnings  bool
	authWait  time.Duration

	mu       sync.Mutex
	state    SessionState
	ready    chan struct{}
	closedCh chan struct{}
	failedCh chan struct{}
	authErr  error

	labelsMu   sync.RWMutex
	labelsByID map[string]Label
}

// NewService creates an unconnected session. Call Connect to
// authenticate and load the label cache; operations invoked before
// Connect completes block up to AuthWait and then fail with
// AuthPendingError.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Transport == nil && cfg.Auth == nil {
		return nil, &ValidationError{Field: "transport", Reason: "either Transport or Auth must be set"}
	}
	gov := cfg.Governor
	if gov == nil {
		gov = governor.New(governor.Config{Logger: cfg.Logger, Metrics: cfg.Metrics})
	}
	authWait := cfg.AuthWait
	if authWait <= 0 {
		authWait = DefaultAuthWait
	}
	s := &Service{
		transport:  cfg.Transport,
		auth:       cfg.Auth,
		gov:        gov,
		guard:      NewLabelGuard(cfg.ProtectedLabels, cfg.Logger),
		logger:     logging.OrNop(cfg.Logger),
		warnings:   cfg.Warnings,
		authWait:   authWait,
		state:      StateUninitialized,
		ready:      make(chan struct{}),
		closedCh:   make(chan struct{}),
		failedCh:   make(chan struct{}),
		labelsByID: make(map[string]Label),
	}
	s.parser = NewParser(nil, s.logger, s.warnings, s.getAttachment)
	return s, nil
}

// Connect authenticates, builds the transport when one was not injected,
// and loads the label cache with one governed call. It transitions the
// session to Ready, unblocking any waiting operations.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	s.state = StateAuthenticating
	if s.authErr != nil {
		// A prior failed attempt closed failedCh; re-arm it.
		s.authErr = nil
		s.failedCh = make(chan struct{})
	}
	s.mu.Unlock()

	if s.transport == nil {
		client, err := s.auth.Client(ctx)
		if err != nil {
			return s.failAuth(fmt.Errorf("authentication failed: %w", err))
		}
		transport, err := NewGoogleTransport(ctx, client)
		if err != nil {
			return s.failAuth(err)
		}
		s.transport = transport
	}

	if err := s.refreshLabels(ctx); err != nil {
		return s.failAuth(err)
	}

	s.mu.Lock()
	s.state = StateReady
	close(s.ready)
	s.mu.Unlock()
	s.logger.Info("session ready",
		logging.Status(StateReady.String()),
		slog.Int("labels", len(s.Labels())))
	return nil
}

// failAuth records a failed connect, returns the session to the
// uninitialized state, and wakes every operation blocked in awaitReady.
func (s *Service) failAuth(err error) error {
	s.mu.Lock()
	s.authErr = err
	s.state = StateUninitialized
	close(s.failedCh)
	s.mu.Unlock()
	s.logger.Error("session setup failed", logging.Err(err))
	return err
}

// Close disposes the session. Further operations fail with
// ErrSessionClosed.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	close(s.closedCh)
	return nil
}

// State returns the current session state.
func (s *Service) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Governor exposes the session's call governor for budget inspection.
func (s *Service) Governor() *governor.Governor { return s.gov }

// awaitReady blocks until the session is Ready, a connect attempt
// fails, the bounded wait elapses, the session closes, or ctx is
// canceled.
func (s *Service) awaitReady(ctx context.Context) error {
	timer := time.NewTimer(s.authWait)
	defer timer.Stop()
	for {
		s.mu.Lock()
		state, authErr, failedCh := s.state, s.authErr, s.failedCh
		s.mu.Unlock()
		switch {
		case state == StateClosed:
			return ErrSessionClosed
		case state == StateReady:
			return nil
		case authErr != nil:
			return authErr
		}

		select {
		case <-s.ready:
			return nil
		case <-s.closedCh:
			return ErrSessionClosed
		case <-failedCh:
			// re-read authErr and state
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return &AuthPendingError{Waited: s.authWait.String()}
		}
	}
}

// call runs one remote call under the governor with the session's retry
// policy: a single extra attempt, only for retriable transport errors.
// The governor's inter-call spacing provides the backoff.
func (s *Service) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := s.gov.Invoke(ctx, operation, fn)
	var te *TransportError
	if err != nil && errors.As(err, &te) && te.Retriable {
		s.logger.Warn("retrying after retriable transport error",
			logging.Operation(operation),
			slog.Int("http_status", te.Status))
		err = s.gov.Invoke(ctx, operation, fn)
	}
	return err
}

func (s *Service) getAttachment(ctx context.Context, messageID, attachmentID string) (*gmailv1.MessagePartBody, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}
	var body *gmailv1.MessagePartBody
	err := s.call(ctx, "get_attachment", func(ctx context.Context) error {
		var err error
		body, err = s.transport.GetAttachment(ctx, messageID, attachmentID)
		return err
	})
	return body, err
}

// refreshLabels loads the mailbox's labels with one governed call.
func (s *Service) refreshLabels(ctx context.Context) error {
	var raw []*gmailv1.Label
	err := s.call(ctx, "list_labels", func(ctx context.Context) error {
		var err error
		raw, err = s.transport.ListLabels(ctx)
		return err
	})
	if err != nil {
		return err
	}
	s.labelsMu.Lock()
	defer s.labelsMu.Unlock()
	s.labelsByID = make(map[string]Label, len(raw))
	for _, l := range raw {
		if l == nil {
			continue
		}
		s.labelsByID[l.Id] = Label{
			ID:        l.Id,
			Name:      l.Name,
			Protected: s.guard.IsProtected(l.Name) || s.guard.IsProtected(l.Id),
		}
	}
	return nil
}

// Labels returns the cached labels, sorted by name.
func (s *Service) Labels() []Label {
	s.labelsMu.RLock()
	defer s.labelsMu.RUnlock()
	out := make([]Label, 0, len(s.labelsByID))
	for _, l := range s.labelsByID {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LabelByName looks up a cached label case-insensitively.
func (s *Service) LabelByName(name string) (Label, bool) {
	s.labelsMu.RLock()
	defer s.labelsMu.RUnlock()
	for _, l := range s.labelsByID {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return Label{}, false
}

// CreateLabel creates a label and adds it to the cache. LabelHidden
// keeps it out of the mailbox's label and message lists.
func (s *Service) CreateLabel(ctx context.Context, name string, visibility LabelVisibility) (Label, error) {
	if err := s.awaitReady(ctx); err != nil {
		return Label{}, err
	}
	if strings.TrimSpace(name) == "" {
		return Label{}, &ValidationError{Field: "name", Reason: "label name is required"}
	}
	req := &gmailv1.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}
	if visibility == LabelHidden {
		req.LabelListVisibility = "labelHide"
		req.MessageListVisibility = "hide"
	}
	var created *gmailv1.Label
	err := s.call(ctx, "create_label", func(ctx context.Context) error {
		var err error
		created, err = s.transport.CreateLabel(ctx, req)
		return err
	})
	if err != nil {
		return Label{}, err
	}
	label := Label{ID: created.Id, Name: created.Name, Protected: s.guard.IsProtected(created.Name)}
	s.labelsMu.Lock()
	s.labelsByID[label.ID] = label
	s.labelsMu.Unlock()
	s.logger.Info("label created", logging.Label(label.Name))
	return label, nil
}

// DeleteLabel removes a label by name. Protected labels are rejected
// locally without a remote call.
func (s *Service) DeleteLabel(ctx context.Context, name string) error {
	if err := s.awaitReady(ctx); err != nil {
		return err
	}
	if err := s.guard.CheckMutation(IntentRemoveLabel, name); err != nil {
		return err
	}
	label, ok := s.LabelByName(name)
	if !ok {
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("unknown label %q", name)}
	}
	err := s.call(ctx, "delete_label", func(ctx context.Context) error {
		return s.transport.DeleteLabel(ctx, label.ID)
	})
	if err != nil {
		return err
	}
	s.labelsMu.Lock()
	delete(s.labelsByID, label.ID)
	s.labelsMu.Unlock()
	s.logger.Info("label deleted", logging.Label(name))
	return nil
}

// GetEmailOptions shapes a GetEmails traversal. The zero value lists
// unread inbox messages with full link harvesting.
type GetEmailOptions struct {
	// Query is the server-side search string. Empty means DefaultQuery
	// unless a Filter supplies its own terms.
	Query    string
	LabelIDs []string
	// MaxResults caps the messages retrieved; zero means no cap.
	MaxResults int64
	// Filter narrows results further. Its server-side terms extend the
	// query; its local criteria are applied after parsing.
	Filter *FilterSpec
	// LinkType selects summaries-only (basic) or full per-message detail.
	LinkType LinkType
	// Raw skips parsing and returns the raw envelopes as fetched.
	Raw bool
}

func (o GetEmailOptions) effectiveQuery() string {
	terms := make([]string, 0, 2)
	if o.Query != "" {
		terms = append(terms, o.Query)
	}
	if o.Filter != nil {
		if q := o.Filter.QueryString(); q != "" {
			terms = append(terms, q)
		}
	}
	if len(terms) == 0 {
		return DefaultQuery
	}
	return strings.Join(terms, " ")
}

// GetEmails lists messages matching the options. With LinkTypeFull each
// summary is followed by a governed detail fetch and parse; with
// LinkTypeBasic only the summaries are returned. Each message's outcome
// is reported independently: a malformed envelope yields a MessageResult
// with Err set and never aborts the batch. When the call budget runs out
// mid-traversal the results gathered so far are returned together with
// the QuotaExceededError.
func (s *Service) GetEmails(ctx context.Context, opts GetEmailOptions) ([]MessageResult, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}
	if opts.LinkType == LinkTypeBasic && opts.Filter != nil && opts.Filter.NeedsLocalEvaluation() {
		return nil, &ValidationError{
			Field:  "filter",
			Reason: "isRead and hasAttachment criteria require the full link type",
		}
	}
	query := opts.effectiveQuery()
	s.logger.Info("fetching messages", slog.String(logging.KeyQuery, query))

	pager := NewPaginator(s.transport, s.gov, s.logger, query, opts.LabelIDs, opts.MaxResults)
	var results []MessageResult
	err := pager.Foreach(ctx, func(sum Summary) error {
		if opts.LinkType == LinkTypeBasic {
			results = append(results, MessageResult{Summary: sum})
			return nil
		}
		res, err := s.fetchOne(ctx, sum, opts)
		if err != nil {
			return err
		}
		if res != nil {
			results = append(results, *res)
		}
		return nil
	})
	return results, err
}

// fetchOne retrieves and parses one message. It returns (nil, nil) when
// the message is valid but fails the local filter criteria; a quota or
// transport failure on the fetch itself propagates as the error.
func (s *Service) fetchOne(ctx context.Context, sum Summary, opts GetEmailOptions) (*MessageResult, error) {
	var raw *gmailv1.Message
	err := s.call(ctx, "get_message", func(ctx context.Context) error {
		var err error
		raw, err = s.transport.GetMessage(ctx, sum.ID)
		return err
	})
	if err != nil {
		var qe *governor.QuotaExceededError
		if errors.As(err, &qe) {
			return nil, err
		}
		var te *TransportError
		if errors.As(err, &te) {
			return &MessageResult{Summary: sum, Err: err}, nil
		}
		return nil, err
	}
	if opts.Raw {
		return &MessageResult{Summary: sum, Raw: raw}, nil
	}

	msg, perr := s.parser.Parse(raw)
	if perr != nil {
		if s.warnings {
			s.logger.Warn("skipping malformed message",
				logging.MessageID(sum.ID), logging.Err(perr))
		}
		return &MessageResult{Summary: sum, Raw: raw, Err: perr}, nil
	}
	if opts.Filter != nil && !opts.Filter.Matches(msg) {
		return nil, nil
	}
	return &MessageResult{Summary: sum, Message: msg, Raw: raw}, nil
}

// ReadEmail fetches and parses one message by id. With markAsRead the
// UNREAD label is removed remotely and the local copy patched.
func (s *Service) ReadEmail(ctx context.Context, id string, markAsRead bool) (*Message, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}
	var raw *gmailv1.Message
	err := s.call(ctx, "get_message", func(ctx context.Context) error {
		var err error
		raw, err = s.transport.GetMessage(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	msg, err := s.parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	if markAsRead && !msg.IsRead() {
		if err := s.MarkRead(ctx, msg); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

// modify applies a label mutation remotely and patches the local message
// only after the remote write succeeded. Removals are guard-checked
// first, so a protected label costs zero remote calls.
func (s *Service) modify(ctx context.Context, m *Message, addLabelIDs, removeLabelIDs []string) error {
	if err := s.awaitReady(ctx); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return &ValidationError{Field: "message", Reason: "message with an id is required"}
	}
	if err := s.guard.CheckMutation(IntentRemoveLabel, removeLabelIDs...); err != nil {
		return err
	}
	err := s.call(ctx, "modify_message", func(ctx context.Context) error {
		return s.transport.ModifyMessage(ctx, m.ID, addLabelIDs, removeLabelIDs)
	})
	if err != nil {
		return err
	}
	for _, l := range addLabelIDs {
		m.addLabel(l)
	}
	for _, l := range removeLabelIDs {
		m.removeLabel(l)
	}
	return nil
}

// MarkRead removes the UNREAD label.
func (s *Service) MarkRead(ctx context.Context, m *Message) error {
	if m != nil && m.IsRead() {
		return nil
	}
	if err := s.modify(ctx, m, nil, []string{LabelUnread}); err != nil {
		return err
	}
	m.Track(StatusRead)
	return nil
}

// MarkUnread restores the UNREAD label.
func (s *Service) MarkUnread(ctx context.Context, m *Message) error {
	if m != nil && !m.IsRead() {
		return nil
	}
	return s.modify(ctx, m, []string{LabelUnread}, nil)
}

// AddLabel attaches a label to a message.
func (s *Service) AddLabel(ctx context.Context, m *Message, labelID string) error {
	return s.modify(ctx, m, []string{labelID}, nil)
}

// RemoveLabel detaches a label from a message. Protected labels are
// rejected locally.
func (s *Service) RemoveLabel(ctx context.Context, m *Message, labelID string) error {
	return s.modify(ctx, m, nil, []string{labelID})
}

// MoveToFolder swaps the message out of the inbox into the named label,
// creating the label first when the mailbox does not have it yet.
func (s *Service) MoveToFolder(ctx context.Context, m *Message, folder string) error {
	if err := s.awaitReady(ctx); err != nil {
		return err
	}
	label, ok := s.LabelByName(folder)
	if !ok {
		var err error
		label, err = s.CreateLabel(ctx, folder, LabelVisible)
		if err != nil {
			return err
		}
	}
	var remove []string
	if m != nil && m.HasLabel(LabelInbox) {
		remove = []string{LabelInbox}
	}
	if err := s.modify(ctx, m, []string{label.ID}, remove); err != nil {
		return err
	}
	m.Track(StatusMoved)
	s.logger.Info("message moved",
		logging.MessageID(m.ID), logging.Label(label.Name))
	return nil
}

// CreateEmailDraft validates and stores a draft without sending it.
func (s *Service) CreateEmailDraft(ctx context.Context, email OutgoingEmail) (string, error) {
	if err := s.awaitReady(ctx); err != nil {
		return "", err
	}
	if err := email.validate(s.logger, s.warnings); err != nil {
		return "", err
	}
	raw, err := email.encodeRaw()
	if err != nil {
		return "", err
	}
	var draftID string
	err = s.call(ctx, "create_draft", func(ctx context.Context) error {
		var err error
		draftID, err = s.transport.CreateDraft(ctx, raw)
		return err
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("draft created", slog.String("draft_id", draftID))
	return draftID, nil
}

// CreateEmail validates, builds, and sends a message, returning the sent
// message id.
func (s *Service) CreateEmail(ctx context.Context, email OutgoingEmail) (string, error) {
	if err := s.awaitReady(ctx); err != nil {
		return "", err
	}
	if err := email.validate(s.logger, s.warnings); err != nil {
		return "", err
	}
	raw, err := email.encodeRaw()
	if err != nil {
		return "", err
	}
	return s.sendRaw(ctx, raw, email.ThreadID)
}

// SendEmail sends an already-encoded raw message.
func (s *Service) SendEmail(ctx context.Context, raw string, threadID string) (string, error) {
	if err := s.awaitReady(ctx); err != nil {
		return "", err
	}
	if raw == "" {
		return "", &ValidationError{Field: "raw", Reason: "encoded message is required"}
	}
	return s.sendRaw(ctx, raw, threadID)
}

func (s *Service) sendRaw(ctx context.Context, raw, threadID string) (string, error) {
	var id string
	err := s.call(ctx, "send_message", func(ctx context.Context) error {
		var err error
		id, err = s.transport.SendMessage(ctx, raw, threadID)
		return err
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("message sent", logging.MessageID(id))
	return id, nil
}

// DeleteEmail permanently deletes a message. A message carrying any
// protected label is rejected locally with zero remote calls.
func (s *Service) DeleteEmail(ctx context.Context, m *Message) error {
	if err := s.awaitReady(ctx); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return &ValidationError{Field: "message", Reason: "message with an id is required"}
	}
	if err := s.guard.CheckMessage(IntentDeleteMessage, m); err != nil {
		return err
	}
	err := s.call(ctx, "delete_message", func(ctx context.Context) error {
		return s.transport.DeleteMessage(ctx, m.ID)
	})
	if err != nil {
		return err
	}
	m.Track(StatusDeleted)
	s.logger.Info("message deleted", logging.MessageID(m.ID))
	return nil
}

// EmptyTrash permanently deletes every message in the trash, one
// governed call per message plus the listing pages. It returns how many
// messages were deleted; on quota exhaustion that count is partial and
// accompanies the error. When the trash label itself is protected the
// whole operation is rejected with zero remote calls.
func (s *Service) EmptyTrash(ctx context.Context) (int, error) {
	if err := s.awaitReady(ctx); err != nil {
		return 0, err
	}
	if err := s.guard.CheckMutation(IntentEmptyTrash, LabelTrash); err != nil {
		return 0, err
	}

	deleted := 0
	pager := NewPaginator(s.transport, s.gov, s.logger, "", []string{LabelTrash}, 0)
	err := pager.Foreach(ctx, func(sum Summary) error {
		err := s.call(ctx, "delete_message", func(ctx context.Context) error {
			return s.transport.DeleteMessage(ctx, sum.ID)
		})
		if err != nil {
			return err
		}
		deleted++
		return nil
	})
	s.logger.Info("trash emptied",
		slog.Int("deleted", deleted), logging.Err(err))
	return deleted, err
}

// ActionResult reports the outcome of a filter action on one message.
type ActionResult struct {
	MessageID string
	Matched   bool
	Err       error
}

// ApplyFilterAction evaluates the filter against each message and
// applies its label action to the matches. Outcomes are per message; a
// failure on one message does not stop the rest, except quota
// exhaustion, which ends the batch with the partial results intact.
func (s *Service) ApplyFilterAction(ctx context.Context, spec *FilterSpec, messages []*Message) ([]ActionResult, error) {
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, &ValidationError{Field: "filter", Reason: "filter spec is required"}
	}
	action := spec.Action()
	results := make([]ActionResult, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		res := ActionResult{MessageID: m.ID}
		if spec.Matches(m) {
			res.Matched = true
			res.Err = s.modify(ctx, m, action.AddLabelIDs, action.RemoveLabelIDs)
			var qe *governor.QuotaExceededError
			if errors.As(res.Err, &qe) {
				results = append(results, res)
				return results, res.Err
			}
		}
		results = append(results, res)
	}
	return results, nil
}
