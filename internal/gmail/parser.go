package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/gmailward/gmailward/internal/logging"
)

// MaxAttachmentSize caps attachment downloads (25MB, the Gmail limit).
const MaxAttachmentSize = 25 * 1024 * 1024

// Parser decodes raw message envelopes into Message entities.
type Parser struct {
	html       HTMLExtractor
	logger     *slog.Logger
	warnings   bool
	getContent func(ctx context.Context, messageID, attachmentID string) (*gmailv1.MessagePartBody, error)
}

// NewParser creates a parser. getContent resolves attachment bytes on
// demand; it may be nil when lazily loaded attachments are not needed.
func NewParser(html HTMLExtractor, logger *slog.Logger, warnings bool,
	getContent func(ctx context.Context, messageID, attachmentID string) (*gmailv1.MessagePartBody, error)) *Parser {
	if html == nil {
		html = NewHTMLExtractor()
	}
	return &Parser{
		html:       html,
		logger:     logging.OrNop(logger),
		warnings:   warnings,
		getContent: getContent,
	}
}

// Parse decodes a raw envelope. It fails only on structurally malformed
// envelopes; an empty body or zero attachments is a valid result.
func (p *Parser) Parse(raw *gmailv1.Message) (*Message, error) {
	if raw == nil {
		return nil, &ParseError{Reason: "nil envelope"}
	}
	if raw.Payload == nil {
		return nil, &ParseError{MessageID: raw.Id, Reason: "envelope has no payload"}
	}
	if len(raw.Payload.Parts) == 0 && !knownMimeType(raw.Payload.MimeType) {
		return nil, &ParseError{
			MessageID: raw.Id,
			Reason:    fmt.Sprintf("unknown top-level content type %q", raw.Payload.MimeType),
		}
	}

	m := &Message{
		ID:        raw.Id,
		ThreadID:  raw.ThreadId,
		Labels:    append([]string(nil), raw.LabelIds...),
		Headers:   p.decodeHeaders(raw.Payload.Headers),
		SizeBytes: raw.SizeEstimate,
	}
	m.Track(StatusNew)

	if date := m.Headers["Date"]; date != "" {
		if parsed, err := mail.ParseDate(date); err == nil {
			m.Date = parsed
		} else if p.warnings {
			p.logger.Warn("failed to parse Date header, leaving zero",
				logging.MessageID(m.ID), logging.Err(err))
		}
	}

	walkParts(raw.Payload, func(part *gmailv1.MessagePart) {
		switch {
		case part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "":
			m.Attachments = append(m.Attachments, p.attachment(m.ID, part))
		case part.MimeType == "text/plain" && m.BodyText == "":
			if text, err := decodeBody(part); err == nil {
				m.BodyText = text
			}
		case part.MimeType == "text/html" && m.BodyHTML == "":
			if text, err := decodeBody(part); err == nil {
				m.BodyHTML = text
			}
		}
	})

	// Fall back to sanitized HTML text when no plain part exists.
	if m.BodyText == "" && m.BodyHTML != "" {
		text, err := p.html.Text(m.BodyHTML)
		if err != nil {
			if p.warnings {
				p.logger.Warn("html extraction failed, body_text left empty",
					logging.MessageID(m.ID), logging.Err(err))
			}
		} else {
			m.BodyText = text
		}
	}

	m.Links = HarvestLinks(m.BodyText, m.BodyHTML)
	return m, nil
}

// MessageResult pairs one batch entry with its parse outcome so a bad
// envelope never aborts the whole batch.
type MessageResult struct {
	Summary Summary
	Message *Message
	Raw     *gmailv1.Message
	Err     error
}

// decodeHeaders builds the header map, decoding RFC 2047 encoded words.
// Undecodable headers fall back to the raw value.
func (p *Parser) decodeHeaders(headers []*gmailv1.MessagePartHeader) map[string]string {
	dec := &mime.WordDecoder{}
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		if h == nil {
			continue
		}
		value := h.Value
		if decoded, err := dec.DecodeHeader(h.Value); err == nil {
			value = decoded
		} else if p.warnings {
			p.logger.Warn("falling back to raw header value",
				slog.String("header", h.Name), logging.Err(err))
		}
		// First occurrence wins; Gmail repeats Received and similar headers.
		if _, seen := out[h.Name]; !seen {
			out[h.Name] = value
		}
	}
	return out
}

func (p *Parser) attachment(messageID string, part *gmailv1.MessagePart) *Attachment {
	a := &Attachment{
		MessageID:    messageID,
		PartID:       part.PartId,
		AttachmentID: part.Body.AttachmentId,
		Filename:     part.Filename,
		MimeType:     part.MimeType,
		SizeBytes:    part.Body.Size,
	}
	if p.getContent != nil {
		attachmentID := part.Body.AttachmentId
		a.fetch = func(ctx context.Context) ([]byte, error) {
			body, err := p.getContent(ctx, messageID, attachmentID)
			if err != nil {
				return nil, err
			}
			if body.Size > MaxAttachmentSize {
				return nil, fmt.Errorf("attachment size %d exceeds maximum %d", body.Size, MaxAttachmentSize)
			}
			return decodeBase64(body.Data)
		}
	}
	return a
}

// walkParts recursively visits a message part tree.
func walkParts(part *gmailv1.MessagePart, fn func(*gmailv1.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

func decodeBody(part *gmailv1.MessagePart) (string, error) {
	if part.Body == nil || part.Body.Data == "" {
		return "", nil
	}
	data, err := decodeBase64(part.Body.Data)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeBase64 decodes base64url data, retrying with standard base64 as
// some payloads arrive in either alphabet.
func decodeBase64(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	decoded, stdErr := base64.StdEncoding.DecodeString(data)
	if stdErr != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return decoded, nil
}

func knownMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || strings.HasPrefix(mimeType, "multipart/")
}
