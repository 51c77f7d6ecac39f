package gmail

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"strings"
)

// OutgoingAttachment is a file to attach to an outgoing message.
type OutgoingAttachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// OutgoingEmail is the caller-facing shape of a message to draft or send.
type OutgoingEmail struct {
	To      []string
	CC      []string
	BCC     []string
	Subject string
	Body    string
	// HTMLBody, when set, is sent as a text/html alternative.
	HTMLBody    string
	Attachments []OutgoingAttachment
	// ThreadID threads the message into an existing conversation.
	ThreadID string
}

// validate checks the recipient lists. At least one valid To address is
// required; invalid CC and BCC entries are dropped with a warning rather
// than failing the whole message.
func (e *OutgoingEmail) validate(logger *slog.Logger, warnings bool) error {
	if len(e.To) == 0 {
		return &ValidationError{Field: "to", Reason: "at least one recipient is required"}
	}
	for _, addr := range e.To {
		if _, err := mail.ParseAddress(addr); err != nil {
			return &ValidationError{Field: "to", Reason: fmt.Sprintf("address %q: %v", addr, err)}
		}
	}
	e.CC = dropInvalidAddresses(e.CC, "cc", logger, warnings)
	e.BCC = dropInvalidAddresses(e.BCC, "bcc", logger, warnings)
	return nil
}

func dropInvalidAddresses(addrs []string, field string, logger *slog.Logger, warnings bool) []string {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if _, err := mail.ParseAddress(addr); err != nil {
			if warnings {
				logger.Warn("dropping invalid address",
					slog.String("field", field),
					slog.String("address", addr))
			}
			continue
		}
		out = append(out, addr)
	}
	return out
}

// encodeRaw assembles the RFC 2822 message and base64url-encodes it the
// way the send endpoint expects.
func (e *OutgoingEmail) encodeRaw() (string, error) {
	var msg strings.Builder

	msg.WriteString("To: " + strings.Join(e.To, ", ") + "\r\n")
	if len(e.CC) > 0 {
		msg.WriteString("Cc: " + strings.Join(e.CC, ", ") + "\r\n")
	}
	if len(e.BCC) > 0 {
		msg.WriteString("Bcc: " + strings.Join(e.BCC, ", ") + "\r\n")
	}
	msg.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", e.Subject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case len(e.Attachments) > 0:
		if err := e.writeMultipart(&msg, "multipart/mixed"); err != nil {
			return "", err
		}
	case e.HTMLBody != "":
		if err := e.writeMultipart(&msg, "multipart/alternative"); err != nil {
			return "", err
		}
	default:
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		msg.WriteString(e.Body)
	}

	return base64.URLEncoding.EncodeToString([]byte(msg.String())), nil
}

func (e *OutgoingEmail) writeMultipart(msg *strings.Builder, contentType string) error {
	const boundary = "gmailward-boundary-5c1f9a"
	fmt.Fprintf(msg, "Content-Type: %s; boundary=%q\r\n\r\n", contentType, boundary)

	writePart := func(header, body string) {
		fmt.Fprintf(msg, "--%s\r\n%s\r\n\r\n%s\r\n", boundary, header, body)
	}
	writePart("Content-Type: text/plain; charset=\"UTF-8\"", e.Body)
	if e.HTMLBody != "" {
		writePart("Content-Type: text/html; charset=\"UTF-8\"", e.HTMLBody)
	}
	for _, a := range e.Attachments {
		if int64(len(a.Content)) > MaxAttachmentSize {
			return &ValidationError{
				Field:  "attachments",
				Reason: fmt.Sprintf("%s exceeds the %d byte limit", a.Filename, int64(MaxAttachmentSize)),
			}
		}
		mimeType := a.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		header := fmt.Sprintf("Content-Type: %s\r\nContent-Transfer-Encoding: base64\r\nContent-Disposition: attachment; filename=%q",
			mimeType, a.Filename)
		writePart(header, base64.StdEncoding.EncodeToString(a.Content))
	}
	fmt.Fprintf(msg, "--%s--\r\n", boundary)
	return nil
}
