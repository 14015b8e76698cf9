package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Content sources recorded in record metadata.
const (
	contentFromText    = "text/plain"
	contentFromSubject = "subject"
	contentNone        = "none"
)

// parsedMessage is the decoded view of one RFC 5322 message.
type parsedMessage struct {
	Subject   string
	From      string
	To        string
	Cc        string
	Date      string
	MessageID string

	// Content is the primary text: the first non-attachment text/plain
	// part, or the subject when no text body exists.
	Content       string
	ContentSource string
	Charset       string
}

// parseMessage decodes headers and selects the primary text body.
// Charset and transfer encoding problems are tolerated; a structurally
// unreadable message is an error.
func parseMessage(raw []byte) (*parsedMessage, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !isRecoverable(err) {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	if entity == nil {
		return nil, errors.New("reading message: no entity")
	}

	h := mail.Header{Header: entity.Header}
	msg := &parsedMessage{
		Subject: headerText(h, "Subject"),
		From:    headerText(h, "From"),
		To:      headerText(h, "To"),
		Cc:      headerText(h, "Cc"),
	}
	if id, err := h.MessageID(); err == nil {
		msg.MessageID = id
	}
	if d, err := h.Date(); err == nil && !d.IsZero() {
		msg.Date = d.UTC().Format(time.RFC3339)
	} else {
		msg.Date = clean(h.Get("Date"))
	}

	body, charset, found := findPlainText(entity)
	switch {
	case found && strings.TrimSpace(body) != "":
		msg.Content = body
		msg.ContentSource = contentFromText
		msg.Charset = charset
	case msg.Subject != "":
		msg.Content = msg.Subject
		msg.ContentSource = contentFromSubject
	default:
		msg.ContentSource = contentNone
	}

	return msg, nil
}

// headerText decodes RFC 2047 encoded words, falling back to the raw value.
func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return clean(v)
	}
	return clean(h.Get(key))
}

// findPlainText walks the entity in document order and returns the first
// text/plain part not marked as an attachment.
func findPlainText(e *message.Entity) (string, string, bool) {
	if mr := e.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !isRecoverable(err) {
				break
			}
			if part == nil {
				break
			}
			if body, charset, ok := findPlainText(part); ok {
				return body, charset, true
			}
		}
		return "", "", false
	}

	mediaType, params, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}
	if !strings.EqualFold(mediaType, "text/plain") {
		return "", "", false
	}
	if disp, _, err := e.Header.ContentDisposition(); err == nil && strings.EqualFold(disp, "attachment") {
		return "", "", false
	}

	raw, err := io.ReadAll(e.Body)
	if err != nil && len(raw) == 0 {
		return "", "", false
	}

	charset := strings.ToLower(params["charset"])
	if charset == "" {
		charset = "utf-8"
	}
	return clean(string(raw)), charset, true
}

func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// clean replaces invalid UTF-8 so payload text is always a valid string.
func clean(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
