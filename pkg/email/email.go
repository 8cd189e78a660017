// Package email relays composed messages through an authenticated SMTP
// account. Messages carry parallel text and HTML bodies and any number of
// file attachments; delivery is a single blocking SendMail call with no
// retry and no timeout beyond the smtp package's own dial behavior.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"go-panelworks-backend/config"
)

// Attachment is a file carried on an outgoing message. Data is written
// base64-encoded but otherwise untouched.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a fully prepared email. FromName is paired with the relay
// account's authenticated address; the submitter's own address only ever
// appears as Reply-To.
type Message struct {
	FromName    string
	ReplyTo     string
	To          string
	Bcc         []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers a prepared message. Implemented by SMTPService; mocked in
// usecase tests.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	IsConfigured() bool
}

// SMTPService sends mail over an authenticated SMTP relay.
type SMTPService struct {
	host     string
	port     string
	username string
	password string
}

// NewSMTPService builds the relay client from startup configuration. The
// login address doubles as the envelope sender.
func NewSMTPService(cfg *config.Config) *SMTPService {
	return &SMTPService{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.EmailUser,
		password: cfg.EmailPass,
	}
}

// IsConfigured reports whether the relay account is usable.
func (s *SMTPService) IsConfigured() bool {
	return s.host != "" && s.username != "" && s.password != ""
}

// Send composes the MIME message and relays it. Bcc recipients go on the
// envelope only, never into the headers.
func (s *SMTPService) Send(_ context.Context, msg *Message) error {
	raw, err := s.compose(msg)
	if err != nil {
		return fmt.Errorf("failed to compose email: %w", err)
	}

	recipients := append([]string{msg.To}, msg.Bcc...)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.username, recipients, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// compose renders the full RFC 2045 message: top-level multipart/mixed when
// attachments are present, wrapping a multipart/alternative text+HTML pair.
func (s *SMTPService) compose(msg *Message) ([]byte, error) {
	var buf bytes.Buffer

	from := mime.QEncoding.Encode("utf-8", msg.FromName)
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", from, s.username)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	// Reply-To carries the submitter's address verbatim, so it is the one
	// attacker-controlled header value. Stripping CR/LF keeps the value on a
	// single header line and closes off header injection without imposing
	// any address-format validation.
	if replyTo := stripLineBreaks(msg.ReplyTo); replyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", replyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	mixed := multipart.NewWriter(&buf)
	if len(msg.Attachments) > 0 {
		fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

		altHeader := textproto.MIMEHeader{}
		altBuf, altBoundary, err := renderAlternative(msg)
		if err != nil {
			return nil, err
		}
		altHeader.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", altBoundary))
		part, err := mixed.CreatePart(altHeader)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(altBuf); err != nil {
			return nil, err
		}

		for _, att := range msg.Attachments {
			if err := writeAttachment(mixed, att); err != nil {
				return nil, err
			}
		}
		if err := mixed.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	altBuf, altBoundary, err := renderAlternative(msg)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary)
	buf.Write(altBuf)
	return buf.Bytes(), nil
}

var headerLineBreaks = strings.NewReplacer("\r", "", "\n", "")

func stripLineBreaks(s string) string {
	return headerLineBreaks.Replace(s)
}

// renderAlternative produces the text+HTML body pair and its boundary.
func renderAlternative(msg *Message) ([]byte, string, error) {
	var buf bytes.Buffer
	alt := multipart.NewWriter(&buf)

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	part, err := alt.CreatePart(textHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write([]byte(msg.TextBody)); err != nil {
		return nil, "", err
	}

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	part, err = alt.CreatePart(htmlHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, "", err
	}

	if err := alt.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), alt.Boundary(), nil
}

// writeAttachment emits one base64 part, preserving the original filename.
func writeAttachment(w *multipart.Writer, att Attachment) error {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := textproto.MIMEHeader{}
	filename := mime.QEncoding.Encode("utf-8", att.Filename)
	header.Set("Content-Type", fmt.Sprintf("%s; name=%q", contentType, filename))
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(att.Data)
	// RFC 2045 forbids encoded lines over 76 characters
	for len(encoded) > 0 {
		n := min(len(encoded), 76)
		if _, err := part.Write([]byte(encoded[:n])); err != nil {
			return err
		}
		if _, err := part.Write([]byte("\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
