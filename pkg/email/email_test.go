package email

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"go-panelworks-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *SMTPService {
	return NewSMTPService(&config.Config{
		SMTPHost:  "smtp.example.com",
		SMTPPort:  "587",
		EmailUser: "relay@apexpanelworks.com.au",
		EmailPass: "secret",
	})
}

func testMessage() *Message {
	return &Message{
		FromName: "Jane Citizen",
		ReplyTo:  "jane@example.com",
		To:       "mechanical@apexpanelworks.com.au",
		Bcc:      []string{"admin@apexpanelworks.com.au"},
		Subject:  "New Contact Form Submission - Mechanical",
		TextBody: "Name: Jane Citizen\r\n",
		HTMLBody: "<p>Jane Citizen</p>",
	}
}

func TestIsConfigured(t *testing.T) {
	assert.True(t, testService().IsConfigured())

	empty := NewSMTPService(&config.Config{SMTPHost: "smtp.example.com"})
	assert.False(t, empty.IsConfigured())
}

func TestComposeHeaders(t *testing.T) {
	raw, err := testService().compose(testMessage())
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "Jane Citizen <relay@apexpanelworks.com.au>", parsed.Header.Get("From"))
	assert.Equal(t, "mechanical@apexpanelworks.com.au", parsed.Header.Get("To"))
	assert.Equal(t, "jane@example.com", parsed.Header.Get("Reply-To"))
	assert.Equal(t, "New Contact Form Submission - Mechanical", parsed.Header.Get("Subject"))
	assert.Equal(t, "1.0", parsed.Header.Get("MIME-Version"))

	// Bcc goes on the envelope only, never into the headers
	assert.Empty(t, parsed.Header.Get("Bcc"))
	assert.NotContains(t, string(raw), "admin@apexpanelworks.com.au")
}

func TestComposeRejectsHeaderInjectionViaReplyTo(t *testing.T) {
	msg := testMessage()
	msg.ReplyTo = "jane@example.com\r\nBcc: attacker@evil.example"

	raw, err := testService().compose(msg)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	// The CR/LF must not split the header block into a smuggled Bcc line
	assert.Empty(t, parsed.Header.Get("Bcc"))
	assert.NotContains(t, string(raw), "\r\nBcc:")
	assert.NotContains(t, parsed.Header.Get("Reply-To"), "\n")
}

func TestComposeAlternativeBodies(t *testing.T) {
	raw, err := testService().compose(testMessage())
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])

	textPart, err := reader.NextPart()
	require.NoError(t, err)
	assert.Contains(t, textPart.Header.Get("Content-Type"), "text/plain")
	textBody, _ := io.ReadAll(textPart)
	assert.Equal(t, "Name: Jane Citizen\r\n", string(textBody))

	htmlPart, err := reader.NextPart()
	require.NoError(t, err)
	assert.Contains(t, htmlPart.Header.Get("Content-Type"), "text/html")
	htmlBody, _ := io.ReadAll(htmlPart)
	assert.Equal(t, "<p>Jane Citizen</p>", string(htmlBody))
}

func TestComposeWithAttachments(t *testing.T) {
	msg := testMessage()
	msg.Attachments = []Attachment{
		{Filename: "damage1.jpg", ContentType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01}},
		{Filename: "quote.pdf", ContentType: "application/pdf", Data: bytes.Repeat([]byte{0x25, 0x50}, 100)},
	}

	raw, err := testService().compose(msg)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])

	// First part is the text+HTML alternative pair
	first, err := reader.NextPart()
	require.NoError(t, err)
	assert.Contains(t, first.Header.Get("Content-Type"), "multipart/alternative")

	// Then exactly the attachments, byte for byte
	for i, want := range msg.Attachments {
		part, err := reader.NextPart()
		require.NoError(t, err, "attachment %d missing", i)

		assert.Contains(t, part.Header.Get("Content-Type"), want.ContentType)
		assert.Contains(t, part.Header.Get("Content-Disposition"), want.Filename)
		assert.Equal(t, "base64", part.Header.Get("Content-Transfer-Encoding"))

		encoded, err := io.ReadAll(part)
		require.NoError(t, err)
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
		require.NoError(t, err)
		assert.Equal(t, want.Data, decoded, "attachment %d bytes differ", i)
	}

	_, err = reader.NextPart()
	assert.Equal(t, io.EOF, err, "unexpected extra MIME part")
}

func TestComposeDefaultsAttachmentContentType(t *testing.T) {
	msg := testMessage()
	msg.Attachments = []Attachment{{Filename: "mystery.bin", Data: []byte{0x00, 0x01}}}

	raw, err := testService().compose(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "application/octet-stream")
}

func TestComposeEncodesUnicodeSubject(t *testing.T) {
	msg := testMessage()
	msg.Subject = "Přívěs repair enquiry"

	raw, err := testService().compose(msg)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Přívěs repair enquiry", subject)
}
