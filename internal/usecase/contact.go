package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go-panelworks-backend/config"
	"go-panelworks-backend/internal/domain"
	"go-panelworks-backend/pkg/email"
	"go-panelworks-backend/pkg/logger"
	"go-panelworks-backend/pkg/security"

	"github.com/google/uuid"
)

type contactUsecase struct {
	sender email.Sender
	outbox domain.OutboxRepository // nil disables persistence
	cfg    *config.Config
}

// NewContactUsecase creates the contact dispatch usecase. Pass a nil outbox
// repository for fire-and-forget dispatch (the default deployment).
func NewContactUsecase(sender email.Sender, outbox domain.OutboxRepository, cfg *config.Config) domain.ContactUsecase {
	return &contactUsecase{
		sender: sender,
		outbox: outbox,
		cfg:    cfg,
	}
}

// Route maps a service category to its workshop mailbox. Exact,
// case-sensitive match; every unrecognized value (misspellings, empty
// string) falls through to the panel beating inbox. The observer is
// blind-copied on every dispatch regardless of category.
func (uc *contactUsecase) Route(service string) domain.RoutingDecision {
	recipient := uc.cfg.ContactPanelBeating
	switch service {
	case domain.ServicePanelBeating:
		recipient = uc.cfg.ContactPanelBeating
	case domain.ServiceMechanical:
		recipient = uc.cfg.ContactMechanical
	case domain.ServiceCaravanBoat:
		recipient = uc.cfg.ContactCaravanBoat
	}
	return domain.RoutingDecision{
		Recipient: recipient,
		Observer:  uc.cfg.ContactObserver,
	}
}

// Dispatch relays the submission as an email to its routed mailbox. The
// credential check runs before any message is composed. Exactly one send
// attempt is made here; when the outbox is enabled a failed send is parked
// for the background worker, but this request still reports failure.
func (uc *contactUsecase) Dispatch(ctx context.Context, sub *domain.ContactSubmission) error {
	if !uc.sender.IsConfigured() {
		return domain.ErrMailNotConfigured
	}

	decision := uc.Route(sub.Service)
	msg, err := buildMessage(sub, decision)
	if err != nil {
		return fmt.Errorf("failed to compose contact email: %w", err)
	}

	var entryID string
	if uc.outbox != nil {
		entry := &domain.OutboxEntry{
			ID:         uuid.NewString(),
			Submission: *sub,
			Status:     domain.OutboxPending,
		}
		if err := uc.outbox.Create(ctx, entry); err != nil {
			// Persistence is best-effort protection, not a gate: a broken
			// outbox store must not take the contact form down with it.
			logger.Log.Error("failed to persist submission to outbox", "error", err)
		} else {
			entryID = entry.ID
		}
	}

	if err := uc.sender.Send(ctx, msg); err != nil {
		logger.Log.Error("contact dispatch failed",
			"service", sub.Service, "recipient", decision.Recipient, "error", err)
		if entryID != "" {
			next := time.Now().Add(time.Duration(uc.cfg.OutboxRetrySeconds) * time.Second)
			if mErr := uc.outbox.MarkFailed(ctx, entryID, err.Error(), next); mErr != nil {
				logger.Log.Error("failed to mark outbox entry failed", "id", entryID, "error", mErr)
			}
		}
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}

	if entryID != "" {
		if err := uc.outbox.MarkSent(ctx, entryID); err != nil {
			logger.Log.Error("failed to mark outbox entry sent", "id", entryID, "error", err)
		}
	}

	logger.Log.Info("contact submission dispatched",
		"service", sub.Service, "recipient", decision.Recipient, "attachments", len(sub.Attachments))
	return nil
}

// contactEmailTemplate renders the HTML body. html/template escapes every
// interpolated field, so hostile form input cannot inject markup into the
// recipient's mail client.
const contactEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New Contact Form Submission</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #b91c1c; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9f9f9; }
        .field { margin-bottom: 15px; }
        .label { font-weight: bold; color: #555; }
        .value { margin-top: 5px; }
        .message-box { background: white; padding: 15px; border-left: 4px solid #b91c1c; margin-top: 10px; }
        .footer { text-align: center; padding: 20px; color: #888; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>New Contact Form Submission</h1>
        </div>
        <div class="content">
            <div class="field">
                <div class="label">Name:</div>
                <div class="value">{{.Name}}</div>
            </div>
            <div class="field">
                <div class="label">Email:</div>
                <div class="value">{{.Email}}</div>
            </div>
            <div class="field">
                <div class="label">Phone:</div>
                <div class="value">{{.Phone}}</div>
            </div>
            <div class="field">
                <div class="label">Vehicle Registration:</div>
                <div class="value">{{.VehicleReg}}</div>
            </div>
            <div class="field">
                <div class="label">Service:</div>
                <div class="value">{{.Service}}</div>
            </div>
            <div class="field">
                <div class="label">Message:</div>
                <div class="message-box">{{.Message}}</div>
            </div>
        </div>
        <div class="footer">
            <p>This email was sent from the Apex Panel Works website contact form.</p>
            <p>To reply, send an email to: {{.Email}}</p>
        </div>
    </div>
</body>
</html>`

var htmlTmpl = template.Must(template.New("contact").Parse(contactEmailTemplate))

// buildMessage turns a submission and its routing decision into a ready
// email. Text body carries fields verbatim; HTML body carries them escaped.
// Attachments are passed through byte-for-byte with a sniffed Content-Type.
func buildMessage(sub *domain.ContactSubmission, decision domain.RoutingDecision) (*email.Message, error) {
	var html bytes.Buffer
	if err := htmlTmpl.Execute(&html, sub); err != nil {
		return nil, err
	}

	text := fmt.Sprintf(
		"New contact form submission\r\n"+
			"\r\n"+
			"Name: %s\r\n"+
			"Email: %s\r\n"+
			"Phone: %s\r\n"+
			"Vehicle Registration: %s\r\n"+
			"Service: %s\r\n"+
			"\r\n"+
			"Message:\r\n"+
			"%s\r\n",
		sub.Name, sub.Email, sub.Phone, sub.VehicleReg, sub.Service, sub.Message,
	)

	attachments := make([]email.Attachment, 0, len(sub.Attachments))
	for _, att := range sub.Attachments {
		contentType := security.DetectContentType(att.Data)
		if w, h, ok := security.ImageDimensions(att.Data); ok {
			logger.Log.Debug("contact attachment received",
				"filename", att.Filename, "content_type", contentType, "width", w, "height", h)
		}
		attachments = append(attachments, email.Attachment{
			Filename:    att.Filename,
			ContentType: contentType,
			Data:        att.Data,
		})
	}

	return &email.Message{
		FromName:    sub.Name,
		ReplyTo:     sub.Email,
		To:          decision.Recipient,
		Bcc:         []string{decision.Observer},
		Subject:     fmt.Sprintf("New Contact Form Submission - %s", sub.Service),
		TextBody:    text,
		HTMLBody:    html.String(),
		Attachments: attachments,
	}, nil
}
