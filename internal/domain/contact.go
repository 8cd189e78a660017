package domain

import (
	"context"
	"errors"
)

// Recognized service categories. Matching is exact and case-sensitive;
// anything else routes to the default (panel beating) inbox.
const (
	ServicePanelBeating = "Panel Beating"
	ServiceMechanical   = "Mechanical"
	ServiceCaravanBoat  = "Caravan and Boat"
)

var (
	// ErrMailNotConfigured means the SMTP relay credentials are missing.
	// Operational misconfiguration, never retried.
	ErrMailNotConfigured = errors.New("email service is not configured")

	// ErrDispatchFailed means the relay rejected or failed the send.
	ErrDispatchFailed = errors.New("failed to send email")

	// ErrTooManyAttachments means the submission exceeded the attachment cap.
	ErrTooManyAttachments = errors.New("too many attachments")
)

// Attachment is one uploaded file, carried verbatim from the form part to
// the outgoing email.
type Attachment struct {
	Filename string
	Data     []byte
}

// ContactSubmission is one contact-form instance. Request-scoped: built from
// the inbound request, turned into an email, then discarded. Every field is
// free text; no format validation is applied.
type ContactSubmission struct {
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	VehicleReg  string       `json:"vehicleReg"`
	Service     string       `json:"service"`
	Message     string       `json:"message"`
	Attachments []Attachment `json:"-"`
}

// RoutingDecision is the pure outcome of recipient routing: one recipient
// per submission, plus a fixed observer that is blind-copied regardless of
// category.
type RoutingDecision struct {
	Recipient string
	Observer  string
}

// ContactUsecase defines the contact dispatch operations.
type ContactUsecase interface {
	// Dispatch routes the submission and relays it as an email. Exactly one
	// send attempt is made within the request; a failed dispatch is not
	// retried here.
	Dispatch(ctx context.Context, sub *ContactSubmission) error

	// Route maps a service category to its recipient. Total: every input,
	// including the empty string, yields a recipient.
	Route(service string) RoutingDecision
}
