package v1

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go-panelworks-backend/config"
	"go-panelworks-backend/internal/delivery/http/response"
	"go-panelworks-backend/internal/domain"
	"go-panelworks-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contactUC      domain.ContactUsecase
	maxAttachments int
	maxUploadBytes int64
}

// NewContactHandler registers the contact route (public, no auth required).
// Extra middleware (rate limiting) is applied by the caller.
func NewContactHandler(public *gin.RouterGroup, contactUC domain.ContactUsecase, cfg *config.Config, extra ...gin.HandlerFunc) {
	handler := &ContactHandler{
		contactUC:      contactUC,
		maxAttachments: cfg.MaxAttachments,
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	handlers := append(extra, handler.SubmitContact)
	public.POST("/contact", handlers...)
}

// SubmitContact accepts a contact-form submission as multipart/form-data
// (fields plus up to the configured number of photo attachments under the
// "images" field) or as a bare JSON body, then dispatches it by email to
// the routed workshop mailbox.
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	var sub domain.ContactSubmission

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := h.bindMultipart(c, &sub); err != nil {
			c.Error(apperror.UploadParse(err))
			return
		}
	} else {
		if err := c.ShouldBindJSON(&sub); err != nil {
			c.Error(apperror.UploadParse(err))
			return
		}
	}

	if err := h.contactUC.Dispatch(c.Request.Context(), &sub); err != nil {
		switch {
		case errors.Is(err, domain.ErrMailNotConfigured):
			c.Error(apperror.MissingMailConfig())
		case errors.Is(err, domain.ErrDispatchFailed):
			c.Error(apperror.Dispatch(err))
		default:
			c.Error(apperror.Internal(err))
		}
		return
	}

	response.Success(c, http.StatusOK, "Email sent successfully")
}

// bindMultipart extracts form fields and attachments. Fields are free text
// and accepted verbatim; absent fields become empty strings. The only
// rejection causes are a malformed body, an oversized payload, or too many
// file parts.
func (h *ContactHandler) bindMultipart(c *gin.Context, sub *domain.ContactSubmission) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		return err
	}

	sub.Name = formValue(form, "name")
	sub.Email = formValue(form, "email")
	sub.Phone = formValue(form, "phone")
	sub.VehicleReg = formValue(form, "vehicleReg")
	sub.Service = formValue(form, "service")
	sub.Message = formValue(form, "message")

	files := form.File["images"]
	if len(files) > h.maxAttachments {
		return fmt.Errorf("%w: got %d, limit %d", domain.ErrTooManyAttachments, len(files), h.maxAttachments)
	}

	for _, fh := range files {
		data, err := readFilePart(fh)
		if err != nil {
			return err
		}
		sub.Attachments = append(sub.Attachments, domain.Attachment{
			Filename: fh.Filename,
			Data:     data,
		})
	}
	return nil
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func readFilePart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
