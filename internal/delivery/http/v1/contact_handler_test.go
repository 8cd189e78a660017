package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go-panelworks-backend/config"
	v1 "go-panelworks-backend/internal/delivery/http/v1"
	"go-panelworks-backend/internal/domain"
	"go-panelworks-backend/pkg/logger"
	"go-panelworks-backend/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init()
	os.Exit(m.Run())
}

type MockContactUC struct {
	mock.Mock
}

func (m *MockContactUC) Dispatch(ctx context.Context, sub *domain.ContactSubmission) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockContactUC) Route(service string) domain.RoutingDecision {
	args := m.Called(service)
	return args.Get(0).(domain.RoutingDecision)
}

func testConfig() *config.Config {
	return &config.Config{
		MaxAttachments:         5,
		MaxUploadBytes:         25 << 20,
		RateLimitPerWindow:     1000,
		RateLimitWindowSeconds: 60,
	}
}

func newTestRouter(uc domain.ContactUsecase, cfg *config.Config) *gin.Engine {
	limiter := security.NewSubmissionLimiter(cfg.RateLimitPerWindow, 0)
	return v1.NewRouter(v1.RouterDeps{ContactUC: uc, Limiter: limiter, Config: cfg})
}

// multipartBody builds a contact form body with the given field values and
// file parts under the "images" field.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, data := range files {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSubmitContactMultipart(t *testing.T) {
	uc := new(MockContactUC)
	var captured *domain.ContactSubmission
	uc.On("Dispatch", mock.Anything, mock.AnythingOfType("*domain.ContactSubmission")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.ContactSubmission)
		}).
		Return(nil)

	router := newTestRouter(uc, testConfig())

	body, contentType := multipartBody(t,
		map[string]string{
			"name":       "Jane Citizen",
			"email":      "jane@example.com",
			"phone":      "0412 345 678",
			"vehicleReg": "ABC-123",
			"service":    "Mechanical",
			"message":    "Rear bumper damage from a car park scrape.",
		},
		map[string][]byte{
			"damage1.jpg": {0xFF, 0xD8, 0xFF, 0xE0, 0x10, 0x20},
		},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Email sent successfully", resp["message"])

	require.NotNil(t, captured)
	assert.Equal(t, "Jane Citizen", captured.Name)
	assert.Equal(t, "jane@example.com", captured.Email)
	assert.Equal(t, "0412 345 678", captured.Phone)
	assert.Equal(t, "ABC-123", captured.VehicleReg)
	assert.Equal(t, "Mechanical", captured.Service)
	assert.Equal(t, "Rear bumper damage from a car park scrape.", captured.Message)
	require.Len(t, captured.Attachments, 1)
	assert.Equal(t, "damage1.jpg", captured.Attachments[0].Filename)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x10, 0x20}, captured.Attachments[0].Data)
}

func TestSubmitContactJSON(t *testing.T) {
	uc := new(MockContactUC)
	var captured *domain.ContactSubmission
	uc.On("Dispatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.ContactSubmission)
		}).
		Return(nil)

	router := newTestRouter(uc, testConfig())

	payload := `{"name":"Bob","email":"bob@example.com","phone":"123","vehicleReg":"XYZ-999","service":"Panel Beating","message":"Hail damage quote please"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "Bob", captured.Name)
	assert.Equal(t, "Panel Beating", captured.Service)
	assert.Empty(t, captured.Attachments)
}

func TestSubmitContactWrongMethod(t *testing.T) {
	uc := new(MockContactUC)
	router := newTestRouter(uc, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/contact", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Method not allowed", resp["error"])
	uc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSubmitContactPreflight(t *testing.T) {
	uc := new(MockContactUC)
	router := newTestRouter(uc, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/contact", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,OPTIONS,PATCH,DELETE,POST,PUT", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t,
		"X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version",
		rec.Header().Get("Access-Control-Allow-Headers"))
	uc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSubmitContactTooManyAttachments(t *testing.T) {
	uc := new(MockContactUC)
	router := newTestRouter(uc, testConfig())

	files := map[string][]byte{}
	for i := 0; i < 6; i++ {
		files[fmt.Sprintf("damage%d.jpg", i)] = []byte{0xFF, 0xD8, 0xFF}
	}
	body, contentType := multipartBody(t, map[string]string{"service": "Mechanical"}, files)

	req := httptest.NewRequest(http.MethodPost, "/api/contact", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "Error processing upload", resp["error"])
	uc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSubmitContactMalformedMultipart(t *testing.T) {
	uc := new(MockContactUC)
	router := newTestRouter(uc, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("not a multipart body"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=broken")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "Error processing upload", resp["error"])
	uc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSubmitContactMissingCredentials(t *testing.T) {
	uc := new(MockContactUC)
	uc.On("Dispatch", mock.Anything, mock.Anything).Return(domain.ErrMailNotConfigured)
	router := newTestRouter(uc, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"service":"Mechanical"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "Server configuration error: Missing email credentials", resp["error"])
}

func TestSubmitContactRelayFailure(t *testing.T) {
	uc := new(MockContactUC)
	uc.On("Dispatch", mock.Anything, mock.Anything).
		Return(fmt.Errorf("%w: relay rejected", domain.ErrDispatchFailed))
	router := newTestRouter(uc, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"service":"Pressure Washing"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Failed to send email", resp["error"])
	// One dispatch attempt only; the handler never retries
	uc.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestSubmissionRateLimit(t *testing.T) {
	uc := new(MockContactUC)
	uc.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	cfg := testConfig()
	cfg.RateLimitPerWindow = 2
	router := newTestRouter(uc, cfg)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/contact",
			strings.NewReader(`{"service":"Mechanical"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.9.8.7:4444" // distinct IP so other tests don't share the window
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "Too many requests", resp["error"])
	uc.AssertNumberOfCalls(t, "Dispatch", 2)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(new(MockContactUC), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
}
