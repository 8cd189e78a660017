package apperror

import "net/http"

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func MethodNotAllowed() *AppError {
	return New(http.StatusMethodNotAllowed, "Method not allowed", nil)
}

func UploadParse(err error) *AppError {
	return New(http.StatusInternalServerError, "Error processing upload", err)
}

func MissingMailConfig() *AppError {
	return New(http.StatusInternalServerError, "Server configuration error: Missing email credentials", nil)
}

func Dispatch(err error) *AppError {
	return New(http.StatusInternalServerError, "Failed to send email", err)
}

func TooManyRequests() *AppError {
	return New(http.StatusTooManyRequests, "Too many requests", nil)
}

func Internal(err error) *AppError {
	return New(http.StatusInternalServerError, "Internal Server Error", err)
}
