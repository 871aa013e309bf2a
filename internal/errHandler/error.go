package errHandler

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/trustbond/api/internal/response"
	"github.com/trustbond/api/internal/smtp"
)

type ErrorHandler struct {
	notificationEmail string
	baseURL           string
	logger            *slog.Logger
	mailer            smtp.MailerInterface
}

func New(notificationEmail, baseURL string, mailer smtp.MailerInterface, logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		notificationEmail: notificationEmail,
		baseURL:           baseURL,
		logger:            logger,
		mailer:            mailer,
	}
}

// ReportServerError logs err and, when a notification address is configured,
// mails it. r may be nil for failures raised outside a request.
func (e *ErrorHandler) ReportServerError(r *http.Request, err error) {
	var (
		message = err.Error()
		method  = "-"
		url     = "-"
		trace   = string(debug.Stack())
	)

	if r != nil {
		method = r.Method
		url = r.URL.String()
	}

	requestAttrs := slog.Group("request", "method", method, "url", url)
	e.logger.Error(message, requestAttrs, "trace", trace)

	if e.notificationEmail != "" && e.mailer != nil {
		data := map[string]any{
			"BaseURL":       e.baseURL,
			"Message":       message,
			"RequestMethod": method,
			"RequestURL":    url,
			"Trace":         trace,
		}

		err := e.mailer.Send(e.notificationEmail, data, "error-notification.tmpl")
		if err != nil {
			trace = string(debug.Stack())
			e.logger.Error(err.Error(), requestAttrs, "trace", trace)
		}
	}
}

type Error struct {
	w       http.ResponseWriter
	r       *http.Request
	errors  any
	status  int
	message string
	headers http.Header
}

func (e *ErrorHandler) ErrorMessage(d *Error) {
	if d.message != "" {
		d.message = strings.ToUpper(d.message[:1]) + d.message[1:]
	}

	err := response.JSONErrorResponse(d.w, d.errors, d.message, d.status, d.headers)
	if err != nil {
		e.ReportServerError(d.r, err)
		d.w.WriteHeader(http.StatusInternalServerError)
	}
}

func (e *ErrorHandler) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	e.ReportServerError(r, err)

	message := "The server encountered a problem and could not process your request"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusInternalServerError,
		message: message,
	})
}

func (e *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource could not be found"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusNotFound,
		message: message,
	})
}

func (e *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	message := fmt.Sprintf("The %s method is not supported for this resource", r.Method)
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusMethodNotAllowed,
		message: message,
	})
}

func (e *ErrorHandler) BadRequest(w http.ResponseWriter, r *http.Request, err error) {
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusBadRequest,
		message: err.Error(),
	})
}

func (e *ErrorHandler) FailedValidation(w http.ResponseWriter, r *http.Request, v any) {
	message := "Validation failed"

	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusUnprocessableEntity,
		message: message,
		errors:  v,
	})
}

// UnprocessableEntity is for business-rule refusals that carry a single message
// rather than a list of field errors.
func (e *ErrorHandler) UnprocessableEntity(w http.ResponseWriter, r *http.Request, err error) {
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusUnprocessableEntity,
		message: err.Error(),
	})
}

func (e *ErrorHandler) EditConflict(w http.ResponseWriter, r *http.Request) {
	message := "Unable to update the record due to an edit conflict, please try again"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusConflict,
		message: message,
	})
}

// Conflict reports that the request clashes with an existing record.
func (e *ErrorHandler) Conflict(w http.ResponseWriter, r *http.Request, err error) {
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusConflict,
		message: err.Error(),
	})
}

func (e *ErrorHandler) InvalidAuthenticationToken(w http.ResponseWriter, r *http.Request) {
	headers := make(http.Header)
	headers.Set("WWW-Authenticate", "Bearer")

	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusUnauthorized,
		message: "Invalid authentication token",
		headers: headers,
	})
}

func (e *ErrorHandler) AuthenticationRequired(w http.ResponseWriter, r *http.Request) {
	message := "You must be authenticated to access this resource"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusUnauthorized,
		message: message,
	})
}

func (e *ErrorHandler) NotPermitted(w http.ResponseWriter, r *http.Request) {
	message := "Your account doesn't have the necessary permissions to access this resource"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusForbidden,
		message: message,
	})
}

func (e *ErrorHandler) AccountLocked(w http.ResponseWriter, r *http.Request) {
	message := "Account has been locked. Please contact support"
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusForbidden,
		message: message,
	})
}

func (e *ErrorHandler) RateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	e.ErrorMessage(&Error{
		w:       w,
		r:       r,
		status:  http.StatusTooManyRequests,
		message: "Rate limit exceeded",
	})
}
