package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string
	Message string
	Errors  []ValidationError
}

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Type    string            `json:"type"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{
			Success: false,
			Error:   payload.Message,
			Type:    payload.Type,
			Errors:  payload.Errors,
		})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, leaddomain.ErrCodeExpired):
		return http.StatusGone, errorPayload{
			Type:    "verification_expired",
			Message: "verification code expired",
		}
	case errors.Is(err, leaddomain.ErrLeadExpired):
		return http.StatusGone, errorPayload{
			Type:    "lead_expired",
			Message: "lead expired",
		}
	case errors.Is(err, leaddomain.ErrResendLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many verification requests",
		}
	case errors.Is(err, leaddomain.ErrAttemptsExceeded):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many verification attempts",
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the (type, code) pair the request logger attaches.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		code = vErr.Errors[0].Code
	} else if payload.Type != "internal_error" {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isLeadValidationError(err),
		isRetailerValidationError(err),
		isCreditValidationError(err),
		isDistributionValidationError(err),
		isWebhookValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, leaddomain.ErrNotFound),
		errors.Is(err, leaddomain.ErrCodeNotFound),
		errors.Is(err, retailerdomain.ErrNotFound),
		errors.Is(err, retailerdomain.ErrSubscriptionMissing),
		errors.Is(err, creditdomain.ErrRetailerMissing),
		errors.Is(err, distributiondomain.ErrLeadNotFound),
		errors.Is(err, distributiondomain.ErrRetailerNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, leaddomain.ErrNotFound), errors.Is(err, distributiondomain.ErrLeadNotFound):
		return "lead not found"
	case errors.Is(err, retailerdomain.ErrNotFound),
		errors.Is(err, creditdomain.ErrRetailerMissing),
		errors.Is(err, distributiondomain.ErrRetailerNotFound):
		return "retailer not found"
	case errors.Is(err, leaddomain.ErrCodeNotFound):
		return "no active verification code"
	case errors.Is(err, retailerdomain.ErrSubscriptionMissing):
		return "subscription not found"
	default:
		return "not found"
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, leaddomain.ErrInvalidTransition),
		errors.Is(err, distributiondomain.ErrLeadNotVerified),
		errors.Is(err, distributiondomain.ErrDistributionInProgress):
		return true
	default:
		return false
	}
}

func isUnavailableError(err error) bool {
	switch {
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, leaddomain.ErrSMSUnavailable),
		errors.Is(err, leaddomain.ErrVerificationFailed),
		errors.Is(err, retailerdomain.ErrPaymentsUnavailable),
		errors.Is(err, creditdomain.ErrPaymentsUnavailable),
		errors.Is(err, paymentdomain.ErrNotConfigured):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "invalid_page_token"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if code == "verification_code_mismatch" {
		return "code"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "verification_code_mismatch":
		return "verification code does not match"
	default:
		return "invalid value"
	}
}
