package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	CodePropertyLookup         = "PROPERTY_LOOKUP_FAILED"
	CodeAvailabilityCheck      = "AVAILABILITY_CHECK_FAILED"
	CodeAvailabilityConflict   = "AVAILABILITY_CONFLICT"
	CodeRemoteOperation        = "REMOTE_OPERATION_FAILED"
	CodePaymentDeclined        = "PAYMENT_DECLINED"
	CodePaymentCancelledByUser = "PAYMENT_CANCELLED_BY_USER"
	CodePaymentFailed          = "PAYMENT_FAILED"
	CodeRefundQuoteUnavailable = "REFUND_QUOTE_UNAVAILABLE"
	CodeValidation             = "VALIDATION_ERROR"
	CodeConflict               = "CONFLICT"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeInternal               = "INTERNAL_ERROR"
)

// AppError is the single structured error the services hand back to handlers.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code, so errors.Is(err, apperrors.ErrAvailabilityConflict) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuthenticationRequired = &AppError{Code: CodeAuthenticationRequired}
	ErrPropertyLookup         = &AppError{Code: CodePropertyLookup}
	ErrAvailabilityCheck      = &AppError{Code: CodeAvailabilityCheck}
	ErrAvailabilityConflict   = &AppError{Code: CodeAvailabilityConflict}
	ErrRemoteOperation        = &AppError{Code: CodeRemoteOperation}
	ErrPaymentDeclined        = &AppError{Code: CodePaymentDeclined}
	ErrPaymentCancelledByUser = &AppError{Code: CodePaymentCancelledByUser}
	ErrPaymentFailed          = &AppError{Code: CodePaymentFailed}
	ErrRefundQuoteUnavailable = &AppError{Code: CodeRefundQuoteUnavailable}
	ErrValidation             = &AppError{Code: CodeValidation}
	ErrConflict               = &AppError{Code: CodeConflict}
	ErrForbidden              = &AppError{Code: CodeForbidden}
	ErrNotFound               = &AppError{Code: CodeNotFound}
)

func AuthenticationRequired() *AppError {
	return &AppError{
		Code:       CodeAuthenticationRequired,
		Message:    "you must be signed in to continue",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Unauthenticated is AuthenticationRequired with a specific message, used for bad credentials or expired sessions.
func Unauthenticated(message string, err error) *AppError {
	e := AuthenticationRequired()
	e.Message = message
	e.Err = err
	return e
}

func PropertyLookup(propertyID string, err error) *AppError {
	return &AppError{
		Code:       CodePropertyLookup,
		Message:    "failed to load property details",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"property_id": propertyID},
		Err:        err,
	}
}

func AvailabilityCheck(err error) *AppError {
	msg := "availability check failed"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		Code:       CodeAvailabilityCheck,
		Message:    msg,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func AvailabilityConflict(reason string) *AppError {
	if reason == "" {
		reason = "the selected dates are no longer available"
	}
	return &AppError{
		Code:       CodeAvailabilityConflict,
		Message:    reason,
		HTTPStatus: http.StatusConflict,
	}
}

// RemoteOperation keeps the backend's message verbatim.
func RemoteOperation(op string, err error) *AppError {
	msg := op + " failed"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		Code:       CodeRemoteOperation,
		Message:    msg,
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

func PaymentDeclined(reason string) *AppError {
	return &AppError{
		Code:       CodePaymentDeclined,
		Message:    "the payment was declined",
		HTTPStatus: http.StatusPaymentRequired,
		Details:    map[string]any{"reason": reason},
	}
}

func PaymentCancelledByUser(detail string) *AppError {
	e := &AppError{
		Code:       CodePaymentCancelledByUser,
		Message:    "the payment was cancelled",
		HTTPStatus: http.StatusConflict,
	}
	if detail != "" {
		e.Details = map[string]any{"reason": detail}
	}
	return e
}

func PaymentFailed(code string) *AppError {
	return &AppError{
		Code:       CodePaymentFailed,
		Message:    "the payment could not be completed",
		HTTPStatus: http.StatusPaymentRequired,
		Details:    map[string]any{"error_code": code},
	}
}

func RefundQuoteUnavailable(err error) *AppError {
	return &AppError{
		Code:       CodeRefundQuoteUnavailable,
		Message:    "refund quote is unavailable, showing an estimate",
		HTTPStatus: http.StatusOK,
		Err:        err,
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// As converts any error into an *AppError, defaulting to an internal error.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("an unexpected error occurred", err)
}

// StatusCode returns the HTTP status for err, 500 for unknown errors.
func StatusCode(err error) int {
	appErr := As(err)
	if appErr.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return appErr.HTTPStatus
}
