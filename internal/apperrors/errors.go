// Package apperrors defines the stable error kinds surfaced to API callers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindNotFound            Kind = "NOT_FOUND"
	KindAssetNotFound       Kind = "ASSET_NOT_FOUND"
	KindAssetNotForSale     Kind = "ASSET_NOT_FOR_SALE"
	KindAccessDenied        Kind = "ACCESS_DENIED"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindConflict            Kind = "CONFLICT"
	KindVerificationFailed  Kind = "PAYMENT_VERIFICATION_FAILED"
	KindPaymentPending      Kind = "PAYMENT_PENDING"
	KindLedgerUnavailable   Kind = "LEDGER_UNAVAILABLE"
	KindStorageUploadFailed Kind = "STORAGE_UPLOAD_FAILED"
	KindRegistrationFailed  Kind = "REGISTRATION_FAILED"
	KindContentUnavailable  Kind = "CONTENT_UNAVAILABLE"
	KindRangeNotSatisfiable Kind = "RANGE_NOT_SATISFIABLE"
	KindInternal            Kind = "INTERNAL_ERROR"
)

var statusByKind = map[Kind]int{
	KindValidation:          http.StatusBadRequest,
	KindNotFound:            http.StatusNotFound,
	KindAssetNotFound:       http.StatusNotFound,
	KindAssetNotForSale:     http.StatusForbidden,
	KindAccessDenied:        http.StatusForbidden,
	KindUnauthorized:        http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindConflict:            http.StatusConflict,
	KindVerificationFailed:  http.StatusPaymentRequired,
	KindPaymentPending:      http.StatusConflict,
	KindLedgerUnavailable:   http.StatusServiceUnavailable,
	KindStorageUploadFailed: http.StatusBadGateway,
	KindRegistrationFailed:  http.StatusInternalServerError,
	KindContentUnavailable:  http.StatusBadGateway,
	KindRangeNotSatisfiable: http.StatusRequestedRangeNotSatisfiable,
	KindInternal:            http.StatusInternalServerError,
}

// retryable kinds are infrastructure faults the caller may simply repeat.
var retryable = map[Kind]bool{
	KindPaymentPending:      true,
	KindLedgerUnavailable:   true,
	KindStorageUploadFailed: true,
	KindRegistrationFailed:  true,
	KindContentUnavailable:  true,
	KindInternal:            true,
}

func (k Kind) HTTPStatus() int {
	if status, ok := statusByKind[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (k Kind) Retryable() bool {
	return retryable[k]
}

// Error carries a Kind plus a human readable message. Two Errors match with
// errors.Is when their kinds are equal, so the sentinels below can be used
// as targets.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus is the kind's status, except that an access denial for an
// anonymous caller is reported as 401 so clients know to sign in.
func (e *Error) HTTPStatus() int {
	if e.Kind == KindAccessDenied {
		if anonymous, _ := e.Details["anonymous"].(bool); anonymous {
			return http.StatusUnauthorized
		}
	}
	return e.Kind.HTTPStatus()
}

// WithDetail returns a copy of e with key set in Details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, Err: e.Err}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation          = New(KindValidation, "validation failed")
	ErrNotFound            = New(KindNotFound, "not found")
	ErrAssetNotFound       = New(KindAssetNotFound, "asset not found")
	ErrAssetNotForSale     = New(KindAssetNotForSale, "asset is not for sale")
	ErrAccessDenied        = New(KindAccessDenied, "access denied")
	ErrUnauthorized        = New(KindUnauthorized, "authentication required")
	ErrForbidden           = New(KindForbidden, "forbidden")
	ErrConflict            = New(KindConflict, "conflict")
	ErrVerificationFailed  = New(KindVerificationFailed, "payment verification failed")
	ErrPaymentPending      = New(KindPaymentPending, "payment is not final yet")
	ErrLedgerUnavailable   = New(KindLedgerUnavailable, "ledger unavailable")
	ErrStorageUploadFailed = New(KindStorageUploadFailed, "storage upload failed")
	ErrRegistrationFailed  = New(KindRegistrationFailed, "registration failed")
	ErrContentUnavailable  = New(KindContentUnavailable, "content unavailable")
	ErrRangeNotSatisfiable = New(KindRangeNotSatisfiable, "range not satisfiable")
	ErrInternal            = New(KindInternal, "internal error")
)

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As extracts the *Error from err, wrapping unknown errors as internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(KindInternal, "internal error", err)
}
