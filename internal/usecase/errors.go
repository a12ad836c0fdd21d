package usecase

import (
	"errors"
	"fmt"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
)

const (
	CodeInvalidPhone     = "INVALID_PHONE"
	CodeTokenUnavailable = "TOKEN_UNAVAILABLE"
	CodeRefreshFailed    = "REFRESH_FAILED"
	CodeCrmRequestFailed = "CRM_REQUEST_FAILED"

	CodeInvalidAuthorizationCode = "INVALID_AUTHORIZATION_CODE"
	CodeAuthorizationFailed      = "AUTHORIZATION_FAILED"
)

// DomainError is a problem with the caller's input. Never retried.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var target *DomainError
	return errors.As(err, &target)
}

// TechnicalError is a failure talking to the CRM or its token endpoint.
// VendorMessage carries what Zoho said, when it said anything.
type TechnicalError struct {
	Code          string
	Message       string
	VendorMessage string
	Err           error
}

func (e *TechnicalError) Error() string {
	if e.VendorMessage != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.VendorMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var target *TechnicalError
	return errors.As(err, &target)
}

// ErrorCode returns the taxonomy code of err, or "" when err is untyped.
func ErrorCode(err error) string {
	var domain *DomainError
	if errors.As(err, &domain) {
		return domain.Code
	}
	var technical *TechnicalError
	if errors.As(err, &technical) {
		return technical.Code
	}
	return ""
}

func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

func ErrInvalidPhone(raw string) error {
	return &DomainError{
		Code:    CodeInvalidPhone,
		Message: fmt.Sprintf("phone %q contains no digits", raw),
	}
}

func ErrTokenUnavailable() error {
	return &TechnicalError{
		Code:    CodeTokenUnavailable,
		Message: "zoho is not authorized yet, run the authorization code bootstrap",
		Err:     entity.ErrTokenNotFound,
	}
}

func ErrRefreshFailed(vendorMessage string, cause error) error {
	return &TechnicalError{
		Code:          CodeRefreshFailed,
		Message:       "zoho refresh token was rejected, re-authorize the integration",
		VendorMessage: vendorMessage,
		Err:           cause,
	}
}

func ErrCrmRequestFailed(vendorMessage string, cause error) error {
	return &TechnicalError{
		Code:          CodeCrmRequestFailed,
		Message:       "zoho crm request failed",
		VendorMessage: vendorMessage,
		Err:           cause,
	}
}

// A token the vendor issued but we could not store is not handed out.
func errTokenPersistFailed(cause error) error {
	return &TechnicalError{
		Code:    CodeRefreshFailed,
		Message: "refreshed zoho token could not be persisted",
		Err:     cause,
	}
}
