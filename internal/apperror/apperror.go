package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeMissingIdempotencyKey Code = "MISSING_IDEMPOTENCY_KEY"
	CodeValidation            Code = "VALIDATION"
	CodeProductNotFound       Code = "PRODUCT_NOT_FOUND"
	CodeInvalidQuantityStep   Code = "INVALID_QUANTITY_STEP"
	CodeInsufficientStock     Code = "INSUFFICIENT_STOCK"
	CodeLockTimeout           Code = "LOCK_TIMEOUT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeServerError           Code = "SERVER_ERROR"
)

// Error is a failure with a stable, client-visible code. Err holds the
// internal cause and is never rendered.
type Error struct {
	Code    Code
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeMissingIdempotencyKey, CodeValidation, CodeProductNotFound,
		CodeInvalidQuantityStep, CodeInsufficientStock:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeLockTimeout:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func MissingIdempotencyKey() *Error {
	return New(CodeMissingIdempotencyKey, "Missing Idempotency-Key header")
}

func Validation(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

func ProductNotFound(productID string) *Error {
	return &Error{
		Code:    CodeProductNotFound,
		Message: fmt.Sprintf("product %s not found", productID),
		Details: map[string]string{"productId": productID},
	}
}

func InvalidQuantityStep(productID string, qty, minOrder int64) *Error {
	return &Error{
		Code:    CodeInvalidQuantityStep,
		Message: fmt.Sprintf("quantity %d for product %s must be a multiple of %d", qty, productID, minOrder),
		Details: map[string]any{"productId": productID, "qty": qty, "minOrder": minOrder},
	}
}

func InsufficientStock(productID string, requested, available int64) *Error {
	return &Error{
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for product %s", productID),
		Details: map[string]any{"productId": productID, "requested": requested, "available": available},
	}
}

func LockTimeout(err error) *Error {
	return &Error{Code: CodeLockTimeout, Message: "checkout conflicted with a concurrent order, retry", Err: err}
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func Internal(err error) *Error {
	return &Error{Code: CodeServerError, Message: "Unexpected error", Err: err}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf reports the code of err, SERVER_ERROR for anything untyped.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeServerError
}
