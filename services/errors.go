package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every AppError carries one of them so callers can branch with
// errors.Is without looking at HTTP codes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrStorageWrite = errors.New("storage write failed")
	ErrStorage      = errors.New("storage error")
	ErrPersistence  = errors.New("persistence error")
)

type AppError struct {
	HTTPCode int
	Message  string
	Data     interface{}
	Kind     error
	Err      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *AppError) Is(target error) bool {
	return e != nil && e.Kind != nil && e.Kind == target
}

func newAppError(httpCode int, message string, err error) *AppError {
	return &AppError{HTTPCode: httpCode, Message: message, Kind: kindForStatus(httpCode), Err: err}
}

func newAppErrorWithData(httpCode int, message string, data interface{}, err error) *AppError {
	return &AppError{HTTPCode: httpCode, Message: message, Data: data, Kind: kindForStatus(httpCode), Err: err}
}

func newKindError(kind error, httpCode int, message string, err error) *AppError {
	return &AppError{HTTPCode: httpCode, Message: message, Kind: kind, Err: err}
}

func notFound(message string) *AppError {
	return newKindError(ErrNotFound, http.StatusNotFound, message, nil)
}

func persistenceError(message string, err error) *AppError {
	return newKindError(ErrPersistence, http.StatusInternalServerError, message, err)
}

func kindForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return ErrInvalidInput
	case http.StatusConflict:
		return ErrConflict
	default:
		return nil
	}
}
