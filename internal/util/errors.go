package util

import (
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindNotFound
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ResponseError is the only error shape the HTTP boundary turns into a client
// response. Err is the cause and is never written to the client.
type ResponseError struct {
	Kind   ErrorKind
	Msg    string
	Status int
	Fields []FieldError
	Err    error
}

func (e ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e ResponseError) Unwrap() error { return e.Err }

func NewResponseError(status int, format string, args ...interface{}) error {
	return ResponseError{
		Kind:   KindInternal,
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
	}
}

func NewValidationError(msg string, fields ...FieldError) error {
	return ResponseError{
		Kind:   KindValidation,
		Msg:    msg,
		Status: http.StatusBadRequest,
		Fields: fields,
	}
}

func NewConflictError(msg string) error {
	return ResponseError{Kind: KindConflict, Msg: msg, Status: http.StatusConflict}
}

func NewAuthenticationError(msg string, cause error) error {
	return ResponseError{Kind: KindAuthentication, Msg: msg, Status: http.StatusUnauthorized, Err: cause}
}

func NewNotFoundError(msg string) error {
	return ResponseError{Kind: KindNotFound, Msg: msg, Status: http.StatusNotFound}
}

func NewStorageError(cause error) error {
	return ResponseError{
		Kind:   KindStorage,
		Msg:    "internal server error",
		Status: http.StatusInternalServerError,
		Err:    cause,
	}
}
