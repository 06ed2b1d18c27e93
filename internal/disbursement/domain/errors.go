package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceExhausted    = errors.New("balance exhausted")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidPayeeID      = errors.New("invalid payee id")
)

type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindRejection ErrorKind = "rejection"
	KindMalformed ErrorKind = "malformed"
)

// ProviderError is one entry of the gateway's {errors:[...]} list.
type ProviderError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type GatewayError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Codes      []ProviderError
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.Kind)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// JoinProviderErrors renders "code: description" pairs separated by ", ".
func JoinProviderErrors(errs []ProviderError) string {
	parts := make([]string, 0, len(errs))
	for _, pe := range errs {
		parts = append(parts, pe.Code+": "+pe.Description)
	}
	return strings.Join(parts, ", ")
}

func IsKind(err error, kind ErrorKind) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}
