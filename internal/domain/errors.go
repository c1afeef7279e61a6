package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrUnknownStatus        = errors.New("unknown order status")
	ErrPublish              = errors.New("publish order event")
	ErrOrderFailed          = errors.New("order marked as failed")
)

// ValidationError aggregates every violated input rule.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Add(msg string) { e.Messages = append(e.Messages, msg) }

func (e *ValidationError) HasErrors() bool { return len(e.Messages) > 0 }

func (e *ValidationError) Error() string {
	return "Validation failed: " + strings.Join(e.Messages, ", ")
}
