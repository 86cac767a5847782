// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a request failed input validation.
var ErrValidation = errors.New("validation failed")

// ErrConfiguration indicates a fatal configuration problem such as a malformed
// tenant id, an embedding dimension mismatch, or an unknown plan tier. Turns
// abort before any model cost is incurred; the message is for operators, not
// end users.
var ErrConfiguration = errors.New("configuration error")

// ErrQuotaExceeded indicates the chatbot has no credits left for the current
// billing period. Terminal for the turn; no model call is made.
var ErrQuotaExceeded = errors.New("quota exceeded")
