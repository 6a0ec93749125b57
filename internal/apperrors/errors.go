package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrInsufficientFunds indicates that a withdrawal exceeds the account's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrSerializationConflict indicates a transient concurrency conflict reported
// by the storage layer. Callers may retry the whole guarded sequence.
var ErrSerializationConflict = errors.New("serialization conflict")

// ErrRetryExhausted indicates that a retryable conflict persisted past the
// configured retry budget.
var ErrRetryExhausted = errors.New("retry budget exhausted")
