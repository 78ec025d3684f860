package grove

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the assignment service.
var (
	ErrLotNotFound          = errors.New("lot not found")
	ErrTreeNotFound         = errors.New("tree not found")
	ErrCapacityExceeded     = errors.New("lot capacity exceeded")
	ErrInvalidLotID         = errors.New("invalid lot id")
	ErrInvalidTreeID        = errors.New("invalid tree id")
	ErrInvalidOperatorID    = errors.New("invalid operator id")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// CapacityExceededError rejects a placement into a full lot. It unwraps to
// ErrCapacityExceeded so callers can match with errors.Is while still reading
// the lot details.
type CapacityExceededError struct {
	LotName   string
	Capacity  int64
	Occupancy int64
}

// Error returns the formatted error message.
func (capacityError CapacityExceededError) Error() string {
	return fmt.Sprintf("lot %q is full: capacity %d, occupancy %d", capacityError.LotName, capacityError.Capacity, capacityError.Occupancy)
}

// Unwrap returns the capacity sentinel.
func (capacityError CapacityExceededError) Unwrap() error {
	return ErrCapacityExceeded
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
