package grove

import (
	"errors"
	"testing"
)

const (
	operationName    = "store"
	subjectName      = "lot"
	codeName         = "lookup"
	baseErrorMessage = "base error"
)

func TestOperationErrorFormatting(test *testing.T) {
	test.Parallel()
	baseError := errors.New(baseErrorMessage)
	wrappedError := WrapError(operationName, subjectName, codeName, baseError)
	if wrappedError == nil {
		test.Fatalf("expected wrapped error")
	}
	expected := operationName + "." + subjectName + "." + codeName + ": " + baseErrorMessage
	if wrappedError.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, wrappedError.Error())
	}
	if !errors.Is(wrappedError, baseError) {
		test.Fatalf("expected wrapped error to unwrap to base")
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError(operationName, subjectName, codeName, nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}

func TestCapacityExceededErrorUnwrapsToSentinel(test *testing.T) {
	test.Parallel()
	capacityError := CapacityExceededError{LotName: "North Field", Capacity: 3, Occupancy: 3}
	if !errors.Is(capacityError, ErrCapacityExceeded) {
		test.Fatalf("expected capacity error to match sentinel")
	}
	expected := `lot "North Field" is full: capacity 3, occupancy 3`
	if capacityError.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, capacityError.Error())
	}
}
