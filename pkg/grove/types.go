package grove

import (
	"context"
	"fmt"
	"strings"
)

// LotID identifies a planting lot.
type LotID struct {
	value string
}

// TreeID identifies an individually tracked tree.
type TreeID struct {
	value string
}

// OperatorID references an operator managed outside this service.
type OperatorID struct {
	value string
}

// NewLotID validates and normalizes a lot id.
func NewLotID(raw string) (LotID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return LotID{}, fmt.Errorf("%w: empty value", ErrInvalidLotID)
	}
	return LotID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id LotID) String() string {
	return id.value
}

// NewTreeID validates and normalizes a tree id.
func NewTreeID(raw string) (TreeID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TreeID{}, fmt.Errorf("%w: empty value", ErrInvalidTreeID)
	}
	return TreeID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TreeID) String() string {
	return id.value
}

// NewOperatorID validates and normalizes an operator reference.
// Existence of the operator is not checked here; the storage layer's
// referential integrity is the contract for dangling references.
func NewOperatorID(raw string) (OperatorID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OperatorID{}, fmt.Errorf("%w: empty value", ErrInvalidOperatorID)
	}
	return OperatorID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id OperatorID) String() string {
	return id.value
}

// Lot is a bounded-capacity planting area.
// PlantedCount is the cached occupancy counter; capacity decisions never
// trust it alone (see CountTreesInLot).
type Lot struct {
	ID           LotID
	Code         string
	Name         string
	Capacity     int64
	PlantedCount int64
	OperatorID   *OperatorID
}

// Tree is a tracked unit assigned to at most one lot.
// LotID is nil only before initial planting. Status is carried through
// untouched by this service.
type Tree struct {
	ID     TreeID
	LotID  *LotID
	Status string
}

// LotOccupancy pairs a lot with the live count of trees referencing it.
type LotOccupancy struct {
	Lot       Lot
	TreeCount int64
}

// PlantedTree is a tree together with its resolved lot.
type PlantedTree struct {
	Tree Tree
	Lot  Lot
}

// LotSummary is the slice of lot state handed to the notification sink.
type LotSummary struct {
	Name      string
	Code      string
	Capacity  int64
	Occupancy int64
}

// Store is the persistence contract used by Service.
// Reads inside WithTx must observe the transaction's own uncommitted writes.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	ListLots(ctx context.Context) ([]LotOccupancy, error)
	FindLotByID(ctx context.Context, lotID LotID) (Lot, error)
	// FindLotByIDForUpdate locks the lot row for the remainder of the
	// transaction so the capacity check and the counter write are serialized
	// against concurrent placements into the same lot.
	FindLotByIDForUpdate(ctx context.Context, lotID LotID) (Lot, error)
	FindTreeByID(ctx context.Context, treeID TreeID) (Tree, error)
	CountTreesInLot(ctx context.Context, lotID LotID) (int64, error)
	UpdateTreeLot(ctx context.Context, treeID TreeID, lotID LotID) error
	UpdateLotOperator(ctx context.Context, lotID LotID, operatorID OperatorID) error
	IncrementPlantedCount(ctx context.Context, lotID LotID, delta int64) error
}

// NotificationSink receives best-effort post-commit events. Errors returned
// here are logged by the caller and never fail the triggering operation.
type NotificationSink interface {
	NotifyOperatorAssigned(ctx context.Context, operatorID OperatorID, summary LotSummary) error
}
