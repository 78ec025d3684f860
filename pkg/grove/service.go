package grove

import (
	"context"
	"fmt"
	"sort"
)

// Service contains the assignment logic over a Store.
type Service struct {
	store  Store
	logger OperationLogger
	sink   NotificationSink
}

// NewService wires a Service.
func NewService(store Store, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// ListLots returns every lot enriched with the live count of trees assigned
// to it, ordered by lot name ascending in byte order. The live count is
// authoritative for display; the cached PlantedCount rides along untouched.
func (service *Service) ListLots(ctx context.Context) ([]LotOccupancy, error) {
	lots, err := service.store.ListLots(ctx)
	if err != nil {
		return nil, WrapError(operationListLots, "lot", "list", err)
	}
	sort.Slice(lots, func(left, right int) bool {
		return lots[left].Lot.Name < lots[right].Lot.Name
	})
	return lots, nil
}

// AssignOperator sets the lot's operator reference and returns the updated
// lot. After the write commits, a best-effort notification describes the new
// assignment; a sink failure is logged and swallowed, never surfaced.
func (service *Service) AssignOperator(ctx context.Context, lotID LotID, operatorID OperatorID) (Lot, error) {
	var (
		updatedLot Lot
		summary    LotSummary
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.FindLotByID(ctx, lotID); err != nil {
			return err
		}
		if err := transactionStore.UpdateLotOperator(ctx, lotID, operatorID); err != nil {
			return err
		}
		lot, err := transactionStore.FindLotByID(ctx, lotID)
		if err != nil {
			return err
		}
		occupancy, err := transactionStore.CountTreesInLot(ctx, lotID)
		if err != nil {
			return err
		}
		updatedLot = lot
		summary = LotSummary{
			Name:      lot.Name,
			Code:      lot.Code,
			Capacity:  lot.Capacity,
			Occupancy: occupancy,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationAssignOperator,
		LotID:      lotID,
		OperatorID: operatorID,
		Error:      operationError,
	})
	if operationError != nil {
		return Lot{}, operationError
	}
	service.notifyOperatorAssigned(ctx, lotID, operatorID, summary)
	return updatedLot, nil
}

// ReassignTree moves a tree to the target lot inside a single transaction:
// the target lot row is locked before the capacity predicate is evaluated on
// the live occupancy, then the tree reference and both counters change
// together or not at all. Reassigning a tree to the lot it already occupies
// succeeds without touching any counter.
func (service *Service) ReassignTree(ctx context.Context, treeID TreeID, targetLotID LotID) (PlantedTree, error) {
	var planted PlantedTree
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		tree, err := transactionStore.FindTreeByID(ctx, treeID)
		if err != nil {
			return err
		}
		sourceLotID := tree.LotID
		targetLot, err := transactionStore.FindLotByIDForUpdate(ctx, targetLotID)
		if err != nil {
			return err
		}
		if sourceLotID != nil && *sourceLotID == targetLotID {
			// The tree already occupies one of the target's slots, so the
			// move is a legal no-op even when the lot is full.
			planted = PlantedTree{Tree: tree, Lot: targetLot}
			return nil
		}
		occupancy, err := transactionStore.CountTreesInLot(ctx, targetLotID)
		if err != nil {
			return err
		}
		if err := checkPlacement(targetLot, occupancy); err != nil {
			return err
		}
		if err := transactionStore.UpdateTreeLot(ctx, treeID, targetLotID); err != nil {
			return err
		}
		for _, adjustment := range planCounterDeltas(sourceLotID, targetLotID) {
			if err := transactionStore.IncrementPlantedCount(ctx, adjustment.lotID, adjustment.delta); err != nil {
				return err
			}
		}
		movedTree, err := transactionStore.FindTreeByID(ctx, treeID)
		if err != nil {
			return err
		}
		resolvedLot, err := transactionStore.FindLotByID(ctx, targetLotID)
		if err != nil {
			return err
		}
		planted = PlantedTree{Tree: movedTree, Lot: resolvedLot}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReassignTree,
		TreeID:    treeID,
		LotID:     targetLotID,
		Error:     operationError,
	})
	if operationError != nil {
		return PlantedTree{}, operationError
	}
	return planted, nil
}

// notifyOperatorAssigned runs after the assignment committed. The sink's
// failure modes must never be mistaken for the primary operation's, so any
// error ends here.
func (service *Service) notifyOperatorAssigned(ctx context.Context, lotID LotID, operatorID OperatorID, summary LotSummary) {
	if service.sink == nil {
		return
	}
	if err := service.sink.NotifyOperatorAssigned(ctx, operatorID, summary); err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:  operationNotify,
			LotID:      lotID,
			OperatorID: operatorID,
			Status:     operationStatusNotifyError,
			Error:      err,
		})
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
