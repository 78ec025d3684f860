package grove

import (
	"context"
	"errors"
	"testing"
)

func TestReassignTreeMovesBetweenLots(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	sourceID := store.addLot(test, "lot-source", "L-00", "Old Grove", 5, 1)
	targetID := store.addLot(test, "lot-target", "L-01", "New Grove", 5, 3)
	treeID := store.addTree(test, "tree-1", &sourceID)
	for _, id := range []string{"tree-2", "tree-3", "tree-4"} {
		store.addTree(test, id, &targetID)
	}
	service := mustNewService(test, store)

	planted, err := service.ReassignTree(context.Background(), treeID, targetID)
	if err != nil {
		test.Fatalf("reassign: %v", err)
	}
	if planted.Tree.LotID == nil || *planted.Tree.LotID != targetID {
		test.Fatalf("expected tree in target lot, got %v", planted.Tree.LotID)
	}
	if planted.Lot.ID != targetID {
		test.Fatalf("expected resolved target lot, got %s", planted.Lot.ID)
	}
	if got := store.mustLot(test, sourceID).PlantedCount; got != 0 {
		test.Fatalf("expected source counter 0, got %d", got)
	}
	if got := store.mustLot(test, targetID).PlantedCount; got != 4 {
		test.Fatalf("expected target counter 4, got %d", got)
	}
	storedTree := store.mustTree(test, treeID)
	if storedTree.LotID == nil || *storedTree.LotID != targetID {
		test.Fatalf("expected tree reference persisted, got %v", storedTree.LotID)
	}
}

func TestReassignTreeInitialPlantingSkipsSourceDecrement(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	targetID := store.addLot(test, "lot-target", "L-01", "New Grove", 5, 0)
	treeID := store.addTree(test, "tree-1", nil)
	service := mustNewService(test, store)

	if _, err := service.ReassignTree(context.Background(), treeID, targetID); err != nil {
		test.Fatalf("reassign: %v", err)
	}
	if got := store.mustLot(test, targetID).PlantedCount; got != 1 {
		test.Fatalf("expected target counter 1, got %d", got)
	}
}

func TestReassignTreeSameLotIsIdempotentNoOp(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	// Lot is at capacity; the tree it already holds must still be movable
	// onto itself.
	lotID := store.addLot(test, "lot-1", "L-01", "Full Grove", 2, 2)
	treeID := store.addTree(test, "tree-1", &lotID)
	store.addTree(test, "tree-2", &lotID)
	service := mustNewService(test, store)

	planted, err := service.ReassignTree(context.Background(), treeID, lotID)
	if err != nil {
		test.Fatalf("expected same-lot reassign to succeed, got %v", err)
	}
	if planted.Tree.LotID == nil || *planted.Tree.LotID != lotID {
		test.Fatalf("expected tree to stay in lot, got %v", planted.Tree.LotID)
	}
	if got := store.mustLot(test, lotID).PlantedCount; got != 2 {
		test.Fatalf("expected counter unchanged at 2, got %d", got)
	}
}

func TestReassignTreeUnknownTree(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	lotID := store.addLot(test, "lot-1", "L-01", "Grove", 2, 0)
	service := mustNewService(test, store)

	_, err := service.ReassignTree(context.Background(), mustTreeID(test, "missing"), lotID)
	if !errors.Is(err, ErrTreeNotFound) {
		test.Fatalf("expected ErrTreeNotFound, got %v", err)
	}
}

func TestReassignTreeUnknownTargetLot(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	sourceID := store.addLot(test, "lot-source", "L-00", "Grove", 2, 1)
	treeID := store.addTree(test, "tree-1", &sourceID)
	service := mustNewService(test, store)

	_, err := service.ReassignTree(context.Background(), treeID, mustLotID(test, "missing"))
	if !errors.Is(err, ErrLotNotFound) {
		test.Fatalf("expected ErrLotNotFound, got %v", err)
	}
	if got := store.mustLot(test, sourceID).PlantedCount; got != 1 {
		test.Fatalf("expected source counter untouched, got %d", got)
	}
}

func TestReassignTreeCapacityExceededLeavesStateUntouched(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	sourceID := store.addLot(test, "lot-source", "L-00", "Old Grove", 5, 1)
	targetID := store.addLot(test, "lot-target", "L-01", "Full Grove", 2, 2)
	treeID := store.addTree(test, "tree-1", &sourceID)
	store.addTree(test, "tree-2", &targetID)
	store.addTree(test, "tree-3", &targetID)
	service := mustNewService(test, store)

	_, err := service.ReassignTree(context.Background(), treeID, targetID)
	if !errors.Is(err, ErrCapacityExceeded) {
		test.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	var capacityError CapacityExceededError
	if !errors.As(err, &capacityError) {
		test.Fatalf("expected CapacityExceededError, got %T", err)
	}
	if capacityError.LotName != "Full Grove" || capacityError.Capacity != 2 || capacityError.Occupancy != 2 {
		test.Fatalf("unexpected capacity error detail: %+v", capacityError)
	}
	storedTree := store.mustTree(test, treeID)
	if storedTree.LotID == nil || *storedTree.LotID != sourceID {
		test.Fatalf("expected tree to stay in source lot, got %v", storedTree.LotID)
	}
	if got := store.mustLot(test, sourceID).PlantedCount; got != 1 {
		test.Fatalf("expected source counter unchanged, got %d", got)
	}
	if got := store.mustLot(test, targetID).PlantedCount; got != 2 {
		test.Fatalf("expected target counter unchanged, got %d", got)
	}
}

func TestReassignTreeCapacityCheckUsesLiveCountNotCache(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	sourceID := store.addLot(test, "lot-source", "L-00", "Old Grove", 5, 1)
	// Cached counter claims full, but no trees actually reference the lot.
	targetID := store.addLot(test, "lot-target", "L-01", "Ghost Grove", 1, 1)
	treeID := store.addTree(test, "tree-1", &sourceID)
	service := mustNewService(test, store)

	if _, err := service.ReassignTree(context.Background(), treeID, targetID); err != nil {
		test.Fatalf("expected stale cache to be ignored, got %v", err)
	}
}

func TestReassignTreeRollsBackOnCounterFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	sourceID := store.addLot(test, "lot-source", "L-00", "Old Grove", 5, 1)
	targetID := store.addLot(test, "lot-target", "L-01", "New Grove", 5, 0)
	treeID := store.addTree(test, "tree-1", &sourceID)
	store.incrementError = errStoreFailure
	service := mustNewService(test, store)

	_, err := service.ReassignTree(context.Background(), treeID, targetID)
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf("expected store failure, got %v", err)
	}
	storedTree := store.mustTree(test, treeID)
	if storedTree.LotID == nil || *storedTree.LotID != sourceID {
		test.Fatalf("expected tree reference rolled back, got %v", storedTree.LotID)
	}
	if got := store.mustLot(test, sourceID).PlantedCount; got != 1 {
		test.Fatalf("expected source counter rolled back, got %d", got)
	}
}

func TestReassignTreeReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(test *testing.T, store *stubStore)
		wantErr   error
	}{
		{
			name: "tree lookup error",
			configure: func(test *testing.T, store *stubStore) {
				store.findTreeError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
		{
			name: "lot locking read error",
			configure: func(test *testing.T, store *stubStore) {
				store.findLotForUpdateErr = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
		{
			name: "occupancy count error",
			configure: func(test *testing.T, store *stubStore) {
				store.countTreesError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
		{
			name: "tree update error",
			configure: func(test *testing.T, store *stubStore) {
				store.updateTreeError = errStoreFailure
			},
			wantErr: errStoreFailure,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			sourceID := store.addLot(test, "lot-source", "L-00", "Old Grove", 5, 1)
			targetID := store.addLot(test, "lot-target", "L-01", "New Grove", 5, 0)
			treeID := store.addTree(test, "tree-1", &sourceID)
			testCase.configure(test, store)
			service := mustNewService(test, store)

			_, err := service.ReassignTree(context.Background(), treeID, targetID)
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}
