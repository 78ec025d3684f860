package grove

import (
	"context"
	"sync"
	"testing"
)

// stubStore is an in-memory Store. WithTx serializes callers behind one
// mutex, which models the row-locked transaction the real store provides,
// and restores a snapshot when fn fails so rollbacks behave like the real
// thing.
type stubStore struct {
	mu    sync.Mutex
	lots  map[LotID]Lot
	trees map[TreeID]Tree

	listLotsError       error
	findLotError        error
	findLotForUpdateErr error
	findTreeError       error
	countTreesError     error
	updateTreeError     error
	updateOperatorError error
	incrementError      error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		lots:  make(map[LotID]Lot),
		trees: make(map[TreeID]Tree),
	}
}

func (store *stubStore) addLot(test *testing.T, id string, code string, name string, capacity int64, plantedCount int64) LotID {
	test.Helper()
	lotID := mustLotID(test, id)
	store.lots[lotID] = Lot{
		ID:           lotID,
		Code:         code,
		Name:         name,
		Capacity:     capacity,
		PlantedCount: plantedCount,
	}
	return lotID
}

func (store *stubStore) addTree(test *testing.T, id string, lotID *LotID) TreeID {
	test.Helper()
	treeID := mustTreeID(test, id)
	store.trees[treeID] = Tree{
		ID:     treeID,
		LotID:  lotID,
		Status: "planted",
	}
	return treeID
}

func (store *stubStore) mustLot(test *testing.T, lotID LotID) Lot {
	test.Helper()
	lot, ok := store.lots[lotID]
	if !ok {
		test.Fatalf("lot %s missing from stub store", lotID)
	}
	return lot
}

func (store *stubStore) mustTree(test *testing.T, treeID TreeID) Tree {
	test.Helper()
	tree, ok := store.trees[treeID]
	if !ok {
		test.Fatalf("tree %s missing from stub store", treeID)
	}
	return tree
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	lotsSnapshot := cloneLots(store.lots)
	treesSnapshot := cloneTrees(store.trees)
	if err := fn(ctx, store); err != nil {
		store.lots = lotsSnapshot
		store.trees = treesSnapshot
		return err
	}
	return nil
}

func (store *stubStore) ListLots(ctx context.Context) ([]LotOccupancy, error) {
	if store.listLotsError != nil {
		return nil, store.listLotsError
	}
	occupancies := make([]LotOccupancy, 0, len(store.lots))
	for lotID, lot := range store.lots {
		count, err := store.CountTreesInLot(ctx, lotID)
		if err != nil {
			return nil, err
		}
		occupancies = append(occupancies, LotOccupancy{Lot: lot, TreeCount: count})
	}
	return occupancies, nil
}

func (store *stubStore) FindLotByID(_ context.Context, lotID LotID) (Lot, error) {
	if store.findLotError != nil {
		return Lot{}, store.findLotError
	}
	lot, ok := store.lots[lotID]
	if !ok {
		return Lot{}, ErrLotNotFound
	}
	return lot, nil
}

func (store *stubStore) FindLotByIDForUpdate(ctx context.Context, lotID LotID) (Lot, error) {
	if store.findLotForUpdateErr != nil {
		return Lot{}, store.findLotForUpdateErr
	}
	return store.FindLotByID(ctx, lotID)
}

func (store *stubStore) FindTreeByID(_ context.Context, treeID TreeID) (Tree, error) {
	if store.findTreeError != nil {
		return Tree{}, store.findTreeError
	}
	tree, ok := store.trees[treeID]
	if !ok {
		return Tree{}, ErrTreeNotFound
	}
	return tree, nil
}

func (store *stubStore) CountTreesInLot(_ context.Context, lotID LotID) (int64, error) {
	if store.countTreesError != nil {
		return 0, store.countTreesError
	}
	var count int64
	for _, tree := range store.trees {
		if tree.LotID != nil && *tree.LotID == lotID {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) UpdateTreeLot(_ context.Context, treeID TreeID, lotID LotID) error {
	if store.updateTreeError != nil {
		return store.updateTreeError
	}
	tree, ok := store.trees[treeID]
	if !ok {
		return ErrTreeNotFound
	}
	assigned := lotID
	tree.LotID = &assigned
	store.trees[treeID] = tree
	return nil
}

func (store *stubStore) UpdateLotOperator(_ context.Context, lotID LotID, operatorID OperatorID) error {
	if store.updateOperatorError != nil {
		return store.updateOperatorError
	}
	lot, ok := store.lots[lotID]
	if !ok {
		return ErrLotNotFound
	}
	assigned := operatorID
	lot.OperatorID = &assigned
	store.lots[lotID] = lot
	return nil
}

func (store *stubStore) IncrementPlantedCount(_ context.Context, lotID LotID, delta int64) error {
	if store.incrementError != nil {
		return store.incrementError
	}
	lot, ok := store.lots[lotID]
	if !ok {
		return ErrLotNotFound
	}
	lot.PlantedCount += delta
	store.lots[lotID] = lot
	return nil
}

func cloneLots(lots map[LotID]Lot) map[LotID]Lot {
	cloned := make(map[LotID]Lot, len(lots))
	for lotID, lot := range lots {
		if lot.OperatorID != nil {
			operator := *lot.OperatorID
			lot.OperatorID = &operator
		}
		cloned[lotID] = lot
	}
	return cloned
}

func cloneTrees(trees map[TreeID]Tree) map[TreeID]Tree {
	cloned := make(map[TreeID]Tree, len(trees))
	for treeID, tree := range trees {
		if tree.LotID != nil {
			lotID := *tree.LotID
			tree.LotID = &lotID
		}
		cloned[treeID] = tree
	}
	return cloned
}

func mustLotID(test *testing.T, raw string) LotID {
	test.Helper()
	lotID, err := NewLotID(raw)
	if err != nil {
		test.Fatalf("lot id %q: %v", raw, err)
	}
	return lotID
}

func mustTreeID(test *testing.T, raw string) TreeID {
	test.Helper()
	treeID, err := NewTreeID(raw)
	if err != nil {
		test.Fatalf("tree id %q: %v", raw, err)
	}
	return treeID
}

func mustOperatorID(test *testing.T, raw string) OperatorID {
	test.Helper()
	operatorID, err := NewOperatorID(raw)
	if err != nil {
		test.Fatalf("operator id %q: %v", raw, err)
	}
	return operatorID
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}
