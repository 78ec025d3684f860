package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlab/grove/pkg/grove"
)

const (
	pgForeignKeyViolationCode = "23503"

	errorOperationStore     = "store"
	errorSubjectLot         = "lot"
	errorSubjectTree        = "tree"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeList           = "list"
	errorCodeGet            = "get"
	errorCodeCount          = "count"
	errorCodeInvalid        = "invalid"
	errorCodeUpdateLot      = "update_lot"
	errorCodeUpdateOperator = "update_operator"
	errorCodeIncrement      = "increment_planted_count"

	sqlListLots = `
		select
			lots.lot_id::text,
			lots.code,
			lots.name,
			lots.capacity,
			lots.planted_count,
			coalesce(lots.operator_id,''),
			count(trees.tree_id)
		from lots
		left join trees on trees.lot_id = lots.lot_id
		group by lots.lot_id
	`

	sqlSelectLot = `
		select lot_id::text, code, name, capacity, planted_count, coalesce(operator_id,'')
		from lots
		where lot_id = $1
	`

	// The FOR UPDATE lock serializes the capacity check against concurrent
	// placements into the same lot for the rest of the transaction.
	sqlSelectLotForUpdate = sqlSelectLot + `
		for update
	`

	sqlSelectTree = `
		select tree_id::text, coalesce(lot_id::text,''), status
		from trees
		where tree_id = $1
	`

	sqlCountTreesInLot = `
		select count(*) from trees where lot_id = $1
	`

	sqlUpdateTreeLot = `
		update trees set lot_id = $2, updated_at = now() where tree_id = $1
	`

	sqlUpdateLotOperator = `
		update lots set operator_id = $2, updated_at = now() where lot_id = $1
	`

	sqlIncrementPlantedCount = `
		update lots set planted_count = planted_count + $2, updated_at = now() where lot_id = $1
	`
)

// querier is the subset of pgx shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements grove.Store over pgx; outside WithTx it runs autocommit
// against the pool, inside it runs against the active transaction.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore grove.Store) error) error {
	if store.pool == nil {
		// Already transaction-scoped; reuse the active transaction.
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) ListLots(ctx context.Context) ([]grove.LotOccupancy, error) {
	rows, err := store.q.Query(ctx, sqlListLots)
	if err != nil {
		return nil, wrapStoreError(errorSubjectLot, errorCodeList, err)
	}
	defer rows.Close()

	var occupancies []grove.LotOccupancy
	for rows.Next() {
		var (
			lotIDValue    string
			codeValue     string
			nameValue     string
			capacityValue int64
			plantedValue  int64
			operatorValue string
			treeCount     int64
		)
		if err := rows.Scan(&lotIDValue, &codeValue, &nameValue, &capacityValue, &plantedValue, &operatorValue, &treeCount); err != nil {
			return nil, wrapStoreError(errorSubjectLot, errorCodeList, err)
		}
		lot, err := buildLot(lotIDValue, codeValue, nameValue, capacityValue, plantedValue, operatorValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
		}
		occupancies = append(occupancies, grove.LotOccupancy{Lot: lot, TreeCount: treeCount})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectLot, errorCodeList, err)
	}
	return occupancies, nil
}

func (store *Store) FindLotByID(ctx context.Context, lotID grove.LotID) (grove.Lot, error) {
	return store.findLot(ctx, sqlSelectLot, lotID)
}

func (store *Store) FindLotByIDForUpdate(ctx context.Context, lotID grove.LotID) (grove.Lot, error) {
	return store.findLot(ctx, sqlSelectLotForUpdate, lotID)
}

func (store *Store) findLot(ctx context.Context, query string, lotID grove.LotID) (grove.Lot, error) {
	var (
		lotIDValue    string
		codeValue     string
		nameValue     string
		capacityValue int64
		plantedValue  int64
		operatorValue string
	)
	err := store.q.QueryRow(ctx, query, lotID.String()).Scan(
		&lotIDValue, &codeValue, &nameValue, &capacityValue, &plantedValue, &operatorValue,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return grove.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, grove.ErrLotNotFound)
		}
		return grove.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, err)
	}
	lot, err := buildLot(lotIDValue, codeValue, nameValue, capacityValue, plantedValue, operatorValue)
	if err != nil {
		return grove.Lot{}, wrapStoreError(errorSubjectLot, errorCodeInvalid, err)
	}
	return lot, nil
}

func (store *Store) FindTreeByID(ctx context.Context, treeID grove.TreeID) (grove.Tree, error) {
	var (
		treeIDValue string
		lotIDValue  string
		statusValue string
	)
	err := store.q.QueryRow(ctx, sqlSelectTree, treeID.String()).Scan(&treeIDValue, &lotIDValue, &statusValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return grove.Tree{}, wrapStoreError(errorSubjectTree, errorCodeGet, grove.ErrTreeNotFound)
		}
		return grove.Tree{}, wrapStoreError(errorSubjectTree, errorCodeGet, err)
	}
	parsedTreeID, err := grove.NewTreeID(treeIDValue)
	if err != nil {
		return grove.Tree{}, wrapStoreError(errorSubjectTree, errorCodeInvalid, err)
	}
	var lotID *grove.LotID
	if lotIDValue != "" {
		parsedLotID, err := grove.NewLotID(lotIDValue)
		if err != nil {
			return grove.Tree{}, wrapStoreError(errorSubjectTree, errorCodeInvalid, err)
		}
		lotID = &parsedLotID
	}
	return grove.Tree{ID: parsedTreeID, LotID: lotID, Status: statusValue}, nil
}

func (store *Store) CountTreesInLot(ctx context.Context, lotID grove.LotID) (int64, error) {
	var count int64
	if err := store.q.QueryRow(ctx, sqlCountTreesInLot, lotID.String()).Scan(&count); err != nil {
		return 0, wrapStoreError(errorSubjectTree, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) UpdateTreeLot(ctx context.Context, treeID grove.TreeID, lotID grove.LotID) error {
	tag, err := store.q.Exec(ctx, sqlUpdateTreeLot, treeID.String(), lotID.String())
	if isForeignKeyViolation(err) {
		return wrapStoreError(errorSubjectTree, errorCodeUpdateLot, grove.ErrLotNotFound)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTree, errorCodeUpdateLot, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectTree, errorCodeUpdateLot, grove.ErrTreeNotFound)
	}
	return nil
}

func (store *Store) UpdateLotOperator(ctx context.Context, lotID grove.LotID, operatorID grove.OperatorID) error {
	tag, err := store.q.Exec(ctx, sqlUpdateLotOperator, lotID.String(), operatorID.String())
	if err != nil {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateOperator, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateOperator, grove.ErrLotNotFound)
	}
	return nil
}

func (store *Store) IncrementPlantedCount(ctx context.Context, lotID grove.LotID, delta int64) error {
	tag, err := store.q.Exec(ctx, sqlIncrementPlantedCount, lotID.String(), delta)
	if err != nil {
		return wrapStoreError(errorSubjectLot, errorCodeIncrement, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeIncrement, grove.ErrLotNotFound)
	}
	return nil
}

func buildLot(lotIDValue, codeValue, nameValue string, capacityValue, plantedValue int64, operatorValue string) (grove.Lot, error) {
	lotID, err := grove.NewLotID(lotIDValue)
	if err != nil {
		return grove.Lot{}, err
	}
	var operatorID *grove.OperatorID
	if operatorValue != "" {
		parsedOperatorID, err := grove.NewOperatorID(operatorValue)
		if err != nil {
			return grove.Lot{}, err
		}
		operatorID = &parsedOperatorID
	}
	return grove.Lot{
		ID:           lotID,
		Code:         codeValue,
		Name:         nameValue,
		Capacity:     capacityValue,
		PlantedCount: plantedValue,
		OperatorID:   operatorID,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return grove.WrapError(errorOperationStore, subject, code, err)
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolationCode
	}
	return false
}
