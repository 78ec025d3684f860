package gormstore

import (
	"context"
	"errors"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/verdantlab/grove/pkg/grove"
)

const (
	pgForeignKeyViolationCode = "23503"
	sqliteConstraintCode      = 19

	errorOperationStore     = "store"
	errorSubjectLot         = "lot"
	errorSubjectTree        = "tree"
	errorCodeList           = "list"
	errorCodeGet            = "get"
	errorCodeCount          = "count"
	errorCodeUpdateLot      = "update_lot"
	errorCodeUpdateOperator = "update_operator"
	errorCodeIncrement      = "increment_planted_count"
)

// Store implements grove.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore grove.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

type lotOccupancyRow struct {
	LotID        string
	Code         string
	Name         string
	Capacity     int64
	PlantedCount int64
	OperatorID   *string
	TreeCount    int64
}

func (store *Store) ListLots(ctx context.Context) ([]grove.LotOccupancy, error) {
	var rows []lotOccupancyRow
	err := store.db.WithContext(ctx).
		Model(&Lot{}).
		Select("lots.lot_id, lots.code, lots.name, lots.capacity, lots.planted_count, lots.operator_id, count(trees.tree_id) as tree_count").
		Joins("left join trees on trees.lot_id = lots.lot_id").
		Group("lots.lot_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLot, errorCodeList, err)
	}
	occupancies := make([]grove.LotOccupancy, 0, len(rows))
	for _, row := range rows {
		lot, err := mapLot(Lot{
			LotID:        row.LotID,
			Code:         row.Code,
			Name:         row.Name,
			Capacity:     row.Capacity,
			PlantedCount: row.PlantedCount,
			OperatorID:   row.OperatorID,
		})
		if err != nil {
			return nil, wrapStoreError(errorSubjectLot, errorCodeList, err)
		}
		occupancies = append(occupancies, grove.LotOccupancy{Lot: lot, TreeCount: row.TreeCount})
	}
	return occupancies, nil
}

func (store *Store) FindLotByID(ctx context.Context, lotID grove.LotID) (grove.Lot, error) {
	return store.findLot(ctx, lotID, false)
}

// FindLotByIDForUpdate selects the lot row with a FOR UPDATE lock so the
// capacity predicate and the subsequent counter write are serialized against
// concurrent placements into the same lot.
func (store *Store) FindLotByIDForUpdate(ctx context.Context, lotID grove.LotID) (grove.Lot, error) {
	return store.findLot(ctx, lotID, true)
}

func (store *Store) findLot(ctx context.Context, lotID grove.LotID, forUpdate bool) (grove.Lot, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model Lot
	err := query.Where("lot_id = ?", lotID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return grove.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, grove.ErrLotNotFound)
		}
		return grove.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, err)
	}
	lot, err := mapLot(model)
	if err != nil {
		return grove.Lot{}, wrapStoreError(errorSubjectLot, errorCodeGet, err)
	}
	return lot, nil
}

func (store *Store) FindTreeByID(ctx context.Context, treeID grove.TreeID) (grove.Tree, error) {
	var model Tree
	err := store.db.WithContext(ctx).
		Where("tree_id = ?", treeID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return grove.Tree{}, wrapStoreError(errorSubjectTree, errorCodeGet, grove.ErrTreeNotFound)
		}
		return grove.Tree{}, wrapStoreError(errorSubjectTree, errorCodeGet, err)
	}
	tree, err := mapTree(model)
	if err != nil {
		return grove.Tree{}, wrapStoreError(errorSubjectTree, errorCodeGet, err)
	}
	return tree, nil
}

func (store *Store) CountTreesInLot(ctx context.Context, lotID grove.LotID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Tree{}).
		Where("lot_id = ?", lotID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectTree, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) UpdateTreeLot(ctx context.Context, treeID grove.TreeID, lotID grove.LotID) error {
	result := store.db.WithContext(ctx).
		Model(&Tree{}).
		Where("tree_id = ?", treeID.String()).
		Update("lot_id", lotID.String())
	if isForeignKeyViolation(result.Error) {
		return wrapStoreError(errorSubjectTree, errorCodeUpdateLot, grove.ErrLotNotFound)
	}
	if result.Error != nil {
		return wrapStoreError(errorSubjectTree, errorCodeUpdateLot, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTree, errorCodeUpdateLot, grove.ErrTreeNotFound)
	}
	return nil
}

func (store *Store) UpdateLotOperator(ctx context.Context, lotID grove.LotID, operatorID grove.OperatorID) error {
	result := store.db.WithContext(ctx).
		Model(&Lot{}).
		Where("lot_id = ?", lotID.String()).
		Update("operator_id", operatorID.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateOperator, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeUpdateOperator, grove.ErrLotNotFound)
	}
	return nil
}

func (store *Store) IncrementPlantedCount(ctx context.Context, lotID grove.LotID, delta int64) error {
	result := store.db.WithContext(ctx).
		Model(&Lot{}).
		Where("lot_id = ?", lotID.String()).
		UpdateColumn("planted_count", gorm.Expr("planted_count + ?", delta))
	if result.Error != nil {
		return wrapStoreError(errorSubjectLot, errorCodeIncrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLot, errorCodeIncrement, grove.ErrLotNotFound)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return grove.WrapError(errorOperationStore, subject, code, err)
}

func mapLot(model Lot) (grove.Lot, error) {
	lotID, err := grove.NewLotID(model.LotID)
	if err != nil {
		return grove.Lot{}, err
	}
	var operatorID *grove.OperatorID
	if model.OperatorID != nil {
		parsedOperatorID, err := grove.NewOperatorID(*model.OperatorID)
		if err != nil {
			return grove.Lot{}, err
		}
		operatorID = &parsedOperatorID
	}
	return grove.Lot{
		ID:           lotID,
		Code:         model.Code,
		Name:         model.Name,
		Capacity:     model.Capacity,
		PlantedCount: model.PlantedCount,
		OperatorID:   operatorID,
	}, nil
}

func mapTree(model Tree) (grove.Tree, error) {
	treeID, err := grove.NewTreeID(model.TreeID)
	if err != nil {
		return grove.Tree{}, err
	}
	var lotID *grove.LotID
	if model.LotID != nil {
		parsedLotID, err := grove.NewLotID(*model.LotID)
		if err != nil {
			return grove.Tree{}, err
		}
		lotID = &parsedLotID
	}
	return grove.Tree{
		ID:     treeID,
		LotID:  lotID,
		Status: model.Status,
	}, nil
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
