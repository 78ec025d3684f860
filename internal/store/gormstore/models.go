package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultMetadataJSON = "{}"

// Lot mirrors the lots table. PlantedCount is the cached occupancy counter;
// capacity checks run against the live trees rows instead.
type Lot struct {
	LotID        string         `gorm:"type:uuid;primaryKey"`
	Code         string         `gorm:"not null;index:idx_lots_code,unique"`
	Name         string         `gorm:"not null"`
	Capacity     int64          `gorm:"not null"`
	PlantedCount int64          `gorm:"not null;default:0"`
	OperatorID   *string        `gorm:"index:idx_lots_operator"`
	Metadata     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

func (Lot) TableName() string { return "lots" }

func (lot *Lot) BeforeCreate(tx *gorm.DB) error {
	if lot.LotID == "" {
		lot.LotID = uuid.NewString()
	}
	if len(lot.Metadata) == 0 {
		lot.Metadata = datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return nil
}

// Tree mirrors the trees table.
type Tree struct {
	TreeID    string         `gorm:"type:uuid;primaryKey"`
	LotID     *string        `gorm:"type:uuid;index:idx_trees_lot"`
	Lot       *Lot           `gorm:"foreignKey:LotID;references:LotID"`
	Status    string         `gorm:"not null;default:'planted'"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (Tree) TableName() string { return "trees" }

func (tree *Tree) BeforeCreate(tx *gorm.DB) error {
	if tree.TreeID == "" {
		tree.TreeID = uuid.NewString()
	}
	if len(tree.Metadata) == 0 {
		tree.Metadata = datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return nil
}
