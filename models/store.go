package models

import (
	"context"
	"errors"

	"github.com/luxtick/luxtick_backend/utils"
	"gorm.io/gorm"
)

type Store struct {
	ID             int    `gorm:"primary_key" json:"id"`
	Name           string `gorm:"size:255;not null" json:"name" binding:"required"`
	NormalizedName string `gorm:"size:255;uniqueIndex;not null" json:"normalized_name"`
	StoreType      string `gorm:"size:100" json:"store_type"`
	Location       string `gorm:"size:500" json:"location"`
}

// FindOrCreateStore dedups by normalized name inside the caller's tx.
func FindOrCreateStore(ctx context.Context, tx *gorm.DB, name string) (*Store, error) {
	normalized := utils.NormalizeStoreName(name)
	if normalized == "" {
		return nil, errors.New("store name is required")
	}

	var store Store
	err := tx.WithContext(ctx).Where("normalized_name = ?", normalized).Take(&store).Error
	if err == nil {
		return &store, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	store = Store{
		Name:           utils.TitleCase(name),
		NormalizedName: normalized,
	}
	if err := tx.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}
