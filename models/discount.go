package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Discount is a user-registered offer, optionally tied to a catalog
// product and a store.
type Discount struct {
	ID          int          `gorm:"primary_key" json:"id"`
	UserId      int          `gorm:"index;not null" json:"user_id"`
	ProductId   *int         `gorm:"index" json:"product_id"`
	Product     *Product     `json:"product,omitempty"`
	StoreId     *int         `gorm:"index" json:"store_id"`
	Store       *Store       `json:"store,omitempty"`
	Description string       `gorm:"size:512;not null" json:"description" binding:"required"`
	Type        DiscountType `gorm:"size:32;not null" json:"type" binding:"required"`
	Value       decimal.Decimal `gorm:"type:decimal(12,2)" json:"value"`
	ValidFrom   time.Time       `json:"valid_from"`
	ValidUntil  time.Time       `gorm:"index" json:"valid_until"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
}

// GetActiveDiscounts returns discounts whose validity window covers
// now, newest expiry first.
func GetActiveDiscounts(ctx context.Context, db *gorm.DB, userId int, now time.Time) ([]Discount, error) {
	var discounts []Discount
	err := db.WithContext(ctx).
		Preload("Product").
		Preload("Store").
		Where("user_id = ? AND valid_from <= ? AND valid_until >= ?", userId, now, now).
		Order("valid_until ASC").
		Find(&discounts).Error
	if err != nil {
		return nil, err
	}
	return discounts, nil
}
