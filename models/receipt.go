package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Receipt is a finalized purchase record. DraftId carries a unique
// index so finalizing the same draft twice can only ever produce one
// receipt row.
type Receipt struct {
	ID       int       `gorm:"primary_key" json:"id"`
	UserId   int       `gorm:"index;not null" json:"user_id"`
	StoreId  *int      `gorm:"index" json:"store_id"`
	Store    *Store    `json:"store,omitempty"`
	DraftId  *string   `gorm:"size:36;uniqueIndex" json:"draft_id"`
	Date     time.Time `gorm:"index;not null" json:"date"`
	Subtotal decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	Tax      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"tax"`
	Total    decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"total"`
	Currency string              `gorm:"size:3;default:'EUR'" json:"currency"`
	ImageUrl string              `gorm:"size:512" json:"image_url"`

	Items []ReceiptItem `json:"items,omitempty"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReceiptItem keeps the raw printed label forever; ProductId is the
// resolved catalog link and stays NULL when resolution never happened.
type ReceiptItem struct {
	ID        int      `gorm:"primary_key" json:"id"`
	ReceiptId int      `gorm:"index;not null" json:"receipt_id"`
	ProductId *int     `gorm:"index" json:"product_id"`
	Product   *Product `json:"product,omitempty"`
	RawLabel  string   `gorm:"size:255;not null" json:"raw_label"`
	Quantity  decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
}

// GetReceiptByDraftId is the idempotency lookup used by finalize.
func GetReceiptByDraftId(ctx context.Context, tx *gorm.DB, draftId string) (*Receipt, error) {
	var receipt Receipt
	err := tx.WithContext(ctx).
		Preload("Items").
		Where("draft_id = ?", draftId).
		Take(&receipt).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetReceiptForUser loads a receipt with items and store, scoped to
// the owning user.
func GetReceiptForUser(ctx context.Context, db *gorm.DB, userId int, receiptId int) (*Receipt, error) {
	var receipt Receipt
	err := db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Store").
		Where("user_id = ? AND id = ?", userId, receiptId).
		Take(&receipt).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
