package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExtractedReceipt is the vision model's parse of a receipt image,
// validated before any draft is created. The binding tags drive
// schema validation.
type ExtractedReceipt struct {
	StoreName string          `json:"store_name" binding:"required"`
	Date      string          `json:"date"`
	Items     []ExtractedItem `json:"items" binding:"required,min=1,dive"`
	Subtotal  *string         `json:"subtotal"`
	Tax       *string         `json:"tax"`
	Total     string          `json:"total" binding:"required"`
	Currency  string          `json:"currency"`
}

// ExtractedItem is one line of the parse. Quantity defaults to 1 when
// the printed line omits it.
type ExtractedItem struct {
	RawLabel  string  `json:"raw_label" binding:"required"`
	Quantity  *string `json:"quantity"`
	UnitPrice *string `json:"unit_price"`
	LineTotal string  `json:"line_total" binding:"required"`
}

// DraftLineItem is an extracted line annotated with the resolution
// outcome. Drafts carry these as JSON; they never get their own table.
type DraftLineItem struct {
	RawLabel         string             `json:"raw_label"`
	NormalizedLabel  string             `json:"normalized_label"`
	Quantity         decimal.Decimal    `json:"quantity"`
	UnitPrice        decimal.Decimal    `json:"unit_price"`
	LineTotal        decimal.Decimal    `json:"line_total"`
	ResolutionStatus ResolutionStatus   `json:"resolution_status"`
	ProductId        *int               `json:"product_id"`
	ProductName      string             `json:"product_name,omitempty"`
	Score            float64            `json:"score"`
	Candidates       []ResolutionOption `json:"candidates,omitempty"`
}

// ResolutionOption is a near-miss candidate surfaced for ambiguous
// lines so the user can pick one at confirmation time.
type ResolutionOption struct {
	ProductId   int     `json:"product_id"`
	ProductName string  `json:"product_name"`
	Score       float64 `json:"score"`
}

// DraftReceipt is the holding state between extraction and commit.
// The ID is a UUID because clients reference drafts before any
// database-generated key could exist in their conversation.
type DraftReceipt struct {
	ID        string              `gorm:"primary_key;size:36" json:"id"`
	UserId    int                 `gorm:"index;not null" json:"user_id"`
	Status    DraftStatus         `gorm:"size:32;index;not null" json:"status"`
	StoreName string              `gorm:"size:255" json:"store_name"`
	Date      time.Time           `json:"date"`
	Payload   []byte              `gorm:"type:json" json:"-"`
	Subtotal  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	Tax       decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"tax"`
	Total     decimal.Decimal     `gorm:"type:decimal(12,2)" json:"total"`
	Currency  string              `gorm:"size:3" json:"currency"`
	ImageUrl  string              `gorm:"size:512" json:"image_url"`
	ReceiptId *int                `gorm:"index" json:"receipt_id"`
	ExpiresAt time.Time           `gorm:"index" json:"expires_at"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetDraftForUpdate locks the draft row for the duration of the
// caller's transaction. Finalize and discard both go through this.
func GetDraftForUpdate(ctx context.Context, tx *gorm.DB, userId int, draftId string) (*DraftReceipt, error) {
	var draft DraftReceipt
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id = ?", userId, draftId).
		Take(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// GetDraftForUser is the read-only lookup.
func GetDraftForUser(ctx context.Context, db *gorm.DB, userId int, draftId string) (*DraftReceipt, error) {
	var draft DraftReceipt
	err := db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userId, draftId).
		Take(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}
